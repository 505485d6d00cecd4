package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/carparkfinder/backend/internal/domain/entities"
	"github.com/carparkfinder/backend/internal/domain/repositories"
)

// rateFile is the on-disk layout of the rate catalog.
type rateFile struct {
	Carparks []rateEntry `json:"carparks"`
}

type rateEntry struct {
	CarparkID             string `json:"carpark_id"`
	Name                  string `json:"name"`
	WeekdayRate           string `json:"weekday_rate"`
	WeekdayRateAfterHours string `json:"weekday_rate_after_hours,omitempty"`
	SaturdayRate          string `json:"saturday_rate"`
	SundayRate            string `json:"sunday_rate"`
	Note                  string `json:"note,omitempty"`
}

// RateFileAdapter implements RateRepository over a JSON file.
type RateFileAdapter struct {
	path string
	mu   sync.Mutex
}

// NewRateFileAdapter creates a new file-backed rate repository
func NewRateFileAdapter(path string) repositories.RateRepository {
	return &RateFileAdapter{path: path}
}

// List reads every rate entry in file order.
func (a *RateFileAdapter) List(ctx context.Context) ([]*repositories.RateRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	file, modTime, err := a.read()
	if err != nil {
		return nil, err
	}

	records := make([]*repositories.RateRecord, 0, len(file.Carparks))
	for _, e := range file.Carparks {
		records = append(records, e.toRecord(modTime))
	}
	return records, nil
}

// Upsert replaces entries by key and appends new ones, then rewrites the file.
func (a *RateFileAdapter) Upsert(ctx context.Context, records []*repositories.RateRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	file, _, err := a.read()
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if file == nil {
		file = &rateFile{}
	}

	index := make(map[string]int, len(file.Carparks))
	for i, e := range file.Carparks {
		index[repositories.NormalizeRateKey(e.CarparkID)] = i
	}

	for _, r := range records {
		if r == nil {
			continue
		}
		entry := entryFromRecord(r)
		key := repositories.NormalizeRateKey(entry.CarparkID)
		if i, ok := index[key]; ok {
			file.Carparks[i] = entry
			continue
		}
		index[key] = len(file.Carparks)
		file.Carparks = append(file.Carparks, entry)
	}

	return a.write(file)
}

func (a *RateFileAdapter) read() (*rateFile, time.Time, error) {
	f, err := os.Open(a.path)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer f.Close()

	var modTime time.Time
	if info, statErr := f.Stat(); statErr == nil {
		modTime = info.ModTime().UTC()
	}

	var file rateFile
	if err := json.NewDecoder(f).Decode(&file); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to parse rate file %s: %w", a.path, err)
	}
	return &file, modTime, nil
}

func (a *RateFileAdapter) write(file *rateFile) error {
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode rate file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(a.path), ".rates-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp rate file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write rate file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), a.path)
}

func (e rateEntry) toRecord(updatedAt time.Time) *repositories.RateRecord {
	return &repositories.RateRecord{
		Key:       repositories.NormalizeRateKey(e.CarparkID),
		CarparkID: e.CarparkID,
		Pricing: entities.Pricing{
			Name:                  e.Name,
			WeekdayRate:           e.WeekdayRate,
			WeekdayRateAfterHours: e.WeekdayRateAfterHours,
			SaturdayRate:          e.SaturdayRate,
			SundayRate:            e.SundayRate,
			Note:                  e.Note,
		},
		UpdatedAt: updatedAt,
	}
}

func entryFromRecord(r *repositories.RateRecord) rateEntry {
	id := r.CarparkID
	if id == "" {
		id = r.Key
	}
	return rateEntry{
		CarparkID:             id,
		Name:                  r.Pricing.Name,
		WeekdayRate:           r.Pricing.WeekdayRate,
		WeekdayRateAfterHours: r.Pricing.WeekdayRateAfterHours,
		SaturdayRate:          r.Pricing.SaturdayRate,
		SundayRate:            r.Pricing.SundayRate,
		Note:                  r.Pricing.Note,
	}
}
