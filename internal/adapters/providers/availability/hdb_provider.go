package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/carparkfinder/backend/internal/domain/entities"
	"github.com/carparkfinder/backend/internal/domain/providers"
	"github.com/rs/zerolog/log"
)

// DefaultDataGovURL is the data.gov.sg HDB carpark availability endpoint.
const DefaultDataGovURL = "https://api.data.gov.sg/v1/transport/carpark-availability"

// areaStopWords end the area name taken from an HDB address.
var areaStopWords = map[string]bool{
	"STREET": true, "AVENUE": true, "ROAD": true, "CRESCENT": true, "DRIVE": true,
	"LANE": true, "CLOSE": true, "PARK": true, "CAR": true, "MULTI-STOREY": true,
	"BASEMENT": true, "SURFACE": true,
}

// HDBCarparkInfo is one record of the static HDB carpark register.
type HDBCarparkInfo struct {
	CarParkNo           string  `json:"car_park_no"`
	Address             string  `json:"address"`
	Lat                 float64 `json:"lat"`
	Lng                 float64 `json:"lng"`
	CarParkType         string  `json:"car_park_type"`
	TypeOfParkingSystem string  `json:"type_of_parking_system"`
	ShortTermParking    string  `json:"short_term_parking"`
	FreeParking         string  `json:"free_parking"`
	NightParking        string  `json:"night_parking"`
	CarParkDecks        int     `json:"car_park_decks"`
	GantryHeight        float64 `json:"gantry_height"`
	CarParkBasement     string  `json:"car_park_basement"`
}

// HDBProvider merges the static HDB register, which carries coordinates,
// with live lot counts from data.gov.sg.
type HDBProvider struct {
	infoFile   string
	baseURL    string
	apiKey     string
	httpClient *http.Client

	infoOnce sync.Once
	info     []HDBCarparkInfo
	infoErr  error
}

// NewHDBProvider creates an HDB availability provider
func NewHDBProvider(infoFile, baseURL, apiKey string, timeout time.Duration) providers.AvailabilityProvider {
	return NewHDBProviderWithClient(infoFile, baseURL, apiKey, newHTTPClient(timeout))
}

// NewHDBProviderWithClient allows overriding the HTTP client (used for tests).
func NewHDBProviderWithClient(infoFile, baseURL, apiKey string, httpClient *http.Client) *HDBProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultDataGovURL
	}
	return &HDBProvider{infoFile: infoFile, baseURL: baseURL, apiKey: apiKey, httpClient: httpClient}
}

// Name identifies the feed
func (p *HDBProvider) Name() string { return "hdb_datagov" }

type dataGovResponse struct {
	Items []struct {
		CarparkData []struct {
			CarparkNumber  string `json:"carpark_number"`
			UpdateDatetime string `json:"update_datetime"`
			CarparkInfo    []struct {
				TotalLots     string `json:"total_lots"`
				LotType       string `json:"lot_type"`
				LotsAvailable string `json:"lots_available"`
			} `json:"carpark_info"`
		} `json:"carpark_data"`
	} `json:"items"`
}

// FetchCarparks returns every registered HDB carpark. Live counts are
// best-effort: when the live feed is unavailable the lots are zero.
func (p *HDBProvider) FetchCarparks(ctx context.Context) ([]*entities.Carpark, error) {
	info, err := p.loadInfo()
	if err != nil {
		return nil, err
	}
	if len(info) == 0 {
		return nil, nil
	}

	live, err := p.fetchLive(ctx)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("HDB live availability unavailable, returning static register")
	}

	now := time.Now().UTC()
	out := make([]*entities.Carpark, 0, len(info))
	for _, rec := range info {
		cp := &entities.Carpark{
			ID:        rec.CarParkNo,
			Name:      rec.Address,
			Area:      ExtractHDBArea(rec.Address),
			Address:   rec.Address,
			Latitude:  rec.Lat,
			Longitude: rec.Lng,
			Agency:    entities.AgencyHDB,
			UpdatedAt: now,
		}
		if lots, ok := live[rec.CarParkNo]; ok {
			cp.LotCounts = lots.Normalize()
		}
		out = append(out, cp)
	}
	return out, nil
}

func (p *HDBProvider) loadInfo() ([]HDBCarparkInfo, error) {
	p.infoOnce.Do(func() {
		data, err := os.ReadFile(p.infoFile)
		if err != nil {
			p.infoErr = fmt.Errorf("failed to read hdb carpark info: %w", err)
			return
		}
		var info []HDBCarparkInfo
		if err := json.Unmarshal(data, &info); err != nil {
			p.infoErr = fmt.Errorf("failed to parse hdb carpark info: %w", err)
			return
		}
		kept := info[:0]
		for _, rec := range info {
			if strings.TrimSpace(rec.CarParkNo) != "" {
				kept = append(kept, rec)
			}
		}
		p.info = kept
		log.Info().Int("carparks", len(kept)).Msg("Loaded HDB carpark info")
	})
	return p.info, p.infoErr
}

func (p *HDBProvider) fetchLive(ctx context.Context) (map[string]entities.LotCounts, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("data.gov.sg api key is not configured")
	}

	var resp dataGovResponse
	if err := getJSON(ctx, p.httpClient, p.baseURL, map[string]string{"X-Api-Key": p.apiKey}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("no items in hdb availability response")
	}

	out := make(map[string]entities.LotCounts, len(resp.Items[0].CarparkData))
	for _, cp := range resp.Items[0].CarparkData {
		if cp.CarparkNumber == "" {
			continue
		}
		counts := out[cp.CarparkNumber]
		for _, info := range cp.CarparkInfo {
			n, err := strconv.Atoi(strings.TrimSpace(info.LotsAvailable))
			if err != nil {
				continue
			}
			addLots(&counts, info.LotType, n)
		}
		out[cp.CarparkNumber] = counts
	}
	return out, nil
}

// ExtractHDBArea derives a neighbourhood name from an HDB address, e.g.
// "BLOCK 253 ANG MO KIO STREET 21" -> "ANG MO KIO".
func ExtractHDBArea(address string) string {
	upper := strings.ToUpper(address)
	for _, prefix := range []string{"BLK ", "BLOCK ", "BLKS ", "BLOCKS "} {
		if strings.HasPrefix(upper, prefix) {
			upper = upper[len(prefix):]
		}
	}

	parts := strings.Fields(upper)
	if len(parts) > 0 && isDigits(strings.NewReplacer("/", "", "-", "").Replace(parts[0])) {
		parts = parts[1:]
	}

	words := make([]string, 0, 3)
	for _, w := range parts {
		if isDigits(w) || areaStopWords[w] {
			break
		}
		words = append(words, w)
		if len(words) >= 3 {
			break
		}
	}
	if len(words) == 0 {
		return "HDB"
	}
	return strings.Join(words, " ")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
