package availability

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/carparkfinder/backend/internal/domain/entities"
	"github.com/carparkfinder/backend/internal/domain/providers"
)

const (
	// DefaultDataMallURL is the LTA DataMall carpark availability endpoint.
	DefaultDataMallURL = "https://datamall2.mytransport.sg/ltaodataservice/CarParkAvailabilityv2"

	dataMallPageSize = 500
	dataMallMaxPages = 40
)

// LTAProvider reads live availability from LTA DataMall. The feed lists one
// row per carpark and lot type; rows are merged per carpark.
type LTAProvider struct {
	baseURL    string
	accountKey string
	httpClient *http.Client
}

// NewLTAProvider creates a DataMall availability provider
func NewLTAProvider(baseURL, accountKey string, timeout time.Duration) providers.AvailabilityProvider {
	return NewLTAProviderWithClient(baseURL, accountKey, newHTTPClient(timeout))
}

// NewLTAProviderWithClient allows overriding the HTTP client (used for tests).
func NewLTAProviderWithClient(baseURL, accountKey string, httpClient *http.Client) *LTAProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultDataMallURL
	}
	return &LTAProvider{baseURL: baseURL, accountKey: accountKey, httpClient: httpClient}
}

// Name identifies the feed
func (p *LTAProvider) Name() string { return "lta_datamall" }

type dataMallResponse struct {
	Value []dataMallRow `json:"value"`
}

type dataMallRow struct {
	CarParkID     string `json:"CarParkID"`
	Area          string `json:"Area"`
	Development   string `json:"Development"`
	Location      string `json:"Location"`
	AvailableLots int    `json:"AvailableLots"`
	LotType       string `json:"LotType"`
	Agency        string `json:"Agency"`
}

// FetchCarparks pages through the feed and returns one carpark per id in
// first-seen order.
func (p *LTAProvider) FetchCarparks(ctx context.Context) ([]*entities.Carpark, error) {
	if p.accountKey == "" {
		return nil, fmt.Errorf("lta datamall account key is not configured")
	}

	byID := make(map[string]*entities.Carpark)
	var ordered []*entities.Carpark
	now := time.Now().UTC()

	for page := 0; page < dataMallMaxPages; page++ {
		endpoint, err := p.pageURL(page * dataMallPageSize)
		if err != nil {
			return nil, err
		}

		var resp dataMallResponse
		if err := getJSON(ctx, p.httpClient, endpoint, map[string]string{"AccountKey": p.accountKey}, &resp); err != nil {
			return nil, fmt.Errorf("failed to fetch datamall page %d: %w", page, err)
		}

		for _, row := range resp.Value {
			id := strings.TrimSpace(row.CarParkID)
			if id == "" {
				continue
			}
			cp, ok := byID[id]
			if !ok {
				// unparseable locations stay at 0,0 and get no distance downstream
				lat, lng, ok := parseLocation(row.Location)
				if !ok {
					log.Ctx(ctx).Debug().Str("carpark_id", id).Str("location", row.Location).Msg("DataMall row without a usable location")
				}
				cp = &entities.Carpark{
					ID:        id,
					Name:      strings.TrimSpace(row.Development),
					Area:      strings.TrimSpace(row.Area),
					Latitude:  lat,
					Longitude: lng,
					Agency:    entities.Agency(strings.ToUpper(strings.TrimSpace(row.Agency))),
					UpdatedAt: now,
				}
				byID[id] = cp
				ordered = append(ordered, cp)
			}
			addLots(&cp.LotCounts, row.LotType, row.AvailableLots)
		}

		if len(resp.Value) < dataMallPageSize {
			break
		}
	}

	for _, cp := range ordered {
		cp.LotCounts = cp.LotCounts.Normalize()
	}
	return ordered, nil
}

func (p *LTAProvider) pageURL(skip int) (string, error) {
	parsed, err := url.Parse(p.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid datamall url: %w", err)
	}
	if skip > 0 {
		// DataMall expects a literal "$skip", not its percent-encoded form.
		skipParam := "$skip=" + strconv.Itoa(skip)
		if parsed.RawQuery == "" {
			parsed.RawQuery = skipParam
		} else {
			parsed.RawQuery += "&" + skipParam
		}
	}
	return parsed.String(), nil
}

// parseLocation splits DataMall's "lat lng" string.
func parseLocation(s string) (float64, float64, bool) {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, 0, false
	}
	lng, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lng, true
}

// addLots adds a lot-type row to the counts: C car, Y motorcycle, H heavy vehicle.
func addLots(counts *entities.LotCounts, lotType string, n int) {
	switch strings.ToUpper(strings.TrimSpace(lotType)) {
	case "C":
		counts.Car += n
	case "Y":
		counts.Motorcycle += n
	case "H":
		counts.HeavyVehicle += n
	}
}
