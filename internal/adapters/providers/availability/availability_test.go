package availability

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carparkfinder/backend/internal/domain/entities"
)

func TestLTAProvider_MergesLotTypes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("AccountKey"))
		_, _ = w.Write([]byte(`{"value":[
			{"CarParkID":"1","Area":"Marina","Development":"Suntec City","Location":"1.29375 103.85718","AvailableLots":420,"LotType":"C","Agency":"LTA"},
			{"CarParkID":"1","Area":"Marina","Development":"Suntec City","Location":"1.29375 103.85718","AvailableLots":12,"LotType":"Y","Agency":"LTA"},
			{"CarParkID":"ACB","Area":"","Development":"BLK 270/271 ALBERT CENTRE","Location":"1.30106 103.85411","AvailableLots":-3,"LotType":"C","Agency":"hdb"},
			{"CarParkID":"","Area":"","Development":"ignored","Location":"","AvailableLots":1,"LotType":"C","Agency":"LTA"},
			{"CarParkID":"X9","Area":"Jurong","Development":"No Fix","Location":"n/a","AvailableLots":5,"LotType":"C","Agency":"LTA"}
		]}`))
	}))
	defer server.Close()

	p := NewLTAProviderWithClient(server.URL, "secret", server.Client())
	carparks, err := p.FetchCarparks(context.Background())
	require.NoError(t, err)
	require.Len(t, carparks, 3)

	suntec := carparks[0]
	assert.Equal(t, "1", suntec.ID)
	assert.Equal(t, "Suntec City", suntec.Name)
	assert.Equal(t, 420, suntec.Car)
	assert.Equal(t, 12, suntec.Motorcycle)
	assert.InDelta(t, 1.29375, suntec.Latitude, 1e-9)
	assert.InDelta(t, 103.85718, suntec.Longitude, 1e-9)
	assert.Equal(t, entities.AgencyLTA, suntec.Agency)

	assert.Equal(t, 0, carparks[1].Car, "negative counts are clamped")
	assert.Equal(t, entities.AgencyHDB, carparks[1].Agency)

	assert.Equal(t, "X9", carparks[2].ID)
	assert.Equal(t, 5, carparks[2].Car)
	assert.False(t, carparks[2].Located())
}

func TestLTAProvider_Pagination(t *testing.T) {
	var skips []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		skip := r.URL.Query().Get("$skip")
		skips = append(skips, skip)

		n := dataMallPageSize
		offset := 0
		if skip == "500" {
			n = 3
			offset = 500
		}
		rows := make([]string, 0, n)
		for i := 0; i < n; i++ {
			rows = append(rows, fmt.Sprintf(`{"CarParkID":"%d","Development":"D","Location":"1.3 103.8","AvailableLots":1,"LotType":"C","Agency":"LTA"}`, offset+i))
		}
		_, _ = w.Write([]byte(`{"value":[` + strings.Join(rows, ",") + `]}`))
	}))
	defer server.Close()

	p := NewLTAProviderWithClient(server.URL, "k", server.Client())
	carparks, err := p.FetchCarparks(context.Background())
	require.NoError(t, err)
	assert.Len(t, carparks, 503)
	assert.Equal(t, []string{"", "500"}, skips)
}

func TestLTAProvider_Errors(t *testing.T) {
	_, err := NewLTAProviderWithClient("http://127.0.0.1:0", "", nil).FetchCarparks(context.Background())
	assert.ErrorContains(t, err, "account key")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err = NewLTAProviderWithClient(server.URL, "k", server.Client()).FetchCarparks(context.Background())
	assert.ErrorContains(t, err, "401")
}

func writeHDBInfo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hdb.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"car_park_no":"ACB","address":"BLK 270/271 ALBERT CENTRE BASEMENT CAR PARK","lat":1.301063,"lng":103.854118},
		{"car_park_no":"AM14","address":"BLOCK 253 ANG MO KIO STREET 21","lat":1.368587,"lng":103.837757},
		{"car_park_no":"","address":"skipped","lat":1,"lng":103}
	]`), 0o644))
	return path
}

func TestHDBProvider_MergesLiveCounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gov-key", r.Header.Get("X-Api-Key"))
		_, _ = w.Write([]byte(`{"items":[{"carpark_data":[
			{"carpark_number":"ACB","update_datetime":"2024-01-01T10:00:00","carpark_info":[
				{"total_lots":"100","lot_type":"C","lots_available":"42"},
				{"total_lots":"20","lot_type":"Y","lots_available":"5"},
				{"total_lots":"10","lot_type":"C","lots_available":"bad"}
			]}
		]}]}`))
	}))
	defer server.Close()

	p := NewHDBProviderWithClient(writeHDBInfo(t), server.URL, "gov-key", server.Client())
	carparks, err := p.FetchCarparks(context.Background())
	require.NoError(t, err)
	require.Len(t, carparks, 2)

	assert.Equal(t, "ACB", carparks[0].ID)
	assert.Equal(t, "ALBERT CENTRE", carparks[0].Area)
	assert.Equal(t, 42, carparks[0].Car)
	assert.Equal(t, 5, carparks[0].Motorcycle)
	assert.Equal(t, entities.AgencyHDB, carparks[0].Agency)

	assert.Equal(t, "ANG MO KIO", carparks[1].Area)
	assert.Equal(t, 0, carparks[1].Car)
}

func TestHDBProvider_LiveFeedDown(t *testing.T) {
	p := NewHDBProviderWithClient(writeHDBInfo(t), "http://127.0.0.1:0", "", nil)
	carparks, err := p.FetchCarparks(context.Background())
	require.NoError(t, err)
	assert.Len(t, carparks, 2)
}

func TestHDBProvider_MissingInfoFile(t *testing.T) {
	p := NewHDBProviderWithClient(filepath.Join(t.TempDir(), "missing.json"), "", "k", nil)
	_, err := p.FetchCarparks(context.Background())
	assert.Error(t, err)
}

func TestExtractHDBArea(t *testing.T) {
	tests := map[string]string{
		"BLK 270/271 ALBERT CENTRE BASEMENT CAR PARK": "ALBERT CENTRE",
		"BLOCK 253 ANG MO KIO STREET 21":              "ANG MO KIO",
		"BLK 98A ALJUNIED CRESCENT":                   "98A ALJUNIED",
		"blk 1 toa payoh lorong one extra":            "TOA PAYOH LORONG",
		"BLK 12 STREET 5":                             "HDB",
	}
	for address, expected := range tests {
		assert.Equal(t, expected, ExtractHDBArea(address), address)
	}
}
