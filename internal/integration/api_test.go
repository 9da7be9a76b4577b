package integration_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/fire-data-etl/internal/adapter/http"
	"github.com/couchcryptid/fire-data-etl/internal/adapter/inpe"
	"github.com/couchcryptid/fire-data-etl/internal/adapter/memory"
	"github.com/couchcryptid/fire-data-etl/internal/mapquery"
	"github.com/couchcryptid/fire-data-etl/internal/observability"
	"github.com/couchcryptid/fire-data-etl/internal/pipeline"
	"github.com/couchcryptid/fire-data-etl/internal/stats"
)

// TestAPIServesRemoteDays drives the HTTP API over the real orchestrator,
// map and stats services with an in-memory store.
func TestAPIServesRemoteDays(t *testing.T) {
	files := map[string][]byte{
		"/focos_diario_br_20240801.csv": latin1CSV,
		"/focos_diario_br_20240731.csv": []byte("id,lat,lon,satelite,municipio,estado,bioma,frp\n" +
			"e,-10.5,-50.5,AQUA_M-T,ALTAMIRA,PA,Cerrado,4\n" +
			"f,-11.5,-49.5,NOAA-20,ALTAMIRA,PA,Cerrado,6\n"),
	}
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(remote.Close)

	metrics := observability.NewMetricsForTesting()
	store := memory.New()
	orch := pipeline.New(inpe.NewClient(remote.URL, 5*time.Second, metrics, discardLogger()), store, discardLogger(), metrics)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 8, 1, 18, 0, 0, 0, time.UTC))

	api := httpadapter.NewServer(":0", httpadapter.Services{
		Focuses: orch,
		Map:     mapquery.NewService(store, metrics, discardLogger()),
		Stats:   stats.NewService(orch, clock, discardLogger()),
	}, orch, discardLogger())

	get := func(t *testing.T, target string) *httptest.ResponseRecorder {
		t.Helper()
		rec := httptest.NewRecorder()
		api.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	t.Run("pins load the day first", func(t *testing.T) {
		rec := get(t, "/api/v1/map/pins?minLat=-12&maxLat=-8&minLon=-52&maxLon=-48&date=2024-08-01&limit=1")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var body struct {
			Mode string `json:"mode"`
			Pins []struct {
				ID string `json:"id"`
			} `json:"pins"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "pins", body.Mode)
		require.Len(t, body.Pins, 1)
		assert.Equal(t, "a", body.Pins[0].ID)
	})

	t.Run("stats for a single day", func(t *testing.T) {
		rec := get(t, "/api/v1/stats?start=2024-08-01&end=2024-08-01&top=1")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var report stats.Report
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
		assert.Equal(t, 3, report.Summary.TotalCount)
		require.Len(t, report.ByBiome, 1)
		assert.Equal(t, 2, report.ByBiome[0].Count)
	})

	t.Run("unpublished day is not found", func(t *testing.T) {
		rec := get(t, "/api/v1/focuses?date=2024-08-02")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("published days load around an unpublished one", func(t *testing.T) {
		rec := get(t, "/api/v1/map/pins?minLat=-12&maxLat=-8&minLon=-52&maxLon=-48&date=2024-08-02,2024-08-01,2024-07-31")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var body struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 4, body.Count)

		stored, err := store.QueryByDayKeys(context.Background(), []time.Time{time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC)})
		require.NoError(t, err)
		assert.Len(t, stored, 2)
	})

	t.Run("purge then reload", func(t *testing.T) {
		rec := httptest.NewRecorder()
		api.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/focuses?date=2024-08-01", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var purged struct {
			Deleted int `json:"deleted"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &purged))
		assert.Equal(t, 3, purged.Deleted)

		rec = get(t, "/api/v1/focuses?date=2024-08-01")
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 3, body.Count)
	})
}
