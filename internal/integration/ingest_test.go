package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/fire-data-etl/internal/adapter/cache"
	"github.com/couchcryptid/fire-data-etl/internal/adapter/inpe"
	"github.com/couchcryptid/fire-data-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/fire-data-etl/internal/domain"
	"github.com/couchcryptid/fire-data-etl/internal/grid"
	"github.com/couchcryptid/fire-data-etl/internal/mapquery"
	"github.com/couchcryptid/fire-data-etl/internal/observability"
	"github.com/couchcryptid/fire-data-etl/internal/pipeline"
)

// latin1CSV is an INPE-style file encoded in ISO-8859-1 ("Município", "PARÁ").
var latin1CSV = []byte("id,lat,lon,satelite,Munic\xedpio,estado,bioma,frp\n" +
	"a,-9.99,-49.99,AQUA_M-T,ALTAMIRA,PAR\xc1,Amaz\xf4nia,\"12,5\"\n" +
	"b,-9.995,-49.995,NOAA-20,ALTAMIRA,PAR\xc1,Amaz\xf4nia,3\n" +
	"c,95,-49,NOAA-20,X,PA,,1\n" +
	"d,-20,-45,NOAA-21,BELO HORIZONTE,MG,Cerrado,\n")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestIngestIntoSQLite covers the full read path: remote download with
// Latin-1 fallback, parsing, mapping, SQLite persistence and map queries.
func TestIngestIntoSQLite(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/focos_diario_br_20240801.csv" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(latin1CSV)
	}))
	t.Cleanup(srv.Close)

	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "focos.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	metrics := observability.NewMetricsForTesting()
	orch := pipeline.New(
		inpe.NewClient(srv.URL, 5*time.Second, metrics, discardLogger()),
		store,
		discardLogger(),
		metrics,
		pipeline.WithCache(cache.New(8, metrics)),
		pipeline.WithCommitBatchSize(2),
	)

	got, err := orch.GetFocuses(ctx, []time.Time{day})
	require.NoError(t, err)
	require.Len(t, got[day], 3)
	first := got[day][0]
	assert.Equal(t, "ALTAMIRA", first.Municipality)
	assert.Equal(t, "PARÁ", first.Region)
	assert.Equal(t, "Amazônia", first.Biome)
	require.NotNil(t, first.FRP)
	assert.Equal(t, 12.5, *first.FRP)

	// ingesting the same file again does not duplicate
	res, err := orch.StoreFocuses(ctx, got[day], day)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted)
	assert.Equal(t, 3, res.Skipped)

	svc := mapquery.NewService(store, metrics, discardLogger())
	vp := grid.ViewportFromBounds(-12, -8, -52, -48)

	pins, err := svc.Pins(ctx, vp, 6, []time.Time{day}, 1)
	require.NoError(t, err)
	require.Len(t, pins, 1)
	assert.Equal(t, "a", pins[0].ID)

	cells, err := svc.Heatmap(ctx, vp, 6, []time.Time{day})
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, 2, cells[0].Count)

	_, err = orch.GetFocuses(ctx, []time.Time{day.AddDate(0, 0, 1)})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, int32(2), hits.Load())
}
