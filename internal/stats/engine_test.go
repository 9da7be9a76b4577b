package stats

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/fire-data-etl/internal/domain"
)

func frp(v float64) *float64 { return &v }

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := domain.ParseDay(s)
	require.NoError(t, err)
	return d
}

func TestSummarize(t *testing.T) {
	t.Run("nearest rank", func(t *testing.T) {
		s := Summarize([]domain.FireFocus{{FRP: frp(20)}, {FRP: frp(0)}, {FRP: frp(10)}, {}})
		assert.Equal(t, 4, s.TotalCount)
		assert.Equal(t, 30.0, s.FRPSum)
		require.NotNil(t, s.FRPAvg)
		assert.Equal(t, 10.0, *s.FRPAvg)
		assert.Equal(t, 10.0, *s.FRPMedian)
		assert.Equal(t, 20.0, *s.FRPP90)
		assert.Equal(t, 20.0, *s.FRPMax)
	})

	t.Run("single value", func(t *testing.T) {
		s := Summarize([]domain.FireFocus{{FRP: frp(7)}})
		assert.Equal(t, 7.0, *s.FRPMedian)
		assert.Equal(t, 7.0, *s.FRPP90)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, Summary{}, Summarize(nil))
	})

	t.Run("no frp", func(t *testing.T) {
		s := Summarize([]domain.FireFocus{{}, {}})
		assert.Equal(t, 2, s.TotalCount)
		assert.Nil(t, s.FRPAvg)
		assert.Nil(t, s.FRPMax)
	})
}

func TestGroup(t *testing.T) {
	records := []domain.FireFocus{
		{Region: "PARÁ", Biome: "Amazônia", Municipality: "ALTAMIRA", FRP: frp(10)},
		{Region: "pará ", Biome: "amazônia", Municipality: "ALTAMIRA", FRP: frp(5)},
		{Region: "MT", Biome: "Cerrado", Municipality: "SORRISO", FRP: frp(40)},
		{Region: "", Biome: "", Municipality: ""},
		{Region: "ZZ", Municipality: "NOWHERE"},
	}

	t.Run("by region count", func(t *testing.T) {
		got := Group(records, ByRegion, 10, OrderByCount)
		want := []GroupStat{
			{Key: "PARÁ", Count: 2, FRPSum: 15, Share: 0.4},
			{Key: "MT", Count: 1, FRPSum: 40, Share: 0.2},
			{Key: "Unknown", Count: 1, FRPSum: 0, Share: 0.2},
			{Key: "ZZ", Count: 1, FRPSum: 0, Share: 0.2},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Group() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("by region frp", func(t *testing.T) {
		got := Group(records, ByRegion, 2, OrderByFRPSum)
		require.Len(t, got, 2)
		assert.Equal(t, "MT", got[0].Key)
		assert.Equal(t, "PARÁ", got[1].Key)
	})

	t.Run("by biome", func(t *testing.T) {
		got := Group(records, ByBiome, 1, OrderByCount)
		require.Len(t, got, 1)
		assert.Equal(t, "AMAZÔNIA", got[0].Key)
		assert.Equal(t, 2, got[0].Count)
	})

	t.Run("by municipality", func(t *testing.T) {
		got := Group(records, ByMunicipality, 10, OrderByCount)
		keys := make([]string, len(got))
		for i, g := range got {
			keys[i] = g.Key
		}
		assert.Equal(t, []string{"ALTAMIRA (PA)", "SORRISO (MT)", "NOWHERE", "Unknown"}, keys)
	})

	t.Run("empty and non-positive topN", func(t *testing.T) {
		assert.Empty(t, Group(nil, ByRegion, 5, OrderByCount))
		assert.Empty(t, Group(records, ByRegion, 0, OrderByCount))
		assert.Empty(t, Group(records, ByRegion, -1, OrderByCount))
	})

	t.Run("total order", func(t *testing.T) {
		tied := []domain.FireFocus{{Region: "b"}, {Region: "A"}, {Region: "c"}}
		got := Group(tied, ByRegion, 3, OrderByCount)
		assert.Equal(t, "A", got[0].Key)
		assert.Equal(t, "B", got[1].Key)
		assert.Equal(t, "C", got[2].Key)
	})
}

func TestTimeSeries(t *testing.T) {
	start := day(t, "2024-08-01")
	end := day(t, "2024-08-04")
	records := []domain.FireFocus{
		{Date: start.Add(3 * time.Hour), FRP: frp(2)},
		{Date: start, FRP: frp(3)},
		{Date: day(t, "2024-08-03")},
		{Date: day(t, "2024-08-05"), FRP: frp(100)},
		{},
	}

	got := TimeSeries(records, domain.UTC, start, end)
	require.Len(t, got, 4)
	assert.Equal(t, TimePoint{Date: start, Count: 2, FRPSum: 5}, got[0])
	assert.Equal(t, TimePoint{Date: day(t, "2024-08-02")}, got[1])
	assert.Equal(t, 1, got[2].Count)
	assert.Equal(t, 0, got[3].Count)

	assert.Len(t, TimeSeries(nil, domain.UTC, start, start), 1)
	assert.Empty(t, TimeSeries(records, domain.UTC, end, start))
}

func TestParseOrderBy(t *testing.T) {
	o, err := ParseOrderBy("FRP")
	require.NoError(t, err)
	assert.Equal(t, OrderByFRPSum, o)

	o, err = ParseOrderBy("")
	require.NoError(t, err)
	assert.Equal(t, OrderByCount, o)

	_, err = ParseOrderBy("share")
	assert.Error(t, err)
}
