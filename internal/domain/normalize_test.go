package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	tests := map[string]string{
		"Município":             "municipio",
		"  Satélite ":           "satelite",
		"Numero Dias Sem Chuva": "numero_dias_sem_chuva",
		"FRP":                   "frp",
		"risco_fogo":            "risco_fogo",
		"":                      "",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, NormalizeKey(in))
		})
	}
}

func TestNormalizeKeys(t *testing.T) {
	t.Run("folds keys", func(t *testing.T) {
		got := NormalizeKeys(map[string]string{"Município": "X", "lat": "1"})
		assert.Equal(t, map[string]string{"municipio": "X", "lat": "1"}, got)
	})

	t.Run("collisions resolve deterministically", func(t *testing.T) {
		row := map[string]string{"Estado": "first", "estado": "second"}
		for range 20 {
			assert.Equal(t, "second", NormalizeKeys(row)["estado"])
		}
	})
}

func TestLookup(t *testing.T) {
	raw := map[string]string{"Satélite": "  ", "satellite": "NOAA-20", "UF": "SP"}
	normalized := NormalizeKeys(raw)

	v, ok := Lookup(raw, normalized, "satelite", "satellite")
	assert.True(t, ok)
	assert.Equal(t, "NOAA-20", v)

	v, ok = Lookup(raw, normalized, "estado", "uf")
	assert.True(t, ok)
	assert.Equal(t, "SP", v)

	_, ok = Lookup(raw, normalized, "bioma")
	assert.False(t, ok)
}

func TestCleanDecimal(t *testing.T) {
	v, ok := CleanDecimal(" 12,5 ")
	assert.True(t, ok)
	assert.Equal(t, "12.5", v)

	_, ok = CleanDecimal("   ")
	assert.False(t, ok)
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"-10,25", -10.25, true},
		{"3", 3, true},
		{" 1.5 ", 1.5, true},
		{"", 0, false},
		{"abc", 0, false},
		{"1.234,5", 0, false},
		{"Inf", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDecimal(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
