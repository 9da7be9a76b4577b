package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = "id,lat,lon,data_hora_gmt,satelite,municipio,estado,bioma,frp\n" +
	"1,-10.5,-55.1,2024/08/01 13:00:00,AQUA_M-T,SINOP,MATO GROSSO,Amazônia,12.5\n" +
	"2,-10.6,-55.2,2024/08/01 13:00:00,AQUA_M-T,SINOP,MATO GROSSO,Amazônia,7.5\n" +
	"3,-15.7,-47.9,2024/08/01 13:00:00,NOAA-20,BRASÍLIA,DISTRITO FEDERAL,Cerrado,\n" +
	"4,abc,-47.9,2024/08/01 13:00:00,NOAA-20,BRASÍLIA,DISTRITO FEDERAL,Cerrado,3\n"

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "focos.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRun(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-file", writeTemp(t, sampleCSV), "-top", "1"}, &stdout, &stderr)

	require.Equal(t, 0, code, stderr.String())

	var rep report
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rep))
	assert.Equal(t, "lat", rep.LatColumn)
	assert.Equal(t, "lon", rep.LonColumn)
	assert.Equal(t, 4, rep.Rows)
	assert.Equal(t, 3, rep.Valid)
	assert.Equal(t, 1, rep.Dropped)
	assert.Equal(t, 3, rep.Summary.TotalCount)
	require.Len(t, rep.TopStates, 1)
	assert.Equal(t, 2, rep.TopStates[0].Count)
	require.Len(t, rep.TopBiomes, 1)
	assert.Equal(t, 2, rep.TopBiomes[0].Count)
}

func TestRun_NoCoordinateColumns(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-file", writeTemp(t, "a,b\n1,2\n")}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "no latitude/longitude")
}

func TestRun_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"missing file flag", nil, 2},
		{"bad order", []string{"-file", "x.csv", "-order", "name"}, 2},
		{"missing file", []string{"-file", filepath.Join(os.TempDir(), "does-not-exist.csv")}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, tt.want, run(tt.args, &stdout, &stderr))
		})
	}
}
