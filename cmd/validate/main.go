// Command validate checks a local INPE daily CSV file offline. It runs the
// same parse and mapping steps as ingestion and prints row counts, the
// detected coordinate columns, a summary and the top groups as JSON.
//
// Usage:
//
//	go run ./cmd/validate -file focos_diario_br_20240801.csv -top 5 -order frp
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/fire-data-etl/internal/adapter/inpe"
	"github.com/couchcryptid/fire-data-etl/internal/csvparse"
	"github.com/couchcryptid/fire-data-etl/internal/domain"
	"github.com/couchcryptid/fire-data-etl/internal/stats"
)

type report struct {
	File      string            `json:"file"`
	Columns   []string          `json:"columns"`
	LatColumn string            `json:"lat_column"`
	LonColumn string            `json:"lon_column"`
	Rows      int               `json:"rows"`
	Valid     int               `json:"valid"`
	Dropped   int               `json:"dropped"`
	Summary   stats.Summary     `json:"summary"`
	TopStates []stats.GroupStat `json:"top_states"`
	TopBiomes []stats.GroupStat `json:"top_biomes"`
	TopMunis  []stats.GroupStat `json:"top_municipalities"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", "", "path to an INPE daily CSV file")
	top := fs.Int("top", 5, "number of groups to list")
	order := fs.String("order", "count", "group ordering: count or frp")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *file == "" {
		fs.Usage()
		return 2
	}
	orderBy, err := stats.ParseOrderBy(*order)
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: %v\n", err)
		return 2
	}

	rep, err := validate(*file, max(*top, 1), orderBy)
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: %v\n", err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		fmt.Fprintf(stderr, "FATAL: encode report: %v\n", err)
		return 1
	}
	if rep.LatColumn == "" || rep.LonColumn == "" {
		fmt.Fprintln(stderr, "no latitude/longitude columns detected")
		return 1
	}
	return 0
}

func validate(path string, top int, orderBy stats.OrderBy) (report, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return report{}, err
	}
	text, err := inpe.Decode(body)
	if err != nil {
		return report{}, fmt.Errorf("decode %s: %w", path, err)
	}

	headers, rows := csvparse.Parse(text)
	if len(headers) == 0 {
		return report{}, errors.New("file has no header row")
	}
	latCol, lonCol := domain.DetectLatLonColumns(headers)
	records := domain.MapAll(headers, rows)

	return report{
		File:      path,
		Columns:   headers,
		LatColumn: latCol,
		LonColumn: lonCol,
		Rows:      len(rows),
		Valid:     len(records),
		Dropped:   len(rows) - len(records),
		Summary:   stats.Summarize(records),
		TopStates: stats.Group(records, stats.ByRegion, top, orderBy),
		TopBiomes: stats.Group(records, stats.ByBiome, top, orderBy),
		TopMunis:  stats.Group(records, stats.ByMunicipality, top, orderBy),
	}, nil
}
