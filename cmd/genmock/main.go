// Command genmock writes synthetic INPE daily fire focus files for local
// development and demos. Each day gets a focos_diario_br_YYYYMMDD.csv file in
// the national layout; serve the output directory over HTTP and point
// SOURCE_BASE_URL at it. With -json-out it also runs the files through the
// real parse and mapping steps and writes the mapped records as a fixture.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock \
//	  -start 2024-08-01 -days 7 -rows 500 \
//	  -json-out data/mock/focuses.json
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/charmap"

	"github.com/couchcryptid/fire-data-etl/internal/adapter/inpe"
	"github.com/couchcryptid/fire-data-etl/internal/csvparse"
	"github.com/couchcryptid/fire-data-etl/internal/domain"
)

var header = []string{
	"id", "lat", "lon", "data_hora_gmt", "satelite", "municipio", "estado", "pais",
	"numero_dias_sem_chuva", "precipitacao", "risco_fogo", "bioma", "frp",
}

var satellites = []string{"AQUA_M-T", "TERRA_M-T", "NOAA-20", "NPP-375", "GOES-16"}

// hotspot is an area where synthetic detections cluster.
type hotspot struct {
	municipality string
	state        string
	biome        domain.Biome
	lat, lon     float64
}

var hotspots = []hotspot{
	{"SÃO FÉLIX DO XINGU", "PARÁ", domain.BiomeAmazonia, -6.64, -51.99},
	{"ALTAMIRA", "PARÁ", domain.BiomeAmazonia, -3.20, -52.21},
	{"LÁBREA", "AMAZONAS", domain.BiomeAmazonia, -7.26, -64.80},
	{"PORTO VELHO", "RONDÔNIA", domain.BiomeAmazonia, -8.76, -63.90},
	{"COLNIZA", "MATO GROSSO", domain.BiomeAmazonia, -9.46, -59.23},
	{"SINOP", "MATO GROSSO", domain.BiomeAmazonia, -11.86, -55.50},
	{"FORMOSA DO RIO PRETO", "BAHIA", domain.BiomeCerrado, -11.05, -45.19},
	{"BALSAS", "MARANHÃO", domain.BiomeCerrado, -7.53, -46.04},
	{"PALMAS", "TOCANTINS", domain.BiomeCerrado, -10.18, -48.33},
	{"CORUMBÁ", "MATO GROSSO DO SUL", domain.BiomePantanal, -19.01, -57.65},
	{"POCONÉ", "MATO GROSSO", domain.BiomePantanal, -16.26, -56.62},
	{"PETROLINA", "PERNAMBUCO", domain.BiomeCaatinga, -9.39, -40.50},
	{"URUGUAIANA", "RIO GRANDE DO SUL", domain.BiomePampa, -29.75, -57.09},
	{"ILHÉUS", "BAHIA", domain.BiomeMataAtlantica, -14.79, -39.05},
}

type options struct {
	out          string
	jsonOut      string
	start        time.Time
	days         int
	rows         int
	seed         uint64
	latin1       bool
	decimalComma bool
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory for the daily CSV files")
	jsonOut := flag.String("json-out", "", "optional path for the mapped records fixture")
	start := flag.String("start", "", "first day, YYYY-MM-DD")
	days := flag.Int("days", 7, "number of days to generate")
	rows := flag.Int("rows", 500, "rows per day")
	seed := flag.Uint64("seed", 1, "random seed")
	latin1 := flag.Bool("latin1", false, "encode files as ISO-8859-1 instead of UTF-8")
	decimalComma := flag.Bool("decimal-comma", false, "write decimals with a comma separator")
	flag.Parse()

	if *out == "" || *start == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -out, -start")
	}
	first, err := domain.ParseDay(*start)
	if err != nil {
		return fmt.Errorf("invalid -start %q: %w", *start, err)
	}
	if *days < 1 || *rows < 0 {
		return fmt.Errorf("-days must be positive and -rows non-negative")
	}

	opts := options{
		out:          *out,
		jsonOut:      *jsonOut,
		start:        first,
		days:         *days,
		rows:         *rows,
		seed:         *seed,
		latin1:       *latin1,
		decimalComma: *decimalComma,
	}
	return generate(opts)
}

func generate(opts options) error {
	if err := os.MkdirAll(opts.out, 0o755); err != nil {
		return err
	}
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))

	fixture := make(map[string][]domain.FireFocus, opts.days)
	for _, day := range domain.UTC.DatesBetween(opts.start, domain.UTC.AddDays(opts.start, opts.days-1)) {
		text, err := dayCSV(rng, day, opts.rows, opts.decimalComma)
		if err != nil {
			return fmt.Errorf("generate %s: %w", domain.FormatDay(day), err)
		}

		data := []byte(text)
		if opts.latin1 {
			if data, err = charmap.ISO8859_1.NewEncoder().Bytes(data); err != nil {
				return fmt.Errorf("encode %s: %w", domain.FormatDay(day), err)
			}
		}
		path := filepath.Join(opts.out, inpe.FileName(day))
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return err
		}

		headers, parsed := csvparse.Parse(text)
		mapped := domain.MapAll(headers, parsed)
		for i := range mapped {
			mapped[i] = mapped[i].WithDate(day)
		}
		fixture[domain.FormatDay(day)] = mapped
		log.Printf("%s: %d rows, %d valid", path, len(parsed), len(mapped))
	}

	if opts.jsonOut == "" {
		return nil
	}
	if err := writeJSON(opts.jsonOut, fixture); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote fixture: %s", opts.jsonOut)
	return nil
}

func dayCSV(rng *rand.Rand, day time.Time, rows int, decimalComma bool) (string, error) {
	num := func(v float64, prec int) string {
		s := strconv.FormatFloat(v, 'f', prec, 64)
		if decimalComma {
			s = strings.Replace(s, ".", ",", 1)
		}
		return s
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write(header); err != nil {
		return "", err
	}
	for i := range rows {
		h := hotspots[rng.IntN(len(hotspots))]
		detected := day.Add(time.Duration(rng.IntN(24*60)) * time.Minute)

		daysNoRain := strconv.Itoa(rng.IntN(60))
		frp := num(rng.ExpFloat64()*25, 1)
		if rng.IntN(20) == 0 {
			daysNoRain = "-999"
		}
		if rng.IntN(10) == 0 {
			frp = ""
		}

		record := []string{
			uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "%s/%d", domain.FormatDay(day), i)).String(),
			num(h.lat+rng.NormFloat64()*0.4, 5),
			num(h.lon+rng.NormFloat64()*0.4, 5),
			detected.Format("2006/01/02 15:04:05"),
			satellites[rng.IntN(len(satellites))],
			h.municipality,
			h.state,
			"Brasil",
			daysNoRain,
			num(rng.Float64()*2, 1),
			num(rng.Float64(), 2),
			string(h.biome),
			frp,
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	return sb.String(), w.Error()
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
