package domain

import "strings"

// State is a Brazilian federative unit.
type State struct {
	Name string `json:"name"`
	UF   string `json:"uf"`
}

// States lists the 27 federative units as INPE spells them.
var States = []State{
	{"ACRE", "AC"},
	{"ALAGOAS", "AL"},
	{"AMAPÁ", "AP"},
	{"AMAZONAS", "AM"},
	{"BAHIA", "BA"},
	{"CEARÁ", "CE"},
	{"DISTRITO FEDERAL", "DF"},
	{"ESPÍRITO SANTO", "ES"},
	{"GOIÁS", "GO"},
	{"MARANHÃO", "MA"},
	{"MATO GROSSO", "MT"},
	{"MATO GROSSO DO SUL", "MS"},
	{"MINAS GERAIS", "MG"},
	{"PARÁ", "PA"},
	{"PARAÍBA", "PB"},
	{"PARANÁ", "PR"},
	{"PERNAMBUCO", "PE"},
	{"PIAUÍ", "PI"},
	{"RIO DE JANEIRO", "RJ"},
	{"RIO GRANDE DO NORTE", "RN"},
	{"RIO GRANDE DO SUL", "RS"},
	{"RONDÔNIA", "RO"},
	{"RORAIMA", "RR"},
	{"SANTA CATARINA", "SC"},
	{"SÃO PAULO", "SP"},
	{"SERGIPE", "SE"},
	{"TOCANTINS", "TO"},
}

// NormalizeRegion trims and uppercases a region value.
func NormalizeRegion(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

// StateFromCSV resolves a region value by full name or UF code.
func StateFromCSV(value string) (State, bool) {
	v := NormalizeRegion(value)
	if v == "" {
		return State{}, false
	}
	for _, s := range States {
		if s.Name == v || s.UF == v {
			return s, true
		}
	}
	return State{}, false
}

// Biome is one of the six Brazilian biomes.
type Biome string

const (
	BiomeAmazonia      Biome = "Amazônia"
	BiomeCerrado       Biome = "Cerrado"
	BiomeCaatinga      Biome = "Caatinga"
	BiomeMataAtlantica Biome = "Mata Atlântica"
	BiomePampa         Biome = "Pampa"
	BiomePantanal      Biome = "Pantanal"
)

// Biomes lists every known biome.
var Biomes = []Biome{
	BiomeAmazonia, BiomeCerrado, BiomeCaatinga,
	BiomeMataAtlantica, BiomePampa, BiomePantanal,
}

// Matches compares a raw CSV value against the biome, ignoring case and
// surrounding whitespace.
func (b Biome) Matches(value string) bool {
	return NormalizeRegion(value) == strings.ToUpper(string(b))
}

// ParseBiome resolves a biome name. Accents are optional ("amazonia" works).
func ParseBiome(value string) (Biome, bool) {
	for _, b := range Biomes {
		if b.Matches(value) || NormalizeKey(value) == NormalizeKey(string(b)) {
			return b, true
		}
	}
	return "", false
}

// Filter keeps records matching both the state and the biome. Nil filters
// match everything; order is preserved.
func Filter(records []FireFocus, state *State, biome *Biome) []FireFocus {
	if state == nil && biome == nil {
		return records
	}
	out := make([]FireFocus, 0, len(records))
	for _, r := range records {
		if state != nil {
			s, ok := StateFromCSV(r.Region)
			if !ok || s.UF != state.UF {
				continue
			}
		}
		if biome != nil && !biome.Matches(r.Biome) {
			continue
		}
		out = append(out, r)
	}
	return out
}
