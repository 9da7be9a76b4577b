package domain

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeKey folds a header name: trim, lowercase, strip diacritics and
// replace spaces with underscores. "Município " becomes "municipio".
func NormalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range norm.NFD.String(key) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if r == ' ' {
			r = '_'
		}
		b.WriteRune(r)
	}
	return norm.NFC.String(b.String())
}

// NormalizeKeys rekeys a row by [NormalizeKey]. Keys are visited in sorted
// order so colliding keys resolve the same way on every call (last wins).
func NormalizeKeys(row map[string]string) map[string]string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]string, len(row))
	for _, k := range keys {
		out[NormalizeKey(k)] = row[k]
	}
	return out
}

// Lookup returns the first candidate with a non-blank value. Each candidate is
// tried against the normalized row and then the raw row.
func Lookup(raw, normalized map[string]string, candidates ...string) (string, bool) {
	for _, c := range candidates {
		if v, ok := normalized[NormalizeKey(c)]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
		if v, ok := raw[c]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// CleanDecimal trims the value and turns a decimal comma into a dot.
// Blank input yields ok=false.
func CleanDecimal(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return strings.ReplaceAll(value, ",", "."), true
}

// ParseDecimal parses a cleaned decimal. NaN and infinities are rejected.
func ParseDecimal(value string) (float64, bool) {
	cleaned, ok := CleanDecimal(value)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
