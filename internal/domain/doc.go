// Package domain models INPE fire focus ("foco de queimada") detections.
//
// # Data Source
//
// Focus detections come from the INPE Queimadas program, which publishes one
// CSV file per UTC day for the whole of Brazil:
//
//	https://dataserver-coids.inpe.br/queimadas/queimadas/focos/csv/diario/Brasil/focos_diario_br_YYYYMMDD.csv
//
// The file for the current day keeps growing during the day. Older files are
// stable and are ingested once.
//
// # INPE Data Conventions
//
// Header names vary between file generations ("lat" vs "latitude", "municipio"
// vs "Município"). Headers are folded before lookup: trimmed, lowercased,
// diacritics removed and spaces replaced by underscores, so "Município" and
// "municipio" resolve to the same key. See [NormalizeKey].
//
// Decimal values may use a comma separator ("12,5"). They are cleaned to a
// dot before parsing. See [CleanDecimal].
//
// Sentinels:
//
//	-999 is used by INPE for unknown "numero_dias_sem_chuva" and "risco_fogo".
//	Negative day counts and negative FRP are treated as absent.
//
// Region values are either the full uppercase state name ("SÃO PAULO") or the
// two-letter UF code ("SP"). Both resolve through [StateFromCSV].
//
// # Validation
//
// Rows whose latitude or longitude column is missing, unparsable or outside
// [-90, 90] / [-180, 180] are dropped silently. Mapping never fails.
//
// # ID Generation
//
// The CSV "id" column is used when present. Rows without one get a random
// UUID, so re-ingesting an id-less file produces new records.
//
// # Day Keys
//
// Records are keyed by the UTC start of their source day. All calendar math
// goes through [Calendar], which is passed in explicitly.
package domain
