// Package trade holds the typed row models shared by every pipeline stage.
package trade

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Record is one parsed trade flow. Value and Quantity are nullable: the
// published files mark unknown amounts with "NA" (sometimes space padded),
// and those survive as nil rather than zero.
type Record struct {
	Year     int
	Exporter int
	Importer int
	Product  string
	Value    *float64
	Quantity *float64
	Line     int // 1-based source line; the header is line 1
}

// Enriched is a Record plus the reference names resolved for it. A nil name
// means the code had no match in the reference table; the raw code is still
// available on the embedded Record.
type Enriched struct {
	Record
	ExporterName *string
	ImporterName *string
	ProductName  *string
}

// Columns is the output column order for enriched datasets, shared by all
// sink implementations so artifacts agree across formats.
var Columns = []string{
	"t", "i", "j", "k", "v", "q",
	"exporter_name", "importer_name", "product_name",
}

// IsNA reports whether a raw field is the dataset's explicit null marker.
func IsNA(s string) bool {
	return strings.TrimSpace(s) == "NA"
}

// ParseRow coerces one six-field raw row into a Record. Year, exporter,
// importer and product are structural: any of them failing rejects the row.
// Value and quantity coerce softly to nil on NA, empty, or unparseable input.
func ParseRow(fields []string, line int) (Record, error) {
	if len(fields) != 6 {
		return Record{}, fmt.Errorf("line %d: want 6 fields, got %d", line, len(fields))
	}
	year, ok := toInt(fields[0])
	if !ok {
		return Record{}, fmt.Errorf("line %d: bad year %q", line, fields[0])
	}
	exp, ok := toInt(fields[1])
	if !ok {
		return Record{}, fmt.Errorf("line %d: bad exporter %q", line, fields[1])
	}
	imp, ok := toInt(fields[2])
	if !ok {
		return Record{}, fmt.Errorf("line %d: bad importer %q", line, fields[2])
	}
	product := strings.TrimSpace(fields[3])
	if product == "" {
		return Record{}, fmt.Errorf("line %d: empty product code", line)
	}
	return Record{
		Year:     year,
		Exporter: exp,
		Importer: imp,
		Product:  product,
		Value:    toNullableFloat(fields[4]),
		Quantity: toNullableFloat(fields[5]),
		Line:     line,
	}, nil
}

// toInt parses a whole number, tolerating surrounding whitespace and an
// integral float spelling ("2019.0").
func toInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return int(i), true
	}
	// Only consider float fallback if there is a dot; avoids extra work.
	if strings.IndexByte(s, '.') >= 0 {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
			return int(f), true
		}
	}
	return 0, false
}

// toNullableFloat coerces v/q style amounts. NA, empty, and garbage all map
// to nil; the caller decides whether to count them. Non-finite spellings
// ("NaN", "1e999") are garbage too, so aggregate sums stay finite.
func toNullableFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "NA" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
