// Package schema declares the fixed column contracts for trade-flow inputs
// and the header checks that guard them. Layouts are compiled in: trade files
// carry the six BACI columns in a fixed order, reference files are matched by
// column name after normalization.
package schema

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type Kind string

const (
	KindInt   Kind = "int"
	KindFloat Kind = "float"
	KindText  Kind = "text"
)

// Column describes one expected input column.
type Column struct {
	Name     string
	Kind     Kind
	Nullable bool
}

// Contract is the expected layout of one input file. Ordered contracts
// require the header to list exactly these columns in declared order;
// unordered contracts locate required columns by normalized name and
// ignore extras.
type Contract struct {
	Name    string
	Columns []Column
	Ordered bool
}

// Trade is the six-column trade-flow layout: year, exporter, importer,
// product code, value, quantity.
var Trade = Contract{
	Name:    "trade",
	Ordered: true,
	Columns: []Column{
		{Name: "t", Kind: KindInt},
		{Name: "i", Kind: KindInt},
		{Name: "j", Kind: KindInt},
		{Name: "k", Kind: KindText},
		{Name: "v", Kind: KindFloat, Nullable: true},
		{Name: "q", Kind: KindFloat, Nullable: true},
	},
}

// Country is the country reference layout. Only code and name are consumed;
// the ISO columns present in the published files are tolerated and ignored.
var Country = Contract{
	Name: "country",
	Columns: []Column{
		{Name: "country_code", Kind: KindInt},
		{Name: "country_name", Kind: KindText},
	},
}

// Product is the product reference layout.
var Product = Contract{
	Name: "product",
	Columns: []Column{
		{Name: "code", Kind: KindText},
		{Name: "description", Kind: KindText},
	},
}

// HeaderError reports a header that does not satisfy a contract. It is fatal:
// no artifact may be produced after one is returned.
type HeaderError struct {
	Contract string
	Missing  []string
	Got      []string
}

func (e *HeaderError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("schema: %s header missing columns %v (got %v)", e.Contract, e.Missing, e.Got)
	}
	return fmt.Sprintf("schema: %s header mismatch (got %v)", e.Contract, e.Got)
}

// Match resolves a raw header row against the contract and returns a
// column-name -> index map. Ordered contracts demand an exact sequence;
// unordered ones only require every declared column to be present somewhere.
func (c *Contract) Match(headers []string) (map[string]int, error) {
	names := make([]string, len(headers))
	for i, h := range headers {
		names[i] = NormalizeHeader(h)
	}

	if c.Ordered {
		if len(names) != len(c.Columns) {
			return nil, &HeaderError{Contract: c.Name, Got: names}
		}
		ix := make(map[string]int, len(c.Columns))
		for i, col := range c.Columns {
			if names[i] != col.Name {
				return nil, &HeaderError{Contract: c.Name, Got: names}
			}
			ix[col.Name] = i
		}
		return ix, nil
	}

	pos := make(map[string]int, len(names))
	for i, h := range names {
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}
	ix := make(map[string]int, len(c.Columns))
	var missing []string
	for _, col := range c.Columns {
		i, ok := pos[col.Name]
		if !ok {
			missing = append(missing, col.Name)
			continue
		}
		ix[col.Name] = i
	}
	if len(missing) > 0 {
		return nil, &HeaderError{Contract: c.Name, Missing: missing, Got: names}
	}
	return ix, nil
}

// NormalizeHeader converts arbitrary header text into a lowercase ASCII
// identifier:
//  1. lowercase
//  2. strip accents (NFD → remove Mn → NFC)
//  3. keep [a-z0-9_]; convert space/dash/dot to underscore; drop others
func NormalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	// Decompose → remove nonspacing marks (accents) → recompose.
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	ascii, _, _ := transform.String(t, s)

	var b strings.Builder
	prevUnderscore := false
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
			prevUnderscore = false
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			prevUnderscore = false
		case r == '_' || r == ' ' || r == '-' || r == '.':
			if !prevUnderscore {
				b.WriteRune('_')
				prevUnderscore = true
			}
		default:
			// drop anything else
		}
	}
	return strings.Trim(b.String(), "_")
}
