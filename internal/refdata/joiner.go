package refdata

import "tradeflow/internal/trade"

// Joiner enriches trade records with reference names. It holds only the two
// immutable tables, so one Joiner is shared by every worker; per-call results
// carry their own counts and no state accumulates on the instance.
type Joiner struct {
	countries *Countries
	products  *Products
}

// JoinStats are the per-call join counts. They satisfy, per reference
// column: matched + unmatched = Rows.
type JoinStats struct {
	Rows              int
	UnmatchedExporter int
	UnmatchedImporter int
	UnmatchedProduct  int
}

// Add folds other into s. Used when a caller joins one logical dataset in
// several calls.
func (s *JoinStats) Add(other JoinStats) {
	s.Rows += other.Rows
	s.UnmatchedExporter += other.UnmatchedExporter
	s.UnmatchedImporter += other.UnmatchedImporter
	s.UnmatchedProduct += other.UnmatchedProduct
}

// NewJoiner builds a Joiner over loaded tables.
func NewJoiner(countries *Countries, products *Products) *Joiner {
	return &Joiner{countries: countries, products: products}
}

// Join performs a left join: every input row is returned exactly once, with
// nil names where a code has no reference entry. The raw codes always
// survive on the embedded record.
func (j *Joiner) Join(rows []trade.Record) ([]trade.Enriched, JoinStats) {
	out := make([]trade.Enriched, len(rows))
	stats := JoinStats{Rows: len(rows)}
	for i, r := range rows {
		e := trade.Enriched{Record: r}
		if e.ExporterName = j.countries.Name(r.Exporter); e.ExporterName == nil {
			stats.UnmatchedExporter++
		}
		if e.ImporterName = j.countries.Name(r.Importer); e.ImporterName == nil {
			stats.UnmatchedImporter++
		}
		if e.ProductName = j.products.Name(r.Product); e.ProductName == nil {
			stats.UnmatchedProduct++
		}
		out[i] = e
	}
	return out, stats
}
