// Package stats accumulates dataset statistics over enriched trade rows.
// Accumulators are mergeable, and every operation is associative and
// commutative, so chunk-level partials can be folded in whatever order chunks
// happen to complete: the finalized numbers are bit-identical for any chunk
// size, worker count, or completion order.
package stats

import (
	"math"
	"sort"
	"strconv"

	"tradeflow/internal/bitmap"
	"tradeflow/internal/trade"
)

// TopN is how many exporters/products the finalized summary ranks by value.
const TopN = 10

// Stats is a partial accumulator. Use New, feed rows with AddRow (and note
// pre-sampling counts with AddSeen), then either Merge into another Stats or
// Finalize into a Summary.
type Stats struct {
	rowsSeen   int64 // post-reject, pre-sample
	rowsOut    int64 // rows that reached the output
	sampledOut int64 // rowsSeen - rowsOut

	value    fieldAgg
	quantity fieldAgg

	yearSeen bool
	yearMin  int
	yearMax  int

	unmatchedExporter int64
	unmatchedImporter int64
	unmatchedProduct  int64

	exporters *bitmap.Bitmap
	importers *bitmap.Bitmap
	products  map[string]struct{}

	valueByYear     map[int]*ExactSum
	valueByExporter map[string]*ExactSum
	valueByProduct  map[string]*ExactSum
}

// fieldAgg accumulates one nullable numeric column.
type fieldAgg struct {
	sum   ExactSum
	count int64
	nulls int64
	min   float64
	max   float64
}

func (f *fieldAgg) add(v *float64) {
	if v == nil {
		f.nulls++
		return
	}
	x := *v
	if f.count == 0 || x < f.min {
		f.min = x
	}
	if f.count == 0 || x > f.max {
		f.max = x
	}
	f.count++
	f.sum.Add(x)
}

func (f *fieldAgg) merge(o *fieldAgg) {
	if o.count > 0 {
		if f.count == 0 || o.min < f.min {
			f.min = o.min
		}
		if f.count == 0 || o.max > f.max {
			f.max = o.max
		}
	}
	f.count += o.count
	f.nulls += o.nulls
	f.sum.Merge(&o.sum)
}

// New returns an empty accumulator.
func New() *Stats {
	return &Stats{
		// Country codes are three-digit ISO numerics; products are string
		// codes and stay in a hash set.
		exporters:       bitmap.New(999),
		importers:       bitmap.New(999),
		products:        make(map[string]struct{}),
		valueByYear:     make(map[int]*ExactSum),
		valueByExporter: make(map[string]*ExactSum),
		valueByProduct:  make(map[string]*ExactSum),
	}
}

// AddSeen notes n rows that were read for this partition before sampling.
// Rows later fed to AddRow count toward the output; the difference is the
// sampled-away count.
func (s *Stats) AddSeen(n int) {
	s.rowsSeen += int64(n)
	s.sampledOut += int64(n)
}

// AddRow folds one output row into the accumulator.
func (s *Stats) AddRow(e trade.Enriched) {
	s.rowsOut++
	s.sampledOut--

	s.value.add(e.Value)
	s.quantity.add(e.Quantity)

	if !s.yearSeen || e.Year < s.yearMin {
		s.yearMin = e.Year
	}
	if !s.yearSeen || e.Year > s.yearMax {
		s.yearMax = e.Year
	}
	s.yearSeen = true

	if e.ExporterName == nil {
		s.unmatchedExporter++
	}
	if e.ImporterName == nil {
		s.unmatchedImporter++
	}
	if e.ProductName == nil {
		s.unmatchedProduct++
	}

	s.exporters.Add(e.Exporter)
	s.importers.Add(e.Importer)
	s.products[e.Product] = struct{}{}

	if e.Value != nil {
		v := *e.Value
		yearSum(s.valueByYear, e.Year).Add(v)
		keySum(s.valueByExporter, groupKey(e.ExporterName, e.Exporter)).Add(v)
		keySum(s.valueByProduct, groupKeyStr(e.ProductName, e.Product)).Add(v)
	}
}

func yearSum(m map[int]*ExactSum, k int) *ExactSum {
	es := m[k]
	if es == nil {
		es = &ExactSum{}
		m[k] = es
	}
	return es
}

func keySum(m map[string]*ExactSum, k string) *ExactSum {
	es := m[k]
	if es == nil {
		es = &ExactSum{}
		m[k] = es
	}
	return es
}

// groupKey labels a per-country group by its display name, falling back to
// the raw code for unmatched rows so their value is still attributed.
func groupKey(name *string, code int) string {
	if name != nil {
		return *name
	}
	return "code " + strconv.Itoa(code)
}

func groupKeyStr(name *string, code string) string {
	if name != nil {
		return *name
	}
	return "code " + code
}

// Merge folds other into s. other must not be used afterwards for AddRow;
// merging is destructive only for s.
func (s *Stats) Merge(other *Stats) {
	s.rowsSeen += other.rowsSeen
	s.rowsOut += other.rowsOut
	s.sampledOut += other.sampledOut

	s.value.merge(&other.value)
	s.quantity.merge(&other.quantity)

	if other.yearSeen {
		if !s.yearSeen || other.yearMin < s.yearMin {
			s.yearMin = other.yearMin
		}
		if !s.yearSeen || other.yearMax > s.yearMax {
			s.yearMax = other.yearMax
		}
		s.yearSeen = true
	}

	s.unmatchedExporter += other.unmatchedExporter
	s.unmatchedImporter += other.unmatchedImporter
	s.unmatchedProduct += other.unmatchedProduct

	s.exporters.Union(other.exporters)
	s.importers.Union(other.importers)
	for k := range other.products {
		s.products[k] = struct{}{}
	}
	for k, es := range other.valueByYear {
		yearSum(s.valueByYear, k).Merge(es)
	}
	for k, es := range other.valueByExporter {
		keySum(s.valueByExporter, k).Merge(es)
	}
	for k, es := range other.valueByProduct {
		keySum(s.valueByProduct, k).Merge(es)
	}
}

// FieldSummary is the finalized view of one numeric column. Mean is computed
// once here, never averaged across partials.
type FieldSummary struct {
	Count int64
	Nulls int64
	Sum   float64
	Mean  float64
	Min   float64
	Max   float64
}

// KeyTotal is one group's exact value total.
type KeyTotal struct {
	Key   string
	Total float64
}

// Summary is the finalized, order-independent statistics record for a run.
type Summary struct {
	RowsIn     int64 // parsed rows entering the pipeline (post-reject)
	RowsOut    int64 // rows written to the dataset artifact
	Rejected   int64 // malformed rows dropped by the reader
	SampledOut int64 // rows removed by sampling

	Value    FieldSummary
	Quantity FieldSummary

	YearMin int
	YearMax int

	UnmatchedExporter int64
	UnmatchedImporter int64
	UnmatchedProduct  int64

	UniqueExporters int
	UniqueImporters int
	UniqueProducts  int

	ValueByYear  []KeyTotal // ascending year
	TopExporters []KeyTotal // TopN by total, descending
	TopProducts  []KeyTotal
}

// Finalize computes the summary. rejected is the reader-level malformed-row
// count, which accumulates outside the parallel region.
func (s *Stats) Finalize(rejected int64) Summary {
	sum := Summary{
		RowsIn:            s.rowsSeen,
		RowsOut:           s.rowsOut,
		Rejected:          rejected,
		SampledOut:        s.sampledOut,
		Value:             finalizeField(&s.value),
		Quantity:          finalizeField(&s.quantity),
		YearMin:           s.yearMin,
		YearMax:           s.yearMax,
		UnmatchedExporter: s.unmatchedExporter,
		UnmatchedImporter: s.unmatchedImporter,
		UnmatchedProduct:  s.unmatchedProduct,
		UniqueExporters:   s.exporters.Count(),
		UniqueImporters:   s.importers.Count(),
		UniqueProducts:    len(s.products),
	}

	years := make([]int, 0, len(s.valueByYear))
	for y := range s.valueByYear {
		years = append(years, y)
	}
	sort.Ints(years)
	for _, y := range years {
		sum.ValueByYear = append(sum.ValueByYear, KeyTotal{Key: strconv.Itoa(y), Total: s.valueByYear[y].Value()})
	}

	sum.TopExporters = topTotals(s.valueByExporter, TopN)
	sum.TopProducts = topTotals(s.valueByProduct, TopN)
	return sum
}

func finalizeField(f *fieldAgg) FieldSummary {
	out := FieldSummary{
		Count: f.count,
		Nulls: f.nulls,
		Sum:   f.sum.Value(),
	}
	if f.count > 0 {
		out.Mean = out.Sum / float64(f.count)
		out.Min = f.min
		out.Max = f.max
	} else {
		out.Min = math.NaN()
		out.Max = math.NaN()
		out.Mean = math.NaN()
	}
	return out
}

// topTotals ranks groups by total descending; ties break on key ascending so
// the ranking is deterministic.
func topTotals(m map[string]*ExactSum, n int) []KeyTotal {
	all := make([]KeyTotal, 0, len(m))
	for k, es := range m {
		all = append(all, KeyTotal{Key: k, Total: es.Value()})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Total != all[j].Total {
			return all[i].Total > all[j].Total
		}
		return all[i].Key < all[j].Key
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}
