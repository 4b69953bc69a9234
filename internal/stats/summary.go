package stats

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
)

// WriteCSV renders the summary as metric rows: metric,key,value. Scalar
// metrics leave key empty; grouped metrics (per-year totals, top rankings)
// carry the group in key. Row order is fixed, and floats print in their
// shortest round-trippable form, so two identical summaries serialize to
// identical bytes.
func (s Summary) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	row := func(metric, key, value string) {
		// csv.Writer defers errors to Flush; checked once at the end.
		_ = cw.Write([]string{metric, key, value})
	}
	num := func(metric string, v int64) { row(metric, "", strconv.FormatInt(v, 10)) }
	fl := func(metric string, v float64) { row(metric, "", formatFloat(v)) }

	row("metric", "key", "value")
	num("rows_in", s.RowsIn)
	num("rows_out", s.RowsOut)
	num("rejected_rows", s.Rejected)
	num("sampled_out", s.SampledOut)

	num("value_count", s.Value.Count)
	num("value_nulls", s.Value.Nulls)
	fl("value_sum", s.Value.Sum)
	fl("value_mean", s.Value.Mean)
	fl("value_min", s.Value.Min)
	fl("value_max", s.Value.Max)

	num("quantity_count", s.Quantity.Count)
	num("quantity_nulls", s.Quantity.Nulls)
	fl("quantity_sum", s.Quantity.Sum)
	fl("quantity_mean", s.Quantity.Mean)
	fl("quantity_min", s.Quantity.Min)
	fl("quantity_max", s.Quantity.Max)

	num("year_min", int64(s.YearMin))
	num("year_max", int64(s.YearMax))

	num("unmatched_exporter", s.UnmatchedExporter)
	num("unmatched_importer", s.UnmatchedImporter)
	num("unmatched_product", s.UnmatchedProduct)

	num("unique_exporters", int64(s.UniqueExporters))
	num("unique_importers", int64(s.UniqueImporters))
	num("unique_products", int64(s.UniqueProducts))

	for _, kt := range s.ValueByYear {
		row("value_by_year", kt.Key, formatFloat(kt.Total))
	}
	for _, kt := range s.TopExporters {
		row("top_exporter_value", kt.Key, formatFloat(kt.Total))
	}
	for _, kt := range s.TopProducts {
		row("top_product_value", kt.Key, formatFloat(kt.Total))
	}

	cw.Flush()
	return cw.Error()
}

// formatFloat prints the shortest representation that parses back to the
// same float64. Undefined values (empty dataset) print as empty cells.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
