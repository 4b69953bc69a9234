// Package arrowrec builds Arrow record batches from enriched trade rows.
// The Parquet and Feather sinks share this one schema, so the compressed and
// uncompressed columnar artifacts stay column-for-column interchangeable.
package arrowrec

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"tradeflow/internal/trade"
)

// Schema is the columnar layout of an enriched trade artifact. Code columns
// are 32-bit; years and UN numeric country codes sit far below that limit.
// Null markers survive only on the columns that can actually be null.
var Schema = arrow.NewSchema([]arrow.Field{
	{Name: "t", Type: arrow.PrimitiveTypes.Int32},
	{Name: "i", Type: arrow.PrimitiveTypes.Int32},
	{Name: "j", Type: arrow.PrimitiveTypes.Int32},
	{Name: "k", Type: arrow.BinaryTypes.String},
	{Name: "v", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "q", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "exporter_name", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "importer_name", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "product_name", Type: arrow.BinaryTypes.String, Nullable: true},
}, nil)

// NewBuilder returns a reusable record builder for Schema. Callers own the
// builder and must Release it.
func NewBuilder(mem memory.Allocator) *array.RecordBuilder {
	return array.NewRecordBuilder(mem, Schema)
}

// Append adds rows to b in order. Call b.NewRecord() afterwards to snapshot
// them into an immutable batch; the builder is then empty and reusable.
func Append(b *array.RecordBuilder, rows []trade.Enriched) {
	yb := b.Field(0).(*array.Int32Builder)
	eb := b.Field(1).(*array.Int32Builder)
	ib := b.Field(2).(*array.Int32Builder)
	kb := b.Field(3).(*array.StringBuilder)
	vb := b.Field(4).(*array.Float64Builder)
	qb := b.Field(5).(*array.Float64Builder)
	enb := b.Field(6).(*array.StringBuilder)
	inb := b.Field(7).(*array.StringBuilder)
	pnb := b.Field(8).(*array.StringBuilder)

	for _, r := range rows {
		yb.Append(int32(r.Year))
		eb.Append(int32(r.Exporter))
		ib.Append(int32(r.Importer))
		kb.Append(r.Product)
		appendFloat(vb, r.Value)
		appendFloat(qb, r.Quantity)
		appendString(enb, r.ExporterName)
		appendString(inb, r.ImporterName)
		appendString(pnb, r.ProductName)
	}
}

func appendFloat(b *array.Float64Builder, p *float64) {
	if p == nil {
		b.AppendNull()
		return
	}
	b.Append(*p)
}

func appendString(b *array.StringBuilder, p *string) {
	if p == nil {
		b.AppendNull()
		return
	}
	b.Append(*p)
}
