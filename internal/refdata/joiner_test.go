package refdata

import (
	"context"
	"testing"

	"tradeflow/internal/trade"
)

// loadFixtures builds small in-memory reference tables for joiner tests.
func loadFixtures(t *testing.T) (*Countries, *Products) {
	t.Helper()
	c, err := LoadCountries(context.Background(), memSource{body: "country_code,country_name\n" +
		"4,Afghanistan\n842,USA\n250,France\n"})
	if err != nil {
		t.Fatalf("LoadCountries: %v", err)
	}
	p, err := LoadProducts(context.Background(), memSource{body: "code,description\n" +
		"010121,Live horses\n020230,Frozen beef\n"})
	if err != nil {
		t.Fatalf("LoadProducts: %v", err)
	}
	return c, p
}

func rec(exp, imp int, product string) trade.Record {
	return trade.Record{Year: 2023, Exporter: exp, Importer: imp, Product: product}
}

/*
TestJoin_LeftJoinSemantics verifies that every input row comes back exactly
once, misses keep nil names with the raw code intact, and per-column
matched + unmatched = total.
*/
func TestJoin_LeftJoinSemantics(t *testing.T) {
	t.Parallel()

	c, p := loadFixtures(t)
	j := NewJoiner(c, p)

	rows := []trade.Record{
		rec(4, 842, "010121"),   // all matched
		rec(999, 842, "010121"), // exporter miss
		rec(4, 999, "999999"),   // importer and product miss
	}

	out, stats := j.Join(rows)
	if got, want := len(out), len(rows); got != want {
		t.Fatalf("len(out) = %d, want %d", got, want)
	}
	if got, want := stats.Rows, 3; got != want {
		t.Fatalf("Rows = %d, want %d", got, want)
	}
	if got, want := stats.UnmatchedExporter, 1; got != want {
		t.Fatalf("UnmatchedExporter = %d, want %d", got, want)
	}
	if got, want := stats.UnmatchedImporter, 1; got != want {
		t.Fatalf("UnmatchedImporter = %d, want %d", got, want)
	}
	if got, want := stats.UnmatchedProduct, 1; got != want {
		t.Fatalf("UnmatchedProduct = %d, want %d", got, want)
	}

	if out[0].ExporterName == nil || *out[0].ExporterName != "Afghanistan" {
		t.Fatalf("row 0 ExporterName = %v, want Afghanistan", out[0].ExporterName)
	}
	if out[1].ExporterName != nil {
		t.Fatalf("row 1 ExporterName = %v, want nil", *out[1].ExporterName)
	}
	if got, want := out[1].Exporter, 999; got != want {
		t.Fatalf("row 1 raw exporter = %d, want %d preserved", got, want)
	}
	if out[2].ProductName != nil || out[2].ImporterName != nil {
		t.Fatal("row 2 misses should stay nil")
	}
}

/*
TestJoin_PureAcrossCalls verifies no state leaks between calls: identical
inputs give identical stats no matter how many calls preceded them.
*/
func TestJoin_PureAcrossCalls(t *testing.T) {
	t.Parallel()

	c, p := loadFixtures(t)
	j := NewJoiner(c, p)

	rows := []trade.Record{rec(999, 4, "010121")}

	_, first := j.Join(rows)
	for i := 0; i < 5; i++ {
		j.Join([]trade.Record{rec(1, 2, "x")})
	}
	_, again := j.Join(rows)

	if first != again {
		t.Fatalf("stats drifted across calls: first=%+v again=%+v", first, again)
	}
}

func TestJoinStats_Add(t *testing.T) {
	t.Parallel()

	s := JoinStats{Rows: 2, UnmatchedExporter: 1}
	s.Add(JoinStats{Rows: 3, UnmatchedProduct: 2})
	want := JoinStats{Rows: 5, UnmatchedExporter: 1, UnmatchedProduct: 2}
	if s != want {
		t.Fatalf("Add = %+v, want %+v", s, want)
	}
}

/*
TestJoin_SharedNamePointers verifies rows with the same code share one name
pointer, keeping memory flat on skewed datasets.
*/
func TestJoin_SharedNamePointers(t *testing.T) {
	t.Parallel()

	c, p := loadFixtures(t)
	j := NewJoiner(c, p)

	out, _ := j.Join([]trade.Record{rec(842, 4, "010121"), rec(842, 4, "010121")})
	if out[0].ExporterName != out[1].ExporterName {
		t.Fatal("same exporter code should share one name pointer")
	}
}
