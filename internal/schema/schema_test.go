package schema

import (
	"errors"
	"testing"
)

func TestNormalizeHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"t", "t"},
		{"  V ", "v"},
		{"Country Name", "country_name"},
		{"country-iso3", "country_iso3"},
		{"Libellé", "libelle"},
		{"\ufeffcode", "code"},
		{"__code__", "code"},
	}
	for _, tt := range tests {
		if got := NormalizeHeader(tt.in); got != tt.want {
			t.Fatalf("NormalizeHeader(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

/*
TestTradeMatch verifies the ordered trade contract: the six columns must
appear exactly, in order, after normalization. Anything else is a fatal
HeaderError.
*/
func TestTradeMatch(t *testing.T) {
	t.Parallel()

	ix, err := Trade.Match([]string{"t", "i", "j", "k", "v", "q"})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if got, want := ix["v"], 4; got != want {
		t.Fatalf("ix[v] = %d, want %d", got, want)
	}

	// Case and padding are tolerated.
	if _, err := Trade.Match([]string{"T", " i", "j ", "K", "V", "q"}); err != nil {
		t.Fatalf("Match with padding: %v", err)
	}

	for _, bad := range [][]string{
		{"t", "i", "j", "k", "v"},                  // too few
		{"t", "i", "j", "k", "v", "q", "x"},        // too many
		{"i", "t", "j", "k", "v", "q"},             // wrong order
		{"year", "exp", "imp", "hs6", "val", "qt"}, // wrong names
	} {
		_, err := Trade.Match(bad)
		if err == nil {
			t.Fatalf("Match(%v) succeeded, want HeaderError", bad)
		}
		var he *HeaderError
		if !errors.As(err, &he) {
			t.Fatalf("Match(%v) error = %T, want *HeaderError", bad, err)
		}
	}
}

/*
TestCountryMatch verifies the unordered reference contract: required columns
are located by name anywhere in the header, extra columns (the ISO codes in
the published files) are ignored, and a missing required column is fatal.
*/
func TestCountryMatch(t *testing.T) {
	t.Parallel()

	ix, err := Country.Match([]string{"country_code", "country_name", "country_iso2", "country_iso3"})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if got, want := ix["country_name"], 1; got != want {
		t.Fatalf("ix[country_name] = %d, want %d", got, want)
	}

	// Order-free.
	ix, err = Country.Match([]string{"country_name", "country_code"})
	if err != nil {
		t.Fatalf("Match reordered: %v", err)
	}
	if got, want := ix["country_code"], 1; got != want {
		t.Fatalf("ix[country_code] = %d, want %d", got, want)
	}

	_, err = Country.Match([]string{"country_code", "iso3"})
	var he *HeaderError
	if !errors.As(err, &he) {
		t.Fatalf("error = %v, want *HeaderError", err)
	}
	if len(he.Missing) != 1 || he.Missing[0] != "country_name" {
		t.Fatalf("Missing = %v, want [country_name]", he.Missing)
	}
}

func TestProductMatch(t *testing.T) {
	t.Parallel()

	ix, err := Product.Match([]string{"code", "description"})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if got, want := len(ix), 2; got != want {
		t.Fatalf("len(ix) = %d, want %d", got, want)
	}
}
