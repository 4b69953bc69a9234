// Package refdata loads the country and product reference tables and joins
// them onto trade records. Tables are immutable after load and safe to share
// by reference across workers.
package refdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"tradeflow/internal/datasource"
	"tradeflow/internal/schema"
)

// LoadError is the fatal wrapper for any reference-table failure. A run must
// not produce artifacts after one of these.
type LoadError struct {
	Table string
	Err   error
}

func (e *LoadError) Error() string { return fmt.Sprintf("refdata: load %s: %v", e.Table, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// Countries maps numeric country codes to display names. Both exporter and
// importer columns resolve against it.
type Countries struct {
	names     map[int]*string
	conflicts int
	skipped   int
}

// Name resolves a country code. The returned pointer is shared across every
// row that carries the same code.
func (c *Countries) Name(code int) *string { return c.names[code] }

// Len reports how many distinct codes loaded.
func (c *Countries) Len() int { return len(c.names) }

// Conflicts reports how many duplicate codes carried a different name; the
// first mapping wins.
func (c *Countries) Conflicts() int { return c.conflicts }

// Products maps product (HS) codes to descriptions. Codes are kept as
// strings: leading zeros are significant.
type Products struct {
	names     map[string]*string
	conflicts int
	skipped   int
}

func (p *Products) Name(code string) *string { return p.names[code] }
func (p *Products) Len() int                 { return len(p.names) }
func (p *Products) Conflicts() int           { return p.conflicts }

// LoadCountries reads the country reference table from src. The header is
// matched by column name, so the published four-column layout (with ISO
// fields) and a plain two-column one both work.
func LoadCountries(ctx context.Context, src datasource.Source) (*Countries, error) {
	c := &Countries{names: make(map[int]*string)}
	err := loadTable(ctx, src, &schema.Country, func(fields map[string]string) {
		code, err := strconv.Atoi(strings.TrimSpace(fields["country_code"]))
		name := strings.TrimSpace(fields["country_name"])
		if err != nil || name == "" {
			c.skipped++
			return
		}
		if prev, ok := c.names[code]; ok {
			if *prev != name {
				c.conflicts++
			}
			return
		}
		c.names[code] = &name
	})
	if err != nil {
		return nil, err
	}
	if c.conflicts > 0 || c.skipped > 0 {
		log.Printf("refdata: countries loaded=%d conflicts=%d skipped=%d", c.Len(), c.conflicts, c.skipped)
	}
	return c, nil
}

// LoadProducts reads the product reference table from src.
func LoadProducts(ctx context.Context, src datasource.Source) (*Products, error) {
	p := &Products{names: make(map[string]*string)}
	err := loadTable(ctx, src, &schema.Product, func(fields map[string]string) {
		code := strings.TrimSpace(fields["code"])
		name := strings.TrimSpace(fields["description"])
		if code == "" || name == "" {
			p.skipped++
			return
		}
		if prev, ok := p.names[code]; ok {
			if *prev != name {
				p.conflicts++
			}
			return
		}
		p.names[code] = &name
	})
	if err != nil {
		return nil, err
	}
	if p.conflicts > 0 || p.skipped > 0 {
		log.Printf("refdata: products loaded=%d conflicts=%d skipped=%d", p.Len(), p.conflicts, p.skipped)
	}
	return p, nil
}

// loadTable streams a reference CSV, resolves the header against contract,
// and hands each row to add as a name->value map of the contract's columns.
// Any read or header failure is wrapped in *LoadError.
func loadTable(ctx context.Context, src datasource.Source, contract *schema.Contract, add func(map[string]string)) error {
	rc, err := src.Open(ctx)
	if err != nil {
		return &LoadError{Table: contract.Name, Err: err}
	}
	defer rc.Close()

	cr := csv.NewReader(rc)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1 // reference files may carry extra columns

	hdr, err := cr.Read()
	if err != nil {
		return &LoadError{Table: contract.Name, Err: &schema.HeaderError{Contract: contract.Name, Got: hdr}}
	}
	ix, err := contract.Match(hdr)
	if err != nil {
		return &LoadError{Table: contract.Name, Err: err}
	}

	fields := make(map[string]string, len(ix))
	for {
		select {
		case <-ctx.Done():
			return &LoadError{Table: contract.Name, Err: ctx.Err()}
		default:
		}

		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &LoadError{Table: contract.Name, Err: err}
		}
		for name, i := range ix {
			if i < len(rec) {
				fields[name] = rec[i]
			} else {
				fields[name] = ""
			}
		}
		add(fields)
	}
}
