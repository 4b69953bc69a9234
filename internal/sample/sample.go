// Package sample implements deterministic stratified downsampling of trade
// chunks. Rows are grouped into strata by (year, exporter, importer) and each
// stratum keeps a uniform random subset sized round(fraction*n), never less
// than one row for a non-empty stratum.
//
// Selection is reproducible by construction: each (stratum, chunk) pair gets
// its own PCG stream seeded from an xxh3 hash of the stratum key and chunk
// index mixed with the run seed. Re-running with the same seed retains the
// same row positions; chunks never share a stream, so parallel workers need
// no coordination.
package sample

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/zeebo/xxh3"

	"tradeflow/internal/trade"
)

// Key is the stratum identity. The reference dataset is dominated by
// (year, exporter, importer) skew, which is why sampling preserves exactly
// that grain.
type Key struct {
	Year     int
	Exporter int
	Importer int
}

// KeyOf derives the stratum for one record.
func KeyOf(r trade.Record) Key {
	return Key{Year: r.Year, Exporter: r.Exporter, Importer: r.Importer}
}

// Sampler retains a per-stratum fraction of rows. Safe for concurrent use:
// it holds only immutable configuration.
type Sampler struct {
	fraction float64
	seed     uint64
}

// New validates the fraction and builds a Sampler. fraction must be in
// (0, 1]; 1 keeps everything and is accepted for pipeline symmetry.
func New(fraction float64, seed int64) (*Sampler, error) {
	if fraction <= 0 || fraction > 1 {
		return nil, fmt.Errorf("sample: fraction %g out of range (0, 1]", fraction)
	}
	return &Sampler{fraction: fraction, seed: uint64(seed)}, nil
}

// Fraction reports the configured retention fraction.
func (s *Sampler) Fraction() float64 { return s.fraction }

// Sample returns the retained subset of rows for one chunk, in original row
// order. The input slice is not modified. chunkIndex must be the chunk's
// position in the file so re-runs see identical streams.
func (s *Sampler) Sample(chunkIndex int, rows []trade.Record) []trade.Record {
	if len(rows) == 0 {
		return nil
	}

	strata := make(map[Key][]int)
	for i, r := range rows {
		k := KeyOf(r)
		strata[k] = append(strata[k], i)
	}

	// Selection below is independent per stratum, so map iteration order
	// cannot influence which rows are kept.
	keep := make([]bool, len(rows))
	kept := 0
	for k, idx := range strata {
		target := targetCount(s.fraction, len(idx))
		if target >= len(idx) {
			for _, i := range idx {
				keep[i] = true
			}
			kept += len(idx)
			continue
		}

		rng := s.rngFor(k, chunkIndex)
		sel := append([]int(nil), idx...)
		// Partial Fisher-Yates: after target steps, sel[:target] is a
		// uniform sample without replacement.
		for j := 0; j < target; j++ {
			swap := j + rng.IntN(len(sel)-j)
			sel[j], sel[swap] = sel[swap], sel[j]
		}
		for _, i := range sel[:target] {
			keep[i] = true
		}
		kept += target
	}

	out := make([]trade.Record, 0, kept)
	for i, r := range rows {
		if keep[i] {
			out = append(out, r)
		}
	}
	return out
}

// targetCount rounds half away from zero and floors at one row so small
// strata never vanish from the sample.
func targetCount(fraction float64, n int) int {
	t := int(math.Round(fraction * float64(n)))
	if t < 1 {
		return 1
	}
	if t > n {
		return n
	}
	return t
}

// rngFor derives the stratum-and-chunk scoped stream.
func (s *Sampler) rngFor(k Key, chunkIndex int) *rand.Rand {
	var buf [32]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(k.Year))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(k.Exporter))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(k.Importer))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(chunkIndex))
	h := xxh3.Hash128(buf[:])
	return rand.New(rand.NewPCG(h.Lo^s.seed, h.Hi))
}
