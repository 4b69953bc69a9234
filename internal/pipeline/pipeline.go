// Package pipeline runs one end-to-end processing job: stream the trade file
// in chunks, enrich and optionally sample each chunk on a worker pool, fold
// per-chunk statistics into one summary, and persist the dataset, summary,
// and run-metadata artifacts.
//
// A run moves through four phases (analyze, process, write, finalize),
// reported through a progress.Sink and timed into the metrics backend.
// Fatal errors during analyze leave no artifacts at all; failures after that
// abort the staged dataset, so a partial artifact never lands on the final
// path.
//
// Within the process phase, chunk results arrive in completion order. The
// statistics fold accepts them as they come (merging is order-invariant);
// the dataset sink does not, so rows are re-sequenced by chunk index before
// writing. Output bytes are therefore identical for any worker count.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"tradeflow/internal/config"
	"tradeflow/internal/datasource/httpds"
	"tradeflow/internal/executor"
	"tradeflow/internal/metrics"
	"tradeflow/internal/output"
	"tradeflow/internal/progress"
	"tradeflow/internal/reader"
	"tradeflow/internal/refdata"
	"tradeflow/internal/sample"
	"tradeflow/internal/stats"
	"tradeflow/internal/trade"
)

// Report is what a finished run hands back to the caller: the finalized
// summary plus the metadata record that was persisted. Degraded runs (some
// chunks failed, within threshold) still return a Report.
type Report struct {
	Summary stats.Summary
	Meta    RunMetadata
}

// chunkHook is a test seam consulted before each chunk is processed; a
// non-nil error fails that chunk only. Tests replace it to exercise failure
// isolation and escalation.
var chunkHook func(reader.Chunk) error

// Run executes one configured run. prog may be nil.
func Run(ctx context.Context, cfg config.Run, prog progress.Sink) (*Report, error) {
	if prog == nil {
		prog = progress.Nop{}
	}
	cfg.ApplyDefaults()
	cfg.Runtime.Workers = executor.Workers(cfg.Runtime.Workers)
	if cfg.Runtime.QueueDepth <= 0 {
		cfg.Runtime.QueueDepth = executor.QueueDepth(cfg.Runtime.Workers)
	}
	job := cfg.Job
	if job == "" {
		job = "tradeflow"
	}

	meta := RunMetadata{
		RunID:     uuid.NewString(),
		Job:       job,
		StartedAt: time.Now().UTC(),
		Config:    cfg,
	}
	client := httpds.NewClient(httpds.Config{})

	// --- analyze: identify inputs, load reference tables ---
	phaseStart := time.Now()
	prog.Publish(progress.Event{Phase: progress.PhaseAnalyze})
	inputs, joiner, smp, err := analyze(ctx, client, cfg)
	metrics.RecordPhase(job, "analyze", err, time.Since(phaseStart))
	if err != nil {
		return nil, err
	}
	meta.Inputs = inputs
	log.Printf("pipeline: job=%s run=%s workers=%d chunk_size=%d output=%s",
		job, meta.RunID, cfg.Runtime.Workers, cfg.Runtime.ChunkSize, cfg.Output.Kind)

	// --- process: stream, enrich, sample, fold, write chunks ---
	phaseStart = time.Now()
	src, hasher, err := openTrades(ctx, cfg.Inputs.Trades, client)
	if err != nil {
		metrics.RecordPhase(job, "process", err, time.Since(phaseStart))
		return nil, err
	}
	sink, err := output.New(ctx, output.Config{
		Kind:    cfg.Output.Kind,
		Path:    cfg.Output.Path,
		Options: cfg.Output.Options,
	})
	if err != nil {
		_ = src.Close()
		metrics.RecordPhase(job, "process", err, time.Since(phaseStart))
		return nil, err
	}

	pctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		rejected int64
		examples []RowError
	)
	onErr := func(line int, err error) {
		rejected++
		if len(examples) < cfg.Runtime.MaxErrors {
			examples = append(examples, RowError{Line: line, Message: err.Error()})
		}
		if cfg.Runtime.Verbose {
			log.Printf("pipeline: reject line=%d err=%v", line, err)
		}
	}

	jobs := make(chan reader.Chunk, cfg.Runtime.QueueDepth)
	readDone := make(chan error, 1)
	go func() {
		defer close(jobs)
		readDone <- reader.StreamChunks(pctx, src, cfg.Runtime.ChunkSize, jobs, onErr)
	}()
	results := executor.Run(pctx, cfg.Runtime.Workers, buildProcess(joiner, smp, cfg.Runtime.Verbose), jobs)

	fold := stats.New()
	pendingRows := make(map[int][]trade.Enriched)
	failedIdx := make(map[int]bool)
	var failed []FailedChunk
	next := 0
	var rowsWritten int64
	chunksOK, chunksFailed := 0, 0
	var writeErr error

	// flush re-sequences buffered results into chunk-index order and hands
	// the contiguous prefix to the sink; failed indexes are holes to skip.
	flush := func() {
		for writeErr == nil {
			if failedIdx[next] {
				delete(failedIdx, next)
				next++
				continue
			}
			rows, ok := pendingRows[next]
			if !ok {
				return
			}
			delete(pendingRows, next)
			if err := sink.WriteChunk(pctx, rows); err != nil {
				writeErr = err
				cancel()
				return
			}
			rowsWritten += int64(len(rows))
			next++
		}
	}

	for res := range results {
		if res.Err != nil {
			chunksFailed++
			metrics.RecordChunks(job, "failed", 1)
			failedIdx[res.Index] = true
			fc := FailedChunk{Index: res.Index, Cause: res.Err.Error()}
			var ce *executor.ChunkError
			if errors.As(res.Err, &ce) {
				fc.FirstLine = ce.FirstLine
				fc.Cause = ce.Err.Error()
			}
			failed = append(failed, fc)
			log.Printf("pipeline: job=%s chunk=%d failed err=%v", job, res.Index, res.Err)
		} else {
			chunksOK++
			metrics.RecordChunks(job, "ok", 1)
			fold.Merge(res.Stats)
			pendingRows[res.Index] = res.Rows
		}
		flush()
		prog.Publish(progress.Event{
			Phase:      progress.PhaseProcess,
			ChunksDone: chunksOK + chunksFailed,
			ChunksFail: chunksFailed,
			RowsOut:    rowsWritten,
		})
	}
	readErr := <-readDone

	procErr := runError(writeErr, readErr, chunksOK, chunksFailed, cfg.Runtime.FailureThreshold, failed)
	metrics.RecordPhase(job, "process", procErr, time.Since(phaseStart))
	if procErr != nil {
		sink.Abort()
		return nil, procErr
	}

	// --- write: finalize the dataset artifact ---
	phaseStart = time.Now()
	totalChunks := chunksOK + chunksFailed
	prog.Publish(progress.Event{
		Phase:       progress.PhaseWrite,
		ChunksDone:  totalChunks,
		ChunksFail:  chunksFailed,
		TotalChunks: totalChunks,
		RowsOut:     rowsWritten,
	})
	err = sink.Close(ctx)
	metrics.RecordPhase(job, "write", err, time.Since(phaseStart))
	if err != nil {
		return nil, err
	}

	// --- finalize: summary statistics and run metadata ---
	phaseStart = time.Now()
	prog.Publish(progress.Event{
		Phase:       progress.PhaseFinalize,
		ChunksDone:  totalChunks,
		ChunksFail:  chunksFailed,
		TotalChunks: totalChunks,
		RowsOut:     rowsWritten,
	})

	summary := fold.Finalize(rejected)
	if hasher != nil {
		sum := hexSum(hasher)
		for i := range meta.Inputs {
			if meta.Inputs[i].Role == "trades" {
				meta.Inputs[i].XXH3 = sum
			}
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].Index < failed[j].Index })

	base := artifactBase(cfg)
	meta.FinishedAt = time.Now().UTC()
	meta.RowsIn = summary.RowsIn
	meta.RowsOut = summary.RowsOut
	meta.Rejected = summary.Rejected
	meta.SampledOut = summary.SampledOut
	meta.UnmatchedExporter = summary.UnmatchedExporter
	meta.UnmatchedImporter = summary.UnmatchedImporter
	meta.UnmatchedProduct = summary.UnmatchedProduct
	meta.Chunks = totalChunks
	meta.ChunksFailed = chunksFailed
	meta.Degraded = chunksFailed > 0
	meta.FailedChunks = failed
	meta.RejectedExamples = examples
	meta.Artifacts = Artifacts{
		Dataset:  datasetRef(cfg),
		Summary:  base + "_summary.csv",
		Metadata: base + "_metadata.json",
	}

	err = writeSummary(meta.Artifacts.Summary, summary)
	if err == nil {
		err = writeMetadata(meta.Artifacts.Metadata, meta)
	}
	metrics.RecordPhase(job, "finalize", err, time.Since(phaseStart))
	if err != nil {
		return nil, err
	}
	recordRowMetrics(job, summary)

	log.Printf("pipeline: job=%s done rows_in=%d rows_out=%d rejected=%d chunks=%d failed=%d degraded=%t",
		job, summary.RowsIn, summary.RowsOut, summary.Rejected, totalChunks, chunksFailed, meta.Degraded)
	prog.Publish(progress.Event{
		Phase:       progress.PhaseFinalize,
		ChunksDone:  totalChunks,
		ChunksFail:  chunksFailed,
		TotalChunks: totalChunks,
		RowsOut:     rowsWritten,
	})
	return &Report{Summary: summary, Meta: meta}, nil
}

// analyze identifies the inputs and loads everything the process phase needs
// up front, so configuration and reference problems surface before any
// artifact is staged.
func analyze(ctx context.Context, client *httpds.Client, cfg config.Run) ([]InputFile, *refdata.Joiner, *sample.Sampler, error) {
	inputs, err := identifyInputs(ctx, client, cfg.Inputs)
	if err != nil {
		return nil, nil, nil, err
	}

	countries, err := refdata.LoadCountries(ctx, sourceFor(client, cfg.Inputs.Countries))
	if err != nil {
		return nil, nil, nil, err
	}
	products, err := refdata.LoadProducts(ctx, sourceFor(client, cfg.Inputs.Products))
	if err != nil {
		return nil, nil, nil, err
	}
	log.Printf("pipeline: refdata countries=%d products=%d conflicts=%d",
		countries.Len(), products.Len(), countries.Conflicts()+products.Conflicts())

	var smp *sample.Sampler
	if cfg.Sample.Enabled {
		smp, err = sample.New(cfg.Sample.Fraction, cfg.Sample.Seed)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	return inputs, refdata.NewJoiner(countries, products), smp, nil
}

// buildProcess assembles the per-chunk worker: optional sampling, the
// reference join, and the chunk's statistics partial. Sampling runs on the
// raw records first, so lookups are only paid for retained rows.
func buildProcess(joiner *refdata.Joiner, smp *sample.Sampler, verbose bool) executor.Process {
	return func(ctx context.Context, chunk reader.Chunk) ([]trade.Enriched, *stats.Stats, error) {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}
		if chunkHook != nil {
			if err := chunkHook(chunk); err != nil {
				return nil, nil, err
			}
		}

		st := stats.New()
		st.AddSeen(len(chunk.Rows))

		rows := chunk.Rows
		if smp != nil {
			rows = smp.Sample(chunk.Index, rows)
		}
		enriched, js := joiner.Join(rows)
		for _, e := range enriched {
			st.AddRow(e)
		}
		if verbose {
			log.Printf("pipeline: chunk=%d rows=%d kept=%d unmatched_exp=%d unmatched_imp=%d unmatched_prod=%d",
				chunk.Index, len(chunk.Rows), len(rows),
				js.UnmatchedExporter, js.UnmatchedImporter, js.UnmatchedProduct)
		}
		return enriched, st, nil
	}
}

// runError reduces the process phase's accumulated failures to the single
// error the run reports, in precedence order: artifact write failure, then
// input-stream failure, then chunk-failure escalation.
func runError(writeErr, readErr error, ok, failedN int, threshold float64, failures []FailedChunk) error {
	if writeErr != nil {
		return writeErr
	}
	if readErr != nil {
		return readErr
	}
	total := ok + failedN
	if total == 0 || failedN == 0 {
		return nil
	}
	if ok == 0 {
		return fmt.Errorf("%w: all %d chunks failed, first: chunk %d: %s",
			ErrAllChunksFailed, total, failures[0].Index, failures[0].Cause)
	}
	if frac := float64(failedN) / float64(total); frac > threshold {
		return fmt.Errorf("%w: %d of %d failed (threshold %.2f), first: chunk %d: %s",
			ErrTooManyFailures, failedN, total, threshold, failures[0].Index, failures[0].Cause)
	}
	return nil
}

// datasetRef names the dataset artifact for the metadata record.
func datasetRef(cfg config.Run) string {
	if cfg.Output.Kind == "postgres" {
		return cfg.Output.Options.String("table", "trade_flows")
	}
	return cfg.Output.Path
}

func recordRowMetrics(job string, s stats.Summary) {
	metrics.RecordRows(job, "in", s.RowsIn)
	metrics.RecordRows(job, "rejected", s.Rejected)
	metrics.RecordRows(job, "sampled_out", s.SampledOut)
	metrics.RecordRows(job, "out", s.RowsOut)
	metrics.RecordRows(job, "unmatched_exporter", s.UnmatchedExporter)
	metrics.RecordRows(job, "unmatched_importer", s.UnmatchedImporter)
	metrics.RecordRows(job, "unmatched_product", s.UnmatchedProduct)
}
