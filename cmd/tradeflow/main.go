package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"tradeflow/internal/config"
	"tradeflow/internal/metrics"
	"tradeflow/internal/metrics/datadog"
	"tradeflow/internal/metrics/prompush"
	"tradeflow/internal/pipeline"
	"tradeflow/internal/progress"

	// register all sinks with the output factory.
	// config selects which one to use but the binary builds in support for all of them.
	_ "tradeflow/internal/output/all"
)

// main is the entry point for the tradeflow binary. It loads the run config,
// applies flag and environment overrides, optionally initializes a metrics
// backend, and executes the run.
func main() {
	var (
		cfgPath           string
		tradesFlg         string
		countriesFlg      string
		productsFlg       string
		outFlg            string
		formatFlg         string
		workersFlg        int
		chunkFlg          int
		fractionFlg       float64
		seedFlg           int64
		metricsBackendFlg string
		pushGatewayURLFlg string
		dogstatsdAddrFlg  string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/runs/baci_csv.json", "run config JSON path")
	flag.StringVar(&tradesFlg, "trades", "", "trade file path or URL (overrides config)")
	flag.StringVar(&countriesFlg, "countries", "", "country reference path or URL (overrides config)")
	flag.StringVar(&productsFlg, "products", "", "product reference path or URL (overrides config)")
	flag.StringVar(&outFlg, "out", "", "dataset artifact path (overrides config)")
	flag.StringVar(&formatFlg, "format", "", "dataset format: csv, parquet, feather, sqlite, postgres (overrides config)")
	flag.IntVar(&workersFlg, "workers", 0, "parallel chunk processors (overrides config)")
	flag.IntVar(&chunkFlg, "chunk-size", 0, "max rows per chunk (overrides config)")
	flag.Float64Var(&fractionFlg, "sample-fraction", 0, "per-stratum retention fraction; 0 disables sampling (overrides config)")
	flag.Int64Var(&seedFlg, "seed", 0, "sampling seed (overrides config)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (pushgateway, datadog, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&dogstatsdAddrFlg, "dogstatsd-addr", "", "DogStatsD address (overrides env DOGSTATSD_ADDR)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	run, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	// Flags beat the file; only flags the user actually set apply.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "trades":
			run.Inputs.Trades = tradesFlg
		case "countries":
			run.Inputs.Countries = countriesFlg
		case "products":
			run.Inputs.Products = productsFlg
		case "out":
			run.Output.Path = outFlg
		case "format":
			run.Output.Kind = formatFlg
		case "workers":
			run.Runtime.Workers = workersFlg
		case "chunk-size":
			run.Runtime.ChunkSize = chunkFlg
		case "sample-fraction":
			run.Sample.Enabled = fractionFlg > 0
			run.Sample.Fraction = fractionFlg
		case "seed":
			run.Sample.Seed = seedFlg
		}
	})
	run.Runtime.Workers = pickInt(run.Runtime.Workers, getenvInt("TRADEFLOW_WORKERS", 0))
	run.Runtime.ChunkSize = pickInt(run.Runtime.ChunkSize, getenvInt("TRADEFLOW_CHUNK_SIZE", 0))
	if *verbose {
		run.Runtime.Verbose = true
	}
	run.ApplyDefaults()

	issues := config.ValidateRun(run)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	// Decide metrics backend: flag → env → default.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	jobName := run.Job
	if jobName == "" {
		jobName = "tradeflow"
	}
	switch backendName {
	case "pushgateway":
		gwURL := pushGatewayURLFlg
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend(jobName, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init pushgateway backend: %v; using nop", err)
		} else {
			log.Printf("metrics: backend=%v url=%v job=%v", backendName, gwURL, jobName)
			metrics.SetBackend(b)
		}

	case "datadog":
		addr := dogstatsdAddrFlg
		if addr == "" {
			addr = os.Getenv("DOGSTATSD_ADDR")
		}
		if addr == "" {
			addr = "127.0.0.1:8125"
		}
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       addr,
			GlobalTags: []string{"service:tradeflow", "job:" + jobName},
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			log.Printf("metrics: backend=%v addr=%v job=%v", backendName, addr, jobName)
			metrics.SetBackend(b)
		}

	case "", "none":
		// metrics disabled; nop backend remains
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	ctx := context.Background()
	start := time.Now()

	if *verbose {
		log.Printf("run: trades=%s output=%s kind=%s workers=%d chunk_size=%d",
			run.Inputs.Trades, run.Output.Path, run.Output.Kind,
			run.Runtime.Workers, run.Runtime.ChunkSize)
	}

	rep, runErr := pipeline.Run(ctx, run, progressLogger(*verbose))
	if err := metrics.Flush(); err != nil {
		log.Printf("metrics: flush error: %v", err)
	}
	if runErr != nil {
		log.Fatalf("%v", runErr)
	}

	if rep.Meta.Degraded {
		log.Printf("run degraded: %d of %d chunks failed; see %s",
			rep.Meta.ChunksFailed, rep.Meta.Chunks, rep.Meta.Artifacts.Metadata)
	}
	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

// progressLogger renders pipeline progress as log lines: one per phase
// change, or one per event when verbose.
func progressLogger(verbose bool) progress.Sink {
	var last progress.Phase
	return progress.Func(func(e progress.Event) {
		if e.Phase == last && !verbose {
			return
		}
		last = e.Phase
		log.Printf("progress: phase=%s chunks=%d/%s rows_out=%d",
			e.Phase, e.ChunksDone, totalLabel(e.TotalChunks), e.RowsOut)
	})
}

// totalLabel renders the chunk total, which is unknown until the reader
// finishes.
func totalLabel(total int) string {
	if total == 0 {
		return "?"
	}
	return strconv.Itoa(total)
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

func getenvInt(k string, def int) int {
	if s := os.Getenv(k); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

// pickInt chooses the first positive value 'a', otherwise returns 'b'.
func pickInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}
