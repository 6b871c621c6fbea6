package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/orderops/unshipped/internal/app"
	"github.com/orderops/unshipped/internal/config"
	"github.com/orderops/unshipped/internal/enrich"
	"github.com/orderops/unshipped/internal/enrich/gemini"
	"github.com/orderops/unshipped/internal/enrich/httpapi"
	"github.com/orderops/unshipped/internal/logging"
	"github.com/orderops/unshipped/internal/util"
	"github.com/orderops/unshipped/internal/version"
)

func main() {
	ctx := context.Background()

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "help", "-h", "--help":
		usage(os.Stdout)
		return
	case "version", "--version":
		fmt.Println(version.Current)
		return
	case "run":
		os.Exit(run(ctx, os.Args[2:]))
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}
}

func run(ctx context.Context, args []string) int {
	// Local convenience only; a missing .env is fine.
	_ = godotenv.Load()

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	configPath := fs.String("config", "", "YAML config file path (optional; env vars still apply)")
	batchFile := fs.String("batch-file", "", "Explicit batch TSV path, bypassing directory discovery (env: UNSHIPPED_BATCH_FILE)")
	outputDir := fs.String("output-dir", "", "Report output directory (env: UNSHIPPED_OUTPUT_DIR)")
	workers := fs.Int("workers", -1, "Vendor fan-out pool size, 0 = number of CPUs (env: UNSHIPPED_WORKERS)")
	logLevel := fs.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	logFormat := fs.String("log-format", "console", "Log format: console or json")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", util.RedactSecrets(err.Error()))
		return 2
	}
	if *batchFile != "" {
		cfg.Inputs.BatchFile = *batchFile
	}
	if *outputDir != "" {
		cfg.Report.OutputDir = *outputDir
	}
	if *workers >= 0 {
		cfg.Workers = *workers
	}

	runID := fmt.Sprintf("run-%d", time.Now().UnixNano())
	logger := logging.New(logging.Options{Level: *logLevel, Format: *logFormat}, runID)

	var transport enrich.Transport
	if cfg.Enrichment.Enabled {
		switch cfg.Enrichment.Backend {
		case "gemini":
			transport, err = gemini.New(ctx, gemini.Config{
				APIKey: cfg.Enrichment.APIKey,
				Model:  cfg.Enrichment.GeminiModel,
			})
		default:
			transport, err = httpapi.New(cfg.Enrichment.BaseURL, cfg.Enrichment.APIKey)
		}
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "enrichment config error: %s\n", util.RedactSecrets(err.Error()))
			return 2
		}
	}

	if _, err := app.Run(ctx, cfg, transport, logger); err != nil {
		logger.Error().Msg(util.RedactSecrets(err.Error()))
		return 1
	}
	return 0
}

func usage(w *os.File) {
	_, _ = fmt.Fprintf(w, `unshipped: reconcile a daily unshipped-order batch against the master sheets

Usage:
  unshipped <command> [flags]

Commands:
  run      Execute one reconciliation run
  version  Print the version
  help     Show this help

Examples:
  unshipped run --config unshipped.yaml
  unshipped run --batch-file Upload/orders.txt --output-dir Output

Environment:
  UNSHIPPED_BATCH_DIR           Directory scanned for the first .txt extract
  UNSHIPPED_BATCH_FILE          Explicit extract path (wins over the scan)
  UNSHIPPED_OLD_REFERENCE_DIR   Old master source (one CSV per label type)
  UNSHIPPED_NEW_REFERENCE_DIR   New master source (one CSV per label type)
  UNSHIPPED_REGISTRY_FILE       Vendor registry CSV (prefix,label)
  UNSHIPPED_OUTPUT_DIR          Report output directory
  UNSHIPPED_WEBHOOK_URL         Summary webhook (token stays out of logs)
  ENRICHMENT_ENABLED            Enable the attribute enrichment pass
  ENRICHMENT_BASE_URL           Attribute service URL (http backend)
  ENRICHMENT_API_KEY            Attribute service / Gemini API key
  GEMINI_MODEL                  Gemini model name (gemini backend)

`)
}
