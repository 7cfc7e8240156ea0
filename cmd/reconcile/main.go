// Command reconcile runs the backfill reconciliation over local files and
// writes the workbook without starting the web service.
//
//	reconcile -zqm zqm.xlsx -pmr pmr.xlsx -soh soh.xlsx -out backfill.xlsx
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"backfill/internal/config"
	"backfill/internal/exporter"
	"backfill/internal/infrastructure"
	"backfill/internal/reconcile"
	"backfill/internal/table"
	"backfill/internal/validation"
	"backfill/pkg/contracts"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "reconcile:", err)
		}
		os.Exit(1)
	}
}

type options struct {
	zqm, pmr, soh string
	out           string
	csv           string
	filtered      string
	duplicates    string
	logLevel      string
	version       bool
}

func parseFlags(args []string, stderr io.Writer, cfg *config.Config) (options, error) {
	var o options
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.zqm, "zqm", "", "ZQM export (xlsx, xls or csv)")
	fs.StringVar(&o.pmr, "pmr", "", "PMR export (xlsx, xls or csv)")
	fs.StringVar(&o.soh, "soh", "", "SOH export; owner columns are 0 without it")
	fs.StringVar(&o.out, "out", cfg.Export.FileName, "output workbook")
	fs.StringVar(&o.csv, "csv", "", "also write MASTER as CSV to this path")
	fs.StringVar(&o.filtered, "filtered", "", "also write the filtered ZQM workbook to this path")
	fs.StringVar(&o.duplicates, "duplicates", cfg.Reconcile.DuplicatePolicy, "duplicate ZQM dates: keep_all or latest_finish")
	fs.StringVar(&o.logLevel, "log-level", cfg.Logging.Level, "debug, info, warn or error")
	fs.BoolVar(&o.version, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.version {
		return o, nil
	}

	if o.zqm == "" || o.pmr == "" {
		fs.Usage()
		return o, errors.New("-zqm and -pmr are required")
	}
	switch reconcile.DuplicatePolicy(o.duplicates) {
	case reconcile.KeepAll, reconcile.LatestFinish:
	default:
		return o, fmt.Errorf("unknown -duplicates %q", o.duplicates)
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		// flags still work against the built-in tables
		cfg = config.Default()
	}

	o, err := parseFlags(args, stderr, cfg)
	if err != nil {
		return err
	}
	if o.version {
		_, err := fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return err
	}

	logger := infrastructure.WithComponent(infrastructure.NewLogger(o.logLevel, stderr), "reconcile_cli")
	ctx = infrastructure.EnsureTraceID(ctx)
	start := time.Now()

	in, err := loadInputs(ctx, cfg, o, logger)
	if err != nil {
		return err
	}

	opts := reconcile.NewOptions(cfg.Reconcile)
	opts.DuplicatePolicy = reconcile.DuplicatePolicy(o.duplicates)

	result, err := reconcile.Run(in, opts)
	if err != nil {
		return err
	}
	for _, w := range result.Warnings {
		logger.WarnContext(ctx, "reconciliation warning",
			slog.String("type", string(w.Type)),
			slog.String("message", w.Message))
	}

	if err := writeOutputs(cfg, o, result, logger); err != nil {
		return err
	}

	summary := result.Summary()
	logger.InfoContext(ctx, "reconciliation complete",
		slog.String("out", o.out),
		slog.Int("master_rows", summary.MasterRows),
		slog.Int("orders", summary.Orders),
		slog.Duration("duration", time.Since(start)))

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

// loadInputs validates and parses the input files concurrently
func loadInputs(ctx context.Context, cfg *config.Config, o options, logger *slog.Logger) (reconcile.Input, error) {
	validator := validation.NewFileValidator(cfg.Upload, logger)
	loader := table.NewLoader(logger)

	var in reconcile.Input
	g, gctx := errgroup.WithContext(ctx)
	load := func(path string, dst **table.Table) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := validator.ValidateSpreadsheetFile(path); err != nil {
				return err
			}
			t, err := loader.LoadFile(path)
			if err != nil {
				return err
			}
			*dst = t
			return nil
		})
	}
	load(o.zqm, &in.ZQM)
	load(o.pmr, &in.PMR)
	if o.soh != "" {
		load(o.soh, &in.SOH)
	}
	return in, g.Wait()
}

func writeOutputs(cfg *config.Config, o options, result *reconcile.Result, logger *slog.Logger) error {
	validator := validation.NewFileValidator(cfg.Upload, logger)
	if err := validator.ValidateOutputDirectory(filepath.Dir(o.out)); err != nil {
		return err
	}

	data, err := exporter.BuildReport(result, exporter.NewReportOptions(cfg.Export, reconcile.NewOptions(cfg.Reconcile)), logger)
	if err != nil {
		return err
	}
	if err := os.WriteFile(o.out, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", o.out, err)
	}

	if o.csv != "" {
		if err := exporter.NewCSVWriter(logger).WriteFile(o.csv, result.Master); err != nil {
			return err
		}
	}

	if o.filtered != "" {
		data, err := exporter.BuildFilteredZQM(result.ZQMFiltered, logger)
		if err != nil {
			return err
		}
		if err := validator.ValidateOutputDirectory(filepath.Dir(o.filtered)); err != nil {
			return err
		}
		if err := os.WriteFile(o.filtered, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", o.filtered, err)
		}
	}
	return nil
}
