// Command cnsim-bitcoin runs the discrete-event Bitcoin proof-of-work
// network simulator: a configurable number of honest and malicious nodes
// race to mine blocks over simulated time, with one node optionally
// attempting a double-spend attack whose observed success rate is
// compared against Nakamoto's closed-form prediction.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/liaskos-cmg/cnsim-bitcoin/internal/bitcoin"
	"github.com/liaskos-cmg/cnsim-bitcoin/internal/config"
	"github.com/liaskos-cmg/cnsim-bitcoin/internal/reporter"
	"github.com/liaskos-cmg/cnsim-bitcoin/internal/runner"
)

type cliOptions struct {
	ConfigPath string `short:"c" long:"config" env:"CNSIM_CONFIG" description:"Path to the simulation properties file" required:"true"`
	Workers    int    `short:"w" long:"workers" env:"CNSIM_WORKERS" description:"Number of concurrent simulation runs" default:"0"`
	Verbose    bool   `short:"v" long:"verbose" description:"Enable debug-level logging"`
}

func main() {
	os.Exit(run())
}

func run() int {
	var opts cliOptions
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return 0
		}
		return 1
	}

	logger, err := buildLogger(opts.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadFile(opts.ConfigPath)
	if err != nil {
		logger.Error("failed to load configuration", zap.Error(err))
		return 1
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	rnr := runner.New(workers, logger)
	rnr.Reporter = fileReporterFactory(cfg.OutputDir, logger)

	results := rnr.Run(ctx, cfg)

	for _, res := range results {
		logger.Info("run summary",
			zap.Int("runID", res.RunID),
			zap.String("stopReason", res.StopReason),
			zap.Int("height", res.Height),
		)
		if res.Metrics != nil {
			logger.Info("attack summary",
				zap.Int("runID", res.RunID),
				zap.Int("attacksStarted", res.Metrics.AttacksStarted),
				zap.Int("attacksSucceeded", res.Metrics.AttacksSucceeded),
				zap.Float64("observedSuccessRate", res.Metrics.SuccessRate),
				zap.Float64("theoreticalSuccessProbability", res.Metrics.Comparison.TheoreticalProbability),
			)
		}
	}

	return 0
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// fileReporterFactory opens five CSV files per run under outputDir, named
// by run ID, and wraps them in a reporter.Reporter.
func fileReporterFactory(outputDir string, logger *zap.Logger) runner.ReporterFactory {
	return func(runID int) bitcoin.Reporter {
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			logger.Warn("failed to create output directory, running without reporting", zap.Error(err))
			return nil
		}

		open := func(name string) *os.File {
			path := filepath.Join(outputDir, fmt.Sprintf("run-%d-%s.csv", runID, name))
			f, err := os.Create(path)
			if err != nil {
				logger.Warn("failed to open log file", zap.String("path", path), zap.Error(err))
				return nil
			}
			return f
		}

		blockF, structureF, attackF, eventF, errorF := open("blocks"), open("structure"), open("attack"), open("events"), open("errors")
		if blockF == nil || structureF == nil || attackF == nil || eventF == nil || errorF == nil {
			return nil
		}

		return reporter.New(logger, 1000, blockF, structureF, attackF, eventF, errorF)
	}
}
