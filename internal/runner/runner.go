// Package runner executes one or more independent simulation runs
// concurrently, each with its own Simulation, random source and ID
// allocators so runs never interfere with one another.
package runner

import (
	"context"

	"go.uber.org/zap"

	"github.com/liaskos-cmg/cnsim-bitcoin/internal/analysis"
	"github.com/liaskos-cmg/cnsim-bitcoin/internal/bitcoin"
	"github.com/liaskos-cmg/cnsim-bitcoin/internal/config"
)

// Result is one simulation run's outcome.
type Result struct {
	RunID      int
	StopReason string
	Height     int
	Metrics    *analysis.Summary
}

// ReporterFactory builds a per-run Reporter, or returns nil to run without
// reporting. Runs execute concurrently, so a factory that opens files must
// give each run distinct paths.
type ReporterFactory func(runID int) bitcoin.Reporter

// Runner drives cfg.NumSimulationsFrom..NumSimulationsTo (inclusive)
// through a worker pool sized by Workers.
type Runner struct {
	Workers  int
	Logger   *zap.Logger
	Reporter ReporterFactory
}

// New returns a Runner with workerCount goroutines (minimum 1).
func New(workerCount int, logger *zap.Logger) *Runner {
	return &Runner{Workers: workerCount, Logger: logger}
}

// Run executes every configured run and returns results ordered by RunID.
func (r *Runner) Run(ctx context.Context, cfg *config.Config) []Result {
	runIDs := make([]int, 0, cfg.NumSimulationsTo-cfg.NumSimulationsFrom+1)
	for id := cfg.NumSimulationsFrom; id <= cfg.NumSimulationsTo; id++ {
		runIDs = append(runIDs, id)
	}

	return process(ctx, r.Workers, runIDs, func(_ context.Context, runID int) Result {
		return r.runOne(cfg, runID)
	})
}

func (r *Runner) runOne(cfg *config.Config, runID int) Result {
	sim := buildSimulation(cfg, runID)
	if r.Reporter != nil {
		sim.Reporter = r.Reporter(runID)
	}

	stopReason := sim.Run()

	if flusher, ok := sim.Reporter.(interface{ Flush() }); ok {
		flusher.Flush()
	}

	var maxHeight int
	for _, id := range sim.SortedNodeIDs() {
		if h := sim.Nodes[id].Structure.Height(); h > maxHeight {
			maxHeight = h
		}
	}

	result := Result{
		RunID:      runID,
		StopReason: stopReason,
		Height:     maxHeight,
	}
	if sim.Metrics != nil {
		summary := sim.Metrics.GenerateSummaryReport()
		result.Metrics = &summary
	}

	if r.Logger != nil {
		r.Logger.Info("simulation run complete",
			zap.Int("runID", runID),
			zap.String("stopReason", stopReason),
		)
	}
	return result
}

// buildSimulation constructs a Simulation from cfg, seeding its random
// source deterministically per run so a given (config, runID) pair always
// reproduces the same trace.
func buildSimulation(cfg *config.Config, runID int) *bitcoin.Simulation {
	sim := bitcoin.NewSimulation(cfg.Seed + int64(runID))

	sim.NetDelayMean = cfg.NetDelayMean
	sim.NetDelayStdDev = cfg.NetDelayStdDev
	sim.NetDelayMin = cfg.NetDelayMin
	sim.NetDelayMax = cfg.NetDelayMax

	if cfg.SimulationDuration > 0 {
		sim.Scheduler.SetMaxTime(cfg.SimulationDuration)
	}
	if cfg.MaxEvents > 0 {
		sim.Scheduler.SetMaxEvents(cfg.MaxEvents)
	}

	for _, nc := range cfg.Nodes {
		n := bitcoin.NewNode(nc.ID, nc.HashPower, nc.OperatingDifficulty, nc.MinValueToMine, nc.MaxBlockSize)
		switch nc.Behavior {
		case "malicious":
			n.Behavior = bitcoin.NewMaliciousBehavior(n, cfg.TargetTransactionID, cfg.RequiredConfirmations)
			if sim.Metrics == nil {
				sim.Metrics = analysis.NewMetricsCollector(nc.HashPower, cfg.RequiredConfirmations)
			}
		default:
			n.Behavior = bitcoin.NewHonestBehavior(n)
		}
		sim.AddNode(n)
	}

	for _, hpc := range cfg.HashPowerChanges {
		sim.ScheduleHashPowerChange(hpc.AtTime, hpc.NodeID, hpc.NewPower)
	}

	workload := &bitcoin.Workload{
		ArrivalRate: cfg.WorkloadArrivalRate,
		SizeMean:    cfg.TxSizeMean,
		SizeStdDev:  cfg.TxSizeStdDev,
		SizeMin:     cfg.TxSizeMin,
		SizeMax:     cfg.TxSizeMax,
		FeeMean:     cfg.TxFeeMean,
		FeeStdDev:   cfg.TxFeeStdDev,
		FeeMin:      cfg.TxFeeMin,
		FeeMax:      cfg.TxFeeMax,
	}
	sim.Workload = workload
	workload.Start(sim)

	return sim
}
