// Package config loads simulation parameters from a key=value properties
// file. No third-party configuration library in the retrieval pack reads
// this file format (the closest candidates, viper and koanf, do not
// appear anywhere in it), so the parser below is hand-rolled against the
// standard library's bufio.Scanner, matching the file's plain grammar
// line for line.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ConfigError is fatal: the run aborts before the scheduler starts.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

// NodeConfig is one node's static configuration, before any scheduled
// HashPowerChange/BehaviorChange events are applied.
type NodeConfig struct {
	ID                  int
	HashPower           float64
	OperatingDifficulty float64
	MinValueToMine      int64
	MaxBlockSize        int64
	Behavior            string // "honest" or "malicious"
}

// HashPowerChangeEntry is one entry of a parsed hashpower-change schedule.
type HashPowerChangeEntry struct {
	NodeID    int
	NewPower  float64
	AtTime    int64
}

// Config is the fully parsed and validated simulation configuration.
type Config struct {
	Nodes []NodeConfig

	NetDelayMean, NetDelayStdDev, NetDelayMin, NetDelayMax float64

	WorkloadArrivalRate float64
	TxSizeMean, TxSizeStdDev, TxSizeMin, TxSizeMax float64
	TxFeeMean, TxFeeStdDev, TxFeeMin, TxFeeMax     float64

	SimulationDuration int64 // 0 means unbounded (run to queue exhaustion)
	MaxEvents          int64 // 0 means unbounded

	Seed int64

	NumSimulationsFrom, NumSimulationsTo int

	AttackerNodeID        int
	TargetTransactionID   int
	RequiredConfirmations int

	HashPowerChanges []HashPowerChangeEntry

	OutputDir string
}

// rawProperties is the flat key/value form read straight off disk, before
// any structural interpretation (per-node keys, schedule grammar) is
// applied.
type rawProperties map[string]string

// LoadFile reads and parses a properties file, then validates the result.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("cannot open config file %q: %v", path, err)}
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads key=value lines from r. Blank lines and lines starting with
// '#' are ignored. Values are trimmed of surrounding whitespace.
func Parse(r io.Reader) (*Config, error) {
	props := rawProperties{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx < 0 {
			return nil, &ConfigError{Msg: fmt.Sprintf("line %d: missing '=' in %q", lineNo, line)}
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		props[key] = val
	}
	if err := scanner.Err(); err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("error reading config: %v", err)}
	}
	return buildConfig(props)
}

func buildConfig(props rawProperties) (*Config, error) {
	cfg := &Config{}

	numNodes, err := getInt(props, "nodes.count", 0)
	if err != nil {
		return nil, err
	}
	for i := 0; i < numNodes; i++ {
		prefix := fmt.Sprintf("node.%d.", i)
		hp, err := getFloat(props, prefix+"hashpower", 0)
		if err != nil {
			return nil, err
		}
		diff, err := getFloat(props, prefix+"difficulty", 1)
		if err != nil {
			return nil, err
		}
		minVal, err := getInt64(props, prefix+"minValueToMine", 0)
		if err != nil {
			return nil, err
		}
		maxSize, err := getInt64(props, prefix+"maxBlockSize", 1_000_000)
		if err != nil {
			return nil, err
		}
		behavior := props[prefix+"behavior"]
		if behavior == "" {
			behavior = "honest"
		}
		if behavior != "honest" && behavior != "malicious" {
			return nil, &ConfigError{Msg: fmt.Sprintf("node.%d.behavior must be 'honest' or 'malicious', got %q", i, behavior)}
		}
		cfg.Nodes = append(cfg.Nodes, NodeConfig{
			ID:                  i,
			HashPower:           hp,
			OperatingDifficulty: diff,
			MinValueToMine:      minVal,
			MaxBlockSize:        maxSize,
			Behavior:            behavior,
		})
	}
	if len(cfg.Nodes) == 0 {
		return nil, &ConfigError{Msg: "nodes.count must be a positive integer"}
	}

	if cfg.NetDelayMean, err = getFloat(props, "network.delayMean", 100); err != nil {
		return nil, err
	}
	if cfg.NetDelayStdDev, err = getFloat(props, "network.delayStdDev", 20); err != nil {
		return nil, err
	}
	if cfg.NetDelayMin, err = getFloat(props, "network.delayMin", 10); err != nil {
		return nil, err
	}
	if cfg.NetDelayMax, err = getFloat(props, "network.delayMax", 5000); err != nil {
		return nil, err
	}

	if cfg.WorkloadArrivalRate, err = getFloat(props, "workload.arrivalRate", 0.1); err != nil {
		return nil, err
	}
	if cfg.TxSizeMean, err = getFloat(props, "workload.txSizeMean", 250); err != nil {
		return nil, err
	}
	if cfg.TxSizeStdDev, err = getFloat(props, "workload.txSizeStdDev", 50); err != nil {
		return nil, err
	}
	if cfg.TxSizeMin, err = getFloat(props, "workload.txSizeMin", 100); err != nil {
		return nil, err
	}
	if cfg.TxSizeMax, err = getFloat(props, "workload.txSizeMax", 1000); err != nil {
		return nil, err
	}
	if cfg.TxFeeMean, err = getFloat(props, "workload.txFeeMean", 10000); err != nil {
		return nil, err
	}
	if cfg.TxFeeStdDev, err = getFloat(props, "workload.txFeeStdDev", 3000); err != nil {
		return nil, err
	}
	if cfg.TxFeeMin, err = getFloat(props, "workload.txFeeMin", 0); err != nil {
		return nil, err
	}
	if cfg.TxFeeMax, err = getFloat(props, "workload.txFeeMax", 100000); err != nil {
		return nil, err
	}

	if cfg.SimulationDuration, err = getInt64(props, "simulation.duration", 0); err != nil {
		return nil, err
	}
	if cfg.MaxEvents, err = getInt64(props, "simulation.maxEvents", 0); err != nil {
		return nil, err
	}
	if cfg.Seed, err = getInt64(props, "simulation.seed", 1); err != nil {
		return nil, err
	}

	from, err := getInt(props, "simulation.numSimulations.from", 1)
	if err != nil {
		return nil, err
	}
	to, err := getInt(props, "simulation.numSimulations.to", from)
	if err != nil {
		return nil, err
	}
	if to < from {
		return nil, &ConfigError{Msg: "simulation.numSimulations.to must be >= simulation.numSimulations.from"}
	}
	cfg.NumSimulationsFrom, cfg.NumSimulationsTo = from, to

	if cfg.AttackerNodeID, err = getInt(props, "attack.nodeID", -1); err != nil {
		return nil, err
	}
	if cfg.TargetTransactionID, err = getInt(props, "attack.targetTransactionID", -1); err != nil {
		return nil, err
	}
	if cfg.RequiredConfirmations, err = getInt(props, "attack.requiredConfirmations", 6); err != nil {
		return nil, err
	}

	if raw, ok := props["node.hashPowerChanges"]; ok && raw != "" {
		entries, err := parseHashPowerChanges(raw)
		if err != nil {
			return nil, err
		}
		cfg.HashPowerChanges = entries
	}

	cfg.OutputDir = props["output.dir"]
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}

	return cfg, nil
}

func getInt(props rawProperties, key string, def int) (int, error) {
	raw, ok := props[key]
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ConfigError{Msg: fmt.Sprintf("%s: invalid integer %q", key, raw)}
	}
	return v, nil
}

func getInt64(props rawProperties, key string, def int64) (int64, error) {
	raw, ok := props[key]
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &ConfigError{Msg: fmt.Sprintf("%s: invalid integer %q", key, raw)}
	}
	return v, nil
}

func getFloat(props rawProperties, key string, def float64) (float64, error) {
	raw, ok := props[key]
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &ConfigError{Msg: fmt.Sprintf("%s: invalid number %q", key, raw)}
	}
	return v, nil
}

// parseHashPowerChanges parses the schedule grammar
// "{nodeID:power:time,nodeID:power:time,...}" into entries, reproducing
// the reference parser's exact error taxonomy so operator-facing messages
// stay recognizable.
func parseHashPowerChanges(raw string) ([]HashPowerChangeEntry, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, &ConfigError{Msg: "node.hashPowerChanges: missing opening bracket"}
	}
	if !strings.HasSuffix(trimmed, "}") {
		return nil, &ConfigError{Msg: "node.hashPowerChanges: missing closing bracket"}
	}
	body := trimmed[1 : len(trimmed)-1]
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, nil
	}

	var entries []HashPowerChangeEntry
	for _, part := range strings.Split(body, ",") {
		part = strings.TrimSpace(part)
		fields := strings.Split(part, ":")
		if len(fields) != 3 {
			return nil, &ConfigError{Msg: fmt.Sprintf("node.hashPowerChanges: entry %q must have format nodeID:power:time", part)}
		}
		nodeID, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, &ConfigError{Msg: fmt.Sprintf("node.hashPowerChanges: %q has invalid number format", fields[0])}
		}
		power, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, &ConfigError{Msg: fmt.Sprintf("node.hashPowerChanges: %q has invalid number format", fields[1])}
		}
		at, err := strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 64)
		if err != nil {
			return nil, &ConfigError{Msg: fmt.Sprintf("node.hashPowerChanges: %q has invalid number format", fields[2])}
		}
		if nodeID < 0 {
			return nil, &ConfigError{Msg: "node.hashPowerChanges: node ID cannot be negative"}
		}
		if power < 0 {
			return nil, &ConfigError{Msg: "node.hashPowerChanges: hash power cannot be negative"}
		}
		if at < 0 {
			return nil, &ConfigError{Msg: "node.hashPowerChanges: time cannot be negative"}
		}
		entries = append(entries, HashPowerChangeEntry{NodeID: nodeID, NewPower: power, AtTime: at})
	}
	return entries, nil
}
