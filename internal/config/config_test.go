package config

import (
	"strings"
	"testing"
)

func minimalProps() string {
	return "nodes.count=2\n" +
		"node.0.hashpower=0.6\n" +
		"node.0.difficulty=1\n" +
		"node.0.behavior=honest\n" +
		"node.1.hashpower=0.4\n" +
		"node.1.difficulty=1\n" +
		"node.1.behavior=malicious\n" +
		"attack.nodeID=1\n" +
		"attack.targetTransactionID=42\n"
}

func TestParseMinimalConfig(t *testing.T) {
	cfg, err := Parse(strings.NewReader(minimalProps()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(cfg.Nodes))
	}
	if cfg.Nodes[0].Behavior != "honest" || cfg.Nodes[1].Behavior != "malicious" {
		t.Fatalf("unexpected node behaviors: %+v", cfg.Nodes)
	}
	if cfg.AttackerNodeID != 1 || cfg.TargetTransactionID != 42 {
		t.Fatalf("unexpected attack config: nodeID=%d txID=%d", cfg.AttackerNodeID, cfg.TargetTransactionID)
	}
}

func TestParseIgnoresCommentsAndBlankLines(t *testing.T) {
	raw := "# a comment\n\n" + minimalProps() + "\n# trailing comment\n"
	cfg, err := Parse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(cfg.Nodes))
	}
}

func TestParseMissingNodesCountFails(t *testing.T) {
	_, err := Parse(strings.NewReader("attack.nodeID=0\n"))
	if err == nil {
		t.Fatalf("expected error when nodes.count is missing")
	}
}

func TestParseInvalidBehaviorFails(t *testing.T) {
	raw := "nodes.count=1\nnode.0.hashpower=1\nnode.0.behavior=confused\n"
	_, err := Parse(strings.NewReader(raw))
	if err == nil {
		t.Fatalf("expected error for invalid behavior")
	}
}

func TestParseNumSimulationsRangeValidation(t *testing.T) {
	raw := minimalProps() + "simulation.numSimulations.from=10\nsimulation.numSimulations.to=5\n"
	_, err := Parse(strings.NewReader(raw))
	if err == nil {
		t.Fatalf("expected error when numSimulations.to < from")
	}
}

func TestParseHashPowerChangesValid(t *testing.T) {
	raw := minimalProps() + "node.hashPowerChanges={0:0.25:1000,0:0.5:2000,0:0.7:3000}\n"
	cfg, err := Parse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.HashPowerChanges) != 3 {
		t.Fatalf("expected 3 schedule entries, got %d", len(cfg.HashPowerChanges))
	}
	if cfg.HashPowerChanges[1].NewPower != 0.5 || cfg.HashPowerChanges[1].AtTime != 2000 {
		t.Fatalf("unexpected second entry: %+v", cfg.HashPowerChanges[1])
	}
}

func TestParseHashPowerChangesGrammarErrors(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantSub string
	}{
		{"missing opening bracket", "0:0.5:100}", "missing opening bracket"},
		{"missing closing bracket", "{0:0.5:100", "missing closing bracket"},
		{"wrong field count", "{0:0.5}", "must have format"},
		{"non-numeric node id", "{x:0.5:100}", "invalid number format"},
		{"non-numeric power", "{0:abc:100}", "invalid number format"},
		{"non-numeric time", "{0:0.5:abc}", "invalid number format"},
		{"negative node id", "{-1:0.5:100}", "cannot be negative"},
		{"negative power", "{0:-0.5:100}", "cannot be negative"},
		{"negative time", "{0:0.5:-100}", "cannot be negative"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := minimalProps() + "node.hashPowerChanges=" + tc.raw + "\n"
			_, err := Parse(strings.NewReader(raw))
			if err == nil {
				t.Fatalf("expected error for %q", tc.raw)
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("expected error to contain %q, got %q", tc.wantSub, err.Error())
			}
		})
	}
}

func TestParseHashPowerChangesEmptyBracesIsNoSchedule(t *testing.T) {
	raw := minimalProps() + "node.hashPowerChanges={}\n"
	cfg, err := Parse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.HashPowerChanges) != 0 {
		t.Fatalf("expected no schedule entries, got %d", len(cfg.HashPowerChanges))
	}
}
