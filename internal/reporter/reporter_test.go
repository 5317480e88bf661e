package reporter

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/liaskos-cmg/cnsim-bitcoin/internal/bitcoin"
)

func newTestReporter() (*Reporter, *bytes.Buffer, *bytes.Buffer, *bytes.Buffer, *bytes.Buffer, *bytes.Buffer) {
	blockBuf, structureBuf, attackBuf, eventBuf, errorBuf := &bytes.Buffer{}, &bytes.Buffer{}, &bytes.Buffer{}, &bytes.Buffer{}, &bytes.Buffer{}
	r := New(zap.NewNop(), 0, blockBuf, structureBuf, attackBuf, eventBuf, errorBuf)
	return r, blockBuf, structureBuf, attackBuf, eventBuf, errorBuf
}

func newTestSim() *bitcoin.Simulation {
	sim := bitcoin.NewSimulation(1)
	n := bitcoin.NewNode(0, 1, 1, 0, 1_000_000)
	n.Behavior = bitcoin.NewHonestBehavior(n)
	sim.AddNode(n)
	return sim
}

func TestLogBlockWritesRow(t *testing.T) {
	r, blockBuf, _, _, _, _ := newTestReporter()
	sim := newTestSim()
	blk := bitcoin.NewBlock(0, bitcoin.NewTransactionGroup(nil))

	r.LogBlock(sim, 0, blk, "Mined")
	r.Flush()

	out := blockBuf.String()
	if !strings.Contains(out, "SimTime") {
		t.Fatalf("expected header row, got %q", out)
	}
	if !strings.Contains(out, "Mined") {
		t.Fatalf("expected Mined row, got %q", out)
	}
}

func TestLogErrorWritesRow(t *testing.T) {
	r, _, _, _, _, errorBuf := newTestReporter()
	sim := newTestSim()

	r.LogError(sim, &bitcoin.StructureError{Msg: "boom"})
	r.Flush()

	if !strings.Contains(errorBuf.String(), "boom") {
		t.Fatalf("expected error message in error log, got %q", errorBuf.String())
	}
}

func TestLogStructureWritesHeightAndTip(t *testing.T) {
	r, _, structureBuf, _, _, _ := newTestReporter()
	sim := newTestSim()
	n := sim.Nodes[0]
	blk := bitcoin.NewBlock(sim.NextBlockID(), bitcoin.NewTransactionGroup(nil))
	if err := n.Structure.Add(blk); err != nil {
		t.Fatalf("unexpected error adding block: %v", err)
	}

	r.LogStructure(sim, 0)
	r.Flush()

	out := structureBuf.String()
	if !strings.Contains(out, "0") {
		t.Fatalf("expected node/tip data in structure log, got %q", out)
	}
}
