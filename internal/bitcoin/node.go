package bitcoin

import (
	"github.com/liaskos-cmg/cnsim-bitcoin/internal/engine"
	"github.com/liaskos-cmg/cnsim-bitcoin/pkg/poissonclock"
)

// MiningState is the two-state machine every Node's mining controller runs
// regardless of which NodeBehavior strategy currently drives it: Idle or
// Mining a specific candidate block, tracked by a live validation event
// reference so it can be cancelled if the candidate is invalidated before
// the PoW timer fires.
type MiningState int

const (
	Idle MiningState = iota
	Mining
)

func (s MiningState) String() string {
	if s == Mining {
		return "Mining"
	}
	return "Idle"
}

// Node is one participant in the simulated network. Its reactive behavior
// (event_NodeReceives*, event_NodeCompletesValidation) is delegated to a
// NodeBehavior strategy; the mining state machine below is shared by every
// strategy, since honest and malicious nodes mine candidate blocks the
// same way and differ only in what they do with the result.
type Node struct {
	ID int

	HashPower           float64 // fraction or absolute units, per config
	OperatingDifficulty float64
	MinValueToMine      int64
	MaxBlockSize        int64

	Behavior NodeBehavior

	Structure *Blockchain
	Mempool   TransactionGroup
	knownTx   map[int]bool

	State            MiningState
	CurrentEvent     *engine.Event
	CurrentCandidate *Block

	// PendingCycles is hashPower*duration for the PoW draw backing
	// CurrentCandidate, computed once at StartMining and consumed by the
	// behavior's OnValidationComplete when it finalizes the block.
	PendingCycles float64
}

// NewNode constructs an Idle node with an empty mempool and structure. The
// caller assigns Behavior after construction, since HonestBehavior and
// MaliciousBehavior both hold a back-reference to the Node they drive.
func NewNode(id int, hashPower, difficulty float64, minValueToMine, maxBlockSize int64) *Node {
	return &Node{
		ID:                  id,
		HashPower:           hashPower,
		OperatingDifficulty: difficulty,
		MinValueToMine:      minValueToMine,
		MaxBlockSize:        maxBlockSize,
		Structure:           NewBlockchain(),
		Mempool:             NewTransactionGroup(nil),
		knownTx:             make(map[int]bool),
	}
}

// KnowsTx reports whether the node has already seen a transaction, whether
// or not it currently sits in the mempool (a transaction may have already
// been mined into a block and evicted).
func (n *Node) KnowsTx(id int) bool {
	return n.knownTx[id]
}

// RememberTx marks a transaction as seen so it is never relayed twice.
func (n *Node) RememberTx(id int) {
	n.knownTx[id] = true
}

// ReconstructMiningPool selects the highest fee/size transactions from the
// mempool that fit within MaxBlockSize, mirroring the reference
// implementation's greedy fee-density block template construction.
func (n *Node) ReconstructMiningPool() TransactionGroup {
	return n.Mempool.TopNByFeePerSize(n.MaxBlockSize)
}

// IsWorthMining reports whether a candidate pool's total fee clears the
// node's configured mining threshold. A node with MinValueToMine of 0
// always finds an empty pool worth mining, matching a miner willing to
// produce empty blocks to keep hash power committed.
func (n *Node) IsWorthMining(pool TransactionGroup) bool {
	return pool.TotalFee() >= n.MinValueToMine
}

// ConsiderMining evaluates whether the node should start mining a new
// candidate. It is a no-op while already Mining: the caller is expected to
// have cancelled any stale candidate first via AbandonMining.
func (n *Node) ConsiderMining(sim *Simulation) {
	if n.State == Mining {
		return
	}
	pool := n.ReconstructMiningPool()
	if !n.IsWorthMining(pool) {
		return
	}
	n.StartMining(sim, pool)
}

// StartMining creates a candidate block over pool and schedules the PoW
// timer that will fire event_NodeCompletesValidation once found. The
// duration is drawn from Exponential(hashPower/difficulty). A node whose
// HashPower is not positive never mines: the call returns without creating
// a candidate or scheduling anything, and the node stays Idle.
func (n *Node) StartMining(sim *Simulation, pool TransactionGroup) {
	if n.HashPower <= 0 {
		return
	}
	candidate := NewBlock(sim.NextBlockID(), pool)
	n.CurrentCandidate = &candidate
	n.State = Mining

	rate := n.HashPower / n.OperatingDifficulty
	duration := poissonclock.Exponential(sim.Rand, rate)
	n.PendingCycles = n.HashPower * duration
	fireTime := sim.Scheduler.CurrentTime() + int64(duration)

	ev := sim.Scheduler.Schedule(fireTime, EventValidationComplete, ValidationPayload{
		NodeID:  n.ID,
		BlockID: candidate.ID,
	})
	n.CurrentEvent = ev
}

// AbandonMining cancels any in-flight PoW timer and returns to Idle. Used
// when a newly received block makes the current candidate stale (its
// parent tip changed) before the timer fired.
func (n *Node) AbandonMining() {
	if n.CurrentEvent != nil {
		n.CurrentEvent.Ignore()
	}
	n.CurrentEvent = nil
	n.CurrentCandidate = nil
	n.PendingCycles = 0
	n.State = Idle
}

// FinishMining transitions back to Idle after a validation event fires,
// successfully or not, clearing the in-flight references.
func (n *Node) FinishMining() {
	n.CurrentEvent = nil
	n.CurrentCandidate = nil
	n.PendingCycles = 0
	n.State = Idle
}
