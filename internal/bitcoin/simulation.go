package bitcoin

import (
	"math/rand"
	"sort"

	"github.com/liaskos-cmg/cnsim-bitcoin/internal/analysis"
	"github.com/liaskos-cmg/cnsim-bitcoin/internal/engine"
)

// Event kinds dispatched by a Simulation's scheduler. Each carries a
// distinct payload type; the dispatch loop switches on Kind and then
// type-asserts the payload expected for it, so a mismatch is an
// AssertionError (a programmer bug, not a runtime condition to recover
// from).
const (
	EventClientTransaction engine.Kind = iota
	EventPropagatedTransaction
	EventPropagatedBlock
	EventValidationComplete
	EventHashPowerChange
	EventBehaviorChange
	EventTxArrival
)

// ClientTransactionPayload carries a transaction injected at NodeID by the
// workload generator.
type ClientTransactionPayload struct {
	NodeID int
	Tx     Transaction
}

// PropagatedTransactionPayload carries a transaction relayed from FromNodeID
// to NodeID across the simulated network.
type PropagatedTransactionPayload struct {
	NodeID     int
	FromNodeID int
	Tx         Transaction
}

// PropagatedBlockPayload carries a block relayed from FromNodeID to NodeID.
type PropagatedBlockPayload struct {
	NodeID     int
	FromNodeID int
	Block      Block
}

// ValidationPayload identifies the node and candidate block a PoW timer
// fired for.
type ValidationPayload struct {
	NodeID  int
	BlockID int
}

// HashPowerChangePayload reassigns NodeID's hash power at the event's fire
// time; any PoW draw already in flight is unaffected (spec: only new
// StartMining calls see the new rate).
type HashPowerChangePayload struct {
	NodeID       int
	NewHashPower float64
}

// BehaviorChangePayload swaps NodeID's NodeBehavior strategy at the
// event's fire time.
type BehaviorChangePayload struct {
	NodeID      int
	NewBehavior func(n *Node) NodeBehavior
}

// AssertionError signals an implementation-bug invariant violation: an
// event payload of the wrong type for its Kind, or an unknown event Kind,
// conditions that should be structurally impossible if the simulation is
// wired correctly. Callers panic with it rather than attempting to
// continue. An event addressed to an unregistered node ID is an EventError
// instead.
type AssertionError struct {
	Msg string
}

func (e *AssertionError) Error() string { return e.Msg }

// EventError signals a non-fatal dispatch condition — an event addressed
// to a node ID that is not (or no longer) registered — distinct from
// AssertionError because it is a plausible runtime condition (a
// misconfigured run, a node removed mid-simulation by a future feature)
// rather than structurally impossible wiring. Logged and the event is
// dropped; the run continues.
type EventError struct {
	Msg string
}

func (e *EventError) Error() string { return e.Msg }

// Reporter receives structured records as the simulation runs. A nil
// Reporter field on Simulation is valid; every Log call is a no-op then.
// The concrete implementation (internal/reporter.Reporter) buffers rows
// and flushes them to CSV under a rate limit.
type Reporter interface {
	LogBlock(sim *Simulation, nodeID int, blk Block, event string)
	LogStructure(sim *Simulation, nodeID int)
	LogAttack(sim *Simulation, nodeID int, event string, detail string)
	LogEvent(sim *Simulation, kind engine.Kind, detail string)
	LogError(sim *Simulation, err error)
}

// Simulation owns the scheduler, the node set, the shared random source,
// and the per-run ID allocators. Java's static Block.currID / Transaction
// currID counters are replaced here by simulation-scoped counters so that
// internal/runner can execute many Simulations concurrently without
// cross-run ID collisions (spec.md §9 redesign flag).
type Simulation struct {
	Scheduler *engine.Scheduler
	Nodes     map[int]*Node
	Rand      *rand.Rand
	Reporter  Reporter

	NetDelayMean   float64
	NetDelayStdDev float64
	NetDelayMin    float64
	NetDelayMax    float64

	Workload *Workload

	// Metrics accumulates double-spend attack outcomes for this run, if a
	// malicious node is present. Left nil runs without a collector; every
	// Record call site checks for nil first.
	Metrics *analysis.MetricsCollector

	nextBlockID int
	nextTxID    int

	StopReason string
}

// NewSimulation constructs an empty Simulation whose scheduler dispatches
// through Simulation.dispatch.
func NewSimulation(seed int64) *Simulation {
	sim := &Simulation{
		Nodes: make(map[int]*Node),
		Rand:  rand.New(rand.NewSource(seed)),
	}
	sim.Scheduler = engine.NewScheduler(sim.dispatch)
	return sim
}

// AddNode registers a node under its ID.
func (sim *Simulation) AddNode(n *Node) {
	sim.Nodes[n.ID] = n
}

// SortedNodeIDs returns node IDs in ascending order, used wherever
// iteration order must be deterministic (peer broadcast, reporting).
func (sim *Simulation) SortedNodeIDs() []int {
	ids := make([]int, 0, len(sim.Nodes))
	for id := range sim.Nodes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// NextBlockID returns a fresh block ID unique within this simulation run.
func (sim *Simulation) NextBlockID() int {
	id := sim.nextBlockID
	sim.nextBlockID++
	return id
}

// NextTxID returns a fresh transaction ID unique within this simulation run.
func (sim *Simulation) NextTxID() int {
	id := sim.nextTxID
	sim.nextTxID++
	return id
}

// Run drives the scheduler to completion (queue exhaustion or a
// configured stop condition) and records the stop reason.
func (sim *Simulation) Run() string {
	sim.StopReason = sim.Scheduler.Run()
	return sim.StopReason
}

func (sim *Simulation) logError(err error) {
	if sim.Reporter != nil {
		sim.Reporter.LogError(sim, err)
	}
}

// dispatch is the scheduler.Handler for every Simulation; it type-asserts
// the payload for e.Kind and routes to the target node's current
// NodeBehavior, or applies a reconfiguration event directly.
func (sim *Simulation) dispatch(e *engine.Event) {
	if sim.Reporter != nil {
		sim.Reporter.LogEvent(sim, e.Kind, "")
	}

	switch e.Kind {
	case EventClientTransaction:
		p, ok := e.Payload.(ClientTransactionPayload)
		if !ok {
			panic(&AssertionError{Msg: "EventClientTransaction payload type mismatch"})
		}
		n, ok := sim.node(p.NodeID)
		if !ok {
			return
		}
		n.Behavior.OnClientTransaction(sim, p.Tx)

	case EventPropagatedTransaction:
		p, ok := e.Payload.(PropagatedTransactionPayload)
		if !ok {
			panic(&AssertionError{Msg: "EventPropagatedTransaction payload type mismatch"})
		}
		n, ok := sim.node(p.NodeID)
		if !ok {
			return
		}
		n.Behavior.OnPropagatedTransaction(sim, p.Tx, p.FromNodeID)

	case EventPropagatedBlock:
		p, ok := e.Payload.(PropagatedBlockPayload)
		if !ok {
			panic(&AssertionError{Msg: "EventPropagatedBlock payload type mismatch"})
		}
		n, ok := sim.node(p.NodeID)
		if !ok {
			return
		}
		n.Behavior.OnPropagatedBlock(sim, p.Block, p.FromNodeID)

	case EventValidationComplete:
		p, ok := e.Payload.(ValidationPayload)
		if !ok {
			panic(&AssertionError{Msg: "EventValidationComplete payload type mismatch"})
		}
		n, ok := sim.node(p.NodeID)
		if !ok {
			return
		}
		if n.State != Mining || n.CurrentCandidate == nil || n.CurrentCandidate.ID != p.BlockID {
			// Candidate was abandoned after the timer was already
			// dispatched-but-not-yet-ignored; nothing to do.
			return
		}
		blk := *n.CurrentCandidate
		n.Behavior.OnValidationComplete(sim, blk)

	case EventHashPowerChange:
		p, ok := e.Payload.(HashPowerChangePayload)
		if !ok {
			panic(&AssertionError{Msg: "EventHashPowerChange payload type mismatch"})
		}
		n, ok := sim.node(p.NodeID)
		if !ok {
			return
		}
		// Every Node always mines when worth it regardless of current
		// behavior strategy, so there is no "non-miner" node type to
		// reject a hash power change for; applying it unconditionally is
		// correct for every node this simulation can construct.
		n.HashPower = p.NewHashPower

	case EventBehaviorChange:
		p, ok := e.Payload.(BehaviorChangePayload)
		if !ok {
			panic(&AssertionError{Msg: "EventBehaviorChange payload type mismatch"})
		}
		n, ok := sim.node(p.NodeID)
		if !ok {
			return
		}
		n.Behavior = p.NewBehavior(n)

	case EventTxArrival:
		p, ok := e.Payload.(TxArrivalPayload)
		if !ok {
			panic(&AssertionError{Msg: "EventTxArrival payload type mismatch"})
		}
		sim.handleTxArrival(p)

	default:
		panic(&AssertionError{Msg: "unknown event kind dispatched"})
	}
}

// node looks up id, logging a non-fatal EventError and reporting false if
// the event was addressed to a node that does not exist.
func (sim *Simulation) node(id int) (*Node, bool) {
	n, ok := sim.Nodes[id]
	if !ok {
		sim.logError(&EventError{Msg: "event addressed to unknown node ID"})
		return nil, false
	}
	return n, true
}
