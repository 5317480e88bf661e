package bitcoin

import "github.com/liaskos-cmg/cnsim-bitcoin/pkg/poissonclock"

// TxArrivalPayload carries no data beyond triggering the next sample; the
// generator both delivers the current transaction and schedules the next
// arrival, matching a self-perpetuating Poisson arrival process.
type TxArrivalPayload struct{}

// Workload samples the transaction-arrival process: inter-arrival time,
// size, and fee are each drawn independently, and every arriving
// transaction is injected at a uniformly chosen node.
type Workload struct {
	ArrivalRate float64 // transactions per simulated millisecond

	SizeMean, SizeStdDev, SizeMin, SizeMax float64
	FeeMean, FeeStdDev, FeeMin, FeeMax     float64

	ConflictProbability float64

	pending Transaction
	hasPend bool
}

// Start schedules the first arrival.
func (w *Workload) Start(sim *Simulation) {
	sim.Scheduler.Schedule(sim.Scheduler.CurrentTime(), EventTxArrival, TxArrivalPayload{})
}

func (sim *Simulation) handleTxArrival(_ TxArrivalPayload) {
	w := sim.Workload
	if w == nil || len(sim.Nodes) == 0 {
		return
	}

	tx := Transaction{
		ID:             sim.NextTxID(),
		Size:           int64(poissonclock.Normal(sim.Rand, w.SizeMean, w.SizeStdDev, w.SizeMin, w.SizeMax)),
		Fee:            int64(poissonclock.Normal(sim.Rand, w.FeeMean, w.FeeStdDev, w.FeeMin, w.FeeMax)),
		ConflictPeerID: NoConflict,
	}

	ids := sim.SortedNodeIDs()
	target := ids[sim.Rand.Intn(len(ids))]

	sim.Scheduler.Schedule(sim.Scheduler.CurrentTime(), EventClientTransaction, ClientTransactionPayload{
		NodeID: target,
		Tx:     tx,
	})

	next := sim.Scheduler.CurrentTime() + int64(poissonclock.Exponential(sim.Rand, w.ArrivalRate))
	sim.Scheduler.Schedule(next, EventTxArrival, TxArrivalPayload{})
}
