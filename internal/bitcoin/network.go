package bitcoin

import "github.com/liaskos-cmg/cnsim-bitcoin/pkg/poissonclock"

// NetworkDelay draws a propagation delay in simulated milliseconds between
// any two nodes from a clamped Normal distribution; the model does not
// distinguish specific node pairs, matching the reference implementation's
// single network-wide latency distribution.
func (sim *Simulation) NetworkDelay() int64 {
	d := poissonclock.Normal(sim.Rand, sim.NetDelayMean, sim.NetDelayStdDev, sim.NetDelayMin, sim.NetDelayMax)
	return int64(d)
}

// BroadcastTransaction schedules a PropagatedTransaction event to every
// node other than fromNodeID that has not already seen tx, each after an
// independently sampled network delay.
func (sim *Simulation) BroadcastTransaction(fromNodeID int, tx Transaction) {
	for _, id := range sim.SortedNodeIDs() {
		if id == fromNodeID {
			continue
		}
		peer := sim.Nodes[id]
		if peer.KnowsTx(tx.ID) {
			continue
		}
		fireTime := sim.Scheduler.CurrentTime() + sim.NetworkDelay()
		sim.Scheduler.Schedule(fireTime, EventPropagatedTransaction, PropagatedTransactionPayload{
			NodeID:     id,
			FromNodeID: fromNodeID,
			Tx:         tx,
		})
	}
}

// BroadcastBlock schedules a PropagatedBlock event to every node other
// than fromNodeID, each after an independently sampled network delay. The
// block is cloned per recipient so downstream mutation (height
// recomputation, CurrentNodeID stamping) never crosses node boundaries.
func (sim *Simulation) BroadcastBlock(fromNodeID int, blk Block) {
	for _, id := range sim.SortedNodeIDs() {
		if id == fromNodeID {
			continue
		}
		fireTime := sim.Scheduler.CurrentTime() + sim.NetworkDelay()
		sim.Scheduler.Schedule(fireTime, EventPropagatedBlock, PropagatedBlockPayload{
			NodeID:     id,
			FromNodeID: fromNodeID,
			Block:      blk.Clone(),
		})
	}
}
