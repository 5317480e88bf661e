package bitcoin

import "fmt"

// HonestBehavior relays every transaction and block it has not already
// seen, mines on top of whatever chain tip is currently longest, and never
// withholds anything it produces. Ported branch-for-branch from the
// reference HonestNodeBehavior: only the mempool/structure representation
// changed.
type HonestBehavior struct {
	node *Node
}

// NewHonestBehavior returns a HonestBehavior bound to n.
func NewHonestBehavior(n *Node) *HonestBehavior {
	return &HonestBehavior{node: n}
}

// conflictFree reports whether tx's declared conflict peer is unknown to
// both n's mempool and its structure. A transaction with no conflict peer
// is trivially conflict-free.
func conflictFree(n *Node, tx Transaction) bool {
	if !tx.HasConflict() {
		return true
	}
	if n.Mempool.Contains(tx.ConflictPeerID) {
		return false
	}
	return !n.Structure.ContainsTx(tx.ConflictPeerID)
}

// acceptAndRelayTx records tx as seen and, if it is conflict-free, adds it
// to n's mempool and relays it to peers. A conflicting transaction is
// marked seen (so repeated relays of it are not re-discarded noisily) but
// otherwise dropped and logged. Reports whether the transaction was
// accepted. Shared by HonestBehavior and MaliciousBehavior: transaction
// handling does not change while an attack is in progress.
func acceptAndRelayTx(sim *Simulation, n *Node, tx Transaction) bool {
	if n.KnowsTx(tx.ID) {
		return false
	}
	n.RememberTx(tx.ID)
	if !conflictFree(n, tx) {
		if sim.Reporter != nil {
			sim.Reporter.LogAttack(sim, n.ID, "DiscardingTx", fmt.Sprintf("tx %d conflicts with tx %d", tx.ID, tx.ConflictPeerID))
		}
		return false
	}
	n.Mempool.Add(tx)
	sim.BroadcastTransaction(n.ID, tx)
	return true
}

// logConflictingTx scans a just-accepted block for any transaction whose
// conflict peer is already mined elsewhere in n's structure, logging a
// conflict-detected row for each. Chain selection itself is untouched by
// this: which fork wins is still decided purely by longest-chain, the
// same way a real double-spend race resolves.
func logConflictingTx(sim *Simulation, n *Node, blk Block) {
	if sim.Reporter == nil {
		return
	}
	for _, tx := range blk.Transactions.Transactions() {
		if !tx.HasConflict() {
			continue
		}
		existing := n.Structure.FindBlockContainingTx(tx.ConflictPeerID)
		if existing == nil || existing.ID == blk.ID {
			continue
		}
		sim.Reporter.LogAttack(sim, n.ID, "ConflictDetected", fmt.Sprintf("tx %d conflicts with tx %d mined in block %d", tx.ID, tx.ConflictPeerID, existing.ID))
	}
}

func (h *HonestBehavior) OnClientTransaction(sim *Simulation, tx Transaction) {
	n := h.node
	if acceptAndRelayTx(sim, n, tx) {
		n.ConsiderMining(sim)
	}
}

func (h *HonestBehavior) OnPropagatedTransaction(sim *Simulation, tx Transaction, fromNodeID int) {
	n := h.node
	if acceptAndRelayTx(sim, n, tx) {
		n.ConsiderMining(sim)
	}
}

// receiveAndPropagateBlock adds blk to n's structure, evicts its
// transactions from the mempool, logs it, and relays it to peers. Reports
// whether the block was newly accepted (false on a duplicate or on any
// StructureError, which is logged and otherwise ignored).
func receiveAndPropagateBlock(sim *Simulation, n *Node, blk Block, event string) bool {
	if n.Structure.Contains(blk.ID) {
		sim.logError(&StructureError{Msg: "duplicate block delivery ignored"})
		return false
	}

	blk.CurrentNodeID = n.ID
	blk.LastEvent = event
	if err := n.Structure.Add(blk); err != nil {
		sim.logError(err)
		return false
	}
	n.Mempool.RemoveGroup(blk.Transactions)
	logConflictingTx(sim, n, blk)

	if sim.Reporter != nil {
		sim.Reporter.LogBlock(sim, n.ID, blk, event)
		sim.Reporter.LogStructure(sim, n.ID)
	}

	sim.BroadcastBlock(n.ID, blk)
	return true
}

func (h *HonestBehavior) OnPropagatedBlock(sim *Simulation, blk Block, fromNodeID int) {
	n := h.node
	prevTip := n.Structure.LongestTip()
	if !receiveAndPropagateBlock(sim, n, blk, "Received") {
		return
	}
	h.handleTipChange(sim, prevTip)
}

func (h *HonestBehavior) OnValidationComplete(sim *Simulation, blk Block) {
	n := h.node
	tip := n.Structure.LongestTip()
	if tip != nil {
		blk.SetParent(tip.ID)
	}
	blk.CurrentNodeID = n.ID
	blk.Validate(blk.Transactions, sim.Scheduler.CurrentTime(), n.ID, "Mined", n.OperatingDifficulty, n.PendingCycles)

	if err := n.Structure.Add(blk); err != nil {
		sim.logError(err)
		n.FinishMining()
		return
	}
	n.Mempool.RemoveGroup(blk.Transactions)

	if sim.Reporter != nil {
		sim.Reporter.LogBlock(sim, n.ID, blk, "Mined")
		sim.Reporter.LogStructure(sim, n.ID)
	}

	sim.BroadcastBlock(n.ID, blk)
	n.FinishMining()
	n.ConsiderMining(sim)
}

// handleTipChange abandons the in-flight candidate and restarts mining
// whenever the longest tip moved out from under it, otherwise leaves an
// existing mining attempt running undisturbed.
func (h *HonestBehavior) handleTipChange(sim *Simulation, prevTip *Block) {
	n := h.node
	newTip := n.Structure.LongestTip()
	if newTip == nil {
		return
	}
	if prevTip != nil && newTip.ID == prevTip.ID {
		return
	}
	if n.State == Mining {
		n.AbandonMining()
	}
	n.ConsiderMining(sim)
}
