package bitcoin

import "fmt"

// AttackState is the double-spend attacker's state machine: Idle while
// behaving like any other miner, Watching once a target transaction has
// been seen and the attacker is waiting for it to accumulate enough
// confirmations on the public chain, Attacking while a hidden fork is
// being built in secret, and Revealing for the single instant the hidden
// chain is released.
type AttackState int

const (
	AttackIdle AttackState = iota
	AttackWatching
	AttackAttacking
	AttackRevealing
)

func (s AttackState) String() string {
	switch s {
	case AttackWatching:
		return "Watching"
	case AttackAttacking:
		return "Attacking"
	case AttackRevealing:
		return "Revealing"
	default:
		return "Idle"
	}
}

// MaliciousBehavior implements a Race/Finney-style double-spend attack: it
// behaves exactly like an honest node until its target transaction is
// mined into a block on the public chain, then waits for that block to
// accumulate RequiredConfs confirmations before it starts building a
// hidden fork below it. The hidden fork is released once it is long
// enough to win the longest-chain race, or abandoned once the public
// chain has pulled too far ahead.
type MaliciousBehavior struct {
	node *Node

	TargetTxID    int
	MinChainLen   int
	MaxChainLen   int
	RequiredConfs int

	state State
}

// State is the attacker's mutable progress, split out from
// MaliciousBehavior so tests can construct and inspect it directly.
type State struct {
	Phase AttackState

	// HasTargetBlock and TargetBlock record the block that first buried
	// the target transaction, once seen, so confirmations can be counted
	// against its height (targetTransactionBlockHeight in the reference).
	HasTargetBlock bool
	TargetBlock    Block

	ForkBaseID          int // public block this attack forks below
	HiddenChain         []Block
	PublicHeightAtStart int // calculateBlockchainSizeAtAttackStart snapshot
}

// NewMaliciousBehavior returns a MaliciousBehavior bound to n, watching
// for targetTxID with the reference implementation's default chain-length
// bounds (MIN_CHAIN_LENGTH=2, MAX_CHAIN_LENGTH=15).
func NewMaliciousBehavior(n *Node, targetTxID, requiredConfirmations int) *MaliciousBehavior {
	return &MaliciousBehavior{
		node:          n,
		TargetTxID:    targetTxID,
		MinChainLen:   2,
		MaxChainLen:   15,
		RequiredConfs: requiredConfirmations,
		state:         State{Phase: AttackIdle},
	}
}

func (m *MaliciousBehavior) OnClientTransaction(sim *Simulation, tx Transaction) {
	n := m.node
	if acceptAndRelayTx(sim, n, tx) {
		if m.state.Phase != AttackAttacking {
			n.ConsiderMining(sim)
		}
	}
	m.checkStartWatching(tx)
}

func (m *MaliciousBehavior) OnPropagatedTransaction(sim *Simulation, tx Transaction, fromNodeID int) {
	n := m.node
	if acceptAndRelayTx(sim, n, tx) {
		if m.state.Phase != AttackAttacking {
			n.ConsiderMining(sim)
		}
	}
	m.checkStartWatching(tx)
}

// checkStartWatching transitions Idle -> Watching the first time the
// target transaction is observed anywhere (client or relay), before it
// has been mined into any block.
func (m *MaliciousBehavior) checkStartWatching(tx Transaction) {
	if m.state.Phase == AttackIdle && tx.ID == m.TargetTxID {
		m.state.Phase = AttackWatching
	}
}

// OnPropagatedBlock implements the reference three-branch dispatch: while
// Watching, every public block is checked against the confirmation gate
// via noteBlockForTarget; any public block seen while Attacking updates
// the race tally and may trigger a reveal or an abort; otherwise the
// block is handled exactly as an honest node would.
func (m *MaliciousBehavior) OnPropagatedBlock(sim *Simulation, blk Block, fromNodeID int) {
	n := m.node

	switch m.state.Phase {
	case AttackWatching:
		prevTip := n.Structure.LongestTip()
		if !receiveAndPropagateBlock(sim, n, blk, "Received") {
			return
		}
		if m.noteBlockForTarget(sim, blk) {
			return
		}
		m.reconsiderAfterPublicBlock(sim, prevTip)

	case AttackAttacking, AttackRevealing:
		m.handleNewBlockDuringAttack(sim, blk)

	default: // Idle
		prevTip := n.Structure.LongestTip()
		if !receiveAndPropagateBlock(sim, n, blk, "Received") {
			return
		}
		m.reconsiderAfterPublicBlock(sim, prevTip)
	}
}

func (m *MaliciousBehavior) reconsiderAfterPublicBlock(sim *Simulation, prevTip *Block) {
	n := m.node
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

// noteBlockForTarget implements hasEnoughConfirmations/getCurrentConfirmations
// from the reference: the first time a block containing the target
// transaction is seen, its height is recorded (targetTransactionBlockHeight);
// on every call afterward the attack starts once the public tip has
// accumulated RequiredConfs confirmations above that height. Reports
// whether the attack was started.
func (m *MaliciousBehavior) noteBlockForTarget(sim *Simulation, blk Block) bool {
	n := m.node

	if !m.state.HasTargetBlock {
		if !blk.Contains(m.TargetTxID) {
			return false
		}
		target := blk
		if stored, ok := n.Structure.Block(blk.ID); ok {
			target = stored
		}
		m.state.HasTargetBlock = true
		m.state.TargetBlock = target
		if m.state.Phase == AttackIdle {
			m.state.Phase = AttackWatching
		}
	}

	if m.state.Phase != AttackWatching || m.currentConfirmations() < m.RequiredConfs {
		return false
	}
	m.startAttack(sim)
	return true
}

// currentConfirmations is the public tip's height minus the target
// block's height, 0 until the target block has been seen at all.
func (m *MaliciousBehavior) currentConfirmations() int {
	if !m.state.HasTargetBlock {
		return 0
	}
	return m.node.Structure.Height() - m.state.TargetBlock.Height
}

// startAttack records the fork base below the target block and begins
// mining a hidden chain from it, snapshotting the public height the
// reference's calculateBlockchainSizeAtAttackStart way: one less than the
// tip's height if the tip itself is the block burying the target
// (RequiredConfs==0), otherwise the tip's height as-is.
func (m *MaliciousBehavior) startAttack(sim *Simulation) {
	n := m.node

	target := m.state.TargetBlock
	forkBase := NoParent
	if target.HasParent {
		forkBase = target.ParentID
	}

	sizeStart := 0
	if tip := n.Structure.LongestTip(); tip != nil {
		sizeStart = tip.Height
		if tip.Contains(m.TargetTxID) {
			sizeStart--
		}
	}

	m.state.Phase = AttackAttacking
	m.state.ForkBaseID = forkBase
	m.state.HiddenChain = nil
	m.state.PublicHeightAtStart = sizeStart

	if sim.Reporter != nil {
		sim.Reporter.LogAttack(sim, n.ID, "AttackStart", fmt.Sprintf("forkBase=%d publicHeight=%d", forkBase, sizeStart))
	}
	if sim.Metrics != nil {
		sim.Metrics.RecordAttackStart()
	}

	if n.State == Mining {
		n.AbandonMining()
	}
	m.startHiddenMining(sim)
}

// startHiddenMining constructs a candidate block extending the current
// tip of the hidden chain (or the fork base, if no hidden blocks exist
// yet) and starts its PoW timer exactly like honest mining; only what
// happens when the timer fires differs.
func (m *MaliciousBehavior) startHiddenMining(sim *Simulation) {
	n := m.node
	pool := n.ReconstructMiningPool()
	n.StartMining(sim, pool)
}

// OnValidationComplete finalizes a mined block. While attacking, the
// block is appended to the hidden chain instead of being broadcast; while
// idle or watching it is broadcast like an honest node's block, and if it
// itself buries the target transaction it feeds the same confirmation
// gate as a propagated block would.
func (m *MaliciousBehavior) OnValidationComplete(sim *Simulation, blk Block) {
	n := m.node

	if m.state.Phase != AttackAttacking {
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
		if m.noteBlockForTarget(sim, blk) {
			return
		}
		n.ConsiderMining(sim)
		return
	}

	parentID := m.state.ForkBaseID
	hasParent := m.state.ForkBaseID != NoParent
	if len(m.state.HiddenChain) > 0 {
		last := m.state.HiddenChain[len(m.state.HiddenChain)-1]
		parentID = last.ID
		hasParent = true
	}
	if hasParent {
		blk.SetParent(parentID)
	}
	blk.CurrentNodeID = n.ID
	blk.Validate(blk.Transactions, sim.Scheduler.CurrentTime(), n.ID, "MinedHidden", n.OperatingDifficulty, n.PendingCycles)
	m.state.HiddenChain = append(m.state.HiddenChain, blk)

	if sim.Reporter != nil {
		sim.Reporter.LogAttack(sim, n.ID, "HiddenBlockMined", fmt.Sprintf("hiddenLen=%d publicGrowth=%d", len(m.state.HiddenChain), m.publicGrowth()))
	}
	if sim.Metrics != nil {
		sim.Metrics.RecordHiddenBlockMined()
	}

	n.FinishMining()
	m.evaluateReveal(sim)
}

// handleNewBlockDuringAttack tallies a public block mined by someone else
// while the attacker holds a hidden fork, then checks whether the reveal
// or abort thresholds have been crossed.
func (m *MaliciousBehavior) handleNewBlockDuringAttack(sim *Simulation, blk Block) {
	n := m.node
	if n.Structure.Contains(blk.ID) {
		sim.logError(&StructureError{Msg: "duplicate block delivery ignored"})
		return
	}
	blk.CurrentNodeID = n.ID
	blk.LastEvent = "Received"
	if err := n.Structure.Add(blk); err != nil {
		sim.logError(err)
		return
	}
	sim.BroadcastBlock(n.ID, blk)
	if sim.Metrics != nil {
		sim.Metrics.RecordPublicBlockMined()
	}

	m.evaluateReveal(sim)
}

// publicGrowth is the number of public blocks added since the attack
// started, derived from the current public height against the
// PublicHeightAtStart snapshot rather than an incrementing counter, so it
// stays correct even if a public block is observed more than once.
func (m *MaliciousBehavior) publicGrowth() int {
	return m.node.Structure.Height() - m.state.PublicHeightAtStart
}

// shouldReveal implements the reference release rule: reveal once the
// hidden chain is ahead of the public chain's growth and has cleared the
// minimum lead, or unconditionally once the public chain has grown past
// the maximum tolerated lag (at which point the race is already lost and
// revealing simply ends the attempt).
func (m *MaliciousBehavior) shouldReveal() bool {
	growth := m.publicGrowth()
	aheadEnough := len(m.state.HiddenChain) > growth && growth > m.MinChainLen
	tooFarBehind := growth > m.MaxChainLen
	return aheadEnough || tooFarBehind
}

func (m *MaliciousBehavior) evaluateReveal(sim *Simulation) {
	if !m.shouldReveal() {
		if m.state.Phase == AttackAttacking && m.node.State != Mining {
			m.startHiddenMining(sim)
		}
		return
	}
	m.reveal(sim)
}

// reveal releases the hidden chain onto the public structure in order,
// chaining the first hidden block onto the fork base and each subsequent
// one onto the previous hidden block, then broadcasts every block. If the
// released chain does not overtake the public tip the attack is recorded
// as a failure; the attacker returns to Idle either way.
func (m *MaliciousBehavior) reveal(sim *Simulation) {
	n := m.node
	m.state.Phase = AttackRevealing

	success := len(m.state.HiddenChain) > m.publicGrowth()

	parentID := m.state.ForkBaseID
	hasParent := m.state.ForkBaseID != NoParent
	for _, blk := range m.state.HiddenChain {
		if hasParent {
			blk.SetParent(parentID)
		} else {
			blk.ClearParent()
		}
		if err := n.Structure.Add(blk); err != nil {
			sim.logError(err)
			continue
		}
		n.Mempool.RemoveGroup(blk.Transactions)
		sim.BroadcastBlock(n.ID, blk)
		parentID = blk.ID
		hasParent = true
	}

	if sim.Reporter != nil {
		outcome := "AttackFailure"
		if success {
			outcome = "AttackSuccess"
		}
		detail := fmt.Sprintf("hiddenLen=%d publicGrowth=%d", len(m.state.HiddenChain), m.publicGrowth())
		sim.Reporter.LogAttack(sim, n.ID, outcome, detail)
		sim.Reporter.LogStructure(sim, n.ID)
	}
	if sim.Metrics != nil {
		if success {
			sim.Metrics.RecordAttackSuccess()
		} else {
			sim.Metrics.RecordAttackFailure()
		}
	}

	m.state = State{Phase: AttackIdle}
	if n.State == Mining {
		n.AbandonMining()
	}
	n.ConsiderMining(sim)
}
