package bitcoin

import (
	"testing"

	"github.com/liaskos-cmg/cnsim-bitcoin/internal/analysis"
)

func newAttackSim() (*Simulation, *Node, *Node) {
	sim := NewSimulation(1)
	sim.NetDelayMean, sim.NetDelayStdDev, sim.NetDelayMin, sim.NetDelayMax = 50, 0, 50, 50

	honest := NewNode(0, 0.7, 100, 0, 1_000_000)
	honest.Behavior = NewHonestBehavior(honest)
	sim.AddNode(honest)

	attacker := NewNode(1, 0.3, 100, 0, 1_000_000)
	mb := NewMaliciousBehavior(attacker, 7, 3)
	attacker.Behavior = mb
	sim.AddNode(attacker)

	return sim, honest, attacker
}

func TestMaliciousStartsWatchingOnTargetTransaction(t *testing.T) {
	sim, _, attacker := newAttackSim()
	mb := attacker.Behavior.(*MaliciousBehavior)

	target := Transaction{ID: 7, Size: 200, Fee: 500, ConflictPeerID: NoConflict}
	attacker.Behavior.OnClientTransaction(sim, target)

	if mb.state.Phase != AttackWatching {
		t.Fatalf("expected AttackWatching after seeing the target transaction, got %v", mb.state.Phase)
	}
}

// buryChain appends n empty blocks on top of base to the attacker's own
// structure via ordinary propagation, returning the last one appended.
func buryChain(sim *Simulation, attacker *Node, base Block, n int) Block {
	last := base
	for i := 0; i < n; i++ {
		blk := NewBlock(sim.NextBlockID(), NewTransactionGroup(nil))
		blk.SetParent(last.ID)
		attacker.Behavior.OnPropagatedBlock(sim, blk, 0)
		last = blk
	}
	return last
}

func TestMaliciousWithholdsAttackUntilConfirmed(t *testing.T) {
	sim, _, attacker := newAttackSim()
	mb := attacker.Behavior.(*MaliciousBehavior)

	target := Transaction{ID: 7, Size: 200, Fee: 500, ConflictPeerID: NoConflict}
	attacker.Behavior.OnClientTransaction(sim, target)

	genesis := NewBlock(sim.NextBlockID(), NewTransactionGroup(nil))
	attacker.Behavior.OnPropagatedBlock(sim, genesis, 0)

	burying := NewBlock(sim.NextBlockID(), NewTransactionGroup([]Transaction{target}))
	burying.SetParent(genesis.ID)
	attacker.Behavior.OnPropagatedBlock(sim, burying, 0)

	if mb.state.Phase != AttackWatching {
		t.Fatalf("expected the attack withheld with zero confirmations, got %v", mb.state.Phase)
	}

	// RequiredConfs is 3; two more blocks on top still isn't enough.
	last := buryChain(sim, attacker, burying, 2)
	if mb.state.Phase != AttackWatching {
		t.Fatalf("expected the attack still withheld at 2/3 confirmations, got %v", mb.state.Phase)
	}

	third := NewBlock(sim.NextBlockID(), NewTransactionGroup(nil))
	third.SetParent(last.ID)
	attacker.Behavior.OnPropagatedBlock(sim, third, 0)

	if mb.state.Phase != AttackAttacking {
		t.Fatalf("expected the attack to start once the 3rd confirmation landed, got %v", mb.state.Phase)
	}
}

func TestMaliciousStartsAttackWhenTargetIsBuried(t *testing.T) {
	sim, _, attacker := newAttackSim()
	mb := attacker.Behavior.(*MaliciousBehavior)

	target := Transaction{ID: 7, Size: 200, Fee: 500, ConflictPeerID: NoConflict}
	attacker.Behavior.OnClientTransaction(sim, target)

	genesis := NewBlock(sim.NextBlockID(), NewTransactionGroup(nil))
	attacker.Behavior.OnPropagatedBlock(sim, genesis, 0)

	burying := NewBlock(sim.NextBlockID(), NewTransactionGroup([]Transaction{target}))
	burying.SetParent(genesis.ID)
	attacker.Behavior.OnPropagatedBlock(sim, burying, 0)

	// mb was constructed with RequiredConfs=3: stack exactly that many
	// blocks above the burying block before the attack is allowed to fire.
	buryChain(sim, attacker, burying, mb.RequiredConfs)

	if mb.state.Phase != AttackAttacking {
		t.Fatalf("expected AttackAttacking once the target transaction had %d confirmations, got %v", mb.RequiredConfs, mb.state.Phase)
	}
	if mb.state.ForkBaseID != genesis.ID {
		t.Fatalf("expected fork base to be the block below the burying block, got %d", mb.state.ForkBaseID)
	}
	if attacker.State != Mining {
		t.Fatalf("expected the attacker to start hidden mining immediately")
	}
}

func TestMaliciousRevealsAndWinsWhenHiddenChainIsLonger(t *testing.T) {
	sim, _, attacker := newAttackSim()
	mb := attacker.Behavior.(*MaliciousBehavior)

	mb.state.Phase = AttackAttacking
	mb.state.ForkBaseID = NoParent
	// Public height is 0 (empty structure); offsetting the snapshot by -3
	// puts growth at 3, one past MinChainLen, so the 4th hidden block
	// (4 > 3) tips the reveal inside the loop. The 5th block is mined
	// after the return to Idle and the public block below arrives after
	// the reveal.
	mb.state.PublicHeightAtStart = -3

	for i := 0; i < 5; i++ {
		blk := NewBlock(sim.NextBlockID(), NewTransactionGroup(nil))
		attacker.CurrentCandidate = &blk
		attacker.State = Mining
		attacker.Behavior.OnValidationComplete(sim, blk)
	}

	pub := NewBlock(sim.NextBlockID(), NewTransactionGroup(nil))
	mb.handleNewBlockDuringAttack(sim, pub)

	if mb.state.Phase != AttackIdle {
		t.Fatalf("expected attacker to return to Idle after revealing, got %v", mb.state.Phase)
	}
	if !attacker.Structure.Contains(pub.ID) {
		t.Fatalf("expected the public block itself to be recorded")
	}
}

func TestMaliciousAbortsWhenPublicChainOutgrowsMax(t *testing.T) {
	sim, _, attacker := newAttackSim()
	mb := attacker.Behavior.(*MaliciousBehavior)

	mb.state.Phase = AttackAttacking
	mb.state.ForkBaseID = NoParent
	hidden := NewBlock(sim.NextBlockID(), NewTransactionGroup(nil))
	mb.state.HiddenChain = []Block{hidden}
	// Public height is 0 before and after the block below (it lands as the
	// root), so growth is MaxChainLen+1, past the tolerated lag; the
	// block's arrival triggers the check.
	mb.state.PublicHeightAtStart = -(mb.MaxChainLen + 1)

	pub := NewBlock(sim.NextBlockID(), NewTransactionGroup(nil))
	mb.handleNewBlockDuringAttack(sim, pub)

	if mb.state.Phase != AttackIdle {
		t.Fatalf("expected attack abandoned once public chain outgrew max lag, got %v", mb.state.Phase)
	}
}

func TestMaliciousDuplicateBlockGuard(t *testing.T) {
	sim, _, attacker := newAttackSim()
	mb := attacker.Behavior.(*MaliciousBehavior)
	mb.state.Phase = AttackAttacking
	mb.state.ForkBaseID = NoParent

	blk := NewBlock(sim.NextBlockID(), NewTransactionGroup(nil))
	mb.handleNewBlockDuringAttack(sim, blk)
	heightAfterFirst := attacker.Structure.Height()

	mb.handleNewBlockDuringAttack(sim, blk)

	if attacker.Structure.Height() != heightAfterFirst {
		t.Fatalf("expected duplicate block delivery to not double-count public growth")
	}
	if len(attacker.Structure.Path(blk.ID)) != 1 {
		t.Fatalf("expected the block to be recorded exactly once")
	}
}

func TestMaliciousDetectsOwnMinedTarget(t *testing.T) {
	sim, _, attacker := newAttackSim()
	mb := attacker.Behavior.(*MaliciousBehavior)
	mb.RequiredConfs = 0

	target := Transaction{ID: 7, Size: 200, Fee: 500, ConflictPeerID: NoConflict}
	attacker.Mempool.Add(target)

	blk := NewBlock(sim.NextBlockID(), NewTransactionGroup([]Transaction{target}))
	attacker.CurrentCandidate = &blk
	attacker.State = Mining
	attacker.Behavior.OnValidationComplete(sim, blk)

	if mb.state.Phase != AttackAttacking {
		t.Fatalf("expected the attacker's own block containing the target to start the attack with zero required confirmations, got %v", mb.state.Phase)
	}
}

func TestMaliciousLogsAndRecordsAttackStart(t *testing.T) {
	sim, _, attacker := newAttackSim()
	mb := attacker.Behavior.(*MaliciousBehavior)
	mb.RequiredConfs = 0
	reporter := &fakeReporter{}
	sim.Reporter = reporter
	sim.Metrics = analysis.NewMetricsCollector(attacker.HashPower, mb.RequiredConfs)

	target := Transaction{ID: 7, Size: 200, Fee: 500, ConflictPeerID: NoConflict}
	attacker.Mempool.Add(target)

	blk := NewBlock(sim.NextBlockID(), NewTransactionGroup([]Transaction{target}))
	attacker.CurrentCandidate = &blk
	attacker.State = Mining
	attacker.Behavior.OnValidationComplete(sim, blk)

	found := false
	for _, row := range reporter.attacks {
		if row.event == "AttackStart" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an AttackStart row logged when the attack transitions, got %+v", reporter.attacks)
	}

	summary := sim.Metrics.GenerateSummaryReport()
	if summary.AttacksStarted != 1 {
		t.Fatalf("expected the metrics collector to record the attack start, got %d", summary.AttacksStarted)
	}
}

func TestMaliciousRecordsHiddenBlockAndOutcomeMetrics(t *testing.T) {
	sim, _, attacker := newAttackSim()
	mb := attacker.Behavior.(*MaliciousBehavior)
	sim.Metrics = analysis.NewMetricsCollector(attacker.HashPower, mb.RequiredConfs)

	mb.state.Phase = AttackAttacking
	mb.state.ForkBaseID = NoParent
	mb.state.PublicHeightAtStart = -3

	for i := 0; i < 5; i++ {
		blk := NewBlock(sim.NextBlockID(), NewTransactionGroup(nil))
		attacker.CurrentCandidate = &blk
		attacker.State = Mining
		attacker.Behavior.OnValidationComplete(sim, blk)
	}

	pub := NewBlock(sim.NextBlockID(), NewTransactionGroup(nil))
	mb.handleNewBlockDuringAttack(sim, pub)

	// Growth is 3 throughout (height 0 against a snapshot of -3), so the
	// 4th hidden block triggers the reveal; the 5th is mined publicly.
	summary := sim.Metrics.GenerateSummaryReport()
	if summary.HiddenBlocksMined != 4 {
		t.Fatalf("expected 4 hidden blocks recorded, got %d", summary.HiddenBlocksMined)
	}
	if summary.AttacksSucceeded != 1 {
		t.Fatalf("expected the successful reveal recorded, got %d successes", summary.AttacksSucceeded)
	}
}
