package bitcoin

// ScheduleHashPowerChange arranges for nodeID's hash power to change to
// newHashPower at simulated time t. Any PoW draw already in flight keeps
// running at the old rate; only the next StartMining call sees the change.
func (sim *Simulation) ScheduleHashPowerChange(t int64, nodeID int, newHashPower float64) {
	sim.Scheduler.Schedule(t, EventHashPowerChange, HashPowerChangePayload{
		NodeID:       nodeID,
		NewHashPower: newHashPower,
	})
}

// ScheduleBehaviorChange arranges for nodeID's NodeBehavior strategy to be
// replaced at simulated time t. The swap is immediate; a malicious node
// switched to honest mid-attack simply loses its hidden chain along with
// its MaliciousBehavior value, and an honest node switched to malicious
// starts from AttackIdle.
func (sim *Simulation) ScheduleBehaviorChange(t int64, nodeID int, newBehavior func(n *Node) NodeBehavior) {
	sim.Scheduler.Schedule(t, EventBehaviorChange, BehaviorChangePayload{
		NodeID:      nodeID,
		NewBehavior: newBehavior,
	})
}
