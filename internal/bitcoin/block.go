package bitcoin

// NoParent marks a Block with no declared parent (genesis, or a block
// authored before a reorg that should extend whatever tip exists on
// arrival).
const NoParent = -1

// Block is a vertex in a Blockchain. Blocks reference their parent by
// integer ID into the owning Blockchain's arena rather than by pointer:
// propagation clones a Block by value and hands the clone to a different
// node's Blockchain, so a pointer-based parent link would dangle across
// that boundary.
type Block struct {
	ID           int
	Height       int
	ParentID     int
	HasParent    bool
	Transactions TransactionGroup

	ValidatorNodeID      int
	CurrentNodeID        int
	ValidationSimTime    int64
	ValidationDifficulty float64
	ValidationCycles     float64
	LastEvent            string
}

// NewBlock constructs an unvalidated, unparented candidate block from a
// mining pool snapshot. Height, ParentID and validation metadata are filled
// in once the block is actually validated and inserted (spec: "blocks are
// mutable only in the narrow window between creation and first insertion").
func NewBlock(id int, txs TransactionGroup) Block {
	return Block{
		ID:           id,
		ParentID:     NoParent,
		HasParent:    false,
		Transactions: txs,
		LastEvent:    "Created",
	}
}

// Clone returns a value copy of b suitable for propagation to another
// node's Blockchain; the copy carries its own CurrentNodeID once the
// recipient stamps it.
func (b Block) Clone() Block {
	return b
}

// Contains reports whether the block's transaction set includes txID.
func (b Block) Contains(txID int) bool {
	return b.Transactions.Contains(txID)
}

// SetParent records the parent block ID this block extends.
func (b *Block) SetParent(id int) {
	b.ParentID = id
	b.HasParent = true
}

// ClearParent marks the block as parentless (used transiently while the
// Blockchain structure re-derives height on insertion).
func (b *Block) ClearParent() {
	b.ParentID = NoParent
	b.HasParent = false
}

// Validate stamps the validation metadata recorded when a mining node's
// PoW timer fires (or, for the malicious node's own blocks, when the
// hidden-chain entry was mined).
func (b *Block) Validate(txs TransactionGroup, simTime int64, nodeID int, event string, difficulty, cycles float64) {
	b.Transactions = txs
	b.ValidationSimTime = simTime
	b.ValidatorNodeID = nodeID
	b.CurrentNodeID = nodeID
	b.LastEvent = event
	b.ValidationDifficulty = difficulty
	b.ValidationCycles = cycles
}
