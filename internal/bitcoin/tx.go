package bitcoin

import "sort"

// NoConflict marks a Transaction that does not conflict with any other.
const NoConflict = -1

// Transaction is immutable once created; equality is by ID.
type Transaction struct {
	ID             int
	Size           int64
	Fee            int64
	ConflictPeerID int // NoConflict if this transaction has no conflict peer
}

// HasConflict reports whether this transaction declares a conflict peer.
func (t Transaction) HasConflict() bool { return t.ConflictPeerID != NoConflict }

// valuePerSize is the fee/size ratio used to rank transactions for block
// inclusion.
func (t Transaction) valuePerSize() float64 {
	if t.Size == 0 {
		return 0
	}
	return float64(t.Fee) / float64(t.Size)
}

// TransactionGroup is an ordered multiset of transactions supporting
// containment, bulk removal, and top-N selection by fee/size. The zero
// value is a usable empty group.
type TransactionGroup struct {
	txs   []Transaction
	index map[int]int // tx ID -> position in txs
}

// NewTransactionGroup builds a group from an initial transaction slice.
func NewTransactionGroup(initial []Transaction) TransactionGroup {
	g := TransactionGroup{index: make(map[int]int, len(initial))}
	for _, t := range initial {
		g.Add(t)
	}
	return g
}

// Add appends t to the group. Adding a transaction whose ID already exists
// is a no-op: the group does not deduplicate across branches (spec) but
// does not duplicate a single ID within itself either.
func (g *TransactionGroup) Add(t Transaction) {
	if g.index == nil {
		g.index = make(map[int]int)
	}
	if _, exists := g.index[t.ID]; exists {
		return
	}
	g.index[t.ID] = len(g.txs)
	g.txs = append(g.txs, t)
}

// Contains reports whether a transaction with the given ID is in the group.
func (g TransactionGroup) Contains(id int) bool {
	_, ok := g.index[id]
	return ok
}

// Get returns the transaction with the given ID, if present.
func (g TransactionGroup) Get(id int) (Transaction, bool) {
	i, ok := g.index[id]
	if !ok {
		return Transaction{}, false
	}
	return g.txs[i], true
}

// Transactions returns the group's contents in insertion order. The slice
// is a copy; callers may not mutate the group through it.
func (g TransactionGroup) Transactions() []Transaction {
	out := make([]Transaction, len(g.txs))
	copy(out, g.txs)
	return out
}

// Len reports the number of transactions in the group.
func (g TransactionGroup) Len() int { return len(g.txs) }

// TotalFee sums the fee of every transaction in the group.
func (g TransactionGroup) TotalFee() int64 {
	var total int64
	for _, t := range g.txs {
		total += t.Fee
	}
	return total
}

// TotalSize sums the byte size of every transaction in the group.
func (g TransactionGroup) TotalSize() int64 {
	var total int64
	for _, t := range g.txs {
		total += t.Size
	}
	return total
}

// Remove deletes the transaction with the given ID, if present.
func (g *TransactionGroup) Remove(id int) {
	i, ok := g.index[id]
	if !ok {
		return
	}
	g.txs = append(g.txs[:i], g.txs[i+1:]...)
	delete(g.index, id)
	for j := i; j < len(g.txs); j++ {
		g.index[g.txs[j].ID] = j
	}
}

// RemoveGroup deletes every transaction present in other from g, used when
// a mined or received block's transactions must be extracted from a pool.
func (g *TransactionGroup) RemoveGroup(other TransactionGroup) {
	for _, t := range other.txs {
		g.Remove(t.ID)
	}
}

// TopNByFeePerSize returns a new group containing, in descending
// fee/size order, as many transactions as fit within maxBytes.
func (g TransactionGroup) TopNByFeePerSize(maxBytes int64) TransactionGroup {
	sorted := make([]Transaction, len(g.txs))
	copy(sorted, g.txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].valuePerSize() > sorted[j].valuePerSize()
	})

	out := TransactionGroup{index: make(map[int]int)}
	var used int64
	for _, t := range sorted {
		if used+t.Size > maxBytes {
			continue
		}
		out.Add(t)
		used += t.Size
	}
	return out
}

// IDs returns the group's transaction IDs in insertion order, mainly for
// reporter row formatting (spec's BlockContent column).
func (g TransactionGroup) IDs() []int {
	ids := make([]int, len(g.txs))
	for i, t := range g.txs {
		ids[i] = t.ID
	}
	return ids
}
