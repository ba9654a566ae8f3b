package ir

import "github.com/gomlx/exceptions"

// Block is an ordered list of operations ending in a terminator,
// belonging to a Region and (transitively) a Function. This IR only
// ever builds single-block regions — nested Regions exist so
// host-marking closure has something to walk, not to support general
// control flow.
type Block struct {
	ops    []*Operation
	args   []*Value
	region *Region
}

// NewBlock creates a block with the given block-argument types.
func NewBlock(argTypes []Type) *Block {
	b := &Block{}
	b.args = make([]*Value, len(argTypes))
	for i, t := range argTypes {
		b.args[i] = NewValue(t)
	}
	return b
}

// Args returns the block's arguments (its Values with no defining op).
func (b *Block) Args() []*Value {
	return b.args
}

// Region returns the owning region, or nil if detached.
func (b *Block) Region() *Region {
	return b.region
}

// Ops returns the live ordered operation list. Callers must not retain
// it across mutation.
func (b *Block) Ops() []*Operation {
	return b.ops
}

// NonTerminatorOps returns every op except the block's terminator. If
// the block is empty it returns nil.
func (b *Block) NonTerminatorOps() []*Operation {
	if len(b.ops) == 0 {
		return nil
	}
	return b.ops[:len(b.ops)-1]
}

// Terminator returns the block's last operation, or nil if empty.
func (b *Block) Terminator() *Operation {
	if len(b.ops) == 0 {
		return nil
	}
	return b.ops[len(b.ops)-1]
}

// Append adds op at the end of the block.
func (b *Block) Append(op *Operation) {
	if op.block != nil {
		exceptions.Panicf("ir: Append called on operation %q already attached to a block", op.Name)
	}
	op.block = b
	op.index = len(b.ops)
	b.ops = append(b.ops, op)
}

// InsertBefore inserts op immediately before mark.
func (b *Block) InsertBefore(op, mark *Operation) {
	if op.block != nil {
		exceptions.Panicf("ir: InsertBefore called on operation %q already attached to a block", op.Name)
	}
	if mark.block != b {
		exceptions.Panicf("ir: InsertBefore mark %q is not in this block", mark.Name)
	}
	b.insertAt(op, mark.index)
}

func (b *Block) insertAt(op *Operation, at int) {
	b.ops = append(b.ops, nil)
	copy(b.ops[at+1:], b.ops[at:])
	b.ops[at] = op
	op.block = b
	b.reindexFrom(at)
}

func (b *Block) removeAt(i int) {
	op := b.ops[i]
	b.ops = append(b.ops[:i], b.ops[i+1:]...)
	op.block = nil
	op.index = -1
	b.reindexFrom(i)
}

func (b *Block) reindexFrom(start int) {
	for i := start; i < len(b.ops); i++ {
		b.ops[i].index = i
	}
}

// moveBefore relocates op to directly precede other. A batch moved
// before the same other keeps its relative order when callers move it
// in ascending index order (devicecluster's move-up set does exactly
// that).
func (b *Block) moveBefore(op, other *Operation) {
	if op == other {
		return
	}
	from := op.index
	b.ops = append(b.ops[:from], b.ops[from+1:]...)
	to := other.index
	if from < to {
		to--
	}
	b.ops = append(b.ops, nil)
	copy(b.ops[to+1:], b.ops[to:])
	b.ops[to] = op
	op.block = b
	b.reindexFrom(min(from, to))
}

// moveAfter relocates op to directly follow other. A batch moved after
// the same other keeps its relative order when callers move it in
// descending index order.
func (b *Block) moveAfter(op, other *Operation) {
	if op == other {
		return
	}
	from := op.index
	b.ops = append(b.ops[:from], b.ops[from+1:]...)
	to := other.index
	if from < to {
		to--
	}
	to++
	b.ops = append(b.ops, nil)
	copy(b.ops[to+1:], b.ops[to:])
	b.ops[to] = op
	op.block = b
	b.reindexFrom(min(from, to))
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
