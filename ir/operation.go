package ir

import "github.com/gomlx/exceptions"

// deviceAttr is the attribute key under which an operation's placement
// is recorded. devicecluster.Options.AttrName may override the key it
// reads/writes, but Operation itself always stores placement as a plain
// string attribute alongside the rest of the attribute map.
const deviceAttr = "device"

// Operation is a single instruction: a name, ordered operands, ordered
// results, zero or more nested regions (only present on control-flow-ish
// ops; the clustering pass never looks inside them except to compute
// host-marking closure) and a string-keyed attribute bag.
type Operation struct {
	Name     string
	Operands []*Value
	Results  []*Value
	Regions  []*Region
	Attrs    map[string]string

	block *Block
	index int // position within block.ops; maintained incrementally
}

// NewOperation builds a detached operation with the given name, operand
// values and result types. The new Results are freshly allocated Values
// whose Def points back to this operation.
func NewOperation(name string, operands []*Value, resultTypes []Type) *Operation {
	op := &Operation{
		Name:     name,
		Operands: append([]*Value(nil), operands...),
		Attrs:    map[string]string{},
		index:    -1,
	}
	op.Results = make([]*Value, len(resultTypes))
	for i, t := range resultTypes {
		v := NewValue(t)
		v.Def = op
		op.Results[i] = v
	}
	for i, operand := range op.Operands {
		if operand != nil {
			operand.addUse(op, i)
		}
	}
	return op
}

// Block returns the block currently holding this operation, or nil if
// detached.
func (op *Operation) Block() *Block {
	return op.block
}

// Index returns this operation's live position within its block. Valid
// only while the operation is attached; callers must not cache it across
// mutations.
func (op *Operation) Index() int {
	if op.block == nil {
		exceptions.Panicf("ir: Index() called on detached operation %q", op.Name)
	}
	return op.index
}

// Result0 is a convenience accessor for single-result operations.
func (op *Operation) Result0() *Value {
	if len(op.Results) == 0 {
		return nil
	}
	return op.Results[0]
}

// SetOperand rewrites operand i, updating use-lists on both the old and
// new value.
func (op *Operation) SetOperand(i int, v *Value) {
	old := op.Operands[i]
	if old == v {
		return
	}
	if old != nil {
		old.removeUse(op, i)
	}
	op.Operands[i] = v
	if v != nil {
		v.addUse(op, i)
	}
}

// Attr returns attribute key's value and whether it was set.
func (op *Operation) Attr(key string) (string, bool) {
	v, ok := op.Attrs[key]
	return v, ok
}

// SetAttr sets an attribute, overwriting any existing value.
func (op *Operation) SetAttr(key, value string) {
	op.Attrs[key] = value
}

// Device returns the op's placement attribute, or "" if unset.
func (op *Operation) Device() string {
	return op.Attrs[deviceAttr]
}

// SetDevice sets the op's placement attribute.
func (op *Operation) SetDevice(device string) {
	op.Attrs[deviceAttr] = device
}

// IsTerminator reports whether this op is its block's terminator. A
// block's last operation is its terminator by construction; this is a
// position check, not a name/trait check, matching this IR's "no op
// traits" simplicity.
func (op *Operation) IsTerminator() bool {
	return op.block != nil && op.index == len(op.block.ops)-1
}

// MoveBefore relocates op to sit immediately before other within
// other's block. Both operations must already be attached to the same
// block.
func (op *Operation) MoveBefore(other *Operation) {
	requireSameBlock(op, other)
	op.block.moveBefore(op, other)
}

// MoveAfter relocates op to sit immediately after other within other's
// block.
func (op *Operation) MoveAfter(other *Operation) {
	requireSameBlock(op, other)
	op.block.moveAfter(op, other)
}

func requireSameBlock(a, b *Operation) {
	if a.block == nil || b.block == nil || a.block != b.block {
		exceptions.Panicf("ir: MoveBefore/MoveAfter requires both operations attached to the same block (got %q, %q)", a.Name, b.Name)
	}
}

// Erase detaches op from its block and clears its operands' use-lists.
// It does not check that op's own results are unused; callers of the
// devicecluster package erase operations only after redirecting all
// their uses, in reverse program order.
func (op *Operation) Erase() {
	for i, operand := range op.Operands {
		if operand != nil {
			operand.removeUse(op, i)
		}
	}
	if op.block != nil {
		op.block.removeAt(op.index)
	}
}
