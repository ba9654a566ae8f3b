package ir

// ValueMapping tracks old-Value -> new-Value correspondences while
// cloning a set of operations, so operands referring to an
// already-cloned value get rewired to its clone rather than the
// original. This is the same role an IRMapping plays when cloning
// MLIR regions.
type ValueMapping struct {
	values map[*Value]*Value
}

// NewValueMapping creates an empty mapping.
func NewValueMapping() *ValueMapping {
	return &ValueMapping{values: map[*Value]*Value{}}
}

// Map records that old now corresponds to new.
func (vm *ValueMapping) Map(old, new *Value) {
	vm.values[old] = new
}

// Lookup returns the mapped value for old, or old itself if unmapped —
// cloning code calls this unconditionally on every operand so values
// produced outside the cloned set (e.g. cluster inputs) pass through
// unchanged.
func (vm *ValueMapping) Lookup(old *Value) *Value {
	if new, ok := vm.values[old]; ok {
		return new
	}
	return old
}

// Clone produces a detached copy of op: same name and attributes, fresh
// result Values, and operands resolved through mapping. Nested regions
// are deep-cloned block-by-block, with block arguments freshly
// allocated and mapped so operations inside the region see the clone's
// arguments rather than the original's.
func (op *Operation) Clone(mapping *ValueMapping) *Operation {
	operands := make([]*Value, len(op.Operands))
	for i, v := range op.Operands {
		if v != nil {
			operands[i] = mapping.Lookup(v)
		}
	}
	resultTypes := make([]Type, len(op.Results))
	for i, v := range op.Results {
		resultTypes[i] = v.Type
	}
	clone := NewOperation(op.Name, operands, resultTypes)
	for k, v := range op.Attrs {
		clone.Attrs[k] = v
	}
	for i, v := range op.Results {
		mapping.Map(v, clone.Results[i])
	}
	for _, region := range op.Regions {
		clonedRegion := NewRegion(clone)
		for _, block := range region.Blocks() {
			clonedRegion.AddBlock(cloneBlock(block, mapping))
		}
		clone.Regions = append(clone.Regions, clonedRegion)
	}
	return clone
}

func cloneBlock(b *Block, mapping *ValueMapping) *Block {
	argTypes := make([]Type, len(b.args))
	for i, a := range b.args {
		argTypes[i] = a.Type
	}
	clone := NewBlock(argTypes)
	for i, a := range b.args {
		mapping.Map(a, clone.args[i])
	}
	for _, op := range b.ops {
		clone.Append(op.Clone(mapping))
	}
	return clone
}

// Clone produces a detached copy of fn with a fresh entry block cloned
// op-by-op through a fresh ValueMapping seeded with the parameter
// correspondence. The clone keeps fn's name and attributes and is not
// added to any module.
func (fn *Function) Clone() *Function {
	mapping := NewValueMapping()
	paramTypes := make([]Type, len(fn.Params))
	for i, p := range fn.Params {
		paramTypes[i] = p.Type
	}
	clone := NewFunction(fn.Name, paramTypes)
	for i, p := range fn.Params {
		mapping.Map(p, clone.Params[i])
	}
	for k, v := range fn.Attrs {
		clone.Attrs[k] = v
	}
	for _, op := range fn.Entry.ops {
		clone.Entry.Append(op.Clone(mapping))
	}
	return clone
}
