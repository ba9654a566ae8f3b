package ir

// Function is a single-block unit: a name, parameter values (the entry
// block's arguments) and one entry Block ending in a return terminator.
// Functions materialized by devicecluster for a partitioned cluster are
// ordinary Functions — there is no separate "subgraph function" type.
type Function struct {
	Name    string
	Params  []*Value
	Entry   *Block
	Attrs   map[string]string
	Module  *Module
}

// NewFunction builds a function with the given parameter types and an
// empty entry block. The caller is responsible for appending operations
// and a terminator to Entry before the function is considered well
// formed.
func NewFunction(name string, paramTypes []Type) *Function {
	fn := &Function{
		Name:  name,
		Attrs: map[string]string{},
	}
	fn.Entry = NewBlock(paramTypes)
	fn.Params = fn.Entry.Args()
	return fn
}

// ResultTypes returns the types of the entry block's terminator
// operands, i.e. what the function returns. Returns nil if the entry
// block has no terminator yet.
func (fn *Function) ResultTypes() []Type {
	term := fn.Entry.Terminator()
	if term == nil {
		return nil
	}
	types := make([]Type, len(term.Operands))
	for i, v := range term.Operands {
		types[i] = v.Type
	}
	return types
}
