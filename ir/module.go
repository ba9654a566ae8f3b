package ir

// Module is an ordered collection of Functions sharing one symbol table.
// ClusterByDevice both reads from and appends to a Module in place.
type Module struct {
	functions []*Function
	symtab    *SymbolTable
}

// NewModule creates an empty module.
func NewModule() *Module {
	return &Module{symtab: NewSymbolTable()}
}

// Functions returns the module's functions in declaration order.
func (m *Module) Functions() []*Function {
	return m.functions
}

// SymbolTable returns the module's shared symbol table.
func (m *Module) SymbolTable() *SymbolTable {
	return m.symtab
}

// AppendFunction adds fn to the module, reserving its name in the
// symbol table (renaming fn.Name on collision) and setting fn.Module.
func (m *Module) AppendFunction(fn *Function) {
	fn.Name = m.symtab.Insert(fn.Name)
	fn.Module = m
	m.functions = append(m.functions, fn)
}

// InsertFunction inserts fn at position i, shifting later functions
// down. Used to place materialized partition functions immediately
// before/after the function they were split out of, matching the
// C++ original's "insert newly created functions next to the source"
// convention so diffs stay local.
func (m *Module) InsertFunction(i int, fn *Function) {
	fn.Name = m.symtab.Insert(fn.Name)
	fn.Module = m
	m.functions = append(m.functions, nil)
	copy(m.functions[i+1:], m.functions[i:])
	m.functions[i] = fn
}

// IndexOfFunction returns fn's position in the module, or -1.
func (m *Module) IndexOfFunction(fn *Function) int {
	for i, f := range m.functions {
		if f == fn {
			return i
		}
	}
	return -1
}

// FunctionByName returns the function with the given name, or nil.
func (m *Module) FunctionByName(name string) *Function {
	for _, f := range m.functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}
