package ir

import "fmt"

// SymbolTable assigns unique names within a Module, renaming on
// collision by appending a numeric suffix — the same scheme most IR
// symbol tables use, applied here whenever a materialized partition
// function's natural name collides with an existing one.
type SymbolTable struct {
	used map[string]bool
}

// NewSymbolTable creates an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{used: map[string]bool{}}
}

// Insert reserves a unique name derived from want, returning it. If want
// is already taken it appends "_N" for the smallest N >= 1 that is free.
func (st *SymbolTable) Insert(want string) string {
	if !st.used[want] {
		st.used[want] = true
		return want
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d", want, n)
		if !st.used[candidate] {
			st.used[candidate] = true
			return candidate
		}
	}
}

// Reserve marks name as taken without going through collision
// resolution; used when seeding the table from a module's existing
// function names.
func (st *SymbolTable) Reserve(name string) {
	st.used[name] = true
}
