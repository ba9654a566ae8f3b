package ir

// Use records one operand slot that references a Value: the using
// Operation and the operand index within it.
type Use struct {
	User  *Operation
	Index int
}

// Value is an SSA result: produced by at most one Operation (a nil
// Def means it's a block argument) and consumed by zero or more Uses.
type Value struct {
	Type Type
	Def  *Operation
	uses []Use
}

// NewValue creates a detached Value of the given type.
func NewValue(typ Type) *Value {
	return &Value{Type: typ}
}

func (v *Value) addUse(user *Operation, index int) {
	v.uses = append(v.uses, Use{User: user, Index: index})
}

func (v *Value) removeUse(user *Operation, index int) {
	for i, u := range v.uses {
		if u.User == user && u.Index == index {
			v.uses = append(v.uses[:i], v.uses[i+1:]...)
			return
		}
	}
}

// Uses returns the current use-list. Callers must not retain it across
// mutations of the graph.
func (v *Value) Uses() []Use {
	return v.uses
}

// NumUses reports how many operand slots reference this value.
func (v *Value) NumUses() int {
	return len(v.uses)
}

// SoleUser returns the single Operation using this value, or nil if the
// value has zero or more than one distinct user (an operation may hold
// several operand slots pointing at the same value and still count as
// one user here).
func (v *Value) SoleUser() *Operation {
	var sole *Operation
	for _, u := range v.uses {
		if sole == nil {
			sole = u.User
		} else if sole != u.User {
			return nil
		}
	}
	return sole
}

// IsBlockArgument reports whether this value has no defining operation.
func (v *Value) IsBlockArgument() bool {
	return v.Def == nil
}
