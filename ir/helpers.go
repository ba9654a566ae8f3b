package ir

import "sort"

// HostAnchorName is the well-known attribute key devicecluster sets on
// the function it materializes for the host partition (see also
// devicecluster.Options.DeviceAnchorName, which defaults to this name).
func HostAnchorName() string {
	return "host_anchor"
}

// constantAttr and splatAttr are the attribute keys IsConstantLike and
// IsSplatConstantLike read. They're deliberately attribute-driven rather
// than name-driven so any op vocabulary can flag its own constant-like
// members without this package knowing their names.
const (
	constantAttr = "constant"
	splatAttr    = "splat"
)

// IsConstantLike reports whether op is flagged as a constant-producing
// operation — one with no operands whose value is "free" to duplicate
// wherever it's used, the precondition for ReplicateDefiningOp and for
// devicecluster's replication pre-pass.
func IsConstantLike(op *Operation) bool {
	v, ok := op.Attrs[constantAttr]
	return ok && v == "true"
}

// IsSplatConstantLike reports whether op is a constant-like op further
// flagged as a splat (a single repeated scalar, cheap to materialize
// multiple times even across a device boundary) — the distinction
// devicecluster.Options.DupNonSplat cares about.
func IsSplatConstantLike(op *Operation) bool {
	if !IsConstantLike(op) {
		return false
	}
	v, ok := op.Attrs[splatAttr]
	return ok && v == "true"
}

// InputsOfCluster returns, in deterministic order, the distinct values
// used by ops but defined outside the set — the operand list the
// materialized partition function will receive as parameters.
func InputsOfCluster(ops []*Operation) []*Value {
	inSet := opSet(ops)
	var inputs []*Value
	seen := map[*Value]bool{}
	for _, op := range sortedByIndex(ops) {
		for _, v := range op.Operands {
			if v == nil || seen[v] {
				continue
			}
			if v.Def != nil && inSet[v.Def] {
				continue
			}
			seen[v] = true
			inputs = append(inputs, v)
		}
	}
	return inputs
}

// ReturnMultiplicity tallies how many of the terminator's operand slots
// resolve to each distinct value — the per-value repeat count
// OutputsOfCluster consults when the dup_outputs policy is in effect. A
// nil term yields an empty map.
func ReturnMultiplicity(term *Operation) map[*Value]int {
	mult := map[*Value]int{}
	if term == nil {
		return mult
	}
	for _, v := range term.Operands {
		if v != nil {
			mult[v]++
		}
	}
	return mult
}

// OutputsOfCluster returns, in deterministic order, the values produced
// by ops that have at least one user outside the set — the return list
// the materialized partition function will need. retMultiplicity may be
// nil; when it records a count k > 1 for a produced value (its repeat
// count in the owning function's terminator), that value is emitted k
// times in a row rather than once, giving the dup_outputs policy one
// output slot per terminator occurrence to retarget.
func OutputsOfCluster(ops []*Operation, retMultiplicity map[*Value]int) []*Value {
	inSet := opSet(ops)
	var outputs []*Value
	for _, op := range sortedByIndex(ops) {
		for _, v := range op.Results {
			for _, use := range v.Uses() {
				if inSet[use.User] {
					continue
				}
				n := retMultiplicity[v]
				if n < 1 {
					n = 1
				}
				for i := 0; i < n; i++ {
					outputs = append(outputs, v)
				}
				break
			}
		}
	}
	return outputs
}

// ReplaceAllUsesExcept rewrites every use of old to new, except any use
// by except, which is left untouched — the primitive dup_outputs uses to
// retarget a cluster's non-terminator consumers while leaving the
// terminator's remaining occurrences to be consumed one at a time.
func ReplaceAllUsesExcept(old, new *Value, except *Operation) {
	for _, use := range append([]Use(nil), old.Uses()...) {
		if use.User == except {
			continue
		}
		use.User.SetOperand(use.Index, new)
	}
}

// ReplaceOneTerminatorOperand rewrites the first of term's operand slots
// still pointing at old to point at new instead, leaving any further
// occurrences of old untouched — how dup_outputs consumes one unit of a
// value's return multiplicity per duplicated output.
func ReplaceOneTerminatorOperand(term *Operation, old, new *Value) {
	for i, v := range term.Operands {
		if v == old {
			term.SetOperand(i, new)
			return
		}
	}
}

// ReplicateDefiningOp duplicates every op in block satisfying predicate
// that has more than one distinct user, giving each user beyond the
// first its own private copy inserted immediately before that user. The
// original is left in place for the first user encountered (in block
// order), or, when the block's terminator is one of the users, for the
// terminator alone (every other user then gets a copy) — a
// terminator-returned value is never replicated away from, since doing
// so would require the terminator to pick an arbitrary copy.
func ReplicateDefiningOp(block *Block, predicate func(*Operation) bool) {
	term := block.Terminator()
	for _, op := range append([]*Operation(nil), block.NonTerminatorOps()...) {
		if !predicate(op) {
			continue
		}
		if len(op.Results) != 1 {
			continue
		}
		v := op.Results[0]
		users := distinctUsersInOrder(v)
		if len(users) <= 1 {
			continue
		}
		keepFor := users[0]
		if term != nil {
			for _, use := range v.Uses() {
				if use.User == term {
					keepFor = term
					break
				}
			}
		}
		for _, user := range users {
			if user == keepFor {
				continue
			}
			mapping := NewValueMapping()
			replica := op.Clone(mapping)
			block.InsertBefore(replica, user)
			redirectOperand(user, v, replica.Results[0])
		}
	}
}

// distinctUsersInOrder returns v's distinct user operations, ordered by
// their position in the block.
func distinctUsersInOrder(v *Value) []*Operation {
	seen := map[*Operation]bool{}
	var users []*Operation
	for _, use := range v.Uses() {
		if !seen[use.User] {
			seen[use.User] = true
			users = append(users, use.User)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].index < users[j].index
	})
	return users
}

// redirectOperand rewrites every operand slot of user currently
// pointing at old to point at new instead.
func redirectOperand(user *Operation, old, new *Value) {
	for i, operand := range user.Operands {
		if operand == old {
			user.SetOperand(i, new)
		}
	}
}

func opSet(ops []*Operation) map[*Operation]bool {
	set := make(map[*Operation]bool, len(ops))
	for _, op := range ops {
		set[op] = true
	}
	return set
}

func sortedByIndex(ops []*Operation) []*Operation {
	sorted := append([]*Operation(nil), ops...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].index < sorted[j].index
	})
	return sorted
}
