package devicecluster

import "github.com/irpartition/clusterbydevice/ir"

// MarkHosts computes the transitive closure of operations pinned to the
// host partition: every op gets folded in if it satisfies one of three
// conditions, or depends (directly or transitively, through operands)
// on an op that does:
//
//  1. its placement attribute is present and explicitly equal to
//     "host" — an op with the attribute absent, or set to a device
//     name, is a device op, never host by default;
//  2. it carries one or more nested regions — this IR never looks
//     inside a region to cluster it, so any op with a region is
//     conservatively pinned;
//  3. it consumes a value produced by an already host-marked op.
//
// One deliberate asymmetry: a constant-like op whose sole user is
// host-marked is excluded from later clustering consideration (it will
// never be pulled into a device cluster, since its only consumer never
// leaves host) but is NOT itself added to the host set, so it is not
// part of the fallback strategy's host partition either: it stays in
// the source function, outside every cluster.
func MarkHosts(fn *ir.Function, opts Options) map[*ir.Operation]bool {
	host := map[*ir.Operation]bool{}
	ops := fn.Entry.NonTerminatorOps()

	isDirectHost := func(op *ir.Operation) bool {
		v, ok := op.Attr(opts.AttrName)
		return ok && v == "host"
	}

	for _, op := range ops {
		if isDirectHost(op) || len(op.Regions) > 0 {
			host[op] = true
		}
	}

	changed := true
	for changed {
		changed = false
		for _, op := range ops {
			if host[op] {
				continue
			}
			if soleUserExcludedConstant(op, host) {
				continue
			}
			for _, v := range op.Operands {
				if v != nil && v.Def != nil && host[v.Def] {
					host[op] = true
					changed = true
					break
				}
			}
		}
	}
	return host
}

func soleUserExcludedConstant(op *ir.Operation, host map[*ir.Operation]bool) bool {
	if !ir.IsConstantLike(op) || len(op.Results) != 1 {
		return false
	}
	sole := op.Results[0].SoleUser()
	return sole != nil && host[sole]
}

// ExcludedConstants returns the constant-like ops whose sole user is
// host-marked: not in the host set, and never a clustering candidate
// themselves.
func ExcludedConstants(fn *ir.Function, host map[*ir.Operation]bool) map[*ir.Operation]bool {
	excluded := map[*ir.Operation]bool{}
	for _, op := range fn.Entry.NonTerminatorOps() {
		if !host[op] && soleUserExcludedConstant(op, host) {
			excluded[op] = true
		}
	}
	return excluded
}
