package devicecluster

import "github.com/irpartition/clusterbydevice/ir"

// replicateConstants runs the IR's generic replication pre-pass with a
// predicate derived from Options: splat constant-like ops are always
// eligible (duplicating a single repeated scalar is always cheaper than
// threading it across a partition boundary), non-splat constant-like
// ops only when DupNonSplat is set. Running this before clustering
// means a constant shared by two otherwise-independent candidates never
// forces them to merge just to share a producer.
func replicateConstants(fn *ir.Function, opts Options) {
	ir.ReplicateDefiningOp(fn.Entry, func(op *ir.Operation) bool {
		if ir.IsSplatConstantLike(op) {
			return true
		}
		return opts.DupNonSplat && ir.IsConstantLike(op)
	})
}
