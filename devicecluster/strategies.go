package devicecluster

import "github.com/irpartition/clusterbydevice/ir"

// assign builds an OpClusterMap for fn: every host op joins the single
// host cluster, every excluded constant is left unassigned (callers
// treat an unassigned op as "stays wherever ReplicateDefiningOp puts
// its copies"), and every other op starts life as its own singleton
// device cluster before the strategy-specific merge pass runs.
func assign(fn *ir.Function, host, excluded map[*ir.Operation]bool, opts Options) (*OpClusterMap, *Cluster) {
	m := NewOpClusterMap()
	var hostCluster *Cluster
	for _, op := range fn.Entry.NonTerminatorOps() {
		if excluded[op] {
			continue
		}
		if host[op] {
			if hostCluster == nil {
				hostCluster = m.Singleton(op, "")
			} else {
				m.byOp[op] = hostCluster.Root()
				hostCluster.Root().ops[op] = true
			}
			continue
		}
		m.Singleton(op, opts.Device)
	}
	if hostCluster == nil {
		hostCluster = newCluster(-1, "")
	}
	return m, hostCluster
}

func eligible(op *ir.Operation, host, excluded map[*ir.Operation]bool) bool {
	return !host[op] && !excluded[op]
}

// Fallback puts every host op into the complementary host cluster and
// merges the device-eligible ops, in block order, into one running
// cluster wherever TryMergeInto allows it. It does not force a merge
// TryMergeInto rejects: such an op keeps its own cluster, so the result
// can hold more than one device cluster. Run uses it when ClusterAlgo
// is AlgoFallback or any value Run does not recognise.
func Fallback(fn *ir.Function, host, excluded map[*ir.Operation]bool, opts Options) *OpClusterMap {
	m, _ := assign(fn, host, excluded, opts)
	ops := fn.Entry.NonTerminatorOps()
	var prev *Cluster
	for _, op := range ops {
		if !eligible(op, host, excluded) {
			continue
		}
		c := m.ClusterOf(op)
		if prev == nil {
			prev = c
			continue
		}
		if TryMergeInto(m, fn.Entry, c, prev) {
			prev = m.ClusterOf(op)
		}
	}
	return m
}

// TopDown grows each cluster by pulling a candidate op into its
// producer's cluster whenever the producer is also device-eligible and
// the merge is legal, processing ops in program order so a producer's
// cluster is always decided before its consumers are considered.
func TopDown(fn *ir.Function, host, excluded map[*ir.Operation]bool, opts Options) *OpClusterMap {
	m, _ := assign(fn, host, excluded, opts)
	for _, op := range fn.Entry.NonTerminatorOps() {
		if !eligible(op, host, excluded) {
			continue
		}
		for _, v := range op.Operands {
			if v == nil || v.Def == nil || !eligible(v.Def, host, excluded) {
				continue
			}
			TryMergeInto(m, fn.Entry, m.ClusterOf(op), m.ClusterOf(v.Def))
		}
	}
	return m
}

// BottomUp grows each cluster by pulling a candidate op into a
// consumer's cluster, processing ops in reverse program order so a
// consumer's cluster is always decided before its producers are
// considered.
func BottomUp(fn *ir.Function, host, excluded map[*ir.Operation]bool, opts Options) *OpClusterMap {
	m, _ := assign(fn, host, excluded, opts)
	ops := fn.Entry.NonTerminatorOps()
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		if !eligible(op, host, excluded) {
			continue
		}
		for _, res := range op.Results {
			merged := false
			for _, use := range res.Uses() {
				// The block's terminator is never assigned a cluster.
				if !eligible(use.User, host, excluded) || m.ClusterOf(use.User) == nil {
					continue
				}
				if TryMergeInto(m, fn.Entry, m.ClusterOf(op), m.ClusterOf(use.User)) {
					merged = true
					break
				}
			}
			if merged {
				break
			}
		}
	}
	return m
}

// clusterStats summarizes an assignment for Greedy's comparison: fewer,
// larger device clusters is strictly better, since it means fewer
// cross-partition calls at materialization time.
func clusterStats(m *OpClusterMap, fn *ir.Function, host, excluded map[*ir.Operation]bool) (count, maxSize int) {
	seen := map[*Cluster]bool{}
	for _, op := range fn.Entry.NonTerminatorOps() {
		if !eligible(op, host, excluded) {
			continue
		}
		c := m.ClusterOf(op)
		if c == nil || seen[c] {
			continue
		}
		seen[c] = true
		count++
		if s := c.size(); s > maxSize {
			maxSize = s
		}
	}
	return count, maxSize
}

// Greedy runs TopDown and BottomUp independently on separate clones of
// fn and keeps whichever produced fewer device clusters, breaking ties
// by preferring the larger maximum cluster size. Each strategy mutates
// op positions as it merges (TryMergeInto relocates gap ops), so
// running both in sequence on the same live function would let
// BottomUp observe TopDown's rearranged block instead of the original
// layout; cloning keeps the two trials independent. The winner is then
// re-run on the real fn/host/excluded the caller passed in, producing
// the OpClusterMap that actually gets materialized.
func Greedy(fn *ir.Function, host, excluded map[*ir.Operation]bool, opts Options) *OpClusterMap {
	tdClone := fn.Clone()
	tdHost := MarkHosts(tdClone, opts)
	tdExcluded := ExcludedConstants(tdClone, tdHost)
	tdCount, tdMax := clusterStats(TopDown(tdClone, tdHost, tdExcluded, opts), tdClone, tdHost, tdExcluded)

	buClone := fn.Clone()
	buHost := MarkHosts(buClone, opts)
	buExcluded := ExcludedConstants(buClone, buHost)
	buCount, buMax := clusterStats(BottomUp(buClone, buHost, buExcluded, opts), buClone, buHost, buExcluded)

	if tdCount < buCount || (tdCount == buCount && tdMax >= buMax) {
		return TopDown(fn, host, excluded, opts)
	}
	return BottomUp(fn, host, excluded, opts)
}

// Run dispatches to the strategy named by opts.ClusterAlgo.
func Run(fn *ir.Function, host, excluded map[*ir.Operation]bool, opts Options) *OpClusterMap {
	switch opts.ClusterAlgo {
	case AlgoTopDown:
		return TopDown(fn, host, excluded, opts)
	case AlgoBottomUp:
		return BottomUp(fn, host, excluded, opts)
	case AlgoGreedy:
		return Greedy(fn, host, excluded, opts)
	default:
		return Fallback(fn, host, excluded, opts)
	}
}
