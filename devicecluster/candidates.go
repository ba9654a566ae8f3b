package devicecluster

import (
	"sort"

	"github.com/irpartition/clusterbydevice/ir"
	"k8s.io/klog/v2"
)

// collectCandidates returns the distinct non-host device clusters
// currently recorded in m, ordered by operation count descending so the
// coalescing pass in selectCandidates always has the largest cluster as
// its first head.
func collectCandidates(m *OpClusterMap, fn *ir.Function, host, excluded map[*ir.Operation]bool) []*Cluster {
	seen := map[*Cluster]bool{}
	var out []*Cluster
	for _, op := range fn.Entry.NonTerminatorOps() {
		if !eligible(op, host, excluded) {
			continue
		}
		c := m.ClusterOf(op)
		if c == nil || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].size() > out[j].size() })
	return out
}

// hostCandidate returns the root cluster holding the block's host ops,
// or nil if the block has none. Only the fallback strategy surfaces
// this as a materialization candidate (spec open question (b): the
// host metadata entry is emitted only when host ops exist, and only for
// fallback — the directed strategies never produce one).
func hostCandidate(m *OpClusterMap, fn *ir.Function, host map[*ir.Operation]bool) *Cluster {
	for _, op := range fn.Entry.NonTerminatorOps() {
		if !host[op] {
			continue
		}
		if c := m.ClusterOf(op); c != nil {
			return c.Root()
		}
	}
	return nil
}

func opSetFromSlice(ops []*ir.Operation) map[*ir.Operation]bool {
	set := make(map[*ir.Operation]bool, len(ops))
	for _, op := range ops {
		set[op] = true
	}
	return set
}

// selectCandidates runs validate_subgraph (if configured) over every
// device cluster, then always progressively coalesces the survivors:
// walking the size-descending list, each head cluster absorbs every
// later cluster it can legally merge into; the result is re-sorted by
// size descending. With enable_multi_graph=false only the largest
// surviving cluster is kept as a candidate — every other is demoted
// back to host rather than aborting the whole pass, so clustering
// always completes, it just leaves more on the host than an
// unconstrained run would. Finally, for the fallback strategy only, the
// host cluster (if non-empty) is prepended as its own candidate.
func selectCandidates(m *OpClusterMap, fn *ir.Function, host, excluded map[*ir.Operation]bool, opts Options) []*Cluster {
	candidates := collectCandidates(m, fn, host, excluded)

	if opts.ValidateSubGraph != nil {
		var validated []*Cluster
		for _, c := range candidates {
			if opts.ValidateSubGraph(c.OpsSorted()) {
				validated = append(validated, c)
				continue
			}
			klog.V(1).Infof("devicecluster: candidate with %d ops rejected by validate_subgraph, demoted to host", c.size())
			demoteToHost(m, fn, c)
		}
		candidates = validated
	}

	candidates = coalesce(m, fn, candidates)

	var result []*Cluster
	for i, c := range candidates {
		if i == 0 || opts.EnableMultiGraph {
			result = append(result, c)
			continue
		}
		klog.Warningf("devicecluster: candidate with %d ops could not join the single allowed device cluster (enable_multi_graph=false), demoted to host", c.size())
		demoteToHost(m, fn, c)
	}

	if opts.ClusterAlgo == AlgoFallback {
		if hc := hostCandidate(m, fn, host); hc != nil {
			result = append([]*Cluster{hc}, result...)
		}
	}
	return result
}

// coalesce walks candidates (already size-descending) and, for each
// cluster not yet absorbed by an earlier head, attempts to merge every
// later cluster into it; a merge failure just leaves that later cluster
// for its own turn as a head. Surviving roots are deduplicated and
// re-sorted by size descending, per the progressive-coalescing pass.
func coalesce(m *OpClusterMap, fn *ir.Function, candidates []*Cluster) []*Cluster {
	processed := map[*Cluster]bool{}
	for i, head := range candidates {
		headRoot := head.Root()
		if processed[headRoot] {
			continue
		}
		for _, other := range candidates[i+1:] {
			otherRoot := other.Root()
			if otherRoot == headRoot || processed[otherRoot] {
				continue
			}
			TryMergeInto(m, fn.Entry, otherRoot, headRoot)
		}
		processed[headRoot] = true
	}

	seen := map[*Cluster]bool{}
	var out []*Cluster
	for _, c := range candidates {
		root := c.Root()
		if seen[root] {
			continue
		}
		seen[root] = true
		out = append(out, root)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].size() > out[j].size() })
	return out
}

// demoteToHost reassigns every op in c to the host partition, used when
// a candidate is rejected after clustering has already run.
func demoteToHost(m *OpClusterMap, fn *ir.Function, c *Cluster) {
	var hostCluster *Cluster
	for _, op := range fn.Entry.NonTerminatorOps() {
		if existing := m.ClusterOf(op); existing != nil && existing.IsHost() {
			hostCluster = existing
			break
		}
	}
	for _, op := range c.OpsSorted() {
		delete(c.Root().ops, op)
		if hostCluster == nil {
			hostCluster = m.Singleton(op, "")
		} else {
			hostCluster.ops[op] = true
			m.byOp[op] = hostCluster
		}
	}
}
