// Package devicecluster implements a compiler pass that partitions a
// single-block dataflow function into device-homogeneous subgraphs,
// materializing each subgraph as its own ir.Function and wiring call
// sites into the original function in its place.
//
// The pass never inspects operation semantics beyond the narrow surface
// ir exposes: operand/result lists, a device placement attribute, and
// the constant-like/splat flags consumed by the replication pre-pass.
package devicecluster

import "github.com/irpartition/clusterbydevice/ir"

// Algo selects which clustering strategy ClusterByDevice runs.
type Algo string

const (
	// AlgoFallback leaves host-marked ops on the host and merges the
	// rest, in block order, into one device cluster wherever the merge
	// is legal — no attempt at minimizing host/device crossings, just a
	// split. Ops whose merge is rejected stay in clusters of their own.
	AlgoFallback Algo = "fallback"
	// AlgoTopDown grows clusters by pulling a candidate op into the
	// cluster of its producers when safe to do so.
	AlgoTopDown Algo = "top_down"
	// AlgoBottomUp grows clusters by pulling a candidate op into the
	// cluster of its consumers when safe to do so.
	AlgoBottomUp Algo = "bottom_up"
	// AlgoGreedy runs both directed strategies on independent clones of
	// the function and keeps whichever produced fewer, larger clusters.
	AlgoGreedy Algo = "greedy"
)

// ValidateSubGraph is called with a candidate cluster's member
// operations before it is finalized; returning false rejects the
// candidate, which falls back to its constituent ops running on host.
type ValidateSubGraph func(ops []*ir.Operation) bool

// Options configures one ClusterByDevice invocation.
type Options struct {
	// AttrName is the attribute key ops carry their placement under.
	// Defaults to "device".
	AttrName string
	// Device is the device tag stamped on device clusters and on the
	// partition functions made from them. Every op that MarkHosts does
	// not mark as host is clustered under it, whatever its own placement
	// value is (including unset). Required — ClusterByDevice returns an
	// error if empty.
	Device string
	// DeviceAnchorName is the attribute key set (to "true") on every
	// device partition function ClusterByDevice materializes; the host
	// partition function gets ir.HostAnchorName() instead. Defaults to
	// ir.HostAnchorName().
	DeviceAnchorName string
	// DupNonSplat allows non-splat constant-like ops to be duplicated
	// across multiple clusters during the replication pre-pass. Splat
	// constant-like ops are always eligible for replication regardless
	// of this flag.
	DupNonSplat bool
	// DupOutputs controls how a cluster-produced value that the source
	// function's own terminator returns more than once is surfaced.
	// When true, the value is emitted once per terminator occurrence
	// (k times for a value returned k times) rather than once overall,
	// and each of the resulting call results is wired to replace
	// exactly one of those terminator occurrences.
	DupOutputs bool
	// ClusterAlgo selects the strategy. Defaults to AlgoFallback.
	ClusterAlgo Algo
	// EnableMultiGraph allows more than one non-host cluster to survive
	// candidate selection. When false, the strategy's device clusters
	// are coalesced wherever a merge is legal and only the largest
	// resulting cluster is materialized; every other device cluster is
	// demoted to host.
	EnableMultiGraph bool
	// ValidateSubGraph, if set, gates every device candidate before
	// materialization.
	ValidateSubGraph ValidateSubGraph
}

func (o Options) withDefaults() Options {
	if o.AttrName == "" {
		o.AttrName = "device"
	}
	if o.DeviceAnchorName == "" {
		o.DeviceAnchorName = ir.HostAnchorName()
	}
	if o.ClusterAlgo == "" {
		o.ClusterAlgo = AlgoFallback
	}
	return o
}
