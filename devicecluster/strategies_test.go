package devicecluster

import (
	"testing"

	"github.com/irpartition/clusterbydevice/ir"
	"github.com/stretchr/testify/require"
)

func buildDiamond(t *testing.T) *ir.Function {
	t.Helper()
	fn := ir.NewFunction("f", []ir.Type{{Name: "f32"}})
	left := ir.NewOperation("left", []*ir.Value{fn.Params[0]}, []ir.Type{{Name: "f32"}})
	left.SetAttr("device", "gpu0")
	fn.Entry.Append(left)
	right := ir.NewOperation("right", []*ir.Value{fn.Params[0]}, []ir.Type{{Name: "f32"}})
	right.SetAttr("device", "gpu0")
	fn.Entry.Append(right)
	join := ir.NewOperation("join", []*ir.Value{left.Result0(), right.Result0()}, []ir.Type{{Name: "f32"}})
	join.SetAttr("device", "gpu0")
	fn.Entry.Append(join)
	ret := ir.NewOperation("return", []*ir.Value{join.Result0()}, nil)
	fn.Entry.Append(ret)
	return fn
}

func TestBottomUpJoinsDiamondIntoOneCluster(t *testing.T) {
	fn := buildDiamond(t)
	opts := Options{AttrName: "device", Device: "gpu0", DeviceAnchorName: "host_anchor"}
	host := MarkHosts(fn, opts)
	excluded := ExcludedConstants(fn, host)
	m := BottomUp(fn, host, excluded, opts)
	count, _ := clusterStats(m, fn, host, excluded)
	require.Equal(t, 1, count)
}

func TestGreedyPicksFewerClusters(t *testing.T) {
	fn := buildDiamond(t)
	opts := Options{AttrName: "device", Device: "gpu0", DeviceAnchorName: "host_anchor", ClusterAlgo: AlgoGreedy}
	host := MarkHosts(fn, opts)
	excluded := ExcludedConstants(fn, host)
	m := Run(fn, host, excluded, opts)
	count, _ := clusterStats(m, fn, host, excluded)
	require.Equal(t, 1, count)
}
