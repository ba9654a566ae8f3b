package devicecluster_test

import (
	"testing"

	"github.com/irpartition/clusterbydevice/devicecluster"
	"github.com/irpartition/clusterbydevice/ir"
	"github.com/stretchr/testify/require"
)

// buildChain builds: p0 -> add(p0,p0)[device] -> mul(add,p0)[device] -> return mul
// i.e. a two-op device-eligible chain with no host ops in between.
func buildChainModule(t *testing.T) (*ir.Module, *ir.Function) {
	t.Helper()
	m := ir.NewModule()
	fn := ir.NewFunction("main", []ir.Type{{Name: "f32"}})
	m.AppendFunction(fn)

	add := ir.NewOperation("add", []*ir.Value{fn.Params[0], fn.Params[0]}, []ir.Type{{Name: "f32"}})
	add.SetAttr("device", "gpu0")
	fn.Entry.Append(add)

	mul := ir.NewOperation("mul", []*ir.Value{add.Result0(), fn.Params[0]}, []ir.Type{{Name: "f32"}})
	mul.SetAttr("device", "gpu0")
	fn.Entry.Append(mul)

	ret := ir.NewOperation("return", []*ir.Value{mul.Result0()}, nil)
	fn.Entry.Append(ret)
	return m, fn
}

func TestClusterByDeviceMergesWholeChainTopDown(t *testing.T) {
	m, fn := buildChainModule(t)
	metas, err := devicecluster.ClusterByDeviceWithMetadata(m, devicecluster.Options{
		Device:      "gpu0",
		ClusterAlgo: devicecluster.AlgoTopDown,
	})
	require.NoError(t, err)
	require.Len(t, metas, 1)
	require.Equal(t, 2, metas[0].NumOps)
	require.Len(t, metas[0].Inputs, 1)
	require.Len(t, metas[0].Outputs, 1)

	// The original function now holds only a call plus its return.
	ops := fn.Entry.NonTerminatorOps()
	require.Len(t, ops, 1)
	require.Equal(t, "call", ops[0].Name)
	require.Equal(t, 2, len(m.Functions()))
}

func TestFallbackSplitsHostFromDevice(t *testing.T) {
	m := ir.NewModule()
	fn := ir.NewFunction("main", []ir.Type{{Name: "f32"}})
	m.AppendFunction(fn)

	hostOp := ir.NewOperation("print", []*ir.Value{fn.Params[0]}, nil)
	hostOp.SetAttr("device", "host")
	fn.Entry.Append(hostOp)

	devOp := ir.NewOperation("add", []*ir.Value{fn.Params[0], fn.Params[0]}, []ir.Type{{Name: "f32"}})
	devOp.SetAttr("device", "gpu0")
	fn.Entry.Append(devOp)

	ret := ir.NewOperation("return", []*ir.Value{devOp.Result0()}, nil)
	fn.Entry.Append(ret)

	metas, err := devicecluster.ClusterByDeviceWithMetadata(m, devicecluster.Options{Device: "gpu0"})
	require.NoError(t, err)
	require.Len(t, metas, 2, "fallback must emit both a host function and a device function")
	require.Equal(t, "host", metas[0].Device)
	require.Equal(t, 1, metas[0].NumOps)
	require.Equal(t, "gpu0", metas[1].Device)
	require.Equal(t, 1, metas[1].NumOps)
}

func TestValidateSubGraphRejectionFallsBackToHost(t *testing.T) {
	m, _ := buildChainModule(t)
	metas, err := devicecluster.ClusterByDeviceWithMetadata(m, devicecluster.Options{
		Device:      "gpu0",
		ClusterAlgo: devicecluster.AlgoTopDown,
		ValidateSubGraph: func(ops []*ir.Operation) bool {
			return false // reject every candidate unconditionally
		},
	})
	require.NoError(t, err)
	require.Len(t, metas, 0, "rejected candidates must not be materialized")
}

func TestDeviceOptionRequired(t *testing.T) {
	m := ir.NewModule()
	err := devicecluster.ClusterByDevice(m, devicecluster.Options{})
	require.Error(t, err)
}

func TestDupOutputsDuplicatesRepeatedReturnValue(t *testing.T) {
	m := ir.NewModule()
	fn := ir.NewFunction("main", []ir.Type{{Name: "f32"}})
	m.AppendFunction(fn)

	w := ir.NewOperation("load", []*ir.Value{fn.Params[0]}, []ir.Type{{Name: "f32"}})
	w.SetAttr("device", "host")
	fn.Entry.Append(w)

	a := ir.NewOperation("a", []*ir.Value{fn.Params[0]}, []ir.Type{{Name: "f32"}})
	a.SetAttr("device", "gpu0")
	fn.Entry.Append(a)

	v := a.Result0()
	ret := ir.NewOperation("return", []*ir.Value{v, v, w.Result0()}, nil)
	fn.Entry.Append(ret)

	metas, err := devicecluster.ClusterByDeviceWithMetadata(m, devicecluster.Options{
		Device:     "gpu0",
		DupOutputs: true,
	})
	require.NoError(t, err)
	require.Len(t, metas, 2)
	for _, meta := range metas {
		if meta.Device == "gpu0" {
			require.Len(t, meta.Outputs, 2, "v must be surfaced once per terminator occurrence")
		}
	}

	term := fn.Entry.Terminator()
	require.Len(t, term.Operands, 3)
	require.NotEqual(t, term.Operands[0], term.Operands[1], "each occurrence must be wired to a distinct call result")
	require.NotEqual(t, term.Operands[0], term.Operands[2])
}

func TestEnableMultiGraphFalseCoalescesDisjointClusters(t *testing.T) {
	m := ir.NewModule()
	fn := ir.NewFunction("main", []ir.Type{{Name: "f32"}, {Name: "f32"}})
	m.AppendFunction(fn)

	a := ir.NewOperation("a", []*ir.Value{fn.Params[0]}, []ir.Type{{Name: "f32"}})
	a.SetAttr("device", "gpu0")
	fn.Entry.Append(a)

	// a and b share no producer or consumer edge, and a host op sits
	// between them, so top_down alone finds two clusters.
	host := ir.NewOperation("print", []*ir.Value{fn.Params[1]}, nil)
	host.SetAttr("device", "host")
	fn.Entry.Append(host)

	b := ir.NewOperation("b", []*ir.Value{fn.Params[1]}, []ir.Type{{Name: "f32"}})
	b.SetAttr("device", "gpu0")
	fn.Entry.Append(b)

	ret := ir.NewOperation("return", []*ir.Value{a.Result0(), b.Result0()}, nil)
	fn.Entry.Append(ret)

	metas, err := devicecluster.ClusterByDeviceWithMetadata(m, devicecluster.Options{
		Device:           "gpu0",
		ClusterAlgo:      devicecluster.AlgoTopDown,
		EnableMultiGraph: false,
	})
	require.NoError(t, err)
	// a and b can legally merge (host sits strictly between them and has
	// no data dependency forcing it to stay there), so they end up in one
	// partition function even though top_down alone wouldn't have joined
	// them.
	require.Len(t, metas, 1)
	require.Equal(t, 2, metas[0].NumOps)
}
