package devicecluster

import (
	"testing"

	"github.com/irpartition/clusterbydevice/ir"
	"github.com/stretchr/testify/require"
)

func TestTryMergeIntoRelocatesFreeGapOp(t *testing.T) {
	fn := ir.NewFunction("f", []ir.Type{{Name: "f32"}})
	a := ir.NewOperation("a", []*ir.Value{fn.Params[0]}, []ir.Type{{Name: "f32"}})
	fn.Entry.Append(a)
	free := ir.NewOperation("free", []*ir.Value{fn.Params[0]}, []ir.Type{{Name: "f32"}})
	fn.Entry.Append(free)
	b := ir.NewOperation("b", []*ir.Value{a.Result0()}, []ir.Type{{Name: "f32"}})
	fn.Entry.Append(b)
	ret := ir.NewOperation("return", []*ir.Value{b.Result0(), free.Result0()}, nil)
	fn.Entry.Append(ret)

	m := NewOpClusterMap()
	ca := m.Singleton(a, "gpu0")
	m.Singleton(free, "") // host cluster, sits in the gap
	cb := m.Singleton(b, "gpu0")

	ok := TryMergeInto(m, fn.Entry, cb, ca)
	require.True(t, ok)

	merged := m.ClusterOf(a)
	require.Equal(t, merged, m.ClusterOf(b))
	require.Len(t, merged.Ops(), 2)
	// free had to move out of the [a,b] span; it depends only on the
	// function parameter, so it moves up, ahead of the merged cluster.
	require.Less(t, free.Index(), a.Index())
}

func TestTryMergeIntoRejectsConflictingDirections(t *testing.T) {
	fn := ir.NewFunction("f", []ir.Type{{Name: "f32"}})
	a := ir.NewOperation("a", []*ir.Value{fn.Params[0]}, []ir.Type{{Name: "f32"}})
	fn.Entry.Append(a)
	// trapped depends on a (so it can't move up) and feeds b (so it
	// can't move down either). TryMergeInto never folds a gap op into
	// the merge, so the merge must fail.
	trapped := ir.NewOperation("trapped", []*ir.Value{a.Result0()}, []ir.Type{{Name: "f32"}})
	fn.Entry.Append(trapped)
	b := ir.NewOperation("b", []*ir.Value{trapped.Result0()}, []ir.Type{{Name: "f32"}})
	fn.Entry.Append(b)
	ret := ir.NewOperation("return", []*ir.Value{b.Result0()}, nil)
	fn.Entry.Append(ret)

	m := NewOpClusterMap()
	ca := m.Singleton(a, "gpu0")
	m.Singleton(trapped, "")
	cb := m.Singleton(b, "gpu0")

	ok := TryMergeInto(m, fn.Entry, cb, ca)
	require.False(t, ok)
	require.NotEqual(t, m.ClusterOf(a), m.ClusterOf(b))
}

func TestMarkHostsPropagatesThroughOperandChain(t *testing.T) {
	fn := ir.NewFunction("f", []ir.Type{{Name: "f32"}})
	hostRoot := ir.NewOperation("print", []*ir.Value{fn.Params[0]}, []ir.Type{{Name: "f32"}})
	hostRoot.SetAttr("device", "host")
	fn.Entry.Append(hostRoot)
	derived := ir.NewOperation("consume", []*ir.Value{hostRoot.Result0()}, nil)
	fn.Entry.Append(derived)
	ret := ir.NewOperation("return", nil, nil)
	fn.Entry.Append(ret)

	opts := Options{AttrName: "device", Device: "gpu0", DeviceAnchorName: "host_anchor"}
	host := MarkHosts(fn, opts)
	require.True(t, host[hostRoot])
	require.True(t, host[derived])
}
