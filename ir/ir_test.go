package ir_test

import (
	"testing"

	"github.com/irpartition/clusterbydevice/ir"
	"github.com/stretchr/testify/require"
)

func buildSimpleFunction() (*ir.Function, *ir.Operation, *ir.Operation) {
	fn := ir.NewFunction("f", []ir.Type{{Name: "i32"}})
	a := ir.NewOperation("add", []*ir.Value{fn.Params[0], fn.Params[0]}, []ir.Type{{Name: "i32"}})
	fn.Entry.Append(a)
	b := ir.NewOperation("mul", []*ir.Value{a.Result0(), fn.Params[0]}, []ir.Type{{Name: "i32"}})
	fn.Entry.Append(b)
	ret := ir.NewOperation("return", []*ir.Value{b.Result0()}, nil)
	fn.Entry.Append(ret)
	return fn, a, b
}

func TestOperationUseList(t *testing.T) {
	fn, a, b := buildSimpleFunction()
	require.Equal(t, 2, fn.Params[0].NumUses()) // used by add(x,x) and mul(_, x)
	require.Equal(t, 1, a.Result0().NumUses())
	require.Equal(t, b, a.Result0().SoleUser())
}

func TestBlockIndicesStayConsistent(t *testing.T) {
	fn, a, b := buildSimpleFunction()
	require.Equal(t, 0, a.Index())
	require.Equal(t, 1, b.Index())
	require.Equal(t, 2, fn.Entry.Terminator().Index())
}

func TestMoveBeforePreservesRelativeOrder(t *testing.T) {
	fn := ir.NewFunction("f", nil)
	var ops []*ir.Operation
	for i := 0; i < 5; i++ {
		op := ir.NewOperation("noop", nil, nil)
		fn.Entry.Append(op)
		ops = append(ops, op)
	}
	anchor := ops[0]
	// Move ops[3] then ops[2] then ops[1] before anchor, in descending
	// index order, as devicecluster's move-up does; relative order of
	// 1,2,3 must be preserved.
	ops[3].MoveBefore(anchor)
	ops[2].MoveBefore(anchor)
	ops[1].MoveBefore(anchor)
	got := indicesOf(fn, ops[1], ops[2], ops[3])
	require.True(t, got[0] < got[1] && got[1] < got[2])
}

func indicesOf(fn *ir.Function, ops ...*ir.Operation) []int {
	out := make([]int, len(ops))
	for i, op := range ops {
		out[i] = op.Index()
	}
	return out
}

func TestSymbolTableRenamesOnCollision(t *testing.T) {
	st := ir.NewSymbolTable()
	require.Equal(t, "f", st.Insert("f"))
	require.Equal(t, "f_1", st.Insert("f"))
	require.Equal(t, "f_2", st.Insert("f"))
}

func TestModuleAppendFunctionReservesName(t *testing.T) {
	m := ir.NewModule()
	f1 := ir.NewFunction("main", nil)
	m.AppendFunction(f1)
	f2 := ir.NewFunction("main", nil)
	m.AppendFunction(f2)
	require.Equal(t, "main", f1.Name)
	require.Equal(t, "main_1", f2.Name)
}

func TestCloneRemapsOperandsThroughMapping(t *testing.T) {
	fn, a, b := buildSimpleFunction()
	_ = a
	mapping := ir.NewValueMapping()
	clone := b.Clone(mapping)
	require.Equal(t, "mul", clone.Name)
	require.NotEqual(t, b.Result0(), clone.Result0())
	// b's first operand (a's result) is outside the mapping, passes
	// through unchanged.
	require.Equal(t, b.Operands[0], clone.Operands[0])
	_ = fn
}

func TestInputsAndOutputsOfCluster(t *testing.T) {
	fn, a, b := buildSimpleFunction()
	cluster := []*ir.Operation{a}
	inputs := ir.InputsOfCluster(cluster)
	require.Len(t, inputs, 1)
	require.Equal(t, fn.Params[0], inputs[0])

	outputs := ir.OutputsOfCluster(cluster, nil)
	require.Len(t, outputs, 1)
	require.Equal(t, a.Result0(), outputs[0])
	_ = b
}

func TestReplicateDefiningOpLeavesTerminatorUserAlone(t *testing.T) {
	fn := ir.NewFunction("f", nil)
	c := ir.NewOperation("const", nil, []ir.Type{{Name: "i32"}})
	c.SetAttr("constant", "true")
	fn.Entry.Append(c)
	user1 := ir.NewOperation("use1", []*ir.Value{c.Result0()}, []ir.Type{{Name: "i32"}})
	fn.Entry.Append(user1)
	ret := ir.NewOperation("return", []*ir.Value{c.Result0(), user1.Result0()}, nil)
	fn.Entry.Append(ret)

	ir.ReplicateDefiningOp(fn.Entry, ir.IsConstantLike)

	// user1 should now reference a private replica, not c directly.
	require.NotEqual(t, c.Result0(), user1.Operands[0])
	// the terminator keeps referencing the original.
	require.Equal(t, c.Result0(), ret.Operands[0])
}
