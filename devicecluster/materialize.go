package devicecluster

import (
	"fmt"

	"github.com/irpartition/clusterbydevice/ir"
)

// materialize extracts cluster's member operations out of fn into a
// freshly created sibling ir.Function, replacing them in fn with a
// single call operation. The cluster's ops are cloned (not moved) into
// the new function through a ValueMapping seeded with the
// input-value-to-parameter correspondence, then erased from fn in
// reverse block order once every outside use of a cluster output has
// been redirected to the call's matching result — erase-after-redirect
// is what keeps every Value's use-list consistent mid-transformation.
func materialize(module *ir.Module, fn *ir.Function, cluster *Cluster, opts Options, runID string) (*ir.Function, *FunctionMetadata) {
	ops := cluster.OpsSorted()
	memberSet := opSetFromSlice(ops)
	term := fn.Entry.Terminator()
	var retMultiplicity map[*ir.Value]int
	if opts.DupOutputs {
		retMultiplicity = ir.ReturnMultiplicity(term)
	}
	inputs := ir.InputsOfCluster(ops)
	outputs := ir.OutputsOfCluster(ops, retMultiplicity)

	paramTypes := make([]ir.Type, len(inputs))
	for i, v := range inputs {
		paramTypes[i] = v.Type
	}
	device := cluster.DeviceTag()
	anchor := opts.DeviceAnchorName
	if cluster.IsHost() {
		anchor = ir.HostAnchorName()
	}
	newFn := ir.NewFunction(fmt.Sprintf("%s_%s", fn.Name, device), paramTypes)
	newFn.Attrs[opts.AttrName] = device
	newFn.Attrs[anchor] = "true"
	newFn.Attrs["cluster.run_id"] = runID

	mapping := ir.NewValueMapping()
	for i, v := range inputs {
		mapping.Map(v, newFn.Params[i])
	}
	for _, op := range ops {
		newFn.Entry.Append(op.Clone(mapping))
	}
	retOperands := make([]*ir.Value, len(outputs))
	for i, v := range outputs {
		retOperands[i] = mapping.Lookup(v)
	}
	newFn.Entry.Append(ir.NewOperation("return", retOperands, nil))

	if idx := module.IndexOfFunction(fn); idx >= 0 {
		module.InsertFunction(idx, newFn)
	} else {
		module.AppendFunction(newFn)
	}

	resultTypes := make([]ir.Type, len(outputs))
	for i, v := range outputs {
		resultTypes[i] = v.Type
	}
	call := ir.NewOperation("call", append([]*ir.Value(nil), inputs...), resultTypes)
	call.SetAttr("callee", newFn.Name)
	call.SetAttr(opts.AttrName, device)
	fn.Entry.InsertBefore(call, ops[0])

	for i, v := range outputs {
		if opts.DupOutputs {
			// Step one: every non-terminator outside use is rewired in
			// full immediately (a later duplicate of v in outputs has
			// nothing left to rewire on this front). Step two: exactly
			// one of the terminator's remaining operand slots holding v
			// is consumed per duplicate, so result i claims the i-th
			// occurrence rather than all of them at once.
			ir.ReplaceAllUsesExcept(v, call.Results[i], term)
			if term != nil {
				ir.ReplaceOneTerminatorOperand(term, v, call.Results[i])
			}
			continue
		}
		for _, use := range append([]ir.Use(nil), v.Uses()...) {
			if memberSet[use.User] {
				continue
			}
			use.User.SetOperand(use.Index, call.Results[i])
		}
	}
	for i := len(ops) - 1; i >= 0; i-- {
		ops[i].Erase()
	}

	meta := newMetadata(newFn, cluster, inputs, outputs, runID)
	return newFn, meta
}
