package devicecluster

import "github.com/irpartition/clusterbydevice/ir"

// FunctionMetadata describes one materialized partition function: its
// identity, the device it runs on, and the input/output value lists
// used to build both the function's signature and its call site.
type FunctionMetadata struct {
	Name    string
	Device  string
	RunID   string
	Inputs  []*ir.Value
	Outputs []*ir.Value
	NumOps  int
}

func newMetadata(fn *ir.Function, cluster *Cluster, inputs, outputs []*ir.Value, runID string) *FunctionMetadata {
	return &FunctionMetadata{
		Name:    fn.Name,
		Device:  cluster.DeviceTag(),
		RunID:   runID,
		Inputs:  inputs,
		Outputs: outputs,
		NumOps:  cluster.size(),
	}
}
