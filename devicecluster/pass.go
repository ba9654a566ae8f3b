package devicecluster

import (
	"github.com/gomlx/exceptions"
	"github.com/google/uuid"
	"github.com/irpartition/clusterbydevice/ir"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ClusterByDevice partitions every function in module into
// device-homogeneous subgraphs per opts, materializing each surviving
// cluster as a new sibling function and rewriting the original
// function's body to call it. It mutates module in place.
//
// Internal invariant violations (a merge attempted between a host and a
// device cluster, a detached operation's index being read) panic via
// github.com/gomlx/exceptions deep in
// the call stack; ClusterByDevice is the only place that panic is
// allowed to cross, converted here into a regular error so this
// package never panics across its own public boundary.
func ClusterByDevice(module *ir.Module, opts Options) error {
	_, err := ClusterByDeviceWithMetadata(module, opts)
	return err
}

// ClusterByDeviceWithMetadata behaves like ClusterByDevice but also
// returns a FunctionMetadata entry for every partition function it
// materialized, in materialization order — consumed by cmd/clusterreport
// and useful to callers that want to log or verify what was extracted
// without re-scanning the module's attributes afterward.
func ClusterByDeviceWithMetadata(module *ir.Module, opts Options) ([]*FunctionMetadata, error) {
	opts = opts.withDefaults()
	if opts.Device == "" {
		return nil, errors.New("devicecluster: Options.Device must be set")
	}

	runID := uuid.New().String()
	klog.V(1).Infof("devicecluster: run %s starting, algo=%s device=%q", runID, opts.ClusterAlgo, opts.Device)

	var allMeta []*FunctionMetadata
	err := exceptions.TryCatch[error](func() {
		for _, fn := range append([]*ir.Function(nil), module.Functions()...) {
			allMeta = append(allMeta, clusterFunction(module, fn, opts, runID)...)
		}
	})
	if err != nil {
		return nil, errors.Wrapf(err, "devicecluster: run %s failed", runID)
	}
	klog.V(1).Infof("devicecluster: run %s produced %d partition function(s)", runID, len(allMeta))
	return allMeta, nil
}

func clusterFunction(module *ir.Module, fn *ir.Function, opts Options, runID string) []*FunctionMetadata {
	replicateConstants(fn, opts)
	host := MarkHosts(fn, opts)
	excluded := ExcludedConstants(fn, host)
	m := Run(fn, host, excluded, opts)
	candidates := selectCandidates(m, fn, host, excluded, opts)

	var metas []*FunctionMetadata
	for _, c := range candidates {
		if len(c.Ops()) == 0 {
			continue
		}
		_, meta := materialize(module, fn, c, opts, runID)
		klog.V(1).Infof("devicecluster: extracted %q (%d ops, device=%q) from %q", meta.Name, meta.NumOps, meta.Device, fn.Name)
		metas = append(metas, meta)
	}
	return metas
}
