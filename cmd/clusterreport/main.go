// Command clusterreport runs the device-clustering pass against a small
// built-in example graph and prints a table describing the partition
// functions it produced — a demonstration / smoke-test harness, not a
// general-purpose compiler front-end (there is no textual IR format to
// parse; the example graph is built directly with the ir package).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/irpartition/clusterbydevice/devicecluster"
	"github.com/irpartition/clusterbydevice/ir"
	"k8s.io/klog/v2"
)

var (
	flagAlgo   = flag.String("algo", "top_down", "clustering algorithm: fallback, top_down, bottom_up, greedy")
	flagDevice = flag.String("device", "gpu0", "device attribute value to cluster")
)

func main() {
	flag.Parse()
	algo := devicecluster.Algo(*flagAlgo)
	switch algo {
	case devicecluster.AlgoFallback, devicecluster.AlgoTopDown, devicecluster.AlgoBottomUp, devicecluster.AlgoGreedy:
	default:
		klog.Errorf("clusterreport: unknown -algo %q", *flagAlgo)
		os.Exit(1)
	}

	module, fn := buildExampleModule(*flagDevice)
	metas, err := devicecluster.ClusterByDeviceWithMetadata(module, devicecluster.Options{
		Device:      *flagDevice,
		ClusterAlgo: algo,
	})
	if err != nil {
		klog.Errorf("clusterreport: %v", err)
		os.Exit(1)
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("Partitions of %q (algo=%s)", fn.Name, algo)))
	table := newPlainTable(lipgloss.Left, lipgloss.Right, lipgloss.Right, lipgloss.Right)
	table.Row("function", "device", "ops", "inputs", "outputs")
	for _, m := range metas {
		table.Row(
			m.Name,
			m.Device,
			humanize.Comma(int64(m.NumOps)),
			humanize.Comma(int64(len(m.Inputs))),
			humanize.Comma(int64(len(m.Outputs))),
		)
	}
	fmt.Println(table.Render())
	fmt.Printf("remaining host-side operations in %q: %d\n", fn.Name, len(fn.Entry.NonTerminatorOps()))
}

// buildExampleModule constructs a small graph mixing host bookkeeping
// ops with a device-attributed compute chain: a host "load" feeds the
// first of two device adds (the second reads only the parameters),
// which join into a device multiply, followed by a host
// "store" of the result — enough structure to exercise every
// clustering strategy without needing an on-disk fixture format.
func buildExampleModule(device string) (*ir.Module, *ir.Function) {
	m := ir.NewModule()
	fn := ir.NewFunction("main", []ir.Type{{Name: "f32"}, {Name: "f32"}})
	m.AppendFunction(fn)

	load := ir.NewOperation("load", []*ir.Value{fn.Params[0]}, []ir.Type{{Name: "f32"}})
	load.SetAttr("device", "host")
	fn.Entry.Append(load)

	addA := ir.NewOperation("add", []*ir.Value{load.Result0(), fn.Params[1]}, []ir.Type{{Name: "f32"}})
	addA.SetAttr("device", device)
	fn.Entry.Append(addA)

	addB := ir.NewOperation("add", []*ir.Value{fn.Params[0], fn.Params[1]}, []ir.Type{{Name: "f32"}})
	addB.SetAttr("device", device)
	fn.Entry.Append(addB)

	mul := ir.NewOperation("mul", []*ir.Value{addA.Result0(), addB.Result0()}, []ir.Type{{Name: "f32"}})
	mul.SetAttr("device", device)
	fn.Entry.Append(mul)

	store := ir.NewOperation("store", []*ir.Value{mul.Result0()}, nil)
	store.SetAttr("device", "host")
	fn.Entry.Append(store)

	ret := ir.NewOperation("return", nil, nil)
	fn.Entry.Append(ret)
	return m, fn
}
