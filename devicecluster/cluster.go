package devicecluster

import (
	"sort"

	"github.com/gomlx/exceptions"
	"github.com/irpartition/clusterbydevice/ir"
)

// Cluster is a disjoint-set node: a candidate subgraph under
// construction, identified by device ("" meaning host) and its member
// operations. Clusters merge via TryMergeInto; once two clusters merge,
// the absorbed one's Root() forwards to the survivor.
type Cluster struct {
	id     int
	device string
	parent *Cluster
	ops    map[*ir.Operation]bool // valid only on the root
}

func newCluster(id int, device string) *Cluster {
	return &Cluster{id: id, device: device, ops: map[*ir.Operation]bool{}}
}

// Root returns the representative cluster after following and
// compressing the parent chain.
func (c *Cluster) Root() *Cluster {
	root := c
	for root.parent != nil {
		root = root.parent
	}
	for c.parent != nil {
		next := c.parent
		c.parent = root
		c = next
	}
	return root
}

// Device returns the root cluster's device ("" for host).
func (c *Cluster) Device() string {
	return c.Root().device
}

// DeviceTag returns the device attribute value materialization stamps
// onto the produced function: the cluster's device for a device
// cluster, or the literal "host" for the host partition (whose
// internal device field is "" only to distinguish it from a named
// device, never to be surfaced as the tag itself).
func (c *Cluster) DeviceTag() string {
	if c.IsHost() {
		return "host"
	}
	return c.Device()
}

// Ops returns the root cluster's member operations, unordered.
func (c *Cluster) Ops() []*ir.Operation {
	root := c.Root()
	out := make([]*ir.Operation, 0, len(root.ops))
	for op := range root.ops {
		out = append(out, op)
	}
	return out
}

// OpsSorted returns the root cluster's members sorted by block index.
func (c *Cluster) OpsSorted() []*ir.Operation {
	ops := c.Ops()
	sort.Slice(ops, func(i, j int) bool { return ops[i].Index() < ops[j].Index() })
	return ops
}

// IsHost reports whether this cluster is the host partition.
func (c *Cluster) IsHost() bool {
	return c.Root().device == ""
}

func (c *Cluster) size() int {
	return len(c.Root().ops)
}

// OpClusterMap tracks which Cluster each operation currently belongs
// to. One map is built per function being clustered.
type OpClusterMap struct {
	byOp   map[*ir.Operation]*Cluster
	nextID int
}

// NewOpClusterMap creates an empty map.
func NewOpClusterMap() *OpClusterMap {
	return &OpClusterMap{byOp: map[*ir.Operation]*Cluster{}}
}

// Singleton creates a fresh one-op cluster for op on the given device
// ("" for host) and records it.
func (m *OpClusterMap) Singleton(op *ir.Operation, device string) *Cluster {
	c := newCluster(m.nextID, device)
	m.nextID++
	c.ops[op] = true
	m.byOp[op] = c
	return c
}

// ClusterOf returns op's current root cluster, or nil if op has never
// been assigned one.
func (m *OpClusterMap) ClusterOf(op *ir.Operation) *Cluster {
	c, ok := m.byOp[op]
	if !ok {
		return nil
	}
	root := c.Root()
	m.byOp[op] = root
	return root
}

// union absorbs src into dst, recording every absorbed op's new root
// and returning dst.
func (m *OpClusterMap) union(src, dst *Cluster) *Cluster {
	src = src.Root()
	dst = dst.Root()
	if src == dst {
		return dst
	}
	for op := range src.ops {
		dst.ops[op] = true
		m.byOp[op] = dst
	}
	src.ops = nil
	src.parent = dst
	return dst
}

// TryMergeInto attempts to merge the cluster containing from into the
// cluster containing to, both restricted to ops within block. The
// merged cluster is exactly from's ops plus to's ops — nothing else is
// ever folded in. Any other cluster caught in the gap between them
// (host or device) is relocated out of the gap as a whole, never split
// and never absorbed: either every one of its ops can move before the
// merged span (moveUp), or every one can move after it (moveDown), or —
// if some of its members already sit on both sides of the span, or its
// in-gap members depend on something that can move in neither
// direction — the entire TryMergeInto call fails and nothing is
// changed. This is the "whole-cluster atomicity" guarantee: a cluster
// caught in the middle is moved out whole or the merge is rejected
// outright, it is never partially folded into the merge to make room.
func TryMergeInto(m *OpClusterMap, block *ir.Block, from, to *Cluster) bool {
	from = from.Root()
	to = to.Root()
	if from == to {
		return true
	}
	if from.IsHost() != to.IsHost() {
		// Host and a named device never merge into one cluster; the
		// host partition is the complement, not a peer cluster.
		exceptions.Panicf("devicecluster: TryMergeInto called with one host and one device cluster; host only absorbs via hostmark, never via merge")
	}

	members := opSetUnion(from.ops, to.ops)
	lo, hi := spanOf(members)

	gap := gapOps(block, lo, hi, members)
	moveUp, moveDown, ok := classifyGap(gap, members, m, lo, hi)
	if !ok {
		return false
	}

	root := m.union(from, to)

	// relocateUp must run before relocateDown: it inserts ops ahead of
	// the merged span, which shifts every later index (hi included), so
	// the down-anchor is found fresh off the cluster's own members
	// rather than reusing the hi computed above.
	relocateUp(block, moveUp, lo)
	relocateDown(block, moveDown, root)
	return true
}

func opSetUnion(a, b map[*ir.Operation]bool) map[*ir.Operation]bool {
	out := make(map[*ir.Operation]bool, len(a)+len(b))
	for op := range a {
		out[op] = true
	}
	for op := range b {
		out[op] = true
	}
	return out
}

func spanOf(ops map[*ir.Operation]bool) (lo, hi int) {
	lo, hi = -1, -1
	for op := range ops {
		idx := op.Index()
		if lo == -1 || idx < lo {
			lo = idx
		}
		if hi == -1 || idx > hi {
			hi = idx
		}
	}
	return lo, hi
}

func gapOps(block *ir.Block, lo, hi int, members map[*ir.Operation]bool) []*ir.Operation {
	var gap []*ir.Operation
	for _, op := range block.Ops() {
		idx := op.Index()
		if idx < lo || idx > hi {
			continue
		}
		if members[op] {
			continue
		}
		gap = append(gap, op)
	}
	return gap
}

// gapGroup is one cluster's footprint inside a merge's gap: the subset
// of its ops that fall within [lo,hi], plus whether that cluster has
// other members lying outside the span on either side. A cluster with
// members on both sides can never be relocated as a whole (it would
// have to move both up and down at once), and is an immediate
// rejection; a cluster with members on only one side is forced to move
// that way, regardless of what its dependencies would otherwise allow.
type gapGroup struct {
	cluster             *Cluster
	ops                 []*ir.Operation
	hasBefore, hasAfter bool
}

// classifyGap groups gap into whole clusters and decides, cluster by
// cluster, whether it is relocated before the merged span (moveUp),
// after it (moveDown), or blocks the merge entirely (ok=false). A
// cluster already straddling the span, or one whose in-gap ops depend
// (through operands or results) on something that can move in neither
// direction, aborts the whole TryMergeInto call — per whole-cluster
// atomicity, a cluster caught in the middle is moved out whole or not
// at all, it is never partially relocated or folded into the merge.
// Clusters free to move either way default to moveUp, mirroring the
// sequential computeMoveUpSet-then-computeMoveDownSet dependency this
// package's algebra is built on: computeMoveDownSet only ever runs on
// whatever computeMoveUpSet left behind.
func classifyGap(gap []*ir.Operation, members map[*ir.Operation]bool, m *OpClusterMap, lo, hi int) (moveUp, moveDown []*ir.Operation, ok bool) {
	byCluster := map[*Cluster]*gapGroup{}
	var groups []*gapGroup
	for _, op := range gap {
		c := m.ClusterOf(op)
		g, found := byCluster[c]
		if !found {
			g = &gapGroup{cluster: c}
			byCluster[c] = g
			groups = append(groups, g)
		}
		g.ops = append(g.ops, op)
	}
	for _, g := range groups {
		for other := range g.cluster.Root().ops {
			idx := other.Index()
			if idx < lo {
				g.hasBefore = true
			}
			if idx > hi {
				g.hasAfter = true
			}
		}
		if g.hasBefore && g.hasAfter {
			return nil, nil, false
		}
	}

	remaining := make(map[*ir.Operation]bool, len(gap))
	for _, op := range gap {
		remaining[op] = true
	}
	sameCluster := func(a, b *ir.Operation) bool { return m.ClusterOf(a) == m.ClusterOf(b) }
	commit := func(g *gapGroup, dest *[]*ir.Operation) {
		*dest = append(*dest, g.ops...)
		for _, op := range g.ops {
			delete(remaining, op)
		}
	}

	var free []*gapGroup
	for _, g := range groups {
		switch {
		case g.hasBefore:
			if !canGroupMoveUp(g, members, remaining, sameCluster) {
				return nil, nil, false
			}
			commit(g, &moveUp)
		case g.hasAfter:
			if !canGroupMoveDown(g, members, remaining, sameCluster) {
				return nil, nil, false
			}
			commit(g, &moveDown)
		default:
			free = append(free, g)
		}
	}
	for _, g := range free {
		if canGroupMoveUp(g, members, remaining, sameCluster) {
			commit(g, &moveUp)
		}
	}
	for _, g := range free {
		if len(g.ops) == 0 || !remaining[g.ops[0]] {
			continue
		}
		if !canGroupMoveDown(g, members, remaining, sameCluster) {
			return nil, nil, false
		}
		commit(g, &moveDown)
	}
	return moveUp, moveDown, true
}

// canGroupMoveUp reports whether every op in g's in-gap footprint can
// be relocated to precede the merged span: none of their operands may
// be defined by a merged-span member or by another still-unresolved
// gap cluster (internal edges within g itself never block a move).
func canGroupMoveUp(g *gapGroup, members, remaining map[*ir.Operation]bool, sameCluster func(a, b *ir.Operation) bool) bool {
	for _, op := range g.ops {
		for _, v := range op.Operands {
			if v == nil || v.Def == nil || sameCluster(v.Def, op) {
				continue
			}
			if members[v.Def] || remaining[v.Def] {
				return false
			}
		}
	}
	return true
}

// canGroupMoveDown reports whether every op in g's in-gap footprint can
// be relocated to follow the merged span: none of their results may be
// used by a merged-span member or by another still-unresolved gap
// cluster.
func canGroupMoveDown(g *gapGroup, members, remaining map[*ir.Operation]bool, sameCluster func(a, b *ir.Operation) bool) bool {
	for _, op := range g.ops {
		for _, res := range op.Results {
			for _, use := range res.Uses() {
				if sameCluster(use.User, op) {
					continue
				}
				if members[use.User] || remaining[use.User] {
					return false
				}
			}
		}
	}
	return true
}

// relocateUp moves every op in moveUp to sit immediately before the
// operation currently at index lo, in ascending index order so their
// relative order is preserved (ir.Block.moveBefore's documented
// precondition).
func relocateUp(block *ir.Block, moveUp []*ir.Operation, lo int) {
	if len(moveUp) == 0 {
		return
	}
	anchor := block.Ops()[lo]
	sort.Slice(moveUp, func(i, j int) bool { return moveUp[i].Index() < moveUp[j].Index() })
	for _, op := range moveUp {
		op.MoveBefore(anchor)
	}
}

// relocateDown moves every op in moveDown to sit immediately after the
// merged cluster's current last member, in descending index order so
// their relative order is preserved (ir.Block.moveAfter's documented
// precondition). The anchor is recomputed from root rather than passed
// as a precomputed index because relocateUp (which must run first)
// shifts every index at or after the merged span's start.
func relocateDown(block *ir.Block, moveDown []*ir.Operation, root *Cluster) {
	if len(moveDown) == 0 {
		return
	}
	sorted := root.OpsSorted()
	anchor := sorted[len(sorted)-1]
	sort.Slice(moveDown, func(i, j int) bool { return moveDown[i].Index() > moveDown[j].Index() })
	for _, op := range moveDown {
		op.MoveAfter(anchor)
	}
}
