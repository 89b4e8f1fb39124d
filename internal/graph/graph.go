// Package graph builds the directed "must load before" graph over
// installed plugins (C7) and produces the final topological order. It is a
// direct Go translation of original_source/src/backend/graph.cpp's four
// edge-adding passes, cycle detector and path detector — no graph-theory
// library (the original's Boost Graph Library) appears anywhere in the
// example corpus, so this package hand-writes the small DFS/BFS/topo-sort
// routines the way the teacher hand-writes its own map-based traversals.
package graph

import (
	"fmt"
	"strings"

	"github.com/pluginsort/core/internal/apperr"
	"github.com/pluginsort/core/internal/metadata"
	"github.com/pluginsort/core/internal/pluginfile"
)

// Graph is a directed adjacency-set graph over a fixed set of named nodes.
type Graph struct {
	names []string
	idx   map[string]int
	out   []map[int]struct{}
	in    []map[int]struct{}
}

// New creates a graph with one node per name, in the given order.
func New(names []string) *Graph {
	g := &Graph{
		names: append([]string{}, names...),
		idx:   make(map[string]int, len(names)),
		out:   make([]map[int]struct{}, len(names)),
		in:    make([]map[int]struct{}, len(names)),
	}
	for i, n := range names {
		g.idx[strings.ToLower(n)] = i
		g.out[i] = make(map[int]struct{})
		g.in[i] = make(map[int]struct{})
	}
	return g
}

// Index returns the node index for name, case-insensitively.
func (g *Graph) Index(name string) (int, bool) {
	i, ok := g.idx[strings.ToLower(name)]
	return i, ok
}

func (g *Graph) HasEdge(u, v int) bool {
	_, ok := g.out[u][v]
	return ok
}

// AddEdge adds u → v unconditionally; used by pass 1, whose cycles are a
// reportable error rather than something to silently avoid.
func (g *Graph) AddEdge(u, v int) {
	if u == v {
		return
	}
	g.out[u][v] = struct{}{}
	g.in[v][u] = struct{}{}
}

// Reaches reports whether a directed path from → to exists.
func (g *Graph) Reaches(from, to int) bool {
	if from == to {
		return true
	}
	visited := make([]bool, len(g.names))
	queue := []int{from}
	visited[from] = true
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for v := range g.out[u] {
			if v == to {
				return true
			}
			if !visited[v] {
				visited[v] = true
				queue = append(queue, v)
			}
		}
	}
	return false
}

// WouldCreateCycle reports whether adding u → v would close a cycle, i.e.
// v can already reach u.
func (g *Graph) WouldCreateCycle(u, v int) bool {
	if u == v {
		return true
	}
	return g.Reaches(v, u)
}

// AddEdgeIfSafe adds u → v unless it already exists or would close a
// cycle, returning whether the edge was added. Used by passes 2-4.
func (g *Graph) AddEdgeIfSafe(u, v int) bool {
	if u == v || g.HasEdge(u, v) {
		return false
	}
	if g.WouldCreateCycle(u, v) {
		return false
	}
	g.AddEdge(u, v)
	return true
}

// DetectCycle runs a DFS over the whole graph and returns the node names
// forming the first cycle found, or nil if the graph is acyclic. Ground
// truth: graph.cpp's cycle_detector back-edge visitor.
func (g *Graph) DetectCycle() []string {
	const white, gray, black = 0, 1, 2
	n := len(g.names)
	color := make([]int, n)
	parent := make([]int, n)
	var cycle []string

	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		for v := range g.out[u] {
			if color[v] == gray {
				path := []string{g.names[u]}
				cur := u
				for cur != v {
					cur = parent[cur]
					path = append(path, g.names[cur])
				}
				for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
					path[l], path[r] = path[r], path[l]
				}
				cycle = path
				return true
			}
			if color[v] == white {
				parent[v] = u
				if dfs(v) {
					return true
				}
			}
		}
		color[u] = black
		return false
	}

	for i := 0; i < n; i++ {
		if color[i] == white {
			if dfs(i) {
				return cycle
			}
		}
	}
	return nil
}

// TopoSort produces a strict total order via repeated removal of a
// zero-in-degree node (front-insertion Kahn's algorithm), picking the
// lowest remaining node index on ties for determinism. Returns a
// sorting-error if a cycle remains (should never happen once the caller
// has run DetectCycle first).
func (g *Graph) TopoSort() ([]string, error) {
	n := len(g.names)
	inDegree := make([]int, n)
	for v := 0; v < n; v++ {
		inDegree[v] = len(g.in[v])
	}
	removed := make([]bool, n)
	order := make([]int, 0, n)

	for len(order) < n {
		found := -1
		for v := 0; v < n; v++ {
			if !removed[v] && inDegree[v] == 0 {
				found = v
				break
			}
		}
		if found == -1 {
			return nil, apperr.New(apperr.SortingError, "topological sort failed: residual cycle after edge construction")
		}
		order = append(order, found)
		removed[found] = true
		for v := range g.out[found] {
			if !removed[v] {
				inDegree[v]--
			}
		}
	}

	names := make([]string, n)
	for i, idx := range order {
		names[i] = g.names[idx]
	}
	return names, nil
}

// CheckHamiltonicity returns a warning for each consecutive pair in order
// with no direct edge between them — a sign that the tie-break pass left
// two components without an ordering constraint between them.
func (g *Graph) CheckHamiltonicity(order []string) []string {
	var warnings []string
	for i := 0; i+1 < len(order); i++ {
		u, uok := g.Index(order[i])
		v, vok := g.Index(order[i+1])
		if !uok || !vok || !g.HasEdge(u, v) {
			warnings = append(warnings, fmt.Sprintf("no direct edge between consecutive plugins %q and %q in the sorted order", order[i], order[i+1]))
		}
	}
	return warnings
}

// PluginNode is everything the graph-building passes need about one
// installed plugin.
type PluginNode struct {
	Name                string
	IsMaster            bool
	Masters             []string
	RecordIDs           map[pluginfile.RecordID]struct{}
	OverrideRecordCount int
	Effective           metadata.PluginMetadata
}

// Result is the outcome of Build: the final order and any non-fatal
// warnings (currently only Hamiltonicity gaps).
type Result struct {
	Order    []string
	Warnings []string
}

// Build runs all four edge-adding passes over nodes (in the given order,
// which also seeds pass 4's tie-break fallback) and returns the final
// topological order.
func Build(nodes []PluginNode, loadOrder []string) (*Result, error) {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}
	g := New(names)

	preds := addHardEdges(g, nodes)
	applyPriorityInheritance(nodes, preds)

	if cycle := g.DetectCycle(); cycle != nil {
		return nil, apperr.New(apperr.SortingError, "cycle detected in required load-order rules: "+strings.Join(cycle, " -> "))
	}

	addPriorityEdges(g, nodes)
	addOverlapEdges(g, nodes)
	addTieBreakEdges(g, nodes, loadOrder)

	if cycle := g.DetectCycle(); cycle != nil {
		return nil, apperr.New(apperr.SortingError, "cycle detected while sorting: "+strings.Join(cycle, " -> "))
	}

	order, err := g.TopoSort()
	if err != nil {
		return nil, err
	}

	return &Result{Order: order, Warnings: g.CheckHamiltonicity(order)}, nil
}

// addHardEdges implements pass 1: master/non-master separation, explicit
// masters, requirements and load_after entries. No cycle guard — any cycle
// created here is reported by the caller immediately afterward. It returns,
// for each node, the predecessors added via masters/requirements/load_after
// only (not the master-flag separation edges) — the set priority
// inheritance is scoped to, per the original's parentPriority bookkeeping.
func addHardEdges(g *Graph, nodes []PluginNode) [][]int {
	for i := range nodes {
		for j := range nodes {
			if i == j {
				continue
			}
			if nodes[i].IsMaster && !nodes[j].IsMaster {
				g.AddEdge(i, j)
			}
		}
	}
	preds := make([][]int, len(nodes))
	for i, p := range nodes {
		for _, m := range p.Masters {
			if mi, ok := g.Index(m); ok {
				g.AddEdge(mi, i)
				preds[i] = append(preds[i], mi)
			}
		}
		for _, r := range p.Effective.Requirements {
			if ri, ok := g.Index(r.Name); ok {
				g.AddEdge(ri, i)
				preds[i] = append(preds[i], ri)
			}
		}
		for _, a := range p.Effective.LoadAfter {
			if ai, ok := g.Index(a.Name); ok {
				g.AddEdge(ai, i)
				preds[i] = append(preds[i], ai)
			}
		}
	}
	return preds
}

// applyPriorityInheritance raises a plugin's declared local priority to the
// maximum local priority among its masters/requirements/load_after
// predecessors (never its master-flag-separation predecessors), per §4.7's
// "priority inheritance" rule. Ground truth: graph.cpp's parentPriority,
// which is only ever written inside the masters/reqs/load-after loops and
// only overrides when positive.
func applyPriorityInheritance(nodes []PluginNode, preds [][]int) {
	for i := range nodes {
		var maxPred int8
		for _, pred := range preds[i] {
			if v := nodes[pred].Effective.LocalPriority.Value; v > maxPred {
				maxPred = v
			}
		}
		if maxPred > 0 && nodes[i].Effective.LocalPriority.Value < maxPred {
			nodes[i].Effective.LocalPriority.Value = maxPred
			nodes[i].Effective.LocalPriority.Explicit = true
		}
	}
}

// addPriorityEdges implements pass 2: unequal local priorities that
// conflict (FormID overlap or either side's local priority is global) get
// a lower→higher edge; unequal global priorities get the same treatment
// unconditionally.
func addPriorityEdges(g *Graph, nodes []PluginNode) {
	for i := range nodes {
		for j := i + 1; j < len(nodes); j++ {
			pi, pj := &nodes[i], &nodes[j]

			if pi.Effective.LocalPriority.Value != pj.Effective.LocalPriority.Value {
				conflict := recordsOverlap(pi, pj) || pi.Effective.LocalPriority.Global || pj.Effective.LocalPriority.Global
				if conflict {
					lower, higher := i, j
					if pj.Effective.LocalPriority.Value < pi.Effective.LocalPriority.Value {
						lower, higher = j, i
					}
					g.AddEdgeIfSafe(lower, higher)
				}
			}

			if pi.Effective.GlobalPriority.Value != pj.Effective.GlobalPriority.Value {
				lower, higher := i, j
				if pj.Effective.GlobalPriority.Value < pi.Effective.GlobalPriority.Value {
					lower, higher = j, i
				}
				g.AddEdgeIfSafe(lower, higher)
			}
		}
	}
}

// addOverlapEdges implements pass 3: among plugins with nonzero override
// record count, an overlapping unconnected pair gets higher-override →
// lower-override; ties are skipped.
func addOverlapEdges(g *Graph, nodes []PluginNode) {
	for i := range nodes {
		if nodes[i].OverrideRecordCount == 0 {
			continue
		}
		for j := i + 1; j < len(nodes); j++ {
			if nodes[j].OverrideRecordCount == 0 {
				continue
			}
			if g.HasEdge(i, j) || g.HasEdge(j, i) {
				continue
			}
			if !recordsOverlap(&nodes[i], &nodes[j]) {
				continue
			}
			ci, cj := nodes[i].OverrideRecordCount, nodes[j].OverrideRecordCount
			if ci == cj {
				continue
			}
			higher, lower := i, j
			if cj > ci {
				higher, lower = j, i
			}
			g.AddEdgeIfSafe(higher, lower)
		}
	}
}

// addTieBreakEdges implements pass 4: every remaining unconnected pair is
// ordered deterministically, by current load order position first, then
// by lowercased extension-stripped basename, then by full filename.
func addTieBreakEdges(g *Graph, nodes []PluginNode, loadOrder []string) {
	pos := make(map[string]int, len(loadOrder))
	for i, n := range loadOrder {
		pos[strings.ToLower(n)] = i
	}

	for i := range nodes {
		for j := i + 1; j < len(nodes); j++ {
			if g.HasEdge(i, j) || g.HasEdge(j, i) {
				continue
			}
			first, second := tieBreakOrder(nodes[i].Name, nodes[j].Name, pos)
			fi, fok := g.Index(first)
			si, sok := g.Index(second)
			if fok && sok {
				g.AddEdgeIfSafe(fi, si)
			}
		}
	}
}

func tieBreakOrder(a, b string, pos map[string]int) (first, second string) {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	pa, aok := pos[la]
	pb, bok := pos[lb]

	switch {
	case aok && !bok:
		return a, b
	case !aok && bok:
		return b, a
	case aok && bok:
		if pa <= pb {
			return a, b
		}
		return b, a
	}

	baseA := strings.TrimSuffix(la, strings.TrimPrefix(extOf(la), ""))
	baseB := strings.TrimSuffix(lb, strings.TrimPrefix(extOf(lb), ""))
	if baseA != baseB {
		if baseA < baseB {
			return a, b
		}
		return b, a
	}
	if la <= lb {
		return a, b
	}
	return b, a
}

func extOf(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ""
	}
	return name[idx:]
}

func recordsOverlap(a, b *PluginNode) bool {
	small, big := a.RecordIDs, b.RecordIDs
	if len(small) > len(big) {
		small, big = big, small
	}
	for id := range small {
		if _, ok := big[id]; ok {
			return true
		}
	}
	return false
}
