// Package unpack implements the realization enumeration algorithm (spec
// §4.4): a cartesian product of branch choices over each vertex's
// meta-edges, filtered by consistency with the branch assignments
// inherited from parents, producing the full deterministic stream of
// task.RealTasks for a goal set.
//
// The shape mirrors turborepo's TaskGraph.Walk (cli/internal/core, via
// cli/internal/graph/graph.go's Prepare + engine.Execute): visit vertices
// in topological order, look up each vertex's already-computed
// predecessors, fan out per vertex. Here the fan-out is the cartesian
// product instead of a single task invocation, and the "predecessor
// results" being joined are branch assignments rather than cache hits.
package unpack

import (
	"fmt"
	"sort"

	"github.com/sbeschke/ducttape/internal/branch"
	"github.com/sbeschke/ducttape/internal/hyperdag"
	"github.com/sbeschke/ducttape/internal/task"
)

// candidate is one surviving (vertex, realization) combination produced
// while unpacking a vertex, carried alongside the RealTask once realize
// succeeds.
type candidate struct {
	real task.Realization
	rt   *task.RealTask
}

// Result is the full output of Unpack: every surviving RealTask, indexed
// by vertex name, in the deterministic order spec §4.4 requires.
type Result struct {
	// Order lists vertex names in the same topological order the
	// unpacker processed them.
	Order []string
	// ByVertex maps each processed vertex name to its realized tasks,
	// ordered by branch-point name and then by each branch point's
	// declaration order of branches.
	ByVertex map[string][]*task.RealTask
}

// All flattens ByVertex in Order, giving one deterministic sequence of
// every RealTask produced.
func (r *Result) All() []*task.RealTask {
	out := make([]*task.RealTask, 0)
	for _, v := range r.Order {
		out = append(out, r.ByVertex[v]...)
	}
	return out
}

// Unpack enumerates every RealTask reachable from goals (target task
// names) in g. If goals is empty, every vertex in g is treated as a goal
// (the whole graph is unpacked).
func Unpack(g *hyperdag.MetaHyperDAG, goals []string) (*Result, error) {
	order, err := g.TopoOrder()
	if err != nil {
		return nil, err
	}

	reachable, err := reachableSet(g, order, goals)
	if err != nil {
		return nil, err
	}

	res := &Result{ByVertex: make(map[string][]*task.RealTask)}
	// perVertexReals records, for every vertex already processed, the
	// list of (realization, RealTask) candidates it produced — later
	// vertices consult their real parents' candidates when merging
	// inherited branch assignments along a hyperedge's real tails.
	perVertexReals := make(map[string][]candidate)

	for _, v := range order {
		if !reachable[v] {
			continue
		}
		tt, ok := g.Template(v)
		if !ok || tt == nil {
			return nil, fmt.Errorf("unpack: vertex %q has no template", v)
		}

		cands, err := unpackVertex(g, tt, perVertexReals)
		if err != nil {
			return nil, err
		}

		perVertexReals[v] = cands
		res.Order = append(res.Order, v)
		rts := make([]*task.RealTask, len(cands))
		for i, c := range cands {
			rts[i] = c.rt
		}
		res.ByVertex[v] = rts
	}

	return res, nil
}

// unpackVertex implements spec §4.4 steps 1-3 for a single vertex:
// cartesian product over meta-edges, consistency filter against inherited
// parent assignments, then realize. Deduplicates identical realizations
// (distinct meta-edge combinations can merge to the same assignment once
// baseline/no-op branch points are accounted for).
func unpackVertex(g *hyperdag.MetaHyperDAG, tt *task.TaskTemplate, prior map[string][]candidate) ([]candidate, error) {
	metaEdges := g.MetaEdges(tt.Def.Name)

	partials := []task.Realization{{}}
	for _, me := range metaEdges {
		var next []task.Realization
		for _, he := range me.Hyperedges {
			inherited, ok, err := mergeInheritedAlong(he, me.BranchPoint, he.Branch, prior)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			for _, p := range partials {
				merged, ok := task.ConsistentMerge(p, inherited)
				if !ok {
					continue
				}
				next = append(next, merged)
			}
		}
		partials = next
		if len(partials) == 0 {
			break
		}
	}

	seen := make(map[string]bool, len(partials))
	out := make([]candidate, 0, len(partials))
	for _, real := range partials {
		name := real.Name()
		if seen[name] {
			continue
		}
		seen[name] = true

		rt, err := tt.Realize(real)
		if err != nil {
			return nil, err
		}
		out = append(out, candidate{real: real, rt: rt})
	}

	// Branch points by name (tt.BranchPoints is name-sorted), then
	// branches in declaration order.
	declIndex := func(bp *branch.BranchPoint, b *branch.Branch) int {
		for i, x := range bp.Branches {
			if x == b {
				return i
			}
		}
		return len(bp.Branches)
	}
	sort.SliceStable(out, func(i, j int) bool {
		for _, bp := range tt.BranchPoints {
			if di, dj := declIndex(bp, out[i].real[bp]), declIndex(bp, out[j].real[bp]); di != dj {
				return di < dj
			}
		}
		return false
	})
	return out, nil
}

// mergeInheritedAlong merges the branch assignments carried by every real
// tail of he with this hyperedge's own (branch point, branch) choice,
// consulting each real parent's own candidate realizations (already
// computed, since vertices are processed in topological order). A real
// tail with no candidate sharing a consistent assignment — including one
// that disagrees with bp/chosen itself, e.g. a propagated branch point
// whose tails are shared across all of bp's hyperedges — prunes the
// whole hyperedge (ok=false).
func mergeInheritedAlong(he *hyperdag.Hyperedge, bp *branch.BranchPoint, chosen *branch.Branch, prior map[string][]candidate) (task.Realization, bool, error) {
	merged := task.Realization{bp: chosen}
	for _, tail := range he.Tails {
		if !tail.Real {
			continue
		}
		cands, ok := prior[tail.Task]
		if !ok {
			return nil, false, fmt.Errorf("unpack: real parent %q not yet processed (topological order violated)", tail.Task)
		}

		var any bool
		for _, c := range cands {
			if next, ok := task.ConsistentMerge(merged, c.real); ok {
				merged = next
				any = true
				break
			}
		}
		if !any {
			return nil, false, nil
		}
	}
	return merged, true, nil
}

// reachableSet computes every vertex that is, or is a real ancestor of, a
// goal. An empty goals slice means every vertex is reachable.
func reachableSet(g *hyperdag.MetaHyperDAG, order []string, goals []string) (map[string]bool, error) {
	out := make(map[string]bool, len(order))
	if len(goals) == 0 {
		for _, v := range order {
			out[v] = true
		}
		return out, nil
	}
	for _, goal := range goals {
		out[goal] = true
		parents, err := g.RealParents(goal)
		if err != nil {
			return nil, err
		}
		for _, p := range parents {
			out[p] = true
		}
	}
	return out, nil
}
