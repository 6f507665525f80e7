// Package hyperdag implements the MetaHyperDAG: a DAG whose vertices are
// TaskTemplates, where dependency edges are grouped into hyperedges (one
// alternative set of tails per branch) and hyperedges are grouped into
// meta-edges (one per branch point incident to the vertex). Some tails are
// phantom: present for branch bookkeeping but never real dependency edges.
//
// The real (non-phantom) subgraph is layered directly on
// github.com/pyr-sh/dag, the same DAG primitive turborepo's task graph
// (internal/core/engine.go) is built on — Add/Connect for construction,
// Ancestors/DownEdges for queries, and the graph's cycle-freedom
// requirement enforced the same way: edges are only ever added after the
// builder has proven, spec by spec, that they terminate (resolve.Walk's
// ResolutionCycle check) or are phantom.
package hyperdag

import (
	"fmt"
	"sort"

	"github.com/pyr-sh/dag"

	"github.com/sbeschke/ducttape/internal/branch"
	"github.com/sbeschke/ducttape/internal/task"
)

// ParentRef is a single recorded parent of a spec resolution: either a
// real task (a genuine temporal dependency) or a phantom placeholder
// (bookkeeping only — a self-reference or a param branch point, which
// never introduces temporal order per spec §4.2).
type ParentRef struct {
	Real    bool
	Task    string // valid iff Real
	Phantom int    // valid iff !Real; phantom ids are per-build, not globally unique
}

// RealParent returns a ParentRef naming a genuine dependency.
func RealParent(taskName string) ParentRef { return ParentRef{Real: true, Task: taskName} }

// PhantomParent returns a bookkeeping-only ParentRef.
func PhantomParent(id int) ParentRef { return ParentRef{Real: false, Phantom: id} }

func (p ParentRef) String() string {
	if p.Real {
		return p.Task
	}
	return fmt.Sprintf("phantom#%d", p.Phantom)
}

// Hyperedge is one alternative (one branch's worth) of a meta-edge: the
// set of parent tails active when that branch is selected.
type Hyperedge struct {
	Branch *branch.Branch
	Tails  []ParentRef
}

// MetaEdge groups a vertex's hyperedges for one branch point: selecting
// the branch point selects exactly one hyperedge.
type MetaEdge struct {
	BranchPoint *branch.BranchPoint
	Hyperedges  []*Hyperedge
}

// HyperedgeFor returns the hyperedge for the given branch, if present.
func (me *MetaEdge) HyperedgeFor(b *branch.Branch) (*Hyperedge, bool) {
	for _, he := range me.Hyperedges {
		if he.Branch == b {
			return he, true
		}
	}
	return nil, false
}

// MetaHyperDAG is the builder's output: a DAG of TaskTemplates with
// meta-edge/hyperedge bookkeeping layered on top of a real-vertex-only
// dag.AcyclicGraph.
type MetaHyperDAG struct {
	graph     *dag.AcyclicGraph
	templates map[string]*task.TaskTemplate
	metaEdges map[string][]*MetaEdge
	order     []string // insertion order of real vertices, for stable iteration
	phantoms  int
}

// New creates an empty MetaHyperDAG.
func New() *MetaHyperDAG {
	return &MetaHyperDAG{
		graph:     &dag.AcyclicGraph{},
		templates: make(map[string]*task.TaskTemplate),
		metaEdges: make(map[string][]*MetaEdge),
	}
}

// NewPhantom allocates a fresh phantom id, used when a spec resolves to a
// self-reference or a param branch point (spec §4.2).
func (g *MetaHyperDAG) NewPhantom() ParentRef {
	g.phantoms++
	return PhantomParent(g.phantoms)
}

// EnsureVertex registers a real vertex by name with no template attached
// yet, for the builder's first pass (which needs every task name wired
// into the graph before it can compute branch-point closures in
// topological order). SetTemplate fills in the template once computed.
func (g *MetaHyperDAG) EnsureVertex(name string) {
	if _, exists := g.templates[name]; !exists {
		g.templates[name] = nil
		g.order = append(g.order, name)
	}
	g.graph.Add(name)
}

// SetTemplate attaches (or replaces) the template for an already-ensured
// vertex.
func (g *MetaHyperDAG) SetTemplate(name string, tt *task.TaskTemplate) {
	if _, exists := g.templates[name]; !exists {
		g.order = append(g.order, name)
	}
	g.templates[name] = tt
	g.graph.Add(name)
}

// AddVertex registers tt's real vertex (keyed by its task name) and
// returns the underlying dag.AcyclicGraph vertex name. Equivalent to
// EnsureVertex followed by SetTemplate, for callers that have a complete
// template up front.
func (g *MetaHyperDAG) AddVertex(tt *task.TaskTemplate) string {
	name := tt.Def.Name
	g.SetTemplate(name, tt)
	return name
}

// ConnectReal adds a real dependency edge: from depends on on (on must be
// completed before from may run).
func (g *MetaHyperDAG) ConnectReal(from, on string) {
	g.graph.Connect(dag.BasicEdge(from, on))
}

// AddMetaEdge attaches a meta-edge to vertex v, also connecting every real
// tail across its hyperedges into the underlying graph so ancestor/cycle
// queries see the full real dependency structure.
func (g *MetaHyperDAG) AddMetaEdge(v string, me *MetaEdge) {
	g.metaEdges[v] = append(g.metaEdges[v], me)
	for _, he := range me.Hyperedges {
		for _, t := range he.Tails {
			if t.Real {
				g.ConnectReal(v, t.Task)
			}
		}
	}
}

// Template returns the TaskTemplate for a real vertex name.
func (g *MetaHyperDAG) Template(name string) (*task.TaskTemplate, bool) {
	tt, ok := g.templates[name]
	return tt, ok
}

// MetaEdges returns the meta-edges incident to a real vertex, in the
// order they were added.
func (g *MetaHyperDAG) MetaEdges(name string) []*MetaEdge {
	return g.metaEdges[name]
}

// Vertices returns every real vertex name, in the order they were first
// added to the graph.
func (g *MetaHyperDAG) Vertices() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// RealParents returns the distinct real ancestor names of a vertex (its
// direct real parents and, transitively, theirs), derived from the
// underlying dag.AcyclicGraph edges (not from any one
// hyperedge/branch in particular — a real dependency exists regardless of
// which branch is eventually selected).
func (g *MetaHyperDAG) RealParents(name string) ([]string, error) {
	down, err := g.graph.Ancestors(name)
	if err != nil {
		return nil, fmt.Errorf("hyperdag: ancestors of %q: %w", name, err)
	}
	out := make([]string, 0, down.Len())
	for _, v := range down.List() {
		out = append(out, dag.VertexName(v))
	}
	return out, nil
}

// DirectRealParents returns only the immediate (one-hop) real parents of
// name, i.e. the tasks it directly depends on.
func (g *MetaHyperDAG) DirectRealParents(name string) []string {
	down := g.graph.DownEdges(name)
	out := make([]string, 0, down.Len())
	for _, v := range down.List() {
		out = append(out, dag.VertexName(v))
	}
	return out
}

// TopoOrder returns the real vertices in a deterministic topological
// order: parents (dependencies) before children, ties broken by vertex
// name. Returns CyclicTaskDependencyError if the real-edge subgraph is
// not acyclic — an internal-invariant violation, since every real edge is
// only ever added after resolve.Walk has proven its originating spec
// chain terminates (spec assumes the MetaHyperDAG is acyclic by
// construction; this is the defensive check for the graph-level cycle
// that per-spec chain-cycle detection cannot see: two tasks whose specs
// reference each other's outputs directly, with no indirection chain to
// walk through).
func (g *MetaHyperDAG) TopoOrder() ([]string, error) {
	indeg := make(map[string]int, len(g.order))
	for _, v := range g.order {
		indeg[v] = len(uniqueStrings(g.DirectRealParents(v)))
	}
	// Kahn's algorithm, with a deterministic, name-sorted ready queue so
	// two runs over byte-identical input produce an identical order
	// (spec §4.4/§8 property 5).
	children := make(map[string][]string) // parent -> dependents
	for _, v := range g.order {
		for _, p := range uniqueStrings(g.DirectRealParents(v)) {
			children[p] = append(children[p], v)
		}
	}

	ready := readyVertices(indeg)
	out := make([]string, 0, len(g.order))
	for len(ready) > 0 {
		sort.Strings(ready)
		v := ready[0]
		ready = ready[1:]
		out = append(out, v)
		for _, c := range children[v] {
			indeg[c]--
			if indeg[c] == 0 {
				ready = append(ready, c)
			}
		}
	}

	if len(out) != len(g.order) {
		return nil, &CyclicTaskDependencyError{}
	}
	return out, nil
}

// CyclicTaskDependencyError reports a cycle in the real (non-phantom)
// task dependency graph.
type CyclicTaskDependencyError struct{}

func (*CyclicTaskDependencyError) Error() string {
	return "cyclic task dependency detected in the real (non-phantom) task graph"
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func readyVertices(indeg map[string]int) []string {
	out := make([]string, 0, len(indeg))
	for v, d := range indeg {
		if d == 0 {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
