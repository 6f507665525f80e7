// Package builder turns a parsed ast.Workflow into a hyperdag.MetaHyperDAG
// of task.TaskTemplates: it peels branch points off every spec (spec
// §4.2), classifies each resolved parent as real or phantom, and then
// closes each template's branch-point set over its real dependency edges
// so that a branch point declared upstream (e.g. tok_src's "size") still
// governs every downstream task it reaches (spec scenario S1), even one
// that never itself mentions a BranchPointDef.
//
// Construction is two passes, mirroring turborepo's engine construction
// (cli/internal/core/engine.go AddTask / Prepare): pass one resolves each
// task's own specs independently of build order and records its direct
// real parents; pass two walks the resulting dependency graph in
// topological order (so every parent's closed BranchPoints set is already
// known) and assembles the final meta-edges.
package builder

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-hclog"

	"github.com/sbeschke/ducttape/internal/ast"
	"github.com/sbeschke/ducttape/internal/branch"
	"github.com/sbeschke/ducttape/internal/hyperdag"
	"github.com/sbeschke/ducttape/internal/resolve"
	"github.com/sbeschke/ducttape/internal/task"
	"github.com/sbeschke/ducttape/internal/util"
)

// Options configures a Build call.
type Options struct {
	Logger hclog.Logger
}

// Option mutates Options.
type Option func(*Options)

// WithLogger overrides the default null logger.
func WithLogger(l hclog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// BranchPointRedeclarationMismatchError reports two BranchPointDef
// occurrences sharing a name but disagreeing on their set of branch
// names (spec §4.2, §9 open-question decision: redeclaration is allowed
// as long as the branch-name set matches; the resolved source is allowed
// to differ per occurrence).
type BranchPointRedeclarationMismatchError struct {
	BranchPoint string
	Task        string
	Slot        string
	At          ast.Pos
}

func (e *BranchPointRedeclarationMismatchError) Error() string {
	return fmt.Sprintf("%s: branch point %q redeclared on %s.%s with a different set of branch names than its first declaration", e.At, e.BranchPoint, e.Task, e.Slot)
}

// result is the per-task product of pass one.
type result struct {
	def         *ast.TaskDef
	inputs      map[*ast.Spec]*task.Binding
	params      map[*ast.Spec]*task.Binding
	selfTails   map[*branch.BranchPoint]map[*branch.Branch][]hyperdag.ParentRef
	realParents util.Set // of task name strings
}

// Build resolves every spec in wf, classifies dependency edges, and
// returns the assembled MetaHyperDAG together with the branch registry
// it populated along the way.
func Build(wf *ast.Workflow, opts ...Option) (*hyperdag.MetaHyperDAG, *branch.Registry, error) {
	o := &Options{Logger: hclog.NewNullLogger()}
	for _, opt := range opts {
		opt(o)
	}

	tasksByName, err := wf.ByName()
	if err != nil {
		return nil, nil, err
	}

	reg := branch.NewRegistry()
	g := hyperdag.New()
	results := make(map[string]*result, len(wf.Tasks))

	// Pass one: resolve each task's own specs, independent of build
	// order. This fixes every self-declared branch point and classifies
	// every parent reference as real or phantom.
	for _, t := range wf.Tasks {
		r := &result{
			def:         t,
			inputs:      make(map[*ast.Spec]*task.Binding),
			params:      make(map[*ast.Spec]*task.Binding),
			selfTails:   make(map[*branch.BranchPoint]map[*branch.Branch][]hyperdag.ParentRef),
			realParents: util.NewSet(),
		}

		for _, spec := range t.Inputs {
			b, err := peelSpec(tasksByName, reg, g, t, spec, resolve.InputMode, r)
			if err != nil {
				return nil, nil, err
			}
			r.inputs[spec] = b
		}
		for _, spec := range t.Params {
			b, err := peelSpec(tasksByName, reg, g, t, spec, resolve.ParamMode, r)
			if err != nil {
				return nil, nil, err
			}
			r.params[spec] = b
		}

		results[t.Name] = r
		g.EnsureVertex(t.Name)
		for _, p := range r.realParents.List() {
			name := p.(string)
			g.EnsureVertex(name)
			g.ConnectReal(t.Name, name)
		}
	}

	order, err := g.TopoOrder()
	if err != nil {
		return nil, nil, err
	}

	// Pass two: in topological order, close each template's BranchPoints
	// set (self-declared union every real parent's already-closed set)
	// and assemble its meta-edges.
	for _, name := range order {
		r := results[name]

		bpSet := make(map[*branch.BranchPoint]struct{})
		for bp := range r.selfTails {
			bpSet[bp] = struct{}{}
		}
		for _, p := range r.realParents.List() {
			parentTT, ok := g.Template(p.(string))
			if !ok || parentTT == nil {
				continue
			}
			for _, bp := range parentTT.BranchPoints {
				bpSet[bp] = struct{}{}
			}
		}

		bps := make([]*branch.BranchPoint, 0, len(bpSet))
		for bp := range bpSet {
			bps = append(bps, bp)
		}
		sort.Slice(bps, func(i, j int) bool { return bps[i].Name < bps[j].Name })

		tt := &task.TaskTemplate{
			Def:          r.def,
			BranchPoints: bps,
			Inputs:       r.inputs,
			Params:       r.params,
		}
		g.SetTemplate(name, tt)

		for _, bp := range bps {
			me := &hyperdag.MetaEdge{BranchPoint: bp}
			if tails, ok := r.selfTails[bp]; ok {
				// Self-declared: one hyperedge per branch, tails vary.
				for _, br := range bp.Branches {
					he := &hyperdag.Hyperedge{Branch: br, Tails: tails[br]}
					me.Hyperedges = append(me.Hyperedges, he)
				}
			} else {
				// Purely propagated: bp reached this vertex only through
				// inheritance, so every branch of bp sees the same tails
				// — the real parents that themselves carry bp (sorted
				// for determinism). The unpacker's consistency merge
				// narrows this down to whichever parent realization
				// actually chose that branch.
				carriers := make([]string, 0, r.realParents.Len())
				for _, pRaw := range r.realParents.List() {
					p := pRaw.(string)
					parentTT, ok := g.Template(p)
					if !ok || parentTT == nil {
						continue
					}
					for _, pbp := range parentTT.BranchPoints {
						if pbp == bp {
							carriers = append(carriers, p)
							break
						}
					}
				}
				sort.Strings(carriers)
				tails := make([]hyperdag.ParentRef, 0, len(carriers))
				for _, p := range carriers {
					tails = append(tails, hyperdag.RealParent(p))
				}
				for _, br := range bp.Branches {
					me.Hyperedges = append(me.Hyperedges, &hyperdag.Hyperedge{Branch: br, Tails: tails})
				}
			}
			g.AddMetaEdge(name, me)
		}

		o.Logger.Debug("resolved task template", "task", name, "branch_points", len(bps))
	}

	return g, reg, nil
}

// peelSpec implements spec §4.2's per-spec algorithm: if spec's Rval is a
// BranchPointDef, register/validate its branch point and resolve each
// child independently under its own branch; otherwise resolve the spec
// directly and record a single entry under the canonical baseline
// branch. In both cases a phantom or real parent is recorded per
// resolved entry, and the result accumulator is updated.
func peelSpec(tasksByName map[string]*ast.TaskDef, reg *branch.Registry, g *hyperdag.MetaHyperDAG, t *ast.TaskDef, spec *ast.Spec, mode resolve.Mode, r *result) (*task.Binding, error) {
	if bpDef, ok := spec.Rval.(*ast.BranchPointDef); ok {
		bp, isNew := reg.GetOrCreate(bpDef.Name)
		if !isNew {
			declared := make(map[string]struct{}, len(bpDef.Children))
			for _, child := range bpDef.Children {
				declared[child.Name] = struct{}{}
			}
			if !sameNameSet(bp.NameSet(), declared) {
				return nil, &BranchPointRedeclarationMismatchError{BranchPoint: bp.Name, Task: t.Name, Slot: spec.Name, At: bpDef.At}
			}
		}

		b := &task.Binding{BranchPoint: bp, PerBranch: make(map[*branch.Branch]task.ResolvedSource, len(bpDef.Children))}
		tails := make(map[*branch.Branch][]hyperdag.ParentRef, len(bpDef.Children))
		for _, child := range bpDef.Children {
			// AddBranch is idempotent and preserves first-declaration
			// order, so redeclarations never reorder an existing
			// branch point's Branches slice.
			br := bp.AddBranch(child.Name)
			res, err := resolveOne(tasksByName, t, child, mode)
			if err != nil {
				return nil, err
			}
			b.PerBranch[br] = task.ResolvedSource{Spec: res.Spec, Task: res.Task}
			tails[br] = []hyperdag.ParentRef{classify(g, spec, t, res, r)}
		}
		r.selfTails[bp] = tails
		return b, nil
	}

	res, err := resolveOne(tasksByName, t, spec, mode)
	if err != nil {
		return nil, err
	}
	baseline := reg.Baseline()
	b := &task.Binding{
		BranchPoint: baseline,
		PerBranch: map[*branch.Branch]task.ResolvedSource{
			reg.BaselineBranch(): {Spec: res.Spec, Task: res.Task},
		},
	}
	classify(g, spec, t, res, r) // records into r.realParents as a side effect when real
	return b, nil
}

func resolveOne(tasksByName map[string]*ast.TaskDef, t *ast.TaskDef, spec *ast.Spec, mode resolve.Mode) (resolve.Result, error) {
	if mode == resolve.ParamMode {
		return resolve.ResolveParam(tasksByName, t, spec)
	}
	return resolve.ResolveInput(tasksByName, t, spec)
}

// classify records the real/phantom parent for one resolved entry and
// returns its ParentRef. A parent is phantom when the spec is a param
// (params never introduce temporal order) or when resolution terminated
// on the task itself (a self-reference); otherwise it is a real
// dependency on the resolved source task.
func classify(g *hyperdag.MetaHyperDAG, spec *ast.Spec, t *ast.TaskDef, res resolve.Result, r *result) hyperdag.ParentRef {
	if spec.Kind == ast.ParamSlot || res.Task == t {
		return g.NewPhantom()
	}
	r.realParents.Add(res.Task.Name)
	return hyperdag.RealParent(res.Task.Name)
}

func sameNameSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
