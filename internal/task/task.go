// Package task holds the resolved-task data model: TaskTemplate (every
// variable indirection followed, branches still open), Realization (one
// branch chosen per branch point), and RealTask (a template paired with a
// realization).
package task

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sbeschke/ducttape/internal/ast"
	"github.com/sbeschke/ducttape/internal/branch"
)

// ResolvedSource is where a spec's chain of variable indirections
// terminated: a concrete spec, and the task that declares it (which may
// be the same task, in the phantom self-reference case described in
// spec §4.2).
type ResolvedSource struct {
	Spec *ast.Spec
	Task *ast.TaskDef
}

// Binding is the per-branch resolution table for one of a task's own
// input or param specs: which branch point governs it, and what each of
// that branch point's branches resolves to.
type Binding struct {
	BranchPoint *branch.BranchPoint
	PerBranch   map[*branch.Branch]ResolvedSource
}

// TaskTemplate is one per ast.TaskDef after resolution: every variable
// reference chain has been walked to a terminus, but branch points are
// still open (realize picks one branch per branch point to produce a
// concrete RealTask).
type TaskTemplate struct {
	Def *ast.TaskDef

	// BranchPoints is the distinct set of branch points touching this
	// template, across both its inputs and params.
	BranchPoints []*branch.BranchPoint

	// Inputs/Params map each of the template's own specs to its
	// per-branch resolution table.
	Inputs map[*ast.Spec]*Binding
	Params map[*ast.Spec]*Binding
}

// ResolvedBinding is a single resolved (own, source, source task) triple
// for a concrete RealTask, chosen from a Binding by the active branch.
type ResolvedBinding struct {
	Own        *ast.Spec
	Source     *ast.Spec
	SourceTask *ast.TaskDef
}

// Realization is a mapping from branch point to the branch chosen for it.
type Realization map[*branch.BranchPoint]*branch.Branch

// Has reports whether this realization covers bp.
func (r Realization) Has(bp *branch.BranchPoint) bool {
	_, ok := r[bp]
	return ok
}

// Copy returns a shallow copy of the realization.
func (r Realization) Copy() Realization {
	c := make(Realization, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Name renders the canonical realization name: branches sorted by
// branch-point name, joined with "-", with baseline branches omitted
// unless baseline is the only branch present. An empty realization
// renders as "baseline".
func (r Realization) Name() string {
	bps := make([]*branch.BranchPoint, 0, len(r))
	for bp := range r {
		bps = append(bps, bp)
	}
	sort.Slice(bps, func(i, j int) bool { return bps[i].Name < bps[j].Name })

	parts := make([]string, 0, len(bps))
	for _, bp := range bps {
		b := r[bp]
		if b.IsBaseline() {
			continue
		}
		parts = append(parts, b.Name)
	}
	if len(parts) == 0 {
		return branch.BaselineBranchName
	}
	return strings.Join(parts, "-")
}

// ConsistentMerge combines two realizations, failing if they disagree on
// any branch point mentioned in both (the unpacker's consistency filter,
// spec §4.4 step 2 / testable property 3).
func ConsistentMerge(a, b Realization) (Realization, bool) {
	merged := a.Copy()
	for bp, br := range b {
		if existing, ok := merged[bp]; ok {
			if existing != br {
				return nil, false
			}
			continue
		}
		merged[bp] = br
	}
	return merged, true
}

// RealTask is a TaskTemplate paired with one realization: a concrete,
// schedulable task instance. Identity is (task name, realization name).
type RealTask struct {
	Template *TaskTemplate
	Active   Realization
	Inputs   []ResolvedBinding
	Params   []ResolvedBinding
}

// Name is the declared task name.
func (rt *RealTask) Name() string { return rt.Template.Def.Name }

// RealizationName is the canonical name of rt.Active.
func (rt *RealTask) RealizationName() string { return rt.Active.Name() }

// Identity returns the (name, realization) pair that uniquely identifies
// this real task within one unpacking.
func (rt *RealTask) Identity() (string, string) {
	return rt.Name(), rt.RealizationName()
}

// MissingBranchForBranchPointError is an internal invariant violation: a
// Realize call received an assignment lacking a branch for one of the
// template's branch points. Firing this is a builder/unpacker bug, not a
// user error (spec §7).
type MissingBranchForBranchPointError struct {
	Task        string
	BranchPoint string
}

func (e *MissingBranchForBranchPointError) Error() string {
	return fmt.Sprintf("internal invariant violated: task %q realized without a branch for branch point %q", e.Task, e.BranchPoint)
}

// Realize asserts every branch point of the template is covered by
// active, then resolves each input/param spec against its matching
// per-branch entry, producing a concrete RealTask (spec §4.4 step 3).
func (tt *TaskTemplate) Realize(active Realization) (*RealTask, error) {
	for _, bp := range tt.BranchPoints {
		if !active.Has(bp) {
			return nil, &MissingBranchForBranchPointError{Task: tt.Def.Name, BranchPoint: bp.Name}
		}
	}

	inputs, err := resolveBindings(tt, tt.Inputs, active)
	if err != nil {
		return nil, err
	}
	params, err := resolveBindings(tt, tt.Params, active)
	if err != nil {
		return nil, err
	}

	// Internal invariant (spec testable property 6): every resolved param
	// source must be a Literal. The builder enforces this at resolution
	// time (NonLiteralParam), so a violation here means the builder has a
	// bug, not that the user supplied bad input — panic rather than
	// surface a user-facing error (spec §9: keep realize's assertions).
	for _, p := range params {
		if _, ok := p.Source.Rval.(*ast.Literal); !ok {
			panic(fmt.Sprintf("ducttape: internal invariant violated: param %q on task %q resolved to non-literal %T", p.Own.Name, tt.Def.Name, p.Source.Rval))
		}
	}

	return &RealTask{
		Template: tt,
		Active:   active.Copy(),
		Inputs:   inputs,
		Params:   params,
	}, nil
}

func resolveBindings(tt *TaskTemplate, bindings map[*ast.Spec]*Binding, active Realization) ([]ResolvedBinding, error) {
	// Stable order: by own-spec name, so callers see deterministic output.
	specs := make([]*ast.Spec, 0, len(bindings))
	for spec := range bindings {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })

	out := make([]ResolvedBinding, 0, len(specs))
	for _, spec := range specs {
		binding := bindings[spec]

		// Baseline-bound specs are never in BranchPoints (Baseline is
		// implicit) and so never appear in active; they have exactly one
		// PerBranch entry, keyed by the canonical baseline branch.
		if binding.BranchPoint.Name == branch.BaselineName {
			var resolved ResolvedSource
			for _, r := range binding.PerBranch {
				resolved = r
				break
			}
			out = append(out, ResolvedBinding{Own: spec, Source: resolved.Spec, SourceTask: resolved.Task})
			continue
		}

		chosen, ok := active[binding.BranchPoint]
		if !ok {
			return nil, &MissingBranchForBranchPointError{Task: tt.Def.Name, BranchPoint: binding.BranchPoint.Name}
		}
		resolved, ok := binding.PerBranch[chosen]
		if !ok {
			return nil, &MissingBranchForBranchPointError{Task: tt.Def.Name, BranchPoint: binding.BranchPoint.Name}
		}
		out = append(out, ResolvedBinding{Own: spec, Source: resolved.Spec, SourceTask: resolved.Task})
	}
	return out, nil
}
