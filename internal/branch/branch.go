// Package branch implements branch points and branches: the named
// configuration axes (and their values) that the unpacker expands across.
//
// A BranchPoint owns its Branches; a Branch carries a pointer back to its
// owning BranchPoint purely for display and keying (§9's "bi-directional
// Branch<->BranchPoint" note). The Registry is the one mutable container —
// it hands out canonical, deduplicated *BranchPoint and *Branch values, so
// two callers asking for the same name get the same pointer and can
// compare branches by identity, as the data model requires.
package branch

import "sort"

// BaselineName is the name of the canonical branch point implicitly used
// by any slot with no explicit branch-point wrapping.
const BaselineName = "Baseline"

// BaselineBranchName is the name of the canonical branch under Baseline.
const BaselineBranchName = "baseline"

// BranchPoint is a named configuration axis, e.g. "size".
type BranchPoint struct {
	Name     string
	Branches []*Branch // in declaration order
}

// Branch returns the named branch under this branch point, if declared.
func (bp *BranchPoint) Branch(name string) (*Branch, bool) {
	for _, b := range bp.Branches {
		if b.Name == name {
			return b, true
		}
	}
	return nil, false
}

// NameSet returns the set of declared branch names, for
// redeclaration-mismatch comparisons.
func (bp *BranchPoint) NameSet() map[string]struct{} {
	set := make(map[string]struct{}, len(bp.Branches))
	for _, b := range bp.Branches {
		set[b.Name] = struct{}{}
	}
	return set
}

// Branch is one value of a BranchPoint, e.g. "small" under "size".
// Branches compare by pointer identity: the Registry guarantees only one
// *Branch exists per (BranchPoint, name) pair.
type Branch struct {
	Name string
	BP   *BranchPoint
}

// IsBaseline reports whether this is the canonical baseline branch.
func (b *Branch) IsBaseline() bool {
	return b.BP.Name == BaselineName && b.Name == BaselineBranchName
}

// Registry is the owning container for all branch points in one workflow
// build. It is mutated only by the builder during construction; once a
// build finishes, every BranchPoint/Branch it handed out is treated as
// immutable.
type Registry struct {
	points   map[string]*BranchPoint
	baseline *BranchPoint
}

// NewRegistry creates a registry pre-seeded with the canonical Baseline
// branch point and its single baseline branch.
func NewRegistry() *Registry {
	r := &Registry{points: make(map[string]*BranchPoint)}
	r.baseline = &BranchPoint{Name: BaselineName}
	r.baseline.Branches = []*Branch{{Name: BaselineBranchName, BP: r.baseline}}
	r.points[BaselineName] = r.baseline
	return r
}

// Baseline returns the canonical Baseline branch point.
func (r *Registry) Baseline() *BranchPoint { return r.baseline }

// BaselineBranch returns the canonical baseline branch.
func (r *Registry) BaselineBranch() *Branch { return r.baseline.Branches[0] }

// GetOrCreate returns the named branch point, creating it (with no
// branches yet) if this is the first time it has been seen. The second
// return value reports whether it was newly created.
func (r *Registry) GetOrCreate(name string) (*BranchPoint, bool) {
	if bp, ok := r.points[name]; ok {
		return bp, false
	}
	bp := &BranchPoint{Name: name}
	r.points[name] = bp
	return bp, true
}

// AddBranch returns the named branch under bp, creating it if absent.
func (bp *BranchPoint) AddBranch(name string) *Branch {
	if b, ok := bp.Branch(name); ok {
		return b
	}
	b := &Branch{Name: name, BP: bp}
	bp.Branches = append(bp.Branches, b)
	return b
}

// All returns every branch point registered so far, sorted by name
// (lexicographic order, matching the unpacker's tie-break rule in §4.4).
func (r *Registry) All() []*BranchPoint {
	out := make([]*BranchPoint, 0, len(r.points))
	for _, bp := range r.points {
		out = append(out, bp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
