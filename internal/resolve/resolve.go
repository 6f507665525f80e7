// Package resolve implements the variable-chain walker from spec §4.1: a
// terminating traversal that follows a task's Variable indirections back
// to a Literal or Unbound terminus.
//
// This package deliberately knows nothing about branch points — peeling
// those off is the builder's job (spec §4.2); by the time Walk is called,
// the caller has already chosen one child spec of a BranchPointDef (or
// the spec had no branch-point wrapping at all).
package resolve

import (
	"fmt"
	"strings"

	"github.com/sbeschke/ducttape/internal/ast"
)

// Mode selects which of a source task's slot tables a Variable reference
// is looked up in, and whether Unbound is permitted.
type Mode int

const (
	// InputMode resolves through the outputs table; Unbound is a valid
	// terminus (spec §4.1: "the user must supply it at runtime").
	InputMode Mode = iota
	// ParamMode resolves through the params table; the terminus must be
	// a Literal, and Unbound is an error (UnboundParam).
	ParamMode
)

func (m Mode) sourceKind() ast.SlotKind {
	if m == ParamMode {
		return ast.ParamSlot
	}
	return ast.OutputSlot
}

// SourceTaskNotFoundError reports a Variable referencing an undeclared
// task.
type SourceTaskNotFoundError struct {
	TaskName string
	At       ast.Pos
}

func (e *SourceTaskNotFoundError) Error() string {
	return fmt.Sprintf("%s: source task %q not found", e.At, e.TaskName)
}

// SourceSlotNotFoundError reports a Variable referencing a slot that
// doesn't exist on its source task.
type SourceSlotNotFoundError struct {
	TaskName string
	SlotName string
	Kind     ast.SlotKind
	At       ast.Pos
}

func (e *SourceSlotNotFoundError) Error() string {
	return fmt.Sprintf("%s: task %q has no %s slot %q", e.At, e.TaskName, e.Kind, e.SlotName)
}

// UnexpectedBranchPointError reports a BranchPointDef encountered
// mid-chain; branch points must have been peeled off by the caller
// before entering the walker (spec §4.1).
type UnexpectedBranchPointError struct {
	TaskName string
	SlotName string
	At       ast.Pos
}

func (e *UnexpectedBranchPointError) Error() string {
	return fmt.Sprintf("%s: unexpected branch point on %s.%s mid variable-chain resolution (builder should have peeled it)", e.At, e.TaskName, e.SlotName)
}

// UnboundParamError reports an Unbound terminus reached while resolving
// a param (only legal for inputs).
type UnboundParamError struct {
	TaskName string
	SlotName string
	At       ast.Pos
}

func (e *UnboundParamError) Error() string {
	return fmt.Sprintf("%s: param %s.%s is unbound", e.At, e.TaskName, e.SlotName)
}

// NonLiteralParamError reports a param chain that terminated in
// something other than a Literal.
type NonLiteralParamError struct {
	TaskName string
	SlotName string
	At       ast.Pos
}

func (e *NonLiteralParamError) Error() string {
	return fmt.Sprintf("%s: param %s.%s does not resolve to a literal", e.At, e.TaskName, e.SlotName)
}

// ResolutionCycleError reports a variable-reference loop.
type ResolutionCycleError struct {
	Chain []string // "task.slot" entries in traversal order
}

func (e *ResolutionCycleError) Error() string {
	return fmt.Sprintf("variable resolution cycle: %s", strings.Join(e.Chain, " -> "))
}

// Result is the terminus of a successful Walk: the spec the chain ended
// on, and the task that declares it.
type Result struct {
	Spec *ast.Spec
	Task *ast.TaskDef
}

// Walk follows spec's chain of Variable indirections to a terminus,
// starting from spec as declared on task. tasks must be indexed by name.
//
//   - Literal terminates immediately.
//   - Variable looks up the referenced task and, within it, the named
//     slot in the outputs table (InputMode) or params table (ParamMode),
//     then continues from there.
//   - Unbound terminates in InputMode; in ParamMode it is UnboundParam.
//   - BranchPointDef mid-chain is UnexpectedBranchPoint.
//
// Cycles among variable indirections are detected and reported as
// ResolutionCycle. ParamMode additionally requires the terminus to be a
// Literal (NonLiteralParam otherwise).
func Walk(tasks map[string]*ast.TaskDef, task *ast.TaskDef, spec *ast.Spec, mode Mode) (Result, error) {
	// Keyed by *ast.Spec identity, not "task.slot" name: a task's input
	// and output (or param) slots can share a name, and a self-reference
	// across two distinct, differently-kinded specs of the same name is
	// not a cycle (spec §4.2's legal self-reference case).
	visited := make(map[*ast.Spec]bool)
	chain := make([]string, 0, 4)

	curTask, curSpec := task, spec
	for {
		chain = append(chain, fmt.Sprintf("%s.%s", curTask.Name, curSpec.Name))
		if visited[curSpec] {
			return Result{}, &ResolutionCycleError{Chain: chain}
		}
		visited[curSpec] = true

		switch rv := curSpec.Rval.(type) {
		case *ast.Literal:
			return Result{Spec: curSpec, Task: curTask}, nil

		case *ast.Variable:
			srcTask, ok := tasks[rv.TaskName]
			if !ok {
				return Result{}, &SourceTaskNotFoundError{TaskName: rv.TaskName, At: rv.At}
			}
			srcSpec, ok := srcTask.Spec(mode.sourceKind(), rv.SlotName)
			if !ok {
				return Result{}, &SourceSlotNotFoundError{TaskName: rv.TaskName, SlotName: rv.SlotName, Kind: mode.sourceKind(), At: rv.At}
			}
			curTask, curSpec = srcTask, srcSpec

		case *ast.Unbound:
			if mode == InputMode {
				return Result{Spec: curSpec, Task: curTask}, nil
			}
			return Result{}, &UnboundParamError{TaskName: curTask.Name, SlotName: curSpec.Name, At: rv.At}

		case *ast.BranchPointDef:
			return Result{}, &UnexpectedBranchPointError{TaskName: curTask.Name, SlotName: curSpec.Name, At: rv.At}

		default:
			// Exhaustiveness proof (spec §9): every Rval variant is
			// handled above; reaching here means a new variant was added
			// without updating this switch.
			panic(fmt.Sprintf("ducttape: unreachable rval kind %T", rv))
		}
	}
}

// ResolveParam walks spec as declared on task in ParamMode, additionally
// asserting the terminus is a Literal.
func ResolveParam(tasks map[string]*ast.TaskDef, task *ast.TaskDef, spec *ast.Spec) (Result, error) {
	res, err := Walk(tasks, task, spec, ParamMode)
	if err != nil {
		return Result{}, err
	}
	if _, ok := res.Spec.Rval.(*ast.Literal); !ok {
		return Result{}, &NonLiteralParamError{TaskName: task.Name, SlotName: spec.Name, At: spec.At}
	}
	return res, nil
}

// ResolveInput walks spec as declared on task in InputMode.
func ResolveInput(tasks map[string]*ast.TaskDef, task *ast.TaskDef, spec *ast.Spec) (Result, error) {
	return Walk(tasks, task, spec, InputMode)
}
