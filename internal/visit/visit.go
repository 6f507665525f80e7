// Package visit implements the visitor contract (spec §4.8): a single
// operation, Visit(*task.RealTask) error, driven by the unpacker's
// output in topological order, plus the RealTask run-state machine the
// (out-of-scope) execution subsystem drives. The core only exposes
// topology and input facts; nothing here mutates the MetaHyperDAG or the
// unpacker's Result.
//
// The drive-visitors-in-topological-order shape is grounded on
// cli/internal/core/engine.go's TaskGraph.Walk, which calls a supplied
// visitor function once per vertex in dependency order; here the
// topological order is already fixed by internal/unpack.Result.Order, so
// Drive is a simple ordered fan-out rather than a graph walk of its own.
package visit

import (
	"fmt"

	"github.com/sbeschke/ducttape/internal/task"
	"github.com/sbeschke/ducttape/internal/unpack"
)

// State is one point in a RealTask's run-state machine (spec §4.8).
type State int

const (
	// Pending is the initial state: not yet ready to run.
	Pending State = iota
	// Ready means every real parent RealTask is Completed.
	Ready
	// Running means the execution subsystem has started this task.
	Running
	// Completed is terminal: the task ran successfully.
	Completed
	// Failed means the task ran and did not succeed; it may transition
	// back to Pending on a manual retry, otherwise it is terminal.
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Completed:
		return "COMPLETED"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// InvalidTransitionError reports an attempted state transition the
// machine in spec §4.8 does not allow.
type InvalidTransitionError struct {
	From, To State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition %s -> %s", e.From, e.To)
}

// transitions enumerates every edge of the §4.8 state diagram.
var transitions = map[State]map[State]bool{
	Pending:   {Ready: true},
	Ready:     {Running: true},
	Running:   {Completed: true, Failed: true},
	Failed:    {Pending: true},
	Completed: {},
}

// Advance validates and returns the result of moving from 'from' to 'to'.
// The core does not drive this itself (spec §4.8: "only the execution
// subsystem drives this machine") but exposes it so that subsystem has a
// single, spec-faithful place to validate transitions.
func Advance(from, to State) (State, error) {
	if !transitions[from][to] {
		return from, &InvalidTransitionError{From: from, To: to}
	}
	return to, nil
}

// Visitor is the single operation every analysis (input check,
// completion check, execution plan) implements.
type Visitor interface {
	Visit(rt *task.RealTask) error
}

// VisitorFunc adapts a plain function to the Visitor interface.
type VisitorFunc func(rt *task.RealTask) error

// Visit calls f.
func (f VisitorFunc) Visit(rt *task.RealTask) error { return f(rt) }

// Drive runs v over every RealTask in result, in the topological order
// the unpacker already established. It does not fail fast: every
// visitor error is collected and returned together, indexed by the
// RealTask it came from, so one failing analysis does not prevent the
// rest of the batch from being visited (spec §5: build/unpack/visit are
// finite, cooperative batch passes).
func Drive(result *unpack.Result, v Visitor) []error {
	var errs []error
	for _, rt := range result.All() {
		if err := v.Visit(rt); err != nil {
			errs = append(errs, fmt.Errorf("visit %s/%s: %w", rt.Name(), rt.RealizationName(), err))
		}
	}
	return errs
}
