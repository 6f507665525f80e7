// Package inputcheck implements the input existence checker (spec §4.6):
// for every realized task, every input whose resolved source is a
// literal (not produced by another task) is expanded as a glob; a zero
// match count is an InputFileNotFound. Every task/input pair is checked
// independently and every failure is accumulated — the checker never
// fails fast, matching the teacher's internal/cache.go multiplexer,
// which gathers per-backend Put failures into one
// github.com/hashicorp/go-multierror.Error rather than returning on the
// first one. Checks run concurrently via golang.org/x/sync/errgroup, the
// same primitive the teacher uses for its own concurrent cache Puts.
package inputcheck

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/sbeschke/ducttape/internal/ast"
	"github.com/sbeschke/ducttape/internal/dirs"
	"github.com/sbeschke/ducttape/internal/task"
)

// InputFileNotFoundError reports a literal input whose glob expansion
// yielded no files, carrying both the declaration site (where the
// literal was written) and the use site (the input slot that referenced
// it) per spec §4.6.
type InputFileNotFoundError struct {
	Task        string
	Realization string
	Slot        string
	Pattern     string
	DeclAt      ast.Pos
	UseAt       ast.Pos
}

func (e *InputFileNotFoundError) Error() string {
	return fmt.Sprintf("%s/%s: input %q: no files match %q (declared at %s, used at %s)",
		e.Task, e.Realization, e.Slot, e.Pattern, e.DeclAt, e.UseAt)
}

// Check visits every input of every RealTask in tasks whose resolved
// source is a literal, resolving it relative to workflowDir
// (internal/dirs.ResolveLiteralInputPath) and expanding it as a
// doublestar glob. Every failure is accumulated into the returned
// *multierror.Error; Check returns nil only if every literal input
// resolved to at least one file.
func Check(tasks []*task.RealTask, workflowDir string) error {
	var (
		mu   sync.Mutex
		errs *multierror.Error
		g    errgroup.Group
	)

	for _, rt := range tasks {
		rt := rt
		for _, b := range rt.Inputs {
			b := b
			lit, ok := b.Source.Rval.(*ast.Literal)
			if !ok {
				continue
			}
			g.Go(func() error {
				if err := checkOne(rt, b, lit, workflowDir); err != nil {
					mu.Lock()
					errs = multierror.Append(errs, err)
					mu.Unlock()
				}
				return nil
			})
		}
	}
	// Every Go func above always returns nil: failures are accumulated,
	// not propagated, so Wait can never report an error itself.
	_ = g.Wait()

	if errs == nil {
		return nil
	}
	sort.Slice(errs.Errors, func(i, j int) bool {
		return errs.Errors[i].Error() < errs.Errors[j].Error()
	})
	return errs
}

func checkOne(rt *task.RealTask, b task.ResolvedBinding, lit *ast.Literal, workflowDir string) error {
	pattern := dirs.ResolveLiteralInputPath(workflowDir, lit.Value)
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return fmt.Errorf("inputcheck: %s/%s: input %q: invalid glob %q: %w", rt.Name(), rt.RealizationName(), b.Own.Name, pattern, err)
	}
	if len(matches) > 0 {
		return nil
	}
	return &InputFileNotFoundError{
		Task:        rt.Name(),
		Realization: rt.RealizationName(),
		Slot:        b.Own.Name,
		Pattern:     pattern,
		DeclAt:      lit.At,
		UseAt:       b.Own.At,
	}
}
