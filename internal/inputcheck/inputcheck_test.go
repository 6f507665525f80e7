package inputcheck

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
	"gotest.tools/v3/assert"

	"github.com/sbeschke/ducttape/internal/ast"
	"github.com/sbeschke/ducttape/internal/builder"
	"github.com/sbeschke/ducttape/internal/unpack"
)

func workflowWithLiteralInput(pattern string) *ast.Workflow {
	t := &ast.TaskDef{
		Name: "t",
		Inputs: []*ast.Spec{
			{Name: "in", Kind: ast.InputSlot, Rval: &ast.Literal{Value: pattern}},
		},
	}
	return &ast.Workflow{Tasks: []*ast.TaskDef{t}}
}

func TestCheckSucceedsWhenGlobMatches(t *testing.T) {
	dir := t.TempDir()
	assert.NilError(t, os.WriteFile(filepath.Join(dir, "src.txt"), []byte("hi"), 0o644))

	g, _, err := builder.Build(workflowWithLiteralInput("src.txt"))
	assert.NilError(t, err)
	res, err := unpack.Unpack(g, nil)
	assert.NilError(t, err)

	err = Check(res.All(), dir)
	assert.NilError(t, err)
}

func TestCheckReportsMissingFileWithDeclAndUseSites(t *testing.T) {
	dir := t.TempDir()

	g, _, err := builder.Build(workflowWithLiteralInput("missing.txt"))
	assert.NilError(t, err)
	res, err := unpack.Unpack(g, nil)
	assert.NilError(t, err)

	err = Check(res.All(), dir)
	assert.ErrorContains(t, err, "missing.txt")

	var merr *multierror.Error
	assert.Assert(t, errors.As(err, &merr))
	assert.Equal(t, len(merr.Errors), 1)

	var target *InputFileNotFoundError
	assert.Assert(t, errors.As(merr.Errors[0], &target))
	assert.Equal(t, target.Task, "t")
	assert.Equal(t, target.Slot, "in")
}

func TestCheckAccumulatesMultipleFailuresNonFailFast(t *testing.T) {
	dir := t.TempDir()
	t1 := &ast.TaskDef{
		Name: "a",
		Inputs: []*ast.Spec{
			{Name: "in", Kind: ast.InputSlot, Rval: &ast.Literal{Value: "missing-a.txt"}},
		},
	}
	t2 := &ast.TaskDef{
		Name: "b",
		Inputs: []*ast.Spec{
			{Name: "in", Kind: ast.InputSlot, Rval: &ast.Literal{Value: "missing-b.txt"}},
		},
	}
	wf := &ast.Workflow{Tasks: []*ast.TaskDef{t1, t2}}

	g, _, err := builder.Build(wf)
	assert.NilError(t, err)
	res, err := unpack.Unpack(g, nil)
	assert.NilError(t, err)

	err = Check(res.All(), dir)
	assert.Assert(t, err != nil)

	var merr *multierror.Error
	assert.Assert(t, errors.As(err, &merr))
	assert.Equal(t, len(merr.Errors), 2)
}
