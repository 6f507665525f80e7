package ast

import (
	"errors"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestWorkflowByNameDuplicate(t *testing.T) {
	wf := &Workflow{Tasks: []*TaskDef{
		{Name: "a", At: Pos{Line: 1}},
		{Name: "a", At: Pos{Line: 5}},
	}}

	_, err := wf.ByName()
	assert.ErrorContains(t, err, `duplicate task name "a"`)

	var dup *DuplicateTaskNameError
	assert.Assert(t, errors.As(err, &dup))
	assert.Equal(t, dup.First.Line, 1)
	assert.Equal(t, dup.Second.Line, 5)
}

func TestWorkflowByNameUnique(t *testing.T) {
	wf := &Workflow{Tasks: []*TaskDef{
		{Name: "a"},
		{Name: "b"},
	}}

	byName, err := wf.ByName()
	assert.NilError(t, err)
	assert.Equal(t, len(byName), 2)
}

func TestTaskDefSpecLookup(t *testing.T) {
	in := &Spec{Name: "x", Kind: InputSlot}
	td := &TaskDef{Inputs: []*Spec{in}}

	got, ok := td.Spec(InputSlot, "x")
	assert.Assert(t, ok)
	assert.Assert(t, is.Equal(got, in))

	_, ok = td.Spec(InputSlot, "missing")
	assert.Assert(t, !ok)

	_, ok = td.Spec(ParamSlot, "x")
	assert.Assert(t, !ok)
}

func TestSpecIsDotParam(t *testing.T) {
	dot := &Spec{Name: ".vmem", Kind: ParamSlot}
	assert.Assert(t, dot.IsDotParam())

	plain := &Spec{Name: "vmem", Kind: ParamSlot}
	assert.Assert(t, !plain.IsDotParam())

	notParam := &Spec{Name: ".vmem", Kind: InputSlot}
	assert.Assert(t, !notParam.IsDotParam())
}
