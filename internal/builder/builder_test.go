package builder

import (
	"errors"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/sbeschke/ducttape/internal/ast"
	"github.com/sbeschke/ducttape/internal/fixture"
)

func TestBuildS1PropagatesBranchPointDownstream(t *testing.T) {
	g, reg, err := Build(fixture.S1())
	assert.NilError(t, err)

	size, isNew := reg.GetOrCreate("size")
	assert.Assert(t, !isNew, "size should already be registered by the fixture")

	for _, name := range []string{"tok_src", "tok_tgt", "align"} {
		tt, ok := g.Template(name)
		assert.Assert(t, ok)
		found := false
		for _, bp := range tt.BranchPoints {
			if bp == size {
				found = true
			}
		}
		assert.Assert(t, found, "%s should carry the propagated size branch point", name)
	}

	order, err := g.TopoOrder()
	assert.NilError(t, err)
	assert.DeepEqual(t, order, []string{"tok_src", "tok_tgt", "align"})
}

func TestBuildS2BaselineOnly(t *testing.T) {
	task := &ast.TaskDef{
		Name: "t",
		Inputs: []*ast.Spec{
			{Name: "in", Kind: ast.InputSlot, Rval: &ast.Literal{Value: "a.txt"}},
		},
	}
	wf := &ast.Workflow{Tasks: []*ast.TaskDef{task}}

	g, _, err := Build(wf)
	assert.NilError(t, err)

	tt, ok := g.Template("t")
	assert.Assert(t, ok)
	assert.Equal(t, len(tt.BranchPoints), 0)
}

func TestBuildS3ParamBranchHasNoTemporalEdge(t *testing.T) {
	b := &ast.TaskDef{
		Name: "b",
		Outputs: []*ast.Spec{
			{Name: "out", Kind: ast.OutputSlot, Rval: &ast.Unbound{}},
		},
	}
	a := &ast.TaskDef{
		Name: "a",
		Inputs: []*ast.Spec{
			{Name: "in", Kind: ast.InputSlot, Rval: &ast.Variable{TaskName: "b", SlotName: "out"}},
		},
		Params: []*ast.Spec{
			{Name: "mem", Kind: ast.ParamSlot, Rval: &ast.BranchPointDef{
				Name: "mem",
				Children: []*ast.Spec{
					{Name: "2gb", Kind: ast.ParamSlot, Rval: &ast.Literal{Value: "2"}},
					{Name: "16gb", Kind: ast.ParamSlot, Rval: &ast.Literal{Value: "16"}},
				},
			}},
		},
	}
	wf := &ast.Workflow{Tasks: []*ast.TaskDef{b, a}}

	g, _, err := Build(wf)
	assert.NilError(t, err)

	direct := g.DirectRealParents("a")
	assert.DeepEqual(t, direct, []string{"b"})

	ttA, _ := g.Template("a")
	assert.Equal(t, len(ttA.BranchPoints), 1)
	assert.Equal(t, ttA.BranchPoints[0].Name, "mem")

	ttB, _ := g.Template("b")
	assert.Equal(t, len(ttB.BranchPoints), 0)
}

func TestBuildS4GrabBranchPointOnlyOnConsumer(t *testing.T) {
	tune := &ast.TaskDef{
		Name: "tune",
		Outputs: []*ast.Spec{
			{Name: "hyps", Kind: ast.OutputSlot, Rval: &ast.Unbound{}},
		},
	}
	decode := &ast.TaskDef{
		Name: "decode",
		Outputs: []*ast.Spec{
			{Name: "hyps", Kind: ast.OutputSlot, Rval: &ast.Unbound{}},
		},
	}
	eval := &ast.TaskDef{
		Name: "eval",
		Inputs: []*ast.Spec{
			{Name: "hyps", Kind: ast.InputSlot, Rval: &ast.BranchPointDef{
				Name: "scoreSet",
				Children: []*ast.Spec{
					{Name: "tune", Kind: ast.InputSlot, Rval: &ast.Variable{TaskName: "tune", SlotName: "hyps"}},
					{Name: "test", Kind: ast.InputSlot, Rval: &ast.Variable{TaskName: "decode", SlotName: "hyps"}},
				},
			}},
		},
	}
	wf := &ast.Workflow{Tasks: []*ast.TaskDef{tune, decode, eval}}

	g, _, err := Build(wf)
	assert.NilError(t, err)

	ttEval, _ := g.Template("eval")
	assert.Equal(t, len(ttEval.BranchPoints), 1)
	assert.Equal(t, ttEval.BranchPoints[0].Name, "scoreSet")

	ttTune, _ := g.Template("tune")
	assert.Equal(t, len(ttTune.BranchPoints), 0)
	ttDecode, _ := g.Template("decode")
	assert.Equal(t, len(ttDecode.BranchPoints), 0)

	metaEdges := g.MetaEdges("eval")
	assert.Equal(t, len(metaEdges), 1)
	me := metaEdges[0]
	assert.Equal(t, len(me.Hyperedges), 2)
	for _, he := range me.Hyperedges {
		assert.Equal(t, len(he.Tails), 1)
		assert.Assert(t, he.Tails[0].Real)
		if he.Branch.Name == "tune" {
			assert.Equal(t, he.Tails[0].Task, "tune")
		} else {
			assert.Equal(t, he.Tails[0].Task, "decode")
		}
	}
}

func TestBranchPointRedeclarationMismatchIsRejected(t *testing.T) {
	mkBP := func(names ...string) *ast.BranchPointDef {
		children := make([]*ast.Spec, len(names))
		for i, n := range names {
			children[i] = &ast.Spec{Name: n, Kind: ast.ParamSlot, Rval: &ast.Literal{Value: n}}
		}
		return &ast.BranchPointDef{Name: "size", Children: children}
	}

	a := &ast.TaskDef{Name: "a", Params: []*ast.Spec{
		{Name: "size", Kind: ast.ParamSlot, Rval: mkBP("small", "large")},
	}}
	b := &ast.TaskDef{Name: "b", Params: []*ast.Spec{
		{Name: "size", Kind: ast.ParamSlot, Rval: mkBP("small", "huge")},
	}}
	wf := &ast.Workflow{Tasks: []*ast.TaskDef{a, b}}

	_, _, err := Build(wf)
	var target *BranchPointRedeclarationMismatchError
	assert.Assert(t, errors.As(err, &target))
}
