package unpack

import (
	"sort"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/sbeschke/ducttape/internal/ast"
	"github.com/sbeschke/ducttape/internal/builder"
	"github.com/sbeschke/ducttape/internal/fixture"
)

func TestUnpackS1ProducesCrossProductWithoutCrossBranchAlign(t *testing.T) {
	g, _, err := builder.Build(fixture.S1())
	assert.NilError(t, err)

	res, err := Unpack(g, nil)
	assert.NilError(t, err)

	assert.DeepEqual(t, res.Order, []string{"tok_src", "tok_tgt", "align"})

	names := make([]string, 0, len(res.All()))
	for _, rt := range res.All() {
		names = append(names, rt.Name()+"/"+rt.RealizationName())
	}
	sort.Strings(names)

	assert.DeepEqual(t, names, []string{
		"align/large",
		"align/small",
		"tok_src/large",
		"tok_src/small",
		"tok_tgt/large",
		"tok_tgt/small",
	})

	for _, rt := range res.ByVertex["align"] {
		assert.Assert(t, rt.RealizationName() == "small" || rt.RealizationName() == "large",
			"align must never realize a cross-branch combination, got %q", rt.RealizationName())
	}
}

func TestUnpackGoalsRestrictToAncestors(t *testing.T) {
	g, _, err := builder.Build(fixture.S1())
	assert.NilError(t, err)

	res, err := Unpack(g, []string{"tok_src"})
	assert.NilError(t, err)

	assert.DeepEqual(t, res.Order, []string{"tok_src"})
	assert.Equal(t, len(res.ByVertex["tok_src"]), 2)
	_, ok := res.ByVertex["align"]
	assert.Assert(t, !ok)
}

func TestUnpackBaselineOnlyWorkflowProducesOneRealTask(t *testing.T) {
	taskDef := &ast.TaskDef{
		Name: "t",
		Inputs: []*ast.Spec{
			{Name: "in", Kind: ast.InputSlot, Rval: &ast.Literal{Value: "a.txt"}},
		},
	}
	wf := &ast.Workflow{Tasks: []*ast.TaskDef{taskDef}}

	g, _, err := builder.Build(wf)
	assert.NilError(t, err)

	res, err := Unpack(g, nil)
	assert.NilError(t, err)

	assert.Equal(t, len(res.ByVertex["t"]), 1)
	assert.Equal(t, res.ByVertex["t"][0].RealizationName(), "baseline")
}
