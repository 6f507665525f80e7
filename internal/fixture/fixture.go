// Package fixture hand-builds a small ast.Workflow for the demonstration
// harness (cmd/ducttape) to run end to end, standing in for the
// out-of-scope surface parser. It reproduces spec scenario S1
// (tok_src/tok_tgt each carrying a "size" branch point, feeding align)
// with a literal input left unsatisfied, so the same run also exercises
// the input checker's InputFileNotFound path (scenario S5).
package fixture

import "github.com/sbeschke/ducttape/internal/ast"

// S1 returns the tok_src/tok_tgt/align workflow described in spec
// scenario S1, with tok_src and tok_tgt each reading a literal corpus
// file that does not exist on disk (so a demonstration run of the input
// checker has something to report).
func S1() *ast.Workflow {
	pos := func(line int) ast.Pos { return ast.Pos{File: "fixture/s1.tape", Line: line} }

	sizeBranches := func(line int) *ast.BranchPointDef {
		return &ast.BranchPointDef{
			Name: "size",
			Children: []*ast.Spec{
				{Name: "small", Kind: ast.ParamSlot, Rval: &ast.Literal{Value: "100", At: pos(line)}, At: pos(line)},
				{Name: "large", Kind: ast.ParamSlot, Rval: &ast.Literal{Value: "1000", At: pos(line)}, At: pos(line)},
			},
			At: pos(line),
		}
	}

	tokSrc := &ast.TaskDef{
		Name: "tok_src",
		Inputs: []*ast.Spec{
			{Name: "in", Kind: ast.InputSlot, Rval: &ast.Literal{Value: "corpus/src.txt", At: pos(2)}, At: pos(2)},
		},
		Outputs: []*ast.Spec{
			{Name: "toks", Kind: ast.OutputSlot, Rval: &ast.Unbound{At: pos(3)}, At: pos(3)},
		},
		Params: []*ast.Spec{
			{Name: "size", Kind: ast.ParamSlot, Rval: sizeBranches(4), At: pos(4)},
		},
		Command: "tokenize $in > $toks",
		At:      pos(1),
	}

	tokTgt := &ast.TaskDef{
		Name: "tok_tgt",
		Inputs: []*ast.Spec{
			{Name: "in", Kind: ast.InputSlot, Rval: &ast.Literal{Value: "corpus/tgt.txt", At: pos(8)}, At: pos(8)},
		},
		Outputs: []*ast.Spec{
			{Name: "toks", Kind: ast.OutputSlot, Rval: &ast.Unbound{At: pos(9)}, At: pos(9)},
		},
		Params: []*ast.Spec{
			// Same branch-point name as tok_src's "size", same branch
			// names: a redeclaration the builder must accept (spec §4.2,
			// §9 open-question decision in DESIGN.md).
			{Name: "size", Kind: ast.ParamSlot, Rval: sizeBranches(10), At: pos(10)},
		},
		Command: "tokenize $in > $toks",
		At:      pos(7),
	}

	align := &ast.TaskDef{
		Name: "align",
		Inputs: []*ast.Spec{
			{Name: "src", Kind: ast.InputSlot, Rval: &ast.Variable{TaskName: "tok_src", SlotName: "toks", At: pos(14)}, At: pos(14)},
			{Name: "tgt", Kind: ast.InputSlot, Rval: &ast.Variable{TaskName: "tok_tgt", SlotName: "toks", At: pos(15)}, At: pos(15)},
		},
		Outputs: []*ast.Spec{
			{Name: "aligned", Kind: ast.OutputSlot, Rval: &ast.Unbound{At: pos(16)}, At: pos(16)},
		},
		Command: "align $src $tgt > $aligned",
		At:      pos(13),
	}

	return &ast.Workflow{Tasks: []*ast.TaskDef{tokSrc, tokTgt, align}}
}
