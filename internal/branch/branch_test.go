package branch

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestRegistrySeedsBaseline(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, r.Baseline().Name, BaselineName)
	assert.Equal(t, r.BaselineBranch().Name, BaselineBranchName)
	assert.Assert(t, r.BaselineBranch().IsBaseline())
}

func TestGetOrCreateReturnsSamePointer(t *testing.T) {
	r := NewRegistry()
	bp1, isNew1 := r.GetOrCreate("size")
	assert.Assert(t, isNew1)
	bp2, isNew2 := r.GetOrCreate("size")
	assert.Assert(t, !isNew2)
	assert.Assert(t, bp1 == bp2)
}

func TestAddBranchIdempotentPreservesOrder(t *testing.T) {
	bp := &BranchPoint{Name: "size"}
	small := bp.AddBranch("small")
	large := bp.AddBranch("large")
	sameSmall := bp.AddBranch("small")

	assert.Assert(t, small == sameSmall)
	assert.Equal(t, len(bp.Branches), 2)
	assert.Equal(t, bp.Branches[0].Name, "small")
	assert.Equal(t, bp.Branches[1].Name, "large")
	assert.Assert(t, large == bp.Branches[1])
}

func TestRegistryAllSortedByName(t *testing.T) {
	r := NewRegistry()
	r.GetOrCreate("size")
	r.GetOrCreate("mem")
	r.GetOrCreate("arch")

	all := r.All()
	names := make([]string, len(all))
	for i, bp := range all {
		names[i] = bp.Name
	}
	assert.DeepEqual(t, names, []string{BaselineName, "arch", "mem", "size"})
}

func TestNameSet(t *testing.T) {
	bp := &BranchPoint{Name: "size"}
	bp.AddBranch("small")
	bp.AddBranch("large")

	set := bp.NameSet()
	assert.Equal(t, len(set), 2)
	_, ok := set["small"]
	assert.Assert(t, ok)
	_, ok = set["huge"]
	assert.Assert(t, !ok)
}
