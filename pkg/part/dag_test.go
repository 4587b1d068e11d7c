package part

import (
	"testing"

	craftparts "github.com/mensylisir/craftkit/pkg/craftparts/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortPartsLinear(t *testing.T) {
	a := &Part{Name: "a"}
	b := &Part{Name: "b", After: []string{"a"}}

	sorted, err := SortParts([]*Part{b, a})
	require.NoError(t, err)
	require.Len(t, sorted, 2)
	assert.Equal(t, "a", sorted[0].Name)
	assert.Equal(t, "b", sorted[1].Name)
}

func TestSortPartsStableTieBreak(t *testing.T) {
	z := &Part{Name: "z"}
	a := &Part{Name: "a"}

	sorted, err := SortParts([]*Part{z, a})
	require.NoError(t, err)
	assert.Equal(t, "a", sorted[0].Name)
	assert.Equal(t, "z", sorted[1].Name)
}

func TestSortPartsCycle(t *testing.T) {
	a := &Part{Name: "a", After: []string{"b"}}
	b := &Part{Name: "b", After: []string{"a"}}

	_, err := SortParts([]*Part{a, b})
	require.Error(t, err)
	var cycleErr *craftparts.CycleDetected
	assert.ErrorAs(t, err, &cycleErr)
}

func TestPartDependenciesRecursive(t *testing.T) {
	a := &Part{Name: "a"}
	b := &Part{Name: "b", After: []string{"a"}}
	c := &Part{Name: "c", After: []string{"b"}}
	all := []*Part{a, b, c}

	direct, err := PartDependencies("c", all, false)
	require.NoError(t, err)
	assert.Len(t, direct, 1)
	assert.Contains(t, direct, "b")

	transitive, err := PartDependencies("c", all, true)
	require.NoError(t, err)
	assert.Len(t, transitive, 2)
	assert.Contains(t, transitive, "a")
	assert.Contains(t, transitive, "b")
}

func TestSelectByNameMissing(t *testing.T) {
	a := &Part{Name: "a"}
	_, err := SelectByName([]string{"missing"}, []*Part{a})
	require.Error(t, err)
}
