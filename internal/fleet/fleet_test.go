package fleet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnumerate_StableCount(t *testing.T) {
	nodes := DefaultScheme().Enumerate()
	require.Len(t, nodes, 36)
}

func TestEnumerate_FragmentMajorOrder(t *testing.T) {
	nodes := DefaultScheme().Enumerate()

	require.Equal(t, "/data/data01_01/zarr", nodes[0].Path)
	require.Equal(t, "/data/data12_01/zarr", nodes[11].Path)
	require.Equal(t, "/data/data01_02/zarr", nodes[12].Path)
}

func TestEnumerate_SequentialIndices(t *testing.T) {
	nodes := DefaultScheme().Enumerate()
	for i, n := range nodes {
		require.Equal(t, i+1, n.Index)
	}
}

func TestRotate_FirstBecomesLast(t *testing.T) {
	nodes := DefaultScheme().Enumerate()[:5]

	rotated := Rotate(nodes)
	require.Len(t, rotated, 5)
	require.Equal(t, nodes[0].Path, rotated[4].Path)
	require.Equal(t, nodes[1].Path, rotated[0].Path)
}

func TestRotate_NextNodeRelation(t *testing.T) {
	nodes := DefaultScheme().Enumerate()[:34]
	rotated := Rotate(nodes)

	for i := range nodes {
		expected := nodes[(i+1)%len(nodes)]
		require.Equal(t, expected.Path, rotated[i].Path)
	}
}

func TestRotate_Empty(t *testing.T) {
	require.Nil(t, Rotate(nil))
}

func TestValidate_InsufficientNodes(t *testing.T) {
	nodes := DefaultScheme().Enumerate()[:10]
	err := Validate(nodes, 27)
	require.Error(t, err)
}

func TestValidate_SufficientNodes(t *testing.T) {
	nodes := DefaultScheme().Enumerate()[:34]
	err := Validate(nodes, 27)
	require.NoError(t, err)
}
