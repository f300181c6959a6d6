package backup

import (
	"context"
	"testing"

	"github.com/scigolib/cubeplace/internal/fleet"
	"github.com/scigolib/cubeplace/internal/storage"
	"github.com/stretchr/testify/require"
)

func testNodes(t *testing.T, root string, n int) []fleet.Node {
	t.Helper()
	nodes := make([]fleet.Node, n)
	for i := 0; i < n; i++ {
		nodes[i] = fleet.Node{Index: i + 1, Path: root + "/node" + string(rune('a'+i))}
	}
	return nodes
}

func TestMirror_Copy_RotatesToNextNode(t *testing.T) {
	root := t.TempDir()
	backend := storage.NewLocalBackend(root)
	ctx := context.Background()

	nodes := testNodes(t, "", 3)

	require.NoError(t, backend.Put(ctx, nodes[0].Path+"/demo_01_prod/demo01_001.zarr", []byte("data")))

	m := New(backend, nodes, 2, nil, nil)

	result, err := m.Copy(ctx, "demo")
	require.NoError(t, err)
	require.Equal(t, 1, result.Total)
	require.Equal(t, 1, result.Succeeded)

	got, err := backend.Get(ctx, nodes[1].Path+"/demo_01_back/demo01_001.zarr")
	require.NoError(t, err)
	require.Equal(t, []byte("data"), got)
}

func TestMirror_Copy_WrapsAroundAtLastNode(t *testing.T) {
	root := t.TempDir()
	backend := storage.NewLocalBackend(root)
	ctx := context.Background()

	nodes := testNodes(t, "", 3)

	require.NoError(t, backend.Put(ctx, nodes[2].Path+"/demo_03_prod/demo03_001.zarr", []byte("data")))

	m := New(backend, nodes, 2, nil, nil)

	_, err := m.Copy(ctx, "demo")
	require.NoError(t, err)

	got, err := backend.Get(ctx, nodes[0].Path+"/demo_03_back/demo03_001.zarr")
	require.NoError(t, err)
	require.Equal(t, []byte("data"), got)
}

func TestMirror_Copy_IgnoresOtherDatasets(t *testing.T) {
	root := t.TempDir()
	backend := storage.NewLocalBackend(root)
	ctx := context.Background()

	nodes := testNodes(t, "", 2)

	require.NoError(t, backend.Put(ctx, nodes[0].Path+"/other_01_prod/x", []byte("data")))

	m := New(backend, nodes, 2, nil, nil)

	result, err := m.Copy(ctx, "demo")
	require.NoError(t, err)
	require.Equal(t, 0, result.Total)
}

func TestMirror_PendingDeletions(t *testing.T) {
	root := t.TempDir()
	backend := storage.NewLocalBackend(root)
	ctx := context.Background()

	nodes := testNodes(t, "", 2)

	require.NoError(t, backend.Put(ctx, nodes[0].Path+"/demo_01_back/x", []byte("d")))
	require.NoError(t, backend.Put(ctx, nodes[1].Path+"/demo_02_prod/x", []byte("d")))

	m := New(backend, nodes, 2, nil, nil)

	targets, err := m.PendingDeletions("demo")
	require.NoError(t, err)
	require.Len(t, targets, 1)
	require.Contains(t, targets[0], "demo_01_back")
}

func TestMirror_DeleteConfirmed(t *testing.T) {
	root := t.TempDir()
	backend := storage.NewLocalBackend(root)
	ctx := context.Background()

	nodes := testNodes(t, "", 1)

	require.NoError(t, backend.Put(ctx, nodes[0].Path+"/demo_01_back/x", []byte("d")))

	m := New(backend, nodes, 2, nil, nil)

	targets, err := m.PendingDeletions("demo")
	require.NoError(t, err)
	require.Len(t, targets, 1)

	result, err := m.DeleteConfirmed(ctx, targets)
	require.NoError(t, err)
	require.Equal(t, 1, result.Succeeded)

	remaining, err := m.PendingDeletions("demo")
	require.NoError(t, err)
	require.Empty(t, remaining)
}
