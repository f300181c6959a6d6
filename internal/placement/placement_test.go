package placement

import (
	"context"
	"testing"

	"github.com/scigolib/cubeplace/internal/fleet"
	"github.com/scigolib/cubeplace/internal/splitter"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	side uint64
	vars map[string]bool
}

func newFakeSource(side uint64, vars ...string) *fakeSource {
	present := make(map[string]bool, len(vars))
	for _, v := range vars {
		present[v] = true
	}
	return &fakeSource{side: side, vars: present}
}

func (f *fakeSource) Side() uint64          { return f.side }
func (f *fakeSource) HasVariable(n string) bool { return f.vars[n] }
func (f *fakeSource) ReadRegion(_ context.Context, _ string, loX, hiX, loY, hiY, loZ, hiZ uint64) ([]float32, error) {
	return make([]float32, (hiX-loX)*(hiY-loY)*(hiZ-loZ)), nil
}

func referenceNodes(n int) []fleet.Node {
	nodes := fleet.DefaultScheme().Enumerate()
	return nodes[:n]
}

func TestPlan_ProductionBijection(t *testing.T) {
	src := newFakeSource(8, "u", "v", "w")

	views, ranges, err := splitter.Split(src, splitter.Options{SubArraySide: 4, ChunkSide: 2})
	require.NoError(t, err)

	jobs, err := Plan("tiny", 1, Production, views, ranges, 8, referenceNodes(27))
	require.NoError(t, err)
	require.Len(t, jobs, 8)

	seenNames := make(map[string]bool)
	seenDest := make(map[string]bool)

	for _, j := range jobs {
		require.False(t, seenNames[j.ChunkName])
		seenNames[j.ChunkName] = true

		require.False(t, seenDest[j.Destination])
		seenDest[j.Destination] = true
	}
}

// TestPlan_ProductionBijection_Sc2Scale exercises Plan at the reference
// deployment's Sc-2 scale (N=4 -> 64 sub-arrays, M=34 nodes). At this
// scale pigeonhole guarantees multiple chunks share a color/node, unlike
// the N=2/M=27 cases elsewhere in this file where the clipped-neighborhood
// exclusion forces every assigned color distinct and hides a destination
// collision bug.
func TestPlan_ProductionBijection_Sc2Scale(t *testing.T) {
	src := newFakeSource(16, "u", "v", "w")

	views, ranges, err := splitter.Split(src, splitter.Options{SubArraySide: 4, ChunkSide: 4})
	require.NoError(t, err)
	require.Len(t, views, 64)

	jobs, err := Plan("sc2", 1, Production, views, ranges, 16, referenceNodes(34))
	require.NoError(t, err)
	require.Len(t, jobs, 64)

	seenNames := make(map[string]bool)
	seenDest := make(map[string]bool)

	sharedNodeSeen := false
	nodeColors := make(map[int]int)

	for _, j := range jobs {
		require.False(t, seenNames[j.ChunkName], "chunk name %q must be unique", j.ChunkName)
		seenNames[j.ChunkName] = true

		require.False(t, seenDest[j.Destination], "destination %q must be unique", j.Destination)
		seenDest[j.Destination] = true

		nodeColors[j.NodeIndex]++
		if nodeColors[j.NodeIndex] > 1 {
			sharedNodeSeen = true
		}
	}

	require.True(t, sharedNodeSeen, "64 sub-arrays over 34 nodes must force at least one shared node by pigeonhole")
}

func TestPlan_BackupRotation(t *testing.T) {
	src := newFakeSource(8, "u", "v", "w")

	views, ranges, err := splitter.Split(src, splitter.Options{SubArraySide: 4, ChunkSide: 2})
	require.NoError(t, err)

	nodes := referenceNodes(27)

	prodJobs, err := Plan("tiny", 1, Production, views, ranges, 8, nodes)
	require.NoError(t, err)

	backJobs, err := Plan("tiny", 1, Backup, views, ranges, 8, nodes)
	require.NoError(t, err)

	require.Len(t, prodJobs, len(backJobs))

	for i := range prodJobs {
		require.Equal(t, (prodJobs[i].NodeIndex%len(nodes))+1, backJobs[i].NodeIndex,
			"backup node must be prod node rotated by +1 mod M")
	}
}

func TestPlan_DestinationPathFormat(t *testing.T) {
	src := newFakeSource(8, "u", "v", "w")

	views, ranges, err := splitter.Split(src, splitter.Options{SubArraySide: 4, ChunkSide: 2})
	require.NoError(t, err)

	jobs, err := Plan("demo", 42, Production, views, ranges, 8, referenceNodes(27))
	require.NoError(t, err)

	for _, j := range jobs {
		require.Contains(t, j.Destination, "demo_")
		require.Contains(t, j.Destination, "_prod/")
		require.Contains(t, j.Destination, "_042.zarr")
	}
}

func TestPlan_RejectsInsufficientNodes(t *testing.T) {
	src := newFakeSource(8, "u", "v", "w")

	views, ranges, err := splitter.Split(src, splitter.Options{SubArraySide: 4, ChunkSide: 2})
	require.NoError(t, err)

	_, err = Plan("tiny", 1, Production, views, ranges, 8, referenceNodes(10))
	require.Error(t, err)
}

func TestPlan_RejectsMismatchedLengths(t *testing.T) {
	src := newFakeSource(8, "u", "v", "w")

	views, ranges, err := splitter.Split(src, splitter.Options{SubArraySide: 4, ChunkSide: 2})
	require.NoError(t, err)

	_, err = Plan("tiny", 1, Production, views, ranges[:len(ranges)-1], 8, referenceNodes(27))
	require.Error(t, err)
}

func TestPlan_PreservesSplitterOrder(t *testing.T) {
	src := newFakeSource(8, "u", "v", "w")

	views, ranges, err := splitter.Split(src, splitter.Options{SubArraySide: 4, ChunkSide: 2})
	require.NoError(t, err)

	jobs, err := Plan("tiny", 1, Production, views, ranges, 8, referenceNodes(27))
	require.NoError(t, err)

	for i, j := range jobs {
		require.Equal(t, views[i], j.View)
	}
}

func TestPlan_Deterministic(t *testing.T) {
	src := newFakeSource(8, "u", "v", "w")

	views, ranges, err := splitter.Split(src, splitter.Options{SubArraySide: 4, ChunkSide: 2})
	require.NoError(t, err)

	nodes := referenceNodes(27)

	jobs1, err := Plan("tiny", 1, Production, views, ranges, 8, nodes)
	require.NoError(t, err)

	jobs2, err := Plan("tiny", 1, Production, views, ranges, 8, nodes)
	require.NoError(t, err)

	for i := range jobs1 {
		require.Equal(t, jobs1[i].Destination, jobs2[i].Destination)
		require.Equal(t, jobs1[i].ChunkName, jobs2[i].ChunkName)
	}
}
