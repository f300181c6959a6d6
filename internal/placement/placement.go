// Package placement composes the space-filling index, node colorer,
// sub-array namer, and fleet directory listing into the ordered job
// list the write dispatcher drains: (sub-array view, destination path)
// pairs for one timestep and one write mode.
package placement

import (
	"fmt"

	"github.com/scigolib/cubeplace/internal/coloring"
	"github.com/scigolib/cubeplace/internal/fleet"
	"github.com/scigolib/cubeplace/internal/naming"
	"github.com/scigolib/cubeplace/internal/splitter"
)

// Mode is the write mode a placement plan is built for.
type Mode string

const (
	Production Mode = "prod"
	Backup     Mode = "back"
)

// Job is one planned (sub-array view, destination path) pair.
type Job struct {
	View        *splitter.View
	Destination string
	ChunkName   string
	NodeIndex   int
}

// Plan builds the ordered job list for one dataset/timestep/mode.
//
// sourceSide is the source cube's side L (used for Morton packing).
// views and ranges must be the splitter's paired outputs, in the
// splitter's iteration order; that order is preserved into the
// returned job list (only the chunk-name assignment uses Morton order,
// per the planner's contract).
func Plan(
	datasetName string,
	timestep int,
	mode Mode,
	views []*splitter.View,
	ranges []splitter.CellRange,
	sourceSide uint64,
	nodes []fleet.Node,
) ([]Job, error) {
	if len(views) != len(ranges) {
		return nil, fmt.Errorf("placement: views (%d) and ranges (%d) must be paired 1:1", len(views), len(ranges))
	}

	if len(views) == 0 {
		return nil, fmt.Errorf("placement: no sub-arrays to place")
	}

	n := cubeRootInt(len(views))
	if n*n*n != len(views) {
		return nil, fmt.Errorf("placement: sub-array count %d is not a perfect cube", len(views))
	}

	if err := fleet.Validate(nodes, coloring.MinNodes); err != nil {
		return nil, err
	}

	grid, err := coloring.Assign(n, len(nodes))
	if err != nil {
		return nil, fmt.Errorf("placement: coloring: %w", err)
	}
	colors := grid.Flatten()

	namingRanges := make([]naming.CellRange, len(ranges))
	for i, r := range ranges {
		namingRanges[i] = naming.CellRange{
			X: naming.Range{Lo: r.X.Lo, Hi: r.X.Hi},
			Y: naming.Range{Lo: r.Y.Lo, Hi: r.Y.Hi},
			Z: naming.Range{Lo: r.Z.Lo, Hi: r.Z.Hi},
		}
	}

	nameMap, err := naming.Build(sourceSide, namingRanges, datasetName)
	if err != nil {
		return nil, fmt.Errorf("placement: naming: %w", err)
	}

	placementNodes := nodes
	if mode == Backup {
		placementNodes = fleet.Rotate(nodes)
	}

	jobs := make([]Job, len(views))

	for i, r := range namingRanges {
		entry, err := nameMap.ByRange(sourceSide, r)
		if err != nil {
			return nil, fmt.Errorf("placement: resolving chunk name for cell %d: %w", i, err)
		}

		slot := entry.Slot
		if slot < 1 || slot > len(colors) {
			return nil, fmt.Errorf("placement: slot %d out of range for %d colors", slot, len(colors))
		}

		color := colors[slot-1]
		if color < 1 || color > len(placementNodes) {
			return nil, fmt.Errorf("placement: color %d out of range for %d nodes", color, len(placementNodes))
		}

		node := placementNodes[color-1]

		jobs[i] = Job{
			View:        views[i],
			Destination: destinationPath(node.Path, datasetName, color, slot, mode, timestep),
			ChunkName:   entry.Name,
			NodeIndex:   node.Index,
		}
	}

	return jobs, nil
}

// destinationPath builds the path per the spec's destination path
// format: <node_base>/<dataset>_<node_slot_2dig>_<mode>/<dataset><chunk_slot_2dig>_<timestep_3dig>.zarr
//
// nodeSlot (the node's own enumeration index, i.e. color) tags the
// per-node directory; chunkSlot (the chunk's own naming.Entry.Slot)
// tags the filename. These are two distinct numbers — reusing one for
// both collapses every chunk placed on the same node onto one path,
// since pigeonhole guarantees multiple chunks share a color whenever
// there are more sub-arrays than nodes. Grounded on the original
// Python's get_512_chunk_destinations, which likewise uses the node's
// own enumeration index for the directory tag and the chunk's parsed
// index for the filename tag.
func destinationPath(nodeBase, dataset string, nodeSlot, chunkSlot int, mode Mode, timestep int) string {
	return fmt.Sprintf("%s/%s_%02d_%s/%s%02d_%03d.zarr",
		nodeBase, dataset, nodeSlot, mode, dataset, chunkSlot, timestep)
}

// cubeRootInt returns the integer cube root of v, or a value whose
// cube does not equal v if v is not a perfect cube (the caller checks).
func cubeRootInt(v int) int {
	if v == 0 {
		return 0
	}

	n := 1
	for n*n*n < v {
		n++
	}
	return n
}
