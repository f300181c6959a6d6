// Package storagewriter adapts a storage.Backend into a dispatch.Writer:
// for each planned job it reads every declared output variable through
// the job's sub-array view and commits it to the backend under a
// chunked, zarr-like layout, one ".zarray" shape sidecar plus one file
// per inner chunk per variable.
package storagewriter

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/scigolib/cubeplace/internal/placement"
	"github.com/scigolib/cubeplace/internal/splitter"
	"github.com/scigolib/cubeplace/internal/storage"
	"github.com/scigolib/cubeplace/internal/utils"
)

// Writer commits a sub-array view's variables to a storage.Backend.
type Writer struct {
	backend storage.Backend
}

// New constructs a Writer over backend.
func New(backend storage.Backend) *Writer {
	return &Writer{backend: backend}
}

type zarrayMeta struct {
	Shape      [4]uint64 `json:"shape"`
	ChunkShape [4]uint64 `json:"chunk_shape"`
	Dtype      string    `json:"dtype"`
}

// Write materializes every variable of job.View under job.Destination.
func (w *Writer) Write(ctx context.Context, job placement.Job) error {
	view := job.View
	cellRange := view.Range()
	side := cellRange.X.Hi - cellRange.X.Lo

	for _, spec := range view.Variables() {
		byteSize, err := utils.SubArrayByteSize([]uint64{side, side, side, spec.Trailing}, 4)
		if err != nil {
			return fmt.Errorf("storagewriter: sizing variable %q: %w", spec.Name, err)
		}
		if err := utils.ValidateBufferSize(byteSize, utils.MaxSubArrayBytes, fmt.Sprintf("variable %q", spec.Name)); err != nil {
			return fmt.Errorf("storagewriter: %w", err)
		}

		data, err := view.ReadVariable(ctx, spec.Name)
		if err != nil {
			return fmt.Errorf("storagewriter: reading variable %q: %w", spec.Name, err)
		}

		varRoot := fmt.Sprintf("%s/%s", job.Destination, spec.Name)

		meta := zarrayMeta{
			Shape:      [4]uint64{side, side, side, spec.Trailing},
			ChunkShape: [4]uint64{spec.ChunkSide, spec.ChunkSide, spec.ChunkSide, spec.Trailing},
			Dtype:      "<f4",
		}

		metaBytes, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("storagewriter: encoding .zarray for variable %q: %w", spec.Name, err)
		}

		if err := w.backend.Put(ctx, varRoot+"/.zarray", metaBytes); err != nil {
			return fmt.Errorf("storagewriter: writing .zarray for variable %q: %w", spec.Name, err)
		}

		if err := w.writeChunks(ctx, varRoot, data, side, spec); err != nil {
			return fmt.Errorf("storagewriter: writing chunks for variable %q: %w", spec.Name, err)
		}
	}

	return nil
}

// writeChunks splits one variable's flat, row-major (z, y, x, trailing)
// data into C×C×C chunk files named "<ci>.<cj>.<ck>", the zarr
// convention for chunk keys.
func (w *Writer) writeChunks(ctx context.Context, varRoot string, data []float32, side uint64, spec splitter.VariableSpec) error {
	c := spec.ChunkSide
	chunksPerAxis := side / c

	for ci := uint64(0); ci < chunksPerAxis; ci++ {
		for cj := uint64(0); cj < chunksPerAxis; cj++ {
			for ck := uint64(0); ck < chunksPerAxis; ck++ {
				chunk := make([]float32, 0, c*c*c*spec.Trailing)

				for z := ci * c; z < (ci+1)*c; z++ {
					for y := cj * c; y < (cj+1)*c; y++ {
						for x := ck * c; x < (ck+1)*c; x++ {
							base := ((z*side+y)*side + x) * spec.Trailing
							chunk = append(chunk, data[base:base+spec.Trailing]...)
						}
					}
				}

				key := fmt.Sprintf("%s/%d.%d.%d", varRoot, ci, cj, ck)
				if err := w.backend.Put(ctx, key, encodeFloats(chunk)); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func encodeFloats(data []float32) []byte {
	out := make([]byte, len(data)*4)
	for i, f := range data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}
