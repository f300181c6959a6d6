// Package sourceadapter provides a minimal concrete implementation of
// splitter.Source and orchestrator.SourceOpener over a simple on-disk
// layout: one directory per timestep containing one raw float32
// binary file per short variable name plus a "shape.json" sidecar.
//
// Decoding the real multi-variable scientific file format this engine
// is built for is explicitly out of scope (see SPEC_FULL.md §1); this
// adapter exists only so the orchestrator has something concrete to
// drive end to end, the way scigolib-hdf5's File.Open gives its own
// package a concrete entry point over a real on-disk format.
package sourceadapter

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/scigolib/cubeplace/internal/utils"
)

type shapeFile struct {
	Side      uint64   `json:"side"`
	Variables []string `json:"variables"`
}

// Directory implements orchestrator.SourceOpener by resolving timestep
// N to "<root>/<prefix><N zero-padded to 3 digits>/".
type Directory struct {
	Root   string
	Prefix string
}

// NewDirectory constructs a Directory source opener.
func NewDirectory(root, prefix string) *Directory {
	return &Directory{Root: root, Prefix: prefix}
}

// Open opens the directory for the given timestep and reads its
// shape.json sidecar to learn the source side and variable set.
func (d *Directory) Open(_ context.Context, timestep int) (*FileSource, error) {
	dir := filepath.Join(d.Root, fmt.Sprintf("%s%03d", d.Prefix, timestep))

	shapePath := filepath.Join(dir, "shape.json")
	data, err := os.ReadFile(shapePath)
	if err != nil {
		return nil, utils.WrapError(fmt.Sprintf("reading shape sidecar for timestep %d", timestep), err)
	}

	var shape shapeFile
	if err := json.Unmarshal(data, &shape); err != nil {
		return nil, utils.WrapError(fmt.Sprintf("parsing shape sidecar for timestep %d", timestep), err)
	}

	present := make(map[string]bool, len(shape.Variables))
	for _, v := range shape.Variables {
		present[v] = true
	}

	return &FileSource{dir: dir, side: shape.Side, vars: present}, nil
}

// FileSource implements splitter.Source over one timestep directory.
type FileSource struct {
	dir  string
	side uint64
	vars map[string]bool
}

// Side returns the source cube's edge length.
func (f *FileSource) Side() uint64 { return f.side }

// HasVariable reports whether the named short-form variable is present.
func (f *FileSource) HasVariable(name string) bool { return f.vars[name] }

// ReadRegion reads the requested sub-region of one variable's raw
// float32 file, in row-major (z, y, x) order.
func (f *FileSource) ReadRegion(_ context.Context, name string, loX, hiX, loY, hiY, loZ, hiZ uint64) ([]float32, error) {
	path := filepath.Join(f.dir, name+".bin")

	file, err := os.Open(path)
	if err != nil {
		return nil, utils.WrapError(fmt.Sprintf("opening variable %q", name), err)
	}
	defer file.Close()

	out := make([]float32, 0, (hiZ-loZ)*(hiY-loY)*(hiX-loX))
	row := make([]float32, hiX-loX)

	for z := loZ; z < hiZ; z++ {
		for y := loY; y < hiY; y++ {
			offset := int64((z*f.side*f.side+y*f.side+loX)*4)
			if _, err := file.Seek(offset, 0); err != nil {
				return nil, utils.WrapError(fmt.Sprintf("seeking in variable %q", name), err)
			}
			if err := binary.Read(file, binary.LittleEndian, &row); err != nil {
				return nil, utils.WrapError(fmt.Sprintf("reading row of variable %q", name), err)
			}
			out = append(out, row...)
		}
	}

	return out, nil
}
