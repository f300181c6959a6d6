// Package splitter slices one large 3D multi-variable source timestep
// into an N×N×N grid of equally-sized sub-arrays, each carrying a
// merged/renamed variable schema and a declared inner chunk layout.
//
// Splitting never reads voxel data: every emitted sub-array is a lazy
// View that only materializes when a consumer (package dispatch) reads
// through it.
package splitter

import (
	"context"
	"fmt"
	"sort"
)

// VariableKind distinguishes the two shapes of output variable. The
// three velocity components are merged into one Velocity variable with
// trailing axis 3; every other field becomes a Scalar variable with
// trailing axis 1.
type VariableKind int

const (
	Scalar VariableKind = iota
	Velocity
)

// VariableSpec describes one output variable of a sub-array: its name,
// kind, and declared inner chunk shape (C, C, C, trailing).
type VariableSpec struct {
	Name       string
	Kind       VariableKind
	ChunkSide  uint64
	Trailing   uint64
}

// Source is the (out-of-scope) adapter over the input multi-variable
// file format. Only this interface matters to the splitter; decoding
// the source's on-disk bytes is an external collaborator's concern.
type Source interface {
	// Side returns the source cube's edge length L.
	Side() uint64

	// HasVariable reports whether the named short-form variable
	// (e.g. "u", "v", "w", "p", "t", "e") is present in this source.
	HasVariable(shortName string) bool

	// ReadRegion reads one variable's voxel data restricted to the
	// half-open [lo, hi) range on each of the x, y, z axes, in
	// row-major (z, y, x) order. The returned slice has length
	// (hi.X-lo.X)*(hi.Y-lo.Y)*(hi.Z-lo.Z) float32 elements.
	ReadRegion(ctx context.Context, shortName string, loX, hiX, loY, hiY, loZ, hiZ uint64) ([]float32, error)
}

// AliasMap maps a source's short scalar variable names to their long
// output names, e.g. {"e": "energy", "t": "temperature", "p":
// "pressure"}. It is configuration, not code, per the spec's dynamic
// dispatch design note.
type AliasMap map[string]string

// DefaultAliasMap is the reference deployment's alias table.
func DefaultAliasMap() AliasMap {
	return AliasMap{
		"e": "energy",
		"t": "temperature",
		"p": "pressure",
	}
}

// Range is a half-open axis range, identical in shape to naming.Range.
type Range struct {
	Lo, Hi uint64
}

// CellRange is the triplet of axis ranges for one sub-array.
type CellRange struct {
	X, Y, Z Range
}

// View is a lazily-materialized sub-array: it carries everything needed
// to read and write the sub-array's voxel data without itself holding
// any of that data.
type View struct {
	source    Source
	cellRange CellRange
	variables []VariableSpec
	aliases   AliasMap
}

// Range returns the sub-array's cell coordinate range in the source grid.
func (v *View) Range() CellRange { return v.cellRange }

// Variables returns the sub-array's declared output variable schema.
func (v *View) Variables() []VariableSpec { return v.variables }

// ReadVariable materializes one output variable's voxel data for this
// sub-array by reading through to the source. For Velocity it reads
// and interleaves u, v, w; for Scalar it reads the matching short-form
// source variable.
func (v *View) ReadVariable(ctx context.Context, name string) ([]float32, error) {
	for _, spec := range v.variables {
		if spec.Name != name {
			continue
		}

		if spec.Kind == Velocity {
			return v.readVelocity(ctx)
		}
		return v.readScalar(ctx, name)
	}

	return nil, fmt.Errorf("splitter: sub-array has no variable %q", name)
}

func (v *View) readScalar(ctx context.Context, name string) ([]float32, error) {
	short := shortNameFor(name, v.aliases)

	return v.source.ReadRegion(ctx, short,
		v.cellRange.X.Lo, v.cellRange.X.Hi,
		v.cellRange.Y.Lo, v.cellRange.Y.Hi,
		v.cellRange.Z.Lo, v.cellRange.Z.Hi,
	)
}

func (v *View) readVelocity(ctx context.Context) ([]float32, error) {
	side := v.cellRange.X.Hi - v.cellRange.X.Lo
	count := side * side * side

	merged := make([]float32, 0, count*3)

	components := [3]string{"u", "v", "w"}
	componentData := make([][]float32, 3)

	for i, comp := range components {
		data, err := v.source.ReadRegion(ctx, comp,
			v.cellRange.X.Lo, v.cellRange.X.Hi,
			v.cellRange.Y.Lo, v.cellRange.Y.Hi,
			v.cellRange.Z.Lo, v.cellRange.Z.Hi,
		)
		if err != nil {
			return nil, fmt.Errorf("splitter: reading velocity component %q: %w", comp, err)
		}
		componentData[i] = data
	}

	for idx := uint64(0); idx < count; idx++ {
		merged = append(merged, componentData[0][idx], componentData[1][idx], componentData[2][idx])
	}

	return merged, nil
}

func shortNameFor(longName string, aliases AliasMap) string {
	for short, long := range aliases {
		if long == longName {
			return short
		}
	}
	return longName
}

// Options configures a Split invocation.
type Options struct {
	SubArraySide uint64
	ChunkSide    uint64
	Aliases      AliasMap
}

// Split tiles the source into an N×N×N grid of sub-array views in
// deterministic row-major (i,j,k) iteration order, together with the
// matching list of cell ranges in the same order.
//
// S (SubArraySide) must divide the source side; C (ChunkSide) must
// divide S; both must be powers of two. Split does not reorder by
// Morton key; that reordering is package naming's responsibility.
func Split(src Source, opts Options) ([]*View, []CellRange, error) {
	l := src.Side()
	s := opts.SubArraySide
	c := opts.ChunkSide

	if !isPowerOfTwo(l) || !isPowerOfTwo(s) || !isPowerOfTwo(c) {
		return nil, nil, fmt.Errorf("splitter: source side, sub-array side, and chunk side must all be powers of two (L=%d S=%d C=%d)", l, s, c)
	}

	if s == 0 || l%s != 0 {
		return nil, nil, fmt.Errorf("splitter: sub-array side %d must divide source side %d", s, l)
	}

	if c == 0 || s%c != 0 {
		return nil, nil, fmt.Errorf("splitter: chunk side %d must divide sub-array side %d", c, s)
	}

	n := l / s

	aliases := opts.Aliases
	if aliases == nil {
		aliases = DefaultAliasMap()
	}

	variables := buildVariableSchema(src, aliases, c)

	views := make([]*View, 0, n*n*n)
	ranges := make([]CellRange, 0, n*n*n)

	for i := uint64(0); i < n; i++ {
		for j := uint64(0); j < n; j++ {
			for k := uint64(0); k < n; k++ {
				cr := CellRange{
					X: Range{Lo: i * s, Hi: (i + 1) * s},
					Y: Range{Lo: j * s, Hi: (j + 1) * s},
					Z: Range{Lo: k * s, Hi: (k + 1) * s},
				}

				views = append(views, &View{
					source:    src,
					cellRange: cr,
					variables: variables,
					aliases:   aliases,
				})
				ranges = append(ranges, cr)
			}
		}
	}

	return views, ranges, nil
}

// buildVariableSchema determines the output variable set: a merged
// "velocity" variable if all three components are present, plus one
// renamed scalar variable for every other present short-form variable
// the alias map knows about. Variables absent from the source are
// ignored, never synthesized.
func buildVariableSchema(src Source, aliases AliasMap, chunkSide uint64) []VariableSpec {
	var specs []VariableSpec

	if src.HasVariable("u") && src.HasVariable("v") && src.HasVariable("w") {
		specs = append(specs, VariableSpec{
			Name:      "velocity",
			Kind:      Velocity,
			ChunkSide: chunkSide,
			Trailing:  3,
		})
	}

	shorts := make([]string, 0, len(aliases))
	for short := range aliases {
		shorts = append(shorts, short)
	}
	sort.Strings(shorts)

	for _, short := range shorts {
		if short == "u" || short == "v" || short == "w" {
			continue
		}
		if src.HasVariable(short) {
			specs = append(specs, VariableSpec{
				Name:      aliases[short],
				Kind:      Scalar,
				ChunkSide: chunkSide,
				Trailing:  1,
			})
		}
	}

	return specs
}

func isPowerOfTwo(v uint64) bool {
	return v != 0 && v&(v-1) == 0
}
