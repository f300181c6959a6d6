// Package naming assigns stable chunk names to sub-array cell ranges
// and resolves between names and their packed Morton corner keys.
//
// A chunk name is the dataset prefix followed by a 1-based index
// zero-padded to two digits (e.g. "demo01"). Indices are assigned by
// Morton rank over the sub-arrays' first corners, so the mapping is a
// pure function of the source side, sub-array side, and dataset prefix,
// and can be cached across timesteps.
package naming

import (
	"fmt"
	"sort"

	"github.com/scigolib/cubeplace/internal/morton"
)

// Range is a half-open cell coordinate range along one axis, identical
// in shape to the ranges produced by package splitter.
type Range struct {
	Lo, Hi uint64
}

// CellRange is the triplet of axis ranges identifying a sub-array's
// position in the source grid.
type CellRange struct {
	X, Y, Z Range
}

// Entry is one resolved chunk-name record.
type Entry struct {
	Name    string
	MinKey  morton.Key
	MaxKey  morton.Key
	Slot    int // 1-based index within the mapping
	Range   CellRange
}

// Map is the bidirectional name <-> corner-key mapping for one
// (source side, sub-array side, prefix) configuration.
type Map struct {
	byName []Entry       // indexed by slot-1, in name order
	bySlot map[string]int
}

// Build computes the name<->Morton mapping for the given cell ranges.
//
// sourceSide is the source array's side length L, used as the Morton
// packing modulus for both corners of every range. Both the minimum and
// maximum corner use identical (x, y, z) packing argument order; this
// uniform order is the resolution of the otherwise-ambiguous legacy
// corner-packing convention, applied consistently so lookups round-trip.
func Build(sourceSide uint64, ranges []CellRange, prefix string) (*Map, error) {
	if len(ranges) == 0 {
		return nil, fmt.Errorf("naming: no cell ranges provided")
	}

	type keyed struct {
		minKey, maxKey morton.Key
		cellRange      CellRange
	}

	keyedRanges := make([]keyed, len(ranges))

	for i, r := range ranges {
		minKey, err := morton.Pack(sourceSide, r.X.Lo, r.Y.Lo, r.Z.Lo)
		if err != nil {
			return nil, fmt.Errorf("naming: packing min corner of range %d: %w", i, err)
		}

		maxKey, err := morton.Pack(sourceSide, r.X.Hi-1, r.Y.Hi-1, r.Z.Hi-1)
		if err != nil {
			return nil, fmt.Errorf("naming: packing max corner of range %d: %w", i, err)
		}

		keyedRanges[i] = keyed{minKey: minKey, maxKey: maxKey, cellRange: r}
	}

	sort.Slice(keyedRanges, func(i, j int) bool {
		return keyedRanges[i].minKey < keyedRanges[j].minKey
	})

	digits := digitsFor(len(ranges))

	m := &Map{
		byName: make([]Entry, len(ranges)),
		bySlot: make(map[string]int, len(ranges)),
	}

	for idx, kr := range keyedRanges {
		slot := idx + 1
		name := fmt.Sprintf("%s%0*d", prefix, digits, slot)

		m.byName[idx] = Entry{
			Name:   name,
			MinKey: kr.minKey,
			MaxKey: kr.maxKey,
			Slot:   slot,
			Range:  kr.cellRange,
		}
		m.bySlot[name] = idx
	}

	return m, nil
}

// digitsFor returns the zero-pad width needed to represent count in
// decimal, with a floor of 2 to match the spec's "zero-padded to two
// digits" convention for the reference deployment's sizes.
func digitsFor(count int) int {
	digits := 2
	for count >= pow10(digits) {
		digits++
	}
	return digits
}

func pow10(n int) int {
	v := 1
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}

// Entries returns all mapping entries in ascending name (Morton) order.
func (m *Map) Entries() []Entry {
	return m.byName
}

// ByName resolves a chunk name to its mapping entry.
func (m *Map) ByName(name string) (Entry, bool) {
	idx, ok := m.bySlot[name]
	if !ok {
		return Entry{}, false
	}
	return m.byName[idx], true
}

// BySlot resolves a 1-based slot index to its mapping entry.
func (m *Map) BySlot(slot int) (Entry, bool) {
	if slot < 1 || slot > len(m.byName) {
		return Entry{}, false
	}
	return m.byName[slot-1], true
}

// ByRange resolves a cell range to its chunk name by recomputing and
// looking up its corner keys. It is provided for callers (package
// placement) that have a range but not an Entry in hand.
func (m *Map) ByRange(sourceSide uint64, r CellRange) (Entry, error) {
	minKey, err := morton.Pack(sourceSide, r.X.Lo, r.Y.Lo, r.Z.Lo)
	if err != nil {
		return Entry{}, fmt.Errorf("naming: packing min corner: %w", err)
	}

	maxKey, err := morton.Pack(sourceSide, r.X.Hi-1, r.Y.Hi-1, r.Z.Hi-1)
	if err != nil {
		return Entry{}, fmt.Errorf("naming: packing max corner: %w", err)
	}

	for _, e := range m.byName {
		if e.MinKey == minKey && e.MaxKey == maxKey {
			return e, nil
		}
	}

	return Entry{}, fmt.Errorf("naming: no entry for range with corners (%d,%d)", minKey, maxKey)
}
