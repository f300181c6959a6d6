// Package fleet enumerates the canonical, fixed ordering of storage
// node base directories that the placement planner indexes into.
//
// The canonical order is a lexicographic two-dimensional (disk,
// fragment) scheme. Downstream correctness (node coloring, backup
// rotation) depends on this list's indices never being re-sorted, so
// every function here returns a list in construction order and callers
// must treat that order as stable.
package fleet

import "fmt"

// Node is one storage fleet entry: an opaque base directory path and
// its 1-based canonical index.
type Node struct {
	Index int
	Path  string
}

// Scheme describes the (disk, fragment) enumeration used by the
// reference deployment: disks numbered [1, Disks] and fragments
// numbered [1, Fragments] per disk, enumerated fragment-major (all
// disks of fragment 1, then all disks of fragment 2, ...), joined at
// Root.
type Scheme struct {
	Root      string
	Disks     int
	Fragments int
}

// DefaultScheme is the reference deployment's 12-disk, 3-fragment
// layout (M = 36 raw slots; the reference fleet uses 34 of them).
func DefaultScheme() Scheme {
	return Scheme{Root: "/data", Disks: 12, Fragments: 3}
}

// Enumerate builds the canonical node list for a scheme. Directory
// names follow "data{disk:02d}_{fragment:02d}/zarr".
func (s Scheme) Enumerate() []Node {
	nodes := make([]Node, 0, s.Disks*s.Fragments)

	index := 1
	for fragment := 1; fragment <= s.Fragments; fragment++ {
		for disk := 1; disk <= s.Disks; disk++ {
			path := fmt.Sprintf("%s/data%02d_%02d/zarr", s.Root, disk, fragment)
			nodes = append(nodes, Node{Index: index, Path: path})
			index++
		}
	}

	return nodes
}

// Rotate returns a copy of nodes rotated by one position: the first
// entry becomes the last. This implements the backup placement's "next
// node" relation: the rotated list's element at position i is the
// production node at position (i+1) mod len(nodes).
func Rotate(nodes []Node) []Node {
	if len(nodes) == 0 {
		return nil
	}

	rotated := make([]Node, len(nodes))
	copy(rotated, nodes[1:])
	rotated[len(nodes)-1] = nodes[0]

	return rotated
}

// Validate checks that the node count meets the placement engine's
// minimum fleet size.
func Validate(nodes []Node, minNodes int) error {
	if len(nodes) < minNodes {
		return fmt.Errorf("fleet: need at least %d nodes, got %d", minNodes, len(nodes))
	}
	return nil
}
