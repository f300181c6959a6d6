// Package coloring assigns storage-node ids to cells of an N×N×N grid
// such that no two cells within a clipped 3x3x3 neighborhood share an
// id, while keeping the per-node assignment counts balanced.
//
// The algorithm is a deterministic greedy graph coloring: cells are
// visited in row-major order and each is given the least-used available
// color (node id) not already present in its neighborhood.
package coloring

import "fmt"

// MinNodes is the smallest fleet size for which a solution is guaranteed
// to exist: a cell's clipped neighborhood can contain up to 26 other
// already-colored cells, so at least 27 distinct colors must exist for
// an available one to always remain.
const MinNodes = 27

// Grid is the N×N×N array of 1-based node ids produced by Assign. Grid
// is indexed Grid[i][j][k] with values in [1, M].
type Grid [][][]int

// Assign computes the node-coloring grid for an N×N×N cell space over
// M available nodes.
//
// Cells are visited in row-major order (i slowest-varying, k
// fastest-varying). For each cell, the set of node ids already assigned
// within its clipped 3x3x3 neighborhood is excluded from the candidate
// set; among the remaining candidates the one with the smallest running
// assignment count is chosen, ties broken by smallest node id.
//
// Assign returns an error if M < MinNodes: below that threshold a
// conflict-free assignment cannot always be found and the caller must
// not silently fall back to a weaker guarantee.
func Assign(n, m int) (Grid, error) {
	if n <= 0 {
		return nil, fmt.Errorf("coloring: grid size N must be positive, got %d", n)
	}

	if m < MinNodes {
		return nil, fmt.Errorf("coloring: need at least %d nodes for a clipped 26-neighborhood, got %d", MinNodes, m)
	}

	grid := make(Grid, n)
	for i := range grid {
		grid[i] = make([][]int, n)
		for j := range grid[i] {
			grid[i][j] = make([]int, n)
		}
	}

	counts := make([]int, m+1) // 1-indexed; counts[0] unused

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				excluded := neighborColors(grid, n, i, j, k)

				best := 0
				for color := 1; color <= m; color++ {
					if excluded[color] {
						continue
					}
					if best == 0 || counts[color] < counts[best] {
						best = color
					}
				}

				grid[i][j][k] = best
				counts[best]++
			}
		}
	}

	return grid, nil
}

// neighborColors collects the node ids already assigned within the
// clipped 3x3x3 neighborhood of (i, j, k), excluding the center cell
// itself (which is still zero/unassigned at the time of the call).
func neighborColors(grid Grid, n, i, j, k int) map[int]bool {
	iLo, iHi := bounds(i, n)
	jLo, jHi := bounds(j, n)
	kLo, kHi := bounds(k, n)

	excluded := make(map[int]bool)

	for a := iLo; a < iHi; a++ {
		for b := jLo; b < jHi; b++ {
			for c := kLo; c < kHi; c++ {
				if color := grid[a][b][c]; color != 0 {
					excluded[color] = true
				}
			}
		}
	}

	return excluded
}

// bounds clips the half-open neighborhood range [idx-1, idx+2) to
// [0, max).
func bounds(idx, max int) (int, int) {
	lo := idx - 1
	if lo < 0 {
		lo = 0
	}

	hi := idx + 2
	if hi > max {
		hi = max
	}

	return lo, hi
}

// Flatten returns the grid's values in row-major (i,j,k) order, matching
// the slot ordering used by package naming and package placement.
func (g Grid) Flatten() []int {
	n := len(g)
	flat := make([]int, 0, n*n*n)

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				flat = append(flat, g[i][j][k])
			}
		}
	}

	return flat
}

// Counts returns the per-node assignment count for a grid, useful for
// verifying load-balance properties in tests.
func (g Grid) Counts(m int) []int {
	counts := make([]int, m+1)
	for _, color := range g.Flatten() {
		counts[color]++
	}
	return counts
}
