package dirs

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// point is a Direction tagged with its position in the indexed Set. Every
// direction is stored twice, once as itself and once as its antipode, so that
// axial neighbours across the equator of a hemisphere set are found.
type point struct {
	Direction
	idx int
}

// Compare implements the kdtree.Comparable interface
func (p point) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(point)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	case 2:
		return p.Z - q.Z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p point) Dims() int { return 3 }

// Distance returns the squared Euclidean (chord) distance between two points
func (p point) Distance(c kdtree.Comparable) float64 {
	q := c.(point)
	dx := p.X - q.X
	dy := p.Y - q.Y
	dz := p.Z - q.Z
	return dx*dx + dy*dy + dz*dz
}

type points []point

func (p points) Index(i int) kdtree.Comparable         { return p[i] }
func (p points) Len() int                              { return len(p) }
func (p points) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p points) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(plane{points: p, Dim: d}, kdtree.MedianOfRandoms(plane{points: p, Dim: d}, 100))
}

// plane implements sort.Interface and kdtree.SortSlicer for points
type plane struct {
	points
	kdtree.Dim
}

func (p plane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.points[i].X < p.points[j].X
	case 1:
		return p.points[i].Y < p.points[j].Y
	case 2:
		return p.points[i].Z < p.points[j].Z
	default:
		panic("illegal dimension")
	}
}

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	return plane{points: p.points[start:end], Dim: p.Dim}
}

func (p plane) Swap(i, j int) {
	p.points[i], p.points[j] = p.points[j], p.points[i]
}

// Index answers nearest-direction queries against a Set, treating d and -d
// as the same orientation. An Index is read-only after construction and safe
// for concurrent queries.
type Index struct {
	set  Set
	tree *kdtree.Tree
}

// NewIndex builds a KD-tree over s and its antipodes.
func NewIndex(s Set) *Index {
	pts := make(points, 0, 2*len(s))
	for i, d := range s {
		pts = append(pts, point{Direction: d, idx: i}, point{Direction: d.Neg(), idx: i})
	}
	ix := &Index{set: s}
	if len(pts) > 0 {
		ix.tree = kdtree.New(pts, true)
	}
	return ix
}

// Set returns the indexed directions.
func (ix *Index) Set() Set { return ix.set }

// Nearest returns the index of the direction closest to d and the axial angle
// between them, or -1 for an empty index.
func (ix *Index) Nearest(d Direction) (int, float64) {
	if ix.tree == nil {
		return -1, math.NaN()
	}
	c, _ := ix.tree.Nearest(point{Direction: d.Normalize(), idx: -1})
	if c == nil {
		return -1, math.NaN()
	}
	p := c.(point)
	return p.idx, d.Angle(ix.set[p.idx])
}

// KNearest returns the indices of up to k distinct directions nearest to d,
// closest first.
func (ix *Index) KNearest(d Direction, k int) []int {
	if ix.tree == nil || k <= 0 {
		return nil
	}
	// Each direction may appear twice (itself and its antipode), so ask for
	// enough candidates to still find k distinct indices.
	keeper := kdtree.NewNKeeper(2 * k)
	ix.tree.NearestSet(keeper, point{Direction: d.Normalize(), idx: -1})

	items := make([]kdtree.ComparableDist, 0, keeper.Len())
	for _, item := range keeper.Heap {
		// Skip the sentinel value
		if item.Comparable == nil {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Dist < items[j].Dist })

	seen := make(map[int]bool, k)
	result := make([]int, 0, k)
	for _, item := range items {
		idx := item.Comparable.(point).idx
		if seen[idx] {
			continue
		}
		seen[idx] = true
		result = append(result, idx)
		if len(result) == k {
			break
		}
	}
	return result
}

// Neighbours returns, for every direction of the set, the indices of its k
// nearest other directions.
func (ix *Index) Neighbours(k int) [][]int {
	result := make([][]int, len(ix.set))
	for i, d := range ix.set {
		near := ix.KNearest(d, k+1)
		out := make([]int, 0, k)
		for _, j := range near {
			if j != i && len(out) < k {
				out = append(out, j)
			}
		}
		result[i] = out
	}
	return result
}
