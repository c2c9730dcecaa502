package propagation

import (
	"gonum.org/v1/gonum/spatial/kdtree"

	"voxeledit/internal/models"
)

// seedPoint is a seed position in physical units
type seedPoint [3]float64

// Compare implements the kdtree.Comparable interface
func (p seedPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(seedPoint)
	return p[d] - q[d]
}

// Dims returns the number of dimensions for the KD-tree
func (p seedPoint) Dims() int { return 3 }

// Distance returns the squared euclidean distance
func (p seedPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(seedPoint)
	dx := p[0] - q[0]
	dy := p[1] - q[1]
	dz := p[2] - q[2]
	return dx*dx + dy*dy + dz*dz
}

// seedPoints is a collection of seedPoint that satisfies kdtree.Interface
type seedPoints []seedPoint

func (p seedPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p seedPoints) Len() int                              { return len(p) }
func (p seedPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

func (p seedPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(seedPlane{seedPoints: p, Dim: d}, kdtree.MedianOfRandoms(seedPlane{seedPoints: p, Dim: d}, 100))
}

// seedPlane sorts seedPoints along one dimension
type seedPlane struct {
	seedPoints
	kdtree.Dim
}

func (p seedPlane) Less(i, j int) bool {
	return p.seedPoints[i][p.Dim] < p.seedPoints[j][p.Dim]
}

func (p seedPlane) Slice(start, end int) kdtree.SortSlicer {
	return seedPlane{seedPoints: p.seedPoints[start:end], Dim: p.Dim}
}

func (p seedPlane) Swap(i, j int) {
	p.seedPoints[i], p.seedPoints[j] = p.seedPoints[j], p.seedPoints[i]
}

// seedIndex answers nearest-seed distance queries in physical space
type seedIndex struct {
	tree    *kdtree.Tree
	spacing models.Spacing
}

func newSeedIndex(seeds []models.Coordinates, spacing models.Spacing) *seedIndex {
	points := make(seedPoints, len(seeds))
	for i, s := range seeds {
		points[i] = toPhysical(s, spacing)
	}
	return &seedIndex{
		tree:    kdtree.New(points, false),
		spacing: spacing,
	}
}

// squareDistance returns the squared physical distance from c to its nearest seed
func (si *seedIndex) squareDistance(c models.Coordinates) float64 {
	_, dist := si.tree.Nearest(toPhysical(c, si.spacing))
	return dist
}

func toPhysical(c models.Coordinates, spacing models.Spacing) seedPoint {
	var p seedPoint
	for axis := range p {
		sp := spacing[axis]
		if sp <= 0 {
			sp = 1
		}
		p[axis] = float64(c[axis]) * sp
	}
	return p
}
