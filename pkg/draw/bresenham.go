package draw

import (
	"fmt"

	"voxeledit/internal/models"
)

// Orientation selects the slice plane a line is drawn on. The plane is
// orthogonal to the named axis
type Orientation int

const (
	XAxis Orientation = iota
	YAxis
	ZAxis
)

func (o Orientation) String() string {
	switch o {
	case XAxis:
		return "x"
	case YAxis:
		return "y"
	case ZAxis:
		return "z"
	default:
		return fmt.Sprintf("Orientation(%d)", int(o))
	}
}

// ParseOrientation accepts "x", "y" or "z" (any case)
func ParseOrientation(s string) (Orientation, error) {
	switch s {
	case "x", "X":
		return XAxis, nil
	case "y", "Y":
		return YAxis, nil
	case "z", "Z":
		return ZAxis, nil
	default:
		return 0, fmt.Errorf("invalid orientation: %s (must be x, y, or z)", s)
	}
}

// planeAxes returns the two in-plane axes, fast axis first
func (o Orientation) planeAxes() (int, int) {
	switch o {
	case XAxis:
		return 1, 2
	case YAxis:
		return 0, 2
	default:
		return 0, 1
	}
}

// Coordinates is a voxel position (x, y, z)
type Coordinates = models.Coordinates

// Line rasterizes the segment from start to end on the slice plane of the
// given orientation. The coordinate along the orientation axis is taken from
// start. The path begins at start, ends at end, and contains every point once
func Line(o Orientation, start, end Coordinates) []Coordinates {
	a, b := o.planeAxes()

	x0, y0 := start[a], start[b]
	x1, y1 := end[a], end[b]

	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}

	path := make([]Coordinates, 0, max(dx, -dy)+1)
	p := start
	e := dx + dy
	for {
		p[a], p[b] = x0, y0
		path = append(path, p)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
	return path
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
