// Package propagation implements seeded region growing over a background
// image. Voxels reached from the seeds are painted with a fixed value in an
// output image and every write is recorded in a diff
package propagation

import (
	"fmt"
	"strings"
	"time"

	"voxeledit/internal/logging"
	"voxeledit/internal/models"
	"voxeledit/pkg/diff"
	"voxeledit/pkg/pixel"
)

// Mode selects how a candidate voxel's background value is compared with the
// value envelope of the region grown so far
type Mode int

const (
	// Min accepts values lower than or equal to the running minimum
	Min Mode = iota
	// Max accepts values greater than or equal to the running maximum
	Max
	// MinMax accepts values inside the [min, max] envelope of the seeds
	MinMax
)

func (m Mode) String() string {
	switch m {
	case Min:
		return "min"
	case Max:
		return "max"
	case MinMax:
		return "minmax"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts min, max or minmax
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "min":
		return Min, nil
	case "max":
		return Max, nil
	case "minmax":
		return MinMax, nil
	default:
		return 0, fmt.Errorf("invalid propagation mode: %s (must be min, max, or minmax)", s)
	}
}

// Connectivity is the number of neighbours a voxel has
type Connectivity int

const (
	Face6    Connectivity = 6
	Edge18   Connectivity = 18
	Vertex26 Connectivity = 26
)

// offsets returns the neighbour offsets in a fixed order
func (c Connectivity) offsets() [][3]int {
	switch c {
	case Edge18:
		return edge18
	case Vertex26:
		return vertex26
	default:
		return face6
	}
}

var face6 = [][3]int{
	{-1, 0, 0}, {1, 0, 0},
	{0, -1, 0}, {0, 1, 0},
	{0, 0, -1}, {0, 0, 1},
}

var edge18, vertex26 [][3]int

func init() {
	edge18 = append(edge18, face6...)
	vertex26 = append(vertex26, face6...)
	for z := -1; z <= 1; z++ {
		for y := -1; y <= 1; y++ {
			for x := -1; x <= 1; x++ {
				nonZero := 0
				for _, v := range []int{x, y, z} {
					if v != 0 {
						nonZero++
					}
				}
				switch nonZero {
				case 2:
					edge18 = append(edge18, [3]int{x, y, z})
					vertex26 = append(vertex26, [3]int{x, y, z})
				case 3:
					vertex26 = append(vertex26, [3]int{x, y, z})
				}
			}
		}
	}
}

// voxelState tracks every voxel through one propagation
type voxelState uint8

const (
	unvisited voxelState = iota
	queued
	included
	excludedByRadius
	excludedByValue
)

// MinMaxPropagation grows regions from seeds.
//
// Candidate voxels are tested on the background image; included voxels are
// painted in the output image. Both images, and the optional ROI image, must
// have the same size. The propagation does not lock the images
type MinMaxPropagation struct {
	background *models.Image
	output     *models.Image
	roi        *models.Image

	// Connectivity defaults to Face6
	Connectivity Connectivity

	// Logger receives one debug record per Propagate call. Optional
	Logger logging.Logger
}

// NewMinMaxPropagation creates a propagation reading background, writing
// output and restricted to the non-zero voxels of roi when roi is not nil
func NewMinMaxPropagation(background, output, roi *models.Image) *MinMaxPropagation {
	if background.Size != output.Size {
		panic(fmt.Sprintf("propagation: background size %v does not match output size %v", background.Size, output.Size))
	}
	if roi != nil && roi.Size != output.Size {
		panic(fmt.Sprintf("propagation: ROI size %v does not match output size %v", roi.Size, output.Size))
	}
	return &MinMaxPropagation{
		background:   background,
		output:       output,
		roi:          roi,
		Connectivity: Face6,
	}
}

// Propagate grows a region from seeds and paints it with value.
//
// A voxel joins the region when its nearest seed lies within radius (in
// physical units) and its background value satisfies mode. Seeds are always
// accepted by both tests. With overwrite false, voxels whose output value is
// not zero are neither painted nor crossed. The returned diff holds one
// element per painted voxel, in the order the voxels were reached
func (p *MinMaxPropagation) Propagate(seeds []models.Coordinates, value []byte, radius float64, overwrite bool, mode Mode) *diff.ImageDiff {
	if len(value) != p.output.PixelSize() {
		panic(fmt.Sprintf("propagation: value has %d bytes, output pixels have %d", len(value), p.output.PixelSize()))
	}

	began := time.Now()
	result := diff.New(p.output.PixelSize())

	valid := make([]models.Coordinates, 0, len(seeds))
	for _, s := range seeds {
		if p.output.Contains(s[0], s[1], s[2]) {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return result
	}

	r := &run{
		MinMaxPropagation: p,
		seeds:             valid,
		value:             value,
		radius:            radius,
		overwrite:         overwrite,
		mode:              mode,
		result:            result,
	}

	switch p.background.Type {
	case pixel.Uint8:
		grow[uint8](r)
	case pixel.Int8:
		grow[int8](r)
	case pixel.Uint16:
		grow[uint16](r)
	case pixel.Int16:
		grow[int16](r)
	case pixel.Uint32:
		grow[uint32](r)
	case pixel.Int32:
		grow[int32](r)
	case pixel.Uint64:
		grow[uint64](r)
	case pixel.Int64:
		grow[int64](r)
	case pixel.Float32:
		grow[float32](r)
	case pixel.Float64:
		grow[float64](r)
	default:
		panic(fmt.Sprintf("propagation: unsupported background type %v", p.background.Type))
	}

	logging.OrNop(p.Logger).Debug("region propagated",
		"mode", mode.String(),
		"seeds", len(valid),
		"radius", radius,
		"voxels", result.NumElements(),
		"elapsed", time.Since(began))
	return result
}

// run carries the arguments of one Propagate call
type run struct {
	*MinMaxPropagation
	seeds     []models.Coordinates
	value     []byte
	radius    float64
	overwrite bool
	mode      Mode
	result    *diff.ImageDiff
}

// eligible reports whether the output voxel may be painted at all
func (r *run) eligible(index uint64) bool {
	if r.roi != nil && pixel.IsZero(r.roi.Pixel(index)) {
		return false
	}
	if !r.overwrite && !pixel.IsZero(r.output.Pixel(index)) {
		return false
	}
	return true
}

func (r *run) paint(index uint64) {
	var old [pixel.MaxSize]byte
	n := copy(old[:], r.output.Pixel(index))
	r.output.SetPixel(index, r.value)
	r.result.AddDiff(index, old[:n], r.value)
}

// grow runs a breadth first traversal comparing background values at their
// native type T
func grow[T pixel.Number](r *run) {
	bg := r.background
	state := make([]voxelState, bg.NumVoxels())
	queue := make([]uint64, 0, len(r.seeds))

	var lo, hi T
	first := true
	for _, s := range r.seeds {
		index := bg.IndexOf(s)
		if state[index] != unvisited {
			continue
		}
		if !r.eligible(index) {
			state[index] = excludedByValue
			continue
		}
		v := pixel.Decode[T](bg.Pixel(index))
		if first {
			lo, hi = v, v
			first = false
		}
		lo, hi = min(lo, v), max(hi, v)
		state[index] = queued
		queue = append(queue, index)
	}

	accept := func(v T) bool {
		switch r.mode {
		case Min:
			return v <= lo
		case Max:
			return v >= hi
		default:
			return lo <= v && v <= hi
		}
	}

	var seedsIdx *seedIndex
	squareRadius := r.radius * r.radius
	if r.radius > 0 {
		seedsIdx = newSeedIndex(r.seeds, bg.Spacing)
	}
	offsets := r.Connectivity.offsets()

	// the envelope may have tightened since a voxel was queued, so non-seed
	// voxels are tested again before they join the region
	seeds := len(queue)
	for head := 0; head < len(queue); head++ {
		index := queue[head]
		v := pixel.Decode[T](bg.Pixel(index))
		if head >= seeds && !accept(v) {
			state[index] = excludedByValue
			continue
		}
		state[index] = included
		r.paint(index)

		switch r.mode {
		case Min:
			lo = min(lo, v)
		case Max:
			hi = max(hi, v)
		}

		if seedsIdx == nil {
			continue
		}

		x, y, z := bg.Coordinates(index)
		for _, off := range offsets {
			n := models.Coordinates{x + off[0], y + off[1], z + off[2]}
			if !bg.Contains(n[0], n[1], n[2]) {
				continue
			}
			ni := bg.IndexOf(n)
			if state[ni] != unvisited {
				continue
			}
			if seedsIdx.squareDistance(n) > squareRadius {
				state[ni] = excludedByRadius
				continue
			}
			if !accept(pixel.Decode[T](bg.Pixel(ni))) || !r.eligible(ni) {
				state[ni] = excludedByValue
				continue
			}
			state[ni] = queued
			queue = append(queue, ni)
		}
	}
}
