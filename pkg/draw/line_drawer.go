// Package draw rasterizes thick brush strokes onto one slice of a volume and
// records every voxel it changes in a diff
package draw

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"voxeledit/internal/logging"
	"voxeledit/internal/models"
	"voxeledit/pkg/diff"
	"voxeledit/pkg/pixel"
)

// LineDrawer paints lines of a given thickness into an image.
//
// The brush is a disc of diameter thickness in physical units, which becomes
// an ellipse in voxel space when the in-plane spacing is anisotropic. The disc
// is stamped at every point of the Bresenham path between the two endpoints.
//
// The drawer does not lock the image; callers hold the image guard for the
// duration of Draw
type LineDrawer struct {
	image *models.Image
	roi   *models.Image

	// Background, when set, defines which voxels count as empty for the
	// no-overwrite policy: a voxel is empty when it equals the background
	// voxel at the same index. Without it a voxel is empty when it is zero
	Background *models.Image

	// Logger receives one debug record per Draw call. Optional
	Logger logging.Logger
}

// NewLineDrawer creates a drawer writing into image. roi may be nil; when set,
// voxels whose ROI value is zero are never written
func NewLineDrawer(image, roi *models.Image) *LineDrawer {
	if roi != nil && roi.Size != image.Size {
		panic(fmt.Sprintf("draw: ROI size %v does not match image size %v", roi.Size, image.Size))
	}
	return &LineDrawer{image: image, roi: roi}
}

// Draw paints the segment from start to end on the slice orthogonal to o and
// returns the diff of every voxel it changed, each recorded once.
//
// With overwrite false, voxels that are not empty are left untouched.
// Voxels that already hold value are not rewritten and not recorded
func (ld *LineDrawer) Draw(o Orientation, start, end Coordinates, value []byte, thickness float64, overwrite bool) *diff.ImageDiff {
	if len(value) != ld.image.PixelSize() {
		panic(fmt.Sprintf("draw: value has %d bytes, image pixels have %d", len(value), ld.image.PixelSize()))
	}
	if thickness <= 0 {
		panic(fmt.Sprintf("draw: thickness must be positive, got %g", thickness))
	}
	if ld.Background != nil && ld.Background.Size != ld.image.Size {
		panic(fmt.Sprintf("draw: background size %v does not match image size %v", ld.Background.Size, ld.image.Size))
	}

	began := time.Now()
	result := diff.New(ld.image.PixelSize())

	path := Line(o, start, end)
	for _, p := range path {
		ld.drawEllipse(o, p, value, thickness/2, overwrite, result)
	}

	logging.OrNop(ld.Logger).Debug("line drawn",
		"orientation", o.String(),
		"points", len(path),
		"voxels", result.NumElements(),
		"elapsed", time.Since(began))
	return result
}

// drawEllipse stamps the brush centred on c. Voxels are visited slow in-plane
// axis outer, fast axis inner, clipped to the image
func (ld *LineDrawer) drawEllipse(o Orientation, c Coordinates, value []byte, radius float64, overwrite bool, result *diff.ImageDiff) {
	a, b := o.planeAxes()
	size := ld.image.Size
	spacing := ld.image.Spacing

	if c[o] < 0 || c[o] >= size[o] {
		return
	}

	spA, spB := axisSpacing(spacing[a]), axisSpacing(spacing[b])
	extentA := int(math.Floor(radius / spA))
	extentB := int(math.Floor(radius / spB))
	squareRadius := radius * radius

	minA, maxA := max(c[a]-extentA, 0), min(c[a]+extentA, size[a]-1)
	minB, maxB := max(c[b]-extentB, 0), min(c[b]+extentB, size[b]-1)

	p := c
	for j := minB; j <= maxB; j++ {
		dj := float64(j-c[b]) * spB
		for i := minA; i <= maxA; i++ {
			di := float64(i-c[a]) * spA
			if di*di+dj*dj > squareRadius {
				continue
			}
			p[a], p[b] = i, j
			ld.drawPixel(ld.image.IndexOf(p), value, overwrite, result)
		}
	}
}

func (ld *LineDrawer) drawPixel(index uint64, value []byte, overwrite bool, result *diff.ImageDiff) {
	if ld.roi != nil && pixel.IsZero(ld.roi.Pixel(index)) {
		return
	}

	current := ld.image.Pixel(index)
	if bytes.Equal(current, value) {
		return
	}
	if !overwrite && !ld.isEmpty(index, current) {
		return
	}

	var old [pixel.MaxSize]byte
	n := copy(old[:], current)
	ld.image.SetPixel(index, value)
	result.AddDiff(index, old[:n], value)
}

func (ld *LineDrawer) isEmpty(index uint64, current []byte) bool {
	if ld.Background != nil {
		return bytes.Equal(current, ld.Background.Pixel(index))
	}
	return pixel.IsZero(current)
}

func axisSpacing(s float64) float64 {
	if s <= 0 {
		return 1
	}
	return s
}
