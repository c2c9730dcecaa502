package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"voxeledit/internal/models"
	"voxeledit/pkg/draw"
	"voxeledit/pkg/pixel"
)

// Viewer renders slices of a volume as 16-bit grayscale pictures
type Viewer struct {
	// image is the volume being inspected
	image *models.Image

	// window maps voxel values to gray levels: lo is black, hi is white
	lo, hi float64
}

// NewViewer creates a viewer whose window spans the value range of the volume
func NewViewer(img *models.Image) *Viewer {
	v := &Viewer{image: img}
	v.ResetWindow()
	return v
}

// SetWindow sets the value range mapped to black and white
func (v *Viewer) SetWindow(lo, hi float64) {
	v.lo, v.hi = lo, hi
}

// ResetWindow fits the window to the current value range of the volume
func (v *Viewer) ResetWindow() {
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := uint64(0); i < v.image.NumVoxels(); i++ {
		f := pixel.ToFloat64(v.image.Type, v.image.Pixel(i))
		lo = math.Min(lo, f)
		hi = math.Max(hi, f)
	}
	v.lo, v.hi = lo, hi
}

func (v *Viewer) gray(index uint64) color.Gray16 {
	f := pixel.ToFloat64(v.image.Type, v.image.Pixel(index))
	if v.hi <= v.lo {
		if f > v.lo {
			return color.Gray16{Y: 65535}
		}
		return color.Gray16{}
	}
	norm := (f - v.lo) / (v.hi - v.lo)
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, norm*65535)))}
}

// ExtractSlice extracts the slice orthogonal to the given axis at position
func (v *Viewer) ExtractSlice(o draw.Orientation, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	size := v.image.Size

	switch o {
	case draw.XAxis:
		// YZ plane
		if position >= size[0] {
			return nil, fmt.Errorf("position %d exceeds width %d", position, size[0])
		}
		img := image.NewGray16(image.Rect(0, 0, size[2], size[1]))
		for y := 0; y < size[1]; y++ {
			for z := 0; z < size[2]; z++ {
				img.SetGray16(z, y, v.gray(v.image.Index(position, y, z)))
			}
		}
		return img, nil

	case draw.YAxis:
		// XZ plane
		if position >= size[1] {
			return nil, fmt.Errorf("position %d exceeds height %d", position, size[1])
		}
		img := image.NewGray16(image.Rect(0, 0, size[0], size[2]))
		for z := 0; z < size[2]; z++ {
			for x := 0; x < size[0]; x++ {
				img.SetGray16(x, z, v.gray(v.image.Index(x, position, z)))
			}
		}
		return img, nil

	case draw.ZAxis:
		// XY plane
		if position >= size[2] {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, size[2])
		}
		img := image.NewGray16(image.Rect(0, 0, size[0], size[1]))
		for y := 0; y < size[1]; y++ {
			for x := 0; x < size[0]; x++ {
				img.SetGray16(x, y, v.gray(v.image.Index(x, y, position)))
			}
		}
		return img, nil

	default:
		return nil, fmt.Errorf("invalid axis: %v", o)
	}
}

// SaveSlice saves an extracted slice; the format follows the file extension
// (.png, otherwise JPEG)
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(filename), ".png") {
		return png.Encode(file, img)
	}
	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every slice along the specified axis
func (v *Viewer) SaveSliceSequence(o draw.Orientation, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	if o < draw.XAxis || o > draw.ZAxis {
		return fmt.Errorf("invalid axis: %v", o)
	}
	maxPos := v.image.Size[o]

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(o, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", o, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
