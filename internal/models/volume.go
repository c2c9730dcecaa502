package models

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash"

	"voxeledit/pkg/pixel"
)

// Size holds the number of voxels along each axis (x, y, z)
type Size [3]int

// Spacing holds the physical size of a voxel along each axis in mm
type Spacing [3]float64

// Origin holds the physical position of the first voxel in mm
type Origin [3]float64

// Coordinates is a voxel position (x, y, z)
type Coordinates [3]int

// Image is a single-component 3D volume stored as a flat little-endian byte
// buffer in row-major order: x varies fastest, then y, then z.
//
// The buffer is mutated in place by drawing tools and by diffs. Callers that
// share an image between goroutines must hold the guard returned by Lock for
// the duration of any read or write
type Image struct {
	// Size is the number of voxels along x, y and z
	Size Size

	// Spacing is the physical voxel size used by spacing-aware tools
	Spacing Spacing

	// Origin is the physical position of voxel (0, 0, 0)
	Origin Origin

	// Type is the scalar type of every voxel
	Type pixel.Type

	buffer []byte
	mu     sync.Mutex
}

// NewImage allocates a zero-filled image
func NewImage(size Size, spacing Spacing, origin Origin, t pixel.Type) *Image {
	for axis, n := range size {
		if n <= 0 {
			panic(fmt.Sprintf("models: image size along axis %d must be positive, got %d", axis, n))
		}
	}
	return &Image{
		Size:    size,
		Spacing: spacing,
		Origin:  origin,
		Type:    t,
		buffer:  make([]byte, size[0]*size[1]*size[2]*t.Size()),
	}
}

// NumVoxels returns the total number of voxels
func (img *Image) NumVoxels() uint64 {
	return uint64(img.Size[0]) * uint64(img.Size[1]) * uint64(img.Size[2])
}

// PixelSize returns the size in bytes of one voxel
func (img *Image) PixelSize() int {
	return img.Type.Size()
}

// Index converts voxel coordinates into a linear voxel index
func (img *Image) Index(x, y, z int) uint64 {
	return uint64(x) + uint64(y)*uint64(img.Size[0]) + uint64(z)*uint64(img.Size[0])*uint64(img.Size[1])
}

// Coordinates converts a linear voxel index back into voxel coordinates
func (img *Image) Coordinates(index uint64) (x, y, z int) {
	plane := uint64(img.Size[0]) * uint64(img.Size[1])
	z = int(index / plane)
	rest := index % plane
	y = int(rest / uint64(img.Size[0]))
	x = int(rest % uint64(img.Size[0]))
	return x, y, z
}

// IndexOf converts voxel coordinates into a linear voxel index
func (img *Image) IndexOf(c Coordinates) uint64 {
	return img.Index(c[0], c[1], c[2])
}

// Contains reports whether the coordinates fall inside the volume
func (img *Image) Contains(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 &&
		x < img.Size[0] && y < img.Size[1] && z < img.Size[2]
}

// Pixel returns the bytes of the voxel at index. The returned slice aliases
// the image buffer and is only valid until the next write
func (img *Image) Pixel(index uint64) []byte {
	ps := uint64(img.Type.Size())
	off := index * ps
	return img.buffer[off : off+ps : off+ps]
}

// SetPixel copies value into the voxel at index
func (img *Image) SetPixel(index uint64, value []byte) {
	ps := uint64(img.Type.Size())
	off := index * ps
	copy(img.buffer[off:off+ps], value)
}

// Buffer exposes the raw pixel buffer
func (img *Image) Buffer() []byte {
	return img.buffer
}

// Lock acquires exclusive access to the buffer and returns the release func
func (img *Image) Lock() (unlock func()) {
	img.mu.Lock()
	return img.mu.Unlock
}

// SameShape reports whether other has the same size and pixel type
func (img *Image) SameShape(other *Image) bool {
	return other != nil && img.Size == other.Size && img.Type == other.Type
}

// Checksum fingerprints the buffer content. Two images with equal checksums
// and equal shapes hold, with overwhelming probability, identical voxels
func (img *Image) Checksum() uint64 {
	return xxhash.Sum64(img.buffer)
}

// Clone returns a deep copy of the image with a fresh guard
func (img *Image) Clone() *Image {
	buf := make([]byte, len(img.buffer))
	copy(buf, img.buffer)
	return &Image{
		Size:    img.Size,
		Spacing: img.Spacing,
		Origin:  img.Origin,
		Type:    img.Type,
		buffer:  buf,
	}
}

// Fill writes value into every voxel
func (img *Image) Fill(value []byte) {
	ps := img.Type.Size()
	for off := 0; off < len(img.buffer); off += ps {
		copy(img.buffer[off:off+ps], value)
	}
}
