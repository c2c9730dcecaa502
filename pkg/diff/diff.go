// Package diff records sparse voxel modifications of an image buffer and can
// reapply them (ApplyDiff) or undo them (RevertDiff).
//
// A diff is a packed, append-only byte log. Every element occupies
// 8 + 2*pixelSize bytes:
//
//	[ index uint64 LE ][ old value ][ new value ]
//
// Values are opaque bytes; the diff never interprets them. A diff holds no
// reference to an image between calls and has no internal synchronization
package diff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"slices"

	"voxeledit/pkg/pixel"
)

const indexSize = 8

// PixelBuffer is the mutable image storage a diff is replayed onto
type PixelBuffer interface {
	// PixelSize returns the size in bytes of one voxel
	PixelSize() int

	// SetPixel overwrites the voxel at index with value
	SetPixel(index uint64, value []byte)
}

// Element is one recorded voxel write
type Element struct {
	// Index is the linear voxel offset of the modified voxel
	Index uint64

	size     int
	oldValue [pixel.MaxSize]byte
	newValue [pixel.MaxSize]byte
}

// OldValue returns the value the voxel held right before the write
func (e Element) OldValue() []byte { return e.oldValue[:e.size] }

// NewValue returns the value written
func (e Element) NewValue() []byte { return e.newValue[:e.size] }

// ImageDiff is an ordered log of voxel writes sharing one pixel size.
// The zero value is not usable; create diffs with New
type ImageDiff struct {
	pixelSize int
	eltSize   int
	buf       []byte
}

// New returns an empty diff for images whose voxels are pixelSize bytes wide
func New(pixelSize int) *ImageDiff {
	if pixelSize <= 0 || pixelSize > pixel.MaxSize {
		panic(fmt.Sprintf("diff: unsupported pixel size %d", pixelSize))
	}
	return &ImageDiff{
		pixelSize: pixelSize,
		eltSize:   indexSize + 2*pixelSize,
	}
}

// PixelSize returns the size in bytes of the values stored in the diff
func (d *ImageDiff) PixelSize() int { return d.pixelSize }

// AddDiff appends one voxel write. oldValue and newValue must both be exactly
// PixelSize bytes long; anything else is a programming error
func (d *ImageDiff) AddDiff(index uint64, oldValue, newValue []byte) {
	if len(oldValue) != d.pixelSize || len(newValue) != d.pixelSize {
		panic(fmt.Sprintf("diff: value length %d/%d does not match pixel size %d",
			len(oldValue), len(newValue), d.pixelSize))
	}
	n := len(d.buf)
	d.buf = slices.Grow(d.buf, d.eltSize)[:n+d.eltSize]
	binary.LittleEndian.PutUint64(d.buf[n:], index)
	copy(d.buf[n+indexSize:], oldValue)
	copy(d.buf[n+indexSize+d.pixelSize:], newValue)
}

// Append adds all elements of other after the elements of d, in order.
// Nothing is deduplicated. Both diffs must share the same pixel size
func (d *ImageDiff) Append(other *ImageDiff) {
	if other.pixelSize != d.pixelSize {
		panic(fmt.Sprintf("diff: cannot merge pixel size %d into %d", other.pixelSize, d.pixelSize))
	}
	d.buf = append(d.buf, other.buf...)
}

// NumElements returns the number of recorded writes
func (d *ImageDiff) NumElements() int {
	return len(d.buf) / d.eltSize
}

// Element returns a copy of element i
func (d *ImageDiff) Element(i int) Element {
	off := i * d.eltSize
	rec := d.buf[off : off+d.eltSize]
	e := Element{
		Index: binary.LittleEndian.Uint64(rec),
		size:  d.pixelSize,
	}
	copy(e.oldValue[:], rec[indexSize:indexSize+d.pixelSize])
	copy(e.newValue[:], rec[indexSize+d.pixelSize:])
	return e
}

// ElementIndex returns only the voxel index of element i
func (d *ImageDiff) ElementIndex(i int) uint64 {
	return binary.LittleEndian.Uint64(d.buf[i*d.eltSize:])
}

// Shrink releases reserved capacity beyond the recorded elements
func (d *ImageDiff) Shrink() {
	d.buf = slices.Clip(slices.Clone(d.buf))
}

// Clear drops every element and releases the storage. The pixel size is kept
func (d *ImageDiff) Clear() {
	d.buf = nil
}

// Size returns the number of bytes used by the recorded elements
func (d *ImageDiff) Size() int {
	return len(d.buf)
}

// Capacity returns the number of bytes currently reserved
func (d *ImageDiff) Capacity() int {
	return cap(d.buf)
}

// Clone returns an independent deep copy of d
func (d *ImageDiff) Clone() *ImageDiff {
	return &ImageDiff{
		pixelSize: d.pixelSize,
		eltSize:   d.eltSize,
		buf:       slices.Clone(d.buf),
	}
}

// Move transfers the elements of d into a new diff in O(1) and leaves d empty
func (d *ImageDiff) Move() *ImageDiff {
	moved := &ImageDiff{
		pixelSize: d.pixelSize,
		eltSize:   d.eltSize,
		buf:       d.buf,
	}
	d.buf = nil
	return moved
}

// Equal reports whether both diffs hold the same elements in the same order
func (d *ImageDiff) Equal(other *ImageDiff) bool {
	return d.pixelSize == other.pixelSize && bytes.Equal(d.buf, other.buf)
}

// ApplyDiff writes every new value into img, first element first. A voxel
// written several times ends up holding its last recorded new value
func (d *ImageDiff) ApplyDiff(img PixelBuffer) {
	d.checkPixelSize(img)
	valueOffset := indexSize + d.pixelSize
	for off := 0; off < len(d.buf); off += d.eltSize {
		index := binary.LittleEndian.Uint64(d.buf[off:])
		img.SetPixel(index, d.buf[off+valueOffset:off+valueOffset+d.pixelSize])
	}
}

// RevertDiff restores the values img held before the recorded writes.
//
// Elements are visited in recording order. Each element stores the value
// immediately preceding its own write, so for a voxel written several times
// only its first element carries the pre-diff value: later elements of the
// same index are skipped. The image therefore reaches the same fixed point a
// backward replay would, without reordering the log
func (d *ImageDiff) RevertDiff(img PixelBuffer) {
	d.checkPixelSize(img)
	n := d.NumElements()
	if n == 0 {
		return
	}

	for i, first := range d.firstOccurrences(n) {
		if !first {
			continue
		}
		off := i * d.eltSize
		index := binary.LittleEndian.Uint64(d.buf[off:])
		img.SetPixel(index, d.buf[off+indexSize:off+indexSize+d.pixelSize])
	}
}

// firstOccurrences flags, per element, whether it is the first one recorded
// for its index. Dense diffs use a bitset over the index range, sparse ones a
// set sized by the element count, so memory follows the number of elements
func (d *ImageDiff) firstOccurrences(n int) []bool {
	first := make([]bool, n)

	var maxIndex uint64
	for i := 0; i < n; i++ {
		maxIndex = max(maxIndex, d.ElementIndex(i))
	}

	if maxIndex/64 < uint64(n) {
		seen := make([]uint64, maxIndex/64+1)
		for i := 0; i < n; i++ {
			index := d.ElementIndex(i)
			word, bit := index/64, uint64(1)<<(index%64)
			if seen[word]&bit == 0 {
				seen[word] |= bit
				first[i] = true
			}
		}
		return first
	}

	seen := make(map[uint64]struct{}, n)
	for i := 0; i < n; i++ {
		index := d.ElementIndex(i)
		if _, ok := seen[index]; !ok {
			seen[index] = struct{}{}
			first[i] = true
		}
	}
	return first
}

func (d *ImageDiff) checkPixelSize(img PixelBuffer) {
	if ps := img.PixelSize(); ps != d.pixelSize {
		panic(fmt.Sprintf("diff: image pixel size %d does not match diff pixel size %d", ps, d.pixelSize))
	}
}
