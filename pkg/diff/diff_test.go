package diff

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxeledit/internal/models"
	"voxeledit/pkg/pixel"
)

func newImage(t pixel.Type) *models.Image {
	return models.NewImage(models.Size{32, 32, 32}, models.Spacing{1, 1, 1}, models.Origin{}, t)
}

// TestStorage builds two diffs, merges them, and checks element order
func TestStorage(t *testing.T) {
	indices := []uint64{51, 10, 8, 123, 1098, 23456, 6, 9999}
	indices2 := []uint64{66, 42, 8888}

	oldValue := pixel.Bytes[int32](0)
	newValue := pixel.Bytes[int32](1)

	d := New(4)
	for i, idx := range indices {
		d.AddDiff(idx, oldValue, newValue)
		require.Equal(t, i+1, d.NumElements())
	}

	d.Shrink()
	require.Equal(t, len(indices), d.NumElements())
	assert.Equal(t, d.Size(), d.Capacity())
	for i, idx := range indices {
		assert.Equal(t, idx, d.ElementIndex(i))
	}

	d2 := New(4)
	for _, idx := range indices2 {
		d2.AddDiff(idx, oldValue, newValue)
	}
	require.Equal(t, len(indices2), d2.NumElements())

	d.Append(d2)
	require.Equal(t, len(indices)+len(indices2), d.NumElements())

	merged := append(append([]uint64{}, indices...), indices2...)
	for i, idx := range merged {
		elt := d.Element(i)
		assert.Equal(t, idx, elt.Index)
		assert.Equal(t, oldValue, elt.OldValue())
		assert.Equal(t, newValue, elt.NewValue())
	}

	// the merged-in diff is untouched
	assert.Equal(t, len(indices2), d2.NumElements())
}

func TestCopyAndMove(t *testing.T) {
	d := New(2)
	for i := uint64(0); i < 20; i++ {
		d.AddDiff(i*7, pixel.Bytes(int16(i)), pixel.Bytes(int16(i+100)))
	}

	assertSame := func(t *testing.T, want, got *ImageDiff) {
		t.Helper()
		require.Equal(t, want.NumElements(), got.NumElements())
		for i := 0; i < want.NumElements(); i++ {
			assert.Equal(t, want.Element(i), got.Element(i))
		}
		assert.True(t, want.Equal(got))
	}

	t.Run("copy", func(t *testing.T) {
		c := d.Clone()
		assertSame(t, d, c)

		c.AddDiff(1, pixel.Bytes[int16](0), pixel.Bytes[int16](1))
		c.Shrink()
		assert.Equal(t, 20, d.NumElements())
		assert.Equal(t, 21, c.NumElements())
		assert.False(t, d.Equal(c))
	})

	t.Run("copy assign", func(t *testing.T) {
		c := New(2)
		c.AddDiff(5, pixel.Bytes[int16](5), pixel.Bytes[int16](6))
		c = d.Clone()
		assertSame(t, d, c)

		c.Clear()
		assert.Equal(t, 20, d.NumElements())
	})

	t.Run("move", func(t *testing.T) {
		src := d.Clone()
		moved := src.Move()
		assertSame(t, d, moved)
		assert.Equal(t, 0, src.NumElements())
		assert.Equal(t, 0, src.Size())

		// the source stays usable
		src.AddDiff(3, pixel.Bytes[int16](0), pixel.Bytes[int16](9))
		assert.Equal(t, 1, src.NumElements())
		assertSame(t, d, moved)
	})
}

func TestClear(t *testing.T) {
	d := New(1)
	d.AddDiff(3, []byte{0}, []byte{1})
	d.AddDiff(4, []byte{0}, []byte{1})
	require.Equal(t, 2*(8+2), d.Size())

	d.Clear()
	assert.Equal(t, 0, d.Size())
	assert.Equal(t, 0, d.NumElements())
	assert.Equal(t, 1, d.PixelSize())

	d.AddDiff(5, []byte{2}, []byte{3})
	assert.Equal(t, 1, d.NumElements())
}

func TestEmptyDiff(t *testing.T) {
	img := newImage(pixel.Uint8)
	img.Fill([]byte{7})
	before := img.Checksum()

	d := New(1)
	d.ApplyDiff(img)
	d.RevertDiff(img)
	d.Shrink()
	assert.Equal(t, before, img.Checksum())
	assert.Equal(t, 0, d.NumElements())
}

// record writes value at index into img and logs the write in d
func record(d *ImageDiff, img *models.Image, index uint64, value []byte) {
	old := append([]byte(nil), img.Pixel(index)...)
	img.SetPixel(index, value)
	d.AddDiff(index, old, value)
}

func TestRoundTrip(t *testing.T) {
	types := []pixel.Type{
		pixel.Uint8, pixel.Int8, pixel.Uint16, pixel.Int16,
		pixel.Uint32, pixel.Int32, pixel.Float32, pixel.Float64,
	}
	indices := []uint64{0, 17, 17, 1023, 5000, 17, 32767, 5000}

	for _, pt := range types {
		t.Run(pt.String(), func(t *testing.T) {
			img := newImage(pt)
			for i := uint64(0); i < img.NumVoxels(); i += 3 {
				v, err := pixel.Parse(pt, "3")
				require.NoError(t, err)
				img.SetPixel(i, v)
			}
			s0 := img.Checksum()

			d := New(img.PixelSize())
			for i, idx := range indices {
				v, err := pixel.Parse(pt, []string{"1", "2", "4", "5", "6", "7", "8", "9"}[i])
				require.NoError(t, err)
				record(d, img, idx, v)
			}
			s1 := img.Checksum()
			require.NotEqual(t, s0, s1)

			d.RevertDiff(img)
			assert.Equal(t, s0, img.Checksum())

			d.ApplyDiff(img)
			assert.Equal(t, s1, img.Checksum())

			d.RevertDiff(img)
			assert.Equal(t, s0, img.Checksum())
		})
	}
}

// TestRepeatedIndex checks that two writes to one voxel collapse correctly
func TestRepeatedIndex(t *testing.T) {
	img := newImage(pixel.Uint8)

	d := New(1)
	record(d, img, 51, []byte{1})
	record(d, img, 51, []byte{2})
	require.Equal(t, 2, d.NumElements())
	assert.Equal(t, []byte{0}, d.Element(0).OldValue())
	assert.Equal(t, []byte{1}, d.Element(1).OldValue())

	d.RevertDiff(img)
	assert.Equal(t, []byte{0}, img.Pixel(51))

	d.ApplyDiff(img)
	assert.Equal(t, []byte{2}, img.Pixel(51))

	d.RevertDiff(img)
	assert.Equal(t, []byte{0}, img.Pixel(51))
}

// sparseBuffer is a PixelBuffer keeping only the voxels written to it
type sparseBuffer map[uint64][]byte

func (sparseBuffer) PixelSize() int { return 1 }

func (b sparseBuffer) SetPixel(index uint64, value []byte) {
	b[index] = append([]byte(nil), value...)
}

// TestSparseRevert checks first-occurrence tracking on diffs whose indices
// are far apart
func TestSparseRevert(t *testing.T) {
	const far = uint64(1) << 40

	d := New(1)
	d.AddDiff(far, []byte{0}, []byte{1})
	d.AddDiff(7, []byte{3}, []byte{4})
	d.AddDiff(far, []byte{1}, []byte{2})
	d.AddDiff(far+64, []byte{5}, []byte{6})

	buf := sparseBuffer{}
	d.ApplyDiff(buf)
	assert.Equal(t, []byte{2}, buf[far])

	d.RevertDiff(buf)
	assert.Equal(t, sparseBuffer{far: {0}, 7: {3}, far + 64: {5}}, buf)
}

// TestSparseRevertMemory checks that reverting a single high index does not
// allocate in proportion to the index
func TestSparseRevertMemory(t *testing.T) {
	d := New(1)
	d.AddDiff(1<<30-1, []byte{0}, []byte{1})
	buf := sparseBuffer{}

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	for i := 0; i < 10; i++ {
		d.RevertDiff(buf)
	}
	runtime.ReadMemStats(&after)

	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20))
	assert.Equal(t, []byte{0}, buf[1<<30-1])
}

// TestMergeFinalState applies two diffs in sequence and their merge at once
func TestMergeFinalState(t *testing.T) {
	base := newImage(pixel.Int16)

	work := base.Clone()
	d1 := New(2)
	d2 := New(2)
	for i := uint64(0); i < 200; i += 3 {
		record(d1, work, i, pixel.Bytes(int16(i)))
	}
	for i := uint64(0); i < 200; i += 5 {
		record(d2, work, i, pixel.Bytes(int16(-int(i))))
	}

	sequential := base.Clone()
	d1.ApplyDiff(sequential)
	d2.ApplyDiff(sequential)

	merged := d1.Clone()
	merged.Append(d2)
	require.Equal(t, d1.NumElements()+d2.NumElements(), merged.NumElements())

	once := base.Clone()
	merged.ApplyDiff(once)
	assert.Equal(t, sequential.Buffer(), once.Buffer())
	assert.Equal(t, work.Checksum(), once.Checksum())

	merged.RevertDiff(once)
	assert.Equal(t, base.Checksum(), once.Checksum())
}

func TestContractViolations(t *testing.T) {
	d := New(2)
	assert.Panics(t, func() { d.AddDiff(0, []byte{1}, []byte{1, 2}) })
	assert.Panics(t, func() { d.Append(New(4)) })
	assert.Panics(t, func() { d.ApplyDiff(newImage(pixel.Uint8)) })
	assert.Panics(t, func() { New(0) })
	assert.Panics(t, func() { New(pixel.MaxSize + 1) })
}
