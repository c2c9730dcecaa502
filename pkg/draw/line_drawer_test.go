package draw

import (
	"testing"

	"voxeledit/internal/models"
	"voxeledit/pkg/pixel"
)

func newInt16Image(size models.Size, spacing models.Spacing) *models.Image {
	return models.NewImage(size, spacing, models.Origin{}, pixel.Int16)
}

func at(img *models.Image, x, y, z int) int16 {
	return pixel.Decode[int16](img.Pixel(img.Index(x, y, z)))
}

// TestDrawPoint draws a degenerate line on a blank volume and checks that only
// the voxel under the point changed
func TestDrawPoint(t *testing.T) {
	img := models.NewImage(models.Size{32, 32, 32}, models.Spacing{1, 1, 1}, models.Origin{}, pixel.Uint8)
	point := Coordinates{12, 7, 20}

	drawer := NewLineDrawer(img, nil)
	d := drawer.Draw(ZAxis, point, point, []byte{1}, 1, true)

	if d.NumElements() != 1 {
		t.Fatalf("Expected 1 element, got %d", d.NumElements())
	}
	want := img.Index(point[0], point[1], point[2])
	elt := d.Element(0)
	if elt.Index != want {
		t.Errorf("Expected index %d, got %d", want, elt.Index)
	}
	if elt.OldValue()[0] != 0 || elt.NewValue()[0] != 1 {
		t.Errorf("Expected 0 -> 1, got %v -> %v", elt.OldValue(), elt.NewValue())
	}

	// replay on a fresh volume and scan every voxel
	fresh := models.NewImage(img.Size, img.Spacing, img.Origin, pixel.Uint8)
	d.ApplyDiff(fresh)
	for i := uint64(0); i < fresh.NumVoxels(); i++ {
		v := fresh.Pixel(i)[0]
		if i == want && v != 1 {
			t.Errorf("Expected voxel %d to be 1, got %d", i, v)
		}
		if i != want && v != 0 {
			t.Errorf("Expected voxel %d to be 0, got %d", i, v)
		}
	}
}

func TestDrawCircle(t *testing.T) {
	const value int16 = 152
	point := Coordinates{20, 20, 20}

	t.Run("thin", func(t *testing.T) {
		img := newInt16Image(models.Size{120, 120, 120}, models.Spacing{1, 1, 1})
		d := NewLineDrawer(img, nil).Draw(ZAxis, point, point, pixel.Bytes(value), 0.0001, true)

		if got := at(img, 20, 20, 20); got != value {
			t.Errorf("Expected %d at the point, got %d", value, got)
		}
		if d.NumElements() != 1 {
			t.Fatalf("Expected 1 element, got %d", d.NumElements())
		}
		if d.ElementIndex(0) != img.Index(20, 20, 20) {
			t.Errorf("Unexpected index %d", d.ElementIndex(0))
		}
		if got := pixel.Decode[int16](d.Element(0).NewValue()); got != value {
			t.Errorf("Expected new value %d, got %d", value, got)
		}
	})

	t.Run("thickness 5", func(t *testing.T) {
		img := newInt16Image(models.Size{120, 120, 120}, models.Spacing{1, 1, 1})
		NewLineDrawer(img, nil).Draw(ZAxis, point, point, pixel.Bytes(value), 5, true)

		// radius 2.5: the 5x5 square minus its corners
		for dy := -2; dy <= 2; dy++ {
			for dx := -2; dx <= 2; dx++ {
				want := value
				if abs(dx) == 2 && abs(dy) == 2 {
					want = 0
				}
				if got := at(img, 20+dx, 20+dy, 20); got != want {
					t.Errorf("p[%d][%d]: expected %d, got %d", 20+dx, 20+dy, want, got)
				}
			}
		}
		if got := at(img, 29, 36, 54); got != 0 {
			t.Errorf("Expected untouched voxel, got %d", got)
		}
		if got := at(img, 20, 20, 21); got != 0 {
			t.Errorf("Expected neighbouring slice untouched, got %d", got)
		}
	})
}

// TestDrawEllipse uses anisotropic spacing and checks the brush shape and the
// order of the recorded elements
func TestDrawEllipse(t *testing.T) {
	const value int16 = 152
	const thickness = 10.0
	size := models.Size{120, 120, 120}
	spacing := models.Spacing{1, 4, 1}
	point := Coordinates{50, 50, 50}

	img := newInt16Image(size, spacing)
	d := NewLineDrawer(img, nil).Draw(ZAxis, point, point, pixel.Bytes(value), thickness, true)

	squareRadius := (thickness / 2) * (thickness / 2)
	diffIndex := 0
	for j := 0; j < size[1]; j++ {
		for i := 0; i < size[0]; i++ {
			got := at(img, i, j, point[2])
			x := float64(i-point[0]) * spacing[0]
			y := float64(j-point[1]) * spacing[1]
			if x*x+y*y > squareRadius {
				if got != 0 {
					t.Fatalf("p[%d][%d]: expected 0, got %d", i, j, got)
				}
				continue
			}

			if got != value {
				t.Fatalf("p[%d][%d]: expected %d, got %d", i, j, value, got)
			}
			if diffIndex >= d.NumElements() {
				t.Fatalf("Diff has only %d elements", d.NumElements())
			}
			elt := d.Element(diffIndex)
			if elt.Index != img.Index(i, j, point[2]) {
				t.Fatalf("p[%d][%d]: expected index %d, got %d", i, j, img.Index(i, j, point[2]), elt.Index)
			}
			if pixel.Decode[int16](elt.OldValue()) != 0 || pixel.Decode[int16](elt.NewValue()) != value {
				t.Fatalf("p[%d][%d]: unexpected values %v -> %v", i, j, elt.OldValue(), elt.NewValue())
			}
			diffIndex++
		}
	}
	if diffIndex != d.NumElements() {
		t.Errorf("Expected %d elements, got %d", diffIndex, d.NumElements())
	}
}

func TestDrawBorder(t *testing.T) {
	const value int16 = 1952
	const thickness = 15.0
	size := models.Size{50, 50, 50}
	spacing := models.Spacing{2, 4, 8}
	point := Coordinates{45, 3, 20}

	img := newInt16Image(size, spacing)
	NewLineDrawer(img, nil).Draw(ZAxis, point, point, pixel.Bytes(value), thickness, true)

	squareRadius := (thickness / 2) * (thickness / 2)
	for i := 0; i < size[0]; i++ {
		for j := 0; j < size[1]; j++ {
			x := float64(i-point[0]) * spacing[0]
			y := float64(j-point[1]) * spacing[1]
			want := int16(0)
			if x*x+y*y <= squareRadius {
				want = value
			}
			if got := at(img, i, j, point[2]); got != want {
				t.Fatalf("p[%d][%d]: expected %d, got %d", i, j, want, got)
			}
		}
	}
}

func TestDrawROI(t *testing.T) {
	const value int16 = 1952
	const thickness = 15.0
	size := models.Size{150, 150, 150}
	spacing := models.Spacing{2, 4, 8}
	point := Coordinates{45, 45, 40}
	roiBegin := [3]int{25, 25, 25}
	roiEnd := [3]int{50, 50, 50}

	img := newInt16Image(size, spacing)
	roi := newInt16Image(size, spacing)
	for z := roiBegin[2]; z < roiEnd[2]; z++ {
		for y := roiBegin[1]; y < roiEnd[1]; y++ {
			for x := roiBegin[0]; x < roiEnd[0]; x++ {
				roi.SetPixel(roi.Index(x, y, z), pixel.Bytes[int16](1))
			}
		}
	}

	NewLineDrawer(img, roi).Draw(ZAxis, point, point, pixel.Bytes(value), thickness, true)

	squareRadius := (thickness / 2) * (thickness / 2)
	for i := 0; i < size[0]; i++ {
		for j := 0; j < size[1]; j++ {
			x := float64(i-point[0]) * spacing[0]
			y := float64(j-point[1]) * spacing[1]
			want := int16(0)
			if x*x+y*y <= squareRadius &&
				i >= roiBegin[0] && i < roiEnd[0] &&
				j >= roiBegin[1] && j < roiEnd[1] {
				want = value
			}
			if got := at(img, i, j, point[2]); got != want {
				t.Fatalf("p[%d][%d]: expected %d, got %d", i, j, want, got)
			}
		}
	}
}

func TestDrawLineRecordsEachVoxelOnce(t *testing.T) {
	img := models.NewImage(models.Size{40, 40, 40}, models.Spacing{1, 1, 1}, models.Origin{}, pixel.Uint8)
	d := NewLineDrawer(img, nil).Draw(YAxis, Coordinates{5, 10, 5}, Coordinates{30, 99, 22}, []byte{9}, 4, true)

	seen := make(map[uint64]bool)
	for i := 0; i < d.NumElements(); i++ {
		idx := d.ElementIndex(i)
		if seen[idx] {
			t.Fatalf("Voxel %d recorded twice", idx)
		}
		seen[idx] = true
		if _, y, _ := img.Coordinates(idx); y != 10 {
			t.Fatalf("Voxel %d is off the y=10 slice", idx)
		}
	}

	painted := 0
	for i := uint64(0); i < img.NumVoxels(); i++ {
		if img.Pixel(i)[0] == 9 {
			painted++
		}
	}
	if painted != d.NumElements() {
		t.Errorf("Expected %d painted voxels, got %d", d.NumElements(), painted)
	}

	d.RevertDiff(img)
	for i := uint64(0); i < img.NumVoxels(); i++ {
		if img.Pixel(i)[0] != 0 {
			t.Fatalf("Voxel %d not reverted", i)
		}
	}
}

func TestDrawOverwrite(t *testing.T) {
	img := models.NewImage(models.Size{10, 10, 10}, models.Spacing{1, 1, 1}, models.Origin{}, pixel.Uint8)
	occupied := img.Index(4, 5, 5)
	img.SetPixel(occupied, []byte{3})

	drawer := NewLineDrawer(img, nil)
	d := drawer.Draw(ZAxis, Coordinates{2, 5, 5}, Coordinates{7, 5, 5}, []byte{1}, 1, false)
	if d.NumElements() != 5 {
		t.Errorf("Expected 5 elements, got %d", d.NumElements())
	}
	if img.Pixel(occupied)[0] != 3 {
		t.Errorf("Occupied voxel was overwritten")
	}

	d = drawer.Draw(ZAxis, Coordinates{2, 5, 5}, Coordinates{7, 5, 5}, []byte{1}, 1, true)
	if d.NumElements() != 1 || d.ElementIndex(0) != occupied {
		t.Fatalf("Expected only the occupied voxel to be recorded, got %d elements", d.NumElements())
	}
	if d.Element(0).OldValue()[0] != 3 {
		t.Errorf("Expected old value 3, got %d", d.Element(0).OldValue()[0])
	}

	// with a background image, voxels equal to the background count as empty
	bg := models.NewImage(img.Size, img.Spacing, img.Origin, pixel.Uint8)
	bg.Fill([]byte{1})
	drawer.Background = bg
	d = drawer.Draw(ZAxis, Coordinates{2, 5, 5}, Coordinates{7, 5, 5}, []byte{2}, 1, false)
	if d.NumElements() != 6 {
		t.Errorf("Expected 6 elements over background voxels, got %d", d.NumElements())
	}
	if img.Pixel(img.Index(8, 5, 5))[0] != 0 {
		t.Errorf("Voxel past the end of the line was written")
	}
}

func TestLine(t *testing.T) {
	path := Line(ZAxis, Coordinates{0, 0, 3}, Coordinates{4, 2, 9})
	want := []Coordinates{{0, 0, 3}, {1, 1, 3}, {2, 1, 3}, {3, 2, 3}, {4, 2, 3}}
	if len(path) != len(want) {
		t.Fatalf("Expected %d points, got %v", len(want), path)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Errorf("Point %d: expected %v, got %v", i, want[i], path[i])
		}
	}

	path = Line(XAxis, Coordinates{7, 3, 3}, Coordinates{7, 3, 0})
	if len(path) != 4 || path[3] != (Coordinates{7, 3, 0}) {
		t.Errorf("Unexpected vertical path %v", path)
	}

	if o, err := ParseOrientation("Y"); err != nil || o != YAxis {
		t.Errorf("ParseOrientation(Y) = %v, %v", o, err)
	}
	if _, err := ParseOrientation("w"); err == nil {
		t.Error("Expected an error for an invalid axis")
	}
}
