package propagation

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"voxeledit/internal/models"
	"voxeledit/pkg/diff"
	"voxeledit/pkg/pixel"
)

// Statistics summarizes the background values under a painted region
type Statistics struct {
	Count  int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// RegionStatistics reads, for every distinct voxel index of d, the value of
// background at that index and summarizes them. An empty diff yields a zero
// Statistics
func RegionStatistics(background *models.Image, d *diff.ImageDiff) Statistics {
	seen := make(map[uint64]struct{}, d.NumElements())
	values := make([]float64, 0, d.NumElements())
	for i := 0; i < d.NumElements(); i++ {
		index := d.ElementIndex(i)
		if _, ok := seen[index]; ok {
			continue
		}
		seen[index] = struct{}{}
		values = append(values, pixel.ToFloat64(background.Type, background.Pixel(index)))
	}
	if len(values) == 0 {
		return Statistics{}
	}

	mean, std := stat.MeanStdDev(values, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return Statistics{
		Count:  len(values),
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(values),
		Max:    floats.Max(values),
	}
}
