package elevation

import "github.com/ecopia-map/potree_extract/internal/converters"

// Constant vertical shift, in the units of the point cloud
type Offset struct {
	Z float64
}

func NewOffset(z float64) converters.ElevationCorrector {
	return Offset{Z: z}
}

func (o Offset) CorrectElevation(_, _, z float64) float64 {
	return z + o.Z
}
