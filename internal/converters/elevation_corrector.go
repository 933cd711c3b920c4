package converters

// Adjusts the elevation of a written point
type ElevationCorrector interface {
	CorrectElevation(x, y, z float64) float64
}
