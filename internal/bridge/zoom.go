package bridge

import "math"

// presetZoomFactors are the zoom stops the frontend steps through.
var presetZoomFactors = []float64{
	0.25, 0.333, 0.5, 0.666, 0.75, 0.9,
	1.0, 1.1, 1.25, 1.5, 1.75, 2.0,
	2.5, 3.0, 4.0, 5.0,
}

// zoomFactorRatio is the per-level zoom multiplier: factor = ratio^level.
const zoomFactorRatio = 1.2

// zoomEpsilon bounds factor comparison error.
const zoomEpsilon = 0.001

// ZoomLevelToFactor converts an exponential zoom level to a scale factor.
func ZoomLevelToFactor(level float64) float64 {
	return math.Pow(zoomFactorRatio, level)
}

// ZoomFactorToLevel converts a scale factor to an exponential zoom level.
func ZoomFactorToLevel(factor float64) float64 {
	return math.Log(factor) / math.Log(zoomFactorRatio)
}

func zoomValuesEqual(a, b float64) bool {
	return math.Abs(a-b) <= zoomEpsilon
}

// NextZoomLevel returns the level one preset step from level, stepping
// down when out is true. A level off the preset grid is returned
// unchanged, as are the grid's endpoints.
func NextZoomLevel(level float64, out bool) float64 {
	factor := ZoomLevelToFactor(level)
	for i, preset := range presetZoomFactors {
		if !zoomValuesEqual(preset, factor) {
			continue
		}
		if out && i > 0 {
			return ZoomFactorToLevel(presetZoomFactors[i-1])
		}
		if !out && i != len(presetZoomFactors)-1 {
			return ZoomFactorToLevel(presetZoomFactors[i+1])
		}
	}
	return level
}
