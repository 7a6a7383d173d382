package geometry

import "math"

// Conversion factors. Feed coordinates are in millimetres.
const (
	MILLIMETRES_PER_METRE = 1000.0
)

// Point is a position on the monitored plane, in millimetres
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance calculates the Euclidean distance between two points
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// WithinRadius reports whether a distance falls inside a circle of the given
// radius. A distance exactly equal to the radius is inside.
func WithinRadius(distance, radius float64) bool {
	return distance <= radius
}

// MillimetresToMetres converts millimetres to metres
func MillimetresToMetres(mm float64) float64 {
	return mm / MILLIMETRES_PER_METRE
}
