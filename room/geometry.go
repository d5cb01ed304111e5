package room

import (
	"fmt"
	"math"
	"math/big"
	"strconv"

	"gonum.org/v1/gonum/floats/scalar"
)

// minDirectionLength is the shortest vector NormalizedDirection will scale.
const minDirectionLength = 1e-12

// Distance calculates Euclidean distance between two points
func Distance(p1, p2 Point) float64 {
	dx := p2.X - p1.X
	dy := p2.Y - p1.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// NormalizedDirection returns the unit vector pointing from p to q.
func NormalizedDirection(p, q Point) (Point, error) {
	dx := q.X - p.X
	dy := q.Y - p.Y
	length := math.Sqrt(dx*dx + dy*dy)
	if length < minDirectionLength || math.IsNaN(length) {
		return Point{}, &DegenerateGeometryError{Reason: ReasonCoincidentAnchors}
	}
	return Point{X: dx / length, Y: dy / length}, nil
}

// PerpendicularOffsetPoints returns p offset by length along the left normal
// (-dy, dx) of dir, then along the right normal. The order is stable and
// NearestPoint relies on it for tie-breaking.
func PerpendicularOffsetPoints(p, dir Point, length float64) [2]Point {
	nx := -dir.Y * length
	ny := dir.X * length
	return [2]Point{
		{X: p.X + nx, Y: p.Y + ny},
		{X: p.X - nx, Y: p.Y - ny},
	}
}

// NearestPoint returns the candidate closest to ref and its index.
// On an exact tie the earlier candidate wins. Returns index -1 for no candidates.
func NearestPoint(candidates []Point, ref Point) (Point, int) {
	best := -1
	bestDist := math.Inf(1)
	for i, c := range candidates {
		if d := Distance(c, ref); d < bestDist {
			best = i
			bestDist = d
		}
	}
	if best < 0 {
		return Point{}, -1
	}
	return candidates[best], best
}

// Flatten converts points into the flat [x0, y0, z0, x1, ...] persistence form.
func Flatten(points []RecordedPoint) []float64 {
	out := make([]float64, 0, len(points)*3)
	for _, p := range points {
		out = append(out, p.X, p.Y, p.Z)
	}
	return out
}

// Unflatten groups a flat coordinate list back into points.
func Unflatten(values []float64) ([]RecordedPoint, error) {
	if len(values)%3 != 0 {
		return nil, fmt.Errorf("unflatten: %d values is not a multiple of 3", len(values))
	}
	out := make([]RecordedPoint, len(values)/3)
	for i := range out {
		out[i] = RecordedPoint{X: values[3*i], Y: values[3*i+1], Z: values[3*i+2]}
	}
	return out, nil
}

// RoundTo rounds x to the given number of decimals the way fixed-point
// formatting does: the exact binary value is rounded, halves away from zero.
// 1.0005 is stored just below the half and becomes 1.000.
func RoundTo(x float64, precision int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) || precision < 0 {
		return x
	}
	s := new(big.Rat).SetFloat64(x).FloatString(precision)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return x
	}
	if v == 0 {
		return 0 // drop the sign of "-0.000"
	}
	return v
}

// RoundPoint rounds every coordinate of p. The timestamp is kept.
func RoundPoint(p RecordedPoint, precision int) RecordedPoint {
	return RecordedPoint{
		X:         RoundTo(p.X, precision),
		Y:         RoundTo(p.Y, precision),
		Z:         RoundTo(p.Z, precision),
		Timestamp: p.Timestamp,
	}
}

// SamePlanarPosition reports whether two points share x and z within tol.
func SamePlanarPosition(a, b RecordedPoint, tol float64) bool {
	return scalar.EqualWithinAbs(a.X, b.X, tol) && scalar.EqualWithinAbs(a.Z, b.Z, tol)
}
