package room

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Footprint returns the floor rectangle as a closed counter-clockwise ring
// on the (x, z) plane. Corners go A, B, D, C so consecutive vertices share a wall.
func (r *ReconstructedRoom) Footprint() orb.Polygon {
	a, b, c, d := r.Corners[0].XZ(), r.Corners[1].XZ(), r.Corners[2].XZ(), r.Corners[3].XZ()
	ring := orb.Ring{
		{a.X, a.Y},
		{b.X, b.Y},
		{d.X, d.Y},
		{c.X, c.Y},
		{a.X, a.Y},
	}
	if ring.Orientation() == orb.CW {
		ring.Reverse()
	}
	return orb.Polygon{ring}
}

// FloorArea returns the footprint area in square metres.
func (r *ReconstructedRoom) FloorArea() float64 {
	return math.Abs(planar.Area(r.Footprint()))
}

// Perimeter returns the footprint perimeter in metres.
func (r *ReconstructedRoom) Perimeter() float64 {
	return planar.Length(r.Footprint())
}

// Volume returns the room volume in cubic metres.
func (r *ReconstructedRoom) Volume() float64 {
	return r.FloorArea() * r.Height
}

// Contains reports whether a floor-plane point lies inside the footprint.
func (r *ReconstructedRoom) Contains(p Point) bool {
	return planar.PolygonContains(r.Footprint(), orb.Point{p.X, p.Y})
}

// Centroid returns the centre of the footprint.
func (r *ReconstructedRoom) Centroid() Point {
	c, _ := planar.CentroidArea(r.Footprint())
	return Point{X: c[0], Y: c[1]}
}

// ToFeatureCollection exports the footprint and its corners as GeoJSON.
// Coordinates are the AR space (x, z) in metres, not geographic degrees.
func (r *ReconstructedRoom) ToFeatureCollection(name string) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	footprint := geojson.NewFeature(r.Footprint())
	footprint.Properties["kind"] = "footprint"
	if name != "" {
		footprint.Properties["name"] = name
	}
	footprint.Properties["height"] = r.Height
	footprint.Properties["length"] = r.Length
	footprint.Properties["width"] = RoundTo(r.Width(), DefaultPrecision)
	footprint.Properties["area"] = RoundTo(r.FloorArea(), DefaultPrecision)
	footprint.Properties["perimeter"] = RoundTo(r.Perimeter(), DefaultPrecision)
	footprint.Properties["floorLevel"] = r.Corners[0].Y
	fc.Append(footprint)

	for i, label := range []string{"A", "B", "C", "D"} {
		corner := r.Corners[i]
		f := geojson.NewFeature(orb.Point{corner.X, corner.Z})
		f.Properties["kind"] = "corner"
		f.Properties["label"] = label
		f.Properties["floorY"] = corner.Y
		f.Properties["roofY"] = r.Corners[i+4].Y
		fc.Append(f)
	}

	return fc
}
