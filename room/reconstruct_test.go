package room

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rectSamples is a 4 m wall along +x with the interior tap 3 m into +z.
func rectSamples() []RecordedPoint {
	return []RecordedPoint{
		{X: 0, Y: 1, Z: 0},   // anchor A
		{X: 4, Y: 1, Z: 0},   // anchor B
		{X: 2, Y: 1, Z: 3},   // interior
		{X: 1, Y: 2.5, Z: 1}, // unused
		{X: 0, Y: 4, Z: 0},   // height
	}
}

func TestReconstruct_Rectangle(t *testing.T) {
	room, err := Reconstruct(rectSamples())
	require.NoError(t, err)

	assert.Equal(t, 3.0, room.Height)
	assert.Equal(t, 3.606, room.Length)
	assert.Equal(t, Point{X: 1, Y: 0}, room.Direction)

	want := [8]RecordedPoint{
		{X: 0, Y: 1, Z: 0},
		{X: 4, Y: 1, Z: 0},
		{X: 0, Y: 1, Z: 3.606},
		{X: 4, Y: 1, Z: 3.606},
		{X: 0, Y: 4, Z: 0},
		{X: 4, Y: 4, Z: 0},
		{X: 0, Y: 4, Z: 3.606},
		{X: 4, Y: 4, Z: 3.606},
	}
	assert.Equal(t, want, room.Corners)
	assert.NoError(t, room.Validate())
}

func TestReconstruct_InteriorOnOtherSide(t *testing.T) {
	samples := rectSamples()
	samples[2] = RecordedPoint{X: 2, Y: 1, Z: -3}

	room, err := Reconstruct(samples)
	require.NoError(t, err)
	assert.Equal(t, -3.606, room.Corners[2].Z)
	assert.Equal(t, -3.606, room.Corners[3].Z)
}

func TestReconstruct_FloorLevelIgnoresTappedY(t *testing.T) {
	samples := rectSamples()
	samples[0].Y = -0.7
	samples[1].Y = 0.3
	samples[4].Y = 1.8 // height = |1.8 - (-0.7)| = 2.5

	room, err := Reconstruct(samples)
	require.NoError(t, err)
	assert.Equal(t, 2.5, room.Height)
	for _, c := range room.FloorCorners() {
		assert.Equal(t, DefaultFloorLevel, c.Y)
	}
	for _, c := range room.RoofCorners() {
		assert.Equal(t, DefaultFloorLevel+2.5, c.Y)
	}
}

func TestReconstruct_HeightIsAbsolute(t *testing.T) {
	samples := rectSamples()
	samples[4].Y = -2 // 3 m below the first sample

	room, err := Reconstruct(samples)
	require.NoError(t, err)
	assert.Equal(t, 3.0, room.Height)
	assert.Equal(t, 4.0, room.Corners[4].Y, "roof stays above the floor")
}

func TestReconstruct_ZeroHeight(t *testing.T) {
	samples := rectSamples()
	samples[4].Y = samples[0].Y

	room, err := Reconstruct(samples)
	require.NoError(t, err)
	assert.Equal(t, 0.0, room.Height)
	assert.Equal(t, room.Corners[0], room.Corners[4])
}

func TestReconstruct_RectangleProperties(t *testing.T) {
	cases := map[string][]RecordedPoint{
		"axis aligned": rectSamples(),
		"diagonal wall": {
			{X: 1, Y: 0, Z: 1},
			{X: 4, Y: 0, Z: 5},
			{X: 0.5, Y: 0, Z: 4.5},
			{X: 0, Y: 0, Z: 0},
			{X: 1, Y: 2.4, Z: 1},
		},
		"negative quadrant": {
			{X: -2, Y: 0.2, Z: -1},
			{X: -6, Y: 0.1, Z: -2},
			{X: -5, Y: 0.3, Z: 2},
			{X: 0, Y: 0, Z: 0},
			{X: -2, Y: 2.9, Z: -1},
		},
	}

	for name, samples := range cases {
		t.Run(name, func(t *testing.T) {
			room, err := Reconstruct(samples)
			require.NoError(t, err)

			a, b := room.Corners[0].XZ(), room.Corners[1].XZ()
			c, d := room.Corners[2].XZ(), room.Corners[3].XZ()

			// Rounding to 3 decimals bounds every error below a few millimetres.
			const tol = 2e-3
			assert.InDelta(t, room.Length, Distance(a, c), tol, "|AC|")
			assert.InDelta(t, room.Length, Distance(b, d), tol, "|BD|")
			assert.InDelta(t, Distance(a, b), Distance(c, d), tol, "|AB| = |CD|")

			ab := Point{b.X - a.X, b.Y - a.Y}
			ac := Point{c.X - a.X, c.Y - a.Y}
			assert.InDelta(t, 0.0, (ab.X*ac.X+ab.Y*ac.Y)/Distance(a, b), tol, "AC perpendicular to AB")

			interior := samples[2].XZ()
			side := func(p Point) float64 { return ab.X*(p.Y-a.Y) - ab.Y*(p.X-a.X) }
			assert.Equal(t, math.Signbit(side(interior)), math.Signbit(side(c)), "C on interior side")
			assert.Equal(t, math.Signbit(side(interior)), math.Signbit(side(d)), "D on interior side")

			assert.NoError(t, room.Validate())
		})
	}
}

func TestReconstruct_Symmetry(t *testing.T) {
	// Interior equidistant from A and B, anchors at the same y so the
	// first/latest height pair is unchanged when they swap.
	samples := []RecordedPoint{
		{X: 0, Y: 0, Z: 0},
		{X: 4, Y: 0, Z: 0},
		{X: 2, Y: 0, Z: 3},
		{X: 0, Y: 0, Z: 0},
		{X: 0, Y: 2.5, Z: 0},
	}
	swapped := append([]RecordedPoint(nil), samples...)
	swapped[0], swapped[1] = swapped[1], swapped[0]

	room, err := Reconstruct(samples)
	require.NoError(t, err)
	mirrored, err := Reconstruct(swapped)
	require.NoError(t, err)

	assert.Equal(t, room.Length, mirrored.Length)
	assert.Equal(t, room.Height, mirrored.Height)
	assert.Equal(t, room.Corners[2], mirrored.Corners[3], "C and D trade places")
	assert.Equal(t, room.Corners[3], mirrored.Corners[2])
	assert.Equal(t, room.Corners[6], mirrored.Corners[7])
	assert.Equal(t, room.Corners[7], mirrored.Corners[6])

	c, d := room.Corners[2], room.Corners[3]
	assert.Equal(t, c.Z, d.Z)
	assert.InDelta(t, 2.0-c.X, d.X-2.0, 1e-9)
}

func TestReconstruct_NonFiniteInterior(t *testing.T) {
	samples := rectSamples()
	samples[2].X = math.NaN()
	_, err := Reconstruct(samples)
	require.ErrorIs(t, err, ErrDegenerateGeometry)

	var dge *DegenerateGeometryError
	require.ErrorAs(t, err, &dge)
	assert.Equal(t, ReasonNonFinite, dge.Reason)
}

func TestReconstruct_TieUsesFirstCandidate(t *testing.T) {
	// Interior on the wall line: both perpendicular candidates are equidistant.
	samples := []RecordedPoint{
		{X: 0, Y: 0, Z: 0},
		{X: 4, Y: 0, Z: 0},
		{X: 6, Y: 0, Z: 0},
		{X: 0, Y: 0, Z: 0},
		{X: 0, Y: 3, Z: 0},
	}
	room, err := Reconstruct(samples)
	require.NoError(t, err)
	assert.Equal(t, 2.0, room.Length)
	assert.Equal(t, RecordedPoint{X: 0, Y: 1, Z: 2}, room.Corners[2])
	assert.Equal(t, RecordedPoint{X: 4, Y: 1, Z: 2}, room.Corners[3])
}

func TestReconstruct_Deterministic(t *testing.T) {
	first, err := Reconstruct(rectSamples())
	require.NoError(t, err)
	for range 5 {
		again, err := Reconstruct(rectSamples())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestReconstruct_DoesNotModifySamples(t *testing.T) {
	samples := rectSamples()
	orig := append([]RecordedPoint(nil), samples...)

	_, err := Reconstruct(samples)
	require.NoError(t, err)
	assert.Equal(t, orig, samples)
}

func TestReconstruct_InsufficientSamples(t *testing.T) {
	for n := 0; n < MinSamples; n++ {
		_, err := Reconstruct(rectSamples()[:n])
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInsufficientSamples)

		var ise *InsufficientSamplesError
		require.ErrorAs(t, err, &ise)
		assert.Equal(t, n, ise.Got)
		assert.Equal(t, MinSamples, ise.Want)
	}
}

func TestReconstruct_CoincidentAnchors(t *testing.T) {
	samples := rectSamples()
	samples[1] = RecordedPoint{X: 0, Y: 2, Z: 0} // same x, z as A

	_, err := Reconstruct(samples)
	assert.ErrorIs(t, err, ErrDegenerateGeometry)

	var dge *DegenerateGeometryError
	require.ErrorAs(t, err, &dge)
	assert.Equal(t, ReasonCoincidentAnchors, dge.Reason)
}

func TestReconstruct_InteriorAtAnchorB(t *testing.T) {
	for name, interior := range map[string]RecordedPoint{
		"exact":          {X: 4, Y: 1, Z: 0},
		"rounds to zero": {X: 4.0003, Y: 1, Z: 0.0001},
		"only y differs": {X: 4, Y: 3, Z: 0},
	} {
		t.Run(name, func(t *testing.T) {
			samples := rectSamples()
			samples[2] = interior

			_, err := Reconstruct(samples)
			var dge *DegenerateGeometryError
			require.ErrorAs(t, err, &dge)
			assert.Equal(t, ReasonZeroLength, dge.Reason)
		})
	}
}

func TestReconstruct_ExtraSamplesUseLatestForHeight(t *testing.T) {
	samples := append(rectSamples(), RecordedPoint{X: 0, Y: 3.5, Z: 0})

	room, err := Reconstruct(samples)
	require.NoError(t, err)
	assert.Equal(t, 2.5, room.Height, "|3.5 - 1| from first and latest samples")
}

func TestReconstructor_TrailingHeightReference(t *testing.T) {
	samples := append(rectSamples(), RecordedPoint{X: 0, Y: 6, Z: 0})
	rec := NewReconstructor(ReconstructionConfig{
		FloorLevel:      DefaultFloorLevel,
		Precision:       DefaultPrecision,
		HeightReference: HeightFromTrailing,
	})

	room, err := rec.Reconstruct(samples)
	require.NoError(t, err)
	assert.Equal(t, 2.0, room.Height, "|6 - 4| from the last two samples")
}

func TestReconstructor_CustomFloorAndPrecision(t *testing.T) {
	rec := NewReconstructor(ReconstructionConfig{FloorLevel: 0, Precision: 2})
	room, err := rec.Reconstruct(rectSamples())
	require.NoError(t, err)

	assert.Equal(t, 3.61, room.Length)
	assert.Equal(t, 0.0, room.Corners[0].Y)
	assert.Equal(t, 3.0, room.Corners[4].Y)
}

func TestNewReconstructor_Defaults(t *testing.T) {
	assert.Equal(t, DefaultReconstructionConfig(), NewReconstructor(ReconstructionConfig{}).Config())

	cfg := NewReconstructor(ReconstructionConfig{FloorLevel: 2, Precision: -1}).Config()
	assert.Equal(t, 2.0, cfg.FloorLevel)
	assert.Equal(t, DefaultPrecision, cfg.Precision)
	assert.Equal(t, HeightFromLog, cfg.HeightReference)
	assert.Equal(t, DefaultTolerance, cfg.Tolerance)
}

func TestRequestFromSamples(t *testing.T) {
	samples := rectSamples()
	req, err := NewReconstructor(ReconstructionConfig{}).RequestFromSamples(samples)
	require.NoError(t, err)

	assert.Equal(t, samples[0], req.AnchorA)
	assert.Equal(t, samples[1], req.AnchorB)
	assert.Equal(t, samples[2], req.Interior)
	assert.Equal(t, samples[0], req.HeightFirst)
	assert.Equal(t, samples[4], req.HeightLast)
}

func TestReconstructRequest_MatchesPositional(t *testing.T) {
	samples := rectSamples()
	rec := NewReconstructor(ReconstructionConfig{})

	fromSamples, err := rec.Reconstruct(samples)
	require.NoError(t, err)
	fromRequest, err := rec.ReconstructRequest(RoomRequest{
		AnchorA:     samples[0],
		AnchorB:     samples[1],
		Interior:    samples[2],
		HeightFirst: samples[0],
		HeightLast:  samples[4],
	})
	require.NoError(t, err)
	assert.Equal(t, fromSamples, fromRequest)
}

func TestReconstructedRoom_RoomRoots(t *testing.T) {
	room, err := Reconstruct(rectSamples())
	require.NoError(t, err)

	roots := room.RoomRoots()
	require.Len(t, roots, 24)
	assert.Equal(t, []float64{0, 1, 0, 4, 1, 0, 0, 1, 3.606, 4, 1, 3.606}, roots[:12])
	assert.Equal(t, []float64{0, 4, 0, 4, 4, 0, 0, 4, 3.606, 4, 4, 3.606}, roots[12:])

	back, err := Unflatten(roots)
	require.NoError(t, err)
	assert.Equal(t, room.Corners[:], back)
}

func TestReconstructedRoom_Validate(t *testing.T) {
	room, err := Reconstruct(rectSamples())
	require.NoError(t, err)

	shifted := *room
	shifted.Corners[6].X += 0.5
	assert.ErrorContains(t, shifted.Validate(), "corner 2")

	wrongHeight := *room
	wrongHeight.Height = 2
	assert.ErrorContains(t, wrongHeight.Validate(), "want height")
}

func TestReconstructedRoom_Width(t *testing.T) {
	room, err := Reconstruct(rectSamples())
	require.NoError(t, err)
	assert.InDelta(t, 4.0, room.Width(), 1e-12)
}
