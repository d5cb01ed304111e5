package room

import (
	"fmt"
	"math"

	"github.com/kwv/roomscan/internal/logger"
)

const (
	// MinSamples is the smallest capture log a room can be derived from:
	// two wall anchors, one interior point and the height pair.
	MinSamples = 5

	DefaultFloorLevel = 1.0
	DefaultPrecision  = 3
	DefaultTolerance  = 1e-9
)

// DefaultReconstructionConfig returns the reconstruction defaults.
func DefaultReconstructionConfig() ReconstructionConfig {
	return ReconstructionConfig{
		FloorLevel:      DefaultFloorLevel,
		Precision:       DefaultPrecision,
		HeightReference: HeightFromLog,
		Tolerance:       DefaultTolerance,
	}
}

// Reconstructor derives rectangular rooms from room-root samples.
// The zero value is not usable; use NewReconstructor.
type Reconstructor struct {
	cfg ReconstructionConfig
}

// NewReconstructor creates a reconstructor. A zero cfg selects
// DefaultReconstructionConfig; otherwise FloorLevel and Precision are used as
// given and an empty HeightReference or non-positive Tolerance is defaulted.
func NewReconstructor(cfg ReconstructionConfig) *Reconstructor {
	def := DefaultReconstructionConfig()
	if cfg == (ReconstructionConfig{}) {
		cfg = def
	}
	if cfg.Precision < 0 {
		cfg.Precision = def.Precision
	}
	if cfg.HeightReference == "" {
		cfg.HeightReference = def.HeightReference
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = def.Tolerance
	}
	return &Reconstructor{cfg: cfg}
}

// Config returns the effective configuration.
func (r *Reconstructor) Config() ReconstructionConfig {
	return r.cfg
}

// Reconstruct derives the room from an ordered capture log snapshot.
func Reconstruct(samples []RecordedPoint) (*ReconstructedRoom, error) {
	return NewReconstructor(DefaultReconstructionConfig()).Reconstruct(samples)
}

// Reconstruct derives the room from an ordered capture log snapshot.
// samples is not modified.
func (r *Reconstructor) Reconstruct(samples []RecordedPoint) (*ReconstructedRoom, error) {
	req, err := r.RequestFromSamples(samples)
	if err != nil {
		return nil, err
	}
	return r.ReconstructRequest(req)
}

// RequestFromSamples maps the positional capture convention onto named
// control points: [0] anchor A, [1] anchor B, [2] interior, and the height
// pair chosen by the configured HeightReference.
func (r *Reconstructor) RequestFromSamples(samples []RecordedPoint) (RoomRequest, error) {
	n := len(samples)
	if n < MinSamples {
		return RoomRequest{}, &InsufficientSamplesError{Got: n, Want: MinSamples}
	}

	req := RoomRequest{
		AnchorA:  samples[0],
		AnchorB:  samples[1],
		Interior: samples[2],
	}

	switch r.cfg.HeightReference {
	case HeightFromTrailing:
		req.HeightFirst = samples[n-2]
		req.HeightLast = samples[n-1]
	default:
		req.HeightFirst = samples[0]
		req.HeightLast = samples[n-1]
		if n > MinSamples {
			logger.Sugar.Warnw("capture log longer than expected; height uses first and latest samples only",
				"samples", n, "ignored", n-MinSamples)
		}
	}

	return req, nil
}

// ReconstructRequest derives the room from named control points.
func (r *Reconstructor) ReconstructRequest(req RoomRequest) (*ReconstructedRoom, error) {
	prec := r.cfg.Precision

	a := req.AnchorA.XZ()
	b := req.AnchorB.XZ()
	interior := req.Interior.XZ()

	if Distance(a, b) <= r.cfg.Tolerance {
		return nil, &DegenerateGeometryError{Reason: ReasonCoincidentAnchors}
	}

	height := RoundTo(math.Abs(req.HeightLast.Y-req.HeightFirst.Y), prec)
	length := RoundTo(Distance(b, interior), prec)
	if length <= r.cfg.Tolerance {
		return nil, &DegenerateGeometryError{Reason: ReasonZeroLength}
	}

	dir, err := NormalizedDirection(a, b)
	if err != nil {
		return nil, err
	}

	candA := PerpendicularOffsetPoints(a, dir, length)
	candB := PerpendicularOffsetPoints(b, dir, length)
	c, ci := NearestPoint(candA[:], interior)
	d, di := NearestPoint(candB[:], interior)
	if ci < 0 || di < 0 {
		return nil, &DegenerateGeometryError{Reason: ReasonNonFinite}
	}

	floorY := r.cfg.FloorLevel
	roofY := floorY + height

	room := &ReconstructedRoom{
		Height:    height,
		Length:    length,
		Direction: Point{X: RoundTo(dir.X, prec), Y: RoundTo(dir.Y, prec)},
	}
	for i, p := range []Point{a, b, c, d} {
		room.Corners[i] = RoundPoint(p.Lift(floorY), prec)
		room.Corners[i+4] = RoundPoint(p.Lift(roofY), prec)
	}

	logger.Sugar.Debugw("room reconstructed",
		"height", height, "length", length, "width", RoundTo(room.Width(), prec))

	return room, nil
}

// Validate checks the vertical alignment invariant of a reconstructed room.
func (r *ReconstructedRoom) Validate() error {
	for i := 0; i < 4; i++ {
		floor, roof := r.Corners[i], r.Corners[i+4]
		if floor.X != roof.X || floor.Z != roof.Z {
			return fmt.Errorf("corner %d: roof (%v) not above floor (%v)", i, roof, floor)
		}
		if math.Abs((roof.Y-floor.Y)-r.Height) > 1e-9 {
			return fmt.Errorf("corner %d: roof offset %.6f, want height %.6f", i, roof.Y-floor.Y, r.Height)
		}
	}
	return nil
}
