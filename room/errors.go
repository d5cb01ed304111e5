package room

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientSamples matches any *InsufficientSamplesError via errors.Is.
	ErrInsufficientSamples = errors.New("insufficient room-root samples")
	// ErrDegenerateGeometry matches any *DegenerateGeometryError via errors.Is.
	ErrDegenerateGeometry = errors.New("degenerate room geometry")
)

// InsufficientSamplesError is returned when fewer samples than required were captured.
type InsufficientSamplesError struct {
	Got  int
	Want int
}

func (e *InsufficientSamplesError) Error() string {
	return fmt.Sprintf("insufficient room-root samples: got %d, need at least %d", e.Got, e.Want)
}

func (e *InsufficientSamplesError) Is(target error) bool {
	return target == ErrInsufficientSamples
}

// DegenerateReason identifies which geometric precondition failed.
type DegenerateReason string

const (
	ReasonCoincidentAnchors DegenerateReason = "anchors coincide"
	ReasonZeroLength        DegenerateReason = "interior point coincides with anchor B"
	ReasonNonFinite         DegenerateReason = "control point is not finite"
)

// DegenerateGeometryError is returned when the control points cannot span a room.
type DegenerateGeometryError struct {
	Reason DegenerateReason
}

func (e *DegenerateGeometryError) Error() string {
	return fmt.Sprintf("degenerate room geometry: %s", e.Reason)
}

func (e *DegenerateGeometryError) Is(target error) bool {
	return target == ErrDegenerateGeometry
}
