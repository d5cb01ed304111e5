package room

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kwv/roomscan/internal/logger"
)

var (
	ErrEmptyName     = errors.New("project name is required")
	ErrEmptyUser     = errors.New("user ID is required")
	ErrNothingToSave = errors.New("session has no room-root samples or markers")
)

// SaveRequest identifies the session to save and who owns the project.
type SaveRequest struct {
	SessionID string `json:"-"`
	Name      string `json:"name"`
	UserID    string `json:"userId"`
}

// SaveResult describes a stored project.
type SaveResult struct {
	ProjectID string             `json:"projectId"`
	Payload   ProjectPayload     `json:"project"`
	Room      *ReconstructedRoom `json:"room,omitempty"`
}

// ProjectService turns captured sessions into stored projects.
type ProjectService struct {
	tracker       *CaptureTracker
	reconstructor *Reconstructor
	store         ProjectStore
	publisher     *Publisher
}

// NewProjectService wires the save path. publisher may be nil.
func NewProjectService(tracker *CaptureTracker, reconstructor *Reconstructor, store ProjectStore, publisher *Publisher) *ProjectService {
	return &ProjectService{
		tracker:       tracker,
		reconstructor: reconstructor,
		store:         store,
		publisher:     publisher,
	}
}

// Tracker returns the capture tracker the service reads from.
func (s *ProjectService) Tracker() *CaptureTracker {
	return s.tracker
}

// Preview reconstructs the room of a session without persisting it.
func (s *ProjectService) Preview(sessionID string) (*ReconstructedRoom, SessionSnapshot, error) {
	snap, err := s.tracker.Snapshot(sessionID)
	if err != nil {
		return nil, SessionSnapshot{}, err
	}
	room, err := s.reconstructor.Reconstruct(snap.Roots)
	if err != nil {
		return nil, snap, fmt.Errorf("reconstruct session %s: %w", sessionID, err)
	}
	return room, snap, nil
}

// Save reconstructs a session and hands the project to the store. Sessions
// with room-root samples save a room; sessions with only markers use the
// legacy marker payload. A publish failure is logged and does not fail the save.
func (s *ProjectService) Save(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if req.UserID == "" {
		return nil, ErrEmptyUser
	}

	snap, err := s.tracker.Snapshot(req.SessionID)
	if err != nil {
		return nil, err
	}

	result := &SaveResult{}
	switch {
	case len(snap.Roots) > 0:
		room, err := s.reconstructor.Reconstruct(snap.Roots)
		if err != nil {
			return nil, fmt.Errorf("reconstruct session %s: %w", req.SessionID, err)
		}
		result.Room = room
		result.Payload = NewRoomProject(name, room)
	case len(snap.Markers) > 0:
		markers := make([]RecordedPoint, len(snap.Markers))
		for i, m := range snap.Markers {
			markers[i] = RoundPoint(m, s.reconstructor.Config().Precision)
		}
		result.Payload = NewMarkerProject(name, markers)
	default:
		return nil, ErrNothingToSave
	}

	id, err := s.store.SaveProject(ctx, req.UserID, result.Payload)
	if err != nil {
		return nil, fmt.Errorf("store project %q: %w", name, err)
	}
	result.ProjectID = id

	if s.publisher != nil && result.Room != nil {
		if err := s.publisher.PublishRoom(req.SessionID, id, name, result.Room); err != nil {
			logger.Sugar.Warnw("room saved but not published", "session", req.SessionID, "error", err)
		}
	}

	return result, nil
}
