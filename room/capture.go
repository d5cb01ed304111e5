package room

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kwv/roomscan/internal/logger"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionEnded    = errors.New("session has ended")
	ErrOutOfOrder      = errors.New("sample timestamp precedes the latest recorded sample")
)

// SampleKind distinguishes the two capture logs of a session.
type SampleKind string

const (
	KindRoot   SampleKind = "root"
	KindMarker SampleKind = "marker"
)

// SessionSnapshot is an immutable copy of a session's capture logs.
type SessionSnapshot struct {
	ID        string          `json:"id"`
	StartedAt time.Time       `json:"startedAt"`
	EndedAt   *time.Time      `json:"endedAt,omitempty"`
	Roots     []RecordedPoint `json:"roots"`
	Markers   []RecordedPoint `json:"markers"`
}

// Ended reports whether the session was ended when the snapshot was taken.
func (s SessionSnapshot) Ended() bool {
	return s.EndedAt != nil
}

type session struct {
	id        string
	startedAt time.Time
	endedAt   *time.Time
	roots     []RecordedPoint
	markers   []RecordedPoint
}

func (s *session) log(kind SampleKind) *[]RecordedPoint {
	if kind == KindMarker {
		return &s.markers
	}
	return &s.roots
}

// CaptureTracker owns the append-only capture logs of all AR sessions.
// Readers only ever receive copies.
type CaptureTracker struct {
	mu       sync.RWMutex
	sessions map[string]*session
	now      func() time.Time
}

// NewCaptureTracker creates an empty tracker.
func NewCaptureTracker() *CaptureTracker {
	return &CaptureTracker{
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

// Start opens a new session with a generated ID.
func (ct *CaptureTracker) Start() string {
	id := uuid.NewString()
	ct.StartWithID(id)
	return id
}

// StartWithID opens the session with the given ID. Starting an existing
// session clears its logs.
func (ct *CaptureTracker) StartWithID(id string) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	ct.sessions[id] = &session{
		id:        id,
		startedAt: ct.now(),
		roots:     make([]RecordedPoint, 0, MinSamples),
		markers:   make([]RecordedPoint, 0),
	}
	logger.Sugar.Infow("capture session started", "session", id)
}

// Append records a sample at the end of the session's log of the given kind.
// A zero timestamp is stamped with the current time.
func (ct *CaptureTracker) Append(id string, kind SampleKind, p RecordedPoint) (RecordedPoint, error) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	s, ok := ct.sessions[id]
	if !ok {
		return RecordedPoint{}, fmt.Errorf("append %s to %s: %w", kind, id, ErrSessionNotFound)
	}
	if s.endedAt != nil {
		return RecordedPoint{}, fmt.Errorf("append %s to %s: %w", kind, id, ErrSessionEnded)
	}

	if p.Timestamp == 0 {
		p.Timestamp = ct.now().UnixMilli()
	}

	log := s.log(kind)
	if n := len(*log); n > 0 && p.Timestamp < (*log)[n-1].Timestamp {
		return RecordedPoint{}, fmt.Errorf("append %s to %s: %w", kind, id, ErrOutOfOrder)
	}
	*log = append(*log, p)

	logger.Sugar.Debugw("sample recorded", "session", id, "kind", kind, "point", p.String(), "count", len(*log))
	return p, nil
}

// AppendRoot records a room-root sample.
func (ct *CaptureTracker) AppendRoot(id string, p RecordedPoint) (RecordedPoint, error) {
	return ct.Append(id, KindRoot, p)
}

// AppendMarker records a generic marker.
func (ct *CaptureTracker) AppendMarker(id string, p RecordedPoint) (RecordedPoint, error) {
	return ct.Append(id, KindMarker, p)
}

// Snapshot returns a copy of the session's logs.
func (ct *CaptureTracker) Snapshot(id string) (SessionSnapshot, error) {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	s, ok := ct.sessions[id]
	if !ok {
		return SessionSnapshot{}, fmt.Errorf("snapshot %s: %w", id, ErrSessionNotFound)
	}

	snap := SessionSnapshot{
		ID:        s.id,
		StartedAt: s.startedAt,
		Roots:     append([]RecordedPoint(nil), s.roots...),
		Markers:   append([]RecordedPoint(nil), s.markers...),
	}
	if s.endedAt != nil {
		ended := *s.endedAt
		snap.EndedAt = &ended
	}
	if snap.Roots == nil {
		snap.Roots = []RecordedPoint{}
	}
	if snap.Markers == nil {
		snap.Markers = []RecordedPoint{}
	}
	return snap, nil
}

// Reset clears both logs of a session and reopens it if it had ended.
func (ct *CaptureTracker) Reset(id string) error {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	s, ok := ct.sessions[id]
	if !ok {
		return fmt.Errorf("reset %s: %w", id, ErrSessionNotFound)
	}
	s.roots = s.roots[:0]
	s.markers = s.markers[:0]
	s.endedAt = nil
	s.startedAt = ct.now()
	logger.Sugar.Infow("capture session reset", "session", id)
	return nil
}

// End freezes a session. Its logs stay readable until Remove.
func (ct *CaptureTracker) End(id string) error {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	s, ok := ct.sessions[id]
	if !ok {
		return fmt.Errorf("end %s: %w", id, ErrSessionNotFound)
	}
	if s.endedAt == nil {
		t := ct.now()
		s.endedAt = &t
		logger.Sugar.Infow("capture session ended", "session", id,
			"roots", len(s.roots), "markers", len(s.markers))
	}
	return nil
}

// Remove drops a session entirely.
func (ct *CaptureTracker) Remove(id string) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	delete(ct.sessions, id)
}

// Has reports whether a session exists.
func (ct *CaptureTracker) Has(id string) bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	_, ok := ct.sessions[id]
	return ok
}

// SessionIDs returns the IDs of all known sessions, sorted.
func (ct *CaptureTracker) SessionIDs() []string {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	ids := make([]string, 0, len(ct.sessions))
	for id := range ct.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
