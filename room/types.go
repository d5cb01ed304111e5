package room

import "fmt"

// RecordedPoint is a tapped 3D position in metres in the AR session's local
// reference space. y is up.
type RecordedPoint struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Timestamp int64   `json:"timestamp,omitempty"` // unix ms at capture
}

// XZ projects the point onto the horizontal floor plane.
func (p RecordedPoint) XZ() Point {
	return Point{X: p.X, Y: p.Z}
}

// String formats the point with three decimals, like the results table.
func (p RecordedPoint) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", p.X, p.Y, p.Z)
}

// Point represents a 2D coordinate on the floor plane (x, z of the AR space).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Lift returns the 3D point at height y above this floor-plane point.
func (p Point) Lift(y float64) RecordedPoint {
	return RecordedPoint{X: p.X, Y: y, Z: p.Y}
}

// RoomRequest names the control points the reconstruction needs.
type RoomRequest struct {
	AnchorA     RecordedPoint `json:"anchorA"`
	AnchorB     RecordedPoint `json:"anchorB"`
	Interior    RecordedPoint `json:"interiorPoint"`
	HeightFirst RecordedPoint `json:"heightFirst"`
	HeightLast  RecordedPoint `json:"heightLast"`
}

// ReconstructedRoom is the rectangular volume derived from a RoomRequest.
// Corners holds the 4 floor corners [A, B, C, D] followed by the 4 roof corners.
type ReconstructedRoom struct {
	Corners   [8]RecordedPoint `json:"corners"`
	Height    float64          `json:"height"`
	Length    float64          `json:"length"`
	Direction Point            `json:"direction"`
}

// FloorCorners returns the floor corners in [A, B, C, D] order.
func (r *ReconstructedRoom) FloorCorners() []RecordedPoint {
	out := make([]RecordedPoint, 4)
	copy(out, r.Corners[:4])
	return out
}

// RoofCorners returns the roof corners in the same order as FloorCorners.
func (r *ReconstructedRoom) RoofCorners() []RecordedPoint {
	out := make([]RecordedPoint, 4)
	copy(out, r.Corners[4:])
	return out
}

// Width returns the length of the A->B wall.
func (r *ReconstructedRoom) Width() float64 {
	return Distance(r.Corners[0].XZ(), r.Corners[1].XZ())
}

// RoomRoots returns the 24-scalar persistence form of the corners.
func (r *ReconstructedRoom) RoomRoots() []float64 {
	return Flatten(r.Corners[:])
}

// HeightReference selects which capture log entries provide the height pair.
type HeightReference string

const (
	// HeightFromLog uses the first-recorded and most-recently-recorded samples.
	HeightFromLog HeightReference = "log"
	// HeightFromTrailing uses the last two samples.
	HeightFromTrailing HeightReference = "trailing"
)

// ReconstructionConfig tunes the reconstructor.
type ReconstructionConfig struct {
	FloorLevel      float64         `yaml:"floorLevel" json:"floorLevel"`
	Precision       int             `yaml:"precision" json:"precision"`
	HeightReference HeightReference `yaml:"heightReference" json:"heightReference"`
	Tolerance       float64         `yaml:"tolerance" json:"tolerance"`
}

// StoreConfig selects and configures the project store.
type StoreConfig struct {
	Driver     string `yaml:"driver" json:"driver"` // "http" or "sqlite"
	URL        string `yaml:"url,omitempty" json:"url,omitempty"`
	Token      string `yaml:"token,omitempty" json:"token,omitempty"`
	Path       string `yaml:"path,omitempty" json:"path,omitempty"`
	Timeout    string `yaml:"timeout,omitempty" json:"timeout,omitempty"` // Go duration, e.g. "10s"
	MaxRetries int    `yaml:"maxRetries,omitempty" json:"maxRetries,omitempty"`
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker      string `yaml:"broker" json:"broker"`
	TopicPrefix string `yaml:"topicPrefix" json:"topicPrefix"`
	ClientID    string `yaml:"clientId" json:"clientId"`
	Username    string `yaml:"username,omitempty" json:"username,omitempty"`
	Password    string `yaml:"password,omitempty" json:"password,omitempty"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port int `yaml:"port" json:"port"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file,omitempty" json:"file,omitempty"`
}

// Config represents the full configuration file
type Config struct {
	Reconstruction ReconstructionConfig `yaml:"reconstruction" json:"reconstruction"`
	Store          StoreConfig          `yaml:"store" json:"store"`
	MQTT           MQTTConfig           `yaml:"mqtt" json:"mqtt"`
	HTTP           HTTPConfig           `yaml:"http" json:"http"`
	Log            LogConfig            `yaml:"log" json:"log"`
}

// RoomPayload is the room section of a saved project.
type RoomPayload struct {
	RoomRoots []float64 `json:"roomRoots"`
}

// MarkerPayload is one generic marker of a saved project.
type MarkerPayload struct {
	Position RecordedPoint `json:"position"`
}

// ProjectPayload is the body handed to a project store.
// Exactly one of Room or Markers is set.
type ProjectPayload struct {
	Name    string          `json:"name"`
	Room    *RoomPayload    `json:"room,omitempty"`
	Markers []MarkerPayload `json:"markers,omitempty"`
}

// NewRoomProject builds the payload for a reconstructed room.
func NewRoomProject(name string, r *ReconstructedRoom) ProjectPayload {
	return ProjectPayload{Name: name, Room: &RoomPayload{RoomRoots: r.RoomRoots()}}
}

// NewMarkerProject builds the legacy payload for a list of generic markers.
func NewMarkerProject(name string, markers []RecordedPoint) ProjectPayload {
	out := make([]MarkerPayload, len(markers))
	for i, m := range markers {
		out[i] = MarkerPayload{Position: m}
	}
	return ProjectPayload{Name: name, Markers: out}
}
