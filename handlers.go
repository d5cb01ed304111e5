package main

import (
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"net/http"
	"time"

	"github.com/kwv/roomscan/internal/logger"
	"github.com/kwv/roomscan/room"
)

const maxBodyBytes = 64 << 10

// newHTTPServer creates an HTTP server with all endpoints. mqttClient may be nil.
func newHTTPServer(svc *room.ProjectService, mqttClient *room.MQTTClient) http.Handler {
	tracker := svc.Tracker()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		status := struct {
			Status        string    `json:"status"`
			Timestamp     time.Time `json:"timestamp"`
			Sessions      int       `json:"sessions"`
			MQTTConnected bool      `json:"mqttConnected"`
		}{
			Status:        "ok",
			Timestamp:     time.Now(),
			Sessions:      len(tracker.SessionIDs()),
			MQTTConnected: mqttClient != nil && mqttClient.IsConnected(),
		}
		writeJSON(w, http.StatusOK, status)
	})

	mux.HandleFunc("POST /sessions", func(w http.ResponseWriter, r *http.Request) {
		id := tracker.Start()
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	})

	mux.HandleFunc("GET /sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		snap, err := tracker.Snapshot(r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	mux.HandleFunc("DELETE /sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := tracker.End(r.PathValue("id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /sessions/{id}/reset", func(w http.ResponseWriter, r *http.Request) {
		if err := tracker.Reset(r.PathValue("id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	appendHandler := func(kind room.SampleKind) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			var p room.RecordedPoint
			if err := decodeBody(r, &p); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			recorded, err := tracker.Append(r.PathValue("id"), kind, p)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, recorded)
		}
	}
	mux.HandleFunc("POST /sessions/{id}/roots", appendHandler(room.KindRoot))
	mux.HandleFunc("POST /sessions/{id}/markers", appendHandler(room.KindMarker))

	mux.HandleFunc("GET /sessions/{id}/room", func(w http.ResponseWriter, r *http.Request) {
		rm, _, err := svc.Preview(r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			*room.ReconstructedRoom
			RoomRoots []float64 `json:"roomRoots"`
		}{rm, rm.RoomRoots()})
	})

	mux.HandleFunc("GET /sessions/{id}/footprint.svg", func(w http.ResponseWriter, r *http.Request) {
		renderer, ok := floorplanFor(w, svc, r.PathValue("id"))
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-cache")
		if err := renderer.RenderToSVG(w); err != nil {
			logger.Sugar.Errorw("encoding footprint SVG", "error", err)
		}
	})

	mux.HandleFunc("GET /sessions/{id}/footprint.png", func(w http.ResponseWriter, r *http.Request) {
		renderer, ok := floorplanFor(w, svc, r.PathValue("id"))
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := renderer.RenderToPNG(w); err != nil {
			logger.Sugar.Errorw("encoding footprint PNG", "error", err)
		}
	})

	mux.HandleFunc("GET /sessions/{id}/footprint.geojson", func(w http.ResponseWriter, r *http.Request) {
		rm, _, err := svc.Preview(r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		data, err := rm.ToFeatureCollection("").MarshalJSON()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write(data)
	})

	mux.HandleFunc("GET /sessions/{id}/coordinates.png", func(w http.ResponseWriter, r *http.Request) {
		snap, err := tracker.Snapshot(r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		rows := room.MarkerRows(snap.Markers)
		if r.URL.Query().Get("kind") == "room" {
			rm, _, err := svc.Preview(snap.ID)
			if err != nil {
				writeError(w, err)
				return
			}
			rows = room.RoomRows(rm)
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := png.Encode(w, room.RenderCoordinateTable(rows)); err != nil {
			logger.Sugar.Errorw("encoding coordinate table", "error", err)
		}
	})

	mux.HandleFunc("POST /sessions/{id}/save", func(w http.ResponseWriter, r *http.Request) {
		var req room.SaveRequest
		if err := decodeBody(r, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		req.SessionID = r.PathValue("id")

		result, err := svc.Save(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	})

	return logRequests(mux)
}

func floorplanFor(w http.ResponseWriter, svc *room.ProjectService, id string) (*room.FloorplanRenderer, bool) {
	rm, snap, err := svc.Preview(id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	renderer := room.NewFloorplanRenderer(rm)
	if len(snap.Roots) > 2 {
		renderer.Markers = append(renderer.Markers, snap.Roots[2])
	}
	renderer.Markers = append(renderer.Markers, snap.Markers...)
	return renderer, true
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, room.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, room.ErrSessionEnded):
		return http.StatusConflict
	case errors.Is(err, room.ErrOutOfOrder),
		errors.Is(err, room.ErrEmptyName),
		errors.Is(err, room.ErrEmptyUser):
		return http.StatusBadRequest
	case errors.Is(err, room.ErrInsufficientSamples),
		errors.Is(err, room.ErrDegenerateGeometry),
		errors.Is(err, room.ErrNothingToSave):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= 500 {
		logger.Sugar.Errorw("request failed", "status", code, "error", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Sugar.Errorw("encoding response", "error", err)
	}
}

// statusRecorder captures the response code for request logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Sugar.Debugw("http request", "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration", time.Since(start), "remote", r.RemoteAddr)
	})
}
