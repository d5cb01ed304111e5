package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/kwv/roomscan/internal/logger"
	"github.com/kwv/roomscan/room"
)

const defaultConfigFile = "config.yaml"

// App encapsulates the application state and dependencies
type App struct {
	Config     *room.Config
	Tracker    *room.CaptureTracker
	MQTTClient *room.MQTTClient
	Publisher  *room.Publisher
	Service    *room.ProjectService

	Out  io.Writer
	opts AppOptions

	// signals ends RunService; tests close it instead of sending SIGTERM.
	signals chan os.Signal
}

// NewApp creates a new App instance writing command output to out.
func NewApp(out io.Writer) *App {
	return &App{
		Tracker: room.NewCaptureTracker(),
		Out:     out,
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.opts = opts
}

// loadConfig reads the config file. A missing default config file falls back
// to DefaultConfig so one-shot commands work without any setup.
func (a *App) loadConfig() (*room.Config, error) {
	if a.Config != nil {
		return a.Config, nil
	}

	path := a.opts.ConfigFile
	var cfg *room.Config
	if _, err := os.Stat(path); path == "" || (os.IsNotExist(err) && path == defaultConfigFile) {
		cfg = room.DefaultConfig()
		room.ApplyEnvOverrides(cfg)
	} else {
		loaded, err := room.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if a.opts.LogLevel != "" {
		cfg.Log.Level = a.opts.LogLevel
	}
	if a.opts.HTTPPort > 0 {
		cfg.HTTP.Port = a.opts.HTTPPort
	}
	a.Config = cfg
	return cfg, nil
}

// loadRequest reads a samples file. It accepts either a JSON array of samples
// in capture order or a named RoomRequest object.
func loadRequest(r *room.Reconstructor, path string) (room.RoomRequest, []room.RecordedPoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return room.RoomRequest{}, nil, fmt.Errorf("reading samples: %w", err)
	}
	data = bytes.TrimSpace(data)

	if len(data) > 0 && data[0] == '{' {
		var req room.RoomRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return room.RoomRequest{}, nil, fmt.Errorf("parsing room request: %w", err)
		}
		return req, []room.RecordedPoint{req.Interior}, nil
	}

	var samples []room.RecordedPoint
	if err := json.Unmarshal(data, &samples); err != nil {
		return room.RoomRequest{}, nil, fmt.Errorf("parsing samples: %w", err)
	}
	req, err := r.RequestFromSamples(samples)
	if err != nil {
		return room.RoomRequest{}, nil, err
	}
	return req, []room.RecordedPoint{req.Interior}, nil
}

func (a *App) reconstructFile(path string) (*room.ReconstructedRoom, []room.RecordedPoint, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.File); err != nil {
		return nil, nil, err
	}

	rec := room.NewReconstructor(cfg.Reconstruction)
	req, markers, err := loadRequest(rec, path)
	if err != nil {
		return nil, nil, err
	}
	rm, err := rec.ReconstructRequest(req)
	if err != nil {
		return nil, nil, err
	}
	return rm, markers, nil
}

// RunReconstruct derives a room from a samples file and prints it.
func (a *App) RunReconstruct() error {
	rm, _, err := a.reconstructFile(a.opts.ReconstructFile)
	if err != nil {
		return err
	}

	switch a.opts.Format {
	case "json":
		enc := json.NewEncoder(a.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*room.ReconstructedRoom
			RoomRoots []float64 `json:"roomRoots"`
		}{rm, rm.RoomRoots()})
	case "geojson":
		data, err := rm.ToFeatureCollection(strings.TrimSuffix(filepath.Base(a.opts.ReconstructFile), filepath.Ext(a.opts.ReconstructFile))).MarshalJSON()
		if err != nil {
			return fmt.Errorf("encoding GeoJSON: %w", err)
		}
		_, err = fmt.Fprintln(a.Out, string(data))
		return err
	case "table", "":
		return printRoomTable(a.Out, rm)
	default:
		return fmt.Errorf("unknown format %q", a.opts.Format)
	}
}

func printRoomTable(out io.Writer, rm *room.ReconstructedRoom) error {
	fmt.Fprintf(out, "Room height: %.3f m, length: %.3f m, width: %.3f m\n", rm.Height, rm.Length, rm.Width())
	fmt.Fprintf(out, "Floor area: %.3f m², volume: %.3f m³\n\n", rm.FloorArea(), rm.Volume())

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Corner\tx\ty\tz")
	for _, row := range room.RoomRows(rm) {
		cells := room.FormatRow(row)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", cells[0], cells[1], cells[2], cells[3])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	roots := rm.RoomRoots()
	parts := make([]string, len(roots))
	for i, v := range roots {
		parts[i] = fmt.Sprintf("%.3f", v)
	}
	_, err := fmt.Fprintf(out, "\nroomRoots: [%s]\n", strings.Join(parts, ", "))
	return err
}

// RunRender derives a room from a samples file and writes its floorplan.
func (a *App) RunRender() error {
	rm, markers, err := a.reconstructFile(a.opts.RenderFile)
	if err != nil {
		return err
	}

	f, err := os.Create(a.opts.OutputFile)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	defer f.Close()

	renderer := room.NewFloorplanRenderer(rm)
	renderer.Markers = markers

	switch strings.ToLower(filepath.Ext(a.opts.OutputFile)) {
	case ".png":
		err = renderer.RenderToPNG(f)
	default:
		err = renderer.RenderToSVG(f)
	}
	if err != nil {
		return fmt.Errorf("rendering floorplan: %w", err)
	}

	fmt.Fprintf(a.Out, "Floorplan written to %s\n", a.opts.OutputFile)
	return nil
}

// captureOnly reports whether sessions arrive over MQTT with no HTTP API to save them.
func (a *App) captureOnly() bool {
	return a.MQTTClient != nil && !a.opts.HTTPMode
}

// RunService runs the HTTP API and/or MQTT capture until interrupted.
func (a *App) RunService() error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.File); err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := room.OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening project store: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Sugar.Warnw("closing project store", "error", err)
		}
	}()

	if a.opts.MQTTMode || cfg.MQTTEnabled() {
		client, err := room.InitMQTT(cfg.MQTT, a.Tracker, nil)
		if err != nil {
			return fmt.Errorf("initializing MQTT: %w", err)
		}
		if client != nil {
			a.MQTTClient = client
			a.Publisher = room.NewPublisher(client.GetClient(), cfg.MQTT.TopicPrefix)
			defer client.Disconnect()
		}
	}

	a.Service = room.NewProjectService(a.Tracker, room.NewReconstructor(cfg.Reconstruction), store, a.Publisher)

	if a.captureOnly() {
		logger.Sugar.Warn("MQTT capture without --http: sessions are recorded but cannot be saved")
	}

	var srv *http.Server
	serveErr := make(chan error, 1)
	if a.opts.HTTPMode {
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
			Handler:           newHTTPServer(a.Service, a.MQTTClient),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Sugar.Infow("HTTP server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()
	}

	if a.signals == nil {
		a.signals = make(chan os.Signal, 1)
		signal.Notify(a.signals, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(a.signals)
	}

	select {
	case <-a.signals:
		logger.Sugar.Info("shutting down")
	case err := <-serveErr:
		return fmt.Errorf("HTTP server: %w", err)
	}

	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Sugar.Warnw("HTTP shutdown", "error", err)
		}
	}
	return nil
}
