package main

import (
	"flag"
	"fmt"
	"io"
	"os"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions carries the parsed command line.
type AppOptions struct {
	ConfigFile      string
	ReconstructFile string
	RenderFile      string
	OutputFile      string
	Format          string
	LogLevel        string
	HTTPPort        int
	MQTTMode        bool
	HTTPMode        bool
}

// Runner is the behaviour main dispatches to.
type Runner interface {
	ApplyOptions(opts AppOptions)
	RunReconstruct() error
	RunRender() error
	RunService() error
}

func main() {
	os.Exit(run(os.Args[1:], NewApp(os.Stdout), os.Stdout))
}

// run parses args, dispatches to app and returns the process exit code.
func run(args []string, app Runner, out io.Writer) int {
	fs := flag.NewFlagSet("roomscan", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to configuration file")
	fs.StringVar(&opts.ReconstructFile, "reconstruct", "", "Reconstruct a room from a JSON samples file and exit")
	fs.StringVar(&opts.RenderFile, "render", "", "Render the floorplan of a JSON samples file and exit")
	fs.StringVar(&opts.OutputFile, "output", "floorplan.svg", "Output file for --render (.svg or .png)")
	fs.StringVar(&opts.Format, "format", "table", "Output format for --reconstruct: table, json or geojson")
	fs.StringVar(&opts.LogLevel, "log-level", "", "Log level override: debug, info, warn, error")
	fs.IntVar(&opts.HTTPPort, "http-port", 0, "HTTP server port (default from config, 8080)")
	fs.BoolVar(&opts.MQTTMode, "mqtt", false, "Receive capture sessions over MQTT (saving needs --http)")
	fs.BoolVar(&opts.HTTPMode, "http", false, "Serve the capture and save HTTP API")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	fmt.Fprintf(out, "roomscan version: %s\n", Version)

	app.ApplyOptions(opts)

	var err error
	switch {
	case opts.ReconstructFile != "":
		err = app.RunReconstruct()
	case opts.RenderFile != "":
		err = app.RunRender()
	case opts.MQTTMode || opts.HTTPMode:
		err = app.RunService()
	default:
		fmt.Fprintln(out, "Use --reconstruct=FILE to derive a room from captured samples")
		fmt.Fprintln(out, "Use --render=FILE --output=OUT to draw its floorplan (SVG or PNG)")
		fmt.Fprintln(out, "Use --http to serve the capture API, --mqtt to capture over MQTT")
		fmt.Fprintln(out, "\nConfiguration:")
		fmt.Fprintln(out, "  config.yaml - reconstruction, store, MQTT, HTTP and log settings")
		return 0
	}

	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return 1
	}
	return 0
}
