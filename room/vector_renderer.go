package room

import (
	"fmt"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// FloorplanRenderer draws a reconstructed room footprint as vector graphics.
// World units are metres; canvas units are millimetres.
type FloorplanRenderer struct {
	Room        *ReconstructedRoom
	Markers     []RecordedPoint   // extra points drawn as dots, e.g. the interior tap
	Scale       float64           // canvas mm per world metre
	Padding     float64           // padding in world metres
	GridSpacing float64           // grid spacing in world metres; 0 disables
	Resolution  canvas.Resolution // PNG output resolution
	FloorColor  color.RGBA
	WallColor   color.RGBA
	MarkerColor color.RGBA
}

// NewFloorplanRenderer creates a renderer with default styling.
func NewFloorplanRenderer(room *ReconstructedRoom) *FloorplanRenderer {
	return &FloorplanRenderer{
		Room:        room,
		Scale:       50.0,
		Padding:     0.5,
		GridSpacing: 1.0,
		Resolution:  canvas.DPI(150),
		FloorColor:  color.RGBA{R: 200, G: 220, B: 255, A: 255},
		WallColor:   color.RGBA{R: 30, G: 60, B: 140, A: 255},
		MarkerColor: color.RGBA{R: 220, G: 40, B: 40, A: 255},
	}
}

// canvasRenderer is an interface that both svg and rasterizer renderers implement
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// RenderToSVG writes the floorplan as an SVG to the provided writer
func (r *FloorplanRenderer) RenderToSVG(w io.Writer) error {
	if r.Room == nil {
		return fmt.Errorf("render floorplan: no room")
	}
	b := r.bounds()
	width, height := r.canvasSize(b)

	svgRenderer := svg.New(w, width, height, nil)
	r.renderToCanvas(svgRenderer, b, width, height)
	return svgRenderer.Close()
}

// RenderToPNG writes the floorplan as a PNG to the provided writer
func (r *FloorplanRenderer) RenderToPNG(w io.Writer) error {
	if r.Room == nil {
		return fmt.Errorf("render floorplan: no room")
	}
	b := r.bounds()
	width, height := r.canvasSize(b)

	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, b, width, height)
	return png.Encode(w, rast)
}

type worldBounds struct {
	minX, minY, maxX, maxY float64
}

func (r *FloorplanRenderer) bounds() worldBounds {
	b := worldBounds{math.MaxFloat64, math.MaxFloat64, -math.MaxFloat64, -math.MaxFloat64}
	extend := func(p Point) {
		b.minX = math.Min(b.minX, p.X)
		b.minY = math.Min(b.minY, p.Y)
		b.maxX = math.Max(b.maxX, p.X)
		b.maxY = math.Max(b.maxY, p.Y)
	}
	for _, c := range r.Room.Corners[:4] {
		extend(c.XZ())
	}
	for _, m := range r.Markers {
		extend(m.XZ())
	}
	return b
}

func (r *FloorplanRenderer) canvasSize(b worldBounds) (float64, float64) {
	width := (b.maxX - b.minX + 2*r.Padding) * r.Scale
	height := (b.maxY - b.minY + 2*r.Padding) * r.Scale
	return width, height
}

func (r *FloorplanRenderer) renderToCanvas(renderer canvasRenderer, b worldBounds, width, height float64) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	bgStyle.Stroke = canvas.Paint{Color: canvas.Transparent}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	toCanvas := func(p Point) (float64, float64) {
		return (p.X - b.minX + r.Padding) * r.Scale, (p.Y - b.minY + r.Padding) * r.Scale
	}

	if r.GridSpacing > 0 {
		gridStyle := canvas.DefaultStyle
		gridStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		gridStyle.Stroke = canvas.Paint{Color: canvas.Lightgray}
		gridStyle.StrokeWidth = 0.5
		gridStyle.Dashes = []float64{2.0, 2.0}

		lo := Point{X: b.minX - r.Padding, Y: b.minY - r.Padding}
		hi := Point{X: b.maxX + r.Padding, Y: b.maxY + r.Padding}
		for x := math.Ceil(lo.X/r.GridSpacing) * r.GridSpacing; x <= hi.X; x += r.GridSpacing {
			gp := &canvas.Path{}
			gp.MoveTo(toCanvas(Point{X: x, Y: lo.Y}))
			gp.LineTo(toCanvas(Point{X: x, Y: hi.Y}))
			renderer.RenderPath(gp, gridStyle, canvas.Identity)
		}
		for y := math.Ceil(lo.Y/r.GridSpacing) * r.GridSpacing; y <= hi.Y; y += r.GridSpacing {
			gp := &canvas.Path{}
			gp.MoveTo(toCanvas(Point{X: lo.X, Y: y}))
			gp.LineTo(toCanvas(Point{X: hi.X, Y: y}))
			renderer.RenderPath(gp, gridStyle, canvas.Identity)
		}
	}

	footprint := r.Room.Footprint()
	fp := &canvas.Path{}
	for i, pt := range footprint[0] {
		cx, cy := toCanvas(Point{X: pt[0], Y: pt[1]})
		if i == 0 {
			fp.MoveTo(cx, cy)
		} else {
			fp.LineTo(cx, cy)
		}
	}
	fp.Close()

	floorStyle := canvas.DefaultStyle
	floorStyle.Fill = canvas.Paint{Color: r.FloorColor}
	floorStyle.Stroke = canvas.Paint{Color: r.WallColor}
	floorStyle.StrokeWidth = 2.0
	renderer.RenderPath(fp, floorStyle, canvas.Identity)

	// Anchors A and B define the reference wall: draw them larger.
	cornerStyle := canvas.DefaultStyle
	cornerStyle.Fill = canvas.Paint{Color: r.WallColor}
	cornerStyle.Stroke = canvas.Paint{Color: canvas.Transparent}
	for i, c := range r.Room.Corners[:4] {
		radius := 2.0
		if i < 2 {
			radius = 3.5
		}
		cx, cy := toCanvas(c.XZ())
		renderer.RenderPath(canvas.Circle(radius).Translate(cx, cy), cornerStyle, canvas.Identity)
	}

	markerStyle := canvas.DefaultStyle
	markerStyle.Fill = canvas.Paint{Color: r.MarkerColor}
	markerStyle.Stroke = canvas.Paint{Color: canvas.Black}
	markerStyle.StrokeWidth = 0.5
	for _, m := range r.Markers {
		cx, cy := toCanvas(m.XZ())
		renderer.RenderPath(canvas.Rectangle(4, 4).Translate(cx-2, cy-2), markerStyle, canvas.Identity)
	}
}
