package room

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	tableRowHeight = 18
	tablePadding   = 10
	tableColWidth  = 90
	tableLabelCol  = 110
)

// TableRow is one labelled coordinate of a results table.
type TableRow struct {
	Label string
	Point RecordedPoint
}

// MarkerRows labels points "Marker 1", "Marker 2", ...
func MarkerRows(points []RecordedPoint) []TableRow {
	rows := make([]TableRow, len(points))
	for i, p := range points {
		rows[i] = TableRow{Label: fmt.Sprintf("Marker %d", i+1), Point: p}
	}
	return rows
}

// RoomRows labels the 8 room corners "Floor A".."Roof D".
func RoomRows(r *ReconstructedRoom) []TableRow {
	labels := []string{"A", "B", "C", "D"}
	rows := make([]TableRow, 0, len(r.Corners))
	for i, c := range r.Corners {
		level := "Floor"
		if i >= 4 {
			level = "Roof"
		}
		rows = append(rows, TableRow{Label: fmt.Sprintf("%s %s", level, labels[i%4]), Point: c})
	}
	return rows
}

// FormatRow renders the row cells the way the results table shows them.
func FormatRow(row TableRow) [4]string {
	return [4]string{
		row.Label,
		fmt.Sprintf("%.3f", row.Point.X),
		fmt.Sprintf("%.3f", row.Point.Y),
		fmt.Sprintf("%.3f", row.Point.Z),
	}
}

// RenderCoordinateTable draws a header and one line per row into a PNG-ready image.
func RenderCoordinateTable(rows []TableRow) *image.RGBA {
	width := 2*tablePadding + tableLabelCol + 3*tableColWidth
	height := 2*tablePadding + (len(rows)+1)*tableRowHeight

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{255, 255, 255, 255}}, image.Point{}, draw.Src)

	headerColor := color.RGBA{30, 60, 140, 255}
	textColor := color.RGBA{40, 40, 40, 255}
	stripe := color.RGBA{240, 243, 250, 255}

	y := tablePadding + tableRowHeight - 5
	drawRowText(img, y, [4]string{"", "x", "y", "z"}, headerColor)

	for i, row := range rows {
		top := tablePadding + (i+1)*tableRowHeight
		if i%2 == 0 {
			draw.Draw(img, image.Rect(tablePadding, top, width-tablePadding, top+tableRowHeight),
				&image.Uniform{C: stripe}, image.Point{}, draw.Src)
		}
		drawRowText(img, top+tableRowHeight-5, FormatRow(row), textColor)
	}

	return img
}

func drawRowText(img *image.RGBA, baseline int, cells [4]string, c color.RGBA) {
	x := tablePadding + 4
	drawText(img, x, baseline, cells[0], c)
	x += tableLabelCol
	for _, cell := range cells[1:] {
		drawText(img, x, baseline, cell, c)
		x += tableColWidth
	}
}

// drawText renders text onto an image at the specified position
func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
