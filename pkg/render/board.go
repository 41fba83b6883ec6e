package render

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"

	"github.com/llgcode/draw2d"
	"github.com/llgcode/draw2d/draw2dimg"
	"github.com/llgcode/draw2d/draw2dkit"
	"github.com/llgcode/draw2d/draw2dsvg"
	"github.com/pkg/errors"

	"kartpitsbot/pkg/model"
	"kartpitsbot/pkg/scoring"
)

const (
	slotWidth  = 72.0
	slotHeight = 48.0
	slotGap    = 12.0
	boardPad   = 16.0
	slotRadius = 10.0
)

var (
	// draw2d keeps global font state; serialize drawing
	mu = sync.Mutex{}

	background  = color.RGBA{0x1e, 0x1e, 0x24, 0xff}
	slotOutline = color.RGBA{0xf0, 0xf0, 0xf0, 0xff}
	emptySlot   = color.RGBA{0x3a, 0x3a, 0x44, 0xff}

	bandColors = map[string]color.RGBA{
		scoring.BandPurple:  {0x8e, 0x44, 0xad, 0xff},
		scoring.BandGreen:   {0x27, 0xae, 0x60, 0xff},
		scoring.BandYellow:  {0xf1, 0xc4, 0x0f, 0xff},
		scoring.BandOrange:  {0xe6, 0x7e, 0x22, 0xff},
		scoring.BandRed:     {0xc0, 0x39, 0x2b, 0xff},
		scoring.BandNeutral: {0x34, 0x98, 0xdb, 0xff},
	}
)

// BandColor returns the display color of a band, neutral for unknown names.
func BandColor(band string) color.RGBA {
	if c, ok := bandColors[band]; ok {
		return c
	}
	return bandColors[scoring.BandNeutral]
}

func boardSize(st model.State) (float64, float64) {
	cols := 1
	for _, row := range st.PitRows {
		if len(row) > cols {
			cols = len(row)
		}
	}
	rows := len(st.PitRows)
	if rows == 0 {
		rows = 1
	}
	width := 2*boardPad + float64(cols)*slotWidth + float64(cols-1)*slotGap
	height := 2*boardPad + float64(rows)*slotHeight + float64(rows-1)*slotGap
	return width, height
}

// drawBoard paints one rounded slot per kart, row by row, front of the row
// on the left.
func drawBoard(gc draw2d.GraphicContext, st model.State, width, height float64) {
	gc.SetFillColor(background)
	draw2dkit.Rectangle(gc, 0, 0, width, height)
	gc.Fill()

	gc.SetStrokeColor(slotOutline)
	gc.SetLineWidth(2)
	for r, row := range st.PitRows {
		y := boardPad + float64(r)*(slotHeight+slotGap)
		if len(row) == 0 {
			gc.SetFillColor(emptySlot)
			draw2dkit.RoundedRectangle(gc, boardPad, y, boardPad+slotWidth, y+slotHeight, slotRadius, slotRadius)
			gc.Fill()
			continue
		}
		for i, id := range row {
			x := boardPad + float64(i)*(slotWidth+slotGap)
			band := scoring.BandNeutral
			if k, ok := st.KartByID(id); ok {
				band = k.Band
			}
			gc.SetFillColor(BandColor(band))
			draw2dkit.RoundedRectangle(gc, x, y, x+slotWidth, y+slotHeight, slotRadius, slotRadius)
			gc.FillStroke()
		}
	}
}

// BoardPNG writes the pit board as a PNG image.
func BoardPNG(w io.Writer, st model.State) error {
	mu.Lock()
	defer mu.Unlock()

	width, height := boardSize(st)
	dest := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	gc := draw2dimg.NewGraphicContext(dest)
	drawBoard(gc, st, width, height)
	return errors.Wrap(png.Encode(w, dest), "encode board png")
}

// BoardSVG writes the pit board as an SVG document.
func BoardSVG(w io.Writer, st model.State) error {
	mu.Lock()
	defer mu.Unlock()

	width, height := boardSize(st)
	dest := draw2dsvg.NewSvg()
	gc := draw2dsvg.NewGraphicContext(dest)
	drawBoard(gc, st, width, height)

	var buf bytes.Buffer
	if err := xml.NewEncoder(&buf).Encode(dest); err != nil {
		return errors.Wrap(err, "encode board svg")
	}
	// draw2d leaves the canvas size to the viewer
	sized := bytes.Replace(buf.Bytes(), []byte("<svg "),
		[]byte(fmt.Sprintf(`<svg width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f" `, width, height, width, height)), 1)

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return errors.Wrap(err, "write board svg")
	}
	_, err := w.Write(sized)
	return errors.Wrap(err, "write board svg")
}
