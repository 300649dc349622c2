package analytics

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	fontOnce   sync.Once
	parsedFont *truetype.Font
	fontErr    error
)

// fontFace returns a fresh face per call; truetype faces cache glyphs and are
// not safe to share between goroutines.
func fontFace(size float64) (font.Face, error) {
	fontOnce.Do(func() {
		parsedFont, fontErr = truetype.Parse(goregular.TTF)
	})
	if fontErr != nil {
		return nil, fmt.Errorf("parse font: %w", fontErr)
	}
	return truetype.NewFace(parsedFont, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}

func encodeContext(dc *gg.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// placeholder draws a titled card explaining why a chart could not be drawn.
func placeholder(title, reason string) ([]byte, error) {
	const w, h = 800, 500
	dc := gg.NewContext(w, h)
	dc.SetColor(color.White)
	dc.Clear()

	dc.SetRGB255(200, 200, 200)
	dc.SetLineWidth(2)
	dc.DrawRectangle(10, 10, w-20, h-20)
	dc.Stroke()

	titleFace, err := fontFace(24)
	if err != nil {
		return nil, err
	}
	dc.SetFontFace(titleFace)
	dc.SetRGB255(60, 60, 60)
	dc.DrawStringAnchored(title, w/2, h/2-30, 0.5, 0.5)

	bodyFace, err := fontFace(16)
	if err != nil {
		return nil, err
	}
	dc.SetFontFace(bodyFace)
	dc.SetRGB255(120, 120, 120)
	dc.DrawStringWrapped("No data: "+reason, w/2, h/2+20, 0.5, 0.5, w-120, 1.4, gg.AlignCenter)
	return encodeContext(dc)
}

// heatColor maps a correlation in [-1, 1] onto a blue-white-red scale.
func heatColor(v float64) color.Color {
	if math.IsNaN(v) {
		return color.RGBA{R: 220, G: 220, B: 220, A: 255}
	}
	v = math.Max(-1, math.Min(1, v))
	lerp := func(a, b uint8, t float64) uint8 { return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t)) }
	if v >= 0 {
		return color.RGBA{R: lerp(255, 198, v), G: lerp(255, 40, v), B: lerp(255, 40, v), A: 255}
	}
	t := -v
	return color.RGBA{R: lerp(255, 33, t), G: lerp(255, 102, t), B: lerp(255, 172, t), A: 255}
}

func heatmap(title string, labels []string, m [][]float64) ([]byte, error) {
	const (
		cell   = 80.0
		left   = 130.0
		top    = 70.0
		bottom = 110.0
		right  = 30.0
	)
	n := float64(len(labels))
	w := int(left + n*cell + right)
	h := int(top + n*cell + bottom)
	dc := gg.NewContext(w, h)
	dc.SetColor(color.White)
	dc.Clear()

	titleFace, err := fontFace(20)
	if err != nil {
		return nil, err
	}
	dc.SetFontFace(titleFace)
	dc.SetRGB255(40, 40, 40)
	dc.DrawStringAnchored(title, float64(w)/2, top/2, 0.5, 0.5)

	labelFace, err := fontFace(14)
	if err != nil {
		return nil, err
	}
	dc.SetFontFace(labelFace)
	for i, row := range m {
		y := top + float64(i)*cell
		for j, v := range row {
			x := left + float64(j)*cell
			dc.SetColor(heatColor(v))
			dc.DrawRectangle(x, y, cell, cell)
			dc.Fill()

			text := "n/a"
			if !math.IsNaN(v) {
				text = fmt.Sprintf("%.2f", v)
			}
			if !math.IsNaN(v) && math.Abs(v) > 0.6 {
				dc.SetColor(color.White)
			} else {
				dc.SetRGB255(30, 30, 30)
			}
			dc.DrawStringAnchored(text, x+cell/2, y+cell/2, 0.5, 0.5)
		}
	}

	dc.SetRGB255(60, 60, 60)
	for i, l := range labels {
		dc.DrawStringAnchored(l, left-10, top+float64(i)*cell+cell/2, 1, 0.5)

		x := left + float64(i)*cell + cell/2
		y := top + n*cell + 12
		dc.Push()
		dc.RotateAbout(gg.Radians(-40), x, y)
		dc.DrawStringAnchored(l, x, y, 1, 0.5)
		dc.Pop()
	}
	return encodeContext(dc)
}
