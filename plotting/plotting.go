// Package plotting は分類評価の図 (混同行列、ROC曲線、PR曲線) を gonum/plot で描画します。
package plotting

import (
	"bytes"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgsvg"

	"github.com/YuminosukeSato/binclass/pkg/errors"
)

const (
	// DefaultWidth は図の既定の幅
	DefaultWidth = 5 * vg.Inch
	// DefaultHeight は図の既定の高さ
	DefaultHeight = 4 * vg.Inch
)

// Format selects the image encoding of a figure
type Format string

const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

// Encode draws p onto a canvas of the given size and returns the encoded image.
// Zero width or height falls back to DefaultWidth / DefaultHeight.
func Encode(p *plot.Plot, format Format, width, height vg.Length) ([]byte, error) {
	if p == nil {
		return nil, errors.NewValueError("plotting.Encode", "plot is nil")
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	var buf bytes.Buffer
	switch format {
	case FormatSVG:
		c := vgsvg.New(width, height)
		p.Draw(draw.New(c))
		if _, err := c.WriteTo(&buf); err != nil {
			return nil, errors.Wrap(err, "encode svg")
		}
	case FormatPNG:
		c := vgimg.New(width, height)
		p.Draw(draw.New(c))
		if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(&buf); err != nil {
			return nil, errors.Wrap(err, "encode png")
		}
	default:
		return nil, errors.NewValueError("plotting.Encode", "unsupported format: "+string(format))
	}
	return buf.Bytes(), nil
}

// newPlot は共通の体裁を持つ plot を作る
func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.BackgroundColor = color.White
	return p
}
