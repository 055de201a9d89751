package ardw

import (
	"image"

	"github.com/gogpu/gg"
)

// Canvas is the raster a surface layer draws into. *gg.Context satisfies it;
// tests substitute a recording implementation through WithCanvasFactory.
//
// Path coordinates are transformed by the current matrix when they are added,
// and stroke widths scale with it, so geometry is always emitted in document
// units after SetTransform.
type Canvas interface {
	Width() int
	Height() int
	Image() image.Image
	Clear()

	Push()
	Pop()
	Identity()
	SetTransform(m gg.Matrix)
	Translate(x, y float64)
	Scale(x, y float64)
	Rotate(angle float64)

	SetHexColor(hex string)
	SetLineWidth(width float64)
	SetLineCap(lineCap gg.LineCap)
	SetLineJoin(join gg.LineJoin)
	SetFillRule(rule gg.FillRule)

	MoveTo(x, y float64)
	LineTo(x, y float64)
	CubicTo(c1x, c1y, c2x, c2y, x, y float64)
	ClosePath()
	Fill() error
	Stroke() error

	DrawImageEx(img *gg.ImageBuf, opts gg.DrawImageOptions)
}

// CanvasFactory allocates a canvas of the given pixel size.
type CanvasFactory func(width, height int) Canvas

// newGGCanvas is the default factory: a software-rendered gg context.
func newGGCanvas(width, height int) Canvas {
	return gg.NewContext(max(width, 1), max(height, 1))
}

// appendPath replays a document-space path into the canvas' current path.
func appendPath(c Canvas, p *gg.Path) {
	var cur gg.Point
	for _, el := range p.Elements() {
		switch e := el.(type) {
		case gg.MoveTo:
			c.MoveTo(e.Point.X, e.Point.Y)
			cur = e.Point
		case gg.LineTo:
			c.LineTo(e.Point.X, e.Point.Y)
			cur = e.Point
		case gg.QuadTo:
			// Degree elevation: cubic controls sit 2/3 of the way to the quad control.
			c1 := cur.Add(e.Control.Sub(cur).Mul(2.0 / 3.0))
			c2 := e.Point.Add(e.Control.Sub(e.Point).Mul(2.0 / 3.0))
			c.CubicTo(c1.X, c1.Y, c2.X, c2.Y, e.Point.X, e.Point.Y)
			cur = e.Point
		case gg.CubicTo:
			c.CubicTo(e.Control1.X, e.Control1.Y, e.Control2.X, e.Control2.Y, e.Point.X, e.Point.Y)
			cur = e.Point
		case gg.Close:
			c.ClosePath()
		}
	}
}
