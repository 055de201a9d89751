package ardw

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/gogpu/gg"
	"github.com/tidwall/gjson"
)

// Drawing is a graphic item on a board layer. The set of implementations is
// closed: *SegmentDrawing, *RectDrawing, *CircleDrawing, *ArcDrawing,
// *CurveDrawing, *PolygonDrawing and *TextDrawing.
type Drawing interface {
	isDrawing()
}

// SegmentDrawing is a straight stroked line.
type SegmentDrawing struct {
	Start Vec2    `json:"start"`
	End   Vec2    `json:"end"`
	Width float64 `json:"width"`
}

// RectDrawing is a stroked axis-aligned rectangle between two corners.
type RectDrawing struct {
	Start Vec2    `json:"start"`
	End   Vec2    `json:"end"`
	Width float64 `json:"width"`
}

// CircleDrawing is a stroked or filled circle.
type CircleDrawing struct {
	Start  Vec2    `json:"start"`
	Radius float64 `json:"radius"`
	Width  float64 `json:"width"`
	Filled bool    `json:"filled"`
}

// ArcDrawing is a stroked arc centered at Start. Angles are in degrees.
type ArcDrawing struct {
	Start      Vec2    `json:"start"`
	Radius     float64 `json:"radius"`
	StartAngle float64 `json:"startangle"`
	EndAngle   float64 `json:"endangle"`
	Width      float64 `json:"width"`
}

// CurveDrawing is a stroked cubic bezier.
type CurveDrawing struct {
	Start Vec2    `json:"start"`
	End   Vec2    `json:"end"`
	CPA   Vec2    `json:"cpa"`
	CPB   Vec2    `json:"cpb"`
	Width float64 `json:"width"`
}

// PolygonDrawing is a set of closed outlines placed at Pos and rotated by
// -Angle degrees. Filled defaults to true.
type PolygonDrawing struct {
	Pos      Vec2     `json:"pos"`
	Angle    float64  `json:"angle"`
	Polygons [][]Vec2 `json:"polygons"`
	Width    float64  `json:"width"`
	Filled   *bool    `json:"filled"`
}

// TextDrawing is stroke-font text. Ref and Val mark reference designator and
// value fields, which have their own visibility toggles.
type TextDrawing struct {
	Pos       Vec2     `json:"pos"`
	Text      string   `json:"text"`
	Height    float64  `json:"height"`
	Width     float64  `json:"width"`
	Justify   [2]int   `json:"justify"`
	Thickness float64  `json:"thickness"`
	Attr      []string `json:"attr"`
	Angle     float64  `json:"angle"`
	Ref       bool     `json:"-"`
	Val       bool     `json:"-"`
}

func (*SegmentDrawing) isDrawing() {}
func (*RectDrawing) isDrawing()    {}
func (*CircleDrawing) isDrawing()  {}
func (*ArcDrawing) isDrawing()     {}
func (*CurveDrawing) isDrawing()   {}
func (*PolygonDrawing) isDrawing() {}
func (*TextDrawing) isDrawing()    {}

// hasAttr reports whether the text carries the named attribute.
func (t *TextDrawing) hasAttr(name string) bool {
	for _, a := range t.Attr {
		if a == name {
			return true
		}
	}
	return false
}

// decodeDrawing picks the concrete drawing type from the "type" field. Text
// items carry no type and are recognized by their "text" field.
func decodeDrawing(r gjson.Result) (Drawing, error) {
	var d Drawing
	switch typ := r.Get("type").String(); typ {
	case "segment":
		d = &SegmentDrawing{}
	case "rect":
		d = &RectDrawing{}
	case "circle":
		d = &CircleDrawing{}
	case "arc":
		d = &ArcDrawing{}
	case "curve":
		d = &CurveDrawing{}
	case "polygon":
		d = &PolygonDrawing{}
	case "":
		if !r.Get("text").Exists() {
			return nil, fmt.Errorf("drawing: no type and no text")
		}
		t := &TextDrawing{
			Ref: r.Get("ref").Exists(),
			Val: r.Get("val").Exists(),
		}
		d = t
	default:
		return nil, fmt.Errorf("drawing: unknown type %q", typ)
	}
	if err := json.Unmarshal([]byte(r.Raw), d); err != nil {
		return nil, fmt.Errorf("drawing: %w", err)
	}
	return d, nil
}

type drawingList []Drawing

func (l *drawingList) UnmarshalJSON(data []byte) error {
	r := gjson.ParseBytes(data)
	if !r.IsArray() {
		return fmt.Errorf("drawings: expected array, got %s", r.Type)
	}
	var out drawingList
	for _, item := range r.Array() {
		d, err := decodeDrawing(item)
		if err != nil {
			Logger().Warn("skipping drawing", "err", err)
			continue
		}
		out = append(out, d)
	}
	*l = out
	return nil
}

// drawStyle carries what a drawing needs from the surface being painted.
type drawStyle struct {
	color  string
	scale  float64 // document-to-pixel scale, for hairline minimum widths
	font   map[string]Glyph
	refs   bool
	values bool
}

// minWidth keeps strokes at least one pixel wide.
func (st drawStyle) minWidth(w float64) float64 {
	if st.scale <= 0 {
		return w
	}
	return math.Max(w, 1/st.scale)
}

// drawDrawing paints one drawing in the canvas' current transform.
func drawDrawing(c Canvas, d Drawing, st drawStyle) {
	c.SetHexColor(st.color)
	c.SetLineCap(gg.LineCapRound)
	c.SetLineJoin(gg.LineJoinRound)
	switch d := d.(type) {
	case *SegmentDrawing:
		c.SetLineWidth(st.minWidth(d.Width))
		c.MoveTo(d.Start.X, d.Start.Y)
		c.LineTo(d.End.X, d.End.Y)
		strokeOrWarn(c)
	case *RectDrawing:
		c.SetLineWidth(st.minWidth(d.Width))
		c.MoveTo(d.Start.X, d.Start.Y)
		c.LineTo(d.End.X, d.Start.Y)
		c.LineTo(d.End.X, d.End.Y)
		c.LineTo(d.Start.X, d.End.Y)
		c.ClosePath()
		strokeOrWarn(c)
	case *CircleDrawing:
		p := gg.NewPath()
		p.Circle(d.Start.X, d.Start.Y, d.Radius)
		appendPath(c, p)
		if d.Filled {
			fillOrWarn(c)
		} else {
			c.SetLineWidth(st.minWidth(d.Width))
			strokeOrWarn(c)
		}
	case *ArcDrawing:
		c.SetLineWidth(st.minWidth(d.Width))
		p := gg.NewPath()
		p.Arc(d.Start.X, d.Start.Y, d.Radius, deg2rad(d.StartAngle), deg2rad(d.EndAngle))
		appendPath(c, p)
		strokeOrWarn(c)
	case *CurveDrawing:
		c.SetLineWidth(st.minWidth(d.Width))
		c.MoveTo(d.Start.X, d.Start.Y)
		c.CubicTo(d.CPA.X, d.CPA.Y, d.CPB.X, d.CPB.Y, d.End.X, d.End.Y)
		strokeOrWarn(c)
	case *PolygonDrawing:
		c.Push()
		c.Translate(d.Pos.X, d.Pos.Y)
		c.Rotate(-deg2rad(d.Angle))
		appendPath(c, polygonsPath(d.Polygons))
		if d.Filled == nil || *d.Filled {
			fillOrWarn(c)
		} else {
			c.SetLineWidth(st.minWidth(d.Width))
			strokeOrWarn(c)
		}
		c.Pop()
	case *TextDrawing:
		if (d.Ref && !st.refs) || (d.Val && !st.values) {
			return
		}
		drawText(c, d, st)
	}
}

// polygonsPath builds a closed path from polygon outlines.
func polygonsPath(polys [][]Vec2) *gg.Path {
	p := gg.NewPath()
	for _, poly := range polys {
		if len(poly) == 0 {
			continue
		}
		p.MoveTo(poly[0].X, poly[0].Y)
		for _, pt := range poly[1:] {
			p.LineTo(pt.X, pt.Y)
		}
		p.Close()
	}
	return p
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }

func fillOrWarn(c Canvas) {
	if err := c.Fill(); err != nil {
		Logger().Debug("fill failed", "err", err)
	}
}

func strokeOrWarn(c Canvas) {
	if err := c.Stroke(); err != nil {
		Logger().Debug("stroke failed", "err", err)
	}
}
