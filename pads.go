package ardw

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/gogpu/gg"
	"github.com/tidwall/gjson"
)

// ChamferMask selects which corners of a chamfered rectangle are cut.
type ChamferMask uint8

const (
	ChamferTopLeft     ChamferMask = 1 << iota // 1
	ChamferTopRight                            // 2
	ChamferBottomLeft                          // 4
	ChamferBottomRight                         // 8
)

// PadShape is the copper outline of a pad. The set of implementations is
// closed: RectShape, OvalShape, CircleShape, RoundRectShape,
// ChamferedRectShape and CustomShape.
type PadShape interface {
	isPadShape()
}

// RectShape is a plain rectangle of the pad size.
type RectShape struct{}

// OvalShape is a stadium: a rounded rectangle with radius min(w, h)/2.
type OvalShape struct{}

// CircleShape is a circle of diameter size.X.
type CircleShape struct{}

// RoundRectShape has all four corners rounded by Radius.
type RoundRectShape struct {
	Radius float64
}

// ChamferedRectShape cuts the corners in Corners by min(w, h)*Ratio and rounds
// the others by Radius.
type ChamferedRectShape struct {
	Radius  float64
	Corners ChamferMask
	Ratio   float64
}

// CustomShape is a set of polygons in pad-local coordinates.
type CustomShape struct {
	Polygons [][]Vec2
}

func (RectShape) isPadShape()          {}
func (OvalShape) isPadShape()          {}
func (CircleShape) isPadShape()        {}
func (RoundRectShape) isPadShape()     {}
func (ChamferedRectShape) isPadShape() {}
func (CustomShape) isPadShape()        {}

// DrillShape is the shape of a through-hole drill.
type DrillShape uint8

const (
	DrillCircle DrillShape = iota
	DrillOblong
)

// Pad is a footprint pad. Pos is in board coordinates; Offset shifts the
// shape within the rotated pad frame.
type Pad struct {
	Layers    []string
	Pos       Vec2
	Size      Vec2
	Angle     float64
	Shape     PadShape
	Through   bool // through-hole pad with a drill
	Drill     DrillShape
	DrillSize Vec2
	Offset    Vec2
	Pin1      bool
	Net       string
	Name      string // pad number, matched against schematic pin numbers
}

func (p *Pad) UnmarshalJSON(data []byte) error {
	var raw struct {
		Layers    []string `json:"layers"`
		Pos       Vec2     `json:"pos"`
		Size      Vec2     `json:"size"`
		Angle     float64  `json:"angle"`
		Type      string   `json:"type"`
		DrillSize Vec2     `json:"drillsize"`
		Offset    Vec2     `json:"offset"`
		Pin1      int      `json:"pin1"`
		Net       string   `json:"net"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("pad: %w", err)
	}
	r := gjson.ParseBytes(data)
	*p = Pad{
		Layers:    raw.Layers,
		Pos:       raw.Pos,
		Size:      raw.Size,
		Angle:     raw.Angle,
		Through:   raw.Type == "th",
		DrillSize: raw.DrillSize,
		Offset:    raw.Offset,
		Pin1:      raw.Pin1 != 0,
		Net:       raw.Net,
		Name:      r.Get("padname").String(),
	}
	if r.Get("drillshape").String() == "oblong" {
		p.Drill = DrillOblong
	}
	switch shape := r.Get("shape").String(); shape {
	case "rect":
		p.Shape = RectShape{}
	case "oval":
		p.Shape = OvalShape{}
	case "circle":
		p.Shape = CircleShape{}
	case "roundrect":
		p.Shape = RoundRectShape{Radius: r.Get("radius").Float()}
	case "chamfrect":
		p.Shape = ChamferedRectShape{
			Radius:  r.Get("radius").Float(),
			Corners: ChamferMask(r.Get("chamfpos").Int()),
			Ratio:   r.Get("chamfratio").Float(),
		}
	case "custom":
		var polys [][]Vec2
		if err := json.Unmarshal([]byte(r.Get("polygons").Raw), &polys); err != nil {
			return fmt.Errorf("pad polygons: %w", err)
		}
		p.Shape = CustomShape{Polygons: polys}
	default:
		return fmt.Errorf("pad: unknown shape %q", shape)
	}
	return nil
}

// OnLayer reports whether the pad has copper on the given layer.
func (p *Pad) OnLayer(layer string) bool {
	for _, l := range p.Layers {
		if l == layer {
			return true
		}
	}
	return false
}

// kappa is the cubic bezier control distance for a quarter circle.
const kappa = 0.5522847498307936

// pathBuilder wraps gg.Path with a canvas-style arcTo for right-angle corners.
type pathBuilder struct {
	p   *gg.Path
	cur Vec2
}

func newPathBuilder() *pathBuilder { return &pathBuilder{p: gg.NewPath()} }

func (b *pathBuilder) moveTo(x, y float64) {
	b.p.MoveTo(x, y)
	b.cur = Vec2{x, y}
}

func (b *pathBuilder) lineTo(x, y float64) {
	b.p.LineTo(x, y)
	b.cur = Vec2{x, y}
}

// arcTo rounds the corner at (cx, cy) between the current point and
// (nx, ny) with radius r, ending on the tangent point toward (nx, ny).
func (b *pathBuilder) arcTo(cx, cy, nx, ny, r float64) {
	corner := Vec2{cx, cy}
	toCur := b.cur.Sub(corner)
	toNext := Vec2{nx, ny}.Sub(corner)
	lc, ln := toCur.Len(), toNext.Len()
	if r <= 0 || lc == 0 || ln == 0 {
		b.lineTo(cx, cy)
		return
	}
	r = math.Min(r, math.Min(lc, ln))
	t1 := corner.Add(toCur.Scale(r / lc))
	t2 := corner.Add(toNext.Scale(r / ln))
	b.lineTo(t1.X, t1.Y)
	c1 := t1.Add(corner.Sub(t1).Scale(kappa))
	c2 := t2.Add(corner.Sub(t2).Scale(kappa))
	b.p.CubicTo(c1.X, c1.Y, c2.X, c2.Y, t2.X, t2.Y)
	b.cur = t2
}

// chamferedRectPath builds a rectangle of the given size centered on the
// origin. Corners in the mask are cut by min(w, h)*ratio; the others are
// rounded with radius.
func chamferedRectPath(size Vec2, radius float64, mask ChamferMask, ratio float64) *gg.Path {
	w, h := size.X, size.Y
	x, y := -w/2, -h/2
	off := math.Min(w, h) * ratio
	b := newPathBuilder()
	b.moveTo(x, 0)
	if mask&ChamferBottomLeft != 0 {
		b.lineTo(x, y+h-off)
		b.lineTo(x+off, y+h)
		b.lineTo(0, y+h)
	} else {
		b.arcTo(x, y+h, x+w, y+h, radius)
	}
	if mask&ChamferBottomRight != 0 {
		b.lineTo(x+w-off, y+h)
		b.lineTo(x+w, y+h-off)
		b.lineTo(x+w, 0)
	} else {
		b.arcTo(x+w, y+h, x+w, y, radius)
	}
	if mask&ChamferTopRight != 0 {
		b.lineTo(x+w, y+off)
		b.lineTo(x+w-off, y)
		b.lineTo(0, y)
	} else {
		b.arcTo(x+w, y, x, y, radius)
	}
	if mask&ChamferTopLeft != 0 {
		b.lineTo(x+off, y)
		b.lineTo(x, y+off)
		b.lineTo(x, 0)
	} else {
		b.arcTo(x, y, x, y+h, radius)
	}
	b.p.Close()
	return b.p
}

func oblongPath(size Vec2) *gg.Path {
	return chamferedRectPath(size, math.Min(size.X, size.Y)/2, 0, 0)
}

func circlePath(r float64) *gg.Path {
	p := gg.NewPath()
	p.Circle(0, 0, r)
	return p
}

// shapePath resolves a pad shape into a path centered on the pad origin.
func shapePath(shape PadShape, size Vec2) *gg.Path {
	switch s := shape.(type) {
	case RectShape:
		p := gg.NewPath()
		p.Rectangle(-size.X/2, -size.Y/2, size.X, size.Y)
		return p
	case OvalShape:
		return oblongPath(size)
	case CircleShape:
		return circlePath(size.X / 2)
	case RoundRectShape:
		return chamferedRectPath(size, s.Radius, 0, 0)
	case ChamferedRectShape:
		return chamferedRectPath(size, s.Radius, s.Corners, s.Ratio)
	case CustomShape:
		return polygonsPath(s.Polygons)
	default:
		panic(fmt.Sprintf("ardw: unhandled pad shape %T", shape))
	}
}

// padKey addresses a pad by footprint and pad index.
type padKey struct {
	footprint, pad int
}

// padCache memoizes resolved pad and drill paths. It is owned by the App,
// whose board document never changes after NewApp.
type padCache struct {
	pads  map[padKey]*gg.Path
	holes map[padKey]*gg.Path
}

func newPadCache() *padCache {
	return &padCache{
		pads:  make(map[padKey]*gg.Path),
		holes: make(map[padKey]*gg.Path),
	}
}

func (c *padCache) padPath(k padKey, p *Pad) *gg.Path {
	if path, ok := c.pads[k]; ok {
		return path
	}
	path := shapePath(p.Shape, p.Size)
	c.pads[k] = path
	return path
}

func (c *padCache) holePath(k padKey, p *Pad) *gg.Path {
	if path, ok := c.holes[k]; ok {
		return path
	}
	var path *gg.Path
	if p.Drill == DrillOblong {
		path = oblongPath(p.DrillSize)
	} else {
		path = circlePath(p.DrillSize.X / 2)
	}
	c.holes[k] = path
	return path
}

// drawPad fills (or outlines) one pad in color.
func drawPad(c Canvas, cache *padCache, k padKey, p *Pad, color string, outline bool) {
	c.Push()
	defer c.Pop()
	c.Translate(p.Pos.X, p.Pos.Y)
	c.Rotate(-deg2rad(p.Angle))
	c.Translate(p.Offset.X, p.Offset.Y)
	c.SetHexColor(color)
	appendPath(c, cache.padPath(k, p))
	if outline {
		strokeOrWarn(c)
	} else {
		fillOrWarn(c)
	}
}

// drawPadHole fills the drill of a through-hole pad.
func drawPadHole(c Canvas, cache *padCache, k padKey, p *Pad, color string) {
	if !p.Through {
		return
	}
	c.Push()
	defer c.Pop()
	c.Translate(p.Pos.X, p.Pos.Y)
	c.Rotate(-deg2rad(p.Angle))
	c.SetHexColor(color)
	appendPath(c, cache.holePath(k, p))
	fillOrWarn(c)
}
