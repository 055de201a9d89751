package ardw

import (
	"fmt"
	"math"
	"time"
)

// Vec2 is a 2D vector used for positions, offsets and sizes throughout the API.
type Vec2 struct {
	X, Y float64
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Scale returns v scaled by k.
func (v Vec2) Scale(k float64) Vec2 { return Vec2{v.X * k, v.Y * k} }

// Len returns the Euclidean length of v.
func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Y) }

// rotateVector rotates v by deg degrees around the origin.
func rotateVector(v Vec2, deg float64) Vec2 {
	sin, cos := math.Sincos(deg * math.Pi / 180)
	return Vec2{v.X*cos - v.Y*sin, v.X*sin + v.Y*cos}
}

// BBox is an axis-aligned bounding box in document units.
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// Width returns the horizontal extent of the box.
func (b BBox) Width() float64 { return b.MaxX - b.MinX }

// Height returns the vertical extent of the box.
func (b BBox) Height() float64 { return b.MaxY - b.MinY }

// Center returns the midpoint of the box.
func (b BBox) Center() Vec2 { return Vec2{(b.MinX + b.MaxX) / 2, (b.MinY + b.MaxY) / 2} }

// Contains reports whether p lies inside the box. Points on the edge are inside.
func (b BBox) Contains(p Vec2) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// Expand returns the box grown by pad on every side.
func (b BBox) Expand(pad float64) BBox {
	return BBox{b.MinX - pad, b.MinY - pad, b.MaxX + pad, b.MaxY + pad}
}

// rotated returns the bounding box of b's four corners rotated by deg degrees.
func (b BBox) rotated(deg float64) BBox {
	corners := [4]Vec2{
		{b.MinX, b.MinY}, {b.MinX, b.MaxY}, {b.MaxX, b.MinY}, {b.MaxX, b.MaxY},
	}
	out := BBox{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	for _, c := range corners {
		r := rotateVector(c, deg)
		out.MinX = math.Min(out.MinX, r.X)
		out.MinY = math.Min(out.MinY, r.Y)
		out.MaxX = math.Max(out.MaxX, r.X)
		out.MaxY = math.Max(out.MaxY, r.Y)
	}
	return out
}

// SurfaceID identifies one of the rendering surfaces.
type SurfaceID uint8

const (
	SurfaceFront     SurfaceID = iota // board layout seen from the top
	SurfaceBack                       // board layout seen from the bottom, mirrored
	SurfaceSchematic                  // the currently displayed schematic sheet
)

// AllSurfaces lists every surface in redraw order.
var AllSurfaces = []SurfaceID{SurfaceFront, SurfaceBack, SurfaceSchematic}

// String returns the short name used in logs and scripts.
func (id SurfaceID) String() string {
	switch id {
	case SurfaceFront:
		return "front"
	case SurfaceBack:
		return "back"
	case SurfaceSchematic:
		return "schematic"
	default:
		return fmt.Sprintf("surface(%d)", uint8(id))
	}
}

// IsLayout reports whether the surface shows board layout.
func (id SurfaceID) IsLayout() bool { return id == SurfaceFront || id == SurfaceBack }

// Layer returns the board layer letter ("F" or "B") for layout surfaces.
func (id SurfaceID) Layer() string {
	if id == SurfaceBack {
		return "B"
	}
	return "F"
}

// ParseSurfaceID maps a surface name back to its id.
func ParseSurfaceID(name string) (SurfaceID, error) {
	switch name {
	case "front", "F":
		return SurfaceFront, nil
	case "back", "B":
		return SurfaceBack, nil
	case "schematic", "S":
		return SurfaceSchematic, nil
	}
	return 0, fmt.Errorf("unknown surface %q", name)
}

// MouseButton identifies a pointer button. Values follow the DOM numbering
// used by pointer events.
type MouseButton uint8

const (
	MouseButtonLeft   MouseButton = iota // primary button, also every touch
	MouseButtonMiddle                    // wheel click
	MouseButtonRight                     // secondary button
)

// EventType identifies a kind of input event.
type EventType uint8

const (
	EventPointerDown   EventType = iota // a button was pressed or a touch began
	EventPointerMove                    // a pointer moved
	EventPointerUp                      // a button was released or a touch ended
	EventPointerCancel                  // the platform cancelled the pointer
	EventPointerLeave                   // the pointer left the surface
	EventWheel                          // the wheel scrolled
)

// String returns the event name used in logs.
func (t EventType) String() string {
	switch t {
	case EventPointerDown:
		return "pointerdown"
	case EventPointerMove:
		return "pointermove"
	case EventPointerUp:
		return "pointerup"
	case EventPointerCancel:
		return "pointercancel"
	case EventPointerLeave:
		return "pointerleave"
	case EventWheel:
		return "wheel"
	default:
		return fmt.Sprintf("event(%d)", uint8(t))
	}
}

// DeltaMode is the unit of a wheel delta.
type DeltaMode uint8

const (
	DeltaPixel DeltaMode = iota
	DeltaLine
	DeltaPage
)

// Event is one input event addressed to a surface. X and Y are in surface
// pixels (before device pixel scaling), relative to the surface's top-left.
type Event struct {
	Type      EventType
	Surface   SurfaceID
	PointerID int
	X, Y      float64
	Button    MouseButton
	// Time is the event timestamp. A zero Time is stamped with the App clock
	// when the event is dispatched.
	Time time.Time
	// Wheel fields (valid for EventWheel)
	DeltaY    float64
	DeltaMode DeltaMode
}
