package ardw

import (
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// CoordinateMapper converts tracking-device pixels to layout units and back.
// The device's vertical axis points the other way from the layout's. The
// transform is read on every call, never cached.
type CoordinateMapper struct {
	source func() Transform
}

// NewCoordinateMapper returns a mapper reading its transform from source.
func NewCoordinateMapper(source func() Transform) CoordinateMapper {
	return CoordinateMapper{source: source}
}

// ToLayout maps a device point into layout units.
func (m CoordinateMapper) ToLayout(p Vec2) Vec2 {
	t := m.source()
	return Vec2{p.X/t.Zoom - t.PanX, -p.Y/t.Zoom - t.PanY}
}

// FromLayout is the inverse of ToLayout.
func (m CoordinateMapper) FromLayout(p Vec2) Vec2 {
	t := m.source()
	return Vec2{(p.X + t.PanX) * t.Zoom, -(p.Y + t.PanY) * t.Zoom}
}

// Crosshair pulse, in raster pixels and seconds.
const (
	crosshairArm       = 24.0
	crosshairWidth     = 2.0
	crosshairMinRadius = 6.0
	crosshairMaxRadius = 14.0
	crosshairPeriod    = 0.6
	boardPosMarker     = 16.0
)

// Crosshair is the transient marker of a tracked probe tip. It is not a
// Selection and is never sent to peers.
type Crosshair struct {
	Active bool
	Target Vec2 // layout units

	radius float64
	pulse  *gween.Tween
	rising bool
}

// Set moves the crosshair and starts its pulse if it was hidden.
func (x *Crosshair) Set(p Vec2) {
	x.Target = p
	if x.Active {
		return
	}
	x.Active = true
	x.rising = true
	x.radius = crosshairMinRadius
	x.pulse = gween.New(crosshairMinRadius, crosshairMaxRadius, crosshairPeriod, ease.InOutQuad)
}

// Clear hides the crosshair.
func (x *Crosshair) Clear() {
	x.Active = false
	x.pulse = nil
}

// Radius returns the current ring radius in raster pixels.
func (x *Crosshair) Radius() float64 {
	if x.radius == 0 {
		return crosshairMinRadius
	}
	return x.radius
}

// Update advances the pulse by dt seconds and reports whether the ring
// changed.
func (x *Crosshair) Update(dt float32) bool {
	if !x.Active || x.pulse == nil || dt <= 0 {
		return false
	}
	val, done := x.pulse.Update(dt)
	x.radius = float64(val)
	if done {
		x.rising = !x.rising
		from, to := float32(crosshairMinRadius), float32(crosshairMaxRadius)
		if !x.rising {
			from, to = to, from
		}
		x.pulse = gween.New(from, to, crosshairPeriod, ease.InOutQuad)
	}
	return true
}
