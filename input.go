package ardw

import (
	"math"
	"time"
)

// GestureConfig holds the tap and wheel thresholds.
type GestureConfig struct {
	// TapTravel is the Manhattan travel in pixels below which a release is a tap.
	TapTravel float64
	// TapDuration is the longest press that still counts as a tap.
	TapDuration time.Duration
	// WheelLineScale and WheelPageScale convert line and page wheel deltas
	// to pixels.
	WheelLineScale float64
	WheelPageScale float64
	// MinWheelZoom and MaxWheelZoom bound the zoom factor of one wheel event.
	MinWheelZoom float64
	MaxWheelZoom float64
}

// DefaultGestureConfig returns the thresholds of a desktop browser.
func DefaultGestureConfig() GestureConfig {
	return GestureConfig{
		TapTravel:      10,
		TapDuration:    500 * time.Millisecond,
		WheelLineScale: 30,
		WheelPageScale: 300,
		MinWheelZoom:   0.5,
		MaxWheelZoom:   2,
	}
}

// --- Per-pointer state ---

type pointerState struct {
	lastX, lastY float64
	travel       float64 // Manhattan distance since the press
	down         time.Time
}

// Dispatch applies one input event to its surface. Events are handled to
// completion in the order they are dispatched.
func (a *App) Dispatch(ev Event) {
	s := a.Surface(ev.Surface)
	if s == nil {
		Logger().Warn("event for unknown surface", "surface", ev.Surface.String(), "event", ev.Type.String())
		return
	}
	if ev.Time.IsZero() {
		ev.Time = a.clock()
	}
	switch ev.Type {
	case EventPointerDown:
		a.handlePointerDown(s, ev)
	case EventPointerMove:
		a.handlePointerMove(s, ev)
	case EventPointerUp:
		a.handlePointerUp(s, ev)
	case EventPointerCancel, EventPointerLeave:
		a.handlePointerLeave(s, ev)
	case EventWheel:
		a.handleWheel(s, ev)
	}
}

func (a *App) handlePointerDown(s *Surface, ev Event) {
	switch ev.Button {
	case MouseButtonRight:
		s.anotherPointerTapped = false
		a.Reset(s.ID)
	case MouseButtonLeft, MouseButtonMiddle:
		s.pointers[ev.PointerID] = &pointerState{
			lastX: ev.X,
			lastY: ev.Y,
			down:  ev.Time,
		}
	}
}

func (a *App) handlePointerMove(s *Surface, ev Event) {
	ps, ok := s.pointers[ev.PointerID]
	if !ok {
		return
	}
	dx, dy := ev.X-ps.lastX, ev.Y-ps.lastY
	ps.travel += math.Abs(dx) + math.Abs(dy)

	switch len(s.pointers) {
	case 1:
		s.Transform.Pan(dx, dy, s.DeviceScale)
	case 2:
		var other *pointerState
		for id, p := range s.pointers {
			if id != ev.PointerID {
				other = p
			}
		}
		oldDist := math.Hypot(ps.lastX-other.lastX, ps.lastY-other.lastY)
		newDist := math.Hypot(ev.X-other.lastX, ev.Y-other.lastY)
		anchor := Vec2{other.lastX, other.lastY}
		if err := s.Transform.Pinch(oldDist, newDist, anchor, s.DeviceScale); err != nil {
			Logger().Debug("discarding pinch step", "surface", s.ID.String(), "err", err)
		}
	}

	// Commit before the next event so pinch compares consecutive positions.
	ps.lastX, ps.lastY = ev.X, ev.Y

	if a.settings.RedrawOnDrag {
		a.redraw(s)
	}
}

func (a *App) handlePointerUp(s *Surface, ev Event) {
	ps, ok := s.pointers[ev.PointerID]
	if !ok {
		return
	}
	ps.travel += math.Abs(ev.X-ps.lastX) + math.Abs(ev.Y-ps.lastY)
	elapsed := ev.Time.Sub(ps.down)
	tap := ev.Button == MouseButtonLeft &&
		ps.travel < a.gestures.TapTravel &&
		elapsed <= a.gestures.TapDuration

	if tap {
		if len(s.pointers) == 1 {
			if s.anotherPointerTapped {
				a.Reset(s.ID)
			} else {
				a.pick(s, ev.X, ev.Y)
			}
			s.anotherPointerTapped = false
		} else {
			s.anotherPointerTapped = true
		}
	} else {
		if !a.settings.RedrawOnDrag {
			a.redraw(s)
		}
		s.anotherPointerTapped = false
	}
	delete(s.pointers, ev.PointerID)
}

func (a *App) handlePointerLeave(s *Surface, ev Event) {
	if _, ok := s.pointers[ev.PointerID]; !ok {
		return
	}
	delete(s.pointers, ev.PointerID)
	s.anotherPointerTapped = false
	if !a.settings.RedrawOnDrag {
		a.redraw(s)
	}
}

func (a *App) handleWheel(s *Surface, ev Event) {
	d := ev.DeltaY
	switch ev.DeltaMode {
	case DeltaLine:
		d *= a.gestures.WheelLineScale
	case DeltaPage:
		d *= a.gestures.WheelPageScale
	}
	m := clamp(math.Pow(1.1, -d/40), a.gestures.MinWheelZoom, a.gestures.MaxWheelZoom)
	if err := s.Transform.ZoomAbout(m, Vec2{ev.X, ev.Y}, s.DeviceScale); err != nil {
		Logger().Debug("discarding wheel zoom", "surface", s.ID.String(), "err", err)
		return
	}
	a.redraw(s)
}

// pick resolves a tap at (x, y) in layout pixels to a selection.
func (a *App) pick(s *Surface, x, y float64) {
	q := PickQuery{
		Surface: s.ID,
		Sheet:   s.Sheet,
		Point:   s.ScreenToDocument(x, y),
		Pads:    a.settings.RenderPads,
		Tracks:  a.settings.RenderTracks,
	}
	a.Select(a.picker.Pick(q))
}
