package ardw

import "time"

// syntheticStep is the spacing of timestamps in generated event sequences.
const syntheticStep = 16 * time.Millisecond

// Inject queues events to be dispatched one per Update call. Use the helpers
// below to build tap, drag, pinch and wheel sequences.
func (a *App) Inject(events ...Event) {
	a.injectQueue = append(a.injectQueue, events...)
}

// Pending reports how many injected events have not been dispatched yet.
func (a *App) Pending() int { return len(a.injectQueue) }

// TapEvents returns a left-button press and release at (x, y), start at t.
func TapEvents(id SurfaceID, x, y float64, t time.Time) []Event {
	return []Event{
		{Type: EventPointerDown, Surface: id, X: x, Y: y, Time: t},
		{Type: EventPointerUp, Surface: id, X: x, Y: y, Time: t.Add(syntheticStep)},
	}
}

// DragEvents returns a press at from, steps linearly interpolated moves and
// a release at to. Each event is syntheticStep after the previous one.
func DragEvents(id SurfaceID, from, to Vec2, steps int, t time.Time) []Event {
	steps = max(steps, 1)
	out := make([]Event, 0, steps+2)
	out = append(out, Event{Type: EventPointerDown, Surface: id, X: from.X, Y: from.Y, Time: t})
	for i := 1; i <= steps; i++ {
		k := float64(i) / float64(steps)
		p := from.Add(to.Sub(from).Scale(k))
		t = t.Add(syntheticStep)
		out = append(out, Event{Type: EventPointerMove, Surface: id, X: p.X, Y: p.Y, Time: t})
	}
	out = append(out, Event{Type: EventPointerUp, Surface: id, X: to.X, Y: to.Y, Time: t.Add(syntheticStep)})
	return out
}

// PinchEvents returns a two-pointer gesture: pointer 0 holds still at anchor
// while pointer 1 moves from from to to.
func PinchEvents(id SurfaceID, anchor, from, to Vec2, steps int, t time.Time) []Event {
	steps = max(steps, 1)
	out := []Event{
		{Type: EventPointerDown, Surface: id, PointerID: 0, X: anchor.X, Y: anchor.Y, Time: t},
		{Type: EventPointerDown, Surface: id, PointerID: 1, X: from.X, Y: from.Y, Time: t},
	}
	for i := 1; i <= steps; i++ {
		k := float64(i) / float64(steps)
		p := from.Add(to.Sub(from).Scale(k))
		t = t.Add(syntheticStep)
		out = append(out, Event{Type: EventPointerMove, Surface: id, PointerID: 1, X: p.X, Y: p.Y, Time: t})
	}
	t = t.Add(syntheticStep)
	return append(out,
		Event{Type: EventPointerUp, Surface: id, PointerID: 1, X: to.X, Y: to.Y, Time: t},
		Event{Type: EventPointerUp, Surface: id, PointerID: 0, X: anchor.X, Y: anchor.Y, Time: t},
	)
}

// TwoFingerTapEvents returns two overlapping taps, the gesture that resets
// a surface.
func TwoFingerTapEvents(id SurfaceID, a, b Vec2, t time.Time) []Event {
	return []Event{
		{Type: EventPointerDown, Surface: id, PointerID: 0, X: a.X, Y: a.Y, Time: t},
		{Type: EventPointerDown, Surface: id, PointerID: 1, X: b.X, Y: b.Y, Time: t},
		{Type: EventPointerUp, Surface: id, PointerID: 1, X: b.X, Y: b.Y, Time: t.Add(syntheticStep)},
		{Type: EventPointerUp, Surface: id, PointerID: 0, X: a.X, Y: a.Y, Time: t.Add(2 * syntheticStep)},
	}
}

// WheelEvent returns one wheel event at (x, y).
func WheelEvent(id SurfaceID, x, y, deltaY float64, mode DeltaMode) Event {
	return Event{Type: EventWheel, Surface: id, X: x, Y: y, DeltaY: deltaY, DeltaMode: mode}
}

// InjectTap queues a tap at (x, y) on a surface.
func (a *App) InjectTap(id SurfaceID, x, y float64) {
	a.Inject(TapEvents(id, x, y, a.clock())...)
}

// InjectDrag queues a drag from one point to another over steps moves.
func (a *App) InjectDrag(id SurfaceID, from, to Vec2, steps int) {
	a.Inject(DragEvents(id, from, to, steps, a.clock())...)
}

// InjectPinch queues a pinch around anchor with the second pointer moving
// from one point to another.
func (a *App) InjectPinch(id SurfaceID, anchor, from, to Vec2, steps int) {
	a.Inject(PinchEvents(id, anchor, from, to, steps, a.clock())...)
}

// InjectWheel queues one wheel event.
func (a *App) InjectWheel(id SurfaceID, x, y, deltaY float64, mode DeltaMode) {
	a.Inject(WheelEvent(id, x, y, deltaY, mode))
}
