package ardw

import (
	"math"
	"testing"
	"time"
)

func pointer(typ EventType, id SurfaceID, pid int, p Vec2, at time.Duration) Event {
	return Event{Type: typ, Surface: id, PointerID: pid, X: p.X, Y: p.Y, Time: testEpoch.Add(at)}
}

// press drags pointer 0 from p by d over dur and releases.
func press(a *App, id SurfaceID, p, d Vec2, dur time.Duration) {
	a.Dispatch(pointer(EventPointerDown, id, 0, p, 0))
	if d != (Vec2{}) {
		a.Dispatch(pointer(EventPointerMove, id, 0, p.Add(d), dur/2))
	}
	a.Dispatch(pointer(EventPointerUp, id, 0, p.Add(d), dur))
}

// --- Tap classification ---

func TestTapSelectsComponent(t *testing.T) {
	a, sent := newTestApp(t)
	p := screenOf(a, SurfaceFront, Vec2{20, 23})

	press(a, SurfaceFront, p, Vec2{9, 0}, 400*time.Millisecond)

	if got := a.Selection(); got != ComponentSelection(0) {
		t.Fatalf("selection = %v, want comp 0", got)
	}
	if len(sent.msgs) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent.msgs))
	}
	if m, ok := sent.msgs[0].(*SelectionMessage); !ok || m.Selection != ComponentSelection(0) {
		t.Errorf("sent %#v", sent.msgs[0])
	}
}

func TestTapTravelLimit(t *testing.T) {
	a, sent := newTestApp(t)
	p := screenOf(a, SurfaceFront, Vec2{20, 23})

	press(a, SurfaceFront, p, Vec2{11, 0}, 400*time.Millisecond)

	if got := a.Selection(); got != Deselect {
		t.Errorf("selection = %v, want none", got)
	}
	if len(sent.msgs) != 0 {
		t.Errorf("sent %d messages, want 0", len(sent.msgs))
	}
}

func TestTapDurationLimit(t *testing.T) {
	a, _ := newTestApp(t)
	p := screenOf(a, SurfaceFront, Vec2{20, 23})

	press(a, SurfaceFront, p, Vec2{}, 600*time.Millisecond)

	if got := a.Selection(); got != Deselect {
		t.Errorf("selection = %v, want none", got)
	}
}

func TestTapTravelIsManhattan(t *testing.T) {
	a, _ := newTestApp(t)
	p := screenOf(a, SurfaceFront, Vec2{20, 23})

	// 6 + 6 = 12 even though the straight distance is under 10
	press(a, SurfaceFront, p, Vec2{6, 6}, 100*time.Millisecond)

	if got := a.Selection(); got != Deselect {
		t.Errorf("selection = %v, want none", got)
	}
}

func TestTapMissDeselects(t *testing.T) {
	a, _ := newTestApp(t)
	a.Select(NetSelection("GND"))

	press(a, SurfaceFront, screenOf(a, SurfaceFront, Vec2{40, 45}), Vec2{}, 50*time.Millisecond)

	if got := a.Selection(); got != Deselect {
		t.Errorf("selection = %v, want none", got)
	}
}

func TestTapPadSelectsPin(t *testing.T) {
	a, _ := newTestApp(t)

	press(a, SurfaceFront, screenOf(a, SurfaceFront, Vec2{17, 20}), Vec2{}, 50*time.Millisecond)

	if got := a.Selection(); got != PinSelection(0) {
		t.Errorf("selection = %v, want pin 0", got)
	}
}

func TestTapSchematicPin(t *testing.T) {
	a, _ := newTestApp(t)

	press(a, SurfaceSchematic, screenOf(a, SurfaceSchematic, Vec2{101, 141}), Vec2{}, 50*time.Millisecond)

	if got := a.Selection(); got != PinSelection(1) {
		t.Errorf("selection = %v, want pin 1", got)
	}
}

func TestTapSchematicUnit(t *testing.T) {
	a, _ := newTestApp(t)

	press(a, SurfaceSchematic, screenOf(a, SurfaceSchematic, Vec2{130, 125}), Vec2{}, 50*time.Millisecond)

	if got := a.Selection(); got != ComponentSelection(0) {
		t.Errorf("selection = %v, want comp 0", got)
	}
}

// --- Multi-pointer gestures ---

func TestTwoFingerTapResets(t *testing.T) {
	a, sent := newTestApp(t)
	s := a.Surface(SurfaceFront)
	s.Transform.PanX, s.Transform.PanY, s.Transform.Zoom = 12, -4, 3
	a.Select(ComponentSelection(1))
	sent.msgs = nil

	p0 := screenOf(a, SurfaceFront, Vec2{20, 23})
	p1 := p0.Add(Vec2{60, 0})
	a.Dispatch(pointer(EventPointerDown, SurfaceFront, 0, p0, 0))
	a.Dispatch(pointer(EventPointerDown, SurfaceFront, 1, p1, 10*time.Millisecond))
	a.Dispatch(pointer(EventPointerUp, SurfaceFront, 1, p1, 80*time.Millisecond))
	a.Dispatch(pointer(EventPointerUp, SurfaceFront, 0, p0, 90*time.Millisecond))

	if s.Transform.PanX != 0 || s.Transform.PanY != 0 || s.Transform.Zoom != 1 {
		t.Errorf("transform not reset: %+v", s.Transform)
	}
	if got := a.Selection(); got != ComponentSelection(1) {
		t.Errorf("selection = %v, want comp 1 unchanged", got)
	}
	if len(sent.msgs) != 0 {
		t.Errorf("sent %d messages, want 0", len(sent.msgs))
	}
	if s.ActivePointers() != 0 {
		t.Errorf("ActivePointers = %d, want 0", s.ActivePointers())
	}
}

func TestRightClickResets(t *testing.T) {
	a, _ := newTestApp(t)
	s := a.Surface(SurfaceBack)
	s.Transform.PanX, s.Transform.Zoom = 30, 0.5

	ev := pointer(EventPointerDown, SurfaceBack, 0, Vec2{10, 10}, 0)
	ev.Button = MouseButtonRight
	a.Dispatch(ev)

	if s.Transform.PanX != 0 || s.Transform.Zoom != 1 {
		t.Errorf("transform not reset: %+v", s.Transform)
	}
	if st := s.Stats(); st.BackgroundRedraws != 1 || st.HighlightRedraws != 1 {
		t.Errorf("stats = %+v, want one redraw of each", st)
	}
}

func TestDragPans(t *testing.T) {
	a, _ := newTestApp(t)
	s := a.Surface(SurfaceFront)
	s.Transform.Zoom = 2

	from := Vec2{100, 100}
	for _, ev := range DragEvents(SurfaceFront, from, from.Add(Vec2{50, -20}), 5, testEpoch) {
		a.Dispatch(ev)
	}

	assertNear(t, "PanX", s.Transform.PanX, 25)
	assertNear(t, "PanY", s.Transform.PanY, -10)
	if got := s.Stats().BackgroundRedraws; got != 5 {
		t.Errorf("BackgroundRedraws = %d, want 5 (one per move)", got)
	}
}

func TestPinchZoomsAboutStillPointer(t *testing.T) {
	a, _ := newTestApp(t)
	s := a.Surface(SurfaceFront)

	anchor := Vec2{100, 150}
	doc := s.Transform.ScreenToDocument(anchor)
	for _, ev := range PinchEvents(SurfaceFront, anchor, Vec2{140, 150}, Vec2{180, 150}, 4, testEpoch) {
		a.Dispatch(ev)
	}

	assertNear(t, "Zoom", s.Transform.Zoom, 2)
	assertVec(t, "anchor", s.Transform.DocumentToScreen(doc), anchor)
}

func TestPinchDegenerateKeepsZoom(t *testing.T) {
	a, _ := newTestApp(t)
	s := a.Surface(SurfaceFront)

	p := Vec2{50, 50}
	a.Dispatch(pointer(EventPointerDown, SurfaceFront, 0, p, 0))
	a.Dispatch(pointer(EventPointerDown, SurfaceFront, 1, p, 0))
	a.Dispatch(pointer(EventPointerMove, SurfaceFront, 1, p.Add(Vec2{20, 0}), 16*time.Millisecond))

	if s.Transform.Zoom != 1 || math.IsNaN(s.Transform.PanX) {
		t.Errorf("degenerate pinch changed transform: %+v", s.Transform)
	}
}

func TestLeaveDropsPointer(t *testing.T) {
	set := DefaultSettings()
	set.RedrawOnDrag = false
	a, _ := newTestApp(t, WithSettings(set))
	s := a.Surface(SurfaceFront)

	a.Dispatch(pointer(EventPointerDown, SurfaceFront, 0, Vec2{10, 10}, 0))
	a.Dispatch(pointer(EventPointerMove, SurfaceFront, 0, Vec2{40, 10}, 16*time.Millisecond))
	if got := s.Stats().BackgroundRedraws; got != 0 {
		t.Errorf("redraw during drag with RedrawOnDrag off: %d", got)
	}
	a.Dispatch(pointer(EventPointerLeave, SurfaceFront, 0, Vec2{40, 10}, 32*time.Millisecond))

	if s.ActivePointers() != 0 {
		t.Errorf("ActivePointers = %d, want 0", s.ActivePointers())
	}
	if got := s.Stats().BackgroundRedraws; got != 1 {
		t.Errorf("BackgroundRedraws = %d, want 1", got)
	}

	// a later release of the dropped pointer is ignored
	a.Dispatch(pointer(EventPointerUp, SurfaceFront, 0, Vec2{40, 10}, 48*time.Millisecond))
	if got := s.Stats().BackgroundRedraws; got != 1 {
		t.Errorf("BackgroundRedraws = %d after stray up, want 1", got)
	}
}

func TestCancelDropsPointer(t *testing.T) {
	a, _ := newTestApp(t)
	s := a.Surface(SurfaceSchematic)

	a.Dispatch(pointer(EventPointerDown, SurfaceSchematic, 3, Vec2{10, 10}, 0))
	a.Dispatch(pointer(EventPointerCancel, SurfaceSchematic, 3, Vec2{10, 10}, 0))
	if s.ActivePointers() != 0 {
		t.Errorf("ActivePointers = %d, want 0", s.ActivePointers())
	}
}

func TestCancelEndsTwoFingerTap(t *testing.T) {
	a, _ := newTestApp(t)
	p0 := screenOf(a, SurfaceFront, Vec2{20, 20})
	p1 := p0.Add(Vec2{60, 0})

	// second pointer taps while the first is held, then the first is cancelled
	a.Dispatch(pointer(EventPointerDown, SurfaceFront, 0, p0, 0))
	a.Dispatch(pointer(EventPointerDown, SurfaceFront, 1, p1, 10*time.Millisecond))
	a.Dispatch(pointer(EventPointerUp, SurfaceFront, 1, p1, 80*time.Millisecond))
	a.Dispatch(pointer(EventPointerCancel, SurfaceFront, 0, p0, 90*time.Millisecond))

	a.Dispatch(pointer(EventPointerDown, SurfaceFront, 2, p0, 5*time.Second))
	a.Dispatch(pointer(EventPointerUp, SurfaceFront, 2, p0, 5*time.Second+50*time.Millisecond))
	if got := a.Selection(); got != ComponentSelection(0) {
		t.Errorf("single tap after cancel: selection = %v, want comp 0", got)
	}
}

// --- Wheel ---

func TestWheelZoom(t *testing.T) {
	tests := []struct {
		name string
		dy   float64
		mode DeltaMode
		want float64
	}{
		{"pixel in", -40, DeltaPixel, 1.1},
		{"pixel out", 40, DeltaPixel, 1 / 1.1},
		{"line", -1, DeltaLine, math.Pow(1.1, 30.0/40)},
		{"page", 0.1, DeltaPage, math.Pow(1.1, -30.0/40)},
		{"clamped in", -10000, DeltaPixel, 2},
		{"clamped out", 10000, DeltaPixel, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newTestApp(t)
			s := a.Surface(SurfaceFront)
			anchor := Vec2{200, 100}
			doc := s.Transform.ScreenToDocument(anchor)

			a.Dispatch(WheelEvent(SurfaceFront, anchor.X, anchor.Y, tt.dy, tt.mode))

			assertNear(t, "Zoom", s.Transform.Zoom, tt.want)
			assertVec(t, "anchor", s.Transform.DocumentToScreen(doc), anchor)
			if got := s.Stats().BackgroundRedraws; got != 1 {
				t.Errorf("BackgroundRedraws = %d, want 1", got)
			}
		})
	}
}

func TestDeviceScale(t *testing.T) {
	a, _ := newTestApp(t)
	a.Resize(SurfaceFront, 200, 150, 2)
	s := a.Surface(SurfaceFront)
	if w, h := s.PixelSize(); w != 400 || h != 300 {
		t.Errorf("PixelSize = %dx%d, want 400x300", w, h)
	}
	s.Transform.Pan(10, 0, s.DeviceScale)
	assertNear(t, "PanX", s.Transform.PanX, 20)
}

func TestUnknownSurfaceIgnored(t *testing.T) {
	a, _ := newTestApp(t)
	a.Dispatch(Event{Type: EventPointerDown, Surface: SurfaceID(9)})
	for _, id := range AllSurfaces {
		if n := a.Surface(id).ActivePointers(); n != 0 {
			t.Errorf("%s has %d pointers", id, n)
		}
	}
}
