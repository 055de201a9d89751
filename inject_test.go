package ardw

import "testing"

func TestInjectTap(t *testing.T) {
	a, sent := newTestApp(t)
	p := screenOf(a, SurfaceFront, Vec2{20, 20})

	a.InjectTap(SurfaceFront, p.X, p.Y)
	if a.Pending() != 2 {
		t.Fatalf("expected 2 queued events, got %d", a.Pending())
	}

	// Frame 1: press
	a.Update(0)
	if a.Pending() != 1 {
		t.Fatalf("expected 1 remaining event after frame 1, got %d", a.Pending())
	}
	if a.Selection() != Deselect {
		t.Error("selection should not change on press frame")
	}

	// Frame 2: release picks
	a.Update(0)
	if a.Pending() != 0 {
		t.Fatalf("expected 0 remaining events after frame 2, got %d", a.Pending())
	}
	if a.Selection() != ComponentSelection(0) {
		t.Errorf("Selection = %v, want comp 0", a.Selection())
	}
	if len(sent.msgs) != 1 {
		t.Errorf("sent %d messages, want 1", len(sent.msgs))
	}
}

func TestInjectDrag(t *testing.T) {
	a, _ := newTestApp(t)
	a.InjectDrag(SurfaceBack, Vec2{100, 100}, Vec2{160, 70}, 3)
	// press, 3 moves, release
	if a.Pending() != 5 {
		t.Fatalf("expected 5 queued events, got %d", a.Pending())
	}
	for a.Pending() > 0 {
		a.Update(0)
	}
	tr := a.Surface(SurfaceBack).Transform
	assertNear(t, "PanX", tr.PanX, 60)
	assertNear(t, "PanY", tr.PanY, -30)
	if a.Selection() != Deselect {
		t.Errorf("drag selected %v", a.Selection())
	}
}

func TestInjectPinch(t *testing.T) {
	a, _ := newTestApp(t)
	a.InjectPinch(SurfaceFront, Vec2{200, 150}, Vec2{220, 150}, Vec2{240, 150}, 4)
	// two presses, 4 moves, two releases
	if a.Pending() != 8 {
		t.Fatalf("expected 8 queued events, got %d", a.Pending())
	}
	for a.Pending() > 0 {
		a.Update(0)
	}
	assertNear(t, "Zoom", a.Surface(SurfaceFront).Transform.Zoom, 2)
	if n := a.Surface(SurfaceFront).ActivePointers(); n != 0 {
		t.Errorf("ActivePointers = %d, want 0", n)
	}
}

func TestInjectWheel(t *testing.T) {
	a, _ := newTestApp(t)
	a.InjectWheel(SurfaceSchematic, 200, 150, -40, DeltaPixel)
	a.Update(0)
	assertNear(t, "Zoom", a.Surface(SurfaceSchematic).Transform.Zoom, 1.1)
}

func TestTwoFingerTapEvents(t *testing.T) {
	a, _ := newTestApp(t)
	a.InjectDrag(SurfaceFront, Vec2{100, 100}, Vec2{150, 100}, 2)
	for a.Pending() > 0 {
		a.Update(0)
	}
	a.Inject(TwoFingerTapEvents(SurfaceFront, Vec2{100, 100}, Vec2{130, 100}, testEpoch)...)
	for a.Pending() > 0 {
		a.Update(0)
	}
	if tr := a.Surface(SurfaceFront).Transform; tr.PanX != 0 || tr.Zoom != 1 {
		t.Errorf("two-finger tap did not reset: %+v", tr)
	}
}
