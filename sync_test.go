package ardw

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"
)

// --- Envelopes ---

func TestEncodeMessage(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{"component", &SelectionMessage{Selection: ComponentSelection(3)}, `{"kind":"selection","data":{"type":"comp","val":3}}`},
		{"pin", &SelectionMessage{Selection: PinSelection(0)}, `{"kind":"selection","data":{"type":"pin","val":0}}`},
		{"net", &SelectionMessage{Selection: NetSelection("GND")}, `{"kind":"selection","data":{"type":"net","val":"GND"}}`},
		{"deselect", &SelectionMessage{Selection: Deselect}, `{"kind":"selection","data":{"type":"deselect","val":null}}`},
		{"mode", &ProjectorModeMessage{Mode: ModeNormal}, `{"kind":"projector-mode","data":{"mode":"normal"}}`},
		{"adjust", &ProjectorAdjustMessage{Component: AdjustZ, Value: 1.5}, `{"kind":"projector-adjust","data":{"type":"z","val":1.5}}`},
		{
			"hit menu",
			&HitMenuMessage{Point: Vec2{20, -20}, Layer: "F", Hits: []Selection{PinSelection(0), Deselect}, FromProbe: true},
			`{"kind":"selection","data":{"type":"multi","point":{"x":20,"y":-20},"layer":"F","hits":[{"type":"pin","val":0},null],"from_optitrack":true}}`,
		},
		{"toggle board pos", &ToggleBoardPosMessage{Visible: true}, `{"kind":"toggleboardpos","data":true}`},
		{"tool request", &ToolRequestMessage{Tool: "dmm", Element: "pos"}, `{"kind":"tool-request","data":{"type":"dmm","val":"pos"}}`},
		{
			"tool connect",
			&ToolConnectMessage{Status: "success", Tool: "ptr", Element: "device", Ready: true},
			`{"kind":"tool-connect","data":{"status":"success","type":"ptr","val":"device","ready":true}}`,
		},
		{
			"session edit",
			&DebugSessionMessage{Event: SessionEdit, Name: "bring-up", Notes: "rail"},
			`{"kind":"debug-session","data":{"event":"edit","name":"bring-up","notes":"rail"}}`,
		},
		{
			"session card",
			&DebugSessionMessage{Event: SessionCustom, ID: 2, Card: json.RawMessage(`{"text":"x"}`)},
			`{"kind":"debug-session","data":{"card":{"text":"x"},"event":"custom","id":2,"update":false}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeMessage(tt.msg)
			if err != nil {
				t.Fatalf("EncodeMessage: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEncodeRejectsNonFinite(t *testing.T) {
	_, err := EncodeMessage(&ProjectorAdjustMessage{Component: AdjustTX, Value: math.NaN()})
	if !errors.Is(err, ErrNonFinite) {
		t.Errorf("err = %v, want ErrNonFinite", err)
	}
}

func TestEncodeRejectsBadSession(t *testing.T) {
	if _, err := EncodeMessage(&DebugSessionMessage{Event: SessionCustom, Card: json.RawMessage(`[1]`)}); err == nil {
		t.Error("card array encoded, want error")
	}
	_, err := EncodeMessage(&DebugSessionMessage{Event: "delete"})
	if !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("err = %v, want ErrUnknownMessage", err)
	}
}

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Message
	}{
		{"net", `{"kind":"selection","data":{"type":"net","val":"GND"}}`, &SelectionMessage{Selection: NetSelection("GND")}},
		{"component", `{"kind":"selection","data":{"type":"comp","val":1}}`, &SelectionMessage{Selection: ComponentSelection(1)}},
		{"deselect", `{"kind":"selection","data":{"type":"deselect"}}`, &SelectionMessage{Selection: Deselect}},
		{"mode object", `{"kind":"projector-mode","data":{"mode":"calibrate"}}`, &ProjectorModeMessage{Mode: ModeCalibrate}},
		{"mode string", `{"kind":"projector-mode","data":"normal"}`, &ProjectorModeMessage{Mode: ModeNormal}},
		{"adjust", `{"kind":"projector-adjust","data":{"type":"ty","val":-2.5}}`, &ProjectorAdjustMessage{Component: AdjustTY, Value: -2.5}},
		{
			"hit menu",
			`{"kind":"selection","data":{"type":"multi","point":{"x":1,"y":2},"layer":"B","hits":[{"type":"net","val":"GND"},null]}}`,
			&HitMenuMessage{Point: Vec2{1, 2}, Layer: "B", Hits: []Selection{NetSelection("GND"), Deselect}},
		},
		{"toggle board pos", `{"kind":"toggleboardpos","data":false}`, &ToggleBoardPosMessage{}},
		{"tool request", `{"kind":"tool-request","data":{"type":"osc","val":"2"}}`, &ToolRequestMessage{Tool: "osc", Element: "2"}},
		{"tool replay", `{"kind":"tool-connect","data":{"type":"ptr","val":"device","ready":true}}`, &ToolConnectMessage{Tool: "ptr", Element: "device", Ready: true}},
		{"session record", `{"kind":"debug-session","data":{"event":"record","record":true}}`, &DebugSessionMessage{Event: SessionRecord, Record: true}},
		{
			"session measurement",
			`{"kind":"debug-session","data":{"event":"measurement","id":4,"card":{"value":3.3}}}`,
			&DebugSessionMessage{Event: SessionMeasurement, ID: 4, Card: json.RawMessage(`{"value":3.3}`)},
		},
		{"session save", `{"kind":"debug-session","data":{"event":"save","count":2}}`, &DebugSessionMessage{Event: SessionSave, Count: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeMessage([]byte(tt.in))
			if err != nil {
				t.Fatalf("DecodeMessage: %v", err)
			}
			if !messagesEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct{ name, in string }{
		{"invalid json", `{"kind":`},
		{"unknown kind", `{"kind":"bogus","data":{}}`},
		{"string component id", `{"kind":"selection","data":{"type":"comp","val":"3"}}`},
		{"fractional pin id", `{"kind":"selection","data":{"type":"pin","val":3.7}}`},
		{"numeric net", `{"kind":"selection","data":{"type":"net","val":4}}`},
		{"unknown selection type", `{"kind":"selection","data":{"type":"module","val":4}}`},
		{"unknown component", `{"kind":"projector-adjust","data":{"type":"w","val":1}}`},
		{"string value", `{"kind":"projector-adjust","data":{"type":"tx","val":"1"}}`},
		{"multi without hits", `{"kind":"selection","data":{"type":"multi","point":{"x":1,"y":1}}}`},
		{"multi without point", `{"kind":"selection","data":{"type":"multi","hits":[]}}`},
		{"multi bad hit", `{"kind":"selection","data":{"type":"multi","point":{"x":1,"y":1},"hits":[{"type":"pin","val":"a"}]}}`},
		{"string toggle", `{"kind":"toggleboardpos","data":"on"}`},
		{"tool request without tool", `{"kind":"tool-request","data":{"val":"pos"}}`},
		{"tool connect without tool", `{"kind":"tool-connect","data":{"status":"success"}}`},
		{"card without object", `{"kind":"debug-session","data":{"event":"custom","id":0,"card":"note"}}`},
		{"unknown session event", `{"kind":"debug-session","data":{"event":"delete"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if m, err := DecodeMessage([]byte(tt.in)); err == nil {
				t.Errorf("DecodeMessage(%s) = %#v, want error", tt.in, m)
			}
		})
	}
}

func TestDecodeTracking(t *testing.T) {
	m, err := DecodeMessage([]byte(`{"kind":"udp","data":{"tippos_pixel":[10,20],"boardpos_pixel":[1,2]}}`))
	if err != nil {
		t.Fatal(err)
	}
	tr, ok := m.(*TrackingMessage)
	if !ok {
		t.Fatalf("got %T, want *TrackingMessage", m)
	}
	assertVec(t, "Tip", tr.Tip, Vec2{10, 20})
	assertVec(t, "Board", tr.Board, Vec2{1, 2})
	if !math.IsNaN(tr.End.X) || !math.IsNaN(tr.End.Y) {
		t.Errorf("End = %v, want NaN", tr.End)
	}

	raw, err := EncodeMessage(tr)
	if err != nil {
		t.Fatal(err)
	}
	back, err := DecodeMessage(raw)
	if err != nil {
		t.Fatal(err)
	}
	assertVec(t, "re-decoded Tip", back.(*TrackingMessage).Tip, Vec2{10, 20})
}

func messagesEqual(a, b Message) bool {
	switch x := a.(type) {
	case *SelectionMessage:
		y, ok := b.(*SelectionMessage)
		return ok && *x == *y
	case *ProjectorModeMessage:
		y, ok := b.(*ProjectorModeMessage)
		return ok && *x == *y
	case *ProjectorAdjustMessage:
		y, ok := b.(*ProjectorAdjustMessage)
		return ok && *x == *y
	}
	return reflect.DeepEqual(a, b)
}

// --- Receive ---

func TestRemoteNetSelectionRedrawsHighlightsOnly(t *testing.T) {
	a, sent := newTestApp(t)
	msg, err := DecodeMessage([]byte(`{"kind":"selection","data":{"type":"net","val":"GND"}}`))
	if err != nil {
		t.Fatal(err)
	}
	a.Receive(msg)

	if got := a.Selection(); got != NetSelection("GND") {
		t.Fatalf("Selection = %v, want net GND", got)
	}
	for _, id := range AllSurfaces {
		st := a.Surface(id).Stats()
		if st.HighlightRedraws != 1 {
			t.Errorf("%s HighlightRedraws = %d, want 1", id, st.HighlightRedraws)
		}
		if st.BackgroundRedraws != 0 {
			t.Errorf("%s BackgroundRedraws = %d, want 0", id, st.BackgroundRedraws)
		}
	}
	if len(sent.msgs) != 0 {
		t.Errorf("remote selection was sent back: %v", sent.msgs)
	}
}

func TestRemoteSelectionSkipsHiddenSurfaces(t *testing.T) {
	s := DefaultSettings()
	s.LayoutMode = LayoutFront
	a, _ := newTestApp(t, WithSettings(s))
	a.Receive(&SelectionMessage{Selection: ComponentSelection(1)})

	if n := a.Surface(SurfaceFront).Stats().HighlightRedraws; n != 1 {
		t.Errorf("front HighlightRedraws = %d, want 1", n)
	}
	if n := a.Surface(SurfaceBack).Stats().HighlightRedraws; n != 0 {
		t.Errorf("hidden back HighlightRedraws = %d, want 0", n)
	}
}

func TestRemoteUnknownSelectionIgnored(t *testing.T) {
	a, _ := newTestApp(t)
	a.Select(ComponentSelection(1))
	a.ResetStats()

	a.Receive(&SelectionMessage{Selection: NetSelection("NOPE")})
	a.Receive(&SelectionMessage{Selection: ComponentSelection(99)})
	if got := a.Selection(); got != ComponentSelection(1) {
		t.Errorf("Selection = %v, want comp 1", got)
	}
	if n := a.Surface(SurfaceFront).Stats().HighlightRedraws; n != 0 {
		t.Errorf("HighlightRedraws = %d, want 0", n)
	}
}

func TestRemoteModeHidesBoard(t *testing.T) {
	a, _ := newTestApp(t)
	a.Receive(&ProjectorModeMessage{Mode: ModeNormal})
	if a.ProjectorMode() != ModeNormal {
		t.Fatalf("mode = %s, want normal", a.ProjectorMode())
	}
	if n := a.Surface(SurfaceFront).Stats().BackgroundRedraws; n != 1 {
		t.Errorf("BackgroundRedraws = %d, want 1", n)
	}

	a.Receive(&ProjectorModeMessage{Mode: "sideways"})
	if a.ProjectorMode() != ModeNormal {
		t.Errorf("unknown mode applied: %s", a.ProjectorMode())
	}
}

func TestRemoteAdjustMirrorsBack(t *testing.T) {
	a, sent := newTestApp(t)
	a.Receive(&ProjectorAdjustMessage{Component: AdjustTX, Value: 4})
	a.Receive(&ProjectorAdjustMessage{Component: AdjustTY, Value: -2})
	a.Receive(&ProjectorAdjustMessage{Component: AdjustZ, Value: 1.5})

	front, back := a.Surface(SurfaceFront).Transform, a.Surface(SurfaceBack).Transform
	assertNear(t, "front PanX", front.PanX, 4)
	assertNear(t, "back PanX", back.PanX, -4)
	assertNear(t, "front PanY", front.PanY, -2)
	assertNear(t, "back PanY", back.PanY, -2)
	assertNear(t, "front Zoom", front.Zoom, 1.5)
	assertNear(t, "back Zoom", back.Zoom, 1.5)

	want := Calibration{TX: 4, TY: -2, Z: 1.5}
	if a.Calibration() != want {
		t.Errorf("Calibration = %+v, want %+v", a.Calibration(), want)
	}
	if len(sent.msgs) != 0 {
		t.Errorf("remote adjust was sent back: %v", sent.msgs)
	}
}

func TestRemoteAdjustRejectsBadValues(t *testing.T) {
	a, _ := newTestApp(t)
	a.Receive(&ProjectorAdjustMessage{Component: AdjustZ, Value: 0})
	a.Receive(&ProjectorAdjustMessage{Component: AdjustTX, Value: math.Inf(-1)})
	if a.Calibration() != DefaultCalibration {
		t.Errorf("Calibration = %+v, want default", a.Calibration())
	}
}

func TestViewerIgnoresAdjust(t *testing.T) {
	a, _ := newTestApp(t, WithRole(RoleViewer))
	a.Receive(&ProjectorAdjustMessage{Component: AdjustTX, Value: 4})
	a.Receive(&ProjectorModeMessage{Mode: ModeNormal})

	if a.Surface(SurfaceFront).Transform.PanX != 0 {
		t.Errorf("viewer applied adjust: PanX = %v", a.Surface(SurfaceFront).Transform.PanX)
	}
	if a.backgroundHidden() {
		t.Error("viewer hid the board")
	}
	if n := a.Surface(SurfaceFront).Stats().BackgroundRedraws; n != 0 {
		t.Errorf("BackgroundRedraws = %d, want 0", n)
	}
}

func TestViewerRejectsUnknownMode(t *testing.T) {
	a, _ := newTestApp(t, WithRole(RoleViewer))
	a.Receive(&ProjectorModeMessage{Mode: "dim"})
	if a.ProjectorMode() != ModeCalibrate {
		t.Errorf("mode = %q, want calibrate", a.ProjectorMode())
	}
}

func TestLocalAdjustSends(t *testing.T) {
	a, sent := newTestApp(t)
	if err := a.AdjustProjector(AdjustR, 92); err != nil {
		t.Fatal(err)
	}
	if got := a.Calibration().R; got != 90 {
		t.Errorf("R = %v, want 90", got)
	}
	if len(sent.msgs) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent.msgs))
	}
	if err := a.AdjustProjector(AdjustZ, -1); !errors.Is(err, ErrNonFinite) {
		t.Errorf("AdjustProjector(z, -1) err = %v, want ErrNonFinite", err)
	}
	if len(sent.msgs) != 1 {
		t.Errorf("rejected adjust was sent")
	}
}

// --- Tracking ---

func TestTrackingCorrectsPan(t *testing.T) {
	a, sent := newTestApp(t)
	a.Receive(&ProjectorAdjustMessage{Component: AdjustZ, Value: 2})

	a.Receive(&TrackingMessage{
		Tip:   Vec2{40, -60},
		End:   Vec2{math.NaN(), math.NaN()},
		Board: Vec2{10, 6},
	})

	front := a.Surface(SurfaceFront).Transform
	assertNear(t, "PanX", front.PanX, 5)
	assertNear(t, "PanY", front.PanY, -3)
	assertNear(t, "back PanX", a.Surface(SurfaceBack).Transform.PanX, -5)
	if len(sent.msgs) != 2 {
		t.Fatalf("sent %d corrections, want 2", len(sent.msgs))
	}

	x := a.Crosshair()
	if !x.Active {
		t.Fatal("crosshair not shown")
	}
	// (40/2 - 5, 60/2 + 3)
	assertVec(t, "crosshair", x.Target, Vec2{15, 33})

	// a sample inside the deadband sends nothing
	a.Receive(&TrackingMessage{Tip: Vec2{40, -60}, Board: Vec2{10.01, 6.01}})
	if len(sent.msgs) != 2 {
		t.Errorf("deadband sample sent %d messages", len(sent.msgs)-2)
	}
}

func TestTrackingViewerOnlyMovesCrosshair(t *testing.T) {
	a, sent := newTestApp(t, WithRole(RoleViewer))
	a.Receive(&TrackingMessage{Tip: Vec2{12, -8}, Board: Vec2{10, 6}})
	if a.Surface(SurfaceFront).Transform.PanX != 0 || len(sent.msgs) != 0 {
		t.Errorf("viewer corrected pan: %+v", a.Surface(SurfaceFront).Transform)
	}
	assertVec(t, "crosshair", a.Crosshair().Target, Vec2{12, 8})
	if n := a.Surface(SurfaceFront).Stats().BackgroundRedraws; n != 0 {
		t.Errorf("BackgroundRedraws = %d, want 0", n)
	}
}

func TestDeselectClearsCrosshair(t *testing.T) {
	a, _ := newTestApp(t)
	a.Receive(&TrackingMessage{Tip: Vec2{1, 1}, Board: Vec2{math.NaN(), math.NaN()}})
	if !a.Crosshair().Active {
		t.Fatal("crosshair not shown")
	}
	a.ClearSelection()
	if a.Crosshair().Active {
		t.Error("crosshair still shown after deselect")
	}
}

// --- Post / Pump ---

func TestPumpAppliesInOrder(t *testing.T) {
	a, _ := newTestApp(t, WithInboxSize(2))
	if !a.Post(&SelectionMessage{Selection: ComponentSelection(0)}) {
		t.Fatal("first Post rejected")
	}
	if !a.Post(&SelectionMessage{Selection: NetSelection("VCC")}) {
		t.Fatal("second Post rejected")
	}
	if a.Post(&SelectionMessage{Selection: Deselect}) {
		t.Error("Post into a full inbox succeeded")
	}
	if got := a.Selection(); got != Deselect {
		t.Errorf("Post applied before Pump: %v", got)
	}
	if n := a.Pump(); n != 2 {
		t.Errorf("Pump = %d, want 2", n)
	}
	if got := a.Selection(); got != NetSelection("VCC") {
		t.Errorf("Selection = %v, want net VCC", got)
	}
}

func TestUpdateDispatchesOneEventPerTick(t *testing.T) {
	a, _ := newTestApp(t)
	p := screenOf(a, SurfaceFront, Vec2{20, 20})
	a.Inject(TapEvents(SurfaceFront, p.X, p.Y, testEpoch)...)
	a.Post(&ProjectorModeMessage{Mode: ModeNormal})

	a.Update(1.0 / 60)
	if a.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", a.Pending())
	}
	if a.ProjectorMode() != ModeNormal {
		t.Error("inbox not drained on Update")
	}
	a.Update(1.0 / 60)
	if a.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", a.Pending())
	}
}
