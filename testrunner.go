package ardw

import (
	"encoding/json"
	"fmt"
	"os"
)

// scriptStep is a single action in a script.
type scriptStep struct {
	Action  string          `json:"action"`
	Surface string          `json:"surface,omitempty"`
	Label   string          `json:"label,omitempty"`
	X       float64         `json:"x,omitempty"`
	Y       float64         `json:"y,omitempty"`
	FromX   float64         `json:"fromX,omitempty"`
	FromY   float64         `json:"fromY,omitempty"`
	ToX     float64         `json:"toX,omitempty"`
	ToY     float64         `json:"toY,omitempty"`
	Delta   float64         `json:"delta,omitempty"`
	Mode    string          `json:"mode,omitempty"`
	Value   float64         `json:"value,omitempty"`
	Frames  int             `json:"frames,omitempty"`
	Message json.RawMessage `json:"message,omitempty"`
}

// script is the top-level JSON structure of a script file.
type script struct {
	Steps []scriptStep `json:"steps"`
}

// ScriptRunner sequences injected input, peer messages and screenshots
// across frames for automated runs. Call Step once per Update.
type ScriptRunner struct {
	// ScreenshotDir is where screenshot steps write their images.
	ScreenshotDir string

	steps     []scriptStep
	cursor    int
	waitCount int
	done      bool
}

// LoadScript parses a JSON script.
func LoadScript(jsonData []byte) (*ScriptRunner, error) {
	var s script
	if err := json.Unmarshal(jsonData, &s); err != nil {
		return nil, fmt.Errorf("parse test script: %w", err)
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("parse test script: no steps")
	}
	for i, st := range s.Steps {
		if err := st.check(); err != nil {
			return nil, fmt.Errorf("parse test script: step %d: %w", i, err)
		}
	}
	return &ScriptRunner{ScreenshotDir: "screenshots", steps: s.Steps}, nil
}

// LoadScriptFile reads and parses a script from disk.
func LoadScriptFile(path string) (*ScriptRunner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read test script: %w", err)
	}
	return LoadScript(data)
}

func (st scriptStep) check() error {
	switch st.Action {
	case "tap", "drag", "pinch", "wheel", "reset":
		if _, err := ParseSurfaceID(st.surfaceName()); err != nil {
			return err
		}
	case "message":
		if _, err := DecodeMessage(st.Message); err != nil {
			return err
		}
	case "screenshot", "wait", "sheet", "rotate":
	default:
		return fmt.Errorf("unknown action %q", st.Action)
	}
	return nil
}

func (st scriptStep) surfaceName() string {
	if st.Surface == "" {
		return SurfaceFront.String()
	}
	return st.Surface
}

func (st scriptStep) deltaMode() DeltaMode {
	switch st.Mode {
	case "line":
		return DeltaLine
	case "page":
		return DeltaPage
	}
	return DeltaPixel
}

// Done reports whether every step has run.
func (r *ScriptRunner) Done() bool {
	return r.done
}

// Step advances the runner by one frame.
func (r *ScriptRunner) Step(a *App) {
	if r.done {
		return
	}
	// Wait for pending injections to drain before advancing.
	if a.Pending() > 0 {
		return
	}
	if r.waitCount > 0 {
		r.waitCount--
		return
	}
	if r.cursor >= len(r.steps) {
		r.done = true
		return
	}

	st := r.steps[r.cursor]
	r.cursor++
	id, _ := ParseSurfaceID(st.surfaceName())

	switch st.Action {
	case "tap":
		a.InjectTap(id, st.X, st.Y)
	case "drag":
		a.InjectDrag(id, Vec2{st.FromX, st.FromY}, Vec2{st.ToX, st.ToY}, max(st.Frames-2, 1))
	case "pinch":
		a.InjectPinch(id, Vec2{st.X, st.Y}, Vec2{st.FromX, st.FromY}, Vec2{st.ToX, st.ToY}, max(st.Frames-4, 1))
	case "wheel":
		a.InjectWheel(id, st.X, st.Y, st.Delta, st.deltaMode())
	case "reset":
		a.Reset(id)
	case "message":
		msg, err := DecodeMessage(st.Message)
		if err == nil {
			a.Receive(msg)
		}
	case "sheet":
		if err := a.SetSheet(int(st.Value)); err != nil {
			Logger().Warn("script sheet step", "err", err)
		}
	case "rotate":
		a.SetBoardRotation(st.Value)
	case "screenshot":
		if err := a.Screenshot(r.ScreenshotDir, st.Label); err != nil {
			Logger().Warn("script screenshot step", "err", err)
		}
	case "wait":
		if st.Frames > 0 {
			r.waitCount = st.Frames - 1 // this frame counts as one
		}
	}

	if r.cursor >= len(r.steps) && r.waitCount == 0 && a.Pending() == 0 {
		r.done = true
	}
}
