package ardw

import (
	"image"
	"testing"
	"time"

	"github.com/gogpu/gg"
)

// --- Fixture documents ---

// testBoardJSON has two front footprints: U1 with an SMD GND pad and a
// through-hole VCC pad, and R1 with a through-hole GND pad and an SMD N1 pad.
// A GND track joins them.
const testBoardJSON = `{
  "edges_bbox": {"minx": 0, "miny": 0, "maxx": 80, "maxy": 50},
  "edges": [
    {"type": "segment", "start": [0, 0], "end": [80, 0], "width": 0.2},
    {"type": "segment", "start": [80, 0], "end": [80, 50], "width": 0.2}
  ],
  "drawings": {"silkscreen": {"F": [], "B": []}, "fabrication": {"F": [], "B": []}},
  "footprints": [
    {
      "ref": "U1", "center": [20, 20], "layer": "F",
      "bbox": {"pos": [20, 20], "relpos": [-5, -5], "size": [10, 10], "angle": 0},
      "pads": [
        {"layers": ["F"], "pos": [17, 20], "size": [2, 2], "angle": 0, "shape": "rect", "type": "smd", "padname": "1", "net": "GND", "pin1": 1},
        {"layers": ["F", "B"], "pos": [23, 20], "size": [2, 2], "angle": 0, "shape": "circle", "type": "th", "drillshape": "circle", "drillsize": [1, 1], "padname": "2", "net": "VCC"}
      ],
      "drawings": []
    },
    {
      "ref": "R1", "center": [60, 30], "layer": "F",
      "bbox": {"pos": [60, 30], "relpos": [-3, -2], "size": [6, 4], "angle": 0},
      "pads": [
        {"layers": ["F", "B"], "pos": [58, 30], "size": [1.5, 1.5], "angle": 0, "shape": "circle", "type": "th", "drillshape": "circle", "drillsize": [0.8, 0.8], "padname": "1", "net": "GND"},
        {"layers": ["F"], "pos": [62, 30], "size": [1.5, 1.5], "angle": 0, "shape": "rect", "type": "smd", "padname": "2", "net": "N1"}
      ],
      "drawings": []
    }
  ],
  "tracks": {
    "F": [{"start": [17, 20], "end": [58, 30], "width": 0.5, "net": "GND"}],
    "B": []
  },
  "zones": {"F": [], "B": []},
  "nets": ["GND", "VCC", "N1"],
  "font_data": {}
}`

// testSchematicJSON places U1 on sheet 1 and R1 on sheet 2.
// Pin ids: 0 U1.1, 1 U1.2, 2 R1.1, 3 R1.2.
const testSchematicJSON = `{
  "schematics": [
    {
      "orderpos": {"sheet": 1}, "name": "root", "dimensions": {"x": 400, "y": 300},
      "components": [
        {"ref": "U1", "unit": 1, "libcomp": "MCU", "bbox": [100, 100, 150, 150],
         "pins": [{"name": "GND", "num": "1", "pos": [100, 110]}, {"name": "VCC", "num": "2", "pos": [100, 140]}]}
      ]
    },
    {
      "orderpos": {"sheet": 2}, "name": "power", "dimensions": {"x": 400, "y": 300},
      "components": [
        {"ref": "R1", "unit": 1, "libcomp": "R", "bbox": [200, 200, 220, 210],
         "pins": [{"name": "~", "num": "1", "pos": [200, 205]}, {"name": "~", "num": "2", "pos": [220, 205]}]}
      ]
    }
  ],
  "nets": [
    {"name": "GND", "pins": [{"ref": "U1", "pin": "1"}, {"ref": "R1", "pin": "1"}]},
    {"name": "VCC", "pins": [{"ref": "U1", "pin": "2"}]},
    {"name": "N1", "pins": [{"ref": "R1", "pin": "2"}]}
  ]
}`

func loadTestDocuments(t *testing.T) (*Board, *Schematic) {
	t.Helper()
	b, err := ParseBoard([]byte(testBoardJSON))
	if err != nil {
		t.Fatalf("ParseBoard: %v", err)
	}
	s, err := ParseSchematic([]byte(testSchematicJSON))
	if err != nil {
		t.Fatalf("ParseSchematic: %v", err)
	}
	return b, s
}

// --- Recording canvas ---

// recordCanvas records every paint operation since the last Clear as
// "fill <color>", "stroke <color>" or "image".
type recordCanvas struct {
	w, h   int
	color  string
	ops    []string
	clears int
}

func (c *recordCanvas) Width() int         { return c.w }
func (c *recordCanvas) Height() int        { return c.h }
func (c *recordCanvas) Image() image.Image { return image.NewRGBA(image.Rect(0, 0, c.w, c.h)) }
func (c *recordCanvas) Clear() {
	c.ops = nil
	c.clears++
}

func (c *recordCanvas) Push()                            {}
func (c *recordCanvas) Pop()                             {}
func (c *recordCanvas) Identity()                        {}
func (c *recordCanvas) SetTransform(gg.Matrix)           {}
func (c *recordCanvas) Translate(x, y float64)           {}
func (c *recordCanvas) Scale(x, y float64)               {}
func (c *recordCanvas) Rotate(angle float64)             {}
func (c *recordCanvas) SetHexColor(hex string)           { c.color = hex }
func (c *recordCanvas) SetLineWidth(float64)             {}
func (c *recordCanvas) SetLineCap(gg.LineCap)            {}
func (c *recordCanvas) SetLineJoin(gg.LineJoin)          {}
func (c *recordCanvas) SetFillRule(gg.FillRule)          {}
func (c *recordCanvas) MoveTo(x, y float64)              {}
func (c *recordCanvas) LineTo(x, y float64)              {}
func (c *recordCanvas) CubicTo(_, _, _, _, _, _ float64) {}
func (c *recordCanvas) ClosePath()                       {}

func (c *recordCanvas) Fill() error {
	c.ops = append(c.ops, "fill "+c.color)
	return nil
}

func (c *recordCanvas) Stroke() error {
	c.ops = append(c.ops, "stroke "+c.color)
	return nil
}

func (c *recordCanvas) DrawImageEx(*gg.ImageBuf, gg.DrawImageOptions) {
	c.ops = append(c.ops, "image")
}

func newRecordCanvas(w, h int) Canvas { return &recordCanvas{w: w, h: h} }

func highlightOps(s *Surface) []string { return s.Highlight().(*recordCanvas).ops }

// --- App fixtures ---

type sentMessages struct{ msgs []Message }

func (s *sentMessages) Send(m Message) error {
	s.msgs = append(s.msgs, m)
	return nil
}

// fixedClock returns a clock that always reads t.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

var testEpoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// newTestApp builds an App over the fixture documents with recording
// canvases and sizes every surface to 400x300.
func newTestApp(t *testing.T, opts ...Option) (*App, *sentMessages) {
	t.Helper()
	b, s := loadTestDocuments(t)
	sent := &sentMessages{}
	base := []Option{
		WithCanvasFactory(newRecordCanvas),
		WithSender(sent),
		WithClock(fixedClock(testEpoch)),
	}
	a, err := NewApp(b, s, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	for _, id := range AllSurfaces {
		a.Resize(id, 400, 300, 1)
	}
	a.ResetStats()
	return a, sent
}

// screenOf returns where a document point appears on a surface, in layout
// pixels.
func screenOf(a *App, id SurfaceID, p Vec2) Vec2 {
	s := a.Surface(id)
	return s.Transform.DocumentToScreen(p).Scale(1 / s.DeviceScale)
}
