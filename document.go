package ardw

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/gogpu/gg"
	"github.com/tidwall/gjson"
)

// Board is the layout document produced by the board exporter. It is read-only
// once loaded; derived caches live in side tables owned by the App.
type Board struct {
	EdgesBBox BBox        `json:"edges_bbox"`
	Edges     drawingList `json:"edges"`
	Drawings  struct {
		Silkscreen  map[string]drawingList `json:"silkscreen"`
		Fabrication map[string]drawingList `json:"fabrication"`
	} `json:"drawings"`
	Footprints []Footprint          `json:"footprints"`
	Tracks     map[string]trackList `json:"tracks"`
	Zones      map[string][]Zone    `json:"zones"`
	Nets       []string             `json:"nets"`
	FontData   map[string]Glyph     `json:"font_data"`
	BOM        json.RawMessage      `json:"bom"`

	// RefIDs maps a component reference to its footprint index.
	RefIDs map[string]int `json:"-"`
	// DNP holds the footprint indices marked do-not-populate.
	DNP map[int]bool `json:"-"`
}

// Footprint is one placed component on the board.
type Footprint struct {
	Ref      string             `json:"ref"`
	Center   Vec2               `json:"center"`
	BBox     FootprintBBox      `json:"bbox"`
	Layer    string             `json:"layer"`
	Pads     []Pad              `json:"pads"`
	Drawings []FootprintDrawing `json:"drawings"`
}

// FootprintBBox is a rotated rectangle: the box spans Size from RelPos in the
// footprint frame, which sits at Pos rotated by -Angle degrees.
type FootprintBBox struct {
	Pos    Vec2    `json:"pos"`
	RelPos Vec2    `json:"relpos"`
	Size   Vec2    `json:"size"`
	Angle  float64 `json:"angle"`
}

// FootprintDrawing is a graphic item owned by a footprint on one layer.
type FootprintDrawing struct {
	Layer   string
	Drawing Drawing
}

func (d *FootprintDrawing) UnmarshalJSON(data []byte) error {
	r := gjson.ParseBytes(data)
	d.Layer = r.Get("layer").String()
	dr, err := decodeDrawing(r.Get("drawing"))
	if err != nil {
		return err
	}
	d.Drawing = dr
	return nil
}

// Zone is a filled copper area.
type Zone struct {
	Polygons [][]Vec2 `json:"polygons"`
	Width    float64  `json:"width"`
	Net      string   `json:"net"`
	FillRule string   `json:"fillrule"`
}

// Glyph is one stroke-font character: an advance width and a set of polylines
// in units of the text size.
type Glyph struct {
	W float64  `json:"w"`
	L [][]Vec2 `json:"l"`
}

// Track is a copper trace: a *TrackSegment or a *TrackArc.
type Track interface {
	TrackNet() string
	isTrack()
}

// TrackSegment is a straight trace.
type TrackSegment struct {
	Start Vec2    `json:"start"`
	End   Vec2    `json:"end"`
	Width float64 `json:"width"`
	Net   string  `json:"net"`
}

// TrackArc is a circular trace. Angles are in degrees.
type TrackArc struct {
	Center     Vec2    `json:"center"`
	StartAngle float64 `json:"startangle"`
	EndAngle   float64 `json:"endangle"`
	Radius     float64 `json:"radius"`
	Width      float64 `json:"width"`
	Net        string  `json:"net"`
}

func (t *TrackSegment) TrackNet() string { return t.Net }
func (t *TrackArc) TrackNet() string     { return t.Net }
func (*TrackSegment) isTrack()           {}
func (*TrackArc) isTrack()               {}

type trackList []Track

func (l *trackList) UnmarshalJSON(data []byte) error {
	r := gjson.ParseBytes(data)
	if !r.IsArray() {
		return fmt.Errorf("tracks: expected array, got %s", r.Type)
	}
	var out trackList
	for _, item := range r.Array() {
		var t Track
		if item.Get("center").Exists() {
			t = &TrackArc{}
		} else {
			t = &TrackSegment{}
		}
		if err := json.Unmarshal([]byte(item.Raw), t); err != nil {
			return fmt.Errorf("track: %w", err)
		}
		out = append(out, t)
	}
	*l = out
	return nil
}

// UnmarshalJSON accepts both [x, y] arrays and {"x": x, "y": y} objects.
func (v *Vec2) UnmarshalJSON(data []byte) error {
	r := gjson.ParseBytes(data)
	switch {
	case r.IsArray():
		a := r.Array()
		if len(a) < 2 {
			return fmt.Errorf("vec2: want 2 elements, got %d", len(a))
		}
		v.X, v.Y = a[0].Float(), a[1].Float()
	case r.IsObject():
		v.X, v.Y = r.Get("x").Float(), r.Get("y").Float()
	default:
		return fmt.Errorf("vec2: unexpected %s", r.Type)
	}
	return nil
}

// MarshalJSON encodes v as {"x": x, "y": y}.
func (v Vec2) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}{v.X, v.Y})
}

// UnmarshalJSON accepts {"minx", "miny", "maxx", "maxy"} objects and
// [x1, y1, x2, y2] arrays, normalizing the corner order.
func (b *BBox) UnmarshalJSON(data []byte) error {
	r := gjson.ParseBytes(data)
	var x1, y1, x2, y2 float64
	switch {
	case r.IsArray():
		a := r.Array()
		if len(a) < 4 {
			return fmt.Errorf("bbox: want 4 elements, got %d", len(a))
		}
		x1, y1, x2, y2 = a[0].Float(), a[1].Float(), a[2].Float(), a[3].Float()
	case r.IsObject():
		x1, y1 = r.Get("minx").Float(), r.Get("miny").Float()
		x2, y2 = r.Get("maxx").Float(), r.Get("maxy").Float()
	default:
		return fmt.Errorf("bbox: unexpected %s", r.Type)
	}
	*b = BBox{min(x1, x2), min(y1, y2), max(x1, x2), max(y1, y2)}
	return nil
}

// ParseBoard decodes a board document and derives its reference table.
func ParseBoard(data []byte) (*Board, error) {
	if !gjson.ValidBytes(data) {
		return nil, &DataLoadError{Document: "board", Err: errors.New("invalid JSON")}
	}
	var b Board
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, &DataLoadError{Document: "board", Err: err}
	}
	if b.EdgesBBox.Width() <= 0 && b.EdgesBBox.Height() <= 0 && len(b.Footprints) == 0 {
		return nil, &DataLoadError{Document: "board", Err: errors.New("no edges_bbox and no footprints")}
	}
	if b.EdgesBBox.Width() <= 0 || b.EdgesBBox.Height() <= 0 {
		b.EdgesBBox = footprintExtents(b.Footprints)
	}
	b.RefIDs = make(map[string]int, len(b.Footprints))
	b.DNP = make(map[int]bool)
	if len(b.BOM) > 0 {
		// Each BOM row carries its references as [ref, footprint id] pairs in
		// its fourth column.
		gjson.GetBytes(b.BOM, "both.#.3").ForEach(func(_, refs gjson.Result) bool {
			refs.ForEach(func(_, pair gjson.Result) bool {
				b.RefIDs[pair.Get("0").String()] = int(pair.Get("1").Int())
				return true
			})
			return true
		})
		gjson.GetBytes(b.BOM, "skipped").ForEach(func(_, id gjson.Result) bool {
			b.DNP[int(id.Int())] = true
			return true
		})
	}
	if len(b.RefIDs) == 0 {
		for i, fp := range b.Footprints {
			b.RefIDs[fp.Ref] = i
		}
	}
	return &b, nil
}

// footprintExtents bounds the footprint centers grown by their box sizes,
// for documents exported without board edges.
func footprintExtents(fps []Footprint) BBox {
	if len(fps) == 0 {
		return BBox{}
	}
	out := BBox{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	for _, fp := range fps {
		r := math.Max(fp.BBox.Size.X, fp.BBox.Size.Y)
		out.MinX = math.Min(out.MinX, fp.Center.X-r)
		out.MinY = math.Min(out.MinY, fp.Center.Y-r)
		out.MaxX = math.Max(out.MaxX, fp.Center.X+r)
		out.MaxY = math.Max(out.MaxY, fp.Center.Y+r)
	}
	return out
}

// LoadBoard reads and decodes a board document from disk.
func LoadBoard(path string) (*Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DataLoadError{Document: "board", Path: path, Err: err}
	}
	b, err := ParseBoard(data)
	if err != nil {
		var dl *DataLoadError
		if errors.As(err, &dl) {
			dl.Path = path
		}
		return nil, err
	}
	return b, nil
}

// Schematic is the schematic document: one entry per sheet plus the netlist.
type Schematic struct {
	Sheets []Sheet        `json:"schematics"`
	Nets   []SchematicNet `json:"nets"`
}

// Sheet is one schematic page.
type Sheet struct {
	ID         int
	Name       string
	Width      float64
	Height     float64
	Image      string
	Components []SchematicComponent

	image *gg.ImageBuf
}

func (sh *Sheet) UnmarshalJSON(data []byte) error {
	r := gjson.ParseBytes(data)
	sh.ID = int(r.Get("orderpos.sheet").Int())
	sh.Name = r.Get("name").String()
	if d := r.Get("dimensions"); d.Exists() {
		sh.Width, sh.Height = d.Get("x").Float(), d.Get("y").Float()
	} else {
		sh.Width, sh.Height = r.Get("width").Float(), r.Get("height").Float()
	}
	sh.Image = r.Get("image").String()
	comps := r.Get("components")
	if !comps.Exists() {
		return nil
	}
	return json.Unmarshal([]byte(comps.Raw), &sh.Components)
}

// SchematicComponent is one unit of a component placed on a sheet.
type SchematicComponent struct {
	Ref     string
	Unit    int
	Libcomp string
	BBox    BBox
	Pins    []SchematicPin
}

func (c *SchematicComponent) UnmarshalJSON(data []byte) error {
	r := gjson.ParseBytes(data)
	c.Ref = r.Get("ref").String()
	c.Unit = int(r.Get("unit").Int())
	c.Libcomp = r.Get("libcomp").String()
	if bb := r.Get("bbox"); bb.Exists() {
		if err := c.BBox.UnmarshalJSON([]byte(bb.Raw)); err != nil {
			return fmt.Errorf("component %s: %w", c.Ref, err)
		}
	}
	for _, p := range r.Get("pins").Array() {
		pin := SchematicPin{
			Name: p.Get("name").String(),
			Num:  p.Get("num").String(),
		}
		if err := pin.Pos.UnmarshalJSON([]byte(p.Get("pos").Raw)); err != nil {
			return fmt.Errorf("component %s pin %s: %w", c.Ref, pin.Num, err)
		}
		if end := p.Get("end"); end.Exists() {
			_ = pin.End.UnmarshalJSON([]byte(end.Raw))
		}
		c.Pins = append(c.Pins, pin)
	}
	return nil
}

// SchematicPin is a pin of a schematic unit. Pin numbers are strings since
// packages such as BGAs use alphanumeric pin names.
type SchematicPin struct {
	Name string
	Num  string
	Pos  Vec2
	End  Vec2
}

// SchematicNet lists the component pins joined by one net.
type SchematicNet struct {
	Name string
	Pins []NetPin
}

// NetPin references a pin by component reference and pin number.
type NetPin struct {
	Ref string
	Pin string
}

func (n *SchematicNet) UnmarshalJSON(data []byte) error {
	r := gjson.ParseBytes(data)
	n.Name = r.Get("name").String()
	for _, p := range r.Get("pins").Array() {
		n.Pins = append(n.Pins, NetPin{Ref: p.Get("ref").String(), Pin: p.Get("pin").String()})
	}
	return nil
}

// ParseSchematic decodes a schematic document.
func ParseSchematic(data []byte) (*Schematic, error) {
	if !gjson.ValidBytes(data) {
		return nil, &DataLoadError{Document: "schematic", Err: errors.New("invalid JSON")}
	}
	var s Schematic
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, &DataLoadError{Document: "schematic", Err: err}
	}
	if len(s.Sheets) == 0 {
		return nil, &DataLoadError{Document: "schematic", Err: errors.New("no sheets")}
	}
	return &s, nil
}

// LoadSchematic reads and decodes a schematic document from disk.
func LoadSchematic(path string) (*Schematic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DataLoadError{Document: "schematic", Path: path, Err: err}
	}
	s, err := ParseSchematic(data)
	if err != nil {
		var dl *DataLoadError
		if errors.As(err, &dl) {
			dl.Path = path
		}
		return nil, err
	}
	return s, nil
}

// LoadSheetImages loads the rendered image of every sheet from dir. A sheet
// with an explicit image file must load; a sheet without one falls back to
// "<name>.png" and is left blank when that file does not exist.
func (s *Schematic) LoadSheetImages(dir string) error {
	for i := range s.Sheets {
		sh := &s.Sheets[i]
		name := sh.Image
		explicit := name != ""
		if !explicit {
			name = sh.Name + ".png"
		}
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil && !explicit {
			Logger().Warn("no image for schematic sheet", "sheet", sh.ID, "path", path)
			continue
		}
		img, err := gg.LoadImage(path)
		if err != nil {
			return &DataLoadError{Document: "sheet image", Path: path, Err: err}
		}
		sh.image = img
	}
	return nil
}

// SetImage attaches an already decoded image to the sheet.
func (sh *Sheet) SetImage(img *gg.ImageBuf) { sh.image = img }

// sheetByID returns the sheet with the given id.
func (s *Schematic) sheetByID(id int) (*Sheet, bool) {
	for i := range s.Sheets {
		if s.Sheets[i].ID == id {
			return &s.Sheets[i], true
		}
	}
	return nil, false
}
