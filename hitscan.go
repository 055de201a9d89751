package ardw

import (
	"cmp"
	"math"
	"slices"
)

// PickQuery describes a point to resolve to an entity.
type PickQuery struct {
	Surface SurfaceID
	Sheet   int  // displayed sheet, schematic surface only
	Point   Vec2 // document units
	Pads    bool // consider pads on layout surfaces
	Tracks  bool // consider tracks on layout surfaces
	// Padding grows every hit area, in document units.
	Padding float64
}

// Picker resolves a document point to the entity under it. A miss returns
// Deselect.
type Picker interface {
	Pick(q PickQuery) Selection
}

// HitScanner is a Picker that also reports every entity under a point, in
// pick priority order.
type HitScanner interface {
	Picker
	PickAll(q PickQuery) []Selection
}

// IndexPicker is the default HitScanner. It tests pads, footprint boxes and
// tracks on layout surfaces, and pins then unit boxes on the schematic.
type IndexPicker struct {
	board     *Board
	schematic *Schematic
	index     *Index
}

// NewIndexPicker returns a picker over the given documents.
func NewIndexPicker(b *Board, s *Schematic, idx *Index) *IndexPicker {
	return &IndexPicker{board: b, schematic: s, index: idx}
}

// Pick implements Picker. It returns the first of PickAll.
func (p *IndexPicker) Pick(q PickQuery) Selection {
	if hits := p.PickAll(q); len(hits) > 0 {
		return hits[0]
	}
	return Deselect
}

// PickAll implements HitScanner. A footprint whose pad was hit is not
// reported again for its box, nor a component for its unit once one of its
// pins was hit.
func (p *IndexPicker) PickAll(q PickQuery) []Selection {
	if q.Surface.IsLayout() {
		return p.pickLayout(q)
	}
	return p.pickSchematic(q)
}

func (p *IndexPicker) pickLayout(q PickQuery) []Selection {
	layer := q.Surface.Layer()
	fps := p.board.Footprints
	var hits []Selection
	padHit := make(map[int]bool)

	if q.Pads {
		for i := range fps {
			fp := &fps[i]
			for j := range fp.Pads {
				pad := &fp.Pads[j]
				if !pad.OnLayer(layer) || !padContains(pad, q.Point, q.Padding) {
					continue
				}
				padHit[i] = true
				if id, ok := p.index.PinRefs[pinRef(fp.Ref, pad.Name)]; ok {
					hits = append(hits, PinSelection(id))
				} else if !slices.Contains(hits, ComponentSelection(i)) {
					hits = append(hits, ComponentSelection(i))
				}
			}
		}
	}

	for i := range fps {
		fp := &fps[i]
		if !padHit[i] && fp.Layer == layer && footprintContains(fp, q.Point, q.Padding) {
			hits = append(hits, ComponentSelection(i))
		}
	}

	if q.Tracks {
		for _, t := range p.board.Tracks[layer] {
			net := t.TrackNet()
			if net == "" || !trackContains(t, q.Point, q.Padding) {
				continue
			}
			if sel := NetSelection(net); !slices.Contains(hits, sel) {
				hits = append(hits, sel)
			}
		}
	}
	return hits
}

func (p *IndexPicker) pickSchematic(q PickQuery) []Selection {
	type scored struct {
		sel   Selection
		score float64
	}
	half := schematicPinBox/2 + q.Padding
	var pins []scored
	pinComp := make(map[int]bool)
	for i := range p.index.Pins {
		pin := &p.index.Pins[i]
		if pin.Sheet != q.Sheet {
			continue
		}
		d := pin.Pos.Sub(q.Point)
		if math.Abs(d.X) > half || math.Abs(d.Y) > half {
			continue
		}
		pins = append(pins, scored{PinSelection(i), d.Len()})
		if id, ok := p.index.RefIDs[pin.Ref]; ok {
			pinComp[id] = true
		}
	}

	// Nested units resolve smallest box first.
	var units []scored
	for id, ci := range p.index.Components {
		if pinComp[id] {
			continue
		}
		area := math.Inf(1)
		for _, u := range ci.Units {
			if u.Sheet != q.Sheet || !u.BBox.Expand(q.Padding).Contains(q.Point) {
				continue
			}
			area = math.Min(area, u.BBox.Width()*u.BBox.Height())
		}
		if !math.IsInf(area, 1) {
			units = append(units, scored{ComponentSelection(id), area})
		}
	}

	byScore := func(a, b scored) int {
		if c := cmp.Compare(a.score, b.score); c != 0 {
			return c
		}
		return cmp.Compare(a.sel.ID, b.sel.ID)
	}
	slices.SortFunc(pins, byScore)
	slices.SortFunc(units, byScore)

	hits := make([]Selection, 0, len(pins)+len(units))
	for _, h := range append(pins, units...) {
		hits = append(hits, h.sel)
	}
	return hits
}

// padContains tests pt against the pad's shape in the pad frame. Rounded and
// chamfered shapes are tested against their full rectangle.
func padContains(pad *Pad, pt Vec2, padding float64) bool {
	local := rotateVector(pt.Sub(pad.Pos), pad.Angle).Sub(pad.Offset)
	switch s := pad.Shape.(type) {
	case CircleShape:
		return local.Len() <= pad.Size.X/2+padding
	case CustomShape:
		b, ok := polygonsBounds(s.Polygons)
		return ok && b.Expand(padding).Contains(local)
	default:
		hw, hh := pad.Size.X/2+padding, pad.Size.Y/2+padding
		return math.Abs(local.X) <= hw && math.Abs(local.Y) <= hh
	}
}

// footprintContains tests pt against the footprint's rotated box.
func footprintContains(fp *Footprint, pt Vec2, padding float64) bool {
	bb := fp.BBox
	local := rotateVector(pt.Sub(bb.Pos), bb.Angle).Sub(bb.RelPos)
	box := BBox{0, 0, bb.Size.X, bb.Size.Y}.Expand(padding)
	return box.Contains(local)
}

func trackContains(t Track, pt Vec2, padding float64) bool {
	switch t := t.(type) {
	case *TrackSegment:
		return segmentDistance(pt, t.Start, t.End) <= t.Width/2+padding
	case *TrackArc:
		d := pt.Sub(t.Center)
		if math.Abs(d.Len()-t.Radius) > t.Width/2+padding {
			return false
		}
		return angleBetween(math.Atan2(d.Y, d.X)*180/math.Pi, t.StartAngle, t.EndAngle)
	}
	return false
}

// segmentDistance is the distance from p to the segment ab.
func segmentDistance(p, a, b Vec2) float64 {
	ab := b.Sub(a)
	l2 := ab.X*ab.X + ab.Y*ab.Y
	if l2 == 0 {
		return p.Sub(a).Len()
	}
	t := clamp(((p.X-a.X)*ab.X+(p.Y-a.Y)*ab.Y)/l2, 0, 1)
	return p.Sub(a.Add(ab.Scale(t))).Len()
}

// angleBetween reports whether deg lies on the sweep from start to end,
// all in degrees.
func angleBetween(deg, start, end float64) bool {
	norm := func(v float64) float64 {
		v = math.Mod(v, 360)
		if v < 0 {
			v += 360
		}
		return v
	}
	sweep := end - start
	if math.Abs(sweep) >= 360 {
		return true
	}
	if sweep < 0 {
		start, sweep = end, -sweep
	}
	return norm(deg-start) <= sweep
}

func polygonsBounds(polys [][]Vec2) (BBox, bool) {
	b := BBox{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	ok := false
	for _, poly := range polys {
		for _, v := range poly {
			b.MinX = math.Min(b.MinX, v.X)
			b.MinY = math.Min(b.MinY, v.Y)
			b.MaxX = math.Max(b.MaxX, v.X)
			b.MaxY = math.Max(b.MaxY, v.Y)
			ok = true
		}
	}
	return b, ok
}
