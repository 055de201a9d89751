package ardw

import (
	"time"

	"github.com/gogpu/gg"
)

// footprintBoxAlpha is the opacity of a highlighted footprint's box fill.
const footprintBoxAlpha = 0.2

// redraw repaints both rasters of a surface.
func (a *App) redraw(s *Surface) {
	a.redrawBackground(s)
	a.redrawHighlight(s)
}

// redrawHighlights repaints the highlight raster of every visible surface.
// Backgrounds are left alone.
func (a *App) redrawHighlights() {
	for _, s := range a.surfaces {
		if s.visible {
			a.redrawHighlight(s)
		}
	}
}

// RedrawAll repaints both rasters of every surface that has been sized.
func (a *App) RedrawAll() {
	for _, s := range a.surfaces {
		a.redraw(s)
	}
}

func (a *App) redrawBackground(s *Surface) {
	c := s.background
	if c == nil {
		return
	}
	start := time.Now()
	c.Identity()
	c.Clear()
	bg := a.theme.Background
	if a.backgroundHidden() {
		bg = a.theme.ProjectorBackground
	}
	c.SetHexColor(bg)
	fillRect(c, 0, 0, float64(c.Width()), float64(c.Height()))

	c.SetTransform(s.Transform.GG())
	switch {
	case !s.ID.IsLayout():
		a.drawSheet(c, s)
	case !a.backgroundHidden():
		a.drawLayout(c, s)
	}
	c.Identity()

	s.stats.BackgroundRedraws++
	s.stats.LastBackground = time.Since(start)
	a.debugLog(s, "background", s.stats.LastBackground)
}

func (a *App) redrawHighlight(s *Surface) {
	c := s.highlight
	if c == nil {
		return
	}
	start := time.Now()
	c.Identity()
	c.Clear()
	c.SetTransform(s.Transform.GG())
	if s.ID.IsLayout() {
		a.drawLayoutHighlight(c, s)
		a.drawCrosshair(c, s)
		a.drawBoardPos(c, s)
	} else {
		a.drawSheetHighlight(c, s)
	}
	c.Identity()

	s.stats.HighlightRedraws++
	s.stats.LastHighlight = time.Since(start)
	a.debugLog(s, "highlight", s.stats.LastHighlight)
}

// pixelScale is the number of raster pixels per document unit.
func pixelScale(s *Surface) float64 {
	return s.Transform.S * s.Transform.Zoom
}

func (a *App) style(s *Surface, color string) drawStyle {
	return drawStyle{
		color:  color,
		scale:  pixelScale(s),
		font:   a.board.FontData,
		refs:   a.settings.RenderReferences,
		values: a.settings.RenderValues,
	}
}

// drawLayout paints the board layers of one side in order: edges, copper,
// footprints, silkscreen, fabrication.
func (a *App) drawLayout(c Canvas, s *Surface) {
	layer := s.ID.Layer()
	b := a.board

	edge := a.style(s, a.theme.Edge)
	for _, d := range b.Edges {
		drawDrawing(c, d, edge)
	}

	if a.settings.RenderZones {
		for _, z := range b.Zones[layer] {
			drawZone(c, &z, a.theme.Zone)
		}
	}
	if a.settings.RenderTracks {
		for _, t := range b.Tracks[layer] {
			drawTrack(c, t, a.theme.Track)
		}
	}

	for i := range b.Footprints {
		a.drawFootprint(c, s, i, a.theme.Pad, false)
	}

	if a.settings.RenderSilkscreen {
		silk := a.style(s, a.theme.Silkscreen)
		for _, d := range b.Drawings.Silkscreen[layer] {
			drawDrawing(c, d, silk)
		}
	}
	if a.settings.RenderFabrication {
		fab := a.style(s, a.theme.Fabrication)
		for _, d := range b.Drawings.Fabrication[layer] {
			drawDrawing(c, d, fab)
		}
	}
	if a.settings.RenderDNPOutline {
		for i := range b.Footprints {
			if b.DNP[i] && b.Footprints[i].Layer == layer {
				a.drawFootprintBox(c, s, &b.Footprints[i], a.theme.DNPOutline, false)
			}
		}
	}
}

// drawFootprint paints one footprint's drawings, pads and holes on the
// surface's layer. A highlighted footprint also gets its box on its own layer.
func (a *App) drawFootprint(c Canvas, s *Surface, i int, color string, highlight bool) {
	layer := s.ID.Layer()
	fp := &a.board.Footprints[i]
	if highlight && fp.Layer == layer {
		a.drawFootprintBox(c, s, fp, color, true)
	}
	st := a.style(s, color)
	for _, d := range fp.Drawings {
		if d.Layer == layer {
			drawDrawing(c, d.Drawing, st)
		}
	}
	if !a.settings.RenderPads {
		return
	}
	for j := range fp.Pads {
		p := &fp.Pads[j]
		if !p.OnLayer(layer) {
			continue
		}
		k := padKey{i, j}
		drawPad(c, a.pads, k, p, color, false)
		if p.Pin1 && a.settings.HighlightPin1 {
			c.SetLineWidth(1 / pixelScale(s))
			drawPad(c, a.pads, k, p, a.theme.Pin1Outline, true)
		}
	}
	a.drawFootprintHoles(c, i)
}

func (a *App) drawFootprintHoles(c Canvas, i int) {
	fp := &a.board.Footprints[i]
	for j := range fp.Pads {
		drawPadHole(c, a.pads, padKey{i, j}, &fp.Pads[j], a.theme.PadHole)
	}
}

// drawFootprintBox outlines the footprint's rotated box, optionally with a
// translucent fill.
func (a *App) drawFootprintBox(c Canvas, s *Surface, fp *Footprint, color string, fill bool) {
	bb := fp.BBox
	c.Push()
	defer c.Pop()
	c.Translate(bb.Pos.X, bb.Pos.Y)
	c.Rotate(-deg2rad(bb.Angle))
	c.Translate(bb.RelPos.X, bb.RelPos.Y)
	if fill {
		c.SetHexColor(withAlpha(color, footprintBoxAlpha))
		fillRect(c, 0, 0, bb.Size.X, bb.Size.Y)
	}
	c.SetHexColor(color)
	c.SetLineWidth(1 / pixelScale(s))
	rectPath(c, 0, 0, bb.Size.X, bb.Size.Y)
	strokeOrWarn(c)
}

// drawLayoutHighlight paints the current selection onto a layout surface.
func (a *App) drawLayoutHighlight(c Canvas, s *Surface) {
	layer := s.ID.Layer()
	sel := a.selection
	switch sel.Kind {
	case SelectComponent:
		a.drawFootprint(c, s, sel.ID, a.theme.PadHighlight, true)
	case SelectPin:
		pin, ok := a.index.Pin(sel.ID)
		if !ok {
			return
		}
		i, ok := a.index.RefIDs[pin.Ref]
		if !ok || i >= len(a.board.Footprints) || !a.settings.RenderPads {
			return
		}
		fp := &a.board.Footprints[i]
		hit := false
		for j := range fp.Pads {
			p := &fp.Pads[j]
			if p.Name == pin.Num && p.OnLayer(layer) {
				drawPad(c, a.pads, padKey{i, j}, p, a.theme.PadHighlight, false)
				hit = true
			}
		}
		if hit {
			a.drawFootprintHoles(c, i)
		}
	case SelectNet:
		a.drawNetHighlight(c, s, sel.Net)
	}
}

// drawNetHighlight paints the copper of one net. Every hole of a footprint
// with a highlighted pad is re-stamped afterwards.
func (a *App) drawNetHighlight(c Canvas, s *Surface, net string) {
	layer := s.ID.Layer()
	b := a.board
	if a.settings.RenderZones {
		for _, z := range b.Zones[layer] {
			if z.Net == net {
				drawZone(c, &z, a.theme.ZoneHighlight)
			}
		}
	}
	if a.settings.RenderTracks {
		for _, t := range b.Tracks[layer] {
			if t.TrackNet() == net {
				drawTrack(c, t, a.theme.TrackHighlight)
			}
		}
	}
	if !a.settings.RenderPads {
		return
	}
	var touched []int
	for i := range b.Footprints {
		fp := &b.Footprints[i]
		hit := false
		for j := range fp.Pads {
			p := &fp.Pads[j]
			if p.Net == net && p.OnLayer(layer) {
				drawPad(c, a.pads, padKey{i, j}, p, a.theme.PadHighlight, false)
				hit = true
			}
		}
		if hit {
			touched = append(touched, i)
		}
	}
	for _, i := range touched {
		a.drawFootprintHoles(c, i)
	}
}

// drawCrosshair marks the tracked tip with two strokes and a pulsing ring.
func (a *App) drawCrosshair(c Canvas, s *Surface) {
	if !a.crosshair.Active {
		return
	}
	ps := pixelScale(s)
	if ps <= 0 {
		return
	}
	p := a.crosshair.Target
	arm := crosshairArm / ps
	c.SetHexColor(a.theme.Crosshair)
	c.SetLineWidth(crosshairWidth / ps)
	c.SetLineCap(gg.LineCapRound)
	c.MoveTo(p.X-arm, p.Y)
	c.LineTo(p.X+arm, p.Y)
	c.MoveTo(p.X, p.Y-arm)
	c.LineTo(p.X, p.Y+arm)
	strokeOrWarn(c)

	ring := gg.NewPath()
	ring.Circle(p.X, p.Y, a.crosshair.Radius()/ps)
	appendPath(c, ring)
	strokeOrWarn(c)
}

// drawBoardPos outlines the tracked board origin with a square.
func (a *App) drawBoardPos(c Canvas, s *Surface) {
	if !a.showBoard || !a.hasBoardPos {
		return
	}
	ps := pixelScale(s)
	if ps <= 0 {
		return
	}
	half := boardPosMarker / 2 / ps
	p := a.boardPos
	c.SetHexColor(a.theme.Crosshair)
	c.SetLineWidth(crosshairWidth / ps)
	c.MoveTo(p.X-half, p.Y-half)
	c.LineTo(p.X+half, p.Y-half)
	c.LineTo(p.X+half, p.Y+half)
	c.LineTo(p.X-half, p.Y+half)
	c.ClosePath()
	strokeOrWarn(c)
}

func drawTrack(c Canvas, t Track, color string) {
	c.SetHexColor(color)
	c.SetLineCap(gg.LineCapRound)
	switch t := t.(type) {
	case *TrackSegment:
		c.SetLineWidth(t.Width)
		c.MoveTo(t.Start.X, t.Start.Y)
		c.LineTo(t.End.X, t.End.Y)
	case *TrackArc:
		c.SetLineWidth(t.Width)
		p := gg.NewPath()
		p.Arc(t.Center.X, t.Center.Y, t.Radius, deg2rad(t.StartAngle), deg2rad(t.EndAngle))
		appendPath(c, p)
	}
	strokeOrWarn(c)
}

func drawZone(c Canvas, z *Zone, color string) {
	c.SetHexColor(color)
	if z.FillRule == "evenodd" {
		c.SetFillRule(gg.FillRuleEvenOdd)
	} else {
		c.SetFillRule(gg.FillRuleNonZero)
	}
	path := polygonsPath(z.Polygons)
	appendPath(c, path)
	fillOrWarn(c)
	if z.Width > 0 {
		c.SetLineWidth(z.Width)
		c.SetLineJoin(gg.LineJoinRound)
		appendPath(c, path)
		strokeOrWarn(c)
	}
	c.SetFillRule(gg.FillRuleNonZero)
}

func rectPath(c Canvas, x, y, w, h float64) {
	c.MoveTo(x, y)
	c.LineTo(x+w, y)
	c.LineTo(x+w, y+h)
	c.LineTo(x, y+h)
	c.ClosePath()
}

func fillRect(c Canvas, x, y, w, h float64) {
	rectPath(c, x, y, w, h)
	fillOrWarn(c)
}
