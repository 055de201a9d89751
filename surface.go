package ardw

// Surface is one rendering target: the front layout, the back layout or the
// schematic. It owns its transform, its two rasters and the gesture state of
// the pointers over it.
type Surface struct {
	ID        SurfaceID
	Transform Transform

	// Width and Height are the surface size in layout pixels. The rasters are
	// DeviceScale times larger.
	Width, Height int
	DeviceScale   float64

	// Sheet is the displayed sheet id. Schematic surface only.
	Sheet int

	visible    bool
	background Canvas
	highlight  Canvas
	stats      RenderStats

	pointers             map[int]*pointerState
	anotherPointerTapped bool
}

func newSurface(id SurfaceID) *Surface {
	return &Surface{
		ID:          id,
		Transform:   NewTransform(id == SurfaceBack),
		DeviceScale: 1,
		visible:     true,
		pointers:    make(map[int]*pointerState),
	}
}

// Background returns the raster holding the static geometry.
func (s *Surface) Background() Canvas { return s.background }

// Highlight returns the raster holding selection highlights and the crosshair.
func (s *Surface) Highlight() Canvas { return s.highlight }

// Stats returns the redraw counters of the surface.
func (s *Surface) Stats() RenderStats { return s.stats }

// Visible reports whether the surface is part of the current layout.
func (s *Surface) Visible() bool { return s.visible }

// PixelSize returns the raster size in device pixels.
func (s *Surface) PixelSize() (int, int) {
	return int(float64(s.Width)*s.DeviceScale + 0.5), int(float64(s.Height)*s.DeviceScale + 0.5)
}

// ScreenToDocument maps a point in layout pixels to document units.
func (s *Surface) ScreenToDocument(x, y float64) Vec2 {
	return s.Transform.ScreenToDocument(Vec2{x * s.DeviceScale, y * s.DeviceScale})
}

// ActivePointers returns the number of pointers currently down on the surface.
func (s *Surface) ActivePointers() int { return len(s.pointers) }

// allocate (re)creates the rasters when the pixel size changed.
func (s *Surface) allocate(newCanvas CanvasFactory) {
	w, h := s.PixelSize()
	if s.background != nil && s.background.Width() == max(w, 1) && s.background.Height() == max(h, 1) {
		return
	}
	s.background = newCanvas(w, h)
	s.highlight = newCanvas(w, h)
}

// fit recomputes the fitted part of the transform for the current size.
func (s *Surface) fit(b *Board, sheet *Sheet) {
	w, h := s.PixelSize()
	if s.ID.IsLayout() {
		s.Transform.Recompute(b.EdgesBBox, float64(w), float64(h))
		return
	}
	if sheet == nil {
		return
	}
	s.Transform.RecomputeSheet(sheet.Width, sheet.Height, float64(w), float64(h))
}

// reset restores the default view of the surface.
func (s *Surface) reset(sheet *Sheet) {
	if s.ID.IsLayout() {
		s.Transform.Reset()
		return
	}
	if sheet == nil {
		s.Transform.Reset()
		return
	}
	w, h := s.PixelSize()
	s.Transform.ResetSheet(sheet.Width, sheet.Height, float64(w), float64(h))
}
