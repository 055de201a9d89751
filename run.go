package ardw

import (
	"image"
	"image/draw"

	"github.com/gogpu/gg"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// RunConfig configures the window opened by Run.
type RunConfig struct {
	Title   string
	Width   int
	Height  int
	ShowFPS bool
	// DeviceScale multiplies the raster resolution of every surface.
	DeviceScale float64
	// Script, when set, is stepped once per tick.
	Script *ScriptRunner
	// ExitOnScriptEnd closes the window once Script is done.
	ExitOnScriptEnd bool
}

// Run opens a window showing the App's visible surfaces and feeds mouse,
// touch, wheel and keyboard input to it. It blocks until the window closes.
func Run(app *App, cfg RunConfig) error {
	if cfg.Width <= 0 {
		cfg.Width = 1280
	}
	if cfg.Height <= 0 {
		cfg.Height = 800
	}
	if cfg.DeviceScale <= 0 {
		cfg.DeviceScale = 1
	}
	if cfg.Title != "" {
		ebiten.SetWindowTitle(cfg.Title)
	}
	ebiten.SetWindowSize(cfg.Width, cfg.Height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	return ebiten.RunGame(newGame(app, cfg))
}

// surfaceView is the on-screen copy of one surface.
type surfaceView struct {
	rect       image.Rectangle
	background *ebiten.Image
	highlight  *ebiten.Image
	bgSeen     int
	hlSeen     int
}

type game struct {
	app *App
	cfg RunConfig

	views      [3]surfaceView
	outW, outH int
	arranged   [2]string // layout and BOM modes of the last arrange

	mouseSurface SurfaceID
	mouseDown    bool
	mouseButton  MouseButton
	lastMouse    image.Point

	touchIDs  map[ebiten.TouchID]int
	touchPos  map[ebiten.TouchID]image.Point
	touchSurf map[ebiten.TouchID]SurfaceID
	nextTouch int
	touchBuf  []ebiten.TouchID

	fps *fpsWidget
}

func newGame(app *App, cfg RunConfig) *game {
	g := &game{
		app:       app,
		cfg:       cfg,
		touchIDs:  make(map[ebiten.TouchID]int),
		touchPos:  make(map[ebiten.TouchID]image.Point),
		touchSurf: make(map[ebiten.TouchID]SurfaceID),
		nextTouch: 1,
	}
	if cfg.ShowFPS {
		g.fps = newFPSWidget()
	}
	return g
}

func (g *game) Update() error {
	dt := 1.0 / float64(ebiten.TPS())
	g.processKeys()
	g.processMouse()
	g.processTouches()
	g.processWheel()
	g.app.Update(dt)
	if g.outW > 0 && g.arranged != g.modes() {
		g.arrange()
	}
	if g.fps != nil {
		g.fps.update(dt)
	}
	if r := g.cfg.Script; r != nil {
		r.Step(g.app)
		if r.Done() && g.cfg.ExitOnScriptEnd {
			return ebiten.Termination
		}
	}
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(gg.Hex(g.app.theme.Background).Color())
	for _, s := range g.app.surfaces {
		if !s.visible || s.background == nil {
			continue
		}
		v := &g.views[s.ID]
		g.sync(s, v)
		op := &ebiten.DrawImageOptions{}
		op.GeoM.Scale(1/s.DeviceScale, 1/s.DeviceScale)
		op.GeoM.Translate(float64(v.rect.Min.X), float64(v.rect.Min.Y))
		screen.DrawImage(v.background, op)
		screen.DrawImage(v.highlight, op)
	}
	if g.fps != nil {
		g.fps.draw(screen)
	}
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth != g.outW || outsideHeight != g.outH {
		g.outW, g.outH = outsideWidth, outsideHeight
		g.arrange()
	}
	return outsideWidth, outsideHeight
}

func (g *game) modes() [2]string {
	return [2]string{string(g.app.settings.LayoutMode), string(g.app.settings.BOMMode)}
}

// arrange splits the window between the visible surfaces and resizes them.
func (g *game) arrange() {
	a := g.app
	g.arranged = g.modes()
	full := image.Rect(0, 0, g.outW, g.outH)
	layout, sch := full, image.Rectangle{}
	splitLayoutVertically := true
	switch a.settings.BOMMode {
	case BOMLeftRight:
		mid := full.Min.X + full.Dx()/2
		sch = image.Rect(full.Min.X, full.Min.Y, mid, full.Max.Y)
		layout = image.Rect(mid, full.Min.Y, full.Max.X, full.Max.Y)
	case BOMTopBottom:
		mid := full.Min.Y + full.Dy()/2
		sch = image.Rect(full.Min.X, full.Min.Y, full.Max.X, mid)
		layout = image.Rect(full.Min.X, mid, full.Max.X, full.Max.Y)
		splitLayoutVertically = false
	case BOMLayoutOnly:
		splitLayoutVertically = false
	}

	front, back := layout, layout
	if a.settings.LayoutMode == LayoutBoth {
		if splitLayoutVertically {
			mid := layout.Min.Y + layout.Dy()/2
			front = image.Rect(layout.Min.X, layout.Min.Y, layout.Max.X, mid)
			back = image.Rect(layout.Min.X, mid, layout.Max.X, layout.Max.Y)
		} else {
			mid := layout.Min.X + layout.Dx()/2
			front = image.Rect(layout.Min.X, layout.Min.Y, mid, layout.Max.Y)
			back = image.Rect(mid, layout.Min.Y, layout.Max.X, layout.Max.Y)
		}
	}

	rects := [3]image.Rectangle{front, back, sch}
	for _, s := range a.surfaces {
		r := rects[s.ID]
		g.views[s.ID].rect = r
		if s.visible && !r.Empty() {
			a.Resize(s.ID, r.Dx(), r.Dy(), g.cfg.DeviceScale)
		}
	}
}

// sync uploads a surface's rasters when they were redrawn since the last
// frame.
func (g *game) sync(s *Surface, v *surfaceView) {
	w, h := s.background.Width(), s.background.Height()
	if v.background == nil || v.background.Bounds().Dx() != w || v.background.Bounds().Dy() != h {
		v.background = ebiten.NewImage(w, h)
		v.highlight = ebiten.NewImage(w, h)
		v.bgSeen, v.hlSeen = -1, -1
	}
	if v.bgSeen != s.stats.BackgroundRedraws {
		v.background.WritePixels(rgbaPixels(s.background.Image()))
		v.bgSeen = s.stats.BackgroundRedraws
	}
	if v.hlSeen != s.stats.HighlightRedraws {
		v.highlight.WritePixels(rgbaPixels(s.highlight.Image()))
		v.hlSeen = s.stats.HighlightRedraws
	}
}

// rgbaPixels returns premultiplied RGBA bytes for img.
func rgbaPixels(img image.Image) []byte {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == 4*rgba.Rect.Dx() {
		return rgba.Pix
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out.Pix
}

// surfaceAt returns the visible surface under a window point.
func (g *game) surfaceAt(p image.Point) (SurfaceID, bool) {
	for _, s := range g.app.surfaces {
		if s.visible && p.In(g.views[s.ID].rect) {
			return s.ID, true
		}
	}
	return 0, false
}

// local converts a window point into surface coordinates.
func (g *game) local(id SurfaceID, p image.Point) (float64, float64) {
	r := g.views[id].rect
	return float64(p.X - r.Min.X), float64(p.Y - r.Min.Y)
}

func (g *game) processKeys() {
	a := g.app
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyPageDown):
		a.StepSheet(1)
	case inpututil.IsKeyJustPressed(ebiten.KeyPageUp):
		a.StepSheet(-1)
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		a.ClearSelection()
	case inpututil.IsKeyJustPressed(ebiten.KeyBracketRight):
		a.SetBoardRotation(a.settings.BoardRotation + rotationStep)
	case inpututil.IsKeyJustPressed(ebiten.KeyBracketLeft):
		a.SetBoardRotation(a.settings.BoardRotation - rotationStep)
	case inpututil.IsKeyJustPressed(ebiten.KeyB):
		a.ShowBoardPos(!a.BoardPosVisible())
	}
	if a.HitMenu() == nil {
		return
	}
	for i, k := range []ebiten.Key{ebiten.Key1, ebiten.Key2, ebiten.Key3, ebiten.Key4} {
		if inpututil.IsKeyJustPressed(k) {
			if err := a.ChooseHit(i); err != nil {
				Logger().Debug("hit menu", "err", err)
			}
		}
	}
}

// processMouse feeds the mouse to the App as pointer 0. The surface under
// the press receives every event until release.
func (g *game) processMouse() {
	mx, my := ebiten.CursorPosition()
	p := image.Pt(mx, my)

	buttons := [...]struct {
		eb ebiten.MouseButton
		mb MouseButton
	}{
		{ebiten.MouseButtonLeft, MouseButtonLeft},
		{ebiten.MouseButtonMiddle, MouseButtonMiddle},
		{ebiten.MouseButtonRight, MouseButtonRight},
	}

	if !g.mouseDown {
		for _, b := range buttons {
			if !inpututil.IsMouseButtonJustPressed(b.eb) {
				continue
			}
			id, ok := g.surfaceAt(p)
			if !ok {
				return
			}
			x, y := g.local(id, p)
			g.app.Dispatch(Event{Type: EventPointerDown, Surface: id, X: x, Y: y, Button: b.mb})
			if b.mb != MouseButtonRight {
				g.mouseDown, g.mouseSurface, g.mouseButton = true, id, b.mb
				g.lastMouse = p
			}
			return
		}
		return
	}

	id := g.mouseSurface
	x, y := g.local(id, p)
	for _, b := range buttons {
		if b.mb == g.mouseButton && inpututil.IsMouseButtonJustReleased(b.eb) {
			g.app.Dispatch(Event{Type: EventPointerUp, Surface: id, X: x, Y: y, Button: b.mb})
			g.mouseDown = false
			return
		}
	}
	if p == g.lastMouse {
		return
	}
	g.lastMouse = p
	if !p.In(g.views[id].rect) {
		g.app.Dispatch(Event{Type: EventPointerLeave, Surface: id, X: x, Y: y, Button: g.mouseButton})
		g.mouseDown = false
		return
	}
	g.app.Dispatch(Event{Type: EventPointerMove, Surface: id, X: x, Y: y, Button: g.mouseButton})
}

// processTouches feeds touches to the App as pointers 1 and up.
func (g *game) processTouches() {
	g.touchBuf = ebiten.AppendTouchIDs(g.touchBuf[:0])
	active := make(map[ebiten.TouchID]bool, len(g.touchBuf))
	for _, tid := range g.touchBuf {
		active[tid] = true
		tx, ty := ebiten.TouchPosition(tid)
		p := image.Pt(tx, ty)
		pid, known := g.touchIDs[tid]
		if !known {
			id, ok := g.surfaceAt(p)
			if !ok {
				continue
			}
			pid = g.nextTouch
			g.nextTouch++
			g.touchIDs[tid], g.touchSurf[tid], g.touchPos[tid] = pid, id, p
			x, y := g.local(id, p)
			g.app.Dispatch(Event{Type: EventPointerDown, Surface: id, PointerID: pid, X: x, Y: y})
			continue
		}
		if p != g.touchPos[tid] {
			g.touchPos[tid] = p
			x, y := g.local(g.touchSurf[tid], p)
			g.app.Dispatch(Event{Type: EventPointerMove, Surface: g.touchSurf[tid], PointerID: pid, X: x, Y: y})
		}
	}
	for tid, pid := range g.touchIDs {
		if active[tid] {
			continue
		}
		id := g.touchSurf[tid]
		x, y := g.local(id, g.touchPos[tid])
		g.app.Dispatch(Event{Type: EventPointerUp, Surface: id, PointerID: pid, X: x, Y: y})
		delete(g.touchIDs, tid)
		delete(g.touchSurf, tid)
		delete(g.touchPos, tid)
	}
}

func (g *game) processWheel() {
	_, dy := ebiten.Wheel()
	if dy == 0 {
		return
	}
	mx, my := ebiten.CursorPosition()
	p := image.Pt(mx, my)
	id, ok := g.surfaceAt(p)
	if !ok {
		return
	}
	x, y := g.local(id, p)
	g.app.Dispatch(WheelEvent(id, x, y, -dy, DeltaLine))
}
