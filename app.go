package ardw

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ProjectorMode is the display mode of projector peers.
type ProjectorMode string

const (
	// ModeCalibrate shows the board layers so the projection can be aligned.
	ModeCalibrate ProjectorMode = "calibrate"
	// ModeNormal hides the board layers; only highlights are projected.
	ModeNormal ProjectorMode = "normal"
)

// Role decides which remote messages an App acts on.
type Role uint8

const (
	// RoleProjector applies every message, including calibration and
	// tracking transform corrections.
	RoleProjector Role = iota
	// RoleViewer follows the shared selection and shows the tracking
	// crosshair but keeps its own transforms.
	RoleViewer
)

// Calibration is the absolute projector alignment shared through the relay.
type Calibration struct {
	TX, TY float64
	R      float64
	Z      float64
}

// DefaultCalibration is the alignment before any adjustment.
var DefaultCalibration = Calibration{Z: 1}

const (
	defaultInboxSize = 256
	// trackingDeadband is the pan change below which a tracked board
	// position does not produce a correction.
	trackingDeadband = 0.01
)

// App owns the surfaces and the shared selection, and is the single place
// input events and sync messages are applied. All methods except Post must
// be called from one goroutine.
type App struct {
	board     *Board
	schematic *Schematic
	index     *Index

	settings Settings
	theme    Theme
	themeSet bool
	gestures GestureConfig

	surfaces [3]*Surface
	pads     *padCache

	selection   Selection
	menu        *HitMenuMessage
	crosshair   Crosshair
	boardPos    Vec2
	hasBoardPos bool
	showBoard   bool
	mode        ProjectorMode
	calibration Calibration
	role        Role

	picker    Picker
	sender    Sender
	inbox     chan Message
	inboxSize int

	injectQueue []Event
	newCanvas   CanvasFactory
	clock       func() time.Time
	debug       bool
}

// Option configures an App.
type Option func(*App)

// WithSettings sets the initial settings.
func WithSettings(s Settings) Option { return func(a *App) { a.settings = s } }

// WithTheme overrides the theme that would be chosen from Settings.DarkMode.
func WithTheme(t Theme) Option {
	return func(a *App) {
		a.theme = t
		a.themeSet = true
	}
}

// WithSender sets where locally originated messages are sent.
func WithSender(s Sender) Option { return func(a *App) { a.sender = s } }

// WithPicker replaces the default bounding-box picker.
func WithPicker(p Picker) Option { return func(a *App) { a.picker = p } }

// WithCanvasFactory replaces the software gg rasters.
func WithCanvasFactory(f CanvasFactory) Option { return func(a *App) { a.newCanvas = f } }

// WithGestureConfig overrides the tap and wheel thresholds.
func WithGestureConfig(g GestureConfig) Option { return func(a *App) { a.gestures = g } }

// WithInboxSize sets the capacity of the message inbox used by Post.
func WithInboxSize(n int) Option { return func(a *App) { a.inboxSize = n } }

// WithDebug enables redraw timing logs.
func WithDebug(on bool) Option { return func(a *App) { a.debug = on } }

// WithClock sets the clock used to stamp events that carry no time.
func WithClock(now func() time.Time) Option { return func(a *App) { a.clock = now } }

// WithRole sets which remote messages the App acts on.
func WithRole(r Role) Option { return func(a *App) { a.role = r } }

// NewApp builds an App over loaded documents. Surfaces have no rasters until
// their first Resize.
func NewApp(board *Board, sch *Schematic, opts ...Option) (*App, error) {
	if board == nil {
		return nil, &DataLoadError{Document: "board", Err: errors.New("nil document")}
	}
	if sch == nil || len(sch.Sheets) == 0 {
		return nil, &DataLoadError{Document: "schematic", Err: errors.New("no sheets")}
	}
	a := &App{
		board:       board,
		schematic:   sch,
		settings:    DefaultSettings(),
		gestures:    DefaultGestureConfig(),
		pads:        newPadCache(),
		mode:        ModeCalibrate,
		calibration: DefaultCalibration,
		inboxSize:   defaultInboxSize,
		newCanvas:   newGGCanvas,
		clock:       time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	if err := a.settings.validate(); err != nil {
		return nil, err
	}
	if !a.themeSet {
		a.theme = themeFor(a.settings)
	}
	a.index = BuildIndex(board, sch)
	if a.picker == nil {
		a.picker = NewIndexPicker(board, sch, a.index)
	}
	a.inbox = make(chan Message, max(a.inboxSize, 1))
	for _, id := range AllSurfaces {
		a.surfaces[id] = newSurface(id)
	}
	a.surfaces[SurfaceSchematic].Sheet = sch.Sheets[0].ID
	for _, id := range []SurfaceID{SurfaceFront, SurfaceBack} {
		a.surfaces[id].Transform.Rotation = a.settings.BoardRotation
	}
	a.applyVisibility()
	return a, nil
}

func themeFor(s Settings) Theme {
	if s.DarkMode {
		return DarkTheme
	}
	return LightTheme
}

// Board returns the layout document.
func (a *App) Board() *Board { return a.board }

// Schematic returns the schematic document.
func (a *App) Schematic() *Schematic { return a.schematic }

// Index returns the entity index.
func (a *App) Index() *Index { return a.index }

// Settings returns the current settings.
func (a *App) Settings() Settings { return a.settings }

// Theme returns the current theme.
func (a *App) Theme() Theme { return a.theme }

// ProjectorMode returns the current projector mode.
func (a *App) ProjectorMode() ProjectorMode { return a.mode }

// Calibration returns the current projector alignment.
func (a *App) Calibration() Calibration { return a.calibration }

// Crosshair returns the tracking crosshair state.
func (a *App) Crosshair() *Crosshair { return &a.crosshair }

// Surface returns the surface with the given id, or nil.
func (a *App) Surface(id SurfaceID) *Surface {
	if int(id) >= len(a.surfaces) {
		return nil
	}
	return a.surfaces[id]
}

// Mapper returns a coordinate mapper reading the front surface transform.
func (a *App) Mapper() CoordinateMapper {
	front := a.surfaces[SurfaceFront]
	return NewCoordinateMapper(func() Transform { return front.Transform })
}

// currentSheet returns the sheet shown on the schematic surface.
func (a *App) currentSheet() *Sheet {
	sh, _ := a.schematic.sheetByID(a.surfaces[SurfaceSchematic].Sheet)
	return sh
}

// applyVisibility derives surface visibility from the layout settings.
func (a *App) applyVisibility() {
	a.surfaces[SurfaceFront].visible = a.settings.LayoutMode != LayoutBack
	a.surfaces[SurfaceBack].visible = a.settings.LayoutMode != LayoutFront
	a.surfaces[SurfaceSchematic].visible = a.settings.BOMMode != BOMLayoutOnly
}

// Resize sets a surface's size in layout pixels and its device pixel scale,
// refits its transform and redraws it fully. The schematic surface is also
// recentered on its sheet.
func (a *App) Resize(id SurfaceID, width, height int, deviceScale float64) {
	s := a.Surface(id)
	if s == nil {
		Logger().Warn("resize of unknown surface", "surface", id.String())
		return
	}
	if deviceScale <= 0 || math.IsNaN(deviceScale) || math.IsInf(deviceScale, 0) {
		deviceScale = 1
	}
	s.Width, s.Height, s.DeviceScale = width, height, deviceScale
	s.allocate(a.newCanvas)
	sheet := a.currentSheet()
	s.fit(a.board, sheet)
	if !id.IsLayout() {
		s.reset(sheet)
	}
	a.redraw(s)
}

// relayout refits every allocated surface and redraws it fully.
func (a *App) relayout() {
	for _, s := range a.surfaces {
		if s.background == nil {
			continue
		}
		s.fit(a.board, a.currentSheet())
		a.redraw(s)
	}
}

// Reset restores a surface's default view and redraws it.
func (a *App) Reset(id SurfaceID) {
	s := a.Surface(id)
	if s == nil {
		return
	}
	s.reset(a.currentSheet())
	a.redraw(s)
}

// SetSettings replaces the settings and redraws everything.
func (a *App) SetSettings(s Settings) error {
	if err := s.validate(); err != nil {
		return err
	}
	a.settings = s
	if !a.themeSet {
		a.theme = themeFor(s)
	}
	for _, id := range []SurfaceID{SurfaceFront, SurfaceBack} {
		a.surfaces[id].Transform.Rotation = s.BoardRotation
	}
	a.applyVisibility()
	a.relayout()
	return nil
}

// SetBoardRotation rotates both layout surfaces, snapping to 5 degrees, and
// refits them.
func (a *App) SetBoardRotation(deg float64) {
	a.setRotation(deg)
	a.redrawLayout()
}

func (a *App) setRotation(deg float64) {
	r := SnapRotation(deg)
	a.settings.BoardRotation = r
	for _, id := range []SurfaceID{SurfaceFront, SurfaceBack} {
		s := a.surfaces[id]
		s.Transform.Rotation = r
		if s.background != nil {
			s.fit(a.board, nil)
		}
	}
}

// redrawLayout fully redraws both layout surfaces.
func (a *App) redrawLayout() {
	for _, id := range []SurfaceID{SurfaceFront, SurfaceBack} {
		if s := a.surfaces[id]; s.background != nil {
			a.redraw(s)
		}
	}
}

// SetSheet switches the schematic surface to another sheet.
func (a *App) SetSheet(id int) error {
	sheet, ok := a.schematic.sheetByID(id)
	if !ok {
		return fmt.Errorf("sheet %d: %w", id, ErrLookup)
	}
	s := a.surfaces[SurfaceSchematic]
	s.Sheet = id
	if s.background != nil {
		s.fit(a.board, sheet)
		s.reset(sheet)
		a.redraw(s)
	}
	return nil
}

// StepSheet moves the schematic surface by delta sheets in document order,
// wrapping around.
func (a *App) StepSheet(delta int) {
	n := len(a.schematic.Sheets)
	pos := a.index.Sheets[a.surfaces[SurfaceSchematic].Sheet]
	pos = ((pos+delta)%n + n) % n
	_ = a.SetSheet(a.schematic.Sheets[pos].ID)
}

// SetProjectorMode changes the mode locally and sends it to peers.
func (a *App) SetProjectorMode(mode ProjectorMode) {
	if a.applyProjectorMode(mode) {
		a.emit(&ProjectorModeMessage{Mode: mode})
	}
}

func (a *App) applyProjectorMode(mode ProjectorMode) bool {
	switch mode {
	case ModeCalibrate, ModeNormal:
	default:
		Logger().Warn("ignoring projector mode", "mode", string(mode))
		return false
	}
	a.mode = mode
	a.relayout()
	return true
}

// backgroundHidden reports whether board layers are suppressed.
func (a *App) backgroundHidden() bool {
	return a.role == RoleProjector && a.mode == ModeNormal
}

// AdjustProjector sets one calibration component locally and sends it to
// peers.
func (a *App) AdjustProjector(c AdjustComponent, v float64) error {
	if err := a.applyAdjustment(c, v); err != nil {
		return err
	}
	a.emit(&ProjectorAdjustMessage{Component: c, Value: v})
	return nil
}

// applyAdjustment writes one absolute calibration component into the layout
// transforms and redraws them.
func (a *App) applyAdjustment(c AdjustComponent, v float64) error {
	if err := a.setAdjustment(c, v); err != nil {
		return err
	}
	a.redrawLayout()
	return nil
}

// setAdjustment updates the transforms without redrawing. tx is mirrored on
// the back surface.
func (a *App) setAdjustment(c AdjustComponent, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("adjust %s to %v: %w", c, v, ErrNonFinite)
	}
	front, back := a.surfaces[SurfaceFront], a.surfaces[SurfaceBack]
	switch c {
	case AdjustTX:
		front.Transform.PanX = v
		back.Transform.PanX = -v
		a.calibration.TX = v
	case AdjustTY:
		front.Transform.PanY = v
		back.Transform.PanY = v
		a.calibration.TY = v
	case AdjustZ:
		if v <= 0 {
			return fmt.Errorf("adjust z to %v: %w", v, ErrNonFinite)
		}
		front.Transform.Zoom = v
		back.Transform.Zoom = v
		a.calibration.Z = v
	case AdjustR:
		a.setRotation(v)
		a.calibration.R = a.settings.BoardRotation
	default:
		return fmt.Errorf("adjust %q: %w", string(c), ErrUnknownMessage)
	}
	return nil
}

// emit sends a locally originated message to peers.
func (a *App) emit(msg Message) {
	if a.sender == nil {
		return
	}
	if err := a.sender.Send(msg); err != nil {
		Logger().Warn("send failed", "kind", string(msg.Kind()), "err", err)
	}
}

// Post queues a message for the interaction goroutine. It never blocks and
// reports false when the inbox is full. Safe for concurrent use.
func (a *App) Post(msg Message) bool {
	select {
	case a.inbox <- msg:
		return true
	default:
		Logger().Warn("inbox full, dropping message", "kind", string(msg.Kind()))
		return false
	}
}

// Pump applies every message queued by Post, in arrival order, and returns
// how many were applied.
func (a *App) Pump() int {
	n := 0
	for {
		select {
		case msg := <-a.inbox:
			a.Receive(msg)
			n++
		default:
			return n
		}
	}
}

// Receive applies a message from a peer. Nothing is sent back except the
// closed-loop correction of a tracking sample.
func (a *App) Receive(msg Message) {
	switch m := msg.(type) {
	case *SelectionMessage:
		Logger().Info("remote selection", "selection", m.Selection.String())
		a.applySelection(m.Selection)
	case *ProjectorModeMessage:
		if a.role == RoleViewer {
			if m.Mode != ModeCalibrate && m.Mode != ModeNormal {
				Logger().Warn("ignoring projector mode", "mode", string(m.Mode))
				return
			}
			a.mode = m.Mode
			return
		}
		Logger().Info("remote projector mode", "mode", string(m.Mode))
		a.applyProjectorMode(m.Mode)
	case *ProjectorAdjustMessage:
		if a.role == RoleViewer {
			return
		}
		Logger().Info("remote projector adjust", "component", string(m.Component), "value", m.Value)
		if err := a.applyAdjustment(m.Component, m.Value); err != nil {
			Logger().Warn("ignoring projector adjust", "err", err)
		}
	case *HitMenuMessage:
		a.openMenu(m)
	case *TrackingMessage:
		a.applyTracking(m)
	case *ToggleBoardPosMessage:
		a.setBoardPosVisible(m.Visible)
	case *ToolRequestMessage, *ToolConnectMessage, *DebugSessionMessage:
		Logger().Debug("relay event", "kind", string(msg.Kind()))
	default:
		Logger().Warn("ignoring message", "kind", fmt.Sprintf("%T", msg))
	}
}

// applyTracking registers the tracked board position with the layout origin
// and moves the crosshair to the tracked tip.
func (a *App) applyTracking(m *TrackingMessage) {
	moved := false
	if a.role == RoleProjector && finiteVec(m.Board) {
		zoom := a.surfaces[SurfaceFront].Transform.Zoom
		corrections := []struct {
			c       AdjustComponent
			v, prev float64
		}{
			{AdjustTX, m.Board.X / zoom, a.calibration.TX},
			{AdjustTY, -m.Board.Y / zoom, a.calibration.TY},
		}
		for _, k := range corrections {
			if math.Abs(k.v-k.prev) <= trackingDeadband {
				continue
			}
			if err := a.setAdjustment(k.c, k.v); err != nil {
				Logger().Debug("ignoring tracking correction", "err", err)
				continue
			}
			a.emit(&ProjectorAdjustMessage{Component: k.c, Value: k.v})
			moved = true
		}
	}
	if finiteVec(m.Tip) {
		a.crosshair.Set(a.Mapper().ToLayout(m.Tip))
	}
	if finiteVec(m.Board) {
		a.boardPos, a.hasBoardPos = a.Mapper().ToLayout(m.Board), true
	}
	if moved {
		a.redrawLayout()
		return
	}
	for _, id := range []SurfaceID{SurfaceFront, SurfaceBack} {
		a.redrawHighlight(a.surfaces[id])
	}
}

// BoardPosVisible reports whether the tracked board position is marked.
func (a *App) BoardPosVisible() bool { return a.showBoard }

// ShowBoardPos shows or hides the tracked board position marker locally and
// on peers.
func (a *App) ShowBoardPos(on bool) {
	a.setBoardPosVisible(on)
	a.emit(&ToggleBoardPosMessage{Visible: on})
}

func (a *App) setBoardPosVisible(on bool) {
	a.showBoard = on
	for _, id := range []SurfaceID{SurfaceFront, SurfaceBack} {
		a.redrawHighlight(a.surfaces[id])
	}
}

func finiteVec(v Vec2) bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) && !math.IsNaN(v.Y) && !math.IsInf(v.Y, 0)
}

// Update advances the App by one tick of dt seconds: one injected event is
// dispatched, the inbox is drained and the crosshair animation advances.
func (a *App) Update(dt float64) {
	if len(a.injectQueue) > 0 {
		ev := a.injectQueue[0]
		copy(a.injectQueue, a.injectQueue[1:])
		a.injectQueue = a.injectQueue[:len(a.injectQueue)-1]
		a.Dispatch(ev)
	}
	a.Pump()
	if a.crosshair.Update(float32(dt)) {
		for _, id := range []SurfaceID{SurfaceFront, SurfaceBack} {
			a.redrawHighlight(a.surfaces[id])
		}
	}
}
