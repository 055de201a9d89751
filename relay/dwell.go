package relay

import (
	"math"
	"slices"
	"time"

	"github.com/phanxgames/ardw"
)

// ============================================================
// Dwell Detection
// ============================================================

// menuSlots is the number of options a probe hit menu offers, one per
// direction the probe end can tilt.
const menuSlots = 4

// DwellConfig tunes probe dwell selection.
type DwellConfig struct {
	// Samples is the history length a dwell is judged over.
	Samples int
	// Threshold is how far, in device pixels, any tip sample may sit from
	// the history mean.
	Threshold float64
	// EndThreshold is the same bound for the probe end while a menu is open.
	EndThreshold float64
	// MenuTip is how far the dwelling tip may move from an open menu before
	// the menu is dismissed.
	MenuTip float64
	// MenuEnd is how far the probe end must tilt to choose a menu option.
	MenuEnd float64
	// Buffer is the minimum time between probe picks.
	Buffer time.Duration
	// Padding grows pad hit areas, in board units.
	Padding float64
}

// DwellConfigFrom derives the dwell settings from relay configuration.
func DwellConfigFrom(cfg ardw.RelayConfig) DwellConfig {
	return DwellConfig{
		Samples:      max(int(float64(cfg.FrameRate)*cfg.DwellTime.Seconds()), 1),
		Threshold:    cfg.Stationary,
		EndThreshold: cfg.StationaryEnd,
		MenuTip:      cfg.MenuTip,
		MenuEnd:      cfg.MenuEnd,
		Buffer:       cfg.SelectBuffer,
		Padding:      cfg.PinPadding,
	}
}

// probeMenu is an open hit menu and the probe pose it was opened at.
type probeMenu struct {
	hits     [menuSlots]ardw.Selection
	tip, end ardw.Vec2
}

// Dwell turns a stationary probe tip into a selection on the front layer.
// When several entities lie under the tip it opens a hit menu instead. While
// the tip stays put, moving the probe end toward +x chooses slot 2, -x slot
// 0, +y slot 1 and -y slot 3.
type Dwell struct {
	cfg    DwellConfig
	picker ardw.Picker
	mapper ardw.CoordinateMapper

	history []Sample
	next    int
	filled  bool
	last    time.Time
	menu    *probeMenu
}

// NewDwell returns a detector that maps tips through the hub's calibration
// and resolves them with picker. A picker that is also an ardw.HitScanner
// enables hit menus.
func NewDwell(cfg DwellConfig, picker ardw.Picker, hub *Hub) *Dwell {
	return &Dwell{
		cfg:    cfg,
		picker: picker,
		mapper: ardw.NewCoordinateMapper(func() ardw.Transform {
			c := hub.State().Calibration
			return ardw.Transform{PanX: c.TX, PanY: c.TY, S: 1, Zoom: c.Z}
		}),
		history: make([]Sample, max(cfg.Samples, 1)),
	}
}

// MenuOpen reports whether a probe hit menu is waiting for a choice.
func (d *Dwell) MenuOpen() bool { return d.menu != nil }

// Observe records a sample taken at now and returns the messages to publish.
// Misses never deselect.
func (d *Dwell) Observe(s Sample, now time.Time) []ardw.Message {
	if !finite(s.Tip) {
		return nil
	}
	d.history[d.next] = s
	d.next = (d.next + 1) % len(d.history)
	if d.next == 0 {
		d.filled = true
	}
	if !d.filled {
		return nil
	}

	tip := d.mean(func(s Sample) ardw.Vec2 { return s.Tip })
	if !d.within(func(s Sample) ardw.Vec2 { return s.Tip }, tip, d.cfg.Threshold) {
		return nil
	}
	if d.menu == nil {
		return d.pick(tip, s, now)
	}
	if tip.Sub(d.menu.tip).Len() > d.cfg.MenuTip {
		ardw.Logger().Info("closing hit menu, tip moved")
		d.menu = nil
		return []ardw.Message{&ardw.SelectionMessage{Selection: ardw.Deselect}}
	}
	return d.choose(now)
}

// pick resolves a dwelling tip, rate limited by the selection buffer.
func (d *Dwell) pick(tip ardw.Vec2, latest Sample, now time.Time) []ardw.Message {
	if !d.last.IsZero() && now.Sub(d.last) < d.cfg.Buffer {
		return nil
	}
	d.last = now

	pt := d.mapper.ToLayout(tip)
	q := ardw.PickQuery{
		Surface: ardw.SurfaceFront,
		Point:   pt,
		Pads:    true,
		Padding: d.cfg.Padding,
	}
	var hits []ardw.Selection
	if hs, ok := d.picker.(ardw.HitScanner); ok {
		hits = hs.PickAll(q)
	} else if sel := d.picker.Pick(q); sel.Kind != ardw.SelectNone {
		hits = []ardw.Selection{sel}
	}

	switch len(hits) {
	case 0:
		return nil
	case 1:
		ardw.Logger().Info("probe selection", "x", pt.X, "y", pt.Y, "sel", hits[0].String())
		return []ardw.Message{&ardw.SelectionMessage{Selection: hits[0]}}
	}

	m := &probeMenu{tip: latest.Tip, end: latest.End}
	copy(m.hits[:], hits)
	d.menu = m
	ardw.Logger().Info("probe hit menu", "x", pt.X, "y", pt.Y, "hits", len(hits))
	return []ardw.Message{
		&ardw.SelectionMessage{Selection: ardw.Deselect},
		&ardw.HitMenuMessage{Point: pt, Layer: "F", Hits: slices.Clone(m.hits[:]), FromProbe: true},
	}
}

// choose selects the menu option the probe end is tilted toward once the end
// has settled. Empty slots keep the menu open.
func (d *Dwell) choose(now time.Time) []ardw.Message {
	end := func(s Sample) ardw.Vec2 { return s.End }
	for _, s := range d.history {
		if !finite(s.End) {
			return nil
		}
	}
	mean := d.mean(end)
	if !d.within(end, mean, d.cfg.EndThreshold) {
		return nil
	}
	diff := d.menu.end.Sub(mean)
	if diff.Len() <= d.cfg.MenuEnd {
		return nil
	}

	var slot int
	if math.Abs(diff.X) >= math.Abs(diff.Y) {
		slot = 0
		if diff.X < 0 {
			slot = 2
		}
	} else {
		slot = 3
		if diff.Y < 0 {
			slot = 1
		}
	}
	sel := d.menu.hits[slot]
	if sel.Kind == ardw.SelectNone {
		return nil
	}
	ardw.Logger().Info("hit menu choice", "slot", slot, "sel", sel.String())
	d.menu = nil
	d.last = now
	return []ardw.Message{&ardw.SelectionMessage{Selection: sel}}
}

func (d *Dwell) mean(field func(Sample) ardw.Vec2) ardw.Vec2 {
	var sum ardw.Vec2
	for _, s := range d.history {
		sum = sum.Add(field(s))
	}
	return sum.Scale(1 / float64(len(d.history)))
}

func (d *Dwell) within(field func(Sample) ardw.Vec2, ref ardw.Vec2, threshold float64) bool {
	for _, s := range d.history {
		if field(s).Sub(ref).Len() > threshold {
			return false
		}
	}
	return true
}

func finite(v ardw.Vec2) bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) && !math.IsNaN(v.Y) && !math.IsInf(v.Y, 0)
}
