package relay

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/phanxgames/ardw"
)

// ============================================================
// Hub
// ============================================================

// minPeerBuffer holds the replay sent to a joining peer.
const minPeerBuffer = 8

// Tool connection status values.
const (
	ToolSuccess = "success"
	ToolFailed  = "failed"
)

// toolOrder lists the bench tools and the elements each must connect.
var toolOrder = []struct {
	name     string
	elements []string
}{
	{"ptr", []string{"device"}},
	{"dmm", []string{"device", "pos", "neg"}},
	{"osc", []string{"device", "1", "2", "3", "4"}},
}

// State is the shared state a joining peer is brought up to date with.
type State struct {
	Selection   ardw.Selection
	Mode        ardw.ProjectorMode
	Calibration ardw.Calibration
}

// DebugSession is the shared debugging session: a name, free notes and the
// cards peers have added, in order.
type DebugSession struct {
	Name      string
	Notes     string
	Cards     []json.RawMessage
	Recording bool
}

type toolState struct {
	requested bool
	connected map[string]bool
}

// Subscription is one peer's view of the broadcast stream. C is closed when
// the peer leaves or falls too far behind.
type Subscription struct {
	ID string
	C  <-chan []byte

	ch chan []byte
}

// delivery is one message fanned out by Publish. skip names a peer that
// does not receive it.
type delivery struct {
	msg  ardw.Message
	skip string
}

// Hub holds the shared selection, projector mode, calibration, tool readiness
// and debug session, and fans every published message out to the connected
// peers in arrival order.
type Hub struct {
	mu      sync.Mutex
	state   State
	tools   map[string]*toolState
	session *DebugSession
	saved   []DebugSession
	peers   map[string]*Subscription
	buffer  int
}

// NewHub returns a hub whose peers may queue up to buffer messages.
func NewHub(buffer int) *Hub {
	h := &Hub{
		state: State{
			Selection:   ardw.Deselect,
			Mode:        ardw.ModeCalibrate,
			Calibration: ardw.DefaultCalibration,
		},
		tools:  make(map[string]*toolState, len(toolOrder)),
		peers:  make(map[string]*Subscription),
		buffer: max(buffer, minPeerBuffer),
	}
	for _, t := range toolOrder {
		h.tools[t.name] = &toolState{connected: make(map[string]bool, len(t.elements))}
	}
	return h
}

// State returns a copy of the current shared state.
func (h *Hub) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Session returns a copy of the active debug session.
func (h *Hub) Session() (DebugSession, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.session == nil {
		return DebugSession{}, false
	}
	s := *h.session
	s.Cards = slices.Clone(s.Cards)
	return s, true
}

// SavedSessions returns how many debug sessions were saved.
func (h *Hub) SavedSessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.saved)
}

// ToolReady reports whether every element of tool is connected.
func (h *Hub) ToolReady(tool string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.toolReady(tool)
}

// Peers returns the number of connected peers.
func (h *Hub) Peers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// Join registers a peer and queues the replay of the current state:
// selection (unless empty), mode, then tx, ty, r and z, one tool-connect per
// connected tool element, and the active debug session with its cards. An
// empty id is replaced with a fresh UUID. Joining with the id of a connected
// peer replaces that peer.
func (h *Hub) Join(id string) (*Subscription, error) {
	if id == "" {
		id = uuid.NewString()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	replay, err := h.replay()
	if err != nil {
		return nil, err
	}
	ch := make(chan []byte, max(h.buffer, len(replay)))
	sub := &Subscription{ID: id, C: ch, ch: ch}
	for _, data := range replay {
		ch <- data
	}
	if old, ok := h.peers[id]; ok {
		close(old.ch)
	}
	h.peers[id] = sub

	ardw.Logger().Info("peer connected", "peer", id, "active", len(h.peers))
	return sub, nil
}

// Leave removes sub if it is still the registered peer for its id.
func (h *Hub) Leave(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.peers[sub.ID]; ok && cur == sub {
		delete(h.peers, sub.ID)
		close(sub.ch)
		ardw.Logger().Info("peer disconnected", "peer", sub.ID, "active", len(h.peers))
	}
}

// replay encodes the current state. Callers hold h.mu.
func (h *Hub) replay() ([][]byte, error) {
	st := h.state
	var msgs []ardw.Message
	if st.Selection.Kind != ardw.SelectNone {
		msgs = append(msgs, &ardw.SelectionMessage{Selection: st.Selection})
	}
	msgs = append(msgs,
		&ardw.ProjectorModeMessage{Mode: st.Mode},
		&ardw.ProjectorAdjustMessage{Component: ardw.AdjustTX, Value: st.Calibration.TX},
		&ardw.ProjectorAdjustMessage{Component: ardw.AdjustTY, Value: st.Calibration.TY},
		&ardw.ProjectorAdjustMessage{Component: ardw.AdjustR, Value: st.Calibration.R},
		&ardw.ProjectorAdjustMessage{Component: ardw.AdjustZ, Value: st.Calibration.Z},
	)
	for _, t := range toolOrder {
		ready := h.toolReady(t.name)
		for _, e := range t.elements {
			if h.tools[t.name].connected[e] {
				msgs = append(msgs, &ardw.ToolConnectMessage{Tool: t.name, Element: e, Ready: ready})
			}
		}
	}
	if s := h.session; s != nil {
		msgs = append(msgs, &ardw.DebugSessionMessage{Event: ardw.SessionNew, Name: s.Name, Notes: s.Notes})
		for i, card := range s.Cards {
			msgs = append(msgs, &ardw.DebugSessionMessage{Event: ardw.SessionCustom, ID: i, Card: card})
		}
		if s.Recording {
			msgs = append(msgs, &ardw.DebugSessionMessage{Event: ardw.SessionRecord, Record: true})
		}
	}

	out := make([][]byte, 0, len(msgs))
	for _, m := range msgs {
		data, err := ardw.EncodeMessage(m)
		if err != nil {
			return nil, fmt.Errorf("replay: %w", err)
		}
		out = append(out, data)
	}
	return out, nil
}

// Publish records msg in the shared state and forwards it to every peer
// except origin. Tool and debug session messages are answered with the
// resulting state, sent to every peer. A peer whose queue is full is
// disconnected.
func (h *Hub) Publish(origin string, msg ardw.Message) error {
	data, err := ardw.EncodeMessage(msg)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	out, err := h.apply(origin, msg)
	if err != nil {
		return err
	}
	for _, d := range out {
		payload := data
		if d.msg != msg {
			if payload, err = ardw.EncodeMessage(d.msg); err != nil {
				return err
			}
		}
		h.broadcast(d.skip, payload)
	}
	return nil
}

// ConnectTool reports one tool element connecting, or failing to, and sends
// the result to every peer.
func (h *Hub) ConnectTool(tool, element string, ok bool) error {
	status := ToolSuccess
	if !ok {
		status = ToolFailed
	}
	return h.Publish("", &ardw.ToolConnectMessage{Status: status, Tool: tool, Element: element})
}

// AutoconnectTools marks every element of the named tools connected without
// notifying peers.
func (h *Hub) AutoconnectTools(tools ...string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, name := range tools {
		t, ok := h.tools[name]
		if !ok {
			return fmt.Errorf("tool %q: %w", name, ardw.ErrLookup)
		}
		t.requested = true
		for _, e := range toolElements(name) {
			t.connected[e] = true
		}
	}
	return nil
}

// broadcast queues data on every peer except skip. Callers hold h.mu.
func (h *Hub) broadcast(skip string, data []byte) {
	for id, p := range h.peers {
		if id == skip && skip != "" {
			continue
		}
		select {
		case p.ch <- data:
		default:
			ardw.Logger().Warn("dropping slow peer", "peer", id)
			delete(h.peers, id)
			close(p.ch)
		}
	}
}

// apply updates the shared state and returns what to fan out. Callers hold
// h.mu.
func (h *Hub) apply(origin string, msg ardw.Message) ([]delivery, error) {
	forward := []delivery{{msg: msg, skip: origin}}
	switch m := msg.(type) {
	case *ardw.SelectionMessage:
		h.state.Selection = m.Selection
		ardw.Logger().Info("selection", "sel", m.Selection.String())
	case *ardw.HitMenuMessage:
		ardw.Logger().Info("hit menu", "hits", len(m.Hits), "probe", m.FromProbe)
	case *ardw.ProjectorModeMessage:
		if m.Mode != ardw.ModeCalibrate && m.Mode != ardw.ModeNormal {
			return nil, fmt.Errorf("projector mode %q: %w", string(m.Mode), ardw.ErrUnknownMessage)
		}
		h.state.Mode = m.Mode
		ardw.Logger().Info("projector mode", "mode", string(m.Mode))
	case *ardw.ProjectorAdjustMessage:
		c := &h.state.Calibration
		switch m.Component {
		case ardw.AdjustTX:
			c.TX = m.Value
		case ardw.AdjustTY:
			c.TY = m.Value
		case ardw.AdjustR:
			c.R = ardw.SnapRotation(m.Value)
		case ardw.AdjustZ:
			if m.Value <= 0 {
				return nil, fmt.Errorf("projector zoom %v: %w", m.Value, ardw.ErrNonFinite)
			}
			c.Z = m.Value
		}
		ardw.Logger().Info("projector adjust", "type", string(m.Component), "val", m.Value)
	case *ardw.TrackingMessage, *ardw.ToggleBoardPosMessage:
	case *ardw.ToolRequestMessage:
		return h.requestTool(m, origin)
	case *ardw.ToolConnectMessage:
		return h.connectTool(m)
	case *ardw.DebugSessionMessage:
		return h.sessionEvent(m)
	}
	return forward, nil
}

func toolElements(name string) []string {
	for _, t := range toolOrder {
		if t.name == name {
			return t.elements
		}
	}
	return nil
}

// toolReady reports whether every element of tool is connected. Callers
// hold h.mu.
func (h *Hub) toolReady(name string) bool {
	t, ok := h.tools[name]
	if !ok {
		return false
	}
	for _, e := range toolElements(name) {
		if !t.connected[e] {
			return false
		}
	}
	return true
}

// requestTool forwards the first request for a tool. Repeats are dropped.
func (h *Hub) requestTool(m *ardw.ToolRequestMessage, origin string) ([]delivery, error) {
	t, ok := h.tools[m.Tool]
	if !ok {
		return nil, fmt.Errorf("tool %q: %w", m.Tool, ardw.ErrLookup)
	}
	if t.requested {
		ardw.Logger().Info("tool already requested", "tool", m.Tool)
		return nil, nil
	}
	t.requested = true
	ardw.Logger().Info("tool requested", "tool", m.Tool, "val", m.Element)
	return []delivery{{msg: m, skip: origin}}, nil
}

// connectTool records a connection result and reports it, with the tool's
// readiness, to every peer.
func (h *Hub) connectTool(m *ardw.ToolConnectMessage) ([]delivery, error) {
	t, ok := h.tools[m.Tool]
	if !ok || !slices.Contains(toolElements(m.Tool), m.Element) {
		return nil, fmt.Errorf("tool %s.%s: %w", m.Tool, m.Element, ardw.ErrLookup)
	}
	out := &ardw.ToolConnectMessage{Status: ToolFailed, Tool: m.Tool, Element: m.Element}
	if m.Status != ToolFailed {
		t.connected[m.Element] = true
		out.Status = ToolSuccess
		out.Ready = h.toolReady(m.Tool)
	}
	ardw.Logger().Info("tool connect", "tool", m.Tool, "val", m.Element, "status", out.Status, "ready", out.Ready)
	return []delivery{{msg: out}}, nil
}

// sessionEvent applies a debug session event, opening a session first when
// none is active. Every resulting event is sent to all peers.
func (h *Hub) sessionEvent(m *ardw.DebugSessionMessage) ([]delivery, error) {
	var out []delivery
	send := func(msg *ardw.DebugSessionMessage) { out = append(out, delivery{msg: msg}) }

	if h.session == nil {
		h.session = &DebugSession{}
		send(&ardw.DebugSessionMessage{Event: ardw.SessionNew})
		ardw.Logger().Info("debug session opened")
	}
	s := h.session

	switch m.Event {
	case ardw.SessionNew:
	case ardw.SessionEdit:
		s.Name, s.Notes = m.Name, m.Notes
		send(&ardw.DebugSessionMessage{Event: ardw.SessionEdit, Name: s.Name, Notes: s.Notes})
	case ardw.SessionCustom:
		s.Cards = append(s.Cards, slices.Clone(m.Card))
		send(&ardw.DebugSessionMessage{Event: ardw.SessionCustom, ID: len(s.Cards) - 1, Card: m.Card})
	case ardw.SessionMeasurement:
		if !s.Recording {
			ardw.Logger().Warn("measurement while not recording, ignoring")
			break
		}
		s.Cards = append(s.Cards, slices.Clone(m.Card))
		send(&ardw.DebugSessionMessage{Event: ardw.SessionMeasurement, ID: len(s.Cards) - 1, Card: m.Card})
	case ardw.SessionRecord:
		if m.Record != s.Recording {
			s.Recording = m.Record
			send(&ardw.DebugSessionMessage{Event: ardw.SessionRecord, Record: s.Recording})
		}
	case ardw.SessionSave:
		h.saved = append(h.saved, *s)
		h.session = nil
		send(&ardw.DebugSessionMessage{Event: ardw.SessionSave, Count: len(h.saved)})
		ardw.Logger().Info("debug session saved", "name", s.Name, "cards", len(s.Cards))
	case ardw.SessionExport:
		ardw.Logger().Warn("debug session export is not supported")
	}
	return out, nil
}
