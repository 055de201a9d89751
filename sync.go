package ardw

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/tidwall/gjson"
)

// MessageKind names a sync message on the wire.
type MessageKind string

const (
	KindSelection       MessageKind = "selection"
	KindProjectorMode   MessageKind = "projector-mode"
	KindProjectorAdjust MessageKind = "projector-adjust"
	KindTracking        MessageKind = "udp"
	KindToggleBoardPos  MessageKind = "toggleboardpos"
	KindToolRequest     MessageKind = "tool-request"
	KindToolConnect     MessageKind = "tool-connect"
	KindDebugSession    MessageKind = "debug-session"
)

// Message is a state change exchanged between peers. The set of
// implementations is closed: the selection, hit menu, projector, tracking,
// board position, tool and debug session messages of this file.
type Message interface {
	Kind() MessageKind
	isMessage()
}

// AdjustComponent names one calibration component.
type AdjustComponent string

const (
	AdjustTX AdjustComponent = "tx"
	AdjustTY AdjustComponent = "ty"
	AdjustR  AdjustComponent = "r"
	AdjustZ  AdjustComponent = "z"
)

// SelectionMessage replaces the shared selection.
type SelectionMessage struct {
	Selection Selection
}

// ProjectorModeMessage switches projector peers between calibration and
// normal display.
type ProjectorModeMessage struct {
	Mode ProjectorMode
}

// ProjectorAdjustMessage sets one calibration component to an absolute value.
type ProjectorAdjustMessage struct {
	Component AdjustComponent
	Value     float64
}

// TrackingMessage is one sample of the optical tracker in device pixels.
// Components that were not measured are NaN.
type TrackingMessage struct {
	Tip   Vec2
	End   Vec2
	Board Vec2
}

// HitMenuMessage offers every entity under a point for the user to choose
// from. It travels as a selection of type "multi". A Deselect hit marks an
// empty slot of a probe menu.
type HitMenuMessage struct {
	Point     Vec2
	Layer     string // "F" or "B"
	Hits      []Selection
	FromProbe bool
}

// ToggleBoardPosMessage shows or hides the tracked board position marker.
type ToggleBoardPosMessage struct {
	Visible bool
}

// ToolRequestMessage asks for a bench tool to be brought online.
type ToolRequestMessage struct {
	Tool    string
	Element string
}

// ToolConnectMessage reports that one element of a tool connected. Ready is
// set once every element of the tool is connected. Status is empty on
// replay.
type ToolConnectMessage struct {
	Status  string
	Tool    string
	Element string
	Ready   bool
}

// SessionEvent names a debug session event.
type SessionEvent string

const (
	SessionNew         SessionEvent = "new"
	SessionEdit        SessionEvent = "edit"
	SessionCustom      SessionEvent = "custom"
	SessionMeasurement SessionEvent = "measurement"
	SessionRecord      SessionEvent = "record"
	SessionSave        SessionEvent = "save"
	SessionExport      SessionEvent = "export"
)

// DebugSessionMessage is one event of the shared debugging session. Name and
// Notes belong to new and edit, ID, Card and Update to custom and
// measurement, Record to record and Count to save. Cards are opaque JSON
// objects owned by the clients.
type DebugSessionMessage struct {
	Event  SessionEvent
	Name   string
	Notes  string
	ID     int
	Card   json.RawMessage
	Update bool
	Record bool
	Count  int
}

func (*SelectionMessage) Kind() MessageKind       { return KindSelection }
func (*HitMenuMessage) Kind() MessageKind         { return KindSelection }
func (*ProjectorModeMessage) Kind() MessageKind   { return KindProjectorMode }
func (*ProjectorAdjustMessage) Kind() MessageKind { return KindProjectorAdjust }
func (*TrackingMessage) Kind() MessageKind        { return KindTracking }
func (*ToggleBoardPosMessage) Kind() MessageKind  { return KindToggleBoardPos }
func (*ToolRequestMessage) Kind() MessageKind     { return KindToolRequest }
func (*ToolConnectMessage) Kind() MessageKind     { return KindToolConnect }
func (*DebugSessionMessage) Kind() MessageKind    { return KindDebugSession }

func (*SelectionMessage) isMessage()       {}
func (*HitMenuMessage) isMessage()         {}
func (*ProjectorModeMessage) isMessage()   {}
func (*ProjectorAdjustMessage) isMessage() {}
func (*TrackingMessage) isMessage()        {}
func (*ToggleBoardPosMessage) isMessage()  {}
func (*ToolRequestMessage) isMessage()     {}
func (*ToolConnectMessage) isMessage()     {}
func (*DebugSessionMessage) isMessage()    {}

// Sender delivers locally originated messages to peers.
type Sender interface {
	Send(msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(Message) error

// Send calls f(msg).
func (f SenderFunc) Send(msg Message) error { return f(msg) }

// Envelope is the wire form of every message.
type Envelope struct {
	Kind MessageKind     `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type valuePayload struct {
	Type string `json:"type"`
	Val  any    `json:"val"`
}

type modePayload struct {
	Mode ProjectorMode `json:"mode"`
}

type menuPayload struct {
	Type      string          `json:"type"`
	Point     Vec2            `json:"point"`
	Layer     string          `json:"layer"`
	Hits      []*valuePayload `json:"hits"`
	FromProbe bool            `json:"from_optitrack"`
}

type toolPayload struct {
	Status string `json:"status,omitempty"`
	Type   string `json:"type"`
	Val    string `json:"val"`
	Ready  *bool  `json:"ready,omitempty"`
}

func selectionPayload(sel Selection) valuePayload {
	p := valuePayload{Type: sel.Kind.String()}
	switch sel.Kind {
	case SelectComponent, SelectPin:
		p.Val = sel.ID
	case SelectNet:
		p.Val = sel.Net
	}
	return p
}

// EncodeMessage returns the JSON envelope of msg.
func EncodeMessage(msg Message) ([]byte, error) {
	var data any
	switch m := msg.(type) {
	case *SelectionMessage:
		data = selectionPayload(m.Selection)
	case *HitMenuMessage:
		p := menuPayload{Type: "multi", Point: m.Point, Layer: m.Layer, FromProbe: m.FromProbe}
		p.Hits = make([]*valuePayload, len(m.Hits))
		for i, h := range m.Hits {
			if h.Kind != SelectNone {
				hp := selectionPayload(h)
				p.Hits[i] = &hp
			}
		}
		data = p
	case *ProjectorModeMessage:
		data = modePayload{Mode: m.Mode}
	case *ProjectorAdjustMessage:
		if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
			return nil, fmt.Errorf("encode %s: %w", m.Component, ErrNonFinite)
		}
		data = valuePayload{Type: string(m.Component), Val: m.Value}
	case *TrackingMessage:
		p := make(map[string]Vec2, 3)
		for name, v := range map[string]Vec2{
			"tippos_pixel":   m.Tip,
			"endpos_pixel":   m.End,
			"boardpos_pixel": m.Board,
		} {
			if finiteVec(v) {
				p[name] = v
			}
		}
		data = p
	case *ToggleBoardPosMessage:
		data = m.Visible
	case *ToolRequestMessage:
		data = toolPayload{Type: m.Tool, Val: m.Element}
	case *ToolConnectMessage:
		data = toolPayload{Status: m.Status, Type: m.Tool, Val: m.Element, Ready: &m.Ready}
	case *DebugSessionMessage:
		p, err := sessionPayload(m)
		if err != nil {
			return nil, err
		}
		data = p
	default:
		return nil, fmt.Errorf("encode %T: %w", msg, ErrUnknownMessage)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Kind(), err)
	}
	return json.Marshal(Envelope{Kind: msg.Kind(), Data: raw})
}

// DecodeMessage parses a JSON envelope.
func DecodeMessage(data []byte) (Message, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("decode message: invalid JSON")
	}
	env := gjson.ParseBytes(data)
	kind := MessageKind(env.Get("kind").String())
	return DecodePayload(kind, []byte(env.Get("data").Raw))
}

// DecodePayload parses the data of a message whose kind is already known.
func DecodePayload(kind MessageKind, data []byte) (Message, error) {
	d := gjson.ParseBytes(data)
	switch kind {
	case KindSelection:
		if d.Get("type").String() == "multi" {
			return decodeHitMenu(d)
		}
		sel, err := decodeSelection(d)
		if err != nil {
			return nil, err
		}
		return &SelectionMessage{Selection: sel}, nil
	case KindProjectorMode:
		// Older peers send the bare mode string.
		mode := d.Get("mode").String()
		if d.Type == gjson.String {
			mode = d.String()
		}
		return &ProjectorModeMessage{Mode: ProjectorMode(mode)}, nil
	case KindProjectorAdjust:
		c := AdjustComponent(d.Get("type").String())
		switch c {
		case AdjustTX, AdjustTY, AdjustR, AdjustZ:
		default:
			return nil, fmt.Errorf("decode projector-adjust: unknown type %q", string(c))
		}
		val := d.Get("val")
		if val.Type != gjson.Number {
			return nil, fmt.Errorf("decode projector-adjust: numeric val required, got %s", val.Type)
		}
		return &ProjectorAdjustMessage{Component: c, Value: val.Float()}, nil
	case KindTracking:
		m := &TrackingMessage{
			Tip:   sampleOf(d.Get("tippos_pixel")),
			End:   sampleOf(d.Get("endpos_pixel")),
			Board: sampleOf(d.Get("boardpos_pixel")),
		}
		return m, nil
	case KindToggleBoardPos:
		if d.Type != gjson.True && d.Type != gjson.False {
			return nil, fmt.Errorf("decode toggleboardpos: boolean data required, got %s", d.Type)
		}
		return &ToggleBoardPosMessage{Visible: d.Bool()}, nil
	case KindToolRequest:
		tool, elem := d.Get("type").String(), d.Get("val").String()
		if tool == "" {
			return nil, fmt.Errorf("decode tool-request: missing type")
		}
		return &ToolRequestMessage{Tool: tool, Element: elem}, nil
	case KindToolConnect:
		tool := d.Get("type").String()
		if tool == "" {
			return nil, fmt.Errorf("decode tool-connect: missing type")
		}
		return &ToolConnectMessage{
			Status:  d.Get("status").String(),
			Tool:    tool,
			Element: d.Get("val").String(),
			Ready:   d.Get("ready").Bool(),
		}, nil
	case KindDebugSession:
		return decodeSession(d)
	}
	return nil, fmt.Errorf("decode %q: %w", string(kind), ErrUnknownMessage)
}

// decodeSelection parses a {type, val} selection payload.
func decodeSelection(d gjson.Result) (Selection, error) {
	k, ok := parseSelectionKind(d.Get("type").String())
	if !ok {
		return Deselect, fmt.Errorf("decode selection: unknown type %q", d.Get("type").String())
	}
	val := d.Get("val")
	sel := Selection{Kind: k}
	switch k {
	case SelectComponent, SelectPin:
		if val.Type != gjson.Number || val.Float() != math.Trunc(val.Float()) {
			return Deselect, fmt.Errorf("decode selection: %s wants a numeric val, got %s", k, val.Raw)
		}
		sel.ID = int(val.Int())
	case SelectNet:
		if val.Type != gjson.String {
			return Deselect, fmt.Errorf("decode selection: net wants a string val, got %s", val.Type)
		}
		sel.Net = val.String()
	}
	return sel, nil
}

func decodeHitMenu(d gjson.Result) (Message, error) {
	hits := d.Get("hits")
	if !hits.IsArray() {
		return nil, fmt.Errorf("decode selection: multi wants a hits array")
	}
	m := &HitMenuMessage{
		Point:     sampleOf(d.Get("point")),
		Layer:     d.Get("layer").String(),
		FromProbe: d.Get("from_optitrack").Bool(),
	}
	if !finiteVec(m.Point) {
		return nil, fmt.Errorf("decode selection: multi wants a point")
	}
	var err error
	hits.ForEach(func(_, h gjson.Result) bool {
		if h.Type == gjson.Null {
			m.Hits = append(m.Hits, Deselect)
			return true
		}
		var sel Selection
		if sel, err = decodeSelection(h); err != nil {
			return false
		}
		m.Hits = append(m.Hits, sel)
		return true
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func sessionPayload(m *DebugSessionMessage) (map[string]any, error) {
	p := map[string]any{"event": m.Event}
	switch m.Event {
	case SessionNew, SessionEdit:
		p["name"], p["notes"] = m.Name, m.Notes
	case SessionCustom, SessionMeasurement:
		if !gjson.ValidBytes(m.Card) || !gjson.ParseBytes(m.Card).IsObject() {
			return nil, fmt.Errorf("encode debug-session %s: card must be a JSON object", m.Event)
		}
		p["id"], p["card"], p["update"] = m.ID, m.Card, m.Update
	case SessionRecord:
		p["record"] = m.Record
	case SessionSave:
		p["count"] = m.Count
	case SessionExport:
	default:
		return nil, fmt.Errorf("encode debug-session %q: %w", string(m.Event), ErrUnknownMessage)
	}
	return p, nil
}

func decodeSession(d gjson.Result) (Message, error) {
	m := &DebugSessionMessage{Event: SessionEvent(d.Get("event").String())}
	switch m.Event {
	case SessionNew, SessionEdit:
		m.Name, m.Notes = d.Get("name").String(), d.Get("notes").String()
	case SessionCustom, SessionMeasurement:
		card := d.Get("card")
		if !card.IsObject() {
			return nil, fmt.Errorf("decode debug-session %s: card object required", m.Event)
		}
		m.Card = json.RawMessage(card.Raw)
		m.ID = int(d.Get("id").Int())
		m.Update = d.Get("update").Bool()
	case SessionRecord:
		m.Record = d.Get("record").Bool()
	case SessionSave:
		m.Count = int(d.Get("count").Int())
	case SessionExport:
	default:
		return nil, fmt.Errorf("decode debug-session %q: %w", string(m.Event), ErrUnknownMessage)
	}
	return m, nil
}

// sampleOf decodes a tracked position, NaN when absent or malformed.
func sampleOf(r gjson.Result) Vec2 {
	var v Vec2
	if !r.Exists() || v.UnmarshalJSON([]byte(r.Raw)) != nil {
		return Vec2{math.NaN(), math.NaN()}
	}
	return v
}
