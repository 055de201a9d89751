package ardw

import "fmt"

// SelectionKind is the kind of entity that is highlighted.
type SelectionKind uint8

const (
	SelectNone      SelectionKind = iota // nothing highlighted
	SelectComponent                      // a footprint, by index
	SelectPin                            // a schematic pin, by pin id
	SelectNet                            // a net, by name
)

// String returns the wire name of the kind.
func (k SelectionKind) String() string {
	switch k {
	case SelectNone:
		return "deselect"
	case SelectComponent:
		return "comp"
	case SelectPin:
		return "pin"
	case SelectNet:
		return "net"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// parseSelectionKind maps a wire name back to a kind.
func parseSelectionKind(s string) (SelectionKind, bool) {
	switch s {
	case "deselect", "":
		return SelectNone, true
	case "comp":
		return SelectComponent, true
	case "pin":
		return SelectPin, true
	case "net":
		return SelectNet, true
	}
	return SelectNone, false
}

// Selection is the single highlighted entity shared by all surfaces. ID is
// meaningful for components and pins, Net for nets. Only one kind is active
// at a time: a new selection always replaces the previous one whole.
type Selection struct {
	Kind SelectionKind
	ID   int
	Net  string
}

// Deselect is the empty selection.
var Deselect = Selection{}

// ComponentSelection selects a footprint by index.
func ComponentSelection(id int) Selection { return Selection{Kind: SelectComponent, ID: id} }

// PinSelection selects a schematic pin by id.
func PinSelection(id int) Selection { return Selection{Kind: SelectPin, ID: id} }

// NetSelection selects a net by name.
func NetSelection(name string) Selection { return Selection{Kind: SelectNet, Net: name} }

// normalized clears the fields that do not belong to the kind.
func (s Selection) normalized() Selection {
	switch s.Kind {
	case SelectComponent, SelectPin:
		return Selection{Kind: s.Kind, ID: s.ID}
	case SelectNet:
		return Selection{Kind: SelectNet, Net: s.Net}
	default:
		return Deselect
	}
}

func (s Selection) String() string {
	switch s.Kind {
	case SelectNone:
		return "none"
	case SelectNet:
		return fmt.Sprintf("net %q", s.Net)
	default:
		return fmt.Sprintf("%s %d", s.Kind, s.ID)
	}
}

// Selection returns the current selection.
func (a *App) Selection() Selection { return a.selection }

// Select replaces the selection from a local action. The change is applied,
// highlights are redrawn and the new selection is sent to peers. Selections
// naming unknown entities are logged and ignored.
func (a *App) Select(sel Selection) {
	if a.applySelection(sel) {
		a.emit(&SelectionMessage{Selection: a.selection})
	}
}

// ClearSelection deselects locally and clears any tracking crosshair.
func (a *App) ClearSelection() { a.Select(Deselect) }

// applySelection validates and stores sel, then redraws every highlight
// layer. It reports whether the selection was accepted.
func (a *App) applySelection(sel Selection) bool {
	sel = sel.normalized()
	if err := a.index.Validate(sel); err != nil {
		Logger().Warn("ignoring selection", "selection", sel.String(), "err", err)
		return false
	}
	a.selection = sel
	a.menu = nil
	if sel.Kind == SelectNone {
		a.crosshair.Clear()
	}
	a.redrawHighlights()
	return true
}

// HitMenu returns the open hit menu, or nil.
func (a *App) HitMenu() *HitMenuMessage { return a.menu }

// openMenu shows the hits of a remote multi-hit pick until one is chosen or
// the selection changes.
func (a *App) openMenu(m *HitMenuMessage) {
	for _, h := range m.Hits {
		if err := a.index.Validate(h.normalized()); err != nil {
			Logger().Warn("ignoring hit menu", "hit", h.String(), "err", err)
			return
		}
	}
	Logger().Info("hit menu", "hits", len(m.Hits), "probe", m.FromProbe)
	a.menu = m
	a.redrawHighlights()
}

// ChooseHit selects option i of the open hit menu and sends it to peers.
func (a *App) ChooseHit(i int) error {
	if a.menu == nil || i < 0 || i >= len(a.menu.Hits) || a.menu.Hits[i].Kind == SelectNone {
		return fmt.Errorf("hit menu option %d: %w", i, ErrLookup)
	}
	a.Select(a.menu.Hits[i])
	return nil
}
