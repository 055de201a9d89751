package ardw

import (
	"fmt"
	"slices"
)

// PinInfo is one schematic pin resolved against the board.
type PinInfo struct {
	ID    int
	Ref   string
	Name  string
	Num   string
	Pos   Vec2
	End   Vec2
	Sheet int
	Net   string // empty when the pin is unconnected
}

// UnitInfo is one unit of a component on a sheet.
type UnitInfo struct {
	Num   int
	Sheet int
	BBox  BBox
	Pins  []int // pin ids
}

// ComponentInfo collects the schematic units of a board footprint.
type ComponentInfo struct {
	Ref     string
	Libcomp string
	Sheets  []int
	Units   map[int]*UnitInfo
}

// NetInfo lists the sheets and pins a schematic net touches.
type NetInfo struct {
	Sheets []int
	Pins   []int
}

// Index is the entity table shared by the renderer, the picker and selection
// validation. Component ids are footprint indices; pin ids index Pins.
type Index struct {
	RefIDs     map[string]int
	Sheets     map[int]int // sheet id -> position in Schematic.Sheets
	Components map[int]*ComponentInfo
	Nets       map[string]*NetInfo
	PinRefs    map[string]int // "REF.NUM" -> pin id
	Pins       []PinInfo

	boardNets   map[string]bool
	nFootprints int
}

// pinRef formats the key used in PinRefs.
func pinRef(ref, num string) string { return fmt.Sprintf("%s.%s", ref, num) }

// BuildIndex joins the board and schematic documents. Inconsistencies between
// the two are logged and skipped.
func BuildIndex(b *Board, s *Schematic) *Index {
	log := Logger()
	idx := &Index{
		RefIDs:      b.RefIDs,
		Sheets:      make(map[int]int),
		Components:  make(map[int]*ComponentInfo),
		Nets:        make(map[string]*NetInfo),
		PinRefs:     make(map[string]int),
		boardNets:   make(map[string]bool, len(b.Nets)),
		nFootprints: len(b.Footprints),
	}
	for _, n := range b.Nets {
		idx.boardNets[n] = true
	}

	// unit pins accumulate here before ids are assigned
	type pendingPin struct {
		pin SchematicPin
		net string
	}
	pending := make(map[*UnitInfo][]pendingPin)
	var unitOrder []*UnitInfo
	unitRef := make(map[*UnitInfo]string)

	for i, sh := range s.Sheets {
		idx.Sheets[sh.ID] = i
		if len(sh.Components) == 0 {
			log.Warn("schematic sheet has no components", "sheet", sh.ID)
			continue
		}
		for _, comp := range sh.Components {
			id, ok := idx.RefIDs[comp.Ref]
			if !ok {
				log.Warn("component is in schematic but not in layout", "ref", comp.Ref)
				continue
			}
			ci, ok := idx.Components[id]
			if !ok {
				ci = &ComponentInfo{
					Ref:     comp.Ref,
					Libcomp: comp.Libcomp,
					Sheets:  []int{sh.ID},
					Units:   make(map[int]*UnitInfo),
				}
				idx.Components[id] = ci
			} else {
				if _, dup := ci.Units[comp.Unit]; dup {
					log.Warn("component unit appears more than once, ignoring repeat",
						"ref", comp.Ref, "unit", comp.Unit)
					continue
				}
				if !slices.Contains(ci.Sheets, sh.ID) {
					ci.Sheets = append(ci.Sheets, sh.ID)
				}
			}
			u := &UnitInfo{Num: comp.Unit, Sheet: sh.ID, BBox: comp.BBox}
			ci.Units[comp.Unit] = u
			unitOrder = append(unitOrder, u)
			unitRef[u] = comp.Ref
			for _, p := range comp.Pins {
				pending[u] = append(pending[u], pendingPin{pin: p})
			}
		}
	}

	for _, net := range s.Nets {
		var sheets []int
		for _, np := range net.Pins {
			id, ok := idx.RefIDs[np.Ref]
			if !ok {
				log.Warn("net pin references unknown component, ignoring",
					"ref", np.Ref, "net", net.Name)
				continue
			}
			ci, ok := idx.Components[id]
			if !ok {
				continue
			}
			for _, u := range ci.Units {
				pins := pending[u]
				for k := range pins {
					if pins[k].pin.Num == np.Pin {
						pins[k].net = net.Name
						if !slices.Contains(sheets, u.Sheet) {
							sheets = append(sheets, u.Sheet)
						}
					}
				}
			}
		}
		if len(sheets) == 0 {
			log.Warn("net has no valid pins", "net", net.Name)
			continue
		}
		slices.Sort(sheets)
		idx.Nets[net.Name] = &NetInfo{Sheets: sheets}
	}

	for _, u := range unitOrder {
		ref := unitRef[u]
		for _, pp := range pending[u] {
			id := len(idx.Pins)
			info := PinInfo{
				ID:    id,
				Ref:   ref,
				Name:  pp.pin.Name,
				Num:   pp.pin.Num,
				Pos:   pp.pin.Pos,
				End:   pp.pin.End,
				Sheet: u.Sheet,
			}
			if ni, ok := idx.Nets[pp.net]; ok && pp.net != "" {
				info.Net = pp.net
				ni.Pins = append(ni.Pins, id)
			}
			key := pinRef(ref, info.Num)
			if _, dup := idx.PinRefs[key]; dup {
				log.Warn("pin name is not unique", "pin", key)
			} else {
				idx.PinRefs[key] = id
			}
			u.Pins = append(u.Pins, id)
			idx.Pins = append(idx.Pins, info)
		}
	}
	return idx
}

// Pin returns the pin with the given id.
func (idx *Index) Pin(id int) (*PinInfo, bool) {
	if id < 0 || id >= len(idx.Pins) {
		return nil, false
	}
	return &idx.Pins[id], true
}

// Validate checks that the selection names a known entity.
func (idx *Index) Validate(sel Selection) error {
	switch sel.Kind {
	case SelectNone:
		return nil
	case SelectComponent:
		if sel.ID < 0 || sel.ID >= idx.nFootprints {
			return fmt.Errorf("component %d: %w", sel.ID, ErrLookup)
		}
	case SelectPin:
		if _, ok := idx.Pin(sel.ID); !ok {
			return fmt.Errorf("pin %d: %w", sel.ID, ErrLookup)
		}
	case SelectNet:
		if _, ok := idx.Nets[sel.Net]; !ok && !idx.boardNets[sel.Net] {
			return fmt.Errorf("net %q: %w", sel.Net, ErrLookup)
		}
	default:
		return fmt.Errorf("selection kind %d: %w", sel.Kind, ErrLookup)
	}
	return nil
}
