package ardw

import (
	"fmt"
	"strings"
)

// LayoutMode selects which layout surfaces are shown.
type LayoutMode string

const (
	LayoutFront LayoutMode = "F"
	LayoutBoth  LayoutMode = "FB"
	LayoutBack  LayoutMode = "B"
)

// BOMMode arranges the layout surfaces against the schematic.
type BOMMode string

const (
	BOMLeftRight  BOMMode = "left-right"
	BOMTopBottom  BOMMode = "top-bottom"
	BOMLayoutOnly BOMMode = "layout-only"
)

// Settings are the persisted user preferences that affect rendering and
// interaction.
type Settings struct {
	// RedrawOnDrag redraws on every pan/pinch move instead of once on release.
	RedrawOnDrag bool `mapstructure:"redraw_on_drag"`
	// BoardRotation is the layout rotation in degrees, snapped to 5.
	BoardRotation float64 `mapstructure:"board_rotation"`

	RenderPads        bool `mapstructure:"render_pads"`
	RenderReferences  bool `mapstructure:"render_references"`
	RenderValues      bool `mapstructure:"render_values"`
	RenderSilkscreen  bool `mapstructure:"render_silkscreen"`
	RenderFabrication bool `mapstructure:"render_fabrication"`
	RenderDNPOutline  bool `mapstructure:"render_dnp_outline"`
	RenderTracks      bool `mapstructure:"render_tracks"`
	RenderZones       bool `mapstructure:"render_zones"`
	HighlightPin1     bool `mapstructure:"highlight_pin1"`

	DarkMode   bool       `mapstructure:"dark_mode"`
	LayoutMode LayoutMode `mapstructure:"canvas_layout"`
	BOMMode    BOMMode    `mapstructure:"bom_mode"`
}

// DefaultSettings returns the settings used when nothing is persisted.
func DefaultSettings() Settings {
	return Settings{
		RedrawOnDrag:      true,
		RenderPads:        true,
		RenderReferences:  true,
		RenderValues:      true,
		RenderSilkscreen:  true,
		RenderFabrication: true,
		RenderDNPOutline:  false,
		RenderTracks:      true,
		RenderZones:       true,
		HighlightPin1:     false,
		LayoutMode:        LayoutBoth,
		BOMMode:           BOMLeftRight,
	}
}

// validate normalizes enumerations and snaps the rotation.
func (s *Settings) validate() error {
	s.BoardRotation = SnapRotation(s.BoardRotation)
	switch LayoutMode(strings.ToUpper(string(s.LayoutMode))) {
	case LayoutFront, LayoutBoth, LayoutBack:
		s.LayoutMode = LayoutMode(strings.ToUpper(string(s.LayoutMode)))
	case "":
		s.LayoutMode = LayoutBoth
	default:
		return fmt.Errorf("settings: canvas_layout %q: want F, FB or B", s.LayoutMode)
	}
	switch s.BOMMode {
	case BOMLeftRight, BOMTopBottom, BOMLayoutOnly:
	case "":
		s.BOMMode = BOMLeftRight
	default:
		return fmt.Errorf("settings: bom_mode %q: want left-right, top-bottom or layout-only", s.BOMMode)
	}
	return nil
}

// Theme holds the colors used by the renderer as hex strings.
type Theme struct {
	Background         string
	Edge               string
	Pad                string
	PadHole            string
	PadHighlight       string
	Pin1Outline        string
	Silkscreen         string
	Fabrication        string
	Track              string
	TrackHighlight     string
	Zone               string
	ZoneHighlight      string
	DNPOutline         string
	SheetBackground    string
	SchematicHighlight string
	Crosshair          string

	// ProjectorBackground replaces Background when a projector hides the
	// board layers.
	ProjectorBackground string
}

// LightTheme is the default theme.
var LightTheme = Theme{
	Background:         "#F5F5F5",
	Edge:               "#000000",
	Pad:                "#878787",
	PadHole:            "#CCCCCC",
	PadHighlight:       "#D04040",
	Pin1Outline:        "#FFB629",
	Silkscreen:         "#44AAAA",
	Fabrication:        "#907651",
	Track:              "#DEF5F1",
	TrackHighlight:     "#D04040",
	Zone:               "#DEF5F1",
	ZoneHighlight:      "#D0404080",
	DNPOutline:         "#8A8A8A",
	SheetBackground:    "#FFFFFF",
	SchematicHighlight: "#D04040",
	Crosshair:          "#00A0FF",

	ProjectorBackground: "#000000",
}

// DarkTheme is used when Settings.DarkMode is set.
var DarkTheme = Theme{
	Background:         "#252C30",
	Edge:               "#EEEEEE",
	Pad:                "#808080",
	PadHole:            "#000000",
	PadHighlight:       "#D04040",
	Pin1Outline:        "#FFA800",
	Silkscreen:         "#DDDDDD",
	Fabrication:        "#DDDDDD",
	Track:              "#42524F",
	TrackHighlight:     "#D04040",
	Zone:               "#42524F",
	ZoneHighlight:      "#D0404080",
	DNPOutline:         "#5A5A5A",
	SheetBackground:    "#DDDDDD",
	SchematicHighlight: "#D04040",
	Crosshair:          "#00C8FF",

	ProjectorBackground: "#000000",
}

// withAlpha appends an alpha byte to a #RRGGBB color.
func withAlpha(hex string, a float64) string {
	h := strings.TrimPrefix(hex, "#")
	if len(h) != 6 {
		return hex
	}
	return fmt.Sprintf("#%s%02X", h, uint8(clamp(a, 0, 1)*255+0.5))
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
