package ardw

import (
	"fmt"

	"github.com/gogpu/gg"
)

const (
	// schematicPinBox is the side of the box drawn around a highlighted pin,
	// in sheet units.
	schematicPinBox = 50.0
	// schematicBoxAlpha is the opacity of schematic highlight fills.
	schematicBoxAlpha = 0.25
)

// drawSheet paints the displayed sheet's image scaled to its dimensions.
// Sheets without an image get a plain page.
func (a *App) drawSheet(c Canvas, s *Surface) {
	sheet := a.currentSheet()
	if sheet == nil {
		return
	}
	if sheet.image != nil {
		c.DrawImageEx(sheet.image, gg.DrawImageOptions{
			DstWidth:      sheet.Width,
			DstHeight:     sheet.Height,
			Interpolation: gg.InterpBilinear,
		})
		return
	}
	c.SetHexColor(a.theme.SheetBackground)
	fillRect(c, 0, 0, sheet.Width, sheet.Height)
}

// drawSheetHighlight paints translucent boxes over the selected entity's
// parts on the displayed sheet.
func (a *App) drawSheetHighlight(c Canvas, s *Surface) {
	sel := a.selection
	color := a.theme.SchematicHighlight
	switch sel.Kind {
	case SelectComponent:
		ci, ok := a.index.Components[sel.ID]
		if !ok {
			return
		}
		for _, u := range ci.Units {
			if u.Sheet != s.Sheet {
				continue
			}
			drawHighlightBox(c, s, u.BBox, color)
		}
	case SelectPin:
		pin, ok := a.index.Pin(sel.ID)
		if !ok {
			return
		}
		if pin.Sheet != s.Sheet {
			Logger().Warn("not drawing pin highlight",
				"pin", pinRef(pin.Ref, pin.Num),
				"err", fmt.Errorf("pin on sheet %d, showing %d: %w", pin.Sheet, s.Sheet, ErrSheetMismatch))
			return
		}
		drawHighlightBox(c, s, pinBox(pin.Pos), color)
	case SelectNet:
		ni, ok := a.index.Nets[sel.Net]
		if !ok {
			return
		}
		for _, id := range ni.Pins {
			pin := &a.index.Pins[id]
			if pin.Sheet == s.Sheet {
				drawHighlightBox(c, s, pinBox(pin.Pos), color)
			}
		}
	}
}

func pinBox(p Vec2) BBox {
	const h = schematicPinBox / 2
	return BBox{p.X - h, p.Y - h, p.X + h, p.Y + h}
}

func drawHighlightBox(c Canvas, s *Surface, b BBox, color string) {
	c.SetHexColor(withAlpha(color, schematicBoxAlpha))
	fillRect(c, b.MinX, b.MinY, b.Width(), b.Height())
	c.SetHexColor(color)
	c.SetLineWidth(2 / pixelScale(s))
	rectPath(c, b.MinX, b.MinY, b.Width(), b.Height())
	strokeOrWarn(c)
}
