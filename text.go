package ardw

import (
	"math"
	"strings"
)

// italicTilt is the horizontal shear applied to italic stroke text.
const italicTilt = 0.125

// textStroke is one polyline of laid-out text, in the text's local frame
// (origin at the text position, before rotation and mirroring).
type textStroke []Vec2

// textTilt returns the shear factor for t. Mirroring negates it.
func textTilt(t *TextDrawing) float64 {
	tilt := 0.0
	if t.hasAttr("italic") {
		tilt = italicTilt
	}
	if t.hasAttr("mirrored") {
		tilt = -tilt
	}
	return tilt
}

// textLines splits text into lines, dropping a trailing empty line.
func textLines(s string) []string {
	lines := strings.Split(s, "\n")
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// tabStop advances x to the next multiple of four space widths.
func tabStop(x float64, font map[string]Glyph, width float64) float64 {
	four := 4 * font[" "].W * width
	if four <= 0 {
		return x
	}
	return x + four - math.Mod(x, four)
}

// lineWidth measures one line. A tilde escapes the character after it and
// contributes no width itself.
func lineWidth(line []rune, t *TextDrawing, font map[string]Glyph, tilt float64) float64 {
	interline := t.Height*1.5 + t.Thickness
	w := t.Thickness + interline/2*tilt
	for j := 0; j < len(line); j++ {
		switch line[j] {
		case '\t':
			w = tabStop(w, font, t.Width)
			continue
		case '~':
			j++
			if j == len(line) {
				return w
			}
		}
		w += font[string(line[j])].W * t.Width
	}
	return w
}

// fontPoint maps a glyph point into the text frame, applying the italic
// shear relative to the horizontal justification.
func fontPoint(p Vec2, t *TextDrawing, offsetX, offsetY, tilt float64) Vec2 {
	x := p.X*t.Width + offsetX
	y := p.Y*t.Height + offsetY
	x -= (y + t.Height*float64(1-t.Justify[0])/2) * tilt
	return Vec2{x, y}
}

// layoutText lays out stroke-font text into polylines. A "~" toggles an
// overbar for the following characters and "~~" is a literal tilde.
func layoutText(t *TextDrawing, font map[string]Glyph) []textStroke {
	tilt := textTilt(t)
	interline := t.Height*1.5 + t.Thickness
	lines := textLines(t.Text)

	offsetY := float64(1-t.Justify[1]) / 2 * t.Height
	offsetY -= float64(len(lines)-1) * float64(t.Justify[1]+1) / 2 * interline

	var out []textStroke
	for _, s := range lines {
		line := []rune(s)
		offsetX := -lineWidth(line, t, font, tilt) * float64(t.Justify[0]+1) / 2
		inOverbar := false
		lastHadOverbar := false
		for j := 0; j < len(line); j++ {
			if line[j] == '\t' {
				offsetX = tabStop(offsetX, font, t.Width)
				continue
			}
			if line[j] == '~' {
				j++
				if j == len(line) {
					break
				}
				if line[j] != '~' {
					inOverbar = !inOverbar
				}
			}
			glyph := font[string(line[j])]
			if inOverbar {
				y := -t.Height*1.4 + offsetY
				start := Vec2{offsetX, y}
				end := Vec2{offsetX + t.Width*glyph.W, y}
				if !lastHadOverbar {
					start.X += t.Height * 1.4 * tilt
					lastHadOverbar = true
				}
				out = append(out, textStroke{start, end})
			} else {
				lastHadOverbar = false
			}
			for _, poly := range glyph.L {
				if len(poly) == 0 {
					continue
				}
				stroke := make(textStroke, len(poly))
				for k, p := range poly {
					stroke[k] = fontPoint(p, t, offsetX, offsetY, tilt)
				}
				out = append(out, stroke)
			}
			offsetX += glyph.W * t.Width
		}
		offsetY += interline
	}
	return out
}

// drawText strokes laid-out text at its position, rotation and mirroring.
func drawText(c Canvas, t *TextDrawing, st drawStyle) {
	c.Push()
	defer c.Pop()
	c.SetLineWidth(t.Thickness)
	c.Translate(t.Pos.X, t.Pos.Y)
	c.Translate(t.Thickness*0.5, 0)
	angle := -t.Angle
	if t.hasAttr("mirrored") {
		c.Scale(-1, 1)
		angle = -angle
	}
	c.Rotate(deg2rad(angle))
	for _, s := range layoutText(t, st.font) {
		c.MoveTo(s[0].X, s[0].Y)
		for _, p := range s[1:] {
			c.LineTo(p.X, p.Y)
		}
		strokeOrWarn(c)
	}
}
