package ardw

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Composite returns the surface's background with its highlight layer drawn
// over it, or nil if the surface has not been sized.
func (s *Surface) Composite() *image.RGBA {
	if s.background == nil {
		return nil
	}
	bg := s.background.Image()
	out := image.NewRGBA(bg.Bounds())
	draw.Draw(out, out.Bounds(), bg, bg.Bounds().Min, draw.Src)
	if s.highlight != nil {
		hl := s.highlight.Image()
		draw.Draw(out, out.Bounds(), hl, hl.Bounds().Min, draw.Over)
	}
	return out
}

// SaveSurfacePNG writes the composited rasters of a surface to path.
func SaveSurfacePNG(s *Surface, path string) error {
	img := s.Composite()
	if img == nil {
		return fmt.Errorf("screenshot %s: surface has no rasters", s.ID)
	}
	return writePNG(path, img)
}

// Screenshot writes every visible surface to dir as
// <timestamp>_<label>_<surface>.png.
func (a *App) Screenshot(dir, label string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("screenshot: mkdir %s: %w", dir, err)
	}
	stamp := time.Now().Format("20060102_150405")
	safe := sanitizeLabel(label)
	var errs []error
	for _, s := range a.surfaces {
		if !s.visible || s.background == nil {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%s_%s.png", stamp, safe, s.ID))
		if err := SaveSurfacePNG(s, path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// writePNG encodes an image to a PNG file at the given path.
func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// sanitizeLabel replaces characters that are unsafe in file names with
// underscores and falls back to "unlabeled" for empty strings.
func sanitizeLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "unlabeled"
	}
	var b strings.Builder
	b.Grow(len(label))
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
