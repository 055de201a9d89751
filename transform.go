package ardw

import (
	"fmt"
	"math"

	"github.com/gogpu/gg"
)

// identityTransform is the identity affine matrix.
var identityTransform = [6]float64{1, 0, 0, 1, 0, 0}

const (
	fitMargin    = 0.98 // fraction of the viewport the fitted document may use
	minFitScale  = 0.1  // fit scales below this are treated as a degenerate board
	rotationStep = 5.0  // board rotation granularity in degrees
)

// Transform is the per-surface mapping from document units to surface pixels.
//
// Composition order (document to screen):
//
//	Scale(S) -> Rotate(Rotation) -> Translate(X, Y) -> [Scale(-1, 1) if Flip] -> Translate(PanX, PanY) -> Scale(Zoom)
//
// X, Y and S are derived from the viewport and the document bounds by
// Recompute. PanX, PanY and Zoom are the user's navigation state.
type Transform struct {
	X, Y       float64
	PanX, PanY float64
	S          float64
	Zoom       float64
	// Rotation is in degrees, a multiple of 5. Layout surfaces only.
	Rotation float64
	// Flip mirrors the x axis. Set on the back surface.
	Flip bool
}

// NewTransform returns a transform with unit scale and zoom.
func NewTransform(flip bool) Transform {
	return Transform{S: 1, Zoom: 1, Flip: flip}
}

// Matrix returns the composed document-to-screen affine matrix in
// [a, b, c, d, tx, ty] layout.
func (t *Transform) Matrix() [6]float64 {
	m := scaleAffine(t.Zoom, t.Zoom)
	m = multiplyAffine(m, translateAffine(t.PanX, t.PanY))
	if t.Flip {
		m = multiplyAffine(m, scaleAffine(-1, 1))
	}
	m = multiplyAffine(m, translateAffine(t.X, t.Y))
	m = multiplyAffine(m, rotateAffine(t.Rotation*math.Pi/180))
	return multiplyAffine(m, scaleAffine(t.S, t.S))
}

// GG returns the document-to-screen matrix as a gg.Matrix.
func (t *Transform) GG() gg.Matrix {
	return toGG(t.Matrix())
}

// DocumentToScreen maps a document point to surface pixels.
func (t *Transform) DocumentToScreen(p Vec2) Vec2 {
	x, y := transformPoint(t.Matrix(), p.X, p.Y)
	return Vec2{x, y}
}

// ScreenToDocument maps a surface pixel back to document units.
func (t *Transform) ScreenToDocument(p Vec2) Vec2 {
	x, y := transformPoint(invertAffine(t.Matrix()), p.X, p.Y)
	return Vec2{x, y}
}

// fitScale returns the scale that fits a w x h box into the viewport with
// the standard margin, falling back to 1 for degenerate boxes.
func fitScale(boxW, boxH, width, height float64) float64 {
	s := fitMargin * math.Min(width/boxW, height/boxH)
	if s < minFitScale || math.IsNaN(s) || math.IsInf(s, 0) {
		s = 1
	}
	return s
}

// Recompute fits the board bounding box, rotated by the transform's rotation,
// into a width x height viewport. Pan and zoom are left untouched.
func (t *Transform) Recompute(bbox BBox, width, height float64) {
	rb := bbox.rotated(t.Rotation)
	s := fitScale(rb.Width(), rb.Height(), width, height)
	t.S = s
	if t.Flip {
		t.X = -((rb.MaxX+rb.MinX)*s + width) * 0.5
	} else {
		t.X = -((rb.MaxX+rb.MinX)*s - width) * 0.5
	}
	t.Y = -((rb.MaxY+rb.MinY)*s - height) * 0.5
}

// RecomputeSheet fits a schematic sheet of the given dimensions into the
// viewport. The sheet is positioned through pan, so X and Y stay at zero.
func (t *Transform) RecomputeSheet(sheetW, sheetH, width, height float64) {
	t.S = fitScale(sheetW, sheetH, width, height)
	t.X, t.Y = 0, 0
}

// Pan moves the view by a pointer delta given in surface pixels.
func (t *Transform) Pan(dx, dy, deviceScale float64) {
	t.PanX += deviceScale * dx / t.Zoom
	t.PanY += deviceScale * dy / t.Zoom
}

// ZoomAbout multiplies zoom by m while keeping the anchor point (surface
// pixels) visually fixed. A non-finite or non-positive factor is rejected
// and the transform is left unchanged.
func (t *Transform) ZoomAbout(m float64, anchor Vec2, deviceScale float64) error {
	if math.IsNaN(m) || math.IsInf(m, 0) || m <= 0 {
		return fmt.Errorf("zoom by %v: %w", m, ErrNonFinite)
	}
	zoom := t.Zoom * m
	if math.IsInf(zoom, 0) || zoom <= 0 {
		return fmt.Errorf("zoom to %v: %w", zoom, ErrNonFinite)
	}
	t.Zoom = zoom
	zoomd := (1 - m) / zoom
	t.PanX += deviceScale * anchor.X * zoomd
	t.PanY += deviceScale * anchor.Y * zoomd
	return nil
}

// Pinch applies a two-pointer zoom step: the distance between the pointers
// went from oldDist to newDist, and anchor is the stationary pointer.
func (t *Transform) Pinch(oldDist, newDist float64, anchor Vec2, deviceScale float64) error {
	return t.ZoomAbout(newDist/oldDist, anchor, deviceScale)
}

// Reset restores the default layout view.
func (t *Transform) Reset() {
	t.PanX, t.PanY = 0, 0
	t.Zoom = 1
}

// ResetSheet restores the default schematic view: unit zoom with the sheet
// centered in the viewport.
func (t *Transform) ResetSheet(sheetW, sheetH, width, height float64) {
	t.Zoom = 1
	t.PanX = (width - sheetW*t.S) / 2
	t.PanY = (height - sheetH*t.S) / 2
}

// SnapRotation rounds deg to the nearest rotation step and normalizes it
// into [0, 360).
func SnapRotation(deg float64) float64 {
	r := math.Round(deg/rotationStep) * rotationStep
	r = math.Mod(r, 360)
	if r < 0 {
		r += 360
	}
	return r
}

// --- Affine helpers ---

// multiplyAffine multiplies two 2D affine matrices: result = p * c.
//
//	Matrix layout: [a, b, c, d, tx, ty]
//	| a  c  tx |
//	| b  d  ty |
//	| 0  0   1 |
func multiplyAffine(p, c [6]float64) [6]float64 {
	return [6]float64{
		p[0]*c[0] + p[2]*c[1],
		p[1]*c[0] + p[3]*c[1],
		p[0]*c[2] + p[2]*c[3],
		p[1]*c[2] + p[3]*c[3],
		p[0]*c[4] + p[2]*c[5] + p[4],
		p[1]*c[4] + p[3]*c[5] + p[5],
	}
}

// invertAffine computes the inverse of a 2D affine matrix.
// Returns the identity matrix if the matrix is singular.
func invertAffine(m [6]float64) [6]float64 {
	det := m[0]*m[3] - m[2]*m[1]
	if det > -1e-12 && det < 1e-12 {
		return identityTransform
	}
	invDet := 1.0 / det
	a := m[3] * invDet
	b := -m[1] * invDet
	c := -m[2] * invDet
	d := m[0] * invDet
	return [6]float64{
		a, b, c, d,
		-(a*m[4] + c*m[5]),
		-(b*m[4] + d*m[5]),
	}
}

// transformPoint applies an affine matrix to a point.
func transformPoint(m [6]float64, x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

func translateAffine(x, y float64) [6]float64 { return [6]float64{1, 0, 0, 1, x, y} }

func scaleAffine(x, y float64) [6]float64 { return [6]float64{x, 0, 0, y, 0, 0} }

func rotateAffine(rad float64) [6]float64 {
	sin, cos := math.Sincos(rad)
	return [6]float64{cos, sin, -sin, cos, 0, 0}
}

// toGG converts [a, b, c, d, tx, ty] into gg's row-major matrix.
func toGG(m [6]float64) gg.Matrix {
	return gg.Matrix{A: m[0], B: m[2], C: m[4], D: m[1], E: m[3], F: m[5]}
}
