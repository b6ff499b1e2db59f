package pdf

import (
	"math"
	"strconv"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// ruleThickness is the maximum extent, in points, of a filled rectangle treated as a rule.
const ruleThickness = 2.5

// axisTolerance is how far a stroked segment may deviate from horizontal or vertical.
const axisTolerance = 1.0

// matrix is a PDF affine transform [a b c d e f].
type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

// mul returns m × n, i.e. m applied first then n.
func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m matrix) apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// contentScan is the geometry recovered from one page content stream.
type contentScan struct {
	Rules  []domain.Rule
	Images []domain.BBox
}

type point struct{ x, y float64 }

// scanner walks content-stream operators tracking the CTM.
type scanner struct {
	height  float64
	isImage func(name string) bool

	ctm   matrix
	stack []matrix

	// current path in device space
	segments [][2]point
	rects    []domain.BBox
	cur      point
	start    point

	out contentScan
}

// scanContent extracts rules and image placements from a page content stream.
// height is the page height in points, used to flip to a top-left origin.
// isImage reports whether a named XObject is a raster image; nil treats every XObject as one.
func scanContent(data []byte, height float64, isImage func(name string) bool) contentScan {
	s := &scanner{height: height, isImage: isImage, ctm: identity}
	lx := newLexer(data)
	var operands []token
	for {
		tok, ok := lx.next()
		if !ok {
			break
		}
		if tok.kind != tokOperator {
			operands = append(operands, tok)
			continue
		}
		s.exec(tok.text, operands)
		operands = operands[:0]
	}
	return s.out
}

func nums(ops []token, n int) ([]float64, bool) {
	if len(ops) < n {
		return nil, false
	}
	out := make([]float64, n)
	for i, t := range ops[len(ops)-n:] {
		if t.kind != tokNumber {
			return nil, false
		}
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func (s *scanner) exec(op string, ops []token) {
	switch op {
	case "q":
		s.stack = append(s.stack, s.ctm)
	case "Q":
		if n := len(s.stack); n > 0 {
			s.ctm = s.stack[n-1]
			s.stack = s.stack[:n-1]
		}
	case "cm":
		if v, ok := nums(ops, 6); ok {
			s.ctm = matrix{v[0], v[1], v[2], v[3], v[4], v[5]}.mul(s.ctm)
		}
	case "m":
		if v, ok := nums(ops, 2); ok {
			x, y := s.ctm.apply(v[0], v[1])
			s.cur = point{x, y}
			s.start = s.cur
		}
	case "l":
		if v, ok := nums(ops, 2); ok {
			x, y := s.ctm.apply(v[0], v[1])
			p := point{x, y}
			s.segments = append(s.segments, [2]point{s.cur, p})
			s.cur = p
		}
	case "h":
		if s.cur != s.start {
			s.segments = append(s.segments, [2]point{s.cur, s.start})
			s.cur = s.start
		}
	case "re":
		if v, ok := nums(ops, 4); ok {
			s.rects = append(s.rects, s.deviceRect(v[0], v[1], v[2], v[3]))
		}
	case "S", "s":
		s.paint(true, false)
	case "f", "F", "f*":
		s.paint(false, true)
	case "B", "B*", "b", "b*":
		s.paint(true, true)
	case "n":
		s.clearPath()
	case "Do":
		if len(ops) == 0 || ops[len(ops)-1].kind != tokName {
			return
		}
		name := ops[len(ops)-1].text
		if s.isImage != nil && !s.isImage(name) {
			return
		}
		s.out.Images = append(s.out.Images, s.deviceRect(0, 0, 1, 1))
	}
}

// deviceRect transforms a user-space rectangle and flips it to top-left page coordinates.
func (s *scanner) deviceRect(x, y, w, h float64) domain.BBox {
	xs := make([]float64, 0, 4)
	ys := make([]float64, 0, 4)
	for _, c := range [][2]float64{{x, y}, {x + w, y}, {x, y + h}, {x + w, y + h}} {
		dx, dy := s.ctm.apply(c[0], c[1])
		xs = append(xs, dx)
		ys = append(ys, dy)
	}
	x0, x1 := minMax(xs)
	y0, y1 := minMax(ys)
	return domain.BBox{X0: x0, Y0: s.height - y1, X1: x1, Y1: s.height - y0}
}

func minMax(v []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, x := range v {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi
}

func (s *scanner) paint(stroke, fill bool) {
	defer s.clearPath()

	for _, r := range s.rects {
		thin := r.Width() <= ruleThickness || r.Height() <= ruleThickness
		switch {
		case thin && (fill || stroke):
			s.addRule(r)
		case stroke:
			// a stroked box contributes its four edges
			s.addRule(domain.BBox{X0: r.X0, Y0: r.Y0, X1: r.X1, Y1: r.Y0})
			s.addRule(domain.BBox{X0: r.X0, Y0: r.Y1, X1: r.X1, Y1: r.Y1})
			s.addRule(domain.BBox{X0: r.X0, Y0: r.Y0, X1: r.X0, Y1: r.Y1})
			s.addRule(domain.BBox{X0: r.X1, Y0: r.Y0, X1: r.X1, Y1: r.Y1})
		}
	}
	if !stroke {
		return
	}
	for _, seg := range s.segments {
		a, b := seg[0], seg[1]
		if math.Abs(a.y-b.y) > axisTolerance && math.Abs(a.x-b.x) > axisTolerance {
			continue
		}
		s.addRule(domain.BBox{
			X0: math.Min(a.x, b.x),
			Y0: s.height - math.Max(a.y, b.y),
			X1: math.Max(a.x, b.x),
			Y1: s.height - math.Min(a.y, b.y),
		})
	}
}

func (s *scanner) addRule(b domain.BBox) {
	if b.Width() < axisTolerance && b.Height() < axisTolerance {
		return
	}
	s.out.Rules = append(s.out.Rules, domain.Rule{BBox: b})
}

func (s *scanner) clearPath() {
	s.segments = s.segments[:0]
	s.rects = s.rects[:0]
}
