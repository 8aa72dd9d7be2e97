package geometry2D

import (
	"github.com/tdewolff/canvas"
)

// FillRule selects how overlapping clip loops combine. Positive keeps regions
// with positive winding, which is the convention for trimming loops: outer
// loops counter-clockwise, inner (hole) loops clockwise.
type FillRule int

const (
	Positive FillRule = iota
	EvenOdd
	NonZero
)

// Clipper intersects one subject polygon with the union of clip loops.
type Clipper struct {
	fill    FillRule
	tol     float64
	subject Polygon2D
	clips   ListPolygon2D
}

func NewClipper(fill FillRule, tol float64) (c *Clipper) {
	return &Clipper{
		fill: fill,
		tol:  tol,
	}
}

func (c *Clipper) AddPathSubject(p Polygon2D) {
	c.subject = p
}

func (c *Clipper) AddPathClipper(p Polygon2D) {
	c.clips = append(c.clips, p)
}

func pathFromPolygon(p Polygon2D) (path *canvas.Path) {
	path = &canvas.Path{}
	if len(p) == 0 {
		return
	}
	path.MoveTo(p[0].X[0], p[0].X[1])
	for _, pt := range p[1:] {
		path.LineTo(pt.X[0], pt.X[1])
	}
	path.Close()
	return
}

func polygonFromPath(path *canvas.Path, tol float64) (p Polygon2D) {
	for _, pt := range path.Coords() {
		p = append(p, Point{X: [2]float64{pt.X, pt.Y}})
	}
	return p.Clean(tol)
}

// Clip returns the intersection of the subject with the settled union of the
// clip loops, split into simple polygons. Pieces degenerating below three
// vertices are dropped.
func (c *Clipper) Clip() (out ListPolygon2D) {
	if len(c.subject) < 3 || len(c.clips) == 0 {
		return nil
	}
	var fr canvas.FillRule
	switch c.fill {
	case Positive:
		fr = canvas.Positive
	case EvenOdd:
		fr = canvas.EvenOdd
	default:
		fr = canvas.NonZero
	}
	clip := &canvas.Path{}
	for _, loop := range c.clips {
		clip = clip.Append(pathFromPolygon(loop))
	}
	clip = clip.Settle(fr)
	res := pathFromPolygon(c.subject).And(clip)
	for _, piece := range res.Split() {
		poly := polygonFromPath(piece, c.tol)
		if len(poly) >= 3 {
			out = append(out, poly)
		}
	}
	return
}
