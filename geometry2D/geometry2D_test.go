package geometry2D

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func square(x0, y0, x1, y1 float64) Polygon2D {
	return Polygon2D{
		{X: [2]float64{x0, y0}},
		{X: [2]float64{x1, y0}},
		{X: [2]float64{x1, y1}},
		{X: [2]float64{x0, y1}},
	}
}

func TestPolygonBasics(t *testing.T) {
	{ // Signed area, CCW positive
		p := square(0, 0, 2, 1)
		assert.InDelta(t, 2.0, p.Area(), 1.e-14)
		rev := Polygon2D{p[3], p[2], p[1], p[0]}
		assert.InDelta(t, -2.0, rev.Area(), 1.e-14)
	}
	{ // Centroid and containment
		p := square(0, 0, 1, 1)
		c := p.Centroid()
		assert.InDelta(t, 0.5, c.X[0], 1.e-14)
		assert.InDelta(t, 0.5, c.X[1], 1.e-14)
		assert.True(t, p.Contains(c))
		assert.False(t, p.Contains(Point{X: [2]float64{1.5, 0.5}}))
	}
	{ // Clean removes duplicates and collinear points
		p := Polygon2D{
			{X: [2]float64{0, 0}},
			{X: [2]float64{0.5, 0}}, // collinear on the bottom edge
			{X: [2]float64{1, 0}},
			{X: [2]float64{1, 0}}, // duplicate
			{X: [2]float64{1, 1}},
			{X: [2]float64{0, 1}},
		}
		out := p.Clean(1.e-9)
		assert.Equal(t, 4, len(out))
		assert.InDelta(t, 1.0, out.Area(), 1.e-14)
	}
}

func TestClipByRect(t *testing.T) {
	{ // Polygon fully inside comes back unchanged, same vertex order
		p := square(0.25, 0.25, 0.75, 0.75)
		out := p.ClipByRect(0, 0, 1, 1)
		assert.Equal(t, len(p), len(out))
		for i := range p {
			assert.InDelta(t, p[i].X[0], out[i].X[0], 1.e-14)
			assert.InDelta(t, p[i].X[1], out[i].X[1], 1.e-14)
		}
	}
	{ // Straddling polygon is cut at the rectangle edge
		p := square(0.5, 0.25, 1.5, 0.75)
		out := p.ClipByRect(0, 0, 1, 1)
		assert.InDelta(t, 0.25, out.Area(), 1.e-12)
		for _, pt := range out {
			assert.True(t, pt.X[0] <= 1+1.e-14)
		}
	}
	{ // Disjoint polygon clips to nothing
		p := square(2, 2, 3, 3)
		out := p.ClipByRect(0, 0, 1, 1)
		assert.Equal(t, 0, len(out))
	}
}

func TestClipper(t *testing.T) {
	{ // Overlapping squares intersect to the shared quarter
		c := NewClipper(Positive, 1.e-9)
		c.AddPathSubject(square(0, 0, 1, 1))
		c.AddPathClipper(square(0.5, 0.5, 1.5, 1.5))
		out := c.Clip()
		assert.Equal(t, 1, len(out))
		assert.InDelta(t, 0.25, math.Abs(out[0].Area()), 1.e-9)
	}
	{ // Clip loop with a hole under positive fill
		c := NewClipper(Positive, 1.e-9)
		c.AddPathSubject(square(0, 0, 4, 4))
		c.AddPathClipper(square(0, 0, 4, 4))
		hole := square(1, 1, 3, 3)
		c.AddPathClipper(Polygon2D{hole[3], hole[2], hole[1], hole[0]}) // CW
		out := c.Clip()
		var area float64
		for _, poly := range out {
			area += math.Abs(poly.Area())
		}
		assert.InDelta(t, 12.0, area, 1.e-9)
	}
	{ // Subject outside the clip region vanishes
		c := NewClipper(Positive, 1.e-9)
		c.AddPathSubject(square(10, 10, 11, 11))
		c.AddPathClipper(square(0, 0, 1, 1))
		assert.Equal(t, 0, len(c.Clip()))
	}
}

func TestTriangulate(t *testing.T) {
	{ // Triangles and quads pass through
		tri := Polygon2D{{X: [2]float64{0, 0}}, {X: [2]float64{1, 0}}, {X: [2]float64{0, 1}}}
		out := Triangulate(tri)
		assert.Equal(t, 1, len(out))
		out = Triangulate(square(0, 0, 1, 1))
		assert.Equal(t, 1, len(out))
		assert.Equal(t, 4, len(out[0]))
	}
	{ // Pentagon splits into triangles covering the same area
		p := Polygon2D{
			{X: [2]float64{0, 0}},
			{X: [2]float64{2, 0}},
			{X: [2]float64{2, 1}},
			{X: [2]float64{1, 2}},
			{X: [2]float64{0, 1}},
		}
		out := Triangulate(p)
		assert.True(t, len(out) >= 3)
		var area float64
		for _, tri := range out {
			assert.Equal(t, 3, len(tri))
			area += math.Abs(tri.Area())
		}
		assert.InDelta(t, math.Abs(p.Area()), area, 1.e-9)
	}
}
