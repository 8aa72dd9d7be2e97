package geometry2D

import (
	"math"
)

// Point is a location in the parametric (u,v) plane of a patch.
type Point struct {
	X [2]float64
}

// Polygon2D is an ordered, implicitly closed vertex loop in parametric space.
type Polygon2D []Point

// ListPolygon2D holds the pieces produced by clipping one polygon.
type ListPolygon2D []Polygon2D

const cleanTolerance = 1.e-12

func (p Polygon2D) Area() (area float64) {
	n := len(p)
	if n < 3 {
		return 0
	}
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		area += p[i].X[0]*p[j].X[1] - p[j].X[0]*p[i].X[1]
	}
	return 0.5 * area
}

func (p Polygon2D) Centroid() (c Point) {
	for _, pt := range p {
		c.X[0] += pt.X[0]
		c.X[1] += pt.X[1]
	}
	c.X[0] /= float64(len(p))
	c.X[1] /= float64(len(p))
	return
}

// Contains reports whether q lies inside p using the even-odd crossing rule.
// Points on the boundary may land on either side.
func (p Polygon2D) Contains(q Point) (inside bool) {
	n := len(p)
	j := n - 1
	for i := 0; i < n; i++ {
		pi, pj := p[i].X, p[j].X
		if (pi[1] > q.X[1]) != (pj[1] > q.X[1]) {
			xCross := (pj[0]-pi[0])*(q.X[1]-pi[1])/(pj[1]-pi[1]) + pi[0]
			if q.X[0] < xCross {
				inside = !inside
			}
		}
		j = i
	}
	return
}

// Clean removes consecutive near-duplicate vertices and collinear spikes,
// using tol as the merge distance. Polygons reduced below three vertices are
// returned as-is and treated by callers as zero-area.
func (p Polygon2D) Clean(tol ...float64) (out Polygon2D) {
	eps := cleanTolerance
	if len(tol) > 0 {
		eps = tol[0]
	}
	if len(p) < 3 {
		return p
	}
	// Drop consecutive duplicates first
	out = make(Polygon2D, 0, len(p))
	for i, pt := range p {
		prev := p[(i+len(p)-1)%len(p)]
		if math.Abs(pt.X[0]-prev.X[0]) < eps && math.Abs(pt.X[1]-prev.X[1]) < eps {
			continue
		}
		out = append(out, pt)
	}
	// Then drop vertices whose removal changes the polygon by less than eps,
	// i.e. spikes and collinear points
	for changed := true; changed && len(out) > 2; {
		changed = false
		for i := 0; i < len(out); i++ {
			a := out[(i+len(out)-1)%len(out)].X
			b := out[i].X
			c := out[(i+1)%len(out)].X
			acx, acy := c[0]-a[0], c[1]-a[1]
			abx, aby := b[0]-a[0], b[1]-a[1]
			lenAC := math.Hypot(acx, acy)
			var dist float64
			if lenAC < eps {
				dist = math.Hypot(abx, aby)
			} else {
				dist = math.Abs(acx*aby-acy*abx) / lenAC
			}
			if dist < eps {
				out = append(out[:i], out[i+1:]...)
				changed = true
				break
			}
		}
	}
	return
}

// ClipByRect clips the polygon against the axis-aligned rectangle
// [uMin,uMax]x[vMin,vMax] with the Sutherland-Hodgman algorithm. A polygon
// fully inside the rectangle is returned with its vertex order intact.
func (p Polygon2D) ClipByRect(uMin, vMin, uMax, vMax float64) (out Polygon2D) {
	type edge struct {
		axis int
		val  float64
		keep func(float64, float64) bool
	}
	edges := []edge{
		{0, uMin, func(x, v float64) bool { return x >= v }},
		{0, uMax, func(x, v float64) bool { return x <= v }},
		{1, vMin, func(x, v float64) bool { return x >= v }},
		{1, vMax, func(x, v float64) bool { return x <= v }},
	}
	out = p
	for _, e := range edges {
		if len(out) == 0 {
			return nil
		}
		in := out
		out = make(Polygon2D, 0, len(in)+4)
		for i := 0; i < len(in); i++ {
			cur := in[i]
			next := in[(i+1)%len(in)]
			curIn := e.keep(cur.X[e.axis], e.val)
			nextIn := e.keep(next.X[e.axis], e.val)
			if curIn {
				out = append(out, cur)
			}
			if curIn != nextIn {
				t := (e.val - cur.X[e.axis]) / (next.X[e.axis] - cur.X[e.axis])
				var isect Point
				other := 1 - e.axis
				isect.X[e.axis] = e.val
				isect.X[other] = cur.X[other] + t*(next.X[other]-cur.X[other])
				out = append(out, isect)
			}
		}
	}
	return
}
