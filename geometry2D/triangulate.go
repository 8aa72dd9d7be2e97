package geometry2D

import (
	"github.com/pradeep-pyro/triangle"
)

// Triangulate splits a simple polygon into triangles. Triangles and quads
// pass through untouched since the quadrature handles both directly. Larger
// polygons go through constrained Delaunay triangulation with the polygon
// edges as segments; triangles whose centroid falls outside the polygon are
// discarded so concave inputs do not pick up hull fill-in. A fan covers the
// rare case where the triangulator returns nothing usable.
func Triangulate(poly Polygon2D) (out ListPolygon2D) {
	n := len(poly)
	if n < 3 {
		return nil
	}
	if n <= 4 {
		return ListPolygon2D{poly}
	}
	pts := make([][2]float64, n)
	segs := make([][2]int32, n)
	for i := range poly {
		pts[i] = poly[i].X
		segs[i] = [2]int32{int32(i), int32((i + 1) % n)}
	}
	verts, faces := triangle.ConstrainedDelaunay(pts, segs, nil)
	for _, f := range faces {
		tri := Polygon2D{
			{X: verts[f[0]]},
			{X: verts[f[1]]},
			{X: verts[f[2]]},
		}
		if poly.Contains(tri.Centroid()) {
			out = append(out, tri)
		}
	}
	if len(out) == 0 {
		out = fanTriangulate(poly)
	}
	return
}

func fanTriangulate(poly Polygon2D) (out ListPolygon2D) {
	for i := 1; i < len(poly)-1; i++ {
		out = append(out, Polygon2D{poly[0], poly[i], poly[i+1]})
	}
	return
}
