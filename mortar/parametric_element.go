package mortar

import (
	"fmt"
	"math"

	"github.com/notargets/mortar/geometry2D"
	"github.com/notargets/mortar/utils"
)

// Tolerance on the line parameter of an edge-boundary intersection; the
// extrapolation divides by it, so smaller values are treated as degenerate.
const lineParameterTolerance = 1.e-6

// buildFullParametricElement assembles the parametric polygon of an element
// whose nodes all projected onto patch p.
func (m *Mapper) buildFullParametricElement(elemNodes []int, p int) (poly geometry2D.Polygon2D) {
	for _, n := range elemNodes {
		uv := m.projectedCoords[n][p]
		poly = append(poly, geometry2D.Point{X: uv})
	}
	return
}

// buildBoundaryParametricElement assembles the parametric polygon of an
// element that sticks out of patch p. Nodes without a projection are
// replaced by a synthetic vertex extrapolated through the boundary crossing
// of the element edge: the later clip against the patch rectangle cuts the
// polygon back at the true boundary. When both neighbors of an outside node
// are inside, the two extrapolation lines intersect in a corner vertex.
func (m *Mapper) buildBoundaryParametricElement(elemNodes []int, p int) (
	poly geometry2D.Polygon2D, err error) {
	var (
		patch  = m.MeshIGA.Patches[p]
		nNodes = len(elemNodes)
	)
	inside := func(n int) bool {
		_, ok := m.projectedCoords[n][p]
		return ok
	}
	// extrapolate projects the edge from inside node in to outside node out
	// onto the patch boundary and continues past it by the inverse of the
	// line parameter, landing where the full edge image would end.
	extrapolate := func(in, out int) (ext [2]float64, ok bool) {
		u, v, div, dis, conv := patch.ProjectLineOnBoundary(
			m.MeshFE.NodeCoords(in), m.MeshFE.NodeCoords(out),
			m.nrParams(), m.boundaryParams())
		if !conv || dis > m.Params.MaxProjectionDistance || div < lineParameterTolerance {
			return ext, false
		}
		uvIn := m.projectedCoords[in][p]
		ext[0] = uvIn[0] + (u-uvIn[0])/div
		ext[1] = uvIn[1] + (v-uvIn[1])/div
		return ext, true
	}
	for i, n := range elemNodes {
		if inside(n) {
			poly = append(poly, geometry2D.Point{X: m.projectedCoords[n][p]})
			continue
		}
		var (
			prev          = elemNodes[(i-1+nNodes)%nNodes]
			next          = elemNodes[(i+1)%nNodes]
			extP, extN    [2]float64
			okP, okN      bool
		)
		if inside(prev) {
			extP, okP = extrapolate(prev, n)
		}
		if inside(next) {
			extN, okN = extrapolate(next, n)
		}
		switch {
		case okP && okN:
			if corner, ok := lineIntersection(m.projectedCoords[prev][p], extP,
				m.projectedCoords[next][p], extN); ok {
				poly = append(poly, geometry2D.Point{X: corner})
			} else {
				// Near-parallel extrapolations agree, keep their midpoint so
				// the polygon stays one vertex per element node
				poly = append(poly, geometry2D.Point{X: [2]float64{
					0.5 * (extP[0] + extN[0]), 0.5 * (extP[1] + extN[1])}})
			}
		case okP:
			poly = append(poly, geometry2D.Point{X: extP})
		case okN:
			poly = append(poly, geometry2D.Point{X: extN})
		default:
			// Last resort: extrapolate from any other inside node
			recovered := false
			for _, other := range elemNodes {
				if other == n || !inside(other) {
					continue
				}
				if ext, ok := extrapolate(other, n); ok {
					poly = append(poly, geometry2D.Point{X: ext})
					recovered = true
					break
				}
			}
			if !recovered {
				return nil, fmt.Errorf(
					"unable to trace element edge through the boundary of patch %d at FE node %d",
					p, m.MeshFE.NodeIDs[n])
			}
		}
	}
	return
}

// elementTouchesPatchEdgeOnly reports whether every node of the element that
// projects onto patch p lands on the same edge of the parametric domain, so
// the element-patch intersection has zero measure. This happens for elements
// abutting a patch seam from the other side.
func (m *Mapper) elementTouchesPatchEdgeOnly(elemNodes []int, p int) bool {
	var (
		uMin, vMin, uMax, vMax = m.MeshIGA.Patches[p].ParametricDomain()
		epsU                   = 1.e-9 * (uMax - uMin)
		epsV                   = 1.e-9 * (vMax - vMin)
		onEdge                 [4]bool
		nInside                int
	)
	onEdge = [4]bool{true, true, true, true}
	for _, n := range elemNodes {
		uv, ok := m.projectedCoords[n][p]
		if !ok {
			continue
		}
		nInside++
		onEdge[0] = onEdge[0] && math.Abs(uv[0]-uMin) < epsU
		onEdge[1] = onEdge[1] && math.Abs(uv[0]-uMax) < epsU
		onEdge[2] = onEdge[2] && math.Abs(uv[1]-vMin) < epsV
		onEdge[3] = onEdge[3] && math.Abs(uv[1]-vMax) < epsV
	}
	return nInside > 0 && (onEdge[0] || onEdge[1] || onEdge[2] || onEdge[3])
}

// lineIntersection intersects the infinite lines a0->a1 and b0->b1,
// reporting failure for near-parallel lines.
func lineIntersection(a0, a1, b0, b1 [2]float64) (x [2]float64, ok bool) {
	A := [4]float64{
		a1[0] - a0[0], -(b1[0] - b0[0]),
		a1[1] - a0[1], -(b1[1] - b0[1]),
	}
	rhs := []float64{b0[0] - a0[0], b0[1] - a0[1]}
	if !utils.Solve2x2(A, rhs, 1.e-12) {
		return x, false
	}
	s := rhs[0]
	x[0] = a0[0] + s*(a1[0]-a0[0])
	x[1] = a0[1] + s*(a1[1]-a0[1])
	return x, true
}

// clipByPatch cuts the parametric polygon at the patch domain rectangle.
func (m *Mapper) clipByPatch(poly geometry2D.Polygon2D, p int) geometry2D.Polygon2D {
	uMin, vMin, uMax, vMax := m.MeshIGA.Patches[p].ParametricDomain()
	return poly.ClipByRect(uMin, vMin, uMax, vMax).Clean(1.e-12)
}

// clipByTrimming intersects the polygon with the trimmed-in region of the
// patch under the positive fill rule. Untrimmed patches pass through.
func (m *Mapper) clipByTrimming(poly geometry2D.Polygon2D, p int) geometry2D.ListPolygon2D {
	patch := m.MeshIGA.Patches[p]
	if !patch.IsTrimmed() {
		return geometry2D.ListPolygon2D{poly}
	}
	c := geometry2D.NewClipper(geometry2D.Positive, 1.e-12)
	c.AddPathSubject(poly)
	for _, loop := range patch.Trim.Loops {
		c.AddPathClipper(loop)
	}
	return c.Clip()
}

// spanPolygon is one knot-span piece of a clipped element, ready for
// quadrature on a single span.
type spanPolygon struct {
	SpanU, SpanV int
	Poly         geometry2D.Polygon2D
}

// clipByKnotSpan cuts the polygon along the knot lines it crosses so every
// piece is polynomial over its span. Pieces degenerating below three
// vertices are dropped.
func (m *Mapper) clipByKnotSpan(poly geometry2D.Polygon2D, p int) (out []spanPolygon) {
	var (
		patch  = m.MeshIGA.Patches[p]
		uB     = patch.Basis.UBasis
		vB     = patch.Basis.VBasis
		uMin   = math.Inf(1)
		uMax   = math.Inf(-1)
		vMin   = math.Inf(1)
		vMax   = math.Inf(-1)
	)
	for _, pt := range poly {
		uMin = math.Min(uMin, pt.X[0])
		uMax = math.Max(uMax, pt.X[0])
		vMin = math.Min(vMin, pt.X[1])
		vMax = math.Max(vMax, pt.X[1])
	}
	var (
		spanU0 = uB.FindKnotSpan(uB.ClampKnot(uMin))
		spanU1 = uB.FindKnotSpan(uB.ClampKnot(uMax))
		spanV0 = vB.FindKnotSpan(vB.ClampKnot(vMin))
		spanV1 = vB.FindKnotSpan(vB.ClampKnot(vMax))
	)
	if spanU0 == spanU1 && spanV0 == spanV1 {
		return []spanPolygon{{SpanU: spanU0, SpanV: spanV0, Poly: poly}}
	}
	for sv := spanV0; sv <= spanV1; sv++ {
		if vB.Knots[sv+1] <= vB.Knots[sv] {
			continue
		}
		for su := spanU0; su <= spanU1; su++ {
			if uB.Knots[su+1] <= uB.Knots[su] {
				continue
			}
			piece := poly.ClipByRect(uB.Knots[su], vB.Knots[sv],
				uB.Knots[su+1], vB.Knots[sv+1]).Clean(1.e-12)
			if len(piece) >= 3 {
				out = append(out, spanPolygon{SpanU: su, SpanV: sv, Poly: piece})
			}
		}
	}
	return
}

// computeCanonicalElement inverts the parametric element map at (u,v),
// returning the canonical coordinates of the point in the original unclipped
// element polygon: barycentric for triangles, a Newton-inverted bilinear map
// on [-1,1]^2 for quads.
func computeCanonicalElement(u, v float64, elem geometry2D.Polygon2D) (xi, eta float64) {
	switch len(elem) {
	case 3:
		var (
			x0, y0 = elem[0].X[0], elem[0].X[1]
			x1, y1 = elem[1].X[0], elem[1].X[1]
			x2, y2 = elem[2].X[0], elem[2].X[1]
		)
		A := [4]float64{x1 - x0, x2 - x0, y1 - y0, y2 - y0}
		rhs := []float64{u - x0, v - y0}
		if !utils.Solve2x2(A, rhs, 1.e-14) {
			panic(fmt.Errorf("degenerate parametric triangle at (u,v)=(%g,%g)", u, v))
		}
		return rhs[0], rhs[1]
	case 4:
		// Newton on the bilinear map, starting at the element center
		for iter := 0; iter < 20; iter++ {
			N, dNdXi, dNdEta := bilinearShape(xi, eta)
			var ru, rv, j00, j01, j10, j11 float64
			for k := 0; k < 4; k++ {
				ru += N[k] * elem[k].X[0]
				rv += N[k] * elem[k].X[1]
				j00 += dNdXi[k] * elem[k].X[0]
				j01 += dNdEta[k] * elem[k].X[0]
				j10 += dNdXi[k] * elem[k].X[1]
				j11 += dNdEta[k] * elem[k].X[1]
			}
			ru -= u
			rv -= v
			if math.Abs(ru)+math.Abs(rv) < 1.e-13 {
				break
			}
			A := [4]float64{j00, j01, j10, j11}
			rhs := []float64{-ru, -rv}
			if !utils.Solve2x2(A, rhs, 1.e-14) {
				panic(fmt.Errorf("degenerate parametric quad at (u,v)=(%g,%g)", u, v))
			}
			xi += rhs[0]
			eta += rhs[1]
		}
		return
	}
	panic(fmt.Errorf("canonical map only defined for triangles and quads, have %d vertices", len(elem)))
}

// bilinearShape evaluates the four bilinear shape functions and their
// canonical derivatives on [-1,1]^2, counter-clockwise node ordering.
func bilinearShape(xi, eta float64) (N, dNdXi, dNdEta [4]float64) {
	N = [4]float64{
		0.25 * (1 - xi) * (1 - eta),
		0.25 * (1 + xi) * (1 - eta),
		0.25 * (1 + xi) * (1 + eta),
		0.25 * (1 - xi) * (1 + eta),
	}
	dNdXi = [4]float64{-0.25 * (1 - eta), 0.25 * (1 - eta), 0.25 * (1 + eta), -0.25 * (1 + eta)}
	dNdEta = [4]float64{-0.25 * (1 - xi), -0.25 * (1 + xi), 0.25 * (1 + xi), 0.25 * (1 - xi)}
	return
}

// triangleShape evaluates the three linear shape functions on the parent
// triangle (0,0),(1,0),(0,1).
func triangleShape(xi, eta float64) [3]float64 {
	return [3]float64{1 - xi - eta, xi, eta}
}
