package IGA

import (
	"fmt"
	"math"

	"github.com/notargets/mortar/geometry2D"
	"github.com/notargets/mortar/utils"
)

// ControlPoint is one node of the control net. DofIndex addresses the row of
// the coupling matrices this point owns; control points shared between
// patches carry the same index.
type ControlPoint struct {
	X        [3]float64
	W        float64
	DofIndex int
}

// BoundingBox is the axis-aligned Cartesian hull of a patch control net. The
// surface lies inside the convex hull of its control points, so the box
// bounds the surface as well.
type BoundingBox struct {
	Min, Max [3]float64
}

func (bb *BoundingBox) Contains(P []float64, inflate float64) bool {
	for d := 0; d < 3; d++ {
		if P[d] < bb.Min[d]-inflate || P[d] > bb.Max[d]+inflate {
			return false
		}
	}
	return true
}

// PatchSurface is a single NURBS patch: the rational basis plus its control
// net (u index running fastest) and optional trimming information.
type PatchSurface struct {
	Basis  *NurbsBasis2D
	CP     []ControlPoint
	NU, NV int
	Trim   *Trimming
	BBox   BoundingBox
}

func NewPatchSurface(pU, pV int, knotsU, knotsV []float64, cp []ControlPoint) (ps *PatchSurface) {
	var (
		uBasis = NewBSplineBasis1D(pU, knotsU)
		vBasis = NewBSplineBasis1D(pV, knotsV)
		nU     = uBasis.NumBasis()
		nV     = vBasis.NumBasis()
	)
	if len(cp) != nU*nV {
		panic(fmt.Errorf("control net size %d does not match basis %dx%d", len(cp), nU, nV))
	}
	weights := make([]float64, len(cp))
	for i, c := range cp {
		weights[i] = c.W
	}
	ps = &PatchSurface{
		Basis: NewNurbsBasis2D(uBasis, vBasis, weights),
		CP:    cp,
		NU:    nU,
		NV:    nV,
	}
	ps.computeBoundingBox()
	return
}

func (ps *PatchSurface) computeBoundingBox() {
	for d := 0; d < 3; d++ {
		ps.BBox.Min[d] = math.Inf(1)
		ps.BBox.Max[d] = math.Inf(-1)
	}
	for _, c := range ps.CP {
		for d := 0; d < 3; d++ {
			ps.BBox.Min[d] = math.Min(ps.BBox.Min[d], c.X[d])
			ps.BBox.Max[d] = math.Max(ps.BBox.Max[d], c.X[d])
		}
	}
}

func (ps *PatchSurface) IsTrimmed() bool {
	return ps.Trim != nil && len(ps.Trim.Loops) > 0
}

// ParametricDomain returns the valid (u,v) rectangle.
func (ps *PatchSurface) ParametricDomain() (uMin, vMin, uMax, vMax float64) {
	return ps.Basis.UBasis.FirstKnot(), ps.Basis.VBasis.FirstKnot(),
		ps.Basis.UBasis.LastKnot(), ps.Basis.VBasis.LastKnot()
}

// LocalControlPoints lists the indices into CP of the control points
// supported on span (spanU,spanV), ordered to match the local basis.
func (ps *PatchSurface) LocalControlPoints(spanU, spanV int) (idx []int) {
	var (
		pU = ps.Basis.UBasis.P
		pV = ps.Basis.VBasis.P
	)
	idx = make([]int, 0, (pU+1)*(pV+1))
	for iv := 0; iv <= pV; iv++ {
		for iu := 0; iu <= pU; iu++ {
			idx = append(idx, (spanV-pV+iv)*ps.NU+(spanU-pU+iu))
		}
	}
	return
}

// Cartesian evaluates the surface point at (u,v).
func (ps *PatchSurface) Cartesian(u, v float64) (P [3]float64) {
	u = ps.Basis.UBasis.ClampKnot(u)
	v = ps.Basis.VBasis.ClampKnot(v)
	var (
		spanU = ps.Basis.UBasis.FindKnotSpan(u)
		spanV = ps.Basis.VBasis.FindKnotSpan(v)
		R     = ps.Basis.BasisFunctions(u, spanU, v, spanV)
		local = ps.LocalControlPoints(spanU, spanV)
	)
	for k, ci := range local {
		for d := 0; d < 3; d++ {
			P[d] += R[k] * ps.CP[ci].X[d]
		}
	}
	return
}

// PointAndDerivatives evaluates the surface and its partial derivatives up to
// derivDegree at (u,v). S[DerivIndex(derivDegree,i,j)] holds d^(i+j)S/du^i dv^j.
func (ps *PatchSurface) PointAndDerivatives(derivDegree int, u, v float64) (S [][3]float64) {
	u = ps.Basis.UBasis.ClampKnot(u)
	v = ps.Basis.VBasis.ClampKnot(v)
	var (
		spanU  = ps.Basis.UBasis.FindKnotSpan(u)
		spanV  = ps.Basis.VBasis.FindKnotSpan(v)
		R      = ps.Basis.BasisFunctionsAndDerivatives(derivDegree, u, spanU, v, spanV)
		local  = ps.LocalControlPoints(spanU, spanV)
		nDeriv = NumDerivatives(derivDegree)
	)
	S = make([][3]float64, nDeriv)
	for k, ci := range local {
		for slot := 0; slot < nDeriv; slot++ {
			r := R[k*nDeriv+slot]
			for d := 0; d < 3; d++ {
				S[slot][d] += r * ps.CP[ci].X[d]
			}
		}
	}
	return
}

// BaseVectors returns the covariant base vectors G1 = dS/du, G2 = dS/dv.
func (ps *PatchSurface) BaseVectors(u, v float64) (G1, G2 [3]float64) {
	S := ps.PointAndDerivatives(1, u, v)
	return S[DerivIndex(1, 1, 0)], S[DerivIndex(1, 0, 1)]
}

// SurfaceNormal returns the unit normal G1 x G2 / |G1 x G2|.
func (ps *PatchSurface) SurfaceNormal(u, v float64) (n [3]float64) {
	G1, G2 := ps.BaseVectors(u, v)
	utils.CrossProduct(G1[:], G2[:], n[:])
	l := utils.VectorLength(n[:])
	if l < 1.e-14 {
		panic(fmt.Errorf("degenerate surface normal at (u,v)=(%g,%g)", u, v))
	}
	for d := range n {
		n[d] /= l
	}
	return
}

// ProjectionParams controls the interior Newton-Raphson projection.
type ProjectionParams struct {
	MaxIterations int
	Tolerance     float64 // orthogonality tolerance on the residual cosines
}

// ProjectPoint projects Cartesian point P onto the patch by Newton-Raphson
// iteration on the stationarity of the squared distance, seeded at (u0,v0).
// The iterate is clamped to the parametric domain each step. Convergence
// means the residual distance vector is orthogonal to both base vectors
// within tolerance, or the point was hit exactly.
func (ps *PatchSurface) ProjectPoint(P []float64, u0, v0 float64,
	prm ProjectionParams) (u, v float64, converged bool, distance float64) {
	var (
		uMin, vMin, uMax, vMax = ps.ParametricDomain()
		D                      [3]float64
	)
	u, v = u0, v0
	clamp := func() {
		u = math.Max(uMin, math.Min(uMax, u))
		v = math.Max(vMin, math.Min(vMax, v))
	}
	clamp()
	for iter := 0; iter < prm.MaxIterations; iter++ {
		S := ps.PointAndDerivatives(2, u, v)
		var (
			P0  = S[DerivIndex(2, 0, 0)]
			Su  = S[DerivIndex(2, 1, 0)]
			Sv  = S[DerivIndex(2, 0, 1)]
			Suu = S[DerivIndex(2, 2, 0)]
			Suv = S[DerivIndex(2, 1, 1)]
			Svv = S[DerivIndex(2, 0, 2)]
		)
		for d := 0; d < 3; d++ {
			D[d] = P0[d] - P[d]
		}
		distance = utils.VectorLength(D[:])
		if distance < prm.Tolerance {
			return u, v, true, distance
		}
		var (
			lu = utils.VectorLength(Su[:])
			lv = utils.VectorLength(Sv[:])
			ru = utils.DotProduct(D[:], Su[:])
			rv = utils.DotProduct(D[:], Sv[:])
		)
		if math.Abs(ru)/(distance*lu) < prm.Tolerance &&
			math.Abs(rv)/(distance*lv) < prm.Tolerance {
			return u, v, true, distance
		}
		// Newton step on grad(0.5*|S-P|^2) = 0
		J := [4]float64{
			utils.DotProduct(Su[:], Su[:]) + utils.DotProduct(D[:], Suu[:]),
			utils.DotProduct(Su[:], Sv[:]) + utils.DotProduct(D[:], Suv[:]),
			utils.DotProduct(Su[:], Sv[:]) + utils.DotProduct(D[:], Suv[:]),
			utils.DotProduct(Sv[:], Sv[:]) + utils.DotProduct(D[:], Svv[:]),
		}
		rhs := []float64{-ru, -rv}
		if !utils.Solve2x2(J, rhs, 1.e-14) {
			return u, v, false, distance
		}
		u += rhs[0]
		v += rhs[1]
		clamp()
	}
	return u, v, false, distance
}

// InitialGuess samples an nU x nV grid of parameter values and returns the
// grid point closest to P in Cartesian distance.
func (ps *PatchSurface) InitialGuess(P []float64, nU, nV int) (u, v float64) {
	var (
		uMin, vMin, uMax, vMax = ps.ParametricDomain()
		best                   = math.Inf(1)
	)
	for j := 0; j < nV; j++ {
		vj := vMin + (vMax-vMin)*float64(j)/float64(nV-1)
		for i := 0; i < nU; i++ {
			ui := uMin + (uMax-uMin)*float64(i)/float64(nU-1)
			S := ps.Cartesian(ui, vj)
			d := utils.PointDistance(S[:], P)
			if d < best {
				best = d
				u, v = ui, vj
			}
		}
	}
	return
}

// boundaryCurve describes one of the four iso-parameter boundary curves.
// edge 0: u=uMin, 1: u=uMax, 2: v=vMin, 3: v=vMax; t runs along the free
// direction.
func (ps *PatchSurface) boundaryCurve(edge int) (uv func(t float64) (u, v float64),
	tMin, tMax float64) {
	uMin, vMin, uMax, vMax := ps.ParametricDomain()
	switch edge {
	case 0:
		return func(t float64) (float64, float64) { return uMin, t }, vMin, vMax
	case 1:
		return func(t float64) (float64, float64) { return uMax, t }, vMin, vMax
	case 2:
		return func(t float64) (float64, float64) { return t, vMin }, uMin, uMax
	case 3:
		return func(t float64) (float64, float64) { return t, vMax }, uMin, uMax
	}
	panic(fmt.Errorf("boundary edge index %d out of range", edge))
}

// BoundaryProjectionParams controls the boundary Newton-Raphson and its
// bisection fallback.
type BoundaryProjectionParams struct {
	MaxIterations          int
	Tolerance              float64
	BisectionMaxIterations int
	BisectionTolerance     float64
}

// ProjectLineOnBoundary projects the segment P1->P2 onto the patch boundary:
// it finds the patch boundary point closest to the segment over all four
// boundary curves. div is the line parameter of the closest segment point,
// dis the remaining gap. Newton-Raphson runs per curve with a bisection
// fallback on the segment when Newton stalls.
func (ps *PatchSurface) ProjectLineOnBoundary(P1, P2 []float64, nr ProjectionParams,
	bp BoundaryProjectionParams) (u, v, div, dis float64, converged bool) {
	dis = math.Inf(1)
	for edge := 0; edge < 4; edge++ {
		eu, ev, ediv, edis, ok := ps.projectLineOnBoundaryEdge(edge, P1, P2, bp)
		if ok && edis < dis {
			u, v, div, dis = eu, ev, ediv, edis
			converged = true
		}
	}
	if !converged {
		u, v, div, dis, converged = ps.projectLineOnBoundaryBisection(P1, P2, nr, bp)
	}
	return
}

// projectLineOnBoundaryEdge runs a two-variable Newton iteration minimizing
// the distance between boundary curve point C(t) and line point
// L(lambda) = P1 + lambda*(P2-P1), lambda clamped to [0,1].
func (ps *PatchSurface) projectLineOnBoundaryEdge(edge int, P1, P2 []float64,
	bp BoundaryProjectionParams) (u, v, div, dis float64, converged bool) {
	var (
		curve, tMin, tMax = ps.boundaryCurve(edge)
		d                 [3]float64
		t                 = 0.5 * (tMin + tMax)
		lambda            = 0.5
	)
	for i := 0; i < 3; i++ {
		d[i] = P2[i] - P1[i]
	}
	dd := utils.DotProduct(d[:], d[:])
	for iter := 0; iter < bp.MaxIterations; iter++ {
		cu, cv := curve(t)
		S := ps.PointAndDerivatives(2, cu, cv)
		var Ct, Ctt [3]float64
		switch edge {
		case 0, 1:
			Ct = S[DerivIndex(2, 0, 1)]
			Ctt = S[DerivIndex(2, 0, 2)]
		default:
			Ct = S[DerivIndex(2, 1, 0)]
			Ctt = S[DerivIndex(2, 2, 0)]
		}
		var gap [3]float64
		for i := 0; i < 3; i++ {
			gap[i] = S[0][i] - (P1[i] + lambda*d[i])
		}
		dis = utils.VectorLength(gap[:])
		var (
			g1 = utils.DotProduct(gap[:], Ct[:])
			g2 = -utils.DotProduct(gap[:], d[:])
		)
		lc := utils.VectorLength(Ct[:])
		if dis < bp.Tolerance ||
			(math.Abs(g1)/(math.Max(dis, 1.e-14)*lc) < bp.Tolerance &&
				math.Abs(g2)/(math.Max(dis, 1.e-14)*math.Sqrt(dd)) < bp.Tolerance) {
			u, v = curve(t)
			return u, v, lambda, dis, true
		}
		H := [4]float64{
			utils.DotProduct(Ct[:], Ct[:]) + utils.DotProduct(gap[:], Ctt[:]),
			-utils.DotProduct(Ct[:], d[:]),
			-utils.DotProduct(Ct[:], d[:]),
			dd,
		}
		rhs := []float64{-g1, -g2}
		if !utils.Solve2x2(H, rhs, 1.e-14) {
			return 0, 0, 0, math.Inf(1), false
		}
		t = math.Max(tMin, math.Min(tMax, t+rhs[0]))
		lambda = math.Max(0, math.Min(1, lambda+rhs[1]))
	}
	return 0, 0, 0, math.Inf(1), false
}

// projectLineOnBoundaryBisection bisects the segment on the predicate "the
// interior projection of L(lambda) lands strictly inside the domain",
// homing in on the lambda where the projection crosses the boundary. The
// final interior projection is clamped onto the nearest domain edge.
func (ps *PatchSurface) projectLineOnBoundaryBisection(P1, P2 []float64, nr ProjectionParams,
	bp BoundaryProjectionParams) (u, v, div, dis float64, converged bool) {
	var (
		uMin, vMin, uMax, vMax = ps.ParametricDomain()
		d                      [3]float64
		lo, hi                 = 0.0, 1.0
	)
	for i := 0; i < 3; i++ {
		d[i] = P2[i] - P1[i]
	}
	interior := func(lambda float64) (cu, cv float64, inside, ok bool) {
		P := [3]float64{P1[0] + lambda*d[0], P1[1] + lambda*d[1], P1[2] + lambda*d[2]}
		gu, gv := ps.InitialGuess(P[:], 10, 10)
		cu, cv, ok, _ = ps.ProjectPoint(P[:], gu, gv, nr)
		epsU := 1.e-10 * (uMax - uMin)
		epsV := 1.e-10 * (vMax - vMin)
		inside = ok && cu > uMin+epsU && cu < uMax-epsU &&
			cv > vMin+epsV && cv < vMax-epsV
		return
	}
	_, _, loIn, loOk := interior(lo)
	_, _, hiIn, hiOk := interior(hi)
	if !loOk && !hiOk || loIn == hiIn {
		return 0, 0, 0, math.Inf(1), false
	}
	for iter := 0; iter < bp.BisectionMaxIterations && hi-lo > bp.BisectionTolerance; iter++ {
		mid := 0.5 * (lo + hi)
		_, _, midIn, midOk := interior(mid)
		if midOk && midIn == loIn {
			lo = mid
		} else {
			hi = mid
		}
	}
	div = 0.5 * (lo + hi)
	cu, cv, _, _ := interior(div)
	// Snap onto the closest domain edge
	du0, du1 := cu-uMin, uMax-cu
	dv0, dv1 := cv-vMin, vMax-cv
	m := math.Min(math.Min(du0, du1), math.Min(dv0, dv1))
	switch m {
	case du0:
		cu = uMin
	case du1:
		cu = uMax
	case dv0:
		cv = vMin
	default:
		cv = vMax
	}
	P := [3]float64{P1[0] + div*d[0], P1[1] + div*d[1], P1[2] + div*d[2]}
	S := ps.Cartesian(cu, cv)
	return cu, cv, div, utils.PointDistance(S[:], P[:]), true
}

// Trimming carries the patch trimming loops as closed parametric polylines.
// Loops follow the positive fill convention: outer loops counter-clockwise,
// holes clockwise.
type Trimming struct {
	Loops []geometry2D.Polygon2D
}

// Contains reports whether (u,v) lies in the trimmed-in region, using the
// winding of the loops.
func (t *Trimming) Contains(u, v float64) bool {
	q := geometry2D.Point{X: [2]float64{u, v}}
	winding := 0
	for _, loop := range t.Loops {
		if loop.Contains(q) {
			if loop.Area() >= 0 {
				winding++
			} else {
				winding--
			}
		}
	}
	return winding > 0
}
