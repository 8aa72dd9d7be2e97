package IGA

import (
	"fmt"
	"math"
)

// Tolerance for accepting a parameter that sits marginally outside the knot
// vector range, e.g. from floating point noise in projection results.
const EpsAcceptedIntoKnotSpan = 1.e-9

// BSplineBasis1D evaluates univariate B-Spline basis functions on a clamped
// knot vector, following the Cox-de Boor recursion.
type BSplineBasis1D struct {
	P     int // polynomial degree
	Knots []float64
}

func NewBSplineBasis1D(p int, knots []float64) (b *BSplineBasis1D) {
	if p < 1 {
		panic(fmt.Errorf("polynomial degree must be positive, have %d", p))
	}
	if len(knots) < 2*(p+1) {
		panic(fmt.Errorf("knot vector too short for degree %d: %d knots", p, len(knots)))
	}
	for i := 1; i < len(knots); i++ {
		if knots[i] < knots[i-1] {
			panic(fmt.Errorf("knot vector not monotonic at position %d", i))
		}
	}
	return &BSplineBasis1D{P: p, Knots: knots}
}

// NumBasis is the number of basis functions, equal to the number of control
// points the basis supports.
func (b *BSplineBasis1D) NumBasis() int {
	return len(b.Knots) - b.P - 1
}

func (b *BSplineBasis1D) FirstKnot() float64 { return b.Knots[0] }
func (b *BSplineBasis1D) LastKnot() float64  { return b.Knots[len(b.Knots)-1] }

// ClampKnot pulls a parameter marginally outside the knot range back onto the
// boundary. Parameters further outside than the acceptance tolerance panic,
// since they indicate a bug upstream rather than roundoff.
func (b *BSplineBasis1D) ClampKnot(u float64) float64 {
	lo, hi := b.FirstKnot(), b.LastKnot()
	tol := EpsAcceptedIntoKnotSpan * (hi - lo)
	if u < lo {
		if lo-u > tol {
			panic(fmt.Errorf("parameter %g outside knot range [%g,%g]", u, lo, hi))
		}
		return lo
	}
	if u > hi {
		if u-hi > tol {
			panic(fmt.Errorf("parameter %g outside knot range [%g,%g]", u, lo, hi))
		}
		return hi
	}
	return u
}

// FindKnotSpan locates the knot span index containing u by binary search.
// The last parameter maps into the final non-degenerate span.
func (b *BSplineBasis1D) FindKnotSpan(u float64) (span int) {
	n := b.NumBasis() - 1
	if u >= b.Knots[n+1] {
		return n
	}
	if u <= b.Knots[b.P] {
		return b.P
	}
	lo, hi := b.P, n+1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if u < b.Knots[mid] {
			hi = mid
		} else {
			lo = mid
		}
	}
	return lo
}

// GrevilleAbscissa returns the Greville parameter of basis function i, the
// average of its p interior knots. Used for seeding boundary projections.
func (b *BSplineBasis1D) GrevilleAbscissa(i int) (g float64) {
	for k := 1; k <= b.P; k++ {
		g += b.Knots[i+k]
	}
	return g / float64(b.P)
}

// BasisFunctions evaluates the p+1 nonzero basis functions at u in the given
// span, N[0] belonging to control point span-p.
func (b *BSplineBasis1D) BasisFunctions(u float64, span int) (N []float64) {
	var (
		p     = b.P
		left  = make([]float64, p+1)
		right = make([]float64, p+1)
	)
	N = make([]float64, p+1)
	N[0] = 1
	for j := 1; j <= p; j++ {
		left[j] = u - b.Knots[span+1-j]
		right[j] = b.Knots[span+j] - u
		var saved float64
		for r := 0; r < j; r++ {
			temp := N[r] / (right[r+1] + left[j-r])
			N[r] = saved + right[r+1]*temp
			saved = left[j-r] * temp
		}
		N[j] = saved
	}
	return
}

// BasisFunctionsAndDerivatives evaluates the nonzero basis functions and
// their derivatives up to derivOrder at u. The result is flat, row k holding
// the k-th derivatives of the p+1 functions: ders[k*(p+1)+j].
func (b *BSplineBasis1D) BasisFunctionsAndDerivatives(derivOrder int, u float64, span int) (ders []float64) {
	var (
		p     = b.P
		left  = make([]float64, p+1)
		right = make([]float64, p+1)
		ndu   = make([][]float64, p+1)
		a     = [2][]float64{make([]float64, p+1), make([]float64, p+1)}
	)
	if derivOrder > p {
		panic(fmt.Errorf("derivative order %d exceeds degree %d", derivOrder, p))
	}
	for i := range ndu {
		ndu[i] = make([]float64, p+1)
	}
	ndu[0][0] = 1
	for j := 1; j <= p; j++ {
		left[j] = u - b.Knots[span+1-j]
		right[j] = b.Knots[span+j] - u
		var saved float64
		for r := 0; r < j; r++ {
			ndu[j][r] = right[r+1] + left[j-r]
			temp := ndu[r][j-1] / ndu[j][r]
			ndu[r][j] = saved + right[r+1]*temp
			saved = left[j-r] * temp
		}
		ndu[j][j] = saved
	}
	ders = make([]float64, (derivOrder+1)*(p+1))
	for j := 0; j <= p; j++ {
		ders[j] = ndu[j][p]
	}
	for r := 0; r <= p; r++ {
		s1, s2 := 0, 1
		a[0][0] = 1
		for k := 1; k <= derivOrder; k++ {
			var d float64
			rk, pk := r-k, p-k
			if r >= k {
				a[s2][0] = a[s1][0] / ndu[pk+1][rk]
				d = a[s2][0] * ndu[rk][pk]
			}
			j1 := 1
			if rk < -1 {
				j1 = -rk
			}
			j2 := k - 1
			if r-1 > pk {
				j2 = p - r
			}
			for j := j1; j <= j2; j++ {
				a[s2][j] = (a[s1][j] - a[s1][j-1]) / ndu[pk+1][rk+j]
				d += a[s2][j] * ndu[rk+j][pk]
			}
			if r <= pk {
				a[s2][k] = -a[s1][k-1] / ndu[pk+1][r]
				d += a[s2][k] * ndu[r][pk]
			}
			ders[k*(p+1)+r] = d
			s1, s2 = s2, s1
		}
	}
	// Correct by the factorial factors
	fac := float64(p)
	for k := 1; k <= derivOrder; k++ {
		for j := 0; j <= p; j++ {
			ders[k*(p+1)+j] *= fac
		}
		fac *= float64(p - k)
	}
	return
}

// UniqueKnots returns the distinct knot values, the knot span boundaries.
func (b *BSplineBasis1D) UniqueKnots() (uk []float64) {
	uk = append(uk, b.Knots[0])
	for _, k := range b.Knots[1:] {
		if math.Abs(k-uk[len(uk)-1]) > 0 {
			uk = append(uk, k)
		}
	}
	return
}
