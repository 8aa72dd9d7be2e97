package IGA

import (
	"fmt"

	"github.com/notargets/mortar/utils"
)

// NurbsBasis2D evaluates the bivariate rational basis of a patch. Weights are
// stored over the full control net, u index running fastest.
type NurbsBasis2D struct {
	UBasis, VBasis *BSplineBasis1D
	Weights        []float64
}

func NewNurbsBasis2D(uBasis, vBasis *BSplineBasis1D, weights []float64) (nb *NurbsBasis2D) {
	if len(weights) != uBasis.NumBasis()*vBasis.NumBasis() {
		panic(fmt.Errorf("weight count %d does not match control net %dx%d",
			len(weights), uBasis.NumBasis(), vBasis.NumBasis()))
	}
	for i, w := range weights {
		if w <= 0 {
			panic(fmt.Errorf("nonpositive weight %g at control point %d", w, i))
		}
	}
	return &NurbsBasis2D{UBasis: uBasis, VBasis: vBasis, Weights: weights}
}

// NumLocalBasis is the number of basis functions supported on one knot span.
func (nb *NurbsBasis2D) NumLocalBasis() int {
	return (nb.UBasis.P + 1) * (nb.VBasis.P + 1)
}

// NumDerivatives is the count of partial derivative slots up to derivDegree,
// including the function value itself.
func NumDerivatives(derivDegree int) int {
	return (derivDegree + 1) * (derivDegree + 2) / 2
}

// DerivIndex locates the (d^i/du^i d^j/dv^j) slot in the triangular
// derivative ordering: i groups first, j running inside each group.
func DerivIndex(derivDegree, i, j int) int {
	return i*(derivDegree+1) - i*(i-1)/2 + j
}

// IndexDerivativeBasisFunction addresses one derivative of one local basis
// function in the flat array returned by BasisFunctionsAndDerivatives.
func IndexDerivativeBasisFunction(derivDegree, i, j, basisIndex int) int {
	return basisIndex*NumDerivatives(derivDegree) + DerivIndex(derivDegree, i, j)
}

// localWeight returns the weight of local function (iu,iv) on span
// (spanU,spanV), iu over the u direction functions.
func (nb *NurbsBasis2D) localWeight(spanU, spanV, iu, iv int) float64 {
	var (
		nU = nb.UBasis.NumBasis()
		ci = spanU - nb.UBasis.P + iu
		cj = spanV - nb.VBasis.P + iv
	)
	return nb.Weights[cj*nU+ci]
}

// BasisFunctions evaluates the nonzero rational basis functions at (u,v),
// ordered v-major over the local net: index iv*(pU+1)+iu.
func (nb *NurbsBasis2D) BasisFunctions(u float64, spanU int, v float64, spanV int) (R []float64) {
	var (
		pU, pV = nb.UBasis.P, nb.VBasis.P
		NU     = nb.UBasis.BasisFunctions(u, spanU)
		NV     = nb.VBasis.BasisFunctions(v, spanV)
		sum    float64
	)
	R = make([]float64, (pU+1)*(pV+1))
	for iv := 0; iv <= pV; iv++ {
		for iu := 0; iu <= pU; iu++ {
			val := NU[iu] * NV[iv] * nb.localWeight(spanU, spanV, iu, iv)
			R[iv*(pU+1)+iu] = val
			sum += val
		}
	}
	for i := range R {
		R[i] /= sum
	}
	return
}

// weightedTermsAndDenominator evaluates the weighted polynomial terms A per
// local function and the denominator W with all partial derivatives up to
// derivDegree, both in the triangular ordering of DerivIndex.
func (nb *NurbsBasis2D) weightedTermsAndDenominator(derivDegree int, u float64, spanU int,
	v float64, spanV int) (A, W []float64) {
	var (
		pU, pV = nb.UBasis.P, nb.VBasis.P
		nLocal = (pU + 1) * (pV + 1)
		nDeriv = NumDerivatives(derivDegree)
		dU     = nb.UBasis.BasisFunctionsAndDerivatives(derivDegree, u, spanU)
		dV     = nb.VBasis.BasisFunctionsAndDerivatives(derivDegree, v, spanV)
	)
	A = make([]float64, nLocal*nDeriv)
	W = make([]float64, nDeriv)
	for i := 0; i+0 <= derivDegree; i++ {
		for j := 0; i+j <= derivDegree; j++ {
			slot := DerivIndex(derivDegree, i, j)
			for iv := 0; iv <= pV; iv++ {
				for iu := 0; iu <= pU; iu++ {
					k := iv*(pU+1) + iu
					term := dU[i*(pU+1)+iu] * dV[j*(pV+1)+iv] * nb.localWeight(spanU, spanV, iu, iv)
					A[k*nDeriv+slot] = term
					W[slot] += term
				}
			}
		}
	}
	return
}

// DenominatorAndDerivatives evaluates the rational denominator and its partial
// derivatives up to derivDegree at (u,v), addressed by DerivIndex.
func (nb *NurbsBasis2D) DenominatorAndDerivatives(derivDegree int, u float64, spanU int,
	v float64, spanV int) (W []float64) {
	_, W = nb.weightedTermsAndDenominator(derivDegree, u, spanU, v, spanV)
	return
}

// BasisFunctionsAndDerivatives evaluates the nonzero rational basis functions
// and all their partial derivatives up to derivDegree at (u,v). Address the
// result with IndexDerivativeBasisFunction; local functions are ordered
// v-major as in BasisFunctions.
func (nb *NurbsBasis2D) BasisFunctionsAndDerivatives(derivDegree int, u float64, spanU int,
	v float64, spanV int) (R []float64) {
	var (
		pU, pV = nb.UBasis.P, nb.VBasis.P
		nLocal = (pU + 1) * (pV + 1)
		nDeriv = NumDerivatives(derivDegree)
	)
	A, W := nb.weightedTermsAndDenominator(derivDegree, u, spanU, v, spanV)
	if W[0] <= 0 {
		panic(fmt.Errorf("degenerate denominator %g at (u,v)=(%g,%g)", W[0], u, v))
	}
	// Quotient rule, Piegl-Tiller style, lowest total order first so prior
	// rational derivatives are available
	R = make([]float64, nLocal*nDeriv)
	for total := 0; total <= derivDegree; total++ {
		for i := 0; i <= total; i++ {
			j := total - i
			slot := DerivIndex(derivDegree, i, j)
			for k := 0; k < nLocal; k++ {
				val := A[k*nDeriv+slot]
				for a := 1; a <= i; a++ {
					val -= utils.BinomialCoefficient(i, a) * W[DerivIndex(derivDegree, a, 0)] *
						R[k*nDeriv+DerivIndex(derivDegree, i-a, j)]
				}
				for b := 1; b <= j; b++ {
					val -= utils.BinomialCoefficient(j, b) * W[DerivIndex(derivDegree, 0, b)] *
						R[k*nDeriv+DerivIndex(derivDegree, i, j-b)]
				}
				for a := 1; a <= i; a++ {
					for b := 1; b <= j; b++ {
						val -= utils.BinomialCoefficient(i, a) * utils.BinomialCoefficient(j, b) *
							W[DerivIndex(derivDegree, a, b)] *
							R[k*nDeriv+DerivIndex(derivDegree, i-a, j-b)]
					}
				}
				R[k*nDeriv+slot] = val / W[0]
			}
		}
	}
	return
}
