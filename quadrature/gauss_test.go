package quadrature

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGaussLegendre(t *testing.T) {
	{ // Known 2-point rule
		x, w := GaussLegendre(2)
		sort.Float64s(x)
		assert.InDelta(t, -1/math.Sqrt(3), x[0], 1.e-12)
		assert.InDelta(t, 1/math.Sqrt(3), x[1], 1.e-12)
		assert.InDelta(t, 1.0, w[0], 1.e-12)
		assert.InDelta(t, 1.0, w[1], 1.e-12)
	}
	for n := 1; n <= 6; n++ {
		x, w := GaussLegendre(n)
		var sum, sumX2 float64
		for i := range x {
			sum += w[i]
			sumX2 += w[i] * x[i] * x[i]
		}
		assert.InDelta(t, 2.0, sum, 1.e-12)
		if n >= 2 { // Exact for degree 2n-1 >= 2
			assert.InDelta(t, 2./3., sumX2, 1.e-12)
		}
		// Polynomial of degree 2n-1 integrates exactly
		var sumHigh, exact float64
		deg := 2*n - 1
		for i := range x {
			sumHigh += w[i] * math.Pow(x[i], float64(deg))
		}
		exact = 0 // odd power over symmetric interval
		assert.InDelta(t, exact, sumHigh, 1.e-12)
	}
}

func TestQuadRule(t *testing.T) {
	for n := 1; n <= 5; n++ {
		q := NewQuadRule(n)
		assert.Equal(t, n*n, q.NGP)
		var sum float64
		for _, w := range q.Weights {
			sum += w
		}
		assert.InDelta(t, 4.0, sum, 1.e-12)
	}
	{ // Integrate x^2*y^2 over [-1,1]^2 = 4/9 with 2x2 points
		q := NewQuadRule(2)
		var sum float64
		for i, gp := range q.Coords {
			sum += q.Weights[i] * gp[0] * gp[0] * gp[1] * gp[1]
		}
		assert.InDelta(t, 4./9., sum, 1.e-12)
	}
}

func TestTriangleRules(t *testing.T) {
	for _, nGP := range []int{1, 3, 4, 6, 7, 12, 13, 16} {
		q := NewTriangleRule(nGP)
		assert.Equal(t, nGP, q.NGP)
		var sum, sumU, sumV float64
		for i, gp := range q.Coords {
			sum += q.Weights[i]
			sumU += q.Weights[i] * gp[0]
			sumV += q.Weights[i] * gp[1]
		}
		// Weights normalized to the unit measure; linear fields exact
		assert.InDelta(t, 1.0, sum, 1.e-12)
		assert.InDelta(t, 1./3., sumU, 1.e-12)
		assert.InDelta(t, 1./3., sumV, 1.e-12)
	}
	{ // Degree 2 exactness from the 3-point rule: int(u^2) = 1/6 over area 1/2
		q := NewTriangleRule(3)
		var sum float64
		for i, gp := range q.Coords {
			sum += q.Weights[i] * gp[0] * gp[0]
		}
		assert.InDelta(t, 1./6., 0.5*sum, 1.e-12)
	}
	assert.Panics(t, func() { NewTriangleRule(5) })
}
