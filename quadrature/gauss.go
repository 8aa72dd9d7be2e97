package quadrature

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Rule is a fixed quadrature rule on a canonical element. Triangle rules live
// on the parent triangle (0,0),(1,0),(0,1) with weights summing to one, quad
// rules on [-1,1]x[-1,1] with weights summing to four. The integral over a
// mapped element is the weighted sum of integrand values times the Jacobian
// of the canonical-to-real map.
type Rule struct {
	NGP     int
	Coords  [][2]float64
	Weights []float64
}

// GaussLegendre returns the n-point Gauss-Legendre nodes and weights on
// [-1,1] via the Golub-Welsch eigenvalue method on the Jacobi matrix.
func GaussLegendre(n int) (x, w []float64) {
	if n < 1 {
		panic(fmt.Errorf("gauss-legendre order must be positive, have %d", n))
	}
	if n == 1 {
		return []float64{0}, []float64{2}
	}
	J := mat.NewSymDense(n, nil)
	for i := 1; i < n; i++ {
		fi := float64(i)
		J.SetSym(i-1, i, fi/math.Sqrt(4*fi*fi-1))
	}
	var eig mat.EigenSym
	if !eig.Factorize(J, true) {
		panic("gauss-legendre eigendecomposition failed")
	}
	x = eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	w = make([]float64, n)
	for i := range w {
		v := vecs.At(0, i)
		w[i] = 2 * v * v
	}
	return
}

// NewQuadRule builds the tensor-product Gauss-Legendre rule with nPerDir
// points per direction on the canonical quad [-1,1]x[-1,1].
func NewQuadRule(nPerDir int) (q *Rule) {
	x, w := GaussLegendre(nPerDir)
	q = &Rule{NGP: nPerDir * nPerDir}
	for j := 0; j < nPerDir; j++ {
		for i := 0; i < nPerDir; i++ {
			q.Coords = append(q.Coords, [2]float64{x[i], x[j]})
			q.Weights = append(q.Weights, w[i]*w[j])
		}
	}
	return
}

// NewTriangleRule returns the symmetric Gauss rule with nGP points on the
// parent triangle. Supported point counts are 1, 3, 4, 6, 7, 12, 13 and 16.
func NewTriangleRule(nGP int) (q *Rule) {
	tbl, ok := triangleRules[nGP]
	if !ok {
		panic(fmt.Errorf("no %d-point triangle quadrature rule", nGP))
	}
	q = &Rule{NGP: nGP}
	for _, g := range tbl {
		q.expandOrbit(g)
	}
	return
}

// orbit is one symmetry group of a triangle rule given in barycentric
// coordinates (b1,b2,b3). mult 1 is the centroid, 3 the (a,a,1-2a) orbit and
// 6 the full permutation orbit.
type orbit struct {
	w, b1, b2, b3 float64
	mult          int
}

func (q *Rule) expandOrbit(g orbit) {
	add := func(b2, b3 float64) {
		q.Coords = append(q.Coords, [2]float64{b2, b3})
		q.Weights = append(q.Weights, g.w)
	}
	switch g.mult {
	case 1:
		add(g.b2, g.b3)
	case 3:
		add(g.b2, g.b3)
		add(g.b1, g.b3)
		add(g.b2, g.b1)
	case 6:
		add(g.b2, g.b3)
		add(g.b3, g.b2)
		add(g.b1, g.b3)
		add(g.b3, g.b1)
		add(g.b1, g.b2)
		add(g.b2, g.b1)
	}
}

var third = 1. / 3.

var triangleRules = map[int][]orbit{
	1: {
		{1., third, third, third, 1},
	},
	3: {
		{third, 2. / 3., 1. / 6., 1. / 6., 3},
	},
	4: {
		{-0.5625, third, third, third, 1},
		{0.520833333333333, 0.6, 0.2, 0.2, 3},
	},
	6: {
		{0.223381589678011, 0.108103018168070, 0.445948490915965, 0.445948490915965, 3},
		{0.109951743655322, 0.816847572980459, 0.091576213509771, 0.091576213509771, 3},
	},
	7: {
		{0.225, third, third, third, 1},
		{0.132394152788506, 0.059715871789770, 0.470142064105115, 0.470142064105115, 3},
		{0.125939180544827, 0.797426985353087, 0.101286507323456, 0.101286507323456, 3},
	},
	12: {
		{0.116786275726379, 0.501426509658179, 0.249286745170910, 0.249286745170910, 3},
		{0.050844906370207, 0.873821971016996, 0.063089014491502, 0.063089014491502, 3},
		{0.082851075618374, 0.636502499121399, 0.310352451033785, 0.053145049844816, 6},
	},
	13: {
		{-0.149570044467670, third, third, third, 1},
		{0.175615257433204, 0.479308067841923, 0.260345966079038, 0.260345966079038, 3},
		{0.053347235608839, 0.869739794195568, 0.065130102902216, 0.065130102902216, 3},
		{0.077113760890257, 0.638444188569809, 0.312865496004875, 0.048690315425316, 6},
	},
	16: {
		{0.144315607677787, third, third, third, 1},
		{0.095091634413455, 0.081414823414554, 0.459292588292723, 0.459292588292723, 3},
		{0.103217370534718, 0.658861384496480, 0.170569307751760, 0.170569307751760, 3},
		{0.032458497623198, 0.898905543365938, 0.050547228317031, 0.050547228317031, 3},
		{0.027230314174435, 0.008394777409958, 0.263112829634638, 0.728492392955404, 6},
	},
}
