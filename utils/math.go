package utils

import (
	"fmt"
	"math"
)

func ConstArray(N int, val float64) (v []float64) {
	v = make([]float64, N)
	for i := range v {
		v[i] = val
	}
	return
}

func DotProduct(a, b []float64) (dot float64) {
	if len(a) != len(b) {
		panic(fmt.Errorf("vector length mismatch: %d vs %d", len(a), len(b)))
	}
	for i := range a {
		dot += a[i] * b[i]
	}
	return
}

func CrossProduct(a, b, c []float64) {
	c[0] = a[1]*b[2] - a[2]*b[1]
	c[1] = a[2]*b[0] - a[0]*b[2]
	c[2] = a[0]*b[1] - a[1]*b[0]
}

func VectorLength(a []float64) (l float64) {
	return math.Sqrt(DotProduct(a, a))
}

func PointDistance(a, b []float64) (d float64) {
	var sum float64
	for i := 0; i < 3; i++ {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// TriangleArea returns the area of the triangle spanned by vectors
// (x0,y0,z0) and (x1,y1,z1), i.e. half the cross product norm.
func TriangleArea(x0, y0, z0, x1, y1, z1 float64) (area float64) {
	var (
		cx = y0*z1 - z0*y1
		cy = z0*x1 - x0*z1
		cz = x0*y1 - y0*x1
	)
	return 0.5 * math.Sqrt(cx*cx+cy*cy+cz*cz)
}

// Solve2x2 solves A*x = b for a row-major 2x2 matrix A, overwriting b with x.
// Returns false when the determinant magnitude is below tol.
func Solve2x2(A [4]float64, b []float64, tol float64) bool {
	det := A[0]*A[3] - A[1]*A[2]
	if math.Abs(det) < tol {
		return false
	}
	x0 := (b[0]*A[3] - b[1]*A[1]) / det
	x1 := (b[1]*A[0] - b[0]*A[2]) / det
	b[0], b[1] = x0, x1
	return true
}

// TransposeMatrixProduct computes C = A^T * B for row-major A (k x m)
// and B (k x n), producing row-major C (m x n).
func TransposeMatrixProduct(k, m, n int, A, B, C []float64) {
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var sum float64
			for l := 0; l < k; l++ {
				sum += A[l*m+i] * B[l*n+j]
			}
			C[i*n+j] = sum
		}
	}
}

// BinomialCoefficient returns n choose k for the small orders used by the
// NURBS derivative quotient rule.
func BinomialCoefficient(n, k int) (c float64) {
	if k < 0 || k > n {
		return 0
	}
	c = 1
	if k > n-k {
		k = n - k
	}
	for i := 0; i < k; i++ {
		c = c * float64(n-i) / float64(i+1)
	}
	return
}
