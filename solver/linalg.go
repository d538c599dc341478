package solver

import (
	"errors"
	"math"
)

var errSingular = errors.New("singular jacobian")

// solveLinear solves a x = b by Gaussian elimination with partial pivoting. a and b are
// not modified.
func solveLinear(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	m := make([][]float64, n)
	for i := range a {
		m[i] = make([]float64, n+1)
		copy(m[i], a[i])
		m[i][n] = b[i]
	}
	for k := 0; k < n; k++ {
		p := k
		for i := k + 1; i < n; i++ {
			if math.Abs(m[i][k]) > math.Abs(m[p][k]) {
				p = i
			}
		}
		scale := 0.0
		for j := k; j < n; j++ {
			scale = math.Max(scale, math.Abs(m[p][j]))
		}
		if scale == 0 || math.Abs(m[p][k]) <= 1e-14*scale || math.IsNaN(m[p][k]) {
			return nil, errSingular
		}
		m[k], m[p] = m[p], m[k]
		for i := k + 1; i < n; i++ {
			f := m[i][k] / m[k][k]
			for j := k; j <= n; j++ {
				m[i][j] -= f * m[k][j]
			}
		}
	}
	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		s := m[i][n]
		for j := i + 1; j < n; j++ {
			s -= m[i][j] * x[j]
		}
		x[i] = s / m[i][i]
	}
	return x, nil
}
