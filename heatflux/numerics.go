package heatflux

import (
	"errors"
	"fmt"
)

var errSingular = errors.New("zero pivot in tridiagonal system")

// thomas solves the tridiagonal system with diagonal a, upper diagonal c and lower
// diagonal e.
func thomas(a, c, e, d []float64) ([]float64, error) {
	n := len(a)
	if len(c) != n-1 || len(e) != n-1 || len(d) != n {
		return nil, fmt.Errorf("thomas: wrong input size")
	}
	alpha := make([]float64, n)
	beta := make([]float64, n-1)
	y := make([]float64, n)
	x := make([]float64, n)
	alpha[0] = a[0]
	for i := 0; i < n-1; i++ {
		if alpha[i] == 0 {
			return nil, errSingular
		}
		beta[i] = e[i] / alpha[i]
		alpha[i+1] = a[i+1] - beta[i]*c[i]
	}
	if alpha[n-1] == 0 {
		return nil, errSingular
	}
	y[0] = d[0]
	for i := 1; i < n; i++ {
		y[i] = d[i] - beta[i-1]*y[i-1]
	}
	x[n-1] = y[n-1] / alpha[n-1]
	for i := n - 2; i >= 0; i-- {
		x[i] = (y[i] - c[i]*x[i+1]) / alpha[i]
	}
	return x, nil
}

// solveODE solves a f'' + b f' = d on a uniform grid with f(0) = fInit and
// f(end) = fFinal. The coefficients are pre-scaled by the grid step. A compact three
// point scheme is reduced to a tridiagonal system.
func solveODE(a, b, d []float64, fInit, fFinal float64) ([]float64, error) {
	n := len(a)
	if len(b) != n || len(d) != n {
		return nil, fmt.Errorf("solveODE: wrong input size")
	}
	ns := n - 2
	aa := make([]float64, ns)
	bb := make([]float64, ns)
	cc := make([]float64, ns)
	dd := make([]float64, ns)
	for i := 1; i <= ns; i++ {
		mnp1p1 := a[i+1] + 1.5*b[i+1]
		mnp10 := -2 * (a[i+1] + b[i+1])
		mnp1m1 := a[i+1] + 0.5*b[i+1]
		mnp1al := -(6*a[i+1] + 2*b[i+1])
		mnp1be := -(10*a[i+1] + 2*b[i+1])
		mnp1 := a[i] + 0.5*b[i]
		mn0 := -2 * a[i]
		mnm1 := a[i] - 0.5*b[i]
		mnal := b[i]
		mnbe := 2 * a[i]
		mnm1p1 := a[i-1] - 0.5*b[i-1]
		mnm10 := 2 * (-a[i-1] + b[i-1])
		mnm1m1 := a[i-1] - 1.5*b[i-1]
		mnm1al := 6*a[i-1] - 2*b[i-1]
		mnm1be := -10*a[i-1] + 2*b[i-1]

		// eliminate the auxiliary unknowns
		delnp1 := mnal*mnp1be - mnp1al*mnbe
		deln := mnp1al*mnm1be - mnm1al*mnp1be
		delnm1 := mnm1al*mnbe - mnal*mnm1be

		aa[i-1] = mnm1p1*delnp1 + mnp1*deln + mnp1p1*delnm1
		bb[i-1] = mnm10*delnp1 + mn0*deln + mnp10*delnm1
		cc[i-1] = mnm1m1*delnp1 + mnm1*deln + mnp1m1*delnm1
		dd[i-1] = d[i-1]*delnp1 + d[i]*deln + d[i+1]*delnm1
	}
	dd[0] -= cc[0] * fInit
	dd[ns-1] -= aa[ns-1] * fFinal

	inner, err := thomas(bb, aa[:ns-1], cc[1:], dd)
	if err != nil {
		return nil, err
	}
	res := make([]float64, n)
	res[0] = fInit
	res[n-1] = fFinal
	copy(res[1:n-1], inner)
	return res, nil
}

// firstDerivative uses central differences inside and one-sided stencils at the ends.
// Arrays of 3 or 4 points fall back to second order.
func firstDerivative(f []float64, dx float64, order int) ([]float64, error) {
	n := len(f)
	if n <= 2 {
		return nil, fmt.Errorf("firstDerivative: %d points are too few", n)
	}
	if n < 5 && order > 2 {
		order = 2
	}
	df := make([]float64, n)
	switch order {
	case 2:
		df[0] = (-3*f[0] + 4*f[1] - f[2]) / (2 * dx)
		df[n-1] = (3*f[n-1] - 4*f[n-2] + f[n-3]) / (2 * dx)
		for i := 1; i < n-1; i++ {
			df[i] = (f[i+1] - f[i-1]) / (2 * dx)
		}
	case 4:
		df[0] = (-25*f[0] + 48*f[1] - 36*f[2] + 16*f[3] - 3*f[4]) / (12 * dx)
		df[1] = (-3*f[0] - 10*f[1] + 18*f[2] - 6*f[3] + f[4]) / (12 * dx)
		df[n-1] = (25*f[n-1] - 48*f[n-2] + 36*f[n-3] - 16*f[n-4] + 3*f[n-5]) / (12 * dx)
		df[n-2] = (3*f[n-1] + 10*f[n-2] - 18*f[n-3] + 6*f[n-4] - f[n-5]) / (12 * dx)
		for i := 2; i < n-2; i++ {
			df[i] = (f[i-2] - 8*f[i-1] + 8*f[i+1] - f[i+2]) / (12 * dx)
		}
	default:
		return nil, fmt.Errorf("firstDerivative: order %d not supported", order)
	}
	return df, nil
}

// integrate returns V with V(0) = 0 and dV/deta = y, by Simpson's rule. y needs at
// least 5 points.
func integrate(deta float64, y []float64) []float64 {
	v := make([]float64, len(y))
	v[1] = (17*y[0] + 42*y[1] - 16*y[2] + 6*y[3] - y[4]) * deta / 48
	for i := 2; i < len(y); i++ {
		v[i] = v[i-2] + (y[i-2]+4*y[i-1]+y[i])*deta/3
	}
	return v
}
