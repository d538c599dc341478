package solver

import (
	"context"
	"math"

	"plasflow/oracle"
)

const (
	maxShockIterations = 100
	// 密度比下限，对应强激波极限
	minDensityRatio = 0.02
	weakShock       = 1e-6
)

// postShock solves the equilibrium normal shock for the free stream moving at u. The
// unknown is the density ratio eps = rho1/rho2; the Rankine-Hugoniot relations give
// p2 = p1 + rho1 u² (1 - eps) and h2 = h1 + u²/2 (1 - eps²). ok is false when the shock
// is too weak to be resolved, in which case the flow is treated as shock free.
func (a *Assembler) postShock(ctx context.Context, free oracle.State, u float64) (oracle.State, bool, error) {
	p1, rho1, h1 := free.Pressure, free.Density, free.Enthalpy
	var last oracle.State
	g := func(eps float64) (float64, error) {
		p2 := p1 + rho1*u*u*(1-eps)
		h2 := h1 + u*u/2*(1-eps*eps)
		s, err := a.oracle.Query(ctx, oracle.ByPH(p2, h2))
		if err != nil {
			return 0, err
		}
		last = s
		return eps - rho1/s.Density, nil
	}

	lo, hi := minDensityRatio, 1-weakShock
	ghi, err := g(hi)
	if err != nil {
		return oracle.State{}, false, err
	}
	if ghi <= 0 {
		return free, false, nil
	}
	glo, err := g(lo)
	if err != nil {
		return oracle.State{}, false, err
	}
	if glo >= 0 {
		return oracle.State{}, false, oracle.Errorf(oracle.NonConvergence, "normal shock", oracle.ByPT(p1, free.Temperature),
			"density ratio below %g at u=%g m/s", minDensityRatio, u)
	}

	// Illinois variant of regula falsi
	side := 0
	for it := 0; it < maxShockIterations; it++ {
		c := (lo*ghi - hi*glo) / (ghi - glo)
		gc, err := g(c)
		if err != nil {
			return oracle.State{}, false, err
		}
		if math.Abs(gc) < 1e-11 || hi-lo < 1e-11 {
			return last, true, nil
		}
		if gc*ghi > 0 {
			hi, ghi = c, gc
			if side == -1 {
				glo /= 2
			}
			side = -1
		} else {
			lo, glo = c, gc
			if side == 1 {
				ghi /= 2
			}
			side = 1
		}
	}
	return oracle.State{}, false, oracle.Errorf(oracle.NonConvergence, "normal shock", oracle.ByPT(p1, free.Temperature),
		"density ratio not found after %d iterations", maxShockIterations)
}
