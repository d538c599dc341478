package heatflux

import (
	"context"
	"math"

	"plasflow/oracle"
)

// profile is a boundary-layer solution: F = f' and g = T/T_e on the eta grid.
type profile struct {
	f, g []float64
}

// hartree builds the starting profile.
func hartree(n int, etaMax, te, tw float64) profile {
	deta := etaMax / float64(n-1)
	p := profile{f: make([]float64, n), g: make([]float64, n)}
	for i := 0; i < n; i++ {
		eta := float64(i) * deta
		x := eta / etaMax * 6
		p.f[i] = 0.007005*x*x*x - 0.114439*x*x + 0.598555*x
		p.g[i] = math.Min(1, p.f[i]+tw/te*(etaMax-eta)/etaMax)
	}
	return p
}

// layer holds the property groups across the boundary layer.
type layer struct {
	l0, rr, chi, cp []float64
}

// properties evaluates the layer at T = T_e g. ok is false when a temperature is not usable
// and the profile must be reset.
func (m *Model) properties(ctx context.Context, st stagnation, g []float64) (layer, bool, error) {
	n := len(g)
	ly := layer{l0: make([]float64, n), rr: make([]float64, n), chi: make([]float64, n), cp: make([]float64, n)}
	rhoMuE := st.edge.Density * st.edge.Viscosity
	for i := 0; i < n; i++ {
		t := st.te * g[i]
		if t <= 4 || math.IsNaN(t) || t > m.settings.MaxTemperature {
			return layer{}, false, nil
		}
		s, err := m.oracle.Query(ctx, oracle.ByPT(st.pe, t))
		if err != nil {
			return layer{}, false, err
		}
		ly.l0[i] = s.Density * s.Viscosity / rhoMuE
		ly.rr[i] = st.edge.Density / s.Density
		ly.chi[i] = s.EquilibriumConductivity * s.Density / rhoMuE
		ly.cp[i] = s.EquilibriumCp
	}
	return ly, true, nil
}

func (m *Model) boundaryLayer(ctx context.Context, st stagnation, warm *profile) (Prediction, error) {
	set := m.settings
	n := set.Points
	deta := set.EtaMax / float64(n-1)
	spec := oracle.ByPT(st.pe, st.te)
	fail := func(format string, args ...interface{}) (Prediction, error) {
		return Prediction{}, oracle.Errorf(oracle.NumericalFailure, "boundary layer", spec, format, args...)
	}

	var cur profile
	if warm != nil && len(warm.f) == n {
		cur = profile{f: append([]float64(nil), warm.f...), g: append([]float64(nil), warm.g...)}
	} else {
		cur = hartree(n, set.EtaMax, st.te, st.tw)
	}

	reset := false
	converged := false
	it := 0
	a := make([]float64, n)
	b := make([]float64, n)
	d := make([]float64, n)
	neg := make([]float64, n)
	for it < set.MaxIterations {
		it++
		ly, ok, err := m.properties(ctx, st, cur.g)
		if err != nil {
			return Prediction{}, err
		}
		if !ok {
			if reset {
				return fail("layer temperature out of range after profile reset")
			}
			cur = hartree(n, set.EtaMax, st.te, st.tw)
			if ly, ok, err = m.properties(ctx, st, cur.g); err != nil {
				return Prediction{}, err
			}
			if !ok {
				return fail("layer temperature out of range on the starting profile")
			}
			reset = true
		}

		// continuity
		for i := range neg {
			neg[i] = -cur.f[i]
		}
		v := integrate(deta, neg)

		// momentum
		dl0, err := firstDerivative(ly.l0, deta, set.Order)
		if err != nil {
			return fail("%v", err)
		}
		for i := 0; i < n; i++ {
			a[i] = ly.l0[i] / (deta * deta)
			b[i] = (dl0[i] - v[i]) / deta
			d[i] = 0.5 * (cur.f[i]*cur.f[i] - ly.rr[i])
		}
		newF, err := solveODE(a, b, d, 0, 1)
		if err != nil {
			return fail("momentum: %v", err)
		}

		// energy
		dchi, err := firstDerivative(ly.chi, deta, set.Order)
		if err != nil {
			return fail("%v", err)
		}
		for i := 0; i < n; i++ {
			a[i] = ly.chi[i] / ly.cp[i] / (deta * deta)
			b[i] = (dchi[i]/ly.cp[i] - v[i]) / deta
			d[i] = 0
		}
		newG, err := solveODE(a, b, d, st.tw/st.te, 1)
		if err != nil {
			return fail("energy: %v", err)
		}

		converged = true
		for i := 0; i < n; i++ {
			if math.Abs(newF[i]-cur.f[i]) > set.Tolerance || math.Abs(newG[i]-cur.g[i]) > set.Tolerance {
				converged = false
				break
			}
		}
		if converged || it >= set.MaxIterations {
			break
		}
		w := set.Relaxation
		for i := 0; i < n; i++ {
			cur.f[i] = (1-w)*cur.f[i] + w*newF[i]
			cur.g[i] = (1-w)*cur.g[i] + w*newG[i]
		}
	}

	dg, err := firstDerivative(cur.g, deta, set.Order)
	if err != nil {
		return fail("%v", err)
	}
	q := math.Sqrt(2/(st.edge.Density*st.edge.Viscosity)) * dg[0] * st.te *
		st.wall.Density * st.wall.EquilibriumConductivity * math.Sqrt(st.beta)

	if converged && warm != nil {
		warm.f, warm.g = cur.f, cur.g
	}
	return Prediction{Q: q, Converged: converged, Iterations: it}, nil
}
