package oracle

import (
	"context"
	"math"
)

const (
	// validity range of the engine [K]
	MinTemperature = 50.0
	MaxTemperature = 25000.0

	maxInversionIterations = 100
	maxIsentropeIterations = 30
)

// Engine is an ideal dissociating gas in chemical equilibrium. It is stateless and safe
// for concurrent use.
type Engine struct {
	gas Gas
	// 原子标准熵，与离解平衡常数一致
	s0Atom float64
}

func NewEngine(mixture string) (*Engine, error) {
	g, err := LookupGas(mixture)
	if err != nil {
		return nil, err
	}
	return NewEngineForGas(g), nil
}

func NewEngineForGas(g Gas) *Engine {
	s0 := g.S0 + g.R*(1+math.Log(4*g.RhoD*g.R*referenceTemperature/referencePressure))
	return &Engine{gas: g, s0Atom: s0}
}

func (e *Engine) Gas() Gas { return e.gas }

func (e *Engine) Query(ctx context.Context, spec Spec) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	p := spec.Pressure
	if math.IsNaN(p) || p <= 0 || math.IsInf(p, 0) {
		return State{}, Errorf(OutOfRange, "idg", spec, "pressure must be positive")
	}
	t := spec.Temperature
	if spec.ByEnthalpy {
		var err error
		if t, err = e.temperature(spec); err != nil {
			return State{}, err
		}
	} else if math.IsNaN(t) || t < MinTemperature || t > MaxTemperature {
		return State{}, Errorf(OutOfRange, "idg", spec, "temperature outside [%g, %g] K", MinTemperature, MaxTemperature)
	}

	s := e.state(p, t)
	a, err := e.soundSpeed(p, t)
	if err != nil {
		return State{}, Errorf(NumericalFailure, "idg", spec, "equilibrium sound speed: %v", err)
	}
	s.SoundSpeed = a
	if !s.finite() {
		return State{}, Errorf(NumericalFailure, "idg", spec, "non-finite property")
	}
	return s, nil
}

// alpha returns the equilibrium degree of dissociation and K = alpha²/(1-alpha²).
func (e *Engine) alpha(p, t float64) (float64, float64) {
	k := e.gas.RhoD * e.gas.R * t / p * math.Exp(-e.gas.ThetaD/t)
	return math.Sqrt(k / (1 + k)), k
}

func (e *Engine) enthalpy(p, t float64) float64 {
	a, _ := e.alpha(p, t)
	return e.gas.R * ((4+a)*t + a*e.gas.ThetaD)
}

func (e *Engine) equilibriumCp(p, t float64) float64 {
	a, _ := e.alpha(p, t)
	dadt := a * (1 - a*a) * (1/t + e.gas.ThetaD/(t*t)) / 2
	return e.gas.R * ((4 + a) + (t+e.gas.ThetaD)*dadt)
}

func (e *Engine) entropy(p, t float64) float64 {
	g := e.gas
	a, _ := e.alpha(p, t)
	lt := math.Log(t / referenceTemperature)
	s := 0.0
	if xm := (1 - a) / (1 + a); a < 1 && xm > 0 {
		s += (1 - a) * (g.S0 + 4*g.R*lt - g.R*math.Log(xm*p/referencePressure))
	}
	if xa := 2 * a / (1 + a); a > 0 && xa > 0 {
		s += a * (e.s0Atom + 5*g.R*lt - 2*g.R*math.Log(xa*p/referencePressure))
	}
	return s
}

func (e *Engine) density(p, t float64) float64 {
	a, _ := e.alpha(p, t)
	return p / (e.gas.R * t * (1 + a))
}

func (e *Engine) state(p, t float64) State {
	g := e.gas
	a, _ := e.alpha(p, t)
	rmix := g.R * (1 + a)
	cpf := g.R * (4 + a)
	cpe := e.equilibriumCp(p, t)
	mu := g.MuRef * math.Pow(t/g.TRef, 1.5) * (g.TRef + g.Sutherland) / (t + g.Sutherland)
	return State{
		Pressure:    p,
		Temperature: t,
		Density:     p / (rmix * t),
		Enthalpy:    g.R * ((4+a)*t + a*g.ThetaD),
		Entropy:     e.entropy(p, t),
		Composition: map[string]float64{
			g.Molecule: (1 - a) / (1 + a),
			g.Atom:     2 * a / (1 + a),
		},
		MassFractions: map[string]float64{
			g.Molecule: 1 - a,
			g.Atom:     a,
		},
		Viscosity:               mu,
		FrozenConductivity:      mu * cpf / g.Prandtl,
		EquilibriumConductivity: mu * cpe / g.Prandtl,
		FrozenCp:                cpf,
		EquilibriumCp:           cpe,
		FrozenSoundSpeed:        math.Sqrt((4 + a) / 3 * rmix * t),
		MeanFreePath:            mu / p * math.Sqrt(math.Pi*rmix*t/2),
	}
}

// temperature inverts h(p, T) at fixed pressure.
func (e *Engine) temperature(spec Spec) (float64, error) {
	p, h := spec.Pressure, spec.Enthalpy
	lo, hi := MinTemperature, MaxTemperature
	hlo, hhi := e.enthalpy(p, lo), e.enthalpy(p, hi)
	if math.IsNaN(h) || h < hlo || h > hhi {
		return 0, Errorf(OutOfRange, "idg", spec, "enthalpy outside [%g, %g] J/kg", hlo, hhi)
	}
	tol := 1e-12 * math.Max(math.Abs(h), 1)
	t := lo + (hi-lo)*(h-hlo)/(hhi-hlo)
	for it := 0; it < maxInversionIterations; it++ {
		f := e.enthalpy(p, t) - h
		if math.Abs(f) <= tol {
			return t, nil
		}
		if f > 0 {
			hi = t
		} else {
			lo = t
		}
		next := t - f/e.equilibriumCp(p, t)
		if !(next > lo && next < hi) {
			next = (lo + hi) / 2
		}
		t = next
		if hi-lo <= 1e-12*t {
			return t, nil
		}
	}
	return 0, Errorf(NonConvergence, "idg", spec, "enthalpy inversion failed after %d iterations", maxInversionIterations)
}

// soundSpeed evaluates (dp/drho) at constant entropy by central differences along the
// isentrope.
func (e *Engine) soundSpeed(p, t float64) (float64, error) {
	s := e.entropy(p, t)
	const eps = 1e-4
	rho := [2]float64{}
	for i, f := range [2]float64{1 - eps, 1 + eps} {
		pp := p * f
		tt := t
		ok := false
		for it := 0; it < maxIsentropeIterations; it++ {
			ds := e.entropy(pp, tt) - s
			tt -= ds * tt / e.equilibriumCp(pp, tt)
			if math.Abs(ds) <= 1e-12*math.Abs(s)+1e-12 {
				ok = true
				break
			}
		}
		if !ok || math.IsNaN(tt) || tt <= 0 {
			return 0, ErrNonConvergence
		}
		rho[i] = e.density(pp, tt)
	}
	a2 := 2 * eps * p / (rho[1] - rho[0])
	if !(a2 > 0) || math.IsInf(a2, 0) {
		return 0, ErrNumericalFailure
	}
	return math.Sqrt(a2), nil
}
