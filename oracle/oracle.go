// Package oracle provides thermodynamic and transport properties of a plasma mixture in
// local thermochemical equilibrium, evaluated at (pressure, temperature) or
// (pressure, enthalpy).
package oracle

import (
	"context"
	"fmt"
	"math"
)

// Spec selects the state to evaluate: pressure with either temperature or enthalpy.
type Spec struct {
	Pressure    float64
	Temperature float64
	Enthalpy    float64
	ByEnthalpy  bool
	// Composition is a hint for engines that iterate on composition. It may be ignored.
	Composition map[string]float64
}

func ByPT(p, t float64) Spec { return Spec{Pressure: p, Temperature: t} }

func ByPH(p, h float64) Spec { return Spec{Pressure: p, Enthalpy: h, ByEnthalpy: true} }

func (s Spec) String() string {
	if s.ByEnthalpy {
		return fmt.Sprintf("(p=%g Pa, h=%g J/kg)", s.Pressure, s.Enthalpy)
	}
	return fmt.Sprintf("(p=%g Pa, T=%g K)", s.Pressure, s.Temperature)
}

// State is an immutable snapshot of the mixture at one point.
type State struct {
	Pressure    float64 `json:"pressure"`
	Temperature float64 `json:"temperature"`
	Density     float64 `json:"density"`
	Enthalpy    float64 `json:"enthalpy"`
	Entropy     float64 `json:"entropy"`

	// 摩尔分数与质量分数
	Composition   map[string]float64 `json:"composition"`
	MassFractions map[string]float64 `json:"mass_fractions"`

	Viscosity               float64 `json:"viscosity"`
	FrozenConductivity      float64 `json:"frozen_conductivity"`
	EquilibriumConductivity float64 `json:"equilibrium_conductivity"`
	FrozenCp                float64 `json:"frozen_cp"`
	EquilibriumCp           float64 `json:"equilibrium_cp"`
	SoundSpeed              float64 `json:"sound_speed"`
	FrozenSoundSpeed        float64 `json:"frozen_sound_speed"`
	MeanFreePath            float64 `json:"mean_free_path"`
}

// Clone returns a copy that shares no maps with s.
func (s State) Clone() State {
	s.Composition = copyMap(s.Composition)
	s.MassFractions = copyMap(s.MassFractions)
	return s
}

func (s State) finite() bool {
	for _, v := range []float64{s.Density, s.Enthalpy, s.Entropy, s.Viscosity, s.FrozenConductivity,
		s.EquilibriumConductivity, s.FrozenCp, s.EquilibriumCp, s.SoundSpeed, s.MeanFreePath} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func copyMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Oracle evaluates mixture properties. Implementations must be deterministic: the same
// Spec always yields the same State or the same failure kind.
type Oracle interface {
	Query(ctx context.Context, spec Spec) (State, error)
}

// Func adapts a function to the Oracle interface.
type Func func(ctx context.Context, spec Spec) (State, error)

func (f Func) Query(ctx context.Context, spec Spec) (State, error) { return f(ctx, spec) }
