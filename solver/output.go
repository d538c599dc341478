package solver

import (
	"fmt"
	"time"
)

// FlowState is the reconstructed free stream.
type FlowState struct {
	Temperature      float64            `json:"temperature"`
	Pressure         float64            `json:"pressure"`
	Density          float64            `json:"density"`
	Enthalpy         float64            `json:"enthalpy"`
	Velocity         float64            `json:"velocity"`
	SoundSpeed       float64            `json:"sound_speed"`
	Mach             float64            `json:"mach"`
	TotalTemperature float64            `json:"total_temperature"`
	TotalPressure    float64            `json:"total_pressure"`
	TotalEnthalpy    float64            `json:"total_enthalpy"`
	HeatFlux         float64            `json:"heat_flux"`
	VelocityGradient float64            `json:"velocity_gradient"`
	Reynolds         float64            `json:"reynolds"`
	Knudsen          float64            `json:"knudsen"`
	Composition      map[string]float64 `json:"composition"`
	MassFractions    map[string]float64 `json:"mass_fractions"`
}

type Diagnostics struct {
	Iterations          int           `json:"iterations"`
	Backoffs            int           `json:"backoffs"`
	ResidualNorm        float64       `json:"residual_norm"`
	InitialResidualNorm float64       `json:"initial_residual_norm"`
	Residuals           []float64     `json:"residuals"`
	History             []float64     `json:"history"`
	JacobianStep        float64       `json:"jacobian_step"`
	HeatFluxConverged   bool          `json:"heat_flux_converged"`
	HeatFluxIterations  int           `json:"heat_flux_iterations"`
	Supersonic          bool          `json:"supersonic"`
	Warnings            []string      `json:"warnings,omitempty"`
	Elapsed             time.Duration `json:"elapsed"`
}

// Result is produced once per solve. Flow is nil unless Status is Converged.
type Result struct {
	Case        string      `json:"case"`
	Status      Status      `json:"status"`
	Flow        *FlowState  `json:"flow,omitempty"`
	Diagnostics Diagnostics `json:"diagnostics"`
	Failure     *Failure    `json:"failure,omitempty"`
}

// Err returns the failure as an error, nil on convergence.
func (r Result) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}

func (a *Assembler) flowState(ev *evaluation) *FlowState {
	c, free := ev.cand, ev.free
	ms := a.ms
	jet := ms.Probe.JetRadius
	if !(jet > 0) {
		jet = ms.Probe.NoseRadius
	}
	re := ev.reynolds
	if re == 0 {
		re = a.pitotReynolds(free, c.U)
	}
	st := free.Clone()
	return &FlowState{
		Temperature:      c.T,
		Pressure:         ms.StaticPressure,
		Density:          free.Density,
		Enthalpy:         free.Enthalpy,
		Velocity:         c.U,
		SoundSpeed:       free.SoundSpeed,
		Mach:             c.U / free.SoundSpeed,
		TotalTemperature: c.Tt,
		TotalPressure:    c.Pt,
		TotalEnthalpy:    free.Enthalpy + c.U*c.U/2,
		HeatFlux:         ev.prediction.Q,
		VelocityGradient: ev.prediction.Beta,
		Reynolds:         re,
		Knudsen:          free.MeanFreePath / jet,
		Composition:      st.Composition,
		MassFractions:    st.MassFractions,
	}
}

// regimeWarnings flags a Mach number inconsistent with the chosen pressure relation.
func regimeWarnings(relation string, f *FlowState) []string {
	switch {
	case relation == Isentropic && f.Mach >= 1:
		return []string{fmt.Sprintf("free-stream Mach number %.3f is supersonic; the isentropic Pitot relation assumes subsonic flow", f.Mach)}
	case relation == Rayleigh && f.Mach < 1:
		return []string{fmt.Sprintf("free-stream Mach number %.3f is subsonic; no normal shock was applied", f.Mach)}
	}
	return nil
}
