package solver

import (
	"fmt"
	"time"

	"plasflow/heatflux"
	"plasflow/model"
)

const (
	Isentropic = "isentropic"
	Rayleigh   = "rayleigh"

	GuessCorrelation = "correlation"
	GuessFixed       = "fixed"
)

type Settings struct {
	// 收敛判据 ||r|| <= AbsTol + RelTol ||r0||
	AbsTol        float64
	RelTol        float64
	MaxIterations int
	MaxBackoff    int

	JacobianStep    float64
	JacobianStepMax float64
	MaxRelativeStep float64

	StagnationWindow int
	StagnationTol    float64

	MinTemperature float64
	MaxTemperature float64

	Timeout time.Duration

	InitialGuess  string
	Initial       model.Candidate
	PitotRelation string

	HeatFlux heatflux.Settings
}

func DefaultSettings() Settings {
	return Settings{
		AbsTol:           1e-8,
		RelTol:           0,
		MaxIterations:    50,
		MaxBackoff:       3,
		JacobianStep:     1e-4,
		JacobianStepMax:  1e-1,
		MaxRelativeStep:  0.5,
		StagnationWindow: 10,
		StagnationTol:    1e-3,
		MinTemperature:   200,
		MaxTemperature:   18000,
		InitialGuess:     GuessCorrelation,
		Initial:          model.Candidate{T: 4000, U: 500, Tt: 6000},
		PitotRelation:    Isentropic,
		HeatFlux:         heatflux.DefaultSettings(),
	}
}

func (s Settings) Validate() error {
	if !(s.AbsTol > 0) && !(s.RelTol > 0) {
		return fmt.Errorf("at least one of abs_tol and rel_tol must be positive")
	}
	if s.AbsTol < 0 || s.RelTol < 0 {
		return fmt.Errorf("tolerances must not be negative")
	}
	if s.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1, got %d", s.MaxIterations)
	}
	if s.MaxBackoff < 0 {
		return fmt.Errorf("max_backoff must not be negative, got %d", s.MaxBackoff)
	}
	if !(s.JacobianStep > 0) || s.JacobianStepMax < s.JacobianStep {
		return fmt.Errorf("invalid jacobian step %g (max %g)", s.JacobianStep, s.JacobianStepMax)
	}
	if !(s.MaxRelativeStep > 0) {
		return fmt.Errorf("max_relative_step must be positive, got %g", s.MaxRelativeStep)
	}
	if s.StagnationWindow < 2 {
		return fmt.Errorf("stagnation_window must be at least 2, got %d", s.StagnationWindow)
	}
	if !(s.MinTemperature > 0) || s.MaxTemperature <= s.MinTemperature {
		return fmt.Errorf("invalid temperature bounds [%g, %g]", s.MinTemperature, s.MaxTemperature)
	}
	switch s.PitotRelation {
	case Isentropic, Rayleigh:
	default:
		return fmt.Errorf("unknown pitot relation %q", s.PitotRelation)
	}
	switch s.InitialGuess {
	case GuessCorrelation:
	case GuessFixed:
		if !(s.Initial.T > 0) || !(s.Initial.Tt > 0) || !(s.Initial.U > 0) {
			return fmt.Errorf("fixed initial guess needs positive T, Tt and u")
		}
	default:
		return fmt.Errorf("unknown initial guess strategy %q", s.InitialGuess)
	}
	return s.HeatFlux.Validate()
}
