// Package heatflux predicts the cold-wall stagnation-point heat flux of a probe immersed in
// an equilibrium plasma flow.
package heatflux

import (
	"context"
	"fmt"
	"math"

	"plasflow/model"
	"plasflow/oracle"
)

const (
	FayRiddell    = "fay_riddell"
	BoundaryLayer = "boundary_layer"
)

type Settings struct {
	Law string

	// 边界层离散与迭代
	Points         int
	EtaMax         float64
	MaxIterations  int
	Tolerance      float64
	Relaxation     float64
	Order          int
	WarmStart      bool
	MaxTemperature float64
}

func DefaultSettings() Settings {
	return Settings{
		Law:            FayRiddell,
		Points:         251,
		EtaMax:         6,
		MaxIterations:  100,
		Tolerance:      1e-4,
		Relaxation:     0.5,
		Order:          4,
		WarmStart:      true,
		MaxTemperature: 18000,
	}
}

func (s Settings) Validate() error {
	switch s.Law {
	case FayRiddell:
		return nil
	case BoundaryLayer:
	default:
		return fmt.Errorf("unknown heat flux law %q", s.Law)
	}
	if s.Points < 5 {
		return fmt.Errorf("boundary layer needs at least 5 points, got %d", s.Points)
	}
	if !(s.EtaMax > 0) || s.MaxIterations < 1 || !(s.Tolerance > 0) {
		return fmt.Errorf("invalid boundary layer settings: eta_max=%g max_iterations=%d tolerance=%g",
			s.EtaMax, s.MaxIterations, s.Tolerance)
	}
	if !(s.Relaxation > 0 && s.Relaxation <= 1) {
		return fmt.Errorf("relaxation must be in (0, 1], got %g", s.Relaxation)
	}
	if s.Order != 2 && s.Order != 4 {
		return fmt.Errorf("finite difference order must be 2 or 4, got %d", s.Order)
	}
	return nil
}

type Prediction struct {
	Q          float64 // W/m²
	Beta       float64 // 驻点速度梯度 1/s
	Converged  bool
	Iterations int
}

// Model is immutable and may be shared between goroutines.
type Model struct {
	oracle   oracle.Oracle
	settings Settings
}

func New(o oracle.Oracle, s Settings) (*Model, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &Model{oracle: o, settings: s}, nil
}

func (m *Model) Settings() Settings { return m.settings }

// Predict evaluates the heat flux without reusing any previous boundary-layer profile.
func (m *Model) Predict(ctx context.Context, c model.Candidate, ms model.MeasurementSet) (Prediction, error) {
	return m.predict(ctx, c, ms, nil)
}

// Session carries the warm-start profile of one solve. It is not safe for concurrent use.
type Session struct {
	m    *Model
	prev *profile
}

func (m *Model) NewSession() *Session { return &Session{m: m} }

func (s *Session) Predict(ctx context.Context, c model.Candidate, ms model.MeasurementSet) (Prediction, error) {
	if !s.m.settings.WarmStart {
		return s.m.predict(ctx, c, ms, nil)
	}
	if s.prev == nil {
		s.prev = &profile{}
	}
	return s.m.predict(ctx, c, ms, s.prev)
}

// stagnation holds edge and wall states of the stagnation-point boundary layer.
type stagnation struct {
	pe, te, tw float64
	beta       float64
	edge, wall oracle.State
}

func (m *Model) predict(ctx context.Context, c model.Candidate, ms model.MeasurementSet, warm *profile) (Prediction, error) {
	ms = ms.WithDefaults()
	edgeSpec := oracle.ByPT(c.Pt, c.Tt)
	edge, err := m.oracle.Query(ctx, edgeSpec)
	if err != nil {
		return Prediction{}, err
	}
	wall, err := m.oracle.Query(ctx, oracle.ByPT(c.Pt, ms.WallTemperature))
	if err != nil {
		return Prediction{}, err
	}
	beta, err := VelocityGradient(ms, c, edge)
	if err != nil {
		return Prediction{}, err
	}
	if !(edge.Enthalpy-wall.Enthalpy > 0) {
		return Prediction{}, oracle.Errorf(oracle.NumericalFailure, "heat flux", edgeSpec,
			"edge enthalpy %g J/kg does not exceed wall enthalpy %g J/kg", edge.Enthalpy, wall.Enthalpy)
	}
	st := stagnation{pe: c.Pt, te: c.Tt, tw: ms.WallTemperature, beta: beta, edge: edge, wall: wall}

	var p Prediction
	switch m.settings.Law {
	case BoundaryLayer:
		p, err = m.boundaryLayer(ctx, st, warm)
	default:
		p, err = fayRiddell(st)
	}
	if err != nil {
		return Prediction{}, err
	}
	if math.IsNaN(p.Q) || math.IsInf(p.Q, 0) {
		return Prediction{}, oracle.Errorf(oracle.NumericalFailure, "heat flux", edgeSpec, "non-finite heat flux")
	}
	p.Beta = beta
	return p, nil
}
