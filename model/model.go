package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput is wrapped by every measurement validation failure.
var ErrInvalidInput = errors.New("invalid input")

// websocket 消息
type Msg struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// 探针几何参数
type Probe struct {
	NoseRadius  float64 `json:"nose_radius" yaml:"nose_radius"`   // 热流探针半径 R_m [m]
	PitotRadius float64 `json:"pitot_radius" yaml:"pitot_radius"` // 皮托管半径 R_p [m]
	JetRadius   float64 `json:"jet_radius" yaml:"jet_radius"`     // 射流半径 R_j [m]
	Stagnation  string  `json:"stagnation" yaml:"stagnation"`     // hemisphere | flat
	Barker      string  `json:"barker" yaml:"barker"`             // none | homann | carleton
}

// MeasurementSet is one operating point measured in front of the probe. SI units.
type MeasurementSet struct {
	Name               string  `json:"name" yaml:"name"`
	Mixture            string  `json:"mixture" yaml:"mixture"`
	StaticPressure     float64 `json:"static_pressure" yaml:"static_pressure"`
	StagnationPressure float64 `json:"stagnation_pressure" yaml:"stagnation_pressure"`
	DynamicPressure    float64 `json:"dynamic_pressure,omitempty" yaml:"dynamic_pressure,omitempty"`
	HeatFlux           float64 `json:"heat_flux" yaml:"heat_flux"`
	WallTemperature    float64 `json:"wall_temperature" yaml:"wall_temperature"`
	Probe              Probe   `json:"probe" yaml:"probe"`
}

// Candidate is the vector of unknowns of one Newton iterate.
type Candidate struct {
	T  float64 `json:"T"`  // 自由流温度
	U  float64 `json:"u"`  // 自由流速度
	Tt float64 `json:"Tt"` // 总温
	Pt float64 `json:"Pt"` // 总压
}

func (c Candidate) String() string {
	return fmt.Sprintf("T=%.6g K u=%.6g m/s Tt=%.6g K Pt=%.6g Pa", c.T, c.U, c.Tt, c.Pt)
}

// WithDefaults fills empty probe settings.
func (m MeasurementSet) WithDefaults() MeasurementSet {
	if m.Probe.Stagnation == "" {
		m.Probe.Stagnation = Hemisphere
	}
	if m.Probe.Barker == "" {
		m.Probe.Barker = BarkerNone
	}
	return m
}

// Validate rejects measurement sets the solver cannot accept. It never queries properties.
func (m MeasurementSet) Validate() error {
	m = m.WithDefaults()
	check := func(name string, v float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("%w: %s must be a positive finite number, got %g", ErrInvalidInput, name, v)
		}
		return nil
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"static_pressure", m.StaticPressure},
		{"stagnation_pressure", m.StagnationPressure},
		{"heat_flux", m.HeatFlux},
		{"wall_temperature", m.WallTemperature},
		{"nose_radius", m.Probe.NoseRadius},
	} {
		if err := check(f.name, f.v); err != nil {
			return err
		}
	}
	if m.StagnationPressure <= m.StaticPressure {
		return fmt.Errorf("%w: stagnation pressure %g Pa must exceed static pressure %g Pa",
			ErrInvalidInput, m.StagnationPressure, m.StaticPressure)
	}
	if m.DynamicPressure != 0 {
		if err := check("dynamic_pressure", m.DynamicPressure); err != nil {
			return err
		}
		sum := m.StaticPressure + m.DynamicPressure
		if math.Abs(m.StagnationPressure-sum) > PressureTolerance*m.StagnationPressure {
			return fmt.Errorf("%w: static %g Pa + dynamic %g Pa does not match stagnation %g Pa",
				ErrInvalidInput, m.StaticPressure, m.DynamicPressure, m.StagnationPressure)
		}
	}
	switch m.Probe.Stagnation {
	case Hemisphere:
	case FlatFace:
		if err := check("jet_radius", m.Probe.JetRadius); err != nil {
			return fmt.Errorf("flat-face probe: %w", err)
		}
	default:
		return fmt.Errorf("%w: unknown stagnation type %q", ErrInvalidInput, m.Probe.Stagnation)
	}
	switch m.Probe.Barker {
	case BarkerNone:
	case BarkerHomann, BarkerCarleton:
		if err := check("pitot_radius", m.Probe.PitotRadius); err != nil {
			return fmt.Errorf("barker correction: %w", err)
		}
	default:
		return fmt.Errorf("%w: unknown barker correction %q", ErrInvalidInput, m.Probe.Barker)
	}
	return nil
}
