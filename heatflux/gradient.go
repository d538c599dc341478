package heatflux

import (
	"math"

	"plasflow/model"
	"plasflow/oracle"
)

// StagnationFactor is the flat-face velocity gradient coefficient: beta = k u / R_m.
func StagnationFactor(noseRadius, jetRadius float64) float64 {
	l := noseRadius / jetRadius
	if l > 1 {
		return l
	}
	d := l - 1
	return 1 / (2 - l - 1.68*d*d - 1.28*d*d*d)
}

// VelocityGradient returns the stagnation-point velocity gradient. Hemispheres use the
// modified Newtonian estimate driven by the pressure rise, flat faces scale with velocity.
func VelocityGradient(ms model.MeasurementSet, c model.Candidate, edge oracle.State) (float64, error) {
	var beta float64
	switch ms.Probe.Stagnation {
	case model.FlatFace:
		beta = StagnationFactor(ms.Probe.NoseRadius, ms.Probe.JetRadius) * c.U / ms.Probe.NoseRadius
	default:
		dp := c.Pt - ms.StaticPressure
		if dp > 0 && edge.Density > 0 {
			beta = math.Sqrt(2*dp/edge.Density) / ms.Probe.NoseRadius
		}
	}
	if !(beta > 0) || math.IsInf(beta, 0) {
		return 0, oracle.Errorf(oracle.NumericalFailure, "velocity gradient", oracle.ByPT(c.Pt, c.Tt),
			"non-positive stagnation velocity gradient %g 1/s", beta)
	}
	return beta, nil
}
