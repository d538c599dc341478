package solver

import (
	"context"
	"math"

	"plasflow/model"
	"plasflow/oracle"
)

// initialGuess builds the starting candidate. The correlation strategy estimates the total
// enthalpy with the Zoby correlation, the velocity from the dynamic pressure at total
// conditions and the static temperature from the energy balance.
func (s *Solver) initialGuess(ctx context.Context, a *Assembler) (model.Candidate, error) {
	ms := a.ms
	if s.settings.InitialGuess == GuessFixed {
		c := s.settings.Initial
		if !(c.Pt > 0) {
			c.Pt = ms.StagnationPressure
		}
		return s.pushInside(c, ms), nil
	}

	ht := a.wall.Enthalpy + a.hScale
	total, err := a.oracle.Query(ctx, oracle.ByPH(ms.StagnationPressure, ht))
	if err != nil {
		return model.Candidate{}, err
	}
	u := math.Sqrt(2 * (ms.StagnationPressure - ms.StaticPressure) / total.Density)
	if u*u/2 > ht/2 {
		u = math.Sqrt(ht)
	}
	free, err := a.oracle.Query(ctx, oracle.ByPH(ms.StaticPressure, ht-u*u/2))
	if err != nil {
		return model.Candidate{}, err
	}
	c := model.Candidate{T: free.Temperature, U: u, Tt: total.Temperature, Pt: ms.StagnationPressure}
	return s.pushInside(c, ms), nil
}

// pushInside moves a candidate into the admissible region.
func (s *Solver) pushInside(c model.Candidate, ms model.MeasurementSet) model.Candidate {
	lo, hi := s.settings.MinTemperature, s.settings.MaxTemperature
	c.T = math.Min(math.Max(c.T, lo), hi)
	c.Tt = math.Min(math.Max(c.Tt, math.Max(lo, 1.05*ms.WallTemperature)), hi)
	if !(c.U > 0) {
		c.U = 1
	}
	if !(c.Pt > ms.StaticPressure) {
		c.Pt = ms.StagnationPressure
	}
	return c
}

// admissible reports whether the under-relaxed step may be taken.
func (s *Solver) admissible(c model.Candidate, ms model.MeasurementSet) bool {
	lo, hi := s.settings.MinTemperature, s.settings.MaxTemperature
	return c.T >= lo && c.T <= hi &&
		c.Tt >= lo && c.Tt <= hi && c.Tt > ms.WallTemperature &&
		c.U > 0 &&
		c.Pt > ms.StaticPressure
}
