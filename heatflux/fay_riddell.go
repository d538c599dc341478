package heatflux

import (
	"math"

	"plasflow/oracle"
)

func fayRiddell(st stagnation) (Prediction, error) {
	w := st.wall
	if !(w.EquilibriumConductivity > 0) {
		return Prediction{}, oracle.Errorf(oracle.NumericalFailure, "fay-riddell", oracle.ByPT(st.pe, st.tw),
			"wall conductivity %g", w.EquilibriumConductivity)
	}
	pr := w.Viscosity * w.EquilibriumCp / w.EquilibriumConductivity
	if !(pr > 0) {
		return Prediction{}, oracle.Errorf(oracle.NumericalFailure, "fay-riddell", oracle.ByPT(st.pe, st.tw),
			"wall Prandtl number %g", pr)
	}
	e := st.edge
	q := 0.76 * math.Pow(pr, -0.6) *
		math.Pow(e.Density*e.Viscosity, 0.4) *
		math.Pow(w.Density*w.Viscosity, 0.1) *
		math.Sqrt(st.beta) * (e.Enthalpy - w.Enthalpy)
	return Prediction{Q: q, Converged: true, Iterations: 1}, nil
}
