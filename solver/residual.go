package solver

import (
	"context"
	"math"

	"plasflow/heatflux"
	"plasflow/model"
	"plasflow/oracle"
)

// zobyConstant relates stagnation heat flux to the enthalpy difference across the boundary
// layer: q = K sqrt(p_t / R) (h_t - h_w).
const zobyConstant = 3.88e-4

// ZobyEnthalpy is the enthalpy difference that drives the measured heat flux according to
// the Zoby correlation.
func ZobyEnthalpy(ms model.MeasurementSet) float64 {
	return ms.HeatFlux / (zobyConstant * math.Sqrt(ms.StagnationPressure/ms.Probe.NoseRadius))
}

// Residuals are the dimensionless mismatches of one candidate, in the order heat flux,
// energy, entropy and, with the Barker correction, Pitot pressure.
type Residuals []float64

func (r Residuals) Norm() float64 {
	s := 0.0
	for _, v := range r {
		s += v * v
	}
	return math.Sqrt(s)
}

// evaluation keeps the intermediate states of a residual evaluation.
type evaluation struct {
	cand       model.Candidate
	free       oracle.State
	total      oracle.State
	prediction heatflux.Prediction
	supersonic bool
	pitot      float64
	reynolds   float64
}

// Assembler maps candidates to residuals for one measurement set.
type Assembler struct {
	oracle   oracle.Oracle
	hf       *heatflux.Session
	ms       model.MeasurementSet
	relation string
	barker   bool

	wall   oracle.State
	hScale float64
	sScale float64
}

// NewAssembler queries the wall state once to fix the residual scales.
func NewAssembler(ctx context.Context, o oracle.Oracle, hf *heatflux.Model, ms model.MeasurementSet, relation string) (*Assembler, error) {
	ms = ms.WithDefaults()
	wall, err := o.Query(ctx, oracle.ByPT(ms.StagnationPressure, ms.WallTemperature))
	if err != nil {
		return nil, err
	}
	a := &Assembler{
		oracle:   o,
		hf:       hf.NewSession(),
		ms:       ms,
		relation: relation,
		barker:   ms.Probe.Barker != model.BarkerNone,
		wall:     wall,
		hScale:   ZobyEnthalpy(ms),
		sScale:   ms.StagnationPressure / (wall.Density * ms.WallTemperature),
	}
	return a, nil
}

// Unknowns is 4 with the Barker correction (total pressure is solved for), 3 otherwise.
func (a *Assembler) Unknowns() int {
	if a.barker {
		return 4
	}
	return 3
}

func (a *Assembler) candidate(x []float64) model.Candidate {
	c := model.Candidate{T: x[0], U: x[1], Tt: x[2], Pt: a.ms.StagnationPressure}
	if a.barker {
		c.Pt = x[3]
	}
	return c
}

func (a *Assembler) vector(c model.Candidate) []float64 {
	x := []float64{c.T, c.U, c.Tt}
	if a.barker {
		x = append(x, c.Pt)
	}
	return x
}

func (a *Assembler) Residuals(ctx context.Context, x []float64) (Residuals, error) {
	r, _, err := a.evaluate(ctx, x)
	return r, err
}

func (a *Assembler) evaluate(ctx context.Context, x []float64) (Residuals, *evaluation, error) {
	c := a.candidate(x)
	ms := a.ms
	free, err := a.oracle.Query(ctx, oracle.ByPT(ms.StaticPressure, c.T))
	if err != nil {
		return nil, nil, err
	}
	total, err := a.oracle.Query(ctx, oracle.ByPT(c.Pt, c.Tt))
	if err != nil {
		return nil, nil, err
	}
	pred, err := a.hf.Predict(ctx, c, ms)
	if err != nil {
		return nil, nil, err
	}
	ev := &evaluation{cand: c, free: free, total: total, prediction: pred}

	pitotEntropy := free.Entropy
	if a.relation == Rayleigh && c.U > free.SoundSpeed {
		post, ok, err := a.postShock(ctx, free, c.U)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			pitotEntropy = post.Entropy
			ev.supersonic = true
		}
	}

	r := make(Residuals, 0, 4)
	r = append(r,
		(pred.Q-ms.HeatFlux)/ms.HeatFlux,
		(total.Enthalpy-free.Enthalpy-c.U*c.U/2)/a.hScale,
		(total.Entropy-pitotEntropy)/a.sScale,
	)
	if a.barker {
		re, pb := a.barkerPressure(free, c)
		ev.reynolds, ev.pitot = re, pb
		r = append(r, (pb-ms.StagnationPressure)/ms.StagnationPressure)
	}
	for _, v := range r {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, nil, oracle.Errorf(oracle.NumericalFailure, "residual", oracle.ByPT(c.Pt, c.Tt),
				"non-finite residual for %s", c)
		}
	}
	return r, ev, nil
}

// pitotReynolds uses the Pitot probe diameter.
func (a *Assembler) pitotReynolds(free oracle.State, u float64) float64 {
	radius := a.ms.Probe.PitotRadius
	if !(radius > 0) {
		radius = a.ms.Probe.NoseRadius
	}
	return free.Density * u * 2 * radius / free.Viscosity
}

// barkerPressure is the pressure read by a Pitot tube at low Reynolds number. Homann
// corrects the total pressure, Carleton the dynamic pressure above the static one.
func (a *Assembler) barkerPressure(free oracle.State, c model.Candidate) (float64, float64) {
	re := a.pitotReynolds(free, c.U)
	q := 0.5 * free.Density * c.U * c.U
	if a.ms.Probe.Barker == model.BarkerCarleton {
		return re, a.ms.StaticPressure + q*(1+8/(re+0.5576*math.Sqrt(re)))
	}
	return re, c.Pt + q*6/(re+0.455*math.Sqrt(re))
}
