// Package solver reconstructs the free stream in front of a probe from static pressure,
// stagnation pressure and stagnation-point heat flux with a damped finite-difference
// Newton method.
package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"plasflow/deque"
	"plasflow/heatflux"
	"plasflow/model"
	"plasflow/oracle"
)

const (
	maxHalvings = 40
	// 残差下降不足 1% 时放大差分步长
	slowProgress = 0.01
	jacobianGrow = 4
)

// Solver is immutable after New and may be shared between goroutines as long as the
// oracle is safe for concurrent use.
type Solver struct {
	oracle   oracle.Oracle
	heatFlux *heatflux.Model
	settings Settings
	logger   log.FieldLogger
}

type Option func(*Solver)

func WithLogger(l log.FieldLogger) Option {
	return func(s *Solver) { s.logger = l }
}

func New(o oracle.Oracle, settings Settings, opts ...Option) (*Solver, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("solver settings: %w", err)
	}
	hf, err := heatflux.New(o, settings.HeatFlux)
	if err != nil {
		return nil, err
	}
	s := &Solver{oracle: o, heatFlux: hf, settings: settings, logger: log.StandardLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Solver) Settings() Settings { return s.settings }

// run is the state of one solve.
type run struct {
	s     *Solver
	ms    model.MeasurementSet
	asm   *Assembler
	log   log.FieldLogger
	start time.Time
	diag  Diagnostics
}

func (r *run) fail(kind Status, last *model.Candidate, err error, format string, args ...interface{}) Result {
	r.diag.Elapsed = time.Since(r.start)
	f := &Failure{Kind: kind, Message: fmt.Sprintf(format, args...), Iteration: r.diag.Iterations, Last: last, Err: err}
	r.log.WithFields(log.Fields{
		"status":     kind,
		"iterations": r.diag.Iterations,
		"residual":   r.diag.ResidualNorm,
	}).Warn(f.Error())
	return Result{Case: r.ms.Name, Status: kind, Diagnostics: r.diag, Failure: f}
}

func (r *run) cancelled(ctx context.Context, last *model.Candidate) Result {
	msg := "solve cancelled"
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		msg = "time budget exceeded"
	}
	return r.fail(Cancelled, last, ctx.Err(), "%s", msg)
}

func candidatePtr(c model.Candidate) *model.Candidate { return &c }

// Solve runs the solver on one measurement set. It never panics on bad input; every
// outcome is reported through the Result.
func (s *Solver) Solve(ctx context.Context, ms model.MeasurementSet) Result {
	r := &run{
		s:     s,
		ms:    ms.WithDefaults(),
		start: time.Now(),
		log:   s.logger.WithField("case", ms.Name),
	}
	r.diag.JacobianStep = s.settings.JacobianStep

	if err := ms.Validate(); err != nil {
		return r.fail(InvalidInput, nil, err, "measurement rejected")
	}
	// 壁温须在物性范围内并低于温度上限
	if tw := ms.WallTemperature; tw < oracle.MinTemperature || tw >= s.settings.MaxTemperature {
		err := fmt.Errorf("%w: wall temperature %g K outside [%g, %g) K", model.ErrInvalidInput,
			tw, oracle.MinTemperature, s.settings.MaxTemperature)
		return r.fail(InvalidInput, nil, err, "measurement rejected")
	}
	if s.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.settings.Timeout)
		defer cancel()
	}
	if ctx.Err() != nil {
		return r.cancelled(ctx, nil)
	}

	asm, err := NewAssembler(ctx, s.oracle, s.heatFlux, r.ms, s.settings.PitotRelation)
	if err != nil {
		return r.propertyFailure(ctx, nil, err, "wall state")
	}
	r.asm = asm
	guess, err := s.initialGuess(ctx, asm)
	if err != nil {
		return r.propertyFailure(ctx, nil, err, "initial guess")
	}
	r.log.WithFields(log.Fields{"guess": guess.String(), "unknowns": asm.Unknowns()}).Debug("newton start")
	return r.iterate(ctx, asm.vector(guess))
}

func (r *run) propertyFailure(ctx context.Context, last *model.Candidate, err error, where string) Result {
	if ctx.Err() != nil {
		return r.cancelled(ctx, last)
	}
	return r.fail(OracleFailed, last, err, "property evaluation failed during %s", where)
}

func (r *run) iterate(ctx context.Context, x []float64) Result {
	set := r.s.settings
	asm := r.asm
	step := set.JacobianStep
	history := deque.NewArrDeque(set.StagnationWindow + 1)

	var prev []float64
	var norm0, lastNorm float64
	for {
		if ctx.Err() != nil {
			return r.cancelled(ctx, candidatePtr(asm.candidate(x)))
		}
		res, ev, err := asm.evaluate(ctx, x)
		if err != nil {
			if ctx.Err() == nil && prev != nil && r.diag.Backoffs < set.MaxBackoff {
				r.backoff(prev, x, err)
				continue
			}
			var last *model.Candidate
			if prev != nil {
				last = candidatePtr(asm.candidate(prev))
			}
			return r.propertyFailure(ctx, last, err, "residual evaluation")
		}

		r.diag.Iterations++
		norm := res.Norm()
		if r.diag.Iterations == 1 {
			norm0 = norm
			r.diag.InitialResidualNorm = norm
		}
		r.diag.ResidualNorm = norm
		r.diag.Residuals = append([]float64(nil), res...)
		r.diag.History = append(r.diag.History, norm)
		r.diag.HeatFluxConverged = ev.prediction.Converged
		r.diag.HeatFluxIterations = ev.prediction.Iterations
		r.diag.Supersonic = ev.supersonic
		r.log.WithFields(log.Fields{
			"iteration": r.diag.Iterations,
			"residual":  norm,
			"candidate": ev.cand.String(),
		}).Debug("newton iteration")

		if norm <= set.AbsTol+set.RelTol*norm0 {
			return r.converged(ev)
		}
		if r.diag.Iterations >= set.MaxIterations {
			return r.fail(Diverged, candidatePtr(ev.cand), nil,
				"iteration cap of %d reached with residual %.3e", set.MaxIterations, norm)
		}
		history.AddLast(norm)
		if history.IsFull() && norm > (1-set.StagnationTol)*history.First() {
			return r.fail(Diverged, candidatePtr(ev.cand), nil,
				"residual stagnated at %.3e over %d iterations", norm, set.StagnationWindow)
		}
		if r.diag.Iterations > 1 && (lastNorm-norm)/lastNorm < slowProgress && step < set.JacobianStepMax {
			step = math.Min(step*jacobianGrow, set.JacobianStepMax)
			r.diag.JacobianStep = step
			r.log.WithField("jacobian_step", step).Debug("slow progress, enlarging jacobian step")
		}
		lastNorm = norm

		jac, err := asm.jacobian(ctx, x, res, step)
		if err != nil {
			if ctx.Err() == nil && prev != nil && r.diag.Backoffs < set.MaxBackoff {
				r.backoff(prev, x, err)
				continue
			}
			return r.propertyFailure(ctx, candidatePtr(ev.cand), err, "jacobian evaluation")
		}
		neg := make([]float64, len(res))
		for i, v := range res {
			neg[i] = -v
		}
		dx, err := solveLinear(jac, neg)
		if err != nil {
			return r.fail(NonConvergence, candidatePtr(ev.cand), err, "newton step undefined")
		}
		next, ok := r.limitStep(x, dx)
		if !ok {
			return r.fail(Diverged, candidatePtr(ev.cand), nil, "no admissible step after %d halvings", maxHalvings)
		}
		prev = x
		x = next
	}
}

// backoff replaces the failed point x by the midpoint towards the last accepted iterate.
func (r *run) backoff(prev, x []float64, cause error) {
	for i := range x {
		x[i] = prev[i] + 0.5*(x[i]-prev[i])
	}
	r.diag.Backoffs++
	r.log.WithFields(log.Fields{
		"backoff":   r.diag.Backoffs,
		"candidate": r.asm.candidate(x).String(),
	}).Warnf("property evaluation failed, backing off: %v", cause)
}

// limitStep caps every component to a fraction of its current magnitude and halves the
// step until the candidate is admissible.
func (r *run) limitStep(x, dx []float64) ([]float64, bool) {
	scale := 1.0
	for i := range dx {
		lim := r.s.settings.MaxRelativeStep * math.Abs(x[i])
		if math.Abs(dx[i]) > lim && lim > 0 {
			scale = math.Min(scale, lim/math.Abs(dx[i]))
		}
	}
	next := make([]float64, len(x))
	for k := 0; k <= maxHalvings; k++ {
		for i := range x {
			next[i] = x[i] + scale*dx[i]
		}
		if r.s.admissible(r.asm.candidate(next), r.ms) {
			return next, true
		}
		scale /= 2
	}
	return nil, false
}

func (r *run) converged(ev *evaluation) Result {
	r.diag.Elapsed = time.Since(r.start)
	if !ev.prediction.Converged {
		return r.fail(NonConvergence, candidatePtr(ev.cand), nil,
			"boundary layer did not converge on the final iterate after %d iterations", ev.prediction.Iterations)
	}
	flow := r.asm.flowState(ev)
	r.diag.Warnings = append(r.diag.Warnings, regimeWarnings(r.s.settings.PitotRelation, flow)...)
	for _, w := range r.diag.Warnings {
		r.log.Warn(w)
	}
	r.log.WithFields(log.Fields{
		"iterations": r.diag.Iterations,
		"residual":   r.diag.ResidualNorm,
		"T":          flow.Temperature,
		"u":          flow.Velocity,
		"h":          flow.Enthalpy,
		"mach":       flow.Mach,
	}).Info("converged")
	return Result{Case: r.ms.Name, Status: Converged, Flow: flow, Diagnostics: r.diag}
}
