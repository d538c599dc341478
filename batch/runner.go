// Package batch solves a list of measurement sets concurrently and reports the outcome of
// every case.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"plasflow/config"
	"plasflow/envelope"
	"plasflow/model"
	"plasflow/solver"
)

type Options struct {
	Workers  int
	Settings solver.Settings
	// 可选
	Envelope *envelope.Envelope
	Metrics  *Metrics
	Logger   log.FieldLogger
}

type Runner struct {
	factory config.Factory
	opt     Options
	logger  log.FieldLogger
}

func New(factory config.Factory, opt Options) (*Runner, error) {
	if factory == nil {
		return nil, fmt.Errorf("nil oracle factory")
	}
	if opt.Workers < 1 {
		opt.Workers = 1
	}
	if err := opt.Settings.Validate(); err != nil {
		return nil, err
	}
	logger := opt.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Runner{factory: factory, opt: opt, logger: logger}, nil
}

// Report holds one result per case, in input order.
type Report struct {
	RunID   string          `json:"run_id"`
	Results []solver.Result `json:"results"`
	Elapsed time.Duration   `json:"elapsed"`
}

func (r *Report) Failed() []solver.Result {
	var out []solver.Result
	for _, res := range r.Results {
		if res.Status != solver.Converged {
			out = append(out, res)
		}
	}
	return out
}

// ExitCode is 0 when every case converged, 1 otherwise.
func (r *Report) ExitCode() int {
	if len(r.Failed()) > 0 {
		return 1
	}
	return 0
}

func (r *Report) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// worker owns its oracles and solvers; nothing is shared between workers.
type worker struct {
	id      int
	r       *Runner
	log     log.FieldLogger
	solvers map[string]*solver.Solver
}

func (w *worker) solver(mixture string) (*solver.Solver, error) {
	if s, ok := w.solvers[mixture]; ok {
		return s, nil
	}
	o, err := w.r.factory(mixture)
	if err != nil {
		return nil, err
	}
	s, err := solver.New(o, w.r.opt.Settings, solver.WithLogger(w.log))
	if err != nil {
		return nil, err
	}
	w.solvers[mixture] = s
	return s, nil
}

func (w *worker) solve(ctx context.Context, ms model.MeasurementSet) solver.Result {
	s, err := w.solver(ms.Mixture)
	if err != nil {
		return solver.Result{
			Case:    ms.Name,
			Status:  solver.InvalidInput,
			Failure: &solver.Failure{Kind: solver.InvalidInput, Message: "no property oracle for mixture " + ms.Mixture, Err: err},
		}
	}
	res := s.Solve(ctx, ms)
	if env := w.r.opt.Envelope; env != nil {
		if warn := env.Check(ms); warn != "" {
			w.log.WithField("case", ms.Name).Warn(warn)
			res.Diagnostics.Warnings = append(res.Diagnostics.Warnings, warn)
		}
	}
	return res
}

// Run solves every case. Individual failures are reported in the results; the error is
// non-nil only when the run itself could not complete.
func (r *Runner) Run(ctx context.Context, cases []model.MeasurementSet) (*Report, error) {
	start := time.Now()
	rep := &Report{RunID: uuid.NewString(), Results: make([]solver.Result, len(cases))}
	logger := r.logger.WithField("run", rep.RunID)
	logger.WithFields(log.Fields{"cases": len(cases), "workers": r.opt.Workers}).Info("batch start")

	jobs := make(chan int)
	started := make([]bool, len(cases))
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for i := range cases {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for id := 0; id < r.opt.Workers; id++ {
		w := &worker{id: id, r: r, log: logger.WithField("worker", id), solvers: make(map[string]*solver.Solver)}
		g.Go(func() error {
			for i := range jobs {
				started[i] = true
				res := w.solve(gctx, cases[i])
				r.opt.Metrics.Observe(res)
				rep.Results[i] = res
			}
			return nil
		})
	}
	err := g.Wait()
	rep.Elapsed = time.Since(start)

	// 取消后未分配的算例
	for i := range rep.Results {
		if !started[i] {
			rep.Results[i] = solver.Result{
				Case:    cases[i].Name,
				Status:  solver.Cancelled,
				Failure: &solver.Failure{Kind: solver.Cancelled, Message: "batch cancelled before the case started", Err: ctx.Err()},
			}
		}
	}
	failed := rep.Failed()
	for _, res := range failed {
		logger.WithFields(log.Fields{"case": res.Case, "status": res.Status}).Warn(res.Err())
	}
	logger.WithFields(log.Fields{
		"converged": len(cases) - len(failed),
		"failed":    len(failed),
		"elapsed":   rep.Elapsed,
	}).Info("batch done")
	if err != nil && ctx.Err() == nil {
		return rep, err
	}
	return rep, nil
}
