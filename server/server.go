// Package server exposes the solver over a websocket and serves Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"plasflow/batch"
	"plasflow/config"
	"plasflow/envelope"
	"plasflow/model"
	"plasflow/oracle"
	"plasflow/solver"
)

type Server struct {
	addr     string
	upgrader websocket.Upgrader
	factory  config.Factory
	settings solver.Settings

	logger   log.FieldLogger
	metrics  *batch.Metrics
	gatherer prometheus.Gatherer
	envelope *envelope.Envelope

	mu      sync.Mutex
	solvers map[string]*solver.Solver
}

type Option func(*Server)

func WithLogger(l log.FieldLogger) Option { return func(s *Server) { s.logger = l } }

// WithMetrics records every solve in m and serves g on /metrics.
func WithMetrics(m *batch.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) { s.metrics, s.gatherer = m, g }
}

func WithEnvelope(e *envelope.Envelope) Option { return func(s *Server) { s.envelope = e } }

func NewServer(addr string, upgrader websocket.Upgrader, factory config.Factory, settings solver.Settings, opts ...Option) *Server {
	s := &Server{
		addr:     addr,
		upgrader: upgrader,
		factory:  factory,
		settings: settings,
		logger:   log.StandardLogger(),
		gatherer: prometheus.DefaultGatherer,
		solvers:  make(map[string]*solver.Solver),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// solver returns the solver of a mixture. Solvers are shared by all sessions, so their
// oracle is serialised.
func (s *Server) solver(mixture string) (*solver.Solver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sol, ok := s.solvers[mixture]; ok {
		return sol, nil
	}
	o, err := s.factory(mixture)
	if err != nil {
		return nil, err
	}
	sol, err := solver.New(oracle.NewLocked(o), s.settings, solver.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	s.solvers[mixture] = sol
	return sol, nil
}

func (s *Server) solve(ctx context.Context, ms model.MeasurementSet) solver.Result {
	sol, err := s.solver(ms.Mixture)
	if err != nil {
		return solver.Result{
			Case:    ms.Name,
			Status:  solver.InvalidInput,
			Failure: &solver.Failure{Kind: solver.InvalidInput, Message: "no property oracle for mixture " + ms.Mixture, Err: err},
		}
	}
	res := sol.Solve(ctx, ms)
	if s.envelope != nil {
		if warn := s.envelope.Check(ms); warn != "" {
			res.Diagnostics.Warnings = append(res.Diagnostics.Warnings, warn)
		}
	}
	s.metrics.Observe(res)
	return res
}

// serveWs handles websocket requests from the peer.
func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade")
		return
	}
	defer conn.Close()

	hub := NewHub(uuid.NewString(), s.solve, s.settings, s.logger)
	hub.conn = conn
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	hub.log.WithField("remote", r.RemoteAddr).Info("session open")

	go hub.handleRequest(ctx)
	go hub.handleResponse(ctx)
	for {
		var msg model.Msg
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				hub.log.WithError(err).Warn("read request")
			}
			hub.log.Info("session closed")
			return
		}
		select {
		case hub.msg <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWs)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return mux
}

// Serve listens until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.WithField("addr", s.addr).Info("listening")

	select {
	case err := <-errc:
		return fmt.Errorf("ListenAndServe: %w", err)
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
