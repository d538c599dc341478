package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plasflow/config"
	"plasflow/envelope"
	"plasflow/model"
	"plasflow/solver"
)

const casesYAML = `
units:
  pressure: kPa
  heat_flux: W/cm^2
  length: mm
defaults:
  mixture: nitrogen2
  wall_temperature: 350
  probe:
    nose_radius: 25
cases:
  - name: A
    static_pressure: 0.5
    stagnation_pressure: 5
    heat_flux: 80
  - static_pressure: 0.5
    stagnation_pressure: 5
    heat_flux: 80
    mixture: oxygen2
    probe:
      nose_radius: 10
      stagnation: flat
      jet_radius: 40
`

func TestReadCases(t *testing.T) {
	cases, err := ReadCases(strings.NewReader(casesYAML))
	require.NoError(t, err)
	require.Len(t, cases, 2)

	a := cases[0]
	assert.Equal(t, "A", a.Name)
	assert.Equal(t, "nitrogen2", a.Mixture)
	assert.InDelta(t, 500.0, a.StaticPressure, 1e-9)
	assert.InDelta(t, 5000.0, a.StagnationPressure, 1e-9)
	assert.InDelta(t, 8e5, a.HeatFlux, 1e-6)
	assert.Equal(t, 350.0, a.WallTemperature)
	assert.InDelta(t, 0.025, a.Probe.NoseRadius, 1e-12)

	b := cases[1]
	assert.Equal(t, "case-2", b.Name)
	assert.Equal(t, "oxygen2", b.Mixture)
	assert.InDelta(t, 0.01, b.Probe.NoseRadius, 1e-12)
	assert.InDelta(t, 0.04, b.Probe.JetRadius, 1e-12)
	assert.Equal(t, model.FlatFace, b.Probe.Stagnation)
}

func TestReadCasesKeepsExplicitZero(t *testing.T) {
	doc := `
defaults:
  mixture: nitrogen2
  static_pressure: 500
  stagnation_pressure: 5000
  heat_flux: 8e5
  wall_temperature: 350
  probe:
    nose_radius: 0.025
    jet_radius: 0.05
cases:
  - name: zero
    static_pressure: 0
  - name: inherit
    probe:
      stagnation: flat
`
	cases, err := ReadCases(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, cases, 2)

	zero := cases[0]
	assert.Equal(t, 0.0, zero.StaticPressure)
	assert.Equal(t, 5000.0, zero.StagnationPressure)
	assert.ErrorIs(t, zero.Validate(), model.ErrInvalidInput)

	inherit := cases[1]
	assert.Equal(t, 500.0, inherit.StaticPressure)
	assert.Equal(t, model.FlatFace, inherit.Probe.Stagnation)
	assert.Equal(t, 0.025, inherit.Probe.NoseRadius)
	assert.Equal(t, 0.05, inherit.Probe.JetRadius)
	require.NoError(t, inherit.Validate())
}

func TestReadCasesRejects(t *testing.T) {
	for name, doc := range map[string]string{
		"empty":         "",
		"no cases":      "units:\n  pressure: Pa\n",
		"unknown field": "cases:\n  - name: x\n    temprature: 3\n",
		"bad unit":      "units:\n  pressure: psi\ncases:\n  - name: x\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadCases(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadShippedCases(t *testing.T) {
	cases, err := LoadCases("../conf/cases.yaml")
	require.NoError(t, err)
	assert.NotEmpty(t, cases)
	for _, c := range cases {
		assert.NoError(t, c.Validate(), c.Name)
	}
}

func quiet() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

func newRunner(t *testing.T, opt Options) *Runner {
	factory, err := config.Default().Oracle.Factory()
	require.NoError(t, err)
	opt.Settings = solver.DefaultSettings()
	opt.Logger = quiet()
	r, err := New(factory, opt)
	require.NoError(t, err)
	return r
}

func scenarioA(name string) model.MeasurementSet {
	return model.MeasurementSet{
		Name:               name,
		Mixture:            "nitrogen2",
		StaticPressure:     500,
		StagnationPressure: 5000,
		HeatFlux:           80 * model.WattPerSquareCm,
		WallTemperature:    350,
		Probe:              model.Probe{NoseRadius: 25 * model.Millimetre},
	}
}

func TestRunMixedOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	r := newRunner(t, Options{Workers: 2, Metrics: m})

	bad := scenarioA("equal pressures")
	bad.StagnationPressure = bad.StaticPressure
	argon := scenarioA("argon")
	argon.Mixture = "argon"

	rep, err := r.Run(context.Background(), []model.MeasurementSet{scenarioA("A"), bad, argon, scenarioA("A again")})
	require.NoError(t, err)
	require.Len(t, rep.Results, 4)
	assert.NotEmpty(t, rep.RunID)

	assert.Equal(t, "A", rep.Results[0].Case)
	assert.Equal(t, solver.Converged, rep.Results[0].Status)
	assert.Equal(t, solver.InvalidInput, rep.Results[1].Status)
	assert.Equal(t, solver.InvalidInput, rep.Results[2].Status)
	assert.Equal(t, solver.Converged, rep.Results[3].Status)
	assert.Equal(t, rep.Results[0].Flow, rep.Results[3].Flow)

	assert.Len(t, rep.Failed(), 2)
	assert.Equal(t, 1, rep.ExitCode())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Solves.WithLabelValues("Converged")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Solves.WithLabelValues("InvalidInput")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.Solves))
}

func TestRunAllConverged(t *testing.T) {
	r := newRunner(t, Options{Workers: 3})
	rep, err := r.Run(context.Background(), []model.MeasurementSet{scenarioA("A")})
	require.NoError(t, err)
	assert.Equal(t, 0, rep.ExitCode())

	var buf bytes.Buffer
	require.NoError(t, rep.Write(&buf))
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, rep.RunID, decoded["run_id"])
	assert.Contains(t, buf.String(), `"status": "Converged"`)
}

func TestRunEnvelopeWarning(t *testing.T) {
	env := envelope.New(envelope.Polygon{Gas: "N2", Vertices: []envelope.Point{{P: 0, Q: 0}, {P: 1000, Q: 0}, {P: 1000, Q: 1e5}, {P: 0, Q: 1e5}}})
	r := newRunner(t, Options{Workers: 1, Envelope: env})
	rep, err := r.Run(context.Background(), []model.MeasurementSet{scenarioA("A")})
	require.NoError(t, err)
	res := rep.Results[0]
	assert.Equal(t, solver.Converged, res.Status)
	found := false
	for _, w := range res.Diagnostics.Warnings {
		found = found || strings.Contains(w, "facility envelope")
	}
	assert.True(t, found, "%v", res.Diagnostics.Warnings)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newRunner(t, Options{Workers: 2})
	cases := []model.MeasurementSet{scenarioA("a"), scenarioA("b"), scenarioA("c")}
	rep, err := r.Run(ctx, cases)
	require.NoError(t, err)
	for i, res := range rep.Results {
		assert.Equal(t, solver.Cancelled, res.Status)
		assert.Equal(t, cases[i].Name, res.Case)
	}
	assert.Equal(t, 1, rep.ExitCode())
}

func TestNewRejectsNilFactory(t *testing.T) {
	_, err := New(nil, Options{Settings: solver.DefaultSettings()})
	assert.Error(t, err)
}
