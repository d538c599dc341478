package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/ini.v1"

	"plasflow/oracle"
	"plasflow/solver"
)

func TestDefaultMatchesSolverDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, solver.DefaultSettings(), cfg.Solver)
	assert.Equal(t, EngineIDG, cfg.Oracle.Engine)
	assert.Equal(t, 4, cfg.Batch.Workers)
	assert.Equal(t, ":9000", cfg.Server.Addr)
}

func TestLoadShippedConfig(t *testing.T) {
	cfg, err := Load("../conf/config.ini")
	require.NoError(t, err)
	assert.Equal(t, solver.DefaultSettings(), cfg.Solver)
	assert.Equal(t, "nitrogen2", cfg.Oracle.Mixture)
}

func TestParseOverrides(t *testing.T) {
	file, err := ini.Load([]byte(`
[solver]
abs_tol = 1e-6
max_iterations = 20
timeout = 2s
pitot_relation = rayleigh

[heat_flux]
law = boundary_layer
points = 101

[oracle]
mixture = o2
cache = false

[log]
level = debug
format = json
`))
	require.NoError(t, err)
	cfg := Parse(file)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1e-6, cfg.Solver.AbsTol)
	assert.Equal(t, 20, cfg.Solver.MaxIterations)
	assert.Equal(t, 2*time.Second, cfg.Solver.Timeout)
	assert.Equal(t, solver.Rayleigh, cfg.Solver.PitotRelation)
	assert.Equal(t, "boundary_layer", cfg.Solver.HeatFlux.Law)
	assert.Equal(t, 101, cfg.Solver.HeatFlux.Points)
	assert.Equal(t, 6.0, cfg.Solver.HeatFlux.EtaMax)
	assert.False(t, cfg.Oracle.Cache)

	l := log.New()
	require.NoError(t, cfg.Log.Apply(l))
	assert.Equal(t, log.DebugLevel, l.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, l.Formatter)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"solver":      func(c *Config) { c.Solver.MaxIterations = 0 },
		"engine":      func(c *Config) { c.Oracle.Engine = "refprop" },
		"mixture":     func(c *Config) { c.Oracle.Mixture = "argon" },
		"table path":  func(c *Config) { c.Oracle.Engine = EngineTable },
		"workers":     func(c *Config) { c.Batch.Workers = 0 },
		"addr":        func(c *Config) { c.Server.Addr = "" },
		"log level":   func(c *Config) { c.Log.Level = "loud" },
		"log format":  func(c *Config) { c.Log.Format = "xml" },
		"heat flux":   func(c *Config) { c.Solver.HeatFlux.Law = "zoby" },
		"cache limit": func(c *Config) { c.Oracle.CacheLimit = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.ini"))
	assert.Error(t, err)
}

func TestFactoryIDG(t *testing.T) {
	cfg := Default()
	factory, err := cfg.Oracle.Factory()
	require.NoError(t, err)

	a, err := factory("")
	require.NoError(t, err)
	b, err := factory("nitrogen2")
	require.NoError(t, err)
	assert.IsType(t, &oracle.Cached{}, a)
	assert.NotSame(t, a, b)

	s, err := a.Query(context.Background(), oracle.ByPT(1000, 3000))
	require.NoError(t, err)
	assert.Contains(t, s.Composition, "N2")

	_, err = factory("argon")
	assert.Error(t, err)
}

func TestFactoryTable(t *testing.T) {
	e, err := oracle.NewEngine("oxygen2")
	require.NoError(t, err)
	tab, err := oracle.BuildTable(context.Background(), e, "oxygen2", e.Gas().Species(),
		[]float64{100, 1000, 10000}, []float64{300, 1000, 2000, 3000, 4000})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "o2.json")
	require.NoError(t, tab.Save(path))
	_, err = os.Stat(path)
	require.NoError(t, err)

	cfg := Default()
	cfg.Oracle.Engine = EngineTable
	cfg.Oracle.Table = path
	cfg.Oracle.Cache = false
	factory, err := cfg.Oracle.Factory()
	require.NoError(t, err)

	o, err := factory("o2")
	require.NoError(t, err)
	_, err = o.Query(context.Background(), oracle.ByPT(500, 2500))
	assert.NoError(t, err)

	_, err = factory("nitrogen2")
	assert.Error(t, err)
}
