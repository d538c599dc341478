// Package config reads the ini configuration shared by the CLI, the batch runner and the
// websocket server.
package config

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"

	"plasflow/heatflux"
	"plasflow/model"
	"plasflow/oracle"
	"plasflow/solver"
)

const (
	EngineIDG   = "idg"
	EngineTable = "table"
)

type Config struct {
	Solver solver.Settings
	Oracle Oracle
	Batch  Batch
	Server Server
	Log    Log
}

type Oracle struct {
	Engine string
	// 默认气体，算例未指定时使用
	Mixture    string
	Table      string
	Cache      bool
	CacheLimit int
}

type Batch struct {
	Workers  int
	Envelope string
}

type Server struct {
	Addr        string
	ReadBuffer  int
	WriteBuffer int
}

type Log struct {
	Level  string
	Format string
}

// Load reads path. A missing file is an error; missing keys take their defaults.
func Load(path string) (*Config, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("配置文件读取错误，请检查文件路径: %w", err)
	}
	cfg := Parse(file)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Default is the configuration of an empty file.
func Default() *Config { return Parse(ini.Empty()) }

func Parse(file *ini.File) *Config {
	def := solver.DefaultSettings()
	sec := file.Section("solver")
	s := solver.Settings{
		AbsTol:           sec.Key("abs_tol").MustFloat64(def.AbsTol),
		RelTol:           sec.Key("rel_tol").MustFloat64(def.RelTol),
		MaxIterations:    sec.Key("max_iterations").MustInt(def.MaxIterations),
		MaxBackoff:       sec.Key("max_backoff").MustInt(def.MaxBackoff),
		JacobianStep:     sec.Key("jacobian_step").MustFloat64(def.JacobianStep),
		JacobianStepMax:  sec.Key("jacobian_step_max").MustFloat64(def.JacobianStepMax),
		MaxRelativeStep:  sec.Key("max_relative_step").MustFloat64(def.MaxRelativeStep),
		StagnationWindow: sec.Key("stagnation_window").MustInt(def.StagnationWindow),
		StagnationTol:    sec.Key("stagnation_tol").MustFloat64(def.StagnationTol),
		MinTemperature:   sec.Key("min_temperature").MustFloat64(def.MinTemperature),
		MaxTemperature:   sec.Key("max_temperature").MustFloat64(def.MaxTemperature),
		Timeout:          sec.Key("timeout").MustDuration(def.Timeout),
		InitialGuess:     sec.Key("initial_guess").MustString(def.InitialGuess),
		Initial: model.Candidate{
			T:  sec.Key("initial_temperature").MustFloat64(def.Initial.T),
			U:  sec.Key("initial_velocity").MustFloat64(def.Initial.U),
			Tt: sec.Key("initial_total_temperature").MustFloat64(def.Initial.Tt),
		},
		PitotRelation: sec.Key("pitot_relation").MustString(def.PitotRelation),
	}

	hd := def.HeatFlux
	sec = file.Section("heat_flux")
	s.HeatFlux = heatflux.Settings{
		Law:            sec.Key("law").MustString(hd.Law),
		Points:         sec.Key("points").MustInt(hd.Points),
		EtaMax:         sec.Key("eta_max").MustFloat64(hd.EtaMax),
		MaxIterations:  sec.Key("max_iterations").MustInt(hd.MaxIterations),
		Tolerance:      sec.Key("tolerance").MustFloat64(hd.Tolerance),
		Relaxation:     sec.Key("relaxation").MustFloat64(hd.Relaxation),
		Order:          sec.Key("order").MustInt(hd.Order),
		WarmStart:      sec.Key("warm_start").MustBool(hd.WarmStart),
		MaxTemperature: sec.Key("max_temperature").MustFloat64(hd.MaxTemperature),
	}

	return &Config{
		Solver: s,
		Oracle: Oracle{
			Engine:     file.Section("oracle").Key("engine").MustString(EngineIDG),
			Mixture:    file.Section("oracle").Key("mixture").MustString("nitrogen2"),
			Table:      file.Section("oracle").Key("table").String(),
			Cache:      file.Section("oracle").Key("cache").MustBool(true),
			CacheLimit: file.Section("oracle").Key("cache_limit").MustInt(1 << 16),
		},
		Batch: Batch{
			Workers:  file.Section("batch").Key("workers").MustInt(4),
			Envelope: file.Section("batch").Key("envelope").String(),
		},
		Server: Server{
			Addr:        file.Section("server").Key("addr").MustString(":9000"),
			ReadBuffer:  file.Section("server").Key("read_buffer").MustInt(1024),
			WriteBuffer: file.Section("server").Key("write_buffer").MustInt(1024),
		},
		Log: Log{
			Level:  file.Section("log").Key("level").MustString("info"),
			Format: file.Section("log").Key("format").MustString("text"),
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Solver.Validate(); err != nil {
		return fmt.Errorf("[solver]: %w", err)
	}
	switch c.Oracle.Engine {
	case EngineIDG:
		if _, err := oracle.LookupGas(c.Oracle.Mixture); err != nil {
			return fmt.Errorf("[oracle]: %w", err)
		}
	case EngineTable:
		if c.Oracle.Table == "" {
			return fmt.Errorf("[oracle]: engine %q needs a table path", EngineTable)
		}
	default:
		return fmt.Errorf("[oracle]: unknown engine %q", c.Oracle.Engine)
	}
	if c.Oracle.Cache && c.Oracle.CacheLimit < 0 {
		return fmt.Errorf("[oracle]: cache_limit must not be negative, got %d", c.Oracle.CacheLimit)
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("[batch]: workers must be at least 1, got %d", c.Batch.Workers)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("[server]: empty addr")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("[log]: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("[log]: unknown format %q", c.Log.Format)
	}
	return nil
}

// Apply configures l from the [log] section.
func (c Log) Apply(l *log.Logger) error {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		return err
	}
	l.SetLevel(level)
	if strings.EqualFold(c.Format, "json") {
		l.SetFormatter(&log.JSONFormatter{})
	} else {
		l.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	l.SetOutput(os.Stderr)
	return nil
}

// Factory creates a property oracle for a mixture. Every call returns an oracle of its own.
type Factory func(mixture string) (oracle.Oracle, error)

// Factory builds the oracle factory described by the [oracle] section. The table, when
// configured, is loaded once and shared read-only.
func (c Oracle) Factory() (Factory, error) {
	var base func(mixture string) (oracle.Oracle, error)
	switch c.Engine {
	case EngineTable:
		tab, err := oracle.LoadTable(c.Table)
		if err != nil {
			return nil, err
		}
		base = func(mixture string) (oracle.Oracle, error) {
			if mixture != "" && !sameGas(mixture, tab.Mixture) {
				return nil, fmt.Errorf("table %s holds %s, case asks for %s", c.Table, tab.Mixture, mixture)
			}
			return tab, nil
		}
	default:
		base = func(mixture string) (oracle.Oracle, error) {
			if mixture == "" {
				mixture = c.Mixture
			}
			e, err := oracle.NewEngine(mixture)
			if err != nil {
				return nil, err
			}
			return e, nil
		}
	}
	return func(mixture string) (oracle.Oracle, error) {
		o, err := base(mixture)
		if err != nil {
			return nil, err
		}
		if c.Cache {
			return oracle.NewCached(o, c.CacheLimit), nil
		}
		return o, nil
	}, nil
}

func sameGas(a, b string) bool {
	ga, errA := oracle.LookupGas(a)
	gb, errB := oracle.LookupGas(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(a, b)
	}
	return ga.Name == gb.Name
}
