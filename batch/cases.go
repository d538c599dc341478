package batch

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"plasflow/model"
)

// Units declares the units the case file is written in. Empty fields mean SI.
type Units struct {
	Pressure string `yaml:"pressure"`  // Pa | kPa
	HeatFlux string `yaml:"heat_flux"` // W/m^2 | W/cm^2
	Length   string `yaml:"length"`    // m | mm
}

// File is the YAML case list.
type File struct {
	Units    Units                  `yaml:"units"`
	Defaults model.MeasurementSet   `yaml:"defaults"`
	Cases    []model.MeasurementSet `yaml:"cases"`
}

func LoadCases(path string) ([]model.MeasurementSet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cases, err := ReadCases(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cases, nil
}

// ReadCases decodes a case list, fills the fields a case leaves out from defaults and
// converts to SI. A field written in the case wins over the default, zero included.
func ReadCases(r io.Reader) ([]model.MeasurementSet, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("empty case file")
		}
		return nil, err
	}
	// 按节点覆盖默认值
	var raw struct {
		Cases []yaml.Node `yaml:"cases"`
	}
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	if len(f.Cases) == 0 {
		return nil, fmt.Errorf("no cases")
	}
	p, err := scale(f.Units.Pressure, map[string]float64{"pa": 1, "kpa": model.KiloPascal})
	if err != nil {
		return nil, fmt.Errorf("pressure unit: %w", err)
	}
	q, err := scale(f.Units.HeatFlux, map[string]float64{"w/m^2": 1, "w/m2": 1, "w/cm^2": model.WattPerSquareCm, "w/cm2": model.WattPerSquareCm})
	if err != nil {
		return nil, fmt.Errorf("heat flux unit: %w", err)
	}
	l, err := scale(f.Units.Length, map[string]float64{"m": 1, "mm": model.Millimetre})
	if err != nil {
		return nil, fmt.Errorf("length unit: %w", err)
	}

	out := make([]model.MeasurementSet, len(raw.Cases))
	for i := range raw.Cases {
		c := f.Defaults
		c.Name = ""
		if err := raw.Cases[i].Decode(&c); err != nil {
			return nil, fmt.Errorf("case %d: %w", i+1, err)
		}
		if c.Name == "" {
			c.Name = fmt.Sprintf("case-%d", i+1)
		}
		c.StaticPressure *= p
		c.StagnationPressure *= p
		c.DynamicPressure *= p
		c.HeatFlux *= q
		c.Probe.NoseRadius *= l
		c.Probe.PitotRadius *= l
		c.Probe.JetRadius *= l
		out[i] = c
	}
	return out, nil
}

func scale(unit string, known map[string]float64) (float64, error) {
	if unit == "" {
		return 1, nil
	}
	f, ok := known[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		return 0, fmt.Errorf("unsupported unit %q", unit)
	}
	return f, nil
}
