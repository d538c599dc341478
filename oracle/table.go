package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
)

// Record holds the tabulated properties of one (pressure, temperature) node.
type Record struct {
	Density                 float64   `json:"density"`
	Enthalpy                float64   `json:"enthalpy"`
	Entropy                 float64   `json:"entropy"`
	Viscosity               float64   `json:"viscosity"`
	FrozenConductivity      float64   `json:"frozen_conductivity"`
	EquilibriumConductivity float64   `json:"equilibrium_conductivity"`
	FrozenCp                float64   `json:"frozen_cp"`
	EquilibriumCp           float64   `json:"equilibrium_cp"`
	SoundSpeed              float64   `json:"sound_speed"`
	FrozenSoundSpeed        float64   `json:"frozen_sound_speed"`
	MeanFreePath            float64   `json:"mean_free_path"`
	MoleFractions           []float64 `json:"mole_fractions"`
	MassFractions           []float64 `json:"mass_fractions"`
}

// Table is a property table on a (pressure, temperature) grid. Values are interpolated
// bilinearly in (ln p, T); density and mean free path are interpolated in log space.
type Table struct {
	Mixture      string     `json:"mixture"`
	Species      []string   `json:"species"`
	Pressures    []float64  `json:"pressures"`
	Temperatures []float64  `json:"temperatures"`
	Rows         [][]Record `json:"rows"` // [pressure][temperature]
}

// BuildTable samples src on the given grid.
func BuildTable(ctx context.Context, src Oracle, mixture string, species []string, pressures, temperatures []float64) (*Table, error) {
	if len(pressures) < 2 || len(temperatures) < 2 {
		return nil, fmt.Errorf("table needs at least two pressures and two temperatures")
	}
	p := append([]float64(nil), pressures...)
	t := append([]float64(nil), temperatures...)
	sort.Float64s(p)
	sort.Float64s(t)
	tab := &Table{Mixture: mixture, Species: species, Pressures: p, Temperatures: t, Rows: make([][]Record, len(p))}
	for i, pi := range p {
		tab.Rows[i] = make([]Record, len(t))
		for j, tj := range t {
			st, err := src.Query(ctx, ByPT(pi, tj))
			if err != nil {
				return nil, fmt.Errorf("tabulate node (%g Pa, %g K): %w", pi, tj, err)
			}
			tab.Rows[i][j] = recordOf(st, species)
		}
	}
	return tab, nil
}

func recordOf(s State, species []string) Record {
	r := Record{
		Density: s.Density, Enthalpy: s.Enthalpy, Entropy: s.Entropy, Viscosity: s.Viscosity,
		FrozenConductivity: s.FrozenConductivity, EquilibriumConductivity: s.EquilibriumConductivity,
		FrozenCp: s.FrozenCp, EquilibriumCp: s.EquilibriumCp, SoundSpeed: s.SoundSpeed,
		FrozenSoundSpeed: s.FrozenSoundSpeed, MeanFreePath: s.MeanFreePath,
		MoleFractions: make([]float64, len(species)),
		MassFractions: make([]float64, len(species)),
	}
	for k, name := range species {
		r.MoleFractions[k] = s.Composition[name]
		r.MassFractions[k] = s.MassFractions[name]
	}
	return r
}

func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tab Table
	if err := json.Unmarshal(data, &tab); err != nil {
		return nil, fmt.Errorf("decode property table %s: %w", path, err)
	}
	if err := tab.check(); err != nil {
		return nil, fmt.Errorf("property table %s: %w", path, err)
	}
	return &tab, nil
}

func (tab *Table) Save(path string) error {
	data, err := json.Marshal(tab)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (tab *Table) check() error {
	if len(tab.Pressures) < 2 || len(tab.Temperatures) < 2 {
		return fmt.Errorf("grid too small")
	}
	if !sort.Float64sAreSorted(tab.Pressures) || !sort.Float64sAreSorted(tab.Temperatures) {
		return fmt.Errorf("grid axes must be ascending")
	}
	if len(tab.Rows) != len(tab.Pressures) {
		return fmt.Errorf("%d rows for %d pressures", len(tab.Rows), len(tab.Pressures))
	}
	for i, row := range tab.Rows {
		if len(row) != len(tab.Temperatures) {
			return fmt.Errorf("row %d has %d records for %d temperatures", i, len(row), len(tab.Temperatures))
		}
		for j, r := range row {
			if len(r.MoleFractions) != len(tab.Species) || len(r.MassFractions) != len(tab.Species) {
				return fmt.Errorf("record (%d, %d): composition size mismatch", i, j)
			}
			if j > 0 && r.Enthalpy <= row[j-1].Enthalpy {
				return fmt.Errorf("row %d: enthalpy not increasing with temperature", i)
			}
		}
	}
	return nil
}

// cell returns the lower index of the interval containing x and the fraction inside it.
func cell(axis []float64, x float64) (int, float64, bool) {
	n := len(axis)
	if x < axis[0] || x > axis[n-1] {
		return 0, 0, false
	}
	i := sort.SearchFloat64s(axis, x) - 1
	if i < 0 {
		i = 0
	}
	if i > n-2 {
		i = n - 2
	}
	return i, (x - axis[i]) / (axis[i+1] - axis[i]), true
}

func (tab *Table) pressureCell(p float64) (int, float64, bool) {
	if !(p > 0) {
		return 0, 0, false
	}
	i, _, ok := cell(tab.Pressures, p)
	if !ok {
		return 0, 0, false
	}
	lp := math.Log(p)
	l0, l1 := math.Log(tab.Pressures[i]), math.Log(tab.Pressures[i+1])
	return i, (lp - l0) / (l1 - l0), true
}

func (tab *Table) Query(ctx context.Context, spec Spec) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	i, fp, ok := tab.pressureCell(spec.Pressure)
	if !ok {
		return State{}, Errorf(OutOfRange, "table", spec, "pressure outside [%g, %g] Pa",
			tab.Pressures[0], tab.Pressures[len(tab.Pressures)-1])
	}
	t := spec.Temperature
	if spec.ByEnthalpy {
		var err error
		if t, err = tab.temperature(spec, i, fp); err != nil {
			return State{}, err
		}
	}
	j, ft, ok := cell(tab.Temperatures, t)
	if !ok {
		return State{}, Errorf(OutOfRange, "table", spec, "temperature outside [%g, %g] K",
			tab.Temperatures[0], tab.Temperatures[len(tab.Temperatures)-1])
	}
	s := tab.interpolate(i, fp, j, ft)
	s.Pressure, s.Temperature = spec.Pressure, t
	if !s.finite() {
		return State{}, Errorf(NumericalFailure, "table", spec, "non-finite interpolated property")
	}
	return s, nil
}

// enthalpyAt interpolates the enthalpy of temperature node j at the pressure fraction fp.
func (tab *Table) enthalpyAt(i int, fp float64, j int) float64 {
	return (1-fp)*tab.Rows[i][j].Enthalpy + fp*tab.Rows[i+1][j].Enthalpy
}

// temperature inverts the interpolated enthalpy, which is piecewise linear in T.
func (tab *Table) temperature(spec Spec, i int, fp float64) (float64, error) {
	n := len(tab.Temperatures)
	h := spec.Enthalpy
	hlo, hhi := tab.enthalpyAt(i, fp, 0), tab.enthalpyAt(i, fp, n-1)
	if math.IsNaN(h) || h < hlo || h > hhi {
		return 0, Errorf(OutOfRange, "table", spec, "enthalpy outside [%g, %g] J/kg", hlo, hhi)
	}
	left, right := 0, n-1
	for left < right {
		m := left + (right-left+1)>>1
		if tab.enthalpyAt(i, fp, m) <= h {
			left = m
		} else {
			right = m - 1
		}
	}
	if left >= n-1 {
		return tab.Temperatures[n-1], nil
	}
	h0, h1 := tab.enthalpyAt(i, fp, left), tab.enthalpyAt(i, fp, left+1)
	if h1 <= h0 {
		return 0, Errorf(NumericalFailure, "table", spec, "enthalpy not increasing near %g K", tab.Temperatures[left])
	}
	t0, t1 := tab.Temperatures[left], tab.Temperatures[left+1]
	return t0 + (t1-t0)*(h-h0)/(h1-h0), nil
}

func (tab *Table) interpolate(i int, fp float64, j int, ft float64) State {
	r00, r01 := tab.Rows[i][j], tab.Rows[i][j+1]
	r10, r11 := tab.Rows[i+1][j], tab.Rows[i+1][j+1]
	lin := func(get func(Record) float64) float64 {
		return (1-fp)*((1-ft)*get(r00)+ft*get(r01)) + fp*((1-ft)*get(r10)+ft*get(r11))
	}
	logLin := func(get func(Record) float64) float64 {
		return math.Exp(lin(func(r Record) float64 { return math.Log(get(r)) }))
	}
	s := State{
		Density:                 logLin(func(r Record) float64 { return r.Density }),
		Enthalpy:                lin(func(r Record) float64 { return r.Enthalpy }),
		Entropy:                 lin(func(r Record) float64 { return r.Entropy }),
		Viscosity:               lin(func(r Record) float64 { return r.Viscosity }),
		FrozenConductivity:      lin(func(r Record) float64 { return r.FrozenConductivity }),
		EquilibriumConductivity: lin(func(r Record) float64 { return r.EquilibriumConductivity }),
		FrozenCp:                lin(func(r Record) float64 { return r.FrozenCp }),
		EquilibriumCp:           lin(func(r Record) float64 { return r.EquilibriumCp }),
		SoundSpeed:              lin(func(r Record) float64 { return r.SoundSpeed }),
		FrozenSoundSpeed:        lin(func(r Record) float64 { return r.FrozenSoundSpeed }),
		MeanFreePath:            logLin(func(r Record) float64 { return r.MeanFreePath }),
		Composition:             make(map[string]float64, len(tab.Species)),
		MassFractions:           make(map[string]float64, len(tab.Species)),
	}
	var sumX, sumY float64
	x := make([]float64, len(tab.Species))
	y := make([]float64, len(tab.Species))
	for k := range tab.Species {
		x[k] = math.Max(0, lin(func(r Record) float64 { return r.MoleFractions[k] }))
		y[k] = math.Max(0, lin(func(r Record) float64 { return r.MassFractions[k] }))
		sumX += x[k]
		sumY += y[k]
	}
	for k, name := range tab.Species {
		if sumX > 0 {
			s.Composition[name] = x[k] / sumX
		}
		if sumY > 0 {
			s.MassFractions[name] = y[k] / sumY
		}
	}
	return s
}
