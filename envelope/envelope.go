// Package envelope checks measurement sets against the operating envelope of the test
// facility: per gas, a polygon in the (stagnation pressure, heat flux) plane.
package envelope

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"plasflow/model"
)

// Point is (stagnation pressure [Pa], heat flux [W/m²]).
type Point struct {
	P float64
	Q float64
}

type Polygon struct {
	Gas      string
	Vertices []Point
}

func (p Polygon) Area() float64 {
	a := 0.0
	n := len(p.Vertices)
	for i := range p.Vertices {
		u, v := p.Vertices[i], p.Vertices[(i+1)%n]
		a += u.P*v.Q - v.P*u.Q
	}
	return math.Abs(a) / 2
}

// Envelope holds one polygon per facility gas.
type Envelope struct {
	polygons map[string]Polygon
}

func New(polygons ...Polygon) *Envelope {
	e := &Envelope{polygons: make(map[string]Polygon)}
	for _, p := range polygons {
		if old, ok := e.polygons[p.Gas]; !ok || p.Area() > old.Area() {
			e.polygons[p.Gas] = p
		}
	}
	return e
}

func (e *Envelope) Polygon(gas string) (Polygon, bool) {
	p, ok := e.polygons[gas]
	return p, ok
}

func (e *Envelope) Gases() []string {
	gases := make([]string, 0, len(e.polygons))
	for g := range e.polygons {
		gases = append(gases, g)
	}
	sort.Strings(gases)
	return gases
}

// Contains reports whether (p, q) lies inside or on the polygon of gas. Unknown gases are
// outside.
func (e *Envelope) Contains(gas string, p, q float64) bool {
	poly, ok := e.polygons[gas]
	if !ok {
		return false
	}
	return inPolygon(Point{p, q}, poly.Vertices, eps)
}

// Check returns a warning when ms falls outside the envelope, "" otherwise.
func (e *Envelope) Check(ms model.MeasurementSet) string {
	gas := FacilityGas(ms.Mixture)
	if _, ok := e.polygons[gas]; !ok {
		return fmt.Sprintf("gas %q has no facility envelope", ms.Mixture)
	}
	if e.Contains(gas, ms.StagnationPressure, ms.HeatFlux) {
		return ""
	}
	return fmt.Sprintf("stagnation pressure %.4g Pa and heat flux %.4g W/m² are outside the %s facility envelope",
		ms.StagnationPressure, ms.HeatFlux, gas)
}

// 混合物名称 -> 设备气体名称
var facilityGases = map[string]string{
	"air_5":     "Air",
	"air_11":    "Air",
	"air_13":    "Air",
	"nitrogen2": "N2",
	"nitrogen5": "N2",
	"test_n2":   "N2",
	"n2":        "N2",
	"oxygen2":   "O2",
	"o2":        "O2",
	"co2_8":     "CO2",
}

// FacilityGas maps a mixture name to the gas label used in envelope files.
func FacilityGas(mixture string) string {
	if g, ok := facilityGases[strings.ToLower(strings.TrimSpace(mixture))]; ok {
		return g
	}
	return mixture
}

type Options struct {
	GasColumn      string
	PressureColumn string
	HeatFluxColumn string
	// 可选：同一气体的多个多边形
	PolygonColumn string
	// 可选：给出顶点顺序时不再求凸包
	VertexColumn string
	PressureUnit string
	HeatFluxUnit string
}

func DefaultOptions() Options {
	return Options{
		GasColumn:      "plasma gas",
		PressureColumn: "stagnation pressure [kPa]",
		HeatFluxColumn: "heat flux [W/cm^2]",
		PressureUnit:   "kPa",
		HeatFluxUnit:   "W/cm^2",
	}
}

func Load(path string, opt Options) (*Envelope, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	e, err := Read(f, opt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return e, nil
}

type vertex struct {
	id int
	pt Point
}

// Read parses an envelope CSV with a header row. Units are normalised to Pa and W/m².
func Read(r io.Reader, opt Options) (*Envelope, error) {
	pScale, err := pressureFactor(opt.PressureUnit)
	if err != nil {
		return nil, err
	}
	qScale, err := heatFluxFactor(opt.HeatFluxUnit)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty envelope file")
		}
		return nil, err
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, name := range []string{opt.GasColumn, opt.PressureColumn, opt.HeatFluxColumn} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	field := func(rec []string, name string) (string, bool) {
		i, ok := col[name]
		if !ok || name == "" || i >= len(rec) {
			return "", false
		}
		return strings.TrimSpace(rec[i]), true
	}
	_, ordered := col[opt.VertexColumn]
	ordered = ordered && opt.VertexColumn != ""

	type key struct{ gas, poly string }
	groups := make(map[key][]vertex)
	var keys []key
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		gas, _ := field(rec, opt.GasColumn)
		if gas == "" {
			continue
		}
		poly, _ := field(rec, opt.PolygonColumn)
		ps, _ := field(rec, opt.PressureColumn)
		qs, _ := field(rec, opt.HeatFluxColumn)
		p, err := parseNumber(ps)
		if err != nil {
			return nil, fmt.Errorf("line %d: pressure: %w", line, err)
		}
		q, err := parseNumber(qs)
		if err != nil {
			return nil, fmt.Errorf("line %d: heat flux: %w", line, err)
		}
		v := vertex{id: line, pt: Point{p * pScale, q * qScale}}
		if ordered {
			if s, _ := field(rec, opt.VertexColumn); s != "" {
				if id, err := strconv.Atoi(s); err == nil {
					v.id = id
				}
			}
		}
		k := key{gas, poly}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], v)
	}

	var polys []Polygon
	for _, k := range keys {
		vs := groups[k]
		pts := make([]Point, len(vs))
		if ordered {
			sort.SliceStable(vs, func(i, j int) bool { return vs[i].id < vs[j].id })
		}
		for i, v := range vs {
			pts[i] = v.pt
		}
		verts := pts
		if !ordered {
			verts = ConvexHull(pts)
			if n := len(distinct(pts)); len(verts) < n {
				log.WithFields(log.Fields{"gas": k.gas, "vertices": len(verts), "points": n}).
					Info("envelope points are unordered or concave, using convex hull")
			}
		}
		if len(verts) < 3 {
			return nil, fmt.Errorf("gas %q polygon needs at least 3 distinct vertices, got %d", k.gas, len(verts))
		}
		polys = append(polys, Polygon{Gas: k.gas, Vertices: verts})
	}
	return New(polys...), nil
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}

func pressureFactor(unit string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "pa", "pascal", "pascals":
		return 1, nil
	case "kpa":
		return 1e3, nil
	case "mpa":
		return 1e6, nil
	case "bar":
		return 1e5, nil
	}
	return 0, fmt.Errorf("unsupported pressure unit %q", unit)
}

func heatFluxFactor(unit string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "w/m^2", "w/m2", "w m-2":
		return 1, nil
	case "kw/m^2", "kw/m2":
		return 1e3, nil
	case "mw/m^2", "mw/m2":
		return 1e6, nil
	case "w/cm^2", "w/cm2", "w cm-2":
		return 1e4, nil
	}
	return 0, fmt.Errorf("unsupported heat flux unit %q", unit)
}
