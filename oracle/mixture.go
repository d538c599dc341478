package oracle

import (
	"fmt"
	"strings"
)

const (
	universalGasConstant = 8.314462618 // J/mol/K
	referenceTemperature = 298.15      // K
	referencePressure    = 101325.0    // Pa
)

// Gas holds the parameters of a diatomic gas A2 dissociating into 2A.
type Gas struct {
	Name     string
	Molecule string
	Atom     string

	R      float64 // 分子气体常数 J/kg/K
	ThetaD float64 // 特征离解温度 K
	RhoD   float64 // 特征离解密度 kg/m³
	S0     float64 // 分子标准熵 J/kg/K, 298.15 K 101325 Pa

	// Sutherland 粘性定律
	MuRef      float64
	TRef       float64
	Sutherland float64

	Prandtl float64
}

var gases = map[string]Gas{
	"nitrogen2": {
		Name: "nitrogen2", Molecule: "N2", Atom: "N",
		R: universalGasConstant / 0.0280134, ThetaD: 113200, RhoD: 1.3e5,
		S0:    191.61 / 0.0280134,
		MuRef: 1.663e-5, TRef: 273.15, Sutherland: 106.7,
		Prandtl: 0.71,
	},
	"oxygen2": {
		Name: "oxygen2", Molecule: "O2", Atom: "O",
		R: universalGasConstant / 0.0319988, ThetaD: 59500, RhoD: 1.5e5,
		S0:    205.15 / 0.0319988,
		MuRef: 1.919e-5, TRef: 273.15, Sutherland: 139,
		Prandtl: 0.71,
	},
}

var aliases = map[string]string{
	"n2":        "nitrogen2",
	"nitrogen":  "nitrogen2",
	"nitrogen2": "nitrogen2",
	"o2":        "oxygen2",
	"oxygen":    "oxygen2",
	"oxygen2":   "oxygen2",
}

// LookupGas resolves a mixture or plasma gas name such as "N2" or "nitrogen2".
func LookupGas(name string) (Gas, error) {
	key, ok := aliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Gas{}, fmt.Errorf("unknown mixture %q", name)
	}
	return gases[key], nil
}

// Species lists molecule then atom.
func (g Gas) Species() []string { return []string{g.Molecule, g.Atom} }
