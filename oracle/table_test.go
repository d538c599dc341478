package oracle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestTable(t *testing.T) (*Engine, *Table) {
	e := nitrogen(t)
	var temps []float64
	for temp := 300.0; temp <= 10000; temp += 100 {
		temps = append(temps, temp)
	}
	tab, err := BuildTable(context.Background(), e, "nitrogen2", e.Gas().Species(),
		[]float64{5000, 500, 1000, 2000, 10000}, temps)
	require.NoError(t, err)
	return e, tab
}

func TestTableMatchesSourceAtNodes(t *testing.T) {
	e, tab := buildTestTable(t)
	ctx := context.Background()
	assert.Equal(t, []float64{500, 1000, 2000, 5000, 10000}, tab.Pressures)

	want, err := e.Query(ctx, ByPT(2000, 6000))
	require.NoError(t, err)
	got, err := tab.Query(ctx, ByPT(2000, 6000))
	require.NoError(t, err)
	assert.InEpsilon(t, want.Enthalpy, got.Enthalpy, 1e-9)
	assert.InEpsilon(t, want.Density, got.Density, 1e-9)
	assert.InEpsilon(t, want.Viscosity, got.Viscosity, 1e-9)
	assert.InDelta(t, want.Composition["N"], got.Composition["N"], 1e-9)
}

func TestTableInterpolates(t *testing.T) {
	e, tab := buildTestTable(t)
	ctx := context.Background()
	want, err := e.Query(ctx, ByPT(3000, 4050))
	require.NoError(t, err)
	got, err := tab.Query(ctx, ByPT(3000, 4050))
	require.NoError(t, err)
	assert.InEpsilon(t, want.Enthalpy, got.Enthalpy, 0.02)
	assert.InEpsilon(t, want.Density, got.Density, 0.02)
	assert.InEpsilon(t, want.EquilibriumCp, got.EquilibriumCp, 0.05)
	assert.InDelta(t, 1.0, got.Composition["N2"]+got.Composition["N"], 1e-12)
}

func TestTableEnthalpyInversion(t *testing.T) {
	_, tab := buildTestTable(t)
	ctx := context.Background()
	s, err := tab.Query(ctx, ByPT(1500, 5432))
	require.NoError(t, err)
	back, err := tab.Query(ctx, ByPH(1500, s.Enthalpy))
	require.NoError(t, err)
	assert.InDelta(t, 5432, back.Temperature, 1e-6)
}

func TestTableOutOfRange(t *testing.T) {
	_, tab := buildTestTable(t)
	ctx := context.Background()
	for _, spec := range []Spec{ByPT(100, 3000), ByPT(5000, 20000), ByPH(5000, -1)} {
		_, err := tab.Query(ctx, spec)
		assert.ErrorIs(t, err, ErrOutOfRange, spec.String())
	}
}

func TestTableSaveLoad(t *testing.T) {
	_, tab := buildTestTable(t)
	path := filepath.Join(t.TempDir(), "nitrogen2.json")
	require.NoError(t, tab.Save(path))

	loaded, err := LoadTable(path)
	require.NoError(t, err)
	ctx := context.Background()
	a, err := tab.Query(ctx, ByPT(800, 7777))
	require.NoError(t, err)
	b, err := loaded.Query(ctx, ByPT(800, 7777))
	require.NoError(t, err)
	assert.InEpsilon(t, a.Enthalpy, b.Enthalpy, 1e-12)
}

func TestLoadTableRejectsUnsortedGrid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"pressures":[2,1],"temperatures":[1,2],"rows":[[],[]]}`), 0o644))
	_, err := LoadTable(path)
	assert.Error(t, err)
}
