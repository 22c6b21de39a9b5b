package structure_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askeland/vaspin/internal/structure"
)

func feO2Fe() *structure.Atoms {
	return &structure.Atoms{
		Cell: [3][3]float64{{5, 0, 0}, {0, 5, 0}, {0, 0, 5}},
		Sites: []structure.Atom{
			{Symbol: "Fe", Position: [3]float64{0, 0, 0}, Magmom: 2.5},
			{Symbol: "O", Position: [3]float64{0.5, 0, 0}},
			{Symbol: "O", Position: [3]float64{0, 0.5, 0}},
			{Symbol: "Fe", Position: [3]float64{0.5, 0.5, 0}, Magmom: -2.5},
		},
	}
}

func TestSort_GroupsBySpeciesFirstAppearance(t *testing.T) {
	sorted, err := structure.Sort(feO2Fe(), &structure.Catalog{})
	require.NoError(t, err)

	symbols := make([]string, len(sorted.Species))
	for i, pot := range sorted.Species {
		symbols[i] = pot.Symbol
	}
	assert.Equal(t, []string{"Fe", "O"}, symbols)
	assert.Equal(t, []int{2, 2}, sorted.Counts)

	// Fe sites first, then O sites, stable within each species.
	assert.Equal(t, []string{"Fe", "Fe", "O", "O"}, sorted.Atoms.Symbols())
	assert.Equal(t, []int{0, 3, 1, 2}, sorted.Resort)
}

func TestSort_MagmomsFollowResortOrder(t *testing.T) {
	sorted, err := structure.Sort(feO2Fe(), &structure.Catalog{})
	require.NoError(t, err)
	assert.Equal(t, []float64{2.5, -2.5, 0, 0}, sorted.Magmoms())
}

func TestSort_EmptySymbolFails(t *testing.T) {
	atoms := &structure.Atoms{Sites: []structure.Atom{{Symbol: ""}}}
	_, err := structure.Sort(atoms, &structure.Catalog{})
	assert.Error(t, err)
}

func TestCatalog_PotentialPaths(t *testing.T) {
	cat := &structure.Catalog{Family: "potpaw_GGA", Setups: map[string]string{"Li": "_sv"}}

	pot, err := cat.Potential("Fe")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("potpaw_GGA", "Fe", "POTCAR"), pot.File)

	pot, err = cat.Potential("Li")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("potpaw_GGA", "Li_sv", "POTCAR"), pot.File)
}

func TestCatalog_DefaultFamily(t *testing.T) {
	pot, err := (&structure.Catalog{}).Potential("O")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("potpaw_PBE", "O", "POTCAR"), pot.File)
}

func TestCatalog_ReadsValenceFromPotentialFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "potpaw_PBE", "Fe")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	header := "PAW_PBE Fe 06Sep2000\n" +
		"   POMASS =  55.847; ZVAL   =    8.000    mass and valenz\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "POTCAR"), []byte(header), 0o644))

	pot, err := (&structure.Catalog{Root: root}).Potential("Fe")
	require.NoError(t, err)
	assert.Equal(t, 8.0, pot.Valence)
}

func TestCatalog_MissingFileLeavesValenceZero(t *testing.T) {
	pot, err := (&structure.Catalog{Root: t.TempDir()}).Potential("Fe")
	require.NoError(t, err)
	assert.Equal(t, 0.0, pot.Valence)
}
