package expand_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askeland/vaspin/internal/expand"
	"github.com/askeland/vaspin/internal/params"
	"github.com/askeland/vaspin/internal/structure"
)

// testContext returns a context over a fresh store with a fixed Fe, O
// species order and per-site moments already in sorted order.
func testContext() (*expand.Context, *params.Store) {
	store := params.New()
	ctx := &expand.Context{
		Store: store,
		Species: func() ([]structure.Potential, error) {
			return []structure.Potential{
				{Symbol: "Fe", File: "potpaw_PBE/Fe/POTCAR", Valence: 8},
				{Symbol: "O", File: "potpaw_PBE/O/POTCAR", Valence: 6},
			}, nil
		},
		Magmoms: func() ([]float64, error) {
			return []float64{2.5, -2.5, 0, 0}, nil
		},
	}
	return ctx, store
}

func applyDefaults(t *testing.T, store *params.Store, method string) {
	t.Helper()
	defaults, ok := expand.XCDefaults(method)
	require.True(t, ok)
	store.Put("xc", method)
	for key, val := range defaults {
		store.Put(key, val)
	}
}

func TestXC_FirstSelectionAppliesDefaults(t *testing.T) {
	ctx, _ := testContext()

	out, err := expand.XC(ctx, params.Set("PBE"))
	require.NoError(t, err)

	require.Contains(t, out, "xc")
	assert.Equal(t, "PBE", out["xc"].Value())
	require.Contains(t, out, "pp")
	assert.Equal(t, "PBE", out["pp"].Value())
}

func TestXC_SwitchRetractsStaleDefaults(t *testing.T) {
	ctx, store := testContext()
	applyDefaults(t, store, "beef-vdw")

	out, err := expand.XC(ctx, params.Set("pbe"))
	require.NoError(t, err)

	// Keys unique to beef-vdw come back as removals.
	for _, key := range []string{"gga", "luse_vdw", "zab_vdw", "lbeefens"} {
		require.Contains(t, out, key)
		assert.True(t, out[key].IsRemove(), "%s must be retracted", key)
	}
	// Keys both methods imply end up set to the new value.
	assert.False(t, out["pp"].IsRemove())
	assert.Equal(t, "PBE", out["pp"].Value())
	assert.Equal(t, "pbe", out["xc"].Value())
}

func TestXC_RetractsOnlyPresentKeys(t *testing.T) {
	ctx, store := testContext()
	// xc recorded but its defaults were manually unset since.
	store.Put("xc", "beef-vdw")

	out, err := expand.XC(ctx, params.Set("pbe"))
	require.NoError(t, err)
	assert.NotContains(t, out, "luse_vdw")
}

func TestXC_CaseInsensitiveLookup(t *testing.T) {
	ctx, _ := testContext()
	out, err := expand.XC(ctx, params.Set("HSE06"))
	require.NoError(t, err)
	assert.Equal(t, 0.2, out["hfscreen"].Value())
	assert.Equal(t, "HSE06", out["xc"].Value())
}

func TestXC_UnknownMethodFails(t *testing.T) {
	ctx, _ := testContext()
	_, err := expand.XC(ctx, params.Set("pbe99"))
	assert.Error(t, err)
}

func TestXC_RemovalRetractsDefaults(t *testing.T) {
	ctx, store := testContext()
	applyDefaults(t, store, "pbe")

	out, err := expand.XC(ctx, params.Remove)
	require.NoError(t, err)
	assert.True(t, out["xc"].IsRemove())
	assert.True(t, out["pp"].IsRemove())
}

func TestIspin_RemovalDropsOnlyPresentKeys(t *testing.T) {
	ctx, store := testContext()
	store.Put("ispin", 2)
	store.Put("magmom", []float64{2.5, -2.5, 0, 0})

	out, err := expand.Ispin(ctx, params.Remove)
	require.NoError(t, err)

	assert.True(t, out["ispin"].IsRemove())
	assert.True(t, out["magmom"].IsRemove())
	// lorbit was never set, so its removal is not scheduled.
	assert.NotContains(t, out, "lorbit")
}

func TestIspin_One(t *testing.T) {
	ctx, store := testContext()
	store.Put("magmom", []float64{2.5})
	store.Put("lorbit", 11)

	out, err := expand.Ispin(ctx, params.Set(1))
	require.NoError(t, err)

	assert.Equal(t, 1, out["ispin"].Value())
	assert.True(t, out["magmom"].IsRemove())
	assert.True(t, out["lorbit"].IsRemove())
}

func TestIspin_TwoDerivesMomentsFromStructure(t *testing.T) {
	ctx, _ := testContext()

	out, err := expand.Ispin(ctx, params.Set(2))
	require.NoError(t, err)

	assert.Equal(t, 2, out["ispin"].Value())
	assert.Equal(t, []float64{2.5, -2.5, 0, 0}, out["magmom"].Value())
	assert.Equal(t, 11, out["lorbit"].Value())
}

func TestIspin_TwoKeepsExplicitSettings(t *testing.T) {
	ctx, store := testContext()
	store.Put("magmom", []float64{1, 1, 1, 1})
	store.Put("lorbit", 10)

	out, err := expand.Ispin(ctx, params.Set(2))
	require.NoError(t, err)

	assert.NotContains(t, out, "magmom")
	assert.NotContains(t, out, "lorbit")
}

func TestIspin_OtherValuesExpandToNothing(t *testing.T) {
	ctx, _ := testContext()
	out, err := expand.Ispin(ctx, params.Set(3))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestIspin_RemovalInvertsSetting(t *testing.T) {
	ctx, store := testContext()

	out, err := expand.Ispin(ctx, params.Set(2))
	require.NoError(t, err)
	store.Apply(out)

	out, err = expand.Ispin(ctx, params.Remove)
	require.NoError(t, err)
	store.Apply(out)

	for _, key := range []string{"ispin", "magmom", "lorbit"} {
		assert.False(t, store.Has(key), "%s must be gone", key)
	}
}

func TestLdauLUJ_ArraysFollowSpeciesOrder(t *testing.T) {
	ctx, _ := testContext()
	// Table keyed in the opposite order of the species order.
	table := map[string]expand.LUJ{
		"O":  {L: -1, U: 0, J: 0},
		"Fe": {L: 2, U: 4.0, J: 0.9},
	}

	out, err := expand.LdauLUJ(ctx, params.Set(table))
	require.NoError(t, err)

	if diff := cmp.Diff([]int{2, -1}, out["ldaul"].Value()); diff != "" {
		t.Errorf("ldaul mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{4.0, 0}, out["ldauu"].Value()); diff != "" {
		t.Errorf("ldauu mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{0.9, 0}, out["ldauj"].Value()); diff != "" {
		t.Errorf("ldauj mismatch (-want +got):\n%s", diff)
	}
}

func TestLdauLUJ_ConflictsWithSetups(t *testing.T) {
	ctx, store := testContext()
	store.Put("setups", map[string]string{"Fe": "_pv"})

	_, err := expand.LdauLUJ(ctx, params.Set(map[string]expand.LUJ{}))
	assert.ErrorIs(t, err, expand.ErrSetupsConflict)

	// The conflict also applies to removals.
	_, err = expand.LdauLUJ(ctx, params.Remove)
	assert.ErrorIs(t, err, expand.ErrSetupsConflict)
}

func TestLdauLUJ_RemovalDropsAllThreeArrays(t *testing.T) {
	ctx, _ := testContext()
	out, err := expand.LdauLUJ(ctx, params.Remove)
	require.NoError(t, err)
	for _, key := range []string{"ldaul", "ldauu", "ldauj"} {
		require.Contains(t, out, key)
		assert.True(t, out[key].IsRemove())
	}
}

func TestLdauLUJ_MissingSpeciesFails(t *testing.T) {
	ctx, _ := testContext()
	_, err := expand.LdauLUJ(ctx, params.Set(map[string]expand.LUJ{
		"Fe": {L: 2, U: 4, J: 0},
	}))
	assert.ErrorContains(t, err, "O")
}

func TestNSW_WavefunctionFlagFollowsSign(t *testing.T) {
	ctx, _ := testContext()

	cases := []struct {
		nsw   int
		lwave bool
	}{
		{5, true},
		{0, false},
		{-1, false},
	}
	for _, tc := range cases {
		out, err := expand.NSW(ctx, params.Set(tc.nsw))
		require.NoError(t, err)
		assert.Equal(t, tc.nsw, out["nsw"].Value())
		assert.Equal(t, tc.lwave, out["lwave"].Value(), "nsw=%d", tc.nsw)
	}
}

func TestRwigs_OrdersRadiiBySpecies(t *testing.T) {
	ctx, _ := testContext()
	out, err := expand.Rwigs(ctx, params.Set(map[string]float64{"O": 1.0, "Fe": 1.5}))
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 1.0}, out["rwigs"].Value())
}

func TestRwigs_RemovalDropsLorbitToo(t *testing.T) {
	ctx, _ := testContext()
	out, err := expand.Rwigs(ctx, params.Remove)
	require.NoError(t, err)
	assert.True(t, out["rwigs"].IsRemove())
	assert.True(t, out["lorbit"].IsRemove())
}

func TestMacros_FixedOrder(t *testing.T) {
	var names []string
	for _, m := range expand.Macros {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"xc", "ispin", "ldau_luj", "nsw", "rwigs"}, names)
}

func TestXCDefaults_TableIsSane(t *testing.T) {
	for _, method := range expand.XCMethods() {
		defaults, ok := expand.XCDefaults(method)
		require.True(t, ok, method)
		assert.NotEmpty(t, defaults, method)
	}
	_, ok := expand.XCDefaults("PBE")
	assert.True(t, ok, "lookup must be case-insensitive")
}
