// Package calc owns a single calculation directory: the parameter store,
// the structure it runs on, and the reconciliation of incoming keyword
// updates into a minimal changeset. It is the only writer of the store;
// callers are expected to hold exclusive ownership for the duration of a
// Set or WriteInput call.
package calc

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/askeland/vaspin/internal/expand"
	"github.com/askeland/vaspin/internal/incar"
	"github.com/askeland/vaspin/internal/kpoints"
	"github.com/askeland/vaspin/internal/params"
	"github.com/askeland/vaspin/internal/poscar"
	"github.com/askeland/vaspin/internal/potcar"
	"github.com/askeland/vaspin/internal/resultdb"
	"github.com/askeland/vaspin/internal/structure"
)

// ppFamilies maps the pp parameter (set by the xc macro) to the potential
// family subdirectory.
var ppFamilies = map[string]string{
	"LDA": "potpaw",
	"GGA": "potpaw_GGA",
	"PBE": "potpaw_PBE",
}

// Calculator manages one calculation directory.
type Calculator struct {
	log     *zap.Logger
	dir     string
	version string

	atoms   *structure.Atoms
	catalog structure.Catalog
	store   *params.Store

	// sorted is the memoized species sort. Computed lazily on first need;
	// invalidating it when the structure object changes is the structure
	// owner's job, via InvalidateSpecies.
	sorted *structure.Sorted

	// prepared is the run-state flag the run owner watches. Any non-empty
	// changeset flips it back to false.
	prepared bool

	// dbParser splits calculation-directory segments into database
	// key/value pairs. Empty disables directory parsing.
	dbParser string
}

// New returns a calculator for dir operating on atoms, resolving potentials
// through catalog.
func New(dir string, atoms *structure.Atoms, catalog structure.Catalog, version string, log *zap.Logger) *Calculator {
	return &Calculator{
		log:     log.Named("calc"),
		dir:     dir,
		version: version,
		atoms:   atoms,
		catalog: catalog,
		store:   params.New(),
	}
}

// Dir returns the calculation directory.
func (c *Calculator) Dir() string { return c.dir }

// Store returns the parameter store. Read-only use outside Set.
func (c *Calculator) Store() *params.Store { return c.store }

// Prepared reports whether previously prepared run state is still valid.
func (c *Calculator) Prepared() bool { return c.prepared }

// MarkPrepared is called by the run owner once derived state is rebuilt.
func (c *Calculator) MarkPrepared() { c.prepared = true }

// InvalidateSpecies drops the memoized species sort. Must be called when
// the structure object is swapped or mutated.
func (c *Calculator) InvalidateSpecies() { c.sorted = nil }

// SetDBParser sets the token used to harvest key/value pairs from the
// calculation directory name on database writes.
func (c *Calculator) SetDBParser(token string) { c.dbParser = token }

// Set reconciles keyword updates into the store. Macro keywords are
// expanded first, in the fixed order xc, ispin, ldau_luj, nsw, rwigs, with
// each expansion folded into the pending updates before the next runs. The
// merged updates are then applied and the names whose effective value
// changed come back, sorted. A non-empty changeset invalidates prepared
// run state.
func (c *Calculator) Set(updates params.Updates) ([]string, error) {
	merged := make(params.Updates, len(updates))
	for name, a := range updates {
		merged[name] = a
	}

	ctx := &expand.Context{
		Store:   c.store,
		Species: c.speciesOrder,
		Magmoms: c.sortedMagmoms,
	}
	for _, macro := range expand.Macros {
		a, ok := merged[macro.Name]
		if !ok {
			continue
		}
		out, err := macro.Expand(ctx, a)
		if err != nil {
			return nil, err
		}
		for name, induced := range out {
			merged[name] = induced
		}
	}

	changed := c.store.Apply(merged)
	if len(changed) > 0 {
		c.prepared = false
		c.log.Debug("parameters changed", zap.Strings("keys", changed))
	}
	return changed, nil
}

// speciesOrder computes the species sort on first use and memoizes it. The
// pp parameter selects the potential family and the setups parameter maps
// species to potential variants, so both participate in the resolution.
func (c *Calculator) speciesOrder() ([]structure.Potential, error) {
	sorted, err := c.sortedStructure()
	if err != nil {
		return nil, err
	}
	return sorted.Species, nil
}

func (c *Calculator) sortedMagmoms() ([]float64, error) {
	sorted, err := c.sortedStructure()
	if err != nil {
		return nil, err
	}
	return sorted.Magmoms(), nil
}

func (c *Calculator) sortedStructure() (*structure.Sorted, error) {
	if c.sorted != nil {
		return c.sorted, nil
	}
	if c.atoms == nil {
		return nil, fmt.Errorf("calc: no structure attached")
	}

	cat := c.catalog
	if pp, ok := c.store.Get("pp").(string); ok {
		if family, known := ppFamilies[pp]; known {
			cat.Family = family
		}
	}
	if setups, ok := c.store.Get("setups").(map[string]string); ok {
		merged := make(map[string]string, len(cat.Setups)+len(setups))
		for k, v := range cat.Setups {
			merged[k] = v
		}
		for k, v := range setups {
			merged[k] = v
		}
		cat.Setups = merged
	}

	sorted, err := structure.Sort(c.atoms, &cat)
	if err != nil {
		return nil, err
	}
	c.sorted = sorted
	return sorted, nil
}

// WriteInput regenerates the full input deck in the calculation directory:
// POSCAR (skipped for elastic-band runs that set spring), INCAR, KPOINTS
// (skipped when kspacing delegates generation to the engine), POTCAR and
// the result database row. Files are whole-file overwrites.
func (c *Calculator) WriteInput() error {
	sorted, err := c.sortedStructure()
	if err != nil {
		return err
	}

	if !c.store.Has("spring") {
		if err := poscar.WriteFile(filepath.Join(c.dir, "POSCAR"), sorted); err != nil {
			return err
		}
	}

	iw := incar.NewWriter(c.log)
	if err := iw.WriteFile(filepath.Join(c.dir, "INCAR"), c.store, sorted.Species); err != nil {
		return err
	}

	if !c.store.Has("kspacing") {
		kw := kpoints.NewWriter(c.log)
		if err := kw.WriteFile(filepath.Join(c.dir, "KPOINTS"), c.store); err != nil {
			return err
		}
	}

	pw := potcar.NewWriter(c.catalog.Root, c.log)
	if err := pw.WriteFile(filepath.Join(c.dir, "POTCAR"), sorted.Species); err != nil {
		return err
	}

	return c.WriteDB(resultdb.Options{Overwrite: true, ParserToken: c.dbParser})
}

// WriteDB writes the single-row result database for this calculation.
func (c *Calculator) WriteDB(opts resultdb.Options) error {
	sorted, err := c.sortedStructure()
	if err != nil {
		return err
	}
	db := resultdb.New(c.log)
	rec := resultdb.Record{
		Atoms:      sorted.Atoms,
		CalcDir:    c.dir,
		Version:    c.version,
		Resort:     sorted.Resort,
		Parameters: c.store.Snapshot(),
		Species:    sorted.Species,
	}
	return db.Write(filepath.Join(c.dir, "DB.json"), rec, opts)
}
