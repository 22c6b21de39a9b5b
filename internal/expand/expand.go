// Package expand translates macro keywords into the concrete parameter
// assignments they imply. One logical setting (xc, ispin, ldau_luj, nsw,
// rwigs) fans out into, or retracts, several physical engine settings.
//
// Expanders are pure: they read the current store and the incoming
// assignment and return the induced updates without touching either. The
// reconciler in internal/calc owns applying them.
package expand

import (
	"errors"
	"fmt"

	"github.com/askeland/vaspin/internal/params"
	"github.com/askeland/vaspin/internal/structure"
)

// ErrSetupsConflict is returned when per-species Hubbard parameters are
// combined with species-specific potential setups. The engine cannot honor
// both at once because the setups rewrite the species list the Hubbard
// arrays are aligned to.
var ErrSetupsConflict = errors.New("expand: setups and ldau_luj cannot be combined")

// LUJ is one species' Hubbard parameters.
type LUJ struct {
	L int
	U float64
	J float64
}

// Context gives an expander read access to the current store and to the
// lazily computed species order of the structure. Species and Magmoms are
// memoized by the owning calculator; expanders call them at most once.
type Context struct {
	Store   *params.Store
	Species func() ([]structure.Potential, error)
	Magmoms func() ([]float64, error)
}

// Func is one macro expander.
type Func func(ctx *Context, a params.Assignment) (params.Updates, error)

// Macro pairs a keyword with its expander.
type Macro struct {
	Name   string
	Expand Func
}

// Macros lists the macro keywords in the order the reconciler processes
// them. The order is part of the contract: a later macro in the same call
// sees the earlier ones already folded into the pending updates.
var Macros = []Macro{
	{"xc", XC},
	{"ispin", Ispin},
	{"ldau_luj", LdauLUJ},
	{"nsw", NSW},
	{"rwigs", Rwigs},
}

// XC expands an exchange-correlation method change. Every parameter implied
// by the previous method that is still present is scheduled for removal, so
// switching methods never leaves stale defaults behind; then the new
// method's defaults are merged in. Removing xc retracts the previous
// defaults without applying new ones.
func XC(ctx *Context, a params.Assignment) (params.Updates, error) {
	out := params.Updates{}

	if old, ok := ctx.Store.Lookup("xc"); ok {
		oldName, _ := old.(string)
		if defaults, known := XCDefaults(oldName); known {
			for key := range defaults {
				if ctx.Store.Has(key) {
					out[key] = params.Remove
				}
			}
		}
	}

	if a.IsRemove() {
		out["xc"] = params.Remove
		return out, nil
	}

	method, ok := a.Value().(string)
	if !ok {
		return nil, fmt.Errorf("expand: xc wants a method name, got %T", a.Value())
	}
	defaults, known := XCDefaults(method)
	if !known {
		return nil, fmt.Errorf("expand: unknown xc method %q", method)
	}
	for key, val := range defaults {
		out[key] = params.Set(val)
	}
	out["xc"] = params.Set(method)
	return out, nil
}

// Ispin expands a spin-polarization change.
//
// There are two ways magnetic moments come in: explicitly through the
// magmom keyword, or from the per-atom moments of the structure. ispin=2
// picks up the structure moments (in species-sorted order) when magmom is
// not already set, and defaults lorbit to 11 so per-atom moments can be
// decomposed from the output. ispin=1 and removal drop both again.
//
// Values other than 1 and 2 expand to nothing, matching the engine wrapper
// this replaces; the store is left untouched for such calls.
func Ispin(ctx *Context, a params.Assignment) (params.Updates, error) {
	out := params.Updates{}

	if a.IsRemove() {
		for _, key := range []string{"ispin", "magmom", "lorbit"} {
			if ctx.Store.Has(key) {
				out[key] = params.Remove
			}
		}
		return out, nil
	}

	val, ok := a.Value().(int)
	if !ok {
		return out, nil
	}
	switch val {
	case 1:
		out["ispin"] = params.Set(1)
		if ctx.Store.Has("magmom") {
			out["magmom"] = params.Remove
		}
		if ctx.Store.Has("lorbit") {
			out["lorbit"] = params.Remove
		}
	case 2:
		out["ispin"] = params.Set(2)
		if !ctx.Store.Has("magmom") {
			moments, err := ctx.Magmoms()
			if err != nil {
				return nil, err
			}
			out["magmom"] = params.Set(moments)
		}
		if !ctx.Store.Has("lorbit") {
			out["lorbit"] = params.Set(11)
		}
	}
	return out, nil
}

// LdauLUJ expands a per-species Hubbard table into the three ordered arrays
// the engine reads (ldaul, ldauu, ldauj), aligned with the species order.
func LdauLUJ(ctx *Context, a params.Assignment) (params.Updates, error) {
	if ctx.Store.Has("setups") {
		return nil, ErrSetupsConflict
	}

	if a.IsRemove() {
		return params.Updates{
			"ldaul": params.Remove,
			"ldauu": params.Remove,
			"ldauj": params.Remove,
		}, nil
	}

	table, ok := a.Value().(map[string]LUJ)
	if !ok {
		return nil, fmt.Errorf("expand: ldau_luj wants map[string]LUJ, got %T", a.Value())
	}
	species, err := ctx.Species()
	if err != nil {
		return nil, err
	}

	ldaul := make([]int, len(species))
	ldauu := make([]float64, len(species))
	ldauj := make([]float64, len(species))
	for i, pot := range species {
		luj, ok := table[pot.Symbol]
		if !ok {
			return nil, fmt.Errorf("expand: ldau_luj has no entry for species %s", pot.Symbol)
		}
		ldaul[i] = luj.L
		ldauu[i] = luj.U
		ldauj[i] = luj.J
	}
	return params.Updates{
		"ldaul": params.Set(ldaul),
		"ldauu": params.Set(ldauu),
		"ldauj": params.Set(ldauj),
	}, nil
}

// NSW expands the ionic step count. Wavefunction writing only pays off when
// there are ionic steps to restart from, so lwave follows nsw > 0. Zero and
// negative values (the historical "static run" sentinel) both disable it.
func NSW(ctx *Context, a params.Assignment) (params.Updates, error) {
	if a.IsRemove() {
		return params.Updates{}, nil
	}
	val, ok := a.Value().(int)
	if !ok {
		return nil, fmt.Errorf("expand: nsw wants an int, got %T", a.Value())
	}
	return params.Updates{
		"nsw":   params.Set(val),
		"lwave": params.Set(val > 0),
	}, nil
}

// Rwigs expands a species to Wigner-Seitz radius mapping into the ordered
// radius list the INCAR serializer emits. Removal also drops lorbit, which
// is meaningless without the radii.
func Rwigs(ctx *Context, a params.Assignment) (params.Updates, error) {
	if a.IsRemove() {
		return params.Updates{
			"rwigs":  params.Remove,
			"lorbit": params.Remove,
		}, nil
	}

	table, ok := a.Value().(map[string]float64)
	if !ok {
		return nil, fmt.Errorf("expand: rwigs wants map[string]float64, got %T", a.Value())
	}
	species, err := ctx.Species()
	if err != nil {
		return nil, err
	}

	radii := make([]float64, len(species))
	for i, pot := range species {
		r, ok := table[pot.Symbol]
		if !ok {
			return nil, fmt.Errorf("expand: rwigs has no entry for species %s", pot.Symbol)
		}
		radii[i] = r
	}
	return params.Updates{"rwigs": params.Set(radii)}, nil
}
