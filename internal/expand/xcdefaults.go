package expand

import (
	"fmt"
	"strings"
)

// xcDefaults maps a lower-cased exchange-correlation method name to the
// engine parameters it implies. The table is process-wide and read-only;
// switching methods retracts the old method's entries before the new ones
// are applied, so no row here may be mutated after init.
var xcDefaults = map[string]map[string]any{
	"lda": {"pp": "LDA"},

	// GGAs
	"gga":    {"pp": "GGA"},
	"pbe":    {"pp": "PBE"},
	"revpbe": {"pp": "LDA", "gga": "RE"},
	"rpbe":   {"pp": "LDA", "gga": "RP"},
	"am05":   {"pp": "LDA", "gga": "AM"},
	"pbesol": {"pp": "LDA", "gga": "PS"},

	// Meta-GGAs
	"tpss":    {"pp": "PBE", "metagga": "TPSS"},
	"revtpss": {"pp": "PBE", "metagga": "RTPSS"},
	"m06l":    {"pp": "PBE", "metagga": "M06L"},

	// vdW-DFs
	"optpbe-vdw": {"pp": "LDA", "gga": "OR", "luse_vdw": true,
		"aggac": 0.0},
	"optb88-vdw": {"pp": "LDA", "gga": "BO", "luse_vdw": true,
		"aggac": 0.0, "param1": 1.1 / 6.0, "param2": 0.22},
	"optb86b-vdw": {"pp": "LDA", "gga": "MK", "luse_vdw": true,
		"aggac": 0.0, "param1": 0.1234, "param2": 1.0},
	"vdw-df2": {"pp": "LDA", "gga": "ML", "luse_vdw": true,
		"aggac": 0.0, "zab_vdw": -1.8867},
	"beef-vdw": {"pp": "PBE", "gga": "BF", "luse_vdw": true,
		"zab_vdw": -1.8867, "lbeefens": true},

	// Hybrids
	"pbe0":  {"pp": "LDA", "gga": "PE", "lhfcalc": true},
	"hse03": {"pp": "LDA", "gga": "PE", "lhfcalc": true, "hfscreen": 0.3},
	"hse06": {"pp": "LDA", "gga": "PE", "lhfcalc": true, "hfscreen": 0.2},
	"b3lyp": {"pp": "LDA", "gga": "B3", "lhfcalc": true,
		"aexx": 0.2, "aggax": 0.72, "aggac": 0.81, "aldac": 0.19},
	"hf": {"pp": "PBE", "lhfcalc": true,
		"aexx": 1.0, "aldac": 0.0, "aggac": 0.0},
}

func init() {
	// Fail fast on a malformed table rather than emitting empty expansions
	// the first time someone selects the broken method.
	for name, defaults := range xcDefaults {
		if name != strings.ToLower(name) {
			panic(fmt.Sprintf("expand: xc method %q is not lower-cased", name))
		}
		if len(defaults) == 0 {
			panic(fmt.Sprintf("expand: xc method %q has no defaults", name))
		}
	}
}

// XCMethods returns the known exchange-correlation method names.
func XCMethods() []string {
	out := make([]string, 0, len(xcDefaults))
	for name := range xcDefaults {
		out = append(out, name)
	}
	return out
}

// XCDefaults returns the parameter defaults implied by method, looked up
// case-insensitively. The returned map is shared; callers must not mutate it.
func XCDefaults(method string) (map[string]any, bool) {
	d, ok := xcDefaults[strings.ToLower(method)]
	return d, ok
}
