// Package structure models the atomic structure a calculation runs on and
// derives the canonical species ordering that per-species parameters and the
// POTCAR concatenation must align with.
package structure

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Atom is one site in the structure. Position is in scaled (direct)
// coordinates relative to the cell.
type Atom struct {
	Symbol   string
	Position [3]float64
	Magmom   float64
}

// Atoms is the full structure handed in by the caller.
type Atoms struct {
	Cell  [3][3]float64
	Sites []Atom
}

// Symbols returns the per-site chemical symbols in site order.
func (a *Atoms) Symbols() []string {
	out := make([]string, len(a.Sites))
	for i, s := range a.Sites {
		out[i] = s.Symbol
	}
	return out
}

// Potential is one entry of the species order: a distinct chemical species,
// the potential file that describes it, and its valence electron count.
// Every per-species array (magnetic moments, Hubbard parameters, sphere
// radii) aligns positionally with a slice of these.
type Potential struct {
	Symbol  string
	File    string
	Valence float64
}

// Sorted is the result of the stable species sort: the structure regrouped
// by species, the index mapping back to the original site order, and the
// species order itself.
type Sorted struct {
	Atoms   *Atoms
	Resort  []int
	Species []Potential
	Counts  []int
}

// Sort groups the sites of a by species, preserving the order in which each
// species first appears and the relative order of sites within a species.
// Resort[i] is the original index of sorted site i.
func Sort(a *Atoms, cat *Catalog) (*Sorted, error) {
	var symbols []string
	bySymbol := make(map[string][]int)
	for i, site := range a.Sites {
		if _, seen := bySymbol[site.Symbol]; !seen {
			symbols = append(symbols, site.Symbol)
		}
		bySymbol[site.Symbol] = append(bySymbol[site.Symbol], i)
	}

	sorted := &Atoms{Cell: a.Cell}
	var resort []int
	var species []Potential
	var counts []int
	for _, sym := range symbols {
		idx := bySymbol[sym]
		pot, err := cat.Potential(sym)
		if err != nil {
			return nil, err
		}
		species = append(species, pot)
		counts = append(counts, len(idx))
		for _, i := range idx {
			sorted.Sites = append(sorted.Sites, a.Sites[i])
			resort = append(resort, i)
		}
	}

	return &Sorted{Atoms: sorted, Resort: resort, Species: species, Counts: counts}, nil
}

// Magmoms returns the per-site magnetic moments of the sorted structure, in
// sorted order. This is the array ispin=2 derives magmom from.
func (s *Sorted) Magmoms() []float64 {
	out := make([]float64, len(s.Atoms.Sites))
	for i, site := range s.Atoms.Sites {
		out[i] = site.Magmom
	}
	return out
}

// Catalog locates potential files. Root is the potentials tree (usually
// $VASP_PP_PATH), Family the functional subdirectory (LDA, GGA, PBE), and
// Setups maps a species symbol to a directory suffix selecting a non-default
// potential variant (for example "Li" -> "_sv").
type Catalog struct {
	Root   string
	Family string
	Setups map[string]string
}

// Potential resolves the potential entry for one species. The valence count
// is read from the ZVAL line of the potential file when the file exists; a
// missing file is not an error here because the species order is needed long
// before POTCAR time, but an unreadable ZVAL leaves Valence at zero.
func (c *Catalog) Potential(symbol string) (Potential, error) {
	if symbol == "" {
		return Potential{}, fmt.Errorf("structure: empty species symbol")
	}
	dir := symbol
	if suffix, ok := c.Setups[symbol]; ok {
		dir = symbol + suffix
	}
	family := c.Family
	if family == "" {
		family = "potpaw_PBE"
	}
	file := filepath.Join(family, dir, "POTCAR")

	pot := Potential{Symbol: symbol, File: file}
	if c.Root != "" {
		if z, err := readZval(filepath.Join(c.Root, file)); err == nil {
			pot.Valence = z
		}
	}
	return pot, nil
}

// readZval scans a potential file header for the ZVAL field, e.g.
// "   POMASS =  55.847; ZVAL   =    8.000    mass and valenz".
func readZval(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		i := strings.Index(line, "ZVAL")
		if i < 0 {
			continue
		}
		rest := line[i+len("ZVAL"):]
		if j := strings.Index(rest, "="); j >= 0 {
			rest = rest[j+1:]
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		return strconv.ParseFloat(strings.TrimSuffix(fields[0], ";"), 64)
	}
	return 0, fmt.Errorf("structure: no ZVAL field in %s", path)
}
