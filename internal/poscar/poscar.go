// Package poscar writes the structure in the engine's POSCAR format
// (version 5 layout, with the symbol line before the counts).
package poscar

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/askeland/vaspin/internal/structure"
)

// WriteFile writes the sorted structure to path, whole-file overwrite.
func WriteFile(path string, sorted *structure.Sorted) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("poscar: create %s: %w", path, err)
	}
	if err := Write(f, sorted); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write emits the comment line, scale factor, cell, symbol and count lines,
// and the scaled coordinates. Sites come out in species-sorted order so the
// count line matches the POTCAR species order.
func Write(w io.Writer, sorted *structure.Sorted) error {
	symbols := make([]string, len(sorted.Species))
	counts := make([]string, len(sorted.Counts))
	for i, pot := range sorted.Species {
		symbols[i] = pot.Symbol
	}
	for i, n := range sorted.Counts {
		counts[i] = strconv.Itoa(n)
	}

	var b strings.Builder
	b.WriteString(strings.Join(symbols, " ") + "\n")
	b.WriteString("1.0\n")
	for _, row := range sorted.Atoms.Cell {
		b.WriteString(coordLine(row[0], row[1], row[2]))
	}
	b.WriteString(strings.Join(symbols, " ") + "\n")
	b.WriteString(strings.Join(counts, " ") + "\n")
	b.WriteString("Direct\n")
	for _, site := range sorted.Atoms.Sites {
		b.WriteString(coordLine(site.Position[0], site.Position[1], site.Position[2]))
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("poscar: %w", err)
	}
	return nil
}

func coordLine(x, y, z float64) string {
	return fmt.Sprintf("%20.16f %20.16f %20.16f\n", x, y, z)
}
