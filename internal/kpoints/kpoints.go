// Package kpoints serializes the k-point sampling parameters into the
// engine's compact positional KPOINTS format. The syntax branches on the
// shape of the kpts value and a couple of flags, so mode selection is kept
// as an explicit state machine separate from the line emission.
package kpoints

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/askeland/vaspin/internal/params"
)

const header = "KPOINTS created by vaspin\n"

// Mode is the serialization branch selected from the inputs.
type Mode int

const (
	// ModeMonkhorst is an automatically generated Monkhorst-Pack grid.
	ModeMonkhorst Mode = iota
	// ModeGamma is an automatically generated gamma-centered grid.
	ModeGamma
	// ModeCartesian is an explicit point list in cartesian coordinates.
	ModeCartesian
	// ModeReciprocal is an explicit point list in reciprocal coordinates.
	ModeReciprocal
	// ModeLine is a band-structure line-mode path.
	ModeLine
)

func (m Mode) String() string {
	switch m {
	case ModeMonkhorst:
		return "Monkhorst-Pack"
	case ModeGamma:
		return "Gamma"
	case ModeCartesian:
		return "Cartesian"
	case ModeReciprocal:
		return "Reciprocal"
	case ModeLine:
		return "Line-mode"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ShapeError reports explicit k-points that do not carry the mandatory
// 3 coordinates + 1 weight.
type ShapeError struct {
	Indices []int
}

func (e *ShapeError) Error() string {
	parts := make([]string, len(e.Indices))
	for i, idx := range e.Indices {
		parts[i] = strconv.Itoa(idx)
	}
	return fmt.Sprintf("kpoints: points must have 3 coordinates and a weight, malformed at index %s",
		strings.Join(parts, ", "))
}

// Writer emits KPOINTS files from a store.
type Writer struct {
	log *zap.Logger
}

// NewWriter returns a KPOINTS writer logging through log.
func NewWriter(log *zap.Logger) *Writer {
	return &Writer{log: log.Named("kpoints")}
}

// selectMode determines the serialization branch, checked in order: absent
// or flat kpts mean automatic generation (gamma-centered when the gamma
// flag is truthy), an intersections count forces line mode, the reciprocal
// flag selects reciprocal, and anything else is cartesian.
func selectMode(store *params.Store) (Mode, int) {
	kpts, ok := store.Lookup("kpts")
	_, flat := kpts.([]float64)
	list, nested := kpts.([][]float64)

	if !ok || flat {
		if truthy(store.Get("gamma")) {
			return ModeGamma, 0
		}
		return ModeMonkhorst, 0
	}
	if !nested {
		// Unknown shape; treat as an empty explicit list so the
		// validation below reports it.
		list = nil
	}
	if n, ok := store.Lookup("kpts_nintersections"); ok {
		count, _ := n.(int)
		return ModeLine, count
	}
	if b, _ := store.Get("reciprocal").(bool); b {
		return ModeReciprocal, len(list)
	}
	return ModeCartesian, len(list)
}

// truthy mirrors the flag handling of the engine wrapper this replaces:
// booleans count as themselves, a non-empty shift triple counts as set.
func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case []float64:
		return len(x) > 0
	case nil:
		return false
	default:
		return false
	}
}

// WriteFile serializes the store's k-point parameters to path. Validation
// runs before the file is touched, so a malformed point list never leaves a
// partial file behind.
func (w *Writer) WriteFile(path string, store *params.Store) error {
	var buf bytes.Buffer
	if err := w.Write(&buf, store); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("kpoints: write %s: %w", path, err)
	}
	return nil
}

// Write serializes the store's k-point parameters: comment line, count,
// format name, then the coordinate block for the selected mode.
func (w *Writer) Write(buf *bytes.Buffer, store *params.Store) error {
	mode, count := selectMode(store)
	w.log.Debug("selected mode",
		zap.Stringer("mode", mode), zap.Int("count", count))

	buf.WriteString(header)
	buf.WriteString(strconv.Itoa(count) + "\n")
	buf.WriteString(mode.String() + "\n")

	switch mode {
	case ModeMonkhorst, ModeGamma:
		grid, ok := store.Get("kpts").([]float64)
		if !ok {
			grid = []float64{1, 1, 1}
		}
		writeRow(buf, grid)
		if shift, ok := store.Get("gamma").([]float64); ok && len(shift) > 0 {
			writeRow(buf, shift)
		} else {
			buf.WriteString("0.0 0.0 0.0\n")
		}

	case ModeCartesian, ModeReciprocal:
		list, _ := store.Get("kpts").([][]float64)
		var bad []int
		for i, point := range list {
			if len(point) != 4 {
				bad = append(bad, i)
			}
		}
		if len(bad) > 0 {
			return &ShapeError{Indices: bad}
		}
		for _, point := range list {
			writeRow(buf, point)
		}

	case ModeLine:
		if b, _ := store.Get("reciprocal").(bool); b {
			buf.WriteString("Reciprocal\n")
		} else {
			buf.WriteString("Cartesian\n")
		}
		// Line-mode points are written as given. The engine tolerates more
		// shapes here than in the explicit modes, so no field-count check.
		list, _ := store.Get("kpts").([][]float64)
		for _, point := range list {
			writeRow(buf, point)
		}
	}
	return nil
}

func writeRow(buf *bytes.Buffer, values []float64) {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	buf.WriteString(strings.Join(parts, " ") + "\n")
}
