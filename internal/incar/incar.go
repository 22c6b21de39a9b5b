// Package incar serializes the parameter store into the engine's INCAR
// key/value format. The format is whitespace sensitive and the engine is
// picky about literal forms, so rendering rules live here and nowhere else.
package incar

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/askeland/vaspin/internal/params"
	"github.com/askeland/vaspin/internal/structure"
)

const header = "INCAR created by vaspin\n"

// specialKeys are structural settings that steer the writers or the
// potential selection rather than the engine itself. They live in the store
// but never appear in INCAR.
var specialKeys = map[string]struct{}{
	"xc":                  {},
	"pp":                  {},
	"setups":              {},
	"ldau_luj":            {},
	"kpts":                {},
	"gamma":               {},
	"reciprocal":          {},
	"kpts_nintersections": {},
}

// Writer emits INCAR files from a store.
type Writer struct {
	log *zap.Logger
}

// NewWriter returns an INCAR writer logging through log.
func NewWriter(log *zap.Logger) *Writer {
	return &Writer{log: log.Named("incar")}
}

// WriteFile serializes the store to path, whole-file overwrite.
func (w *Writer) WriteFile(path string, store *params.Store, species []structure.Potential) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("incar: create %s: %w", path, err)
	}
	if err := w.Write(f, store, species); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write serializes the store. One directive per line in store insertion
// order, " KEY = value", upper-case keys. Writing the same store twice
// produces byte-identical output.
func (w *Writer) Write(out io.Writer, store *params.Store, species []structure.Potential) error {
	if _, err := io.WriteString(out, header); err != nil {
		return fmt.Errorf("incar: %w", err)
	}
	for _, key := range store.Keys() {
		if _, special := specialKeys[key]; special {
			continue
		}
		val := store.Get(key)
		if val == nil {
			// nil is the unset sentinel for stores populated outside the
			// reconciler; it never reaches the file.
			continue
		}
		w.log.Debug("rendering directive",
			zap.String("key", key), zap.Any("value", val))

		rendered, err := renderValue(key, val, species)
		if err != nil {
			return err
		}
		line := fmt.Sprintf(" %s = %s\n", strings.ToUpper(key), rendered)
		if _, err := io.WriteString(out, line); err != nil {
			return fmt.Errorf("incar: %w", err)
		}
	}
	return nil
}

// renderValue applies the per-type formatting rules, in precedence order:
// the rwigs quirk, booleans, strings, sequences, then plain scalars.
func renderValue(key string, val any, species []structure.Potential) (string, error) {
	// The engine wants an extra leading space before the radius block. It
	// reads wrong without it, so the quirk is preserved exactly.
	if key == "rwigs" {
		block, err := renderRwigs(val, species)
		if err != nil {
			return "", err
		}
		return " " + block, nil
	}

	switch v := val.(type) {
	case bool:
		if v {
			return ".TRUE.", nil
		}
		return ".FALSE.", nil
	case string:
		return v, nil
	}

	rv := reflect.ValueOf(val)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = renderScalar(rv.Index(i).Interface())
		}
		return strings.Join(parts, " "), nil
	}

	return renderScalar(val), nil
}

// renderRwigs joins the radii in species order. The value is either the
// already ordered slice the rwigs macro produced, or the raw species to
// radius mapping when the caller bypassed the macro.
func renderRwigs(val any, species []structure.Potential) (string, error) {
	switch v := val.(type) {
	case []float64:
		parts := make([]string, len(v))
		for i, r := range v {
			parts[i] = renderScalar(r)
		}
		return strings.Join(parts, " "), nil
	case map[string]float64:
		parts := make([]string, len(species))
		for i, pot := range species {
			r, ok := v[pot.Symbol]
			if !ok {
				return "", fmt.Errorf("incar: rwigs has no radius for species %s", pot.Symbol)
			}
			parts[i] = renderScalar(r)
		}
		return strings.Join(parts, " "), nil
	default:
		return "", fmt.Errorf("incar: rwigs wants radii, got %T", val)
	}
}

func renderScalar(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case bool:
		if x {
			return ".TRUE."
		}
		return ".FALSE."
	default:
		return fmt.Sprintf("%v", v)
	}
}
