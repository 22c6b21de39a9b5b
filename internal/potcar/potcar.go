// Package potcar concatenates the per-species potential files into the
// single POTCAR stream the engine reads. Order is load-bearing: it must
// match the species order of the POSCAR count line exactly.
package potcar

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/askeland/vaspin/internal/structure"
)

// Writer concatenates potential files found under Root.
type Writer struct {
	Root string
	log  *zap.Logger
}

// NewWriter returns a POTCAR writer reading potentials under root.
func NewWriter(root string, log *zap.Logger) *Writer {
	return &Writer{Root: root, log: log.Named("potcar")}
}

// WriteFile concatenates the species' potential files into path.
func (w *Writer) WriteFile(path string, species []structure.Potential) error {
	if w.Root == "" {
		return fmt.Errorf("potcar: no potentials directory configured (set potentials.root or VASP_PP_PATH)")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("potcar: create %s: %w", path, err)
	}
	if err := w.write(f, species); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (w *Writer) write(out io.Writer, species []structure.Potential) error {
	for _, pot := range species {
		src := filepath.Join(w.Root, pot.File)
		f, err := os.Open(src)
		if err != nil {
			return fmt.Errorf("potcar: potential for %s: %w", pot.Symbol, err)
		}
		_, err = io.Copy(out, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("potcar: copy %s: %w", src, err)
		}
		w.log.Debug("appended potential",
			zap.String("species", pot.Symbol), zap.String("file", src))
	}
	return nil
}
