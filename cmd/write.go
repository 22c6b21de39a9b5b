package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/askeland/vaspin/internal/calc"
	"github.com/askeland/vaspin/internal/expand"
	"github.com/askeland/vaspin/internal/observability"
	"github.com/askeland/vaspin/internal/params"
	"github.com/askeland/vaspin/internal/structure"
)

var (
	writeDir       string
	structureFile  string
	parametersFile string
)

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Generate the input deck for one calculation directory.",
	Long: `Reads a structure file and a parameter file, expands macro keywords
(xc, ispin, ldau_luj, nsw, rwigs) into the engine parameters they imply, and
writes POSCAR, INCAR, KPOINTS, POTCAR and the result database row into the
calculation directory.`,
	RunE: runWrite,
}

func init() {
	writeCmd.Flags().StringVarP(&writeDir, "dir", "d", ".", "calculation directory")
	writeCmd.Flags().StringVarP(&structureFile, "structure", "s", "structure.yaml", "structure file")
	writeCmd.Flags().StringVarP(&parametersFile, "params", "p", "params.yaml", "parameter file")
	rootCmd.AddCommand(writeCmd)
}

func runWrite(cmd *cobra.Command, args []string) error {
	log := observability.GetLogger()

	atoms, err := loadStructure(structureFile)
	if err != nil {
		return err
	}
	updates, err := loadParameters(parametersFile)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(writeDir, 0o755); err != nil {
		return fmt.Errorf("create calculation directory: %w", err)
	}

	catalog := structure.Catalog{
		Root:   cfg.Potentials.ResolveRoot(),
		Family: cfg.Potentials.Family,
		Setups: cfg.Potentials.Setups,
	}
	c := calc.New(writeDir, atoms, catalog, Version, log)
	c.SetDBParser(cfg.DB.ParserToken)

	changed, err := c.Set(updates)
	if err != nil {
		return err
	}
	log.Info("parameters reconciled",
		zap.Int("count", len(updates)), zap.Strings("changed", changed))

	if err := c.WriteInput(); err != nil {
		return err
	}
	log.Info("input deck written", zap.String("dir", writeDir))
	return nil
}

// structureSpec is the on-disk structure file layout.
type structureSpec struct {
	Cell  [][]float64 `yaml:"cell"`
	Atoms []siteSpec  `yaml:"atoms"`
}

type siteSpec struct {
	Symbol   string    `yaml:"symbol"`
	Position []float64 `yaml:"position"`
	Magmom   float64   `yaml:"magmom"`
}

func loadStructure(path string) (*structure.Atoms, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read structure file: %w", err)
	}
	var spec structureSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("parse structure file %s: %w", path, err)
	}

	if len(spec.Cell) != 3 {
		return nil, fmt.Errorf("structure file %s: cell must have 3 rows, got %d", path, len(spec.Cell))
	}
	atoms := &structure.Atoms{}
	for i, row := range spec.Cell {
		if len(row) != 3 {
			return nil, fmt.Errorf("structure file %s: cell row %d must have 3 entries", path, i)
		}
		copy(atoms.Cell[i][:], row)
	}
	for i, site := range spec.Atoms {
		if site.Symbol == "" {
			return nil, fmt.Errorf("structure file %s: atom %d has no symbol", path, i)
		}
		if len(site.Position) != 3 {
			return nil, fmt.Errorf("structure file %s: atom %d position must have 3 entries", path, i)
		}
		atom := structure.Atom{Symbol: site.Symbol, Magmom: site.Magmom}
		copy(atom.Position[:], site.Position)
		atoms.Sites = append(atoms.Sites, atom)
	}
	if len(atoms.Sites) == 0 {
		return nil, fmt.Errorf("structure file %s: no atoms", path)
	}
	return atoms, nil
}

// loadParameters reads the parameter file into reconciler updates. A null
// value is an explicit removal; everything else is coerced into the value
// shape the keyword expects.
func loadParameters(path string) (params.Updates, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read parameter file: %w", err)
	}
	var entries map[string]any
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse parameter file %s: %w", path, err)
	}

	updates := make(params.Updates, len(entries))
	for key, val := range entries {
		if val == nil {
			updates[key] = params.Remove
			continue
		}
		coerced, err := coerceValue(key, val)
		if err != nil {
			return nil, fmt.Errorf("parameter file %s: %w", path, err)
		}
		updates[key] = params.Set(coerced)
	}
	return updates, nil
}

// coerceValue maps YAML shapes onto the internal value types of keywords
// with structured values. Plain scalars pass through untouched.
func coerceValue(key string, val any) (any, error) {
	switch key {
	case "kpts":
		list, ok := val.([]any)
		if !ok || len(list) == 0 {
			return nil, fmt.Errorf("kpts must be a grid triple or a point list")
		}
		if _, nested := list[0].([]any); nested {
			points := make([][]float64, len(list))
			for i, p := range list {
				row, err := cast.ToFloat64SliceE(p)
				if err != nil {
					return nil, fmt.Errorf("kpts point %d: %w", i, err)
				}
				points[i] = row
			}
			return points, nil
		}
		return cast.ToFloat64SliceE(val)

	case "gamma":
		if b, ok := val.(bool); ok {
			return b, nil
		}
		return cast.ToFloat64SliceE(val)

	case "magmom":
		return cast.ToFloat64SliceE(val)

	case "ldau_luj":
		table, ok := val.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("ldau_luj must map species to {L, U, J}")
		}
		out := make(map[string]expand.LUJ, len(table))
		for sym, entry := range table {
			fields, err := cast.ToStringMapE(entry)
			if err != nil {
				return nil, fmt.Errorf("ldau_luj entry for %s: %w", sym, err)
			}
			out[sym] = expand.LUJ{
				L: cast.ToInt(fields["L"]),
				U: cast.ToFloat64(fields["U"]),
				J: cast.ToFloat64(fields["J"]),
			}
		}
		return out, nil

	case "rwigs":
		table, err := cast.ToStringMapE(val)
		if err != nil {
			return nil, fmt.Errorf("rwigs must map species to radii: %w", err)
		}
		out := make(map[string]float64, len(table))
		for sym, r := range table {
			out[sym] = cast.ToFloat64(r)
		}
		return out, nil

	case "setups":
		return cast.ToStringMapStringE(val)

	default:
		return val, nil
	}
}
