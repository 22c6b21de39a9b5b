// Package resultdb persists a calculation's identity into a single-row
// database file next to the input deck. The row carries everything needed
// to reconnect an output directory to the parameters that produced it: the
// structure, the resort order, the parameter snapshot and any bookkeeping
// key/value pairs, including ones harvested from the directory name.
package resultdb

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/askeland/vaspin/internal/structure"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// AtomsRecord is the serialized form of the structure.
type AtomsRecord struct {
	Cell      [3][3]float64 `json:"cell"`
	Symbols   []string      `json:"symbols"`
	Positions [][3]float64  `json:"positions"`
	Magmoms   []float64     `json:"magmoms"`
}

// Row is the single database row.
type Row struct {
	ID            string         `json:"id"`
	Atoms         AtomsRecord    `json:"atoms"`
	KeyValuePairs map[string]any `json:"key_value_pairs"`
	Data          map[string]any `json:"data"`
}

// Record is the fresh calculation state folded into the row on every write.
type Record struct {
	Atoms      *structure.Atoms
	CalcDir    string
	Version    string
	Resort     []int
	Parameters map[string]any
	Species    []structure.Potential
}

// Options steers one write.
type Options struct {
	// Keys are extra key/value pairs for the row.
	Keys map[string]any
	// Data are extra data entries for the row.
	Data map[string]any
	// ParserToken, when non-empty, splits directory-name segments into
	// key/value pairs that are merged into Keys.
	ParserToken string
	// Overwrite replaces an existing file while preserving any of its
	// keys/data not explicitly deleted.
	Overwrite bool
	// Delete lists keys dropped from both the key/value pairs and the data
	// of the resulting row.
	Delete []string
}

// DB writes single-row database files.
type DB struct {
	log *zap.Logger
}

// New returns a result database writer logging through log.
func New(log *zap.Logger) *DB {
	return &DB{log: log.Named("resultdb")}
}

// Write builds the row from rec and opts and writes it to fname. With
// Overwrite set, keys and data already present in the file win over the
// freshly computed ones, so manual annotations survive regeneration.
func (db *DB) Write(fname string, rec Record, opts Options) error {
	keys := map[string]any{}
	for k, v := range opts.Keys {
		keys[k] = v
	}
	if opts.ParserToken != "" {
		for k, v := range ParseDirKeys(rec.CalcDir, opts.ParserToken) {
			keys[k] = v
		}
	}

	data := map[string]any{}
	for k, v := range opts.Data {
		data[k] = v
	}
	data["path"] = rec.CalcDir
	data["version"] = rec.Version
	data["resort"] = rec.Resort
	data["parameters"] = rec.Parameters
	data["ppp_list"] = rec.Species

	if opts.Overwrite {
		if prev, err := Read(fname); err == nil {
			for k, v := range prev.Data {
				data[k] = v
			}
			for k, v := range prev.KeyValuePairs {
				keys[k] = v
			}
		}
		for _, k := range opts.Delete {
			delete(keys, k)
			delete(data, k)
		}
	}

	row := Row{
		ID:            uuid.NewString(),
		Atoms:         atomsRecord(rec.Atoms),
		KeyValuePairs: keys,
		Data:          data,
	}

	raw, err := codec.MarshalIndent(&row, "", "  ")
	if err != nil {
		return fmt.Errorf("resultdb: encode row: %w", err)
	}
	if err := os.WriteFile(fname, raw, 0o644); err != nil {
		return fmt.Errorf("resultdb: write %s: %w", fname, err)
	}
	db.log.Debug("wrote row", zap.String("file", fname), zap.String("id", row.ID))
	return nil
}

// Read loads the single row from fname.
func Read(fname string) (*Row, error) {
	raw, err := os.ReadFile(fname)
	if err != nil {
		return nil, fmt.Errorf("resultdb: read %s: %w", fname, err)
	}
	var row Row
	if err := codec.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("resultdb: decode %s: %w", fname, err)
	}
	return &row, nil
}

func atomsRecord(a *structure.Atoms) AtomsRecord {
	rec := AtomsRecord{Cell: a.Cell}
	for _, site := range a.Sites {
		rec.Symbols = append(rec.Symbols, site.Symbol)
		rec.Positions = append(rec.Positions, site.Position)
		rec.Magmoms = append(rec.Magmoms, site.Magmom)
	}
	return rec
}

// ParseDirKeys extracts key/value pairs from the segments of path that
// contain token: "bandgap=1.2" with token "=" yields {"bandgap": 1.2}.
// Values are coerced by trying float, int and bool before falling back to
// the raw string.
func ParseDirKeys(path, token string) map[string]any {
	out := map[string]any{}
	for _, segment := range strings.Split(path, string(os.PathSeparator)) {
		if !strings.Contains(segment, token) {
			continue
		}
		parts := strings.SplitN(segment, token, 2)
		out[parts[0]] = coerce(parts[1])
	}
	return out
}

func coerce(value string) any {
	if strings.Contains(value, ".") {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	switch value {
	case "True":
		return true
	case "False":
		return false
	}
	return value
}
