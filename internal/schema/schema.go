// Package schema loads the protocol schema files that name the F_<key>
// columns of hierarchy tables.
package schema

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/rs/zerolog"

	"elnreport/internal/eln"
)

// File is one named schema file on disk.
type File struct {
	Name string
	Path string
}

// DefaultFiles lists the protocol schemas shipped in dir.
func DefaultFiles(dir string) []File {
	return []File{
		{Name: "media_feed_schema", Path: filepath.Join(dir, "Media Feed Reagent Solution.xml")},
		{Name: "fed_batch_schema", Path: filepath.Join(dir, "FedBatch Conditions-DataCollection-CBD-UBD.xml")},
		{Name: "vessel_master_schema", Path: filepath.Join(dir, "Vessel-BatchVolume Master.xml")},
		{Name: "sample_prep_schema", Path: filepath.Join(dir, "Sample Preparation.xml")},
		{Name: "seed_train_schema", Path: filepath.Join(dir, "Seed Train-CBD-UBD.xml")},
	}
}

// Mapping maps internal column tags (F_<key>) to display names for one table.
type Mapping map[string]string

// Snapshot is an immutable set of per-table mappings.
type Snapshot struct {
	tables map[string]Mapping
}

// Table returns the mapping for a table name. The result must not be modified.
func (s *Snapshot) Table(name string) Mapping {
	if s == nil {
		return nil
	}
	return s.tables[name]
}

// Tables returns the number of tables with a mapping.
func (s *Snapshot) Tables() int {
	if s == nil {
		return 0
	}
	return len(s.tables)
}

// NewSnapshot copies tables into a Snapshot. Used by tests and the builtin set.
func NewSnapshot(tables map[string]Mapping) *Snapshot {
	out := make(map[string]Mapping, len(tables))
	for name, m := range tables {
		cp := make(Mapping, len(m))
		for k, v := range m {
			cp[k] = v
		}
		out[name] = cp
	}
	return &Snapshot{tables: out}
}

// builtinTables are mappings that exist regardless of which schema files load.
func builtinTables() map[string]Mapping {
	return map[string]Mapping{
		"Media Equilibration and Readiness for Vial Thaw": {
			"F_95":  "MFSR Name",
			"F_96":  "CO2 Incubator ID/ Water Bath ID",
			"F_97":  "Set Temp oC",
			"F_98":  "Displayed Temp oC",
			"F_99":  "Set CO2(%)",
			"F_100": "Displayed CO2(%)",
			"F_101": "Set Relative Humidity (%)",
			"F_102": "Displayed Relative Humidity (%)",
			"F_103": "Set Agitation (RPM)",
			"F_104": "Displayed agitation (RPM)",
			"F_105": "Volume of Media(mL)",
			"F_106": "Incubation St time",
			"F_107": "Incubation End Time",
			"F_108": "Incubation Duration",
		},
	}
}

// Merge parses one schema document and adds its table fields into tables.
// Later fields overwrite earlier ones with the same table and key.
func Merge(tables map[string]Mapping, data []byte) error {
	root, err := eln.Parse(data)
	if err != nil {
		return err
	}
	for _, pv := range root.Descendants("protocolVersion") {
		for _, table := range pv.ChildrenNamed("table") {
			name := table.Attr("name", "")
			if name == "" {
				continue
			}
			m, ok := tables[name]
			if !ok {
				m = Mapping{}
				tables[name] = m
			}
			for _, field := range table.ChildrenNamed("field") {
				key := field.Attr("key", "")
				display := field.Attr("name", "")
				if key != "" && display != "" {
					m["F_"+key] = display
				}
			}
		}
	}
	return nil
}

// Load builds a Snapshot from the builtin tables and every readable file.
// Missing and malformed files are logged and skipped.
func Load(files []File, logger zerolog.Logger) *Snapshot {
	tables := builtinTables()
	for _, f := range files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				logger.Warn().Str("schema", f.Name).Str("path", f.Path).Msg("schema file not found, skipping")
			} else {
				logger.Error().Err(err).Str("schema", f.Name).Str("path", f.Path).Msg("schema file unreadable")
			}
			continue
		}
		if err := Merge(tables, data); err != nil {
			logger.Error().Err(err).Str("schema", f.Name).Str("path", f.Path).Msg("schema file could not be parsed")
			continue
		}
	}
	return &Snapshot{tables: tables}
}

// Registry holds the current Snapshot. It is safe for concurrent use.
type Registry struct {
	files   []File
	logger  zerolog.Logger
	current atomic.Pointer[Snapshot]
}

// NewRegistry loads files once and returns the registry.
func NewRegistry(files []File, logger zerolog.Logger) *Registry {
	r := &Registry{files: files, logger: logger}
	r.Reload()
	return r
}

// Reload re-reads the schema files and atomically swaps the snapshot.
func (r *Registry) Reload() *Snapshot {
	s := Load(r.files, r.logger)
	r.current.Store(s)
	r.logger.Info().Int("tables", s.Tables()).Msg("schema mappings loaded")
	return s
}

// Snapshot returns the current mappings.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// Missing returns the paths of configured schema files that do not exist.
func (r *Registry) Missing() []string {
	var out []string
	for _, f := range r.files {
		if _, err := os.Stat(f.Path); err != nil {
			out = append(out, f.Path)
		}
	}
	return out
}

// CheckDir logs at error level when dir or any configured file is missing.
// The service still starts; conversions fall back to the builtin mappings.
func (r *Registry) CheckDir(dir string) error {
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		r.logger.Error().Str("schema_dir", dir).Msg("schema directory does not exist, schemas cannot be loaded")
		return fmt.Errorf("schema directory %q does not exist", dir)
	}
	if missing := r.Missing(); len(missing) > 0 {
		r.logger.Error().Strs("missing", missing).Msg("schema files are missing, hierarchy tables may lack column names")
		return fmt.Errorf("%d schema files missing", len(missing))
	}
	return nil
}
