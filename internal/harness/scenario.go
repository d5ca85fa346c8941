package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/roach88/delegate/internal/ir"
	"github.com/roach88/delegate/internal/metadata"
	"github.com/roach88/delegate/internal/queryir"
	"github.com/roach88/delegate/internal/store"
)

// Scenario defines one delegation conformance case: a set of remote tables
// with their rows, a bound formula over them, and what rewriting it must
// produce.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Tables are the certified remote tables and their contents.
	Tables []TableDef `yaml:"tables"`

	// Variables are table or scalar values the formula references by name.
	// They are never delegable.
	Variables []VariableDef `yaml:"variables,omitempty"`

	// Options override the delegation defaults.
	Options OptionsDef `yaml:"options,omitempty"`

	// Formula is the tree to rewrite, in the form read by DecodeFormula.
	Formula yaml.Node `yaml:"formula"`

	// Expect holds the assertions on the rewrite.
	Expect Expectations `yaml:"expect"`
}

// TableDef describes a remote table and its rows.
type TableDef struct {
	Name         string           `yaml:"name"`
	PrimaryKey   string           `yaml:"primary_key"`
	Capabilities []string         `yaml:"capabilities"`
	Columns      []ColumnDef      `yaml:"columns"`
	Rows         []map[string]any `yaml:"rows,omitempty"`
}

// ColumnDef is one stored column. Type is an ir kind name: string, number,
// decimal, currency, boolean, guid or datetime.
type ColumnDef struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// VariableDef is a named local value. With Values set it is a one-column
// table whose column is named Value; otherwise it is the scalar Value.
type VariableDef struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Value  any    `yaml:"value,omitempty"`
	Values []any  `yaml:"values,omitempty"`
}

// OptionsDef mirrors delegation.Options.
type OptionsDef struct {
	MaxRows  int  `yaml:"max_rows,omitempty"`
	Disabled bool `yaml:"disabled,omitempty"`
}

// Expectations are checked after the formula is rewritten and evaluated.
// Delegated and local evaluation must always agree; that check needs no
// expectation.
type Expectations struct {
	// Plan is the expected ir.Format of the rewritten tree. Empty skips it.
	Plan string `yaml:"plan,omitempty"`

	// Diagnostics lists the expected diagnostic keys in report order. An
	// empty list expects none.
	Diagnostics []string `yaml:"diagnostics"`

	// Result is the expected rendered value of the formula. Empty skips it.
	Result string `yaml:"result,omitempty"`

	// Queries lists the SQL the rewritten tree must run, in order. Empty
	// skips it.
	Queries []string `yaml:"queries,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation, so a
// typo like "capabilites:" is an error rather than an empty list.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Tables) == 0 {
		return fmt.Errorf("tables list is required and must be non-empty")
	}

	if s.Formula.Kind == 0 {
		return fmt.Errorf("formula is required")
	}

	if s.Options.MaxRows < 0 {
		return fmt.Errorf("options.max_rows must be non-negative")
	}

	seen := make(map[string]bool)
	for i, t := range s.Tables {
		if t.Name == "" {
			return fmt.Errorf("tables[%d]: name is required", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("tables[%d]: duplicate name %q", i, t.Name)
		}
		seen[t.Name] = true
		if t.PrimaryKey == "" {
			return fmt.Errorf("tables[%d]: primary_key is required", i)
		}
		if len(t.Columns) == 0 {
			return fmt.Errorf("tables[%d]: columns list is required", i)
		}
	}

	for i, v := range s.Variables {
		if v.Name == "" {
			return fmt.Errorf("variables[%d]: name is required", i)
		}
		if seen[v.Name] {
			return fmt.Errorf("variables[%d]: name %q is already used", i, v.Name)
		}
		seen[v.Name] = true
		if v.Type == "" {
			return fmt.Errorf("variables[%d]: type is required", i)
		}
	}

	return nil
}

// Metadata converts the definition to certified table metadata.
func (t TableDef) Metadata() (*metadata.Table, error) {
	caps, err := queryir.ParseCapabilities(t.Capabilities)
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", t.Name, err)
	}
	meta := &metadata.Table{Name: t.Name, PrimaryKey: t.PrimaryKey, Capabilities: caps}
	for _, c := range t.Columns {
		kind, err := ir.ParseKind(c.Type)
		if err != nil {
			return nil, fmt.Errorf("table %q column %q: %w", t.Name, c.Name, err)
		}
		meta.Columns = append(meta.Columns, metadata.Column{Name: c.Name, Type: kind})
	}
	if _, ok := meta.FieldType(t.PrimaryKey); !ok {
		return nil, fmt.Errorf("table %q: primary key %q is not a column", t.Name, t.PrimaryKey)
	}
	return meta, nil
}

// StoreRows converts the YAML rows to typed store rows.
func (t TableDef) StoreRows(meta *metadata.Table) ([]store.Row, error) {
	rows := make([]store.Row, len(t.Rows))
	for i, raw := range t.Rows {
		row := make(store.Row, len(raw))
		for name, v := range raw {
			kind, ok := meta.FieldType(name)
			if !ok {
				return nil, fmt.Errorf("table %q row %d: unknown column %q", t.Name, i, name)
			}
			val, err := convertValue(kind, v)
			if err != nil {
				return nil, fmt.Errorf("table %q row %d column %q: %w", t.Name, i, name, err)
			}
			row[name] = val
		}
		rows[i] = row
	}
	return rows, nil
}

// convertValue turns a YAML scalar into a value of kind. A YAML null is blank.
func convertValue(kind ir.Kind, v any) (ir.Value, error) {
	if v == nil {
		return ir.Null{}, nil
	}
	switch kind {
	case ir.KindBoolean:
		if b, ok := v.(bool); ok {
			return ir.Bool(b), nil
		}
	case ir.KindNumber, ir.KindDecimal, ir.KindCurrency:
		switch n := v.(type) {
		case int:
			return ir.Int(n), nil
		case float64:
			return ir.Decimal(strconv.FormatFloat(n, 'f', -1, 64)), nil
		case string:
			return ir.NewDecimal(n)
		}
	case ir.KindString, ir.KindDateTime:
		if s, ok := v.(string); ok {
			return ir.String(s), nil
		}
	case ir.KindGuid:
		if s, ok := v.(string); ok {
			return ir.ParseGuid(s)
		}
	}
	return nil, fmt.Errorf("cannot use %T %v as %s", v, v, kind)
}
