package schema

import (
	"fmt"
	"strings"

	"github.com/roach88/delegate/internal/ir"
	"github.com/roach88/delegate/internal/metadata"
	"github.com/roach88/delegate/internal/queryir"
)

// Validation error codes (E100-E199)
const (
	ErrTableNameEmpty    = "E101" // table name is required
	ErrTableNoColumns    = "E102" // at least one column required
	ErrPrimaryKeyMissing = "E103" // primary key is not a column
	ErrInvalidColumnType = "E104" // column type cannot be stored
	ErrDuplicateName     = "E105" // duplicate table or column name
	ErrPrimaryKeyType    = "E106" // primary key must be a guid column
	ErrUnknownCapability = "E107" // capability bits outside the known set
)

// ValidationError represents a table metadata validation error.
type ValidationError struct {
	Table   string `json:"table,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("[%s] %s.%s: %s", e.Code, e.Table, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks every table and the set as a whole.
// Returns all errors found (does not fail-fast).
func Validate(tables []*metadata.Table) []ValidationError {
	var errs []ValidationError
	names := make(map[string]bool)
	for i, t := range tables {
		if t.Name != "" && names[t.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("tables[%d].name", i),
				Message: fmt.Sprintf("duplicate table name: %q", t.Name),
				Code:    ErrDuplicateName,
			})
		}
		names[t.Name] = true
		errs = append(errs, ValidateTable(t)...)
	}
	return errs
}

// ValidateTable checks one table's metadata.
func ValidateTable(t *metadata.Table) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Table:   t.Name,
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
		})
	}

	// E101: name is required
	if strings.TrimSpace(t.Name) == "" {
		add("name", ErrTableNameEmpty, "table name is required and must be non-empty")
	}

	// E102: at least one column required
	if len(t.Columns) == 0 {
		add("columns", ErrTableNoColumns, "at least one column is required")
	}

	seen := make(map[string]bool)
	for i, c := range t.Columns {
		// E105: duplicate column name
		if seen[c.Name] {
			add(fmt.Sprintf("columns[%d].name", i), ErrDuplicateName, "duplicate column name: %q", c.Name)
		}
		seen[c.Name] = true

		// E104: the column must be storable
		if !storable(c.Type) {
			add(fmt.Sprintf("columns[%d].type", i), ErrInvalidColumnType, "invalid type %q for column %q", c.Type, c.Name)
		}
	}

	// E103/E106: the primary key is a guid column
	if kind, ok := t.FieldType(t.PrimaryKey); !ok {
		add("primary_key", ErrPrimaryKeyMissing, "primary key %q is not a column", t.PrimaryKey)
	} else if kind != ir.KindGuid {
		add("primary_key", ErrPrimaryKeyType, "primary key %q must be a guid column, got %s", t.PrimaryKey, kind)
	}

	// E107: only known capability bits
	if t.Capabilities&^queryir.CapAll != 0 {
		add("capabilities", ErrUnknownCapability, "unknown capability bits %#x", uint32(t.Capabilities&^queryir.CapAll))
	}

	return errs
}
