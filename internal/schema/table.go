package schema

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/delegate/internal/ir"
	"github.com/roach88/delegate/internal/metadata"
	"github.com/roach88/delegate/internal/queryir"
)

// CompileTable parses a CUE value into table metadata.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the table struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`table: Accounts: { primary_key: "accountid", ... }`)
//	t, err := CompileTable(v.LookupPath(cue.ParsePath("table.Accounts")))
func CompileTable(v cue.Value) (*metadata.Table, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	t := &metadata.Table{}

	// The table name is the struct label.
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		t.Name = labels[len(labels)-1].String()
	}

	pkVal := v.LookupPath(cue.ParsePath("primary_key"))
	if !pkVal.Exists() {
		return nil, &CompileError{
			Field:   "primary_key",
			Message: "primary_key is required",
			Pos:     v.Pos(),
		}
	}
	pk, err := pkVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	t.PrimaryKey = pk

	// Capabilities are optional; a table without any is never delegated.
	capsVal := v.LookupPath(cue.ParsePath("capabilities"))
	if capsVal.Exists() {
		t.Capabilities, err = parseCapabilities(capsVal)
		if err != nil {
			return nil, err
		}
	}

	t.Columns, err = parseColumns(v)
	if err != nil {
		return nil, err
	}
	if len(t.Columns) == 0 {
		return nil, &CompileError{
			Field:   "columns",
			Message: "at least one column is required",
			Pos:     v.Pos(),
		}
	}

	return t, nil
}

func parseCapabilities(v cue.Value) (queryir.Capability, error) {
	iter, err := v.List()
	if err != nil {
		return queryir.CapNone, formatCUEError(err)
	}
	var names []string
	for iter.Next() {
		name, err := iter.Value().String()
		if err != nil {
			return queryir.CapNone, formatCUEError(err)
		}
		names = append(names, name)
	}
	caps, err := queryir.ParseCapabilities(names)
	if err != nil {
		return queryir.CapNone, &CompileError{
			Field:   "capabilities",
			Message: err.Error(),
			Pos:     v.Pos(),
		}
	}
	return caps, nil
}

// parseColumns reads the columns struct in declaration order. Each field
// maps a column name to its storage type name.
func parseColumns(v cue.Value) ([]metadata.Column, error) {
	colsVal := v.LookupPath(cue.ParsePath("columns"))
	if !colsVal.Exists() {
		return nil, nil
	}

	iter, err := colsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var cols []metadata.Column
	for iter.Next() {
		typeName, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		kind, err := ir.ParseKind(typeName)
		if err != nil || !storable(kind) {
			return nil, &CompileError{
				Field:   "type",
				Message: fmt.Sprintf("column %q has unsupported type %q", iter.Label(), typeName),
				Pos:     iter.Value().Pos(),
			}
		}
		cols = append(cols, metadata.Column{Name: iter.Label(), Type: kind})
	}
	return cols, nil
}

// storable reports whether a column can hold values of kind k.
func storable(k ir.Kind) bool {
	switch k {
	case ir.KindBoolean, ir.KindNumber, ir.KindDecimal, ir.KindCurrency,
		ir.KindString, ir.KindGuid, ir.KindDateTime:
		return true
	default:
		return false
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
