package schema

import (
	"errors"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/delegate/internal/ir"
	"github.com/roach88/delegate/internal/metadata"
	"github.com/roach88/delegate/internal/queryir"
)

func compileTestTable(t *testing.T, src, name string) (*metadata.Table, error) {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())
	return CompileTable(v.LookupPath(cue.ParsePath("table." + name)))
}

func TestCompileTableBasic(t *testing.T) {
	tbl, err := compileTestTable(t, `
		table: Accounts: {
			primary_key: "accountid"
			capabilities: ["filter", "sort", "top"]
			columns: {
				accountid: "guid"
				name: "string"
				revenue: "number"
				creditlimit: "currency"
			}
		}
	`, "Accounts")
	require.NoError(t, err)

	assert.Equal(t, "Accounts", tbl.Name)
	assert.Equal(t, "accountid", tbl.PrimaryKey)
	assert.Equal(t, queryir.CapFilter|queryir.CapSort|queryir.CapTop, tbl.Capabilities)
	assert.Equal(t, []metadata.Column{
		{Name: "accountid", Type: ir.KindGuid},
		{Name: "name", Type: ir.KindString},
		{Name: "revenue", Type: ir.KindNumber},
		{Name: "creditlimit", Type: ir.KindCurrency},
	}, tbl.Columns)
}

func TestCompileTableNoCapabilities(t *testing.T) {
	tbl, err := compileTestTable(t, `
		table: Archive: {
			primary_key: "id"
			columns: id: "guid"
		}
	`, "Archive")
	require.NoError(t, err)
	assert.Equal(t, queryir.CapNone, tbl.Capabilities)
}

func TestCompileTableErrors(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		wantField string
	}{
		{
			name:      "missing primary key",
			src:       `table: T: { columns: id: "guid" }`,
			wantField: "primary_key",
		},
		{
			name:      "no columns",
			src:       `table: T: { primary_key: "id" }`,
			wantField: "columns",
		},
		{
			name:      "unknown type",
			src:       `table: T: { primary_key: "id", columns: { id: "guid", score: "float" } }`,
			wantField: "type",
		},
		{
			name:      "unstorable type",
			src:       `table: T: { primary_key: "id", columns: { id: "guid", rows: "table" } }`,
			wantField: "type",
		},
		{
			name:      "unknown capability",
			src:       `table: T: { primary_key: "id", capabilities: ["teleport"], columns: id: "guid" }`,
			wantField: "capabilities",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileTestTable(t, tt.src, "T")
			require.Error(t, err)
			var compileErr *CompileError
			require.True(t, errors.As(err, &compileErr), "got %T: %v", err, err)
			assert.Equal(t, tt.wantField, compileErr.Field)
		})
	}
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "columns", Message: "at least one column is required"}
	assert.Equal(t, "columns: at least one column is required", err.Error())
}
