package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/delegate/internal/ir"
	"github.com/roach88/delegate/internal/queryir"
)

const contactsTable = `
tables:
  - name: Contacts
    primary_key: contactid
    capabilities: [filter, sort, top, count]
    columns:
      - {name: contactid, type: guid}
      - {name: fullname, type: string}
      - {name: age, type: number}
    rows:
      - {contactid: c0000000-0000-0000-0000-000000000001, fullname: Ada, age: 36}
      - {contactid: c0000000-0000-0000-0000-000000000002, fullname: Grace, age: 85}
`

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "test.yaml", `
name: test_scenario
description: "Test scenario for validation"
`+contactsTable+`
variables:
  - {name: Limit, type: number, value: 18}
options:
  max_rows: 100
formula:
  call: CountRows
  args: [{table: Contacts}]
expect:
  plan: '__retrieveAggregate(Contacts, _, _, _, _, _, _, aggregate count)'
  diagnostics: []
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	require.Len(t, scenario.Tables, 1)
	assert.Equal(t, "contactid", scenario.Tables[0].PrimaryKey)
	assert.Len(t, scenario.Tables[0].Rows, 2)
	require.Len(t, scenario.Variables, 1)
	assert.Equal(t, 18, scenario.Variables[0].Value)
	assert.Equal(t, 100, scenario.Options.MaxRows)
	assert.Empty(t, scenario.Expect.Diagnostics)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
description: "Misspelled key"
tables:
  - name: Contacts
    primary_key: contactid
    capabilites: [filter]
    columns: [{name: contactid, type: guid}]
formula: {table: Contacts}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capabilites")
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: x\n" + contactsTable + "formula: {table: Contacts}\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: x\n" + contactsTable + "formula: {table: Contacts}\n",
			wantErr: "description is required",
		},
		{
			name:    "no tables",
			yaml:    "name: x\ndescription: x\nformula: {table: Contacts}\n",
			wantErr: "tables list is required",
		},
		{
			name:    "no formula",
			yaml:    "name: x\ndescription: x\n" + contactsTable,
			wantErr: "formula is required",
		},
		{
			name:    "negative max rows",
			yaml:    "name: x\ndescription: x\n" + contactsTable + "options: {max_rows: -1}\nformula: {table: Contacts}\n",
			wantErr: "max_rows must be non-negative",
		},
		{
			name: "variable shadows table",
			yaml: "name: x\ndescription: x\n" + contactsTable +
				"variables: [{name: Contacts, type: string, value: a}]\nformula: {table: Contacts}\n",
			wantErr: `name "Contacts" is already used`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTableDef_Metadata(t *testing.T) {
	def := TableDef{
		Name:         "Contacts",
		PrimaryKey:   "contactid",
		Capabilities: []string{"filter", "count"},
		Columns: []ColumnDef{
			{Name: "contactid", Type: "guid"},
			{Name: "age", Type: "number"},
		},
	}

	meta, err := def.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "Contacts", meta.Name)
	assert.True(t, meta.Capabilities.Has(queryir.CapFilter))
	assert.True(t, meta.Capabilities.Has(queryir.CapCount))
	assert.False(t, meta.Capabilities.Has(queryir.CapSort))
	kind, ok := meta.FieldType("age")
	require.True(t, ok)
	assert.Equal(t, ir.KindNumber, kind)

	def.PrimaryKey = "missing"
	_, err = def.Metadata()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary key")

	def.PrimaryKey = "contactid"
	def.Capabilities = []string{"teleport"}
	_, err = def.Metadata()
	require.Error(t, err)
}

func TestConvertValue(t *testing.T) {
	tests := []struct {
		kind ir.Kind
		in   any
		want ir.Value
	}{
		{ir.KindNumber, 5, ir.Int(5)},
		{ir.KindCurrency, 2500.5, ir.Decimal("2500.5")},
		{ir.KindString, "Ada", ir.String("Ada")},
		{ir.KindBoolean, true, ir.Bool(true)},
		{ir.KindNumber, nil, ir.Null{}},
	}
	for _, tt := range tests {
		got, err := convertValue(tt.kind, tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := convertValue(ir.KindNumber, true)
	assert.Error(t, err)
	_, err = convertValue(ir.KindGuid, "not-a-guid")
	assert.Error(t, err)
}

func TestLoadDir(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for i := 1; i < len(scenarios); i++ {
		assert.Less(t, scenarios[i-1].Name, scenarios[i].Name)
	}

	dir := t.TempDir()
	writeScenario(t, dir, "bad.yaml", "name: bad\n")
	_, err = LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yaml")
}
