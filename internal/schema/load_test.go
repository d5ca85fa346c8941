package schema

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/delegate/internal/ir"
)

func TestLoadDir(t *testing.T) {
	result, errs := LoadDir("testdata/crm", LoadModeCollectAll)
	require.Empty(t, errs)
	require.NotNil(t, result)

	assert.Equal(t, 1, result.FileCount)
	require.Len(t, result.Tables, 2)
	assert.Equal(t, "Accounts", result.Tables[0].Name)
	assert.Equal(t, "Contacts", result.Tables[1].Name)

	p := result.Provider()
	tbl, ok := p.Table(ir.Symbol{Name: "Contacts", Kind: ir.SymbolTable})
	require.True(t, ok)
	assert.Equal(t, "contactid", tbl.PrimaryKey)
}

func TestLoadDirCollectsAllErrors(t *testing.T) {
	result, errs := LoadDir("testdata/broken", LoadModeCollectAll)
	require.NotNil(t, result)
	require.Len(t, errs, 2)

	var loadErr *LoadError
	require.True(t, errors.As(errs[0], &loadErr))
	assert.Equal(t, ErrInvalidColumnType, loadErr.Code)
	assert.Contains(t, loadErr.Message, "table.Leads")

	var verr ValidationError
	require.True(t, errors.As(errs[1], &verr))
	assert.Equal(t, ErrPrimaryKeyType, verr.Code)
	assert.Equal(t, "Orders", verr.Table)
}

func TestLoadDirFailFast(t *testing.T) {
	_, errs := LoadDir("testdata/broken", LoadModeFailFast)
	require.Len(t, errs, 1)
}

func TestLoadDirMissing(t *testing.T) {
	_, errs := LoadDir(filepath.Join(t.TempDir(), "nope"), LoadModeCollectAll)
	require.Len(t, errs, 1)
	var loadErr *LoadError
	require.True(t, errors.As(errs[0], &loadErr))
	assert.Equal(t, ErrCodeNotFound, loadErr.Code)
}

func TestLoadDirEmpty(t *testing.T) {
	_, errs := LoadDir(t.TempDir(), LoadModeCollectAll)
	require.Len(t, errs, 1)
	var loadErr *LoadError
	require.True(t, errors.As(errs[0], &loadErr))
	assert.Equal(t, ErrCodeNoFiles, loadErr.Code)
}
