package delegation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/delegate/internal/ir"
	"github.com/roach88/delegate/internal/testutil"
)

func TestArityViolationIsReturned(t *testing.T) {
	b := testutil.NewBuilder()
	table := b.Table(testutil.Accounts())
	root := b.Call(ir.FuncFilter, table.Type(), table)

	out, diags, err := Rewrite(root, testutil.Provider(), Options{})

	require.Error(t, err)
	assert.Nil(t, out)
	assert.Empty(t, diags)

	var cv *ContractViolation
	require.True(t, errors.As(err, &cv))
	assert.Equal(t, ErrCodeArity, cv.Code)
	assert.Equal(t, root.Span(), cv.Span)
	assert.Contains(t, err.Error(), "Filter called with 1 arguments")
	assert.Contains(t, err.Error(), "(this is a bug)")
}

func TestResultShapeViolation(t *testing.T) {
	b := testutil.NewBuilder()
	// First typed as a string cannot be produced by any plan.
	root := b.Call(ir.FuncFirst, ir.Scalar(ir.KindString), b.Table(testutil.Contacts()))

	_, _, err := Rewrite(root, testutil.Provider(), Options{})

	require.Error(t, err)
	var cv *ContractViolation
	require.ErrorAs(t, err, &cv)
	assert.Equal(t, ErrCodeResultShape, cv.Code)
}

func TestIsContractViolation(t *testing.T) {
	cv := &ContractViolation{Code: ErrCodeMalformedPlan, Message: "x"}
	assert.True(t, IsContractViolation(cv))
	assert.True(t, IsContractViolation(fmt.Errorf("compile: %w", cv)))
	assert.False(t, IsContractViolation(errors.New("plain")))
	assert.False(t, IsContractViolation(nil))
}

func TestContractViolationUnwrap(t *testing.T) {
	cause := errors.New("capability")
	cv := &ContractViolation{Code: ErrCodeCapability, Err: cause}
	assert.ErrorIs(t, cv, cause)
}

func TestForeignPanicPropagates(t *testing.T) {
	assert.PanicsWithValue(t, "boom", func() {
		var err error
		defer recoverViolation(&err)
		panic("boom")
	})
}
