package delegation

import (
	"errors"
	"fmt"

	"github.com/roach88/delegate/internal/ir"
)

// ContractViolationCode categorizes contract violations.
type ContractViolationCode string

const (
	// ErrCodeArity: a table function has an argument count its signature
	// does not allow.
	ErrCodeArity ContractViolationCode = "DLG-BUG-001"

	// ErrCodeResultShape: a candidate reached the materializer with a
	// result type that no plan can produce.
	ErrCodeResultShape ContractViolationCode = "DLG-BUG-002"

	// ErrCodeCapability: a plan requests a capability its table lacks.
	ErrCodeCapability ContractViolationCode = "DLG-BUG-003"

	// ErrCodeMalformedPlan: a plan failed structural validation.
	ErrCodeMalformedPlan ContractViolationCode = "DLG-BUG-004"
)

// ContractViolation reports input a correct binder never produces, or a
// planner defect. Unlike diagnostics it aborts the pass.
type ContractViolation struct {
	Code    ContractViolationCode
	Message string
	Span    ir.Span

	// Err is the underlying cause, when there is one.
	Err error
}

// Error implements the error interface.
func (e *ContractViolation) Error() string {
	return fmt.Sprintf("[%s] %s: %s (this is a bug)", e.Code, e.Span, e.Message)
}

func (e *ContractViolation) Unwrap() error {
	return e.Err
}

// IsContractViolation returns true if err is or wraps a ContractViolation.
// Uses errors.As to handle wrapped errors.
func IsContractViolation(err error) bool {
	var cv *ContractViolation
	return errors.As(err, &cv)
}

// violate aborts the pass. The panic is recovered by Planner.Rewrite and
// returned as an error; any other panic propagates.
func violate(code ContractViolationCode, span ir.Span, cause error, format string, args ...any) {
	panic(&ContractViolation{Code: code, Message: fmt.Sprintf(format, args...), Span: span, Err: cause})
}

// recoverViolation turns a ContractViolation panic into *errp.
func recoverViolation(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if cv, ok := r.(*ContractViolation); ok {
		*errp = cv
		return
	}
	panic(r)
}
