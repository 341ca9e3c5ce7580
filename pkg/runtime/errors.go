package runtime

import (
	"errors"
	"fmt"

	"github.com/fortiblox/x1-lockup/pkg/svm"
)

var (
	// ErrMissingSignature is returned when an instruction declares a signer
	// whose signature the transaction does not carry.
	ErrMissingSignature = errors.New("transaction is missing a required signature")

	// ErrEmptyTransaction is returned for a transaction with no instructions.
	ErrEmptyTransaction = errors.New("transaction has no instructions")

	// ErrTooManyAccounts is returned when a transaction references more
	// accounts than the runtime loads.
	ErrTooManyAccounts = errors.New("transaction references too many accounts")
)

// InstructionError reports the failure of one instruction of a transaction.
type InstructionError struct {
	Index int
	Err   error
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("instruction %d failed: %v", e.Index, e.Err)
}

func (e *InstructionError) Unwrap() error {
	return e.Err
}

// CustomCode returns the program-defined error code, if the failure was a
// custom program error.
func (e *InstructionError) CustomCode() (uint32, bool) {
	var custom svm.CustomError
	if errors.As(e.Err, &custom) {
		return custom.Code(), true
	}
	return 0, false
}
