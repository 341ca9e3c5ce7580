package svm

import (
	"errors"
	"fmt"
)

// Compute unit costs.
const (
	CUDefault = uint64(200_000)   // Default CU limit per transaction
	CUMax     = uint64(1_400_000) // Max CU limit per transaction

	CUInvokeBase           = uint64(1_000) // Cross-program invocation
	CUCreateProgramAddress = uint64(1_500) // One address derivation attempt

	CUSystemProgramDefault   = uint64(150)
	CUTokenProgramDefault    = uint64(2_000)
	CUAssociatedTokenDefault = uint64(3_000)
	CULockupProgramDefault   = uint64(1_000)
)

// ErrComputeExceeded is returned when compute units are exhausted.
var ErrComputeExceeded = errors.New("compute budget exceeded")

// ComputeMeter tracks the compute units of one transaction. A transaction
// executes on a single goroutine, so the meter is not synchronized.
type ComputeMeter struct {
	limit    uint64
	consumed uint64
}

// NewComputeMeter creates a meter with the given limit, clamped to CUMax.
func NewComputeMeter(limit uint64) *ComputeMeter {
	return &ComputeMeter{limit: min(limit, CUMax)}
}

// Consume charges cost units. Once the budget is exceeded the meter stays
// exhausted.
func (cm *ComputeMeter) Consume(cost uint64) error {
	if remaining := cm.Remaining(); cost > remaining {
		cm.consumed = cm.limit
		return fmt.Errorf("%w: %d units requested, %d remaining", ErrComputeExceeded, cost, remaining)
	}
	cm.consumed += cost
	return nil
}

func (cm *ComputeMeter) Remaining() uint64 {
	return cm.limit - cm.consumed
}

func (cm *ComputeMeter) Consumed() uint64 {
	return cm.consumed
}

func (cm *ComputeMeter) Limit() uint64 {
	return cm.limit
}
