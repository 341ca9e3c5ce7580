package rpc

import (
	"fmt"
)

// JSON-RPC 2.0 standard error codes.
const (
	// ParseError indicates invalid JSON was received.
	ParseError = -32700

	// InvalidRequest indicates the JSON sent is not a valid Request object.
	InvalidRequest = -32600

	// MethodNotFound indicates the method does not exist.
	MethodNotFound = -32601

	// InvalidParams indicates invalid method parameters.
	InvalidParams = -32602

	// InternalError indicates an internal JSON-RPC error.
	InternalError = -32603
)

// Server error codes, numbered like their Solana counterparts.
const (
	// EntryCleanedUp indicates the journal entry was pruned.
	EntryCleanedUp = -32001

	// SendTransactionPreflightFailure indicates a transaction was refused
	// before it executed.
	SendTransactionPreflightFailure = -32002

	// TransactionSignatureVerificationFailure indicates a bad signature.
	TransactionSignatureVerificationFailure = -32003

	// EntryNotAvailable indicates the journal entry does not exist yet.
	EntryNotAvailable = -32004

	// NodeUnhealthy indicates the node is unhealthy.
	NodeUnhealthy = -32005

	// TransactionHistoryNotAvailable indicates the journal is disabled.
	TransactionHistoryNotAvailable = -32011

	// ScanError indicates a scan/iteration error.
	ScanError = -32012

	// MinContextSlotNotReached indicates min context slot not yet reached.
	MinContextSlotNotReached = -32016
)

// Common error messages.
var (
	ErrParseError                     = NewRPCError(ParseError, "Parse error")
	ErrInvalidRequest                 = NewRPCError(InvalidRequest, "Invalid Request")
	ErrMethodNotFound                 = NewRPCError(MethodNotFound, "Method not found")
	ErrInvalidParams                  = NewRPCError(InvalidParams, "Invalid params")
	ErrInternalError                  = NewRPCError(InternalError, "Internal error")
	ErrNodeUnhealthy                  = NewRPCError(NodeUnhealthy, "Node is unhealthy")
	ErrTransactionHistoryNotAvailable = NewRPCError(TransactionHistoryNotAvailable, "Transaction history is not available from this node")
)

// NewRPCError creates a new RPC error.
func NewRPCError(code int, message string) *RPCError {
	return &RPCError{
		Code:    code,
		Message: message,
	}
}

// NewRPCErrorWithData creates a new RPC error with additional data.
func NewRPCErrorWithData(code int, message string, data interface{}) *RPCError {
	return &RPCError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("RPC error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// InvalidParamsError creates an invalid params error with a custom message.
func InvalidParamsError(msg string) *RPCError {
	return NewRPCError(InvalidParams, msg)
}

// InvalidParamsErrorf creates an invalid params error with a formatted message.
func InvalidParamsErrorf(format string, args ...interface{}) *RPCError {
	return NewRPCError(InvalidParams, fmt.Sprintf(format, args...))
}

// InternalServerErrorf creates an internal server error with a formatted message.
func InternalServerErrorf(format string, args ...interface{}) *RPCError {
	return NewRPCError(InternalError, fmt.Sprintf(format, args...))
}

// ScanErrorf creates an error for a failed account scan.
func ScanErrorf(format string, args ...interface{}) *RPCError {
	return NewRPCError(ScanError, fmt.Sprintf(format, args...))
}

// EntryNotAvailableError creates an error for a journal entry past the latest.
func EntryNotAvailableError(index uint64) *RPCError {
	return NewRPCErrorWithData(EntryNotAvailable,
		fmt.Sprintf("Journal entry %d is not available", index),
		map[string]uint64{"index": index})
}

// EntryCleanedUpError creates an error for a pruned journal entry.
func EntryCleanedUpError(index, oldest uint64) *RPCError {
	return NewRPCErrorWithData(EntryCleanedUp,
		fmt.Sprintf("Journal entry %d cleaned up, oldest available entry is %d", index, oldest),
		map[string]uint64{"index": index, "oldest": oldest})
}

// PreflightFailureError creates an error for a transaction that failed
// simulation, carrying the simulation result.
func PreflightFailureError(result *SimulationResult) *RPCError {
	msg := "Transaction simulation failed"
	if result.Err != nil {
		msg += ": " + *result.Err
	}
	return NewRPCErrorWithData(SendTransactionPreflightFailure, msg, result)
}

// SignatureVerificationError creates an error for a transaction whose
// signatures do not verify.
func SignatureVerificationError(err error) *RPCError {
	return NewRPCError(TransactionSignatureVerificationFailure, err.Error())
}

// MinContextSlotError creates an error for min context slot not reached.
func MinContextSlotError(minSlot, currentSlot uint64) *RPCError {
	return NewRPCErrorWithData(MinContextSlotNotReached,
		fmt.Sprintf("Minimum context slot %d has not been reached, current slot is %d", minSlot, currentSlot),
		map[string]uint64{"minSlot": minSlot, "currentSlot": currentSlot})
}
