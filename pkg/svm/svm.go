// Package svm defines the contract between native programs and the ledger
// runtime that hosts them.
//
// A program sees a single instruction at a time: an ordered list of account
// infos, the instruction data, and an InvokeContext giving it the ledger
// clock, rent parameters, logging and cross-program invocation. Programs
// mutate the account infos in place; the runtime verifies and commits the
// result atomically.
package svm

import (
	"errors"

	"github.com/fortiblox/x1-lockup/internal/types"
	"github.com/fortiblox/x1-lockup/pkg/pda"
)

// Builtin instruction errors. These mirror the host's generic failure
// conditions and are shared by every program.
var (
	ErrInvalidInstructionData      = errors.New("invalid instruction data")
	ErrInvalidAccountData          = errors.New("invalid account data for instruction")
	ErrInvalidAccountOwner         = errors.New("invalid account owner")
	ErrAccountAlreadyInitialized   = errors.New("account already initialized")
	ErrUninitializedAccount        = errors.New("attempt to operate on an uninitialized account")
	ErrMissingRequiredSignature    = errors.New("missing required signature for instruction")
	ErrIncorrectAuthority          = errors.New("incorrect authority provided")
	ErrNotEnoughAccountKeys        = errors.New("insufficient account keys for instruction")
	ErrArithmeticOverflow          = errors.New("arithmetic overflowed")
	ErrIncorrectProgramID          = errors.New("incorrect program id for instruction")
	ErrInsufficientFunds           = errors.New("insufficient funds for instruction")
	ErrInvalidArgument             = errors.New("invalid program argument")
	ErrAccountAlreadyInUse         = errors.New("account already in use")
	ErrAccountNotRentExempt        = errors.New("account not rent exempt")
	ErrAccountDataTooLarge         = errors.New("account data too large")
	ErrInvalidSeeds                = errors.New("provided seeds do not result in a valid address")
	ErrUnsupportedProgramID        = errors.New("unsupported program id")
	ErrPrivilegeEscalation         = errors.New("cross-program invocation with unauthorized signer or writable account")
	ErrCallDepth                   = errors.New("cross-program invocation call depth too deep")
	ErrMissingAccount              = errors.New("an account required by the instruction is missing")
	ErrExternalAccountDataModified = errors.New("instruction modified data of an account it does not own")
	ErrExternalAccountLamportSpend = errors.New("instruction spent from the balance of an account it does not own")
	ErrReadonlyDataModified        = errors.New("instruction modified data of a read-only account")
	ErrReadonlyLamportChange       = errors.New("instruction changed the balance of a read-only account")
	ErrModifiedProgramID           = errors.New("instruction illegally modified the program id of an account")
	ErrExecutableModified          = errors.New("instruction changed executable bit of an account")
	ErrUnbalancedInstruction       = errors.New("sum of account balances before and after instruction do not match")
)

// MaxAccountDataSize is the largest account payload the runtime accepts.
const MaxAccountDataSize = 10 * 1024 * 1024

// CustomError is a program-defined failure carrying a numeric code, reported
// by the runtime as a custom program error.
type CustomError interface {
	error
	Code() uint32
}

// AccountMeta describes an account referenced by an instruction.
type AccountMeta struct {
	Pubkey     types.Pubkey
	IsSigner   bool
	IsWritable bool
}

// NewAccountMeta returns a writable account meta.
func NewAccountMeta(pubkey types.Pubkey, isSigner bool) AccountMeta {
	return AccountMeta{Pubkey: pubkey, IsSigner: isSigner, IsWritable: true}
}

// NewReadonlyAccountMeta returns a read-only account meta.
func NewReadonlyAccountMeta(pubkey types.Pubkey, isSigner bool) AccountMeta {
	return AccountMeta{Pubkey: pubkey, IsSigner: isSigner}
}

// Instruction is a single program call: the program, its ordered accounts
// and its packed data.
type Instruction struct {
	ProgramID types.Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

// NewInstruction creates an instruction.
func NewInstruction(programID types.Pubkey, data []byte, accounts ...AccountMeta) Instruction {
	return Instruction{
		ProgramID: programID,
		Accounts:  accounts,
		Data:      data,
	}
}

// AccountInfo holds account state during execution. Programs mutate it in
// place.
type AccountInfo struct {
	Key        types.Pubkey
	Owner      types.Pubkey
	Lamports   uint64
	Data       []byte
	Executable bool
	RentEpoch  uint64
	IsSigner   bool
	IsWritable bool
}

// Realloc resizes the account data, zero-filling any new bytes.
func (a *AccountInfo) Realloc(size int) error {
	if size < 0 || size > MaxAccountDataSize {
		return ErrAccountDataTooLarge
	}
	if size <= len(a.Data) {
		a.Data = a.Data[:size:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, a.Data)
	a.Data = grown
	return nil
}

// Assign changes the account owner.
func (a *AccountInfo) Assign(owner types.Pubkey) {
	a.Owner = owner
}

// Program is a native program hosted by the runtime.
type Program interface {
	// Process executes one instruction.
	Process(ctx InvokeContext, data []byte) error
}

// InvokeContext provides context for program execution.
type InvokeContext interface {
	// ProgramID returns the ID of the executing program.
	ProgramID() types.Pubkey

	// AccountCount returns the number of accounts passed to the instruction.
	AccountCount() int

	// GetAccount returns the account at the given index.
	// Returns ErrNotEnoughAccountKeys if the index is out of range.
	GetAccount(index int) (*AccountInfo, error)

	// UnixTimestamp returns the ledger clock in unix seconds.
	UnixTimestamp() int64

	// GetRentMinimum returns the rent-exempt minimum for given data size.
	GetRentMinimum(dataLen uint64) uint64

	// ConsumeCU charges compute units against the transaction budget.
	ConsumeCU(cost uint64) error

	// Invoke executes another program with a subset of this instruction's
	// accounts. Signers lets the calling program sign as its derived
	// addresses.
	Invoke(ix Instruction, signers ...pda.SignerSeeds) error

	// Log records a log message.
	Log(msg string)
}

// FindProgramAddress derives a program address on behalf of an executing
// program, charging one derivation fee per bump tried.
func FindProgramAddress(ctx InvokeContext, seeds [][]byte, programID types.Pubkey) (types.Pubkey, uint8, error) {
	addr, bump, err := pda.FindProgramAddress(seeds, programID)
	if err != nil {
		return types.Pubkey{}, 0, err
	}
	if err := ctx.ConsumeCU(CUCreateProgramAddress * (256 - uint64(bump))); err != nil {
		return types.Pubkey{}, 0, err
	}
	return addr, bump, nil
}
