// Package system implements the System Program.
//
// The System Program is responsible for:
//   - Creating new accounts
//   - Transferring lamports
//   - Assigning account ownership
//   - Allocating account space
//
// All accounts are owned by the System Program until assigned to another
// program. Program-owned accounts that are closed are handed back to it.
package system

import (
	"encoding/binary"
	"fmt"

	"github.com/fortiblox/x1-lockup/internal/types"
	"github.com/fortiblox/x1-lockup/pkg/svm"
)

// ProgramID is the System Program address (all zeros).
var ProgramID = types.SystemProgramAddr

// Instruction discriminants.
const (
	InstructionCreateAccount uint32 = 0
	InstructionAssign        uint32 = 1
	InstructionTransfer      uint32 = 2
	InstructionAllocate      uint32 = 8
)

// Processor executes System Program instructions.
type Processor struct{}

// NewProcessor creates a new System Program processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// Process executes a System Program instruction.
func (p *Processor) Process(ctx svm.InvokeContext, data []byte) error {
	if len(data) < 4 {
		return svm.ErrInvalidInstructionData
	}

	if err := ctx.ConsumeCU(svm.CUSystemProgramDefault); err != nil {
		return err
	}

	switch binary.LittleEndian.Uint32(data[:4]) {
	case InstructionCreateAccount:
		return p.processCreateAccount(ctx, data[4:])
	case InstructionAssign:
		return p.processAssign(ctx, data[4:])
	case InstructionTransfer:
		return p.processTransfer(ctx, data[4:])
	case InstructionAllocate:
		return p.processAllocate(ctx, data[4:])
	default:
		return svm.ErrInvalidInstructionData
	}
}

// processCreateAccount funds, allocates and assigns a new account.
// Accounts: [0] funder (w, s), [1] new account (w, s)
func (p *Processor) processCreateAccount(ctx svm.InvokeContext, data []byte) error {
	// lamports (8) + space (8) + owner (32)
	if len(data) != 48 {
		return svm.ErrInvalidInstructionData
	}
	lamports := binary.LittleEndian.Uint64(data[0:8])
	space := binary.LittleEndian.Uint64(data[8:16])
	var owner types.Pubkey
	copy(owner[:], data[16:48])

	if space > svm.MaxAccountDataSize {
		return svm.ErrAccountDataTooLarge
	}

	funder, err := ctx.GetAccount(0)
	if err != nil {
		return err
	}
	newAccount, err := ctx.GetAccount(1)
	if err != nil {
		return err
	}

	if !funder.IsSigner || !newAccount.IsSigner {
		return svm.ErrMissingRequiredSignature
	}

	// A pre-funded account may still be created, as long as it is unallocated.
	if newAccount.Owner != ProgramID || len(newAccount.Data) > 0 {
		ctx.Log(fmt.Sprintf("Create Account: account %s already in use", newAccount.Key))
		return svm.ErrAccountAlreadyInUse
	}
	if newAccount.Lamports > 0 {
		ctx.Log(fmt.Sprintf("Create Account: account %s already in use", newAccount.Key))
		return svm.ErrAccountAlreadyInUse
	}

	if lamports < ctx.GetRentMinimum(space) {
		return svm.ErrAccountNotRentExempt
	}

	if err := transfer(funder, newAccount, lamports); err != nil {
		return err
	}
	if err := newAccount.Realloc(int(space)); err != nil {
		return err
	}
	newAccount.Assign(owner)

	return nil
}

// processAssign changes the owner of an account.
// Accounts: [0] account (w, s)
func (p *Processor) processAssign(ctx svm.InvokeContext, data []byte) error {
	if len(data) != 32 {
		return svm.ErrInvalidInstructionData
	}
	var owner types.Pubkey
	copy(owner[:], data[0:32])

	account, err := ctx.GetAccount(0)
	if err != nil {
		return err
	}

	// Assigning to the current owner is a no-op.
	if account.Owner == owner {
		return nil
	}
	if !account.IsSigner {
		return svm.ErrMissingRequiredSignature
	}
	if account.Owner != ProgramID {
		return svm.ErrInvalidAccountOwner
	}

	account.Assign(owner)
	return nil
}

// processTransfer transfers lamports between accounts.
// Accounts: [0] from (w, s), [1] to (w)
func (p *Processor) processTransfer(ctx svm.InvokeContext, data []byte) error {
	if len(data) != 8 {
		return svm.ErrInvalidInstructionData
	}
	lamports := binary.LittleEndian.Uint64(data[0:8])

	from, err := ctx.GetAccount(0)
	if err != nil {
		return err
	}
	to, err := ctx.GetAccount(1)
	if err != nil {
		return err
	}

	if !from.IsSigner {
		return svm.ErrMissingRequiredSignature
	}
	if len(from.Data) > 0 {
		ctx.Log("Transfer: `from` must not carry data")
		return svm.ErrInvalidArgument
	}
	if from.Owner != ProgramID {
		return svm.ErrInvalidAccountOwner
	}

	return transfer(from, to, lamports)
}

// processAllocate allocates space in an account.
// Accounts: [0] account (w, s)
func (p *Processor) processAllocate(ctx svm.InvokeContext, data []byte) error {
	if len(data) != 8 {
		return svm.ErrInvalidInstructionData
	}
	space := binary.LittleEndian.Uint64(data[0:8])
	if space > svm.MaxAccountDataSize {
		return svm.ErrAccountDataTooLarge
	}

	account, err := ctx.GetAccount(0)
	if err != nil {
		return err
	}

	if !account.IsSigner {
		return svm.ErrMissingRequiredSignature
	}
	if account.Owner != ProgramID || len(account.Data) > 0 {
		ctx.Log(fmt.Sprintf("Allocate: account %s already in use", account.Key))
		return svm.ErrAccountAlreadyInUse
	}

	return account.Realloc(int(space))
}

func transfer(from, to *svm.AccountInfo, lamports uint64) error {
	if from.Lamports < lamports {
		return svm.ErrInsufficientFunds
	}
	if to.Lamports > ^uint64(0)-lamports {
		return svm.ErrArithmeticOverflow
	}
	from.Lamports -= lamports
	to.Lamports += lamports
	return nil
}
