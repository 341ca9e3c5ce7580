package lockup

import (
	"encoding/binary"
	"fmt"

	"github.com/fortiblox/x1-lockup/internal/types"
	"github.com/fortiblox/x1-lockup/pkg/svm"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/associated"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/system"
)

type Command uint8

const (
	CommandLockup Command = iota
	CommandUnlock
	CommandWithdraw
)

func (c Command) String() string {
	switch c {
	case CommandLockup:
		return "Lockup"
	case CommandUnlock:
		return "Unlock"
	case CommandWithdraw:
		return "Withdraw"
	}

	return fmt.Sprintf("Unknown(%d)", uint8(c))
}

const (
	LockupInstructionSize   = 1 + 8
	UnlockInstructionSize   = 1
	WithdrawInstructionSize = 1

	LockupInstructionAccountsSize   = 8
	UnlockInstructionAccountsSize   = 2
	WithdrawInstructionAccountsSize = 8
)

// Instruction is a decoded lockup instruction. Amount is only meaningful for
// CommandLockup.
type Instruction struct {
	Command Command
	Amount  uint64
}

// Pack encodes the instruction to its wire format.
func (i Instruction) Pack() []byte {
	switch i.Command {
	case CommandLockup:
		data := make([]byte, LockupInstructionSize)
		data[0] = byte(CommandLockup)
		binary.LittleEndian.PutUint64(data[1:], i.Amount)
		return data
	default:
		return []byte{byte(i.Command)}
	}
}

// UnpackInstruction decodes instruction data. The payload must match the
// tag's size exactly.
func UnpackInstruction(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return Instruction{}, svm.ErrInvalidInstructionData
	}

	switch cmd := Command(data[0]); cmd {
	case CommandLockup:
		if len(data) != LockupInstructionSize {
			return Instruction{}, svm.ErrInvalidInstructionData
		}
		return Instruction{Command: cmd, Amount: binary.LittleEndian.Uint64(data[1:])}, nil
	case CommandUnlock, CommandWithdraw:
		if len(data) != 1 {
			return Instruction{}, svm.ErrInvalidInstructionData
		}
		return Instruction{Command: cmd}, nil
	default:
		return Instruction{}, svm.ErrInvalidInstructionData
	}
}

type LockupInstructionAccounts struct {
	LockupAuthority types.Pubkey
	TokenOwner      types.Pubkey
	TokenAccount    types.Pubkey
	Lockup          types.Pubkey
	Mint            types.Pubkey
	TokenProgram    types.Pubkey
}

type LockupInstructionArgs struct {
	Amount uint64
}

// NewLockupInstruction builds a Lockup instruction for the program at
// programID. The escrow addresses are derived from the mint and token
// program.
//
// Accounts expected by this instruction:
//
//  0. `[]` Lockup authority.
//  1. `[s]` Token owner.
//  2. `[w]` Depositor token account.
//  3. `[w]` Lockup account.
//  4. `[]` Escrow authority.
//  5. `[w]` Escrow token account.
//  6. `[]` Token mint.
//  7. `[]` Token program.
func NewLockupInstruction(
	programID types.Pubkey,
	accounts *LockupInstructionAccounts,
	args *LockupInstructionArgs,
) (svm.Instruction, error) {
	escrow, err := GetEscrowAddresses(programID, accounts.Mint, accounts.TokenProgram)
	if err != nil {
		return svm.Instruction{}, err
	}

	return svm.NewInstruction(
		programID,
		Instruction{Command: CommandLockup, Amount: args.Amount}.Pack(),
		svm.NewReadonlyAccountMeta(accounts.LockupAuthority, false),
		svm.NewReadonlyAccountMeta(accounts.TokenOwner, true),
		svm.NewAccountMeta(accounts.TokenAccount, false),
		svm.NewAccountMeta(accounts.Lockup, false),
		svm.NewReadonlyAccountMeta(escrow.Authority, false),
		svm.NewAccountMeta(escrow.TokenAccount, false),
		svm.NewReadonlyAccountMeta(accounts.Mint, false),
		svm.NewReadonlyAccountMeta(accounts.TokenProgram, false),
	), nil
}

type UnlockInstructionAccounts struct {
	LockupAuthority types.Pubkey
	Lockup          types.Pubkey
}

// NewUnlockInstruction builds an Unlock instruction.
//
// Accounts expected by this instruction:
//
//  0. `[s]` Lockup authority.
//  1. `[w]` Lockup account.
func NewUnlockInstruction(programID types.Pubkey, accounts *UnlockInstructionAccounts) svm.Instruction {
	return svm.NewInstruction(
		programID,
		Instruction{Command: CommandUnlock}.Pack(),
		svm.NewReadonlyAccountMeta(accounts.LockupAuthority, true),
		svm.NewAccountMeta(accounts.Lockup, false),
	)
}

type WithdrawInstructionAccounts struct {
	LockupAuthority     types.Pubkey
	LamportsDestination types.Pubkey
	TokenDestination    types.Pubkey
	Lockup              types.Pubkey
	Mint                types.Pubkey
	TokenProgram        types.Pubkey
}

// NewWithdrawInstruction builds a Withdraw instruction.
//
// Accounts expected by this instruction:
//
//  0. `[s]` Lockup authority.
//  1. `[w]` Lamports destination.
//  2. `[w]` Token destination.
//  3. `[w]` Lockup account.
//  4. `[]` Escrow authority.
//  5. `[w]` Escrow token account.
//  6. `[]` Token mint.
//  7. `[]` Token program.
func NewWithdrawInstruction(programID types.Pubkey, accounts *WithdrawInstructionAccounts) (svm.Instruction, error) {
	escrow, err := GetEscrowAddresses(programID, accounts.Mint, accounts.TokenProgram)
	if err != nil {
		return svm.Instruction{}, err
	}

	return svm.NewInstruction(
		programID,
		Instruction{Command: CommandWithdraw}.Pack(),
		svm.NewReadonlyAccountMeta(accounts.LockupAuthority, true),
		svm.NewAccountMeta(accounts.LamportsDestination, false),
		svm.NewAccountMeta(accounts.TokenDestination, false),
		svm.NewAccountMeta(accounts.Lockup, false),
		svm.NewReadonlyAccountMeta(escrow.Authority, false),
		svm.NewAccountMeta(escrow.TokenAccount, false),
		svm.NewReadonlyAccountMeta(accounts.Mint, false),
		svm.NewReadonlyAccountMeta(accounts.TokenProgram, false),
	), nil
}

// InitializeEscrowInstruction builds the permissionless instruction creating
// the escrow token account for mint, funded by payer. It succeeds without
// changes if the account already exists.
func InitializeEscrowInstruction(programID, payer, mint, tokenProgram types.Pubkey) (svm.Instruction, error) {
	authority, _, err := GetEscrowAuthorityAddress(programID)
	if err != nil {
		return svm.Instruction{}, err
	}
	ix, _, err := associated.CreateIdempotent(payer, authority, mint, tokenProgram)
	return ix, err
}

// NewCreateLockupAccountInstruction returns a system instruction creating
// account as an empty lockup owned by programID. Both payer and account must
// sign.
func NewCreateLockupAccountInstruction(programID, payer, account types.Pubkey, lamports uint64) svm.Instruction {
	return system.CreateAccount(payer, account, programID, lamports, LockupSize)
}
