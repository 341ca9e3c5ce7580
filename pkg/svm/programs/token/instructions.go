package token

import (
	"encoding/binary"

	"github.com/fortiblox/x1-lockup/internal/types"
	"github.com/fortiblox/x1-lockup/pkg/svm"
)

// InitializeMint2 returns an instruction initializing a pre-allocated mint.
// A zero freeze authority is encoded as None.
//
// Accounts expected by this instruction:
//
//  0. `[writable]` The mint to initialize.
func InitializeMint2(programID, mint, mintAuthority, freezeAuthority types.Pubkey, decimals uint8) svm.Instruction {
	data := make([]byte, 1+1+32+1, 1+1+32+1+32)
	data[0] = byte(CommandInitializeMint2)
	data[1] = decimals
	copy(data[2:34], mintAuthority[:])
	if !freezeAuthority.IsZero() {
		data[34] = 1
		data = append(data, freezeAuthority[:]...)
	}

	return svm.NewInstruction(
		programID,
		data,
		svm.NewAccountMeta(mint, false),
	)
}

// InitializeAccount3 returns an instruction initializing a pre-allocated
// token account.
//
// Accounts expected by this instruction:
//
//  0. `[writable]` The account to initialize.
//  1. `[]` The mint this account will be associated with.
func InitializeAccount3(programID, account, mint, owner types.Pubkey) svm.Instruction {
	data := make([]byte, 1+32)
	data[0] = byte(CommandInitializeAccount3)
	copy(data[1:], owner[:])

	return svm.NewInstruction(
		programID,
		data,
		svm.NewAccountMeta(account, false),
		svm.NewReadonlyAccountMeta(mint, false),
	)
}

// Transfer returns an unchecked transfer instruction.
//
// Accounts expected by this instruction:
//
//  0. `[writable]` The source account.
//  1. `[writable]` The destination account.
//  2. `[signer]` The source account's owner.
func Transfer(programID, source, dest, owner types.Pubkey, amount uint64) svm.Instruction {
	data := make([]byte, 1+8)
	data[0] = byte(CommandTransfer)
	binary.LittleEndian.PutUint64(data[1:], amount)

	return svm.NewInstruction(
		programID,
		data,
		svm.NewAccountMeta(source, false),
		svm.NewAccountMeta(dest, false),
		svm.NewReadonlyAccountMeta(owner, true),
	)
}

// TransferChecked returns a transfer instruction that asserts the mint and
// its decimals.
//
// Accounts expected by this instruction:
//
//  0. `[writable]` The source account.
//  1. `[]` The token mint.
//  2. `[writable]` The destination account.
//  3. `[signer]` The source account's owner.
func TransferChecked(programID, source, mint, dest, owner types.Pubkey, amount uint64, decimals uint8) svm.Instruction {
	data := make([]byte, 1+8+1)
	data[0] = byte(CommandTransferChecked)
	binary.LittleEndian.PutUint64(data[1:], amount)
	data[9] = decimals

	return svm.NewInstruction(
		programID,
		data,
		svm.NewAccountMeta(source, false),
		svm.NewReadonlyAccountMeta(mint, false),
		svm.NewAccountMeta(dest, false),
		svm.NewReadonlyAccountMeta(owner, true),
	)
}

// MintTo returns an instruction minting new tokens.
//
// Accounts expected by this instruction:
//
//  0. `[writable]` The mint.
//  1. `[writable]` The account to mint tokens to.
//  2. `[signer]` The mint's minting authority.
func MintTo(programID, mint, dest, authority types.Pubkey, amount uint64) svm.Instruction {
	data := make([]byte, 1+8)
	data[0] = byte(CommandMintTo)
	binary.LittleEndian.PutUint64(data[1:], amount)

	return svm.NewInstruction(
		programID,
		data,
		svm.NewAccountMeta(mint, false),
		svm.NewAccountMeta(dest, false),
		svm.NewReadonlyAccountMeta(authority, true),
	)
}
