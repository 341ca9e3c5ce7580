// Package associated implements the Associated Token Account program, which
// creates the canonical token account of a wallet for a mint at an address
// derived from both.
package associated

import (
	"github.com/fortiblox/x1-lockup/internal/types"
	"github.com/fortiblox/x1-lockup/pkg/pda"
	"github.com/fortiblox/x1-lockup/pkg/svm"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/system"
)

// ProgramID is the Associated Token Account program address.
//
// Current key: ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL
var ProgramID = types.AssociatedTokenProgramAddr

type Command byte

const (
	CommandCreate Command = iota
	CommandCreateIdempotent
)

// GetAssociatedAddress returns the associated token account address of
// wallet for mint under tokenProgram.
func GetAssociatedAddress(wallet, mint, tokenProgram types.Pubkey) (types.Pubkey, uint8, error) {
	return pda.FindProgramAddress(
		[][]byte{wallet[:], tokenProgram[:], mint[:]},
		ProgramID,
	)
}

// MustGetAssociatedAddress is GetAssociatedAddress for callers that cannot
// recover from a derivation failure.
func MustGetAssociatedAddress(wallet, mint, tokenProgram types.Pubkey) types.Pubkey {
	addr, _, err := GetAssociatedAddress(wallet, mint, tokenProgram)
	if err != nil {
		panic(err)
	}
	return addr
}

// Create returns an instruction creating the associated token account. It
// fails if the account already exists.
func Create(payer, wallet, mint, tokenProgram types.Pubkey) (svm.Instruction, types.Pubkey, error) {
	return create(CommandCreate, payer, wallet, mint, tokenProgram)
}

// CreateIdempotent returns an instruction creating the associated token
// account, succeeding without changes if it already exists for wallet and
// mint.
func CreateIdempotent(payer, wallet, mint, tokenProgram types.Pubkey) (svm.Instruction, types.Pubkey, error) {
	return create(CommandCreateIdempotent, payer, wallet, mint, tokenProgram)
}

// Accounts expected by this instruction:
//
//  0. `[writable, signer]` Funding account.
//  1. `[writable]` Associated token account address to be created.
//  2. `[]` Wallet address for the new associated token account.
//  3. `[]` The token mint for the new associated token account.
//  4. `[]` System program.
//  5. `[]` SPL Token program.
func create(cmd Command, payer, wallet, mint, tokenProgram types.Pubkey) (svm.Instruction, types.Pubkey, error) {
	addr, _, err := GetAssociatedAddress(wallet, mint, tokenProgram)
	if err != nil {
		return svm.Instruction{}, types.Pubkey{}, err
	}

	return svm.NewInstruction(
		ProgramID,
		[]byte{byte(cmd)},
		svm.NewAccountMeta(payer, true),
		svm.NewAccountMeta(addr, false),
		svm.NewReadonlyAccountMeta(wallet, false),
		svm.NewReadonlyAccountMeta(mint, false),
		svm.NewReadonlyAccountMeta(system.ProgramID, false),
		svm.NewReadonlyAccountMeta(tokenProgram, false),
	), addr, nil
}
