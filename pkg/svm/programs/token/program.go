// Package token implements the subset of the SPL Token program needed to
// custody fungible tokens: mint and account initialization, minting and
// transfers. The same processor serves both the legacy token program and
// Token-2022; accounts must be owned by whichever program is executing.
package token

import (
	"fmt"
	"math"

	"github.com/fortiblox/x1-lockup/internal/types"
)

// ProgramID is the legacy SPL Token program address.
//
// Current key: TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA
var ProgramID = types.TokenProgramAddr

// Program2022ID is the Token-2022 program address.
var Program2022ID = types.Token2022ProgramAddr

type Command byte

const (
	CommandInitializeMint Command = iota
	CommandInitializeAccount
	CommandInitializeMultisig
	CommandTransfer
	CommandApprove
	CommandRevoke
	CommandSetAuthority
	CommandMintTo
	CommandBurn
	CommandCloseAccount
	CommandFreezeAccount
	CommandThawAccount
	CommandTransferChecked
	CommandApproveChecked
	CommandMintToChecked
	CommandBurnChecked
	CommandInitializeAccount2
	CommandSyncNative
	CommandInitializeAccount3
	CommandInitializeMultisig2
	CommandInitializeMint2

	CommandUnknown = Command(math.MaxUint8)
)

// Error is a token program failure, reported as a custom program error.
type Error uint32

const (
	ErrorNotRentExempt Error = iota
	ErrorInsufficientFunds
	ErrorInvalidMint
	ErrorMintMismatch
	ErrorOwnerMismatch
	ErrorFixedSupply
	ErrorAlreadyInUse
	ErrorInvalidNumberOfProvidedSigners
	ErrorInvalidNumberOfRequiredSigners
	ErrorUninitializedState
	ErrorNativeNotSupported
	ErrorNonNativeHasBalance
	ErrorInvalidInstruction
	ErrorInvalidState
	ErrorOverflow
	ErrorAuthorityTypeNotSupported
	ErrorMintCannotFreeze
	ErrorAccountFrozen
	ErrorMintDecimalsMismatch
)

var errorNames = map[Error]string{
	ErrorNotRentExempt:                  "lamport balance below rent-exempt threshold",
	ErrorInsufficientFunds:              "insufficient funds",
	ErrorInvalidMint:                    "invalid mint",
	ErrorMintMismatch:                   "account not associated with this mint",
	ErrorOwnerMismatch:                  "owner does not match",
	ErrorFixedSupply:                    "fixed supply",
	ErrorAlreadyInUse:                   "already in use",
	ErrorInvalidNumberOfProvidedSigners: "invalid number of provided signers",
	ErrorInvalidNumberOfRequiredSigners: "invalid number of required signers",
	ErrorUninitializedState:             "state is uninitialized",
	ErrorNativeNotSupported:             "instruction does not support native tokens",
	ErrorNonNativeHasBalance:            "non-native account can only be closed if its balance is zero",
	ErrorInvalidInstruction:             "invalid instruction",
	ErrorInvalidState:                   "state is invalid for requested operation",
	ErrorOverflow:                       "operation overflowed",
	ErrorAuthorityTypeNotSupported:      "account does not support specified authority type",
	ErrorMintCannotFreeze:               "this token mint cannot freeze accounts",
	ErrorAccountFrozen:                  "account is frozen",
	ErrorMintDecimalsMismatch:           "the provided decimals value different from the mint decimals",
}

func (e Error) Error() string {
	if name, ok := errorNames[e]; ok {
		return fmt.Sprintf("token error: %s", name)
	}
	return fmt.Sprintf("token error: %d", uint32(e))
}

// Code returns the custom program error code.
func (e Error) Code() uint32 {
	return uint32(e)
}
