package types

import "fmt"

// Native and well-known program addresses.
var (
	// SystemProgramAddr is the System Program address.
	SystemProgramAddr = MustPubkeyFromBase58("11111111111111111111111111111111")

	// TokenProgramAddr is the SPL Token program address.
	TokenProgramAddr = MustPubkeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")

	// Token2022ProgramAddr is the SPL Token-2022 program address.
	Token2022ProgramAddr = MustPubkeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")

	// AssociatedTokenProgramAddr is the Associated Token Account program address.
	AssociatedTokenProgramAddr = MustPubkeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")

	// LockupProgramAddr is the default deployment address of the lockup program.
	LockupProgramAddr = MustPubkeyFromBase58("Dbf7u6x15DhjMrBMunY3XoRWdByrCCt2dbyoPrCXN6SQ")
)

// MustPubkeyFromBase58 parses a base58 pubkey or panics.
// Only use for compile-time constants.
func MustPubkeyFromBase58(s string) Pubkey {
	p, err := PubkeyFromBase58(s)
	if err != nil {
		panic(fmt.Sprintf("invalid pubkey constant %q: %v", s, err))
	}
	return p
}

// IsTokenProgram returns true if the pubkey is one of the supported token
// ledger programs.
func IsTokenProgram(p Pubkey) bool {
	switch p {
	case TokenProgramAddr, Token2022ProgramAddr:
		return true
	default:
		return false
	}
}
