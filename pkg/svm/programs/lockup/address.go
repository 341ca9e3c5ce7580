package lockup

import (
	"github.com/fortiblox/x1-lockup/internal/types"
	"github.com/fortiblox/x1-lockup/pkg/pda"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/associated"
)

var escrowAuthorityPrefix = []byte("escrow_authority")

// EscrowAuthoritySeeds returns the derivation seeds of the escrow authority,
// without the bump.
func EscrowAuthoritySeeds() [][]byte {
	return [][]byte{escrowAuthorityPrefix}
}

// GetEscrowAuthorityAddress returns the escrow authority of the program
// deployed at programID, and its bump.
func GetEscrowAuthorityAddress(programID types.Pubkey) (types.Pubkey, uint8, error) {
	return pda.FindProgramAddress(EscrowAuthoritySeeds(), programID)
}

// GetEscrowTokenAccountAddress returns the escrow token account for mint:
// the escrow authority's associated token account under tokenProgram.
func GetEscrowTokenAccountAddress(programID, mint, tokenProgram types.Pubkey) (types.Pubkey, error) {
	authority, _, err := GetEscrowAuthorityAddress(programID)
	if err != nil {
		return types.Pubkey{}, err
	}
	addr, _, err := associated.GetAssociatedAddress(authority, mint, tokenProgram)
	return addr, err
}

// EscrowAddresses groups every derived address tied to a mint's escrow.
type EscrowAddresses struct {
	Authority     types.Pubkey
	AuthorityBump uint8
	TokenAccount  types.Pubkey
}

// GetEscrowAddresses derives the escrow authority and the escrow token
// account for mint.
func GetEscrowAddresses(programID, mint, tokenProgram types.Pubkey) (*EscrowAddresses, error) {
	authority, bump, err := GetEscrowAuthorityAddress(programID)
	if err != nil {
		return nil, err
	}
	tokenAccount, _, err := associated.GetAssociatedAddress(authority, mint, tokenProgram)
	if err != nil {
		return nil, err
	}
	return &EscrowAddresses{
		Authority:     authority,
		AuthorityBump: bump,
		TokenAccount:  tokenAccount,
	}, nil
}
