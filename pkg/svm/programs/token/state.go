package token

import (
	"github.com/fortiblox/x1-lockup/internal/layout"
	"github.com/fortiblox/x1-lockup/internal/types"
)

type AccountState byte

const (
	AccountStateUninitialized AccountState = iota
	AccountStateInitialized
	AccountStateFrozen
)

const (
	MintSize    = 82
	AccountSize = 165
)

const optionSize = 4

// Mint holds the supply and authorities of a token.
type Mint struct {
	// Optional authority used to mint new tokens. A zero key means the
	// supply is fixed.
	MintAuthority types.Pubkey
	// Total supply of tokens.
	Supply uint64
	// Number of base 10 digits to the right of the decimal place.
	Decimals uint8
	// Is true if this structure has been initialized.
	IsInitialized bool
	// Optional authority to freeze token accounts.
	FreezeAuthority types.Pubkey
}

func (m *Mint) Marshal() []byte {
	b := make([]byte, MintSize)

	var offset int
	layout.PutOptionalKey32(b, m.MintAuthority, &offset, optionSize)
	layout.PutUint64(b[offset:], m.Supply, &offset)
	layout.PutUint8(b[offset:], m.Decimals, &offset)
	layout.PutBool(b[offset:], m.IsInitialized, &offset)
	layout.PutOptionalKey32(b[offset:], m.FreezeAuthority, &offset, optionSize)

	return b
}

func (m *Mint) Unmarshal(b []byte) bool {
	if len(b) != MintSize {
		return false
	}

	var offset int
	layout.GetOptionalKey32(b, &m.MintAuthority, &offset, optionSize)
	layout.GetUint64(b[offset:], &m.Supply, &offset)
	layout.GetUint8(b[offset:], &m.Decimals, &offset)
	layout.GetBool(b[offset:], &m.IsInitialized, &offset)
	layout.GetOptionalKey32(b[offset:], &m.FreezeAuthority, &offset, optionSize)

	return true
}

// Account is a token account holding a balance of a single mint.
type Account struct {
	// The mint associated with this account
	Mint types.Pubkey
	// The owner of this account.
	Owner types.Pubkey
	// The amount of tokens this account holds.
	Amount uint64
	// If set, then the 'DelegatedAmount' represents the amount
	// authorized by the delegate.
	Delegate types.Pubkey
	// The account's state
	State AccountState
	// If set, this is a native token, and the value logs the rent-exempt
	// reserve.
	IsNative *uint64
	// The amount delegated
	DelegatedAmount uint64
	// Optional authority to close the account.
	CloseAuthority types.Pubkey
}

func (a *Account) Marshal() []byte {
	b := make([]byte, AccountSize)

	var offset int
	layout.PutKey32(b, a.Mint, &offset)
	layout.PutKey32(b[offset:], a.Owner, &offset)
	layout.PutUint64(b[offset:], a.Amount, &offset)
	layout.PutOptionalKey32(b[offset:], a.Delegate, &offset, optionSize)
	layout.PutUint8(b[offset:], uint8(a.State), &offset)
	layout.PutOptionalUint64(b[offset:], a.IsNative, &offset, optionSize)
	layout.PutUint64(b[offset:], a.DelegatedAmount, &offset)
	layout.PutOptionalKey32(b[offset:], a.CloseAuthority, &offset, optionSize)

	return b
}

func (a *Account) Unmarshal(b []byte) bool {
	if len(b) != AccountSize {
		return false
	}

	var offset int
	var state uint8
	layout.GetKey32(b, &a.Mint, &offset)
	layout.GetKey32(b[offset:], &a.Owner, &offset)
	layout.GetUint64(b[offset:], &a.Amount, &offset)
	layout.GetOptionalKey32(b[offset:], &a.Delegate, &offset, optionSize)
	layout.GetUint8(b[offset:], &state, &offset)
	a.State = AccountState(state)
	layout.GetOptionalUint64(b[offset:], &a.IsNative, &offset, optionSize)
	layout.GetUint64(b[offset:], &a.DelegatedAmount, &offset)
	layout.GetOptionalKey32(b[offset:], &a.CloseAuthority, &offset, optionSize)

	return true
}

// IsInitialized reports whether the account has been initialized.
func (a *Account) IsInitialized() bool {
	return a.State != AccountStateUninitialized
}

// UnpackMint decodes an initialized mint.
func UnpackMint(data []byte) (*Mint, error) {
	var m Mint
	if !m.Unmarshal(data) {
		return nil, ErrorInvalidMint
	}
	if !m.IsInitialized {
		return nil, ErrorUninitializedState
	}
	return &m, nil
}

// UnpackAccount decodes an initialized token account.
func UnpackAccount(data []byte) (*Account, error) {
	var a Account
	if !a.Unmarshal(data) {
		return nil, ErrorInvalidState
	}
	if !a.IsInitialized() {
		return nil, ErrorUninitializedState
	}
	return &a, nil
}

// MintDecimals returns the decimals of an initialized mint.
func MintDecimals(data []byte) (uint8, error) {
	m, err := UnpackMint(data)
	if err != nil {
		return 0, err
	}
	return m.Decimals, nil
}

// TokenOwner returns the owner of an initialized token account.
func TokenOwner(data []byte) (types.Pubkey, error) {
	a, err := UnpackAccount(data)
	if err != nil {
		return types.Pubkey{}, err
	}
	return a.Owner, nil
}
