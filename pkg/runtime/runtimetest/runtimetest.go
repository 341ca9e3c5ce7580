// Package runtimetest provides a ledger fixture for tests of the runtime and
// of the programs it hosts.
package runtimetest

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fortiblox/x1-lockup/internal/types"
	"github.com/fortiblox/x1-lockup/pkg/accounts"
	"github.com/fortiblox/x1-lockup/pkg/runtime"
	"github.com/fortiblox/x1-lockup/pkg/svm"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/associated"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/lockup"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/token"
)

// StartTime is the initial ledger clock of an Env.
const StartTime = int64(1_700_000_000)

// Env is an in-memory ledger with a manual clock.
type Env struct {
	t       testing.TB
	DB      *accounts.MemoryDB
	Clock   *runtime.ManualClock
	Runtime *runtime.Runtime
}

// NewEnv creates an empty ledger at StartTime.
func NewEnv(t testing.TB, opts ...runtime.Option) *Env {
	t.Helper()
	db := accounts.NewMemoryDB()
	clock := runtime.NewManualClock(StartTime)
	return &Env{
		t:       t,
		DB:      db,
		Clock:   clock,
		Runtime: runtime.New(db, clock, opts...),
	}
}

// NewPubkey returns a random key.
func NewPubkey() types.Pubkey {
	var key types.Pubkey
	if _, err := rand.Read(key[:]); err != nil {
		panic(err)
	}
	return key
}

// NewKeypair returns a random signing key and its address.
func NewKeypair() (types.Pubkey, ed25519.PrivateKey) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}
	var key types.Pubkey
	copy(key[:], pub)
	return key, priv
}

// LatestHash returns the newest ledger hash.
func (e *Env) LatestHash() types.Hash {
	e.t.Helper()
	h, _, err := e.Runtime.LatestHash()
	require.NoError(e.t, err)
	return h
}

// Execute runs a transaction signed by signers. Storage failures fail the
// test; instruction failures are left in the result.
func (e *Env) Execute(signers []types.Pubkey, instructions ...svm.Instruction) *runtime.ExecutionResult {
	e.t.Helper()
	result, err := e.Runtime.Execute(runtime.NewTransaction(signers, instructions...))
	require.NoError(e.t, err)
	return result
}

// MustExecute runs a transaction and fails the test unless it succeeds.
func (e *Env) MustExecute(signers []types.Pubkey, instructions ...svm.Instruction) *runtime.ExecutionResult {
	e.t.Helper()
	result := e.Execute(signers, instructions...)
	require.NoError(e.t, result.Err, "logs: %v", result.Logs)
	require.True(e.t, result.Success)
	return result
}

// AdvanceClock moves the ledger clock forward.
func (e *Env) AdvanceClock(seconds int64) {
	e.Clock.Advance(seconds)
}

// SetAccount writes an account directly to the ledger.
func (e *Env) SetAccount(key types.Pubkey, account *accounts.Account) {
	e.t.Helper()
	require.NoError(e.t, e.DB.SetAccount(key, account))
}

// Account returns the stored account, or nil if it does not exist.
func (e *Env) Account(key types.Pubkey) *accounts.Account {
	e.t.Helper()
	account, err := e.DB.GetAccount(key)
	if errors.Is(err, accounts.ErrAccountNotFound) {
		return nil
	}
	require.NoError(e.t, err)
	return account
}

// Lamports returns the balance of key, zero if it does not exist.
func (e *Env) Lamports(key types.Pubkey) uint64 {
	if account := e.Account(key); account != nil {
		return account.Lamports
	}
	return 0
}

// TotalLamports returns the sum of every balance on the ledger.
func (e *Env) TotalLamports() uint64 {
	e.t.Helper()
	var total uint64
	err := e.DB.IterateAccounts(func(_ types.Pubkey, account *accounts.Account) error {
		total += account.Lamports
		return nil
	})
	require.NoError(e.t, err)
	return total
}

// SetupSystemAccount creates a wallet holding lamports.
func (e *Env) SetupSystemAccount(key types.Pubkey, lamports uint64) {
	e.SetAccount(key, &accounts.Account{
		Lamports: lamports,
		Owner:    types.SystemProgramAddr,
	})
}

// SetupMint creates an initialized mint.
func (e *Env) SetupMint(tokenProgram, mint, authority types.Pubkey, decimals uint8, supply uint64) {
	state := &token.Mint{
		MintAuthority: authority,
		Supply:        supply,
		Decimals:      decimals,
		IsInitialized: true,
	}
	e.SetAccount(mint, &accounts.Account{
		Lamports: svm.RentMinimum(token.MintSize),
		Data:     state.Marshal(),
		Owner:    tokenProgram,
	})
}

// SetupTokenAccount creates an initialized token account at address.
func (e *Env) SetupTokenAccount(tokenProgram, address, mint, owner types.Pubkey, amount uint64) {
	state := &token.Account{
		Mint:   mint,
		Owner:  owner,
		Amount: amount,
		State:  token.AccountStateInitialized,
	}
	e.SetAccount(address, &accounts.Account{
		Lamports: svm.RentMinimum(token.AccountSize),
		Data:     state.Marshal(),
		Owner:    tokenProgram,
	})
}

// SetupAssociatedTokenAccount creates owner's associated token account for
// mint and returns its address.
func (e *Env) SetupAssociatedTokenAccount(tokenProgram, owner, mint types.Pubkey, amount uint64) types.Pubkey {
	e.t.Helper()
	address, _, err := associated.GetAssociatedAddress(owner, mint, tokenProgram)
	require.NoError(e.t, err)
	e.SetupTokenAccount(tokenProgram, address, mint, owner, amount)
	return address
}

// SetupEscrow creates the escrow token account of mint holding amount.
func (e *Env) SetupEscrow(programID, mint, tokenProgram types.Pubkey, amount uint64) *lockup.EscrowAddresses {
	e.t.Helper()
	escrow, err := lockup.GetEscrowAddresses(programID, mint, tokenProgram)
	require.NoError(e.t, err)
	e.SetupTokenAccount(tokenProgram, escrow.TokenAccount, mint, escrow.Authority, amount)
	return escrow
}

// SetupLockup writes record to a rent-exempt account owned by programID.
// A nil record leaves the account zero-filled.
func (e *Env) SetupLockup(programID, address types.Pubkey, record *lockup.Lockup) {
	data := make([]byte, lockup.LockupSize)
	if record != nil {
		data = record.Marshal()
	}
	e.SetAccount(address, &accounts.Account{
		Lamports: svm.RentMinimum(lockup.LockupSize),
		Data:     data,
		Owner:    programID,
	})
}

// TokenAccount decodes the token account at address.
func (e *Env) TokenAccount(address types.Pubkey) *token.Account {
	e.t.Helper()
	account := e.Account(address)
	require.NotNil(e.t, account, "token account %s does not exist", address)
	state, err := token.UnpackAccount(account.Data)
	require.NoError(e.t, err)
	return state
}

// TokenBalance returns the amount held by the token account at address.
func (e *Env) TokenBalance(address types.Pubkey) uint64 {
	return e.TokenAccount(address).Amount
}

// Lockup decodes the lockup record at address.
func (e *Env) Lockup(address types.Pubkey) *lockup.Lockup {
	e.t.Helper()
	account := e.Account(address)
	require.NotNil(e.t, account, "lockup %s does not exist", address)
	record, err := lockup.UnpackLockup(account.Data)
	require.NoError(e.t, err)
	return record
}
