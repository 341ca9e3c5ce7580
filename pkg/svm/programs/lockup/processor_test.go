package lockup_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/x1-lockup/internal/types"
	"github.com/fortiblox/x1-lockup/pkg/accounts"
	"github.com/fortiblox/x1-lockup/pkg/runtime"
	"github.com/fortiblox/x1-lockup/pkg/runtime/runtimetest"
	"github.com/fortiblox/x1-lockup/pkg/svm"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/lockup"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/token"
)

const (
	lamportsPerSol = uint64(1_000_000_000)
	initialSupply  = uint64(1_000_000)
)

type fixture struct {
	env          *runtimetest.Env
	tokenProgram types.Pubkey
	mint         types.Pubkey
	owner        types.Pubkey
	ownerTokens  types.Pubkey
	authority    types.Pubkey
	escrow       *lockup.EscrowAddresses
	lockup       types.Pubkey
}

func newFixture(t *testing.T, tokenProgram types.Pubkey) *fixture {
	env := runtimetest.NewEnv(t)

	f := &fixture{
		env:          env,
		tokenProgram: tokenProgram,
		mint:         runtimetest.NewPubkey(),
		owner:        runtimetest.NewPubkey(),
		authority:    runtimetest.NewPubkey(),
		lockup:       runtimetest.NewPubkey(),
	}

	env.SetupMint(tokenProgram, f.mint, runtimetest.NewPubkey(), 6, initialSupply)
	env.SetupSystemAccount(f.owner, 10*lamportsPerSol)
	env.SetupSystemAccount(f.authority, lamportsPerSol)
	f.ownerTokens = env.SetupAssociatedTokenAccount(tokenProgram, f.owner, f.mint, initialSupply)
	f.escrow = env.SetupEscrow(lockup.ProgramID, f.mint, tokenProgram, 0)
	env.SetupLockup(lockup.ProgramID, f.lockup, nil)

	return f
}

func (f *fixture) lockupInstruction(t *testing.T, amount uint64) svm.Instruction {
	ix, err := lockup.NewLockupInstruction(lockup.ProgramID, &lockup.LockupInstructionAccounts{
		LockupAuthority: f.authority,
		TokenOwner:      f.owner,
		TokenAccount:    f.ownerTokens,
		Lockup:          f.lockup,
		Mint:            f.mint,
		TokenProgram:    f.tokenProgram,
	}, &lockup.LockupInstructionArgs{Amount: amount})
	require.NoError(t, err)
	return ix
}

func (f *fixture) unlockInstruction() svm.Instruction {
	return lockup.NewUnlockInstruction(lockup.ProgramID, &lockup.UnlockInstructionAccounts{
		LockupAuthority: f.authority,
		Lockup:          f.lockup,
	})
}

func (f *fixture) withdrawInstruction(t *testing.T, tokenDestination types.Pubkey) svm.Instruction {
	ix, err := lockup.NewWithdrawInstruction(lockup.ProgramID, &lockup.WithdrawInstructionAccounts{
		LockupAuthority:     f.authority,
		LamportsDestination: f.authority,
		TokenDestination:    tokenDestination,
		Lockup:              f.lockup,
		Mint:                f.mint,
		TokenProgram:        f.tokenProgram,
	})
	require.NoError(t, err)
	return ix
}

// lock deposits amount and returns the authority's token account, ready to
// receive a withdrawal.
func (f *fixture) lock(t *testing.T, amount uint64) types.Pubkey {
	f.env.MustExecute([]types.Pubkey{f.owner}, f.lockupInstruction(t, amount))
	return f.env.SetupAssociatedTokenAccount(f.tokenProgram, f.authority, f.mint, 0)
}

func requireCustomError(t *testing.T, result *runtime.ExecutionResult, want error) {
	t.Helper()
	require.False(t, result.Success)
	require.ErrorIs(t, result.Err, want, "logs: %v", result.Logs)
}

func TestLockupLifecycle(t *testing.T) {
	for name, tokenProgram := range map[string]types.Pubkey{
		"token":      token.ProgramID,
		"token-2022": token.Program2022ID,
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, tokenProgram)
			env := f.env
			totalLamports := env.TotalLamports()
			rent := env.Lamports(f.lockup)

			// Lock.
			env.MustExecute([]types.Pubkey{f.owner}, f.lockupInstruction(t, 1_000))

			assert.Equal(t, initialSupply-1_000, env.TokenBalance(f.ownerTokens))
			assert.Equal(t, uint64(1_000), env.TokenBalance(f.escrow.TokenAccount))

			record := env.Lockup(f.lockup)
			assert.Equal(t, uint64(1_000), record.Amount)
			assert.Equal(t, f.authority, record.Authority)
			assert.Equal(t, f.mint, record.Mint)
			assert.Equal(t, uint64(runtimetest.StartTime), record.LockupStartTimestamp)
			assert.Nil(t, record.LockupEndTimestamp)
			assert.Equal(t, lockup.StateLocked, record.State(env.Clock.UnixTimestamp()))

			// Unlock.
			env.AdvanceClock(100)
			env.MustExecute([]types.Pubkey{f.authority}, f.unlockInstruction())

			record = env.Lockup(f.lockup)
			require.NotNil(t, record.LockupEndTimestamp)
			assert.Equal(t, uint64(runtimetest.StartTime+100+lockup.CooldownSeconds), *record.LockupEndTimestamp)
			assert.Equal(t, uint64(runtimetest.StartTime), record.LockupStartTimestamp)

			// One second early.
			destination := env.SetupAssociatedTokenAccount(tokenProgram, f.authority, f.mint, 0)
			env.AdvanceClock(lockup.CooldownSeconds - 1)
			result := env.Execute([]types.Pubkey{f.authority}, f.withdrawInstruction(t, destination))
			requireCustomError(t, result, lockup.ErrLockupActive)
			assert.Contains(t, result.Logs, "Program log: 1 seconds remaining")

			// Withdraw.
			authorityLamports := env.Lamports(f.authority)
			env.AdvanceClock(1)
			env.MustExecute([]types.Pubkey{f.authority}, f.withdrawInstruction(t, destination))

			assert.Equal(t, uint64(1_000), env.TokenBalance(destination))
			assert.Equal(t, uint64(0), env.TokenBalance(f.escrow.TokenAccount))
			assert.Nil(t, env.Account(f.lockup))
			assert.Equal(t, authorityLamports+rent, env.Lamports(f.authority))
			assert.Equal(t, totalLamports+env.Lamports(destination), env.TotalLamports())
		})
	}
}

func TestLockupInSameTransactionAsAccountCreation(t *testing.T) {
	f := newFixture(t, token.ProgramID)
	env := f.env

	f.lockup = runtimetest.NewPubkey()
	rent := env.Runtime.RentMinimum(lockup.LockupSize)

	env.MustExecute(
		[]types.Pubkey{f.owner, f.lockup},
		lockup.NewCreateLockupAccountInstruction(lockup.ProgramID, f.owner, f.lockup, rent),
		f.lockupInstruction(t, 500),
	)

	account := env.Account(f.lockup)
	require.NotNil(t, account)
	assert.Equal(t, lockup.ProgramID, account.Owner)
	assert.Equal(t, rent, account.Lamports)
	assert.Equal(t, uint64(500), env.Lockup(f.lockup).Amount)
	assert.Equal(t, uint64(500), env.TokenBalance(f.escrow.TokenAccount))
}

func TestLockupRejectsInitializedAccount(t *testing.T) {
	f := newFixture(t, token.ProgramID)
	f.env.MustExecute([]types.Pubkey{f.owner}, f.lockupInstruction(t, 10))

	result := f.env.Execute([]types.Pubkey{f.owner}, f.lockupInstruction(t, 20))
	requireCustomError(t, result, svm.ErrAccountAlreadyInitialized)

	assert.Equal(t, uint64(10), f.env.Lockup(f.lockup).Amount)
	assert.Equal(t, uint64(10), f.env.TokenBalance(f.escrow.TokenAccount))
	assert.Equal(t, initialSupply-10, f.env.TokenBalance(f.ownerTokens))
}

func TestLockupValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, f *fixture, ix *svm.Instruction)
		want   error
	}{
		{
			name: "token owner must sign",
			mutate: func(_ *testing.T, _ *fixture, ix *svm.Instruction) {
				ix.Accounts[1].IsSigner = false
			},
			want: svm.ErrMissingRequiredSignature,
		},
		{
			name: "token program",
			mutate: func(_ *testing.T, _ *fixture, ix *svm.Instruction) {
				ix.Accounts[7].Pubkey = types.SystemProgramAddr
			},
			want: svm.ErrIncorrectProgramID,
		},
		{
			name: "depositor token account must be associated",
			mutate: func(_ *testing.T, f *fixture, ix *svm.Instruction) {
				other := runtimetest.NewPubkey()
				f.env.SetupTokenAccount(f.tokenProgram, other, f.mint, f.owner, initialSupply)
				ix.Accounts[2].Pubkey = other
			},
			want: lockup.ErrIncorrectTokenAccount,
		},
		{
			name: "lockup owner",
			mutate: func(_ *testing.T, f *fixture, _ *svm.Instruction) {
				f.env.SetAccount(f.lockup, &accounts.Account{
					Lamports: lamportsPerSol,
					Data:     make([]byte, lockup.LockupSize),
					Owner:    types.SystemProgramAddr,
				})
			},
			want: svm.ErrInvalidAccountOwner,
		},
		{
			name: "lockup size",
			mutate: func(_ *testing.T, f *fixture, _ *svm.Instruction) {
				f.env.SetAccount(f.lockup, &accounts.Account{
					Lamports: lamportsPerSol,
					Data:     make([]byte, lockup.LockupSize-1),
					Owner:    lockup.ProgramID,
				})
			},
			want: svm.ErrInvalidAccountData,
		},
		{
			name: "lockup discriminator",
			mutate: func(_ *testing.T, f *fixture, _ *svm.Instruction) {
				data := make([]byte, lockup.LockupSize)
				copy(data, "garbage!")
				f.env.SetAccount(f.lockup, &accounts.Account{
					Lamports: lamportsPerSol,
					Data:     data,
					Owner:    lockup.ProgramID,
				})
			},
			want: svm.ErrInvalidAccountData,
		},
		{
			name: "escrow authority",
			mutate: func(_ *testing.T, _ *fixture, ix *svm.Instruction) {
				ix.Accounts[4].Pubkey = runtimetest.NewPubkey()
			},
			want: lockup.ErrIncorrectEscrowAuthorityAddress,
		},
		{
			name: "escrow token account",
			mutate: func(_ *testing.T, f *fixture, ix *svm.Instruction) {
				other := runtimetest.NewPubkey()
				f.env.SetupTokenAccount(f.tokenProgram, other, f.mint, f.escrow.Authority, 0)
				ix.Accounts[5].Pubkey = other
			},
			want: lockup.ErrIncorrectEscrowTokenAccount,
		},
		{
			name: "insufficient tokens",
			mutate: func(t *testing.T, f *fixture, ix *svm.Instruction) {
				*ix = f.lockupInstruction(t, initialSupply+1)
			},
			want: token.ErrorInsufficientFunds,
		},
		{
			name: "missing account",
			mutate: func(_ *testing.T, _ *fixture, ix *svm.Instruction) {
				ix.Accounts = ix.Accounts[:7]
			},
			want: svm.ErrNotEnoughAccountKeys,
		},
		{
			name: "trailing data",
			mutate: func(_ *testing.T, _ *fixture, ix *svm.Instruction) {
				ix.Data = append(ix.Data, 0)
			},
			want: svm.ErrInvalidInstructionData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, token.ProgramID)
			ix := f.lockupInstruction(t, 100)
			tt.mutate(t, f, &ix)

			before := f.env.Account(f.lockup)
			result := f.env.Execute([]types.Pubkey{f.owner}, ix)
			requireCustomError(t, result, tt.want)

			// Nothing of a failed transaction is committed.
			assert.Equal(t, before, f.env.Account(f.lockup))
			assert.Equal(t, initialSupply, f.env.TokenBalance(f.ownerTokens))
			assert.Equal(t, uint64(0), f.env.TokenBalance(f.escrow.TokenAccount))
		})
	}
}

func TestLockupErrorCodes(t *testing.T) {
	f := newFixture(t, token.ProgramID)
	ix := f.lockupInstruction(t, 100)
	ix.Accounts[4].Pubkey = runtimetest.NewPubkey()

	result := f.env.Execute([]types.Pubkey{f.owner}, ix)
	require.False(t, result.Success)

	var instructionErr *runtime.InstructionError
	require.ErrorAs(t, result.Err, &instructionErr)
	assert.Equal(t, 0, instructionErr.Index)

	code, ok := instructionErr.CustomCode()
	require.True(t, ok)
	assert.Equal(t, uint32(1), code)
}

func TestUnlock(t *testing.T) {
	t.Run("authority only", func(t *testing.T) {
		f := newFixture(t, token.ProgramID)
		f.lock(t, 100)

		// The depositor is not the authority.
		ix := lockup.NewUnlockInstruction(lockup.ProgramID, &lockup.UnlockInstructionAccounts{
			LockupAuthority: f.owner,
			Lockup:          f.lockup,
		})
		result := f.env.Execute([]types.Pubkey{f.owner}, ix)
		requireCustomError(t, result, svm.ErrIncorrectAuthority)
		assert.Nil(t, f.env.Lockup(f.lockup).LockupEndTimestamp)
	})

	t.Run("authority must sign", func(t *testing.T) {
		f := newFixture(t, token.ProgramID)
		f.lock(t, 100)

		ix := f.unlockInstruction()
		ix.Accounts[0].IsSigner = false
		result := f.env.Execute(nil, ix)
		requireCustomError(t, result, svm.ErrMissingRequiredSignature)
	})

	t.Run("already unlocked", func(t *testing.T) {
		f := newFixture(t, token.ProgramID)
		f.lock(t, 100)
		f.env.MustExecute([]types.Pubkey{f.authority}, f.unlockInstruction())
		end := *f.env.Lockup(f.lockup).LockupEndTimestamp

		f.env.AdvanceClock(60)
		result := f.env.Execute([]types.Pubkey{f.authority}, f.unlockInstruction())
		requireCustomError(t, result, lockup.ErrLockupAlreadyUnlocked)
		assert.Equal(t, end, *f.env.Lockup(f.lockup).LockupEndTimestamp)
	})

	t.Run("clock overflow", func(t *testing.T) {
		f := newFixture(t, token.ProgramID)
		f.lock(t, 100)

		f.env.Clock.Set(math.MaxInt64 - lockup.CooldownSeconds + 1)
		result := f.env.Execute([]types.Pubkey{f.authority}, f.unlockInstruction())
		requireCustomError(t, result, svm.ErrArithmeticOverflow)
		assert.Nil(t, f.env.Lockup(f.lockup).LockupEndTimestamp)

		f.env.Clock.Set(math.MaxInt64 - lockup.CooldownSeconds)
		f.env.MustExecute([]types.Pubkey{f.authority}, f.unlockInstruction())
		assert.Equal(t, uint64(math.MaxInt64), *f.env.Lockup(f.lockup).LockupEndTimestamp)
	})

	t.Run("uninitialized", func(t *testing.T) {
		f := newFixture(t, token.ProgramID)
		result := f.env.Execute([]types.Pubkey{f.authority}, f.unlockInstruction())
		requireCustomError(t, result, svm.ErrUninitializedAccount)
	})

	t.Run("foreign account", func(t *testing.T) {
		f := newFixture(t, token.ProgramID)
		record := lockup.NewLockup(100, f.authority, 1, f.mint)
		f.env.SetAccount(f.lockup, &accounts.Account{
			Lamports: lamportsPerSol,
			Data:     record.Marshal(),
			Owner:    runtimetest.NewPubkey(),
		})
		result := f.env.Execute([]types.Pubkey{f.authority}, f.unlockInstruction())
		requireCustomError(t, result, svm.ErrInvalidAccountOwner)
	})
}

func TestWithdraw(t *testing.T) {
	t.Run("still locked", func(t *testing.T) {
		f := newFixture(t, token.ProgramID)
		destination := f.lock(t, 100)
		f.env.AdvanceClock(10 * lockup.CooldownSeconds)

		result := f.env.Execute([]types.Pubkey{f.authority}, f.withdrawInstruction(t, destination))
		requireCustomError(t, result, lockup.ErrLockupActive)
		assert.Contains(t, result.Logs, "Program log: Lockup has not been unlocked")
		assert.Equal(t, uint64(100), f.env.TokenBalance(f.escrow.TokenAccount))
	})

	t.Run("cooldown", func(t *testing.T) {
		f := newFixture(t, token.ProgramID)
		destination := f.lock(t, 100)
		f.env.MustExecute([]types.Pubkey{f.authority}, f.unlockInstruction())
		f.env.AdvanceClock(600)

		result := f.env.Execute([]types.Pubkey{f.authority}, f.withdrawInstruction(t, destination))
		requireCustomError(t, result, lockup.ErrLockupActive)
		assert.Contains(t, result.Logs, fmt.Sprintf("Program log: %d seconds remaining", lockup.CooldownSeconds-600))
	})

	t.Run("authority only", func(t *testing.T) {
		f := newFixture(t, token.ProgramID)
		f.lock(t, 100)
		f.env.MustExecute([]types.Pubkey{f.authority}, f.unlockInstruction())
		f.env.AdvanceClock(lockup.CooldownSeconds)

		thief := runtimetest.NewPubkey()
		thiefTokens := f.env.SetupAssociatedTokenAccount(f.tokenProgram, thief, f.mint, 0)
		ix, err := lockup.NewWithdrawInstruction(lockup.ProgramID, &lockup.WithdrawInstructionAccounts{
			LockupAuthority:     thief,
			LamportsDestination: thief,
			TokenDestination:    thiefTokens,
			Lockup:              f.lockup,
			Mint:                f.mint,
			TokenProgram:        f.tokenProgram,
		})
		require.NoError(t, err)

		result := f.env.Execute([]types.Pubkey{thief}, ix)
		requireCustomError(t, result, svm.ErrIncorrectAuthority)
		assert.Equal(t, uint64(0), f.env.TokenBalance(thiefTokens))
		assert.NotNil(t, f.env.Account(f.lockup))
	})

	t.Run("incorrect mint", func(t *testing.T) {
		f := newFixture(t, token.ProgramID)
		destination := f.lock(t, 100)
		f.env.MustExecute([]types.Pubkey{f.authority}, f.unlockInstruction())
		f.env.AdvanceClock(lockup.CooldownSeconds)

		otherMint := runtimetest.NewPubkey()
		f.env.SetupMint(f.tokenProgram, otherMint, runtimetest.NewPubkey(), 6, 0)
		f.env.SetupEscrow(lockup.ProgramID, otherMint, f.tokenProgram, 0)

		ix, err := lockup.NewWithdrawInstruction(lockup.ProgramID, &lockup.WithdrawInstructionAccounts{
			LockupAuthority:     f.authority,
			LamportsDestination: f.authority,
			TokenDestination:    destination,
			Lockup:              f.lockup,
			Mint:                otherMint,
			TokenProgram:        f.tokenProgram,
		})
		require.NoError(t, err)

		result := f.env.Execute([]types.Pubkey{f.authority}, ix)
		requireCustomError(t, result, lockup.ErrIncorrectMint)
	})

	t.Run("lamports destination is the lockup", func(t *testing.T) {
		f := newFixture(t, token.ProgramID)
		destination := f.lock(t, 100)
		f.env.MustExecute([]types.Pubkey{f.authority}, f.unlockInstruction())
		f.env.AdvanceClock(lockup.CooldownSeconds)

		ix := f.withdrawInstruction(t, destination)
		ix.Accounts[1].Pubkey = f.lockup
		result := f.env.Execute([]types.Pubkey{f.authority}, ix)
		requireCustomError(t, result, svm.ErrInvalidArgument)
	})

	t.Run("only once", func(t *testing.T) {
		f := newFixture(t, token.ProgramID)
		destination := f.lock(t, 100)
		f.env.MustExecute([]types.Pubkey{f.authority}, f.unlockInstruction())
		f.env.AdvanceClock(lockup.CooldownSeconds)
		f.env.MustExecute([]types.Pubkey{f.authority}, f.withdrawInstruction(t, destination))

		result := f.env.Execute([]types.Pubkey{f.authority}, f.withdrawInstruction(t, destination))
		requireCustomError(t, result, svm.ErrInvalidAccountOwner)
		assert.Equal(t, uint64(100), f.env.TokenBalance(destination))
	})
}

func TestWithdrawValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, f *fixture, ix *svm.Instruction)
		want   error
	}{
		{
			name: "authority must sign",
			mutate: func(_ *testing.T, _ *fixture, ix *svm.Instruction) {
				ix.Accounts[0].IsSigner = false
			},
			want: svm.ErrMissingRequiredSignature,
		},
		{
			name: "token destination is the escrow",
			mutate: func(_ *testing.T, f *fixture, ix *svm.Instruction) {
				ix.Accounts[2].Pubkey = f.escrow.TokenAccount
			},
			want: svm.ErrInvalidArgument,
		},
		{
			name: "uninitialized lockup",
			mutate: func(_ *testing.T, f *fixture, _ *svm.Instruction) {
				f.env.SetAccount(f.lockup, &accounts.Account{
					Lamports: lamportsPerSol,
					Data:     make([]byte, lockup.LockupSize),
					Owner:    lockup.ProgramID,
				})
			},
			want: svm.ErrUninitializedAccount,
		},
		{
			name: "escrow authority",
			mutate: func(_ *testing.T, _ *fixture, ix *svm.Instruction) {
				ix.Accounts[4].Pubkey = runtimetest.NewPubkey()
			},
			want: lockup.ErrIncorrectEscrowAuthorityAddress,
		},
		{
			name: "escrow token account",
			mutate: func(_ *testing.T, f *fixture, ix *svm.Instruction) {
				other := runtimetest.NewPubkey()
				f.env.SetupTokenAccount(f.tokenProgram, other, f.mint, f.escrow.Authority, 0)
				ix.Accounts[5].Pubkey = other
			},
			want: lockup.ErrIncorrectEscrowTokenAccount,
		},
		{
			name: "token program",
			mutate: func(_ *testing.T, _ *fixture, ix *svm.Instruction) {
				ix.Accounts[7].Pubkey = types.SystemProgramAddr
			},
			want: svm.ErrIncorrectProgramID,
		},
		{
			name: "missing account",
			mutate: func(_ *testing.T, _ *fixture, ix *svm.Instruction) {
				ix.Accounts = ix.Accounts[:7]
			},
			want: svm.ErrNotEnoughAccountKeys,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, token.ProgramID)
			destination := f.lock(t, 100)
			f.env.MustExecute([]types.Pubkey{f.authority}, f.unlockInstruction())
			f.env.AdvanceClock(lockup.CooldownSeconds)

			ix := f.withdrawInstruction(t, destination)
			tt.mutate(t, f, &ix)

			before := f.env.Account(f.lockup)
			result := f.env.Execute([]types.Pubkey{f.authority}, ix)
			requireCustomError(t, result, tt.want)

			// The escrow still holds the deposit and the record is untouched.
			assert.Equal(t, uint64(100), f.env.TokenBalance(f.escrow.TokenAccount))
			assert.Equal(t, uint64(0), f.env.TokenBalance(destination))
			assert.Equal(t, before, f.env.Account(f.lockup))
		})
	}
}

func TestEscrowIsSharedAcrossLockups(t *testing.T) {
	f := newFixture(t, token.ProgramID)
	first := f.lockup
	destination := f.lock(t, 300)

	second := runtimetest.NewPubkey()
	f.env.SetupLockup(lockup.ProgramID, second, nil)
	f.lockup = second
	f.env.MustExecute([]types.Pubkey{f.owner}, f.lockupInstruction(t, 200))
	assert.Equal(t, uint64(500), f.env.TokenBalance(f.escrow.TokenAccount))

	f.lockup = first
	f.env.MustExecute([]types.Pubkey{f.authority}, f.unlockInstruction())
	f.env.AdvanceClock(lockup.CooldownSeconds)
	f.env.MustExecute([]types.Pubkey{f.authority}, f.withdrawInstruction(t, destination))

	assert.Equal(t, uint64(300), f.env.TokenBalance(destination))
	assert.Equal(t, uint64(200), f.env.TokenBalance(f.escrow.TokenAccount))
	assert.Equal(t, uint64(200), f.env.Lockup(second).Amount)
}

func TestInitializeEscrow(t *testing.T) {
	env := runtimetest.NewEnv(t)
	payer := runtimetest.NewPubkey()
	mint := runtimetest.NewPubkey()
	env.SetupSystemAccount(payer, lamportsPerSol)
	env.SetupMint(token.Program2022ID, mint, payer, 9, 0)

	ix, err := lockup.InitializeEscrowInstruction(lockup.ProgramID, payer, mint, token.Program2022ID)
	require.NoError(t, err)

	env.MustExecute([]types.Pubkey{payer}, ix)

	escrow, err := lockup.GetEscrowAddresses(lockup.ProgramID, mint, token.Program2022ID)
	require.NoError(t, err)

	state := env.TokenAccount(escrow.TokenAccount)
	assert.Equal(t, escrow.Authority, state.Owner)
	assert.Equal(t, mint, state.Mint)
	assert.Equal(t, uint64(0), state.Amount)
	assert.Equal(t, token.Program2022ID, env.Account(escrow.TokenAccount).Owner)

	// Idempotent.
	balance := env.Lamports(payer)
	env.MustExecute([]types.Pubkey{payer}, ix)
	assert.Equal(t, balance, env.Lamports(payer))
}
