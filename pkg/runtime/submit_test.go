package runtime_test

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/x1-lockup/internal/types"
	"github.com/fortiblox/x1-lockup/pkg/runtime"
	"github.com/fortiblox/x1-lockup/pkg/runtime/runtimetest"
	"github.com/fortiblox/x1-lockup/pkg/svm"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/system"
)

func signTransfer(t *testing.T, recent types.Hash, key ed25519.PrivateKey, from, to types.Pubkey, lamports uint64) *runtime.SignedTransaction {
	t.Helper()
	stx, err := runtime.NewSignedTransaction(recent, []ed25519.PrivateKey{key},
		system.Transfer(from, to, lamports))
	require.NoError(t, err)
	return stx
}

func TestSubmit(t *testing.T) {
	rec := &recorder{}
	env := newEnv(t, runtime.WithRecorder(rec))
	from, key := runtimetest.NewKeypair()
	to := runtimetest.NewPubkey()
	env.SetupSystemAccount(from, 1_000)

	h0 := env.LatestHash()
	stx := signTransfer(t, h0, key, from, to, 400)

	result, err := env.Runtime.Submit(stx)
	require.NoError(t, err)
	require.True(t, result.Success, "logs: %v", result.Logs)
	assert.Equal(t, uint64(600), env.Lamports(from))
	assert.Equal(t, uint64(400), env.Lamports(to))

	require.Len(t, rec.results, 1)
	assert.Same(t, result, rec.results[0])

	status, ok := env.Runtime.SignatureStatus(stx.ID())
	require.True(t, ok)
	assert.Same(t, result, status)

	h1, seq, err := env.Runtime.LatestHash()
	require.NoError(t, err)
	assert.NotEqual(t, h0, h1)
	assert.Equal(t, result.Sequence, seq)

	t.Run("replay", func(t *testing.T) {
		_, err := env.Runtime.Submit(stx)
		assert.ErrorIs(t, err, runtime.ErrRejected)
		assert.ErrorIs(t, err, runtime.ErrAlreadyProcessed)
		assert.Equal(t, uint64(400), env.Lamports(to))
	})

	t.Run("older hash still valid", func(t *testing.T) {
		result, err := env.Runtime.Submit(signTransfer(t, h0, key, from, to, 100))
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, uint64(500), env.Lamports(to))
	})
}

func TestSubmitRejected(t *testing.T) {
	env := newEnv(t)
	from, key := runtimetest.NewKeypair()
	to := runtimetest.NewPubkey()
	env.SetupSystemAccount(from, 1_000)

	t.Run("unknown recent hash", func(t *testing.T) {
		_, err := env.Runtime.Submit(signTransfer(t, types.Hash{9}, key, from, to, 1))
		assert.ErrorIs(t, err, runtime.ErrRejected)
		assert.ErrorIs(t, err, runtime.ErrRecentHashNotFound)
	})

	t.Run("bad signature", func(t *testing.T) {
		stx := signTransfer(t, env.LatestHash(), key, from, to, 1)
		stx.Message.Instructions[0].Data[4] = 0xff
		_, err := env.Runtime.Submit(stx)
		assert.ErrorIs(t, err, runtime.ErrRejected)
		assert.ErrorIs(t, err, runtime.ErrSignatureVerification)
	})

	assert.Equal(t, uint64(1_000), env.Lamports(from))
	assert.Equal(t, uint64(0), env.Lamports(to))
}

func TestSubmitFailedTransactionIsFinal(t *testing.T) {
	env := newEnv(t)
	from, key := runtimetest.NewKeypair()
	to := runtimetest.NewPubkey()
	env.SetupSystemAccount(from, 100)

	stx := signTransfer(t, env.LatestHash(), key, from, to, 500)
	result, err := env.Runtime.Submit(stx)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Error(t, result.Err)

	status, ok := env.Runtime.SignatureStatus(stx.ID())
	require.True(t, ok)
	assert.Error(t, status.Err)

	// Funding the sender does not make the same transaction valid again.
	env.SetupSystemAccount(from, 1_000)
	_, err = env.Runtime.Submit(stx)
	assert.ErrorIs(t, err, runtime.ErrAlreadyProcessed)
	assert.Equal(t, uint64(0), env.Lamports(to))
}

func TestRecentHashExpires(t *testing.T) {
	env := newEnv(t)
	from, key := runtimetest.NewKeypair()
	to := runtimetest.NewPubkey()
	env.SetupSystemAccount(from, 1_000_000)

	h0 := env.LatestHash()
	first := signTransfer(t, h0, key, from, to, 1)
	_, err := env.Runtime.Submit(first)
	require.NoError(t, err)

	for i := 0; i < runtime.MaxRecentHashes; i++ {
		env.MustExecute([]types.Pubkey{from}, system.Transfer(from, to, 1))
	}

	_, ok := env.Runtime.SignatureStatus(first.ID())
	assert.False(t, ok)

	_, err = env.Runtime.Submit(signTransfer(t, h0, key, from, to, 2))
	assert.ErrorIs(t, err, runtime.ErrRecentHashNotFound)

	result, err := env.Runtime.Submit(signTransfer(t, env.LatestHash(), key, from, to, 2))
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestSimulate(t *testing.T) {
	rec := &recorder{}
	env := newEnv(t, runtime.WithRecorder(rec))
	from, to := runtimetest.NewPubkey(), runtimetest.NewPubkey()
	env.SetupSystemAccount(from, 1_000)
	h0 := env.LatestHash()

	result, err := env.Runtime.Simulate(runtime.NewTransaction([]types.Pubkey{from},
		system.Transfer(from, to, 400)))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.ElementsMatch(t, []types.Pubkey{from, to}, result.ModifiedAccounts)
	assert.Equal(t, svm.CUSystemProgramDefault, result.ComputeUnitsUsed)
	assert.Equal(t, uint64(0), result.Sequence)

	assert.Equal(t, uint64(1_000), env.Lamports(from))
	assert.Equal(t, uint64(0), env.Lamports(to))
	assert.Empty(t, rec.results)
	assert.Equal(t, h0, env.LatestHash())

	result, err = env.Runtime.Simulate(runtime.NewTransaction([]types.Pubkey{from},
		system.Transfer(from, to, 4_000)))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Error(t, result.Err)
}
