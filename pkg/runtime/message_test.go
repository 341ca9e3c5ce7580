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

func TestSignedTransactionEncoding(t *testing.T) {
	from, key := runtimetest.NewKeypair()
	other, otherKey := runtimetest.NewKeypair()
	to := runtimetest.NewPubkey()

	stx, err := runtime.NewSignedTransaction(types.Hash{7},
		[]ed25519.PrivateKey{otherKey, key},
		system.Transfer(from, to, 5),
		system.Transfer(other, from, 1),
		scriptedInstruction(opLog, svm.NewReadonlyAccountMeta(to, false)),
	)
	require.NoError(t, err)
	require.Len(t, stx.Signatures, 2)
	require.NoError(t, stx.Verify())

	b, err := stx.Marshal()
	require.NoError(t, err)
	decoded, err := runtime.UnmarshalSignedTransaction(b)
	require.NoError(t, err)
	assert.Equal(t, stx, decoded)
	require.NoError(t, decoded.Verify())

	tx := decoded.Transaction()
	assert.Equal(t, []types.Pubkey{from, other}, tx.Signers)
	assert.Equal(t, stx.Signatures[0], tx.Signature)
	assert.Equal(t, stx.ID(), tx.Signature)
}

func TestSignedTransactionVerify(t *testing.T) {
	from, key := runtimetest.NewKeypair()
	to := runtimetest.NewPubkey()

	sign := func(t *testing.T) *runtime.SignedTransaction {
		stx, err := runtime.NewSignedTransaction(types.Hash{1}, []ed25519.PrivateKey{key},
			system.Transfer(from, to, 5))
		require.NoError(t, err)
		return stx
	}

	t.Run("tampered data", func(t *testing.T) {
		stx := sign(t)
		stx.Message.Instructions[0].Data[4]++
		assert.ErrorIs(t, stx.Verify(), runtime.ErrSignatureVerification)
	})

	t.Run("tampered recent hash", func(t *testing.T) {
		stx := sign(t)
		stx.Message.RecentHash = types.Hash{2}
		assert.ErrorIs(t, stx.Verify(), runtime.ErrSignatureVerification)
	})

	t.Run("missing signature", func(t *testing.T) {
		stx := sign(t)
		stx.Signatures = nil
		assert.ErrorIs(t, stx.Verify(), runtime.ErrSignatureVerification)
	})

	t.Run("no signers", func(t *testing.T) {
		stx := &runtime.SignedTransaction{
			Message: runtime.Message{Instructions: []svm.Instruction{scriptedInstruction(opLog)}},
		}
		assert.ErrorIs(t, stx.Verify(), runtime.ErrSignatureVerification)
	})

	t.Run("signer key not given", func(t *testing.T) {
		_, stranger := runtimetest.NewKeypair()
		_, err := runtime.NewSignedTransaction(types.Hash{1}, []ed25519.PrivateKey{stranger},
			system.Transfer(from, to, 5))
		assert.ErrorIs(t, err, runtime.ErrMissingSignature)
	})
}

func TestUnmarshalSignedTransactionErrors(t *testing.T) {
	from, key := runtimetest.NewKeypair()
	stx, err := runtime.NewSignedTransaction(types.Hash{1}, []ed25519.PrivateKey{key},
		system.Transfer(from, runtimetest.NewPubkey(), 5))
	require.NoError(t, err)
	b, err := stx.Marshal()
	require.NoError(t, err)

	// Flags of the first account: count, signature, hash, ix count,
	// program id, account count, key.
	flagsOffset := 1 + 64 + 32 + 1 + 32 + 1 + 32

	tests := []struct {
		name string
		data []byte
		err  error
	}{
		{"empty", nil, runtime.ErrMalformedTransaction},
		{"truncated signatures", b[:40], runtime.ErrMalformedTransaction},
		{"truncated message", b[:len(b)-1], runtime.ErrMalformedTransaction},
		{"trailing bytes", append(append([]byte{}, b...), 0), runtime.ErrMalformedTransaction},
		{"unknown flags", func() []byte {
			c := append([]byte{}, b...)
			c[flagsOffset] |= 0x80
			return c
		}(), runtime.ErrMalformedTransaction},
		{"too large", make([]byte, runtime.MaxTransactionSize+1), runtime.ErrTransactionTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runtime.UnmarshalSignedTransaction(tt.data)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestMarshalTooLarge(t *testing.T) {
	from, key := runtimetest.NewKeypair()
	ix := svm.NewInstruction(scriptID, make([]byte, runtime.MaxTransactionSize),
		svm.NewAccountMeta(from, true))
	stx, err := runtime.NewSignedTransaction(types.Hash{}, []ed25519.PrivateKey{key}, ix)
	require.NoError(t, err)

	_, err = stx.Marshal()
	assert.ErrorIs(t, err, runtime.ErrTransactionTooLarge)
}
