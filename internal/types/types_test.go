package types

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPubkeyBase58RoundTrip(t *testing.T) {
	p, err := PubkeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	require.NoError(t, err)
	assert.Equal(t, "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA", p.String())

	text, err := p.MarshalText()
	require.NoError(t, err)

	var parsed Pubkey
	require.NoError(t, parsed.UnmarshalText(text))
	assert.Equal(t, p, parsed)
}

func TestPubkeyInvalid(t *testing.T) {
	_, err := PubkeyFromBase58("abc")
	assert.ErrorIs(t, err, ErrInvalidPubkey)

	_, err = PubkeyFromBase58("0OIl")
	assert.Error(t, err)

	_, err = PubkeyFromBytes(make([]byte, 31))
	assert.ErrorIs(t, err, ErrInvalidPubkey)

	var p Pubkey
	assert.ErrorIs(t, p.UnmarshalText([]byte("abc")), ErrInvalidPubkey)
}

func TestPubkeyLess(t *testing.T) {
	a := Pubkey{1}
	b := Pubkey{1, 2}
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.False(t, a.Less(a))
}

func TestSystemProgramIsZero(t *testing.T) {
	assert.True(t, SystemProgramAddr.IsZero())
	assert.False(t, TokenProgramAddr.IsZero())
}

func TestIsTokenProgram(t *testing.T) {
	assert.True(t, IsTokenProgram(TokenProgramAddr))
	assert.True(t, IsTokenProgram(Token2022ProgramAddr))
	assert.False(t, IsTokenProgram(SystemProgramAddr))
	assert.False(t, IsTokenProgram(LockupProgramAddr))
}

func TestHashBase58(t *testing.T) {
	h := Hash{9, 8, 7}
	parsed, err := HashFromBase58(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
	assert.False(t, h.IsZero())
	assert.True(t, Hash{}.IsZero())

	_, err = HashFromBase58(Pubkey{1}.String()[:10])
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var key Pubkey
	copy(key[:], pub)

	message := []byte("lockup")
	sig := Sign(priv, message)
	assert.True(t, sig.Verify(key, message))
	assert.False(t, sig.Verify(key, []byte("unlock")))
	assert.False(t, sig.Verify(Pubkey{1}, message))

	parsed, err := SignatureFromBase58(sig.String())
	require.NoError(t, err)
	assert.Equal(t, sig, parsed)
	assert.False(t, sig.IsZero())

	_, err = SignatureFromBase58(key.String())
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
