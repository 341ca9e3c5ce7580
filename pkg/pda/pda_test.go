package pda

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/x1-lockup/internal/types"
)

func TestFindProgramAddressIsDeterministic(t *testing.T) {
	seeds := [][]byte{[]byte("escrow_authority")}

	addr1, bump1, err := FindProgramAddress(seeds, types.LockupProgramAddr)
	require.NoError(t, err)
	addr2, bump2, err := FindProgramAddress(seeds, types.LockupProgramAddr)
	require.NoError(t, err)

	assert.Equal(t, addr1, addr2)
	assert.Equal(t, bump1, bump2)
	assert.False(t, IsOnCurve(addr1[:]))
}

func TestFindProgramAddressMatchesCreate(t *testing.T) {
	seeds := [][]byte{[]byte("escrow_authority")}

	addr, bump, err := FindProgramAddress(seeds, types.LockupProgramAddr)
	require.NoError(t, err)

	created, err := CreateProgramAddress([][]byte{seeds[0], {bump}}, types.LockupProgramAddr)
	require.NoError(t, err)
	assert.Equal(t, addr, created)

	signer := NewSignerSeeds(bump, seeds...)
	signed, err := signer.Address(types.LockupProgramAddr)
	require.NoError(t, err)
	assert.Equal(t, addr, signed)
}

func TestProgramIDChangesAddress(t *testing.T) {
	seeds := [][]byte{[]byte("escrow_authority")}

	a, _, err := FindProgramAddress(seeds, types.LockupProgramAddr)
	require.NoError(t, err)
	b, _, err := FindProgramAddress(seeds, types.TokenProgramAddr)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestSeedLimits(t *testing.T) {
	_, err := CreateProgramAddress([][]byte{make([]byte, MaxSeedLen+1)}, types.LockupProgramAddr)
	assert.ErrorIs(t, err, ErrMaxSeedLengthExceeded)

	tooMany := make([][]byte, MaxSeeds+1)
	_, err = CreateProgramAddress(tooMany, types.LockupProgramAddr)
	assert.ErrorIs(t, err, ErrMaxSeedsExceeded)

	_, _, err = FindProgramAddress(make([][]byte, MaxSeeds), types.LockupProgramAddr)
	assert.ErrorIs(t, err, ErrMaxSeedsExceeded)
}

func TestIsOnCurve(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	assert.True(t, IsOnCurve(pub))
	assert.False(t, IsOnCurve(pub[:31]))
}

func TestWrongBumpIsRejectedOrDiffers(t *testing.T) {
	seeds := [][]byte{[]byte("escrow_authority")}
	addr, bump, err := FindProgramAddress(seeds, types.LockupProgramAddr)
	require.NoError(t, err)

	other, err := NewSignerSeeds(bump-1, seeds...).Address(types.LockupProgramAddr)
	if err == nil {
		assert.NotEqual(t, addr, other)
	} else {
		assert.ErrorIs(t, err, ErrOnCurve)
	}
}
