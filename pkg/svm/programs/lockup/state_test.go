package lockup

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/x1-lockup/internal/types"
	"github.com/fortiblox/x1-lockup/pkg/svm"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/associated"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/token"
)

func testKey(b byte) types.Pubkey {
	var k types.Pubkey
	for i := range k {
		k[i] = b
	}
	return k
}

func TestLockupLayout(t *testing.T) {
	require.Equal(t, 96, LockupSize)

	end := uint64(4_000)
	record := &Lockup{
		Amount:               0x0102030405060708,
		Authority:            testKey(0xaa),
		LockupStartTimestamp: 2_200,
		LockupEndTimestamp:   &end,
		Mint:                 testKey(0xbb),
	}
	b := record.Marshal()
	require.Len(t, b, LockupSize)

	assert.Equal(t, Discriminator, b[:8])
	assert.Equal(t, uint64(0x0102030405060708), binary.LittleEndian.Uint64(b[8:16]))
	assert.Equal(t, testKey(0xaa).Bytes(), b[16:48])
	assert.Equal(t, uint64(2_200), binary.LittleEndian.Uint64(b[48:56]))
	assert.Equal(t, uint64(4_000), binary.LittleEndian.Uint64(b[56:64]))
	assert.Equal(t, testKey(0xbb).Bytes(), b[64:96])

	decoded, err := UnpackLockup(b)
	require.NoError(t, err)
	assert.Equal(t, record, decoded)
}

func TestLockupZeroEndTimestampIsNone(t *testing.T) {
	record := NewLockup(5, testKey(1), 10, testKey(2))
	b := record.Marshal()
	assert.Equal(t, make([]byte, 8), b[56:64])

	decoded, err := UnpackLockup(b)
	require.NoError(t, err)
	assert.Nil(t, decoded.LockupEndTimestamp)
}

func TestDiscriminator(t *testing.T) {
	assert.Len(t, Discriminator, 8)
	assert.NotEqual(t, make([]byte, 8), Discriminator)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindUninitialized, Classify(make([]byte, LockupSize)))
	assert.Equal(t, KindLockup, Classify(NewLockup(1, testKey(1), 1, testKey(2)).Marshal()))
	assert.Equal(t, KindUnknown, Classify(make([]byte, LockupSize-1)))
	assert.Equal(t, KindUnknown, Classify(nil))

	garbage := make([]byte, LockupSize)
	garbage[0] = 1
	assert.Equal(t, KindUnknown, Classify(garbage))

	_, err := UnpackLockup(garbage)
	assert.ErrorIs(t, err, ErrUnknownDiscriminator)
	_, err = UnpackLockup(make([]byte, LockupSize))
	assert.ErrorIs(t, err, ErrUnknownDiscriminator)
}

func TestLockupState(t *testing.T) {
	record := NewLockup(1, testKey(1), 100, testKey(2))
	assert.Equal(t, StateLocked, record.State(1_000_000))
	assert.Zero(t, record.RemainingCooldown(1_000_000))

	end := uint64(100 + CooldownSeconds)
	record.LockupEndTimestamp = &end

	assert.Equal(t, StateUnlocking, record.State(100))
	assert.Equal(t, CooldownSeconds*time.Second, record.RemainingCooldown(100))
	assert.Equal(t, StateUnlocking, record.State(int64(end)-1))
	assert.Equal(t, time.Second, record.RemainingCooldown(int64(end)-1))
	assert.Equal(t, StateWithdrawable, record.State(int64(end)))
	assert.Zero(t, record.RemainingCooldown(int64(end)))
	assert.Equal(t, StateUnlocking, record.State(-1))

	assert.Equal(t, "locked", StateLocked.String())
	assert.Equal(t, "unlocking", StateUnlocking.String())
	assert.Equal(t, "withdrawable", StateWithdrawable.String())
}

func TestInstructionCodec(t *testing.T) {
	data := Instruction{Command: CommandLockup, Amount: 1_000}.Pack()
	assert.Equal(t, []byte{0, 0xe8, 0x03, 0, 0, 0, 0, 0, 0}, data)

	ix, err := UnpackInstruction(data)
	require.NoError(t, err)
	assert.Equal(t, Instruction{Command: CommandLockup, Amount: 1_000}, ix)

	assert.Equal(t, []byte{1}, Instruction{Command: CommandUnlock}.Pack())
	assert.Equal(t, []byte{2}, Instruction{Command: CommandWithdraw}.Pack())

	for _, bad := range [][]byte{
		nil,
		{0, 1, 2},
		append(data, 0),
		{1, 0},
		{2, 0},
		{3},
	} {
		_, err := UnpackInstruction(bad)
		assert.ErrorIs(t, err, svm.ErrInvalidInstructionData, "data %v", bad)
	}
}

func TestInstructionAccounts(t *testing.T) {
	mint := testKey(3)
	escrow, err := GetEscrowAddresses(ProgramID, mint, token.ProgramID)
	require.NoError(t, err)

	ix, err := NewLockupInstruction(ProgramID, &LockupInstructionAccounts{
		LockupAuthority: testKey(1),
		TokenOwner:      testKey(2),
		TokenAccount:    testKey(4),
		Lockup:          testKey(5),
		Mint:            mint,
		TokenProgram:    token.ProgramID,
	}, &LockupInstructionArgs{Amount: 7})
	require.NoError(t, err)

	require.Len(t, ix.Accounts, LockupInstructionAccountsSize)
	assert.Equal(t, ProgramID, ix.ProgramID)
	assert.Equal(t, svm.NewReadonlyAccountMeta(testKey(2), true), ix.Accounts[1])
	assert.Equal(t, svm.NewAccountMeta(testKey(5), false), ix.Accounts[3])
	assert.Equal(t, escrow.Authority, ix.Accounts[4].Pubkey)
	assert.Equal(t, escrow.TokenAccount, ix.Accounts[5].Pubkey)

	unlock := NewUnlockInstruction(ProgramID, &UnlockInstructionAccounts{LockupAuthority: testKey(1), Lockup: testKey(5)})
	require.Len(t, unlock.Accounts, UnlockInstructionAccountsSize)
	assert.True(t, unlock.Accounts[0].IsSigner)
	assert.True(t, unlock.Accounts[1].IsWritable)

	withdraw, err := NewWithdrawInstruction(ProgramID, &WithdrawInstructionAccounts{
		LockupAuthority:     testKey(1),
		LamportsDestination: testKey(6),
		TokenDestination:    testKey(7),
		Lockup:              testKey(5),
		Mint:                mint,
		TokenProgram:        token.ProgramID,
	})
	require.NoError(t, err)
	require.Len(t, withdraw.Accounts, WithdrawInstructionAccountsSize)
	assert.Equal(t, escrow.TokenAccount, withdraw.Accounts[5].Pubkey)
	assert.True(t, withdraw.Accounts[5].IsWritable)
}

func TestEscrowAddresses(t *testing.T) {
	mint := testKey(9)

	escrow, err := GetEscrowAddresses(ProgramID, mint, token.ProgramID)
	require.NoError(t, err)

	authority, bump, err := GetEscrowAuthorityAddress(ProgramID)
	require.NoError(t, err)
	assert.Equal(t, authority, escrow.Authority)
	assert.Equal(t, bump, escrow.AuthorityBump)

	expected := associated.MustGetAssociatedAddress(authority, mint, token.ProgramID)
	assert.Equal(t, expected, escrow.TokenAccount)

	legacy, err := GetEscrowTokenAccountAddress(ProgramID, mint, token.ProgramID)
	require.NoError(t, err)
	token2022, err := GetEscrowTokenAccountAddress(ProgramID, mint, token.Program2022ID)
	require.NoError(t, err)
	assert.Equal(t, escrow.TokenAccount, legacy)
	assert.NotEqual(t, legacy, token2022)

	other, _, err := GetEscrowAuthorityAddress(testKey(8))
	require.NoError(t, err)
	assert.NotEqual(t, authority, other)
}

func TestErrorCodes(t *testing.T) {
	codes := map[Error]uint32{
		ErrIncorrectMint:                   0,
		ErrIncorrectEscrowAuthorityAddress: 1,
		ErrIncorrectEscrowTokenAccount:     2,
		ErrLockupActive:                    3,
		ErrIncorrectTokenAccount:           4,
		ErrLockupAlreadyUnlocked:           5,
	}
	for err, code := range codes {
		assert.Equal(t, code, err.Code())
		assert.NotEmpty(t, err.Error())
	}
	assert.Equal(t, "Lockup is still active.", ErrLockupActive.Error())
}
