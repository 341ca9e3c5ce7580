package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/x1-lockup/internal/types"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/lockup"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/token"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	err := run(args, &out)
	return out.String(), err
}

func TestEscrow(t *testing.T) {
	mint := types.Pubkey{7, 7, 7}

	out, err := runCommand(t, "escrow", "-mint", mint.String(), "-token-program", token.Program2022ID.String())
	require.NoError(t, err)

	var decoded escrowOutput
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))

	expected, err := lockup.GetEscrowAddresses(lockup.ProgramID, mint, token.Program2022ID)
	require.NoError(t, err)
	assert.Equal(t, expected.Authority.String(), decoded.Authority)
	assert.Equal(t, expected.AuthorityBump, decoded.AuthorityBump)
	assert.Equal(t, expected.TokenAccount.String(), decoded.TokenAccount)

	_, err = runCommand(t, "escrow", "-mint", "bad")
	assert.Error(t, err)

	_, err = runCommand(t, "escrow", "-mint", mint.String(), "-token-program", types.SystemProgramAddr.String())
	assert.Error(t, err)
}

func TestEncodeDecodeInstruction(t *testing.T) {
	out, err := runCommand(t, "encode", "lockup", "-amount", "1000")
	require.NoError(t, err)

	data, err := base58.Decode(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, lockup.Instruction{Command: lockup.CommandLockup, Amount: 1000}.Pack(), data)

	out, err = runCommand(t, "decode-instruction", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"Lockup","amount":1000}`, out)

	out, err = runCommand(t, "encode", "withdraw")
	require.NoError(t, err)
	out, err = runCommand(t, "decode-instruction", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"Withdraw"}`, out)

	_, err = runCommand(t, "encode", "burn")
	assert.Error(t, err)

	_, err = runCommand(t, "decode-instruction", base58.Encode([]byte{9}))
	assert.Error(t, err)
}

func TestDecodeLockup(t *testing.T) {
	authority := types.Pubkey{1}
	mint := types.Pubkey{2}
	end := uint64(2_000)
	record := lockup.NewLockup(50, authority, 1_000, mint)
	record.LockupEndTimestamp = &end

	encoded := base64.StdEncoding.EncodeToString(record.Marshal())

	out, err := runCommand(t, "decode-lockup", "-now", "1500", encoded)
	require.NoError(t, err)

	var decoded lockupOutput
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.EqualValues(t, 50, decoded.Amount)
	assert.Equal(t, authority.String(), decoded.Authority)
	assert.Equal(t, "unlocking", decoded.State)
	assert.EqualValues(t, 500, decoded.RemainingCooldownSeconds)

	out, err = runCommand(t, "decode-lockup", "-encoding", "base58", "-now", "2000", base58.Encode(record.Marshal()))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "withdrawable", decoded.State)

	_, err = runCommand(t, "decode-lockup", base64.StdEncoding.EncodeToString(make([]byte, lockup.LockupSize)))
	assert.Error(t, err)

	_, err = runCommand(t, "decode-lockup", base64.StdEncoding.EncodeToString([]byte{1, 2, 3}))
	assert.Error(t, err)
}

func TestUsage(t *testing.T) {
	out, err := runCommand(t)
	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, out, "usage: lockupctl")

	_, err = runCommand(t, "frobnicate")
	assert.Error(t, err)
}
