package journal

import (
	"crypto/ed25519"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/fortiblox/x1-lockup/internal/types"
	"github.com/fortiblox/x1-lockup/pkg/runtime"
	"github.com/fortiblox/x1-lockup/pkg/runtime/runtimetest"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/system"
)

func openTestJournal(t *testing.T) (*Journal, string) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(DefaultConfig(path))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j, path
}

func testEntry(i int) *Entry {
	return &Entry{
		AccountsSequence: uint64(i),
		Timestamp:        int64(1_700_000_000 + i),
		Success:          i%2 == 0,
		Signers:          []types.Pubkey{{byte(i)}},
		Instructions: []Instruction{{
			ProgramID: types.Pubkey{9},
			Accounts:  []AccountMeta{{Pubkey: types.Pubkey{byte(i)}, IsSigner: true, IsWritable: true}},
			Data:      []byte{byte(i), 1, 2},
		}},
		Logs: []string{"Program log: entry"},
	}
}

func TestAppendAndGet(t *testing.T) {
	j, _ := openTestJournal(t)

	first, err := j.Append(testEntry(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Index)
	assert.True(t, first.PrevHash.IsZero())
	assert.Equal(t, first.ComputeHash(), first.Hash)

	second, err := j.Append(testEntry(2))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Index)
	assert.Equal(t, first.Hash, second.PrevHash)

	got, err := j.Get(1)
	require.NoError(t, err)
	assert.Equal(t, first.Hash, got.Hash)
	assert.Equal(t, first.Instructions, got.Instructions)
	assert.Equal(t, first.Signers, got.Signers)

	_, err = j.Get(3)
	assert.ErrorIs(t, err, ErrEntryNotFound)

	assert.Equal(t, uint64(2), j.Latest())
	assert.Equal(t, second.Hash, j.Head())
	require.NoError(t, j.Verify())
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(DefaultConfig(path))
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		_, err := j.Append(testEntry(i))
		require.NoError(t, err)
	}
	head := j.Head()
	require.NoError(t, j.Close())

	j, err = Open(DefaultConfig(path))
	require.NoError(t, err)
	defer j.Close()

	assert.Equal(t, uint64(3), j.Latest())
	assert.Equal(t, head, j.Head())
	require.NoError(t, j.Verify())

	fourth, err := j.Append(testEntry(4))
	require.NoError(t, err)
	assert.Equal(t, head, fourth.PrevHash)
}

func TestVerifyDetectsTampering(t *testing.T) {
	j, _ := openTestJournal(t)
	for i := 1; i <= 3; i++ {
		_, err := j.Append(testEntry(i))
		require.NoError(t, err)
	}

	tampered, err := j.Get(2)
	require.NoError(t, err)
	tampered.Logs = []string{"Program log: rewritten"}
	data, err := j.encode(tampered)
	require.NoError(t, err)

	err = j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Put(EncodeIndexKey(2), data)
	})
	require.NoError(t, err)

	assert.ErrorIs(t, j.Verify(), ErrChainBroken)
}

func TestPrune(t *testing.T) {
	j, _ := openTestJournal(t)
	for i := 1; i <= 10; i++ {
		_, err := j.Append(testEntry(i))
		require.NoError(t, err)
	}

	pruned, err := j.Prune(4)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), pruned)

	_, err = j.Get(6)
	assert.ErrorIs(t, err, ErrEntryNotFound)
	_, err = j.Get(7)
	require.NoError(t, err)

	stats, err := j.GetStats()
	require.NoError(t, err)
	assert.Equal(t, uint64(10), stats.Latest)
	assert.Equal(t, uint64(7), stats.Oldest)
	assert.Equal(t, uint64(4), stats.EntryCount)

	require.NoError(t, j.Verify())

	pruned, err = j.Prune(4)
	require.NoError(t, err)
	assert.Zero(t, pruned)
}

func TestIterate(t *testing.T) {
	j, _ := openTestJournal(t)
	for i := 1; i <= 5; i++ {
		_, err := j.Append(testEntry(i))
		require.NoError(t, err)
	}

	var indexes []uint64
	err := j.Iterate(2, 4, func(e *Entry) error {
		indexes = append(indexes, e.Index)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 3, 4}, indexes)
}

func TestRecordsRuntimeResults(t *testing.T) {
	j, _ := openTestJournal(t)
	env := runtimetest.NewEnv(t, runtime.WithRecorder(j))

	from, to := runtimetest.NewPubkey(), runtimetest.NewPubkey()
	env.SetupSystemAccount(from, 1_000)

	ok := env.MustExecute([]types.Pubkey{from}, system.Transfer(from, to, 10))
	failed := env.Execute([]types.Pubkey{from}, system.Transfer(from, to, 10_000))
	require.False(t, failed.Success)

	require.Equal(t, uint64(2), j.Latest())

	first, err := j.Get(1)
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.Empty(t, first.Error)
	assert.Equal(t, ok.DeltaHash, first.DeltaHash)
	assert.Equal(t, ok.Sequence, first.AccountsSequence)
	assert.ElementsMatch(t, []types.Pubkey{from, to}, first.ModifiedAccounts)
	require.Len(t, first.Instructions, 1)
	assert.Equal(t, system.ProgramID, first.Instructions[0].ProgramID)

	second, err := j.Get(2)
	require.NoError(t, err)
	assert.False(t, second.Success)
	assert.Contains(t, second.Error, "insufficient funds")
	assert.Equal(t, failed.Logs, second.Logs)

	require.NoError(t, j.Verify())
}

func TestRecordsSignature(t *testing.T) {
	j, _ := openTestJournal(t)
	env := runtimetest.NewEnv(t, runtime.WithRecorder(j))

	from, key := runtimetest.NewKeypair()
	env.SetupSystemAccount(from, 1_000)

	stx, err := runtime.NewSignedTransaction(env.LatestHash(), []ed25519.PrivateKey{key},
		system.Transfer(from, runtimetest.NewPubkey(), 10))
	require.NoError(t, err)
	_, err = env.Runtime.Submit(stx)
	require.NoError(t, err)

	entry, err := j.Get(1)
	require.NoError(t, err)
	assert.Equal(t, stx.ID(), entry.Signature)
	assert.Equal(t, []types.Pubkey{from}, entry.Signers)

	// The signature is covered by the entry hash.
	entry.Signature[0]++
	assert.NotEqual(t, entry.Hash, entry.ComputeHash())
}

func TestClosed(t *testing.T) {
	j, _ := openTestJournal(t)
	require.NoError(t, j.Close())

	_, err := j.Append(testEntry(1))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = j.Get(1)
	assert.ErrorIs(t, err, ErrClosed)
}
