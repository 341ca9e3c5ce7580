package journal

import (
	"encoding/binary"

	"github.com/zeebo/blake3"

	"github.com/fortiblox/x1-lockup/internal/types"
)

// AccountMeta is the journaled form of an instruction account.
type AccountMeta struct {
	Pubkey     types.Pubkey
	IsSigner   bool
	IsWritable bool
}

// Instruction is the journaled form of an executed instruction.
type Instruction struct {
	ProgramID types.Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

// Entry records one executed transaction.
type Entry struct {
	// Index is the position of the entry in the journal, starting at 1.
	Index uint64

	// AccountsSequence is the accounts database sequence after the
	// transaction.
	AccountsSequence uint64

	// Signature identifies a submitted signed transaction; zero otherwise.
	Signature types.Signature

	Timestamp    int64
	Success      bool
	Error        string
	Signers      []types.Pubkey
	Instructions []Instruction
	Logs         []string
	ComputeUnits uint64

	ModifiedAccounts []types.Pubkey
	DeltaHash        types.Hash

	// PrevHash is the hash of the previous entry; zero for the first one.
	PrevHash types.Hash

	// Hash commits to every other field of the entry.
	Hash types.Hash
}

// ComputeHash returns the chained hash of the entry, ignoring e.Hash.
func (e *Entry) ComputeHash() types.Hash {
	h := blake3.New()

	var buf [8]byte
	writeUint64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	writeBytes := func(b []byte) {
		writeUint64(uint64(len(b)))
		h.Write(b)
	}

	h.Write(e.PrevHash[:])
	writeUint64(e.Index)
	writeUint64(e.AccountsSequence)
	h.Write(e.Signature[:])
	writeUint64(uint64(e.Timestamp))
	if e.Success {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	writeBytes([]byte(e.Error))

	writeUint64(uint64(len(e.Signers)))
	for _, s := range e.Signers {
		h.Write(s[:])
	}

	writeUint64(uint64(len(e.Instructions)))
	for _, ix := range e.Instructions {
		h.Write(ix.ProgramID[:])
		writeUint64(uint64(len(ix.Accounts)))
		for _, meta := range ix.Accounts {
			h.Write(meta.Pubkey[:])
			var flags byte
			if meta.IsSigner {
				flags |= 1
			}
			if meta.IsWritable {
				flags |= 2
			}
			h.Write([]byte{flags})
		}
		writeBytes(ix.Data)
	}

	writeUint64(uint64(len(e.Logs)))
	for _, l := range e.Logs {
		writeBytes([]byte(l))
	}
	writeUint64(e.ComputeUnits)

	writeUint64(uint64(len(e.ModifiedAccounts)))
	for _, k := range e.ModifiedAccounts {
		h.Write(k[:])
	}
	h.Write(e.DeltaHash[:])

	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Stats contains journal statistics.
type Stats struct {
	// Latest is the index of the newest entry.
	Latest uint64

	// Oldest is the index of the oldest retained entry.
	Oldest uint64

	// Head is the hash of the newest entry.
	Head types.Hash

	// EntryCount is the number of retained entries.
	EntryCount uint64

	// DatabaseSize is the size of the database file in bytes.
	DatabaseSize int64
}

// EncodeIndexKey encodes an entry index as a big-endian key, so entries sort
// in order.
func EncodeIndexKey(index uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, index)
	return key
}

// DecodeIndexKey decodes a key written by EncodeIndexKey.
func DecodeIndexKey(key []byte) uint64 {
	if len(key) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(key)
}
