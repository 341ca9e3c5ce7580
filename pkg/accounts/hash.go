package accounts

import (
	"encoding/binary"

	"github.com/zeebo/blake3"

	"github.com/fortiblox/x1-lockup/internal/types"
)

// State commitments.
//
// Account hash: BLAKE3(lamports || rent_epoch || data || executable || owner || pubkey)
// Deleted accounts hash to the zero hash.
//
// Set hashes are binary Merkle roots over account hashes sorted by pubkey:
//   - Leaf: BLAKE3(0x00 || hash)
//   - Node: BLAKE3(0x01 || left || right)
//   - An unpaired node is paired with the zero hash

// ComputeAccountHash computes the hash of a single account.
func ComputeAccountHash(pubkey types.Pubkey, account *Account) types.Hash {
	if account == nil || account.IsZero() {
		return types.Hash{}
	}

	// lamports (8) + rent_epoch (8) + data + executable (1) + owner (32) + pubkey (32)
	buf := make([]byte, 8+8+len(account.Data)+1+32+32)
	offset := 0

	binary.LittleEndian.PutUint64(buf[offset:], account.Lamports)
	offset += 8

	binary.LittleEndian.PutUint64(buf[offset:], account.RentEpoch)
	offset += 8

	copy(buf[offset:], account.Data)
	offset += len(account.Data)

	if account.Executable {
		buf[offset] = 1
	}
	offset++

	copy(buf[offset:], account.Owner[:])
	offset += 32

	copy(buf[offset:], pubkey[:])

	return blake3.Sum256(buf)
}

// ComputeAccountsHash computes the Merkle root over every account in db.
func ComputeAccountsHash(db DB) (types.Hash, error) {
	var hashes []types.Hash
	err := db.IterateAccounts(func(pubkey types.Pubkey, account *Account) error {
		hashes = append(hashes, ComputeAccountHash(pubkey, account))
		return nil
	})
	if err != nil {
		return types.Hash{}, err
	}
	return ComputeMerkleRoot(hashes), nil
}

// ComputeDeltaHash computes the Merkle root over the post-state of a set of
// updates.
func ComputeDeltaHash(updates []Update) types.Hash {
	if len(updates) == 0 {
		return types.Hash{}
	}

	byKey := make(map[types.Pubkey]*Account, len(updates))
	keys := make([]types.Pubkey, 0, len(updates))
	for _, u := range updates {
		if _, ok := byKey[u.Pubkey]; !ok {
			keys = append(keys, u.Pubkey)
		}
		byKey[u.Pubkey] = u.Account
	}
	SortPubkeys(keys)

	hashes := make([]types.Hash, len(keys))
	for i, k := range keys {
		hashes[i] = ComputeAccountHash(k, byKey[k])
	}
	return ComputeMerkleRoot(hashes)
}

// ComputeMerkleRoot computes the Merkle root of a list of hashes.
func ComputeMerkleRoot(hashes []types.Hash) types.Hash {
	if len(hashes) == 0 {
		return types.Hash{}
	}

	level := make([]types.Hash, len(hashes))
	for i, h := range hashes {
		level[i] = computeLeafHash(h)
	}

	for len(level) > 1 {
		nextLevel := make([]types.Hash, (len(level)+1)/2)

		for i := 0; i < len(level); i += 2 {
			left := level[i]
			var right types.Hash
			if i+1 < len(level) {
				right = level[i+1]
			}
			nextLevel[i/2] = computeNodeHash(left, right)
		}

		level = nextLevel
	}

	return level[0]
}

func computeLeafHash(data types.Hash) types.Hash {
	buf := make([]byte, 1+32)
	buf[0] = 0x00
	copy(buf[1:], data[:])
	return blake3.Sum256(buf)
}

func computeNodeHash(left, right types.Hash) types.Hash {
	buf := make([]byte, 1+32+32)
	buf[0] = 0x01
	copy(buf[1:], left[:])
	copy(buf[33:], right[:])
	return blake3.Sum256(buf)
}
