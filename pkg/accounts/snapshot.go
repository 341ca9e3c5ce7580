package accounts

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/fortiblox/x1-lockup/internal/types"
)

// Snapshot file format version.
const snapshotVersion uint32 = 1

// Snapshot file magic bytes for format validation.
var snapshotMagic = []byte{'L', 'K', 'S', 'N'}

var (
	// ErrSnapshotNotFound is returned when a snapshot doesn't exist.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrNotEmpty is returned when loading a snapshot into a populated store.
	ErrNotEmpty = errors.New("accounts database is not empty")
)

// SnapshotHeader contains metadata about a snapshot.
type SnapshotHeader struct {
	// Version is the snapshot format version.
	Version uint32

	// Sequence is the store sequence at which the snapshot was taken.
	Sequence uint64

	// AccountsCount is the number of accounts in the snapshot.
	AccountsCount uint64

	// AccountsHash is the Merkle root of all accounts.
	AccountsHash types.Hash
}

// Snapshot format:
//   - Magic (4 bytes): "LKSN"
//   - Version (4 bytes, little-endian)
//   - Sequence (8 bytes, little-endian)
//   - AccountsCount (8 bytes, little-endian)
//   - AccountsHash (32 bytes)
//   - Accounts (zstd compressed), for each account:
//   - Pubkey (32 bytes)
//   - AccountSize (4 bytes, little-endian)
//   - AccountData (variable, serialized account)
const snapshotHeaderSize = 4 + 8 + 8 + 32

// WriteSnapshot writes every account of db to w.
func WriteSnapshot(db DB, w io.Writer) (*SnapshotHeader, error) {
	header := SnapshotHeader{
		Version:  snapshotVersion,
		Sequence: db.GetSequence(),
	}

	var hashes []types.Hash
	err := db.IterateAccounts(func(pubkey types.Pubkey, account *Account) error {
		hashes = append(hashes, ComputeAccountHash(pubkey, account))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("compute accounts hash: %w", err)
	}
	header.AccountsCount = uint64(len(hashes))
	header.AccountsHash = ComputeMerkleRoot(hashes)

	if err := writeSnapshotHeader(w, &header); err != nil {
		return nil, err
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return nil, fmt.Errorf("init zstd writer: %w", err)
	}
	bw := bufio.NewWriter(enc)

	var written uint64
	err = db.IterateAccounts(func(pubkey types.Pubkey, account *Account) error {
		if written == header.AccountsCount {
			return errors.New("accounts changed while writing snapshot")
		}
		if _, err := bw.Write(pubkey[:]); err != nil {
			return err
		}
		data := account.Serialize()
		sizeBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(sizeBuf, uint32(len(data)))
		if _, err := bw.Write(sizeBuf); err != nil {
			return err
		}
		if _, err := bw.Write(data); err != nil {
			return err
		}
		written++
		return nil
	})
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("write accounts: %w", err)
	}

	if err := bw.Flush(); err != nil {
		enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}

	return &header, nil
}

func writeSnapshotHeader(w io.Writer, h *SnapshotHeader) error {
	buf := make([]byte, 4+snapshotHeaderSize)
	copy(buf, snapshotMagic)
	offset := 4

	binary.LittleEndian.PutUint32(buf[offset:], h.Version)
	offset += 4

	binary.LittleEndian.PutUint64(buf[offset:], h.Sequence)
	offset += 8

	binary.LittleEndian.PutUint64(buf[offset:], h.AccountsCount)
	offset += 8

	copy(buf[offset:], h.AccountsHash[:])

	_, err := w.Write(buf)
	return err
}

func readSnapshotHeader(r io.Reader) (*SnapshotHeader, error) {
	buf := make([]byte, 4+snapshotHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(buf[:4]) != string(snapshotMagic) {
		return nil, fmt.Errorf("invalid snapshot magic: %q", buf[:4])
	}

	var h SnapshotHeader
	offset := 4

	h.Version = binary.LittleEndian.Uint32(buf[offset:])
	offset += 4
	if h.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version: %d", h.Version)
	}

	h.Sequence = binary.LittleEndian.Uint64(buf[offset:])
	offset += 8

	h.AccountsCount = binary.LittleEndian.Uint64(buf[offset:])
	offset += 8

	copy(h.AccountsHash[:], buf[offset:])

	return &h, nil
}

// LoadSnapshot reads a snapshot from r into the empty store db and verifies
// its accounts hash.
func LoadSnapshot(db DB, r io.Reader) (*SnapshotHeader, error) {
	count, err := db.AccountsCount()
	if err != nil {
		return nil, err
	}
	if count != 0 {
		return nil, ErrNotEmpty
	}

	header, err := readSnapshotHeader(r)
	if err != nil {
		return nil, err
	}

	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("init zstd reader: %w", err)
	}
	defer dec.Close()
	br := bufio.NewReader(dec)

	const maxBatchSize = 1000
	batch := make([]Update, 0, maxBatchSize)

	for i := uint64(0); i < header.AccountsCount; i++ {
		pubkey, account, err := readSnapshotAccount(br)
		if err != nil {
			return nil, err
		}
		batch = append(batch, Update{Pubkey: pubkey, Account: account})
		if len(batch) == maxBatchSize {
			if err := db.Apply(batch); err != nil {
				return nil, fmt.Errorf("apply batch: %w", err)
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := db.Apply(batch); err != nil {
			return nil, fmt.Errorf("apply final batch: %w", err)
		}
	}

	if err := db.SetSequence(header.Sequence); err != nil {
		return nil, fmt.Errorf("set sequence: %w", err)
	}

	computed, err := ComputeAccountsHash(db)
	if err != nil {
		return nil, fmt.Errorf("compute hash: %w", err)
	}
	if computed != header.AccountsHash {
		return nil, fmt.Errorf("accounts hash mismatch: expected %s, got %s",
			header.AccountsHash.String(), computed.String())
	}

	return header, nil
}

func readSnapshotAccount(r io.Reader) (types.Pubkey, *Account, error) {
	var pubkey types.Pubkey
	if _, err := io.ReadFull(r, pubkey[:]); err != nil {
		return types.Pubkey{}, nil, fmt.Errorf("read pubkey: %w", err)
	}

	sizeBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, sizeBuf); err != nil {
		return types.Pubkey{}, nil, fmt.Errorf("read size: %w", err)
	}
	size := binary.LittleEndian.Uint32(sizeBuf)

	const maxAccountSerializedSize = maxAccountDataSize + 57
	if size > maxAccountSerializedSize {
		return types.Pubkey{}, nil, fmt.Errorf("account size %d exceeds maximum %d", size, maxAccountSerializedSize)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return types.Pubkey{}, nil, fmt.Errorf("read account data: %w", err)
	}

	account, err := DeserializeAccount(data)
	if err != nil {
		return types.Pubkey{}, nil, fmt.Errorf("deserialize account: %w", err)
	}
	return pubkey, account, nil
}

// CreateSnapshotFile writes a snapshot of db to path.
func CreateSnapshotFile(db DB, path string) (*SnapshotHeader, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}

	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("create snapshot file: %w", err)
	}

	header, err := WriteSnapshot(db, file)
	if err != nil {
		file.Close()
		os.Remove(tmp)
		return nil, err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return nil, err
	}

	return header, os.Rename(tmp, path)
}

// LoadSnapshotFile loads the snapshot at path into db.
func LoadSnapshotFile(db DB, path string) (*SnapshotHeader, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	return LoadSnapshot(db, file)
}
