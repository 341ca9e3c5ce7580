package accounts

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/fortiblox/x1-lockup/internal/types"
)

// Key prefixes for BadgerDB storage.
// Using prefixes allows efficient iteration over specific data types.
var (
	// prefixAccount is the prefix for account data.
	// Key format: prefixAccount + pubkey (32 bytes)
	prefixAccount = []byte{0x01}

	// prefixMeta is the prefix for metadata.
	// Key format: prefixMeta + key name
	prefixMeta = []byte{0x02}

	// metaSequence is the key for storing the applied update count.
	metaSequence = append(prefixMeta, []byte("sequence")...)

	// metaAccountsCount is the key for storing accounts count.
	metaAccountsCount = append(prefixMeta, []byte("count")...)
)

// BadgerDBConfig contains configuration for BadgerDB.
type BadgerDBConfig struct {
	// Path is the directory path for the database.
	Path string

	// InMemory runs the database in memory (for testing).
	InMemory bool

	// SyncWrites ensures writes are synced to disk.
	// Setting to false improves performance but risks data loss on crash.
	SyncWrites bool

	// NumCompactors is the number of compaction workers.
	NumCompactors int

	// NumMemtables is the number of memtables.
	NumMemtables int

	// ValueLogFileSize is the size of each value log file.
	ValueLogFileSize int64

	// Logger receives badger's internal logs. Nil disables them.
	Logger badger.Logger
}

// DefaultBadgerDBConfig returns default configuration.
func DefaultBadgerDBConfig(path string) BadgerDBConfig {
	return BadgerDBConfig{
		Path:             path,
		InMemory:         false,
		SyncWrites:       true,
		NumCompactors:    2,
		NumMemtables:     5,
		ValueLogFileSize: 64 << 20, // 64MB
		Logger:           logrus.StandardLogger().WithField("type", "accounts/badger"),
	}
}

// BadgerDB is a BadgerDB-backed implementation of the accounts database.
//
// Accounts are stored under their pubkey in the serialized form produced by
// Account.Serialize. The sequence and account count are cached in memory and
// persisted with every Apply.
type BadgerDB struct {
	db *badger.DB

	sequence      atomic.Uint64
	accountsCount atomic.Uint64

	// mu serializes writers so the account count stays exact
	mu sync.Mutex

	closed atomic.Bool
}

// NewBadgerDB creates a new BadgerDB-backed accounts database.
func NewBadgerDB(cfg BadgerDBConfig) (*BadgerDB, error) {
	opts := badger.DefaultOptions(cfg.Path)

	if cfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumCompactors(cfg.NumCompactors).
		WithNumMemtables(cfg.NumMemtables).
		WithValueLogFileSize(cfg.ValueLogFileSize).
		WithLogger(cfg.Logger)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	bdb := &BadgerDB{
		db: db,
	}

	if err := bdb.loadMetadata(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load metadata: %w", err)
	}

	return bdb, nil
}

// loadMetadata loads sequence and count from disk.
func (b *BadgerDB) loadMetadata() error {
	return b.db.View(func(txn *badger.Txn) error {
		seq, err := readUint64(txn, metaSequence)
		if err != nil {
			return err
		}
		b.sequence.Store(seq)

		count, err := readUint64(txn, metaAccountsCount)
		if err != nil {
			return err
		}
		b.accountsCount.Store(count)

		return nil
	})
}

func readUint64(txn *badger.Txn, key []byte) (uint64, error) {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var v uint64
	err = item.Value(func(val []byte) error {
		if len(val) >= 8 {
			v = binary.LittleEndian.Uint64(val)
		}
		return nil
	})
	return v, err
}

func writeMetadata(txn *badger.Txn, sequence, count uint64) error {
	seqBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(seqBuf, sequence)
	if err := txn.Set(metaSequence, seqBuf); err != nil {
		return err
	}

	countBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(countBuf, count)
	return txn.Set(metaAccountsCount, countBuf)
}

// accountKey returns the BadgerDB key for an account.
func accountKey(pubkey types.Pubkey) []byte {
	key := make([]byte, 1+32)
	key[0] = prefixAccount[0]
	copy(key[1:], pubkey[:])
	return key
}

// GetAccount retrieves an account by public key.
func (b *BadgerDB) GetAccount(pubkey types.Pubkey) (*Account, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}

	var account *Account

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(accountKey(pubkey))
		if err == badger.ErrKeyNotFound {
			return ErrAccountNotFound
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			acc, err := DeserializeAccount(val)
			if err != nil {
				return err
			}
			account = acc
			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return account, nil
}

// putAccount stages one write in txn and returns the change in account count.
func putAccount(txn *badger.Txn, pubkey types.Pubkey, account *Account) (int64, error) {
	key := accountKey(pubkey)

	exists := true
	if _, err := txn.Get(key); err == badger.ErrKeyNotFound {
		exists = false
	} else if err != nil {
		return 0, err
	}

	if account == nil || account.IsZero() {
		if !exists {
			return 0, nil
		}
		return -1, txn.Delete(key)
	}

	if err := txn.Set(key, account.Serialize()); err != nil {
		return 0, err
	}
	if exists {
		return 0, nil
	}
	return 1, nil
}

func (b *BadgerDB) write(updates []Update, advance bool) error {
	if b.closed.Load() {
		return ErrClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var delta int64
	sequence := b.sequence.Load()
	if advance {
		sequence++
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		delta = 0
		for _, u := range updates {
			d, err := putAccount(txn, u.Pubkey, u.Account)
			if err != nil {
				return err
			}
			delta += d
		}
		return writeMetadata(txn, sequence, uint64(int64(b.accountsCount.Load())+delta))
	})
	if err != nil {
		return err
	}

	b.accountsCount.Store(uint64(int64(b.accountsCount.Load()) + delta))
	b.sequence.Store(sequence)
	return nil
}

// SetAccount stores an account.
func (b *BadgerDB) SetAccount(pubkey types.Pubkey, account *Account) error {
	return b.write([]Update{{Pubkey: pubkey, Account: account}}, false)
}

// DeleteAccount removes an account.
func (b *BadgerDB) DeleteAccount(pubkey types.Pubkey) error {
	return b.write([]Update{{Pubkey: pubkey}}, false)
}

// Apply writes all updates in a single badger transaction.
func (b *BadgerDB) Apply(updates []Update) error {
	return b.write(updates, true)
}

// HasAccount checks if an account exists.
func (b *BadgerDB) HasAccount(pubkey types.Pubkey) (bool, error) {
	if b.closed.Load() {
		return false, ErrClosed
	}

	var exists bool
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(accountKey(pubkey))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// GetSequence returns the number of applied update sets.
func (b *BadgerDB) GetSequence() uint64 {
	return b.sequence.Load()
}

// SetSequence overrides the sequence.
func (b *BadgerDB) SetSequence(seq uint64) error {
	if b.closed.Load() {
		return ErrClosed
	}

	b.sequence.Store(seq)
	return b.Commit()
}

// AccountsCount returns the total number of accounts.
func (b *BadgerDB) AccountsCount() (uint64, error) {
	if b.closed.Load() {
		return 0, ErrClosed
	}
	return b.accountsCount.Load(), nil
}

// Commit persists metadata (sequence, count).
func (b *BadgerDB) Commit() error {
	if b.closed.Load() {
		return ErrClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.db.Update(func(txn *badger.Txn) error {
		return writeMetadata(txn, b.sequence.Load(), b.accountsCount.Load())
	})
}

// Close closes the database.
func (b *BadgerDB) Close() error {
	if err := b.Commit(); err != nil && err != ErrClosed {
		logrus.StandardLogger().WithField("type", "accounts/badger").WithError(err).Warn("failure persisting metadata on close")
	}
	if b.closed.Swap(true) {
		return ErrClosed
	}
	return b.db.Close()
}

// IterateAccounts iterates over all accounts in sorted pubkey order.
// The callback receives each pubkey and account.
// Return an error from the callback to stop iteration.
func (b *BadgerDB) IterateAccounts(fn func(pubkey types.Pubkey, account *Account) error) error {
	if b.closed.Load() {
		return ErrClosed
	}

	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixAccount
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.Key()

			if len(key) != 33 { // 1 prefix + 32 pubkey
				continue
			}
			var pubkey types.Pubkey
			copy(pubkey[:], key[1:])

			err := item.Value(func(val []byte) error {
				account, err := DeserializeAccount(val)
				if err != nil {
					return err
				}
				return fn(pubkey, account)
			})
			if err != nil {
				return err
			}
		}

		return nil
	})
}

// RunGC runs garbage collection on the value log.
// This should be called periodically to reclaim space.
func (b *BadgerDB) RunGC() error {
	if b.closed.Load() {
		return ErrClosed
	}
	err := b.db.RunValueLogGC(0.5)
	if err == badger.ErrNoRewrite {
		return nil
	}
	return err
}

// Size returns the size of the database in bytes.
func (b *BadgerDB) Size() (lsm, vlog int64) {
	return b.db.Size()
}

// Verify that BadgerDB implements DB interface.
var _ DB = (*BadgerDB)(nil)
