// Package journal provides persistent, tamper-evident storage of executed
// transactions.
//
// Every transaction the runtime executes, successful or not, is appended as
// an Entry. Entries are gob-encoded, zstd-compressed and stored in BoltDB
// keyed by their index. Each entry's hash covers the hash of its predecessor,
// so Verify detects any rewritten or missing entry.
package journal

import (
	"bytes"
	"encoding/gob"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"github.com/fortiblox/x1-lockup/internal/types"
	"github.com/fortiblox/x1-lockup/pkg/runtime"
)

var (
	// ErrEntryNotFound is returned when an entry doesn't exist.
	ErrEntryNotFound = errors.New("journal entry not found")

	// ErrClosed is returned when operating on a closed journal.
	ErrClosed = errors.New("journal closed")

	// ErrChainBroken is returned by Verify when an entry does not match its
	// hash or its predecessor.
	ErrChainBroken = errors.New("journal hash chain broken")
)

// Bucket names for BoltDB.
var (
	// bucketEntries stores compressed entries keyed by index.
	bucketEntries = []byte("entries")

	// bucketMetadata stores journal metadata.
	bucketMetadata = []byte("metadata")
)

// Metadata keys.
var (
	keyLatest = []byte("latest")
	keyOldest = []byte("oldest")
	keyHead   = []byte("head")
)

// Config holds journal configuration options.
type Config struct {
	// Path is the journal database file.
	Path string

	// NoSync disables fsync after each write (faster but less durable).
	NoSync bool

	// ReadOnly opens the database in read-only mode.
	ReadOnly bool

	// RetainEntries is the number of entries kept by pruning. Zero disables
	// pruning.
	RetainEntries uint64

	// PruneInterval is how often to run the pruning routine.
	PruneInterval time.Duration
}

// DefaultConfig returns the default journal configuration.
func DefaultConfig(path string) Config {
	return Config{
		Path:          path,
		PruneInterval: time.Hour,
	}
}

// Journal is a BoltDB-backed transaction journal.
type Journal struct {
	db     *bolt.DB
	config Config
	log    *logrus.Entry

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	// Cached metadata, guarded by mu. Appends hold mu for the whole write
	// so indexes and the chain stay consistent.
	mu     sync.Mutex
	latest uint64
	oldest uint64
	head   types.Hash
	closed bool

	pruneStop chan struct{}
	pruneWG   sync.WaitGroup
}

var _ runtime.Recorder = (*Journal)(nil)

// Open creates or opens a journal.
func Open(config Config) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, errors.Wrap(err, "create directory")
	}

	db, err := bolt.Open(config.Path, 0600, &bolt.Options{
		Timeout:  5 * time.Second,
		NoSync:   config.NoSync,
		ReadOnly: config.ReadOnly,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "init zstd encoder")
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "init zstd decoder")
	}

	j := &Journal{
		db:        db,
		config:    config,
		log:       logrus.StandardLogger().WithField("type", "journal"),
		encoder:   encoder,
		decoder:   decoder,
		pruneStop: make(chan struct{}),
	}

	if !config.ReadOnly {
		if err := j.initBuckets(); err != nil {
			j.closeCodecs()
			db.Close()
			return nil, errors.Wrap(err, "init buckets")
		}
	}
	if err := j.loadMetadata(); err != nil {
		j.closeCodecs()
		db.Close()
		return nil, errors.Wrap(err, "load metadata")
	}

	if config.RetainEntries > 0 && config.PruneInterval > 0 && !config.ReadOnly {
		j.startPruning()
	}

	j.log.WithFields(logrus.Fields{
		"path":   config.Path,
		"latest": j.latest,
	}).Info("journal opened")

	return j, nil
}

func (j *Journal) initBuckets() error {
	return j.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketEntries, bucketMetadata} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return errors.Wrapf(err, "create bucket %s", name)
			}
		}
		return nil
	})
}

func (j *Journal) loadMetadata() error {
	return j.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMetadata)
		if meta == nil {
			return nil // Empty database.
		}
		if v := meta.Get(keyLatest); v != nil {
			j.latest = DecodeIndexKey(v)
		}
		if v := meta.Get(keyOldest); v != nil {
			j.oldest = DecodeIndexKey(v)
		}
		if v := meta.Get(keyHead); v != nil {
			copy(j.head[:], v)
		}
		return nil
	})
}

func (j *Journal) startPruning() {
	j.pruneWG.Add(1)
	go func() {
		defer j.pruneWG.Done()
		ticker := time.NewTicker(j.config.PruneInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := j.Prune(j.config.RetainEntries); err != nil {
					j.log.WithError(err).Warn("failure pruning journal")
				}
			case <-j.pruneStop:
				return
			}
		}
	}()
}

// Record appends the outcome of an executed transaction.
func (j *Journal) Record(tx *runtime.Transaction, result *runtime.ExecutionResult) error {
	entry := &Entry{
		AccountsSequence: result.Sequence,
		Signature:        tx.Signature,
		Timestamp:        result.Timestamp,
		Success:          result.Success,
		Signers:          tx.Signers,
		Logs:             result.Logs,
		ComputeUnits:     result.ComputeUnitsUsed,
		ModifiedAccounts: result.ModifiedAccounts,
		DeltaHash:        result.DeltaHash,
	}
	if result.Err != nil {
		entry.Error = result.Err.Error()
	}
	for _, ix := range tx.Instructions {
		recorded := Instruction{ProgramID: ix.ProgramID, Data: ix.Data}
		for _, meta := range ix.Accounts {
			recorded.Accounts = append(recorded.Accounts, AccountMeta(meta))
		}
		entry.Instructions = append(entry.Instructions, recorded)
	}

	_, err := j.Append(entry)
	return err
}

// Append assigns entry the next index, chains it to the current head and
// stores it. The stored entry is returned.
func (j *Journal) Append(entry *Entry) (*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil, ErrClosed
	}

	stored := *entry
	stored.Index = j.latest + 1
	stored.PrevHash = j.head
	stored.Hash = stored.ComputeHash()

	data, err := j.encode(&stored)
	if err != nil {
		return nil, err
	}

	oldest := j.oldest
	if oldest == 0 {
		oldest = stored.Index
	}

	err = j.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketEntries).Put(EncodeIndexKey(stored.Index), data); err != nil {
			return err
		}
		meta := tx.Bucket(bucketMetadata)
		if err := meta.Put(keyLatest, EncodeIndexKey(stored.Index)); err != nil {
			return err
		}
		if err := meta.Put(keyOldest, EncodeIndexKey(oldest)); err != nil {
			return err
		}
		return meta.Put(keyHead, stored.Hash[:])
	})
	if err != nil {
		return nil, errors.Wrapf(err, "append entry %d", stored.Index)
	}

	j.latest = stored.Index
	j.oldest = oldest
	j.head = stored.Hash
	return &stored, nil
}

// Get retrieves an entry by index.
func (j *Journal) Get(index uint64) (*Entry, error) {
	if j.isClosed() {
		return nil, ErrClosed
	}

	var entry *Entry
	err := j.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		if b == nil {
			return ErrEntryNotFound
		}
		data := b.Get(EncodeIndexKey(index))
		if data == nil {
			return ErrEntryNotFound
		}
		var err error
		entry, err = j.decode(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Iterate calls fn for every retained entry with index in [start, end], in
// order. An end of zero means no upper bound.
func (j *Journal) Iterate(start, end uint64, fn func(*Entry) error) error {
	if j.isClosed() {
		return ErrClosed
	}

	return j.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Seek(EncodeIndexKey(start)); k != nil; k, v = c.Next() {
			if end != 0 && DecodeIndexKey(k) > end {
				break
			}
			entry, err := j.decode(v)
			if err != nil {
				return errors.Wrapf(err, "decode entry %d", DecodeIndexKey(k))
			}
			if err := fn(entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// Verify checks the hash chain of every retained entry. The first retained
// entry is trusted to link to pruned history.
func (j *Journal) Verify() error {
	var (
		prev     types.Hash
		expected uint64
	)
	err := j.Iterate(0, 0, func(e *Entry) error {
		if expected != 0 {
			if e.Index != expected {
				return errors.Wrapf(ErrChainBroken, "entry %d missing", expected)
			}
			if e.PrevHash != prev {
				return errors.Wrapf(ErrChainBroken, "entry %d does not link to its predecessor", e.Index)
			}
		}
		if e.ComputeHash() != e.Hash {
			return errors.Wrapf(ErrChainBroken, "entry %d hash mismatch", e.Index)
		}
		prev = e.Hash
		expected = e.Index + 1
		return nil
	})
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if prev != j.head {
		return errors.Wrap(ErrChainBroken, "head does not match newest entry")
	}
	return nil
}

// Latest returns the index of the newest entry, zero if the journal is empty.
func (j *Journal) Latest() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.latest
}

// Head returns the hash of the newest entry.
func (j *Journal) Head() types.Hash {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.head
}

// Prune deletes all but the newest keep entries. It returns the number of
// entries deleted.
func (j *Journal) Prune(keep uint64) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return 0, ErrClosed
	}
	if j.latest <= keep || j.oldest == 0 {
		return 0, nil
	}

	pruneBefore := j.latest - keep + 1
	if pruneBefore <= j.oldest {
		return 0, nil
	}

	var pruned uint64
	err := j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		c := b.Cursor()
		maxKey := EncodeIndexKey(pruneBefore)
		for k, _ := c.First(); k != nil && bytes.Compare(k, maxKey) < 0; k, _ = c.First() {
			if err := b.Delete(k); err != nil {
				return err
			}
			pruned++
		}
		return tx.Bucket(bucketMetadata).Put(keyOldest, EncodeIndexKey(pruneBefore))
	})
	if err != nil {
		return 0, errors.Wrap(err, "prune journal")
	}

	j.oldest = pruneBefore
	j.log.WithFields(logrus.Fields{
		"pruned": pruned,
		"oldest": pruneBefore,
	}).Debug("pruned journal")
	return pruned, nil
}

// GetStats returns journal statistics.
func (j *Journal) GetStats() (*Stats, error) {
	j.mu.Lock()
	stats := &Stats{
		Latest: j.latest,
		Oldest: j.oldest,
		Head:   j.head,
	}
	closed := j.closed
	j.mu.Unlock()

	if closed {
		return nil, ErrClosed
	}
	if stats.Oldest != 0 {
		stats.EntryCount = stats.Latest - stats.Oldest + 1
	}

	err := j.db.View(func(tx *bolt.Tx) error {
		stats.DatabaseSize = tx.Size()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// Sync forces a sync of the database to disk.
func (j *Journal) Sync() error {
	if j.isClosed() {
		return ErrClosed
	}
	return j.db.Sync()
}

// Close stops pruning and closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	j.mu.Unlock()

	close(j.pruneStop)
	j.pruneWG.Wait()

	j.closeCodecs()
	return j.db.Close()
}

func (j *Journal) closeCodecs() {
	j.encoder.Close()
	j.decoder.Close()
}

func (j *Journal) isClosed() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closed
}

func (j *Journal) encode(entry *Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		return nil, errors.Wrap(err, "encode entry")
	}
	return j.encoder.EncodeAll(buf.Bytes(), nil), nil
}

func (j *Journal) decode(data []byte) (*Entry, error) {
	raw, err := j.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, errors.Wrap(err, "decompress entry")
	}
	var entry Entry
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&entry); err != nil {
		return nil, errors.Wrap(err, "decode entry")
	}
	return &entry, nil
}
