package runtime

import (
	"errors"
	"fmt"

	"github.com/fortiblox/x1-lockup/internal/types"
	"github.com/fortiblox/x1-lockup/pkg/accounts"
)

// MaxRecentHashes is the number of ledger hashes a signed transaction may
// reference. Every committed transaction that changes accounts produces a
// new hash.
const MaxRecentHashes = 300

var (
	// ErrRejected wraps the reasons a signed transaction is refused before
	// execution.
	ErrRejected = errors.New("transaction rejected")

	// ErrRecentHashNotFound is returned for a transaction whose recent hash
	// is unknown or too old.
	ErrRecentHashNotFound = errors.New("recent hash not found")

	// ErrAlreadyProcessed is returned when a transaction with the same
	// signature was already executed.
	ErrAlreadyProcessed = errors.New("transaction already processed")
)

// signatureStatus is kept until the recent hash it was filed under expires.
type signatureStatus struct {
	result     *ExecutionResult
	recentHash types.Hash
}

// seedRecentHash starts the hash chain from the current accounts hash. It
// must be called with r.mu held.
func (r *Runtime) seedRecentHash() error {
	if len(r.recent) > 0 {
		return nil
	}
	h, err := accounts.ComputeAccountsHash(r.accounts)
	if err != nil {
		return fmt.Errorf("failed to compute accounts hash: %w", err)
	}
	r.recent = append(r.recent, h)
	return nil
}

// advanceRecentHash chains delta onto the latest hash and expires the oldest
// one, with the statuses filed under it. It must be called with r.mu held.
func (r *Runtime) advanceRecentHash(delta types.Hash) {
	if len(r.recent) == 0 {
		return
	}
	next := accounts.ComputeMerkleRoot([]types.Hash{r.recent[len(r.recent)-1], delta})
	r.recent = append(r.recent, next)
	if len(r.recent) <= MaxRecentHashes {
		return
	}

	expired := r.recent[0]
	r.recent = append(r.recent[:0], r.recent[1:]...)
	for _, sig := range r.byHash[expired] {
		delete(r.statuses, sig)
	}
	delete(r.byHash, expired)
}

func (r *Runtime) isRecent(h types.Hash) bool {
	for _, recent := range r.recent {
		if recent == h {
			return true
		}
	}
	return false
}

// LatestHash returns the newest ledger hash and the accounts sequence it
// was taken at.
func (r *Runtime) LatestHash() (types.Hash, uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.seedRecentHash(); err != nil {
		return types.Hash{}, 0, err
	}
	return r.recent[len(r.recent)-1], r.accounts.GetSequence(), nil
}

// Submit verifies and executes a signed transaction. Transactions with a bad
// signature, an expired recent hash or an already seen signature are
// rejected with an error wrapping ErrRejected. A transaction that executes
// and fails is not rejected: its failure is in the result.
func (r *Runtime) Submit(stx *SignedTransaction) (*ExecutionResult, error) {
	if err := stx.Verify(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRejected, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.seedRecentHash(); err != nil {
		return nil, err
	}
	recentHash := stx.Message.RecentHash
	if !r.isRecent(recentHash) {
		return nil, fmt.Errorf("%w: %w: %s", ErrRejected, ErrRecentHashNotFound, recentHash)
	}
	sig := stx.ID()
	if _, ok := r.statuses[sig]; ok {
		return nil, fmt.Errorf("%w: %w: %s", ErrRejected, ErrAlreadyProcessed, sig)
	}

	result, err := r.execute(stx.Transaction(), true)
	if result == nil {
		return nil, err
	}

	// The transaction may have expired its own hash; file it under the
	// newest one so the signature stays known.
	if !r.isRecent(recentHash) {
		recentHash = r.recent[len(r.recent)-1]
	}
	r.statuses[sig] = &signatureStatus{result: result, recentHash: recentHash}
	r.byHash[recentHash] = append(r.byHash[recentHash], sig)

	return result, err
}

// SignatureStatus returns the result of a submitted transaction while its
// recent hash is still valid.
func (r *Runtime) SignatureStatus(sig types.Signature) (*ExecutionResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	status, ok := r.statuses[sig]
	if !ok {
		return nil, false
	}
	return status.result, true
}
