// Package runtime hosts native programs over an accounts database.
//
// The runtime executes transactions one at a time. Each transaction loads
// the accounts it references, runs its instructions in order against working
// copies and, only if every instruction succeeds, writes the changed
// accounts back in a single atomic update. Programs may call other programs
// and may sign for their derived addresses; after every program invocation
// the runtime verifies that the program only changed what it was allowed to.
package runtime

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fortiblox/x1-lockup/internal/types"
	"github.com/fortiblox/x1-lockup/pkg/accounts"
	"github.com/fortiblox/x1-lockup/pkg/svm"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/associated"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/lockup"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/system"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/token"
)

// Default limits.
const (
	DefaultMaxInvokeDepth  = 4
	MaxTransactionAccounts = 64
)

// Transaction is an ordered list of instructions plus the set of keys whose
// signatures have been verified by the host.
type Transaction struct {
	Instructions []svm.Instruction
	Signers      []types.Pubkey

	// Signature identifies a transaction submitted in signed form. It is zero
	// for transactions built by the host.
	Signature types.Signature
}

// NewTransaction creates a transaction.
func NewTransaction(signers []types.Pubkey, instructions ...svm.Instruction) *Transaction {
	return &Transaction{
		Instructions: instructions,
		Signers:      signers,
	}
}

// ExecutionResult contains the result of transaction execution.
type ExecutionResult struct {
	// Sequence is the accounts database sequence after the transaction. It is
	// unchanged for failed transactions.
	Sequence         uint64
	Success          bool
	Err              error
	Timestamp        int64
	ComputeUnitsUsed uint64
	Logs             []string
	ModifiedAccounts []types.Pubkey

	// DeltaHash commits to the post-state of the modified accounts.
	DeltaHash types.Hash
}

// Recorder receives the result of every executed transaction.
type Recorder interface {
	Record(tx *Transaction, result *ExecutionResult) error
}

// Config holds runtime limits.
type Config struct {
	ComputeUnitLimit uint64
	MaxInvokeDepth   int
}

// DefaultConfig returns the default runtime configuration.
func DefaultConfig() Config {
	return Config{
		ComputeUnitLimit: svm.CUDefault,
		MaxInvokeDepth:   DefaultMaxInvokeDepth,
	}
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithConfig overrides the runtime limits.
func WithConfig(cfg Config) Option {
	return func(r *Runtime) {
		r.config = cfg
	}
}

// WithRecorder sets the recorder receiving execution results.
func WithRecorder(rec Recorder) Option {
	return func(r *Runtime) {
		r.recorder = rec
	}
}

// WithProgram registers an additional program.
func WithProgram(id types.Pubkey, program svm.Program) Option {
	return func(r *Runtime) {
		r.programs[id] = program
	}
}

// Runtime executes transactions against an accounts database.
type Runtime struct {
	mu sync.Mutex

	accounts accounts.DB
	clock    Clock
	programs map[types.Pubkey]svm.Program
	recorder Recorder
	config   Config
	log      *logrus.Entry

	// Replay protection for signed transactions, see submit.go.
	recent   []types.Hash
	statuses map[types.Signature]*signatureStatus
	byHash   map[types.Hash][]types.Signature
}

// New creates a runtime with the builtin programs registered: system, token
// (legacy and Token-2022), associated token account and lockup.
func New(db accounts.DB, clock Clock, opts ...Option) *Runtime {
	tokenProcessor := token.NewProcessor()

	r := &Runtime{
		accounts: db,
		clock:    clock,
		programs: map[types.Pubkey]svm.Program{
			system.ProgramID:     system.NewProcessor(),
			token.ProgramID:      tokenProcessor,
			token.Program2022ID:  tokenProcessor,
			associated.ProgramID: associated.NewProcessor(),
			lockup.ProgramID:     lockup.NewProcessor(),
		},
		config:   DefaultConfig(),
		log:      logrus.StandardLogger().WithField("type", "runtime"),
		statuses: make(map[types.Signature]*signatureStatus),
		byHash:   make(map[types.Hash][]types.Signature),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds or replaces a program.
func (r *Runtime) Register(id types.Pubkey, program svm.Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.programs[id] = program
}

// Accounts returns the underlying accounts database.
func (r *Runtime) Accounts() accounts.DB {
	return r.accounts
}

// Clock returns the ledger clock.
func (r *Runtime) Clock() Clock {
	return r.clock
}

// RentMinimum returns the rent-exempt minimum for an account of dataLen bytes.
func (r *Runtime) RentMinimum(dataLen uint64) uint64 {
	return svm.RentMinimum(dataLen)
}

// Execute runs a transaction. Instruction failures are reported in the
// result; the returned error is reserved for storage failures.
func (r *Runtime) Execute(tx *Transaction) (*ExecutionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.execute(tx, true)
}

// Simulate runs a transaction against the current state and discards its
// changes. The recorder is not called.
func (r *Runtime) Simulate(tx *Transaction) (*ExecutionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.execute(tx, false)
}

// execute must be called with r.mu held.
func (r *Runtime) execute(tx *Transaction, commit bool) (*ExecutionResult, error) {
	result := &ExecutionResult{
		Sequence:  r.accounts.GetSequence(),
		Timestamp: r.clock.UnixTimestamp(),
		Logs:      make([]string, 0),
	}

	txCtx, err := r.load(tx, result)
	if err != nil {
		var loadErr *loadError
		if errors.As(err, &loadErr) {
			return nil, loadErr.err
		}
		result.Err = err
		return r.finish(tx, result, commit)
	}

	for i, ix := range tx.Instructions {
		if err := txCtx.executeTopLevel(ix); err != nil {
			result.Err = &InstructionError{Index: i, Err: err}
			result.ComputeUnitsUsed = txCtx.meter.Consumed()
			return r.finish(tx, result, commit)
		}
	}
	result.ComputeUnitsUsed = txCtx.meter.Consumed()

	updates := txCtx.updates()
	result.Success = true
	result.DeltaHash = accounts.ComputeDeltaHash(updates)
	for _, u := range updates {
		result.ModifiedAccounts = append(result.ModifiedAccounts, u.Pubkey)
	}
	if commit && len(updates) > 0 {
		if err := r.accounts.Apply(updates); err != nil {
			return nil, fmt.Errorf("failed to commit accounts: %w", err)
		}
		result.Sequence = r.accounts.GetSequence()
		r.advanceRecentHash(result.DeltaHash)
	}

	return r.finish(tx, result, commit)
}

func (r *Runtime) finish(tx *Transaction, result *ExecutionResult, record bool) (*ExecutionResult, error) {
	log := r.log.WithFields(logrus.Fields{
		"sequence":      result.Sequence,
		"instructions":  len(tx.Instructions),
		"compute_units": result.ComputeUnitsUsed,
	})
	if !tx.Signature.IsZero() {
		log = log.WithField("signature", tx.Signature.String())
	}
	switch {
	case !record:
		log.WithError(result.Err).Debug("transaction simulated")
		return result, nil
	case result.Success:
		log.WithField("modified", len(result.ModifiedAccounts)).Debug("transaction committed")
	default:
		log.WithError(result.Err).Debug("transaction failed")
	}

	if r.recorder != nil {
		if err := r.recorder.Record(tx, result); err != nil {
			r.log.WithError(err).Warn("failure recording transaction result")
			return result, fmt.Errorf("failed to record transaction: %w", err)
		}
	}
	return result, nil
}

// loadError marks failures of the accounts database, as opposed to invalid
// transactions.
type loadError struct {
	err error
}

func (e *loadError) Error() string {
	return e.err.Error()
}

// load resolves every account referenced by the transaction and checks that
// declared signers have signed.
func (r *Runtime) load(tx *Transaction, result *ExecutionResult) (*transactionContext, error) {
	if len(tx.Instructions) == 0 {
		return nil, ErrEmptyTransaction
	}

	signed := make(map[types.Pubkey]bool, len(tx.Signers))
	for _, s := range tx.Signers {
		signed[s] = true
	}

	txCtx := &transactionContext{
		runtime:  r,
		accounts: make(map[types.Pubkey]*loadedAccount),
		meter:    svm.NewComputeMeter(r.config.ComputeUnitLimit),
		now:      result.Timestamp,
		logs:     &result.Logs,
	}

	for _, ix := range tx.Instructions {
		for _, meta := range ix.Accounts {
			acct, ok := txCtx.accounts[meta.Pubkey]
			if !ok {
				if len(txCtx.order) == MaxTransactionAccounts {
					return nil, ErrTooManyAccounts
				}
				stored, err := r.accounts.GetAccount(meta.Pubkey)
				if errors.Is(err, accounts.ErrAccountNotFound) {
					stored = nil
				} else if err != nil {
					return nil, &loadError{err: fmt.Errorf("failed to load account %s: %w", meta.Pubkey, err)}
				}
				acct = newLoadedAccount(meta.Pubkey, stored)
				txCtx.accounts[meta.Pubkey] = acct
				txCtx.order = append(txCtx.order, meta.Pubkey)
			}
			acct.isSigner = acct.isSigner || meta.IsSigner
			acct.isWritable = acct.isWritable || meta.IsWritable
		}
	}

	for _, key := range txCtx.order {
		if txCtx.accounts[key].isSigner && !signed[key] {
			return nil, fmt.Errorf("%w: %s", ErrMissingSignature, key)
		}
	}

	return txCtx, nil
}
