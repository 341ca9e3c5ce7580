package lockup

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"time"

	"github.com/fortiblox/x1-lockup/internal/layout"
	"github.com/fortiblox/x1-lockup/internal/types"
)

// LockupSize is the exact byte length of a lockup account.
const LockupSize = (8 + // discriminator
	8 + // amount
	32 + // authority
	8 + // lockup_start_timestamp
	8 + // lockup_end_timestamp
	32) // mint

// Discriminator tags an initialized lockup account. An all-zero tag marks an
// uninitialized one.
var Discriminator = lockupDiscriminator()

var uninitializedDiscriminator = make([]byte, 8)

var ErrUnknownDiscriminator = errors.New("unknown lockup discriminator")

func lockupDiscriminator() []byte {
	h := sha256.Sum256([]byte("lockup::state::lockup"))
	return h[:8]
}

// Lockup is the persisted record of one deposit.
type Lockup struct {
	// Amount of tokens locked up in the escrow.
	Amount uint64
	// The address allowed to unlock and withdraw.
	Authority types.Pubkey
	// The start of the lockup, in unix seconds.
	LockupStartTimestamp uint64
	// The end of the cooldown, in unix seconds. Nil until unlocked.
	LockupEndTimestamp *uint64
	// The mint of the locked tokens.
	Mint types.Pubkey
}

// NewLockup returns a locked record with no end timestamp.
func NewLockup(amount uint64, authority types.Pubkey, start uint64, mint types.Pubkey) *Lockup {
	return &Lockup{
		Amount:               amount,
		Authority:            authority,
		LockupStartTimestamp: start,
		Mint:                 mint,
	}
}

func (l *Lockup) Marshal() []byte {
	b := make([]byte, LockupSize)

	var end uint64
	if l.LockupEndTimestamp != nil {
		end = *l.LockupEndTimestamp
	}

	var offset int
	copy(b, Discriminator)
	offset += len(Discriminator)
	layout.PutUint64(b[offset:], l.Amount, &offset)
	layout.PutKey32(b[offset:], l.Authority, &offset)
	layout.PutUint64(b[offset:], l.LockupStartTimestamp, &offset)
	layout.PutUint64(b[offset:], end, &offset)
	layout.PutKey32(b[offset:], l.Mint, &offset)

	return b
}

func (l *Lockup) Unmarshal(b []byte) bool {
	if len(b) != LockupSize || !bytes.Equal(b[:8], Discriminator) {
		return false
	}

	var end uint64
	offset := len(Discriminator)
	layout.GetUint64(b[offset:], &l.Amount, &offset)
	layout.GetKey32(b[offset:], &l.Authority, &offset)
	layout.GetUint64(b[offset:], &l.LockupStartTimestamp, &offset)
	layout.GetUint64(b[offset:], &end, &offset)
	layout.GetKey32(b[offset:], &l.Mint, &offset)

	l.LockupEndTimestamp = nil
	if end != 0 {
		l.LockupEndTimestamp = &end
	}

	return true
}

// AccountKind classifies lockup-sized account data by its discriminator.
type AccountKind uint8

const (
	KindUnknown AccountKind = iota
	KindUninitialized
	KindLockup
)

// Classify reads the discriminator of data, which must be LockupSize bytes.
func Classify(data []byte) AccountKind {
	if len(data) != LockupSize {
		return KindUnknown
	}
	switch {
	case bytes.Equal(data[:8], uninitializedDiscriminator):
		return KindUninitialized
	case bytes.Equal(data[:8], Discriminator):
		return KindLockup
	default:
		return KindUnknown
	}
}

// UnpackLockup decodes an initialized lockup record.
func UnpackLockup(data []byte) (*Lockup, error) {
	var l Lockup
	if !l.Unmarshal(data) {
		return nil, ErrUnknownDiscriminator
	}
	return &l, nil
}

// State is the derived lifecycle state of a lockup.
type State uint8

const (
	StateUnknown State = iota
	StateLocked
	StateUnlocking
	StateWithdrawable
)

func (s State) String() string {
	switch s {
	case StateLocked:
		return "locked"
	case StateUnlocking:
		return "unlocking"
	case StateWithdrawable:
		return "withdrawable"
	}

	return "unknown"
}

// State classifies the record at the given unix time.
func (l *Lockup) State(now int64) State {
	switch {
	case l.LockupEndTimestamp == nil:
		return StateLocked
	case now >= 0 && uint64(now) >= *l.LockupEndTimestamp:
		return StateWithdrawable
	default:
		return StateUnlocking
	}
}

// RemainingCooldown returns the time left before the record can be
// withdrawn. It is zero for withdrawable records and for locked records,
// which have not started a cooldown.
func (l *Lockup) RemainingCooldown(now int64) time.Duration {
	if l.State(now) != StateUnlocking {
		return 0
	}
	return time.Duration(int64(*l.LockupEndTimestamp)-now) * time.Second
}
