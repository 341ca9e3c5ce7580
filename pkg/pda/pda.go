// Package pda implements program-derived address (PDA) derivation.
//
// A program-derived address is the SHA256 of the seeds, the program ID and a
// fixed marker, accepted only when the digest does not decode to a point on
// the ed25519 curve. Such an address has no private key, so only the deriving
// program can sign for it, by presenting the seeds to the runtime.
package pda

import (
	"crypto/sha256"
	"errors"
	"math"

	"filippo.io/edwards25519"
	pkgerrors "github.com/pkg/errors"

	"github.com/fortiblox/x1-lockup/internal/types"
)

// PDA constants.
const (
	MaxSeeds   = 16
	MaxSeedLen = 32
)

// pdaMarker is appended after the program ID in every derivation.
var pdaMarker = []byte("ProgramDerivedAddress")

// PDA errors.
var (
	ErrMaxSeedLengthExceeded = errors.New("max seed length exceeded")
	ErrMaxSeedsExceeded      = errors.New("max seeds exceeded")
	ErrOnCurve               = errors.New("invalid seeds: derived address is on curve")
	ErrNoViableBump          = errors.New("unable to find a viable program address bump seed")
)

// CreateProgramAddress derives a program address from seeds and a program ID.
// Returns ErrOnCurve if the derived address is a valid ed25519 public key.
func CreateProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, error) {
	if len(seeds) > MaxSeeds {
		return types.Pubkey{}, ErrMaxSeedsExceeded
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return types.Pubkey{}, ErrMaxSeedLengthExceeded
		}
		if _, err := h.Write(seed); err != nil {
			return types.Pubkey{}, pkgerrors.Wrap(err, "failed to hash seed")
		}
	}
	h.Write(programID[:])
	h.Write(pdaMarker)

	var addr types.Pubkey
	copy(addr[:], h.Sum(nil))

	if IsOnCurve(addr[:]) {
		return types.Pubkey{}, ErrOnCurve
	}

	return addr, nil
}

// FindProgramAddress finds a valid PDA by iterating bump seeds from 255 down
// to 0. The number of derivations tried is 256 minus the returned bump.
func FindProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, uint8, error) {
	if len(seeds) > MaxSeeds-1 {
		return types.Pubkey{}, 0, ErrMaxSeedsExceeded
	}

	seedsWithBump := make([][]byte, len(seeds)+1)
	copy(seedsWithBump, seeds)

	for bump := math.MaxUint8; bump >= 0; bump-- {
		seedsWithBump[len(seeds)] = []byte{uint8(bump)}

		addr, err := CreateProgramAddress(seedsWithBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return types.Pubkey{}, 0, err
		}
	}

	return types.Pubkey{}, 0, ErrNoViableBump
}

// IsOnCurve reports whether b is the compressed encoding of a point on the
// ed25519 curve.
func IsOnCurve(b []byte) bool {
	if len(b) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// SignerSeeds is the capability a program presents to the runtime to sign as
// one of its derived addresses. It carries every seed, bump included.
type SignerSeeds [][]byte

// NewSignerSeeds builds signer seeds from derivation seeds and a bump.
func NewSignerSeeds(bump uint8, seeds ...[]byte) SignerSeeds {
	s := make(SignerSeeds, 0, len(seeds)+1)
	s = append(s, seeds...)
	return append(s, []byte{bump})
}

// Address returns the address these seeds sign for under programID.
func (s SignerSeeds) Address(programID types.Pubkey) (types.Pubkey, error) {
	return CreateProgramAddress(s, programID)
}
