// Package types defines the core key and hash types shared by the lockup
// runtime, its programs and its tooling.
//
// Keys and hashes are fixed-size byte arrays whose text form is base58, as on
// Solana-style ledgers.
package types

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// Size constants for core types.
const (
	PubkeySize    = 32
	SignatureSize = 64
	HashSize      = 32
)

var (
	// ErrInvalidPubkey is returned when a pubkey has invalid length.
	ErrInvalidPubkey = errors.New("invalid pubkey: must be 32 bytes")

	// ErrInvalidSignature is returned when a signature has invalid length.
	ErrInvalidSignature = errors.New("invalid signature: must be 64 bytes")

	// ErrInvalidHash is returned when a hash has invalid length.
	ErrInvalidHash = errors.New("invalid hash: must be 32 bytes")
)

// decodeBase58 decodes s into dst, which must be filled exactly.
func decodeBase58(dst []byte, s string, sizeErr error) error {
	data, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("base58 decode: %w", err)
	}
	if len(data) != len(dst) {
		return sizeErr
	}
	copy(dst, data)
	return nil
}

// Pubkey is a 32-byte account address: an Ed25519 public key or a
// program-derived address.
type Pubkey [PubkeySize]byte

// PubkeyFromBase58 parses a base58-encoded address.
func PubkeyFromBase58(s string) (Pubkey, error) {
	var p Pubkey
	err := decodeBase58(p[:], s, ErrInvalidPubkey)
	return p, err
}

// PubkeyFromBytes creates a Pubkey from a byte slice.
func PubkeyFromBytes(b []byte) (Pubkey, error) {
	var p Pubkey
	if len(b) != PubkeySize {
		return p, ErrInvalidPubkey
	}
	copy(p[:], b)
	return p, nil
}

func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// IsZero reports whether p is all zeros, which is also the System Program
// address.
func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

func (p Pubkey) Bytes() []byte {
	return p[:]
}

// Less orders pubkeys bytewise.
func (p Pubkey) Less(o Pubkey) bool {
	return bytes.Compare(p[:], o[:]) < 0
}

func (p Pubkey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Pubkey) UnmarshalText(text []byte) error {
	return decodeBase58(p[:], string(text), ErrInvalidPubkey)
}

// Signature is a 64-byte Ed25519 signature. The first signature of a
// transaction identifies it.
type Signature [SignatureSize]byte

// SignatureFromBase58 parses a base58-encoded signature.
func SignatureFromBase58(s string) (Signature, error) {
	var sig Signature
	err := decodeBase58(sig[:], s, ErrInvalidSignature)
	return sig, err
}

// Sign signs message with key.
func Sign(key ed25519.PrivateKey, message []byte) Signature {
	var sig Signature
	copy(sig[:], ed25519.Sign(key, message))
	return sig
}

func (s Signature) String() string {
	return base58.Encode(s[:])
}

func (s Signature) IsZero() bool {
	return s == Signature{}
}

// Verify reports whether s is pubkey's signature of message.
func (s Signature) Verify(pubkey Pubkey, message []byte) bool {
	return ed25519.Verify(pubkey[:], message, s[:])
}

func (s Signature) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Signature) UnmarshalText(text []byte) error {
	return decodeBase58(s[:], string(text), ErrInvalidSignature)
}

// Hash is a 32-byte digest: account and journal commitments.
type Hash [HashSize]byte

// HashFromBase58 parses a base58-encoded hash.
func HashFromBase58(s string) (Hash, error) {
	var h Hash
	err := decodeBase58(h[:], s, ErrInvalidHash)
	return h, err
}

func (h Hash) String() string {
	return base58.Encode(h[:])
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	return decodeBase58(h[:], string(text), ErrInvalidHash)
}
