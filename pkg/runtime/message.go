package runtime

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/fortiblox/x1-lockup/internal/types"
	"github.com/fortiblox/x1-lockup/pkg/svm"
)

// MaxTransactionSize is the largest encoded signed transaction accepted.
const MaxTransactionSize = 1232

var (
	// ErrMalformedTransaction is returned when a transaction cannot be decoded.
	ErrMalformedTransaction = errors.New("malformed transaction")

	// ErrTransactionTooLarge is returned when an encoded transaction exceeds
	// MaxTransactionSize.
	ErrTransactionTooLarge = errors.New("transaction too large")

	// ErrSignatureVerification is returned when a signature is missing or
	// does not verify against its signer.
	ErrSignatureVerification = errors.New("transaction signature verification failed")
)

const (
	metaSigner   byte = 1 << 0
	metaWritable byte = 1 << 1
)

// Message is the signed part of a transaction: the instructions and the
// recent ledger hash bounding its lifetime.
type Message struct {
	RecentHash   types.Hash
	Instructions []svm.Instruction
}

// Signers returns the keys that must sign the message, in order of first
// appearance.
func (m *Message) Signers() []types.Pubkey {
	var signers []types.Pubkey
	seen := make(map[types.Pubkey]bool)
	for _, ix := range m.Instructions {
		for _, meta := range ix.Accounts {
			if meta.IsSigner && !seen[meta.Pubkey] {
				seen[meta.Pubkey] = true
				signers = append(signers, meta.Pubkey)
			}
		}
	}
	return signers
}

// Marshal encodes the message:
//
//	recent hash (32) | instruction count (u8)
//	per instruction: program id (32) | account count (u8)
//	    | per account: key (32) flags (u8) | data length (u16 LE) | data
func (m *Message) Marshal() ([]byte, error) {
	if len(m.Instructions) > math.MaxUint8 {
		return nil, fmt.Errorf("%w: %d instructions", ErrTransactionTooLarge, len(m.Instructions))
	}

	b := make([]byte, 0, MaxTransactionSize)
	b = append(b, m.RecentHash[:]...)
	b = append(b, byte(len(m.Instructions)))
	for i, ix := range m.Instructions {
		if len(ix.Accounts) > math.MaxUint8 || len(ix.Data) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: instruction %d", ErrTransactionTooLarge, i)
		}
		b = append(b, ix.ProgramID[:]...)
		b = append(b, byte(len(ix.Accounts)))
		for _, meta := range ix.Accounts {
			var flags byte
			if meta.IsSigner {
				flags |= metaSigner
			}
			if meta.IsWritable {
				flags |= metaWritable
			}
			b = append(b, meta.Pubkey[:]...)
			b = append(b, flags)
		}
		b = binary.LittleEndian.AppendUint16(b, uint16(len(ix.Data)))
		b = append(b, ix.Data...)
	}
	return b, nil
}

// messageReader decodes the fields of an encoded message in order.
type messageReader struct {
	data []byte
	err  error
}

func (r *messageReader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.data) < n {
		r.err = fmt.Errorf("%w: unexpected end of data", ErrMalformedTransaction)
		return nil
	}
	out := r.data[:n]
	r.data = r.data[n:]
	return out
}

func (r *messageReader) key(dst *[32]byte) {
	if b := r.next(32); b != nil {
		copy(dst[:], b)
	}
}

func (r *messageReader) u8() int {
	if b := r.next(1); b != nil {
		return int(b[0])
	}
	return 0
}

// UnmarshalMessage decodes a message written by Message.Marshal.
func UnmarshalMessage(data []byte) (*Message, error) {
	r := &messageReader{data: data}
	m := &Message{}
	r.key((*[32]byte)(&m.RecentHash))

	count := r.u8()
	for i := 0; i < count && r.err == nil; i++ {
		var ix svm.Instruction
		r.key((*[32]byte)(&ix.ProgramID))

		accounts := r.u8()
		for j := 0; j < accounts && r.err == nil; j++ {
			var meta svm.AccountMeta
			r.key((*[32]byte)(&meta.Pubkey))
			flags := byte(r.u8())
			if flags&^(metaSigner|metaWritable) != 0 {
				return nil, fmt.Errorf("%w: unknown account flags %#x", ErrMalformedTransaction, flags)
			}
			meta.IsSigner = flags&metaSigner != 0
			meta.IsWritable = flags&metaWritable != 0
			ix.Accounts = append(ix.Accounts, meta)
		}

		if b := r.next(2); b != nil {
			if n := int(binary.LittleEndian.Uint16(b)); n > 0 {
				ix.Data = append([]byte(nil), r.next(n)...)
			}
		}
		m.Instructions = append(m.Instructions, ix)
	}

	if r.err != nil {
		return nil, r.err
	}
	if len(r.data) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedTransaction, len(r.data))
	}
	return m, nil
}

// SignedTransaction is a message plus one signature per signer, in the order
// of Message.Signers. The first signature identifies the transaction.
type SignedTransaction struct {
	Signatures []types.Signature
	Message    Message
}

// NewSignedTransaction signs a message with the given keys. Every signer of
// the message needs a key; extra keys are ignored.
func NewSignedTransaction(recentHash types.Hash, keys []ed25519.PrivateKey, instructions ...svm.Instruction) (*SignedTransaction, error) {
	stx := &SignedTransaction{
		Message: Message{RecentHash: recentHash, Instructions: instructions},
	}
	if err := stx.Sign(keys...); err != nil {
		return nil, err
	}
	return stx, nil
}

// Sign replaces the signatures of the transaction.
func (stx *SignedTransaction) Sign(keys ...ed25519.PrivateKey) error {
	message, err := stx.Message.Marshal()
	if err != nil {
		return err
	}

	byKey := make(map[types.Pubkey]ed25519.PrivateKey, len(keys))
	for _, key := range keys {
		var pub types.Pubkey
		copy(pub[:], key.Public().(ed25519.PublicKey))
		byKey[pub] = key
	}

	signers := stx.Message.Signers()
	stx.Signatures = make([]types.Signature, len(signers))
	for i, signer := range signers {
		key, ok := byKey[signer]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingSignature, signer)
		}
		stx.Signatures[i] = types.Sign(key, message)
	}
	return nil
}

// ID returns the first signature.
func (stx *SignedTransaction) ID() types.Signature {
	if len(stx.Signatures) == 0 {
		return types.Signature{}
	}
	return stx.Signatures[0]
}

// Verify checks that every signer of the message signed it.
func (stx *SignedTransaction) Verify() error {
	signers := stx.Message.Signers()
	if len(signers) == 0 {
		return fmt.Errorf("%w: transaction has no signers", ErrSignatureVerification)
	}
	if len(stx.Signatures) != len(signers) {
		return fmt.Errorf("%w: %d signatures for %d signers",
			ErrSignatureVerification, len(stx.Signatures), len(signers))
	}

	message, err := stx.Message.Marshal()
	if err != nil {
		return err
	}
	for i, signer := range signers {
		if !stx.Signatures[i].Verify(signer, message) {
			return fmt.Errorf("%w: %s", ErrSignatureVerification, signer)
		}
	}
	return nil
}

// Transaction returns the executable form. Signatures are not checked.
func (stx *SignedTransaction) Transaction() *Transaction {
	return &Transaction{
		Instructions: stx.Message.Instructions,
		Signers:      stx.Message.Signers(),
		Signature:    stx.ID(),
	}
}

// Marshal encodes the transaction: signature count (u8), the signatures,
// then the message.
func (stx *SignedTransaction) Marshal() ([]byte, error) {
	if len(stx.Signatures) > math.MaxUint8 {
		return nil, fmt.Errorf("%w: %d signatures", ErrTransactionTooLarge, len(stx.Signatures))
	}
	message, err := stx.Message.Marshal()
	if err != nil {
		return nil, err
	}

	b := make([]byte, 0, 1+len(stx.Signatures)*types.SignatureSize+len(message))
	b = append(b, byte(len(stx.Signatures)))
	for _, sig := range stx.Signatures {
		b = append(b, sig[:]...)
	}
	b = append(b, message...)
	if len(b) > MaxTransactionSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTransactionTooLarge, len(b))
	}
	return b, nil
}

// UnmarshalSignedTransaction decodes a transaction written by
// SignedTransaction.Marshal.
func UnmarshalSignedTransaction(data []byte) (*SignedTransaction, error) {
	if len(data) > MaxTransactionSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTransactionTooLarge, len(data))
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformedTransaction)
	}

	count := int(data[0])
	data = data[1:]
	if len(data) < count*types.SignatureSize {
		return nil, fmt.Errorf("%w: truncated signatures", ErrMalformedTransaction)
	}
	stx := &SignedTransaction{Signatures: make([]types.Signature, count)}
	for i := range stx.Signatures {
		copy(stx.Signatures[i][:], data[:types.SignatureSize])
		data = data[types.SignatureSize:]
	}

	message, err := UnmarshalMessage(data)
	if err != nil {
		return nil, err
	}
	stx.Message = *message
	return stx, nil
}
