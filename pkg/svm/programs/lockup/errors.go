package lockup

import "fmt"

// Error is a lockup program failure, reported as a custom program error.
type Error uint32

const (
	// Incorrect mint.
	ErrIncorrectMint Error = iota
	// Incorrect escrow authority address.
	ErrIncorrectEscrowAuthorityAddress
	// Incorrect escrow token account.
	ErrIncorrectEscrowTokenAccount
	// Lockup is still active.
	ErrLockupActive
	// Incorrect token account.
	ErrIncorrectTokenAccount
	// Lockup is already unlocked.
	ErrLockupAlreadyUnlocked
)

var errorMessages = map[Error]string{
	ErrIncorrectMint:                   "Incorrect mint.",
	ErrIncorrectEscrowAuthorityAddress: "Incorrect escrow authority address.",
	ErrIncorrectEscrowTokenAccount:     "Incorrect escrow token account.",
	ErrLockupActive:                    "Lockup is still active.",
	ErrIncorrectTokenAccount:           "Incorrect token account.",
	ErrLockupAlreadyUnlocked:           "Lockup is already unlocked.",
}

func (e Error) Error() string {
	if msg, ok := errorMessages[e]; ok {
		return msg
	}
	return fmt.Sprintf("lockup error: %d", uint32(e))
}

// Code returns the custom program error code.
func (e Error) Code() uint32 {
	return uint32(e)
}
