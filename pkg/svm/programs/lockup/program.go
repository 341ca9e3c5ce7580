// Package lockup implements the token lockup program.
//
// A depositor locks tokens into a program-controlled escrow, recording the
// deposit in a Lockup account. Unlocking starts a fixed cooldown; once it has
// elapsed the record's authority may withdraw the tokens, which destroys the
// record and returns its rent.
//
// All lockups share one escrow authority, a program-derived address, which
// owns one escrow token account per mint: its associated token account.
package lockup

import (
	"github.com/fortiblox/x1-lockup/internal/types"
)

// ProgramID is the default deployment address of the lockup program.
//
// Current key: Dbf7u6x15DhjMrBMunY3XoRWdByrCCt2dbyoPrCXN6SQ
var ProgramID = types.LockupProgramAddr

// CooldownSeconds is the delay between Unlock and the earliest Withdraw.
const CooldownSeconds = 30 * 60
