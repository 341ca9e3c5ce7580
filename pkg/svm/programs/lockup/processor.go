package lockup

import (
	"fmt"
	"math"

	"github.com/fortiblox/x1-lockup/internal/types"
	"github.com/fortiblox/x1-lockup/pkg/pda"
	"github.com/fortiblox/x1-lockup/pkg/svm"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/associated"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/system"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/token"
)

// Processor executes lockup program instructions.
type Processor struct{}

// NewProcessor creates a new lockup program processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// Process executes a lockup instruction.
func (p *Processor) Process(ctx svm.InvokeContext, data []byte) error {
	ix, err := UnpackInstruction(data)
	if err != nil {
		return err
	}

	if err := ctx.ConsumeCU(svm.CULockupProgramDefault); err != nil {
		return err
	}

	ctx.Log(fmt.Sprintf("Instruction: %s", ix.Command))

	switch ix.Command {
	case CommandLockup:
		return p.processLockup(ctx, ix.Amount)
	case CommandUnlock:
		return p.processUnlock(ctx)
	case CommandWithdraw:
		return p.processWithdraw(ctx)
	default:
		return svm.ErrInvalidInstructionData
	}
}

// getAccounts resolves exactly n positional accounts.
func getAccounts(ctx svm.InvokeContext, n int) ([]*svm.AccountInfo, error) {
	if ctx.AccountCount() != n {
		return nil, svm.ErrNotEnoughAccountKeys
	}
	infos := make([]*svm.AccountInfo, n)
	for i := range infos {
		info, err := ctx.GetAccount(i)
		if err != nil {
			return nil, err
		}
		infos[i] = info
	}
	return infos, nil
}

func (p *Processor) processLockup(ctx svm.InvokeContext, amount uint64) error {
	accounts, err := getAccounts(ctx, LockupInstructionAccountsSize)
	if err != nil {
		return err
	}
	var (
		lockupAuthority    = accounts[0]
		tokenOwner         = accounts[1]
		tokenAccount       = accounts[2]
		lockupInfo         = accounts[3]
		escrowAuthority    = accounts[4]
		escrowTokenAccount = accounts[5]
		mint               = accounts[6]
		tokenProgram       = accounts[7]
	)

	if !tokenOwner.IsSigner {
		return svm.ErrMissingRequiredSignature
	}
	if !types.IsTokenProgram(tokenProgram.Key) {
		return svm.ErrIncorrectProgramID
	}

	expectedTokenAccount, err := associatedAddress(ctx, tokenOwner.Key, mint.Key, tokenProgram.Key)
	if err != nil {
		return err
	}
	if tokenAccount.Key != expectedTokenAccount {
		return ErrIncorrectTokenAccount
	}

	if lockupInfo.Owner != ctx.ProgramID() {
		return svm.ErrInvalidAccountOwner
	}
	if len(lockupInfo.Data) != LockupSize {
		return svm.ErrInvalidAccountData
	}
	switch Classify(lockupInfo.Data) {
	case KindUninitialized:
	case KindLockup:
		return svm.ErrAccountAlreadyInitialized
	default:
		return svm.ErrInvalidAccountData
	}

	escrowAuthorityAddr, _, err := svm.FindProgramAddress(ctx, EscrowAuthoritySeeds(), ctx.ProgramID())
	if err != nil {
		return err
	}
	if escrowAuthority.Key != escrowAuthorityAddr {
		return ErrIncorrectEscrowAuthorityAddress
	}

	expectedEscrowTokenAccount, err := associatedAddress(ctx, escrowAuthorityAddr, mint.Key, tokenProgram.Key)
	if err != nil {
		return err
	}
	if escrowTokenAccount.Key != expectedEscrowTokenAccount {
		return ErrIncorrectEscrowTokenAccount
	}

	now, err := timestamp(ctx)
	if err != nil {
		return err
	}

	record := NewLockup(amount, lockupAuthority.Key, now, mint.Key)
	copy(lockupInfo.Data, record.Marshal())

	decimals, err := mintDecimals(mint, tokenProgram.Key)
	if err != nil {
		return err
	}

	return ctx.Invoke(token.TransferChecked(
		tokenProgram.Key,
		tokenAccount.Key,
		mint.Key,
		escrowTokenAccount.Key,
		tokenOwner.Key,
		amount,
		decimals,
	))
}

func (p *Processor) processUnlock(ctx svm.InvokeContext) error {
	accounts, err := getAccounts(ctx, UnlockInstructionAccountsSize)
	if err != nil {
		return err
	}
	lockupAuthority, lockupInfo := accounts[0], accounts[1]

	if !lockupAuthority.IsSigner {
		return svm.ErrMissingRequiredSignature
	}

	record, err := loadLockup(ctx, lockupInfo)
	if err != nil {
		return err
	}
	if record.Authority != lockupAuthority.Key {
		return svm.ErrIncorrectAuthority
	}
	if record.LockupEndTimestamp != nil {
		return ErrLockupAlreadyUnlocked
	}

	now, err := timestamp(ctx)
	if err != nil {
		return err
	}
	if now > math.MaxInt64-CooldownSeconds {
		return svm.ErrArithmeticOverflow
	}
	end := now + CooldownSeconds
	record.LockupEndTimestamp = &end

	copy(lockupInfo.Data, record.Marshal())
	return nil
}

func (p *Processor) processWithdraw(ctx svm.InvokeContext) error {
	accounts, err := getAccounts(ctx, WithdrawInstructionAccountsSize)
	if err != nil {
		return err
	}
	var (
		lockupAuthority     = accounts[0]
		lamportsDestination = accounts[1]
		tokenDestination    = accounts[2]
		lockupInfo          = accounts[3]
		escrowAuthority     = accounts[4]
		escrowTokenAccount  = accounts[5]
		mint                = accounts[6]
		tokenProgram        = accounts[7]
	)

	if !lockupAuthority.IsSigner {
		return svm.ErrMissingRequiredSignature
	}
	if !types.IsTokenProgram(tokenProgram.Key) {
		return svm.ErrIncorrectProgramID
	}

	record, err := loadLockup(ctx, lockupInfo)
	if err != nil {
		return err
	}
	if record.Authority != lockupAuthority.Key {
		return svm.ErrIncorrectAuthority
	}

	escrowAuthorityAddr, bump, err := svm.FindProgramAddress(ctx, EscrowAuthoritySeeds(), ctx.ProgramID())
	if err != nil {
		return err
	}
	if escrowAuthority.Key != escrowAuthorityAddr {
		return ErrIncorrectEscrowAuthorityAddress
	}

	expectedEscrowTokenAccount, err := associatedAddress(ctx, escrowAuthorityAddr, mint.Key, tokenProgram.Key)
	if err != nil {
		return err
	}
	if escrowTokenAccount.Key != expectedEscrowTokenAccount {
		return ErrIncorrectEscrowTokenAccount
	}

	if record.Mint != mint.Key {
		return ErrIncorrectMint
	}

	now := ctx.UnixTimestamp()
	switch record.State(now) {
	case StateLocked:
		ctx.Log("Lockup has not been unlocked")
		return ErrLockupActive
	case StateUnlocking:
		ctx.Log(fmt.Sprintf("%d seconds remaining", int64(*record.LockupEndTimestamp)-now))
		return ErrLockupActive
	}

	if lamportsDestination.Key == lockupInfo.Key {
		return svm.ErrInvalidArgument
	}
	// A transfer into the escrow itself would leave the tokens behind with
	// no record accounting for them.
	if tokenDestination.Key == escrowTokenAccount.Key {
		return svm.ErrInvalidArgument
	}

	decimals, err := mintDecimals(mint, tokenProgram.Key)
	if err != nil {
		return err
	}

	signer := pda.NewSignerSeeds(bump, EscrowAuthoritySeeds()...)
	err = ctx.Invoke(token.TransferChecked(
		tokenProgram.Key,
		escrowTokenAccount.Key,
		mint.Key,
		tokenDestination.Key,
		escrowAuthorityAddr,
		record.Amount,
		decimals,
	), signer)
	if err != nil {
		return err
	}

	// Close the lockup: sweep its rent, drop the record and hand the account
	// back to the system program.
	if lamportsDestination.Lamports > ^uint64(0)-lockupInfo.Lamports {
		return svm.ErrArithmeticOverflow
	}
	lamportsDestination.Lamports += lockupInfo.Lamports
	lockupInfo.Lamports = 0
	if err := lockupInfo.Realloc(0); err != nil {
		return err
	}
	lockupInfo.Assign(system.ProgramID)

	return nil
}

// loadLockup checks that info holds an initialized lockup owned by the
// executing program and decodes it.
func loadLockup(ctx svm.InvokeContext, info *svm.AccountInfo) (*Lockup, error) {
	if info.Owner != ctx.ProgramID() {
		return nil, svm.ErrInvalidAccountOwner
	}
	if Classify(info.Data) != KindLockup {
		return nil, svm.ErrUninitializedAccount
	}
	return UnpackLockup(info.Data)
}

func associatedAddress(ctx svm.InvokeContext, wallet, mint, tokenProgram types.Pubkey) (types.Pubkey, error) {
	addr, _, err := svm.FindProgramAddress(
		ctx,
		[][]byte{wallet[:], tokenProgram[:], mint[:]},
		associated.ProgramID,
	)
	return addr, err
}

func mintDecimals(mint *svm.AccountInfo, tokenProgram types.Pubkey) (uint8, error) {
	if mint.Owner != tokenProgram {
		return 0, svm.ErrInvalidAccountOwner
	}
	decimals, err := token.MintDecimals(mint.Data)
	if err != nil {
		return 0, svm.ErrInvalidAccountData
	}
	return decimals, nil
}

func timestamp(ctx svm.InvokeContext) (uint64, error) {
	now := ctx.UnixTimestamp()
	if now < 0 {
		return 0, svm.ErrArithmeticOverflow
	}
	return uint64(now), nil
}
