package token

import (
	"encoding/binary"
	"fmt"

	"github.com/fortiblox/x1-lockup/internal/types"
	"github.com/fortiblox/x1-lockup/pkg/svm"
)

// Processor executes token program instructions.
type Processor struct{}

// NewProcessor creates a new token program processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// Process executes a token program instruction.
func (p *Processor) Process(ctx svm.InvokeContext, data []byte) error {
	if len(data) == 0 {
		return svm.ErrInvalidInstructionData
	}

	if err := ctx.ConsumeCU(svm.CUTokenProgramDefault); err != nil {
		return err
	}

	switch Command(data[0]) {
	case CommandInitializeMint2:
		ctx.Log("Instruction: InitializeMint2")
		return p.processInitializeMint(ctx, data[1:])
	case CommandInitializeAccount3:
		ctx.Log("Instruction: InitializeAccount3")
		return p.processInitializeAccount(ctx, data[1:])
	case CommandTransfer:
		ctx.Log("Instruction: Transfer")
		if len(data) != 9 {
			return svm.ErrInvalidInstructionData
		}
		return p.processTransfer(ctx, binary.LittleEndian.Uint64(data[1:]), nil)
	case CommandTransferChecked:
		ctx.Log("Instruction: TransferChecked")
		if len(data) != 10 {
			return svm.ErrInvalidInstructionData
		}
		decimals := data[9]
		return p.processTransfer(ctx, binary.LittleEndian.Uint64(data[1:]), &decimals)
	case CommandMintTo:
		ctx.Log("Instruction: MintTo")
		if len(data) != 9 {
			return svm.ErrInvalidInstructionData
		}
		return p.processMintTo(ctx, binary.LittleEndian.Uint64(data[1:]))
	default:
		return svm.ErrInvalidInstructionData
	}
}

// processInitializeMint initializes a pre-allocated mint.
// Accounts: [0] mint (w)
func (p *Processor) processInitializeMint(ctx svm.InvokeContext, data []byte) error {
	// decimals (1) + mint authority (32) + freeze authority option (1 [+ 32])
	if len(data) != 34 && len(data) != 66 {
		return svm.ErrInvalidInstructionData
	}

	mintInfo, err := ctx.GetAccount(0)
	if err != nil {
		return err
	}
	if mintInfo.Owner != ctx.ProgramID() {
		return svm.ErrIncorrectProgramID
	}

	var mint Mint
	if !mint.Unmarshal(mintInfo.Data) {
		return svm.ErrInvalidAccountData
	}
	if mint.IsInitialized {
		return ErrorAlreadyInUse
	}
	if mintInfo.Lamports < ctx.GetRentMinimum(uint64(len(mintInfo.Data))) {
		return ErrorNotRentExempt
	}

	mint.Decimals = data[0]
	copy(mint.MintAuthority[:], data[1:33])
	if data[33] == 1 {
		if len(data) != 66 {
			return svm.ErrInvalidInstructionData
		}
		copy(mint.FreezeAuthority[:], data[34:66])
	}
	mint.IsInitialized = true

	copy(mintInfo.Data, mint.Marshal())
	return nil
}

// processInitializeAccount initializes a pre-allocated token account.
// Accounts: [0] account (w), [1] mint
func (p *Processor) processInitializeAccount(ctx svm.InvokeContext, data []byte) error {
	if len(data) != types.PubkeySize {
		return svm.ErrInvalidInstructionData
	}

	accountInfo, err := ctx.GetAccount(0)
	if err != nil {
		return err
	}
	mintInfo, err := ctx.GetAccount(1)
	if err != nil {
		return err
	}

	if accountInfo.Owner != ctx.ProgramID() {
		return svm.ErrIncorrectProgramID
	}

	var account Account
	if !account.Unmarshal(accountInfo.Data) {
		return svm.ErrInvalidAccountData
	}
	if account.IsInitialized() {
		return ErrorAlreadyInUse
	}
	if accountInfo.Lamports < ctx.GetRentMinimum(uint64(len(accountInfo.Data))) {
		return ErrorNotRentExempt
	}

	if mintInfo.Owner != ctx.ProgramID() {
		return svm.ErrIncorrectProgramID
	}
	if _, err := UnpackMint(mintInfo.Data); err != nil {
		return ErrorInvalidMint
	}

	account.Mint = mintInfo.Key
	copy(account.Owner[:], data)
	account.State = AccountStateInitialized

	copy(accountInfo.Data, account.Marshal())
	return nil
}

// processTransfer moves tokens between accounts of the same mint. When
// expectedDecimals is set the mint is passed as the second account and
// checked against the source.
// Accounts: [0] source (w), [1] destination (w), [2] authority (s)
// Checked:  [0] source (w), [1] mint, [2] destination (w), [3] authority (s)
func (p *Processor) processTransfer(ctx svm.InvokeContext, amount uint64, expectedDecimals *uint8) error {
	sourceIndex, destIndex, authorityIndex := 0, 1, 2
	if expectedDecimals != nil {
		destIndex, authorityIndex = 2, 3
	}

	sourceInfo, err := ctx.GetAccount(sourceIndex)
	if err != nil {
		return err
	}
	destInfo, err := ctx.GetAccount(destIndex)
	if err != nil {
		return err
	}
	authorityInfo, err := ctx.GetAccount(authorityIndex)
	if err != nil {
		return err
	}

	if sourceInfo.Owner != ctx.ProgramID() || destInfo.Owner != ctx.ProgramID() {
		return svm.ErrIncorrectProgramID
	}

	source, err := UnpackAccount(sourceInfo.Data)
	if err != nil {
		return err
	}
	dest, err := UnpackAccount(destInfo.Data)
	if err != nil {
		return err
	}

	if source.State == AccountStateFrozen || dest.State == AccountStateFrozen {
		return ErrorAccountFrozen
	}
	if source.Amount < amount {
		return ErrorInsufficientFunds
	}
	if source.Mint != dest.Mint {
		return ErrorMintMismatch
	}

	if expectedDecimals != nil {
		mintInfo, err := ctx.GetAccount(1)
		if err != nil {
			return err
		}
		if mintInfo.Key != source.Mint {
			return ErrorMintMismatch
		}
		if mintInfo.Owner != ctx.ProgramID() {
			return svm.ErrIncorrectProgramID
		}
		mint, err := UnpackMint(mintInfo.Data)
		if err != nil {
			return err
		}
		if mint.Decimals != *expectedDecimals {
			return ErrorMintDecimalsMismatch
		}
	}

	if authorityInfo.Key != source.Owner {
		return ErrorOwnerMismatch
	}
	if !authorityInfo.IsSigner {
		return svm.ErrMissingRequiredSignature
	}

	// Self-transfers only validate.
	if sourceInfo.Key == destInfo.Key {
		return nil
	}

	if dest.Amount > ^uint64(0)-amount {
		return ErrorOverflow
	}
	source.Amount -= amount
	dest.Amount += amount

	copy(sourceInfo.Data, source.Marshal())
	copy(destInfo.Data, dest.Marshal())
	return nil
}

// processMintTo mints new tokens to an account.
// Accounts: [0] mint (w), [1] destination (w), [2] mint authority (s)
func (p *Processor) processMintTo(ctx svm.InvokeContext, amount uint64) error {
	mintInfo, err := ctx.GetAccount(0)
	if err != nil {
		return err
	}
	destInfo, err := ctx.GetAccount(1)
	if err != nil {
		return err
	}
	authorityInfo, err := ctx.GetAccount(2)
	if err != nil {
		return err
	}

	if mintInfo.Owner != ctx.ProgramID() || destInfo.Owner != ctx.ProgramID() {
		return svm.ErrIncorrectProgramID
	}

	dest, err := UnpackAccount(destInfo.Data)
	if err != nil {
		return err
	}
	if dest.State == AccountStateFrozen {
		return ErrorAccountFrozen
	}
	if dest.Mint != mintInfo.Key {
		return ErrorMintMismatch
	}

	mint, err := UnpackMint(mintInfo.Data)
	if err != nil {
		return err
	}
	if mint.MintAuthority.IsZero() {
		return ErrorFixedSupply
	}
	if authorityInfo.Key != mint.MintAuthority {
		return ErrorOwnerMismatch
	}
	if !authorityInfo.IsSigner {
		return svm.ErrMissingRequiredSignature
	}

	if mint.Supply > ^uint64(0)-amount || dest.Amount > ^uint64(0)-amount {
		return ErrorOverflow
	}
	mint.Supply += amount
	dest.Amount += amount

	ctx.Log(fmt.Sprintf("MintTo: %d to %s", amount, destInfo.Key))

	copy(mintInfo.Data, mint.Marshal())
	copy(destInfo.Data, dest.Marshal())
	return nil
}
