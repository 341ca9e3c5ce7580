package associated

import (
	"fmt"

	"github.com/fortiblox/x1-lockup/internal/types"
	"github.com/fortiblox/x1-lockup/pkg/pda"
	"github.com/fortiblox/x1-lockup/pkg/svm"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/system"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/token"
)

// Processor executes Associated Token Account program instructions.
type Processor struct{}

// NewProcessor creates a new Associated Token Account processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// Process executes an Associated Token Account instruction. Empty data is
// treated as Create.
func (p *Processor) Process(ctx svm.InvokeContext, data []byte) error {
	cmd := CommandCreate
	switch len(data) {
	case 0:
	case 1:
		cmd = Command(data[0])
	default:
		return svm.ErrInvalidInstructionData
	}

	if err := ctx.ConsumeCU(svm.CUAssociatedTokenDefault); err != nil {
		return err
	}

	switch cmd {
	case CommandCreate:
		ctx.Log("Create")
		return p.processCreate(ctx, false)
	case CommandCreateIdempotent:
		ctx.Log("CreateIdempotent")
		return p.processCreate(ctx, true)
	default:
		return svm.ErrInvalidInstructionData
	}
}

func (p *Processor) processCreate(ctx svm.InvokeContext, idempotent bool) error {
	if ctx.AccountCount() != 6 {
		return svm.ErrNotEnoughAccountKeys
	}

	funder, _ := ctx.GetAccount(0)
	ata, _ := ctx.GetAccount(1)
	wallet, _ := ctx.GetAccount(2)
	mint, _ := ctx.GetAccount(3)
	systemProgram, _ := ctx.GetAccount(4)
	tokenProgram, _ := ctx.GetAccount(5)

	if systemProgram.Key != system.ProgramID {
		return svm.ErrIncorrectProgramID
	}
	if !types.IsTokenProgram(tokenProgram.Key) {
		return svm.ErrIncorrectProgramID
	}

	expected, bump, err := svm.FindProgramAddress(
		ctx,
		[][]byte{wallet.Key[:], tokenProgram.Key[:], mint.Key[:]},
		ctx.ProgramID(),
	)
	if err != nil {
		return err
	}
	if expected != ata.Key {
		ctx.Log("Error: Associated address does not match seed derivation")
		return svm.ErrInvalidSeeds
	}

	if idempotent && ata.Owner == tokenProgram.Key {
		existing, err := token.UnpackAccount(ata.Data)
		if err != nil {
			return err
		}
		if existing.Owner != wallet.Key {
			return svm.ErrInvalidAccountOwner
		}
		if existing.Mint != mint.Key {
			return token.ErrorMintMismatch
		}
		return nil
	}

	if ata.Owner != system.ProgramID {
		return svm.ErrAccountAlreadyInUse
	}
	if mint.Owner != tokenProgram.Key {
		return svm.ErrIncorrectProgramID
	}

	signer := pda.NewSignerSeeds(bump, wallet.Key[:], tokenProgram.Key[:], mint.Key[:])
	if err := createPDAAccount(ctx, funder, ata, tokenProgram.Key, token.AccountSize, signer); err != nil {
		return err
	}

	ctx.Log(fmt.Sprintf("Initialize the associated token account %s", ata.Key))
	return ctx.Invoke(token.InitializeAccount3(tokenProgram.Key, ata.Key, mint.Key, wallet.Key))
}

// createPDAAccount creates a derived account owned by owner. An account that
// was funded ahead of time is topped up to the rent minimum, then allocated
// and assigned.
func createPDAAccount(ctx svm.InvokeContext, funder, target *svm.AccountInfo, owner types.Pubkey, space uint64, signer pda.SignerSeeds) error {
	required := ctx.GetRentMinimum(space)

	if target.Lamports == 0 {
		return ctx.Invoke(system.CreateAccount(funder.Key, target.Key, owner, required, space), signer)
	}

	if target.Lamports < required {
		if err := ctx.Invoke(system.Transfer(funder.Key, target.Key, required-target.Lamports)); err != nil {
			return err
		}
	}
	if err := ctx.Invoke(system.Allocate(target.Key, space), signer); err != nil {
		return err
	}
	return ctx.Invoke(system.Assign(target.Key, owner), signer)
}
