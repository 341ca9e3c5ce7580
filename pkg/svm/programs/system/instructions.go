package system

import (
	"encoding/binary"

	"github.com/fortiblox/x1-lockup/internal/types"
	"github.com/fortiblox/x1-lockup/pkg/svm"
)

// CreateAccount returns an instruction that creates and funds a new account.
func CreateAccount(funder, newAccount, owner types.Pubkey, lamports, space uint64) svm.Instruction {
	data := make([]byte, 4+8+8+32)
	binary.LittleEndian.PutUint32(data, InstructionCreateAccount)
	binary.LittleEndian.PutUint64(data[4:], lamports)
	binary.LittleEndian.PutUint64(data[12:], space)
	copy(data[20:], owner[:])

	return svm.NewInstruction(
		ProgramID,
		data,
		svm.NewAccountMeta(funder, true),
		svm.NewAccountMeta(newAccount, true),
	)
}

// Assign returns an instruction that assigns an account to a program.
func Assign(account, owner types.Pubkey) svm.Instruction {
	data := make([]byte, 4+32)
	binary.LittleEndian.PutUint32(data, InstructionAssign)
	copy(data[4:], owner[:])

	return svm.NewInstruction(
		ProgramID,
		data,
		svm.NewAccountMeta(account, true),
	)
}

// Transfer returns an instruction that moves lamports.
func Transfer(from, to types.Pubkey, lamports uint64) svm.Instruction {
	data := make([]byte, 4+8)
	binary.LittleEndian.PutUint32(data, InstructionTransfer)
	binary.LittleEndian.PutUint64(data[4:], lamports)

	return svm.NewInstruction(
		ProgramID,
		data,
		svm.NewAccountMeta(from, true),
		svm.NewAccountMeta(to, false),
	)
}

// Allocate returns an instruction that allocates account space.
func Allocate(account types.Pubkey, space uint64) svm.Instruction {
	data := make([]byte, 4+8)
	binary.LittleEndian.PutUint32(data, InstructionAllocate)
	binary.LittleEndian.PutUint64(data[4:], space)

	return svm.NewInstruction(
		ProgramID,
		data,
		svm.NewAccountMeta(account, true),
	)
}
