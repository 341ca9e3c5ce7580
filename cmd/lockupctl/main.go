// lockupctl: command-line client for the lockup program
//
// lockupctl derives escrow addresses, encodes and decodes instruction data
// and decodes lockup account data offline. It also builds and signs lockup
// transactions and submits them to a node over JSON-RPC.
package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mr-tron/base58"

	"github.com/fortiblox/x1-lockup/internal/types"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/lockup"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/token"
)

const usage = `usage: lockupctl <command> [flags]

commands:
  escrow              derive the escrow authority and token account of a mint
  encode              encode instruction data (lockup, unlock, withdraw)
  decode-instruction  decode base58 instruction data
  decode-lockup       decode lockup account data
  keygen              generate a keypair file
  tx                  build and sign a transaction (lockup, unlock, withdraw)
  send                submit a signed transaction to a node
  recent-hash         print the latest ledger hash of a node
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("invalid usage")

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return errUsage
	}

	switch args[0] {
	case "escrow":
		return runEscrow(args[1:], out)
	case "encode":
		return runEncode(args[1:], out)
	case "decode-instruction":
		return runDecodeInstruction(args[1:], out)
	case "decode-lockup":
		return runDecodeLockup(args[1:], out)
	case "keygen":
		return runKeygen(args[1:], out)
	case "tx":
		return runTx(args[1:], out)
	case "send":
		return runSend(args[1:], out)
	case "recent-hash":
		return runRecentHash(args[1:], out)
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		fmt.Fprint(out, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

type escrowOutput struct {
	ProgramID     string `json:"programId"`
	Mint          string `json:"mint"`
	TokenProgram  string `json:"tokenProgram"`
	Authority     string `json:"authority"`
	AuthorityBump uint8  `json:"authorityBump"`
	TokenAccount  string `json:"tokenAccount"`
}

func runEscrow(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("escrow", flag.ContinueOnError)
	fs.SetOutput(out)
	programFlag := fs.String("program", lockup.ProgramID.String(), "lockup program address")
	mintFlag := fs.String("mint", "", "token mint address")
	tokenProgramFlag := fs.String("token-program", token.ProgramID.String(), "token program address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	programID, err := types.PubkeyFromBase58(*programFlag)
	if err != nil {
		return fmt.Errorf("invalid program: %w", err)
	}
	mint, err := types.PubkeyFromBase58(*mintFlag)
	if err != nil {
		return fmt.Errorf("invalid mint: %w", err)
	}
	tokenProgram, err := types.PubkeyFromBase58(*tokenProgramFlag)
	if err != nil {
		return fmt.Errorf("invalid token program: %w", err)
	}
	if !types.IsTokenProgram(tokenProgram) {
		return fmt.Errorf("unsupported token program %s", tokenProgram)
	}

	escrow, err := lockup.GetEscrowAddresses(programID, mint, tokenProgram)
	if err != nil {
		return err
	}

	return writeJSON(out, escrowOutput{
		ProgramID:     programID.String(),
		Mint:          mint.String(),
		TokenProgram:  tokenProgram.String(),
		Authority:     escrow.Authority.String(),
		AuthorityBump: escrow.AuthorityBump,
		TokenAccount:  escrow.TokenAccount.String(),
	})
}

func runEncode(args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("encode: missing instruction (lockup, unlock, withdraw)")
	}

	var ix lockup.Instruction
	switch args[0] {
	case "lockup":
		fs := flag.NewFlagSet("encode lockup", flag.ContinueOnError)
		fs.SetOutput(out)
		amount := fs.Uint64("amount", 0, "amount of tokens to lock up")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		ix = lockup.Instruction{Command: lockup.CommandLockup, Amount: *amount}
	case "unlock":
		ix = lockup.Instruction{Command: lockup.CommandUnlock}
	case "withdraw":
		ix = lockup.Instruction{Command: lockup.CommandWithdraw}
	default:
		return fmt.Errorf("encode: unknown instruction %q", args[0])
	}

	_, err := fmt.Fprintln(out, base58.Encode(ix.Pack()))
	return err
}

type instructionOutput struct {
	Command string  `json:"command"`
	Amount  *uint64 `json:"amount,omitempty"`
}

func runDecodeInstruction(args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("decode-instruction: expected one base58 argument")
	}

	data, err := base58.Decode(args[0])
	if err != nil {
		return fmt.Errorf("invalid base58: %w", err)
	}
	ix, err := lockup.UnpackInstruction(data)
	if err != nil {
		return err
	}

	decoded := instructionOutput{Command: ix.Command.String()}
	if ix.Command == lockup.CommandLockup {
		decoded.Amount = &ix.Amount
	}
	return writeJSON(out, decoded)
}

type lockupOutput struct {
	Amount                   uint64  `json:"amount"`
	Authority                string  `json:"authority"`
	Mint                     string  `json:"mint"`
	LockupStartTimestamp     uint64  `json:"lockupStartTimestamp"`
	LockupEndTimestamp       *uint64 `json:"lockupEndTimestamp"`
	State                    string  `json:"state"`
	RemainingCooldownSeconds int64   `json:"remainingCooldownSeconds"`
}

func runDecodeLockup(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("decode-lockup", flag.ContinueOnError)
	fs.SetOutput(out)
	encoding := fs.String("encoding", "base64", "data encoding: base64 or base58")
	now := fs.Int64("now", time.Now().Unix(), "unix time used to derive the state")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("decode-lockup: expected one data argument")
	}

	var (
		data []byte
		err  error
	)
	switch *encoding {
	case "base64":
		data, err = base64.StdEncoding.DecodeString(fs.Arg(0))
	case "base58":
		data, err = base58.Decode(fs.Arg(0))
	default:
		return fmt.Errorf("unsupported encoding %q", *encoding)
	}
	if err != nil {
		return fmt.Errorf("invalid %s data: %w", *encoding, err)
	}

	switch lockup.Classify(data) {
	case lockup.KindUninitialized:
		return fmt.Errorf("account is not initialized")
	case lockup.KindUnknown:
		return fmt.Errorf("not a lockup account (%d bytes)", len(data))
	}

	record, err := lockup.UnpackLockup(data)
	if err != nil {
		return err
	}

	return writeJSON(out, lockupOutput{
		Amount:                   record.Amount,
		Authority:                record.Authority.String(),
		Mint:                     record.Mint.String(),
		LockupStartTimestamp:     record.LockupStartTimestamp,
		LockupEndTimestamp:       record.LockupEndTimestamp,
		State:                    record.State(*now).String(),
		RemainingCooldownSeconds: int64(record.RemainingCooldown(*now) / time.Second),
	})
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
