package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mr-tron/base58"

	"github.com/fortiblox/x1-lockup/internal/types"
	"github.com/fortiblox/x1-lockup/pkg/runtime"
	"github.com/fortiblox/x1-lockup/pkg/svm"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/associated"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/lockup"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/token"
)

const defaultRPCTimeout = 30 * time.Second

// Keypair files hold the 64-byte Ed25519 private key as a JSON array of
// numbers, as the Solana CLI writes them.

func readKeypair(path string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var values []int
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("invalid keypair file %s: %w", path, err)
	}
	if len(values) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid keypair file %s: %d bytes", path, len(values))
	}
	key := make(ed25519.PrivateKey, ed25519.PrivateKeySize)
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("invalid keypair file %s: byte %d out of range", path, i)
		}
		key[i] = byte(v)
	}
	return key, nil
}

func writeKeypair(path string, key ed25519.PrivateKey) error {
	values := make([]int, len(key))
	for i, b := range key {
		values[i] = int(b)
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func pubkeyOf(key ed25519.PrivateKey) types.Pubkey {
	var pub types.Pubkey
	copy(pub[:], key.Public().(ed25519.PublicKey))
	return pub
}

func runKeygen(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(out)
	outFlag := fs.String("out", "", "keypair file to write")
	force := fs.Bool("force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *outFlag == "" {
		return fmt.Errorf("keygen: -out is required")
	}
	if _, err := os.Stat(*outFlag); err == nil && !*force {
		return fmt.Errorf("keygen: %s already exists", *outFlag)
	}

	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	if err := writeKeypair(*outFlag, key); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, pubkeyOf(key))
	return err
}

// txFlags are the flags shared by every tx subcommand.
type txFlags struct {
	fs           *flag.FlagSet
	program      *string
	keypair      *string
	recentHash   *string
	url          *string
	mint         *string
	tokenProgram *string
	lockup       *string
}

func newTxFlags(name string, out io.Writer) *txFlags {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return &txFlags{
		fs:           fs,
		program:      fs.String("program", lockup.ProgramID.String(), "lockup program address"),
		keypair:      fs.String("keypair", "", "keypair file of the signer"),
		recentHash:   fs.String("recent-hash", "", "recent ledger hash; fetched from -url when empty"),
		url:          fs.String("url", "", "node JSON-RPC URL"),
		mint:         fs.String("mint", "", "token mint address"),
		tokenProgram: fs.String("token-program", token.ProgramID.String(), "token program address"),
		lockup:       fs.String("lockup", "", "lockup account address"),
	}
}

func parsePubkey(name, value string) (types.Pubkey, error) {
	key, err := types.PubkeyFromBase58(value)
	if err != nil {
		return types.Pubkey{}, fmt.Errorf("invalid %s: %w", name, err)
	}
	return key, nil
}

// signAndEncode signs the instructions with keys and writes the base58
// transaction.
func (f *txFlags) signAndEncode(out io.Writer, keys []ed25519.PrivateKey, instructions ...svm.Instruction) error {
	var (
		recent types.Hash
		err    error
	)
	switch {
	case *f.recentHash != "":
		recent, err = types.HashFromBase58(*f.recentHash)
	case *f.url != "":
		ctx, cancel := context.WithTimeout(context.Background(), defaultRPCTimeout)
		defer cancel()
		recent, err = newRPCClient(*f.url, defaultRPCTimeout).latestHash(ctx)
	default:
		err = fmt.Errorf("one of -recent-hash or -url is required")
	}
	if err != nil {
		return fmt.Errorf("recent hash: %w", err)
	}

	stx, err := runtime.NewSignedTransaction(recent, keys, instructions...)
	if err != nil {
		return err
	}
	b, err := stx.Marshal()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, base58.Encode(b))
	return err
}

func runTx(args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("tx: missing instruction (lockup, unlock, withdraw)")
	}

	f := newTxFlags("tx "+args[0], out)
	var (
		amount        *uint64
		authority     *string
		lockupKeypair *string
		initEscrow    *bool
		tokenDest     *string
		lamportsDest  *string
	)
	switch args[0] {
	case "lockup":
		amount = f.fs.Uint64("amount", 0, "amount of tokens to lock up")
		authority = f.fs.String("authority", "", "lockup authority; defaults to the signer")
		lockupKeypair = f.fs.String("lockup-keypair", "", "create the lockup account from this keypair")
		initEscrow = f.fs.Bool("init-escrow", false, "create the escrow token account if missing")
	case "unlock":
	case "withdraw":
		tokenDest = f.fs.String("token-destination", "", "token account receiving the tokens; defaults to the signer's associated account")
		lamportsDest = f.fs.String("lamports-destination", "", "account receiving the lockup rent; defaults to the signer")
	default:
		return fmt.Errorf("tx: unknown instruction %q", args[0])
	}
	if err := f.fs.Parse(args[1:]); err != nil {
		return err
	}

	if *f.keypair == "" {
		return fmt.Errorf("tx: -keypair is required")
	}
	key, err := readKeypair(*f.keypair)
	if err != nil {
		return err
	}
	signer := pubkeyOf(key)
	keys := []ed25519.PrivateKey{key}

	programID, err := parsePubkey("program", *f.program)
	if err != nil {
		return err
	}

	var lockupAddr types.Pubkey
	if lockupKeypair != nil && *lockupKeypair != "" {
		lockupKey, err := readKeypair(*lockupKeypair)
		if err != nil {
			return err
		}
		lockupAddr = pubkeyOf(lockupKey)
		keys = append(keys, lockupKey)
	} else if lockupAddr, err = parsePubkey("lockup", *f.lockup); err != nil {
		return err
	}

	if args[0] == "unlock" {
		return f.signAndEncode(out, keys, lockup.NewUnlockInstruction(programID, &lockup.UnlockInstructionAccounts{
			LockupAuthority: signer,
			Lockup:          lockupAddr,
		}))
	}

	mint, err := parsePubkey("mint", *f.mint)
	if err != nil {
		return err
	}
	tokenProgram, err := parsePubkey("token program", *f.tokenProgram)
	if err != nil {
		return err
	}
	if !types.IsTokenProgram(tokenProgram) {
		return fmt.Errorf("unsupported token program %s", tokenProgram)
	}

	if args[0] == "withdraw" {
		accounts := &lockup.WithdrawInstructionAccounts{
			LockupAuthority:     signer,
			LamportsDestination: signer,
			Lockup:              lockupAddr,
			Mint:                mint,
			TokenProgram:        tokenProgram,
		}
		if *lamportsDest != "" {
			if accounts.LamportsDestination, err = parsePubkey("lamports destination", *lamportsDest); err != nil {
				return err
			}
		}
		if *tokenDest != "" {
			accounts.TokenDestination, err = parsePubkey("token destination", *tokenDest)
		} else {
			accounts.TokenDestination, _, err = associated.GetAssociatedAddress(signer, mint, tokenProgram)
		}
		if err != nil {
			return err
		}

		ix, err := lockup.NewWithdrawInstruction(programID, accounts)
		if err != nil {
			return err
		}
		return f.signAndEncode(out, keys, ix)
	}

	lockupAuthority := signer
	if *authority != "" {
		if lockupAuthority, err = parsePubkey("authority", *authority); err != nil {
			return err
		}
	}
	tokenAccount, _, err := associated.GetAssociatedAddress(signer, mint, tokenProgram)
	if err != nil {
		return err
	}

	var instructions []svm.Instruction
	if *initEscrow {
		ix, err := lockup.InitializeEscrowInstruction(programID, signer, mint, tokenProgram)
		if err != nil {
			return err
		}
		instructions = append(instructions, ix)
	}
	if *lockupKeypair != "" {
		instructions = append(instructions, lockup.NewCreateLockupAccountInstruction(
			programID, signer, lockupAddr, svm.RentMinimum(lockup.LockupSize)))
	}
	ix, err := lockup.NewLockupInstruction(programID, &lockup.LockupInstructionAccounts{
		LockupAuthority: lockupAuthority,
		TokenOwner:      signer,
		TokenAccount:    tokenAccount,
		Lockup:          lockupAddr,
		Mint:            mint,
		TokenProgram:    tokenProgram,
	}, &lockup.LockupInstructionArgs{Amount: *amount})
	if err != nil {
		return err
	}
	instructions = append(instructions, ix)

	return f.signAndEncode(out, keys, instructions...)
}

func runSend(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(out)
	url := fs.String("url", "http://127.0.0.1:8899", "node JSON-RPC URL")
	skipPreflight := fs.Bool("skip-preflight", false, "submit without simulating first")
	timeout := fs.Duration("timeout", defaultRPCTimeout, "request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("send: expected one base58 transaction argument")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	client := newRPCClient(*url, *timeout)

	signature, err := client.sendTransaction(ctx, fs.Arg(0), *skipPreflight)
	if err != nil {
		return err
	}
	status, err := client.signatureStatus(ctx, signature)
	if err != nil {
		return err
	}
	if status != nil && status.Err != nil {
		return fmt.Errorf("transaction %s failed: %s", signature, *status.Err)
	}
	_, err = fmt.Fprintln(out, signature)
	return err
}

func runRecentHash(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("recent-hash", flag.ContinueOnError)
	fs.SetOutput(out)
	url := fs.String("url", "http://127.0.0.1:8899", "node JSON-RPC URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRPCTimeout)
	defer cancel()
	hash, err := newRPCClient(*url, defaultRPCTimeout).latestHash(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}
