package rpc

import (
	"time"

	"github.com/fortiblox/x1-lockup/internal/types"
	"github.com/fortiblox/x1-lockup/pkg/accounts"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/lockup"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/token"
)

// Program names used in jsonParsed account data.
const (
	programLockup       = "lockup"
	programSPLToken     = "spl-token"
	programSPLToken2022 = "spl-token-2022"
)

// parseAccountData decodes the data of lockup and token accounts. It
// returns nil for anything else, and the caller falls back to base64.
// Token-2022 accounts are parsed by their base layout only.
func (s *Server) parseAccountData(account *accounts.Account) *ParsedAccountData {
	space := uint64(len(account.Data))

	if record := s.unpackLockup(account); record != nil {
		return &ParsedAccountData{
			Program: programLockup,
			Parsed:  ParsedInfo{Type: "lockup", Info: s.lockupInfo(record)},
			Space:   space,
		}
	}

	if !types.IsTokenProgram(account.Owner) {
		return nil
	}
	program := programSPLToken
	if account.Owner == token.Program2022ID {
		program = programSPLToken2022
	}

	switch len(account.Data) {
	case token.AccountSize:
		tokenAccount, err := token.UnpackAccount(account.Data)
		if err != nil {
			return nil
		}
		amount, err := s.tokenAmount(tokenAccount.Mint, tokenAccount.Amount)
		if err != nil {
			return nil
		}
		return &ParsedAccountData{
			Program: program,
			Parsed: ParsedInfo{Type: "account", Info: TokenAccountInfo{
				Mint:        tokenAccount.Mint.String(),
				Owner:       tokenAccount.Owner.String(),
				TokenAmount: amount,
				State:       tokenAccountState(tokenAccount.State),
			}},
			Space: space,
		}

	case token.MintSize:
		mint, err := token.UnpackMint(account.Data)
		if err != nil {
			return nil
		}
		return &ParsedAccountData{
			Program: program,
			Parsed: ParsedInfo{Type: "mint", Info: MintInfo{
				MintAuthority:   optionalPubkey(mint.MintAuthority),
				Supply:          FormatTokenAmount(mint.Supply, 0),
				Decimals:        mint.Decimals,
				IsInitialized:   mint.IsInitialized,
				FreezeAuthority: optionalPubkey(mint.FreezeAuthority),
			}},
			Space: space,
		}
	}
	return nil
}

// unpackLockup returns the record stored in account, or nil when account is
// not an initialized lockup of the configured program.
func (s *Server) unpackLockup(account *accounts.Account) *lockup.Lockup {
	if account.Owner != s.config.LockupProgramID {
		return nil
	}
	if lockup.Classify(account.Data) != lockup.KindLockup {
		return nil
	}
	record, err := lockup.UnpackLockup(account.Data)
	if err != nil {
		return nil
	}
	return record
}

func (s *Server) lockupInfo(record *lockup.Lockup) LockupInfo {
	now := s.runtime.Clock().UnixTimestamp()
	return LockupInfo{
		Amount:                   record.Amount,
		Authority:                record.Authority.String(),
		Mint:                     record.Mint.String(),
		LockupStartTimestamp:     record.LockupStartTimestamp,
		LockupEndTimestamp:       record.LockupEndTimestamp,
		State:                    record.State(now).String(),
		RemainingCooldownSeconds: int64(record.RemainingCooldown(now) / time.Second),
	}
}

// tokenAmount applies the decimals of mint to amount.
func (s *Server) tokenAmount(mint types.Pubkey, amount uint64) (TokenAmount, error) {
	account, err := s.accountsDB.GetAccount(mint)
	if err != nil {
		return TokenAmount{}, err
	}
	decimals, err := token.MintDecimals(account.Data)
	if err != nil {
		return TokenAmount{}, err
	}
	return TokenAmount{
		Amount:         FormatTokenAmount(amount, 0),
		Decimals:       decimals,
		UIAmountString: FormatTokenAmount(amount, decimals),
	}, nil
}

func tokenAccountState(state token.AccountState) string {
	switch state {
	case token.AccountStateInitialized:
		return "initialized"
	case token.AccountStateFrozen:
		return "frozen"
	default:
		return "uninitialized"
	}
}

func optionalPubkey(key types.Pubkey) *string {
	if key.IsZero() {
		return nil
	}
	str := key.String()
	return &str
}
