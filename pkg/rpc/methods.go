package rpc

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/mr-tron/base58"

	"github.com/fortiblox/x1-lockup/internal/types"
	"github.com/fortiblox/x1-lockup/pkg/accounts"
	"github.com/fortiblox/x1-lockup/pkg/journal"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/lockup"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/token"
)

// Version information.
const (
	Version    = "lockup-1.0.0"
	FeatureSet = 0
)

const maxMultipleAccounts = 100

// Account Methods

// getAccountInfo retrieves account information.
func (s *Server) getAccountInfo(params json.RawMessage) (interface{}, *RPCError) {
	// Parse params: [pubkey, config?]
	args, rpcErr := parseArgs(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	pubkey, rpcErr := pubkeyArg(args, 0, "pubkey")
	if rpcErr != nil {
		return nil, rpcErr
	}

	var config AccountInfoConfig
	if rpcErr := configArg(args, 1, &config); rpcErr != nil {
		return nil, rpcErr
	}

	encoding, err := ParseEncoding(string(config.Encoding))
	if err != nil {
		return nil, InvalidParamsError(err.Error())
	}

	currentSlot, rpcErr := s.contextSlot(config.MinContextSlot)
	if rpcErr != nil {
		return nil, rpcErr
	}

	account, err := s.accountsDB.GetAccount(pubkey)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			return ResponseWithContext{
				Context: Context{Slot: currentSlot},
				Value:   nil,
			}, nil
		}
		return nil, InternalServerErrorf("failed to get account: %v", err)
	}

	accountInfo, rpcErr := s.accountToAccountInfo(account, encoding, config.DataSlice)
	if rpcErr != nil {
		return nil, rpcErr
	}

	return ResponseWithContext{
		Context: Context{Slot: currentSlot},
		Value:   accountInfo,
	}, nil
}

// getBalance retrieves account balance.
func (s *Server) getBalance(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	pubkey, rpcErr := pubkeyArg(args, 0, "pubkey")
	if rpcErr != nil {
		return nil, rpcErr
	}

	var config BalanceConfig
	if rpcErr := configArg(args, 1, &config); rpcErr != nil {
		return nil, rpcErr
	}

	currentSlot, rpcErr := s.contextSlot(config.MinContextSlot)
	if rpcErr != nil {
		return nil, rpcErr
	}

	account, err := s.accountsDB.GetAccount(pubkey)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			return ResponseWithContext{
				Context: Context{Slot: currentSlot},
				Value:   uint64(0),
			}, nil
		}
		return nil, InternalServerErrorf("failed to get account: %v", err)
	}

	return ResponseWithContext{
		Context: Context{Slot: currentSlot},
		Value:   account.Lamports,
	}, nil
}

// getMultipleAccounts retrieves multiple accounts.
func (s *Server) getMultipleAccounts(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	if len(args) < 1 {
		return nil, InvalidParamsError("missing pubkeys parameter")
	}

	var pubkeyStrs []string
	if err := json.Unmarshal(args[0], &pubkeyStrs); err != nil {
		return nil, InvalidParamsError("invalid pubkeys array")
	}

	if len(pubkeyStrs) > maxMultipleAccounts {
		return nil, InvalidParamsErrorf("too many pubkeys (max %d)", maxMultipleAccounts)
	}

	var config AccountInfoConfig
	if rpcErr := configArg(args, 1, &config); rpcErr != nil {
		return nil, rpcErr
	}

	encoding, err := ParseEncoding(string(config.Encoding))
	if err != nil {
		return nil, InvalidParamsError(err.Error())
	}

	currentSlot, rpcErr := s.contextSlot(config.MinContextSlot)
	if rpcErr != nil {
		return nil, rpcErr
	}

	accountInfos := make([]*AccountInfo, len(pubkeyStrs))
	for i, pubkeyStr := range pubkeyStrs {
		pubkey, err := types.PubkeyFromBase58(pubkeyStr)
		if err != nil {
			return nil, InvalidParamsErrorf("invalid pubkey at index %d", i)
		}

		account, err := s.accountsDB.GetAccount(pubkey)
		if err != nil {
			if errors.Is(err, accounts.ErrAccountNotFound) {
				continue
			}
			return nil, InternalServerErrorf("failed to get account: %v", err)
		}

		info, rpcErr := s.accountToAccountInfo(account, encoding, config.DataSlice)
		if rpcErr != nil {
			return nil, rpcErr
		}
		accountInfos[i] = info
	}

	return ResponseWithContext{
		Context: Context{Slot: currentSlot},
		Value:   accountInfos,
	}, nil
}

// getProgramAccounts retrieves accounts owned by a program.
func (s *Server) getProgramAccounts(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	programID, rpcErr := pubkeyArg(args, 0, "program ID")
	if rpcErr != nil {
		return nil, rpcErr
	}

	var config ProgramAccountsConfig
	if rpcErr := configArg(args, 1, &config); rpcErr != nil {
		return nil, rpcErr
	}

	encoding, err := ParseEncoding(string(config.Encoding))
	if err != nil {
		return nil, InvalidParamsError(err.Error())
	}

	filters, rpcErr := compileFilters(config.Filters)
	if rpcErr != nil {
		return nil, rpcErr
	}

	currentSlot, rpcErr := s.contextSlot(config.MinContextSlot)
	if rpcErr != nil {
		return nil, rpcErr
	}

	// Full scan; the accounts database has no owner index.
	results := []KeyedAccountInfo{}
	err = s.accountsDB.IterateAccounts(func(pubkey types.Pubkey, account *accounts.Account) error {
		if account.Owner != programID || !filters.matches(account.Data) {
			return nil
		}

		info, rpcErr := s.accountToAccountInfo(account, encoding, config.DataSlice)
		if rpcErr != nil {
			return rpcErr
		}
		results = append(results, KeyedAccountInfo{
			Pubkey:  pubkey.String(),
			Account: info,
		})
		return nil
	})
	if err != nil {
		return nil, ScanErrorf("scan failed: %v", err)
	}

	if config.WithContext {
		return ResponseWithContext{
			Context: Context{Slot: currentSlot},
			Value:   results,
		}, nil
	}

	return results, nil
}

// getTokenAccountBalance returns the balance of a token account.
func (s *Server) getTokenAccountBalance(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	pubkey, rpcErr := pubkeyArg(args, 0, "pubkey")
	if rpcErr != nil {
		return nil, rpcErr
	}

	currentSlot := s.accountsDB.GetSequence()

	account, err := s.accountsDB.GetAccount(pubkey)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			return nil, InvalidParamsError("Invalid param: could not find account")
		}
		return nil, InternalServerErrorf("failed to get account: %v", err)
	}

	if !types.IsTokenProgram(account.Owner) {
		return nil, InvalidParamsError("Invalid param: not a Token account")
	}
	tokenAccount, err := token.UnpackAccount(account.Data)
	if err != nil {
		return nil, InvalidParamsError("Invalid param: not a Token account")
	}

	amount, err := s.tokenAmount(tokenAccount.Mint, tokenAccount.Amount)
	if err != nil {
		return nil, InvalidParamsErrorf("Invalid param: could not read mint: %v", err)
	}

	return ResponseWithContext{
		Context: Context{Slot: currentSlot},
		Value:   amount,
	}, nil
}

// Lockup Methods

// getLockup decodes a lockup record. A missing account yields a null value.
func (s *Server) getLockup(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	pubkey, rpcErr := pubkeyArg(args, 0, "pubkey")
	if rpcErr != nil {
		return nil, rpcErr
	}

	currentSlot := s.accountsDB.GetSequence()

	account, err := s.accountsDB.GetAccount(pubkey)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			return ResponseWithContext{
				Context: Context{Slot: currentSlot},
				Value:   nil,
			}, nil
		}
		return nil, InternalServerErrorf("failed to get account: %v", err)
	}

	record := s.unpackLockup(account)
	if record == nil {
		return nil, InvalidParamsError("Invalid param: not a lockup account")
	}

	info := s.lockupInfo(record)
	info.Pubkey = pubkey.String()

	return ResponseWithContext{
		Context: Context{Slot: currentSlot},
		Value:   info,
	}, nil
}

// getLockupsByAuthority lists every lockup an authority controls, optionally
// restricted to one mint.
func (s *Server) getLockupsByAuthority(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	authority, rpcErr := pubkeyArg(args, 0, "authority")
	if rpcErr != nil {
		return nil, rpcErr
	}

	var mint *types.Pubkey
	if len(args) > 1 {
		m, rpcErr := pubkeyArg(args, 1, "mint")
		if rpcErr != nil {
			return nil, rpcErr
		}
		mint = &m
	}

	currentSlot := s.accountsDB.GetSequence()

	results := []LockupInfo{}
	err := s.accountsDB.IterateAccounts(func(pubkey types.Pubkey, account *accounts.Account) error {
		record := s.unpackLockup(account)
		if record == nil || record.Authority != authority {
			return nil
		}
		if mint != nil && record.Mint != *mint {
			return nil
		}

		info := s.lockupInfo(record)
		info.Pubkey = pubkey.String()
		results = append(results, info)
		return nil
	})
	if err != nil {
		return nil, ScanErrorf("scan failed: %v", err)
	}

	return ResponseWithContext{
		Context: Context{Slot: currentSlot},
		Value:   results,
	}, nil
}

// getEscrowAddresses derives the escrow authority and escrow token account
// of a mint.
func (s *Server) getEscrowAddresses(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	mint, rpcErr := pubkeyArg(args, 0, "mint")
	if rpcErr != nil {
		return nil, rpcErr
	}

	var config EscrowConfig
	if rpcErr := configArg(args, 1, &config); rpcErr != nil {
		return nil, rpcErr
	}

	tokenProgram := token.ProgramID
	if config.TokenProgram != "" {
		p, err := types.PubkeyFromBase58(config.TokenProgram)
		if err != nil {
			return nil, InvalidParamsError("invalid token program format")
		}
		tokenProgram = p
	}
	if !types.IsTokenProgram(tokenProgram) {
		return nil, InvalidParamsError("unsupported token program")
	}

	addrs, err := lockup.GetEscrowAddresses(s.config.LockupProgramID, mint, tokenProgram)
	if err != nil {
		return nil, InternalServerErrorf("failed to derive escrow addresses: %v", err)
	}

	return EscrowAddresses{
		Mint:          mint.String(),
		TokenProgram:  tokenProgram.String(),
		Authority:     addrs.Authority.String(),
		AuthorityBump: addrs.AuthorityBump,
		TokenAccount:  addrs.TokenAccount.String(),
	}, nil
}

// Journal Methods

// getJournalEntry returns a journaled transaction by index.
func (s *Server) getJournalEntry(params json.RawMessage) (interface{}, *RPCError) {
	if s.journal == nil {
		return nil, ErrTransactionHistoryNotAvailable
	}

	args, rpcErr := parseArgs(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	if len(args) < 1 {
		return nil, InvalidParamsError("missing index parameter")
	}

	var index uint64
	if err := json.Unmarshal(args[0], &index); err != nil {
		return nil, InvalidParamsError("invalid index")
	}

	entry, err := s.journal.Get(index)
	if err != nil {
		if errors.Is(err, journal.ErrEntryNotFound) {
			stats, statsErr := s.journal.GetStats()
			if statsErr == nil && stats.Oldest != 0 && index < stats.Oldest {
				return nil, EntryCleanedUpError(index, stats.Oldest)
			}
			return nil, EntryNotAvailableError(index)
		}
		return nil, InternalServerErrorf("failed to get journal entry: %v", err)
	}

	return journalEntryResponse(entry), nil
}

// getJournalInfo summarizes the journal.
func (s *Server) getJournalInfo(params json.RawMessage) (interface{}, *RPCError) {
	if s.journal == nil {
		return nil, ErrTransactionHistoryNotAvailable
	}

	stats, err := s.journal.GetStats()
	if err != nil {
		return nil, InternalServerErrorf("failed to get journal stats: %v", err)
	}

	return JournalInfo{
		Oldest:       stats.Oldest,
		Latest:       stats.Latest,
		Head:         stats.Head.String(),
		Entries:      stats.EntryCount,
		DatabaseSize: stats.DatabaseSize,
	}, nil
}

// Node Methods

// getHealth returns the node health.
func (s *Server) getHealth(params json.RawMessage) (interface{}, *RPCError) {
	if !s.IsHealthy() {
		return nil, ErrNodeUnhealthy
	}
	return "ok", nil
}

// getVersion returns the node version.
func (s *Server) getVersion(params json.RawMessage) (interface{}, *RPCError) {
	return VersionInfo{
		LockupCore: Version,
		FeatureSet: FeatureSet,
	}, nil
}

// getClock returns the ledger clock used to stamp transactions.
func (s *Server) getClock(params json.RawMessage) (interface{}, *RPCError) {
	return ResponseWithContext{
		Context: Context{Slot: s.accountsDB.GetSequence()},
		Value:   ClockInfo{UnixTimestamp: s.runtime.Clock().UnixTimestamp()},
	}, nil
}

// getAccountsHash returns the hash over every stored account.
func (s *Server) getAccountsHash(params json.RawMessage) (interface{}, *RPCError) {
	currentSlot := s.accountsDB.GetSequence()

	hash, err := accounts.ComputeAccountsHash(s.accountsDB)
	if err != nil {
		return nil, InternalServerErrorf("failed to compute accounts hash: %v", err)
	}
	count, err := s.accountsDB.AccountsCount()
	if err != nil {
		return nil, InternalServerErrorf("failed to count accounts: %v", err)
	}

	return AccountsHash{
		Slot:     currentSlot,
		Hash:     hash.String(),
		Accounts: count,
	}, nil
}

// getMinimumBalanceForRentExemption returns the minimum balance for rent exemption.
func (s *Server) getMinimumBalanceForRentExemption(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	if len(args) < 1 {
		return nil, InvalidParamsError("missing data length parameter")
	}

	var dataLen uint64
	if err := json.Unmarshal(args[0], &dataLen); err != nil {
		return nil, InvalidParamsError("invalid data length")
	}

	return s.runtime.RentMinimum(dataLen), nil
}

// Helper methods

// contextSlot returns the current accounts sequence, enforcing the
// request's minimum.
func (s *Server) contextSlot(minContextSlot *uint64) (uint64, *RPCError) {
	currentSlot := s.accountsDB.GetSequence()
	if minContextSlot != nil && *minContextSlot > currentSlot {
		return 0, MinContextSlotError(*minContextSlot, currentSlot)
	}
	return currentSlot, nil
}

// accountToAccountInfo converts an internal account to RPC AccountInfo.
func (s *Server) accountToAccountInfo(account *accounts.Account, encoding Encoding, dataSlice *DataSlice) (*AccountInfo, *RPCError) {
	info := &AccountInfo{
		Executable: account.Executable,
		Lamports:   account.Lamports,
		Owner:      account.Owner.String(),
		RentEpoch:  account.RentEpoch,
		Space:      uint64(len(account.Data)),
	}

	if encoding == EncodingJSONParsed && dataSlice == nil {
		if parsed := s.parseAccountData(account); parsed != nil {
			info.Data = parsed
			return info, nil
		}
	}

	encodedData, err := EncodeAccountData(ApplyDataSlice(account.Data, dataSlice), encoding)
	if err != nil {
		return nil, InternalServerErrorf("failed to encode data: %v", err)
	}
	info.Data = encodedData

	return info, nil
}

// accountFilters is a compiled set of getProgramAccounts filters.
type accountFilters []func(data []byte) bool

func compileFilters(filters []ProgramAccountFilter) (accountFilters, *RPCError) {
	compiled := make(accountFilters, 0, len(filters))
	for i, filter := range filters {
		if filter.DataSize != nil {
			size := *filter.DataSize
			compiled = append(compiled, func(data []byte) bool {
				return uint64(len(data)) == size
			})
		}

		if filter.Memcmp != nil {
			var (
				cmpBytes []byte
				err      error
			)
			switch filter.Memcmp.Encoding {
			case EncodingBase64:
				cmpBytes, err = DecodeAccountData(filter.Memcmp.Bytes, EncodingBase64)
			default:
				cmpBytes, err = base58.Decode(filter.Memcmp.Bytes)
			}
			if err != nil {
				return nil, InvalidParamsErrorf("invalid memcmp bytes in filter %d", i)
			}

			offset := filter.Memcmp.Offset
			compiled = append(compiled, func(data []byte) bool {
				if offset > uint64(len(data)) || uint64(len(cmpBytes)) > uint64(len(data))-offset {
					return false
				}
				return bytes.Equal(data[offset:offset+uint64(len(cmpBytes))], cmpBytes)
			})
		}
	}
	return compiled, nil
}

func (f accountFilters) matches(data []byte) bool {
	for _, match := range f {
		if !match(data) {
			return false
		}
	}
	return true
}

func journalEntryResponse(entry *journal.Entry) JournalEntry {
	resp := JournalEntry{
		Index:            entry.Index,
		Sequence:         entry.AccountsSequence,
		Signature:        signatureString(entry.Signature),
		Timestamp:        entry.Timestamp,
		Success:          entry.Success,
		Signers:          pubkeyStrings(entry.Signers),
		Instructions:     make([]JournalInstruction, len(entry.Instructions)),
		LogMessages:      entry.Logs,
		ComputeUnits:     entry.ComputeUnits,
		ModifiedAccounts: pubkeyStrings(entry.ModifiedAccounts),
		DeltaHash:        entry.DeltaHash.String(),
		PrevHash:         entry.PrevHash.String(),
		Hash:             entry.Hash.String(),
	}
	if !entry.Success {
		msg := entry.Error
		resp.Err = &msg
	}
	if resp.LogMessages == nil {
		resp.LogMessages = []string{}
	}

	for i, ix := range entry.Instructions {
		keys := make([]string, len(ix.Accounts))
		for j, meta := range ix.Accounts {
			keys[j] = meta.Pubkey.String()
		}
		resp.Instructions[i] = JournalInstruction{
			ProgramID: ix.ProgramID.String(),
			Accounts:  keys,
			Data:      base58.Encode(ix.Data),
		}
	}
	return resp
}

func pubkeyStrings(keys []types.Pubkey) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

// Param helpers

func parseArgs(params json.RawMessage) ([]json.RawMessage, *RPCError) {
	if len(params) == 0 || string(params) == "null" {
		return nil, nil
	}

	var args []json.RawMessage
	if err := json.Unmarshal(params, &args); err != nil {
		return nil, InvalidParamsError("invalid params")
	}
	return args, nil
}

func pubkeyArg(args []json.RawMessage, i int, name string) (types.Pubkey, *RPCError) {
	if len(args) <= i {
		return types.Pubkey{}, InvalidParamsErrorf("missing %s parameter", name)
	}

	var str string
	if err := json.Unmarshal(args[i], &str); err != nil {
		return types.Pubkey{}, InvalidParamsErrorf("invalid %s", name)
	}

	pubkey, err := types.PubkeyFromBase58(str)
	if err != nil {
		return types.Pubkey{}, InvalidParamsErrorf("invalid %s format", name)
	}
	return pubkey, nil
}

func configArg(args []json.RawMessage, i int, config interface{}) *RPCError {
	if len(args) <= i || string(args[i]) == "null" {
		return nil
	}
	if err := json.Unmarshal(args[i], config); err != nil {
		return InvalidParamsError("invalid config")
	}
	return nil
}
