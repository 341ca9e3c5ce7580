// JSON-RPC 2.0 request, response and result types.

package rpc

import (
	"encoding/json"
)

// JSON-RPC 2.0 constants.
const (
	JSONRPCVersion = "2.0"
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Context provides state context for RPC responses.
type Context struct {
	// Slot is the accounts database sequence the response was read at.
	Slot       uint64 `json:"slot"`
	APIVersion string `json:"apiVersion,omitempty"`
}

// ResponseWithContext wraps a value with context.
type ResponseWithContext struct {
	Context Context     `json:"context"`
	Value   interface{} `json:"value"`
}

// Encoding types for account data.
type Encoding string

const (
	EncodingBase58     Encoding = "base58"
	EncodingBase64     Encoding = "base64"
	EncodingBase64Zstd Encoding = "base64+zstd"
	EncodingJSONParsed Encoding = "jsonParsed"
)

// DataSlice specifies a portion of account data to return.
type DataSlice struct {
	Offset uint64 `json:"offset"`
	Length uint64 `json:"length"`
}

// AccountInfoConfig configures getAccountInfo and getMultipleAccounts
// requests.
type AccountInfoConfig struct {
	Encoding       Encoding   `json:"encoding,omitempty"`
	DataSlice      *DataSlice `json:"dataSlice,omitempty"`
	MinContextSlot *uint64    `json:"minContextSlot,omitempty"`
}

// BalanceConfig configures getBalance requests.
type BalanceConfig struct {
	MinContextSlot *uint64 `json:"minContextSlot,omitempty"`
}

// ProgramAccountsConfig configures getProgramAccounts requests.
type ProgramAccountsConfig struct {
	Encoding       Encoding               `json:"encoding,omitempty"`
	DataSlice      *DataSlice             `json:"dataSlice,omitempty"`
	Filters        []ProgramAccountFilter `json:"filters,omitempty"`
	WithContext    bool                   `json:"withContext,omitempty"`
	MinContextSlot *uint64                `json:"minContextSlot,omitempty"`
}

// ProgramAccountFilter filters program accounts.
type ProgramAccountFilter struct {
	Memcmp   *MemcmpFilter `json:"memcmp,omitempty"`
	DataSize *uint64       `json:"dataSize,omitempty"`
}

// MemcmpFilter matches account data at an offset.
type MemcmpFilter struct {
	Offset   uint64   `json:"offset"`
	Bytes    string   `json:"bytes"`
	Encoding Encoding `json:"encoding,omitempty"`
}

// EscrowConfig configures getEscrowAddresses requests.
type EscrowConfig struct {
	TokenProgram string `json:"tokenProgram,omitempty"`
}

// AccountInfo represents account information returned by RPC.
type AccountInfo struct {
	Data       interface{} `json:"data"` // [encoded, encoding] or ParsedAccountData
	Executable bool        `json:"executable"`
	Lamports   uint64      `json:"lamports"`
	Owner      string      `json:"owner"`
	RentEpoch  uint64      `json:"rentEpoch"`
	Space      uint64      `json:"space"`
}

// KeyedAccountInfo wraps AccountInfo with its pubkey.
type KeyedAccountInfo struct {
	Pubkey  string       `json:"pubkey"`
	Account *AccountInfo `json:"account"`
}

// ParsedAccountData is the jsonParsed form of account data.
type ParsedAccountData struct {
	Program string      `json:"program"`
	Parsed  interface{} `json:"parsed"`
	Space   uint64      `json:"space"`
}

// ParsedInfo is a typed parsed account.
type ParsedInfo struct {
	Type string      `json:"type"`
	Info interface{} `json:"info"`
}

// LockupInfo is the decoded form of a lockup record.
type LockupInfo struct {
	Pubkey                   string  `json:"pubkey,omitempty"`
	Amount                   uint64  `json:"amount"`
	Authority                string  `json:"authority"`
	Mint                     string  `json:"mint"`
	LockupStartTimestamp     uint64  `json:"lockupStartTimestamp"`
	LockupEndTimestamp       *uint64 `json:"lockupEndTimestamp"`
	State                    string  `json:"state"`
	RemainingCooldownSeconds int64   `json:"remainingCooldownSeconds"`
}

// TokenAmount is a token balance with its mint's decimals applied.
type TokenAmount struct {
	Amount         string `json:"amount"`
	Decimals       uint8  `json:"decimals"`
	UIAmountString string `json:"uiAmountString"`
}

// TokenAccountInfo is the parsed form of a token account.
type TokenAccountInfo struct {
	Mint        string      `json:"mint"`
	Owner       string      `json:"owner"`
	TokenAmount TokenAmount `json:"tokenAmount"`
	State       string      `json:"state"`
}

// MintInfo is the parsed form of a mint.
type MintInfo struct {
	MintAuthority   *string `json:"mintAuthority"`
	Supply          string  `json:"supply"`
	Decimals        uint8   `json:"decimals"`
	IsInitialized   bool    `json:"isInitialized"`
	FreezeAuthority *string `json:"freezeAuthority"`
}

// EscrowAddresses lists the derived escrow addresses of a mint.
type EscrowAddresses struct {
	Mint          string `json:"mint"`
	TokenProgram  string `json:"tokenProgram"`
	Authority     string `json:"authority"`
	AuthorityBump uint8  `json:"authorityBump"`
	TokenAccount  string `json:"tokenAccount"`
}

// JournalInstruction is an executed instruction as stored in the journal.
type JournalInstruction struct {
	ProgramID string   `json:"programId"`
	Accounts  []string `json:"accounts"`
	Data      string   `json:"data"` // base58
}

// JournalEntry is a journaled transaction.
type JournalEntry struct {
	Index            uint64               `json:"index"`
	Sequence         uint64               `json:"sequence"`
	Timestamp        int64                `json:"timestamp"`
	Signature        string               `json:"signature,omitempty"`
	Success          bool                 `json:"success"`
	Err              *string              `json:"err"`
	Signers          []string             `json:"signers"`
	Instructions     []JournalInstruction `json:"instructions"`
	LogMessages      []string             `json:"logMessages"`
	ComputeUnits     uint64               `json:"computeUnitsConsumed"`
	ModifiedAccounts []string             `json:"modifiedAccounts"`
	DeltaHash        string               `json:"deltaHash"`
	PrevHash         string               `json:"prevHash"`
	Hash             string               `json:"hash"`
}

// JournalInfo summarizes the journal.
type JournalInfo struct {
	Oldest       uint64 `json:"oldest"`
	Latest       uint64 `json:"latest"`
	Head         string `json:"head"`
	Entries      uint64 `json:"entries"`
	DatabaseSize int64  `json:"databaseSize"`
}

// AccountsHash is the hash of every stored account.
type AccountsHash struct {
	Slot     uint64 `json:"slot"`
	Hash     string `json:"hash"`
	Accounts uint64 `json:"accounts"`
}

// ClockInfo reports the ledger clock.
type ClockInfo struct {
	UnixTimestamp int64 `json:"unixTimestamp"`
}

// VersionInfo contains version information.
type VersionInfo struct {
	LockupCore string `json:"lockup-core"`
	FeatureSet uint32 `json:"feature-set"`
}

// TransactionConfig configures sendTransaction and simulateTransaction.
type TransactionConfig struct {
	Encoding      Encoding `json:"encoding,omitempty"`
	SkipPreflight bool     `json:"skipPreflight,omitempty"`
	SigVerify     bool     `json:"sigVerify,omitempty"`
}

// SimulationResult is the outcome of a transaction executed without commit.
type SimulationResult struct {
	Err              *string  `json:"err"`
	Logs             []string `json:"logs"`
	UnitsConsumed    uint64   `json:"unitsConsumed"`
	ModifiedAccounts []string `json:"modifiedAccounts"`
}

// LatestHash is the recent hash new transactions should reference.
type LatestHash struct {
	Hash string `json:"hash"`

	// LastValidSequence is the accounts sequence after which the hash has
	// expired, assuming every transaction until then changes accounts.
	LastValidSequence uint64 `json:"lastValidSequence"`
}

// SignatureStatus is the outcome of a submitted transaction.
type SignatureStatus struct {
	Slot               uint64  `json:"slot"`
	Confirmations      *uint64 `json:"confirmations"`
	Err                *string `json:"err"`
	ConfirmationStatus string  `json:"confirmationStatus"`
}
