package rpc

import (
	"encoding/json"
	"errors"

	"github.com/fortiblox/x1-lockup/internal/types"
	"github.com/fortiblox/x1-lockup/pkg/runtime"
)

const maxSignatureStatuses = 256

// Transaction Methods

// getLatestHash returns the hash new transactions should reference.
func (s *Server) getLatestHash(params json.RawMessage) (interface{}, *RPCError) {
	hash, sequence, err := s.runtime.LatestHash()
	if err != nil {
		return nil, InternalServerErrorf("failed to get latest hash: %v", err)
	}

	return ResponseWithContext{
		Context: Context{Slot: sequence},
		Value: LatestHash{
			Hash:              hash.String(),
			LastValidSequence: sequence + runtime.MaxRecentHashes - 1,
		},
	}, nil
}

// sendTransaction verifies, simulates and submits a signed transaction and
// returns its signature. A transaction that lands and fails still returns its
// signature; its error is reported by getSignatureStatuses.
func (s *Server) sendTransaction(params json.RawMessage) (interface{}, *RPCError) {
	if !s.IsHealthy() {
		return nil, ErrNodeUnhealthy
	}

	args, rpcErr := parseArgs(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	var config TransactionConfig
	if rpcErr := configArg(args, 1, &config); rpcErr != nil {
		return nil, rpcErr
	}

	stx, rpcErr := transactionArg(args, 0, config.Encoding)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := stx.Verify(); err != nil {
		return nil, SignatureVerificationError(err)
	}

	if !config.SkipPreflight {
		result, err := s.runtime.Simulate(stx.Transaction())
		if err != nil {
			return nil, InternalServerErrorf("failed to simulate transaction: %v", err)
		}
		if !result.Success {
			return nil, PreflightFailureError(simulationResult(result))
		}
	}

	result, err := s.runtime.Submit(stx)
	switch {
	case errors.Is(err, runtime.ErrRejected):
		return nil, NewRPCError(SendTransactionPreflightFailure, err.Error())
	case err != nil:
		return nil, InternalServerErrorf("failed to execute transaction: %v", err)
	}

	s.log.WithField("signature", stx.ID().String()).
		WithField("success", result.Success).
		Info("transaction submitted")
	return stx.ID().String(), nil
}

// simulateTransaction executes a transaction without committing it.
func (s *Server) simulateTransaction(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	var config TransactionConfig
	if rpcErr := configArg(args, 1, &config); rpcErr != nil {
		return nil, rpcErr
	}

	stx, rpcErr := transactionArg(args, 0, config.Encoding)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if config.SigVerify {
		if err := stx.Verify(); err != nil {
			return nil, SignatureVerificationError(err)
		}
	}

	result, err := s.runtime.Simulate(stx.Transaction())
	if err != nil {
		return nil, InternalServerErrorf("failed to simulate transaction: %v", err)
	}

	return ResponseWithContext{
		Context: Context{Slot: result.Sequence},
		Value:   simulationResult(result),
	}, nil
}

// getSignatureStatuses returns the status of recently submitted
// transactions, null for unknown signatures.
func (s *Server) getSignatureStatuses(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if len(args) < 1 {
		return nil, InvalidParamsError("missing signatures parameter")
	}

	var encoded []string
	if err := json.Unmarshal(args[0], &encoded); err != nil {
		return nil, InvalidParamsError("invalid signatures")
	}
	if len(encoded) > maxSignatureStatuses {
		return nil, InvalidParamsErrorf("too many signatures: maximum is %d", maxSignatureStatuses)
	}

	statuses := make([]*SignatureStatus, len(encoded))
	for i, str := range encoded {
		sig, err := types.SignatureFromBase58(str)
		if err != nil {
			return nil, InvalidParamsErrorf("invalid signature at index %d", i)
		}
		result, ok := s.runtime.SignatureStatus(sig)
		if !ok {
			continue
		}
		statuses[i] = &SignatureStatus{
			Slot:               result.Sequence,
			Err:                errString(result.Err),
			ConfirmationStatus: "finalized",
		}
	}

	return ResponseWithContext{
		Context: Context{Slot: s.accountsDB.GetSequence()},
		Value:   statuses,
	}, nil
}

// transactionArg decodes the signed transaction at args[i]. Transactions are
// base58 unless the config asks for base64.
func transactionArg(args []json.RawMessage, i int, encoding Encoding) (*runtime.SignedTransaction, *RPCError) {
	if len(args) <= i {
		return nil, InvalidParamsError("missing transaction parameter")
	}

	var str string
	if err := json.Unmarshal(args[i], &str); err != nil {
		return nil, InvalidParamsError("invalid transaction")
	}

	switch encoding {
	case "":
		encoding = EncodingBase58
	case EncodingBase58, EncodingBase64:
	default:
		return nil, InvalidParamsErrorf("unsupported transaction encoding: %s", encoding)
	}

	data, err := DecodeAccountData(str, encoding)
	if err != nil {
		return nil, InvalidParamsErrorf("invalid %s transaction: %v", encoding, err)
	}
	stx, err := runtime.UnmarshalSignedTransaction(data)
	if err != nil {
		return nil, InvalidParamsErrorf("failed to deserialize transaction: %v", err)
	}
	return stx, nil
}

func simulationResult(result *runtime.ExecutionResult) *SimulationResult {
	logs := result.Logs
	if logs == nil {
		logs = []string{}
	}
	return &SimulationResult{
		Err:              errString(result.Err),
		Logs:             logs,
		UnitsConsumed:    result.ComputeUnitsUsed,
		ModifiedAccounts: pubkeyStrings(result.ModifiedAccounts),
	}
}

func errString(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	return &msg
}

func signatureString(sig types.Signature) string {
	if sig.IsZero() {
		return ""
	}
	return sig.String()
}
