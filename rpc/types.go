package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"pactnet/native/agreement"
	"pactnet/native/escrow"
	"pactnet/native/oracle"
	"pactnet/native/registry"
	"pactnet/native/report"
	"pactnet/native/token"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000

	codeNotFound  = -32022
	codeForbidden = -32023
	codeConflict  = -32024
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func invalidParams(detail string) *RPCError {
	return &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: detail}
}

// errorFor maps engine sentinels onto RPC error codes. Authorization
// failures map to forbidden, state-machine precondition violations to
// conflict, dangling references to not-found and input validation to invalid
// params; anything unrecognised is a server error.
func errorFor(err error) *RPCError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, escrow.ErrNotFound),
		errors.Is(err, escrow.ErrInvalidReference),
		errors.Is(err, agreement.ErrNotFound),
		errors.Is(err, report.ErrInvalidReference),
		errors.Is(err, report.ErrNotFound):
		return &RPCError{Code: codeNotFound, Message: "not_found", Data: err.Error()}
	case errors.Is(err, escrow.ErrNotAParty),
		errors.Is(err, escrow.ErrNotInitiator),
		errors.Is(err, escrow.ErrUnauthorized),
		errors.Is(err, report.ErrNotAParty),
		errors.Is(err, report.ErrInvalidTarget),
		errors.Is(err, oracle.ErrUnauthorized):
		return &RPCError{Code: codeForbidden, Message: "forbidden", Data: err.Error()}
	case errors.Is(err, escrow.ErrWrongState),
		errors.Is(err, escrow.ErrInvalidStatus),
		errors.Is(err, escrow.ErrDisputed),
		errors.Is(err, escrow.ErrAlreadyDisputed),
		errors.Is(err, escrow.ErrAlreadyJoined),
		errors.Is(err, escrow.ErrAlreadySubmitted),
		errors.Is(err, escrow.ErrAlreadyConfirmed),
		errors.Is(err, escrow.ErrAlreadyApproved),
		errors.Is(err, escrow.ErrArbiterActive),
		errors.Is(err, escrow.ErrNoProposal),
		errors.Is(err, escrow.ErrNotExpired),
		errors.Is(err, escrow.ErrInsufficientFunds),
		errors.Is(err, registry.ErrAlreadyRegistered),
		errors.Is(err, oracle.ErrWrongState),
		errors.Is(err, token.ErrInsufficientFunds),
		errors.Is(err, token.ErrAllowanceExceeded):
		return &RPCError{Code: codeConflict, Message: "conflict", Data: err.Error()}
	case errors.Is(err, escrow.ErrSelfJoin),
		errors.Is(err, escrow.ErrInvalidExpiry),
		errors.Is(err, escrow.ErrMissingCommitment),
		errors.Is(err, escrow.ErrMissingProof),
		errors.Is(err, escrow.ErrValueRequired),
		errors.Is(err, escrow.ErrInvalidArbiter),
		errors.Is(err, escrow.ErrInvalidDecision),
		errors.Is(err, agreement.ErrSelfAgreement),
		errors.Is(err, agreement.ErrNotRegistered),
		errors.Is(err, report.ErrSelfReport):
		return invalidParams(err.Error())
	default:
		return &RPCError{Code: codeServerError, Message: "internal", Data: err.Error()}
	}
}

func httpStatusFor(code int) int {
	switch code {
	case codeNotFound:
		return http.StatusNotFound
	case codeForbidden:
		return http.StatusForbidden
	case codeConflict:
		return http.StatusConflict
	case codeInvalidParams, codeInvalidRequest, codeParseError:
		return http.StatusBadRequest
	case codeMethodNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
