package rpc

import (
	"pactnet/native/escrow"
)

type oracleAuthorizationParams struct {
	Caller   string `json:"caller"`
	Attestor string `json:"attestor"`
	Allowed  bool   `json:"allowed"`
}

type oracleAttestorParams struct {
	Attestor string `json:"attestor"`
}

type oracleVerificationParams struct {
	Caller   string `json:"caller"`
	EscrowID uint64 `json:"escrowId"`
	Verified bool   `json:"verified"`
	Proof    string `json:"proof"`
}

type oracleEscrowParams struct {
	EscrowID uint64 `json:"escrowId"`
}

type verificationJSON struct {
	EscrowID  uint64 `json:"escrowId"`
	Verified  bool   `json:"verified"`
	Proof     string `json:"proof"`
	Timestamp int64  `json:"timestamp"`
}

func verificationToJSON(record *escrow.Verification) verificationJSON {
	return verificationJSON{
		EscrowID:  record.EscrowID,
		Verified:  record.Verified,
		Proof:     encodeOptionalHash(record.ProofHash),
		Timestamp: record.Timestamp,
	}
}

func (s *Server) handleOracleSetAuthorization(req *RPCRequest) (interface{}, *RPCError) {
	var params oracleAuthorizationParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam(params.Caller, "caller")
	if rpcErr != nil {
		return nil, rpcErr
	}
	attestor, rpcErr := parseAddressParam(params.Attestor, "attestor")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.services.Oracle.SetAuthorization(caller, attestor, params.Allowed); err != nil {
		return nil, errorFor(err)
	}
	return map[string]bool{"allowed": params.Allowed}, nil
}

func (s *Server) handleOracleIsAuthorized(req *RPCRequest) (interface{}, *RPCError) {
	var params oracleAttestorParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	attestor, rpcErr := parseAddressParam(params.Attestor, "attestor")
	if rpcErr != nil {
		return nil, rpcErr
	}
	authorized, err := s.services.Oracle.IsAuthorized(attestor)
	if err != nil {
		return nil, errorFor(err)
	}
	return map[string]bool{"authorized": authorized}, nil
}

func (s *Server) handleOracleSubmitVerification(req *RPCRequest) (interface{}, *RPCError) {
	var params oracleVerificationParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam(params.Caller, "caller")
	if rpcErr != nil {
		return nil, rpcErr
	}
	proof, rpcErr := parseHashParam(params.Proof, "proof")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.services.Oracle.SubmitVerification(caller, params.EscrowID, params.Verified, proof); err != nil {
		return nil, errorFor(err)
	}
	record, ok, err := s.services.Oracle.GetVerification(params.EscrowID)
	if err != nil {
		return nil, errorFor(err)
	}
	if !ok {
		return nil, &RPCError{Code: codeServerError, Message: "internal", Data: "verification not persisted"}
	}
	return verificationToJSON(record), nil
}

func (s *Server) handleOracleGetVerification(req *RPCRequest) (interface{}, *RPCError) {
	var params oracleEscrowParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	record, ok, err := s.services.Oracle.GetVerification(params.EscrowID)
	if err != nil {
		return nil, errorFor(err)
	}
	if !ok {
		return nil, &RPCError{Code: codeNotFound, Message: "not_found", Data: "no verification recorded"}
	}
	return verificationToJSON(record), nil
}
