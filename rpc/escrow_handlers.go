package rpc

import (
	"encoding/hex"
	"math/big"
	"strings"

	"pactnet/core/types"
	"pactnet/native/escrow"
)

type escrowCreateParams struct {
	Caller      string `json:"caller"`
	AgreementID uint64 `json:"agreementId"`
	Kind        string `json:"kind"`
	Value       string `json:"value,omitempty"`
	ValueHash   string `json:"valueHash"`
	ExpiryDays  uint32 `json:"expiryDays"`
}

type escrowIDParams struct {
	ID uint64 `json:"id"`
}

type escrowActorParams struct {
	ID     uint64 `json:"id"`
	Caller string `json:"caller"`
}

type escrowProofParams struct {
	ID     uint64 `json:"id"`
	Caller string `json:"caller"`
	Proof  string `json:"proof"`
}

type escrowArbiterParams struct {
	ID      uint64 `json:"id"`
	Caller  string `json:"caller"`
	Arbiter string `json:"arbiter"`
}

type escrowResolveParams struct {
	ID       uint64 `json:"id"`
	Caller   string `json:"caller"`
	Decision string `json:"decision"`
}

type escrowAddressParams struct {
	Address string `json:"address"`
}

type escrowAgreementParams struct {
	AgreementID uint64 `json:"agreementId"`
}

type escrowJSON struct {
	ID          uint64 `json:"id"`
	AgreementID uint64 `json:"agreementId"`
	Initiator   string `json:"initiator"`
	Participant string `json:"participant,omitempty"`
	Kind        string `json:"kind"`
	Amount      string `json:"amount"`
	ValueHash   string `json:"valueHash"`
	ProofHash   string `json:"proofHash,omitempty"`

	InitiatorSubmitted   bool `json:"initiatorSubmitted"`
	ParticipantSubmitted bool `json:"participantSubmitted"`
	InitiatorConfirmed   bool `json:"initiatorConfirmed"`
	ParticipantConfirmed bool `json:"participantConfirmed"`

	Disputed            bool   `json:"disputed"`
	ProposedArbiter     string `json:"proposedArbiter,omitempty"`
	InitiatorApproved   bool   `json:"initiatorApproved"`
	ParticipantApproved bool   `json:"participantApproved"`
	Arbiter             string `json:"arbiter,omitempty"`

	CreatedAt int64  `json:"createdAt"`
	ExpiresAt int64  `json:"expiresAt"`
	Status    string `json:"status"`
}

func encodeAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func encodeOptionalAddress(addr [20]byte) string {
	if addr == ([20]byte{}) {
		return ""
	}
	return encodeAddress(addr)
}

func encodeOptionalHash(hash [32]byte) string {
	if hash == ([32]byte{}) {
		return ""
	}
	return "0x" + hex.EncodeToString(hash[:])
}

func escrowToJSON(esc *escrow.Escrow) escrowJSON {
	return escrowJSON{
		ID:          esc.ID,
		AgreementID: esc.AgreementID,
		Initiator:   encodeAddress(esc.Initiator),
		Participant: encodeOptionalAddress(esc.Participant),
		Kind:        esc.Kind.String(),
		Amount:      esc.Amount.String(),
		ValueHash:   "0x" + hex.EncodeToString(esc.ValueHash[:]),
		ProofHash:   encodeOptionalHash(esc.ProofHash),

		InitiatorSubmitted:   esc.InitiatorSubmitted,
		ParticipantSubmitted: esc.ParticipantSubmitted,
		InitiatorConfirmed:   esc.InitiatorConfirmed,
		ParticipantConfirmed: esc.ParticipantConfirmed,

		Disputed:            esc.Disputed,
		ProposedArbiter:     encodeOptionalAddress(esc.ProposedArbiter),
		InitiatorApproved:   esc.InitiatorApproved,
		ParticipantApproved: esc.ParticipantApproved,
		Arbiter:             encodeOptionalAddress(esc.Arbiter),

		CreatedAt: esc.CreatedAt,
		ExpiresAt: esc.ExpiresAt,
		Status:    esc.Status.String(),
	}
}

func escrowsToJSON(escrows []*escrow.Escrow) []escrowJSON {
	out := make([]escrowJSON, 0, len(escrows))
	for _, esc := range escrows {
		out = append(out, escrowToJSON(esc))
	}
	return out
}

func parseAddressParam(value, field string) ([20]byte, *RPCError) {
	addr, err := types.ParseAddress(value)
	if err != nil {
		return [20]byte{}, invalidParams(field + ": " + err.Error())
	}
	return addr, nil
}

func parseHashParam(value, field string) ([32]byte, *RPCError) {
	hash, err := types.ParseHash(value)
	if err != nil {
		return [32]byte{}, invalidParams(field + ": " + err.Error())
	}
	return hash, nil
}

func (s *Server) handleEscrowCreate(req *RPCRequest) (interface{}, *RPCError) {
	var params escrowCreateParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam(params.Caller, "caller")
	if rpcErr != nil {
		return nil, rpcErr
	}
	kind, err := escrow.ParseKind(params.Kind)
	if err != nil {
		return nil, invalidParams(err.Error())
	}
	valueHash, rpcErr := parseHashParam(params.ValueHash, "valueHash")
	if rpcErr != nil {
		return nil, rpcErr
	}
	value := big.NewInt(0)
	if trimmed := strings.TrimSpace(params.Value); trimmed != "" {
		parsed, ok := new(big.Int).SetString(trimmed, 10)
		if !ok || parsed.Sign() < 0 {
			return nil, invalidParams("value must be a non-negative decimal string")
		}
		value = parsed
	}
	esc, err := s.services.Escrows.Create(caller, params.AgreementID, kind, value, valueHash, params.ExpiryDays)
	if err != nil {
		return nil, errorFor(err)
	}
	return escrowToJSON(esc), nil
}

// actorCall factors the shape shared by join, confirm, dispute, approve,
// cancel and expiry: an escrow id plus a caller address.
func (s *Server) actorCall(req *RPCRequest, op func(id uint64, caller [20]byte) error) (interface{}, *RPCError) {
	var params escrowActorParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam(params.Caller, "caller")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := op(params.ID, caller); err != nil {
		return nil, errorFor(err)
	}
	esc, err := s.services.Escrows.GetEscrow(params.ID)
	if err != nil {
		return nil, errorFor(err)
	}
	return escrowToJSON(esc), nil
}

func (s *Server) handleEscrowJoin(req *RPCRequest) (interface{}, *RPCError) {
	return s.actorCall(req, s.services.Escrows.Join)
}

func (s *Server) handleEscrowConfirm(req *RPCRequest) (interface{}, *RPCError) {
	return s.actorCall(req, s.services.Escrows.Confirm)
}

func (s *Server) handleEscrowDispute(req *RPCRequest) (interface{}, *RPCError) {
	return s.actorCall(req, s.services.Escrows.Dispute)
}

func (s *Server) handleEscrowApproveArbiter(req *RPCRequest) (interface{}, *RPCError) {
	return s.actorCall(req, s.services.Escrows.ApproveArbiter)
}

func (s *Server) handleEscrowCancel(req *RPCRequest) (interface{}, *RPCError) {
	return s.actorCall(req, s.services.Escrows.Cancel)
}

func (s *Server) handleEscrowHandleExpired(req *RPCRequest) (interface{}, *RPCError) {
	return s.actorCall(req, s.services.Escrows.HandleExpired)
}

func (s *Server) handleEscrowSubmitProof(req *RPCRequest) (interface{}, *RPCError) {
	var params escrowProofParams
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
	if err := s.services.Escrows.SubmitProof(params.ID, caller, proof); err != nil {
		return nil, errorFor(err)
	}
	esc, err := s.services.Escrows.GetEscrow(params.ID)
	if err != nil {
		return nil, errorFor(err)
	}
	return escrowToJSON(esc), nil
}

func (s *Server) handleEscrowProposeArbiter(req *RPCRequest) (interface{}, *RPCError) {
	var params escrowArbiterParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam(params.Caller, "caller")
	if rpcErr != nil {
		return nil, rpcErr
	}
	arbiter, rpcErr := parseAddressParam(params.Arbiter, "arbiter")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.services.Escrows.ProposeArbiter(params.ID, caller, arbiter); err != nil {
		return nil, errorFor(err)
	}
	esc, err := s.services.Escrows.GetEscrow(params.ID)
	if err != nil {
		return nil, errorFor(err)
	}
	return escrowToJSON(esc), nil
}

func (s *Server) handleEscrowResolve(req *RPCRequest) (interface{}, *RPCError) {
	var params escrowResolveParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam(params.Caller, "caller")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.services.Escrows.Resolve(params.ID, caller, params.Decision); err != nil {
		return nil, errorFor(err)
	}
	esc, err := s.services.Escrows.GetEscrow(params.ID)
	if err != nil {
		return nil, errorFor(err)
	}
	return escrowToJSON(esc), nil
}

func (s *Server) handleEscrowGet(req *RPCRequest) (interface{}, *RPCError) {
	var params escrowIDParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	esc, err := s.services.Escrows.GetEscrow(params.ID)
	if err != nil {
		return nil, errorFor(err)
	}
	return escrowToJSON(esc), nil
}

func (s *Server) handleEscrowsByUser(req *RPCRequest) (interface{}, *RPCError) {
	var params escrowAddressParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddressParam(params.Address, "address")
	if rpcErr != nil {
		return nil, rpcErr
	}
	escrows, err := s.services.Escrows.ListByUser(addr)
	if err != nil {
		return nil, errorFor(err)
	}
	return escrowsToJSON(escrows), nil
}

func (s *Server) handleEscrowsByAgreement(req *RPCRequest) (interface{}, *RPCError) {
	var params escrowAgreementParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	escrows, err := s.services.Escrows.ListByAgreement(params.AgreementID)
	if err != nil {
		return nil, errorFor(err)
	}
	return escrowsToJSON(escrows), nil
}

func (s *Server) handleEscrowIsExpired(req *RPCRequest) (interface{}, *RPCError) {
	var params escrowIDParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	expired, err := s.services.Escrows.IsExpired(params.ID)
	if err != nil {
		return nil, errorFor(err)
	}
	return map[string]bool{"expired": expired}, nil
}
