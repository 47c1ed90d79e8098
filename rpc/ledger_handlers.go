package rpc

import (
	"encoding/hex"
	"math/big"
	"strings"

	"pactnet/core/events"
	"pactnet/native/agreement"
	"pactnet/native/report"
)

type addressParams struct {
	Address string `json:"address"`
}

type callerParams struct {
	Caller string `json:"caller"`
}

type transferParams struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type approveParams struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type allowanceParams struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
}

type transferFromParams struct {
	Spender string `json:"spender"`
	From    string `json:"from"`
	To      string `json:"to"`
	Amount  string `json:"amount"`
}

type agreementCreateParams struct {
	PartyA     string `json:"partyA"`
	PartyB     string `json:"partyB"`
	Commitment string `json:"commitment"`
}

type agreementIDParams struct {
	ID uint64 `json:"id"`
}

type agreementPartyParams struct {
	Party string `json:"party"`
}

type reportFileParams struct {
	AgreementID uint64 `json:"agreementId"`
	Reporter    string `json:"reporter"`
	Reported    string `json:"reported"`
	Reason      string `json:"reason"`
}

type reportIDParams struct {
	ID uint64 `json:"id"`
}

type eventsParams struct {
	Prefix string `json:"prefix,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type agreementJSON struct {
	ID         uint64 `json:"id"`
	PartyA     string `json:"partyA"`
	PartyB     string `json:"partyB"`
	Commitment string `json:"commitment"`
	CreatedAt  int64  `json:"createdAt"`
}

type reportJSON struct {
	ID          uint64 `json:"id"`
	AgreementID uint64 `json:"agreementId"`
	Reporter    string `json:"reporter"`
	Reported    string `json:"reported"`
	Reason      string `json:"reason"`
	CreatedAt   int64  `json:"createdAt"`
}

type balanceJSON struct {
	Address string `json:"address"`
	Credit  string `json:"credit"`
}

type supplyJSON struct {
	Supply string `json:"supply"`
	Burned string `json:"burned"`
}

func agreementToJSON(record *agreement.Agreement) agreementJSON {
	return agreementJSON{
		ID:         record.ID,
		PartyA:     encodeAddress(record.PartyA),
		PartyB:     encodeAddress(record.PartyB),
		Commitment: "0x" + hex.EncodeToString(record.CommitmentHash[:]),
		CreatedAt:  record.CreatedAt,
	}
}

func reportToJSON(record *report.Report) reportJSON {
	return reportJSON{
		ID:          record.ID,
		AgreementID: record.AgreementID,
		Reporter:    encodeAddress(record.Reporter),
		Reported:    encodeAddress(record.Reported),
		Reason:      "0x" + hex.EncodeToString(record.ReasonHash[:]),
		CreatedAt:   record.CreatedAt,
	}
}

func parseAmountParam(value string) (*big.Int, *RPCError) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok || amount.Sign() < 0 {
		return nil, invalidParams("amount must be a non-negative decimal string")
	}
	return amount, nil
}

func (s *Server) handleRegister(req *RPCRequest) (interface{}, *RPCError) {
	var params callerParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam(params.Caller, "caller")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.services.Registry.Register(caller); err != nil {
		return nil, errorFor(err)
	}
	balance, err := s.services.Ledger.BalanceOf(caller)
	if err != nil {
		return nil, errorFor(err)
	}
	return balanceJSON{Address: encodeAddress(caller), Credit: balance.String()}, nil
}

func (s *Server) handleIsRegistered(req *RPCRequest) (interface{}, *RPCError) {
	var params addressParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddressParam(params.Address, "address")
	if rpcErr != nil {
		return nil, rpcErr
	}
	registered, err := s.services.Registry.IsRegistered(addr)
	if err != nil {
		return nil, errorFor(err)
	}
	return map[string]bool{"registered": registered}, nil
}

func (s *Server) handleBalanceOf(req *RPCRequest) (interface{}, *RPCError) {
	var params addressParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddressParam(params.Address, "address")
	if rpcErr != nil {
		return nil, rpcErr
	}
	balance, err := s.services.Ledger.BalanceOf(addr)
	if err != nil {
		return nil, errorFor(err)
	}
	return balanceJSON{Address: encodeAddress(addr), Credit: balance.String()}, nil
}

func (s *Server) handleTotalSupply(req *RPCRequest) (interface{}, *RPCError) {
	supply, err := s.services.Ledger.TotalSupply()
	if err != nil {
		return nil, errorFor(err)
	}
	burned, err := s.services.Ledger.TotalBurned()
	if err != nil {
		return nil, errorFor(err)
	}
	return supplyJSON{Supply: supply.String(), Burned: burned.String()}, nil
}

func (s *Server) handleTransfer(req *RPCRequest) (interface{}, *RPCError) {
	var params transferParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	from, rpcErr := parseAddressParam(params.From, "from")
	if rpcErr != nil {
		return nil, rpcErr
	}
	to, rpcErr := parseAddressParam(params.To, "to")
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmountParam(params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.services.Ledger.Transfer(from, to, amount); err != nil {
		return nil, errorFor(err)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleApprove(req *RPCRequest) (interface{}, *RPCError) {
	var params approveParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := parseAddressParam(params.Owner, "owner")
	if rpcErr != nil {
		return nil, rpcErr
	}
	spender, rpcErr := parseAddressParam(params.Spender, "spender")
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmountParam(params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.services.Ledger.Approve(owner, spender, amount); err != nil {
		return nil, errorFor(err)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleAllowance(req *RPCRequest) (interface{}, *RPCError) {
	var params allowanceParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := parseAddressParam(params.Owner, "owner")
	if rpcErr != nil {
		return nil, rpcErr
	}
	spender, rpcErr := parseAddressParam(params.Spender, "spender")
	if rpcErr != nil {
		return nil, rpcErr
	}
	allowance, err := s.services.Ledger.Allowance(owner, spender)
	if err != nil {
		return nil, errorFor(err)
	}
	return map[string]string{"allowance": allowance.String()}, nil
}

func (s *Server) handleTransferFrom(req *RPCRequest) (interface{}, *RPCError) {
	var params transferFromParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	spender, rpcErr := parseAddressParam(params.Spender, "spender")
	if rpcErr != nil {
		return nil, rpcErr
	}
	from, rpcErr := parseAddressParam(params.From, "from")
	if rpcErr != nil {
		return nil, rpcErr
	}
	to, rpcErr := parseAddressParam(params.To, "to")
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmountParam(params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.services.Ledger.TransferFrom(spender, from, to, amount); err != nil {
		return nil, errorFor(err)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleAgreementCreate(req *RPCRequest) (interface{}, *RPCError) {
	var params agreementCreateParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	partyA, rpcErr := parseAddressParam(params.PartyA, "partyA")
	if rpcErr != nil {
		return nil, rpcErr
	}
	partyB, rpcErr := parseAddressParam(params.PartyB, "partyB")
	if rpcErr != nil {
		return nil, rpcErr
	}
	commitment, rpcErr := parseHashParam(params.Commitment, "commitment")
	if rpcErr != nil {
		return nil, rpcErr
	}
	record, err := s.services.Agreements.Create(partyA, partyB, commitment)
	if err != nil {
		return nil, errorFor(err)
	}
	return agreementToJSON(record), nil
}

func (s *Server) handleAgreementGet(req *RPCRequest) (interface{}, *RPCError) {
	var params agreementIDParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	record, err := s.services.Agreements.Get(params.ID)
	if err != nil {
		return nil, errorFor(err)
	}
	return agreementToJSON(record), nil
}

func (s *Server) handleAgreementsByParty(req *RPCRequest) (interface{}, *RPCError) {
	var params agreementPartyParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	party, rpcErr := parseAddressParam(params.Party, "party")
	if rpcErr != nil {
		return nil, rpcErr
	}
	records, err := s.services.Agreements.ListByParty(party)
	if err != nil {
		return nil, errorFor(err)
	}
	out := make([]agreementJSON, 0, len(records))
	for _, record := range records {
		out = append(out, agreementToJSON(record))
	}
	return out, nil
}

func (s *Server) handleReportFile(req *RPCRequest) (interface{}, *RPCError) {
	var params reportFileParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	reporter, rpcErr := parseAddressParam(params.Reporter, "reporter")
	if rpcErr != nil {
		return nil, rpcErr
	}
	reported, rpcErr := parseAddressParam(params.Reported, "reported")
	if rpcErr != nil {
		return nil, rpcErr
	}
	reason, rpcErr := parseHashParam(params.Reason, "reason")
	if rpcErr != nil {
		return nil, rpcErr
	}
	record, err := s.services.Reports.File(params.AgreementID, reporter, reported, reason)
	if err != nil {
		return nil, errorFor(err)
	}
	return reportToJSON(record), nil
}

func (s *Server) handleReportGet(req *RPCRequest) (interface{}, *RPCError) {
	var params reportIDParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	record, err := s.services.Reports.Get(params.ID)
	if err != nil {
		return nil, errorFor(err)
	}
	return reportToJSON(record), nil
}

func (s *Server) handleReportsByReporter(req *RPCRequest) (interface{}, *RPCError) {
	return s.reportList(req, s.services.Reports.ListByReporter)
}

func (s *Server) handleReportsByReported(req *RPCRequest) (interface{}, *RPCError) {
	return s.reportList(req, s.services.Reports.ListByReported)
}

func (s *Server) reportList(req *RPCRequest, list func([20]byte) ([]*report.Report, error)) (interface{}, *RPCError) {
	var params addressParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddressParam(params.Address, "address")
	if rpcErr != nil {
		return nil, rpcErr
	}
	records, err := list(addr)
	if err != nil {
		return nil, errorFor(err)
	}
	out := make([]reportJSON, 0, len(records))
	for _, record := range records {
		out = append(out, reportToJSON(record))
	}
	return out, nil
}

func (s *Server) handleEvents(req *RPCRequest) (interface{}, *RPCError) {
	params := eventsParams{Limit: 100}
	if len(req.Params) > 0 {
		if rpcErr := decodeParams(req, &params); rpcErr != nil {
			return nil, rpcErr
		}
	}
	if s.services.Journal == nil {
		return []events.Entry{}, nil
	}
	return s.services.Journal.Tail(params.Prefix, params.Limit), nil
}
