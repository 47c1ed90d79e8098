package escrow

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"pactnet/core/events"
	"pactnet/core/types"
)

// Sentinel failures for every rejected transition. A rejected call leaves
// all state exactly as it was.
var (
	ErrNotFound          = errors.New("escrow engine: escrow not found")
	ErrInvalidReference  = errors.New("escrow engine: unknown agreement")
	ErrNotAParty         = errors.New("escrow engine: caller is not a party")
	ErrSelfJoin          = errors.New("escrow engine: initiator cannot join")
	ErrAlreadyJoined     = errors.New("escrow engine: participant already set")
	ErrWrongState        = errors.New("escrow engine: wrong state for transition")
	ErrInvalidStatus     = errors.New("escrow engine: status does not admit expiry")
	ErrDisputed          = errors.New("escrow engine: escrow is disputed")
	ErrAlreadyDisputed   = errors.New("escrow engine: dispute already raised")
	ErrMissingProof      = errors.New("escrow engine: proof hash required")
	ErrAlreadySubmitted  = errors.New("escrow engine: proof already submitted")
	ErrAlreadyConfirmed  = errors.New("escrow engine: already confirmed")
	ErrInvalidExpiry     = errors.New("escrow engine: expiry days out of range")
	ErrMissingCommitment = errors.New("escrow engine: value commitment required")
	ErrValueRequired     = errors.New("escrow engine: locked value required for kind")
	ErrInvalidArbiter    = errors.New("escrow engine: invalid arbiter")
	ErrArbiterActive     = errors.New("escrow engine: arbiter already active")
	ErrNoProposal        = errors.New("escrow engine: no arbiter proposed")
	ErrAlreadyApproved   = errors.New("escrow engine: arbiter already approved by side")
	ErrUnauthorized      = errors.New("escrow engine: caller lacks required capability")
	ErrNotInitiator      = errors.New("escrow engine: only the initiator may cancel")
	ErrNotExpired        = errors.New("escrow engine: expiry time not reached")
	ErrInvalidDecision   = errors.New("escrow engine: invalid resolution decision")
	ErrInsufficientFunds = errors.New("escrow engine: insufficient native balance")

	errNilState = errors.New("escrow engine: state not configured")
)

const (
	// MinExpiryDays and MaxExpiryDays bound the caller-chosen escrow lifetime.
	MinExpiryDays = 1
	MaxExpiryDays = 365

	secondsPerDay = 24 * 60 * 60
)

// engineState abstracts the subset of state manager functionality required
// by the escrow engine.
type engineState interface {
	EscrowPut(*Escrow) error
	EscrowGet(id uint64) (*Escrow, bool, error)
	NextEscrowID() (uint64, error)
	EscrowIndexByUser(addr [20]byte, id uint64) error
	EscrowIndexByAgreement(agreementID, id uint64) error
	EscrowsByUser(addr [20]byte) ([]uint64, error)
	EscrowsByAgreement(agreementID uint64) ([]uint64, error)
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

type agreementSource interface {
	Parties(id uint64) ([20]byte, [20]byte, bool, error)
}

// Params carries the value-routing configuration owned by the engine. The
// vault account holds every locked amount; fee cuts route to the collector
// and, on arbitration, to the resolving arbiter.
type Params struct {
	Vault          [20]byte
	FeeCollector   [20]byte
	PlatformFeeBps uint32
	ArbiterFeeBps  uint32
}

func (p Params) validate() error {
	if p.Vault == ([20]byte{}) {
		return fmt.Errorf("escrow engine: vault address required")
	}
	if p.PlatformFeeBps > 10_000 || p.ArbiterFeeBps > 10_000 {
		return fmt.Errorf("escrow engine: fee bps out of range")
	}
	return nil
}

// Engine is the escrow settlement state machine. All transitions are
// synchronous and total: they validate, mutate escrow state, and only then
// move native value, so partial effects never survive a failure.
type Engine struct {
	state      engineState
	agreements agreementSource
	params     Params
	emitter    events.Emitter
	nowFn      func() int64
}

// NewEngine constructs an engine bound to state, agreement lookups and the
// supplied value-routing parameters.
func NewEngine(state engineState, agreements agreementSource, params Params) (*Engine, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &Engine{
		state:      state,
		agreements: agreements,
		params:     params,
		emitter:    events.NoopEmitter{},
		nowFn:      func() int64 { return time.Now().Unix() },
	}, nil
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily
// intended for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetFeeCollector replaces the platform fee recipient. Callers gate this
// behind the owner capability.
func (e *Engine) SetFeeCollector(addr [20]byte) {
	e.params.FeeCollector = addr
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(escrowEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) loadEscrow(id uint64) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	esc, ok, err := e.state.EscrowGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return esc, nil
}

func (e *Engine) transferNative(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("escrow engine: negative transfer amount")
	}
	fromAccount, err := e.state.GetAccount(from)
	if err != nil {
		return err
	}
	if fromAccount.BalanceNative.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	toAccount, err := e.state.GetAccount(to)
	if err != nil {
		return err
	}
	fromAccount.BalanceNative = new(big.Int).Sub(fromAccount.BalanceNative, amount)
	toAccount.BalanceNative = new(big.Int).Add(toAccount.BalanceNative, amount)
	if err := e.state.PutAccount(from, fromAccount); err != nil {
		return err
	}
	return e.state.PutAccount(to, toAccount)
}

// ensureVaultCovers verifies the vault can fund every leg of an upcoming
// disbursement before the escrow record is mutated.
func (e *Engine) ensureVaultCovers(amount *big.Int) error {
	vault, err := e.state.GetAccount(e.params.Vault)
	if err != nil {
		return err
	}
	if vault.BalanceNative.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	return nil
}

func bpsCut(amount *big.Int, bps uint32) *big.Int {
	cut := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(bps)))
	return cut.Div(cut, big.NewInt(10_000))
}

// Create opens a new Pending escrow against an existing agreement. Crypto
// and Hybrid deliverables must attach positive native value, which moves
// into the vault immediately; other kinds ignore any attached value.
func (e *Engine) Create(caller [20]byte, agreementID uint64, kind Kind, value *big.Int, valueHash [32]byte, expiryDays uint32) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("escrow engine: invalid deliverable kind %d", kind)
	}
	partyA, partyB, ok, err := e.agreements.Parties(agreementID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidReference
	}
	if caller != partyA && caller != partyB {
		return nil, ErrNotAParty
	}
	if expiryDays < MinExpiryDays || expiryDays > MaxExpiryDays {
		return nil, ErrInvalidExpiry
	}
	if valueHash == ([32]byte{}) {
		return nil, ErrMissingCommitment
	}
	amount := big.NewInt(0)
	if kind.RequiresValue() {
		if value == nil || value.Sign() <= 0 {
			return nil, ErrValueRequired
		}
		amount = new(big.Int).Set(value)
	}
	id, err := e.state.NextEscrowID()
	if err != nil {
		return nil, err
	}
	now := e.now()
	esc := &Escrow{
		ID:          id,
		AgreementID: agreementID,
		Initiator:   caller,
		Kind:        kind,
		Amount:      amount,
		ValueHash:   valueHash,
		CreatedAt:   now,
		ExpiresAt:   now + int64(expiryDays)*secondsPerDay,
		Status:      StatusPending,
	}
	if amount.Sign() > 0 {
		if err := e.transferNative(caller, e.params.Vault, amount); err != nil {
			return nil, err
		}
	}
	if err := e.state.EscrowPut(esc); err != nil {
		return nil, err
	}
	if err := e.state.EscrowIndexByUser(caller, id); err != nil {
		return nil, err
	}
	if err := e.state.EscrowIndexByAgreement(agreementID, id); err != nil {
		return nil, err
	}
	e.emit(newEscrowEvent(EventTypeCreated, esc, map[string]string{
		"actor": hex.EncodeToString(caller[:]),
	}))
	return esc.Clone(), nil
}

// Join lets the agreement's other party enter a Pending escrow, activating it.
func (e *Engine) Join(id uint64, caller [20]byte) error {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Status != StatusPending {
		return ErrWrongState
	}
	if caller == esc.Initiator {
		return ErrSelfJoin
	}
	if esc.HasParticipant() {
		return ErrAlreadyJoined
	}
	partyA, partyB, ok, err := e.agreements.Parties(esc.AgreementID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidReference
	}
	counterparty := partyA
	if esc.Initiator == partyA {
		counterparty = partyB
	}
	if caller != counterparty {
		return ErrNotAParty
	}
	esc.Participant = caller
	esc.Status = StatusActive
	if err := e.state.EscrowPut(esc); err != nil {
		return err
	}
	if err := e.state.EscrowIndexByUser(caller, id); err != nil {
		return err
	}
	e.emit(newEscrowEvent(EventTypeJoined, esc, map[string]string{
		"actor": hex.EncodeToString(caller[:]),
	}))
	return nil
}

// SubmitProof records a delivery proof for the caller's side. The shared
// proof hash field always reflects the latest submission from either side.
func (e *Engine) SubmitProof(id uint64, caller [20]byte, proof [32]byte) error {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Disputed {
		return ErrDisputed
	}
	if esc.Status != StatusActive {
		return ErrWrongState
	}
	if !esc.IsParty(caller) {
		return ErrNotAParty
	}
	if proof == ([32]byte{}) {
		return ErrMissingProof
	}
	switch caller {
	case esc.Initiator:
		if esc.InitiatorSubmitted {
			return ErrAlreadySubmitted
		}
		esc.InitiatorSubmitted = true
	default:
		if esc.ParticipantSubmitted {
			return ErrAlreadySubmitted
		}
		esc.ParticipantSubmitted = true
	}
	esc.ProofHash = proof
	if err := e.state.EscrowPut(esc); err != nil {
		return err
	}
	e.emit(newEscrowEvent(EventTypeProofSubmitted, esc, map[string]string{
		"actor": hex.EncodeToString(caller[:]),
		"proof": hex.EncodeToString(proof[:]),
	}))
	return nil
}

// Confirm records the caller's completion confirmation. When both sides have
// confirmed the escrow releases atomically in the same transition.
func (e *Engine) Confirm(id uint64, caller [20]byte) error {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Disputed {
		return ErrDisputed
	}
	if esc.Status != StatusActive {
		return ErrWrongState
	}
	if !esc.IsParty(caller) {
		return ErrNotAParty
	}
	switch caller {
	case esc.Initiator:
		if esc.InitiatorConfirmed {
			return ErrAlreadyConfirmed
		}
		esc.InitiatorConfirmed = true
	default:
		if esc.ParticipantConfirmed {
			return ErrAlreadyConfirmed
		}
		esc.ParticipantConfirmed = true
	}
	if esc.InitiatorConfirmed && esc.ParticipantConfirmed {
		e.emit(newEscrowEvent(EventTypeConfirmed, esc, map[string]string{
			"actor": hex.EncodeToString(caller[:]),
		}))
		return e.release(esc, caller)
	}
	if err := e.state.EscrowPut(esc); err != nil {
		return err
	}
	e.emit(newEscrowEvent(EventTypeConfirmed, esc, map[string]string{
		"actor": hex.EncodeToString(caller[:]),
	}))
	return nil
}

// release settles a dually-confirmed escrow: the platform fee routes to the
// collector and the remainder to the participant. Internal state is mutated
// and persisted before any value leaves the vault.
func (e *Engine) release(esc *Escrow, actor [20]byte) error {
	if !esc.InitiatorConfirmed || !esc.ParticipantConfirmed {
		return fmt.Errorf("escrow engine: release without dual confirmation")
	}
	amount := new(big.Int).Set(esc.Amount)
	fee := big.NewInt(0)
	payout := big.NewInt(0)
	if amount.Sign() > 0 {
		if err := e.ensureVaultCovers(amount); err != nil {
			return err
		}
		fee = bpsCut(amount, e.params.PlatformFeeBps)
		payout = new(big.Int).Sub(amount, fee)
	}
	esc.Status = StatusCompleted
	esc.Amount = big.NewInt(0)
	if err := e.state.EscrowPut(esc); err != nil {
		return err
	}
	if payout.Sign() > 0 {
		if err := e.transferNative(e.params.Vault, esc.Participant, payout); err != nil {
			return err
		}
	}
	if fee.Sign() > 0 {
		if err := e.transferNative(e.params.Vault, e.params.FeeCollector, fee); err != nil {
			return err
		}
	}
	e.emit(newEscrowEvent(EventTypeReleased, esc, map[string]string{
		"actor":  hex.EncodeToString(actor[:]),
		"payout": payout.String(),
		"fee":    fee.String(),
	}))
	return nil
}

// Dispute flags an Active escrow as disputed, freezing proofs and
// confirmations until an arbiter resolves it.
func (e *Engine) Dispute(id uint64, caller [20]byte) error {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Disputed {
		return ErrAlreadyDisputed
	}
	if esc.Status != StatusActive {
		return ErrWrongState
	}
	if !esc.IsParty(caller) {
		return ErrNotAParty
	}
	esc.Disputed = true
	esc.Status = StatusDisputed
	if err := e.state.EscrowPut(esc); err != nil {
		return err
	}
	e.emit(newEscrowEvent(EventTypeDisputed, esc, map[string]string{
		"actor": hex.EncodeToString(caller[:]),
	}))
	return nil
}

// ProposeArbiter nominates a neutral arbiter for a disputed escrow. The
// proposer's approval is implied; proposing a different address resets any
// prior approvals from both sides.
func (e *Engine) ProposeArbiter(id uint64, caller, arbiter [20]byte) error {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if !esc.Disputed || esc.Status != StatusDisputed {
		return ErrWrongState
	}
	if esc.Arbiter != ([20]byte{}) {
		return ErrArbiterActive
	}
	if !esc.IsParty(caller) {
		return ErrNotAParty
	}
	if arbiter == ([20]byte{}) || arbiter == esc.Initiator || arbiter == esc.Participant {
		return ErrInvalidArbiter
	}
	if arbiter != esc.ProposedArbiter {
		esc.InitiatorApproved = false
		esc.ParticipantApproved = false
	}
	esc.ProposedArbiter = arbiter
	if caller == esc.Initiator {
		esc.InitiatorApproved = true
	} else {
		esc.ParticipantApproved = true
	}
	if esc.InitiatorApproved && esc.ParticipantApproved {
		esc.Arbiter = arbiter
	}
	if err := e.state.EscrowPut(esc); err != nil {
		return err
	}
	e.emit(newEscrowEvent(EventTypeArbiterProposed, esc, map[string]string{
		"actor":     hex.EncodeToString(caller[:]),
		"arbiter":   hex.EncodeToString(arbiter[:]),
		"activated": fmt.Sprintf("%t", esc.Arbiter != ([20]byte{})),
	}))
	return nil
}

// ApproveArbiter records the caller's approval of the pending proposal,
// activating the arbiter once both sides agree.
func (e *Engine) ApproveArbiter(id uint64, caller [20]byte) error {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if !esc.Disputed || esc.Status != StatusDisputed {
		return ErrWrongState
	}
	if esc.Arbiter != ([20]byte{}) {
		return ErrArbiterActive
	}
	if esc.ProposedArbiter == ([20]byte{}) {
		return ErrNoProposal
	}
	if !esc.IsParty(caller) {
		return ErrNotAParty
	}
	if caller == esc.Initiator {
		if esc.InitiatorApproved {
			return ErrAlreadyApproved
		}
		esc.InitiatorApproved = true
	} else {
		if esc.ParticipantApproved {
			return ErrAlreadyApproved
		}
		esc.ParticipantApproved = true
	}
	if esc.InitiatorApproved && esc.ParticipantApproved {
		esc.Arbiter = esc.ProposedArbiter
	}
	if err := e.state.EscrowPut(esc); err != nil {
		return err
	}
	e.emit(newEscrowEvent(EventTypeArbiterApproved, esc, map[string]string{
		"actor":     hex.EncodeToString(caller[:]),
		"activated": fmt.Sprintf("%t", esc.Arbiter != ([20]byte{})),
	}))
	return nil
}

// Resolve settles a disputed escrow per the active arbiter's decision:
// "release" pays the participant, "refund" returns value to the initiator,
// "split" halves the remainder with any odd unit going to the initiator.
// The arbiter fee is deducted first in every monetary outcome.
func (e *Engine) Resolve(id uint64, caller [20]byte, decision string) error {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Status != StatusDisputed {
		return ErrWrongState
	}
	if esc.Arbiter == ([20]byte{}) || caller != esc.Arbiter {
		return ErrUnauthorized
	}
	normalized := strings.ToLower(strings.TrimSpace(decision))
	switch normalized {
	case "release", "refund", "split":
	default:
		return ErrInvalidDecision
	}
	amount := new(big.Int).Set(esc.Amount)
	arbiterFee := big.NewInt(0)
	toInitiator := big.NewInt(0)
	toParticipant := big.NewInt(0)
	if amount.Sign() > 0 {
		if err := e.ensureVaultCovers(amount); err != nil {
			return err
		}
		arbiterFee = bpsCut(amount, e.params.ArbiterFeeBps)
		remainder := new(big.Int).Sub(amount, arbiterFee)
		switch normalized {
		case "release":
			toParticipant = remainder
		case "refund":
			toInitiator = remainder
		case "split":
			half := new(big.Int).Rsh(remainder, 1)
			toParticipant = half
			toInitiator = new(big.Int).Sub(remainder, half)
		}
	}
	esc.Status = StatusCompleted
	esc.Amount = big.NewInt(0)
	if err := e.state.EscrowPut(esc); err != nil {
		return err
	}
	if arbiterFee.Sign() > 0 {
		if err := e.transferNative(e.params.Vault, esc.Arbiter, arbiterFee); err != nil {
			return err
		}
	}
	if toParticipant.Sign() > 0 {
		if err := e.transferNative(e.params.Vault, esc.Participant, toParticipant); err != nil {
			return err
		}
	}
	if toInitiator.Sign() > 0 {
		if err := e.transferNative(e.params.Vault, esc.Initiator, toInitiator); err != nil {
			return err
		}
	}
	e.emit(newEscrowEvent(EventTypeResolved, esc, map[string]string{
		"actor":         hex.EncodeToString(caller[:]),
		"outcome":       normalized,
		"arbiterFee":    arbiterFee.String(),
		"toInitiator":   toInitiator.String(),
		"toParticipant": toParticipant.String(),
	}))
	return nil
}

// Cancel aborts a Pending escrow, returning any locked value to the
// initiator in full.
func (e *Engine) Cancel(id uint64, caller [20]byte) error {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if caller != esc.Initiator {
		return ErrNotInitiator
	}
	if esc.Status != StatusPending {
		return ErrWrongState
	}
	return e.refund(esc, StatusCancelled, EventTypeCancelled, caller)
}

// HandleExpired moves a Pending or Active escrow past its expiry time into
// the Expired state, refunding any locked value to the initiator. Any caller
// may trigger it once the deadline has passed.
func (e *Engine) HandleExpired(id uint64, caller [20]byte) error {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if e.now() <= esc.ExpiresAt {
		return ErrNotExpired
	}
	if esc.Status != StatusPending && esc.Status != StatusActive {
		return ErrInvalidStatus
	}
	return e.refund(esc, StatusExpired, EventTypeExpired, caller)
}

// refund zeroes the locked amount before the outbound transfer so a
// re-entrant call into the same escrow cannot observe a disbursable balance.
func (e *Engine) refund(esc *Escrow, status Status, eventType string, actor [20]byte) error {
	amount := new(big.Int).Set(esc.Amount)
	if amount.Sign() > 0 {
		if err := e.ensureVaultCovers(amount); err != nil {
			return err
		}
	}
	esc.Status = status
	esc.Amount = big.NewInt(0)
	if err := e.state.EscrowPut(esc); err != nil {
		return err
	}
	if amount.Sign() > 0 {
		if err := e.transferNative(e.params.Vault, esc.Initiator, amount); err != nil {
			return err
		}
	}
	e.emit(newEscrowEvent(eventType, esc, map[string]string{
		"actor":    hex.EncodeToString(actor[:]),
		"refunded": amount.String(),
	}))
	return nil
}

// GetEscrow resolves an escrow by id.
func (e *Engine) GetEscrow(id uint64) (*Escrow, error) {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return nil, err
	}
	return esc.Clone(), nil
}

// ListByUser returns every escrow the address participates in, oldest first.
func (e *Engine) ListByUser(addr [20]byte) ([]*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ids, err := e.state.EscrowsByUser(addr)
	if err != nil {
		return nil, err
	}
	return e.resolve(ids)
}

// ListByAgreement returns every escrow opened against the agreement.
func (e *Engine) ListByAgreement(agreementID uint64) ([]*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ids, err := e.state.EscrowsByAgreement(agreementID)
	if err != nil {
		return nil, err
	}
	return e.resolve(ids)
}

func (e *Engine) resolve(ids []uint64) ([]*Escrow, error) {
	records := make([]*Escrow, 0, len(ids))
	for _, id := range ids {
		esc, ok, err := e.state.EscrowGet(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		records = append(records, esc.Clone())
	}
	return records, nil
}

// IsExpired reports whether the escrow's expiry time has passed.
func (e *Engine) IsExpired(id uint64) (bool, error) {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return false, err
	}
	return e.now() > esc.ExpiresAt, nil
}
