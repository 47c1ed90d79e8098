package oracle

import (
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"pactnet/core/events"
	"pactnet/core/types"
	"pactnet/native/escrow"
)

var (
	// ErrUnauthorized rejects callers outside the attestor whitelist, and
	// whitelist mutations from anyone but the configured authority.
	ErrUnauthorized = errors.New("oracle: caller not authorized")
	// ErrWrongState rejects verifications against escrows that are not Active.
	ErrWrongState = errors.New("oracle: escrow not active")

	errNilState  = errors.New("oracle: state not configured")
	errNilEngine = errors.New("oracle: settlement engine not configured")
)

const (
	EventTypeAuthorization = "oracle.authorization"
	EventTypeVerification  = "oracle.verification"
)

type gatewayState interface {
	OracleAuthorized(addr [20]byte) (bool, error)
	OracleSetAuthorized(addr [20]byte, allowed bool) error
	VerificationPut(*escrow.Verification) error
	VerificationGet(escrowID uint64) (*escrow.Verification, bool, error)
}

type settlementEngine interface {
	GetEscrow(id uint64) (*escrow.Escrow, error)
	Confirm(id uint64, caller [20]byte) error
}

// Gateway is the restricted-write channel for external attestors. Verified
// results advisorily auto-confirm at most one escrow side per call; they
// never undo a confirmation, never block manual confirmation or disputes,
// and remain subordinate to arbiter resolution.
type Gateway struct {
	state     gatewayState
	engine    settlementEngine
	authority [20]byte
	emitter   events.Emitter
	nowFn     func() int64
}

// NewGateway constructs a gateway whose whitelist only the authority address
// may mutate.
func NewGateway(state gatewayState, engine settlementEngine, authority [20]byte) *Gateway {
	return &Gateway{
		state:     state,
		engine:    engine,
		authority: authority,
		emitter:   events.NoopEmitter{},
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (g *Gateway) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		g.emitter = events.NoopEmitter{}
		return
	}
	g.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (g *Gateway) SetNowFunc(now func() int64) {
	if now == nil {
		g.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	g.nowFn = now
}

// SetAuthorization toggles whitelist membership for an attestor address.
func (g *Gateway) SetAuthorization(caller, attestor [20]byte, allowed bool) error {
	if g == nil || g.state == nil {
		return errNilState
	}
	if caller != g.authority {
		return ErrUnauthorized
	}
	if err := g.state.OracleSetAuthorized(attestor, allowed); err != nil {
		return err
	}
	g.emitter.Emit(events.Wrap(&types.Event{
		Type: EventTypeAuthorization,
		Attributes: map[string]string{
			"attestor": hex.EncodeToString(attestor[:]),
			"allowed":  strconv.FormatBool(allowed),
		},
	}))
	return nil
}

// IsAuthorized reports whitelist membership for addr.
func (g *Gateway) IsAuthorized(addr [20]byte) (bool, error) {
	if g == nil || g.state == nil {
		return false, errNilState
	}
	return g.state.OracleAuthorized(addr)
}

// SubmitVerification records an attestation for an Active escrow. The record
// is written whether verified is true or false; a true result additionally
// auto-confirms the first side (initiator checked first) that has submitted
// proof but not yet confirmed.
func (g *Gateway) SubmitVerification(caller [20]byte, escrowID uint64, verified bool, proof [32]byte) error {
	if g == nil || g.state == nil {
		return errNilState
	}
	if g.engine == nil {
		return errNilEngine
	}
	authorized, err := g.state.OracleAuthorized(caller)
	if err != nil {
		return err
	}
	if !authorized {
		return ErrUnauthorized
	}
	esc, err := g.engine.GetEscrow(escrowID)
	if err != nil {
		return err
	}
	if esc.Status != escrow.StatusActive {
		return ErrWrongState
	}
	record := &escrow.Verification{
		EscrowID:  escrowID,
		Verified:  verified,
		ProofHash: proof,
		Timestamp: g.nowFn(),
	}
	if err := g.state.VerificationPut(record); err != nil {
		return err
	}
	g.emitter.Emit(events.Wrap(&types.Event{
		Type: EventTypeVerification,
		Attributes: map[string]string{
			"escrowId": strconv.FormatUint(escrowID, 10),
			"attestor": hex.EncodeToString(caller[:]),
			"verified": strconv.FormatBool(verified),
			"proof":    hex.EncodeToString(proof[:]),
		},
	}))
	if !verified {
		return nil
	}
	switch {
	case esc.InitiatorSubmitted && !esc.InitiatorConfirmed:
		return g.engine.Confirm(escrowID, esc.Initiator)
	case esc.ParticipantSubmitted && !esc.ParticipantConfirmed:
		return g.engine.Confirm(escrowID, esc.Participant)
	}
	return nil
}

// GetVerification resolves the latest attestation recorded for an escrow.
func (g *Gateway) GetVerification(escrowID uint64) (*escrow.Verification, bool, error) {
	if g == nil || g.state == nil {
		return nil, false, errNilState
	}
	record, ok, err := g.state.VerificationGet(escrowID)
	if err != nil || !ok {
		return nil, false, err
	}
	return record.Clone(), true, nil
}
