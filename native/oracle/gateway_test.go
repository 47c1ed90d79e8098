package oracle

import (
	"errors"
	"math/big"
	"testing"

	"pactnet/native/escrow"
)

type fakeState struct {
	whitelist     map[[20]byte]bool
	verifications map[uint64]*escrow.Verification
}

func newFakeState() *fakeState {
	return &fakeState{
		whitelist:     make(map[[20]byte]bool),
		verifications: make(map[uint64]*escrow.Verification),
	}
}

func (f *fakeState) OracleAuthorized(addr [20]byte) (bool, error) {
	return f.whitelist[addr], nil
}

func (f *fakeState) OracleSetAuthorized(addr [20]byte, allowed bool) error {
	f.whitelist[addr] = allowed
	return nil
}

func (f *fakeState) VerificationPut(record *escrow.Verification) error {
	f.verifications[record.EscrowID] = record.Clone()
	return nil
}

func (f *fakeState) VerificationGet(escrowID uint64) (*escrow.Verification, bool, error) {
	record, ok := f.verifications[escrowID]
	if !ok {
		return nil, false, nil
	}
	return record.Clone(), true, nil
}

type fakeEngine struct {
	escrows   map[uint64]*escrow.Escrow
	confirmed [][20]byte
}

func (f *fakeEngine) GetEscrow(id uint64) (*escrow.Escrow, error) {
	esc, ok := f.escrows[id]
	if !ok {
		return nil, escrow.ErrNotFound
	}
	return esc.Clone(), nil
}

func (f *fakeEngine) Confirm(id uint64, caller [20]byte) error {
	f.confirmed = append(f.confirmed, caller)
	return nil
}

var (
	authority = [20]byte{0xAD}
	attestor  = [20]byte{0x0A}
	initiator = [20]byte{0x01}
	joiner    = [20]byte{0x02}
)

func proofHash() [32]byte {
	var hash [32]byte
	hash[0] = 0xCD
	return hash
}

func activeEscrow() *escrow.Escrow {
	return &escrow.Escrow{
		ID:          1,
		Initiator:   initiator,
		Participant: joiner,
		Amount:      big.NewInt(0),
		Status:      escrow.StatusActive,
	}
}

func newTestGateway(t *testing.T, esc *escrow.Escrow) (*Gateway, *fakeState, *fakeEngine) {
	t.Helper()
	state := newFakeState()
	engine := &fakeEngine{escrows: map[uint64]*escrow.Escrow{}}
	if esc != nil {
		engine.escrows[esc.ID] = esc
	}
	gateway := NewGateway(state, engine, authority)
	gateway.SetNowFunc(func() int64 { return 1_700_000_000 })
	return gateway, state, engine
}

func TestAuthorizationRequiresAuthority(t *testing.T) {
	gateway, _, _ := newTestGateway(t, nil)

	if err := gateway.SetAuthorization(attestor, attestor, true); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("self authorization: %v", err)
	}
	if err := gateway.SetAuthorization(authority, attestor, true); err != nil {
		t.Fatalf("SetAuthorization: %v", err)
	}
	authorized, err := gateway.IsAuthorized(attestor)
	if err != nil || !authorized {
		t.Fatalf("IsAuthorized = %t, %v", authorized, err)
	}
	if err := gateway.SetAuthorization(authority, attestor, false); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	authorized, _ = gateway.IsAuthorized(attestor)
	if authorized {
		t.Fatalf("revocation not applied")
	}
}

func TestSubmitVerificationRequiresWhitelist(t *testing.T) {
	gateway, state, _ := newTestGateway(t, activeEscrow())

	if err := gateway.SubmitVerification(attestor, 1, true, proofHash()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("unlisted attestor: %v", err)
	}
	if len(state.verifications) != 0 {
		t.Fatalf("verification recorded for rejected call")
	}
}

func TestSubmitVerificationRequiresActiveEscrow(t *testing.T) {
	esc := activeEscrow()
	esc.Status = escrow.StatusPending
	gateway, state, _ := newTestGateway(t, esc)
	if err := state.OracleSetAuthorized(attestor, true); err != nil {
		t.Fatalf("whitelist: %v", err)
	}

	if err := gateway.SubmitVerification(attestor, 1, true, proofHash()); !errors.Is(err, ErrWrongState) {
		t.Fatalf("pending escrow: %v", err)
	}
	if err := gateway.SubmitVerification(attestor, 42, true, proofHash()); !errors.Is(err, escrow.ErrNotFound) {
		t.Fatalf("unknown escrow: %v", err)
	}
}

func TestNegativeVerificationIsRecordedWithoutConfirm(t *testing.T) {
	esc := activeEscrow()
	esc.InitiatorSubmitted = true
	gateway, state, engine := newTestGateway(t, esc)
	_ = state.OracleSetAuthorized(attestor, true)

	if err := gateway.SubmitVerification(attestor, 1, false, proofHash()); err != nil {
		t.Fatalf("SubmitVerification: %v", err)
	}
	record, ok, err := gateway.GetVerification(1)
	if err != nil || !ok {
		t.Fatalf("GetVerification: ok=%t err=%v", ok, err)
	}
	if record.Verified {
		t.Fatalf("negative result stored as verified")
	}
	if record.Timestamp != 1_700_000_000 {
		t.Fatalf("timestamp = %d", record.Timestamp)
	}
	if len(engine.confirmed) != 0 {
		t.Fatalf("negative verification confirmed a side")
	}
}

func TestVerifiedResultConfirmsInitiatorFirst(t *testing.T) {
	esc := activeEscrow()
	esc.InitiatorSubmitted = true
	esc.ParticipantSubmitted = true
	gateway, state, engine := newTestGateway(t, esc)
	_ = state.OracleSetAuthorized(attestor, true)

	if err := gateway.SubmitVerification(attestor, 1, true, proofHash()); err != nil {
		t.Fatalf("SubmitVerification: %v", err)
	}
	if len(engine.confirmed) != 1 || engine.confirmed[0] != initiator {
		t.Fatalf("confirmed = %v, want initiator only", engine.confirmed)
	}
}

func TestVerifiedResultFallsBackToParticipant(t *testing.T) {
	esc := activeEscrow()
	esc.InitiatorSubmitted = true
	esc.InitiatorConfirmed = true
	esc.ParticipantSubmitted = true
	gateway, state, engine := newTestGateway(t, esc)
	_ = state.OracleSetAuthorized(attestor, true)

	if err := gateway.SubmitVerification(attestor, 1, true, proofHash()); err != nil {
		t.Fatalf("SubmitVerification: %v", err)
	}
	if len(engine.confirmed) != 1 || engine.confirmed[0] != joiner {
		t.Fatalf("confirmed = %v, want participant", engine.confirmed)
	}
}

func TestVerifiedResultWithoutSubmissionsIsAdvisoryOnly(t *testing.T) {
	gateway, state, engine := newTestGateway(t, activeEscrow())
	_ = state.OracleSetAuthorized(attestor, true)

	if err := gateway.SubmitVerification(attestor, 1, true, proofHash()); err != nil {
		t.Fatalf("SubmitVerification: %v", err)
	}
	if len(engine.confirmed) != 0 {
		t.Fatalf("confirmation without submitted proof")
	}
	if _, ok, _ := gateway.GetVerification(1); !ok {
		t.Fatalf("verification not recorded")
	}
}
