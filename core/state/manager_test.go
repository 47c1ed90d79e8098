package state

import (
	"math/big"
	"testing"

	"pactnet/native/agreement"
	"pactnet/native/escrow"
	"pactnet/native/report"
	"pactnet/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(storage.NewMemDB())
}

func TestAccountRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	addr := [20]byte{0x01}

	fresh, err := manager.GetAccount(addr)
	if err != nil {
		t.Fatalf("GetAccount untouched: %v", err)
	}
	if fresh.BalanceNative.Sign() != 0 || fresh.BalanceCredit.Sign() != 0 || fresh.Registered {
		t.Fatalf("untouched account not zeroed: %+v", fresh)
	}

	fresh.Nonce = 3
	fresh.BalanceNative = big.NewInt(42)
	fresh.BalanceCredit = big.NewInt(7)
	fresh.Registered = true
	if err := manager.PutAccount(addr, fresh); err != nil {
		t.Fatalf("PutAccount: %v", err)
	}
	loaded, err := manager.GetAccount(addr)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if loaded.Nonce != 3 || loaded.BalanceNative.Cmp(big.NewInt(42)) != 0 ||
		loaded.BalanceCredit.Cmp(big.NewInt(7)) != 0 || !loaded.Registered {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
}

func TestNextSequenceIsMonotonicPerName(t *testing.T) {
	manager := newTestManager(t)
	for want := uint64(1); want <= 3; want++ {
		got, err := manager.NextSequence("escrow")
		if err != nil {
			t.Fatalf("NextSequence: %v", err)
		}
		if got != want {
			t.Fatalf("sequence = %d, want %d", got, want)
		}
	}
	other, err := manager.NextSequence("agreement")
	if err != nil {
		t.Fatalf("NextSequence other: %v", err)
	}
	if other != 1 {
		t.Fatalf("independent counter = %d, want 1", other)
	}
}

func TestEscrowRoundTripAndIndexes(t *testing.T) {
	manager := newTestManager(t)
	initiator := [20]byte{0x01}
	participant := [20]byte{0x02}

	id, err := manager.NextEscrowID()
	if err != nil {
		t.Fatalf("NextEscrowID: %v", err)
	}
	record := &escrow.Escrow{
		ID:                 id,
		AgreementID:        9,
		Initiator:          initiator,
		Participant:        participant,
		Kind:               escrow.KindHybrid,
		Amount:             big.NewInt(12345),
		ValueHash:          [32]byte{0xAB},
		ProofHash:          [32]byte{0xCD},
		InitiatorSubmitted: true,
		Disputed:           true,
		CreatedAt:          1_700_000_000,
		ExpiresAt:          1_700_086_400,
		Status:             escrow.StatusDisputed,
	}
	if err := manager.EscrowPut(record); err != nil {
		t.Fatalf("EscrowPut: %v", err)
	}

	loaded, ok, err := manager.EscrowGet(id)
	if err != nil || !ok {
		t.Fatalf("EscrowGet: ok=%t err=%v", ok, err)
	}
	if loaded.Amount.Cmp(record.Amount) != 0 || loaded.Status != record.Status ||
		loaded.Kind != record.Kind || loaded.ExpiresAt != record.ExpiresAt ||
		!loaded.InitiatorSubmitted || !loaded.Disputed {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
	if _, ok, _ := manager.EscrowGet(999); ok {
		t.Fatalf("phantom escrow")
	}

	for i := 0; i < 2; i++ {
		if err := manager.EscrowIndexByUser(initiator, id); err != nil {
			t.Fatalf("EscrowIndexByUser: %v", err)
		}
	}
	ids, err := manager.EscrowsByUser(initiator)
	if err != nil {
		t.Fatalf("EscrowsByUser: %v", err)
	}
	if len(ids) != 1 || ids[0] != id {
		t.Fatalf("index not deduplicated: %v", ids)
	}

	if err := manager.EscrowIndexByAgreement(9, id); err != nil {
		t.Fatalf("EscrowIndexByAgreement: %v", err)
	}
	byAgreement, err := manager.EscrowsByAgreement(9)
	if err != nil {
		t.Fatalf("EscrowsByAgreement: %v", err)
	}
	if len(byAgreement) != 1 || byAgreement[0] != id {
		t.Fatalf("agreement index = %v", byAgreement)
	}
}

func TestAgreementRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	partyA := [20]byte{0x01}
	partyB := [20]byte{0x02}

	id, err := manager.NextAgreementID()
	if err != nil {
		t.Fatalf("NextAgreementID: %v", err)
	}
	record := &agreement.Agreement{
		ID:             id,
		PartyA:         partyA,
		PartyB:         partyB,
		CommitmentHash: [32]byte{0xEE},
		CreatedAt:      1_700_000_000,
	}
	if err := manager.AgreementPut(record); err != nil {
		t.Fatalf("AgreementPut: %v", err)
	}
	loaded, ok, err := manager.AgreementGet(id)
	if err != nil || !ok {
		t.Fatalf("AgreementGet: ok=%t err=%v", ok, err)
	}
	if loaded.PartyA != partyA || loaded.PartyB != partyB ||
		loaded.CommitmentHash != record.CommitmentHash || loaded.CreatedAt != record.CreatedAt {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}

	if err := manager.AgreementIndexByParty(partyA, id); err != nil {
		t.Fatalf("AgreementIndexByParty: %v", err)
	}
	ids, err := manager.AgreementsByParty(partyA)
	if err != nil {
		t.Fatalf("AgreementsByParty: %v", err)
	}
	if len(ids) != 1 || ids[0] != id {
		t.Fatalf("party index = %v", ids)
	}
}

func TestReportRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	reporter := [20]byte{0x01}
	reported := [20]byte{0x02}

	id, err := manager.NextReportID()
	if err != nil {
		t.Fatalf("NextReportID: %v", err)
	}
	record := &report.Report{
		ID:          id,
		AgreementID: 4,
		Reporter:    reporter,
		Reported:    reported,
		ReasonHash:  [32]byte{0x77},
		CreatedAt:   1_700_000_000,
	}
	if err := manager.ReportPut(record); err != nil {
		t.Fatalf("ReportPut: %v", err)
	}
	loaded, ok, err := manager.ReportGet(id)
	if err != nil || !ok {
		t.Fatalf("ReportGet: ok=%t err=%v", ok, err)
	}
	if loaded.Reporter != reporter || loaded.Reported != reported || loaded.AgreementID != 4 {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}

	if err := manager.ReportIndexByReporter(reporter, id); err != nil {
		t.Fatalf("ReportIndexByReporter: %v", err)
	}
	if err := manager.ReportIndexByReported(reported, id); err != nil {
		t.Fatalf("ReportIndexByReported: %v", err)
	}
	byReporter, _ := manager.ReportsByReporter(reporter)
	byReported, _ := manager.ReportsByReported(reported)
	if len(byReporter) != 1 || len(byReported) != 1 {
		t.Fatalf("indexes = %v / %v", byReporter, byReported)
	}
}

func TestOracleState(t *testing.T) {
	manager := newTestManager(t)
	attestor := [20]byte{0x0A}

	allowed, err := manager.OracleAuthorized(attestor)
	if err != nil || allowed {
		t.Fatalf("default whitelist = %t, %v", allowed, err)
	}
	if err := manager.OracleSetAuthorized(attestor, true); err != nil {
		t.Fatalf("OracleSetAuthorized: %v", err)
	}
	allowed, err = manager.OracleAuthorized(attestor)
	if err != nil || !allowed {
		t.Fatalf("whitelist after grant = %t, %v", allowed, err)
	}
	if err := manager.OracleSetAuthorized(attestor, false); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	allowed, _ = manager.OracleAuthorized(attestor)
	if allowed {
		t.Fatalf("revocation not persisted")
	}

	record := &escrow.Verification{
		EscrowID:  6,
		Verified:  true,
		ProofHash: [32]byte{0xCC},
		Timestamp: 1_700_000_000,
	}
	if err := manager.VerificationPut(record); err != nil {
		t.Fatalf("VerificationPut: %v", err)
	}
	loaded, ok, err := manager.VerificationGet(6)
	if err != nil || !ok {
		t.Fatalf("VerificationGet: ok=%t err=%v", ok, err)
	}
	if !loaded.Verified || loaded.ProofHash != record.ProofHash || loaded.Timestamp != record.Timestamp {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
	if _, ok, _ := manager.VerificationGet(99); ok {
		t.Fatalf("phantom verification")
	}
}
