package state

import (
	"fmt"

	"pactnet/native/escrow"
)

var (
	oracleWhitelistPrefix    = []byte("oracle/whitelist/")
	oracleVerificationPrefix = []byte("oracle/verification/")
)

func oracleWhitelistKey(addr [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", oracleWhitelistPrefix, addr))
}

func oracleVerificationKey(escrowID uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", oracleVerificationPrefix, escrowID))
}

type storedVerification struct {
	EscrowID  uint64
	Verified  bool
	ProofHash [32]byte
	Timestamp uint64
}

// OracleAuthorized reports whitelist membership for addr.
func (m *Manager) OracleAuthorized(addr [20]byte) (bool, error) {
	var allowed bool
	ok, err := m.KVGet(oracleWhitelistKey(addr), &allowed)
	if err != nil || !ok {
		return false, err
	}
	return allowed, nil
}

// OracleSetAuthorized toggles whitelist membership for addr.
func (m *Manager) OracleSetAuthorized(addr [20]byte, allowed bool) error {
	return m.KVPut(oracleWhitelistKey(addr), allowed)
}

// VerificationPut persists the latest attestation for an escrow,
// overwriting any earlier record.
func (m *Manager) VerificationPut(record *escrow.Verification) error {
	if record == nil {
		return fmt.Errorf("state: nil verification")
	}
	stored := &storedVerification{
		EscrowID:  record.EscrowID,
		Verified:  record.Verified,
		ProofHash: record.ProofHash,
		Timestamp: uint64(record.Timestamp),
	}
	return m.KVPut(oracleVerificationKey(record.EscrowID), stored)
}

// VerificationGet resolves the attestation recorded for an escrow.
func (m *Manager) VerificationGet(escrowID uint64) (*escrow.Verification, bool, error) {
	var stored storedVerification
	ok, err := m.KVGet(oracleVerificationKey(escrowID), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &escrow.Verification{
		EscrowID:  stored.EscrowID,
		Verified:  stored.Verified,
		ProofHash: stored.ProofHash,
		Timestamp: int64(stored.Timestamp),
	}, true, nil
}
