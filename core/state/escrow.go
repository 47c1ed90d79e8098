package state

import (
	"fmt"
	"math/big"

	"pactnet/native/escrow"
)

var (
	escrowRecordPrefix    = []byte("escrow/record/")
	escrowUserIndexPrefix = []byte("escrow/user/")
	escrowAgreementPrefix = []byte("escrow/agreement/")
)

const escrowSequenceName = "escrow"

func escrowRecordKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", escrowRecordPrefix, id))
}

func escrowUserIndexKey(addr [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", escrowUserIndexPrefix, addr))
}

func escrowAgreementIndexKey(agreementID uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", escrowAgreementPrefix, agreementID))
}

// storedEscrow mirrors escrow.Escrow with unsigned timestamps so the record
// stays RLP serialisable.
type storedEscrow struct {
	ID          uint64
	AgreementID uint64
	Initiator   [20]byte
	Participant [20]byte
	Kind        uint8
	Amount      *big.Int
	ValueHash   [32]byte
	ProofHash   [32]byte

	InitiatorSubmitted   bool
	ParticipantSubmitted bool
	InitiatorConfirmed   bool
	ParticipantConfirmed bool

	Disputed            bool
	ProposedArbiter     [20]byte
	InitiatorApproved   bool
	ParticipantApproved bool
	Arbiter             [20]byte

	CreatedAt uint64
	ExpiresAt uint64
	Status    uint8
}

// EscrowPut persists the escrow record after sanitising it.
func (m *Manager) EscrowPut(e *escrow.Escrow) error {
	sanitized, err := escrow.Sanitize(e)
	if err != nil {
		return err
	}
	stored := &storedEscrow{
		ID:                   sanitized.ID,
		AgreementID:          sanitized.AgreementID,
		Initiator:            sanitized.Initiator,
		Participant:          sanitized.Participant,
		Kind:                 uint8(sanitized.Kind),
		Amount:               sanitized.Amount,
		ValueHash:            sanitized.ValueHash,
		ProofHash:            sanitized.ProofHash,
		InitiatorSubmitted:   sanitized.InitiatorSubmitted,
		ParticipantSubmitted: sanitized.ParticipantSubmitted,
		InitiatorConfirmed:   sanitized.InitiatorConfirmed,
		ParticipantConfirmed: sanitized.ParticipantConfirmed,
		Disputed:             sanitized.Disputed,
		ProposedArbiter:      sanitized.ProposedArbiter,
		InitiatorApproved:    sanitized.InitiatorApproved,
		ParticipantApproved:  sanitized.ParticipantApproved,
		Arbiter:              sanitized.Arbiter,
		CreatedAt:            uint64(sanitized.CreatedAt),
		ExpiresAt:            uint64(sanitized.ExpiresAt),
		Status:               uint8(sanitized.Status),
	}
	return m.KVPut(escrowRecordKey(sanitized.ID), stored)
}

// EscrowGet resolves the escrow record by id.
func (m *Manager) EscrowGet(id uint64) (*escrow.Escrow, bool, error) {
	var stored storedEscrow
	ok, err := m.KVGet(escrowRecordKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	record := &escrow.Escrow{
		ID:                   stored.ID,
		AgreementID:          stored.AgreementID,
		Initiator:            stored.Initiator,
		Participant:          stored.Participant,
		Kind:                 escrow.Kind(stored.Kind),
		Amount:               stored.Amount,
		ValueHash:            stored.ValueHash,
		ProofHash:            stored.ProofHash,
		InitiatorSubmitted:   stored.InitiatorSubmitted,
		ParticipantSubmitted: stored.ParticipantSubmitted,
		InitiatorConfirmed:   stored.InitiatorConfirmed,
		ParticipantConfirmed: stored.ParticipantConfirmed,
		Disputed:             stored.Disputed,
		ProposedArbiter:      stored.ProposedArbiter,
		InitiatorApproved:    stored.InitiatorApproved,
		ParticipantApproved:  stored.ParticipantApproved,
		Arbiter:              stored.Arbiter,
		CreatedAt:            int64(stored.CreatedAt),
		ExpiresAt:            int64(stored.ExpiresAt),
		Status:               escrow.Status(stored.Status),
	}
	if record.Amount == nil {
		record.Amount = big.NewInt(0)
	}
	return record, true, nil
}

// NextEscrowID assigns the next escrow index.
func (m *Manager) NextEscrowID() (uint64, error) {
	return m.NextSequence(escrowSequenceName)
}

// EscrowIndexByUser records id under the address's escrow index.
func (m *Manager) EscrowIndexByUser(addr [20]byte, id uint64) error {
	return m.appendIndex(escrowUserIndexKey(addr), id)
}

// EscrowIndexByAgreement records id under the agreement's escrow index.
func (m *Manager) EscrowIndexByAgreement(agreementID, id uint64) error {
	return m.appendIndex(escrowAgreementIndexKey(agreementID), id)
}

// EscrowsByUser lists escrow ids the address participates in.
func (m *Manager) EscrowsByUser(addr [20]byte) ([]uint64, error) {
	return m.readIndex(escrowUserIndexKey(addr))
}

// EscrowsByAgreement lists escrow ids opened against the agreement.
func (m *Manager) EscrowsByAgreement(agreementID uint64) ([]uint64, error) {
	return m.readIndex(escrowAgreementIndexKey(agreementID))
}
