package state

import (
	"fmt"

	"pactnet/native/agreement"
)

var (
	agreementRecordPrefix = []byte("agreement/record/")
	agreementPartyPrefix  = []byte("agreement/party/")
)

const agreementSequenceName = "agreement"

func agreementRecordKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", agreementRecordPrefix, id))
}

func agreementPartyIndexKey(party [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", agreementPartyPrefix, party))
}

type storedAgreement struct {
	ID             uint64
	PartyA         [20]byte
	PartyB         [20]byte
	CommitmentHash [32]byte
	CreatedAt      uint64
}

// AgreementPut persists an agreement record.
func (m *Manager) AgreementPut(record *agreement.Agreement) error {
	if record == nil {
		return fmt.Errorf("state: nil agreement")
	}
	stored := &storedAgreement{
		ID:             record.ID,
		PartyA:         record.PartyA,
		PartyB:         record.PartyB,
		CommitmentHash: record.CommitmentHash,
		CreatedAt:      uint64(record.CreatedAt),
	}
	return m.KVPut(agreementRecordKey(record.ID), stored)
}

// AgreementGet resolves an agreement record by id.
func (m *Manager) AgreementGet(id uint64) (*agreement.Agreement, bool, error) {
	var stored storedAgreement
	ok, err := m.KVGet(agreementRecordKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &agreement.Agreement{
		ID:             stored.ID,
		PartyA:         stored.PartyA,
		PartyB:         stored.PartyB,
		CommitmentHash: stored.CommitmentHash,
		CreatedAt:      int64(stored.CreatedAt),
	}, true, nil
}

// NextAgreementID assigns the next agreement index.
func (m *Manager) NextAgreementID() (uint64, error) {
	return m.NextSequence(agreementSequenceName)
}

// AgreementIndexByParty records id under the party's agreement index.
func (m *Manager) AgreementIndexByParty(party [20]byte, id uint64) error {
	return m.appendIndex(agreementPartyIndexKey(party), id)
}

// AgreementsByParty lists agreement ids the party participates in.
func (m *Manager) AgreementsByParty(party [20]byte) ([]uint64, error) {
	return m.readIndex(agreementPartyIndexKey(party))
}
