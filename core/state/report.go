package state

import (
	"fmt"

	"pactnet/native/report"
)

var (
	reportRecordPrefix   = []byte("report/record/")
	reportReporterPrefix = []byte("report/reporter/")
	reportReportedPrefix = []byte("report/reported/")
)

const reportSequenceName = "report"

func reportRecordKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", reportRecordPrefix, id))
}

func reportReporterIndexKey(addr [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", reportReporterPrefix, addr))
}

func reportReportedIndexKey(addr [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", reportReportedPrefix, addr))
}

type storedReport struct {
	ID          uint64
	AgreementID uint64
	Reporter    [20]byte
	Reported    [20]byte
	ReasonHash  [32]byte
	CreatedAt   uint64
}

// ReportPut persists a report record.
func (m *Manager) ReportPut(record *report.Report) error {
	if record == nil {
		return fmt.Errorf("state: nil report")
	}
	stored := &storedReport{
		ID:          record.ID,
		AgreementID: record.AgreementID,
		Reporter:    record.Reporter,
		Reported:    record.Reported,
		ReasonHash:  record.ReasonHash,
		CreatedAt:   uint64(record.CreatedAt),
	}
	return m.KVPut(reportRecordKey(record.ID), stored)
}

// ReportGet resolves a report record by id.
func (m *Manager) ReportGet(id uint64) (*report.Report, bool, error) {
	var stored storedReport
	ok, err := m.KVGet(reportRecordKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &report.Report{
		ID:          stored.ID,
		AgreementID: stored.AgreementID,
		Reporter:    stored.Reporter,
		Reported:    stored.Reported,
		ReasonHash:  stored.ReasonHash,
		CreatedAt:   int64(stored.CreatedAt),
	}, true, nil
}

// NextReportID assigns the next report index.
func (m *Manager) NextReportID() (uint64, error) {
	return m.NextSequence(reportSequenceName)
}

// ReportIndexByReporter records id under the reporter's index.
func (m *Manager) ReportIndexByReporter(addr [20]byte, id uint64) error {
	return m.appendIndex(reportReporterIndexKey(addr), id)
}

// ReportIndexByReported records id under the reported party's index.
func (m *Manager) ReportIndexByReported(addr [20]byte, id uint64) error {
	return m.appendIndex(reportReportedIndexKey(addr), id)
}

// ReportsByReporter lists report ids filed by addr.
func (m *Manager) ReportsByReporter(addr [20]byte) ([]uint64, error) {
	return m.readIndex(reportReporterIndexKey(addr))
}

// ReportsByReported lists report ids filed against addr.
func (m *Manager) ReportsByReported(addr [20]byte) ([]uint64, error) {
	return m.readIndex(reportReportedIndexKey(addr))
}
