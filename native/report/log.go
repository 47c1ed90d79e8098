package report

import (
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"pactnet/core/events"
	"pactnet/core/types"
)

var (
	// ErrInvalidReference marks reports against unknown agreements.
	ErrInvalidReference = errors.New("report: unknown agreement")
	// ErrNotAParty rejects reporters who are not a party to the agreement.
	ErrNotAParty = errors.New("report: reporter is not a party")
	// ErrInvalidTarget rejects reported addresses that are not the counterparty.
	ErrInvalidTarget = errors.New("report: reported address is not the counterparty")
	// ErrSelfReport rejects reports filed against the reporter themself.
	ErrSelfReport = errors.New("report: cannot report self")
	// ErrNotFound marks lookups for report ids that were never assigned.
	ErrNotFound = errors.New("report: report not found")

	errNilState = errors.New("report: state not configured")
)

// EventTypeFiled is emitted once a report record commits.
const EventTypeFiled = "report.filed"

// Report is an immutable dispute report referencing an existing agreement.
type Report struct {
	ID          uint64
	AgreementID uint64
	Reporter    [20]byte
	Reported    [20]byte
	ReasonHash  [32]byte
	CreatedAt   int64
}

// Clone returns a copy callers can mutate freely.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

type logState interface {
	ReportPut(*Report) error
	ReportGet(id uint64) (*Report, bool, error)
	ReportIndexByReporter(addr [20]byte, id uint64) error
	ReportIndexByReported(addr [20]byte, id uint64) error
	ReportsByReporter(addr [20]byte) ([]uint64, error)
	ReportsByReported(addr [20]byte) ([]uint64, error)
	NextReportID() (uint64, error)
}

type agreementSource interface {
	Parties(id uint64) ([20]byte, [20]byte, bool, error)
}

// Log is the append-only dispute report log, indexed by both the reporter
// and the reported party.
type Log struct {
	state      logState
	agreements agreementSource
	emitter    events.Emitter
	nowFn      func() int64
}

// NewLog constructs a report log validating references against agreements.
func NewLog(state logState, agreements agreementSource) *Log {
	return &Log{
		state:      state,
		agreements: agreements,
		emitter:    events.NoopEmitter{},
		nowFn:      func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (l *Log) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (l *Log) SetNowFunc(now func() int64) {
	if now == nil {
		l.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	l.nowFn = now
}

// File appends a report by one party of the agreement against the other.
func (l *Log) File(agreementID uint64, reporter, reported [20]byte, reasonHash [32]byte) (*Report, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	if reporter == reported {
		return nil, ErrSelfReport
	}
	partyA, partyB, ok, err := l.agreements.Parties(agreementID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidReference
	}
	if reporter != partyA && reporter != partyB {
		return nil, ErrNotAParty
	}
	counterparty := partyA
	if reporter == partyA {
		counterparty = partyB
	}
	if reported != counterparty {
		return nil, ErrInvalidTarget
	}
	id, err := l.state.NextReportID()
	if err != nil {
		return nil, err
	}
	record := &Report{
		ID:          id,
		AgreementID: agreementID,
		Reporter:    reporter,
		Reported:    reported,
		ReasonHash:  reasonHash,
		CreatedAt:   l.nowFn(),
	}
	if err := l.state.ReportPut(record); err != nil {
		return nil, err
	}
	if err := l.state.ReportIndexByReporter(reporter, id); err != nil {
		return nil, err
	}
	if err := l.state.ReportIndexByReported(reported, id); err != nil {
		return nil, err
	}
	l.emitter.Emit(events.Wrap(&types.Event{
		Type: EventTypeFiled,
		Attributes: map[string]string{
			"id":          strconv.FormatUint(id, 10),
			"agreementId": strconv.FormatUint(agreementID, 10),
			"reporter":    hex.EncodeToString(reporter[:]),
			"reported":    hex.EncodeToString(reported[:]),
			"reason":      hex.EncodeToString(reasonHash[:]),
			"createdAt":   strconv.FormatInt(record.CreatedAt, 10),
		},
	}))
	return record.Clone(), nil
}

// Get resolves a report by id.
func (l *Log) Get(id uint64) (*Report, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	record, ok, err := l.state.ReportGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return record.Clone(), nil
}

// ListByReporter returns reports filed by addr, oldest first.
func (l *Log) ListByReporter(addr [20]byte) ([]*Report, error) {
	return l.list(addr, true)
}

// ListByReported returns reports filed against addr, oldest first.
func (l *Log) ListByReported(addr [20]byte) ([]*Report, error) {
	return l.list(addr, false)
}

func (l *Log) list(addr [20]byte, byReporter bool) ([]*Report, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	var (
		ids []uint64
		err error
	)
	if byReporter {
		ids, err = l.state.ReportsByReporter(addr)
	} else {
		ids, err = l.state.ReportsByReported(addr)
	}
	if err != nil {
		return nil, err
	}
	records := make([]*Report, 0, len(ids))
	for _, id := range ids {
		record, ok, err := l.state.ReportGet(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		records = append(records, record.Clone())
	}
	return records, nil
}
