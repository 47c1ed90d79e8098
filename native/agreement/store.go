package agreement

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"pactnet/core/events"
	"pactnet/core/types"
	"pactnet/native/token"
)

var (
	// ErrNotRegistered rejects agreement creation for unregistered parties.
	ErrNotRegistered = errors.New("agreement: party not registered")
	// ErrSelfAgreement rejects agreements where both parties are the same address.
	ErrSelfAgreement = errors.New("agreement: parties must be distinct")
	// ErrNotFound marks lookups for agreement ids that were never assigned.
	ErrNotFound = errors.New("agreement: agreement not found")

	errNilState  = errors.New("agreement: state not configured")
	errNilLedger = errors.New("agreement: credit ledger not configured")
)

// EventTypeCreated is emitted after an agreement and its fee charges commit.
const EventTypeCreated = "agreement.created"

// Agreement is an immutable bilateral record. The commitment hash is caller
// supplied and opaque; the store never interprets it.
type Agreement struct {
	ID             uint64
	PartyA         [20]byte
	PartyB         [20]byte
	CommitmentHash [32]byte
	CreatedAt      int64
}

// Clone returns a copy callers can mutate freely.
func (a *Agreement) Clone() *Agreement {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}

type storeState interface {
	AgreementPut(*Agreement) error
	AgreementGet(id uint64) (*Agreement, bool, error)
	AgreementIndexByParty(party [20]byte, id uint64) error
	AgreementsByParty(party [20]byte) ([]uint64, error)
	NextAgreementID() (uint64, error)
}

type creditLedger interface {
	BalanceOf(addr [20]byte) (*big.Int, error)
	Burn(from [20]byte, amount *big.Int) error
	Transfer(from, to [20]byte, amount *big.Int) error
}

type registrar interface {
	IsRegistered(addr [20]byte) (bool, error)
}

// FeePolicy describes the verification fee charged to each party at
// creation: BurnPercent of Amount is destroyed, the remainder routes to the
// Collector account.
type FeePolicy struct {
	Amount      *big.Int
	BurnPercent uint32
	Collector   [20]byte
}

func (p FeePolicy) normalized() (FeePolicy, error) {
	if p.Amount == nil {
		p.Amount = big.NewInt(0)
	}
	if p.Amount.Sign() < 0 {
		return p, fmt.Errorf("agreement: fee amount must be non-negative")
	}
	if p.BurnPercent > 100 {
		return p, fmt.Errorf("agreement: burn percent out of range: %d", p.BurnPercent)
	}
	return p, nil
}

// split returns the burn and collector portions of the fee.
func (p FeePolicy) split() (*big.Int, *big.Int) {
	burn := new(big.Int).Mul(p.Amount, new(big.Int).SetUint64(uint64(p.BurnPercent)))
	burn.Div(burn, big.NewInt(100))
	return burn, new(big.Int).Sub(p.Amount, burn)
}

// Store is the append-only agreement log plus its per-party index. Creation
// charges the verification fee to both parties; both charges are validated
// before the first balance mutation so a short second party cannot leave a
// half-charged pair behind.
type Store struct {
	state     storeState
	ledger    creditLedger
	registrar registrar
	fee       FeePolicy
	emitter   events.Emitter
	nowFn     func() int64
}

// NewStore constructs an agreement store with the supplied fee policy.
func NewStore(state storeState, ledger creditLedger, registrar registrar, fee FeePolicy) (*Store, error) {
	normalized, err := fee.normalized()
	if err != nil {
		return nil, err
	}
	return &Store{
		state:     state,
		ledger:    ledger,
		registrar: registrar,
		fee:       normalized,
		emitter:   events.NoopEmitter{},
		nowFn:     func() int64 { return time.Now().Unix() },
	}, nil
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (s *Store) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		s.emitter = events.NoopEmitter{}
		return
	}
	s.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (s *Store) SetNowFunc(now func() int64) {
	if now == nil {
		s.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	s.nowFn = now
}

// SetFeePolicy replaces the fee policy. Callers gate this behind the owner
// capability; the store itself holds no authorization state.
func (s *Store) SetFeePolicy(fee FeePolicy) error {
	normalized, err := fee.normalized()
	if err != nil {
		return err
	}
	s.fee = normalized
	return nil
}

// FeeAmount exposes the configured per-party fee for read surfaces.
func (s *Store) FeeAmount() *big.Int {
	return new(big.Int).Set(s.fee.Amount)
}

// Create appends a new agreement between two distinct registered parties,
// charging the verification fee to each.
func (s *Store) Create(partyA, partyB [20]byte, commitment [32]byte) (*Agreement, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	if partyA == partyB {
		return nil, ErrSelfAgreement
	}
	for _, party := range [][20]byte{partyA, partyB} {
		registered, err := s.registrar.IsRegistered(party)
		if err != nil {
			return nil, err
		}
		if !registered {
			return nil, ErrNotRegistered
		}
	}
	if s.fee.Amount.Sign() > 0 {
		if s.ledger == nil {
			return nil, errNilLedger
		}
		// Both parties must cover the full fee before either is charged.
		for _, party := range [][20]byte{partyA, partyB} {
			balance, err := s.ledger.BalanceOf(party)
			if err != nil {
				return nil, err
			}
			if balance.Cmp(s.fee.Amount) < 0 {
				return nil, token.ErrInsufficientFunds
			}
		}
		for _, party := range [][20]byte{partyA, partyB} {
			if err := s.chargeFee(party); err != nil {
				return nil, err
			}
		}
	}
	id, err := s.state.NextAgreementID()
	if err != nil {
		return nil, err
	}
	record := &Agreement{
		ID:             id,
		PartyA:         partyA,
		PartyB:         partyB,
		CommitmentHash: commitment,
		CreatedAt:      s.nowFn(),
	}
	if err := s.state.AgreementPut(record); err != nil {
		return nil, err
	}
	if err := s.state.AgreementIndexByParty(partyA, id); err != nil {
		return nil, err
	}
	if err := s.state.AgreementIndexByParty(partyB, id); err != nil {
		return nil, err
	}
	burn, dev := s.fee.split()
	s.emitter.Emit(events.Wrap(&types.Event{
		Type: EventTypeCreated,
		Attributes: map[string]string{
			"id":         strconv.FormatUint(id, 10),
			"partyA":     hex.EncodeToString(partyA[:]),
			"partyB":     hex.EncodeToString(partyB[:]),
			"commitment": hex.EncodeToString(commitment[:]),
			"feePerSide": s.fee.Amount.String(),
			"burnedPer":  burn.String(),
			"routedPer":  dev.String(),
			"createdAt":  strconv.FormatInt(record.CreatedAt, 10),
		},
	}))
	return record.Clone(), nil
}

func (s *Store) chargeFee(payer [20]byte) error {
	burn, dev := s.fee.split()
	if burn.Sign() > 0 {
		if err := s.ledger.Burn(payer, burn); err != nil {
			return err
		}
	}
	if dev.Sign() > 0 {
		if err := s.ledger.Transfer(payer, s.fee.Collector, dev); err != nil {
			return err
		}
	}
	return nil
}

// Get resolves an agreement by id.
func (s *Store) Get(id uint64) (*Agreement, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	record, ok, err := s.state.AgreementGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return record.Clone(), nil
}

// Parties resolves the two parties of an agreement. The boolean reports
// whether the agreement exists; escrow and report modules consume this.
func (s *Store) Parties(id uint64) ([20]byte, [20]byte, bool, error) {
	if s == nil || s.state == nil {
		return [20]byte{}, [20]byte{}, false, errNilState
	}
	record, ok, err := s.state.AgreementGet(id)
	if err != nil || !ok {
		return [20]byte{}, [20]byte{}, false, err
	}
	return record.PartyA, record.PartyB, true, nil
}

// ListByParty returns every agreement the address participates in, oldest
// first.
func (s *Store) ListByParty(party [20]byte) ([]*Agreement, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	ids, err := s.state.AgreementsByParty(party)
	if err != nil {
		return nil, err
	}
	records := make([]*Agreement, 0, len(ids))
	for _, id := range ids {
		record, ok, err := s.state.AgreementGet(id)
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
