package agreement

import (
	"errors"
	"math/big"
	"testing"

	"pactnet/native/token"
)

type fakeState struct {
	records map[uint64]*Agreement
	byParty map[[20]byte][]uint64
	nextID  uint64
}

func newFakeState() *fakeState {
	return &fakeState{
		records: make(map[uint64]*Agreement),
		byParty: make(map[[20]byte][]uint64),
	}
}

func (f *fakeState) AgreementPut(record *Agreement) error {
	f.records[record.ID] = record.Clone()
	return nil
}

func (f *fakeState) AgreementGet(id uint64) (*Agreement, bool, error) {
	record, ok := f.records[id]
	if !ok {
		return nil, false, nil
	}
	return record.Clone(), true, nil
}

func (f *fakeState) AgreementIndexByParty(party [20]byte, id uint64) error {
	f.byParty[party] = append(f.byParty[party], id)
	return nil
}

func (f *fakeState) AgreementsByParty(party [20]byte) ([]uint64, error) {
	return append([]uint64(nil), f.byParty[party]...), nil
}

func (f *fakeState) NextAgreementID() (uint64, error) {
	f.nextID++
	return f.nextID, nil
}

type fakeLedger struct {
	balances map[[20]byte]*big.Int
	burned   *big.Int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: make(map[[20]byte]*big.Int), burned: big.NewInt(0)}
}

func (f *fakeLedger) balance(addr [20]byte) *big.Int {
	if existing, ok := f.balances[addr]; ok {
		return existing
	}
	fresh := big.NewInt(0)
	f.balances[addr] = fresh
	return fresh
}

func (f *fakeLedger) BalanceOf(addr [20]byte) (*big.Int, error) {
	return new(big.Int).Set(f.balance(addr)), nil
}

func (f *fakeLedger) Burn(from [20]byte, amount *big.Int) error {
	balance := f.balance(from)
	if balance.Cmp(amount) < 0 {
		return token.ErrInsufficientFunds
	}
	balance.Sub(balance, amount)
	f.burned.Add(f.burned, amount)
	return nil
}

func (f *fakeLedger) Transfer(from, to [20]byte, amount *big.Int) error {
	balance := f.balance(from)
	if balance.Cmp(amount) < 0 {
		return token.ErrInsufficientFunds
	}
	balance.Sub(balance, amount)
	f.balance(to).Add(f.balance(to), amount)
	return nil
}

type fakeRegistrar map[[20]byte]bool

func (f fakeRegistrar) IsRegistered(addr [20]byte) (bool, error) {
	return f[addr], nil
}

var (
	partyA       = [20]byte{0x01}
	partyB       = [20]byte{0x02}
	feeCollector = [20]byte{0xFE}
)

func testCommitment() [32]byte {
	var hash [32]byte
	for i := range hash {
		hash[i] = 0xAB
	}
	return hash
}

func newTestStore(t *testing.T, feeAmount int64) (*Store, *fakeState, *fakeLedger) {
	t.Helper()
	state := newFakeState()
	ledger := newFakeLedger()
	registrar := fakeRegistrar{partyA: true, partyB: true}
	store, err := NewStore(state, ledger, registrar, FeePolicy{
		Amount:      big.NewInt(feeAmount),
		BurnPercent: 50,
		Collector:   feeCollector,
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	store.SetNowFunc(func() int64 { return 1_700_000_000 })
	return store, state, ledger
}

func TestCreateChargesBothParties(t *testing.T) {
	store, _, ledger := newTestStore(t, 10)
	ledger.balance(partyA).SetInt64(100)
	ledger.balance(partyB).SetInt64(100)

	record, err := store.Create(partyA, partyB, testCommitment())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if record.ID != 1 {
		t.Fatalf("id = %d, want 1", record.ID)
	}
	if record.CommitmentHash != testCommitment() {
		t.Fatalf("commitment not stored")
	}
	// Each side pays 10: 5 burned, 5 routed to the collector.
	for _, party := range [][20]byte{partyA, partyB} {
		balance, _ := ledger.BalanceOf(party)
		if balance.Cmp(big.NewInt(90)) != 0 {
			t.Fatalf("party balance = %s, want 90", balance)
		}
	}
	collected, _ := ledger.BalanceOf(feeCollector)
	if collected.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("collector = %s, want 10", collected)
	}
	if ledger.burned.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("burned = %s, want 10", ledger.burned)
	}
}

func TestCreateRejectsShortBalanceBeforeCharging(t *testing.T) {
	store, state, ledger := newTestStore(t, 10)
	ledger.balance(partyA).SetInt64(100)
	ledger.balance(partyB).SetInt64(3)

	if _, err := store.Create(partyA, partyB, testCommitment()); !errors.Is(err, token.ErrInsufficientFunds) {
		t.Fatalf("short counterparty: %v", err)
	}
	// The solvent party must not be left half-charged.
	balance, _ := ledger.BalanceOf(partyA)
	if balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("partyA charged despite rejection: %s", balance)
	}
	if len(state.records) != 0 {
		t.Fatalf("agreement persisted despite rejection")
	}
}

func TestCreateValidation(t *testing.T) {
	store, _, ledger := newTestStore(t, 10)
	ledger.balance(partyA).SetInt64(100)
	ledger.balance(partyB).SetInt64(100)

	if _, err := store.Create(partyA, partyA, testCommitment()); !errors.Is(err, ErrSelfAgreement) {
		t.Fatalf("self agreement: %v", err)
	}
	stranger := [20]byte{0x09}
	if _, err := store.Create(partyA, stranger, testCommitment()); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("unregistered party: %v", err)
	}
}

func TestZeroFeeSkipsLedger(t *testing.T) {
	store, _, ledger := newTestStore(t, 0)
	if _, err := store.Create(partyA, partyB, testCommitment()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	balance, _ := ledger.BalanceOf(partyA)
	if balance.Sign() != 0 {
		t.Fatalf("fee charged with zero policy")
	}
}

func TestPartiesAndLists(t *testing.T) {
	store, _, _ := newTestStore(t, 0)
	first, err := store.Create(partyA, partyB, testCommitment())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := store.Create(partyA, partyB, testCommitment())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	a, b, ok, err := store.Parties(first.ID)
	if err != nil || !ok {
		t.Fatalf("Parties: ok=%t err=%v", ok, err)
	}
	if a != partyA || b != partyB {
		t.Fatalf("parties mismatch")
	}
	if _, _, ok, _ := store.Parties(99); ok {
		t.Fatalf("unknown agreement resolved")
	}
	if _, err := store.Get(99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get unknown: %v", err)
	}

	listed, err := store.ListByParty(partyA)
	if err != nil {
		t.Fatalf("ListByParty: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != first.ID || listed[1].ID != second.ID {
		t.Fatalf("list = %d entries", len(listed))
	}
}
