package token

import (
	"errors"
	"fmt"
	"math/big"

	"pactnet/core/events"
	"pactnet/core/types"
)

// Sentinel failures surfaced by ledger operations. Every mutating call either
// fully applies or returns one of these with no state touched.
var (
	ErrInsufficientFunds = errors.New("token: insufficient funds")
	ErrAllowanceExceeded = errors.New("token: allowance exceeded")

	errNilState      = errors.New("token: ledger state not configured")
	errInvalidAmount = errors.New("token: amount must be positive")
)

// Event types emitted for every credit movement.
const (
	EventTypeMinted      = "token.minted"
	EventTypeBurned      = "token.burned"
	EventTypeTransferred = "token.transferred"
	EventTypeApproved    = "token.approved"
)

var (
	supplyKey = []byte("token/supply")
	burnedKey = []byte("token/burned")
)

func allowanceKey(owner, spender [20]byte) []byte {
	return []byte(fmt.Sprintf("token/allowance/%x/%x", owner, spender))
}

// ledgerState abstracts the subset of state manager functionality the credit
// ledger requires.
type ledgerState interface {
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Ledger tracks the internal credit unit: per-account balances, spender
// allowances and the running supply and burn totals. The conservation
// invariant is that cumulative minted equals current supply plus cumulative
// burned at all times.
type Ledger struct {
	state   ledgerState
	emitter events.Emitter
}

// NewLedger constructs a credit ledger bound to the provided state backend.
func NewLedger(state ledgerState) *Ledger {
	return &Ledger{state: state, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func (l *Ledger) emit(eventType string, attrs map[string]string) {
	if l == nil || l.emitter == nil {
		return
	}
	l.emitter.Emit(events.Wrap(&types.Event{Type: eventType, Attributes: attrs}))
}

func (l *Ledger) loadTotal(key []byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	total := new(big.Int)
	ok, err := l.state.KVGet(key, total)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return total, nil
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	return nil
}

// Mint credits amount to the account and grows the total supply. Minting is
// unconditional; only the registry and genesis wiring invoke it.
func (l *Ledger) Mint(to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	account, err := l.state.GetAccount(to)
	if err != nil {
		return err
	}
	account.BalanceCredit = new(big.Int).Add(account.BalanceCredit, amount)
	supply, err := l.loadTotal(supplyKey)
	if err != nil {
		return err
	}
	if err := l.state.PutAccount(to, account); err != nil {
		return err
	}
	if err := l.state.KVPut(supplyKey, new(big.Int).Add(supply, amount)); err != nil {
		return err
	}
	l.emit(EventTypeMinted, map[string]string{
		"to":     fmt.Sprintf("%x", to),
		"amount": amount.String(),
	})
	return nil
}

// Burn removes amount from the account, shrinking supply and growing the
// cumulative burn counter.
func (l *Ledger) Burn(from [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	account, err := l.state.GetAccount(from)
	if err != nil {
		return err
	}
	if account.BalanceCredit.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	supply, err := l.loadTotal(supplyKey)
	if err != nil {
		return err
	}
	burned, err := l.loadTotal(burnedKey)
	if err != nil {
		return err
	}
	account.BalanceCredit = new(big.Int).Sub(account.BalanceCredit, amount)
	if err := l.state.PutAccount(from, account); err != nil {
		return err
	}
	if err := l.state.KVPut(supplyKey, new(big.Int).Sub(supply, amount)); err != nil {
		return err
	}
	if err := l.state.KVPut(burnedKey, new(big.Int).Add(burned, amount)); err != nil {
		return err
	}
	l.emit(EventTypeBurned, map[string]string{
		"from":   fmt.Sprintf("%x", from),
		"amount": amount.String(),
	})
	return nil
}

// Transfer moves amount of credit between accounts. A zero amount is a no-op.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return errInvalidAmount
	}
	fromAccount, err := l.state.GetAccount(from)
	if err != nil {
		return err
	}
	if fromAccount.BalanceCredit.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	if from == to {
		// Balances are untouched but the movement is still recorded.
		l.emit(EventTypeTransferred, map[string]string{
			"from":   fmt.Sprintf("%x", from),
			"to":     fmt.Sprintf("%x", to),
			"amount": amount.String(),
		})
		return nil
	}
	toAccount, err := l.state.GetAccount(to)
	if err != nil {
		return err
	}
	fromAccount.BalanceCredit = new(big.Int).Sub(fromAccount.BalanceCredit, amount)
	toAccount.BalanceCredit = new(big.Int).Add(toAccount.BalanceCredit, amount)
	if err := l.state.PutAccount(from, fromAccount); err != nil {
		return err
	}
	if err := l.state.PutAccount(to, toAccount); err != nil {
		return err
	}
	l.emit(EventTypeTransferred, map[string]string{
		"from":   fmt.Sprintf("%x", from),
		"to":     fmt.Sprintf("%x", to),
		"amount": amount.String(),
	})
	return nil
}

// Approve replaces the spender's allowance over the owner's credit balance.
func (l *Ledger) Approve(owner, spender [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	if err := l.state.KVPut(allowanceKey(owner, spender), amount); err != nil {
		return err
	}
	l.emit(EventTypeApproved, map[string]string{
		"owner":   fmt.Sprintf("%x", owner),
		"spender": fmt.Sprintf("%x", spender),
		"amount":  amount.String(),
	})
	return nil
}

// Allowance reports the remaining amount spender may move from owner.
func (l *Ledger) Allowance(owner, spender [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	allowance := new(big.Int)
	ok, err := l.state.KVGet(allowanceKey(owner, spender), allowance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return allowance, nil
}

// TransferFrom moves amount from the owner to the recipient on behalf of
// spender, consuming allowance. The allowance check runs before any balance
// mutation so a failed spend leaves both untouched.
func (l *Ledger) TransferFrom(spender, from, to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	allowance, err := l.Allowance(from, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return ErrAllowanceExceeded
	}
	if err := l.Transfer(from, to, amount); err != nil {
		return err
	}
	return l.state.KVPut(allowanceKey(from, spender), new(big.Int).Sub(allowance, amount))
}

// BalanceOf reports the credit balance for addr.
func (l *Ledger) BalanceOf(addr [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	account, err := l.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(account.BalanceCredit), nil
}

// TotalSupply reports the credit currently in circulation.
func (l *Ledger) TotalSupply() (*big.Int, error) {
	return l.loadTotal(supplyKey)
}

// TotalBurned reports the cumulative credit destroyed by burns.
func (l *Ledger) TotalBurned() (*big.Int, error) {
	return l.loadTotal(burnedKey)
}
