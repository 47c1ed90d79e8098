package types

import "math/big"

// Account holds the per-address ledger record. BalanceNative tracks the
// escrowable settlement currency in its smallest indivisible unit while
// BalanceCredit tracks the internal credit token that funds agreement
// creation. Registered is monotonic: once set it is never cleared.
type Account struct {
	Nonce         uint64   `json:"nonce"`
	BalanceNative *big.Int `json:"balanceNative"`
	BalanceCredit *big.Int `json:"balanceCredit"`
	Registered    bool     `json:"registered"`
}

// Ensure normalises nil balance pointers so callers can operate on the
// account without nil checks. The receiver is returned for chaining.
func (a *Account) Ensure() *Account {
	if a == nil {
		return &Account{BalanceNative: big.NewInt(0), BalanceCredit: big.NewInt(0)}
	}
	if a.BalanceNative == nil {
		a.BalanceNative = big.NewInt(0)
	}
	if a.BalanceCredit == nil {
		a.BalanceCredit = big.NewInt(0)
	}
	return a
}

// Clone returns a deep copy of the account record.
func (a *Account) Clone() *Account {
	if a == nil {
		return (&Account{}).Ensure()
	}
	clone := *a
	if a.BalanceNative != nil {
		clone.BalanceNative = new(big.Int).Set(a.BalanceNative)
	}
	if a.BalanceCredit != nil {
		clone.BalanceCredit = new(big.Int).Set(a.BalanceCredit)
	}
	return clone.Ensure()
}
