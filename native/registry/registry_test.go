package registry

import (
	"errors"
	"math/big"
	"testing"

	"pactnet/core/state"
	"pactnet/native/token"
	"pactnet/storage"
)

func TestRegisterMintsReward(t *testing.T) {
	manager := state.NewManager(storage.NewMemDB())
	ledger := token.NewLedger(manager)
	registry := NewRegistry(manager, ledger, big.NewInt(100))
	alice := [20]byte{0x01}

	registered, err := registry.IsRegistered(alice)
	if err != nil || registered {
		t.Fatalf("IsRegistered before = %t, %v", registered, err)
	}
	if err := registry.Register(alice); err != nil {
		t.Fatalf("Register: %v", err)
	}
	registered, err = registry.IsRegistered(alice)
	if err != nil || !registered {
		t.Fatalf("IsRegistered after = %t, %v", registered, err)
	}
	balance, err := ledger.BalanceOf(alice)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("reward = %s, want 100", balance)
	}
	supply, _ := ledger.TotalSupply()
	if supply.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("supply = %s, want 100", supply)
	}
}

func TestRegisterIsOneShot(t *testing.T) {
	manager := state.NewManager(storage.NewMemDB())
	ledger := token.NewLedger(manager)
	registry := NewRegistry(manager, ledger, big.NewInt(100))
	alice := [20]byte{0x01}

	if err := registry.Register(alice); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := registry.Register(alice); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("second register: %v", err)
	}
	balance, _ := ledger.BalanceOf(alice)
	if balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("reward re-minted: %s", balance)
	}
}

func TestZeroRewardSkipsMint(t *testing.T) {
	manager := state.NewManager(storage.NewMemDB())
	registry := NewRegistry(manager, nil, nil)
	alice := [20]byte{0x01}

	if err := registry.Register(alice); err != nil {
		t.Fatalf("Register without reward: %v", err)
	}
	registered, err := registry.IsRegistered(alice)
	if err != nil || !registered {
		t.Fatalf("IsRegistered = %t, %v", registered, err)
	}
}
