package escrow

import (
	"math/big"
	"testing"
)

func TestKindParsing(t *testing.T) {
	cases := map[string]Kind{
		"crypto":           KindCrypto,
		"bank_transfer":    KindBankTransfer,
		"file_deliverable": KindFileDeliverable,
		"physical_item":    KindPhysicalItem,
		"service":          KindService,
		"  Hybrid ":        KindHybrid,
	}
	for input, want := range cases {
		got, err := ParseKind(input)
		if err != nil {
			t.Fatalf("ParseKind(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseKind(%q) = %v, want %v", input, got, want)
		}
	}
	if _, err := ParseKind("barter"); err == nil {
		t.Fatalf("unknown kind accepted")
	}
}

func TestKindRequiresValue(t *testing.T) {
	if !KindCrypto.RequiresValue() || !KindHybrid.RequiresValue() {
		t.Fatalf("crypto and hybrid must require value")
	}
	for _, kind := range []Kind{KindBankTransfer, KindFileDeliverable, KindPhysicalItem, KindService} {
		if kind.RequiresValue() {
			t.Fatalf("%s should not require value", kind)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, status := range []Status{StatusCompleted, StatusCancelled, StatusExpired} {
		if !status.Terminal() {
			t.Fatalf("%s should be terminal", status)
		}
	}
	for _, status := range []Status{StatusPending, StatusActive, StatusDisputed} {
		if status.Terminal() {
			t.Fatalf("%s should not be terminal", status)
		}
	}
	if Status(99).Valid() {
		t.Fatalf("out-of-range status valid")
	}
}

func TestEscrowCloneIndependence(t *testing.T) {
	original := &Escrow{ID: 1, Amount: big.NewInt(500), Status: StatusActive, Kind: KindCrypto}
	clone := original.Clone()
	clone.Amount.SetInt64(9)
	clone.Status = StatusCompleted
	if original.Amount.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("clone shares amount")
	}
	if original.Status != StatusActive {
		t.Fatalf("clone shares status")
	}
}

func TestSanitize(t *testing.T) {
	if _, err := Sanitize(nil); err == nil {
		t.Fatalf("nil escrow accepted")
	}
	if _, err := Sanitize(&Escrow{Amount: big.NewInt(-1)}); err == nil {
		t.Fatalf("negative amount accepted")
	}
	if _, err := Sanitize(&Escrow{Amount: big.NewInt(0), Status: Status(42)}); err == nil {
		t.Fatalf("invalid status accepted")
	}
	sanitized, err := Sanitize(&Escrow{ID: 3, Kind: KindService})
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	if sanitized.Amount == nil || sanitized.Amount.Sign() != 0 {
		t.Fatalf("nil amount not normalised")
	}
}
