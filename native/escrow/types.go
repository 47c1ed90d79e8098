package escrow

import (
	"fmt"
	"math/big"
	"strings"
)

// Status enumerates the escrow lifecycle. Pending escrows await the
// counterparty; Active escrows accept proofs, confirmations and disputes;
// the four terminal states never transition again.
type Status uint8

const (
	StatusPending Status = iota
	StatusActive
	StatusCompleted
	StatusDisputed
	StatusCancelled
	StatusExpired
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusCompleted, StatusDisputed, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusActive:
		return "active"
	case StatusCompleted:
		return "completed"
	case StatusDisputed:
		return "disputed"
	case StatusCancelled:
		return "cancelled"
	case StatusExpired:
		return "expired"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Kind tags the deliverable an escrow settles. It is fixed at creation and
// determines whether locked native value is required.
type Kind uint8

const (
	KindCrypto Kind = iota
	KindBankTransfer
	KindFileDeliverable
	KindPhysicalItem
	KindService
	KindHybrid
)

// Valid reports whether the kind value is within the supported range.
func (k Kind) Valid() bool {
	return k <= KindHybrid
}

// RequiresValue reports whether escrows of this kind must lock native value.
func (k Kind) RequiresValue() bool {
	return k == KindCrypto || k == KindHybrid
}

func (k Kind) String() string {
	switch k {
	case KindCrypto:
		return "crypto"
	case KindBankTransfer:
		return "bank_transfer"
	case KindFileDeliverable:
		return "file_deliverable"
	case KindPhysicalItem:
		return "physical_item"
	case KindService:
		return "service"
	case KindHybrid:
		return "hybrid"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind resolves the textual kind tag used on the RPC surface.
func ParseKind(value string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "crypto":
		return KindCrypto, nil
	case "bank_transfer":
		return KindBankTransfer, nil
	case "file_deliverable":
		return KindFileDeliverable, nil
	case "physical_item":
		return KindPhysicalItem, nil
	case "service":
		return KindService, nil
	case "hybrid":
		return KindHybrid, nil
	default:
		return 0, fmt.Errorf("escrow: unknown deliverable kind %q", value)
	}
}

// Escrow is the full settlement record for one agreement-scoped escrow.
// Amount is the locked native value still held against the escrow; it is
// zeroed before any outbound transfer so a re-entering caller can never
// observe a disbursable balance twice.
type Escrow struct {
	ID          uint64
	AgreementID uint64
	Initiator   [20]byte
	Participant [20]byte
	Kind        Kind
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

	CreatedAt int64
	ExpiresAt int64
	Status    Status
}

// Clone returns a deep copy of the escrow so callers can safely mutate the
// copy without affecting the stored instance.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Amount != nil {
		clone.Amount = new(big.Int).Set(e.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// HasParticipant reports whether the counterparty has joined.
func (e *Escrow) HasParticipant() bool {
	return e != nil && e.Participant != ([20]byte{})
}

// IsParty reports whether addr is the initiator or the joined participant.
func (e *Escrow) IsParty(addr [20]byte) bool {
	if e == nil {
		return false
	}
	if addr == e.Initiator {
		return true
	}
	return e.HasParticipant() && addr == e.Participant
}

// Sanitize validates and normalises the escrow record, returning a cloned
// instance with a non-nil amount. The original value is not mutated.
func Sanitize(e *Escrow) (*Escrow, error) {
	if e == nil {
		return nil, fmt.Errorf("escrow: nil escrow")
	}
	clone := e.Clone()
	if clone.Amount.Sign() < 0 {
		return nil, fmt.Errorf("escrow: amount must be non-negative")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("escrow: invalid status: %d", clone.Status)
	}
	if !clone.Kind.Valid() {
		return nil, fmt.Errorf("escrow: invalid deliverable kind: %d", clone.Kind)
	}
	return clone, nil
}

// Verification is the advisory oracle record attached to an escrow. It is
// written only through the oracle gateway and never overrides arbiter or
// manual confirmation authority.
type Verification struct {
	EscrowID  uint64
	Verified  bool
	ProofHash [32]byte
	Timestamp int64
}

// Clone returns a copy callers can mutate freely.
func (v *Verification) Clone() *Verification {
	if v == nil {
		return nil
	}
	clone := *v
	return &clone
}
