package escrow

import (
	"encoding/hex"
	"strconv"

	"pactnet/core/types"
)

const (
	EventTypeCreated         = "escrow.created"
	EventTypeJoined          = "escrow.joined"
	EventTypeProofSubmitted  = "escrow.proof_submitted"
	EventTypeConfirmed       = "escrow.confirmed"
	EventTypeReleased        = "escrow.released"
	EventTypeDisputed        = "escrow.disputed"
	EventTypeArbiterProposed = "escrow.arbiter_proposed"
	EventTypeArbiterApproved = "escrow.arbiter_approved"
	EventTypeResolved        = "escrow.resolved"
	EventTypeCancelled       = "escrow.cancelled"
	EventTypeExpired         = "escrow.expired"
)

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// newEscrowEvent builds the canonical payload for an escrow transition. The
// extra map carries the actor and any disbursed amounts for the transition.
func newEscrowEvent(eventType string, e *Escrow, extra map[string]string) *types.Event {
	attrs := make(map[string]string, 8+len(extra))
	if e != nil {
		sanitized, err := Sanitize(e)
		if err == nil {
			attrs["id"] = strconv.FormatUint(sanitized.ID, 10)
			attrs["agreementId"] = strconv.FormatUint(sanitized.AgreementID, 10)
			attrs["initiator"] = hex.EncodeToString(sanitized.Initiator[:])
			if sanitized.HasParticipant() {
				attrs["participant"] = hex.EncodeToString(sanitized.Participant[:])
			}
			attrs["kind"] = sanitized.Kind.String()
			attrs["locked"] = sanitized.Amount.String()
			attrs["status"] = sanitized.Status.String()
		}
	}
	for key, value := range extra {
		attrs[key] = value
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
