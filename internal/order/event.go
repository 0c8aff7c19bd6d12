package order

import "time"

type EventType string

const (
	EventAccepted EventType = "order:accepted"
	EventRejected EventType = "order:rejected"
	EventProgress EventType = "order:progress"
	EventUpdated  EventType = "order:updated"
)

// Event is the envelope fanned out by the notification hub. Seq increases
// monotonically per order; clients use it only for diagnostics, the merge
// rule works off the status ordering.
type Event struct {
	Type       EventType `json:"type"`
	OrderID    string    `json:"order_id"`
	Seq        int64     `json:"seq"`
	NewStatus  Status    `json:"new_status,omitempty"`
	Order      *Order    `json:"order,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TransitionEvent builds the event for an applied status transition.
// Acceptance-branch outcomes get their own tags; everything else is a
// progress event carrying the new status.
func TransitionEvent(o *Order, at time.Time) Event {
	ev := Event{
		OrderID:    o.ID,
		Seq:        o.StatusSeq,
		NewStatus:  o.Status,
		OccurredAt: at,
	}
	switch o.Status {
	case StatusAccepted:
		ev.Type = EventAccepted
	case StatusRejected:
		ev.Type = EventRejected
	default:
		ev.Type = EventProgress
	}
	return ev
}

// SnapshotEvent builds an order:updated event carrying the full order, used
// where a partial event would be ambiguous (bill request, payment).
func SnapshotEvent(o *Order, at time.Time) Event {
	return Event{
		Type:       EventUpdated,
		OrderID:    o.ID,
		Seq:        o.StatusSeq,
		NewStatus:  o.Status,
		Order:      o,
		OccurredAt: at,
	}
}
