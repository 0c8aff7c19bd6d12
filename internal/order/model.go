package order

import "time"

// PaymentMethod is a closed set; reconciliation code switches over it
// exhaustively rather than branching on free strings.
type PaymentMethod string

const (
	MethodVNPay PaymentMethod = "vnpay"
	MethodCard  PaymentMethod = "card"
	MethodCash  PaymentMethod = "cash"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodVNPay, MethodCard, MethodCash:
		return true
	}
	return false
}

// ItemModifier is a flat name/price snapshot of a selected option. It is
// never re-resolved against the menu after the order is placed.
type ItemModifier struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type Item struct {
	MenuItemID string         `json:"menu_item_id"`
	Name       string         `json:"name"`
	Quantity   int            `json:"quantity"`
	UnitPrice  float64        `json:"unit_price"`
	Modifiers  []ItemModifier `json:"modifiers,omitempty"`
	LineTotal  float64        `json:"line_total"`
}

type Order struct {
	ID              string    `json:"id"`
	Number          string    `json:"number"`
	TableID         string    `json:"table_id"`
	GuestName       string    `json:"guest_name"`
	Items           []Item    `json:"items"`
	SpecialRequests string    `json:"special_requests,omitempty"`
	Status          Status    `json:"status"`
	StatusSeq       int64     `json:"status_seq"`
	Subtotal        float64   `json:"subtotal"`
	TaxAmount       float64   `json:"tax_amount"`
	Total           float64   `json:"total"`

	IsPaid         bool          `json:"is_paid"`
	PaymentMethod  PaymentMethod `json:"payment_method,omitempty"`
	TransactionNo  string        `json:"transaction_no,omitempty"`
	DiscountAmount float64       `json:"discount_amount"`
	FinalTotal     float64       `json:"final_total"`

	BillRequestedAt   *time.Time `json:"bill_requested_at,omitempty"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`
	AcceptedAt        *time.Time `json:"accepted_at,omitempty"`
	KitchenReceivedAt *time.Time `json:"kitchen_received_at,omitempty"`
	PreparingAt       *time.Time `json:"preparing_at,omitempty"`
	ReadyAt           *time.Time `json:"ready_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StampMilestone records first arrival at a status. Revisits keep the
// original timestamp.
func (o *Order) StampMilestone(s Status, at time.Time) {
	switch s {
	case StatusAccepted:
		if o.AcceptedAt == nil {
			o.AcceptedAt = &at
		}
	case StatusReceived:
		if o.KitchenReceivedAt == nil {
			o.KitchenReceivedAt = &at
		}
	case StatusPreparing:
		if o.PreparingAt == nil {
			o.PreparingAt = &at
		}
	case StatusReady:
		if o.ReadyAt == nil {
			o.ReadyAt = &at
		}
	case StatusCompleted:
		if o.CompletedAt == nil {
			o.CompletedAt = &at
		}
	}
}

// PaymentMeta carries everything markPaid stamps onto an order.
type PaymentMeta struct {
	Method          PaymentMethod `json:"method"`
	TransactionNo   string        `json:"transaction_no,omitempty"`
	DiscountPercent float64       `json:"discount_percent"`
}

type CreateItemRequest struct {
	MenuItemID string         `json:"menu_item_id"`
	Name       string         `json:"name"`
	Quantity   int            `json:"quantity"`
	UnitPrice  float64        `json:"unit_price"`
	Modifiers  []ItemModifier `json:"modifiers,omitempty"`
}

type CreateOrderRequest struct {
	TableID         string              `json:"table_id"`
	GuestName       string              `json:"guest_name"`
	Items           []CreateItemRequest `json:"items"`
	SpecialRequests string              `json:"special_requests,omitempty"`
}
