package sale

import (
	"time"

	"github.com/roach88/till/internal/money"
)

// SyncStatus tracks where a queued sale sits in its submission lifecycle.
//
// Legal transitions: pending → submitting → (removed from queue on remote
// acceptance), submitting → pending (retryable failure), submitting → failed
// (definitive remote rejection, manual resolution required). A record never
// holds a "synced" status: queue membership itself means not-yet-confirmed.
type SyncStatus string

const (
	StatusPending    SyncStatus = "pending"
	StatusSubmitting SyncStatus = "submitting"
	StatusFailed     SyncStatus = "failed"
)

// ValidStatus reports whether s is a status the queue may persist.
func ValidStatus(s SyncStatus) bool {
	switch s {
	case StatusPending, StatusSubmitting, StatusFailed:
		return true
	}
	return false
}

// PaymentMethod identifies how the customer settled a sale.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentMobile PaymentMethod = "mobile"
)

// ValidPaymentMethod reports whether m is an accepted payment method.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentMobile:
		return true
	}
	return false
}

// CartItem is one line of an in-progress sale as handed over by the UI.
type CartItem struct {
	ProductID   int64       `json:"product"`
	ProductName string      `json:"product_name"`
	Quantity    int         `json:"quantity"`
	UnitPrice   money.Cents `json:"unit_price"`
	CostPrice   money.Cents `json:"cost_price"`
}

// Payload is the full sale body submitted to the backend. Field names match
// the sales API contract; the queue treats the whole struct as opaque.
type Payload struct {
	ReceiptNumber  string        `json:"receipt_number"`
	CustomerName   string        `json:"customer_name"`
	CustomerPhone  string        `json:"customer_phone"`
	Subtotal       money.Cents   `json:"subtotal"`
	TaxAmount      money.Cents   `json:"tax_amount"`
	DiscountAmount money.Cents   `json:"discount_amount"`
	TotalAmount    money.Cents   `json:"total_amount"`
	AmountPaid     money.Cents   `json:"amount_paid"`
	ChangeGiven    money.Cents   `json:"change_given"`
	PaymentMethod  PaymentMethod `json:"payment_method"`
	Items          []CartItem    `json:"items"`
	IsOfflineSale  bool          `json:"is_offline_sale"`
}

// Record is one queued, not-yet-confirmed sale.
//
// OfflineID is assigned once at creation and never changes; together with
// the payload's receipt number it forms the idempotency key the backend
// uses to accept retransmissions without duplicating the sale.
type Record struct {
	OfflineID     string     `json:"offline_id"`
	ReceiptNumber string     `json:"receipt_number"`
	CreatedAt     time.Time  `json:"created_at"`
	Status        SyncStatus `json:"sync_status"`
	Payload       Payload    `json:"payload"`
}

// NewRecord builds a pending Record around an already-priced payload.
func NewRecord(p Payload, offlineID string, createdAt time.Time) Record {
	return Record{
		OfflineID:     offlineID,
		ReceiptNumber: p.ReceiptNumber,
		CreatedAt:     createdAt,
		Status:        StatusPending,
		Payload:       p,
	}
}
