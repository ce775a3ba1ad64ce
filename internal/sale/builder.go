package sale

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/till/internal/money"
)

// ErrEmptyCart is returned when a checkout has no purchasable lines.
var ErrEmptyCart = errors.New("cart is empty")

// ErrInsufficientTender is returned when a cash checkout tenders less than
// the total amount due.
var ErrInsufficientTender = errors.New("insufficient tender")

// Builder turns validated cart state into a priced sale payload.
//
// It also issues receipt numbers: business-visible identifiers derived from
// the wall clock, with a monotonic guard so two checkouts in the same
// millisecond never collide within one process.
type Builder struct {
	mu         sync.Mutex
	now        func() time.Time
	lastMillis int64
}

// NewBuilder creates a Builder. A nil now falls back to time.Now.
func NewBuilder(now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{now: now}
}

// BuildPayload computes the monetary derivations for a checkout and assigns
// a receipt number.
//
// Subtotal is the sum of unitPrice x quantity across items; total equals
// subtotal (tax is not applied at this layer). For cash, amountPaid is the
// tender and changeGiven is max(0, tender - total); cash tender below total
// is rejected with ErrInsufficientTender. For non-cash methods amountPaid
// equals the total and change is zero.
func (b *Builder) BuildPayload(items []CartItem, method PaymentMethod, tender money.Cents) (Payload, error) {
	if !ValidPaymentMethod(method) {
		return Payload{}, fmt.Errorf("invalid payment method %q", method)
	}

	var subtotal money.Cents
	lines := 0
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		lines++
		subtotal = subtotal.Add(item.UnitPrice.Mul(item.Quantity))
	}
	if lines == 0 {
		return Payload{}, ErrEmptyCart
	}

	total := subtotal // tax/discount are applied server-side, if at all

	amountPaid := total
	var change money.Cents
	if method == PaymentCash {
		if tender < total {
			return Payload{}, fmt.Errorf("%w: tendered %s, due %s", ErrInsufficientTender, tender, total)
		}
		amountPaid = tender
		change = tender.Sub(total).Max0()
	}

	return Payload{
		ReceiptNumber: b.nextReceiptNumber(),
		Subtotal:      subtotal,
		TotalAmount:   total,
		AmountPaid:    amountPaid,
		ChangeGiven:   change,
		PaymentMethod: method,
		Items:         items,
	}, nil
}

// nextReceiptNumber issues "REC<unix-millis>", bumping past the previous
// issue when the clock has not advanced (or has rolled back).
func (b *Builder) nextReceiptNumber() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	ms := b.now().UnixMilli()
	if ms <= b.lastMillis {
		ms = b.lastMillis + 1
	}
	b.lastMillis = ms
	return fmt.Sprintf("REC%d", ms)
}
