// Package engine is the deterministic money/eligibility core. It computes
// refund amounts and order facts; it never judges eligibility against policy
// text. That interpretation belongs to the dialogue layer.
package engine

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/velora-commerce/refund-agent/agent/contract"
	"github.com/velora-commerce/refund-agent/store"
)

// Store is the read surface the engine needs. *store.Store satisfies it.
type Store interface {
	Order(ctx context.Context, orderID int64) (*store.Order, error)
	OrderItem(ctx context.Context, itemID int64) (*store.OrderItem, error)
	ItemDiscounts(ctx context.Context, itemID int64) ([]*store.Discount, error)
	ActiveRefund(ctx context.Context, itemID int64, threadID string) (*store.Refund, error)
}

type Engine struct {
	store Store
	now   func() time.Time
}

func New(s Store, opts ...Option) *Engine {
	e := &Engine{store: s, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

type Option func(*Engine)

// WithNow overrides the clock used for day-count derivation.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// RefundCalculation is the full money breakdown for one item at a requested
// quantity. All amounts are integer minor currency units.
type RefundCalculation struct {
	Quantity       int    `json:"quantity"`
	ItemPrice      int64  `json:"item_price"`
	TaxAmount      int64  `json:"tax_amount"`
	DiscountAmount int64  `json:"discount_amount"`
	TotalRefund    int64  `json:"total_refund"`
	Breakdown      string `json:"breakdown"`
}

// CalculateRefund computes item_price + proportional tax - proportional
// discounts for the requested quantity (nil means the full purchased
// quantity). Every intermediate value rounds down; the rounding direction is
// a deliberate policy choice and must not change.
func (e *Engine) CalculateRefund(ctx context.Context, itemID int64, quantity *int) (*RefundCalculation, error) {
	item, err := e.store.OrderItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	refundQty := item.Quantity
	if quantity != nil {
		refundQty = *quantity
	}
	if refundQty <= 0 {
		return nil, fmt.Errorf("%w: refund quantity %d must be positive", contract.ErrInvalidArgument, refundQty)
	}
	if refundQty > item.Quantity {
		return nil, fmt.Errorf("%w: refund quantity %d exceeds order quantity %d",
			contract.ErrInvalidArgument, refundQty, item.Quantity)
	}

	itemPrice := item.UnitPrice * int64(refundQty)
	taxAmount := floorPercent(itemPrice, item.TaxPercent)

	discounts, err := e.store.ItemDiscounts(ctx, itemID)
	if err != nil {
		return nil, err
	}

	var discountAmount int64
	var discountNotes []string
	for _, d := range discounts {
		switch {
		case d.Percent != nil:
			disc := floorPercent(itemPrice, *d.Percent)
			discountAmount += disc
			discountNotes = append(discountNotes, fmt.Sprintf("%g%% off", *d.Percent))
		case d.Amount != nil:
			// Fixed discounts apportion to the refunded share of the item.
			disc := (*d.Amount * int64(refundQty)) / int64(item.Quantity)
			discountAmount += disc
			discountNotes = append(discountNotes, fmt.Sprintf("%s off", FormatAmount(disc)))
		}
	}

	totalRefund := itemPrice + taxAmount - discountAmount

	breakdown := fmt.Sprintf("Item: %s + Tax: %s", FormatAmount(itemPrice), FormatAmount(taxAmount))
	if discountAmount > 0 {
		breakdown += fmt.Sprintf(" - Discounts: %s (%s)", FormatAmount(discountAmount), strings.Join(discountNotes, ", "))
	}
	breakdown += fmt.Sprintf(" = %s", FormatAmount(totalRefund))

	return &RefundCalculation{
		Quantity:       refundQty,
		ItemPrice:      itemPrice,
		TaxAmount:      taxAmount,
		DiscountAmount: discountAmount,
		TotalRefund:    totalRefund,
		Breakdown:      breakdown,
	}, nil
}

func floorPercent(amount int64, percent float64) int64 {
	return int64(math.Floor(float64(amount) * percent / 100))
}

// FormatAmount renders minor currency units as a rupee string.
func FormatAmount(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s₹%d.%02d", sign, amount/100, amount%100)
}
