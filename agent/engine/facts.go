package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/velora-commerce/refund-agent/agent/contract"
)

// Eligibility failure codes carried back to the model as structured text.
const (
	CodeOrderNotFound   = "ORDER_NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeItemMismatch    = "ITEM_MISMATCH"
	CodeAlreadyRefunded = "ALREADY_REFUNDED"
)

// EligibilityError is a fact-gathering failure with a machine code. It wraps
// the matching sentinel from the contract taxonomy. ExistingStatus is set for
// ALREADY_REFUNDED so the payload can name the blocking record's state.
type EligibilityError struct {
	Code           string
	Message        string
	ExistingStatus string
	err            error
}

func (e *EligibilityError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *EligibilityError) Unwrap() error {
	return e.err
}

// OrderFacts is deterministic, policy-independent ground truth for an
// eligibility judgment. Day counts are derived; no time-window comparison
// happens here.
type OrderFacts struct {
	OrderID           int64      `json:"order_id"`
	OrderItemID       int64      `json:"order_item_id"`
	OrderStatus       string     `json:"order_status"`
	CreatedAt         time.Time  `json:"created_at"`
	DeliveredAt       *time.Time `json:"delivered_at,omitempty"`
	DaysSinceOrder    int        `json:"days_since_order"`
	DaysSinceDelivery *int       `json:"days_since_delivery,omitempty"`
	IsDelivered       bool       `json:"is_delivered"`
	MaxRefundAmount   int64      `json:"max_refund_amount"`
	RefundBreakdown   string     `json:"refund_breakdown"`
}

// OrderFacts verifies ownership and item/order consistency, checks for an
// existing non-rejected refund in this thread, and returns the facts needed
// for an eligibility decision.
func (e *Engine) OrderFacts(ctx context.Context, orderID, itemID, userID int64, threadID string) (*OrderFacts, error) {
	order, err := e.store.Order(ctx, orderID)
	if errors.Is(err, contract.ErrNotFound) {
		return nil, &EligibilityError{
			Code:    CodeOrderNotFound,
			Message: fmt.Sprintf("order #%d not found", orderID),
			err:     contract.ErrNotFound,
		}
	}
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, &EligibilityError{
			Code:    CodeUnauthorized,
			Message: "order does not belong to this user",
			err:     contract.ErrUnauthorized,
		}
	}

	item, err := e.store.OrderItem(ctx, itemID)
	if errors.Is(err, contract.ErrNotFound) || (err == nil && item.OrderID != orderID) {
		return nil, &EligibilityError{
			Code:    CodeItemMismatch,
			Message: fmt.Sprintf("item #%d does not belong to order #%d", itemID, orderID),
			err:     contract.ErrInvalidArgument,
		}
	}
	if err != nil {
		return nil, err
	}

	existing, err := e.store.ActiveRefund(ctx, itemID, threadID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &EligibilityError{
			Code:           CodeAlreadyRefunded,
			Message:        fmt.Sprintf("a refund is already %s for this item in this conversation", existing.Status),
			ExistingStatus: existing.Status,
			err:            contract.ErrAlreadyExists,
		}
	}

	calc, err := e.CalculateRefund(ctx, itemID, nil)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	facts := &OrderFacts{
		OrderID:         orderID,
		OrderItemID:     itemID,
		OrderStatus:     order.Status,
		CreatedAt:       order.CreatedAt,
		DeliveredAt:     order.DeliveredAt,
		DaysSinceOrder:  daysBetween(order.CreatedAt, now),
		IsDelivered:     order.DeliveredAt != nil,
		MaxRefundAmount: calc.TotalRefund,
		RefundBreakdown: calc.Breakdown,
	}
	if order.DeliveredAt != nil {
		days := daysBetween(*order.DeliveredAt, now)
		facts.DaysSinceDelivery = &days
	}
	return facts, nil
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
