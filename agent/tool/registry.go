// Package tool dispatches model tool calls against the order, policy, and
// refund backends. Every dispatch produces a text payload for the model; a
// backend failure becomes an "Error: ..." payload rather than aborting the
// dialogue turn.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/velora-commerce/refund-agent/agent/contract"
	"github.com/velora-commerce/refund-agent/agent/engine"
	"github.com/velora-commerce/refund-agent/agent/policy"
	"github.com/velora-commerce/refund-agent/store"
)

// Store is the order-side persistence the registry reads and writes.
type Store interface {
	OrdersByUser(ctx context.Context, userID int64) ([]*store.Order, error)
	OrderByUser(ctx context.Context, orderID, userID int64) (*store.Order, error)
	Order(ctx context.Context, orderID int64) (*store.Order, error)
	OrderItem(ctx context.Context, itemID int64) (*store.OrderItem, error)
	SearchOrdersByProduct(ctx context.Context, userID int64, query string) ([]*store.Order, error)
	ValidateOrderIDs(ctx context.Context, userID int64, raw string) (*store.ValidationResult, error)
	CreateRefund(ctx context.Context, in store.CreateRefundInput) (*store.Refund, error)
	RefundsByUser(ctx context.Context, userID int64, threadID string) ([]*store.Refund, error)
	CreateTicket(ctx context.Context, in store.CreateTicketInput) (*store.Ticket, error)
	CheckStock(ctx context.Context, productID int64, quantity int) (*store.StockInfo, error)
}

// Engine is the deterministic money and eligibility core.
type Engine interface {
	CalculateRefund(ctx context.Context, itemID int64, quantity *int) (*engine.RefundCalculation, error)
	OrderFacts(ctx context.Context, orderID, itemID, userID int64, threadID string) (*engine.OrderFacts, error)
}

// Policies is the versioned policy document.
type Policies interface {
	Get(category string) (policy.Policy, error)
	GeneralTerms() string
	ListCategories() []string
}

// Registry resolves tool calls by name. It is stateless and safe for
// concurrent use.
type Registry struct {
	store    Store
	engine   Engine
	policies Policies
	log      zerolog.Logger
}

func NewRegistry(st Store, eng Engine, pol Policies, log zerolog.Logger) *Registry {
	return &Registry{store: st, engine: eng, policies: pol, log: log}
}

// Dispatch runs one tool call under the caller's scope. The returned string
// is always a payload for the model; the error return is reserved for
// context cancellation.
func (r *Registry) Dispatch(ctx context.Context, scope contract.Scope, call schema.ToolCall) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	args := map[string]any{}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return errPayload(fmt.Sprintf("malformed arguments for %s: %v", call.Function.Name, err)), nil
		}
	}

	payload, err := r.execute(ctx, scope, call.Function.Name, args)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		r.log.Warn().
			Str("tool", call.Function.Name).
			Str("thread_id", scope.ThreadID).
			Err(err).
			Msg("tool call failed")
		return errPayload(err.Error()), nil
	}
	return payload, nil
}

func (r *Registry) execute(ctx context.Context, scope contract.Scope, name string, args map[string]any) (string, error) {
	switch name {
	case ToolGetUserOrders:
		return r.getUserOrders(ctx, scope)
	case ToolGetOrderDetails:
		return r.getOrderDetails(ctx, scope, args)
	case ToolSearchOrdersByProduct:
		return r.searchOrdersByProduct(ctx, scope, args)
	case ToolValidateOrderIDs:
		return r.validateOrderIDs(ctx, scope, args)
	case ToolGetRefundPolicy:
		return r.getRefundPolicy(args)
	case ToolGetGeneralPolicyTerms:
		return r.policies.GeneralTerms(), nil
	case ToolGetOrderFacts:
		return r.getOrderFacts(ctx, scope, args)
	case ToolCalculateRefund:
		return r.calculateRefund(ctx, scope, args)
	case ToolSubmitRefundRequest:
		return r.submitRefundRequest(ctx, scope, args)
	case ToolGetUserRefunds:
		return r.getUserRefunds(ctx, scope)
	case ToolRaiseSupportTicket:
		return r.raiseSupportTicket(ctx, scope, args)
	case ToolCheckProductStock:
		return r.checkProductStock(ctx, args)
	default:
		return "", fmt.Errorf("unknown tool %q", name)
	}
}

func (r *Registry) getUserOrders(ctx context.Context, scope contract.Scope) (string, error) {
	orders, err := r.store.OrdersByUser(ctx, scope.UserID)
	if err != nil {
		return "", err
	}
	if len(orders) == 0 {
		return "You have no orders yet.", nil
	}
	return ordersPayload(fmt.Sprintf("Found %d order(s).", len(orders)), orders), nil
}

func (r *Registry) getOrderDetails(ctx context.Context, scope contract.Scope, args map[string]any) (string, error) {
	orderID, err := intArg(args, "order_id")
	if err != nil {
		return "", err
	}
	order, err := r.store.OrderByUser(ctx, orderID, scope.UserID)
	if errors.Is(err, contract.ErrNotFound) {
		return "", fmt.Errorf("order %d was not found in your account", orderID)
	}
	if err != nil {
		return "", err
	}
	return orderPayload(fmt.Sprintf("Details for order %d.", orderID), order), nil
}

func (r *Registry) searchOrdersByProduct(ctx context.Context, scope contract.Scope, args map[string]any) (string, error) {
	query, err := strArg(args, "product_name")
	if err != nil {
		return "", err
	}
	orders, err := r.store.SearchOrdersByProduct(ctx, scope.UserID, query)
	if err != nil {
		return "", err
	}
	if len(orders) == 0 {
		return fmt.Sprintf("No orders contain a product matching %q.", query), nil
	}
	return ordersPayload(fmt.Sprintf("Found %d order(s) containing %q.", len(orders), query), orders), nil
}

func (r *Registry) validateOrderIDs(ctx context.Context, scope contract.Scope, args map[string]any) (string, error) {
	raw, err := strArg(args, "order_ids")
	if err != nil {
		return "", err
	}
	result, err := r.store.ValidateOrderIDs(ctx, scope.UserID, raw)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if len(result.FoundIDs) > 0 {
		fmt.Fprintf(&b, "Valid order IDs: %s.\n", joinIDs(result.FoundIDs))
	}
	if len(result.NotFoundIDs) > 0 {
		fmt.Fprintf(&b, "Not found in your account: %s.\n", joinIDs(result.NotFoundIDs))
	}
	if len(result.InvalidIDs) > 0 {
		fmt.Fprintf(&b, "Not valid order IDs: %s.\n", strings.Join(result.InvalidIDs, ", "))
	}
	if b.Len() == 0 {
		return "No order IDs were given.", nil
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (r *Registry) getRefundPolicy(args map[string]any) (string, error) {
	category, err := strArg(args, "category")
	if err != nil {
		return "", err
	}
	pol, err := r.policies.Get(category)
	if errors.Is(err, contract.ErrNotFound) {
		return "", fmt.Errorf("no policy for category %q; known categories: %s",
			category, strings.Join(r.policies.ListCategories(), ", "))
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\n\n%s", pol.Title, pol.Content), nil
}

func (r *Registry) getOrderFacts(ctx context.Context, scope contract.Scope, args map[string]any) (string, error) {
	orderID, err := intArg(args, "order_id")
	if err != nil {
		return "", err
	}
	itemID, err := intArg(args, "order_item_id")
	if err != nil {
		return "", err
	}

	facts, err := r.engine.OrderFacts(ctx, orderID, itemID, scope.UserID, scope.ThreadID)
	var elig *engine.EligibilityError
	if errors.As(err, &elig) {
		msg := fmt.Sprintf("%s - %s", elig.Code, elig.Message)
		if elig.ExistingStatus != "" {
			msg += fmt.Sprintf(" (existing request status: %s)", elig.ExistingStatus)
		}
		return "", errors.New(msg)
	}
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(facts)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Order facts:\n%s", data), nil
}

// ownOrderItem verifies the item exists and its order belongs to the caller.
// Foreign and missing items get the same message so the payload does not
// reveal whether another account's item exists.
func (r *Registry) ownOrderItem(ctx context.Context, scope contract.Scope, itemID int64) error {
	item, err := r.store.OrderItem(ctx, itemID)
	if errors.Is(err, contract.ErrNotFound) {
		return fmt.Errorf("order item %d was not found in your account", itemID)
	}
	if err != nil {
		return err
	}
	order, err := r.store.Order(ctx, item.OrderID)
	if err != nil {
		return err
	}
	if order.UserID != scope.UserID {
		return fmt.Errorf("order item %d was not found in your account", itemID)
	}
	return nil
}

func (r *Registry) calculateRefund(ctx context.Context, scope contract.Scope, args map[string]any) (string, error) {
	itemID, err := intArg(args, "order_item_id")
	if err != nil {
		return "", err
	}
	quantity, err := optQuantityArg(args)
	if err != nil {
		return "", err
	}
	if err := r.ownOrderItem(ctx, scope, itemID); err != nil {
		return "", err
	}

	calc, err := r.engine.CalculateRefund(ctx, itemID, quantity)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(calc)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\n%s", calc.Breakdown, data), nil
}

func (r *Registry) submitRefundRequest(ctx context.Context, scope contract.Scope, args map[string]any) (string, error) {
	itemID, err := intArg(args, "order_item_id")
	if err != nil {
		return "", err
	}
	refundType, err := strArg(args, "refund_type")
	if err != nil {
		return "", err
	}
	reason, err := strArg(args, "reason")
	if err != nil {
		return "", err
	}
	quantity, err := optQuantityArg(args)
	if err != nil {
		return "", err
	}
	var evidence *string
	if ev := optStrArg(args, "evidence"); ev != "" {
		evidence = &ev
	}

	if err := r.ownOrderItem(ctx, scope, itemID); err != nil {
		return "", err
	}

	// The amount is never taken from the model; it is recomputed here.
	calc, err := r.engine.CalculateRefund(ctx, itemID, quantity)
	if err != nil {
		return "", err
	}

	refund, err := r.store.CreateRefund(ctx, store.CreateRefundInput{
		OrderItemID: itemID,
		UserID:      scope.UserID,
		RefundType:  strings.ToUpper(strings.TrimSpace(refundType)),
		Reason:      reason,
		Amount:      calc.TotalRefund,
		Evidence:    evidence,
		ThreadID:    scope.ThreadID,
	})
	if errors.Is(err, contract.ErrAlreadyExists) {
		return "", fmt.Errorf("a refund request for order item %d already exists in this conversation", itemID)
	}
	if errors.Is(err, contract.ErrUnauthorized) {
		return "", fmt.Errorf("order item %d was not found in your account", itemID)
	}
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("Refund request #%d submitted for %s (%s). Status: %s.",
		refund.ID, engine.FormatAmount(refund.Amount), calc.Breakdown, refund.Status), nil
}

func (r *Registry) getUserRefunds(ctx context.Context, scope contract.Scope) (string, error) {
	refunds, err := r.store.RefundsByUser(ctx, scope.UserID, "")
	if err != nil {
		return "", err
	}
	if len(refunds) == 0 {
		return "You have no refund requests yet.", nil
	}
	data, err := json.Marshal(refunds)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Found %d refund request(s).\n%s", len(refunds), data), nil
}

func (r *Registry) raiseSupportTicket(ctx context.Context, scope contract.Scope, args map[string]any) (string, error) {
	subject, err := strArg(args, "subject")
	if err != nil {
		return "", err
	}
	orderID, err := optIntArg(args, "order_id")
	if err != nil {
		return "", err
	}
	if orderID != 0 {
		_, err := r.store.OrderByUser(ctx, orderID, scope.UserID)
		if errors.Is(err, contract.ErrNotFound) {
			return "", fmt.Errorf("order %d was not found in your account", orderID)
		}
		if err != nil {
			return "", err
		}
	}

	ticket, err := r.store.CreateTicket(ctx, store.CreateTicketInput{
		UserID:      scope.UserID,
		OrderID:     orderID,
		Title:       subject,
		Description: optStrArg(args, "description"),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Support ticket #%d created. A human agent will follow up.", ticket.ID), nil
}

func (r *Registry) checkProductStock(ctx context.Context, args map[string]any) (string, error) {
	productID, err := intArg(args, "product_id")
	if err != nil {
		return "", err
	}
	info, err := r.store.CheckStock(ctx, productID, 1)
	if errors.Is(err, contract.ErrNotFound) {
		return "", fmt.Errorf("product %d was not found", productID)
	}
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(info)
	if err != nil {
		return "", err
	}
	status := "out of stock"
	if info.Available {
		status = "in stock"
	}
	return fmt.Sprintf("%s is %s.\n<!--PRODUCT_DATA:%s-->", info.ProductName, status, data), nil
}

/* ------------------------------ payloads ------------------------------ */

func errPayload(msg string) string {
	return "Error: " + msg
}

func ordersPayload(intro string, orders []*store.Order) string {
	data, err := json.Marshal(orders)
	if err != nil {
		return errPayload(err.Error())
	}
	return fmt.Sprintf("%s\n<!--ORDER_DATA:%s-->", intro, data)
}

func orderPayload(intro string, order *store.Order) string {
	data, err := json.Marshal(order)
	if err != nil {
		return errPayload(err.Error())
	}
	return fmt.Sprintf("%s\n<!--ORDER_DATA:%s-->", intro, data)
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}

/* ------------------------------ arguments ------------------------------ */

// coerceInt accepts JSON numbers and numeric strings. Models frequently send
// IDs as strings, sometimes with a leading '#'.
func coerceInt(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case string:
		s := strings.TrimPrefix(strings.TrimSpace(n), "#")
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false
		}
		return id, true
	default:
		return 0, false
	}
}

func intArg(args map[string]any, key string) (int64, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("missing required argument %q", key)
	}
	id, ok := coerceInt(v)
	if !ok {
		return 0, fmt.Errorf("argument %q must be a whole number, got %v", key, v)
	}
	return id, nil
}

func optIntArg(args map[string]any, key string) (int64, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, nil
	}
	id, ok := coerceInt(v)
	if !ok {
		return 0, fmt.Errorf("argument %q must be a whole number, got %v", key, v)
	}
	return id, nil
}

func optQuantityArg(args map[string]any) (*int, error) {
	v, ok := args["quantity"]
	if !ok || v == nil {
		return nil, nil
	}
	n, ok := coerceInt(v)
	if !ok {
		return nil, fmt.Errorf("argument \"quantity\" must be a whole number, got %v", v)
	}
	qty := int(n)
	return &qty, nil
}

func strArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("argument %q must be a non-empty string", key)
	}
	return strings.TrimSpace(s), nil
}

func optStrArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}
