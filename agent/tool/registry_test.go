package tool

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/velora-commerce/refund-agent/agent/contract"
	"github.com/velora-commerce/refund-agent/agent/engine"
	"github.com/velora-commerce/refund-agent/agent/policy"
	"github.com/velora-commerce/refund-agent/store"
)

type fakeBackend struct {
	ordersByUserFn    func(userID int64) ([]*store.Order, error)
	orderByUserFn     func(orderID, userID int64) (*store.Order, error)
	orderFn           func(orderID int64) (*store.Order, error)
	orderItemFn       func(itemID int64) (*store.OrderItem, error)
	searchFn          func(userID int64, query string) ([]*store.Order, error)
	validateFn        func(userID int64, raw string) (*store.ValidationResult, error)
	createRefundFn    func(in store.CreateRefundInput) (*store.Refund, error)
	refundsByUserFn   func(userID int64, threadID string) ([]*store.Refund, error)
	createTicketFn    func(in store.CreateTicketInput) (*store.Ticket, error)
	checkStockFn      func(productID int64, quantity int) (*store.StockInfo, error)
	calculateRefundFn func(itemID int64, quantity *int) (*engine.RefundCalculation, error)
	orderFactsFn      func(orderID, itemID, userID int64, threadID string) (*engine.OrderFacts, error)
}

func (f *fakeBackend) OrdersByUser(_ context.Context, userID int64) ([]*store.Order, error) {
	return f.ordersByUserFn(userID)
}

func (f *fakeBackend) OrderByUser(_ context.Context, orderID, userID int64) (*store.Order, error) {
	return f.orderByUserFn(orderID, userID)
}

func (f *fakeBackend) Order(_ context.Context, orderID int64) (*store.Order, error) {
	return f.orderFn(orderID)
}

func (f *fakeBackend) OrderItem(_ context.Context, itemID int64) (*store.OrderItem, error) {
	return f.orderItemFn(itemID)
}

func (f *fakeBackend) SearchOrdersByProduct(_ context.Context, userID int64, query string) ([]*store.Order, error) {
	return f.searchFn(userID, query)
}

func (f *fakeBackend) ValidateOrderIDs(_ context.Context, userID int64, raw string) (*store.ValidationResult, error) {
	return f.validateFn(userID, raw)
}

func (f *fakeBackend) CreateRefund(_ context.Context, in store.CreateRefundInput) (*store.Refund, error) {
	return f.createRefundFn(in)
}

func (f *fakeBackend) RefundsByUser(_ context.Context, userID int64, threadID string) ([]*store.Refund, error) {
	return f.refundsByUserFn(userID, threadID)
}

func (f *fakeBackend) CreateTicket(_ context.Context, in store.CreateTicketInput) (*store.Ticket, error) {
	return f.createTicketFn(in)
}

func (f *fakeBackend) CheckStock(_ context.Context, productID int64, quantity int) (*store.StockInfo, error) {
	return f.checkStockFn(productID, quantity)
}

func (f *fakeBackend) CalculateRefund(_ context.Context, itemID int64, quantity *int) (*engine.RefundCalculation, error) {
	return f.calculateRefundFn(itemID, quantity)
}

func (f *fakeBackend) OrderFacts(_ context.Context, orderID, itemID, userID int64, threadID string) (*engine.OrderFacts, error) {
	return f.orderFactsFn(orderID, itemID, userID, threadID)
}

// ownsItem wires the item and order lookups so every item resolves to an
// order owned by the given user.
func (f *fakeBackend) ownsItem(ownerID int64) {
	f.orderItemFn = func(itemID int64) (*store.OrderItem, error) {
		return &store.OrderItem{ID: itemID, OrderID: 100, Quantity: 2, UnitPrice: 10000}, nil
	}
	f.orderFn = func(orderID int64) (*store.Order, error) {
		return &store.Order{ID: orderID, UserID: ownerID, Status: store.OrderDelivered}, nil
	}
}

func newTestRegistry(t *testing.T, backend *fakeBackend) *Registry {
	t.Helper()
	policies, err := policy.NewStore()
	if err != nil {
		t.Fatalf("policy.NewStore() error = %v", err)
	}
	return NewRegistry(backend, backend, policies, zerolog.Nop())
}

func toolCall(name, args string) schema.ToolCall {
	return schema.ToolCall{
		ID:   "call-1",
		Type: "function",
		Function: schema.FunctionCall{
			Name:      name,
			Arguments: args,
		},
	}
}

var testScope = contract.Scope{UserID: 7, ThreadID: "thread-1"}

func TestDispatchGetUserOrders(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		ordersByUserFn: func(userID int64) ([]*store.Order, error) {
			if userID != 7 {
				t.Errorf("userID = %d, want 7", userID)
			}
			return []*store.Order{{ID: 100, UserID: 7, Status: store.OrderDelivered}}, nil
		},
	}
	registry := newTestRegistry(t, backend)

	payload, err := registry.Dispatch(context.Background(), testScope, toolCall(ToolGetUserOrders, "{}"))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !strings.Contains(payload, "Found 1 order(s)") {
		t.Errorf("payload missing intro: %q", payload)
	}
	if !strings.Contains(payload, "<!--ORDER_DATA:") || !strings.Contains(payload, `"id":100`) {
		t.Errorf("payload missing order data block: %q", payload)
	}
}

func TestDispatchGetOrderDetailsNotFound(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		orderByUserFn: func(orderID, userID int64) (*store.Order, error) {
			return nil, fmt.Errorf("%w: order %d", contract.ErrNotFound, orderID)
		},
	}
	registry := newTestRegistry(t, backend)

	payload, err := registry.Dispatch(context.Background(), testScope, toolCall(ToolGetOrderDetails, `{"order_id": 42}`))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !strings.HasPrefix(payload, "Error: ") || !strings.Contains(payload, "order 42") {
		t.Errorf("payload = %q, want not-found error payload", payload)
	}
}

func TestDispatchCoercesStringIDs(t *testing.T) {
	t.Parallel()

	var gotID int64
	backend := &fakeBackend{
		orderByUserFn: func(orderID, userID int64) (*store.Order, error) {
			gotID = orderID
			return &store.Order{ID: orderID, UserID: userID}, nil
		},
	}
	registry := newTestRegistry(t, backend)

	_, err := registry.Dispatch(context.Background(), testScope, toolCall(ToolGetOrderDetails, `{"order_id": "#123"}`))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if gotID != 123 {
		t.Errorf("orderID = %d, want 123", gotID)
	}
}

func TestDispatchNonNumericIDBecomesErrorPayload(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, &fakeBackend{})

	payload, err := registry.Dispatch(context.Background(), testScope, toolCall(ToolGetOrderDetails, `{"order_id": "abc"}`))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !strings.HasPrefix(payload, "Error: ") || !strings.Contains(payload, "order_id") {
		t.Errorf("payload = %q, want argument error payload", payload)
	}
}

func TestDispatchMalformedArguments(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, &fakeBackend{})

	payload, err := registry.Dispatch(context.Background(), testScope, toolCall(ToolGetOrderDetails, `{"order_id":`))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !strings.HasPrefix(payload, "Error: malformed arguments") {
		t.Errorf("payload = %q, want malformed-arguments payload", payload)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, &fakeBackend{})

	payload, err := registry.Dispatch(context.Background(), testScope, toolCall("transfer_money", "{}"))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !strings.Contains(payload, "unknown tool") {
		t.Errorf("payload = %q, want unknown-tool payload", payload)
	}
}

func TestDispatchValidateOrderIDs(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		validateFn: func(userID int64, raw string) (*store.ValidationResult, error) {
			return &store.ValidationResult{
				FoundIDs:    []int64{123},
				NotFoundIDs: []int64{456},
				InvalidIDs:  []string{"abc"},
			}, nil
		},
	}
	registry := newTestRegistry(t, backend)

	payload, err := registry.Dispatch(context.Background(), testScope,
		toolCall(ToolValidateOrderIDs, `{"order_ids": "123, 456, abc"}`))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	for _, want := range []string{"Valid order IDs: 123", "Not found in your account: 456", "Not valid order IDs: abc"} {
		if !strings.Contains(payload, want) {
			t.Errorf("payload %q missing %q", payload, want)
		}
	}
}

func TestDispatchGetRefundPolicy(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, &fakeBackend{})

	payload, err := registry.Dispatch(context.Background(), testScope,
		toolCall(ToolGetRefundPolicy, `{"category": "damaged_item"}`))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !strings.Contains(payload, "Damaged or Defective Item") {
		t.Errorf("payload = %q, want policy text", payload)
	}
}

func TestDispatchGetRefundPolicyUnknownCategory(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, &fakeBackend{})

	payload, err := registry.Dispatch(context.Background(), testScope,
		toolCall(ToolGetRefundPolicy, `{"category": "FREE_MONEY"}`))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !strings.HasPrefix(payload, "Error: ") || !strings.Contains(payload, "DAMAGED_ITEM") {
		t.Errorf("payload = %q, want error listing known categories", payload)
	}
}

func TestDispatchGetOrderFactsEligibilityError(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		orderFactsFn: func(orderID, itemID, userID int64, threadID string) (*engine.OrderFacts, error) {
			if threadID != "thread-1" {
				t.Errorf("threadID = %q, want thread-1", threadID)
			}
			return nil, &engine.EligibilityError{
				Code:           engine.CodeAlreadyRefunded,
				Message:        "a refund is already PENDING for this item in this conversation",
				ExistingStatus: store.RefundPending,
			}
		},
	}
	registry := newTestRegistry(t, backend)

	payload, err := registry.Dispatch(context.Background(), testScope,
		toolCall(ToolGetOrderFacts, `{"order_id": 100, "order_item_id": 200}`))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !strings.Contains(payload, engine.CodeAlreadyRefunded) {
		t.Errorf("payload = %q, want code %s", payload, engine.CodeAlreadyRefunded)
	}
	if !strings.Contains(payload, "existing request status: PENDING") {
		t.Errorf("payload = %q, want existing status note", payload)
	}
}

func TestDispatchSubmitRefundRequestComputesAmount(t *testing.T) {
	t.Parallel()

	var gotInput store.CreateRefundInput
	backend := &fakeBackend{
		calculateRefundFn: func(itemID int64, quantity *int) (*engine.RefundCalculation, error) {
			return &engine.RefundCalculation{Quantity: 2, TotalRefund: 20000, Breakdown: "Item: ₹200.00 + Tax: ₹20.00 - Discounts: ₹20.00 (10% off) = ₹200.00"}, nil
		},
		createRefundFn: func(in store.CreateRefundInput) (*store.Refund, error) {
			gotInput = in
			return &store.Refund{ID: 55, OrderItemID: in.OrderItemID, Status: store.RefundPending, Amount: in.Amount}, nil
		},
	}
	backend.ownsItem(7)
	registry := newTestRegistry(t, backend)

	// The model claims an inflated amount; it must be ignored.
	payload, err := registry.Dispatch(context.Background(), testScope, toolCall(ToolSubmitRefundRequest,
		`{"order_item_id": 200, "refund_type": "damaged_item", "reason": "arrived broken", "amount": 999999}`))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if gotInput.Amount != 20000 {
		t.Errorf("Amount = %d, want 20000 from the engine", gotInput.Amount)
	}
	if gotInput.UserID != 7 {
		t.Errorf("UserID = %d, want 7 from the scope", gotInput.UserID)
	}
	if gotInput.RefundType != "DAMAGED_ITEM" {
		t.Errorf("RefundType = %q, want DAMAGED_ITEM", gotInput.RefundType)
	}
	if gotInput.ThreadID != "thread-1" {
		t.Errorf("ThreadID = %q, want thread-1", gotInput.ThreadID)
	}
	if !strings.Contains(payload, "#55") || !strings.Contains(payload, store.RefundPending) {
		t.Errorf("payload = %q, want confirmation with id and status", payload)
	}
}

func TestDispatchSubmitRefundRequestDuplicate(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		calculateRefundFn: func(itemID int64, quantity *int) (*engine.RefundCalculation, error) {
			return &engine.RefundCalculation{TotalRefund: 1000, Breakdown: "Item: ₹10.00 + Tax: ₹0.00 = ₹10.00"}, nil
		},
		createRefundFn: func(in store.CreateRefundInput) (*store.Refund, error) {
			return nil, fmt.Errorf("%w: refund for item %d", contract.ErrAlreadyExists, in.OrderItemID)
		},
	}
	backend.ownsItem(7)
	registry := newTestRegistry(t, backend)

	payload, err := registry.Dispatch(context.Background(), testScope, toolCall(ToolSubmitRefundRequest,
		`{"order_item_id": 200, "refund_type": "OTHER", "reason": "change of mind"}`))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !strings.HasPrefix(payload, "Error: ") || !strings.Contains(payload, "already exists") {
		t.Errorf("payload = %q, want duplicate error payload", payload)
	}
}

func TestDispatchSubmitRefundRequestForeignItem(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		createRefundFn: func(in store.CreateRefundInput) (*store.Refund, error) {
			t.Errorf("CreateRefund was called for a foreign item: %+v", in)
			return nil, nil
		},
	}
	// Item 200 belongs to user 42, the scope is user 7.
	backend.ownsItem(42)
	registry := newTestRegistry(t, backend)

	payload, err := registry.Dispatch(context.Background(), testScope, toolCall(ToolSubmitRefundRequest,
		`{"order_item_id": 200, "refund_type": "DAMAGED_ITEM", "reason": "arrived broken"}`))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !strings.HasPrefix(payload, "Error: ") || !strings.Contains(payload, "not found in your account") {
		t.Errorf("payload = %q, want not-in-account error payload", payload)
	}
}

func TestDispatchCalculateRefundForeignItem(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		calculateRefundFn: func(itemID int64, quantity *int) (*engine.RefundCalculation, error) {
			t.Errorf("CalculateRefund was called for a foreign item %d", itemID)
			return nil, nil
		},
	}
	backend.ownsItem(42)
	registry := newTestRegistry(t, backend)

	payload, err := registry.Dispatch(context.Background(), testScope,
		toolCall(ToolCalculateRefund, `{"order_item_id": 200}`))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !strings.HasPrefix(payload, "Error: ") || !strings.Contains(payload, "not found in your account") {
		t.Errorf("payload = %q, want not-in-account error payload", payload)
	}
}

func TestDispatchGetUserRefunds(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		refundsByUserFn: func(userID int64, threadID string) ([]*store.Refund, error) {
			if userID != 7 {
				t.Errorf("userID = %d, want 7", userID)
			}
			if threadID != "" {
				t.Errorf("threadID = %q, want all threads", threadID)
			}
			return []*store.Refund{{ID: 55, OrderItemID: 200, Status: store.RefundPending, Amount: 20000}}, nil
		},
	}
	registry := newTestRegistry(t, backend)

	payload, err := registry.Dispatch(context.Background(), testScope, toolCall(ToolGetUserRefunds, "{}"))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !strings.Contains(payload, "Found 1 refund request(s)") || !strings.Contains(payload, `"id":55`) {
		t.Errorf("payload = %q, want refund listing", payload)
	}
}

func TestDispatchGetUserRefundsEmpty(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		refundsByUserFn: func(userID int64, threadID string) ([]*store.Refund, error) {
			return nil, nil
		},
	}
	registry := newTestRegistry(t, backend)

	payload, err := registry.Dispatch(context.Background(), testScope, toolCall(ToolGetUserRefunds, "{}"))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if payload != "You have no refund requests yet." {
		t.Errorf("payload = %q", payload)
	}
}

func TestDispatchRaiseSupportTicket(t *testing.T) {
	t.Parallel()

	var gotInput store.CreateTicketInput
	backend := &fakeBackend{
		orderByUserFn: func(orderID, userID int64) (*store.Order, error) {
			return &store.Order{ID: orderID, UserID: userID}, nil
		},
		createTicketFn: func(in store.CreateTicketInput) (*store.Ticket, error) {
			gotInput = in
			return &store.Ticket{ID: 9, UserID: in.UserID, OrderID: in.OrderID, Title: in.Title}, nil
		},
	}
	registry := newTestRegistry(t, backend)

	payload, err := registry.Dispatch(context.Background(), testScope, toolCall(ToolRaiseSupportTicket,
		`{"subject": "refund denied, requesting manager review", "order_id": 100}`))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if gotInput.UserID != 7 || gotInput.OrderID != 100 {
		t.Errorf("ticket input = %+v, want user 7 order 100", gotInput)
	}
	if !strings.Contains(payload, "#9") {
		t.Errorf("payload = %q, want ticket id", payload)
	}
}

func TestDispatchRaiseSupportTicketForeignOrder(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		orderByUserFn: func(orderID, userID int64) (*store.Order, error) {
			return nil, fmt.Errorf("%w: order %d", contract.ErrNotFound, orderID)
		},
		createTicketFn: func(in store.CreateTicketInput) (*store.Ticket, error) {
			t.Errorf("CreateTicket was called for a foreign order: %+v", in)
			return nil, nil
		},
	}
	registry := newTestRegistry(t, backend)

	payload, err := registry.Dispatch(context.Background(), testScope, toolCall(ToolRaiseSupportTicket,
		`{"subject": "refund help", "order_id": 500}`))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !strings.HasPrefix(payload, "Error: ") || !strings.Contains(payload, "not found in your account") {
		t.Errorf("payload = %q, want not-in-account error payload", payload)
	}
}

func TestDispatchCheckProductStock(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		checkStockFn: func(productID int64, quantity int) (*store.StockInfo, error) {
			return &store.StockInfo{ProductID: productID, ProductName: "Aurora Lamp", Tracked: true, InStock: 3, Available: true}, nil
		},
	}
	registry := newTestRegistry(t, backend)

	payload, err := registry.Dispatch(context.Background(), testScope,
		toolCall(ToolCheckProductStock, `{"product_id": 1}`))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !strings.Contains(payload, "Aurora Lamp is in stock") {
		t.Errorf("payload = %q, want stock summary", payload)
	}
	if !strings.Contains(payload, "<!--PRODUCT_DATA:") {
		t.Errorf("payload = %q, want product data block", payload)
	}
}

func TestInfosCoverEveryDispatchableTool(t *testing.T) {
	t.Parallel()

	names := map[string]bool{}
	for _, info := range Infos() {
		if info.Name == "" || info.Desc == "" {
			t.Errorf("tool info %+v has empty name or description", info)
		}
		if names[info.Name] {
			t.Errorf("duplicate tool name %s", info.Name)
		}
		names[info.Name] = true
	}

	want := []string{
		ToolGetUserOrders, ToolGetOrderDetails, ToolSearchOrdersByProduct,
		ToolValidateOrderIDs, ToolGetRefundPolicy, ToolGetGeneralPolicyTerms,
		ToolGetOrderFacts, ToolCalculateRefund, ToolSubmitRefundRequest,
		ToolGetUserRefunds, ToolRaiseSupportTicket, ToolCheckProductStock,
	}
	if len(names) != len(want) {
		t.Fatalf("Infos() has %d tools, want %d", len(names), len(want))
	}
	for _, name := range want {
		if !names[name] {
			t.Errorf("Infos() missing %s", name)
		}
	}
}
