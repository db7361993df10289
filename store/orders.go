package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/velora-commerce/refund-agent/agent/contract"
)

// OrdersByUser returns all orders owned by the user with items, products and
// discounts loaded.
func (s *Store) OrdersByUser(ctx context.Context, userID int64) ([]*Order, error) {
	var orders []*Order
	err := s.db.NewSelect().
		Model(&orders).
		Relation("Items").
		Relation("Items.Product").
		Relation("Items.Discounts").
		Where("o.user_id = ?", userID).
		Order("o.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select orders for user=%d: %w", userID, err)
	}
	return orders, nil
}

// OrderByUser returns one order, enforcing ownership. A missing order and an
// order owned by someone else are both reported as ErrNotFound so the payload
// does not leak other tenants' order IDs.
func (s *Store) OrderByUser(ctx context.Context, orderID, userID int64) (*Order, error) {
	order := new(Order)
	err := s.db.NewSelect().
		Model(order).
		Relation("Items").
		Relation("Items.Product").
		Relation("Items.Discounts").
		Where("o.id = ?", orderID).
		Where("o.user_id = ?", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: order id=%d", contract.ErrNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("select order id=%d: %w", orderID, err)
	}
	return order, nil
}

// Order loads an order header without ownership scoping. The engine uses it
// to distinguish "order absent" from "order not yours".
func (s *Store) Order(ctx context.Context, orderID int64) (*Order, error) {
	order := new(Order)
	err := s.db.NewSelect().
		Model(order).
		Where("o.id = ?", orderID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: order id=%d", contract.ErrNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("select order id=%d: %w", orderID, err)
	}
	return order, nil
}

func (s *Store) OrderItem(ctx context.Context, itemID int64) (*OrderItem, error) {
	item := new(OrderItem)
	err := s.db.NewSelect().
		Model(item).
		Relation("Product").
		Where("oi.id = ?", itemID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: order item id=%d", contract.ErrNotFound, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("select order item id=%d: %w", itemID, err)
	}
	return item, nil
}

func (s *Store) ItemDiscounts(ctx context.Context, itemID int64) ([]*Discount, error) {
	var discounts []*Discount
	err := s.db.NewSelect().
		Model(&discounts).
		Join("JOIN order_discounts AS od ON od.discount_id = d.id").
		Where("od.order_item_id = ?", itemID).
		Order("d.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select discounts for item=%d: %w", itemID, err)
	}
	return discounts, nil
}

// SearchOrdersByProduct finds the user's orders whose items match the query
// against product title or description, with only the matching items loaded.
func (s *Store) SearchOrdersByProduct(ctx context.Context, userID int64, query string) ([]*Order, error) {
	pattern := "%" + strings.TrimSpace(query) + "%"
	var orders []*Order
	err := s.db.NewSelect().
		Model(&orders).
		Relation("Items").
		Relation("Items.Product").
		Relation("Items.Discounts").
		Where("o.user_id = ?", userID).
		Where("EXISTS (SELECT 1 FROM order_items AS oi JOIN products AS p ON p.id = oi.product_id "+
			"WHERE oi.order_id = o.id AND (p.title ILIKE ? OR p.description ILIKE ?))", pattern, pattern).
		Order("o.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("search orders for user=%d: %w", userID, err)
	}

	lowered := strings.ToLower(strings.TrimSpace(query))
	for _, order := range orders {
		matched := order.Items[:0]
		for _, item := range order.Items {
			if item.Product == nil {
				continue
			}
			title := strings.ToLower(item.Product.Title)
			desc := ""
			if item.Product.Description != nil {
				desc = strings.ToLower(*item.Product.Description)
			}
			if strings.Contains(title, lowered) || strings.Contains(desc, lowered) {
				matched = append(matched, item)
			}
		}
		order.Items = matched
	}
	return orders, nil
}

// ValidationResult classifies each identifier from a free-form list.
type ValidationResult struct {
	FoundIDs    []int64
	NotFoundIDs []int64
	InvalidIDs  []string
}

// ValidateOrderIDs parses a free-form identifier list (comma, space or
// newline separated, optional leading '#') and classifies each entry as
// found, not-found or malformed. Duplicates collapse to one entry.
func (s *Store) ValidateOrderIDs(ctx context.Context, userID int64, raw string) (*ValidationResult, error) {
	ids, invalid := ParseIDList(raw)

	result := &ValidationResult{InvalidIDs: invalid}
	if len(ids) == 0 {
		return result, nil
	}

	var owned []int64
	err := s.db.NewSelect().
		Model((*Order)(nil)).
		Column("o.id").
		Where("o.user_id = ?", userID).
		Where("o.id IN (?)", bun.In(ids)).
		Scan(ctx, &owned)
	if err != nil {
		return nil, fmt.Errorf("validate order ids for user=%d: %w", userID, err)
	}

	ownedSet := make(map[int64]struct{}, len(owned))
	for _, id := range owned {
		ownedSet[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := ownedSet[id]; ok {
			result.FoundIDs = append(result.FoundIDs, id)
		} else {
			result.NotFoundIDs = append(result.NotFoundIDs, id)
		}
	}
	return result, nil
}
