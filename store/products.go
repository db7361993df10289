package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/velora-commerce/refund-agent/agent/contract"
)

func (s *Store) Product(ctx context.Context, productID int64) (*Product, error) {
	product := new(Product)
	err := s.db.NewSelect().
		Model(product).
		Where("p.id = ?", productID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: product id=%d", contract.ErrNotFound, productID)
	}
	if err != nil {
		return nil, fmt.Errorf("select product id=%d: %w", productID, err)
	}
	return product, nil
}

// StockInfo is the read side of replacement eligibility.
type StockInfo struct {
	ProductID   int64
	ProductName string
	Tracked     bool
	InStock     int
	Available   bool
}

// CheckStock reports whether the requested quantity can be served. Products
// without a tracked quantity are treated as always available.
func (s *Store) CheckStock(ctx context.Context, productID int64, quantity int) (*StockInfo, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", contract.ErrInvalidArgument)
	}
	product, err := s.Product(ctx, productID)
	if err != nil {
		return nil, err
	}

	info := &StockInfo{
		ProductID:   product.ID,
		ProductName: product.Title,
	}
	if product.Quantity == nil {
		info.Available = true
		return info, nil
	}
	info.Tracked = true
	info.InStock = *product.Quantity
	info.Available = *product.Quantity >= quantity
	return info, nil
}

// ReserveStock atomically decrements stock if enough is available. Returns
// false when the decrement would go negative; untracked products always
// succeed.
func (s *Store) ReserveStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, fmt.Errorf("%w: quantity must be positive", contract.ErrInvalidArgument)
	}
	res, err := s.db.NewUpdate().
		Model((*Product)(nil)).
		Set("quantity = quantity - ?", quantity).
		Where("p.id = ?", productID).
		Where("p.quantity IS NULL OR p.quantity >= ?", quantity).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("reserve stock product=%d: %w", productID, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// RestoreStock returns reserved units, e.g. when a replacement is cancelled.
func (s *Store) RestoreStock(ctx context.Context, productID int64, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", contract.ErrInvalidArgument)
	}
	_, err := s.db.NewUpdate().
		Model((*Product)(nil)).
		Set("quantity = quantity + ?", quantity).
		Where("p.id = ?", productID).
		Where("p.quantity IS NOT NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("restore stock product=%d: %w", productID, err)
	}
	return nil
}
