package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/velora-commerce/refund-agent/agent/contract"
)

type CreateRefundInput struct {
	OrderItemID int64
	UserID      int64
	RefundType  string
	Reason      string
	Amount      int64
	Evidence    *string
	ThreadID    string
}

// CreateRefund inserts a PENDING refund record. The duplicate check, the
// ownership check, and the insert run in one transaction with the item row
// locked, so two concurrent turns on the same thread cannot both pass the
// check and a refund can never attach to another user's item.
func (s *Store) CreateRefund(ctx context.Context, in CreateRefundInput) (*Refund, error) {
	taxonomyID, err := s.TaxonomyID(ctx, in.RefundType)
	if err != nil {
		return nil, err
	}

	var created *Refund
	err = s.db.RunInTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(ctx context.Context, tx bun.Tx) error {
		item := new(OrderItem)
		err := tx.NewSelect().
			Model(item).
			Where("oi.id = ?", in.OrderItemID).
			For("UPDATE").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: order item id=%d", contract.ErrNotFound, in.OrderItemID)
		}
		if err != nil {
			return fmt.Errorf("lock order item id=%d: %w", in.OrderItemID, err)
		}

		order := new(Order)
		err = tx.NewSelect().
			Model(order).
			Column("o.user_id").
			Where("o.id = ?", item.OrderID).
			Scan(ctx)
		if err != nil {
			return fmt.Errorf("select order id=%d: %w", item.OrderID, err)
		}
		if order.UserID != in.UserID {
			return fmt.Errorf("%w: order item id=%d", contract.ErrUnauthorized, in.OrderItemID)
		}

		exists, err := tx.NewSelect().
			Model((*Refund)(nil)).
			Where("r.order_item_id = ?", in.OrderItemID).
			Where("r.thread_id = ?", in.ThreadID).
			Where("r.status != ?", RefundRejected).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("check existing refund for item=%d: %w", in.OrderItemID, err)
		}
		if exists {
			return fmt.Errorf("%w: refund for item=%d in this conversation", contract.ErrAlreadyExists, in.OrderItemID)
		}

		threadID := in.ThreadID
		refund := &Refund{
			OrderItemID: in.OrderItemID,
			TaxonomyID:  taxonomyID,
			Reason:      in.Reason,
			Status:      RefundPending,
			Amount:      in.Amount,
			Evidence:    in.Evidence,
			ThreadID:    &threadID,
			CreatedAt:   time.Now().UTC(),
		}
		if _, err := tx.NewInsert().Model(refund).Exec(ctx); err != nil {
			return fmt.Errorf("insert refund for item=%d: %w", in.OrderItemID, err)
		}
		created = refund
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ActiveRefund returns the latest non-REJECTED refund for an item within a
// thread, or nil when none exists.
func (s *Store) ActiveRefund(ctx context.Context, itemID int64, threadID string) (*Refund, error) {
	refund := new(Refund)
	err := s.db.NewSelect().
		Model(refund).
		Where("r.order_item_id = ?", itemID).
		Where("r.thread_id = ?", threadID).
		Where("r.status != ?", RefundRejected).
		Order("r.created_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select refund for item=%d thread=%s: %w", itemID, threadID, err)
	}
	return refund, nil
}

// RefundsByUser lists a user's refund requests, newest first, optionally
// limited to one thread.
func (s *Store) RefundsByUser(ctx context.Context, userID int64, threadID string) ([]*Refund, error) {
	q := s.db.NewSelect().
		Model((*Refund)(nil)).
		Join("JOIN order_items AS oi ON oi.id = r.order_item_id").
		Join("JOIN orders AS o ON o.id = oi.order_id").
		Where("o.user_id = ?", userID).
		Order("r.created_at DESC")
	if threadID != "" {
		q = q.Where("r.thread_id = ?", threadID)
	}
	var refunds []*Refund
	if err := q.Scan(ctx, &refunds); err != nil {
		return nil, fmt.Errorf("select refunds for user=%d: %w", userID, err)
	}
	return refunds, nil
}

func (s *Store) ApproveRefund(ctx context.Context, refundID int64) error {
	return s.setRefundStatus(ctx, refundID, RefundApproved, "")
}

func (s *Store) RejectRefund(ctx context.Context, refundID int64, rejectionReason string) error {
	return s.setRefundStatus(ctx, refundID, RefundRejected, rejectionReason)
}

// setRefundStatus transitions a PENDING refund. Already-processed refunds are
// left untouched so a rejected request cannot later flip to approved.
func (s *Store) setRefundStatus(ctx context.Context, refundID int64, status, note string) error {
	q := s.db.NewUpdate().
		Model((*Refund)(nil)).
		Set("status = ?", status).
		Set("processed_at = now()").
		Where("r.id = ?", refundID).
		Where("r.status = ?", RefundPending)
	if note != "" {
		q = q.Set("reason = reason || ' | REJECTED: ' || ?", note)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("update refund id=%d: %w", refundID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: pending refund id=%d", contract.ErrNotFound, refundID)
	}
	return nil
}

func (s *Store) Taxonomy(ctx context.Context) ([]*TaxonomyEntry, error) {
	var entries []*TaxonomyEntry
	err := s.db.NewSelect().
		Model(&entries).
		Order("rt.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select refund taxonomy: %w", err)
	}
	return entries, nil
}

func (s *Store) TaxonomyID(ctx context.Context, reason string) (int64, error) {
	entry := new(TaxonomyEntry)
	err := s.db.NewSelect().
		Model(entry).
		Where("rt.reason = ?", reason).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: refund type %q", contract.ErrInvalidArgument, reason)
	}
	if err != nil {
		return 0, fmt.Errorf("select taxonomy reason=%q: %w", reason, err)
	}
	return entry.ID, nil
}
