package store

import (
	"context"
	"fmt"
	"time"
)

type CreateTicketInput struct {
	UserID      int64
	OrderID     int64
	Title       string
	Description string
}

// CreateTicket records an escalation for human review. No further lifecycle
// is modeled here.
func (s *Store) CreateTicket(ctx context.Context, in CreateTicketInput) (*Ticket, error) {
	ticket := &Ticket{
		UserID:    in.UserID,
		OrderID:   in.OrderID,
		Title:     in.Title,
		CreatedAt: time.Now().UTC(),
	}
	if in.Description != "" {
		ticket.Description = &in.Description
	}
	if _, err := s.db.NewInsert().Model(ticket).Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert ticket for order=%d: %w", in.OrderID, err)
	}
	return ticket, nil
}

func (s *Store) TicketsByUser(ctx context.Context, userID int64) ([]*Ticket, error) {
	var tickets []*Ticket
	err := s.db.NewSelect().
		Model(&tickets).
		Where("t.user_id = ?", userID).
		Order("t.id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select tickets for user=%d: %w", userID, err)
	}
	return tickets, nil
}
