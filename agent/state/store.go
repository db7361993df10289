package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNilConversation      = errors.New("conversation is nil")
	ErrInvalidThread        = errors.New("thread id is empty")
)

// Store is the persistence contract used by the orchestrator.
type Store interface {
	Load(ctx context.Context, threadID string) (*Conversation, error)
	Save(ctx context.Context, conv *Conversation) error
	Clear(ctx context.Context, threadID string) error
}

// PostgresStore persists conversations in Postgres through bun. One row per
// thread; the transcript lives in a jsonb column and is replaced wholesale
// on save.
type PostgresStore struct {
	db bun.IDB
}

func NewPostgresStore(db bun.IDB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Load(ctx context.Context, threadID string) (*Conversation, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return nil, ErrInvalidThread
	}

	conv := new(Conversation)
	err := s.db.NewSelect().
		Model(conv).
		Where("ct.thread_id = ?", threadID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", threadID, err)
	}
	return conv, nil
}

func (s *PostgresStore) Save(ctx context.Context, conv *Conversation) error {
	if conv == nil {
		return ErrNilConversation
	}
	if strings.TrimSpace(conv.ThreadID) == "" {
		return ErrInvalidThread
	}

	conv.UpdatedAt = time.Now().UTC()
	_, err := s.db.NewInsert().
		Model(conv).
		On("CONFLICT (thread_id) DO UPDATE").
		Set("messages = EXCLUDED.messages").
		Set("classification = EXCLUDED.classification").
		Set("completed = EXCLUDED.completed").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save conversation %s: %w", conv.ThreadID, err)
	}
	return nil
}

// Clear removes a thread. Clearing an unknown thread is not an error.
func (s *PostgresStore) Clear(ctx context.Context, threadID string) error {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return ErrInvalidThread
	}

	_, err := s.db.NewDelete().
		Model((*Conversation)(nil)).
		Where("thread_id = ?", threadID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("clear conversation %s: %w", threadID, err)
	}
	return nil
}
