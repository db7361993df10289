package state

import (
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/uptrace/bun"

	"github.com/velora-commerce/refund-agent/agent/contract"
)

// Conversation is the persistent source-of-truth for one support thread.
// Messages holds the full dialogue transcript, tool rounds included, so a
// turn can resume exactly where the previous one stopped.
type Conversation struct {
	bun.BaseModel `bun:"table:conversation_threads,alias:ct"`

	ThreadID       string                   `bun:"thread_id,pk" json:"thread_id"`
	UserID         int64                    `bun:"user_id,notnull" json:"user_id"`
	Messages       []*schema.Message        `bun:"messages,type:jsonb" json:"messages"`
	Classification *contract.Classification `bun:"classification,type:jsonb" json:"classification,omitempty"`
	Completed      bool                     `bun:"completed,notnull,default:false" json:"completed"`
	CreatedAt      time.Time                `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt      time.Time                `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// NewConversation seeds a thread with its system prompt.
func NewConversation(threadID string, userID int64, systemPrompt string, now time.Time) *Conversation {
	return &Conversation{
		ThreadID:  threadID,
		UserID:    userID,
		Messages:  []*schema.Message{schema.SystemMessage(systemPrompt)},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append adds messages to the transcript and bumps UpdatedAt.
func (c *Conversation) Append(now time.Time, msgs ...*schema.Message) {
	c.Messages = append(c.Messages, msgs...)
	c.UpdatedAt = now
}

// Complete marks the thread resolved with its final classification.
func (c *Conversation) Complete(cl *contract.Classification, now time.Time) {
	c.Classification = cl
	c.Completed = true
	c.UpdatedAt = now
}
