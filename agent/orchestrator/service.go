// Package orchestrator runs one dialogue turn end to end: load the thread,
// let the model call tools until it produces a final reply, persist the
// transcript, and surface the classification once the thread resolves.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/velora-commerce/refund-agent/agent/contract"
	"github.com/velora-commerce/refund-agent/agent/state"
)

var (
	ErrInvalidMessage  = errors.New("message text is empty")
	ErrInvalidThread   = errors.New("thread id is empty")
	ErrInvalidUser     = errors.New("user id must be positive")
	ErrThreadOwnership = errors.New("thread belongs to another user")
	ErrMaxRounds       = errors.New("dialogue exceeded the tool round limit")
)

const defaultMaxRounds = 10

// Config carries the per-deployment knobs; dependencies are passed to New
// directly.
type Config struct {
	SystemPrompt string
	MaxRounds    int
	Logger       zerolog.Logger
}

// Result is the outcome of one turn.
type Result struct {
	ThreadID       string
	Reply          string
	Completed      bool
	Classification *contract.Classification
}

type Service struct {
	store state.Store
	model contract.ChatModel
	tools contract.ToolDispatcher

	graphRunner compose.Runnable[GraphInput, GraphOutput]

	systemPrompt string
	maxRounds    int
	log          zerolog.Logger
	locks        *threadLocks
	now          func() time.Time
}

func New(
	store state.Store,
	model contract.ChatModel,
	tools contract.ToolDispatcher,
	cfg Config,
) (*Service, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if model == nil {
		return nil, errors.New("chat model is required")
	}
	if tools == nil {
		return nil, errors.New("tool dispatcher is required")
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		return nil, errors.New("system prompt is required")
	}

	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}

	s := &Service{
		store:        store,
		model:        model,
		tools:        tools,
		systemPrompt: cfg.SystemPrompt,
		maxRounds:    maxRounds,
		log:          cfg.Logger,
		locks:        newThreadLocks(),
		now:          time.Now,
	}

	graphRunner, err := s.compileHandleTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	s.graphRunner = graphRunner

	return s, nil
}

// HandleTurn runs one user message through the dialogue graph. Turns on the
// same thread are serialized; a second concurrent turn blocks until the
// first finishes. Each non-empty assistant message is passed to emit as it
// is produced, so callers can stream.
func (s *Service) HandleTurn(ctx context.Context, threadID string, userID int64, prompt string, emit func(content string)) (*Result, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return nil, ErrInvalidThread
	}

	s.locks.lock(threadID)
	defer s.locks.unlock(threadID)

	out, err := s.graphRunner.Invoke(ctx, GraphInput{
		ThreadID: threadID,
		UserID:   userID,
		Prompt:   prompt,
		Emit:     emit,
	})
	if err != nil {
		return nil, err
	}
	return &Result{
		ThreadID:       threadID,
		Reply:          out.Reply,
		Completed:      out.Completed,
		Classification: out.Classification,
	}, nil
}

// ClearThread drops a conversation so its thread id can be reused.
func (s *Service) ClearThread(ctx context.Context, threadID string) error {
	s.locks.lock(threadID)
	defer s.locks.unlock(threadID)
	return s.store.Clear(ctx, threadID)
}

/* ------------------------------- nodes ------------------------------- */

type GraphInput struct {
	ThreadID string
	UserID   int64
	Prompt   string
	Emit     func(content string)
}

type GraphOutput struct {
	Reply          string
	Completed      bool
	Classification *contract.Classification
}

type graphState struct {
	in    GraphInput
	conv  *state.Conversation
	reply string
}

func (s *Service) validateRequest(in GraphInput) (*graphState, error) {
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, ErrInvalidMessage
	}
	if in.UserID <= 0 {
		return nil, ErrInvalidUser
	}
	return &graphState{in: in}, nil
}

func (s *Service) loadOrCreateThread(ctx context.Context, st *graphState) (*graphState, error) {
	conv, err := s.store.Load(ctx, st.in.ThreadID)
	switch {
	case errors.Is(err, state.ErrConversationNotFound):
		conv = state.NewConversation(st.in.ThreadID, st.in.UserID, s.systemPrompt, s.now())
	case err != nil:
		return nil, err
	case conv.UserID != st.in.UserID:
		return nil, ErrThreadOwnership
	}

	conv.Append(s.now(), schema.UserMessage(st.in.Prompt))
	st.conv = conv
	return st, nil
}

func (s *Service) saveThread(ctx context.Context, st *graphState) (*graphState, error) {
	if err := s.store.Save(ctx, st.conv); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Service) finalizeReply(st *graphState) (GraphOutput, error) {
	return GraphOutput{
		Reply:          st.reply,
		Completed:      st.conv.Completed,
		Classification: st.conv.Classification,
	}, nil
}
