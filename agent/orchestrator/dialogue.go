package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/velora-commerce/refund-agent/agent/contract"
)

// runDialogue is the model/tool loop. The model either answers with text,
// ending the turn, or requests tool calls; every tool payload is appended to
// the transcript and the model is invoked again. The loop is bounded so a
// model stuck in tool calls cannot spin forever. On exhaustion the transcript
// is persisted before the error surfaces, so the thread stays resumable.
func (s *Service) runDialogue(ctx context.Context, st *graphState) (*graphState, error) {
	scope := contract.Scope{UserID: st.in.UserID, ThreadID: st.in.ThreadID}

	for round := 1; round <= s.maxRounds; round++ {
		msg, err := s.model.Generate(ctx, st.conv.Messages)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", contract.ErrModelInvoke, err)
		}
		st.conv.Append(s.now(), msg)

		content := strings.TrimSpace(msg.Content)
		if content != "" && st.in.Emit != nil {
			st.in.Emit(content)
		}

		if len(msg.ToolCalls) == 0 {
			st.reply = content
			if cl, ok := contract.ParseClassification(content); ok {
				st.conv.Complete(cl, s.now())
				s.log.Info().
					Str("thread_id", st.in.ThreadID).
					Str("refund_type", cl.RefundType).
					Msg("thread resolved")
			}
			return st, nil
		}

		// Tool calls run sequentially in the order the model requested them.
		for _, call := range msg.ToolCalls {
			payload, err := s.tools.Dispatch(ctx, scope, call)
			if err != nil {
				return nil, err
			}
			s.log.Debug().
				Str("thread_id", st.in.ThreadID).
				Int("round", round).
				Str("tool", call.Function.Name).
				Int("payload_bytes", len(payload)).
				Msg("tool dispatched")
			st.conv.Append(s.now(), schema.ToolMessage(payload, call.ID))
		}
	}

	if err := s.store.Save(ctx, st.conv); err != nil {
		s.log.Error().Str("thread_id", st.in.ThreadID).Err(err).Msg("save after round limit failed")
	}
	return nil, fmt.Errorf("%w: %d rounds", ErrMaxRounds, s.maxRounds)
}
