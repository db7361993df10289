package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/velora-commerce/refund-agent/agent/orchestrator"
	"github.com/velora-commerce/refund-agent/agent/state"
)

type chatRequest struct {
	ThreadID string `json:"thread_id"`
	UserID   int64  `json:"user_id" binding:"required"`
	Prompt   string `json:"prompt" binding:"required"`
}

// chatEvent is one NDJSON line after the thread-id preamble.
type chatEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func (s *Server) handleHealthcheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleChat streams a turn. The first line is `{"thread_id":"..."}`; each
// assistant message follows as `{"type":"message","content":"..."}` and a
// failure ends the stream with a `{"type":"error",...}` line. The HTTP status
// is already committed by then, so errors ride inside the body.
func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and prompt are required"})
		return
	}

	threadID := strings.TrimSpace(req.ThreadID)
	if threadID == "" {
		threadID = uuid.NewString()
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")

	enc := json.NewEncoder(c.Writer)
	writeLine := func(v any) {
		if err := enc.Encode(v); err != nil {
			return
		}
		c.Writer.Flush()
	}

	writeLine(gin.H{"thread_id": threadID})

	result, err := s.svc.HandleTurn(c.Request.Context(), threadID, req.UserID, req.Prompt, func(content string) {
		writeLine(chatEvent{Type: "message", Content: content})
	})
	if err != nil {
		s.log.Error().
			Str("thread_id", threadID).
			Int64("user_id", req.UserID).
			Err(err).
			Msg("chat turn failed")
		writeLine(chatEvent{Type: "error", Content: clientError(err)})
		return
	}

	if result.Completed {
		s.log.Info().
			Str("thread_id", threadID).
			Str("refund_type", result.Classification.RefundType).
			Msg("chat thread completed")
	}
}

func (s *Server) handleClearThread(c *gin.Context) {
	threadID := c.Param("thread_id")
	if err := s.svc.ClearThread(c.Request.Context(), threadID); err != nil {
		if errors.Is(err, state.ErrInvalidThread) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "thread_id is required"})
			return
		}
		s.log.Error().Str("thread_id", threadID).Err(err).Msg("clear thread failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear thread"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"thread_id": threadID, "cleared": true})
}

// clientError keeps backend details out of client-facing messages.
func clientError(err error) string {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidMessage),
		errors.Is(err, orchestrator.ErrInvalidUser),
		errors.Is(err, orchestrator.ErrInvalidThread):
		return err.Error()
	case errors.Is(err, orchestrator.ErrThreadOwnership):
		return "this conversation belongs to another user"
	case errors.Is(err, orchestrator.ErrMaxRounds):
		return "the assistant could not finish this request; please try again"
	default:
		return "something went wrong handling your message"
	}
}
