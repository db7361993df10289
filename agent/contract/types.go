package contract

import (
	"encoding/json"
	"strings"
)

// Scope binds a tool invocation to the requesting tenant. The model is never
// trusted to assert identity; the orchestrator stamps the scope on every
// dispatch.
type Scope struct {
	UserID   int64  `json:"user_id"`
	ThreadID string `json:"thread_id"`
}

// Classification is the terminal payload the dialogue loop recognizes in a
// plain-text model response. Both fields must be non-empty for the thread to
// be marked complete.
type Classification struct {
	RefundType string `json:"refund_type"`
	Reason     string `json:"reason"`
}

// ParseClassification attempts to read a model reply as a classification
// payload. Replies that are not a JSON object with both fields set simply
// leave the conversation open.
func ParseClassification(content string) (*Classification, bool) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	var c Classification
	if err := json.Unmarshal([]byte(trimmed), &c); err != nil {
		return nil, false
	}
	if strings.TrimSpace(c.RefundType) == "" || strings.TrimSpace(c.Reason) == "" {
		return nil, false
	}
	return &c, true
}
