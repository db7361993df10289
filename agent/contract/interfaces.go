package contract

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// ChatModel is the opaque language-model boundary: full message history in,
// one assistant message out. The message may carry tool calls. A bound eino
// ToolCallingChatModel satisfies this, as do scripted fakes in tests.
type ChatModel interface {
	Generate(ctx context.Context, messages []*schema.Message) (*schema.Message, error)
}

// ToolDispatcher executes one model-requested tool call under a tenant scope
// and returns the textual payload to feed back to the model. Implementations
// must not return tool-level failures as errors; those become payload text.
// A non-nil error means the dispatcher itself is broken.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, scope Scope, call schema.ToolCall) (string, error)
}
