// Package openrouter adapts the OpenAI SDK to OpenRouter's API surface and
// exposes it behind the contract.ChatModel interface.
package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/velora-commerce/refund-agent/agent/contract"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int64         `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float64       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`
}

// NewClient builds an OpenAI SDK client pointed at OpenRouter.
func NewClient(cfg Config) (*openaisdk.Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("openrouter: api key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if trimmed := strings.TrimRight(cfg.BaseURL, "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}

	// OpenRouter attribution headers.
	if cfg.SiteURL != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", cfg.SiteURL))
	}
	if cfg.SiteName != "" {
		opts = append(opts, option.WithHeader("X-Title", cfg.SiteName))
	}

	client := openaisdk.NewClient(opts...)
	return &client, nil
}

// ChatModel is a tool-calling chat model bound to a fixed tool set.
type ChatModel struct {
	client *openaisdk.Client
	cfg    Config
	tools  []openaisdk.ChatCompletionToolParam
}

var _ contract.ChatModel = (*ChatModel)(nil)

// NewChatModel binds the given tools to a model. The tool set is fixed for
// the lifetime of the value.
func NewChatModel(cfg Config, infos []*schema.ToolInfo) (*ChatModel, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("openrouter: model name is required")
	}

	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	tools, err := convertTools(infos)
	if err != nil {
		return nil, err
	}

	return &ChatModel{client: client, cfg: cfg, tools: tools}, nil
}

// Generate runs one chat completion over the full transcript.
func (m *ChatModel) Generate(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	params := openaisdk.ChatCompletionNewParams{
		Model:               m.cfg.Model,
		Temperature:         openaisdk.Float(m.cfg.Temperature),
		MaxCompletionTokens: openaisdk.Int(m.cfg.MaxCompletionToken),
		Tools:               m.tools,
	}

	converted, err := convertMessages(messages)
	if err != nil {
		return nil, err
	}
	params.Messages = converted

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrUpstreamUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: completion returned no choices", contract.ErrUpstreamUnavailable)
	}

	return convertResponse(resp.Choices[0].Message), nil
}

func convertMessages(messages []*schema.Message) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case schema.System:
			out = append(out, openaisdk.SystemMessage(msg.Content))
		case schema.User:
			out = append(out, openaisdk.UserMessage(msg.Content))
		case schema.Tool:
			out = append(out, openaisdk.ToolMessage(msg.Content, msg.ToolCallID))
		case schema.Assistant:
			out = append(out, assistantMessage(msg))
		default:
			return nil, fmt.Errorf("unsupported message role %q", msg.Role)
		}
	}
	return out, nil
}

func assistantMessage(msg *schema.Message) openaisdk.ChatCompletionMessageParamUnion {
	assistant := openaisdk.ChatCompletionAssistantMessageParam{}
	if msg.Content != "" {
		assistant.Content = openaisdk.ChatCompletionAssistantMessageParamContentUnion{
			OfString: openaisdk.String(msg.Content),
		}
	}
	for _, call := range msg.ToolCalls {
		assistant.ToolCalls = append(assistant.ToolCalls, openaisdk.ChatCompletionMessageToolCallParam{
			ID: call.ID,
			Function: openaisdk.ChatCompletionMessageToolCallFunctionParam{
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			},
		})
	}
	return openaisdk.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
}

func convertResponse(msg openaisdk.ChatCompletionMessage) *schema.Message {
	out := &schema.Message{
		Role:    schema.Assistant,
		Content: msg.Content,
	}
	for _, call := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, schema.ToolCall{
			ID:   call.ID,
			Type: "function",
			Function: schema.FunctionCall{
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			},
		})
	}
	return out
}

func convertTools(infos []*schema.ToolInfo) ([]openaisdk.ChatCompletionToolParam, error) {
	tools := make([]openaisdk.ChatCompletionToolParam, 0, len(infos))
	for _, info := range infos {
		params, err := toolParameters(info)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", info.Name, err)
		}
		tools = append(tools, openaisdk.ChatCompletionToolParam{
			Function: openaisdk.FunctionDefinitionParam{
				Name:        info.Name,
				Description: openaisdk.String(info.Desc),
				Parameters:  params,
			},
		})
	}
	return tools, nil
}

func toolParameters(info *schema.ToolInfo) (openaisdk.FunctionParameters, error) {
	if info.ParamsOneOf == nil {
		return openaisdk.FunctionParameters{"type": "object", "properties": map[string]any{}}, nil
	}

	openAPISchema, err := info.ParamsOneOf.ToOpenAPIV3()
	if err != nil {
		return nil, fmt.Errorf("convert parameters: %w", err)
	}
	raw, err := json.Marshal(openAPISchema)
	if err != nil {
		return nil, fmt.Errorf("marshal parameters: %w", err)
	}
	var params openaisdk.FunctionParameters
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("unmarshal parameters: %w", err)
	}
	return params, nil
}
