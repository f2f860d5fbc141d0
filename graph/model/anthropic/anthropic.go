// Package anthropic provides a StructuredModel backed by Anthropic's
// Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dshills/tripgraph/graph/model"
)

// DefaultModel is used when New is given an empty model name.
const DefaultModel = "claude-sonnet-4-20250514"

const provider = "anthropic"

// Model implements model.StructuredModel using Claude.
//
// Claude has no native JSON mode, so the schema is appended to the system
// prompt and the caller decodes the reply leniently.
type Model struct {
	client    *anthropic.Client
	name      string
	maxTokens int64
	keyed     bool
}

// New creates a Claude model. Extra request options (base URL, HTTP client,
// retry count) are passed to the SDK client.
func New(apiKey, name string, opts ...option.RequestOption) *Model {
	if name == "" {
		name = DefaultModel
	}
	client := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &Model{client: &client, name: name, maxTokens: 4096, keyed: apiKey != ""}
}

// Complete sends one user message and returns the concatenated text blocks.
func (m *Model) Complete(ctx context.Context, req model.Request) (model.Completion, error) {
	if err := ctx.Err(); err != nil {
		return model.Completion{}, err
	}
	if !m.keyed {
		return model.Completion{}, model.MissingKey(provider)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.name),
		MaxTokens: m.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if system := systemPrompt(req); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return model.Completion{}, classify(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return model.Completion{}, &model.ProviderError{
			Provider:  provider,
			Code:      model.CodeEmpty,
			Message:   "response has no text content",
			Retryable: true,
		}
	}

	name := string(msg.Model)
	if name == "" {
		name = m.name
	}
	return model.Completion{
		Text:      text.String(),
		Model:     name,
		TokensIn:  int(msg.Usage.InputTokens),
		TokensOut: int(msg.Usage.OutputTokens),
	}, nil
}

func systemPrompt(req model.Request) string {
	if len(req.Schema) == 0 {
		return req.System
	}
	schema, err := json.Marshal(req.Schema)
	if err != nil {
		return req.System
	}
	var sb strings.Builder
	if req.System != "" {
		sb.WriteString(req.System)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Respond ONLY with a JSON document matching this schema, no other text:\n")
	sb.Write(schema)
	return sb.String()
}

func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return model.Classify(provider, apiErr.StatusCode, err)
	}
	return model.Classify(provider, 0, err)
}
