// Package openai provides a StructuredModel backed by OpenAI chat
// completions in JSON mode.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/dshills/tripgraph/graph/model"
)

// DefaultModel is used when New is given an empty model name.
const DefaultModel = "gpt-4o-mini"

const provider = "openai"

// Model implements model.StructuredModel using the chat completions API
// with the json_object response format.
type Model struct {
	client *openai.Client
	name   string
	keyed  bool
}

// New creates an OpenAI model. Extra request options are passed to the SDK
// client.
func New(apiKey, name string, opts ...option.RequestOption) *Model {
	if name == "" {
		name = DefaultModel
	}
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &Model{client: &client, name: name, keyed: apiKey != ""}
}

// Complete implements model.StructuredModel.
func (m *Model) Complete(ctx context.Context, req model.Request) (model.Completion, error) {
	if err := ctx.Err(); err != nil {
		return model.Completion{}, err
	}
	if !m.keyed {
		return model.Completion{}, model.MissingKey(provider)
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if system := systemPrompt(req); system != "" {
		messages = append(messages, openai.ChatCompletionMessageParamUnion{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(system),
				},
			},
		})
	}
	messages = append(messages, openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfString: openai.String(req.Prompt),
			},
		},
	})

	completion, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(m.name),
		Messages: messages,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: openai.Ptr(shared.NewResponseFormatJSONObjectParam()),
		},
	})
	if err != nil {
		return model.Completion{}, classify(err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return model.Completion{}, &model.ProviderError{
			Provider:  provider,
			Code:      model.CodeEmpty,
			Message:   "response has no choices",
			Retryable: true,
		}
	}

	name := completion.Model
	if name == "" {
		name = m.name
	}
	return model.Completion{
		Text:      completion.Choices[0].Message.Content,
		Model:     name,
		TokensIn:  int(completion.Usage.PromptTokens),
		TokensOut: int(completion.Usage.CompletionTokens),
	}, nil
}

// systemPrompt embeds the schema. JSON mode requires the word "JSON" to
// appear somewhere in the conversation.
func systemPrompt(req model.Request) string {
	var sb strings.Builder
	sb.WriteString(req.System)
	if len(req.Schema) > 0 {
		if schema, err := json.Marshal(req.Schema); err == nil {
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString("Return a JSON object matching this schema:\n")
			sb.Write(schema)
		}
	}
	out := sb.String()
	if !strings.Contains(strings.ToLower(out), "json") {
		out = strings.TrimSpace(out + "\n\nReturn a JSON object.")
	}
	return out
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return model.Classify(provider, apiErr.StatusCode, err)
	}
	return model.Classify(provider, 0, err)
}

// DefaultEmbeddingModel is used by Embed.
const DefaultEmbeddingModel = "text-embedding-3-small"

// Embed returns one vector per text. It satisfies tool.Embedder so the
// knowledge base can rank by similarity.
func (m *Model) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if !m.keyed {
		return nil, model.MissingKey(provider)
	}
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := m.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(DefaultEmbeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, classify(err)
	}
	out := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index >= 0 && int(d.Index) < len(out) {
			out[d.Index] = d.Embedding
		}
	}
	return out, nil
}
