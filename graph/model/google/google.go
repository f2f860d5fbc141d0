// Package google provides a StructuredModel backed by the Gemini API.
package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/dshills/tripgraph/graph/model"
)

// DefaultModel is used when New is given an empty model name.
const DefaultModel = "gemini-2.5-flash"

const provider = "google"

// Model implements model.StructuredModel using Gemini with a JSON response
// MIME type and, when the request carries one, a response schema.
type Model struct {
	client *genai.Client
	name   string
}

// New creates a Gemini model. An empty key yields a Model whose calls fail
// with a fatal missing_api_key error.
func New(ctx context.Context, apiKey, name string, opts ...option.ClientOption) (*Model, error) {
	if name == "" {
		name = DefaultModel
	}
	m := &Model{name: name}
	if apiKey == "" {
		return m, nil
	}
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	m.client = client
	return m, nil
}

// Close releases the underlying client.
func (m *Model) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Close()
}

// Complete implements model.StructuredModel.
func (m *Model) Complete(ctx context.Context, req model.Request) (model.Completion, error) {
	if err := ctx.Err(); err != nil {
		return model.Completion{}, err
	}
	if m.client == nil {
		return model.Completion{}, model.MissingKey(provider)
	}

	gm := m.client.GenerativeModel(m.name)
	gm.ResponseMIMEType = "application/json"
	if schema := convertSchema(req.Schema); schema != nil {
		gm.ResponseSchema = schema
	}
	if req.System != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	resp, err := gm.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return model.Completion{}, &model.ProviderError{
				Provider: provider,
				Code:     model.CodeBlocked,
				Message:  err.Error(),
				Cause:    err,
			}
		}
		return model.Completion{}, model.Classify(provider, 0, err)
	}
	return completion(resp, m.name)
}

func completion(resp *genai.GenerateContentResponse, name string) (model.Completion, error) {
	var text strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text.WriteString(string(t))
			}
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
	c := model.Completion{Text: text.String(), Model: name}
	if resp.UsageMetadata != nil {
		c.TokensIn = int(resp.UsageMetadata.PromptTokenCount)
		c.TokensOut = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return c, nil
}

// convertSchema translates a JSON Schema map into the subset genai
// understands: type, description, enum, properties, items and required.
func convertSchema(s map[string]interface{}) *genai.Schema {
	if len(s) == 0 {
		return nil
	}
	out := &genai.Schema{}
	if t, ok := s["type"].(string); ok {
		out.Type = convertType(t)
	}
	if d, ok := s["description"].(string); ok {
		out.Description = d
	}
	out.Enum = stringList(s["enum"])
	out.Required = stringList(s["required"])

	if props, ok := asMap(s["properties"]); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for key, val := range props {
			if child, ok := asMap(val); ok {
				out.Properties[key] = convertSchema(child)
			}
		}
		if out.Type == genai.TypeUnspecified {
			out.Type = genai.TypeObject
		}
	}
	if child, ok := asMap(s["items"]); ok {
		out.Items = convertSchema(child)
	}
	return out
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case model.Schema:
		return m, true
	}
	return nil, false
}

func stringList(v interface{}) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func convertType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}
