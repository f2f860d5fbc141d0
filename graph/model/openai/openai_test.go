package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go/option"

	"github.com/dshills/tripgraph/graph/model"
)

func newTestModel(t *testing.T, handler http.HandlerFunc) *Model {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New("sk-test", "gpt-test", option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
}

func TestModel_Complete(t *testing.T) {
	var body struct {
		Model          string                   `json:"model"`
		Messages       []map[string]interface{} `json:"messages"`
		ResponseFormat map[string]interface{}   `json:"response_format"`
	}
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-test",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "{\"lodging\": []}"}}],
			"usage": {"prompt_tokens": 30, "completion_tokens": 4, "total_tokens": 34}
		}`)
	})

	c, err := m.Complete(context.Background(), model.Request{
		System: "Research lodging.",
		Prompt: "Lisbon",
		Schema: model.Schema{"type": "object"},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if c.Text != `{"lodging": []}` || c.TokensIn != 30 || c.TokensOut != 4 || c.Model != "gpt-test" {
		t.Errorf("Completion = %+v", c)
	}
	if body.Model != "gpt-test" {
		t.Errorf("model = %q", body.Model)
	}
	if body.ResponseFormat["type"] != "json_object" {
		t.Errorf("response_format = %v", body.ResponseFormat)
	}
	if len(body.Messages) != 2 || body.Messages[0]["role"] != "system" || body.Messages[1]["role"] != "user" {
		t.Errorf("messages = %v", body.Messages)
	}
}

func TestModel_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		message  string
		wantCode string
	}{
		{name: "rate limited", status: 429, message: "Rate limit reached", wantCode: model.CodeRateLimited},
		{name: "quota", status: 429, message: "You exceeded your current quota", wantCode: model.CodeQuotaExceeded},
		{name: "bad key", status: 401, message: "Incorrect API key provided", wantCode: model.CodeInvalidAPIKey},
		{name: "server", status: 500, message: "oops", wantCode: model.CodeServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"error":{"message":"`+tt.message+`","type":"error","code":null}}`)
			})
			_, err := m.Complete(context.Background(), model.Request{Prompt: "x"})
			var pe *model.ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("error = %v, want *model.ProviderError", err)
			}
			if pe.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", pe.Code, tt.wantCode)
			}
		})
	}
}

func TestModel_NoChoices(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","created":1,"model":"gpt-test","choices":[]}`)
	})
	_, err := m.Complete(context.Background(), model.Request{Prompt: "x"})
	if !model.IsRetryable(err) {
		t.Errorf("error = %v, want retryable empty_response", err)
	}
}

func TestModel_MissingKey(t *testing.T) {
	_, err := New("", "").Complete(context.Background(), model.Request{})
	if !model.IsFatal(err) {
		t.Errorf("error = %v, want fatal", err)
	}
}

func TestSystemPrompt(t *testing.T) {
	if got := systemPrompt(model.Request{System: "Plan a day."}); !strings.Contains(got, "JSON") {
		t.Errorf("systemPrompt() = %q, must mention JSON", got)
	}
	if got := systemPrompt(model.Request{}); got != "Return a JSON object." {
		t.Errorf("systemPrompt() = %q", got)
	}
}

func TestModel_Embed(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0, 1]},
				{"object": "embedding", "index": 0, "embedding": [1, 0]}
			],
			"usage": {"prompt_tokens": 2, "total_tokens": 2}
		}`)
	})
	vecs, err := m.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vecs) != 2 || vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("Embed() = %v", vecs)
	}
}
