package tool

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestHTTPClient_GetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/items" || r.URL.Query().Get("q") != "rome" {
			t.Errorf("request = %s", r.URL)
		}
		if r.Header.Get("X-Test") != "1" {
			t.Errorf("missing configured header")
		}
		_, _ = io.WriteString(w, `{"name":"rome"}`)
	}))
	defer srv.Close()

	c := NewHTTPClient("test", srv.URL+"/", WithHeader("X-Test", "1"))
	var out struct{ Name string }
	if err := c.GetJSON(context.Background(), "/items", url.Values{"q": {"rome"}}, &out); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if out.Name != "rome" {
		t.Errorf("Name = %q", out.Name)
	}
}

func TestHTTPClient_StatusErrors(t *testing.T) {
	tests := []struct {
		status        int
		wantCode      string
		wantRetryable bool
		wantFatal     bool
	}{
		{status: 401, wantCode: CodeUnauthorized, wantFatal: true},
		{status: 403, wantCode: CodeUnauthorized, wantFatal: true},
		{status: 404, wantCode: CodeNotFound},
		{status: 429, wantCode: CodeRateLimited, wantRetryable: true},
		{status: 502, wantCode: CodeUpstream, wantRetryable: true},
		{status: 400, wantCode: CodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, "nope")
			}))
			defer srv.Close()

			err := NewHTTPClient("test", srv.URL).GetJSON(context.Background(), "/", nil, nil)
			var te *Error
			if !errors.As(err, &te) {
				t.Fatalf("error = %v, want *Error", err)
			}
			if te.Code != tt.wantCode || te.Retryable != tt.wantRetryable || te.Fatal != tt.wantFatal {
				t.Errorf("Error = %+v", te)
			}
			if te.Tool != "test" {
				t.Errorf("Tool = %q", te.Tool)
			}
		})
	}
}

func TestHTTPClient_NotFoundMatchesSentinel(t *testing.T) {
	err := error(&Error{Code: CodeNotFound})
	if !errors.Is(err, ErrNotFound) {
		t.Error("not_found error should match ErrNotFound")
	}
	if errors.Is(&Error{Code: CodeUpstream}, ErrNotFound) {
		t.Error("upstream error should not match ErrNotFound")
	}
}

func TestHTTPClient_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>")
	}))
	defer srv.Close()

	var out map[string]interface{}
	err := NewHTTPClient("test", srv.URL).GetJSON(context.Background(), "/", nil, &out)
	var te *Error
	if !errors.As(err, &te) || te.Code != CodeDecode {
		t.Errorf("error = %v, want decode_error", err)
	}
}

func TestHTTPClient_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := NewHTTPClient("test", srv.URL).GetJSON(ctx, "/", nil, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}

func TestHTTPClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	err := NewHTTPClient("test", addr).GetJSON(context.Background(), "/", nil, nil)
	if !IsRetryable(err) {
		t.Errorf("error = %v, want retryable network error", err)
	}
}
