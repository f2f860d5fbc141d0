package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// StructuralError reports model output that does not have the required
// shape: no JSON at all, the wrong top-level type, or a collection whose
// items all failed validation.
type StructuralError struct {
	Message string
	Cause   error
}

func (e *StructuralError) Error() string {
	if e.Cause != nil {
		return "structural error: " + e.Message + ": " + e.Cause.Error()
	}
	return "structural error: " + e.Message
}

func (e *StructuralError) Unwrap() error { return e.Cause }

func structural(cause error, format string, args ...interface{}) *StructuralError {
	return &StructuralError{Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Extract finds the JSON document inside text. It tries, in order, the whole
// trimmed text, the body of the first ```json (or bare ```) fence, and the
// first balanced {...} or [...] span.
func Extract(text string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, structural(nil, "empty response")
	}
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed), nil
	}
	if body, ok := fenced(trimmed); ok && json.Valid([]byte(body)) {
		return json.RawMessage(body), nil
	}
	if span, ok := firstSpan(trimmed); ok {
		return json.RawMessage(span), nil
	}
	return nil, structural(nil, "no JSON document in response")
}

// Decode extracts the JSON document from text and unmarshals it into out.
func Decode(text string, out interface{}) error {
	raw, err := Extract(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return structural(err, "decode response")
	}
	return nil
}

// Collection extracts a list of items from text. The list may be the
// top-level document or the value of the first present key in keys; a single
// object under a key is treated as a one-item list.
func Collection(text string, keys ...string) ([]json.RawMessage, error) {
	raw, err := Extract(text)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)

	if len(raw) > 0 && raw[0] == '[' {
		return items(raw)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, structural(err, "response is neither an object nor a list")
	}
	for _, k := range keys {
		v, ok := obj[k]
		if !ok {
			continue
		}
		v = bytes.TrimSpace(v)
		switch {
		case len(v) > 0 && v[0] == '[':
			return items(v)
		case len(v) > 0 && v[0] == '{':
			return []json.RawMessage{v}, nil
		case bytes.Equal(v, []byte("null")):
			return nil, nil
		default:
			return nil, structural(nil, "key %q is not a list", k)
		}
	}
	return nil, structural(nil, "none of %s present in response", strings.Join(keys, ", "))
}

func items(raw json.RawMessage) ([]json.RawMessage, error) {
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, structural(err, "decode list")
	}
	return list, nil
}

func fenced(text string) (string, bool) {
	start := strings.Index(text, "```")
	if start < 0 {
		return "", false
	}
	rest := text[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		// Drop the info string, e.g. "json".
		if lang := strings.TrimSpace(rest[:nl]); lang == "" || !strings.ContainsAny(lang, "{[") {
			rest = rest[nl+1:]
		}
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// firstSpan returns the first balanced object or array that parses as JSON.
// String literals are skipped so braces inside them do not count.
func firstSpan(text string) (string, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' && text[i] != '[' {
			continue
		}
		if end, ok := matchClose(text, i); ok {
			candidate := text[i : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
	}
	return "", false
}

func matchClose(text string, open int) (int, bool) {
	var (
		stack    []byte
		inString bool
		escaped  bool
	)
	for i := open; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
