package model

import (
	"context"
	"sync"
)

// MockModel is a test implementation of StructuredModel.
//
// Responses are returned in order and the last one repeats once they run
// out. Errs is consumed in parallel with Responses: a non-nil entry at the
// call index is returned instead of the response. Err, when set, fails every
// call. Respond, when set, takes precedence over all of the above, which is
// useful when concurrent callers need answers keyed on the request.
//
//	m := &model.MockModel{Responses: []string{`{"total": 100}`}}
type MockModel struct {
	Responses []string
	Errs      []error
	Err       error
	Respond   func(req Request) (string, error)

	// ModelName is reported in every Completion. Defaults to "mock".
	ModelName string

	mu    sync.Mutex
	calls []Request
}

// Complete records the request and returns the scripted answer.
func (m *MockModel) Complete(ctx context.Context, req Request) (Completion, error) {
	if err := ctx.Err(); err != nil {
		return Completion{}, err
	}

	m.mu.Lock()
	idx := len(m.calls)
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	name := m.ModelName
	if name == "" {
		name = "mock"
	}

	var (
		text string
		err  error
	)
	switch {
	case m.Respond != nil:
		text, err = m.Respond(req)
	case m.Err != nil:
		err = m.Err
	default:
		if idx < len(m.Errs) && m.Errs[idx] != nil {
			err = m.Errs[idx]
		} else if len(m.Responses) > 0 {
			i := idx
			if i >= len(m.Responses) {
				i = len(m.Responses) - 1
			}
			text = m.Responses[i]
		}
	}
	if err != nil {
		return Completion{}, err
	}
	return Completion{
		Text:      text,
		Model:     name,
		TokensIn:  len(req.System+req.Prompt) / 4,
		TokensOut: len(text) / 4,
	}, nil
}

// Calls returns a copy of the recorded requests.
func (m *MockModel) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

// CallCount returns the number of Complete calls.
func (m *MockModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Reset clears the call history.
func (m *MockModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
