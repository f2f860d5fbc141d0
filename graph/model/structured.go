package model

import (
	"context"
	"errors"
)

// Attempt describes one call made by Structured.
type Attempt struct {
	// N is the 1-based attempt number.
	N int

	// Completion is the provider answer. Zero when Err came from the call.
	Completion Completion

	// Err is the call or parse failure, nil on success.
	Err error
}

// Structured calls m and parses the answer with parse. A failed call or a
// rejected answer is retried with a corrective instruction naming the
// failure, up to attempts calls in total. Fatal provider errors and context
// errors end the loop at once. The last error is returned when every
// attempt fails.
//
// observe, when non-nil, is called after every attempt.
func Structured[T any](ctx context.Context, m StructuredModel, req Request, attempts int, parse func(text string) (T, error), observe func(Attempt)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	if attempts < 1 {
		attempts = 1
	}
	base := req.Prompt
	for n := 1; n <= attempts; n++ {
		if lastErr != nil {
			req.Prompt = base + Corrective(lastErr)
		}
		comp, err := m.Complete(ctx, req)
		if err == nil {
			var v T
			if v, err = parse(comp.Text); err == nil {
				if observe != nil {
					observe(Attempt{N: n, Completion: comp})
				}
				return v, nil
			}
		}
		if observe != nil {
			observe(Attempt{N: n, Completion: comp, Err: err})
		}
		lastErr = err
		if IsFatal(err) || ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return zero, err
		}
	}
	return zero, lastErr
}

// Corrective is the instruction appended to a prompt after a rejected
// answer.
func Corrective(reason error) string {
	return "\n\nYour previous answer was rejected: " + reason.Error() +
		"\nReturn ONLY a JSON document that matches the schema exactly. Do not add commentary."
}
