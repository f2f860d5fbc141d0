package graph

import (
	"encoding/json"
	"fmt"
)

// clone copies state through its JSON form, so it carries exactly what a
// checkpoint would. Each fan-out branch runs on its own clone.
func clone[S any](state S) (S, error) {
	var out S
	data, err := json.Marshal(state)
	if err != nil {
		return out, fmt.Errorf("copy state: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		var zero S
		return zero, fmt.Errorf("copy state: %w", err)
	}
	return out, nil
}
