package research

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/tripgraph/graph/tool"
)

// evidence is what the model is given to synthesise from.
type evidence struct {
	Provider  []json.RawMessage `json:"provider_results,omitempty"`
	Forum     []tool.Snippet    `json:"forum_posts,omitempty"`
	Web       []tool.Snippet    `json:"web_results,omitempty"`
	Knowledge []tool.Document   `json:"knowledge_base,omitempty"`
}

func (e evidence) empty() bool {
	return len(e.Provider) == 0 && len(e.Forum) == 0 && len(e.Web) == 0 && len(e.Knowledge) == 0
}

// primarySearch queries the category's main provider. It returns a short
// description of what was searched for the trace.
type primarySearch func(ctx context.Context, tools Tools, in Input) (string, []json.RawMessage, error)

// gather queries every configured collaborator concurrently. Failures are
// reported as trace lines. Only a fatal tool error, such as rejected
// credentials, is returned; the first one in source order wins. Notes come
// back in a fixed order so traces do not depend on which source answers first.
func gather(ctx context.Context, cfg Config, in Input, query string, primary primarySearch) (evidence, []string, error) {
	var (
		ev    evidence
		notes [4]string
		errs  [4]error
		g     errgroup.Group
	)
	tools := cfg.Tools

	if primary != nil {
		g.Go(func() error {
			what, results, err := primary(ctx, tools, in)
			switch {
			case what == "":
			case err != nil:
				notes[0] = fmt.Sprintf("provider search %s failed: %v", what, err)
				errs[0] = err
			default:
				ev.Provider = limit(results, cfg.MaxEvidence)
				notes[0] = fmt.Sprintf("provider search %s: %d results", what, len(results))
			}
			return nil
		})
	}
	if tools.Forum != nil {
		g.Go(func() error {
			snippets, err := tools.Forum.SearchWeb(ctx, query)
			if err != nil {
				notes[1] = fmt.Sprintf("forum search %q failed: %v", query, err)
				errs[1] = err
				return nil
			}
			ev.Forum = limit(snippets, cfg.MaxEvidence)
			notes[1] = fmt.Sprintf("forum search %q: %d posts", query, len(snippets))
			return nil
		})
	}
	if tools.Web != nil {
		g.Go(func() error {
			snippets, err := tools.Web.SearchWeb(ctx, query)
			if err != nil {
				notes[2] = fmt.Sprintf("web search %q failed: %v", query, err)
				errs[2] = err
				return nil
			}
			ev.Web = limit(snippets, cfg.MaxEvidence)
			notes[2] = fmt.Sprintf("web search %q: %d results", query, len(snippets))
			return nil
		})
	}
	if tools.Knowledge != nil {
		g.Go(func() error {
			docs, err := tools.Knowledge.SearchDB(ctx, query, cfg.KnowledgeTopK)
			if err != nil {
				notes[3] = fmt.Sprintf("knowledge base search failed: %v", err)
				errs[3] = err
				return nil
			}
			ev.Knowledge = docs
			notes[3] = fmt.Sprintf("knowledge base: %d documents", len(docs))
			return nil
		})
	}
	_ = g.Wait()

	var lines []string
	for _, n := range notes {
		if n != "" {
			lines = append(lines, n)
		}
	}
	for _, err := range errs {
		if tool.IsFatal(err) {
			return ev, lines, err
		}
	}
	return ev, lines, nil
}

func limit[T any](in []T, n int) []T {
	if len(in) > n {
		return in[:n]
	}
	return in
}
