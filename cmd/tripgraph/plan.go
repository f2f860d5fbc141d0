package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/tripgraph/graph/emit"
	"github.com/dshills/tripgraph/service"
	"github.com/dshills/tripgraph/trip"
)

func newPlanCmd(c *cli) *cobra.Command {
	var (
		contextPath string
		auto        bool
		events      string
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Run one planning session from a context file",
		Long: `Starts a session from a JSON trip context and prints the review payload.
With --auto the first lodging and transport options are selected and the final plan is printed as well.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := readContext(contextPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			var extra []emit.Emitter
			switch events {
			case "":
			case "text", "json":
				extra = append(extra, emit.NewLogEmitter(cmd.ErrOrStderr(), events == "json"))
			default:
				return fmt.Errorf("--events must be text or json, got %q", events)
			}
			a, err := build(ctx, c.cfg, c.log, extra...)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			out := cmd.OutOrStdout()
			resp, err := a.service.Start(ctx, tc)
			if err != nil {
				return err
			}
			if err := printJSON(out, resp); err != nil {
				return err
			}
			if auto && resp.Status == service.StatusInterrupt {
				final, err := a.service.ResumeWithSelections(ctx, resp.SessionID, firstChoices(resp))
				if err != nil {
					return err
				}
				if err := printJSON(out, final); err != nil {
					return err
				}
			}
			in, outTokens := a.tracker.Tokens()
			fmt.Fprintf(cmd.ErrOrStderr(), "llm cost: $%.4f (%d tokens in, %d out)\n", a.tracker.TotalCost(), in, outTokens)
			return nil
		},
	}
	cmd.Flags().StringVar(&contextPath, "context", "", "path to the trip context JSON file")
	cmd.Flags().BoolVar(&auto, "auto", false, "select the first options and produce the final plan")
	cmd.Flags().StringVar(&events, "events", "", "write workflow events to stderr as text or json")
	_ = cmd.MarkFlagRequired("context")
	return cmd
}

func readContext(path string) (trip.Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return trip.Context{}, fmt.Errorf("read context: %w", err)
	}
	var tc trip.Context
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&tc); err != nil {
		return trip.Context{}, fmt.Errorf("parse context %s: %w", path, err)
	}
	return tc, nil
}

// firstChoices picks the first lodging and transport option and leaves
// activities and food open.
func firstChoices(resp service.Response) trip.Selections {
	var sel trip.Selections
	if len(resp.Candidates.Lodging) > 0 {
		sel.Lodging = &resp.Candidates.Lodging[0]
	}
	if len(resp.Candidates.IntercityTransport) > 0 {
		sel.IntercityTransport = &resp.Candidates.IntercityTransport[0]
	}
	return sel
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
