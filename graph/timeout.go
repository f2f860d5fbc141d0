package graph

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// timeout is the deadline a node runs under: its own policy first, then the
// engine default. Zero means the node is bounded by the run context only.
func (p *NodePolicy) timeout(engineDefault time.Duration) time.Duration {
	if p != nil && p.Timeout > 0 {
		return p.Timeout
	}
	return max(engineDefault, 0)
}

// runWithDeadline runs node under its timeout. It reports NODE_TIMEOUT only
// when the node's own deadline fired and the node failed; a node that
// returns a result without an error has dealt with the deadline itself. A
// cancelled or expired run context is left for the caller to report.
func runWithDeadline[S any](ctx context.Context, node Node[S], nodeID string, state S, pol *NodePolicy, engineDefault time.Duration) (NodeResult[S], error) {
	d := pol.timeout(engineDefault)
	if d == 0 {
		return node.Run(ctx, state), nil
	}
	nodeCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	res := node.Run(nodeCtx, state)
	if res.Err != nil && ctx.Err() == nil && errors.Is(nodeCtx.Err(), context.DeadlineExceeded) {
		return res, &EngineError{Code: "NODE_TIMEOUT", Message: fmt.Sprintf("%s did not finish within %v", nodeID, d)}
	}
	return res, nil
}
