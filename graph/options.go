package graph

import "time"

// Options configures Engine execution behavior.
//
// Zero values are valid; the Engine then runs without step, concurrency or
// time limits.
type Options struct {
	// MaxSteps limits the number of node executions per Run or Resume call.
	// Steps taken by earlier calls on the same checkpoint do not count.
	// A fan-out counts as one step. If 0, no limit is enforced.
	MaxSteps int

	// MaxConcurrentNodes bounds how many fan-out branches run at once.
	// If 0, every branch of a fan-out runs concurrently.
	MaxConcurrentNodes int

	// DefaultNodeTimeout bounds nodes without a NodePolicy timeout.
	// If 0, nodes run until they return or the run context ends.
	DefaultNodeTimeout time.Duration

	// RunWallClockBudget bounds one Run or Resume call. If 0, unlimited.
	RunWallClockBudget time.Duration

	// Metrics receives execution metrics. May be nil.
	Metrics *PrometheusMetrics
}

// Option is a functional option for configuring an Engine.
//
// Example:
//
//	engine := graph.New(
//	    trip.Reduce,
//	    emitter,
//	    graph.WithMaxSteps(100),
//	    graph.WithMaxConcurrent(5),
//	    graph.WithDefaultNodeTimeout(2*time.Minute),
//	)
type Option func(*engineConfig) error

// engineConfig is an internal struct used to collect options before applying them to an Engine.
// This indirection allows validation and composition of options.
type engineConfig struct {
	opts     Options
	policies map[string]NodePolicy
}

// WithOptions replaces the whole Options struct. Later options still apply
// on top of it.
func WithOptions(opts Options) Option {
	return func(cfg *engineConfig) error {
		cfg.opts = opts
		return nil
	}
}

// WithMaxSteps limits workflow execution to prevent infinite loops.
//
// Workflow loops (A → B → A) are fully supported. Use MaxSteps to prevent
// infinite loops when a conditional exit is missing or misconfigured.
//
// When MaxSteps is exceeded, Run() returns EngineError with code "MAX_STEPS_EXCEEDED".
func WithMaxSteps(n int) Option {
	return func(cfg *engineConfig) error {
		if n < 0 {
			return &EngineError{Message: "max steps must be >= 0", Code: "INVALID_OPTION"}
		}
		cfg.opts.MaxSteps = n
		return nil
	}
}

// WithMaxConcurrent sets the maximum number of fan-out branches executing
// concurrently. Each branch holds its own deep copy of state, so memory use
// scales with this value.
func WithMaxConcurrent(n int) Option {
	return func(cfg *engineConfig) error {
		if n < 0 {
			return &EngineError{Message: "max concurrent must be >= 0", Code: "INVALID_OPTION"}
		}
		cfg.opts.MaxConcurrentNodes = n
		return nil
	}
}

// WithDefaultNodeTimeout sets the maximum execution time for nodes without
// an explicit NodePolicy.Timeout. When exceeded, the node's context is
// cancelled and the engine reports EngineError code "NODE_TIMEOUT".
func WithDefaultNodeTimeout(d time.Duration) Option {
	return func(cfg *engineConfig) error {
		cfg.opts.DefaultNodeTimeout = d
		return nil
	}
}

// WithRunWallClockBudget sets the maximum total execution time for one Run
// or Resume call. If exceeded, the call returns context.DeadlineExceeded.
func WithRunWallClockBudget(d time.Duration) Option {
	return func(cfg *engineConfig) error {
		cfg.opts.RunWallClockBudget = d
		return nil
	}
}

// WithNodePolicy attaches a timeout and retry policy to one node.
func WithNodePolicy(nodeID string, policy NodePolicy) Option {
	return func(cfg *engineConfig) error {
		if policy.RetryPolicy != nil {
			if err := policy.RetryPolicy.Validate(); err != nil {
				return &EngineError{Message: "node " + nodeID + ": " + err.Error(), Code: "INVALID_OPTION"}
			}
		}
		if cfg.policies == nil {
			cfg.policies = make(map[string]NodePolicy)
		}
		cfg.policies[nodeID] = policy
		return nil
	}
}

// WithMetrics enables Prometheus metrics collection.
//
// Example:
//
//	registry := prometheus.NewRegistry()
//	metrics := graph.NewPrometheusMetrics(registry)
//	engine := graph.New(reducer, emitter, graph.WithMetrics(metrics))
//
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
func WithMetrics(metrics *PrometheusMetrics) Option {
	return func(cfg *engineConfig) error {
		cfg.opts.Metrics = metrics
		return nil
	}
}
