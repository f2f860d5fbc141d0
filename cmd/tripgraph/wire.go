package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	googleopt "google.golang.org/api/option"

	"github.com/dshills/tripgraph/graph"
	"github.com/dshills/tripgraph/graph/emit"
	"github.com/dshills/tripgraph/graph/model"
	"github.com/dshills/tripgraph/graph/model/anthropic"
	"github.com/dshills/tripgraph/graph/model/google"
	"github.com/dshills/tripgraph/graph/model/openai"
	"github.com/dshills/tripgraph/graph/store"
	"github.com/dshills/tripgraph/graph/tool"
	"github.com/dshills/tripgraph/research"
	"github.com/dshills/tripgraph/service"
	"github.com/dshills/tripgraph/workflow"
)

// app is a fully wired process.
type app struct {
	cfg      Config
	log      *zap.Logger
	service  *service.Service
	registry store.Registry
	metrics  *prometheus.Registry
	tracker  *model.Tracker

	closers []func(context.Context) error
}

// build wires every component from cfg. Events go to the zap logger and to
// each of extra. Close releases what it opened.
func build(ctx context.Context, cfg Config, log *zap.Logger, extra ...emit.Emitter) (a *app, err error) {
	a = &app{cfg: cfg, log: log, metrics: prometheus.NewRegistry(), tracker: model.NewTracker()}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()
	a.metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a.registry, err = newRegistry(ctx, cfg.Registry)
	if err != nil {
		return a, err
	}
	a.closers = append(a.closers, func(context.Context) error { return a.registry.Close() })

	m, err := a.newModel(ctx)
	if err != nil {
		return a, err
	}
	tools, err := a.newTools(ctx)
	if err != nil {
		return a, err
	}

	emitters := append([]emit.Emitter{emit.NewZapEmitter(log)}, extra...)
	if cfg.Tracing.Enabled {
		tp := newTracerProvider(cfg.Tracing, log)
		a.closers = append(a.closers, tp.Shutdown)
		emitters = append(emitters, emit.NewOTelEmitter(tp.Tracer("tripgraph")))
	}
	emitter := emitters[0]
	if len(emitters) > 1 {
		emitter = emit.NewMultiEmitter(emitters...)
	}

	opts := []graph.Option{
		graph.WithMaxSteps(cfg.Engine.MaxSteps),
		graph.WithMaxConcurrent(cfg.Engine.MaxConcurrent),
		graph.WithDefaultNodeTimeout(cfg.Engine.NodeTimeout.D()),
		graph.WithMetrics(graph.NewPrometheusMetrics(a.metrics)),
	}
	if cfg.Engine.RunBudget > 0 {
		opts = append(opts, graph.WithRunWallClockBudget(cfg.Engine.RunBudget.D()))
	}
	var geocoder tool.Geocoder
	if cfg.Providers.Nominatim.Enabled {
		geocoder = tool.NewNominatim(orDefault(cfg.Providers.Nominatim.URL, tool.NominatimURL), cfg.Providers.Nominatim.UserAgent)
	}
	engine, err := workflow.New(workflow.Config{
		Model:    m,
		Geocoder: geocoder,
		Research: research.Config{
			Model:   m,
			Tools:   tools,
			Timeout: cfg.Engine.RunnerTimeout.D(),
		},
		Retry: nodeRetry(cfg.Engine.NodeAttempts),
	}, emitter, opts...)
	if err != nil {
		return a, err
	}

	a.service, err = service.New(service.Config{
		Engine:      engine,
		Registry:    a.registry,
		Emitter:     emitter,
		Metrics:     service.NewMetrics(a.metrics),
		TTL:         cfg.Registry.TTL.D(),
		Credentials: cfg.RequiredCredentials(),
	})
	return a, err
}

func nodeRetry(attempts int) *graph.RetryPolicy {
	if attempts <= 1 {
		return nil
	}
	return workflow.RetryTransient(attempts, time.Second, 15*time.Second)
}

// Close runs the closers in reverse order and joins their errors.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newRegistry(ctx context.Context, cfg RegistryConfig) (store.Registry, error) {
	switch cfg.Backend {
	case "sqlite":
		return store.NewSQLiteRegistry(cfg.Path)
	case "mysql":
		return store.NewMySQLRegistry(ctx, cfg.DSN)
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
		}
		var opts []store.Option
		if cfg.KeyPrefix != "" {
			opts = append(opts, store.WithKeyPrefix(cfg.KeyPrefix))
		}
		return store.NewRedisRegistry(client, opts...), nil
	default:
		return store.NewMemRegistry(), nil
	}
}

// newModel builds the configured adapter, metered into the app tracker. A
// missing key is not an error here: the adapter reports it as a fatal
// provider error on first use, which ends that session with no_plan.
func (a *app) newModel(ctx context.Context) (model.StructuredModel, error) {
	c := a.cfg.LLM
	var m model.StructuredModel
	switch c.Provider {
	case "anthropic":
		var opts []anthropicopt.RequestOption
		if c.BaseURL != "" {
			opts = append(opts, anthropicopt.WithBaseURL(c.BaseURL))
		}
		m = anthropic.New(a.cfg.Keys.Anthropic, c.Model, opts...)
	case "google":
		var opts []googleopt.ClientOption
		if c.BaseURL != "" {
			opts = append(opts, googleopt.WithEndpoint(c.BaseURL))
		}
		g, err := google.New(ctx, a.cfg.Keys.Google, c.Model, opts...)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return g.Close() })
		m = g
	default:
		m = openai.New(a.cfg.Keys.OpenAI, c.Model, a.openAIOptions()...)
	}
	return model.Metered(m, a.tracker), nil
}

func (a *app) openAIOptions() []openaiopt.RequestOption {
	if a.cfg.LLM.Provider == "openai" && a.cfg.LLM.BaseURL != "" {
		return []openaiopt.RequestOption{openaiopt.WithBaseURL(a.cfg.LLM.BaseURL)}
	}
	return nil
}

// newTools enables each search collaborator whose credentials are set.
func (a *app) newTools(ctx context.Context) (research.Tools, error) {
	var (
		t    research.Tools
		keys = a.cfg.Keys
		p    = a.cfg.Providers
	)
	if keys.TripAdvisor != "" {
		t.Providers = tool.NewTripAdvisor(orDefault(p.TripAdvisor.URL, tool.TripAdvisorURL), keys.TripAdvisor)
	}
	if keys.AmadeusID != "" && keys.AmadeusSecret != "" {
		t.Routes = tool.NewAmadeus(orDefault(p.Amadeus.URL, tool.AmadeusTestURL), keys.AmadeusID, keys.AmadeusSecret)
	}
	if keys.Tavily != "" {
		url := orDefault(p.Tavily.URL, tool.TavilyURL)
		t.Web = tool.NewTavily(url, keys.Tavily, nil, tool.WithMaxResults(p.Tavily.MaxResults), tool.WithSource("web"))
		t.Forum = tool.NewTavily(url, keys.Tavily, nil, tool.WithMaxResults(p.Tavily.MaxResults),
			tool.WithDomains(tool.ForumDomains...), tool.WithSource("forum"))
	}
	if a.cfg.Knowledge.Documents != "" {
		ix, err := a.loadKnowledge(ctx)
		if err != nil {
			return t, err
		}
		t.Knowledge = ix
	}
	return t, nil
}

// loadKnowledge indexes the documents file. Documents are embedded with
// OpenAI when a key is configured and ranked by term overlap otherwise.
func (a *app) loadKnowledge(ctx context.Context) (*tool.Index, error) {
	data, err := os.ReadFile(a.cfg.Knowledge.Documents)
	if err != nil {
		return nil, fmt.Errorf("read knowledge documents: %w", err)
	}
	var docs []tool.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parse knowledge documents: %w", err)
	}
	var embedder tool.Embedder
	if a.cfg.Keys.OpenAI != "" {
		embedder = openai.New(a.cfg.Keys.OpenAI, "", a.openAIOptions()...)
	}
	ix := tool.NewIndex(embedder)
	if err := ix.Add(ctx, docs...); err != nil {
		return nil, err
	}
	a.log.Info("knowledge base loaded", zap.Int("documents", ix.Len()), zap.Bool("embedded", embedder != nil))
	return ix, nil
}

func newTracerProvider(cfg TracingConfig, log *zap.Logger) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanLogger{log: log.Named("trace")}),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", "tripgraph"))),
	)
}

// spanLogger exports finished spans as debug log entries.
type spanLogger struct {
	log *zap.Logger
}

func (s spanLogger) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, sp := range spans {
		s.log.Debug("span",
			zap.String("name", sp.Name()),
			zap.String("trace_id", sp.SpanContext().TraceID().String()),
			zap.String("span_id", sp.SpanContext().SpanID().String()),
			zap.Duration("duration", sp.EndTime().Sub(sp.StartTime())),
			zap.String("status", sp.Status().Code.String()),
		)
	}
	return nil
}

func (spanLogger) Shutdown(context.Context) error { return nil }

func newLogger(cfg LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	zc.Level = level
	return zc.Build()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// shutdownContext bounds cleanup work after the main context is done.
func shutdownContext(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}
