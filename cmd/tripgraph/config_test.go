package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("", env(nil))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Registry.Backend != "memory" || cfg.Registry.TTL.D() != time.Hour || cfg.Registry.SweepInterval.D() != 5*time.Minute {
		t.Errorf("registry = %+v", cfg.Registry)
	}
	if cfg.Engine.MaxSteps != 100 || cfg.Engine.NodeTimeout.D() != 2*time.Minute || cfg.Engine.RunnerTimeout.D() != 90*time.Second || cfg.Engine.NodeAttempts != 3 {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.Server.Addr != ":8080" || cfg.LLM.Provider != "openai" {
		t.Errorf("server %q llm %q", cfg.Server.Addr, cfg.LLM.Provider)
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
llm:
  provider: anthropic
  model: claude-3-5-haiku-20241022
registry:
  backend: sqlite
  path: /tmp/trips.db
  ttl: 30m
engine:
  runner_timeout: 45s
log:
  format: console
  level: debug
credentials:
  required: [ANTHROPIC_API_KEY, TAVILY_API_KEY]
`)
	cfg, err := LoadConfig(path, env(map[string]string{"ANTHROPIC_API_KEY": "sk-ant"}))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.LLM.Provider != "anthropic" || cfg.Registry.Path != "/tmp/trips.db" || cfg.Registry.TTL.D() != 30*time.Minute {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Engine.RunnerTimeout.D() != 45*time.Second || cfg.Engine.NodeTimeout.D() != 2*time.Minute {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	creds := cfg.RequiredCredentials()
	if creds["ANTHROPIC_API_KEY"] != "sk-ant" || creds["TAVILY_API_KEY"] != "" || len(creds) != 2 {
		t.Errorf("RequiredCredentials() = %v", creds)
	}
}

func TestLoadConfig_Env(t *testing.T) {
	cfg, err := LoadConfig("", env(map[string]string{
		"OPENAI_API_KEY":        "sk-1",
		"TAVILY_API_KEY":        "tvly-1",
		"AMADEUS_CLIENT_SECRET": "s3",
		"TRIPGRAPH_REDIS_ADDR":  "cache:6379",
		"GRAPH_RECURSION_LIMIT": "40",
	}))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Keys.OpenAI != "sk-1" || cfg.Keys.Tavily != "tvly-1" || cfg.Keys.AmadeusSecret != "s3" {
		t.Errorf("keys = %+v", cfg.Keys)
	}
	if cfg.Registry.Addr != "cache:6379" || cfg.Engine.MaxSteps != 40 {
		t.Errorf("addr %q max steps %d", cfg.Registry.Addr, cfg.Engine.MaxSteps)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
		want string
	}{
		{"unknown key", "llm:\n  flavour: spicy\n", nil, "flavour"},
		{"bad duration", "registry:\n  ttl: soon\n", nil, "invalid duration"},
		{"bad provider", "llm:\n  provider: cohere\n", nil, "llm.provider"},
		{"bad backend", "registry:\n  backend: etcd\n", nil, "registry.backend"},
		{"mysql without dsn", "registry:\n  backend: mysql\n", nil, "TRIPGRAPH_MYSQL_DSN"},
		{"redis without addr", "registry:\n  backend: redis\n", nil, "TRIPGRAPH_REDIS_ADDR"},
		{"bad log format", "log:\n  format: xml\n", nil, "log.format"},
		{"runner timeout too long", "engine:\n  node_timeout: 60s\n  runner_timeout: 90s\n", nil, "runner_timeout"},
		{"runner timeout unset", "engine:\n  runner_timeout: 0s\n", nil, "runner_timeout"},
		{"no node attempts", "engine:\n  node_attempts: 0\n", nil, "node_attempts"},
		{"bad sample ratio", "tracing:\n  sample_ratio: 2\n", nil, "sample_ratio"},
		{"unknown credential", "credentials:\n  required: [SECRET_SAUCE]\n", nil, "SECRET_SAUCE"},
		{"bad recursion limit", "", map[string]string{"GRAPH_RECURSION_LIMIT": "lots"}, "GRAPH_RECURSION_LIMIT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.yaml), env(tt.env))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("LoadConfig() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), env(nil)); err == nil {
		t.Error("LoadConfig() of a missing file succeeded")
	}
}
