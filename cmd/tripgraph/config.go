package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	yaml "go.yaml.in/yaml/v2"
)

// Config is the YAML configuration file.
type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	Keys        KeysConfig        `yaml:"keys"`
	Registry    RegistryConfig    `yaml:"registry"`
	Engine      EngineConfig      `yaml:"engine"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Tracing     TracingConfig     `yaml:"tracing"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Knowledge   KnowledgeConfig   `yaml:"knowledge"`
	Credentials CredentialsConfig `yaml:"credentials"`
}

// LLMConfig selects the structured-completion model.
type LLMConfig struct {
	// Provider is openai, anthropic or google.
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
}

// KeysConfig holds API secrets. Each one can be set from the environment.
type KeysConfig struct {
	OpenAI        string `yaml:"openai"`
	Anthropic     string `yaml:"anthropic"`
	Google        string `yaml:"google"`
	Tavily        string `yaml:"tavily"`
	TripAdvisor   string `yaml:"tripadvisor"`
	AmadeusID     string `yaml:"amadeus_client_id"`
	AmadeusSecret string `yaml:"amadeus_client_secret"`
}

// RegistryConfig selects the session store.
type RegistryConfig struct {
	// Backend is memory, sqlite, mysql or redis.
	Backend       string   `yaml:"backend"`
	Path          string   `yaml:"path"`
	DSN           string   `yaml:"dsn"`
	Addr          string   `yaml:"addr"`
	Password      string   `yaml:"password"`
	DB            int      `yaml:"db"`
	KeyPrefix     string   `yaml:"key_prefix"`
	TTL           Duration `yaml:"ttl"`
	SweepInterval Duration `yaml:"sweep_interval"`
}

// EngineConfig bounds workflow execution.
type EngineConfig struct {
	MaxSteps      int      `yaml:"max_steps"`
	MaxConcurrent int      `yaml:"max_concurrent"`
	NodeTimeout   Duration `yaml:"node_timeout"`
	RunnerTimeout Duration `yaml:"runner_timeout"`
	RunBudget     Duration `yaml:"run_budget"`

	// NodeAttempts bounds runs of a model-driven node when the provider
	// fails transiently. 1 disables node retries.
	NodeAttempts int `yaml:"node_attempts"`
}

type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	MaxBodyBytes    int64    `yaml:"max_body_bytes"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	// Format is json or console.
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// ProvidersConfig points the search collaborators at their endpoints. A
// provider without credentials is left out.
type ProvidersConfig struct {
	Nominatim struct {
		Enabled   bool   `yaml:"enabled"`
		URL       string `yaml:"url"`
		UserAgent string `yaml:"user_agent"`
	} `yaml:"nominatim"`
	Tavily struct {
		URL        string `yaml:"url"`
		MaxResults int    `yaml:"max_results"`
	} `yaml:"tavily"`
	TripAdvisor struct {
		URL string `yaml:"url"`
	} `yaml:"tripadvisor"`
	Amadeus struct {
		URL string `yaml:"url"`
	} `yaml:"amadeus"`
}

// KnowledgeConfig loads the internal knowledge base.
type KnowledgeConfig struct {
	// Documents is a JSON file holding an array of documents.
	Documents string `yaml:"documents"`
}

// CredentialsConfig lists the settings a session needs to start.
type CredentialsConfig struct {
	Required []string `yaml:"required"`
}

// Duration reads YAML strings like "90s" or "60m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

// DefaultConfig is used for every setting the file leaves out.
func DefaultConfig() Config {
	var c Config
	c.LLM.Provider = "openai"
	c.Registry.Backend = "memory"
	c.Registry.Path = "tripgraph.db"
	c.Registry.TTL = Duration(60 * time.Minute)
	c.Registry.SweepInterval = Duration(5 * time.Minute)
	c.Engine.MaxSteps = 100
	c.Engine.MaxConcurrent = 8
	c.Engine.NodeTimeout = Duration(2 * time.Minute)
	c.Engine.RunnerTimeout = Duration(90 * time.Second)
	c.Engine.NodeAttempts = 3
	c.Server.Addr = ":8080"
	c.Server.ShutdownTimeout = Duration(10 * time.Second)
	c.Log.Format = "json"
	c.Log.Level = "info"
	c.Tracing.SampleRatio = 1
	c.Providers.Nominatim.Enabled = true
	c.Providers.Nominatim.UserAgent = "tripgraph/1.0"
	c.Providers.Tavily.MaxResults = 5
	return c
}

// LoadConfig reads path over the defaults, applies environment overrides
// and validates the result. An empty path skips the file.
func LoadConfig(path string, getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	for name, dst := range map[string]*string{
		"OPENAI_API_KEY":        &c.Keys.OpenAI,
		"ANTHROPIC_API_KEY":     &c.Keys.Anthropic,
		"GOOGLE_API_KEY":        &c.Keys.Google,
		"TAVILY_API_KEY":        &c.Keys.Tavily,
		"TRIPADVISOR_API_KEY":   &c.Keys.TripAdvisor,
		"AMADEUS_CLIENT_ID":     &c.Keys.AmadeusID,
		"AMADEUS_CLIENT_SECRET": &c.Keys.AmadeusSecret,
		"TRIPGRAPH_MYSQL_DSN":   &c.Registry.DSN,
		"TRIPGRAPH_REDIS_ADDR":  &c.Registry.Addr,
	} {
		if v := getenv(name); v != "" {
			*dst = v
		}
	}
	if v := getenv("GRAPH_RECURSION_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("GRAPH_RECURSION_LIMIT must be a positive integer, got %q", v)
		}
		c.Engine.MaxSteps = n
	}
	return nil
}

// settings maps credential names to their configured values.
func (c Config) settings() map[string]string {
	return map[string]string{
		"OPENAI_API_KEY":        c.Keys.OpenAI,
		"ANTHROPIC_API_KEY":     c.Keys.Anthropic,
		"GOOGLE_API_KEY":        c.Keys.Google,
		"TAVILY_API_KEY":        c.Keys.Tavily,
		"TRIPADVISOR_API_KEY":   c.Keys.TripAdvisor,
		"AMADEUS_CLIENT_ID":     c.Keys.AmadeusID,
		"AMADEUS_CLIENT_SECRET": c.Keys.AmadeusSecret,
	}
}

// RequiredCredentials returns the required settings with their values.
func (c Config) RequiredCredentials() map[string]string {
	all := c.settings()
	out := make(map[string]string, len(c.Credentials.Required))
	for _, name := range c.Credentials.Required {
		out[name] = all[name]
	}
	return out
}

// Validate checks enumerations and backend settings.
func (c Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "anthropic", "google":
	default:
		return fmt.Errorf("llm.provider must be openai, anthropic or google, got %q", c.LLM.Provider)
	}
	switch c.Registry.Backend {
	case "memory":
	case "sqlite":
		if c.Registry.Path == "" {
			return fmt.Errorf("registry.path is required for the sqlite backend")
		}
	case "mysql":
		if c.Registry.DSN == "" {
			return fmt.Errorf("registry.dsn (or TRIPGRAPH_MYSQL_DSN) is required for the mysql backend")
		}
	case "redis":
		if c.Registry.Addr == "" {
			return fmt.Errorf("registry.addr (or TRIPGRAPH_REDIS_ADDR) is required for the redis backend")
		}
	default:
		return fmt.Errorf("registry.backend must be memory, sqlite, mysql or redis, got %q", c.Registry.Backend)
	}
	if c.Registry.TTL <= 0 || c.Registry.SweepInterval <= 0 {
		return fmt.Errorf("registry.ttl and registry.sweep_interval must be positive")
	}
	if c.Engine.MaxSteps <= 0 {
		return fmt.Errorf("engine.max_steps must be positive")
	}
	if nt, rt := c.Engine.NodeTimeout, c.Engine.RunnerTimeout; nt > 0 && (rt <= 0 || rt >= nt) {
		return fmt.Errorf("engine.runner_timeout must be set and shorter than engine.node_timeout (%v)", nt.D())
	}
	if c.Engine.NodeAttempts < 1 {
		return fmt.Errorf("engine.node_attempts must be at least 1")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be within [0, 1]")
	}
	known := c.settings()
	for _, name := range c.Credentials.Required {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("credentials.required: unknown setting %q", name)
		}
	}
	return nil
}
