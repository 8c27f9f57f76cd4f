package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

//go:embed default.toml
var defaultTOML []byte

type IntentPrompts struct {
	Classify string `toml:"classify"`
}

type PlanningPrompts struct {
	Plan string `toml:"plan"`
}

type NarrationPrompts struct {
	Act     string `toml:"act"`
	Inspect string `toml:"inspect"`
	Other   string `toml:"other"`
}

type Prompts struct {
	Preamble  string           `toml:"preamble"`
	Intent    IntentPrompts    `toml:"intent"`
	Planning  PlanningPrompts  `toml:"planning"`
	Narration NarrationPrompts `toml:"narration"`
}

type LLMConfig struct {
	Provider  string `toml:"provider" env:"LLM_PROVIDER"`
	Model     string `toml:"model" env:"LLM_MODEL"`
	APIKey    string `toml:"api_key" env:"LLM_API_KEY"`
	BaseURL   string `toml:"base_url" env:"LLM_BASE_URL"`
	MaxTokens int    `toml:"max_tokens" env:"LLM_MAX_TOKENS"`
}

const (
	BackendSQLite   = "sqlite"
	BackendMemgraph = "memgraph"
)

type StorageConfig struct {
	Backend        string `toml:"backend" env:"TEXTY_STORAGE"`
	Path           string `toml:"path" env:"TEXTY_DB_PATH"`
	MaxConnections int    `toml:"max_connections" env:"TEXTY_MAX_CONNECTIONS"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri" env:"MEMGRAPH_URI"`
	User     string `toml:"user" env:"MEMGRAPH_USER"`
	Password string `toml:"password" env:"MEMGRAPH_PASSWORD"`
}

type ServerConfig struct {
	Port string `toml:"port" env:"PORT"`
}

type TelemetryConfig struct {
	Endpoint    string `toml:"endpoint" env:"OTEL_ENDPOINT"`
	ServiceName string `toml:"service_name" env:"OTEL_SERVICE_NAME"`
}

type Config struct {
	LLM       LLMConfig       `toml:"llm"`
	Storage   StorageConfig   `toml:"storage"`
	Memgraph  MemgraphConfig  `toml:"memgraph"`
	Server    ServerConfig    `toml:"server"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Prompts   Prompts         `toml:"prompts"`
}

// Default returns the built-in configuration, prompts included.
func Default() *Config {
	var cfg Config
	if err := toml.Unmarshal(defaultTOML, &cfg); err != nil {
		panic(fmt.Sprintf("invalid embedded default config: %v", err))
	}
	return &cfg
}

// Load layers the TOML file at path over the defaults and then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		default:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse TOML: %w", err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	switch c.Storage.Backend {
	case BackendSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for the sqlite backend"))
		}
	case BackendMemgraph:
		if c.Memgraph.URI == "" {
			errs = append(errs, errors.New("memgraph.uri is required for the memgraph backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if c.Storage.MaxConnections < 1 {
		errs = append(errs, errors.New("storage.max_connections must be at least 1"))
	}
	if c.Prompts.Intent.Classify == "" || c.Prompts.Planning.Plan == "" || c.Prompts.Narration.Act == "" ||
		c.Prompts.Narration.Inspect == "" || c.Prompts.Narration.Other == "" {
		errs = append(errs, errors.New("prompts are incomplete"))
	}
	return errors.Join(errs...)
}
