// Package config loads and validates the audit worker configuration from a
// YAML file, with environment-variable fallbacks for credentials so secrets
// can stay out of the file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode selects which Work Source realization drives the dispatch loop.
type Mode string

const (
	// ModeLocal watches a local directory tree; idempotency is
	// fingerprint-based.
	ModeLocal Mode = "local"

	// ModeCloud watches a Supabase input bucket; idempotency is
	// presence-based (consumed objects are deleted).
	ModeCloud Mode = "cloud"
)

// Defaults applied before the file and environment are consulted.
const (
	DefaultPollIntervalSeconds    = 10
	DefaultBackoffIntervalSeconds = 30
	DefaultIncludePattern         = "*.txt"
	DefaultInputRoot              = "inputs"
	DefaultOutputRoot             = "outputs"
	DefaultLedgerTable            = "sales_memory"
	DefaultModel                  = "deepseek-chat"
	DefaultBaseURL                = "https://api.deepseek.com"
	DefaultMaxInputTokens         = 24000
)

// SupabaseConfig holds the remote project coordinates.
type SupabaseConfig struct {
	URL          string `yaml:"url"`
	Key          string `yaml:"key"`
	InputBucket  string `yaml:"input_bucket"`
	OutputBucket string `yaml:"output_bucket"`
}

// LLMConfig holds model provider settings.
type LLMConfig struct {
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	MaxInputTokens int     `yaml:"max_input_tokens"`
}

// LedgerConfig selects and locates the memory ledger backend.
type LedgerConfig struct {
	// Driver is "sqlite" or "supabase". Defaults to supabase when the
	// Supabase project is configured, sqlite otherwise.
	Driver string `yaml:"driver"`

	// Dir is the directory for the sqlite database file.
	Dir string `yaml:"dir"`

	// Table is the remote table name for the supabase driver.
	Table string `yaml:"table"`
}

// Config is the full worker configuration.
type Config struct {
	Mode                   Mode           `yaml:"mode"`
	PollIntervalSeconds    int            `yaml:"poll_interval_seconds"`
	BackoffIntervalSeconds int            `yaml:"backoff_interval_seconds"`
	InputRoot              string         `yaml:"input_root"`
	OutputRoot             string         `yaml:"output_root"`
	IncludePattern         string         `yaml:"include_pattern"`
	OwnerPrefix            string         `yaml:"owner_prefix"`
	Supabase               SupabaseConfig `yaml:"supabase"`
	LLM                    LLMConfig      `yaml:"llm"`
	Ledger                 LedgerConfig   `yaml:"ledger"`
}

// Default returns a Config populated with defaults only.
func Default() *Config {
	return &Config{
		Mode:                   ModeLocal,
		PollIntervalSeconds:    DefaultPollIntervalSeconds,
		BackoffIntervalSeconds: DefaultBackoffIntervalSeconds,
		InputRoot:              DefaultInputRoot,
		OutputRoot:             DefaultOutputRoot,
		IncludePattern:         DefaultIncludePattern,
		LLM: LLMConfig{
			BaseURL:        DefaultBaseURL,
			Model:          DefaultModel,
			Temperature:    0.2,
			MaxInputTokens: DefaultMaxInputTokens,
		},
		Ledger: LedgerConfig{
			Table: DefaultLedgerTable,
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// fallbacks, and validates the result. An empty path loads defaults plus
// environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv fills credentials from the environment when the file left them
// empty. DEEPSEEK_API_KEY wins over OPENAI_API_KEY for the model key.
func (c *Config) applyEnv() {
	if c.LLM.APIKey == "" {
		if v := os.Getenv("DEEPSEEK_API_KEY"); v != "" {
			c.LLM.APIKey = v
		} else if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			c.LLM.APIKey = v
		}
	}
	if c.Supabase.URL == "" {
		c.Supabase.URL = os.Getenv("SUPABASE_URL")
	}
	if c.Supabase.Key == "" {
		c.Supabase.Key = os.Getenv("SUPABASE_KEY")
	}
	if c.Ledger.Driver == "" {
		if c.Supabase.URL != "" && c.Supabase.Key != "" {
			c.Ledger.Driver = "supabase"
		} else {
			c.Ledger.Driver = "sqlite"
		}
	}
}

// Validate checks the configuration for the selected mode.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeLocal, ModeCloud:
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", ModeLocal, ModeCloud, c.Mode)
	}

	if c.PollIntervalSeconds <= 0 {
		return fmt.Errorf("poll_interval_seconds must be positive, got %d", c.PollIntervalSeconds)
	}
	if c.BackoffIntervalSeconds <= 0 {
		return fmt.Errorf("backoff_interval_seconds must be positive, got %d", c.BackoffIntervalSeconds)
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required (or set DEEPSEEK_API_KEY)")
	}

	if c.Mode == ModeCloud {
		if c.Supabase.URL == "" || c.Supabase.Key == "" {
			return fmt.Errorf("cloud mode requires supabase.url and supabase.key (or SUPABASE_URL / SUPABASE_KEY)")
		}
		if c.Supabase.InputBucket == "" || c.Supabase.OutputBucket == "" {
			return fmt.Errorf("cloud mode requires supabase.input_bucket and supabase.output_bucket")
		}
	}

	switch c.Ledger.Driver {
	case "sqlite", "supabase":
	default:
		return fmt.Errorf("ledger.driver must be \"sqlite\" or \"supabase\", got %q", c.Ledger.Driver)
	}
	if c.Ledger.Driver == "supabase" && (c.Supabase.URL == "" || c.Supabase.Key == "") {
		return fmt.Errorf("ledger.driver \"supabase\" requires supabase.url and supabase.key")
	}

	return nil
}

// PollInterval returns the steady-state sleep between dispatch cycles.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// BackoffInterval returns the extended sleep applied after an enumeration
// failure.
func (c *Config) BackoffInterval() time.Duration {
	return time.Duration(c.BackoffIntervalSeconds) * time.Second
}
