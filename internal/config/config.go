package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config models logicforge.yml.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Logging      LoggingConfig      `yaml:"logging"`
	AI           AIConfig           `yaml:"ai"`
	Gamification GamificationConfig `yaml:"gamification"`
	Webhooks     []WebhookConfig    `yaml:"webhooks"`
}

type ServerConfig struct {
	Addr                  string   `yaml:"addr"`
	BasePath              string   `yaml:"base_path"`
	CORSOrigins           []string `yaml:"cors_origins"`
	JWTSecret             string   `yaml:"jwt_secret"`
	AllowLegacyUserHeader bool     `yaml:"allow_legacy_user_header"`
	DevAuth               bool     `yaml:"dev_auth"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type AIConfig struct {
	Provider            string `yaml:"provider"`
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	ChatModel           string `yaml:"chat_model"`
	EmbeddingModel      string `yaml:"embedding_model"`
	EmbeddingDimensions int    `yaml:"embedding_dimensions"`
	TimeoutSeconds      int    `yaml:"timeout_seconds"`
	RequestsPerMinute   int    `yaml:"requests_per_minute"`
}

type GamificationConfig struct {
	StepXP          map[int]int `yaml:"step_xp"`
	CompletionBonus int         `yaml:"completion_bonus"`
	Levels          []Level     `yaml:"levels"`
}

type Level struct {
	Level     int    `yaml:"level"`
	Threshold int    `yaml:"threshold"`
	Title     string `yaml:"title"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Enabled        *bool    `yaml:"enabled"`
	Events         []string `yaml:"events"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

const (
	ProviderNone   = "none"
	ProviderOpenAI = "openai"
)

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Server.BasePath, "/") && c.Server.BasePath != "" {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("config.logging.format must be console or json")
	}
	switch c.AI.Provider {
	case "", ProviderNone, ProviderOpenAI:
	default:
		return fmt.Errorf("config.ai.provider %q is not supported", c.AI.Provider)
	}
	if c.AI.EmbeddingDimensions <= 0 {
		return fmt.Errorf("config.ai.embedding_dimensions must be positive")
	}
	if c.AI.TimeoutSeconds < 0 {
		return fmt.Errorf("config.ai.timeout_seconds must not be negative")
	}
	for step := 1; step <= 5; step++ {
		if _, ok := c.Gamification.StepXP[step]; !ok {
			return fmt.Errorf("config.gamification.step_xp is missing step %d", step)
		}
	}
	if len(c.Gamification.Levels) == 0 {
		return fmt.Errorf("config.gamification.levels is required")
	}
	for i, lvl := range c.Gamification.Levels {
		if lvl.Title == "" {
			return fmt.Errorf("level %d has empty title", lvl.Level)
		}
		if i == 0 && lvl.Threshold != 0 {
			return fmt.Errorf("first level threshold must be 0")
		}
		if i > 0 && lvl.Threshold <= c.Gamification.Levels[i-1].Threshold {
			return fmt.Errorf("level %d threshold must exceed level %d", lvl.Level, c.Gamification.Levels[i-1].Level)
		}
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "logicforge.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// Load reads the config at path, falling back to defaults when the file does
// not exist. Keys present in the file override the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses YAML over the defaults and validates the result.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

const defaultTemplate = `server:
  addr: ":8080"
  base_path: /v1
  cors_origins:
    - http://localhost:5173
    - http://localhost:3000
  allow_legacy_user_header: false
  dev_auth: false

logging:
  level: info
  format: console

ai:
  provider: none
  chat_model: gpt-4-turbo-preview
  embedding_model: text-embedding-ada-002
  embedding_dimensions: 1536
  timeout_seconds: 10
  requests_per_minute: 30

gamification:
  step_xp:
    1: 100
    2: 150
    3: 150
    4: 200
    5: 250
  completion_bonus: 100
  levels:
    - {level: 1, threshold: 0, title: Rookie}
    - {level: 2, threshold: 200, title: Explorer}
    - {level: 3, threshold: 500, title: Strategist}
    - {level: 4, threshold: 1000, title: Architect}
    - {level: 5, threshold: 2000, title: Master}
    - {level: 6, threshold: 4000, title: Legend}
    - {level: 7, threshold: 7000, title: Champion}
    - {level: 8, threshold: 10000, title: Grandmaster}
`
