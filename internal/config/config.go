package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config models worklist.yml.
type Config struct {
	Store struct {
		Driver string `yaml:"driver" json:"driver"`
	} `yaml:"store" json:"store"`
	Duplicates struct {
		SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"`
		MaxMatches          int     `yaml:"max_matches" json:"max_matches"`
	} `yaml:"duplicates" json:"duplicates"`
	// Escalation thresholds are consumed by the support-escalation collaborator;
	// they are kept here so every deployment tunes them in one file.
	Escalation struct {
		MinConfidence float64 `yaml:"min_confidence" json:"min_confidence"`
		Sentiment     string  `yaml:"sentiment" json:"sentiment"`
	} `yaml:"escalation" json:"escalation"`
	Listing struct {
		DefaultPageSize int `yaml:"default_page_size" json:"default_page_size"`
		MaxPageSize     int `yaml:"max_page_size" json:"max_page_size"`
	} `yaml:"listing" json:"listing"`
	Clock struct {
		Timezone string `yaml:"timezone" json:"timezone"`
	} `yaml:"clock" json:"clock"`
	Server struct {
		Addr     string `yaml:"addr" json:"addr"`
		BasePath string `yaml:"base_path" json:"base_path"`
	} `yaml:"server" json:"server"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with wkl init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional falls back to Default when the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("config.store.driver must be %q or %q", DriverSQLite, DriverMemory)
	}
	if t := c.Duplicates.SimilarityThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("config.duplicates.similarity_threshold must be in (0,1], got %v", t)
	}
	if c.Duplicates.MaxMatches < 1 {
		return fmt.Errorf("config.duplicates.max_matches must be positive")
	}
	if t := c.Escalation.MinConfidence; t < 0 || t > 1 {
		return fmt.Errorf("config.escalation.min_confidence must be in [0,1], got %v", t)
	}
	switch c.Escalation.Sentiment {
	case "negative", "neutral", "positive":
	default:
		return fmt.Errorf("config.escalation.sentiment must be negative, neutral or positive")
	}
	if c.Listing.DefaultPageSize < 1 {
		return fmt.Errorf("config.listing.default_page_size must be positive")
	}
	if c.Listing.MaxPageSize < c.Listing.DefaultPageSize {
		return fmt.Errorf("config.listing.max_page_size must be >= default_page_size")
	}
	if _, err := c.TimeLocation(); err != nil {
		return fmt.Errorf("config.clock.timezone: %w", err)
	}
	return nil
}

// TimeLocation resolves the configured zone used for day boundaries.
func (c *Config) TimeLocation() (*time.Location, error) {
	switch c.Clock.Timezone {
	case "", "Local":
		return time.Local, nil
	case "UTC":
		return time.UTC, nil
	}
	return time.LoadLocation(c.Clock.Timezone)
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "worklist.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(defaultTemplate), &cfg); err != nil {
		panic(fmt.Sprintf("default config template: %v", err))
	}
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
// Keys missing from data keep their default values.
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

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `store:
  driver: sqlite

duplicates:
  # titles scoring above this are treated as the same item
  similarity_threshold: 0.95
  max_matches: 3

escalation:
  min_confidence: 0.7
  sentiment: negative

listing:
  default_page_size: 20
  max_page_size: 100

clock:
  # IANA zone for "completed today"; Local uses the host zone
  timezone: Local

server:
  addr: 127.0.0.1:8080
  base_path: /v1
`
