package config

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"demand_forecast/internal/predictor"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// DefaultPath is where `forecast init` writes the config.
const DefaultPath = "forecast.yaml"

type Config struct {
	Sheet    Sheet    `yaml:"sheet"`
	Training Training `yaml:"training"`
	Solar    Solar    `yaml:"solar"`
	Server   Server   `yaml:"server"`
	Redis    Redis    `yaml:"redis"`
	State    State    `yaml:"state"`
	Logging  Logging  `yaml:"logging"`
}

type Sheet struct {
	ID                string        `yaml:"id"`
	Worksheet         string        `yaml:"worksheet"`
	BaseURL           string        `yaml:"base_url"`
	File              string        `yaml:"file"`
	CredentialsFile   string        `yaml:"credentials_file"`
	RequireCredential bool          `yaml:"require_credential"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxAttempts       int           `yaml:"max_attempts"`
	BaseBackoff       time.Duration `yaml:"base_backoff"`
}

type Training struct {
	Split predictor.SplitConfig `yaml:"split"`
	Seed  uint64                `yaml:"seed"`
}

type Solar struct {
	CapacityMW float64 `yaml:"capacity_mw"`
	Latitude   float64 `yaml:"latitude"`
}

type Server struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
	// JWTSecret enables bearer-token auth on the routes that change state.
	JWTSecret string `yaml:"jwt_secret"`
}

type Redis struct {
	URL     string `yaml:"url"`
	Channel string `yaml:"channel"`
}

type State struct {
	Path string `yaml:"path"`
}

type Logging struct {
	Verbose bool `yaml:"verbose"`
}

// Default returns the built-in configuration without environment overrides.
func Default() *Config {
	return &Config{
		Sheet: Sheet{
			Worksheet:   "Sheet1",
			Timeout:     30 * time.Second,
			MaxAttempts: 3,
			BaseBackoff: time.Second,
		},
		Training: Training{Split: predictor.DefaultSplitConfig(), Seed: 42},
		Server:   Server{Addr: ":8080"},
		Redis:    Redis{Channel: "forecast:events"},
		State:    State{Path: ".forecast/state.db"},
	}
}

// Load reads path when it exists, otherwise starts from defaults, and then
// applies environment overrides.
func Load(path string) (*Config, error) {
	var cfg *Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		cfg, err = parse(data)
		if err != nil {
			return nil, err
		}
	case os.IsNotExist(err) && path == DefaultPath:
		cfg = Default()
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Sheet.ID = getEnv("SHEET_ID", c.Sheet.ID)
	c.Sheet.Worksheet = getEnv("WORKSHEET_NAME", c.Sheet.Worksheet)
	c.Sheet.BaseURL = getEnv("SHEETS_BASE_URL", c.Sheet.BaseURL)
	c.Sheet.MaxAttempts = getEnvInt("SHEET_MAX_ATTEMPTS", c.Sheet.MaxAttempts)
	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)
	c.State.Path = getEnv("FORECAST_STATE_DB", c.State.Path)
	c.Server.Addr = getEnv("SERVER_ADDR", c.Server.Addr)
	c.Server.JWTSecret = getEnv("API_JWT_SECRET", c.Server.JWTSecret)
}

// Validate checks values that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	if c.Sheet.ID == "" && c.Sheet.File == "" {
		return fmt.Errorf("config: set sheet.id (or SHEET_ID) or sheet.file")
	}
	if c.Sheet.MaxAttempts < 1 {
		return fmt.Errorf("config: sheet.max_attempts must be at least 1")
	}
	switch c.Training.Split.Policy {
	case predictor.PolicyRandom, predictor.PolicyTemporal:
	default:
		return fmt.Errorf("config: unknown split policy %q", c.Training.Split.Policy)
	}
	if f := c.Training.Split.TestFraction; f <= 0 || f >= 1 {
		return fmt.Errorf("config: training.split.test_fraction %v out of range (0, 1)", f)
	}
	if s := c.Server.JWTSecret; s != "" && len(s) < 16 {
		return fmt.Errorf("config: server.jwt_secret must be at least 16 bytes")
	}
	if c.Solar.CapacityMW < 0 {
		return fmt.Errorf("config: solar.capacity_mw must not be negative")
	}
	return nil
}

// WriteDefault writes the embedded default config to path, refusing to
// overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("invalid %s=%q, using default %d", key, value, fallback)
		return fallback
	}
	return n
}
