package internal

import (
	"fmt"
	"log/slog"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Log formats.
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Vault  VaultConfig       `yaml:"vault"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Auth   AuthConfig        `yaml:"auth"`

	Engine      EngineConfig      `yaml:"engine"`
	Collections CollectionsConfig `yaml:"collections"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	return c.Collections.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatJSON
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatJSON, LogFormatConsole)),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// EngineConfig tunes the query engine.
type EngineConfig struct {
	// MaxNGram is the longest word sequence considered by text matching.
	MaxNGram int `yaml:"max_ngram"`
	// FingerprintSize is the number of n-grams kept per card fingerprint.
	FingerprintSize int `yaml:"fingerprint_size"`
	// MemoSize bounds each per-snapshot memo cache.
	MemoSize int `yaml:"memo_size"`
	// UserID is the viewing user; it drives the "mine" filters and the
	// author of cards created through the API.
	UserID string `yaml:"user_id"`
	// RandomSalt seeds the stable random sort.
	RandomSalt string `yaml:"random_salt"`
	// SimilarityPath optionally names a YAML file of precomputed scores:
	// card id -> similar card id -> score.
	SimilarityPath string `yaml:"similarity_path"`
	// BackgroundSimilarity computes precise scores for cards missing from
	// the similarity file; until then similar/ results are previews.
	BackgroundSimilarity bool `yaml:"background_similarity"`
}

// Validate validates the engine configuration.
func (c *EngineConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxNGram, validation.Required, validation.Min(1), validation.Max(5)),
		validation.Field(&c.FingerprintSize, validation.Required, validation.Min(1)),
		validation.Field(&c.MemoSize, validation.Required, validation.Min(1)),
	)
}

// LoadSimilarity reads the precomputed similarity file. It returns nil
// when no file is configured.
func (c *EngineConfig) LoadSimilarity() (map[string]map[string]float64, error) {
	if c.SimilarityPath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.SimilarityPath)
	if err != nil {
		return nil, fmt.Errorf("read similarity file: %w", err)
	}
	var scores map[string]map[string]float64
	if err := yaml.Unmarshal(data, &scores); err != nil {
		return nil, fmt.Errorf("parse similarity file %s: %w", c.SimilarityPath, err)
	}
	return scores, nil
}

// CollectionsConfig holds per-collection configuration keyed by canonical
// description, e.g. "everything/starred/".
type CollectionsConfig struct {
	// Fallbacks lists cards shown when the collection would be empty.
	Fallbacks map[string][]string `yaml:"fallbacks"`
	// StartCards lists cards pinned to the start of the collection.
	StartCards map[string][]string `yaml:"start_cards"`
	// InverseFilters adds filter name pairs beyond the built-in ones.
	InverseFilters map[string]string `yaml:"inverse_filters"`
}

// Validate validates the collections configuration.
func (c *CollectionsConfig) Validate() error {
	for name, inverse := range c.InverseFilters {
		if name == "" || inverse == "" {
			return fmt.Errorf("collections: inverse filter pair %q/%q has an empty name", name, inverse)
		}
		if name == inverse {
			return fmt.Errorf("collections: filter %q cannot be its own inverse", name)
		}
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatJSON,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./cardweb.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Engine: EngineConfig{
			MaxNGram:        2,
			FingerprintSize: 50,
			MemoSize:        3,
		},
	}
}
