// Package config loads Cinematic's configuration from a YAML file with
// environment-variable overrides for credentials.
//
// Thresholds and timeouts are product-tuning knobs, not structural constants:
// they ship with documented defaults but every one of them can be overridden
// in the config file, so operators can tune disambiguation strictness without
// a rebuild.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bdobrica/Cinematic/common/environment"
)

// Duration wraps time.Duration so YAML values like "5m" parse naturally.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MatrixConfig configures the chat gateway connection.
type MatrixConfig struct {
	Homeserver  string   `yaml:"homeserver"`
	UserID      string   `yaml:"userId"`
	AccessToken string   `yaml:"accessToken"`
	Rooms       []string `yaml:"rooms"`
}

// ArrConfig configures one media-server instance (Radarr or Sonarr).
type ArrConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"apiKey"`
	// QualityProfileID is the profile applied to items added through chat.
	QualityProfileID int `yaml:"qualityProfileId"`
	// RootFolder is where added items are placed (e.g. "/movies", "/tv").
	RootFolder string `yaml:"rootFolder"`
}

// TMDBConfig configures the external metadata source.
type TMDBConfig struct {
	APIKey string `yaml:"apiKey"`
}

// NLPConfig configures the language-model classifier.
type NLPConfig struct {
	APIKey   string `yaml:"apiKey"`
	Model    string `yaml:"model"`
	Endpoint string `yaml:"endpoint"`
	// RateLimit is the maximum classifier calls per sender per minute.
	RateLimit int `yaml:"rateLimit"`
}

// PipelineConfig holds the recognized resolution-tuning options.
type PipelineConfig struct {
	// HighConfidenceThreshold is the match score (and classifier confidence)
	// above which a single candidate resolves without a clarifying question.
	HighConfidenceThreshold float64 `yaml:"highConfidenceThreshold"`
	// ClarificationFloor is the minimum score worth asking about; anything
	// below it is rejected outright.
	ClarificationFloor float64 `yaml:"clarificationFloor"`
	// MinMargin is the score lead the best candidate needs over the runner-up
	// to resolve without asking.
	MinMargin float64 `yaml:"minMargin"`
	// SessionTimeout is how long a clarifying question stays answerable.
	SessionTimeout Duration `yaml:"sessionTimeout"`
	// MaxRetries bounds catalog retry attempts on transient failures.
	MaxRetries int `yaml:"maxRetries"`
	// DedupWindow is how long executed-action outcomes are cached to absorb
	// duplicate deliveries.
	DedupWindow Duration `yaml:"dedupWindow"`
	// MaxCandidates caps how many options a clarifying question enumerates.
	MaxCandidates int `yaml:"maxCandidates"`
}

// Config is the root configuration object.
type Config struct {
	LogLevel     string         `yaml:"logLevel"`
	LogFormat    string         `yaml:"logFormat"`
	DatabasePath string         `yaml:"databasePath"`
	Matrix       MatrixConfig   `yaml:"matrix"`
	Radarr       ArrConfig      `yaml:"radarr"`
	Sonarr       ArrConfig      `yaml:"sonarr"`
	TMDB         TMDBConfig     `yaml:"tmdb"`
	NLP          NLPConfig      `yaml:"nlp"`
	Pipeline     PipelineConfig `yaml:"pipeline"`
}

// Defaults returns a Config populated with the documented defaults.
func Defaults() Config {
	return Config{
		LogLevel:     "info",
		LogFormat:    "text",
		DatabasePath: "./cinematic.db",
		NLP: NLPConfig{
			Model:     "gpt-4o-mini",
			RateLimit: 20,
		},
		Radarr: ArrConfig{QualityProfileID: 4, RootFolder: "/movies"},
		Sonarr: ArrConfig{QualityProfileID: 4, RootFolder: "/tv"},
		Pipeline: PipelineConfig{
			HighConfidenceThreshold: 0.8,
			ClarificationFloor:      0.4,
			MinMargin:               0.1,
			SessionTimeout:          Duration(5 * time.Minute),
			MaxRetries:              3,
			DedupWindow:             Duration(3 * time.Minute),
			MaxCandidates:           5,
		},
	}
}

// Load reads the YAML file at path (if it exists), layers it over the
// defaults, then applies environment overrides for credentials. A missing
// file is not an error — a fully env-configured deployment needs no file.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to env overrides
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides layers credential and connection environment variables
// over the file-based configuration. Env always wins so secrets can be kept
// out of the YAML file entirely.
func applyEnvOverrides(cfg *Config) {
	cfg.Matrix.Homeserver = environment.StringOr("MATRIX_HOMESERVER", cfg.Matrix.Homeserver)
	cfg.Matrix.UserID = environment.StringOr("MATRIX_USER_ID", cfg.Matrix.UserID)
	cfg.Matrix.AccessToken = environment.StringOr("MATRIX_ACCESS_TOKEN", cfg.Matrix.AccessToken)
	cfg.Radarr.URL = environment.StringOr("RADARR_URL", cfg.Radarr.URL)
	cfg.Radarr.APIKey = environment.StringOr("RADARR_API_KEY", cfg.Radarr.APIKey)
	cfg.Sonarr.URL = environment.StringOr("SONARR_URL", cfg.Sonarr.URL)
	cfg.Sonarr.APIKey = environment.StringOr("SONARR_API_KEY", cfg.Sonarr.APIKey)
	cfg.TMDB.APIKey = environment.StringOr("TMDB_API_KEY", cfg.TMDB.APIKey)
	cfg.NLP.APIKey = environment.StringOr("CINEMATIC_NLP_API_KEY", cfg.NLP.APIKey)
	cfg.NLP.Endpoint = environment.StringOr("CINEMATIC_NLP_ENDPOINT", cfg.NLP.Endpoint)
	cfg.NLP.Model = environment.StringOr("CINEMATIC_NLP_MODEL", cfg.NLP.Model)
	cfg.DatabasePath = environment.StringOr("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = environment.StringOr("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = environment.StringOr("LOG_FORMAT", cfg.LogFormat)
}

// Validate checks the internal consistency of the tuning knobs. Connection
// credentials are checked at startup by the caller (missing ones disable the
// corresponding subsystem rather than failing validation).
func (c *Config) Validate() error {
	p := c.Pipeline
	if p.HighConfidenceThreshold <= 0 || p.HighConfidenceThreshold > 1 {
		return fmt.Errorf("config: highConfidenceThreshold must be in (0,1], got %v", p.HighConfidenceThreshold)
	}
	if p.ClarificationFloor < 0 || p.ClarificationFloor >= p.HighConfidenceThreshold {
		return fmt.Errorf("config: clarificationFloor must be in [0, highConfidenceThreshold), got %v", p.ClarificationFloor)
	}
	if p.MinMargin < 0 || p.MinMargin > 1 {
		return fmt.Errorf("config: minMargin must be in [0,1], got %v", p.MinMargin)
	}
	if p.SessionTimeout.Std() <= 0 {
		return fmt.Errorf("config: sessionTimeout must be positive, got %v", p.SessionTimeout.Std())
	}
	if p.MaxRetries < 1 {
		return fmt.Errorf("config: maxRetries must be at least 1, got %d", p.MaxRetries)
	}
	if p.MaxCandidates < 1 {
		return fmt.Errorf("config: maxCandidates must be at least 1, got %d", p.MaxCandidates)
	}
	return nil
}
