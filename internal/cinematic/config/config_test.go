package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bdobrica/Cinematic/internal/cinematic/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cinematic.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pipeline.HighConfidenceThreshold != 0.8 {
		t.Errorf("highConfidenceThreshold = %v; want 0.8", cfg.Pipeline.HighConfidenceThreshold)
	}
	if cfg.Pipeline.SessionTimeout.Std() != 5*time.Minute {
		t.Errorf("sessionTimeout = %v; want 5m", cfg.Pipeline.SessionTimeout.Std())
	}
	if cfg.Pipeline.MaxCandidates != 5 {
		t.Errorf("maxCandidates = %d; want 5", cfg.Pipeline.MaxCandidates)
	}
	if cfg.NLP.Model != "gpt-4o-mini" {
		t.Errorf("nlp model = %q; want gpt-4o-mini", cfg.NLP.Model)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  highConfidenceThreshold: 0.9
  clarificationFloor: 0.3
  minMargin: 0.05
  sessionTimeout: 10m
  maxRetries: 5
radarr:
  url: http://radarr:7878
  apiKey: file-key
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pipeline.HighConfidenceThreshold != 0.9 {
		t.Errorf("highConfidenceThreshold = %v; want 0.9", cfg.Pipeline.HighConfidenceThreshold)
	}
	if cfg.Pipeline.SessionTimeout.Std() != 10*time.Minute {
		t.Errorf("sessionTimeout = %v; want 10m", cfg.Pipeline.SessionTimeout.Std())
	}
	if cfg.Radarr.URL != "http://radarr:7878" {
		t.Errorf("radarr url = %q", cfg.Radarr.URL)
	}
	// File values not specified keep defaults.
	if cfg.Pipeline.MaxCandidates != 5 {
		t.Errorf("maxCandidates = %d; want default 5", cfg.Pipeline.MaxCandidates)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
radarr:
  apiKey: file-key
`)
	t.Setenv("RADARR_API_KEY", "env-key")
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Radarr.APIKey != "env-key" {
		t.Errorf("radarr apiKey = %q; want env-key", cfg.Radarr.APIKey)
	}
}

func TestLoad_RejectsInconsistentThresholds(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  highConfidenceThreshold: 0.5
  clarificationFloor: 0.7
`)
	if _, err := config.Load(path); err == nil {
		t.Error("expected error when clarificationFloor >= highConfidenceThreshold")
	}
}

func TestLoad_RejectsBadDuration(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  sessionTimeout: whenever
`)
	if _, err := config.Load(path); err == nil {
		t.Error("expected error for unparseable duration")
	}
}
