package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists the recognised translation provider names.
// [Validate] rejects entries outside this set.
var ValidProviderNames = []string{"gemini", "openai"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Capture.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("capture.sample_rate must not be negative, got %d", cfg.Capture.SampleRate))
	}
	if cfg.Capture.Channels < 0 || cfg.Capture.Channels > 2 {
		errs = append(errs, fmt.Errorf("capture.channels must be 0, 1 or 2, got %d", cfg.Capture.Channels))
	}

	if cfg.Detection.Threshold < 0 || cfg.Detection.Threshold > 1 {
		errs = append(errs, fmt.Errorf("detection.threshold must be within [0, 1], got %g", cfg.Detection.Threshold))
	}
	if cfg.Detection.CountdownTicks < 0 {
		errs = append(errs, fmt.Errorf("detection.countdown_ticks must not be negative, got %d", cfg.Detection.CountdownTicks))
	}

	if cfg.Trim.WindowRMSThreshold < 0 || cfg.Trim.WindowRMSThreshold > 1 {
		errs = append(errs, fmt.Errorf("trim.window_rms_threshold must be within [0, 1], got %g", cfg.Trim.WindowRMSThreshold))
	}

	if len(cfg.Translation.Providers) == 0 {
		errs = append(errs, errors.New("translation.providers must list at least one provider"))
	}
	for i, p := range cfg.Translation.Providers {
		prefix := fmt.Sprintf("translation.providers[%d]", i)
		if !slices.Contains(ValidProviderNames, p.Name) {
			errs = append(errs, fmt.Errorf("%s.name %q is unknown; valid values: %v", prefix, p.Name, ValidProviderNames))
		}
		if p.APIKey == "" {
			errs = append(errs, fmt.Errorf("%s.api_key must not be empty", prefix))
		}
	}
	if cfg.Translation.BreakerThreshold < 0 {
		errs = append(errs, fmt.Errorf("translation.breaker_threshold must not be negative, got %d", cfg.Translation.BreakerThreshold))
	}

	if cfg.Session.SourceLang == "" || cfg.Session.TargetLang == "" {
		errs = append(errs, errors.New("session.source_lang and session.target_lang must both be set"))
	} else if cfg.Session.SourceLang == cfg.Session.TargetLang {
		errs = append(errs, fmt.Errorf("session languages must differ, both are %q", cfg.Session.SourceLang))
	}

	if cfg.History.PostgresDSN == "" {
		slog.Warn("history.postgres_dsn is empty; conversation history will not be persisted")
	}
	if len(cfg.Translation.Providers) == 1 {
		slog.Warn("only one translation provider configured; backend outages will not fail over")
	}

	return errors.Join(errs...)
}
