// Package config provides the configuration schema and loader for the
// interloq translation engine.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity for the engine.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Duration wraps time.Duration so YAML values like "750ms" or "30s" decode
// directly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Capture     CaptureConfig     `yaml:"capture"`
	Detection   DetectionConfig   `yaml:"detection"`
	Trim        TrimConfig        `yaml:"trim"`
	Translation TranslationConfig `yaml:"translation"`
	Playback    PlaybackConfig    `yaml:"playback"`
	Session     SessionConfig     `yaml:"session"`
	History     HistoryConfig     `yaml:"history"`
	Engine      EngineConfig      `yaml:"engine"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the control server listens on
	// (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// CaptureConfig holds microphone capture settings.
type CaptureConfig struct {
	// Command is the ffmpeg executable. Empty resolves "ffmpeg" via PATH.
	Command string `yaml:"command"`

	// SampleRate in Hz. Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// Channels is the captured channel count. Default: 1.
	Channels int `yaml:"channels"`

	// InputFormat is the ffmpeg input demuxer (e.g., "pulse", "alsa",
	// "avfoundation").
	InputFormat string `yaml:"input_format"`

	// InputDevice is the device name passed to the demuxer.
	InputDevice string `yaml:"input_device"`
}

// DetectionConfig tunes the real-time silence detector.
type DetectionConfig struct {
	// Threshold is the mean loudness below which audio counts as silence.
	Threshold float64 `yaml:"threshold"`

	// CountdownTicks is how many one-second warning ticks precede the
	// automatic stop. Default: 3.
	CountdownTicks int `yaml:"countdown_ticks"`
}

// TrimConfig tunes the silence-boundary trimmer.
type TrimConfig struct {
	// Disabled turns trimming off entirely; recordings upload as captured.
	Disabled bool `yaml:"disabled"`

	// WindowRMSThreshold is the per-window loudness above which a window
	// counts as speech.
	WindowRMSThreshold float64 `yaml:"window_rms_threshold"`
}

// ProviderConfig configures one translation backend.
type ProviderConfig struct {
	// Name selects the provider implementation ("gemini" or "openai").
	Name string `yaml:"name"`

	// APIKey authenticates against the provider.
	APIKey string `yaml:"api_key"`

	// Model overrides the provider's default model.
	Model string `yaml:"model"`

	// PremiumModel overrides the model used for premium sessions.
	PremiumModel string `yaml:"premium_model"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`
}

// TranslationConfig holds the provider chain and retry behaviour.
type TranslationConfig struct {
	// Providers are tried in order; the first entry is the primary backend.
	Providers []ProviderConfig `yaml:"providers"`

	// Timeout bounds one translation attempt. Zero means no limit.
	Timeout Duration `yaml:"timeout"`

	// BreakerThreshold is the consecutive failure count that trips a
	// provider's circuit breaker. Default: 3.
	BreakerThreshold int `yaml:"breaker_threshold"`

	// BreakerCooldown is how long a tripped breaker rejects calls.
	// Default: 30s.
	BreakerCooldown Duration `yaml:"breaker_cooldown"`
}

// PlaybackConfig holds audio output settings.
type PlaybackConfig struct {
	// Command is the ffplay executable. Empty resolves "ffplay" via PATH.
	Command string `yaml:"command"`
}

// SessionConfig holds conversation session settings.
type SessionConfig struct {
	// SourceLang and TargetLang are the two conversation languages
	// (e.g., "en", "es").
	SourceLang string `yaml:"source_lang"`
	TargetLang string `yaml:"target_lang"`

	// Premium requests the higher-quality translation tier.
	Premium bool `yaml:"premium"`

	// TTL is the session lifetime from last activity. Default: 30m.
	TTL Duration `yaml:"ttl"`
}

// HistoryConfig holds conversation history persistence settings.
type HistoryConfig struct {
	// PostgresDSN is the connection string for the history database.
	// Empty disables persistence.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// EngineConfig tunes the recording orchestrator.
type EngineConfig struct {
	// Preroll is the delay between arming a cycle and recording start.
	// Default: 3s.
	Preroll Duration `yaml:"preroll"`

	// RetryDelay is the pause before re-arming after a discarded recording.
	// Default: 500ms.
	RetryDelay Duration `yaml:"retry_delay"`
}
