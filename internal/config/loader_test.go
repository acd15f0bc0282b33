package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/interloq/interloq/internal/config"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
capture:
  sample_rate: 16000
  channels: 1
detection:
  threshold: 0.05
  countdown_ticks: 3
translation:
  providers:
    - name: gemini
      api_key: key-a
    - name: openai
      api_key: key-b
  timeout: 30s
session:
  source_lang: en
  target_lang: es
engine:
  preroll: 3s
  retry_delay: 500ms
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.Server.ListenAddr)
	}
	if len(cfg.Translation.Providers) != 2 || cfg.Translation.Providers[0].Name != "gemini" {
		t.Errorf("Providers = %+v, want gemini first", cfg.Translation.Providers)
	}
	if cfg.Translation.Timeout.Std() != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Translation.Timeout.Std())
	}
	if cfg.Engine.Preroll.Std() != 3*time.Second {
		t.Errorf("Preroll = %v, want 3s", cfg.Engine.Preroll.Std())
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	yaml := validYAML + "\nnot_a_real_section:\n  x: 1\n"
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_CollectsAllFailures(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: verbose
detection:
  threshold: 2.5
session:
  source_lang: en
  target_lang: en
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	for _, want := range []string{"log_level", "threshold", "languages must differ", "at least one provider"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q, got: %v", want, err)
		}
	}
}

func TestValidate_UnknownProvider(t *testing.T) {
	t.Parallel()
	yaml := `
translation:
  providers:
    - name: babelfish
      api_key: k
session:
  source_lang: en
  target_lang: es
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown provider, got nil")
	}
	if !strings.Contains(err.Error(), "babelfish") {
		t.Errorf("error should mention the provider name, got: %v", err)
	}
}

func TestValidate_MissingAPIKey(t *testing.T) {
	t.Parallel()
	yaml := `
translation:
  providers:
    - name: gemini
session:
  source_lang: en
  target_lang: es
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing api_key, got nil")
	}
	if !strings.Contains(err.Error(), "api_key") {
		t.Errorf("error should mention api_key, got: %v", err)
	}
}

func TestDuration_Invalid(t *testing.T) {
	t.Parallel()
	yaml := `
translation:
  providers:
    - name: gemini
      api_key: k
  timeout: soon
session:
  source_lang: en
  target_lang: es
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid duration, got nil")
	}
	if !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("error should mention invalid duration, got: %v", err)
	}
}
