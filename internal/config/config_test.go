package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okravets/baraholka/internal/config"
)

const minimalYAML = `
telegram:
  token: "123456:TEST-TOKEN"
  admin_user_id: 42
storage:
  endpoint: "minio.local:9000"
  access_key: "access"
  secret_key: "secret"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Telegram.Token != "123456:TEST-TOKEN" {
		t.Errorf("Token = %q", cfg.Telegram.Token)
	}
	if cfg.Telegram.AdminUserID != 42 {
		t.Errorf("AdminUserID = %d, want 42", cfg.Telegram.AdminUserID)
	}

	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("Log defaults = %q/%q, want info/json", cfg.Log.Level, cfg.Log.Format)
	}
	if cfg.Database.Path != "baraholka.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Extractor.TitleMaxLen != 50 {
		t.Errorf("TitleMaxLen = %d, want 50", cfg.Extractor.TitleMaxLen)
	}
	if cfg.Pipeline.BackfillLimit != 1000 {
		t.Errorf("BackfillLimit = %d, want 1000", cfg.Pipeline.BackfillLimit)
	}
	if cfg.Pipeline.ExternalTimeout != 30*time.Second {
		t.Errorf("ExternalTimeout = %v, want 30s", cfg.Pipeline.ExternalTimeout)
	}
}

func TestLoadDefaultCategoryOrder(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := []config.CategoryRule{
		{Keyword: "одяг", Category: "clothing"},
		{Keyword: "взуття", Category: "footwear"},
		{Keyword: "аксесуари", Category: "accessories"},
	}

	if len(cfg.Extractor.Categories) != len(want) {
		t.Fatalf("Categories len = %d, want %d", len(cfg.Extractor.Categories), len(want))
	}
	for i, rule := range want {
		if cfg.Extractor.Categories[i] != rule {
			t.Errorf("Categories[%d] = %+v, want %+v", i, cfg.Extractor.Categories[i], rule)
		}
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("BOT_LOG_LEVEL", "debug")

	cfg, err := config.Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug from environment", cfg.Log.Level)
	}
}

func TestLoadValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing telegram token",
			content: `
telegram:
  admin_user_id: 42
storage:
  endpoint: "minio.local:9000"
  access_key: "access"
  secret_key: "secret"
`,
		},
		{
			name: "zero admin id",
			content: `
telegram:
  token: "123456:TEST-TOKEN"
  admin_user_id: 0
storage:
  endpoint: "minio.local:9000"
  access_key: "access"
  secret_key: "secret"
`,
		},
		{
			name: "missing storage credentials",
			content: `
telegram:
  token: "123456:TEST-TOKEN"
  admin_user_id: 42
`,
		},
		{
			name: "unknown category",
			content: minimalYAML + `
extractor:
  title_max_len: 50
  price_units: ["грн"]
  categories:
    - keyword: "одяг"
      category: "furniture"
`,
		},
		{
			name: "invalid log level",
			content: minimalYAML + `
log:
  level: "verbose"
  format: "json"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load succeeded, want validation error")
			}
			if !errors.Is(err, config.ErrConfiguration) {
				t.Errorf("error %v does not wrap ErrConfiguration", err)
			}
		})
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("BOT_TELEGRAM_TOKEN", "123456:ENV-TOKEN")

	// Missing file is tolerated, but required fields still fail validation
	// when nothing supplies them.
	path := filepath.Join(t.TempDir(), "absent.yaml")
	_, err := config.Load(path)
	if err == nil {
		t.Fatal("Load succeeded without required fields")
	}
	if !errors.Is(err, config.ErrConfiguration) {
		t.Errorf("error %v does not wrap ErrConfiguration", err)
	}
}
