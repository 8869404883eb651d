package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"backend": {"base_url": "https://api.example.com"},
		"storage": {"base_url": "https://store.example.com", "bucket": "slide-decks"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.BasicConfig.RequestTimeout != 60 {
		t.Fatalf("expected default request timeout 60, got %d", cfg.BasicConfig.RequestTimeout)
	}
	if cfg.BasicConfig.MaxUploadMB != 25 {
		t.Fatalf("expected default upload limit 25, got %d", cfg.BasicConfig.MaxUploadMB)
	}
}

func TestLoadRejectsMissingBackend(t *testing.T) {
	path := writeConfig(t, `{
		"storage": {"base_url": "https://store.example.com", "bucket": "slide-decks"}
	}`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing backend base_url")
	}
}

func TestLoadRejectsMissingStorage(t *testing.T) {
	path := writeConfig(t, `{
		"backend": {"base_url": "https://api.example.com"}
	}`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing storage settings")
	}
}
