package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Backend     BackendConfig             `json:"backend"`
	Auth        AuthConfig                `json:"auth"`
	Storage     StorageConfig             `json:"storage"`
	Redis       RedisConfig               `json:"redis"`
	Databases   map[string]DatabaseConfig `json:"databases"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
	// RequestTimeout bounds every outbound backend call, in seconds.
	RequestTimeout int `json:"request_timeout"`
	MaxUploadMB    int `json:"max_upload_mb"`
}

// BackendConfig points at the study backend that generates and persists summaries.
type BackendConfig struct {
	BaseURL string `json:"base_url"`
}

// AuthConfig points at the hosted identity provider.
type AuthConfig struct {
	BaseURL string `json:"base_url"`
	AnonKey string `json:"anon_key"`
}

// StorageConfig points at the hosted object store holding uploaded PDFs.
type StorageConfig struct {
	BaseURL string `json:"base_url"`
	Bucket  string `json:"bucket"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Backend.BaseURL == "" {
		return nil, fmt.Errorf("backend base_url must be configured")
	}
	if cfg.Storage.BaseURL == "" || cfg.Storage.Bucket == "" {
		return nil, fmt.Errorf("storage base_url and bucket must be configured")
	}
	if cfg.BasicConfig.RequestTimeout <= 0 {
		cfg.BasicConfig.RequestTimeout = 60
	}
	if cfg.BasicConfig.MaxUploadMB <= 0 {
		cfg.BasicConfig.MaxUploadMB = 25
	}

	return &cfg, nil
}
