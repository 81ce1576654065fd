// server/config/config.go
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreMem      = "mem"
	StoreFile     = "file"
	StorePostgres = "postgres"
)

// Config is the server configuration. Values come from three layers, each
// overriding the one before it: built-in defaults, an optional YAML file,
// then ARBOR_* environment variables.
type Config struct {
	Port        string `yaml:"port"`
	Store       string `yaml:"store"`
	DatabaseURL string `yaml:"databaseUrl"`
	DataDir     string `yaml:"dataDir"`
	TokenHash   string `yaml:"tokenHash"`
	LogLevel    string `yaml:"logLevel"`
}

func defaults() Config {
	return Config{
		Port:     "8080",
		Store:    StoreFile,
		DataDir:  "./notes",
		LogLevel: "info",
	}
}

// Load assembles the configuration. A .env file in the working directory is
// read into the environment first; ARBOR_CONFIG names the YAML overlay file
// (default arbor.yml, silently skipped when absent).
func Load() (Config, error) {
	godotenv.Load()

	cfg := defaults()

	path := os.Getenv("ARBOR_CONFIG")
	explicit := path != ""
	if path == "" {
		path = "arbor.yml"
	}
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}

	overlayEnv(&cfg)

	switch cfg.Store {
	case StoreMem, StoreFile, StorePostgres:
	default:
		return Config{}, fmt.Errorf("unknown store backend %q", cfg.Store)
	}
	if cfg.Store == StorePostgres && cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("store %q needs ARBOR_DATABASE_URL", cfg.Store)
	}
	return cfg, nil
}

func overlayEnv(cfg *Config) {
	setIfPresent(&cfg.Port, "ARBOR_PORT")
	setIfPresent(&cfg.Store, "ARBOR_STORE")
	setIfPresent(&cfg.DatabaseURL, "ARBOR_DATABASE_URL")
	setIfPresent(&cfg.DataDir, "ARBOR_DATA_DIR")
	setIfPresent(&cfg.TokenHash, "ARBOR_TOKEN_HASH")
	setIfPresent(&cfg.LogLevel, "ARBOR_LOG_LEVEL")
}

func setIfPresent(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
