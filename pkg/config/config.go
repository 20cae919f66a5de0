// Package config loads sheetboard settings from a YAML file, an optional
// .env file and SHEETBOARD_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "SHEETBOARD_"

// Config is the full runtime configuration.
type Config struct {
	Environment string          `yaml:"environment" validate:"oneof=development production"`
	Store       StoreConfig     `yaml:"store"`
	Server      ServerConfig    `yaml:"server"`
	Mongo       MongoConfig     `yaml:"mongo"`
	Workbook    WorkbookConfig  `yaml:"workbook"`
	Dashboard   DashboardConfig `yaml:"dashboard"`
}

// StoreConfig points the editor at the dashboard store server.
type StoreConfig struct {
	URL    string `yaml:"url" validate:"omitempty,url"`
	APIKey string `yaml:"apiKey"`
}

// ServerConfig holds listen addresses.
type ServerConfig struct {
	StoreAddr  string `yaml:"storeAddr" validate:"required"`
	EditorAddr string `yaml:"editorAddr" validate:"required"`
}

// MongoConfig selects the store server's Mongo backend. An empty URI keeps
// the store in memory.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// WorkbookConfig locates the .xlsx file backing the spreadsheet accessor.
type WorkbookConfig struct {
	Path string `yaml:"path"`
}

// DashboardConfig tunes the engine.
type DashboardConfig struct {
	AutosaveDelay   time.Duration `yaml:"autosaveDelay" validate:"gte=0"`
	HistoryDepth    int           `yaml:"historyDepth" validate:"gte=0"`
	RefreshSchedule string        `yaml:"refreshSchedule"`
	TemplatesDir    string        `yaml:"templatesDir"`
	SkipSchemas     bool          `yaml:"skipSchemas"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Environment: "development",
		Server: ServerConfig{
			StoreAddr:  ":8081",
			EditorAddr: ":8080",
		},
		Mongo: MongoConfig{Database: "sheetboard"},
		Dashboard: DashboardConfig{
			AutosaveDelay: 2 * time.Second,
			HistoryDepth:  50,
		},
	}
}

// IsProduction reports whether the production environment is selected.
func (c Config) IsProduction() bool { return c.Environment == "production" }

// Load builds the configuration. Missing files are skipped; an empty path
// skips that layer.
func Load(yamlPath, envPath string) (Config, error) {
	cfg := Default()
	if yamlPath != "" {
		if err := readYAML(yamlPath, &cfg); err != nil {
			return Config{}, err
		}
	}
	dotenv := map[string]string{}
	if envPath != "" {
		vars, err := godotenv.Read(envPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("config: read %s: %w", envPath, err)
		default:
			dotenv = vars
		}
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func readYAML(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"ENV":              &cfg.Environment,
		"STORE_URL":        &cfg.Store.URL,
		"STORE_API_KEY":    &cfg.Store.APIKey,
		"STORE_ADDR":       &cfg.Server.StoreAddr,
		"EDITOR_ADDR":      &cfg.Server.EditorAddr,
		"MONGO_URI":        &cfg.Mongo.URI,
		"MONGO_DATABASE":   &cfg.Mongo.Database,
		"WORKBOOK":         &cfg.Workbook.Path,
		"REFRESH_SCHEDULE": &cfg.Dashboard.RefreshSchedule,
		"TEMPLATES_DIR":    &cfg.Dashboard.TemplatesDir,
	}
	for key, dst := range strs {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = v
		}
	}
	if v, ok := lookup(envPrefix + "AUTOSAVE_DELAY"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %sAUTOSAVE_DELAY: %w", envPrefix, err)
		}
		cfg.Dashboard.AutosaveDelay = d
	}
	if v, ok := lookup(envPrefix + "HISTORY_DEPTH"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %sHISTORY_DEPTH: %w", envPrefix, err)
		}
		cfg.Dashboard.HistoryDepth = n
	}
	if v, ok := lookup(envPrefix + "SKIP_SCHEMAS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %sSKIP_SCHEMAS: %w", envPrefix, err)
		}
		cfg.Dashboard.SkipSchemas = b
	}
	return nil
}
