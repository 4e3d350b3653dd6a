package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config represents the entire application configuration. Runtime settings such
// as the sync endpoint and API token are stored in the database settings table,
// not here; this file only configures where the database and attachments live
// and how the local control server listens.
type Config struct {
	DatabasePath   string    `yaml:"database_path"`
	AttachmentsDir string    `yaml:"attachments_dir"`
	Web            WebConfig `yaml:"web"`
}

// WebConfig holds settings specific to the local web server.
type WebConfig struct {
	ListenAddress string `yaml:"listen_address"`
}

// Environment variable overrides, applied after the YAML file is parsed.
const (
	envDatabasePath   = "HISAB_DATABASE_PATH"
	envAttachmentsDir = "HISAB_ATTACHMENTS_DIR"
	envListenAddress  = "HISAB_LISTEN_ADDRESS"
)

// Load loads and validates the configuration from the given file path.
func Load(filePath string) (*Config, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", filePath)
	}

	configFile, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	err = yaml.Unmarshal(configFile, &cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to parse YAML config file: %w", err)
	}

	if err := validateAndPrepare(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validateAndPrepare applies environment overrides and checks for required
// fields.
func validateAndPrepare(c *Config) error {
	if v := os.Getenv(envDatabasePath); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv(envAttachmentsDir); v != "" {
		c.AttachmentsDir = v
	}
	if v := os.Getenv(envListenAddress); v != "" {
		c.Web.ListenAddress = v
	}

	if c.DatabasePath == "" {
		return errors.New("database_path is missing")
	}
	if c.Web.ListenAddress == "" {
		return errors.New("web.listen_address is missing")
	}
	// AttachmentsDir is optional; the attachment watcher is disabled without it.
	if c.AttachmentsDir != "" {
		info, err := os.Stat(c.AttachmentsDir)
		if err != nil {
			return fmt.Errorf("attachments_dir error: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("attachments_dir %q is not a directory", c.AttachmentsDir)
		}
	}
	return nil
}
