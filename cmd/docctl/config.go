package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	envConfig  = "DOCCTL_CONFIG"
	envBaseURL = "DOCFLOW_BASE_URL"

	defaultBaseURL      = "http://localhost:8080"
	defaultTimeout      = 30 * time.Second
	defaultPollInterval = time.Second
)

// settings is the docctl configuration file.
type settings struct {
	BaseURL      string        `yaml:"baseUrl"`
	Output       string        `yaml:"output"`
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"pollInterval"`
}

func defaultSettings() settings {
	return settings{
		BaseURL:      defaultBaseURL,
		Output:       outputText,
		Timeout:      defaultTimeout,
		PollInterval: defaultPollInterval,
	}
}

// configPath resolves the config file location: the explicit path, then
// $DOCCTL_CONFIG, then the user config directory.
func configPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v := os.Getenv(envConfig); v != "" {
		return v
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "docflow", "docctl.yaml")
}

// loadSettings reads path over the defaults. A missing file is not an error.
func loadSettings(path string) (settings, error) {
	cfg := defaultSettings()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return cfg, nil
}

func saveSettings(cfg settings, path string) error {
	if path == "" {
		return errors.New("no config path available")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
