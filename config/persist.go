package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/nyabot/nyabot/errors"
)

// Save writes the configuration back to disk as YAML, rotating a single
// backup of the previous content.
func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = DefaultConfigFile
	}

	if err := createBackup(configPath); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create config directory %s", dir)
		}
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write config file %s", configPath)
	}
	return nil
}

// createBackup copies the current config aside before modifying it.
func createBackup(configPath string) error {
	content, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}
	if err := os.WriteFile(configPath+".bak", content, 0o644); err != nil {
		return errors.Wrap(err, "failed to write config backup")
	}
	return nil
}
