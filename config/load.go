package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/nyabot/nyabot/errors"
)

// DefaultConfigFile is looked up in the working directory when no explicit
// path is given.
const DefaultConfigFile = "nyabot.yaml"

// Load reads the bot configuration from the default location, falling back
// to defaults when no file exists.
func Load() (*Config, error) {
	return LoadFromFile(DefaultConfigFile)
}

// LoadFromFile loads configuration from a specific YAML file path.
// A missing file is not an error: defaults plus environment apply.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	SetDefaults(v)

	v.SetEnvPrefix("NYABOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, missing := err.(*os.PathError); !missing && !os.IsNotExist(err) {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
			}
		}
	}

	return LoadWithViper(v)
}

// LoadWithViper unmarshals configuration from a prepared Viper instance.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &cfg, nil
}

// PluginDataDir returns the workspace directory for a plugin. The directory
// is where the plugin's persisted config lives and where it may write freely.
func (c *Config) PluginDataDir(pluginName string) string {
	return filepath.Join(c.DataDir, pluginName)
}

// PluginConfigPath returns the path of a plugin's persisted YAML config.
func (c *Config) PluginConfigPath(pluginName string) string {
	return filepath.Join(c.PluginDataDir(pluginName), pluginName+".yaml")
}
