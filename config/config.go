// Package config holds the bot configuration loaded from a YAML document.
//
// The document has a main section plus a `napcat` sub-section for the
// gateway process. All QQ ids (bot uin, root uin) are stored as strings;
// the gateway reports them as integers but the framework never does
// arithmetic on them.
package config

// Config represents the core nyabot configuration
type Config struct {
	// BtUIN is the bot's QQ account id
	BtUIN string `mapstructure:"bt_uin" yaml:"bt_uin"`
	// Root is the QQ id granted the root role on startup
	Root string `mapstructure:"root" yaml:"root"`
	// Debug lowers the log level and relaxes some startup checks
	Debug bool `mapstructure:"debug" yaml:"debug"`
	// DataDir is the root of persisted state (plugin configs, RBAC store)
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`

	Napcat  NapcatConfig  `mapstructure:"napcat" yaml:"napcat"`
	Plugin  PluginConfig  `mapstructure:"plugin" yaml:"plugin"`
	Command CommandConfig `mapstructure:"command" yaml:"command"`
	RBAC    RBACConfig    `mapstructure:"rbac" yaml:"rbac"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// NapcatConfig configures the connection to the OneBot gateway
type NapcatConfig struct {
	// WSURI is the gateway WebSocket endpoint, e.g. ws://127.0.0.1:3001
	WSURI string `mapstructure:"ws_uri" yaml:"ws_uri"`
	// WSToken is the bearer token appended as ?access_token=
	WSToken string `mapstructure:"ws_token" yaml:"ws_token"`
	// WSListenIP is the interface the gateway listens on; binding 0.0.0.0
	// triggers the strong-token policy
	WSListenIP string `mapstructure:"ws_listen_ip" yaml:"ws_listen_ip"`
	// WebUIURI and WebUIToken cover the gateway's management UI
	WebUIURI    string `mapstructure:"webui_uri" yaml:"webui_uri"`
	WebUIToken  string `mapstructure:"webui_token" yaml:"webui_token"`
	EnableWebUI bool   `mapstructure:"enable_webui" yaml:"enable_webui"`
	// Remote disables local gateway assumptions (the gateway runs elsewhere)
	Remote bool `mapstructure:"remote" yaml:"remote"`
	// SendTimeoutSeconds bounds outbound API calls when the caller passes none
	SendTimeoutSeconds int `mapstructure:"send_timeout_seconds" yaml:"send_timeout_seconds"`
	// SendRatePerSecond throttles outbound writes; 0 disables throttling
	SendRatePerSecond float64 `mapstructure:"send_rate_per_second" yaml:"send_rate_per_second"`
}

// PluginConfig configures plugin discovery
type PluginConfig struct {
	Dir       string   `mapstructure:"dir" yaml:"dir"`
	Whitelist []string `mapstructure:"whitelist" yaml:"whitelist"`
	Blacklist []string `mapstructure:"blacklist" yaml:"blacklist"`
	// SkipLoad disables external plugin loading entirely
	SkipLoad bool `mapstructure:"skip_load" yaml:"skip_load"`
}

// CommandConfig configures the command trigger engine
type CommandConfig struct {
	// Prefixes is the union default for commands that declare none
	Prefixes []string `mapstructure:"prefixes" yaml:"prefixes"`
	// CaseSensitive applies to prefixes and command words
	CaseSensitive bool `mapstructure:"case_sensitive" yaml:"case_sensitive"`
	// StrictPositional flags surplus positional elements as binding errors
	// instead of ignoring them
	StrictPositional bool `mapstructure:"strict_positional" yaml:"strict_positional"`
}

// RBACConfig configures the access-control service
type RBACConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	DefaultRole   string `mapstructure:"default_role" yaml:"default_role"`
	CaseSensitive bool   `mapstructure:"case_sensitive" yaml:"case_sensitive"`
}

// LogConfig configures logging output
type LogConfig struct {
	JSON bool `mapstructure:"json" yaml:"json"`
}
