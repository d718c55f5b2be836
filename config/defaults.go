package config

import (
	"github.com/spf13/viper"
)

// Built-in role names. Root outranks admin; admin inherits the default
// user role when RBAC seeds its graph.
const (
	RoleRoot  = "root"
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "data")

	// Gateway defaults match a local NapCat install
	v.SetDefault("napcat.ws_uri", "ws://127.0.0.1:3001")
	v.SetDefault("napcat.ws_listen_ip", "127.0.0.1")
	v.SetDefault("napcat.webui_uri", "http://127.0.0.1:6099")
	v.SetDefault("napcat.enable_webui", false)
	v.SetDefault("napcat.remote", false)
	v.SetDefault("napcat.send_timeout_seconds", 30)
	v.SetDefault("napcat.send_rate_per_second", 0.0)

	v.SetDefault("plugin.dir", "plugins")
	v.SetDefault("plugin.skip_load", false)

	v.SetDefault("command.prefixes", []string{"/"})
	v.SetDefault("command.case_sensitive", false)
	v.SetDefault("command.strict_positional", false)

	v.SetDefault("rbac.path", "data/rbac.json")
	v.SetDefault("rbac.default_role", RoleUser)
	v.SetDefault("rbac.case_sensitive", true)

	v.SetDefault("log.json", false)
}
