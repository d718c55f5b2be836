// Package plugin discovers, resolves and runs bot plugins.
//
// A plugin ships as a directory with a manifest.toml; its code is a
// compiled-in factory registered under the manifest name. The loader
// resolves the dependency DAG with semver ranges, then runs OnLoad
// hooks in dependency order.
package plugin

import "context"

// State tracks a plugin through its lifecycle.
type State string

const (
	StateDiscovered   State = "discovered"
	StateResolved     State = "resolved"
	StateInstantiated State = "instantiated"
	StateInitialized  State = "initialized"
	StateRunning      State = "running"
	StateClosing      State = "closing"
	StateUnloaded     State = "unloaded"
	StateFailed       State = "failed"
)

// Plugin is the lifecycle contract a plugin implements. Construction is
// the lightweight phase; blocking work belongs in OnLoad.
type Plugin interface {
	// OnLoad runs after the workspace exists and config is loaded, and
	// strictly after every declared dependency's OnLoad returned.
	OnLoad(ctx context.Context) error
	// OnClose runs during unload, before config is persisted.
	OnClose(ctx context.Context) error
}

// Factory constructs a plugin instance with its injected runtime.
type Factory func(rt *Runtime) Plugin
