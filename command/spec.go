package command

import (
	"context"
	"strings"
	"sync"

	"github.com/nyabot/nyabot/errors"
	"github.com/nyabot/nyabot/event"
	"github.com/nyabot/nyabot/filter"
)

// ParamType is the declared type of a parameter.
type ParamType int

const (
	TypeString ParamType = iota
	TypeInt
	TypeFloat
	TypeBool
)

func (t ParamType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Param declares one command parameter. Named parameters bind from
// "--name=value" tokens, positional ones from leftover elements in
// declaration order.
type Param struct {
	Name string
	Type ParamType
	// Named parameters bind by "--name=value"; positional ones consume
	// the next element.
	Named    bool
	Required bool
	// Default applies when the parameter is absent and not required.
	Default interface{}
	// Choices restricts accepted values (compared after conversion to
	// string form).
	Choices []string
}

// Option declares a boolean flag with optional short and long forms.
type Option struct {
	Short string
	Long  string
}

// names returns the forms this option answers to.
func (o Option) names() []string {
	var out []string
	if o.Short != "" {
		out = append(out, o.Short)
	}
	if o.Long != "" {
		out = append(out, o.Long)
	}
	return out
}

// Group declares a set of mutually exclusive long-form flags of which
// at most one may be set; absent means the default.
type Group struct {
	Name    string
	Members []string
	Default string
}

// Handler is the user function a command resolves to.
type Handler func(ctx context.Context, ev event.MessageEvent, args *Bound) error

// Spec is one registered command.
type Spec struct {
	// Path is the command words, e.g. ["backup"] or ["config", "set"].
	Path []string
	// Aliases are alternative paths resolving to the same command.
	Aliases [][]string
	// Prefixes the command answers to; empty slice means the registry
	// defaults apply. The empty string prefix means "no prefix".
	Prefixes []string

	Params  []Param
	Options []Option
	Groups  []Group

	// Variadic collects leftover positional elements into the bound
	// tail instead of ignoring them.
	Variadic bool

	Handler Handler
	// Owner ties the spec to a plugin for bulk unregistration.
	Owner string
	// Filters are checked before binding; any deny stops dispatch.
	Filters []filter.Filter
}

func (s *Spec) pathKey() string { return strings.Join(s.Path, " ") }

// Registry holds command specs. Mutations mark the resolver index
// stale; it rebuilds lazily on next dispatch.
type Registry struct {
	mu    sync.RWMutex
	specs []*Spec
	dirty bool

	// DefaultPrefixes apply to specs that declare none.
	defaultPrefixes []string
	caseSensitive   bool

	strictPositional bool
}

// NewRegistry builds a registry. defaultPrefixes apply to specs without
// their own; caseSensitive controls prefix and word comparison.
func NewRegistry(defaultPrefixes []string, caseSensitive bool) *Registry {
	return &Registry{
		defaultPrefixes: defaultPrefixes,
		caseSensitive:   caseSensitive,
		dirty:           true,
	}
}

// SetStrictPositional makes surplus positional elements on non-variadic
// commands a binding error instead of being silently ignored.
func (r *Registry) SetStrictPositional(strict bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strictPositional = strict
}

func (r *Registry) strict() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.strictPositional
}

// Register adds a spec. The path must be non-empty and the handler set.
func (r *Registry) Register(spec *Spec) error {
	if len(spec.Path) == 0 {
		return errors.New("command spec has an empty path")
	}
	if spec.Handler == nil {
		return errors.Newf("command %q has no handler", spec.pathKey())
	}
	for _, word := range spec.Path {
		if word == "" || strings.ContainsAny(word, " \t") {
			return errors.Newf("command %q has an invalid path word", spec.pathKey())
		}
	}
	if len(spec.Prefixes) == 0 {
		spec.Prefixes = append([]string(nil), r.defaultPrefixes...)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs = append(r.specs, spec)
	r.dirty = true
	return nil
}

// UnregisterOwner removes every spec registered by owner and returns
// how many were dropped.
func (r *Registry) UnregisterOwner(owner string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.specs[:0]
	removed := 0
	for _, spec := range r.specs {
		if spec.Owner == owner {
			removed++
			continue
		}
		kept = append(kept, spec)
	}
	r.specs = kept
	if removed > 0 {
		r.dirty = true
	}
	return removed
}

// Specs snapshots the registered specs in insertion order.
func (r *Registry) Specs() []*Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Spec(nil), r.specs...)
}

func (r *Registry) fold(s string) string {
	if r.caseSensitive {
		return s
	}
	return strings.ToLower(s)
}
