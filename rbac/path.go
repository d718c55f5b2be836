package rbac

import (
	"strings"

	"github.com/nyabot/nyabot/errors"
)

const (
	// WildcardOne matches exactly one path component.
	WildcardOne = "*"
	// WildcardTail matches one or more remaining components; only valid
	// as the final component.
	WildcardTail = "**"
)

// Path is a parsed dot-separated permission path. Components are either
// literals, "*" or a trailing "**".
type Path struct {
	raw   string
	parts []string
}

// ParsePath validates and splits a permission path. When caseSensitive
// is false, literals are folded to lower case.
func ParsePath(raw string, caseSensitive bool) (Path, error) {
	if raw == "" {
		return Path{}, errors.New("empty permission path")
	}
	if !caseSensitive {
		raw = strings.ToLower(raw)
	}
	parts := strings.Split(raw, ".")
	for i, part := range parts {
		if part == "" {
			return Path{}, errors.Newf("permission path %q has an empty component", raw)
		}
		if part == WildcardTail && i != len(parts)-1 {
			return Path{}, errors.Newf("permission path %q uses ** before the final component", raw)
		}
	}
	return Path{raw: raw, parts: parts}, nil
}

// String returns the normalized path.
func (p Path) String() string { return p.raw }

// Components returns the split components.
func (p Path) Components() []string { return p.parts }

// Matches reports whether the pattern p covers target. Matching is
// component-wise: a literal matches itself, "*" matches any single
// component, a trailing "**" matches the rest of the target.
func (p Path) Matches(target Path) bool {
	pi, ti := 0, 0
	for pi < len(p.parts) {
		part := p.parts[pi]
		if part == WildcardTail {
			// At least one target component must remain.
			return ti < len(target.parts)
		}
		if ti >= len(target.parts) {
			return false
		}
		if part != WildcardOne && part != target.parts[ti] {
			return false
		}
		pi++
		ti++
	}
	return ti == len(target.parts)
}
