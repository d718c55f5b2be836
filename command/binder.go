package command

import (
	"fmt"
	"strconv"
	"strings"
)

// Bound is the binder's output handed to the command handler.
type Bound struct {
	// Options maps every flag to its state: declared options always
	// appear (false when absent), lexed undeclared flags pass through
	// as true.
	Options map[string]bool
	// Params maps parameter names to converted values (string, int64,
	// float64 or bool per declaration).
	Params map[string]interface{}
	// Group maps each option group's name to its selected member.
	Group map[string]string
	// Tail collects leftover positional elements when the spec is
	// variadic.
	Tail []string
}

// String returns the string value of a parameter.
func (b *Bound) String(name string) string {
	if v, ok := b.Params[name].(string); ok {
		return v
	}
	return ""
}

// Int returns the integer value of a parameter.
func (b *Bound) Int(name string) int64 {
	if v, ok := b.Params[name].(int64); ok {
		return v
	}
	return 0
}

// Float returns the float value of a parameter.
func (b *Bound) Float(name string) float64 {
	if v, ok := b.Params[name].(float64); ok {
		return v
	}
	return 0
}

// Bool returns the boolean value of a parameter.
func (b *Bound) Bool(name string) bool {
	if v, ok := b.Params[name].(bool); ok {
		return v
	}
	return false
}

// Flag reports whether a flag was set.
func (b *Bound) Flag(name string) bool { return b.Options[name] }

// BindingError is a structured binding failure. It never panics the
// dispatch path; the runner publishes it as an event so plugins can
// render usage help.
type BindingError struct {
	Command string
	Param   string
	Reason  string
}

func (e *BindingError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("command %q: parameter %q: %s", e.Command, e.Param, e.Reason)
	}
	return fmt.Sprintf("command %q: %s", e.Command, e.Reason)
}

// Bind maps a parsed command line onto a spec's declared parameters,
// options and groups. pathWords leading elements are the command path
// and are skipped. Surplus positional elements are ignored; see
// Registry.SetStrictPositional for the strict variant the runner uses.
func Bind(spec *Spec, parsed *Parsed, pathWords int) (*Bound, error) {
	return bind(spec, parsed, pathWords, false)
}

func bind(spec *Spec, parsed *Parsed, pathWords int, strict bool) (*Bound, error) {
	b := &Bound{
		Options: make(map[string]bool),
		Params:  make(map[string]interface{}),
		Group:   make(map[string]string),
	}

	// Lexed flags pass through, then declared options overlay their
	// presence state.
	for name, set := range parsed.Options {
		b.Options[name] = set
	}
	for _, opt := range spec.Options {
		present := false
		for _, name := range opt.names() {
			if parsed.Options[name] {
				present = true
			}
		}
		for _, name := range opt.names() {
			b.Options[name] = present
		}
	}

	for _, group := range spec.Groups {
		var chosen []string
		for _, member := range group.Members {
			if parsed.Options[member] {
				chosen = append(chosen, member)
			}
		}
		switch len(chosen) {
		case 0:
			b.Group[group.Name] = group.Default
		case 1:
			b.Group[group.Name] = chosen[0]
		default:
			return nil, &BindingError{
				Command: spec.pathKey(),
				Param:   group.Name,
				Reason:  fmt.Sprintf("flags %s are mutually exclusive", strings.Join(chosen, ", ")),
			}
		}
	}

	// Positional elements after the command path.
	positional := parsed.Elems
	if pathWords <= len(positional) {
		positional = positional[pathWords:]
	} else {
		positional = nil
	}

	for _, param := range spec.Params {
		var raw string
		var present bool
		if param.Named {
			raw, present = parsed.Named[param.Name]
		} else if len(positional) > 0 {
			raw = positional[0].Content
			positional = positional[1:]
			present = true
		}

		if !present {
			if param.Default != nil {
				b.Params[param.Name] = param.Default
				continue
			}
			if param.Required {
				return nil, &BindingError{
					Command: spec.pathKey(),
					Param:   param.Name,
					Reason:  "required parameter missing",
				}
			}
			continue
		}

		value, err := convert(raw, param.Type)
		if err != nil {
			return nil, &BindingError{
				Command: spec.pathKey(),
				Param:   param.Name,
				Reason:  fmt.Sprintf("cannot parse %q as %s", raw, param.Type),
			}
		}
		if len(param.Choices) > 0 && !contains(param.Choices, raw) {
			return nil, &BindingError{
				Command: spec.pathKey(),
				Param:   param.Name,
				Reason:  fmt.Sprintf("value %q not in choices %s", raw, strings.Join(param.Choices, ", ")),
			}
		}
		b.Params[param.Name] = value
	}

	// Leftover positionals: variadic tail, strict error, or ignored.
	if spec.Variadic {
		for _, elem := range positional {
			b.Tail = append(b.Tail, elem.Content)
		}
	} else if strict && len(positional) > 0 {
		return nil, &BindingError{
			Command: spec.pathKey(),
			Reason:  fmt.Sprintf("unexpected argument %q", positional[0].Content),
		}
	}

	return b, nil
}

func convert(raw string, t ParamType) (interface{}, error) {
	switch t {
	case TypeString:
		return raw, nil
	case TypeInt:
		return strconv.ParseInt(raw, 10, 64)
	case TypeFloat:
		return strconv.ParseFloat(raw, 64)
	case TypeBool:
		switch strings.ToLower(raw) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		default:
			return nil, fmt.Errorf("not a boolean")
		}
	default:
		return raw, nil
	}
}

func contains(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}
