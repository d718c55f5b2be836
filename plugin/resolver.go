package plugin

import (
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/nyabot/nyabot/errors"
)

// Resolution is the outcome of dependency resolution: a load order over
// the satisfiable plugins plus per-plugin failures for the rest.
// Failures are isolated; a plugin only fails if its own dependencies
// are missing, version-unsatisfied, or themselves failed.
type Resolution struct {
	// Order lists loadable plugin names, dependencies first.
	Order []string
	// Failed maps unloadable plugin names to their reason.
	Failed map[string]error
}

// resolve computes the load order for the discovered manifests. Cycles
// in the dependency graph are fatal for the whole resolution.
func resolve(manifests map[string]*Manifest) (*Resolution, error) {
	res := &Resolution{Failed: make(map[string]error)}

	names := make([]string, 0, len(manifests))
	for name := range manifests {
		names = append(names, name)
	}
	sort.Strings(names)

	// Validate each plugin's direct dependencies first.
	for _, name := range names {
		m := manifests[name]
		for dep, rng := range m.Dependencies {
			installed, ok := manifests[dep]
			if !ok {
				res.Failed[name] = errors.Newf("dependency %q is not installed", dep)
				break
			}
			constraint, err := semver.NewConstraint(rng)
			if err != nil {
				res.Failed[name] = errors.Wrapf(err, "dependency range %q", rng)
				break
			}
			if !constraint.Check(installed.SemVersion()) {
				res.Failed[name] = errors.Newf(
					"dependency %s@%s does not satisfy %q",
					dep, installed.Version, rng,
				)
				break
			}
		}
	}

	// Topological order via DFS; a back edge is a cycle and fatal.
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(manifests))
	var order []string

	var visit func(name string) error
	visit = func(name string) error {
		switch color[name] {
		case gray:
			return errors.Newf("plugin dependency cycle through %q", name)
		case black:
			return nil
		}
		color[name] = gray
		deps := sortedKeys(manifests[name].Dependencies)
		for _, dep := range deps {
			if _, ok := manifests[dep]; !ok {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[name] = black
		order = append(order, name)
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}

	// Propagate failures to dependents, then drop failed plugins from
	// the order.
	for changed := true; changed; {
		changed = false
		for _, name := range order {
			if _, failed := res.Failed[name]; failed {
				continue
			}
			for dep := range manifests[name].Dependencies {
				if cause, failed := res.Failed[dep]; failed {
					res.Failed[name] = errors.Wrapf(cause, "dependency %q failed", dep)
					changed = true
					break
				}
			}
		}
	}
	for _, name := range order {
		if _, failed := res.Failed[name]; !failed {
			res.Order = append(res.Order, name)
		}
	}
	return res, nil
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
