package command

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// PrefixConflictError reports a prefix set that is not prefix-free:
// one registered prefix is a proper prefix of another, which would make
// dispatch ambiguous.
type PrefixConflictError struct {
	Shorter string
	Longer  string
}

func (e *PrefixConflictError) Error() string {
	return fmt.Sprintf("command prefix %q is a proper prefix of %q", e.Shorter, e.Longer)
}

// Match is a successful resolution.
type Match struct {
	Prefix string
	Spec   *Spec
	// PathWords is how many elements the command path consumed.
	PathWords int
}

type indexEntry struct {
	spec  *Spec
	words []string
	seq   int
}

// Resolver matches chat text against the registry. The index rebuilds
// lazily after any registry mutation; a failed rebuild (prefix
// conflict) is returned on every resolve until the registry is fixed.
type Resolver struct {
	registry *Registry

	mu       sync.Mutex
	entries  []indexEntry
	prefixes []string
	err      error
	built    bool
}

// NewResolver builds a resolver over the registry.
func NewResolver(registry *Registry) *Resolver {
	return &Resolver{registry: registry}
}

// rebuild constructs the dispatch index: path and alias tables plus the
// deduplicated, prefix-free checked prefix set.
func (r *Resolver) rebuild() {
	r.entries = r.entries[:0]
	r.prefixes = r.prefixes[:0]
	r.err = nil

	seen := map[string]struct{}{}
	for seq, spec := range r.registry.Specs() {
		paths := append([][]string{spec.Path}, spec.Aliases...)
		for _, path := range paths {
			words := make([]string, len(path))
			for i, w := range path {
				words[i] = r.registry.fold(w)
			}
			r.entries = append(r.entries, indexEntry{spec: spec, words: words, seq: seq})
		}
		for _, prefix := range spec.Prefixes {
			folded := r.registry.fold(prefix)
			if _, ok := seen[folded]; !ok {
				seen[folded] = struct{}{}
				r.prefixes = append(r.prefixes, folded)
			}
		}
	}

	// Longest first so prefix matching is longest-match by scan order.
	sort.Slice(r.prefixes, func(i, j int) bool {
		if len(r.prefixes[i]) != len(r.prefixes[j]) {
			return len(r.prefixes[i]) > len(r.prefixes[j])
		}
		return r.prefixes[i] < r.prefixes[j]
	})

	for i, longer := range r.prefixes {
		for _, shorter := range r.prefixes[i+1:] {
			if shorter != "" && shorter != longer && strings.HasPrefix(longer, shorter) {
				r.err = &PrefixConflictError{Shorter: shorter, Longer: longer}
				return
			}
		}
	}

	// Earliest insertion wins on equal paths.
	sort.SliceStable(r.entries, func(i, j int) bool {
		return r.entries[i].seq < r.entries[j].seq
	})
}

// ensure rebuilds if the registry changed since the last build. Callers
// hold r.mu.
func (r *Resolver) ensure() error {
	r.registry.mu.Lock()
	dirty := r.registry.dirty
	r.registry.dirty = false
	r.registry.mu.Unlock()

	if dirty || !r.built {
		r.rebuild()
		r.built = true
	}
	return r.err
}

// Resolve matches the leading elements of a parsed command line. The
// first element must split as (prefix, first path word) with the
// longest registered prefix winning; an empty registered prefix
// matches bare commands. Returns nil with no error when the text is
// simply not a command.
func (r *Resolver) Resolve(elems []Element) (*Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensure(); err != nil {
		return nil, err
	}
	if len(elems) == 0 || elems[0].Quoted {
		return nil, nil
	}

	first := r.registry.fold(elems[0].Content)
	var best *Match
	for _, prefix := range r.prefixes {
		if !strings.HasPrefix(first, prefix) {
			continue
		}
		firstWord := first[len(prefix):]
		if firstWord == "" {
			continue
		}
		if m := r.matchPath(prefix, firstWord, elems); m != nil {
			best = m
			break
		}
	}
	return best, nil
}

// matchPath finds the registered command whose word path matches
// firstWord plus following elements, honoring per-spec prefixes.
func (r *Resolver) matchPath(prefix, firstWord string, elems []Element) *Match {
	var best *indexEntry
	bestLen := 0
	for i := range r.entries {
		entry := &r.entries[i]
		if entry.words[0] != firstWord {
			continue
		}
		if !specHasPrefix(r.registry, entry.spec, prefix) {
			continue
		}
		if len(entry.words) > len(elems) {
			continue
		}
		ok := true
		for w := 1; w < len(entry.words); w++ {
			if elems[w].Quoted || r.registry.fold(elems[w].Content) != entry.words[w] {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		// Longest path wins; earliest insertion wins ties (entries are
		// in insertion order).
		if best == nil || len(entry.words) > bestLen {
			best = entry
			bestLen = len(entry.words)
		}
	}
	if best == nil {
		return nil
	}
	return &Match{Prefix: prefix, Spec: best.spec, PathWords: len(best.words)}
}

func specHasPrefix(reg *Registry, spec *Spec, prefix string) bool {
	for _, p := range spec.Prefixes {
		if reg.fold(p) == prefix {
			return true
		}
	}
	return false
}
