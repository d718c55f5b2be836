package rbac

import "sort"

// trieNode is one level of the permission registry. Wildcards are stored
// as ordinary components; matching happens against parsed Paths, the trie
// only tracks which paths are registered.
type trieNode struct {
	children map[string]*trieNode
	terminal bool
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[string]*trieNode)}
}

// Trie is the registry of declared permission paths.
type Trie struct {
	root *trieNode
}

// NewTrie builds an empty registry.
func NewTrie() *Trie {
	return &Trie{root: newTrieNode()}
}

// Add registers a path. Adding twice is a no-op.
func (t *Trie) Add(p Path) {
	node := t.root
	for _, part := range p.Components() {
		child, ok := node.children[part]
		if !ok {
			child = newTrieNode()
			node.children[part] = child
		}
		node = child
	}
	node.terminal = true
}

// Remove unregisters a path and prunes empty branches. Removing an
// unknown path is a no-op.
func (t *Trie) Remove(p Path) {
	t.remove(t.root, p.Components())
}

func (t *Trie) remove(node *trieNode, parts []string) bool {
	if len(parts) == 0 {
		node.terminal = false
	} else if child, ok := node.children[parts[0]]; ok {
		if t.remove(child, parts[1:]) {
			delete(node.children, parts[0])
		}
	}
	return !node.terminal && len(node.children) == 0
}

// Contains reports whether the exact path is registered.
func (t *Trie) Contains(p Path) bool {
	node := t.root
	for _, part := range p.Components() {
		child, ok := node.children[part]
		if !ok {
			return false
		}
		node = child
	}
	return node.terminal
}

// Paths lists every registered path in sorted order.
func (t *Trie) Paths() []string {
	var out []string
	t.walk(t.root, "", &out)
	sort.Strings(out)
	return out
}

func (t *Trie) walk(node *trieNode, prefix string, out *[]string) {
	if node.terminal {
		*out = append(*out, prefix)
	}
	for part, child := range node.children {
		next := part
		if prefix != "" {
			next = prefix + "." + part
		}
		t.walk(child, next, out)
	}
}
