package plugin

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"

	"github.com/nyabot/nyabot/errors"
)

// ManifestFile is the per-plugin descriptor file name.
const ManifestFile = "manifest.toml"

// Manifest is the parsed manifest.toml of one plugin directory.
type Manifest struct {
	Name        string `toml:"name"`
	Version     string `toml:"version"`
	Author      string `toml:"author"`
	Description string `toml:"description"`
	// Main is the relative path to the plugin module; kept for
	// diagnostics, binding happens through the factory registry.
	Main string `toml:"main"`
	// EntryClass selects a factory when a directory offers several.
	EntryClass string `toml:"entry_class"`
	// Dependencies map plugin names to semver range constraints.
	Dependencies map[string]string `toml:"dependencies"`

	// Extras keeps any unrecognized manifest keys.
	Extras map[string]interface{} `toml:"-"`

	version *semver.Version
}

// ReadManifest loads and validates a manifest from dir.
func ReadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	var m Manifest
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	if m.Name == "" {
		return nil, errors.Newf("%s: manifest has no name", path)
	}
	version, err := semver.NewVersion(m.Version)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: version %q is not semver", path, m.Version)
	}
	m.version = version

	for _, rng := range m.Dependencies {
		if _, err := semver.NewConstraint(rng); err != nil {
			return nil, errors.Wrapf(err, "%s: bad dependency range %q", path, rng)
		}
	}

	m.Extras = map[string]interface{}{}
	var raw map[string]interface{}
	if _, err := toml.Decode(string(data), &raw); err == nil {
		known := map[string]bool{
			"name": true, "version": true, "author": true,
			"description": true, "main": true, "entry_class": true,
			"dependencies": true,
		}
		for key, value := range raw {
			if !known[key] {
				m.Extras[key] = value
			}
		}
	}

	return &m, nil
}

// SemVersion is the parsed plugin version.
func (m *Manifest) SemVersion() *semver.Version { return m.version }
