package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// SkillManifest describes one skill entry from the skills.d directory.
type SkillManifest struct {
	Name    string            `yaml:"name"`
	Enabled *bool             `yaml:"enabled"`
	Options map[string]string `yaml:"options"`
}

// IsEnabled reports whether the skill is enabled. Skills are enabled unless
// the manifest says otherwise.
func (m SkillManifest) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// Option returns the named option, or fallback when absent or empty.
func (m SkillManifest) Option(key string, fallback string) string {
	if value, ok := m.Options[key]; ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

// ScanSkillManifests reads every *.yaml manifest under dir, sorted by
// filename. A missing directory is not an error; a manifest that fails to
// parse is.
func ScanSkillManifests(dir string) ([]SkillManifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	manifests := make([]SkillManifest, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var manifest SkillManifest
		if err := yaml.Unmarshal(data, &manifest); err != nil {
			return nil, fmt.Errorf("parse skill manifest %s: %w", path, err)
		}
		if manifest.Name == "" {
			manifest.Name = strings.TrimSuffix(name, filepath.Ext(name))
		}
		manifests = append(manifests, manifest)
	}
	return manifests, nil
}

// FindSkillManifest returns the manifest with the given name, if present.
func FindSkillManifest(manifests []SkillManifest, name string) (SkillManifest, bool) {
	for _, manifest := range manifests {
		if manifest.Name == name {
			return manifest, true
		}
	}
	return SkillManifest{}, false
}
