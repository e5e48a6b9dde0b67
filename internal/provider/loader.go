package provider

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the on-disk shape: a list of provider configs.
type File struct {
	Providers []Config `json:"providers" yaml:"providers"`
}

// LoadFromPath reads a provider file (YAML or JSON) and returns the parsed configs.
// Format is detected by extension (.yaml/.yml → YAML, .json → JSON) or by content.
func LoadFromPath(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers: %w", err)
	}
	return Load(data, filepath.Ext(path))
}

// Load parses provider configs from bytes. ext is the file extension for a
// format hint; empty = detect from content.
func Load(data []byte, ext string) ([]Config, error) {
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}

	var f File
	switch {
	case ext == ".yaml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse providers yaml: %w", err)
		}
	case ext == ".json":
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse providers json: %w", err)
		}
	case strings.HasPrefix(strings.TrimSpace(string(data)), "{"):
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse providers json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse providers yaml: %w", err)
		}
	}

	if err := validate(f.Providers); err != nil {
		return nil, err
	}
	return f.Providers, nil
}

// Select filters configs down to the named subset. Names match either the raw
// Name or the Slug. An empty selection returns everything. Unknown names are
// an error so typos fail loudly instead of silently skipping a provider.
func Select(all []Config, names []string) ([]Config, error) {
	if len(names) == 0 {
		return all, nil
	}
	bySlug := make(map[string]Config, len(all))
	for _, c := range all {
		bySlug[c.Slug()] = c
	}
	var out []Config
	for _, n := range names {
		want := Config{Name: n}.Slug()
		c, ok := bySlug[want]
		if !ok {
			return nil, fmt.Errorf("unknown provider %q (known: %s)", n, strings.Join(slugs(all), ", "))
		}
		out = append(out, c)
	}
	return out, nil
}

func slugs(all []Config) []string {
	out := make([]string, 0, len(all))
	for _, c := range all {
		out = append(out, c.Slug())
	}
	sort.Strings(out)
	return out
}

func validate(configs []Config) error {
	seen := make(map[string]string, len(configs))
	for i, c := range configs {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("provider %d: name is required", i)
		}
		slug := c.Slug()
		if slug == "" {
			return fmt.Errorf("provider %q: name normalizes to an empty slug", c.Name)
		}
		if prev, dup := seen[slug]; dup {
			return fmt.Errorf("providers %q and %q collide on slug %q", prev, c.Name, slug)
		}
		seen[slug] = c.Name
	}
	return nil
}
