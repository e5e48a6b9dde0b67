// Package provider holds the configuration model for one unit of work: a
// provider whose documentation/example bundle the pipeline generates and
// maintains. Configs are pure data, immutable once loaded for a run.
package provider

import (
	"regexp"
	"strings"
)

// Scenario is optional test-scenario metadata for a provider.
type Scenario struct {
	Events         []string `json:"events,omitempty" yaml:"events,omitempty"`                   // event names the generated examples must exercise
	PromptTemplate string   `json:"prompt_template,omitempty" yaml:"prompt_template,omitempty"` // override of the default generation template
	ArtifactDir    string   `json:"artifact_dir,omitempty" yaml:"artifact_dir,omitempty"`       // override of the generated-artifact directory name
}

// Config describes one provider unit.
type Config struct {
	Name     string            `json:"name" yaml:"name"`                   // identity; normalized to Slug()
	Label    string            `json:"label,omitempty" yaml:"label,omitempty"` // display label; defaults to Name
	Docs     map[string]string `json:"docs,omitempty" yaml:"docs,omitempty"`   // reference-document URLs keyed by unique names
	Hints    string            `json:"hints,omitempty" yaml:"hints,omitempty"` // free-text guidance passed into prompts
	Scenario *Scenario         `json:"scenario,omitempty" yaml:"scenario,omitempty"`
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slug returns the stable normalized identity used for branch names,
// directories, and result keys: lowercase, runs of non-alphanumerics
// collapsed to single hyphens.
func (c Config) Slug() string {
	s := slugPattern.ReplaceAllString(strings.ToLower(c.Name), "-")
	return strings.Trim(s, "-")
}

// DisplayLabel returns Label, falling back to Name.
func (c Config) DisplayLabel() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Name
}

// ArtifactDir returns the directory name the generated bundle lives under
// inside the workspace: the scenario override when set, otherwise the slug.
func (c Config) ArtifactDir() string {
	if c.Scenario != nil && c.Scenario.ArtifactDir != "" {
		return c.Scenario.ArtifactDir
	}
	return c.Slug()
}
