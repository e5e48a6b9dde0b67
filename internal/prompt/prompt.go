// Package prompt renders the generation, fix, and review prompts handed to
// the external agent. Prompts are Go text/templates; per-provider template
// overrides come from the unit's scenario metadata.
package prompt

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"

	"scribe/internal/provider"
	"scribe/internal/review"
)

// Params is the data every prompt template executes against.
type Params struct {
	Provider    provider.Config
	Slug        string
	ArtifactDir string
	Docs        []DocRef // sorted for deterministic prompts
	Hints       string
	Events      []string
	Issues      []review.Issue // fix prompts only
	Iteration   int
}

// DocRef is one reference document passed into a prompt.
type DocRef struct {
	Name string
	URL  string
}

// BuildParams assembles Params for a provider at the given iteration.
func BuildParams(cfg provider.Config, iteration int, issues []review.Issue) Params {
	p := Params{
		Provider:    cfg,
		Slug:        cfg.Slug(),
		ArtifactDir: cfg.ArtifactDir(),
		Hints:       cfg.Hints,
		Issues:      issues,
		Iteration:   iteration,
	}
	if cfg.Scenario != nil {
		p.Events = cfg.Scenario.Events
	}
	names := make([]string, 0, len(cfg.Docs))
	for name := range cfg.Docs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p.Docs = append(p.Docs, DocRef{Name: name, URL: cfg.Docs[name]})
	}
	return p
}

// Generation renders the artifact-generation prompt. A provider scenario may
// override the built-in template with a file path.
func Generation(cfg provider.Config) (string, error) {
	if cfg.Scenario != nil && cfg.Scenario.PromptTemplate != "" {
		return fillFile(cfg.Scenario.PromptTemplate, BuildParams(cfg, 0, nil))
	}
	return fillString("generation", generationTemplate, BuildParams(cfg, 0, nil))
}

// Fix renders the fix prompt from the full issue list of the last rejection
// or test failure.
func Fix(cfg provider.Config, iteration int, issues []review.Issue) (string, error) {
	return fillString("fix", fixTemplate, BuildParams(cfg, iteration, issues))
}

// Review renders the accuracy-review prompt. The reviewer must embed the
// structured verdict block that review.Extract parses back out.
func Review(cfg provider.Config) (string, error) {
	return fillString("review", reviewTemplate, BuildParams(cfg, 0, nil))
}

func fillFile(path string, params Params) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read template %s: %w", path, err)
	}
	return fillString(path, string(data), params)
}

func fillString(name, tmplStr string, params Params) (string, error) {
	funcMap := template.FuncMap{
		"join": strings.Join,
	}
	tmpl, err := template.New(name).Funcs(funcMap).Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("execute template %s: %w", name, err)
	}
	return buf.String(), nil
}
