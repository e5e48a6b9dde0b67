package review

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrUnparseable marks review output with no valid structured block. The
// orchestrator degrades this to accepted-with-warning, never a hard failure.
var ErrUnparseable = errors.New("review output is unparseable")

// Outcome is the structured block a reviewer embeds in its free-text output.
type Outcome struct {
	Approved bool    `json:"approved"`
	Summary  string  `json:"summary,omitempty"`
	Issues   []Issue `json:"issues"`
}

// reviewSchema is the structural contract for the embedded block: a boolean
// "approved" and an array of issues.
const reviewSchema = `{
	"type": "object",
	"required": ["approved", "issues"],
	"properties": {
		"approved": {"type": "boolean"},
		"issues": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["description"],
				"properties": {
					"severity":      {"type": "string"},
					"category":      {"type": "string"},
					"target":        {"type": "string"},
					"description":   {"type": "string"},
					"suggested_fix": {"type": "string"}
				}
			}
		}
	}
}`

var compiledSchema = jsonschema.MustCompileString("review.json", reviewSchema)

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// Extract performs best-effort structured extraction of the review block from
// free-text reviewer output. Candidates are fenced code blocks first, then any
// balanced JSON object in the text. The first candidate passing structural
// validation wins. No valid candidate fails closed into ErrUnparseable.
func Extract(text string) (*Outcome, error) {
	var candidates []string
	for _, m := range fencedBlock.FindAllStringSubmatch(text, -1) {
		candidates = append(candidates, m[1])
	}
	candidates = append(candidates, balancedObjects(text)...)

	for _, c := range candidates {
		outcome, err := decodeAndValidate(c)
		if err != nil {
			continue
		}
		return outcome, nil
	}
	return nil, fmt.Errorf("%w: no structurally valid block among %d candidates", ErrUnparseable, len(candidates))
}

func decodeAndValidate(candidate string) (*Outcome, error) {
	var generic any
	if err := json.Unmarshal([]byte(candidate), &generic); err != nil {
		return nil, err
	}
	if err := compiledSchema.Validate(generic); err != nil {
		return nil, err
	}

	var outcome Outcome
	if err := json.Unmarshal([]byte(candidate), &outcome); err != nil {
		return nil, err
	}
	for i := range outcome.Issues {
		outcome.Issues[i].Severity = ParseSeverity(string(outcome.Issues[i].Severity))
	}
	return &outcome, nil
}

// balancedObjects returns every top-level {...} JSON value decodable from some
// offset in text, longest candidates first capped to keep pathological inputs
// cheap.
func balancedObjects(text string) []string {
	const maxCandidates = 8
	var out []string
	for i := 0; i < len(text) && len(out) < maxCandidates; i++ {
		if text[i] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err == nil {
			out = append(out, string(raw))
			// Skip past this object so nested braces are not re-tried.
			i += int(dec.InputOffset()) - 1
		}
	}
	return out
}
