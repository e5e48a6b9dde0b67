package prompt

// Built-in prompt templates. Providers can replace the generation template via
// scenario.prompt_template; fix and review are fixed.

const generationTemplate = `You are generating the webhook documentation and example bundle for {{.Provider.DisplayLabel}}.

Work inside the directory ` + "`{{.ArtifactDir}}`" + ` of the current repository. Create or update:
- README.md describing the provider's webhooks: delivery, authentication, signature verification, and retry behavior.
- One runnable example handler per supported language directory (node/, python/, go/) with its tests.
{{if .Events}}
The examples must exercise these events:
{{range .Events}}- {{.}}
{{end}}{{end}}
{{if .Docs}}Reference documents (authoritative; prefer these over prior knowledge):
{{range .Docs}}- {{.Name}}: {{.URL}}
{{end}}{{end}}
{{if .Hints}}Provider-specific notes:
{{.Hints}}
{{end}}
Write files directly. Do not ask questions. When you are done, print DONE.`

const fixTemplate = `You previously generated the {{.Provider.DisplayLabel}} bundle under ` + "`{{.ArtifactDir}}`" + `. Iteration {{.Iteration}} found the following issues. Fix every one of them, editing files in place.

{{range .Issues}}- [{{.Severity}}{{if .Category}}/{{.Category}}{{end}}] {{if .Target}}{{.Target}}: {{end}}{{.Description}}
{{if .SuggestedFix}}  Suggested fix: {{.SuggestedFix}}
{{end}}{{end}}
Only change what the issues require. Keep tests passing. When you are done, print DONE.`

const reviewTemplate = `Review the {{.Provider.DisplayLabel}} bundle under ` + "`{{.ArtifactDir}}`" + ` for accuracy against the reference documents.
{{if .Docs}}
Reference documents:
{{range .Docs}}- {{.Name}}: {{.URL}}
{{end}}{{end}}
Check: event names, payload field names and types, signature algorithm and header names, retry semantics, and that the examples compile conceptually.

End your reply with exactly one fenced json block of this shape:

` + "```json" + `
{
  "approved": <bool>,
  "issues": [
    {"severity": "critical|major|minor", "category": "<tag>", "target": "<file or area>", "description": "<what is wrong>", "suggested_fix": "<optional>"}
  ]
}
` + "```" + `

Report an empty issues array with "approved": true when the bundle is accurate.`
