package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scribe/internal/format"
	"scribe/internal/provider"
)

var unitsFlags struct {
	providers string
	markdown  bool
}

var unitsCmd = &cobra.Command{
	Use:   "units",
	Short: "List the units configured in the providers file",
	RunE:  runUnits,
}

func init() {
	f := unitsCmd.Flags()
	f.StringVar(&unitsFlags.providers, "providers", "providers.yaml", "Providers file (YAML or JSON)")
	f.BoolVar(&unitsFlags.markdown, "markdown", false, "Render the table as Markdown")
}

func runUnits(_ *cobra.Command, _ []string) error {
	all, err := provider.LoadFromPath(unitsFlags.providers)
	if err != nil {
		return err
	}

	m := format.ASCII
	if unitsFlags.markdown {
		m = format.Markdown
	}
	t := format.NewTable(m)
	t.Header("Unit", "Label", "Docs", "Hints", "Scenario")
	for _, cfg := range all {
		scenario := "-"
		if cfg.Scenario != nil {
			scenario = fmt.Sprintf("%d events", len(cfg.Scenario.Events))
		}
		hints := "-"
		if cfg.Hints != "" {
			hints = format.Truncate(cfg.Hints, 40)
		}
		t.Row(cfg.Slug(), cfg.DisplayLabel(), len(cfg.Docs), hints, scenario)
	}
	fmt.Println(t.String())
	return nil
}
