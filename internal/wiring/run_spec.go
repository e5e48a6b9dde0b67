package wiring

import (
	"context"
	"os"
	"path/filepath"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"scribe/internal/mode"
	"scribe/internal/pipeline"
)

const specProviders = `providers:
  - name: Stripe
    label: Stripe Payments
    docs:
      events: https://docs.stripe.com/webhooks
    hints: Signatures use the Stripe-Signature header.
  - name: Twilio
    docs:
      events: https://www.twilio.com/docs/usage/webhooks
`

var _ = ginkgo.Describe("Run", func() {
	var (
		dir  string
		opts Options
	)

	ginkgo.BeforeEach(func() {
		dir = ginkgo.GinkgoT().TempDir()
		path := filepath.Join(dir, "providers.yaml")
		gomega.Expect(os.WriteFile(path, []byte(specProviders), 0o644)).To(gomega.Succeed())

		opts = Options{
			ProvidersPath: path,
			RepoDir:       dir,
			WorktreesDir:  filepath.Join(dir, "worktrees"),
			RunsDir:       filepath.Join(dir, "runs"),
			Parallel:      2,
			Mode:          mode.DryRun,
		}
	})

	ginkgo.It("drives every provider end to end and writes the run artifacts", func() {
		report, err := Run(context.Background(), opts)
		gomega.Expect(err).To(gomega.Succeed())
		gomega.Expect(report.Results).To(gomega.HaveLen(2))

		for i, unit := range []string{"stripe", "twilio"} {
			gomega.Expect(report.Results[i].Unit).To(gomega.Equal(unit))
			gomega.Expect(report.Results[i].Status).To(gomega.Equal(pipeline.StatusSucceeded))
			gomega.Expect(report.Results[i].Branch).To(gomega.Equal("scribe/" + unit))
		}
		gomega.Expect(report.Results[0].Label).To(gomega.Equal("Stripe Payments"))

		gomega.Expect(filepath.Join(report.Dir, "results.json")).To(gomega.BeARegularFile())
		gomega.Expect(filepath.Join(report.Dir, "summary.md")).To(gomega.BeARegularFile())
		gomega.Expect(filepath.Join(report.Dir, "stripe.log")).To(gomega.BeARegularFile())

		// No remote integration: workspaces stay for inspection.
		gomega.Expect(filepath.Join(opts.WorktreesDir, "stripe")).To(gomega.BeADirectory())
	})

	ginkgo.It("honors unit selection", func() {
		opts.Units = []string{"twilio"}
		report, err := Run(context.Background(), opts)
		gomega.Expect(err).To(gomega.Succeed())
		gomega.Expect(report.Results).To(gomega.HaveLen(1))
		gomega.Expect(report.Results[0].Unit).To(gomega.Equal("twilio"))
	})

	ginkgo.It("rejects a selection naming an unknown provider", func() {
		opts.Units = []string{"square"}
		_, err := Run(context.Background(), opts)
		gomega.Expect(err).To(gomega.HaveOccurred())
	})

	ginkgo.It("cleans up workspaces after remote integration", func() {
		opts.OpenPR = true
		report, err := Run(context.Background(), opts)
		gomega.Expect(err).To(gomega.Succeed())
		gomega.Expect(report.Failed()).To(gomega.BeFalse())

		// Dry-run publishing is a no-op PR but still completes integration.
		gomega.Expect(filepath.Join(opts.WorktreesDir, "stripe")).NotTo(gomega.BeADirectory())
		gomega.Expect(filepath.Join(opts.WorktreesDir, "twilio")).NotTo(gomega.BeADirectory())
	})
})
