package provider

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sampleYAML = `providers:
  - name: Stripe
    label: Stripe Payments
    docs:
      events: https://docs.stripe.com/api/events
      signatures: https://docs.stripe.com/webhooks/signature
    hints: |
      Signature header is Stripe-Signature.
    scenario:
      events: [payment_intent.succeeded, charge.refunded]
      artifact_dir: stripe
  - name: GitHub Webhooks
`

func TestLoad_YAML(t *testing.T) {
	configs, err := Load([]byte(sampleYAML), ".yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(configs) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(configs))
	}

	stripe := configs[0]
	if stripe.Slug() != "stripe" {
		t.Errorf("slug = %q, want stripe", stripe.Slug())
	}
	if stripe.DisplayLabel() != "Stripe Payments" {
		t.Errorf("label = %q", stripe.DisplayLabel())
	}
	wantDocs := map[string]string{
		"events":     "https://docs.stripe.com/api/events",
		"signatures": "https://docs.stripe.com/webhooks/signature",
	}
	if diff := cmp.Diff(wantDocs, stripe.Docs); diff != "" {
		t.Errorf("docs mismatch (-want +got):\n%s", diff)
	}
	if got := stripe.Scenario.Events; len(got) != 2 {
		t.Errorf("scenario events = %v", got)
	}

	gh := configs[1]
	if gh.Slug() != "github-webhooks" {
		t.Errorf("slug = %q, want github-webhooks", gh.Slug())
	}
	if gh.DisplayLabel() != "GitHub Webhooks" {
		t.Errorf("label should fall back to name, got %q", gh.DisplayLabel())
	}
	if gh.ArtifactDir() != "github-webhooks" {
		t.Errorf("artifact dir should fall back to slug, got %q", gh.ArtifactDir())
	}
}

func TestLoad_JSONDetectedByContent(t *testing.T) {
	data := []byte(`{"providers": [{"name": "Shopify"}]}`)
	configs, err := Load(data, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(configs) != 1 || configs[0].Slug() != "shopify" {
		t.Fatalf("unexpected configs: %+v", configs)
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "providers.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	configs, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if len(configs) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(configs))
	}
}

func TestLoad_RejectsSlugCollision(t *testing.T) {
	data := []byte(`providers:
  - name: "My Provider"
  - name: "my provider"
`)
	if _, err := Load(data, ".yaml"); err == nil {
		t.Fatal("expected slug collision error")
	}
}

func TestLoad_RejectsEmptyName(t *testing.T) {
	data := []byte("providers:\n  - label: nameless\n")
	if _, err := Load(data, ".yaml"); err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestSelect(t *testing.T) {
	all := []Config{{Name: "Stripe"}, {Name: "GitHub Webhooks"}, {Name: "Shopify"}}

	got, err := Select(all, []string{"github webhooks"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(got) != 1 || got[0].Name != "GitHub Webhooks" {
		t.Fatalf("unexpected selection: %+v", got)
	}

	if _, err := Select(all, []string{"twilio"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}

	got, err = Select(all, nil)
	if err != nil {
		t.Fatalf("Select nil: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("empty selection should return all, got %d", len(got))
	}
}

func TestSlug_Normalization(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Stripe", "stripe"},
		{"GitHub  Webhooks!", "github-webhooks"},
		{"--weird__name--", "weird-name"},
		{"A1_b2.C3", "a1-b2-c3"},
	}
	for _, tt := range tests {
		if got := (Config{Name: tt.name}).Slug(); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
