package render

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	theme "github.com/goliatone/go-theme"
)

func TestThemeConfig_MergesVariant(t *testing.T) {
	manifest := &theme.Manifest{
		Name:    "raw",
		Version: "1.0.0",
		Tokens:  map[string]string{"brand": "#123456", "--pieform-error": "#c00"},
		Templates: map[string]string{
			"form.div": "raw/form_div.tpl",
		},
		Assets: theme.Assets{
			Prefix: "/static/raw",
			Files:  map[string]string{"pieform.css": "css/pieform.css"},
		},
		Variants: map[string]theme.Variant{
			"dark": {
				Tokens:    map[string]string{"brand": "#654321"},
				Templates: map[string]string{"form.table": "raw/dark/form_table.tpl"},
				Assets:    theme.Assets{Files: map[string]string{"site.css": "css/dark.css"}},
			},
		},
	}

	cfg, err := ThemeConfig(manifest, "dark")
	if err != nil {
		t.Fatalf("theme config: %v", err)
	}
	if cfg.Theme != "raw" || cfg.Variant != "dark" {
		t.Fatalf("selection %s/%s", cfg.Theme, cfg.Variant)
	}
	wantVars := map[string]string{"--brand": "#654321", "--pieform-error": "#c00"}
	if diff := cmp.Diff(wantVars, cfg.CSSVars); diff != "" {
		t.Fatalf("css vars mismatch (-want +got):\n%s", diff)
	}
	wantPartials := map[string]string{"form.div": "raw/form_div.tpl", "form.table": "raw/dark/form_table.tpl"}
	if diff := cmp.Diff(wantPartials, cfg.Partials); diff != "" {
		t.Fatalf("partials mismatch (-want +got):\n%s", diff)
	}
	for key, want := range map[string]string{
		"pieform.css":       "/static/raw/css/pieform.css",
		"site.css":          "/static/raw/css/dark.css",
		"logo.svg":          "/static/raw/logo.svg",
		"https://cdn/x.css": "https://cdn/x.css",
	} {
		if got := cfg.AssetURL(key); got != want {
			t.Errorf("AssetURL(%q) = %q, want %q", key, got, want)
		}
	}

	if manifest.Tokens["brand"] != "#123456" {
		t.Fatalf("manifest tokens mutated")
	}
}

func TestThemeConfig_Errors(t *testing.T) {
	if _, err := ThemeConfig(nil, ""); err == nil {
		t.Fatalf("expected error for nil manifest")
	}
	if _, err := ThemeConfig(&theme.Manifest{Name: "raw"}, "neon"); err == nil {
		t.Fatalf("expected error for unknown variant")
	}
}
