package main

import (
	"fmt"
	"sort"
	"strings"

	theme "github.com/goliatone/go-theme"

	"github.com/mahara/pieform/internal/config"
	"github.com/mahara/pieform/pkg/render"
	"github.com/mahara/pieform/pkg/renderers/html"
)

// builtinThemes are the themes shipped with the binary. Their stylesheet is
// the html renderer's embedded asset.
func builtinThemes(assetBase string) map[string]*theme.Manifest {
	assets := theme.Assets{
		Prefix: assetBase,
		Files: map[string]string{
			html.StylesheetName: html.StylesheetName,
			"site.css":          html.StylesheetName,
		},
	}
	return map[string]*theme.Manifest{
		"raw": {
			Name:    "raw",
			Version: "1.0.0",
			Tokens: map[string]string{
				"pieform-accent": "#2b6cb0",
				"pieform-error":  "#c53030",
				"pieform-text":   "#1a202c",
				"pieform-bg":     "#ffffff",
			},
			Assets: assets,
			Variants: map[string]theme.Variant{
				"dark": {Tokens: map[string]string{
					"pieform-accent": "#90cdf4",
					"pieform-text":   "#e2e8f0",
					"pieform-bg":     "#1a202c",
				}},
			},
		},
	}
}

// selectTheme resolves the configured theme. The css_vars setting overrides
// the theme tokens.
func selectTheme(c config.ThemeConfig) (*theme.RendererConfig, error) {
	if c.Name == "" {
		return nil, nil
	}
	themes := builtinThemes(c.AssetBase)
	manifest, ok := themes[c.Name]
	if !ok {
		names := make([]string, 0, len(themes))
		for name := range themes {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown theme %q (available: %s)", c.Name, strings.Join(names, ", "))
	}
	selected, err := render.ThemeConfig(manifest, c.Variant)
	if err != nil {
		return nil, err
	}
	for key, value := range c.CSSVars {
		if !strings.HasPrefix(key, "--") {
			key = "--" + key
		}
		selected.CSSVars[key] = value
	}
	return selected, nil
}
