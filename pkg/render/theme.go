package render

import (
	"errors"
	"path"
	"strings"

	theme "github.com/goliatone/go-theme"
)

// ThemeConfig flattens a theme manifest and one of its variants into the
// renderer configuration. Variant tokens, templates and assets override the
// base ones; every token is also exposed as a "--<token>" CSS variable.
func ThemeConfig(manifest *theme.Manifest, variant string) (*theme.RendererConfig, error) {
	if manifest == nil {
		return nil, errors.New("render: theme manifest is nil")
	}

	tokens := copyStrings(manifest.Tokens)
	partials := copyStrings(manifest.Templates)
	prefix := manifest.Assets.Prefix
	files := copyStrings(manifest.Assets.Files)

	if variant != "" {
		v, ok := manifest.Variants[variant]
		if !ok {
			return nil, errors.New("render: theme " + manifest.Name + " has no variant " + variant)
		}
		mergeStrings(tokens, v.Tokens)
		mergeStrings(partials, v.Templates)
		mergeStrings(files, v.Assets.Files)
		if v.Assets.Prefix != "" {
			prefix = v.Assets.Prefix
		}
	}

	cssVars := make(map[string]string, len(tokens))
	for key, value := range tokens {
		if !strings.HasPrefix(key, "--") {
			key = "--" + key
		}
		cssVars[key] = value
	}

	return &theme.RendererConfig{
		Theme:    manifest.Name,
		Variant:  variant,
		Tokens:   tokens,
		CSSVars:  cssVars,
		Partials: partials,
		AssetURL: func(key string) string {
			file, ok := files[key]
			if !ok {
				file = key
			}
			if strings.Contains(file, "://") || strings.HasPrefix(file, "/") {
				return file
			}
			if prefix == "" {
				return file
			}
			return strings.TrimSuffix(prefix, "/") + "/" + path.Clean(file)
		},
	}, nil
}

func copyStrings(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func mergeStrings(dst, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}
