// Package html renders descriptors as HTML forms. The descriptor's renderer
// hint picks the layout: "div" wraps each element in a container, "table"
// lays elements out as label/control rows.
package html

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"

	theme "github.com/goliatone/go-theme"

	"github.com/mahara/pieform/pkg/model"
	"github.com/mahara/pieform/pkg/render"
	rendertemplate "github.com/mahara/pieform/pkg/render/template"
	"github.com/mahara/pieform/pkg/render/template/pongo"
)

// Name is the registry name of the HTML renderer.
const Name = "html"

// Option configures the renderer.
type Option func(*config)

type config struct {
	templateFS       fs.FS
	templateRenderer rendertemplate.TemplateRenderer
	inlineStyles     bool
}

// WithTemplatesFS supplies an alternate template bundle via fs.FS. The bundle
// must provide form_div.tpl, form_table.tpl and control.tpl.
func WithTemplatesFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.templateFS = files
	}
}

// WithTemplatesDir loads templates from a directory on disk.
func WithTemplatesDir(path string) Option {
	return func(cfg *config) {
		if path == "" {
			return
		}
		cfg.templateFS = os.DirFS(path)
	}
}

// WithTemplateRenderer injects a custom template renderer implementation.
func WithTemplateRenderer(renderer rendertemplate.TemplateRenderer) Option {
	return func(cfg *config) {
		if renderer != nil {
			cfg.templateRenderer = renderer
		}
	}
}

// WithInlineStyles embeds the default stylesheet in every rendered form.
func WithInlineStyles(enabled bool) Option {
	return func(cfg *config) {
		cfg.inlineStyles = enabled
	}
}

// Renderer implements render.Renderer.
type Renderer struct {
	templates    rendertemplate.TemplateRenderer
	inlineStyles bool
}

var _ render.Renderer = (*Renderer)(nil)

// New constructs the HTML renderer applying any provided options.
func New(options ...Option) (*Renderer, error) {
	cfg := config{templateFS: TemplatesFS()}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	if cfg.templateFS == nil {
		cfg.templateFS = TemplatesFS()
	}

	renderer := cfg.templateRenderer
	if renderer == nil {
		engine, err := pongo.New(
			pongo.WithName("pieform-html"),
			pongo.WithFS(cfg.templateFS),
		)
		if err != nil {
			return nil, fmt.Errorf("html renderer: configure template renderer: %w", err)
		}
		renderer = engine
	}

	return &Renderer{templates: renderer, inlineStyles: cfg.inlineStyles}, nil
}

// Name implements render.Renderer.
func (r *Renderer) Name() string {
	return Name
}

// ContentType implements render.Renderer.
func (r *Renderer) ContentType() string {
	return "text/html; charset=utf-8"
}

// Render implements render.Renderer.
func (r *Renderer) Render(_ context.Context, desc model.Descriptor, options render.RenderOptions) ([]byte, error) {
	if r.templates == nil {
		return nil, fmt.Errorf("html renderer: template renderer is nil")
	}

	localized := desc.Clone()
	render.Localize(&localized, options)

	data := buildView(localized, options)
	if r.inlineStyles {
		data["inline_css"] = defaultStylesheet()
	}

	result, err := r.templates.RenderTemplate(templateFor(localized, options.Theme), data)
	if err != nil {
		return nil, fmt.Errorf("html renderer: render form %q: %w", desc.Name, err)
	}
	return []byte(result), nil
}

// templateFor picks the layout template. A theme may replace a layout by
// naming a template under the "form.<layout>" partial key.
func templateFor(desc model.Descriptor, cfg *theme.RendererConfig) string {
	layout := desc.Renderer
	if layout != model.RendererTable {
		layout = model.RendererDiv
	}
	if cfg != nil {
		if partial := strings.TrimSpace(cfg.Partials["form."+layout]); partial != "" {
			return partial
		}
	}
	return "form_" + layout + ".tpl"
}
