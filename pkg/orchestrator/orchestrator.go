package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/mahara/pieform/pkg/model"
	"github.com/mahara/pieform/pkg/openapi"
	"github.com/mahara/pieform/pkg/render"
)

// Option customises the orchestrator.
type Option func(*Orchestrator)

// WithRegistry sets the renderer registry. Generate fails without one.
func WithRegistry(registry *render.Registry) Option {
	return func(o *Orchestrator) {
		o.registry = registry
	}
}

// WithDefaultRenderer names the renderer used when a request omits one. An
// empty name uses the registry fallback.
func WithDefaultRenderer(name string) Option {
	return func(o *Orchestrator) {
		o.defaultRenderer = name
	}
}

// WithBuilder replaces the descriptor builder.
func WithBuilder(builder *model.Builder) Option {
	return func(o *Orchestrator) {
		if builder != nil {
			o.builder = builder
		}
	}
}

// WithLoaderOptions configures how sources are fetched.
func WithLoaderOptions(options ...openapi.LoaderOption) Option {
	return func(o *Orchestrator) {
		o.loaderOptions = append(o.loaderOptions, options...)
	}
}

// WithConvertOptions configures document parsing.
func WithConvertOptions(options openapi.Options) Option {
	return func(o *Orchestrator) {
		o.convert = options
	}
}

// Orchestrator runs the OpenAPI to form pipeline.
type Orchestrator struct {
	registry        *render.Registry
	defaultRenderer string
	builder         *model.Builder
	loaderOptions   []openapi.LoaderOption
	convert         openapi.Options
}

// New returns an orchestrator with the default builder.
func New(options ...Option) *Orchestrator {
	o := &Orchestrator{builder: model.NewBuilder()}
	for _, opt := range options {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Request describes one generation.
type Request struct {
	// Source locates the document. Ignored when Document is set.
	Source openapi.Source
	// Document holds raw OpenAPI bytes the caller already has.
	Document []byte
	// OperationID selects the operation to turn into a form.
	OperationID string
	// Renderer overrides the default renderer.
	Renderer      string
	RenderOptions render.RenderOptions
}

// Operations lists the operations of the requested document.
func (o *Orchestrator) Operations(ctx context.Context, req Request) ([]openapi.Operation, error) {
	raw, err := o.document(ctx, req)
	if err != nil {
		return nil, err
	}
	return openapi.Operations(ctx, raw, o.convert)
}

// Config converts the requested operation into a form config.
func (o *Orchestrator) Config(ctx context.Context, req Request) (model.Config, error) {
	if req.OperationID == "" {
		return model.Config{}, errors.New("orchestrator: operation id is required")
	}
	raw, err := o.document(ctx, req)
	if err != nil {
		return model.Config{}, err
	}
	return openapi.ConfigFromOperation(ctx, raw, req.OperationID, o.convert)
}

// Descriptor builds the descriptor for the requested operation.
func (o *Orchestrator) Descriptor(ctx context.Context, req Request) (model.Descriptor, error) {
	cfg, err := o.Config(ctx, req)
	if err != nil {
		return model.Descriptor{}, err
	}
	desc, err := o.builder.Build(cfg)
	if err != nil {
		return model.Descriptor{}, fmt.Errorf("orchestrator: build form %q: %w", cfg.Name, err)
	}
	return desc, nil
}

// Generate renders the requested operation's form.
func (o *Orchestrator) Generate(ctx context.Context, req Request) ([]byte, error) {
	if o.registry == nil {
		return nil, errors.New("orchestrator: renderer registry is required")
	}
	desc, err := o.Descriptor(ctx, req)
	if err != nil {
		return nil, err
	}
	name := req.Renderer
	if name == "" {
		name = o.defaultRenderer
	}
	out, err := o.registry.Render(ctx, name, desc, req.RenderOptions)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: render %q: %w", desc.Name, err)
	}
	return out, nil
}

func (o *Orchestrator) document(ctx context.Context, req Request) ([]byte, error) {
	if ctx == nil {
		return nil, errors.New("orchestrator: context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Document) > 0 {
		return req.Document, nil
	}
	if req.Source == nil {
		return nil, errors.New("orchestrator: source or document is required")
	}
	raw, err := openapi.Load(ctx, req.Source, o.loaderOptions...)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load %s: %w", req.Source.Location(), err)
	}
	return raw, nil
}
