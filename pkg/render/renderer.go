package render

import (
	"context"

	"github.com/mahara/pieform/pkg/model"
)

// Renderer converts a descriptor into a byte representation (HTML, plain
// text, and so on).
type Renderer interface {
	Name() string
	ContentType() string
	Render(ctx context.Context, desc model.Descriptor, options RenderOptions) ([]byte, error)
}
