package processor

import (
	"context"

	"catalog/internal/layout"
	"catalog/internal/models"
	"catalog/internal/pkg/errors"
	"catalog/internal/render"
)

// Layouter builds the document tree for a datasheet.
type Layouter interface {
	Build(ds models.ProductDatasheet) (*layout.Document, error)
}

// Renderer produces the flattened PDF for a document.
type Renderer interface {
	Run(ctx context.Context, doc *layout.Document, base string, arts *render.Artifacts) (render.Output, error)
}

// RendererAdapter chains layout and rendering.
type RendererAdapter struct {
	layout   Layouter
	renderer Renderer
}

func NewRendererAdapter(l Layouter, r Renderer) *RendererAdapter {
	return &RendererAdapter{layout: l, renderer: r}
}

type RenderRequest struct {
	JobID     string
	Datasheet models.ProductDatasheet
	BaseName  string
	Artifacts *render.Artifacts
}

// Render returns the flattened PDF path. Errors keep their code so the
// worker can tell permanent layout problems from retryable render failures.
func (ra *RendererAdapter) Render(ctx context.Context, req RenderRequest) (string, error) {
	doc, err := ra.layout.Build(req.Datasheet)
	if err != nil {
		return "", errors.Wrap(err, "processor.layout", "layout failed")
	}
	out, err := ra.renderer.Run(ctx, doc, req.BaseName, req.Artifacts)
	if err != nil {
		return "", errors.Wrap(err, "processor.render", "render failed")
	}
	return out.Flattened, nil
}
