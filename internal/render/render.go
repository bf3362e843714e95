package render

import (
	"fmt"

	"github.com/atlasci/coalesce/internal/model"
)

// Format selects a serialization of the report document tree
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// Renderer serializes the abstract report tree. Both formats walk the same
// tree in the same fixed section order, so their structure is always
// equivalent. There is no partial-render fallback: any failure fails the
// whole call.
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// Render serializes the report in the requested format
func (r *Renderer) Render(report *model.Report, format Format) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("render: nil report")
	}
	switch format {
	case FormatMarkdown:
		return r.Markdown(report)
	case FormatJSON:
		return r.JSON(report)
	default:
		return nil, fmt.Errorf("render: unknown format %q", format)
	}
}
