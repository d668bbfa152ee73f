// Package render turns command responses into terminal output.
package render

import (
	"github.com/charmbracelet/glamour"

	"github.com/Lin-Jiong-HDU/qbot/internal/core"
)

// Renderer renders markdown for the terminal
type Renderer struct {
	term *glamour.TermRenderer
}

// NewRenderer creates a Renderer wrapping at width. A plain renderer
// returns markdown untouched.
func NewRenderer(width int, plain bool) (*Renderer, error) {
	if plain {
		return &Renderer{}, nil
	}

	term, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}

	return &Renderer{term: term}, nil
}

// Render renders markdown, falling back to the raw text.
func (r *Renderer) Render(markdown string) string {
	if r == nil || r.term == nil {
		return markdown
	}
	out, err := r.term.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}

// RenderResponse renders a command response.
func (r *Renderer) RenderResponse(resp *core.Response) string {
	return r.Render(Markdown(resp))
}
