package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
// A width of zero keeps glamour's default word wrap.
func NewRenderer(width int) func(string) (string, error) {
	opts := []glamour.TermRendererOption{
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// SourceMarkdown wraps procedure source in a fenced block for rendering.
// Go bodies get go highlighting, everything else is plain text.
func SourceMarkdown(title, file, source string) string {
	lang := "text"
	switch {
	case strings.HasSuffix(file, ".go"):
		lang = "go"
	case strings.HasSuffix(file, ".star"):
		lang = "python"
	case strings.HasSuffix(file, ".yaml"), strings.HasSuffix(file, ".yml"):
		lang = "yaml"
	}
	var sb strings.Builder
	if title != "" {
		fmt.Fprintf(&sb, "## %s\n\n", title)
	}
	fmt.Fprintf(&sb, "```%s\n%s\n```\n", lang, strings.TrimRight(source, "\n"))
	return sb.String()
}
