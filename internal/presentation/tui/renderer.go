// Package tui renders diagram server output for terminals.
package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/diagram/internal/presentation/graph"
	"github.com/aretw0/diagram/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
// A renderer that cannot be created returns the markdown unchanged.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	return r.Render
}

// SnapshotMarkdown describes a stored session as markdown: its options, its
// elements and the model as a Mermaid graph.
func SnapshotMarkdown(snapshot *domain.Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Session `%s`\n\n", snapshot.ClientID)
	fmt.Fprintf(&sb, "Revision **%d**", snapshot.Revision)
	if !snapshot.SavedAt.IsZero() {
		fmt.Fprintf(&sb, ", saved %s", snapshot.SavedAt.Format("2006-01-02 15:04:05 MST"))
	}
	sb.WriteString("\n\n")

	if len(snapshot.Options) > 0 {
		sb.WriteString("## Options\n\n| Option | Value |\n|---|---|\n")
		keys := make([]string, 0, len(snapshot.Options))
		for k := range snapshot.Options {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "| %s | %s |\n", k, snapshot.Options[k])
		}
		sb.WriteString("\n")
	}

	if snapshot.Model.IsEmpty() {
		sb.WriteString("_No model._\n")
		return sb.String()
	}

	sb.WriteString("## Elements\n\n| ID | Type | Bounds |\n|---|---|---|\n")
	snapshot.Model.Walk(func(el *domain.Element) bool {
		fmt.Fprintf(&sb, "| %s | %s | %s |\n", el.ID, el.Type, bounds(el))
		return true
	})

	sb.WriteString("\n## Graph\n\n```mermaid\n")
	sb.WriteString(graph.GenerateMermaid(snapshot.Model, nil))
	sb.WriteString("```\n")
	return sb.String()
}

func bounds(el *domain.Element) string {
	if el.Position == nil && el.Size == nil {
		return "-"
	}
	var x, y, w, h float64
	if el.Position != nil {
		x, y = el.Position.X, el.Position.Y
	}
	if el.Size != nil {
		w, h = el.Size.Width, el.Size.Height
	}
	return fmt.Sprintf("%g,%g %gx%g", x, y, w, h)
}
