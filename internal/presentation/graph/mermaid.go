// Package graph renders diagram models as Mermaid flowcharts.
package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/diagram/pkg/domain"
)

// Overlay marks elements to highlight on the rendered graph.
type Overlay struct {
	Highlighted []string
}

// GenerateMermaid produces a Mermaid flowchart from a model tree.
// Elements with "source" and "target" properties become edges; elements with
// children become subgraphs. Node shapes follow the element type:
//   - state, initial: ((Circle))
//   - decision: {Rhombus}
//   - package, component: [[Subroutine]]
//   - Default: [Rectangle]
func GenerateMermaid(root *domain.ModelRoot, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	if root == nil {
		return sb.String()
	}

	var edges []*domain.Element
	for _, child := range root.Children {
		writeElement(&sb, child, "    ", &edges)
	}

	for _, edge := range edges {
		from := sanitizeMermaidID(fmt.Sprint(edge.Properties["source"]))
		to := sanitizeMermaidID(fmt.Sprint(edge.Properties["target"]))
		arrow := "-->"
		if name := label(edge, ""); name != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", name)
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", from, arrow, to)
	}

	if overlay != nil && len(overlay.Highlighted) > 0 {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef highlighted fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Highlighted {
			safeID := sanitizeMermaidID(id)
			if safeID != "" && !seen[safeID] && root.Find(id) != nil {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s highlighted;\n", safeID)
			}
		}
	}
	return sb.String()
}

func writeElement(sb *strings.Builder, el *domain.Element, indent string, edges *[]*domain.Element) {
	if isEdge(el) {
		*edges = append(*edges, el)
		return
	}

	safeID := sanitizeMermaidID(el.ID)
	if len(el.Children) > 0 {
		fmt.Fprintf(sb, "%ssubgraph %s[\"%s\"]\n", indent, safeID, label(el, el.ID))
		for _, child := range el.Children {
			writeElement(sb, child, indent+"    ", edges)
		}
		fmt.Fprintf(sb, "%send\n", indent)
		return
	}

	opener, closer := shape(el.Type)
	fmt.Fprintf(sb, "%s%s%s\"%s\"%s\n", indent, safeID, opener, label(el, el.ID), closer)
}

func isEdge(el *domain.Element) bool {
	_, hasSource := el.Properties["source"]
	_, hasTarget := el.Properties["target"]
	return hasSource && hasTarget
}

func shape(elementType string) (string, string) {
	t := strings.ToLower(elementType)
	switch {
	case strings.Contains(t, "state"), strings.Contains(t, "initial"):
		return "((", "))"
	case strings.Contains(t, "decision"):
		return "{", "}"
	case strings.Contains(t, "package"), strings.Contains(t, "component"):
		return "[[", "]]"
	}
	return "[", "]"
}

// label returns the name property of el with double quotes escaped, or fallback.
func label(el *domain.Element, fallback string) string {
	name, ok := el.Properties["name"].(string)
	if !ok || name == "" {
		name = fallback
	}
	return strings.ReplaceAll(name, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, ":", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
