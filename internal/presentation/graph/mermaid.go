package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/cadence/pkg/procedure"
)

// Overlay contains run data to visualize on the graph.
type Overlay struct {
	Visited []string
	Current string
}

// idleNode stands for the idle scheduler that procedures without exits fall back to.
const idleNode = "__idle"

// GenerateMermaid produces a Mermaid flowchart of procedures and their declared exits.
// It applies semantic styling:
// - Initial procedure: ((Circle))
// - Go body (no static steps): [[Subroutine]]
// - Default: [Rectangle]
// Procedures with no exits point to the idle node with a dotted arrow.
func GenerateMermaid(states []*procedure.State, initial string, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	needIdle := false

	for _, st := range states {
		safeID := sanitizeMermaidID(st.Name())

		opener, closer := "[", "]"
		switch {
		case st.Name() == initial:
			opener, closer = "((", "))"
		case st.StepCount() == 0:
			opener, closer = "[[", "]]"
		}

		label := st.Name()
		if n := st.StepCount(); n > 0 {
			label = fmt.Sprintf("%s <br/> %d steps", st.Name(), n)
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, label, closer)

		exits := st.Exits()
		for _, exit := range exits {
			fmt.Fprintf(&sb, "    %s --> %s\n", safeID, sanitizeMermaidID(exit))
		}
		if len(exits) == 0 {
			needIdle = true
			fmt.Fprintf(&sb, "    %s -.-> %s\n", safeID, idleNode)
		}
	}
	if needIdle {
		fmt.Fprintf(&sb, "    %s([\"idle\"])\n", idleNode)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, name := range overlay.Visited {
			safeID := sanitizeMermaidID(name)
			if !seen[safeID] && safeID != "" {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.Current))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
