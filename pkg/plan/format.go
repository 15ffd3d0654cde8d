package plan

import (
	"strings"
)

// FormatPlan generates a visual string representation of the plan tree,
// root first.
func FormatPlan(n Node) string {
	var sb strings.Builder
	sb.WriteString(n.Explain())
	sb.WriteString("\n")
	children := n.Children()
	for i, child := range children {
		formatRecursive(child, "", i == len(children)-1, &sb)
	}
	return sb.String()
}

func formatRecursive(n Node, prefix string, last bool, sb *strings.Builder) {
	sb.WriteString(prefix)
	if last {
		sb.WriteString("└─ ")
		prefix += "   "
	} else {
		sb.WriteString("├─ ")
		prefix += "│  "
	}
	sb.WriteString(n.Explain())
	sb.WriteString("\n")

	children := n.Children()
	for i, child := range children {
		formatRecursive(child, prefix, i == len(children)-1, sb)
	}
}
