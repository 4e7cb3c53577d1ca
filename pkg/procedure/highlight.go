package procedure

import "strings"

// Highlight marks line (0-based) of source with "--> " and indents every other line by four spaces.
// An out-of-range line marks nothing.
func Highlight(source string, line int) string {
	lines := splitLines(source)
	var sb strings.Builder
	for i, l := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		if i == line {
			sb.WriteString("--> ")
		} else {
			sb.WriteString("    ")
		}
		sb.WriteString(l)
	}
	return sb.String()
}

// Line returns the text of line (0-based), or "" when out of range.
func Line(source string, line int) string {
	lines := splitLines(source)
	if line < 0 || line >= len(lines) {
		return ""
	}
	return lines[line]
}

func splitLines(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}
