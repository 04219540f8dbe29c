package commands

import "strings"

const indentation = `  `

// longDesc trims the surrounding whitespace of a command's long description.
func longDesc(s string) string {
	return strings.TrimSpace(s)
}

// examples trims every line of a command's examples and indents them.
func examples(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = indentation + strings.TrimSpace(line)
	}

	return strings.Join(lines, "\n")
}
