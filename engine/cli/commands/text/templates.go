// Package text formats the help text of the lottery CLI commands.
package text

import (
	"strings"
)

// Indentation is the indentation of examples in help text.
const Indentation = `  `

// LongDesc trims a command's long description.
func LongDesc(s string) string {
	if len(s) == 0 {
		return s
	}

	return normalizer{s}.trim().string
}

// Examples trims a command's examples and indents every line.
func Examples(s string) string {
	if len(s) == 0 {
		return s
	}

	return normalizer{s}.trim().indent().string
}

type normalizer struct {
	string
}

func (s normalizer) trim() normalizer {
	s.string = strings.TrimSpace(s.string)

	return s
}

func (s normalizer) indent() normalizer {
	lines := strings.Split(s.string, "\n")
	for i, line := range lines {
		lines[i] = Indentation + strings.TrimSpace(line)
	}
	s.string = strings.Join(lines, "\n")

	return s
}
