package markdown

import (
	"strings"
)

// Document represents a Markdown document (can be a whole file, or just a snippet)
type Document string

func (m Document) String() string {
	return string(m)
}

// IsHeading returns if a given line is a Markdown heading and its level.
func IsHeading(line string) (bool, string, int) {
	if !strings.HasPrefix(line, "#") {
		return false, "", 0
	}
	for level := 6; level >= 1; level-- {
		prefix := strings.Repeat("#", level) + " "
		if strings.HasPrefix(line, prefix) {
			return true, strings.TrimPrefix(line, prefix), level
		}
	}
	return false, "", 0
}
