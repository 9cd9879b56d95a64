// Package format holds the pure text-to-text transform applied to every
// field value before a note record is finalized: cloze shorthand expansion,
// highlight conversion and optional Markdown-to-HTML rendering.
package format

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown"
)

// Options carries the cloze/highlight configuration flags of the caller.
type Options struct {
	// CurlyCloze expands the {text} and {n:text} shorthands into
	// Anki {{cn::text}} markers.
	CurlyCloze bool

	// HighlightsToCloze treats ==text== highlights as {text} shorthands.
	// Only effective when CurlyCloze is enabled.
	HighlightsToCloze bool

	// MarkdownToHTML renders field values to HTML.
	// Off by default so that scanned fields round-trip byte-for-byte.
	MarkdownToHTML bool
}

var regexHighlight = regexp.MustCompile(`==([^=\n]+)==`)
var regexNumberedBrace = regexp.MustCompile(`^(\d+)[:|]`)

// Field formats a raw field value. The function is pure: same input and
// options always produce the same output.
func Field(raw string, opts Options) string {
	result := raw

	if opts.CurlyCloze {
		if opts.HighlightsToCloze {
			result = regexHighlight.ReplaceAllString(result, "{$1}")
		}
		result = expandCurlyClozes(result)
	}

	if opts.MarkdownToHTML {
		result = strings.TrimSpace(string(markdown.ToHTML([]byte(result), nil, nil)))
	}

	return result
}

// expandCurlyClozes converts single-brace cloze shorthands while leaving
// existing {{cn::...}} markers untouched. Unnumbered braces are numbered
// incrementally in order of appearance.
func expandCurlyClozes(text string) string {
	var result strings.Builder
	counter := 0

	i := 0
	for i < len(text) {
		// Existing Anki marker: copy verbatim up to the closing braces
		if strings.HasPrefix(text[i:], "{{") {
			end := strings.Index(text[i:], "}}")
			if end == -1 {
				result.WriteString(text[i:])
				break
			}
			result.WriteString(text[i : i+end+2])
			i += end + 2
			continue
		}

		if text[i] != '{' {
			result.WriteByte(text[i])
			i++
			continue
		}

		end := strings.IndexByte(text[i:], '}')
		if end == -1 {
			result.WriteString(text[i:])
			break
		}
		inner := text[i+1 : i+end]
		if strings.ContainsAny(inner, "{\n") || inner == "" {
			// Not a cloze shorthand
			result.WriteString(text[i : i+end+1])
			i += end + 1
			continue
		}

		if submatch := regexNumberedBrace.FindStringSubmatch(inner); submatch != nil {
			number := submatch[1]
			value := inner[len(submatch[0]):]
			result.WriteString(fmt.Sprintf("{{c%s::%s}}", number, value))
		} else {
			counter++
			result.WriteString(fmt.Sprintf("{{c%d::%s}}", counter, inner))
		}
		i += end + 1
	}

	return result.String()
}
