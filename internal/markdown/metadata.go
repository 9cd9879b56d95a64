package markdown

import (
	"regexp"
	"strings"
)

// FrontMatterIDKey is the Front Matter property recording a note identifier.
const FrontMatterIDKey = "nid"

// Heading is a Markdown heading with its position inside the original buffer.
type Heading struct {
	Text   string
	Level  int
	Offset int // byte offset of the leading '#'
}

// InlineTag is a #tag occurrence with its position inside the original buffer.
type InlineTag struct {
	Tag    string
	Offset int
}

// Metadata is a read-only snapshot of the structured content of a file:
// Front Matter attributes, headings and inline tags with byte offsets.
// It must be recomputed after each rewrite of the file.
type Metadata struct {
	Attributes map[string]any
	Headings   []Heading
	InlineTags []InlineTag

	frontMatter FrontMatter
}

var regexInlineTag = regexp.MustCompile(`(?:^|\s)#([\w/][\w/-]*)`)

// Snapshot computes the metadata of a file.
func (f *File) Snapshot() (*Metadata, error) {
	attributes, err := f.FrontMatter.AsMap()
	if err != nil {
		return nil, err
	}

	m := &Metadata{
		Attributes:  attributes,
		frontMatter: f.FrontMatter,
	}

	body := string(f.Body())
	bodyStart := f.BodyStart()

	// Collect headings and inline tags in a single pass,
	// ignoring the content of fenced code blocks.
	offset := 0
	insideCodeBlock := false
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "```") {
			insideCodeBlock = !insideCodeBlock
		}
		if !insideCodeBlock {
			if ok, headingText, headingLevel := IsHeading(line); ok {
				m.Headings = append(m.Headings, Heading{
					Text:   headingText,
					Level:  headingLevel,
					Offset: bodyStart + offset,
				})
			} else {
				for _, match := range regexInlineTag.FindAllStringSubmatchIndex(line, -1) {
					m.InlineTags = append(m.InlineTags, InlineTag{
						Tag:    line[match[2]:match[3]],
						Offset: bodyStart + offset + match[2],
					})
				}
			}
		}
		offset += len(line) + 1
	}

	return m, nil
}

// Tags returns the Front Matter tags.
func (m *Metadata) Tags() []string {
	return m.frontMatter.GetStrings("tags")
}

// Aliases returns the Front Matter aliases.
func (m *Metadata) Aliases() []string {
	return m.frontMatter.GetStrings("aliases")
}

// Deck returns the Front Matter deck override, or "" when absent.
func (m *Metadata) Deck() string {
	return m.frontMatter.GetString("deck")
}

// NoteID returns the Front Matter note identifier, or false when absent or malformed.
func (m *Metadata) NoteID() (int64, bool) {
	return m.frontMatter.GetInt(FrontMatterIDKey)
}

// HasTag checks the Front Matter tags and the inline tags for a given tag.
func (m *Metadata) HasTag(tag string) bool {
	for _, t := range m.Tags() {
		if t == tag || t == "#"+tag {
			return true
		}
	}
	for _, t := range m.InlineTags {
		if t.Tag == tag {
			return true
		}
	}
	return false
}

// HeadingPath returns the texts of the headings enclosing a given offset,
// from the topmost level down to the closest one.
func (m *Metadata) HeadingPath(offset int) []string {
	var stack []Heading
	for _, heading := range m.Headings {
		if heading.Offset > offset {
			break
		}
		for len(stack) > 0 && stack[len(stack)-1].Level >= heading.Level {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, heading)
	}
	var results []string
	for _, heading := range stack {
		results = append(results, heading.Text)
	}
	return results
}
