package scanner

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/julien-sobczak/nt-anki/internal/anki"
	"github.com/julien-sobczak/nt-anki/internal/format"
	"github.com/julien-sobczak/nt-anki/pkg/text"
)

// splitLineOnSeparator splits a line on :: separators, ignoring separators
// inside {{...}} cloze markers.
func splitLineOnSeparator(line string) []string {
	var parts []string
	var current strings.Builder
	depth := 0
	i := 0
	for i < len(line) {
		switch {
		case strings.HasPrefix(line[i:], "{{"):
			depth++
			current.WriteString("{{")
			i += 2
		case depth > 0 && strings.HasPrefix(line[i:], "}}"):
			depth--
			current.WriteString("}}")
			i += 2
		case depth == 0 && strings.HasPrefix(line[i:], "::"):
			parts = append(parts, current.String())
			current.Reset()
			i += 2
		default:
			current.WriteByte(line[i])
			i++
		}
	}
	parts = append(parts, current.String())
	return parts
}

// fieldLabel returns the schema field started by a line of the form
// "<FieldName>: value". The longest matching field name wins
// (so "Back Extra:" is not mistaken for "Back:").
func fieldLabel(line string, fieldNames []string) (int, string, bool) {
	best := -1
	for i, name := range fieldNames {
		prefix := name + ":"
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		if best == -1 || len(name) > len(fieldNames[best]) {
			best = i
		}
	}
	if best == -1 {
		return 0, "", false
	}
	rest := strings.TrimPrefix(line, fieldNames[best]+":")
	return best, strings.TrimPrefix(rest, " "), true
}

// splitFields distributes a note content positionally onto the schema field
// list. A "<FieldName>:" label jumps to a later field; a :: separator
// advances to the next one. Excess text is appended to the last field and
// missing trailing fields are left empty.
func splitFields(content string, fieldNames []string) []string {
	values := make([]strings.Builder, len(fieldNames))
	current := 0

	appendText := func(index int, value string, newLine bool) {
		if newLine && values[index].Len() > 0 {
			values[index].WriteByte('\n')
		}
		values[index].WriteString(value)
	}

	for _, line := range strings.Split(content, "\n") {
		if index, rest, ok := fieldLabel(line, fieldNames); ok && index > current {
			current = index
			appendText(current, rest, true)
			continue
		}
		for j, part := range splitLineOnSeparator(line) {
			if j == 0 {
				appendText(current, part, true)
				continue
			}
			if current < len(fieldNames)-1 {
				current++
				appendText(current, part, true)
			} else {
				// Excess separator is literal text of the last field
				values[current].WriteString("::")
				values[current].WriteString(part)
			}
		}
	}

	results := make([]string, len(fieldNames))
	for i := range values {
		results[i] = strings.TrimSpace(values[i].String())
	}
	return results
}

// newNoteFromContent builds a note record from the raw content of a block or
// inline note, whose field values still have to be split.
func (s *scan) newNoteFromContent(typeName string, content string, noteTags []string, span Span) (*anki.Note, error) {
	noteType, ok := s.opts.NoteType(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNoteType, typeName)
	}
	return s.newNote(noteType, splitFields(content, noteType.Fields), noteTags, span)
}

// newNote builds a note record from positional field values.
// Pure function of (values, schema, options, metadata): the same inputs
// always produce the same record.
func (s *scan) newNote(noteType NoteType, values []string, noteTags []string, span Span) (*anki.Note, error) {
	note := anki.NewNote(noteType.Name, noteType.Fields)
	for i, value := range values {
		if i >= len(noteType.Fields) {
			// Excess values are folded into the last field
			last := noteType.Fields[len(noteType.Fields)-1]
			note.Fields[last] = note.Fields[last] + "\n" + value
			continue
		}
		note.Fields[noteType.Fields[i]] = format.Field(value, s.opts.Format)
	}

	if noteType.Cloze && !hasClozeDeletion(note) {
		return nil, fmt.Errorf("%w in note type %q", ErrMissingCloze, noteType.Name)
	}

	// Tag order: note-local tags first, then global document tags appended
	note.AddTags(noteTags...)
	note.AddTags(s.fileTags...)

	note.Deck = s.deck()

	if s.opts.AddContext {
		s.appendToFirstField(note, noteType, s.context(span))
	}
	if s.opts.AddAliases {
		s.appendToFirstField(note, noteType, strings.Join(s.metadata.Aliases(), ", "))
	}

	return note, nil
}

func hasClozeDeletion(note *anki.Note) bool {
	for _, value := range note.Fields {
		if regexClozeMarker.MatchString(value) {
			return true
		}
	}
	return false
}

// deck resolves the target deck: in-document directive, then Front Matter
// override, then the configured default.
func (s *scan) deck() string {
	if s.targetDeck != "" {
		return s.targetDeck
	}
	if deck := s.metadata.Deck(); deck != "" {
		return deck
	}
	return s.opts.DefaultDeck
}

// context computes the heading path enclosing a note, prefixed by the file name.
func (s *scan) context(span Span) string {
	base := text.TrimExtension(filepath.Base(s.file.Path))
	parts := append([]string{base}, s.metadata.HeadingPath(span.Start)...)
	return strings.Join(parts, " > ")
}

func (s *scan) appendToFirstField(note *anki.Note, noteType NoteType, value string) {
	if value == "" || len(noteType.Fields) == 0 {
		return
	}
	first := noteType.Fields[0]
	if note.Fields[first] == "" {
		note.Fields[first] = value
		return
	}
	note.Fields[first] = note.Fields[first] + "\n\n" + value
}
