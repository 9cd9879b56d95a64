package anki

import (
	"fmt"
	"sort"
	"strings"
)

// Note is the structured extraction of one flashcard from raw Markdown text:
// its fields, tags, deck and remote identifier.
type Note struct {
	// Name of the Anki note type (model)
	NoteType string

	// Target deck
	Deck string

	// Field values indexed by field name
	Fields map[string]string

	// Tags, note-local first, then global document tags
	Tags []string

	// Remote identifier. Zero for a note not pushed to Anki yet.
	ID int64
}

// NewNote initializes a note with empty values for every schema field.
func NewNote(noteType string, fieldNames []string) *Note {
	fields := make(map[string]string, len(fieldNames))
	for _, name := range fieldNames {
		fields[name] = ""
	}
	return &Note{
		NoteType: noteType,
		Fields:   fields,
	}
}

// Field returns a field value or "" when missing.
func (n *Note) Field(name string) string {
	return n.Fields[name]
}

// AddTags appends tags not already present, preserving order.
func (n *Note) AddTags(tags ...string) {
	for _, tag := range tags {
		found := false
		for _, existing := range n.Tags {
			if existing == tag {
				found = true
				break
			}
		}
		if !found {
			n.Tags = append(n.Tags, tag)
		}
	}
}

func (n Note) String() string {
	var names []string
	for name := range n.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("note %s [%s] (id=%d)", n.NoteType, strings.Join(names, ","), n.ID)
}
