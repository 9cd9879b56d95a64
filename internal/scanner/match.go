package scanner

import (
	"fmt"

	"github.com/julien-sobczak/nt-anki/internal/anki"
)

// Dialect is the closed set of note syntaxes.
type Dialect int

const (
	DialectBlock Dialect = iota
	DialectInline
	DialectRegex
)

func (d Dialect) String() string {
	switch d {
	case DialectBlock:
		return "block"
	case DialectInline:
		return "inline"
	case DialectRegex:
		return "regex"
	}
	return "unknown"
}

// IDComment formats an identifier marker.
func IDComment(id int64) string {
	return fmt.Sprintf("<!--ID: %d-->", id)
}

// IDMarker returns the text to insert for a new identifier, in the shape and
// position expected by the dialect. atLineStart tells if the insertion point
// is at the beginning of a line in the original buffer.
func (d Dialect) IDMarker(id int64, atLineStart bool) string {
	switch d {
	case DialectBlock:
		// Own line, before the block end marker
		return IDComment(id) + "\n"
	case DialectInline:
		// Same line, before the inline end marker
		return " " + IDComment(id)
	default:
		// Own line, after the matched text
		if atLineStart {
			return IDComment(id) + "\n"
		}
		return "\n" + IDComment(id)
	}
}

// Match is one candidate note occurrence located by the span scanner.
// Sub-match offsets are captured once at match time and carried forward;
// nothing re-searches the matched text later.
type Match struct {
	Dialect  Dialect
	NoteType string

	// Span of the whole matched text inside the original buffer
	Span Span

	// Span of the existing identifier marker: exactly the substring that,
	// if removed, leaves no residue. Nil when the note has no identifier.
	IDSpan *Span

	// Where to insert a marker for a freshly assigned identifier
	InsertionPoint int

	// The parsed record. Nil when Err is set.
	Note *anki.Note

	// WriteMarker forces an inline marker for an identifier that is already
	// set on the note but absent from the text (a reconciliation decision).
	WriteMarker bool

	// Parse failure (ErrUnknownNoteType, ErrMissingCloze)
	Err error
}
