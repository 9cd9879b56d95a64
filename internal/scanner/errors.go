package scanner

import "errors"

// Per-match errors. They are reported and exclude the match from the sync
// plan but never abort the scan of the rest of the document.
var (
	// ErrUnknownNoteType is returned when matched text declares a note type
	// absent from the configured schemas.
	ErrUnknownNoteType = errors.New("unknown note type")

	// ErrMissingCloze is returned when a cloze note contains no cloze
	// deletion after formatting. The match is retracted so that a less
	// specific pattern may still claim the text.
	ErrMissingCloze = errors.New("no cloze deletion found")

	// ErrUnknownIdentifier is returned when an inline or front-matter
	// identifier is not known to Anki. The note is left untouched rather
	// than guessed into the add or update bucket.
	ErrUnknownIdentifier = errors.New("identifier not found in Anki")

	// ErrAmbiguousIdentifier is returned when a front-matter identifier can
	// no longer be attributed: every note in the document already carries an
	// identifier of its own. The property is left in place for the user to
	// resolve.
	ErrAmbiguousIdentifier = errors.New("identifier ownership is ambiguous")
)

// ErrOverlappingEdits signals a defect in an upstream stage: the edit engine
// received overlapping edits. The document write must be aborted entirely.
var ErrOverlappingEdits = errors.New("overlapping edits")

// Report describes a match excluded from the sync plan, for user visibility.
type Report struct {
	Err      error
	Span     Span
	NoteType string
	ID       int64
	Message  string
}
