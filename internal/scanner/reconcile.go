package scanner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/julien-sobczak/nt-anki/internal/markdown"
)

// Reconciliation classifies the matches of a document against the identifiers
// known remotely and decides where each identifier must live: inline marker or
// Front Matter property.
type Reconciliation struct {
	// Adds are notes without an identifier
	Adds []*Match

	// Updates are notes whose identifier is known remotely
	Updates []*Match

	// Reports are the matches excluded from the plan
	Reports []*Report

	// Edits are marker cleanups decided during reconciliation,
	// positioned in the original buffer
	Edits []Edit

	// FrontMatterID, when non-nil, must be written to the Front Matter
	FrontMatterID *int64

	// RemoveFrontMatterID drops the identifier property from the Front Matter
	RemoveFrontMatterID bool
}

// Reconcile arbitrates between the two identifier homes.
//
// The Front Matter property only ever names a single note, so the
// Front-Matter-identifier mode applies to documents containing exactly one
// note. On a conflict between the property and an inline marker, the property
// wins and the stale marker is removed.
func Reconcile(metadata *markdown.Metadata, result *Result, known map[int64]bool, opts *Options) *Reconciliation {
	rec := &Reconciliation{}

	for _, match := range result.Failures() {
		rec.Reports = append(rec.Reports, reportFor(match, match.Err))
	}

	notes := result.Notes()
	fmID, fmPresent := metadata.NoteID()

	if opts.FrontmatterID && len(notes) == 1 {
		match := notes[0]
		switch {
		case match.Note.ID == 0 && fmPresent:
			// The Front Matter already names this note
			match.Note.ID = fmID

		case match.Note.ID != 0 && fmPresent && fmID != match.Note.ID:
			// The property wins, but only a known identifier may evict a
			// valid inline marker
			if known[fmID] {
				rec.removeMarker(match)
				match.Note.ID = fmID
			} else {
				rec.Reports = append(rec.Reports, &Report{
					Err:     ErrUnknownIdentifier,
					ID:      fmID,
					Message: fmt.Sprintf("front matter identifier %d not found in Anki", fmID),
				})
			}

		case match.Note.ID != 0 && fmPresent:
			// Both agree; the inline marker is redundant
			rec.removeMarker(match)

		case match.Note.ID != 0 && known[match.Note.ID]:
			// Migrate the inline marker into the Front Matter
			rec.removeMarker(match)
			id := match.Note.ID
			rec.FrontMatterID = &id
		}
	}

	// The property only ever names a single note: once the document holds
	// more than one (or none), the identifier must move inline.
	if fmPresent && (!opts.FrontmatterID || len(notes) != 1) {
		rec.relocateFrontMatterID(notes, fmID, known)
	}

	for _, match := range notes {
		switch {
		case match.Note.ID == 0:
			rec.Adds = append(rec.Adds, match)
		case known[match.Note.ID]:
			rec.Updates = append(rec.Updates, match)
		default:
			rec.Reports = append(rec.Reports, reportFor(match,
				fmt.Errorf("%w: %d", ErrUnknownIdentifier, match.Note.ID)))
		}
	}

	return rec
}

// relocateFrontMatterID handles a Front Matter identifier the property can no
// longer name: the mode was turned off, or sibling notes joined the document.
// The identifier moves inline to the first note still lacking one; when every
// note already carries an identifier of its own, the attribution is ambiguous
// and the conflict is reported rather than guessed.
func (rec *Reconciliation) relocateFrontMatterID(notes []*Match, fmID int64, known map[int64]bool) {
	for _, match := range notes {
		if match.Note.ID == fmID {
			// The identifier already lives inline
			rec.RemoveFrontMatterID = true
			return
		}
	}

	if !known[fmID] {
		rec.Reports = append(rec.Reports, &Report{
			Err:     ErrUnknownIdentifier,
			ID:      fmID,
			Message: fmt.Sprintf("front matter identifier %d not found in Anki", fmID),
		})
		return
	}

	for _, match := range notes {
		if match.Note.ID != 0 {
			continue
		}
		match.Note.ID = fmID
		match.WriteMarker = true
		rec.RemoveFrontMatterID = true
		return
	}

	rec.Reports = append(rec.Reports, &Report{
		Err:     ErrAmbiguousIdentifier,
		ID:      fmID,
		Message: fmt.Sprintf("front matter identifier %d cannot be attributed: every note already carries its own identifier", fmID),
	})
}

func (rec *Reconciliation) removeMarker(match *Match) {
	if match.IDSpan == nil {
		return
	}
	rec.Edits = append(rec.Edits, Edit{Start: match.IDSpan.Start, End: match.IDSpan.End})
	match.IDSpan = nil
}

func reportFor(match *Match, err error) *Report {
	report := &Report{
		Err:      err,
		Span:     match.Span,
		NoteType: match.NoteType,
		Message:  err.Error(),
	}
	if match.Note != nil {
		report.ID = match.Note.ID
	}
	return report
}

var regexFrontMatterID = regexp.MustCompile(`(?m)^` + markdown.FrontMatterIDKey + `:[ \t]*[^\n]*\n?`)

// FrontMatterIDEdit builds the edit writing an identifier into the Front
// Matter, creating the Front Matter block when the document has none.
func FrontMatterIDEdit(file *markdown.File, id int64) Edit {
	property := fmt.Sprintf("%s: %d\n", markdown.FrontMatterIDKey, id)

	if file.FrontMatterEnd == 0 {
		return Edit{Start: 0, End: 0, Text: "---\n" + property + "---\n"}
	}

	valueStart := file.FrontMatterStart + len("---\n")
	if loc := regexFrontMatterID.FindStringIndex(string(file.Content[valueStart:file.FrontMatterClose])); loc != nil {
		return Edit{Start: valueStart + loc[0], End: valueStart + loc[1], Text: property}
	}
	return Edit{Start: file.FrontMatterClose, End: file.FrontMatterClose, Text: property}
}

// RemoveFrontMatterIDEdit builds the edit dropping the identifier property.
// The line disappears only when the identifier is the last property left;
// otherwise the value is cleared and the key stays, so the remaining
// properties keep their layout. The edit is a no-op when the property is
// absent.
func RemoveFrontMatterIDEdit(file *markdown.File) (Edit, bool) {
	if file.FrontMatterEnd == 0 {
		return Edit{}, false
	}
	valueStart := file.FrontMatterStart + len("---\n")
	content := string(file.Content[valueStart:file.FrontMatterClose])
	loc := regexFrontMatterID.FindStringIndex(content)
	if loc == nil {
		return Edit{}, false
	}
	if strings.TrimSpace(content[:loc[0]]+content[loc[1]:]) == "" {
		return Edit{Start: valueStart + loc[0], End: valueStart + loc[1]}, true
	}
	return Edit{Start: valueStart + loc[0], End: valueStart + loc[1], Text: markdown.FrontMatterIDKey + ":\n"}, true
}
