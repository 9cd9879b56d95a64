package scanner

import (
	"errors"
	"fmt"

	"github.com/julien-sobczak/nt-anki/internal/markdown"
)

// SyncPlan is everything a single document asks of a sync: notes to add,
// notes to update, notes to delete, and the rewrite of the document itself.
//
// The plan is built entirely against the original buffer. The remote calls
// happen first; the buffer is only rewritten once the freshly assigned
// identifiers are known (see Finalize).
type SyncPlan struct {
	Adds    []*Match
	Updates []*Match
	Deletes []Deletion
	Reports []*Report

	file       *markdown.File
	opts       *Options
	baseEdits  []Edit
	singleNote bool
}

// BuildPlan assembles the plan of a scanned and reconciled document.
func BuildPlan(file *markdown.File, result *Result, deletions []Deletion, rec *Reconciliation, opts *Options) *SyncPlan {
	plan := &SyncPlan{
		Adds:       rec.Adds,
		Updates:    rec.Updates,
		Deletes:    deletions,
		Reports:    rec.Reports,
		file:       file,
		opts:       opts,
		singleNote: len(result.Notes()) == 1,
	}

	plan.baseEdits = append(plan.baseEdits, rec.Edits...)

	for _, deletion := range deletions {
		plan.baseEdits = append(plan.baseEdits, Edit{Start: deletion.Span.Start, End: deletion.Span.End})
	}

	if rec.FrontMatterID != nil {
		plan.baseEdits = append(plan.baseEdits, FrontMatterIDEdit(file, *rec.FrontMatterID))
	}
	if rec.RemoveFrontMatterID {
		if edit, ok := RemoveFrontMatterIDEdit(file); ok {
			plan.baseEdits = append(plan.baseEdits, edit)
		}
	}

	for _, match := range rec.Updates {
		if match.WriteMarker {
			plan.baseEdits = append(plan.baseEdits, plan.markerEdit(match, match.Note.ID))
		}
	}

	return plan
}

// Dirty returns if committing the plan would rewrite the document.
func (p *SyncPlan) Dirty() bool {
	return len(p.baseEdits) > 0 || len(p.Adds) > 0
}

// HasRemoteWork returns if committing the plan would call Anki.
func (p *SyncPlan) HasRemoteWork() bool {
	return len(p.Adds) > 0 || len(p.Updates) > 0 || len(p.Deletes) > 0
}

// Finalize produces the rewritten buffer once the remote side assigned an
// identifier to every new note. assignedIDs aligns with Adds; a zero entry
// means the note was rejected (usually a duplicate) and its marker is
// skipped so the next sync retries it.
//
// All edits are applied in one pass against original positions; runs of
// blank lines around the touched regions are squashed.
func (p *SyncPlan) Finalize(assignedIDs []int64) ([]byte, error) {
	if len(assignedIDs) != len(p.Adds) {
		return nil, fmt.Errorf("got %d identifiers for %d new notes", len(assignedIDs), len(p.Adds))
	}

	edits := make([]Edit, 0, len(p.baseEdits)+len(p.Adds))
	edits = append(edits, p.baseEdits...)

	for i, match := range p.Adds {
		id := assignedIDs[i]
		if id == 0 {
			p.Reports = append(p.Reports, reportFor(match, errors.New("note rejected by Anki")))
			continue
		}
		match.Note.ID = id
		edits = append(edits, p.markerEdit(match, id))
	}

	buffer, offsets, err := apply(p.file.Content, edits)
	if err != nil {
		return nil, err
	}
	return collapseBlankLines(buffer, offsets), nil
}

// markerEdit builds the edit recording an identifier in the document:
// the Front Matter property for a single-note document in Front-Matter mode,
// an inline marker in the dialect's position otherwise.
func (p *SyncPlan) markerEdit(match *Match, id int64) Edit {
	if p.opts.FrontmatterID && p.singleNote {
		return FrontMatterIDEdit(p.file, id)
	}
	atLineStart := match.InsertionPoint == 0 || p.file.Content[match.InsertionPoint-1] == '\n'
	return Edit{
		Start: match.InsertionPoint,
		End:   match.InsertionPoint,
		Text:  match.Dialect.IDMarker(id, atLineStart),
	}
}
