package scanner

import (
	"regexp"
	"strconv"
)

// Deletion is a request, written in the document, to delete a note remotely:
//
//	DELETE
//	<!--ID: n-->
//
// Committing the deletion removes both lines from the document.
type Deletion struct {
	ID   int64
	Span Span
}

// ScanDeletions locates every deletion request of a document.
// A delete marker without an identifier line is inert: there is nothing to
// delete remotely, so the lines are left untouched.
func ScanDeletions(content string, syntax Syntax) []Deletion {
	re := regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(syntax.DeleteMarker) +
		`[ \t]*\n(?:<!--)?ID:[ \t]*(\d+)(?:-->)?[ \t]*$`)

	var deletions []Deletion
	for _, loc := range re.FindAllStringSubmatchIndex(content, -1) {
		id, _ := strconv.ParseInt(content[loc[2]:loc[3]], 10, 64)
		end := loc[1]
		if end < len(content) && content[end] == '\n' {
			end++ // remove the trailing newline along with the lines
		}
		deletions = append(deletions, Deletion{
			ID:   id,
			Span: Span{loc[0], end},
		})
	}
	return deletions
}
