package scanner

import (
	"fmt"
	"regexp"

	"github.com/julien-sobczak/nt-anki/internal/format"
)

// NoteType is the schema of one Anki note type: its ordered field list.
type NoteType struct {
	Name   string
	Fields []string
	Cloze  bool
}

// RegexNoteType is a user-defined dialect: a regex whose capture groups map
// positionally onto the fields of the note type of the same name.
type RegexNoteType struct {
	Name    string
	Pattern string

	// RequiredTag restricts the dialect to documents carrying this tag.
	// Empty means always-on. Only honored when Options.GateRegexOnTags is set.
	RequiredTag string
}

// Syntax holds the textual markers of the built-in dialects.
type Syntax struct {
	BlockStart       string
	BlockEnd         string
	InlineStart      string
	InlineEnd        string
	DeleteMarker     string
	TargetDeckPrefix string
	FileTagsPrefix   string
}

func DefaultSyntax() Syntax {
	return Syntax{
		BlockStart:       "START",
		BlockEnd:         "END",
		InlineStart:      "STARTI",
		InlineEnd:        "ENDI",
		DeleteMarker:     "DELETE",
		TargetDeckPrefix: "TARGET DECK:",
		FileTagsPrefix:   "FILE TAGS:",
	}
}

// Options configures a scan. A scan is a pure function of
// (document, metadata, options).
type Options struct {
	NoteTypes      map[string]NoteType
	RegexNoteTypes []RegexNoteType
	Syntax         Syntax

	// FrontmatterID stores the identifier of single-note documents in the
	// Front Matter instead of an inline marker.
	FrontmatterID bool

	// GateRegexOnTags enables the RequiredTag restriction and orders
	// tag-gated regex note types before always-on ones.
	GateRegexOnTags bool

	// AddContext appends the heading path to the first field.
	AddContext bool

	// AddAliases appends the file aliases to the first field.
	AddAliases bool

	DefaultDeck string

	Format format.Options
}

// NoteType returns a schema by name.
func (o *Options) NoteType(name string) (NoteType, bool) {
	noteType, ok := o.NoteTypes[name]
	return noteType, ok
}

// Validate compiles every custom regex pattern and checks that each regex
// note type references a declared schema.
func (o *Options) Validate() error {
	for _, regexNote := range o.RegexNoteTypes {
		if _, ok := o.NoteTypes[regexNote.Name]; !ok {
			return fmt.Errorf("regex note type %q has no declared schema", regexNote.Name)
		}
		if _, err := regexp.Compile("(?m)" + regexNote.Pattern); err != nil {
			return fmt.Errorf("regex note type %q: %w", regexNote.Name, err)
		}
	}
	return nil
}
