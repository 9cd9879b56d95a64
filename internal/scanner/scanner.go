package scanner

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/exp/slices"

	"github.com/julien-sobczak/nt-anki/internal/markdown"
	"github.com/julien-sobczak/nt-anki/pkg/text"
)

var (
	// A trailing identifier line inside a block note, with or without the
	// HTML comment wrapping.
	regexIDLine = regexp.MustCompile(`^(?:<!--)?ID:[ \t]*(\d+)(?:-->)?[ \t]*$`)

	// A trailing tags line inside a block note.
	regexTagsLine = regexp.MustCompile(`^Tags:[ \t]*(.*?)[ \t]*$`)

	// The identifier marker at the end of an inline note content.
	regexInlineID = regexp.MustCompile(`[ \t]*(?:<!--)?ID:[ \t]*(\d+)(?:-->)?[ \t]*$`)

	// The tags suffix at the end of an inline note content.
	regexInlineTags = regexp.MustCompile(`[ \t]+Tags:[ \t]*([^\n]*?)[ \t]*$`)

	regexClozeMarker = regexp.MustCompile(`\{\{c\d+::`)

	// Regions never claimed by user-defined regex note types
	regexFencedCode  = regexp.MustCompile("(?ms)^```[^\n]*$(?:.*?)^```[ \t]*$")
	regexInlineCode  = regexp.MustCompile("`[^`\n]+`")
	regexDisplayMath = regexp.MustCompile(`\$\$(?s:.)*?\$\$`)
	regexInlineMath  = regexp.MustCompile(`\$[^$\n]+\$`)
)

// Result is the outcome of scanning a single document.
type Result struct {
	// Matches in document order, including the ones that failed to parse.
	Matches []*Match

	// Global tags applying to every note of the document
	FileTags []string

	// In-document deck directive, or "" when absent
	TargetDeck string
}

// Notes returns the successfully parsed matches.
func (r *Result) Notes() []*Match {
	var results []*Match
	for _, match := range r.Matches {
		if match.Err == nil {
			results = append(results, match)
		}
	}
	return results
}

// Failures returns the matches that failed to parse.
func (r *Result) Failures() []*Match {
	var results []*Match
	for _, match := range r.Matches {
		if match.Err != nil {
			results = append(results, match)
		}
	}
	return results
}

// scan carries the state of one document scan.
type scan struct {
	content  string
	file     *markdown.File
	metadata *markdown.Metadata
	opts     *Options

	fileTags       []string
	targetDeck     string
	directiveSpans []Span
}

// Scan locates every note occurrence of a document. Dialects claim spans in a
// fixed order: block notes, inline notes, directive lines, math and code
// regions, then user-defined regex note types. A span claimed by an earlier
// pass is never reconsidered by a later one.
//
// Scanning never mutates the document: all spans point into file.Content.
func Scan(file *markdown.File, metadata *markdown.Metadata, opts *Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	s := &scan{
		content:  string(file.Content),
		file:     file,
		metadata: metadata,
		opts:     opts,
	}
	s.collectDirectives()

	ignored := SpanSet{}
	if file.FrontMatterEnd > 0 {
		ignored = ignored.Add(Span{0, file.FrontMatterEnd})
	}

	var matches []*Match
	matches, ignored = s.scanBlocks(matches, ignored)
	matches, ignored = s.scanInlines(matches, ignored)
	ignored = s.claimDirectives(ignored)
	ignored = s.claimIgnoredRegions(ignored)
	matches, _, err := s.scanRegexNotes(matches, ignored)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Span.Start < matches[j].Span.Start
	})

	return &Result{
		Matches:    matches,
		FileTags:   s.fileTags,
		TargetDeck: s.targetDeck,
	}, nil
}

// collectDirectives reads the deck and tags directive values before any note
// is parsed, as every note of the document depends on them. The directive
// lines themselves are claimed later, at their place in the pass order.
func (s *scan) collectDirectives() {
	offset := 0
	for _, line := range strings.Split(s.content, "\n") {
		span := Span{offset, min(offset+len(line)+1, len(s.content))}
		trimmed := strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(trimmed, s.opts.Syntax.TargetDeckPrefix); ok {
			if s.targetDeck == "" {
				s.targetDeck = strings.TrimSpace(rest)
			}
			s.directiveSpans = append(s.directiveSpans, span)
		} else if rest, ok := strings.CutPrefix(trimmed, s.opts.Syntax.FileTagsPrefix); ok {
			s.fileTags = append(s.fileTags, splitTags(rest)...)
			s.directiveSpans = append(s.directiveSpans, span)
		}
		offset += len(line) + 1
	}

	// Front Matter tags are global tags too
	s.fileTags = append(s.fileTags, s.metadata.Tags()...)
}

func splitTags(value string) []string {
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

func (s *scan) blockRegex() *regexp.Regexp {
	return regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(s.opts.Syntax.BlockStart) +
		`[ \t]*\n((?s:.)*?)^` + regexp.QuoteMeta(s.opts.Syntax.BlockEnd) + `[ \t]*$`)
}

func (s *scan) inlineRegex() *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(s.opts.Syntax.InlineStart) +
		` \[([^\[\]\n]+)\] ([^\n]+?) ` + regexp.QuoteMeta(s.opts.Syntax.InlineEnd))
}

func (s *scan) scanBlocks(matches []*Match, ignored SpanSet) ([]*Match, SpanSet) {
	for _, loc := range s.blockRegex().FindAllStringSubmatchIndex(s.content, -1) {
		span := Span{loc[0], loc[1]}
		if ignored.Claimed(span) {
			continue
		}
		match := s.parseBlock(loc)
		matches = append(matches, match)
		if errors.Is(match.Err, ErrMissingCloze) {
			// The span stays free for a later dialect
			continue
		}
		ignored = ignored.Add(span)
	}
	return matches, ignored
}

func (s *scan) scanInlines(matches []*Match, ignored SpanSet) ([]*Match, SpanSet) {
	for _, loc := range s.inlineRegex().FindAllStringSubmatchIndex(s.content, -1) {
		span := Span{loc[0], loc[1]}
		if ignored.Claimed(span) {
			continue
		}
		match := s.parseInline(loc)
		matches = append(matches, match)
		if errors.Is(match.Err, ErrMissingCloze) {
			continue
		}
		ignored = ignored.Add(span)
	}
	return matches, ignored
}

func (s *scan) claimDirectives(ignored SpanSet) SpanSet {
	for _, span := range s.directiveSpans {
		if ignored.Claimed(span) {
			continue
		}
		ignored = ignored.Add(span)
	}
	return ignored
}

func (s *scan) claimIgnoredRegions(ignored SpanSet) SpanSet {
	for _, re := range []*regexp.Regexp{regexFencedCode, regexDisplayMath, regexInlineCode, regexInlineMath} {
		for _, loc := range re.FindAllStringIndex(s.content, -1) {
			span := Span{loc[0], loc[1]}
			if ignored.Claimed(span) {
				continue
			}
			ignored = ignored.Add(span)
		}
	}
	return ignored
}

func (s *scan) scanRegexNotes(matches []*Match, ignored SpanSet) ([]*Match, SpanSet, error) {
	types := make([]RegexNoteType, len(s.opts.RegexNoteTypes))
	copy(types, s.opts.RegexNoteTypes)

	if s.opts.GateRegexOnTags {
		kept := types[:0]
		for _, regexNote := range types {
			if regexNote.RequiredTag != "" && !s.metadata.HasTag(regexNote.RequiredTag) {
				continue
			}
			kept = append(kept, regexNote)
		}
		types = kept
		// Tag-gated note types claim before always-on ones
		slices.SortStableFunc(types, func(a, b RegexNoteType) int {
			return gatedRank(a) - gatedRank(b)
		})
	}

	for _, regexNote := range types {
		variants, err := buildRegexVariants(regexNote.Pattern)
		if err != nil {
			return nil, nil, fmt.Errorf("regex note type %q: %w", regexNote.Name, err)
		}
		for _, variant := range variants {
			for _, loc := range variant.re.FindAllStringSubmatchIndex(s.content, -1) {
				span := Span{loc[0], loc[1]}
				if ignored.Claimed(span) {
					continue
				}
				match := s.parseRegex(regexNote, variant, loc)
				matches = append(matches, match)
				if errors.Is(match.Err, ErrMissingCloze) {
					continue
				}
				ignored = ignored.Add(span)
			}
		}
	}
	return matches, ignored, nil
}

func gatedRank(regexNote RegexNoteType) int {
	if regexNote.RequiredTag != "" {
		return 0
	}
	return 1
}

// parseBlock parses the content of a block note:
//
//	START
//	<note type>
//	<field content...>
//	Tags: <optional>
//	ID: <optional>
//	END
func (s *scan) parseBlock(loc []int) *Match {
	span := Span{loc[0], loc[1]}
	bodyStart := loc[2]
	body := s.content[loc[2]:loc[3]]

	match := &Match{
		Dialect:        DialectBlock,
		Span:           span,
		InsertionPoint: loc[3], // start of the block end line
	}

	lines := strings.Split(body, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		// The body always ends with the newline preceding the end marker
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		match.Err = fmt.Errorf("%w: empty block", ErrUnknownNoteType)
		return match
	}
	offsets := lineOffsets(lines)

	match.NoteType = strings.TrimSpace(lines[0])
	contentLines := lines[1:]
	contentOffsets := offsets[1:]

	// Trailing identifier line
	var id int64
	for i := len(contentLines) - 1; i >= 0; i-- {
		if text.IsBlank(contentLines[i]) {
			continue
		}
		if sub := regexIDLine.FindStringSubmatch(contentLines[i]); sub != nil {
			id, _ = strconv.ParseInt(sub[1], 10, 64)
			start := bodyStart + contentOffsets[i]
			match.IDSpan = &Span{start, start + len(contentLines[i]) + 1}
			contentLines = append(contentLines[:i:i], contentLines[i+1:]...)
			contentOffsets = append(contentOffsets[:i:i], contentOffsets[i+1:]...)
		}
		break
	}

	// Tags line, just before the identifier line when both are present
	var noteTags []string
	for i := len(contentLines) - 1; i >= 0; i-- {
		if text.IsBlank(contentLines[i]) {
			continue
		}
		if sub := regexTagsLine.FindStringSubmatch(contentLines[i]); sub != nil {
			noteTags = strings.Fields(sub[1])
			contentLines = append(contentLines[:i:i], contentLines[i+1:]...)
		}
		break
	}

	note, err := s.newNoteFromContent(match.NoteType, strings.Join(contentLines, "\n"), noteTags, span)
	if err != nil {
		match.Err = err
		return match
	}
	note.ID = id
	match.Note = note
	return match
}

// parseInline parses a one-line note:
//
//	STARTI [<note type>] <field content> <!--ID: n--> ENDI
func (s *scan) parseInline(loc []int) *Match {
	span := Span{loc[0], loc[1]}
	contentStart := loc[4]
	content := s.content[loc[4]:loc[5]]

	match := &Match{
		Dialect:        DialectInline,
		NoteType:       s.content[loc[2]:loc[3]],
		Span:           span,
		InsertionPoint: loc[5], // before the inline end marker
	}

	var id int64
	if idx := regexInlineID.FindStringSubmatchIndex(content); idx != nil {
		id, _ = strconv.ParseInt(content[idx[2]:idx[3]], 10, 64)
		match.IDSpan = &Span{contentStart + idx[0], contentStart + idx[1]}
		content = content[:idx[0]]
	}

	var noteTags []string
	if idx := regexInlineTags.FindStringSubmatchIndex(content); idx != nil {
		noteTags = strings.Fields(content[idx[2]:idx[3]])
		content = content[:idx[0]]
	}

	note, err := s.newNoteFromContent(match.NoteType, content, noteTags, span)
	if err != nil {
		match.Err = err
		return match
	}
	note.ID = id
	match.Note = note
	return match
}

// regexVariant is one of the four derived forms of a user-defined pattern:
// with or without a tags suffix, with or without an identifier suffix.
type regexVariant struct {
	re      *regexp.Regexp
	hasTags bool
	hasID   bool
	base    int // capture groups of the user pattern
}

// buildRegexVariants derives the four variants of a pattern, most specific
// first, so that an occurrence carrying both suffixes is never claimed by a
// shorter variant that would leave the suffixes dangling.
func buildRegexVariants(pattern string) ([]regexVariant, error) {
	base, err := regexp.Compile("(?m)" + pattern)
	if err != nil {
		return nil, err
	}

	const tagsSuffix = `(\n+Tags:[ \t]*([^\n]*))`
	const idSuffix = `(\n+(?:<!--)?ID:[ \t]*(\d+)(?:-->)?)`

	forms := []struct{ tags, id bool }{
		{true, true},
		{true, false},
		{false, true},
		{false, false},
	}

	var variants []regexVariant
	for _, form := range forms {
		expr := "(?m)" + pattern
		if form.tags {
			expr += tagsSuffix
		}
		if form.id {
			expr += idSuffix
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, err
		}
		variants = append(variants, regexVariant{
			re:      re,
			hasTags: form.tags,
			hasID:   form.id,
			base:    base.NumSubexp(),
		})
	}
	return variants, nil
}

// parseRegex parses an occurrence of a user-defined note type. Capture groups
// map positionally onto the schema fields. All offsets come from the match
// location: the matched text is never searched again.
func (s *scan) parseRegex(regexNote RegexNoteType, variant regexVariant, loc []int) *Match {
	span := Span{loc[0], loc[1]}
	match := &Match{
		Dialect:        DialectRegex,
		NoteType:       regexNote.Name,
		Span:           span,
		InsertionPoint: loc[1], // after the matched text
	}

	var values []string
	for g := 1; g <= variant.base; g++ {
		if loc[2*g] == -1 {
			values = append(values, "")
			continue
		}
		values = append(values, s.content[loc[2*g]:loc[2*g+1]])
	}

	group := variant.base
	var noteTags []string
	if variant.hasTags {
		group += 2 // whole suffix, then the tags value
		if loc[2*group] != -1 {
			noteTags = strings.Fields(s.content[loc[2*group]:loc[2*group+1]])
		}
	}

	var id int64
	if variant.hasID {
		group++ // whole suffix, including the leading newline
		match.IDSpan = &Span{loc[2*group], loc[2*group+1]}
		group++ // the digits
		id, _ = strconv.ParseInt(s.content[loc[2*group]:loc[2*group+1]], 10, 64)
	}

	// The schema exists: Validate checked it before scanning
	noteType, _ := s.opts.NoteType(regexNote.Name)
	note, err := s.newNote(noteType, values, noteTags, span)
	if err != nil {
		match.Err = err
		return match
	}
	note.ID = id
	match.Note = note
	return match
}

func lineOffsets(lines []string) []int {
	offsets := make([]int, len(lines))
	offset := 0
	for i, line := range lines {
		offsets[i] = offset
		offset += len(line) + 1
	}
	return offsets
}
