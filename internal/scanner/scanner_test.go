package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julien-sobczak/nt-anki/internal/format"
	"github.com/julien-sobczak/nt-anki/internal/markdown"
)

func testOptions() *Options {
	return &Options{
		NoteTypes: map[string]NoteType{
			"Basic": {Name: "Basic", Fields: []string{"Front", "Back"}},
			"Cloze": {Name: "Cloze", Fields: []string{"Text", "Back Extra"}, Cloze: true},
		},
		Syntax:      DefaultSyntax(),
		DefaultDeck: "Default",
	}
}

func mustScan(t *testing.T, content string, opts *Options) *Result {
	t.Helper()
	file := markdown.Parse([]byte(content), "test.md")
	metadata, err := file.Snapshot()
	require.NoError(t, err)
	result, err := Scan(file, metadata, opts)
	require.NoError(t, err)
	return result
}

func TestScanBlockNote(t *testing.T) {
	result := mustScan(t, `START
Basic
Q::A
ID: 12
END
`, testOptions())

	require.Len(t, result.Notes(), 1)
	match := result.Notes()[0]
	assert.Equal(t, DialectBlock, match.Dialect)
	assert.Equal(t, "Basic", match.NoteType)
	assert.Equal(t, Span{0, 27}, match.Span)
	require.NotNil(t, match.IDSpan)
	assert.Equal(t, Span{17, 24}, *match.IDSpan)
	assert.Equal(t, int64(12), match.Note.ID)
	assert.Equal(t, "Q", match.Note.Fields["Front"])
	assert.Equal(t, "A", match.Note.Fields["Back"])
	assert.Equal(t, "Default", match.Note.Deck)
}

func TestScanBlockNoteWithTags(t *testing.T) {
	result := mustScan(t, `START
Basic
Q::A
Tags: chemistry school
ID: 12
END
`, testOptions())

	require.Len(t, result.Notes(), 1)
	match := result.Notes()[0]
	assert.Equal(t, []string{"chemistry", "school"}, match.Note.Tags)
	assert.Equal(t, int64(12), match.Note.ID)
}

func TestScanInlineNote(t *testing.T) {
	t.Run("without identifier", func(t *testing.T) {
		result := mustScan(t, "STARTI [Basic] Q::A ENDI\n", testOptions())
		require.Len(t, result.Notes(), 1)
		match := result.Notes()[0]
		assert.Equal(t, DialectInline, match.Dialect)
		assert.Equal(t, "Basic", match.NoteType)
		assert.Nil(t, match.IDSpan)
		assert.Equal(t, 19, match.InsertionPoint)
		assert.Equal(t, "Q", match.Note.Fields["Front"])
		assert.Equal(t, "A", match.Note.Fields["Back"])
	})

	t.Run("with identifier", func(t *testing.T) {
		result := mustScan(t, "STARTI [Basic] Q::A <!--ID: 99--> ENDI\n", testOptions())
		require.Len(t, result.Notes(), 1)
		match := result.Notes()[0]
		assert.Equal(t, int64(99), match.Note.ID)
		require.NotNil(t, match.IDSpan)
		assert.Equal(t, Span{19, 33}, *match.IDSpan)
		assert.Equal(t, "Q", match.Note.Fields["Front"])
	})

	t.Run("with tags", func(t *testing.T) {
		result := mustScan(t, "STARTI [Basic] Q::A Tags: chemistry ENDI\n", testOptions())
		require.Len(t, result.Notes(), 1)
		match := result.Notes()[0]
		assert.Equal(t, []string{"chemistry"}, match.Note.Tags)
		assert.Equal(t, "Q", match.Note.Fields["Front"])
		assert.Equal(t, "A", match.Note.Fields["Back"])
	})
}

func TestScanUnknownNoteType(t *testing.T) {
	result := mustScan(t, `START
Nope
Q::A
END
`, testOptions())

	assert.Empty(t, result.Notes())
	require.Len(t, result.Failures(), 1)
	assert.ErrorIs(t, result.Failures()[0].Err, ErrUnknownNoteType)
}

func TestScanClozeNote(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		result := mustScan(t, `START
Cloze
This is {{c1::it}}
END
`, testOptions())
		require.Len(t, result.Notes(), 1)
		assert.Equal(t, "This is {{c1::it}}", result.Notes()[0].Note.Fields["Text"])
	})

	t.Run("curly syntax expanded before the check", func(t *testing.T) {
		opts := testOptions()
		opts.Format = format.Options{CurlyCloze: true}
		result := mustScan(t, `START
Cloze
This is {1:it}
END
`, opts)
		require.Len(t, result.Notes(), 1)
		assert.Equal(t, "This is {{c1::it}}", result.Notes()[0].Note.Fields["Text"])
	})

	t.Run("missing cloze deletion", func(t *testing.T) {
		result := mustScan(t, `START
Cloze
Nothing to hide
END
`, testOptions())
		assert.Empty(t, result.Notes())
		require.Len(t, result.Failures(), 1)
		assert.ErrorIs(t, result.Failures()[0].Err, ErrMissingCloze)
	})
}

func TestScanClozeRetraction(t *testing.T) {
	// The failed cloze block does not claim its span:
	// the regex note type inside it still matches.
	opts := testOptions()
	opts.RegexNoteTypes = []RegexNoteType{
		{Name: "Basic", Pattern: `Q: ([^\n]+)\nA: ([^\n]+)`},
	}

	result := mustScan(t, `START
Cloze
Q: What
A: That
END
`, opts)

	require.Len(t, result.Failures(), 1)
	assert.ErrorIs(t, result.Failures()[0].Err, ErrMissingCloze)

	require.Len(t, result.Notes(), 1)
	match := result.Notes()[0]
	assert.Equal(t, DialectRegex, match.Dialect)
	assert.Equal(t, "What", match.Note.Fields["Front"])
	assert.Equal(t, "That", match.Note.Fields["Back"])
}

func TestScanRegexNoteType(t *testing.T) {
	opts := testOptions()
	opts.RegexNoteTypes = []RegexNoteType{
		{Name: "Basic", Pattern: `Q: ([^\n]+)\nA: ([^\n]+)`},
	}

	t.Run("base form", func(t *testing.T) {
		result := mustScan(t, "Q: What\nA: That\n", opts)
		require.Len(t, result.Notes(), 1)
		match := result.Notes()[0]
		assert.Equal(t, DialectRegex, match.Dialect)
		assert.Equal(t, Span{0, 15}, match.Span)
		assert.Nil(t, match.IDSpan)
		assert.Equal(t, 15, match.InsertionPoint)
		assert.Equal(t, "What", match.Note.Fields["Front"])
	})

	t.Run("identifier suffix", func(t *testing.T) {
		result := mustScan(t, "Q: What\nA: That\n<!--ID: 7-->\n", opts)
		require.Len(t, result.Notes(), 1)
		match := result.Notes()[0]
		assert.Equal(t, int64(7), match.Note.ID)
		require.NotNil(t, match.IDSpan)
		assert.Equal(t, Span{15, 28}, *match.IDSpan)
	})

	t.Run("tags and identifier suffixes", func(t *testing.T) {
		result := mustScan(t, "Q: What\nA: That\nTags: chemistry\n<!--ID: 7-->\n", opts)
		require.Len(t, result.Notes(), 1)
		match := result.Notes()[0]
		assert.Equal(t, []string{"chemistry"}, match.Note.Tags)
		assert.Equal(t, int64(7), match.Note.ID)
	})

	t.Run("code blocks are never claimed", func(t *testing.T) {
		result := mustScan(t, "```\nQ: What\nA: That\n```\n", opts)
		assert.Empty(t, result.Matches)
	})

	t.Run("block notes claim first", func(t *testing.T) {
		result := mustScan(t, `START
Basic
Q: What
A: That
END
`, opts)
		require.Len(t, result.Notes(), 1)
		assert.Equal(t, DialectBlock, result.Notes()[0].Dialect)
	})
}

func TestScanRegexNoteTypeGatedOnTags(t *testing.T) {
	opts := testOptions()
	opts.GateRegexOnTags = true
	opts.RegexNoteTypes = []RegexNoteType{
		{Name: "Basic", Pattern: `Q: ([^\n]+)\nA: ([^\n]+)`, RequiredTag: "flashcards"},
	}

	t.Run("document without the tag", func(t *testing.T) {
		result := mustScan(t, "Q: What\nA: That\n", opts)
		assert.Empty(t, result.Matches)
	})

	t.Run("document with the tag", func(t *testing.T) {
		result := mustScan(t, "---\ntags: [flashcards]\n---\nQ: What\nA: That\n", opts)
		require.Len(t, result.Notes(), 1)
	})
}

func TestScanDirectives(t *testing.T) {
	result := mustScan(t, `TARGET DECK: Chemistry
FILE TAGS: school, revision

STARTI [Basic] Q::A ENDI
`, testOptions())

	assert.Equal(t, "Chemistry", result.TargetDeck)
	assert.Equal(t, []string{"school", "revision"}, result.FileTags)

	require.Len(t, result.Notes(), 1)
	note := result.Notes()[0].Note
	assert.Equal(t, "Chemistry", note.Deck)
	assert.Equal(t, []string{"school", "revision"}, note.Tags)
}

func TestScanFrontMatter(t *testing.T) {
	result := mustScan(t, `---
tags: [biology]
deck: Science
---
STARTI [Basic] Q::A ENDI
`, testOptions())

	require.Len(t, result.Notes(), 1)
	note := result.Notes()[0].Note
	assert.Equal(t, "Science", note.Deck)
	assert.Equal(t, []string{"biology"}, note.Tags)
}

func TestScanTagOrder(t *testing.T) {
	// Note-local tags come first, global tags are appended
	result := mustScan(t, `FILE TAGS: global

START
Basic
Q::A
Tags: local
END
`, testOptions())

	require.Len(t, result.Notes(), 1)
	assert.Equal(t, []string{"local", "global"}, result.Notes()[0].Note.Tags)
}

func TestScanContext(t *testing.T) {
	opts := testOptions()
	opts.AddContext = true

	result := mustScan(t, `# Biology

## Cells

STARTI [Basic] Q::A ENDI
`, opts)

	require.Len(t, result.Notes(), 1)
	assert.Equal(t, "Q\n\ntest > Biology > Cells", result.Notes()[0].Note.Fields["Front"])
}

func TestScanDocumentOrder(t *testing.T) {
	opts := testOptions()
	opts.RegexNoteTypes = []RegexNoteType{
		{Name: "Basic", Pattern: `Q: ([^\n]+)\nA: ([^\n]+)`},
	}

	result := mustScan(t, `Q: First
A: Answer

STARTI [Basic] Second::Answer ENDI

START
Basic
Third::Answer
END
`, opts)

	require.Len(t, result.Notes(), 3)
	assert.Equal(t, "First", result.Notes()[0].Note.Fields["Front"])
	assert.Equal(t, "Second", result.Notes()[1].Note.Fields["Front"])
	assert.Equal(t, "Third", result.Notes()[2].Note.Fields["Front"])
}

func TestScanClaimedSpansNeverOverlap(t *testing.T) {
	// The block pattern claims its body before the regex pass runs, so the
	// regex type must not re-match the Q/A lines inside the block.
	opts := testOptions()
	opts.RegexNoteTypes = []RegexNoteType{
		{Name: "Basic", Pattern: `Q: ([^\n]+)\nA: ([^\n]+)`},
	}

	result := mustScan(t, `START
Basic
Q: One
A: Answer
END

STARTI [Basic] Two::B ENDI

Q: Three
A: Answer
`, opts)

	notes := result.Notes()
	require.Len(t, notes, 3)
	for i := 0; i < len(notes); i++ {
		for j := i + 1; j < len(notes); j++ {
			assert.LessOrEqual(t, notes[i].Span.OverlapLen(notes[j].Span), OverlapTolerance,
				"notes %d and %d overlap", i, j)
		}
	}
}
