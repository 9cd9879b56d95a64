package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julien-sobczak/nt-anki/internal/markdown"
)

func mustReconcile(t *testing.T, content string, known map[int64]bool, opts *Options) *Reconciliation {
	t.Helper()
	file := markdown.Parse([]byte(content), "test.md")
	metadata, err := file.Snapshot()
	require.NoError(t, err)
	result, err := Scan(file, metadata, opts)
	require.NoError(t, err)
	return Reconcile(metadata, result, known, opts)
}

func TestReconcileBuckets(t *testing.T) {
	known := map[int64]bool{12: true}

	rec := mustReconcile(t, `START
Basic
Known::Answer
ID: 12
END

START
Basic
New::Answer
END
`, known, testOptions())

	require.Len(t, rec.Updates, 1)
	assert.Equal(t, int64(12), rec.Updates[0].Note.ID)
	require.Len(t, rec.Adds, 1)
	assert.Equal(t, "New", rec.Adds[0].Note.Fields["Front"])
	assert.Empty(t, rec.Reports)
	assert.Empty(t, rec.Edits)
}

func TestReconcileUnknownIdentifier(t *testing.T) {
	rec := mustReconcile(t, `START
Basic
Q::A
ID: 500
END
`, map[int64]bool{}, testOptions())

	assert.Empty(t, rec.Adds)
	assert.Empty(t, rec.Updates)
	require.Len(t, rec.Reports, 1)
	assert.ErrorIs(t, rec.Reports[0].Err, ErrUnknownIdentifier)
	assert.Equal(t, int64(500), rec.Reports[0].ID)
}

func TestReconcileFrontMatterMode(t *testing.T) {
	opts := testOptions()
	opts.FrontmatterID = true
	known := map[int64]bool{42: true, 99: true}

	t.Run("property names the only note", func(t *testing.T) {
		rec := mustReconcile(t, `---
nid: 42
---
STARTI [Basic] Q::A ENDI
`, known, opts)

		require.Len(t, rec.Updates, 1)
		assert.Equal(t, int64(42), rec.Updates[0].Note.ID)
		assert.Empty(t, rec.Edits)
		assert.Nil(t, rec.FrontMatterID)
	})

	t.Run("property wins over a stale inline marker", func(t *testing.T) {
		rec := mustReconcile(t, `---
nid: 42
---
STARTI [Basic] Q::A <!--ID: 99--> ENDI
`, known, opts)

		require.Len(t, rec.Updates, 1)
		assert.Equal(t, int64(42), rec.Updates[0].Note.ID)
		require.Len(t, rec.Edits, 1) // the stale marker is removed
		assert.Empty(t, rec.Edits[0].Text)
	})

	t.Run("inline marker migrates into the property", func(t *testing.T) {
		rec := mustReconcile(t, "STARTI [Basic] Q::A <!--ID: 99--> ENDI\n", known, opts)

		require.Len(t, rec.Updates, 1)
		assert.Equal(t, int64(99), rec.Updates[0].Note.ID)
		require.NotNil(t, rec.FrontMatterID)
		assert.Equal(t, int64(99), *rec.FrontMatterID)
		require.Len(t, rec.Edits, 1)
	})

	t.Run("unknown property never evicts a valid marker", func(t *testing.T) {
		rec := mustReconcile(t, `---
nid: 500
---
STARTI [Basic] Q::A <!--ID: 99--> ENDI
`, known, opts)

		require.Len(t, rec.Updates, 1)
		assert.Equal(t, int64(99), rec.Updates[0].Note.ID)
		assert.NotNil(t, rec.Updates[0].IDSpan)
		assert.Empty(t, rec.Edits)
		require.Len(t, rec.Reports, 1)
		assert.ErrorIs(t, rec.Reports[0].Err, ErrUnknownIdentifier)
		assert.Equal(t, int64(500), rec.Reports[0].ID)
	})

	t.Run("sibling notes push the property inline", func(t *testing.T) {
		rec := mustReconcile(t, `---
nid: 42
---
STARTI [Basic] One::A ENDI

STARTI [Basic] Two::B ENDI
`, known, opts)

		require.Len(t, rec.Updates, 1)
		match := rec.Updates[0]
		assert.Equal(t, int64(42), match.Note.ID)
		assert.Equal(t, "One", match.Note.Fields["Front"])
		assert.True(t, match.WriteMarker)
		assert.True(t, rec.RemoveFrontMatterID)
		assert.Len(t, rec.Adds, 1)
		assert.Nil(t, rec.FrontMatterID)
	})
}

func TestReconcileLeftoverFrontMatterID(t *testing.T) {
	known := map[int64]bool{42: true}

	t.Run("relocates to the note without identifier", func(t *testing.T) {
		rec := mustReconcile(t, `---
nid: 42
---
STARTI [Basic] Q::A ENDI
`, known, testOptions())

		require.Len(t, rec.Updates, 1)
		match := rec.Updates[0]
		assert.Equal(t, int64(42), match.Note.ID)
		assert.True(t, match.WriteMarker)
		assert.True(t, rec.RemoveFrontMatterID)
	})

	t.Run("identifier already inline", func(t *testing.T) {
		rec := mustReconcile(t, `---
nid: 42
---
STARTI [Basic] Q::A <!--ID: 42--> ENDI
`, known, testOptions())

		require.Len(t, rec.Updates, 1)
		assert.False(t, rec.Updates[0].WriteMarker)
		assert.True(t, rec.RemoveFrontMatterID)
		assert.Empty(t, rec.Reports)
	})

	t.Run("unknown leftover identifier is reported", func(t *testing.T) {
		rec := mustReconcile(t, `---
nid: 500
---
STARTI [Basic] Q::A ENDI
`, known, testOptions())

		require.Len(t, rec.Reports, 1)
		assert.ErrorIs(t, rec.Reports[0].Err, ErrUnknownIdentifier)
		assert.False(t, rec.RemoveFrontMatterID)
		assert.Len(t, rec.Adds, 1) // the note is still added
	})

	t.Run("ambiguous ownership is reported", func(t *testing.T) {
		rec := mustReconcile(t, `---
nid: 42
---
STARTI [Basic] One::A <!--ID: 7--> ENDI

STARTI [Basic] Two::B <!--ID: 8--> ENDI
`, map[int64]bool{42: true, 7: true, 8: true}, testOptions())

		require.Len(t, rec.Reports, 1)
		assert.ErrorIs(t, rec.Reports[0].Err, ErrAmbiguousIdentifier)
		assert.Equal(t, int64(42), rec.Reports[0].ID)
		assert.False(t, rec.RemoveFrontMatterID)
		assert.Len(t, rec.Updates, 2)
		assert.Empty(t, rec.Edits)
	})
}

func TestFrontMatterIDEdit(t *testing.T) {
	t.Run("no front matter", func(t *testing.T) {
		file := markdown.Parse([]byte("Body\n"), "test.md")
		edit := FrontMatterIDEdit(file, 42)
		assert.Equal(t, Edit{Start: 0, End: 0, Text: "---\nnid: 42\n---\n"}, edit)
	})

	t.Run("append to existing front matter", func(t *testing.T) {
		content := "---\ntags: [x]\n---\nBody\n"
		file := markdown.Parse([]byte(content), "test.md")
		edit := FrontMatterIDEdit(file, 42)
		assert.Equal(t, Edit{Start: 14, End: 14, Text: "nid: 42\n"}, edit)

		actual, err := Apply(file.Content, []Edit{edit})
		require.NoError(t, err)
		assert.Equal(t, "---\ntags: [x]\nnid: 42\n---\nBody\n", string(actual))
	})

	t.Run("replace existing property", func(t *testing.T) {
		content := "---\nnid: 12\ntags: [x]\n---\nBody\n"
		file := markdown.Parse([]byte(content), "test.md")
		edit := FrontMatterIDEdit(file, 42)

		actual, err := Apply(file.Content, []Edit{edit})
		require.NoError(t, err)
		assert.Equal(t, "---\nnid: 42\ntags: [x]\n---\nBody\n", string(actual))
	})
}

func TestRemoveFrontMatterIDEdit(t *testing.T) {
	t.Run("other properties keep the key", func(t *testing.T) {
		content := "---\nnid: 12\ntags: [x]\n---\nBody\n"
		file := markdown.Parse([]byte(content), "test.md")
		edit, ok := RemoveFrontMatterIDEdit(file)
		require.True(t, ok)

		actual, err := Apply(file.Content, []Edit{edit})
		require.NoError(t, err)
		assert.Equal(t, "---\nnid:\ntags: [x]\n---\nBody\n", string(actual))
	})

	t.Run("last property drops the line", func(t *testing.T) {
		content := "---\nnid: 12\n---\nBody\n"
		file := markdown.Parse([]byte(content), "test.md")
		edit, ok := RemoveFrontMatterIDEdit(file)
		require.True(t, ok)

		actual, err := Apply(file.Content, []Edit{edit})
		require.NoError(t, err)
		assert.Equal(t, "---\n---\nBody\n", string(actual))
	})

	t.Run("absent", func(t *testing.T) {
		file := markdown.Parse([]byte("---\ntags: [x]\n---\nBody\n"), "test.md")
		_, ok := RemoveFrontMatterIDEdit(file)
		assert.False(t, ok)
	})
}
