package vault

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julien-sobczak/nt-anki/internal/core"
	"github.com/julien-sobczak/nt-anki/internal/testutil"
)

// fakeAnki is a minimal in-memory AnkiConnect.
type fakeAnki struct {
	mu      sync.Mutex
	models  map[string][]string
	known   []int64
	nextID  int64
	updated []int64
	deleted []int64
}

func newFakeAnki() *fakeAnki {
	return &fakeAnki{
		models: map[string][]string{
			"Basic": {"Front", "Back"},
			"Cloze": {"Text", "Back Extra"},
		},
		nextID: 1000,
	}
}

func (f *fakeAnki) handler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var req struct {
		Action string          `json:"action"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	reply := func(result any) {
		json.NewEncoder(w).Encode(map[string]any{"result": result, "error": nil})
	}

	switch req.Action {
	case "version":
		reply(6)
	case "findNotes":
		reply(f.known)
	case "modelNames":
		var names []string
		for name := range f.models {
			names = append(names, name)
		}
		reply(names)
	case "modelFieldNames":
		var params struct {
			ModelName string `json:"modelName"`
		}
		json.Unmarshal(req.Params, &params)
		reply(f.models[params.ModelName])
	case "addNotes":
		var params struct {
			Notes []json.RawMessage `json:"notes"`
		}
		json.Unmarshal(req.Params, &params)
		var ids []int64
		for range params.Notes {
			f.nextID++
			f.known = append(f.known, f.nextID)
			ids = append(ids, f.nextID)
		}
		reply(ids)
	case "updateNote":
		var params struct {
			Note struct {
				ID int64 `json:"id"`
			} `json:"note"`
		}
		json.Unmarshal(req.Params, &params)
		f.updated = append(f.updated, params.Note.ID)
		reply(nil)
	case "deleteNotes":
		var params struct {
			Notes []int64 `json:"notes"`
		}
		json.Unmarshal(req.Params, &params)
		f.deleted = append(f.deleted, params.Notes...)
		reply(nil)
	default:
		json.NewEncoder(w).Encode(map[string]any{"result": nil, "error": "unsupported action: " + req.Action})
	}
}

func setupVault(t *testing.T, endpoint string, files map[string]string) (*Vault, string) {
	t.Helper()
	root := testutil.SetUpVault(t, files)
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".ntanki"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".ntanki", "config"), []byte(`
[core]
default_deck = "Default"

[anki]
endpoint = "`+endpoint+`"
`), 0644))

	config, err := core.ReadConfigFromDirectory(root)
	require.NoError(t, err)
	require.NotNil(t, config)
	return NewVault(config), root
}

func TestWalk(t *testing.T) {
	v, _ := setupVault(t, "http://ignored", map[string]string{
		"biology/cells.md":   "Some notes\n",
		"inbox.md":           "Some notes\n",
		"README.md":          "Ignored by default\n",
		"templates/daily.md": "Ignored by default\n",
		"picture.png":        "not markdown",
	})

	paths, err := v.walk()
	require.NoError(t, err)
	assert.Equal(t, []string{"biology/cells.md", "inbox.md"}, paths)
}

func TestSync(t *testing.T) {
	fake := newFakeAnki()
	server := httptest.NewServer(http.HandlerFunc(fake.handler))
	defer server.Close()

	v, root := setupVault(t, server.URL, map[string]string{
		"biology.md": `START
Basic
Q::A
END
`,
	})

	stats, err := v.Sync(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ScannedFiles)
	assert.Equal(t, 1, stats.AddedNotes)
	assert.Equal(t, 1, stats.RewrittenFiles)
	assert.Empty(t, stats.Reports)

	content, err := os.ReadFile(filepath.Join(root, "biology.md"))
	require.NoError(t, err)
	assert.Equal(t, `START
Basic
Q::A
<!--ID: 1001-->
END
`, string(content))

	t.Run("second sync skips the unchanged file", func(t *testing.T) {
		stats, err := v.Sync(context.Background(), false)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.SkippedFiles)
		assert.Equal(t, 0, stats.ScannedFiles)
	})

	t.Run("forced sync updates the known note", func(t *testing.T) {
		stats, err := v.Sync(context.Background(), true)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.UpdatedNotes)
		assert.Equal(t, 0, stats.AddedNotes)
		assert.Equal(t, 0, stats.RewrittenFiles)
		assert.Equal(t, []int64{1001}, fake.updated)
	})
}

func TestSyncDeletion(t *testing.T) {
	fake := newFakeAnki()
	fake.known = []int64{31}
	server := httptest.NewServer(http.HandlerFunc(fake.handler))
	defer server.Close()

	v, root := setupVault(t, server.URL, map[string]string{
		"notes.md": `Intro

DELETE
<!--ID: 31-->

Outro
`,
	})

	stats, err := v.Sync(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DeletedNotes)
	assert.Equal(t, []int64{31}, fake.deleted)

	content, err := os.ReadFile(filepath.Join(root, "notes.md"))
	require.NoError(t, err)
	assert.Equal(t, "Intro\n\nOutro\n", string(content))
}

func TestSyncDryRun(t *testing.T) {
	fake := newFakeAnki()
	server := httptest.NewServer(http.HandlerFunc(fake.handler))
	defer server.Close()

	original := `START
Basic
Q::A
END
`
	v, root := setupVault(t, server.URL, map[string]string{"notes.md": original})
	v.config.DryRun = true

	stats, err := v.Sync(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.AddedNotes)
	assert.Equal(t, 1, stats.RewrittenFiles)

	// Nothing was actually pushed or written
	assert.Empty(t, fake.known)
	content, err := os.ReadFile(filepath.Join(root, "notes.md"))
	require.NoError(t, err)
	assert.Equal(t, original, string(content))
}

func TestScanOffline(t *testing.T) {
	v, _ := setupVault(t, "http://unreachable.invalid", map[string]string{
		"notes.md": `STARTI [Basic] Q::A <!--ID: 12--> ENDI
`,
	})
	// The offline scan needs the schema from the configuration
	v.config.ConfigFile.NoteTypes = []core.ConfigNoteType{
		{Name: "Basic", Fields: []string{"Front", "Back"}},
	}

	plans, reports, err := v.Scan()
	require.NoError(t, err)
	assert.Empty(t, reports)
	require.Len(t, plans, 1)
	require.NotNil(t, plans[0].Plan)
	assert.Len(t, plans[0].Plan.Updates, 1) // inline identifiers are trusted offline
	assert.False(t, plans[0].Plan.Dirty())
}
