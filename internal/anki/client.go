package anki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultEndpoint is the standard AnkiConnect address.
const DefaultEndpoint = "http://127.0.0.1:8765"

// apiVersion is the AnkiConnect protocol version spoken by this client.
const apiVersion = 6

// Client talks to a running Anki instance through the AnkiConnect add-on.
// The API is a single JSON action/params endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type request struct {
	Action  string `json:"action"`
	Version int    `json:"version"`
	Params  any    `json:"params,omitempty"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

// invoke performs one AnkiConnect action and decodes its result.
func (c *Client) invoke(ctx context.Context, action string, params any, result any) error {
	body, err := json.Marshal(request{
		Action:  action,
		Version: apiVersion,
		Params:  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ankiconnect %q: %w", action, err)
	}
	defer resp.Body.Close()

	var envelope response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("ankiconnect %q: %w", action, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("ankiconnect %q: %s", action, *envelope.Error)
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("ankiconnect %q: %w", action, err)
		}
	}
	return nil
}

// Version checks the connection and returns the AnkiConnect version.
func (c *Client) Version(ctx context.Context) (int, error) {
	var version int
	if err := c.invoke(ctx, "version", nil, &version); err != nil {
		return 0, err
	}
	return version, nil
}

// KnownIdentifiers returns the set of note identifiers present in Anki.
// Used to distinguish real identifiers from stale or foreign markers.
func (c *Client) KnownIdentifiers(ctx context.Context) (map[int64]bool, error) {
	var ids []int64
	params := map[string]any{"query": "deck:*"}
	if err := c.invoke(ctx, "findNotes", params, &ids); err != nil {
		return nil, err
	}
	known := make(map[int64]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	return known, nil
}

// ModelNames returns the note type names declared in Anki.
func (c *Client) ModelNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.invoke(ctx, "modelNames", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// ModelFieldNames returns the ordered field names of a note type.
func (c *Client) ModelFieldNames(ctx context.Context, model string) ([]string, error) {
	var names []string
	params := map[string]any{"modelName": model}
	if err := c.invoke(ctx, "modelFieldNames", params, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// ModelSchemas returns the field list of every note type, fetched once per run.
func (c *Client) ModelSchemas(ctx context.Context) (map[string][]string, error) {
	names, err := c.ModelNames(ctx)
	if err != nil {
		return nil, err
	}
	schemas := make(map[string][]string, len(names))
	for _, name := range names {
		fields, err := c.ModelFieldNames(ctx, name)
		if err != nil {
			return nil, err
		}
		schemas[name] = fields
	}
	return schemas, nil
}

type noteInput struct {
	DeckName  string            `json:"deckName"`
	ModelName string            `json:"modelName"`
	Fields    map[string]string `json:"fields"`
	Tags      []string          `json:"tags"`
	Options   map[string]any    `json:"options,omitempty"`
}

func toNoteInput(note *Note) noteInput {
	tags := note.Tags
	if tags == nil {
		tags = []string{}
	}
	return noteInput{
		DeckName:  note.Deck,
		ModelName: note.NoteType,
		Fields:    note.Fields,
		Tags:      tags,
	}
}

// AddNotes creates the given notes and returns their assigned identifiers in
// the same order. A rejected note (usually a duplicate) yields a zero
// identifier instead of failing the whole batch.
func (c *Client) AddNotes(ctx context.Context, notes []*Note) ([]int64, error) {
	if len(notes) == 0 {
		return nil, nil
	}
	inputs := make([]noteInput, 0, len(notes))
	for _, note := range notes {
		inputs = append(inputs, toNoteInput(note))
	}
	var ids []*int64
	params := map[string]any{"notes": inputs}
	if err := c.invoke(ctx, "addNotes", params, &ids); err != nil {
		return nil, err
	}
	if len(ids) != len(notes) {
		return nil, fmt.Errorf("ankiconnect %q: got %d identifiers for %d notes", "addNotes", len(ids), len(notes))
	}
	results := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == nil {
			results = append(results, 0)
			continue
		}
		results = append(results, *id)
	}
	return results, nil
}

// UpdateNote replaces the fields and tags of an existing note.
func (c *Client) UpdateNote(ctx context.Context, note *Note) error {
	tags := note.Tags
	if tags == nil {
		tags = []string{}
	}
	params := map[string]any{
		"note": map[string]any{
			"id":     note.ID,
			"fields": note.Fields,
			"tags":   tags,
		},
	}
	return c.invoke(ctx, "updateNote", params, nil)
}

// DeleteNotes removes notes from Anki.
func (c *Client) DeleteNotes(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	params := map[string]any{"notes": ids}
	return c.invoke(ctx, "deleteNotes", params, nil)
}
