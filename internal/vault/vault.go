package vault

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/natefinch/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/julien-sobczak/nt-anki/internal/anki"
	"github.com/julien-sobczak/nt-anki/internal/core"
	"github.com/julien-sobczak/nt-anki/internal/markdown"
	"github.com/julien-sobczak/nt-anki/internal/scanner"
	"github.com/julien-sobczak/nt-anki/pkg/console"
	"github.com/julien-sobczak/nt-anki/pkg/text"
)

// Vault is a directory tree of Markdown documents synchronized with a running
// Anki instance.
type Vault struct {
	config *core.Config
	client *anki.Client
}

func NewVault(config *core.Config) *Vault {
	return &Vault{
		config: config,
		client: anki.NewClient(config.AnkiEndpoint()),
	}
}

// FilePlan couples one document with everything its sync requires.
type FilePlan struct {
	// Path relative to the vault root
	Path string

	File *markdown.File
	Plan *scanner.SyncPlan
}

// FileReport locates a per-note failure inside the vault.
type FileReport struct {
	Path   string
	Line   int
	Report *scanner.Report
}

// SyncStats summarizes one sync run.
type SyncStats struct {
	ScannedFiles   int
	SkippedFiles   int
	RewrittenFiles int
	AddedNotes     int
	UpdatedNotes   int
	DeletedNotes   int
	Reports        []FileReport
}

func (s *SyncStats) String() string {
	return fmt.Sprintf("%d file(s) scanned, %d skipped, %d rewritten; %d note(s) added, %d updated, %d deleted",
		s.ScannedFiles, s.SkippedFiles, s.RewrittenFiles,
		s.AddedNotes, s.UpdatedNotes, s.DeletedNotes)
}

// walk collects the Markdown files of the vault, relative to its root.
// Hidden directories and ignored paths are pruned.
func (v *Vault) walk() ([]string, error) {
	root := v.config.RootDirectory
	var paths []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relpath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if relpath == "." {
			return nil
		}
		if entry.IsDir() {
			if strings.HasPrefix(entry.Name(), ".") {
				return fs.SkipDir
			}
			if v.config.IgnoreFile.MustExcludeFile(relpath, true) {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(entry.Name(), ".") {
			return nil
		}
		if !v.config.ConfigFile.SupportExtension(relpath) {
			return nil
		}
		if v.config.IgnoreFile.MustExcludeFile(relpath, false) {
			return nil
		}
		paths = append(paths, relpath)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// scanOptions merges the configured note types with the ones declared in
// Anki. The configuration wins on a name clash; note types only known to Anki
// get their field list from the remote schema.
func (v *Vault) scanOptions(ctx context.Context) (*scanner.Options, error) {
	opts := v.config.ScannerOptions()
	schemas, err := v.client.ModelSchemas(ctx)
	if err != nil {
		return nil, err
	}
	for name, fields := range schemas {
		if _, ok := opts.NoteTypes[name]; ok {
			continue
		}
		opts.NoteTypes[name] = scanner.NoteType{
			Name:   name,
			Fields: fields,
			Cloze:  strings.Contains(strings.ToLower(name), "cloze"),
		}
	}
	return opts, nil
}

// Scan parses the whole vault without talking to Anki and without rewriting
// anything. Useful to preview what a sync would consider.
func (v *Vault) Scan() ([]*FilePlan, []FileReport, error) {
	opts := v.config.ScannerOptions()
	return v.plan(context.Background(), opts, map[int64]bool{}, nil, true)
}

// Sync pushes the vault to Anki: new notes are added and their identifiers
// written back, known notes are updated, deletion requests are honored.
//
// The remote operations happen before any file rewrite: a failed remote call
// leaves every document untouched.
func (v *Vault) Sync(ctx context.Context, force bool) (*SyncStats, error) {
	logger := core.CurrentLogger()

	version, err := v.client.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("anki is not reachable: %w", err)
	}
	logger.Debugf("Connected to AnkiConnect version %d", version)

	known, err := v.client.KnownIdentifiers(ctx)
	if err != nil {
		return nil, err
	}
	logger.Debugf("Found %d note(s) in Anki", len(known))

	opts, err := v.scanOptions(ctx)
	if err != nil {
		return nil, err
	}

	cache := loadCache(v.config.CacheFile())

	stats := &SyncStats{}
	plans, reports, err := v.plan(ctx, opts, known, func(relpath string, content []byte) bool {
		return !force && cache.UpToDate(relpath, content)
	}, false)
	if err != nil {
		return nil, err
	}
	stats.Reports = reports

	progress := console.NewProgressLog(len(plans), console.ShowPercent())
	for i, filePlan := range plans {
		progress.Log(i+1, filePlan.Path)
		if filePlan.Plan == nil {
			stats.SkippedFiles++
			continue
		}
		stats.ScannedFiles++
		if err := v.commit(ctx, filePlan, stats, cache); err != nil {
			return stats, fmt.Errorf("%s: %w", filePlan.Path, err)
		}
	}
	progress.Clear("")

	if !v.config.DryRun {
		if err := cache.Save(v.config.CacheFile()); err != nil {
			logger.Warnf("Unable to save the sync cache: %v", err)
		}
	}

	return stats, nil
}

// plan scans the vault in parallel and builds the per-document plans.
// upToDate, when non-nil, skips files whose content did not change since the
// last sync; a skipped file yields a FilePlan with a nil Plan.
func (v *Vault) plan(ctx context.Context, opts *scanner.Options, known map[int64]bool,
	upToDate func(relpath string, content []byte) bool, everyIDKnown bool) ([]*FilePlan, []FileReport, error) {

	logger := core.CurrentLogger()

	paths, err := v.walk()
	if err != nil {
		return nil, nil, err
	}

	var mu sync.Mutex
	var plans []*FilePlan
	var reports []FileReport

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, relpath := range paths {
		relpath := relpath
		g.Go(func() error {
			file, err := markdown.ParseFile(filepath.Join(v.config.RootDirectory, relpath))
			if err != nil {
				return err
			}

			if upToDate != nil && upToDate(relpath, file.Content) {
				logger.Tracef("Skipping %s (unchanged)", relpath)
				mu.Lock()
				plans = append(plans, &FilePlan{Path: relpath, File: file})
				mu.Unlock()
				return nil
			}
			logger.Tracef("Scanning %s", relpath)

			metadata, err := file.Snapshot()
			if err != nil {
				// A malformed Front Matter must not abort the whole vault
				logger.Warnf("%s: malformed front matter: %v", relpath, err)
				return nil
			}

			result, err := scanner.Scan(file, metadata, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", relpath, err)
			}

			fileKnown := known
			if everyIDKnown {
				// Offline preview: trust every identifier found in the text
				fileKnown = make(map[int64]bool)
				for _, match := range result.Notes() {
					if match.Note.ID != 0 {
						fileKnown[match.Note.ID] = true
					}
				}
				if id, ok := metadata.NoteID(); ok {
					fileKnown[id] = true
				}
			}

			rec := scanner.Reconcile(metadata, result, fileKnown, opts)
			deletions := scanner.ScanDeletions(string(file.Content), opts.Syntax)
			plan := scanner.BuildPlan(file, result, deletions, rec, opts)

			mu.Lock()
			plans = append(plans, &FilePlan{Path: relpath, File: file, Plan: plan})
			for _, report := range plan.Reports {
				reports = append(reports, FileReport{
					Path:   relpath,
					Line:   text.LineNumber(string(file.Content), report.Span.Start),
					Report: report,
				})
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	// Deterministic commit order
	sort.Slice(plans, func(i, j int) bool {
		return plans[i].Path < plans[j].Path
	})
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Path < reports[j].Path
	})
	return plans, reports, nil
}

// commit executes one document plan: remote calls first, then the rewrite.
func (v *Vault) commit(ctx context.Context, filePlan *FilePlan, stats *SyncStats, cache *syncCache) error {
	logger := core.CurrentLogger()
	plan := filePlan.Plan

	if !plan.Dirty() && !plan.HasRemoteWork() {
		cache.Update(filePlan.Path, filePlan.File.Content)
		return nil
	}

	if v.config.DryRun {
		stats.AddedNotes += len(plan.Adds)
		stats.UpdatedNotes += len(plan.Updates)
		stats.DeletedNotes += len(plan.Deletes)
		if plan.Dirty() {
			stats.RewrittenFiles++
		}
		return nil
	}

	if len(plan.Deletes) > 0 {
		ids := make([]int64, 0, len(plan.Deletes))
		for _, deletion := range plan.Deletes {
			ids = append(ids, deletion.ID)
		}
		if err := v.client.DeleteNotes(ctx, ids); err != nil {
			return err
		}
		stats.DeletedNotes += len(ids)
	}

	for _, match := range plan.Updates {
		if err := v.client.UpdateNote(ctx, match.Note); err != nil {
			return err
		}
		stats.UpdatedNotes++
	}

	notes := make([]*anki.Note, 0, len(plan.Adds))
	for _, match := range plan.Adds {
		notes = append(notes, match.Note)
	}
	assigned, err := v.client.AddNotes(ctx, notes)
	if err != nil {
		return err
	}
	for _, id := range assigned {
		if id != 0 {
			stats.AddedNotes++
		}
	}

	buffer, err := plan.Finalize(assigned)
	if err != nil {
		return err
	}
	for _, report := range plan.Reports {
		appendUniqueReport(stats, filePlan, report)
	}

	if !bytes.Equal(buffer, filePlan.File.Content) {
		abspath := filepath.Join(v.config.RootDirectory, filePlan.Path)
		if err := atomic.WriteFile(abspath, bytes.NewReader(buffer)); err != nil {
			return err
		}
		stats.RewrittenFiles++
		logger.Infof("Rewrote %s", filePlan.Path)
	}
	cache.Update(filePlan.Path, buffer)
	return nil
}

// appendUniqueReport records reports produced after planning (rejected adds)
// without duplicating the ones collected during the plan phase.
func appendUniqueReport(stats *SyncStats, filePlan *FilePlan, report *scanner.Report) {
	for _, existing := range stats.Reports {
		if existing.Path == filePlan.Path && existing.Report == report {
			return
		}
	}
	stats.Reports = append(stats.Reports, FileReport{
		Path:   filePlan.Path,
		Line:   text.LineNumber(string(filePlan.File.Content), report.Span.Start),
		Report: report,
	})
}

// CheckConnection verifies that AnkiConnect answers.
func (v *Vault) CheckConnection(ctx context.Context) error {
	_, err := v.client.Version(ctx)
	if err != nil {
		return fmt.Errorf("anki is not reachable (is Anki running with the AnkiConnect add-on?): %w", err)
	}
	return nil
}

// Root returns the absolute vault directory.
func (v *Vault) Root() string {
	return v.config.RootDirectory
}
