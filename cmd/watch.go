package cmd

import (
	"context"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/julien-sobczak/nt-anki/internal/core"
	"github.com/julien-sobczak/nt-anki/internal/vault"
)

// debounceDelay groups the burst of events an editor emits on save.
const debounceDelay = 500 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Sync continuously when vault files change",
	Run: func(cmd *cobra.Command, args []string) {
		config := core.CurrentConfig()
		logger := core.CurrentLogger()
		v := vault.NewVault(config)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			logger.Fatal(err)
		}
		defer watcher.Close()

		if err := watchDirectories(watcher, config.RootDirectory); err != nil {
			logger.Fatal(err)
		}

		// Initial sync before waiting for changes
		if stats, err := v.Sync(ctx, false); err != nil {
			logger.Warnf("Sync failed: %v", err)
		} else {
			logger.Info(stats)
		}

		debounce := time.NewTimer(debounceDelay)
		if !debounce.Stop() {
			<-debounce.C
		}

		logger.Infof("Watching %s", config.RootDirectory)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op.Has(fsnotify.Create) {
					// New directories must be watched too
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						if !hiddenPath(config.RootDirectory, event.Name) {
							watcher.Add(event.Name)
						}
						continue
					}
				}
				if !config.ConfigFile.SupportExtension(event.Name) {
					continue
				}
				if hiddenPath(config.RootDirectory, event.Name) {
					continue
				}
				logger.Debugf("Change detected: %s", event.Name)
				debounce.Reset(debounceDelay)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnf("Watch error: %v", err)

			case <-debounce.C:
				stats, err := v.Sync(ctx, false)
				if err != nil {
					logger.Warnf("Sync failed: %v", err)
					continue
				}
				printReports(stats.Reports)
				logger.Info(stats)

			case <-ctx.Done():
				return
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// watchDirectories registers the vault directories recursively,
// skipping hidden ones.
func watchDirectories(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(entry.Name(), ".") {
			return fs.SkipDir
		}
		return watcher.Add(path)
	})
}

func hiddenPath(root string, path string) bool {
	relpath, err := filepath.Rel(root, path)
	if err != nil {
		return true
	}
	for _, part := range strings.Split(relpath, string(os.PathSeparator)) {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
