package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SetUpFromFileContent creates a temp file with the given content and returns
// its path. The file lives in a per-test temp directory cleaned up
// automatically.
func SetUpFromFileContent(t *testing.T, filename string, content string) string {
	t.Helper()
	dir := t.TempDir()

	fileOut := filepath.Join(dir, filename)
	if err := os.WriteFile(fileOut, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	return fileOut
}

// SetUpVault populates a temp directory with the given files, keyed by
// relative path, and returns the directory.
func SetUpVault(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	for relpath, content := range files {
		abspath := filepath.Join(dir, relpath)
		if err := os.MkdirAll(filepath.Dir(abspath), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abspath, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	return dir
}
