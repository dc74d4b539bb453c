package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes size bytes of filler to path, creating parent
// directories. size <= 0 writes one byte. Tests use it for proxy clips and
// other project data.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	pattern := []byte("splice-test-data\n")
	data := bytes.Repeat(pattern, int(size)/len(pattern)+1)[:size]
	writeBytes(t, path, data)
}

// WriteText writes text to path, creating parent directories.
func WriteText(t testing.TB, path, text string) {
	t.Helper()
	writeBytes(t, path, []byte(text))
}

func writeBytes(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
