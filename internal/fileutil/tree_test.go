package fileutil

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestMoveTreeSameDevice(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "old", "1700000000000")
	dst := filepath.Join(base, "new", "1700000000000")
	writeTree(t, src, map[string]string{
		"proxy/clip.mkv":      "proxy-bytes",
		"thumbs/0001.png":     "png",
		"preview/render.webm": "webm",
	})

	var lastDone, lastTotal int64
	err := MoveTree(context.Background(), src, dst, func(done, total int64) {
		lastDone, lastTotal = done, total
	})
	if err != nil {
		t.Fatalf("MoveTree: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected source removed, stat err=%v", err)
	}
	got, err := os.ReadFile(filepath.Join(dst, "proxy", "clip.mkv"))
	if err != nil || string(got) != "proxy-bytes" {
		t.Fatalf("unexpected moved content %q err=%v", got, err)
	}
	if lastTotal == 0 || lastDone != lastTotal {
		t.Fatalf("expected final progress report, got %d/%d", lastDone, lastTotal)
	}
}

func TestMoveTreeRefusesExistingDestination(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src")
	dst := filepath.Join(base, "dst")
	writeTree(t, src, map[string]string{"a": "1"})
	if err := os.MkdirAll(dst, 0o755); err != nil {
		t.Fatal(err)
	}
	err := MoveTree(context.Background(), src, dst, nil)
	if !errors.Is(err, fs.ErrExist) {
		t.Fatalf("expected ErrExist, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(src, "a")); err != nil {
		t.Fatalf("expected source untouched: %v", err)
	}
}

func TestCopyTreeCopiesEverything(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src")
	dst := filepath.Join(base, "dst")
	files := map[string]string{
		"one.txt":         "1",
		"nested/two.txt":  "22",
		"nested/deep/3.x": "333",
	}
	writeTree(t, src, files)
	if err := os.Symlink("one.txt", filepath.Join(src, "link")); err != nil {
		t.Fatal(err)
	}

	total, err := TreeSize(src)
	if err != nil {
		t.Fatal(err)
	}
	if total != 6 {
		t.Fatalf("TreeSize = %d, want 6", total)
	}
	if err := CopyTree(context.Background(), src, dst, total, nil); err != nil {
		t.Fatalf("CopyTree: %v", err)
	}
	for rel, content := range files {
		got, err := os.ReadFile(filepath.Join(dst, rel))
		if err != nil || string(got) != content {
			t.Fatalf("%s: got %q err=%v", rel, got, err)
		}
	}
	if target, err := os.Readlink(filepath.Join(dst, "link")); err != nil || target != "one.txt" {
		t.Fatalf("symlink not recreated: %q %v", target, err)
	}
}

func TestCopyTreeHonorsCancellation(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src")
	writeTree(t, src, map[string]string{"a": "1", "b": "2"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := CopyTree(ctx, src, filepath.Join(base, "dst"), 2, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSameDeviceAndFreeSpace(t *testing.T) {
	dir := t.TempDir()
	same, err := SameDevice(dir, filepath.Join(dir, "not", "yet", "there"))
	if err != nil {
		t.Fatalf("SameDevice: %v", err)
	}
	if !same {
		t.Fatal("expected same device for nested path")
	}
	free, err := FreeSpace(filepath.Join(dir, "missing"))
	if err != nil {
		t.Fatalf("FreeSpace: %v", err)
	}
	if free == 0 {
		t.Fatal("expected some free space in temp dir")
	}
	if err := CheckWritableDir(dir); err != nil {
		t.Fatalf("CheckWritableDir: %v", err)
	}
	if err := CheckWritableDir(filepath.Join(dir, "missing")); err == nil {
		t.Fatal("expected error for missing dir")
	}
}
