package relocation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"splice/internal/fileutil"
	"splice/internal/services"
)

func TestBuildPatternsRelativeWhenInsideProject(t *testing.T) {
	p := BuildPatterns("/projects/trip", "/projects/trip/tmp", "/new/tmp", "1700")
	if len(p) != 2 {
		t.Fatalf("patterns = %+v", p)
	}
	last := p[len(p)-1]
	if last.From != ">proxy/" || last.To != ">/new/tmp/1700/proxy/" {
		t.Fatalf("relative pattern = %+v", last)
	}
	if p[0].From != ">tmp/1700/proxy/" {
		t.Fatalf("project-relative pattern = %+v", p[0])
	}
	for _, r := range p {
		if r.From == "/projects/trip/tmp/1700/proxy/" {
			t.Fatal("absolute pattern used for folder inside project")
		}
	}

	text := `<property name="splice:proxy">tmp/1700/proxy/a.mkv</property><property name="splice:proxy">proxy/b.mkv</property>`
	got := p.Apply(text)
	want := `<property name="splice:proxy">/new/tmp/1700/proxy/a.mkv</property><property name="splice:proxy">/new/tmp/1700/proxy/b.mkv</property>`
	if got != want {
		t.Fatalf("Apply:\n got %s\nwant %s", got, want)
	}
}

func TestBuildPatternsAbsoluteOutsideProject(t *testing.T) {
	p := BuildPatterns("/projects/trip", "/old/tmp", "/new/tmp", "1700")
	if len(p) != 1 || p[0].From != "/old/tmp/1700/proxy/" || p[0].To != "/new/tmp/1700/proxy/" {
		t.Fatalf("patterns = %+v", p)
	}
	if got := p.Apply(">/old/tmp/1700/proxy/x.mkv<"); got != ">/new/tmp/1700/proxy/x.mkv<" {
		t.Fatalf("Apply = %s", got)
	}
	if BuildPatterns("", "/old/tmp", "/new", "1").Empty() {
		t.Fatal("unsaved project still gets absolute pattern")
	}
	if BuildPatterns("/projects/trip", "/projects/tripod", "/n", "1")[0].From != "/projects/tripod/1/proxy/" {
		t.Fatal("sibling folder with shared prefix treated as inside project")
	}
}

func TestCheck(t *testing.T) {
	base := t.TempDir()
	newBase := filepath.Join(base, "new")
	if err := os.MkdirAll(filepath.Join(newBase, "1700"), 0o755); err != nil {
		t.Fatal(err)
	}
	req := Request{DocumentID: "1700", OldBase: filepath.Join(base, "old"), NewBase: newBase}
	err := Check(req)
	var conflict *ConflictError
	if !errors.As(err, &conflict) || !errors.Is(err, services.ErrRelocationConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if conflict.Path != filepath.Join(newBase, "1700") {
		t.Fatalf("conflict path = %s", conflict.Path)
	}

	for _, bad := range []Request{
		{DocumentID: "abc", OldBase: "/a", NewBase: "/b"},
		{DocumentID: "1", OldBase: "rel", NewBase: "/b"},
		{DocumentID: "1", OldBase: "/a", NewBase: "/a/"},
	} {
		if err := Check(bad); !errors.Is(err, services.ErrValidation) {
			t.Errorf("Check(%+v) = %v, want validation error", bad, err)
		}
	}
}

func TestWorkerMovesAndReportsProgress(t *testing.T) {
	base := t.TempDir()
	oldBase := filepath.Join(base, "old")
	newBase := filepath.Join(base, "new")
	if err := os.MkdirAll(filepath.Join(oldBase, "1700", "proxy"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(oldBase, "1700", "proxy", "a.mkv"), []byte("proxy"), 0o644); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var percents []int
	results := make(chan Result, 1)
	w := NewWorker(nil, nil)
	err := w.Start(context.Background(), Request{DocumentID: "1700", OldBase: oldBase, NewBase: newBase, ProjectDir: "/elsewhere"},
		func(p int) {
			mu.Lock()
			percents = append(percents, p)
			mu.Unlock()
		},
		func(r Result) { results <- r },
	)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	res := <-results
	w.Wait()
	if res.Err != nil || !res.Moved {
		t.Fatalf("result = %+v", res)
	}
	if _, err := os.Stat(filepath.Join(newBase, "1700", "proxy", "a.mkv")); err != nil {
		t.Fatalf("moved file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(oldBase, "1700")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("source still present: %v", err)
	}
	if len(res.Patterns) != 1 || res.Patterns[0].From != filepath.Join(oldBase, "1700")+"/proxy/" {
		t.Fatalf("patterns = %+v", res.Patterns)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(percents) == 0 || percents[len(percents)-1] != 100 {
		t.Fatalf("progress = %v", percents)
	}
}

type failingMover struct{}

func (failingMover) Move(context.Context, string, string, fileutil.ProgressFunc) error {
	return errors.New("device unplugged")
}

func TestWorkerReportsMoveFailure(t *testing.T) {
	base := t.TempDir()
	oldBase := filepath.Join(base, "old")
	if err := os.MkdirAll(filepath.Join(oldBase, "1700"), 0o755); err != nil {
		t.Fatal(err)
	}
	results := make(chan Result, 1)
	w := NewWorker(failingMover{}, nil)
	if err := w.Start(context.Background(), Request{DocumentID: "1700", OldBase: oldBase, NewBase: filepath.Join(base, "new")}, nil, func(r Result) { results <- r }); err != nil {
		t.Fatal(err)
	}
	res := <-results
	if res.Err == nil || !errors.Is(res.Err, services.ErrIO) {
		t.Fatalf("expected io error, got %v", res.Err)
	}
	if !res.Patterns.Empty() || res.Moved {
		t.Fatalf("failed move produced patterns: %+v", res)
	}
}

func TestWorkerWithoutDataFolder(t *testing.T) {
	base := t.TempDir()
	results := make(chan Result, 1)
	w := NewWorker(nil, nil)
	req := Request{DocumentID: "1700", OldBase: filepath.Join(base, "old"), NewBase: filepath.Join(base, "new")}
	if err := w.Start(context.Background(), req, nil, func(r Result) { results <- r }); err != nil {
		t.Fatal(err)
	}
	res := <-results
	if res.Err != nil || res.Moved || res.Patterns.Empty() {
		t.Fatalf("result = %+v", res)
	}
}
