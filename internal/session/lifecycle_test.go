package session_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"

	"splice/internal/backup"
	"splice/internal/document"
	"splice/internal/logging"
	"splice/internal/notifications"
	"splice/internal/profiles"
	"splice/internal/scene"
	"splice/internal/services"
	"splice/internal/session"
	"splice/internal/testsupport"
)

func TestSaveAsRelocatesIntoProjectFolder(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSameProjectFolder())
	bus := notifications.NewBus(nil, logging.NewNop())
	events := recordEvents(bus)
	c := newController(t, cfg, session.WithPrompter(session.Headless{Relocate: true}), session.WithBus(bus))
	ctx := context.Background()

	if err := c.New(ctx, session.NewOptions{}); err != nil {
		t.Fatalf("New: %v", err)
	}
	snap := current(t, c)
	if snap.TempFolder != cfg.Paths.CacheDir {
		t.Fatalf("untitled temp folder = %q", snap.TempFolder)
	}
	proxy := filepath.Join(snap.DataFolder, "proxy", "clip.mkv")
	testsupport.WriteFile(t, proxy, 4096)

	path := filepath.Join(cfg.Paths.ProjectDir, "moved.splice")
	if err := c.SaveAs(ctx, path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	c.Wait()

	wantBase := filepath.Join(cfg.Paths.ProjectDir, document.CacheFolderName)
	after := current(t, c)
	if after.TempFolder != wantBase {
		t.Fatalf("temp folder = %q, want %q", after.TempFolder, wantBase)
	}
	if after.ID != snap.ID {
		t.Fatalf("document id changed across relocation")
	}
	if _, err := os.Stat(filepath.Join(wantBase, snap.ID, "proxy", "clip.mkv")); err != nil {
		t.Fatalf("proxy not moved: %v", err)
	}
	if _, err := os.Stat(proxy); !os.IsNotExist(err) {
		t.Fatalf("old proxy still present: %v", err)
	}
	if c.State() != session.Active {
		t.Fatalf("state = %v", c.State())
	}
	if !sawEvent(events, notifications.EventRelocationFinished) {
		t.Fatal("relocation_finished not published")
	}
}

func sawEvent(events <-chan notifications.Event, want notifications.Event) bool {
	for {
		select {
		case e := <-events:
			if e == want {
				return true
			}
		default:
			return false
		}
	}
}

func TestRelocateRewritesProxyReferences(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	const id = "1700000000000"
	oldProxy := filepath.Join(cfg.Paths.CacheDir, id, "proxy", "clip.mkv")
	testsupport.WriteFile(t, oldProxy, 2048)

	g := scene.NewGraph(profiles.MustLookup("atsc_1080p_25"), 1, 1)
	g.Producers = append(g.Producers, &scene.Producer{
		Element: "producer",
		ID:      "clip1",
		Out:     99,
		Properties: scene.NewProperties(
			scene.Property{Name: "resource", Value: oldProxy},
			scene.Property{Name: "mlt_service", Value: "avformat"},
		),
	})
	g.Bin.Properties.Set(scene.DocPropertyPrefix+document.KeyDocumentID, id)
	path := filepath.Join(cfg.Paths.ProjectDir, "proxied.splice")
	text, err := scene.Serialize(g, cfg.Paths.ProjectDir, nil)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	testsupport.WriteText(t, path, text)

	c := newController(t, cfg)
	ctx := context.Background()
	if err := c.Open(ctx, path); err != nil {
		t.Fatalf("Open: %v", err)
	}
	newBase := filepath.Join(testsupport.BaseDir(cfg), "newcache")
	if err := c.RelocateTempFolder(ctx, newBase); err != nil {
		t.Fatalf("RelocateTempFolder: %v", err)
	}
	c.Wait()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read project: %v", err)
	}
	newProxy := filepath.Join(newBase, id, "proxy", "clip.mkv")
	if !strings.Contains(string(data), newProxy) {
		t.Fatalf("project does not reference %s:\n%s", newProxy, data)
	}
	if strings.Contains(string(data), oldProxy) {
		t.Fatal("project still references the old proxy")
	}
	if _, err := os.Stat(newProxy); err != nil {
		t.Fatalf("proxy not moved: %v", err)
	}
	if snap := current(t, c); snap.TempFolder != newBase {
		t.Fatalf("temp folder = %q, want %q", snap.TempFolder, newBase)
	}
}

func TestRelocateConflictIsRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	c := newController(t, cfg)
	ctx := context.Background()
	saveNew(t, c, cfg, "conflict.splice")
	snap := current(t, c)

	newBase := filepath.Join(testsupport.BaseDir(cfg), "taken")
	if err := os.MkdirAll(filepath.Join(newBase, snap.ID), 0o755); err != nil {
		t.Fatal(err)
	}
	err := c.RelocateTempFolder(ctx, newBase)
	if !errors.Is(err, services.ErrRelocationConflict) {
		t.Fatalf("RelocateTempFolder = %v, want ErrRelocationConflict", err)
	}
	if current(t, c).TempFolder != snap.TempFolder {
		t.Fatal("temp folder changed after a rejected relocation")
	}
}

func TestOpenZipArchive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	setup := newController(t, cfg)
	src := saveNew(t, setup, cfg, "bundled.splice")
	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}

	archivePath := filepath.Join(testsupport.BaseDir(cfg), "bundle.zip")
	f, err := os.Create(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("bundle/project.splice")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	c := newController(t, cfg)
	if err := c.Open(context.Background(), archivePath); err != nil {
		t.Fatalf("Open archive: %v", err)
	}
	got := current(t, c).URL
	extracted := filepath.Join(cfg.Paths.CacheDir, "archives")
	if !strings.HasPrefix(got, extracted+string(filepath.Separator)) || !strings.HasSuffix(got, filepath.Join("bundle", "project.splice")) {
		t.Fatalf("opened %q, want a project under %s", got, extracted)
	}

	if err := c.Open(context.Background(), archivePath); err != nil {
		t.Fatalf("reopen archive: %v", err)
	}
	if again := current(t, c).URL; again != got {
		t.Fatalf("reopen extracted to %q, want %q", again, got)
	}
	entries, err := os.ReadDir(extracted)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("archive folders = %d, want 1", len(entries))
	}
	if _, err := os.Stat(filepath.Join(testsupport.BaseDir(cfg), "bundle")); !os.IsNotExist(err) {
		t.Fatalf("archive extracted next to itself: %v", err)
	}
}

func TestOpenBackupLoadsPreviousVersion(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBackups(3))
	store := testsupport.MustOpenHistory(t, cfg)
	mgr := backup.NewManager(cfg.Paths.BackupDir, cfg.Backups.Keep, store, logging.NewNop())
	c := newController(t, cfg,
		session.WithBackups(mgr),
		session.WithHistory(store),
		session.WithPrompter(session.Headless{UseNewestBackup: true}),
	)
	ctx := context.Background()

	path := saveNew(t, c, cfg, "versions.splice")
	if err := c.SetProperty(document.KeyGuides, `[{"pos":4,"comment":"v2","type":0}]`); err != nil {
		t.Fatalf("SetProperty: %v", err)
	}
	if err := c.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	list, err := mgr.List(ctx, path)
	if err != nil || len(list) != 1 {
		t.Fatalf("backups = %v, %v; want one", list, err)
	}

	if err := c.OpenBackup(ctx, ""); err != nil {
		t.Fatalf("OpenBackup: %v", err)
	}
	snap := current(t, c)
	if snap.URL != path {
		t.Fatalf("backup bound to %q, want %q", snap.URL, path)
	}
	if !snap.Modified {
		t.Fatal("document loaded from a backup should be modified")
	}
	if property(snap, document.KeyGuides) != "" {
		t.Fatalf("backup carries later edit %q", property(snap, document.KeyGuides))
	}
}

func TestOpenBackupWithoutBackups(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	mgr := backup.NewManager(cfg.Paths.BackupDir, 3, store, logging.NewNop())
	c := newController(t, cfg, session.WithBackups(mgr))
	saveNew(t, c, cfg, "nobackup.splice")

	if err := c.OpenBackup(context.Background(), ""); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("OpenBackup = %v, want ErrNotFound", err)
	}
}

func TestOpenLastUsesHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	c := newController(t, cfg, session.WithHistory(store))
	ctx := context.Background()

	if err := c.OpenLast(ctx); err != nil {
		t.Fatalf("OpenLast empty: %v", err)
	}
	if snap := current(t, c); snap.URL != "" {
		t.Fatalf("empty history opened %q", snap.URL)
	}

	path := saveNew(t, c, cfg, "last.splice")
	if err := c.Close(ctx, session.CloseOptions{}); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.OpenLast(ctx); err != nil {
		t.Fatalf("OpenLast: %v", err)
	}
	if got := current(t, c).URL; got != path {
		t.Fatalf("OpenLast opened %q, want %q", got, path)
	}
	recent, err := store.Recent(ctx, 5)
	if err != nil || len(recent) != 1 || recent[0].Path != path {
		t.Fatalf("recent = %v, %v", recent, err)
	}
}

func TestConvertProfileRescalesGuides(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	c := newController(t, cfg)
	ctx := context.Background()
	path := saveNew(t, c, cfg, "film.splice")
	if err := c.SetProperty(document.KeyGuides, `[{"pos":100,"comment":"cut","type":1}]`); err != nil {
		t.Fatalf("SetProperty: %v", err)
	}
	if err := c.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	testsupport.WriteText(t, path+".srt", "1\n00:00:01,000 --> 00:00:02,000\nhello\n")

	out, err := c.ConvertProfile(ctx, "atsc_1080p_50")
	if err != nil {
		t.Fatalf("ConvertProfile: %v", err)
	}
	want := filepath.Join(cfg.Paths.ProjectDir, "film-5000.splice")
	if out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}
	snap := current(t, c)
	if snap.URL != want {
		t.Fatalf("active document = %q, want converted project", snap.URL)
	}
	if property(snap, document.KeyProfile) != "atsc_1080p_50" {
		t.Fatalf("profile property = %q", property(snap, document.KeyProfile))
	}
	guides, _, err := document.ParseGuides(property(snap, document.KeyGuides))
	if err != nil || len(guides) != 1 || guides[0].Pos != 200 || guides[0].Comment != "cut" {
		t.Fatalf("guides = %+v, %v", guides, err)
	}
	if tl := c.Timeline(); tl == nil || tl.Profile.FPS() != 50 {
		t.Fatal("converted timeline does not run at 50 fps")
	}
	if _, err := os.Stat(want + ".srt"); err != nil {
		t.Fatalf("subtitle sidecar not copied: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("original project removed: %v", err)
	}
}

func TestConvertProfileUnknown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	c := newController(t, cfg)
	saveNew(t, c, cfg, "x.splice")
	if _, err := c.ConvertProfile(context.Background(), "nope"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("ConvertProfile = %v, want ErrValidation", err)
	}
}

func TestExternalChangeIsReported(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	bus := notifications.NewBus(nil, logging.NewNop())
	changed := make(chan notifications.Payload, 4)
	bus.Subscribe(func(e notifications.Event, p notifications.Payload) {
		if e == notifications.EventExternalChange {
			select {
			case changed <- p:
			default:
			}
		}
	})
	c := newController(t, cfg, session.WithBus(bus), session.WithWatcher(20*time.Millisecond))
	path := saveNew(t, c, cfg, "watched.splice")

	time.Sleep(50 * time.Millisecond)
	future := time.Now().Add(time.Minute)
	testsupport.WriteText(t, path, "<mlt/>")
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-changed:
		if p.String("path") != path {
			t.Fatalf("change reported for %q", p.String("path"))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("external change not reported")
	}
}
