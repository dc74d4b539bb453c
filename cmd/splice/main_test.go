package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"splice/internal/config"
	"splice/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--no-input"}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, out, want string) {
	t.Helper()
	if !strings.Contains(out, want) {
		t.Fatalf("expected output to contain %q, got %q", want, out)
	}
}

func (env *cliTestEnv) project(name string) string {
	return filepath.Join(env.cfg.Paths.ProjectDir, name)
}

func TestCLINewOpenAndRecent(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.project("alpha.splice")

	out, _, err := runCLI(t, []string{"new", path, "--profile", "atsc_720p_50", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	var created projectSummary
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("decode new output: %v\n%s", err, out)
	}
	if created.Path != path || created.Modified {
		t.Fatalf("new project = %+v", created)
	}
	if got := created.Properties["profile"]; got != "atsc_720p_50" {
		t.Fatalf("profile = %q, want atsc_720p_50", got)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("project file not written: %v", err)
	}

	out, _, err = runCLI(t, []string{"open", path}, env.configPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	requireContains(t, out, path)
	requireContains(t, out, created.ID)

	out, _, err = runCLI(t, []string{"recent", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	var recent []struct {
		Path       string `json:"path"`
		DocumentID string `json:"document_id"`
	}
	if err := json.Unmarshal([]byte(out), &recent); err != nil {
		t.Fatalf("decode recent output: %v\n%s", err, out)
	}
	if len(recent) != 1 || recent[0].Path != path || recent[0].DocumentID != created.ID {
		t.Fatalf("recent = %+v", recent)
	}

	out, _, err = runCLI(t, []string{"recent", "--forget", path}, env.configPath)
	if err != nil {
		t.Fatalf("recent --forget: %v", err)
	}
	requireContains(t, out, "Removed")
	out, _, err = runCLI(t, []string{"recent"}, env.configPath)
	if err != nil {
		t.Fatalf("recent after forget: %v", err)
	}
	requireContains(t, out, "No recent projects")
}

func TestCLINewRefusesOverwriteWithoutYes(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.project("taken.splice")
	testsupport.WriteText(t, path, "not a project")

	if _, _, err := runCLI(t, []string{"new", path}, env.configPath); err == nil {
		t.Fatal("expected new to refuse overwriting an existing file")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "not a project" {
		t.Fatalf("existing file was replaced: %q", data)
	}

	if _, _, err := runCLI(t, []string{"--yes", "new", path}, env.configPath); err != nil {
		t.Fatalf("new --yes: %v", err)
	}
}

func TestCLIOpenMalformedProjectFails(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.project("broken.splice")
	testsupport.WriteText(t, path, "<mlt><producer")

	if _, _, err := runCLI(t, []string{"open", path}, env.configPath); err == nil {
		t.Fatal("expected open of a malformed project to fail")
	}
}

func TestCLIConvert(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.project("film.splice")
	if _, _, err := runCLI(t, []string{"new", path, "--profile", "atsc_1080p_25"}, env.configPath); err != nil {
		t.Fatalf("new: %v", err)
	}

	out, _, err := runCLI(t, []string{"convert", path, "atsc_1080p_50"}, env.configPath)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	converted := env.project("film-5000.splice")
	requireContains(t, out, converted)

	out, _, err = runCLI(t, []string{"open", converted, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("open converted: %v", err)
	}
	var summary projectSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode open output: %v\n%s", err, out)
	}
	if got := summary.Properties["profile"]; got != "atsc_1080p_50" {
		t.Fatalf("converted profile = %q", got)
	}

	if _, _, err := runCLI(t, []string{"convert", path, "no_such_profile"}, env.configPath); err == nil {
		t.Fatal("expected unknown profile to fail")
	}
}

func TestCLIBackupsListAndRestore(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithBackups(5))
	path := env.project("beta.splice")
	if _, _, err := runCLI(t, []string{"new", path}, env.configPath); err != nil {
		t.Fatalf("new: %v", err)
	}

	out, _, err := runCLI(t, []string{"backups", "list", path}, env.configPath)
	if err != nil {
		t.Fatalf("backups list: %v", err)
	}
	requireContains(t, out, "No backups")

	if _, _, err := runCLI(t, []string{"open", path, "--save-as", path}, env.configPath); err != nil {
		t.Fatalf("resave: %v", err)
	}
	out, _, err = runCLI(t, []string{"backups", "list", path, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("backups list --json: %v", err)
	}
	var list []struct {
		BackupPath  string
		ProjectPath string
	}
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("decode backups: %v\n%s", err, out)
	}
	if len(list) != 1 || list[0].ProjectPath != path {
		t.Fatalf("backups = %+v", list)
	}
	if _, err := os.Stat(list[0].BackupPath); err != nil {
		t.Fatalf("backup file missing: %v", err)
	}

	out, _, err = runCLI(t, []string{"backups", "restore", path}, env.configPath)
	if err != nil {
		t.Fatalf("backups restore: %v", err)
	}
	requireContains(t, out, "Restored backup into "+path)
}

func TestCLIBackupsDisabled(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithBackups(0))
	if _, _, err := runCLI(t, []string{"backups", "list", env.project("x.splice")}, env.configPath); err == nil {
		t.Fatal("expected backups list to fail when backups are disabled")
	}
}

func TestCLIProfiles(t *testing.T) {
	out, _, err := runCLI(t, []string{"profiles"}, "")
	if err != nil {
		t.Fatalf("profiles: %v", err)
	}
	requireContains(t, out, "atsc_1080p_2997")
	requireContains(t, out, "HD 1080p 29.97 fps")

	out, _, err = runCLI(t, []string{"profiles", "--json"}, "")
	if err != nil {
		t.Fatalf("profiles --json: %v", err)
	}
	var list []profileJSON
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("decode profiles: %v", err)
	}
	if len(list) == 0 {
		t.Fatal("no profiles listed")
	}
}

func TestCLITestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "not configured")
}

func TestCLIOpenWithoutPathReopensLastProject(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Project.OpenLastProject = true
	writeTestConfig(t, env.configPath, env.cfg)
	path := env.project("last.splice")

	out, _, err := runCLI(t, []string{"new", path, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	var created projectSummary
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("decode new output: %v\n%s", err, out)
	}

	out, _, err = runCLI(t, []string{"open", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	var reopened projectSummary
	if err := json.Unmarshal([]byte(out), &reopened); err != nil {
		t.Fatalf("decode open output: %v\n%s", err, out)
	}
	if reopened.Path != path || reopened.ID != created.ID {
		t.Fatalf("reopened = %+v, want %s", reopened, path)
	}
}
