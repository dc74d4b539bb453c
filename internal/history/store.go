package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"splice/internal/services"
)

const lockRetryDelay = 50 * time.Millisecond

// Project is one entry of the recent-projects list.
type Project struct {
	Path       string
	Title      string
	DocumentID string
	Profile    string
	OpenedAt   time.Time
}

// Backup describes one catalogued backup copy of a project file.
type Backup struct {
	ID          int64
	ProjectPath string
	BackupPath  string
	DocumentID  string
	SizeBytes   int64
	CreatedAt   time.Time
}

// Store manages history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	lock *flock.Flock
}

// Open connects to the history database at dbPath, creating it when missing.
// It waits for the writer lock until ctx is done.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history directory: %w", err)
	}

	lock := flock.New(dbPath + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, services.Wrap(services.ErrLockConflict, "history", "open", "acquire writer lock", err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrLockConflict, "history", "open", "history database in use", nil)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, lock: lock}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}
	return store, nil
}

// Close closes the database and releases the writer lock.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	if s.lock != nil {
		err = errors.Join(err, s.lock.Unlock())
	}
	return err
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// RecordOpened moves path to the top of the recent-projects list.
func (s *Store) RecordOpened(ctx context.Context, p Project) error {
	if p.Path == "" {
		return errors.New("project path is empty")
	}
	if p.OpenedAt.IsZero() {
		p.OpenedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recent_projects (path, title, document_id, profile, opened_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(path) DO UPDATE SET
             title = excluded.title,
             document_id = excluded.document_id,
             profile = excluded.profile,
             opened_at = excluded.opened_at`,
		p.Path,
		nullableString(p.Title),
		nullableString(p.DocumentID),
		nullableString(p.Profile),
		formatTime(p.OpenedAt),
	)
	if err != nil {
		return fmt.Errorf("record opened project: %w", err)
	}
	return nil
}

// Recent returns up to limit projects, most recently opened first. A
// non-positive limit returns every entry.
func (s *Store) Recent(ctx context.Context, limit int) ([]Project, error) {
	query := `SELECT path, title, document_id, profile, opened_at FROM recent_projects ORDER BY opened_at DESC, path`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recent projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var (
			p                     Project
			title, docID, profile sql.NullString
			openedAt              string
		)
		if err := rows.Scan(&p.Path, &title, &docID, &profile, &openedAt); err != nil {
			return nil, fmt.Errorf("scan recent project: %w", err)
		}
		p.Title, p.DocumentID, p.Profile = title.String, docID.String, profile.String
		p.OpenedAt, _ = parseTime(openedAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Last returns the most recently opened project.
func (s *Store) Last(ctx context.Context) (Project, bool, error) {
	projects, err := s.Recent(ctx, 1)
	if err != nil || len(projects) == 0 {
		return Project{}, false, err
	}
	return projects[0], true, nil
}

// Forget removes path from the recent-projects list.
func (s *Store) Forget(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM recent_projects WHERE path = ?`, path); err != nil {
		return fmt.Errorf("forget project: %w", err)
	}
	return nil
}

// AddBackup catalogues a backup copy and returns its identifier.
func (s *Store) AddBackup(ctx context.Context, b Backup) (int64, error) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO backups (project_path, backup_path, document_id, size_bytes, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		b.ProjectPath,
		b.BackupPath,
		nullableString(b.DocumentID),
		b.SizeBytes,
		formatTime(b.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert backup: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Backups lists the backups of projectPath, newest first.
func (s *Store) Backups(ctx context.Context, projectPath string) ([]Backup, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_path, backup_path, document_id, size_bytes, created_at
         FROM backups WHERE project_path = ? ORDER BY created_at DESC, id DESC`,
		projectPath,
	)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	var out []Backup
	for rows.Next() {
		var (
			b         Backup
			docID     sql.NullString
			createdAt string
		)
		if err := rows.Scan(&b.ID, &b.ProjectPath, &b.BackupPath, &docID, &b.SizeBytes, &createdAt); err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		b.DocumentID = docID.String
		b.CreatedAt, _ = parseTime(createdAt)
		out = append(out, b)
	}
	return out, rows.Err()
}

// DeleteBackup removes a catalogue entry. The backup file itself is left alone.
func (s *Store) DeleteBackup(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM backups WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete backup: %w", err)
	}
	return nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}
