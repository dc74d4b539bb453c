package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"splice/internal/fileutil"
	"splice/internal/history"
	"splice/internal/logging"
	"splice/internal/services"
)

const stampLayout = "2006-01-02-15-04-05"

// Catalog records backups. *history.Store satisfies it.
type Catalog interface {
	AddBackup(ctx context.Context, b history.Backup) (int64, error)
	Backups(ctx context.Context, projectPath string) ([]history.Backup, error)
	DeleteBackup(ctx context.Context, id int64) error
}

// Manager creates, rotates and lists project backups.
type Manager struct {
	dir     string
	keep    int
	catalog Catalog
	logger  *slog.Logger
	now     func() time.Time
}

// NewManager returns a manager writing into dir. keep <= 0 disables rotation.
func NewManager(dir string, keep int, catalog Catalog, logger *slog.Logger) *Manager {
	return &Manager{
		dir:     dir,
		keep:    keep,
		catalog: catalog,
		logger:  logging.NewComponentLogger(logger, "backup"),
		now:     time.Now,
	}
}

// Dir returns the backup root.
func (m *Manager) Dir() string {
	return m.dir
}

// Create copies projectPath into the backup directory. It returns false when
// there is nothing to back up.
func (m *Manager) Create(ctx context.Context, projectPath, documentID string) (history.Backup, bool, error) {
	info, err := os.Stat(projectPath)
	if errors.Is(err, fs.ErrNotExist) {
		return history.Backup{}, false, nil
	}
	if err != nil {
		return history.Backup{}, false, services.Wrap(services.ErrIO, "backup", "create", "stat project", err)
	}

	folder := filepath.Join(m.dir, sanitize(documentID))
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return history.Backup{}, false, services.Wrap(services.ErrIO, "backup", "create", "create backup folder", err)
	}
	now := m.now()
	base := strings.TrimSuffix(filepath.Base(projectPath), filepath.Ext(projectPath))
	target := filepath.Join(folder, fmt.Sprintf("%s-%s%s", base, now.Format(stampLayout), filepath.Ext(projectPath)))
	if err := fileutil.CopyFileVerified(projectPath, target); err != nil {
		return history.Backup{}, false, services.Wrap(services.ErrIO, "backup", "create", "copy project", err)
	}

	entry := history.Backup{
		ProjectPath: projectPath,
		BackupPath:  target,
		DocumentID:  documentID,
		SizeBytes:   info.Size(),
		CreatedAt:   now,
	}
	if m.catalog != nil {
		id, err := m.catalog.AddBackup(ctx, entry)
		if err != nil {
			return history.Backup{}, false, err
		}
		entry.ID = id
	}
	m.logger.Info("project backed up",
		logging.String(logging.FieldEventType, "backup_created"),
		logging.String("project", projectPath),
		logging.String("backup", target),
	)
	if err := m.rotate(ctx, projectPath); err != nil {
		logging.WarnWithContext(m.logger, "backup rotation failed", "backup_rotation_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "old backups kept on disk"),
		)
	}
	return entry, true, nil
}

func (m *Manager) rotate(ctx context.Context, projectPath string) error {
	if m.keep <= 0 || m.catalog == nil {
		return nil
	}
	all, err := m.catalog.Backups(ctx, projectPath)
	if err != nil {
		return err
	}
	if len(all) <= m.keep {
		return nil
	}
	var errs []error
	for _, b := range all[m.keep:] {
		if err := os.Remove(b.BackupPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		if err := m.catalog.DeleteBackup(ctx, b.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// List returns the backups of projectPath that still exist on disk, newest
// first. Stale catalogue entries are dropped.
func (m *Manager) List(ctx context.Context, projectPath string) ([]history.Backup, error) {
	if m.catalog == nil {
		return nil, nil
	}
	all, err := m.catalog.Backups(ctx, projectPath)
	if err != nil {
		return nil, err
	}

	present := make([]bool, len(all))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range all {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			info, err := os.Stat(all[i].BackupPath)
			if err != nil {
				return nil
			}
			present[i] = true
			all[i].SizeBytes = info.Size()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]history.Backup, 0, len(all))
	for i, b := range all {
		if present[i] {
			out = append(out, b)
			continue
		}
		if err := m.catalog.DeleteBackup(ctx, b.ID); err != nil {
			m.logger.Debug("drop missing backup entry failed", logging.Error(err))
		}
	}
	return out, nil
}

func sanitize(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, id)
}
