package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// RetentionTarget selects the files in Dir matching Pattern. Exclude lists
// paths that are never removed, such as the log file currently open.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Exclude []string
}

func (t RetentionTarget) candidates() []string {
	if t.Dir == "" {
		return nil
	}
	pattern := t.Pattern
	if pattern == "" {
		pattern = "*"
	}
	matches, err := filepath.Glob(filepath.Join(t.Dir, pattern))
	if err != nil {
		return nil
	}
	return matches
}

// CleanupOldLogs removes files selected by targets whose modification time
// is more than retentionDays in the past. retentionDays <= 0 keeps everything.
// It returns the number of files removed.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	if logger == nil {
		logger = NewNop()
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	keep := make(map[string]bool)
	for _, target := range targets {
		for _, path := range target.Exclude {
			if abs, err := filepath.Abs(path); err == nil {
				keep[abs] = true
			}
		}
	}

	removed := 0
	for _, target := range targets {
		for _, path := range target.candidates() {
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
			if keep[path] {
				continue
			}
			info, err := os.Stat(path)
			if err != nil || info.IsDir() || !info.ModTime().Before(cutoff) {
				continue
			}
			if err := os.Remove(path); err != nil {
				WarnWithContext(logger, "old log not removed", "log_retention_failed",
					String(FieldPath, path),
					Error(err),
					String(FieldErrorHint, "check permissions of paths.log_dir"),
					String(FieldImpact, "the file stays on disk"),
				)
				continue
			}
			removed++
			logger.Debug("old log removed", String(FieldPath, path), String(FieldEventType, "log_pruned"))
		}
	}
	return removed
}
