package fileutil

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// ErrInsufficientSpace is returned when the destination filesystem cannot hold a copy.
var ErrInsufficientSpace = errors.New("insufficient free space")

// ProgressFunc receives the number of bytes moved so far and the total.
type ProgressFunc func(done, total int64)

// SameDevice reports whether both paths live on the same filesystem. dst may
// not exist yet; its nearest existing ancestor is used.
func SameDevice(src, dst string) (bool, error) {
	var srcStat, dstStat unix.Stat_t
	if err := unix.Stat(src, &srcStat); err != nil {
		return false, fmt.Errorf("stat %s: %w", src, err)
	}
	anchor := existingAncestor(dst)
	if err := unix.Stat(anchor, &dstStat); err != nil {
		return false, fmt.Errorf("stat %s: %w", anchor, err)
	}
	return srcStat.Dev == dstStat.Dev, nil
}

// FreeSpace returns the bytes available to unprivileged users on the
// filesystem holding path (or its nearest existing ancestor).
func FreeSpace(path string) (uint64, error) {
	var st unix.Statfs_t
	anchor := existingAncestor(path)
	if err := unix.Statfs(anchor, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", anchor, err)
	}
	return st.Bavail * uint64(st.Bsize), nil
}

// CheckWritableDir verifies path is an existing directory the process can write into.
func CheckWritableDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	if err := unix.Access(path, unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("%s: insufficient permissions: %w", path, err)
	}
	return nil
}

// TreeSize returns the total size of regular files under root.
func TreeSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// MoveTree moves the directory src to dst, which must not exist. A rename is
// used when both sides share a device; otherwise the tree is copied with
// verification and the source removed afterwards. On copy failure the partial
// destination is removed and src is left intact.
func MoveTree(ctx context.Context, src, dst string, progress ProgressFunc) error {
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("move %s: destination %s: %w", src, dst, fs.ErrExist)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination parent: %w", err)
	}
	total, err := TreeSize(src)
	if err != nil {
		return fmt.Errorf("measure %s: %w", src, err)
	}

	same, err := SameDevice(src, dst)
	if err != nil {
		return err
	}
	if same {
		if err := os.Rename(src, dst); err == nil {
			report(progress, total, total)
			return nil
		} else if !errors.Is(err, unix.EXDEV) {
			return fmt.Errorf("rename %s: %w", src, err)
		}
	}

	free, err := FreeSpace(dst)
	if err == nil && uint64(total) > free {
		return fmt.Errorf("move %s: need %d bytes, %d available: %w", src, total, free, ErrInsufficientSpace)
	}

	if err := CopyTree(ctx, src, dst, total, progress); err != nil {
		_ = os.RemoveAll(dst)
		return err
	}
	if err := os.RemoveAll(src); err != nil {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

// CopyTree copies the directory src into dst with bounded parallelism.
// Directories and symlinks are recreated first; regular files are copied
// concurrently and verified.
func CopyTree(ctx context.Context, src, dst string, total int64, progress ProgressFunc) error {
	type job struct {
		from, to string
		mode     os.FileMode
		size     int64
	}
	var jobs []job
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case d.Type().IsRegular():
			jobs = append(jobs, job{from: path, to: target, mode: info.Mode().Perm(), size: info.Size()})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan %s: %w", src, err)
	}

	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := CopyFileVerified(j.from, j.to); err != nil {
				return fmt.Errorf("copy %s: %w", j.from, err)
			}
			if err := os.Chmod(j.to, j.mode); err != nil {
				return fmt.Errorf("chmod %s: %w", j.to, err)
			}
			report(progress, done.Add(j.size), total)
			return nil
		})
	}
	return g.Wait()
}

func report(progress ProgressFunc, done, total int64) {
	if progress != nil {
		progress(done, total)
	}
}

func existingAncestor(path string) string {
	current := filepath.Clean(path)
	for {
		if _, err := os.Stat(current); err == nil {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return current
		}
		current = parent
	}
}
