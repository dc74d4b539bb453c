package fileutil

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyFile copies src to dst, keeping the source permissions. dst is only
// replaced once the copy is complete.
func CopyFile(src, dst string) error {
	_, err := copyViaTemp(src, dst)
	return err
}

// CopyFileVerified copies src to dst and reads dst back to compare its size
// and SHA-256 digest with what was read from src. On mismatch dst is removed.
func CopyFileVerified(src, dst string) error {
	sum, err := copyViaTemp(src, dst)
	if err != nil {
		return err
	}
	got, size, err := digest(dst)
	if err != nil {
		return fmt.Errorf("verify copy: %w", err)
	}
	if size != sum.size || !bytes.Equal(got, sum.hash) {
		_ = os.Remove(dst)
		return fmt.Errorf("verify copy of %s: destination differs from source (%d of %d bytes)", src, size, sum.size)
	}
	return nil
}

type copySum struct {
	hash []byte
	size int64
}

func copyViaTemp(src, dst string) (copySum, error) {
	in, err := os.Open(src)
	if err != nil {
		return copySum{}, err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return copySum{}, fmt.Errorf("stat source: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".copy-*")
	if err != nil {
		return copySum{}, err
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	h := sha256.New()
	n, err := io.Copy(tmp, io.TeeReader(in, h))
	if err != nil {
		return copySum{}, err
	}
	if n != info.Size() {
		return copySum{}, fmt.Errorf("copy %s: read %d bytes, expected %d", src, n, info.Size())
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		return copySum{}, err
	}
	if err := tmp.Close(); err != nil {
		return copySum{}, err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return copySum{}, err
	}
	committed = true
	return copySum{hash: h.Sum(nil), size: n}, nil
}

func digest(path string) ([]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return nil, 0, err
	}
	return h.Sum(nil), n, nil
}
