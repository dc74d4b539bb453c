package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	"splice/internal/services"
)

// Kind identifies an archive format.
type Kind int

const (
	// None means the file is not an archive.
	None Kind = iota
	Zip
	TarGz
)

func (k Kind) String() string {
	switch k {
	case Zip:
		return "zip"
	case TarGz:
		return "tar.gz"
	default:
		return "none"
	}
}

// ErrNoProject is returned when an archive holds no project file.
var ErrNoProject = errors.New("archive contains no project file")

// Detect reports the archive kind of path from its content.
func Detect(path string) (Kind, error) {
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return None, fmt.Errorf("detect %s: %w", path, err)
	}
	switch {
	case mime.Is("application/zip"):
		return Zip, nil
	case mime.Is("application/gzip"), mime.Is("application/x-gzip"):
		return TarGz, nil
	}
	return None, nil
}

// Extract unpacks the archive at path into dest and returns the project file
// with the given extension closest to the archive root.
func Extract(ctx context.Context, path, dest, projectExt string) (string, error) {
	kind, err := Detect(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", services.Wrap(services.ErrIO, "archive", "extract", "create destination", err)
	}
	var files []string
	switch kind {
	case Zip:
		files, err = extractZip(ctx, path, dest)
	case TarGz:
		files, err = extractTarGz(ctx, path, dest)
	default:
		return "", services.Wrap(services.ErrUnsupported, "archive", "extract", path+" is not an archive", nil)
	}
	if err != nil {
		return "", err
	}
	return pickProject(files, projectExt)
}

// Unpacker exposes Detect and Extract as methods for callers that take the
// unpack step as a dependency.
type Unpacker struct{}

// Detect implements session.Unpacker.
func (Unpacker) Detect(path string) (Kind, error) { return Detect(path) }

// Extract implements session.Unpacker.
func (Unpacker) Extract(ctx context.Context, path, dest, projectExt string) (string, error) {
	return Extract(ctx, path, dest, projectExt)
}

func pickProject(files []string, ext string) (string, error) {
	var candidates []string
	for _, f := range files {
		if strings.EqualFold(filepath.Ext(f), ext) {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return "", ErrNoProject
	}
	sort.Slice(candidates, func(i, j int) bool {
		di := strings.Count(candidates[i], string(filepath.Separator))
		dj := strings.Count(candidates[j], string(filepath.Separator))
		if di != dj {
			return di < dj
		}
		return candidates[i] < candidates[j]
	})
	return candidates[0], nil
}

// safeJoin rejects entries that would escape dest.
func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(name) {
		return "", fmt.Errorf("archive entry %q escapes destination", name)
	}
	return target, nil
}

func writeEntry(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm()|0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func extractZip(ctx context.Context, path, dest string) ([]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, services.Wrap(services.ErrParse, "archive", "open zip", path, err)
	}
	defer zr.Close()

	var files []string
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		target, err := safeJoin(dest, f.Name)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "archive", "extract zip", "", err)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, services.Wrap(services.ErrIO, "archive", "extract zip", target, err)
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, services.Wrap(services.ErrParse, "archive", "extract zip", f.Name, err)
		}
		err = writeEntry(target, rc, f.Mode())
		_ = rc.Close()
		if err != nil {
			return nil, services.Wrap(services.ErrIO, "archive", "extract zip", target, err)
		}
		files = append(files, target)
	}
	return files, nil
}

func extractTarGz(ctx context.Context, path, dest string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "archive", "open tar", path, err)
	}
	defer file.Close()
	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, services.Wrap(services.ErrParse, "archive", "open gzip", path, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var files []string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, services.Wrap(services.ErrParse, "archive", "read tar", path, err)
		}
		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "archive", "extract tar", "", err)
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, services.Wrap(services.ErrIO, "archive", "extract tar", target, err)
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, os.FileMode(hdr.Mode)); err != nil {
				return nil, services.Wrap(services.ErrIO, "archive", "extract tar", target, err)
			}
			files = append(files, target)
		default:
			// links and devices are not part of project archives
		}
	}
	return files, nil
}
