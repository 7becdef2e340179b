// Package uploader ships case directories to object storage.
package uploader

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"tlpwhere/internal/config"
)

// Uploader copies a case directory to remote storage and returns its location.
type Uploader interface {
	Enabled() bool
	UploadDir(ctx context.Context, dir string) (string, error)
}

// NoopUploader keeps cases local.
type NoopUploader struct{}

// Enabled always returns false.
func (NoopUploader) Enabled() bool { return false }

// UploadDir does nothing.
func (NoopUploader) UploadDir(context.Context, string) (string, error) { return "", nil }

// New returns the uploader selected by cfg. GCS wins when both are enabled.
func New(cfg config.StorageConfig) (Uploader, error) {
	switch {
	case cfg.GCS.Enabled:
		return NewGCS(cfg.GCS)
	case cfg.S3.Enabled:
		return NewS3(cfg.S3)
	default:
		return NoopUploader{}, nil
	}
}

type caseFile struct {
	path string
	key  string
}

// caseFiles lists every regular file under dir with its object key
// <prefix>/<dir base>/<relative path>.
func caseFiles(dir, prefix string) ([]caseFile, string, error) {
	base := filepath.Base(dir)
	root := base + "/"
	if p := strings.Trim(prefix, "/"); p != "" {
		root = p + "/" + root
	}
	var out []caseFile
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		out = append(out, caseFile{path: path, key: root + filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		return nil, "", errors.Wrapf(err, "list %s", dir)
	}
	return out, root, nil
}
