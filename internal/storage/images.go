package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

var ErrInvalidName = errors.New("invalid image file name")

// ImageStore keeps product image files in a single directory of an afero filesystem
type ImageStore struct {
	fs  afero.Fs
	dir string
}

// NewImageStore creates the directory if needed
func NewImageStore(fs afero.Fs, dir string) (*ImageStore, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &ImageStore{fs: fs, dir: dir}, nil
}

// NewOSImageStore stores images on the host filesystem under dir
func NewOSImageStore(dir string) (*ImageStore, error) {
	return NewImageStore(afero.NewOsFs(), dir)
}

func (s *ImageStore) path(name string) (string, error) {
	if name == "" || name != path.Base(name) || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", ErrInvalidName
	}
	return path.Join(s.dir, name), nil
}

// Save writes data under name, failing if the file already exists
func (s *ImageStore) Save(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := s.path(name)
	if err != nil {
		return err
	}

	f, err := s.fs.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = s.fs.Remove(p)
		return fmt.Errorf("failed to write image file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = s.fs.Remove(p)
		return fmt.Errorf("failed to close image file: %w", err)
	}
	return nil
}

// Delete removes name. A missing file is not an error.
func (s *ImageStore) Delete(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}

	p, err := s.path(name)
	if err != nil {
		return err
	}

	if err := s.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete image file: %w", err)
	}
	return nil
}

// Exists reports whether name is stored
func (s *ImageStore) Exists(name string) bool {
	p, err := s.path(name)
	if err != nil {
		return false
	}
	ok, err := afero.Exists(s.fs, p)
	return err == nil && ok
}

// contentTypes maps the servable file extensions to their content type
var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Handler serves the stored image files read-only. Any other file is reported
// as missing, and the content type never comes from sniffing.
func (s *ImageStore) Handler() http.Handler {
	files := http.FileServer(afero.NewHttpFs(afero.NewReadOnlyFs(afero.NewBasePathFs(s.fs, s.dir))))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType, ok := contentTypes[strings.ToLower(path.Ext(r.URL.Path))]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		files.ServeHTTP(w, r)
	})
}
