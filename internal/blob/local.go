package blob

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// LocalStorage keeps pay files in a directory on local disk.
type LocalStorage struct {
	dir string
}

// NewLocal creates the directory if needed and returns a LocalStorage.
func NewLocal(dir string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "blob: create dir %s", dir)
	}
	return &LocalStorage{dir: dir}, nil
}

func (s *LocalStorage) Put(_ context.Context, name string, r io.Reader) (string, error) {
	// Keys are flat; strip any path the caller passed in.
	key := filepath.Base(name)
	dst := filepath.Join(s.dir, key)

	f, err := os.Create(dst)
	if err != nil {
		return "", eris.Wrapf(err, "blob: create %s", dst)
	}
	defer f.Close() //nolint:errcheck

	if _, err := io.Copy(f, r); err != nil {
		return "", eris.Wrapf(err, "blob: write %s", dst)
	}
	return key, nil
}

func (s *LocalStorage) Fetch(_ context.Context, key string) (string, error) {
	path := filepath.Join(s.dir, filepath.Base(key))
	if _, err := os.Stat(path); err != nil {
		return "", eris.Wrapf(err, "blob: stat %s", path)
	}
	return path, nil
}
