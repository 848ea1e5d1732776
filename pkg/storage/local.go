package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStorage implements Storage on a directory tree.
type LocalStorage struct {
	root string
}

// NewLocal creates the root directory if needed and returns a LocalStorage.
func NewLocal(root string) (*LocalStorage, error) {
	if root == "" {
		return nil, ErrInvalidConfig
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &LocalStorage{root: abs}, nil
}

// Root returns the absolute storage directory.
func (s *LocalStorage) Root() string {
	return s.root
}

// Path returns the filesystem path for key.
func (s *LocalStorage) Path(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if k == "" {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.root, filepath.FromSlash(k)), nil
}

// Put writes r to a temp file next to the destination and renames it into place.
func (s *LocalStorage) Put(ctx context.Context, r io.Reader, size int64, opts ...Option) (*FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o := newPutOptions(opts...)

	contentType, body := o.contentType, r
	if contentType == "" {
		contentType, body = sniff(r)
	}
	if len(o.validationRules) > 0 {
		if err := ValidateReader(size, contentType, o.validationRules...); err != nil {
			return nil, err
		}
	}

	key, err := buildKey(o.prefix, o.key, contentType)
	if err != nil {
		return nil, err
	}
	dst := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".put-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	n, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	return &FileInfo{Key: key, Size: n, ContentType: contentType}, nil
}

func (s *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}
	return f, nil
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	s.pruneEmptyDirs(filepath.Dir(p))
	return nil
}

func (s *LocalStorage) List(ctx context.Context, prefix string) ([]string, error) {
	p, err := cleanKey(prefix)
	if err != nil {
		return nil, err
	}
	start := filepath.Join(s.root, filepath.FromSlash(p))

	var keys []string
	err = filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrListFailed, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Healthcheck verifies the root is still a writable directory.
func (s *LocalStorage) Healthcheck() func(context.Context) error {
	return func(ctx context.Context) error {
		f, err := os.CreateTemp(s.root, ".health-*")
		if err != nil {
			return fmt.Errorf("%w: %v", ErrAccessDenied, err)
		}
		name := f.Name()
		_ = f.Close()
		return os.Remove(name)
	}
}

// pruneEmptyDirs removes empty parents up to, but not including, the root.
func (s *LocalStorage) pruneEmptyDirs(dir string) {
	for dir != s.root && strings.HasPrefix(dir, s.root) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

var _ Storage = (*LocalStorage)(nil)
