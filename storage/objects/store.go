// Package objects implements storage.ObjectStore on an afero filesystem.
//
// Refs are slash-separated paths relative to the store root, for example
// "resumes/bob.txt" or "postings/acme-1.html".
package objects

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/poiesic/jobstream/storage"
	"github.com/spf13/afero"
)

// ErrInvalidRef indicates a ref that is empty or escapes the store root.
var ErrInvalidRef = errors.New("invalid object ref")

// Store reads and writes raw documents below a root directory.
type Store struct {
	fs afero.Fs
}

var _ storage.ObjectStore = (*Store)(nil)

// New creates a store rooted at dir on fsys.
func New(fsys afero.Fs, dir string) *Store {
	if dir != "" && dir != "." {
		fsys = afero.NewBasePathFs(fsys, dir)
	}
	return &Store{fs: fsys}
}

// NewOS creates a store rooted at dir on the local disk.
func NewOS(dir string) *Store {
	return New(afero.NewOsFs(), dir)
}

// NewMemory creates an empty in-memory store for testing.
func NewMemory() *Store {
	return New(afero.NewMemMapFs(), "")
}

// FetchRawDocument returns the bytes stored under ref.
func (s *Store) FetchRawDocument(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := clean(ref)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, name)
	if err != nil {
		return nil, mapError(ref, err)
	}
	return data, nil
}

// PutRawDocument stores data under ref, creating parent directories as needed.
func (s *Store) PutRawDocument(ctx context.Context, ref string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := clean(ref)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(path.Dir(name), 0755); err != nil {
		return mapError(ref, err)
	}
	if err := afero.WriteFile(s.fs, name, data, 0644); err != nil {
		return mapError(ref, err)
	}
	return nil
}

// List returns the refs of every file under prefix in lexical order. A prefix that
// names no directory yields an empty list.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	dir := strings.Trim(path.Clean("/"+prefix), "/")
	if dir == "" {
		dir = "."
	}
	var refs []string
	err := afero.Walk(s.fs, dir, func(name string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !info.IsDir() {
			refs = append(refs, strings.TrimPrefix(path.Clean("/"+name), "/"))
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, mapError(prefix, err)
	}
	sort.Strings(refs)
	return refs, nil
}

func clean(ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", fmt.Errorf("%w: %w: empty ref", storage.ErrInvalidQuery, ErrInvalidRef)
	}
	if strings.Contains(ref, "..") {
		return "", fmt.Errorf("%w: %w: %s", storage.ErrInvalidQuery, ErrInvalidRef, ref)
	}
	return strings.TrimPrefix(path.Clean("/"+ref), "/"), nil
}

func mapError(ref string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, ref)
	}
	return fmt.Errorf("%w: %s: %w", storage.ErrUnavailable, ref, err)
}
