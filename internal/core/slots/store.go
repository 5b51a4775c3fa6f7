package slots

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/zeusync/savestate/pkg/concurrent"
)

// Store keeps slots by name. Saving a name that exists replaces it.
type Store interface {
	Save(ctx context.Context, s Slot) error
	Load(ctx context.Context, name string) (Slot, error)
	Delete(ctx context.Context, name string) error
	// List returns the headers of every stored slot ordered by name.
	List(ctx context.Context) ([]Header, error)
}

const (
	fileExt = ".sav"
	// listWorkers bounds how many slot headers are decoded at once.
	listWorkers = 4
)

// FileStore keeps one file per slot in a directory. Writes go to a temporary
// file that is renamed over the target, so a crash never leaves a half
// written slot under its real name.
type FileStore struct {
	dir   string
	codec Codec
}

func NewFileStore(dir string, codec Codec) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("slots: create %s: %w", dir, err)
	}
	return &FileStore{dir: dir, codec: codec}, nil
}

func (f *FileStore) Dir() string { return f.dir }

func (f *FileStore) path(name string) string {
	return filepath.Join(f.dir, name+fileExt)
}

func (f *FileStore) Save(ctx context.Context, s Slot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ValidName(s.Header.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, s.Header.Name)
	}

	tmp, err := os.CreateTemp(f.dir, s.Header.Name+".*.tmp")
	if err != nil {
		return fmt.Errorf("slots: save %s: %w", s.Header.Name, err)
	}
	defer os.Remove(tmp.Name())

	if err := f.codec.Encode(tmp, s); err != nil {
		tmp.Close()
		return fmt.Errorf("slots: save %s: %w", s.Header.Name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("slots: save %s: %w", s.Header.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("slots: save %s: %w", s.Header.Name, err)
	}
	if err := os.Rename(tmp.Name(), f.path(s.Header.Name)); err != nil {
		return fmt.Errorf("slots: save %s: %w", s.Header.Name, err)
	}
	return nil
}

func (f *FileStore) Load(ctx context.Context, name string) (Slot, error) {
	if err := ctx.Err(); err != nil {
		return Slot{}, err
	}
	if !ValidName(name) {
		return Slot{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	raw, err := os.ReadFile(f.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return Slot{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return Slot{}, fmt.Errorf("slots: load %s: %w", name, err)
	}
	return f.codec.Decode(bytes.NewReader(raw))
}

func (f *FileStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	err := os.Remove(f.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return err
}

func (f *FileStore) List(ctx context.Context) ([]Header, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("slots: list %s: %w", f.dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		files = append(files, e.Name())
	}
	out, err := concurrent.Map(ctx, files, listWorkers, func(ctx context.Context, file string) (Header, error) {
		if err := ctx.Err(); err != nil {
			return Header{}, err
		}
		return f.readHeader(file)
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b Header) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (f *FileStore) readHeader(file string) (Header, error) {
	fh, err := os.Open(filepath.Join(f.dir, file))
	if err != nil {
		return Header{}, fmt.Errorf("slots: list: %w", err)
	}
	defer fh.Close()
	h, err := f.codec.DecodeHeader(fh)
	if err != nil {
		return Header{}, fmt.Errorf("slots: list %s: %w", file, err)
	}
	return h, nil
}
