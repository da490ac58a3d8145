package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bryanwahyu/csvask/internal/domain/relay"
)

// LocalCatalog serves CSV files from a read-only directory on local disk.
type LocalCatalog struct {
	root string
}

// NewLocalCatalog canonicalizes root and checks it is an existing directory.
func NewLocalCatalog(root string) (*LocalCatalog, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving catalog root: %w", err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolving catalog root: %w", err)
	}
	info, err := os.Stat(real)
	if err != nil {
		return nil, fmt.Errorf("stat catalog root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalog root %s is not a directory", real)
	}
	return &LocalCatalog{root: real}, nil
}

// Root returns the canonical base directory.
func (c *LocalCatalog) Root() string { return c.root }

// Resolve maps fileID to an absolute path inside the root.
func (c *LocalCatalog) Resolve(ctx context.Context, fileID string) (relay.ResolvedFile, error) {
	if err := ctx.Err(); err != nil {
		return relay.ResolvedFile{}, err
	}
	if !validName(fileID) {
		return relay.ResolvedFile{}, notFound(fileID)
	}

	// symlinks are followed, then the target must still be inside root
	real, err := filepath.EvalSymlinks(filepath.Join(c.root, fileID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return relay.ResolvedFile{}, notFound(fileID)
		}
		return relay.ResolvedFile{}, fmt.Errorf("resolving %s: %w", fileID, err)
	}
	if !c.contains(real) {
		return relay.ResolvedFile{}, notFound(fileID)
	}

	info, err := os.Stat(real)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return relay.ResolvedFile{}, notFound(fileID)
		}
		return relay.ResolvedFile{}, fmt.Errorf("stat %s: %w", fileID, err)
	}
	if !info.Mode().IsRegular() {
		return relay.ResolvedFile{}, notFound(fileID)
	}

	return relay.ResolvedFile{
		Name:        fileID,
		Location:    real,
		ContentType: relay.ContentTypeCSV,
		Size:        info.Size(),
	}, nil
}

// Open opens a file previously returned by Resolve.
func (c *LocalCatalog) Open(ctx context.Context, f relay.ResolvedFile) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.contains(f.Location) {
		return nil, notFound(f.Name)
	}
	fh, err := os.Open(f.Location)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(f.Name)
		}
		return nil, fmt.Errorf("opening %s: %w", f.Name, err)
	}
	return fh, nil
}

// List returns the regular .csv files directly under root, sorted by name.
func (c *LocalCatalog) List(ctx context.Context) ([]relay.FileEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, fmt.Errorf("reading catalog root: %w", err)
	}

	files := make([]relay.FileEntry, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || !isCSV(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		files = append(files, relay.FileEntry{
			Name:       e.Name(),
			Size:       info.Size(),
			ModifiedAt: info.ModTime().UTC(),
		})
	}
	return files, nil
}

func (c *LocalCatalog) contains(p string) bool {
	rel, err := filepath.Rel(c.root, p)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "."
}
