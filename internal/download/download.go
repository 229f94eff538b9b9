// Package download provides packager.Downloader implementations.
package download

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"heic_converter/internal/packager"
)

// maxRenameAttempts bounds the "name (n).ext" search in Dir.
const maxRenameAttempts = 10000

var (
	_ packager.Downloader = (*Dir)(nil)
	_ packager.Downloader = (*Collector)(nil)
)

// Dir saves deliverables as files in a directory. A name that already exists is
// saved as "name (1).ext", "name (2).ext" and so on, never overwritten.
type Dir struct {
	path string
	mu   sync.Mutex
}

// NewDir returns a Dir rooted at path. The directory is created on first download.
func NewDir(path string) *Dir {
	return &Dir{path: path}
}

// Path returns the directory deliverables are written to.
func (d *Dir) Path() string { return d.path }

// Download writes del into the directory and logs where it landed.
func (d *Dir) Download(ctx context.Context, del packager.Deliverable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := filepath.Base(del.Name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return fmt.Errorf("invalid file name %q", del.Name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(d.path, 0755); err != nil {
		return fmt.Errorf("could not create output directory: %w", err)
	}

	f, path, err := d.create(name)
	if err != nil {
		return err
	}
	if _, err := f.Write(del.Data); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("could not write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("could not close %s: %w", path, err)
	}

	slog.Info("Saved file", "path", path, "size", len(del.Data), "mime", del.MIMEType)
	return nil
}

// create opens the first free variant of name for writing.
func (d *Dir) create(name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for n := 0; n < maxRenameAttempts; n++ {
		candidate := name
		if n > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", base, n, ext)
		}
		path := filepath.Join(d.path, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("could not create %s: %w", path, err)
		}
	}
	return nil, "", fmt.Errorf("no free file name for %s in %s", name, d.path)
}

// Collector keeps every deliverable in memory, in the order they were downloaded.
type Collector struct {
	mu    sync.Mutex
	items []packager.Deliverable
}

// Download records del.
func (c *Collector) Download(_ context.Context, del packager.Deliverable) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, del)
	return nil
}

// Deliverables returns a copy of what has been collected so far.
func (c *Collector) Deliverables() []packager.Deliverable {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]packager.Deliverable, len(c.items))
	copy(out, c.items)
	return out
}
