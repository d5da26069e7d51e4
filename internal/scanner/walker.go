package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// FileEntry describes one filesystem entry yielded by an Enumerator.
// Only regular files are yielded, so IsDir is false for every entry
// produced by the bundled Walker. Readability is not probed up front;
// access failures surface when the file is opened for hashing.
type FileEntry struct {
	FullPath    string
	Name        string
	SizeBytes   uint64
	CreatedUTC  time.Time
	ModifiedUTC time.Time
	IsDir       bool
}

// EnumerateOptions controls traversal behavior.
type EnumerateOptions struct {
	// Recurse descends into subdirectories; when false only the root's
	// direct children are considered.
	Recurse bool
	// IncludeHidden keeps dot-prefixed files and descends into
	// dot-prefixed directories.
	IncludeHidden bool
}

// Enumerator supplies the files under a search root. Traversal order
// is whatever the implementation yields; callers must not rely on it.
type Enumerator interface {
	Enumerate(ctx context.Context, root string, opts EnumerateOptions) ([]FileEntry, error)
}

// Walker is the filesystem-backed Enumerator. Per-entry traversal
// errors are logged and skipped; only a root that cannot be visited at
// all fails the enumeration.
type Walker struct {
	Logger *logrus.Logger
}

func NewWalker(logger *logrus.Logger) *Walker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Walker{Logger: logger}
}

func (w *Walker) Enumerate(ctx context.Context, root string, opts EnumerateOptions) ([]FileEntry, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}

	// A file root yields itself.
	if !info.IsDir() {
		if !info.Mode().IsRegular() {
			w.Logger.WithField("path", root).Warn("Skipping non-regular file root")
			return nil, nil
		}
		return []FileEntry{newFileEntry(root, info)}, nil
	}

	if opts.Recurse {
		return w.walk(ctx, root, opts)
	}
	return w.listDir(ctx, root, opts)
}

// walk traverses the whole subtree under root.
func (w *Walker) walk(ctx context.Context, root string, opts EnumerateOptions) ([]FileEntry, error) {
	var entries []FileEntry

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			w.Logger.WithError(err).WithField("path", path).Warn("Skipping unreadable entry")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		hidden := isHidden(d.Name()) && path != root
		if d.IsDir() {
			if hidden && !opts.IncludeHidden {
				return fs.SkipDir
			}
			return nil
		}
		if hidden && !opts.IncludeHidden {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			w.Logger.WithError(infoErr).WithField("path", path).Warn("Skipping entry without attributes")
			return nil
		}
		entries = append(entries, newFileEntry(path, info))
		return nil
	})
	if err != nil {
		return entries, err
	}
	return entries, nil
}

// listDir yields only the direct children of root.
func (w *Walker) listDir(ctx context.Context, root string, opts EnumerateOptions) ([]FileEntry, error) {
	children, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var entries []FileEntry
	for _, child := range children {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return entries, ctxErr
		}
		if child.IsDir() || !child.Type().IsRegular() {
			continue
		}
		if isHidden(child.Name()) && !opts.IncludeHidden {
			continue
		}
		info, infoErr := child.Info()
		if infoErr != nil {
			w.Logger.WithError(infoErr).WithField("path", filepath.Join(root, child.Name())).Warn("Skipping entry without attributes")
			continue
		}
		entries = append(entries, newFileEntry(filepath.Join(root, child.Name()), info))
	}
	return entries, nil
}

func newFileEntry(path string, info os.FileInfo) FileEntry {
	created, modified := fileTimes(info)
	return FileEntry{
		FullPath:    path,
		Name:        info.Name(),
		SizeBytes:   uint64(info.Size()),
		CreatedUTC:  created,
		ModifiedUTC: modified,
		IsDir:       info.IsDir(),
	}
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
