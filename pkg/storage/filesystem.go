package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mlvault/artifactfs/internal/logger"
)

// FileSystem is the uniform storage facade consumed by the card registry,
// server routes and the client SDK. Recursive operations are implemented
// here in terms of the per-object primitives of the selected backend.
//
// Per-file work on recursive transfers fans out to at most maxParallel
// goroutines; the first failure cancels siblings and is reported to the
// caller. File-completion order is unspecified.
type FileSystem struct {
	client      Client
	maxParallel int
}

// NewFileSystem wraps a backend client. maxParallel <= 0 selects the default
// fan-out bound.
func NewFileSystem(client Client, maxParallel int) *FileSystem {
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallel
	}
	return &FileSystem{client: client, maxParallel: maxParallel}
}

// Client exposes the underlying backend client.
func (f *FileSystem) Client() Client { return f.client }

// Name returns the backend type name.
func (f *FileSystem) Name() string { return string(f.client.StorageType()) }

// Find lists object names under the given prefix.
func (f *FileSystem) Find(ctx context.Context, p string) ([]string, error) {
	return f.client.Find(ctx, f.strip(p))
}

// FindInfo lists objects under the prefix with per-object metadata.
func (f *FileSystem) FindInfo(ctx context.Context, p string) ([]FileInfo, error) {
	return f.client.FindInfo(ctx, f.strip(p))
}

// Get downloads one object, or every object under rpath when recursive,
// preserving relative structure under lpath. Each file is fetched
// independently; files already written are not rolled back on failure.
func (f *FileSystem) Get(ctx context.Context, lpath, rpath string, recursive bool) error {
	rpath = f.strip(rpath)

	if !recursive {
		return f.client.GetObject(ctx, lpath, rpath)
	}

	objects, err := f.client.Find(ctx, rpath)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", rpath, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.maxParallel)

	for _, obj := range objects {
		remote := f.strip(obj)
		local := filepath.Join(lpath, filepath.FromSlash(RelativePath(remote, rpath)))
		g.Go(func() error {
			return f.client.GetObject(ctx, local, remote)
		})
	}

	return g.Wait()
}

// Put uploads one file, or (recursive) every file under lpath, preserving
// relative structure under rpath. Recursive puts require lpath to be a
// directory.
func (f *FileSystem) Put(ctx context.Context, lpath, rpath string, recursive bool) error {
	rpath = f.strip(rpath)

	if !recursive {
		return f.client.PutFile(ctx, lpath, rpath)
	}

	fi, err := os.Stat(lpath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", lpath, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: recursive put requires a directory, got %s", ErrInvalidArgument, lpath)
	}

	files, err := ListLocalFiles(lpath)
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", lpath, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.maxParallel)

	for _, file := range files {
		rel, err := filepath.Rel(lpath, file)
		if err != nil {
			return fmt.Errorf("failed to relativize %s: %w", file, err)
		}
		remote := path.Join(rpath, filepath.ToSlash(rel))
		g.Go(func() error {
			return f.client.PutFile(ctx, file, remote)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Debug("put complete", "backend", f.Name(), "files", len(files), "remote", rpath)
	return nil
}

// Copy performs a server-side copy without deleting the source. Recursive
// copy enumerates the source prefix and copies each object to the relocated
// destination path.
func (f *FileSystem) Copy(ctx context.Context, src, dest string, recursive bool) error {
	src = f.strip(src)
	dest = f.strip(dest)

	if !recursive {
		return f.client.CopyObject(ctx, src, dest)
	}

	objects, err := f.client.Find(ctx, src)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", src, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.maxParallel)

	for _, obj := range objects {
		from := f.strip(obj)
		to := path.Join(dest, RelativePath(from, src))
		g.Go(func() error {
			return f.client.CopyObject(ctx, from, to)
		})
	}

	return g.Wait()
}

// Rm deletes one object, or every object under the prefix when recursive.
func (f *FileSystem) Rm(ctx context.Context, p string, recursive bool) error {
	p = f.strip(p)
	if recursive {
		return f.client.DeleteObjects(ctx, p)
	}
	return f.client.DeleteObject(ctx, p)
}

// Exists reports whether at least one object lives at or under the path.
func (f *FileSystem) Exists(ctx context.Context, p string) (bool, error) {
	objects, err := f.client.Find(ctx, f.strip(p))
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return len(objects) > 0, nil
}

// GeneratePresignedURL returns a time-limited GET URL for the object. The
// local backend degrades to the absolute filesystem path.
func (f *FileSystem) GeneratePresignedURL(ctx context.Context, p string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}
	return f.client.GeneratePresignedURL(ctx, f.strip(p), expiry)
}

func (f *FileSystem) strip(p string) string {
	return StripBucket(p, f.client.Bucket())
}
