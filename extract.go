package fsg

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// DefaultOutputDir is the directory the command-line extractor writes to.
const DefaultOutputDir = "out"

// Progress is a snapshot passed to a progress callback. Done counts one unit
// per directory visited (the root included) and one per file written; Total
// is the header's file count and may be smaller than Done.
type Progress struct {
	Done  int
	Total int
	Path  string
}

// ExtractStats summarizes a finished extraction.
type ExtractStats struct {
	Dirs    int
	Files   int
	Skipped int
	Bytes   int64
	Elapsed time.Duration
}

// ExtractOption configures a single Extract call.
type ExtractOption func(*extractConfig)

type extractConfig struct {
	skipExisting bool
	progress     func(Progress)
	logger       *slog.Logger
}

// WithSkipExisting leaves files that already exist at their destination
// untouched. By default existing files are replaced.
func WithSkipExisting(skip bool) ExtractOption {
	return func(c *extractConfig) { c.skipExisting = skip }
}

// WithProgress registers fn to be called after every unit of work. fn runs on
// the extracting goroutine and should return quickly.
func WithProgress(fn func(Progress)) ExtractOption {
	return func(c *extractConfig) { c.progress = fn }
}

// WithExtractLogger overrides the archive's logger for one extraction.
func WithExtractLogger(logger *slog.Logger) ExtractOption {
	return func(c *extractConfig) { c.logger = logger }
}

// Extract writes the resolved directory tree below destDir.
//
// Directories are created for every resolved directory entry, including
// empty ones. Every file is written to a temporary file next to its
// destination and renamed into place once its full size has been copied, so
// a failed run never leaves a partially written file behind.
//
// The first failure aborts the run: there is no retry and no skipping of
// the offending subtree. Errors are *ExtractionError values wrapping the
// cause (ErrTruncated, ErrUnsafePath, ErrTooDeep or an OS error). Listing
// names whose hash is not in the index are skipped silently.
func (a *Archive) Extract(ctx context.Context, destDir string, opts ...ExtractOption) (ExtractStats, error) {
	cfg := extractConfig{logger: a.log()}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	start := time.Now()
	var st ExtractStats
	done := 0
	report := func(path string) {
		done++
		if cfg.progress != nil {
			cfg.progress(Progress{Done: done, Total: int(a.header.FileCount), Path: path})
		}
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return st, &ExtractionError{Op: "create output root", Path: "/", Err: err}
	}
	st.Dirs++
	report("")

	err := a.Walk(func(e Entry) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		local := filepath.FromSlash(e.Path)
		if !filepath.IsLocal(local) {
			return &ExtractionError{Op: "resolve path", Path: e.Path, Err: ErrUnsafePath}
		}
		dest := filepath.Join(destDir, local)

		if e.IsDir {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return &ExtractionError{Op: "create directory", Path: e.Path, Err: err}
			}
			st.Dirs++
			report(e.Path)
			return nil
		}

		if cfg.skipExisting {
			if _, err := os.Lstat(dest); err == nil {
				cfg.logger.Debug("skip existing file", slog.String("path", e.Path))
				st.Skipped++
				report(e.Path)
				return nil
			}
		}

		if err := a.extractFile(e, dest); err != nil {
			return &ExtractionError{Op: "write file", Path: e.Path, Err: err}
		}
		cfg.logger.Debug("extracted file",
			slog.String("path", e.Path),
			slog.Int64("offset", e.Node.Offset),
			slog.Int64("size", e.Node.Size),
		)
		st.Files++
		st.Bytes += e.Node.Size
		report(e.Path)
		return nil
	})
	st.Elapsed = time.Since(start)
	if err != nil {
		cfg.logger.Debug("extraction aborted", slog.Int("files", st.Files), slog.Any("error", err))
		return st, err
	}

	cfg.logger.Info("extraction complete",
		slog.String("dest", destDir),
		slog.Int("dirs", st.Dirs),
		slog.Int("files", st.Files),
		slog.Int64("bytes", st.Bytes),
		slog.Duration("elapsed", st.Elapsed),
	)
	return st, nil
}

// extractFile copies e's data range to dest through a temporary file in the
// same directory, renaming it into place only after exactly Node.Size bytes
// were written.
func (a *Archive) extractFile(e Entry, dest string) (err error) {
	if err := a.checkRange(e.Node); err != nil {
		return err
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".fsg-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	src := io.NewSectionReader(a.stream, e.Node.Offset, e.Node.Size)
	n, err := io.Copy(tmp, src)
	if err != nil {
		return truncated(err, "copying file data")
	}
	if n != e.Node.Size {
		return fmt.Errorf("%w: copied %d of %d bytes", ErrTruncated, n, e.Node.Size)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	// CreateTemp uses 0600; give extracted files the usual default.
	if err = os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
