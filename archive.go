// Package fsg reads FSG file-system images: a directory tree and its file
// contents packed into one image, optionally split over numbered part files
// (name.part0, name.part1, …).
//
// IMPLEMENTATION:
// The image index stores no names, only 32-bit path hashes mapped to small
// table records that hold each object's sector-scaled offset and size. Open
// memory-maps all parts into a single PartReader, decodes the header and the
// hash index once, and keeps the resulting hash → FileNode map in memory.
//
// Names are recovered by walking directory listings from the root listing at
// the header's base offset. Each listed name is joined to its parent path,
// hashed, and only accepted when the hash is present in the index; listed
// names whose hash is unknown are skipped. Walk exposes that resolution,
// Extract writes the resolved tree to disk, and Stat/ReadFile/OpenFile look
// up a single path by hash without walking.
//
// Parsed listings are kept in an adaptive replacement cache (ARC) and small
// file reads in an LRU window. File data is read through ReadAt, so
// concurrent readers never contend for the stream cursor; listing reads move
// the cursor and are serialized internally.
package fsg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

const defaultMaxDepth = 64

// Archive is an opened FSG image.
//
// All methods are safe for concurrent use. After Close the Archive must not
// be used.
type Archive struct {
	// stream is the logical view over every part. Its cursor is guarded by mu.
	stream *PartReader
	mu     sync.Mutex

	header Header

	// nodes maps every index hash to its decoded location. Immutable after
	// open.
	nodes map[PathHash]FileNode

	// listings caches parsed directory listings by offset.
	listings *listingCache

	// window caches small file contents for ReadFile. May be nil.
	window *fileWindow

	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error

	// configuration
	workers       int
	maxDepth      int
	cacheSize     int
	windowEntries int
}

// ArchiveOption configures an Archive during Open or NewArchive.
type ArchiveOption func(*Archive)

// WithLogger routes the archive's diagnostics to logger. By default nothing
// is logged.
func WithLogger(logger *slog.Logger) ArchiveOption {
	return func(a *Archive) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithIndexWorkers bounds the number of concurrent table-record reads while
// the index is built. Zero or less uses GOMAXPROCS.
func WithIndexWorkers(n int) ArchiveOption {
	return func(a *Archive) { a.workers = n }
}

// WithMaxDepth sets the maximum directory nesting followed by Walk and
// Extract. The default is 64.
func WithMaxDepth(depth int) ArchiveOption {
	return func(a *Archive) {
		if depth > 0 {
			a.maxDepth = depth
		}
	}
}

// WithListingCacheSize sets how many parsed directory listings are kept.
func WithListingCacheSize(n int) ArchiveOption {
	return func(a *Archive) { a.cacheSize = n }
}

// WithFileWindow sets how many small files ReadFile keeps in memory. Zero
// disables the window.
func WithFileWindow(n int) ArchiveOption {
	return func(a *Archive) { a.windowEntries = n }
}

// Open opens the image at path, including any continuation parts when path
// ends in ".part0", and decodes its header and index.
//
// Open fails with ErrNotFound when path does not exist, ErrInvalidFormat on
// a signature mismatch and ErrTruncated when the header or index extends
// beyond the available parts.
func Open(path string, opts ...ArchiveOption) (*Archive, error) {
	paths, err := DiscoverParts(path)
	if err != nil {
		return nil, err
	}
	stream, err := OpenParts(paths...)
	if err != nil {
		return nil, err
	}
	a, err := NewArchive(stream, opts...)
	if err != nil {
		_ = stream.Close()
		return nil, err
	}
	a.log().Debug("opened image", slog.String("path", path), slog.Int("parts", len(paths)))
	return a, nil
}

// NewArchive decodes the header and index from stream. The Archive takes
// ownership of stream and closes it on Close; on error the caller keeps
// ownership.
func NewArchive(stream *PartReader, opts ...ArchiveOption) (*Archive, error) {
	a := &Archive{
		stream:        stream,
		maxDepth:      defaultMaxDepth,
		cacheSize:     defaultListingCacheSize,
		windowEntries: defaultWindowEntries,
	}
	for _, o := range opts {
		o(a)
	}

	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind stream: %w", err)
	}
	h, err := ReadHeader(stream)
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	a.header = h

	entries, err := readIndexEntries(stream, h.FileCount)
	if err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}
	a.nodes, err = buildNodes(context.Background(), stream, h.BaseOffset, entries, a.workers)
	if err != nil {
		return nil, fmt.Errorf("resolving index: %w", err)
	}

	if a.listings, err = newListingCache(stream, &a.mu, a.cacheSize); err != nil {
		return nil, fmt.Errorf("failed to create listing cache: %w", err)
	}
	if a.window, err = newFileWindow(a.windowEntries); err != nil {
		return nil, fmt.Errorf("failed to create file window: %w", err)
	}

	a.log().Debug("decoded index",
		slog.Int("entries", len(a.nodes)),
		slog.Uint64("file_count", uint64(h.FileCount)),
		slog.Int64("base_offset", int64(h.BaseOffset)),
	)
	return a, nil
}

func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return a.logger
}

// Header returns the decoded image header.
func (a *Archive) Header() Header { return a.header }

// Len returns the number of distinct hashes in the index.
func (a *Archive) Len() int { return len(a.nodes) }

// Size returns the combined length of all parts in bytes.
func (a *Archive) Size() int64 { return a.stream.Size() }

// NumParts reports how many part files back the image.
func (a *Archive) NumParts() int { return a.stream.NumParts() }

// Root returns the offset of the root directory listing.
func (a *Archive) Root() int64 { return int64(a.header.BaseOffset) }

// Lookup returns the node indexed under the hash of path.
//
// A hit proves only that some object hashes to the same value; Walk is the
// authority on whether path names a file or a directory.
func (a *Archive) Lookup(path string) (FileNode, bool) {
	n, ok := a.nodes[HashPath(path)]
	return n, ok
}

// Hashes returns every hash in the index, in no particular order.
func (a *Archive) Hashes() []PathHash {
	out := make([]PathHash, 0, len(a.nodes))
	for h := range a.nodes {
		out = append(out, h)
	}
	return out
}

// Stat returns the node for path, failing with ErrNotFound when its hash is
// not in the index.
func (a *Archive) Stat(path string) (FileNode, error) {
	n, ok := a.Lookup(path)
	if !ok {
		return FileNode{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return n, nil
}

// OpenFile returns a reader over the data range of the file at path.
//
// The reader uses ReadAt on the underlying parts and may be used
// concurrently with other archive operations. A range that extends past the
// end of the stream fails with ErrTruncated.
func (a *Archive) OpenFile(path string) (*io.SectionReader, error) {
	n, err := a.Stat(path)
	if err != nil {
		return nil, err
	}
	if err := a.checkRange(n); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return io.NewSectionReader(a.stream, n.Offset, n.Size), nil
}

// ReadFile returns the complete contents of the file at path.
func (a *Archive) ReadFile(path string) ([]byte, error) {
	h := HashPath(path)
	if b, ok := a.window.lookup(h); ok {
		return bytes.Clone(b), nil
	}

	sr, err := a.OpenFile(path)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, sr.Size())
	if _, err := io.ReadFull(sr, buf); err != nil {
		return nil, truncated(err, "reading "+path)
	}
	a.window.add(h, bytes.Clone(buf))
	return buf, nil
}

// checkRange reports ErrTruncated when n extends past the end of the stream.
func (a *Archive) checkRange(n FileNode) error {
	if n.Offset < 0 || n.Size < 0 || n.End() > a.stream.Size() {
		return fmt.Errorf("%w: data %s exceeds stream length %d", ErrTruncated, n, a.stream.Size())
	}
	return nil
}

// Close releases every part file.
//
// Calling Close multiple times is safe; every call returns the result of the
// first.
func (a *Archive) Close() error {
	if a == nil {
		return nil
	}
	a.closeOnce.Do(func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.closeErr = a.stream.Close()
	})
	return a.closeErr
}
