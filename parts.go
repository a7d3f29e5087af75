// parts.go
//
// FSG images may be split across several numbered part files. PartReader
// stitches any number of parts back into one logical, seekable byte stream.

package fsg

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/exp/mmap"
)

// firstPartExt is the extension that triggers discovery of continuation parts.
const firstPartExt = ".part0"

// SizedReaderAt is a random-access byte source with a fixed length, such as
// *bytes.Reader, *io.SectionReader or *os.File wrapped in a SectionReader.
type SizedReaderAt interface {
	io.ReaderAt
	Size() int64
}

// part is one physical slice of the logical stream.
type part struct {
	r    io.ReaderAt
	size int64

	// closer releases the part's resources; nil for in-memory parts.
	closer io.Closer
}

// mmapPart adapts *mmap.ReaderAt, whose length accessor is Len, to a part.
func mmapPart(m *mmap.ReaderAt) part {
	return part{r: m, size: int64(m.Len()), closer: m}
}

// PartReader presents an ordered set of parts as one continuous stream whose
// length is the sum of all part lengths.
//
// Logical position p belongs to the first non-empty part whose end lies
// beyond p. Read and Seek share a single cursor and are therefore not safe for
// concurrent use; ReadAt does not touch the cursor and may be called from
// multiple goroutines as long as the parts themselves allow it (memory-mapped
// and in-memory parts do).
//
// The reader exclusively owns its parts. Close releases all of them.
type PartReader struct {
	parts []part

	// starts[i] is the logical offset at which parts[i] begins.
	starts []int64
	total  int64

	// idx and local locate the cursor: the part currently read from and the
	// offset within it. idx == len(parts) once every part is exhausted.
	idx   int
	local int64
	pos   int64

	closed bool
}

// NewPartReader builds a PartReader from in-memory or otherwise caller-owned
// sources. Sources that also implement io.Closer are closed by Close.
func NewPartReader(sources ...SizedReaderAt) *PartReader {
	parts := make([]part, len(sources))
	for i, s := range sources {
		p := part{r: s, size: s.Size()}
		if c, ok := s.(io.Closer); ok {
			p.closer = c
		}
		parts[i] = p
	}
	return newPartReader(parts)
}

func newPartReader(parts []part) *PartReader {
	r := &PartReader{parts: parts, starts: make([]int64, len(parts))}
	for i, p := range parts {
		r.starts[i] = r.total
		r.total += p.size
	}
	return r
}

// OpenParts memory-maps every path, in order, and returns a PartReader over
// them. If any part fails to map, the parts already mapped are released.
func OpenParts(paths ...string) (*PartReader, error) {
	parts := make([]part, 0, len(paths))
	for _, p := range paths {
		m, err := mmap.Open(p)
		if err != nil {
			for _, done := range parts {
				_ = done.closer.Close()
			}
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
			}
			return nil, fmt.Errorf("mmap part %s: %w", p, err)
		}
		parts = append(parts, mmapPart(m))
	}
	return newPartReader(parts), nil
}

// DiscoverParts returns the list of part files that make up the image at
// path.
//
// When path ends in ".part0" the continuation parts "<stem>.part1",
// "<stem>.part2", … in the same directory are appended until the first index
// that does not exist as a regular file. Any other path is treated as a
// complete, single-part image.
//
// DiscoverParts fails with ErrNotFound when path itself is not a regular file.
func DiscoverParts(path string) ([]string, error) {
	if !isRegularFile(path) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	paths := []string{path}
	if filepath.Ext(path) != firstPartExt {
		return paths, nil
	}

	stem := strings.TrimSuffix(path, firstPartExt)
	for i := 1; ; i++ {
		next := stem + ".part" + strconv.Itoa(i)
		if !isRegularFile(next) {
			break
		}
		paths = append(paths, next)
	}
	return paths, nil
}

func isRegularFile(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

// Size returns the combined length of all parts.
func (r *PartReader) Size() int64 { return r.total }

// NumParts reports how many parts back the stream.
func (r *PartReader) NumParts() int { return len(r.parts) }

// locate maps a logical position onto (part index, offset within part).
// A position equal to the total length maps to (len(parts), 0).
func (r *PartReader) locate(p int64) (int, int64) {
	i := sort.Search(len(r.parts), func(i int) bool {
		return r.starts[i]+r.parts[i].size > p
	})
	if i == len(r.parts) {
		return i, 0
	}
	return i, p - r.starts[i]
}

// Read fills p from the current position, moving on to the next part
// whenever the current one is exhausted. It returns fewer than len(p) bytes
// only at the end of the last part.
func (r *PartReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, ErrClosed
	}

	filled := 0
	for filled < len(p) && r.idx < len(r.parts) {
		cur := r.parts[r.idx]
		if r.local >= cur.size {
			// Roll over: the next part is read from its start.
			r.idx++
			r.local = 0
			continue
		}

		want := min(int64(len(p)-filled), cur.size-r.local)
		n, err := cur.r.ReadAt(p[filled:filled+int(want)], r.local)
		filled += n
		r.local += int64(n)
		r.pos += int64(n)
		if int64(n) < want {
			if err == nil || errors.Is(err, io.EOF) {
				// The part is shorter than it was when the reader was built.
				err = io.ErrUnexpectedEOF
			}
			return filled, fmt.Errorf("read part %d: %w", r.idx, err)
		}
	}

	if filled == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return filled, nil
}

// ReadByte reads a single byte from the stream.
func (r *PartReader) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// Seek implements io.Seeker over the logical stream.
//
// Seeking to exactly Size() is allowed and leaves the reader at end of
// stream. Targets beyond Size() fail with ErrSeekPastEnd; negative targets
// fail as well. In both cases the cursor is left unchanged.
func (r *PartReader) Seek(offset int64, whence int) (int64, error) {
	if r.closed {
		return 0, ErrClosed
	}

	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = r.pos + offset
	case io.SeekEnd:
		abs = r.total + offset
	default:
		return 0, fmt.Errorf("fsg: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("fsg: negative position %d", abs)
	}
	if abs > r.total {
		return 0, fmt.Errorf("%w: %d > %d", ErrSeekPastEnd, abs, r.total)
	}

	r.idx, r.local = r.locate(abs)
	r.pos = abs
	return abs, nil
}

// ReadAt implements io.ReaderAt over the logical stream without moving the
// shared cursor.
func (r *PartReader) ReadAt(p []byte, off int64) (int, error) {
	if r.closed {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("fsg: negative offset %d", off)
	}

	idx, local := r.locate(off)
	filled := 0
	for filled < len(p) && idx < len(r.parts) {
		cur := r.parts[idx]
		if local >= cur.size {
			idx++
			local = 0
			continue
		}
		want := min(int64(len(p)-filled), cur.size-local)
		n, err := cur.r.ReadAt(p[filled:filled+int(want)], local)
		filled += n
		local += int64(n)
		if int64(n) < want {
			if err == nil || errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return filled, fmt.Errorf("read part %d: %w", idx, err)
		}
	}

	if filled < len(p) {
		return filled, io.EOF
	}
	return filled, nil
}

// Close releases every part. Calling Close more than once is safe; the first
// error encountered is returned.
func (r *PartReader) Close() error {
	if r == nil || r.closed {
		return nil
	}
	r.closed = true

	var firstErr error
	for _, p := range r.parts {
		if p.closer == nil {
			continue
		}
		if err := p.closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
