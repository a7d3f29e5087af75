package fsg

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
)

var (
	// ErrNotFound reports a missing archive, part or archive path. It wraps
	// fs.ErrNotExist so callers can test for either.
	ErrNotFound = fmt.Errorf("fsg: %w", fs.ErrNotExist)

	// ErrInvalidFormat is returned when the image does not start with the
	// FSG signature.
	ErrInvalidFormat = errors.New("fsg: invalid file header")

	// ErrTruncated is returned when the stream ends before a fixed-width
	// field, a listing terminator or the end of a file's data range.
	ErrTruncated = errors.New("fsg: truncated input")

	// ErrSeekPastEnd is returned by PartReader.Seek for a target beyond the
	// combined length of all parts.
	ErrSeekPastEnd = errors.New("fsg: seek past end of all parts")

	// ErrTooDeep is returned when directory nesting exceeds the configured
	// maximum depth, which also stops listings that refer back to an
	// ancestor.
	ErrTooDeep = errors.New("fsg: directory nesting too deep")

	// ErrUnsafePath is returned when a resolved path would land outside the
	// extraction root.
	ErrUnsafePath = errors.New("fsg: unsafe path")

	// ErrClosed is returned for operations on a closed reader or archive.
	ErrClosed = errors.New("fsg: use of closed archive")
)

// ExtractionError records the operation and archive path that failed while
// walking or extracting an image.
type ExtractionError struct {
	// Op names the failing step, e.g. "read listing" or "write file".
	Op string

	// Path is the archive-relative path being processed. The root directory
	// is reported as "/".
	Path string

	// Err is the underlying cause.
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// truncated maps end-of-stream conditions reported by io.ReadFull and friends
// onto ErrTruncated, annotating them with what was being read. Other errors
// are wrapped unchanged.
func truncated(err error, what string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s", ErrTruncated, what)
	}
	return fmt.Errorf("%s: %w", what, err)
}
