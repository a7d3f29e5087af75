// listing.go
//
// Directory listings are sequences of NUL-terminated names closed by an empty
// name. Each name starts with a one-byte marker: 'D' for a sub-directory,
// anything else for a regular file. Names are single-byte (Latin-1) strings.

package fsg

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding/charmap"
)

// dirMarker flags a listing entry as a sub-directory.
const dirMarker = 'D'

// DirEntry is one name read from a directory listing.
type DirEntry struct {
	// Name is the entry name without its marker byte, decoded from Latin-1.
	Name string

	// Marker is the raw first byte of the listing token.
	Marker byte
}

// IsDir reports whether the entry names a sub-directory.
func (e DirEntry) IsDir() bool { return e.Marker == dirMarker }

// listingIter is a forward-only iterator over one directory listing.
//
// It reads straight from a buffered view of the stream and must stay confined
// to the goroutine that owns the stream cursor.
type listingIter struct {
	br *bufio.Reader
}

func newListingIter(br *bufio.Reader) *listingIter { return &listingIter{br: br} }

// Next returns the next entry in the listing.
//
// When ok is false the terminating empty name was reached and, by
// convention, err is io.EOF. A stream that ends before the terminator yields
// ok == false and an error wrapping ErrTruncated.
func (it *listingIter) Next() (e DirEntry, ok bool, err error) {
	tok, err := it.br.ReadBytes(0)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return DirEntry{}, false, fmt.Errorf(
				"%w: listing not terminated (%d trailing bytes)", ErrTruncated, len(tok),
			)
		}
		return DirEntry{}, false, err
	}

	tok = tok[:len(tok)-1] // drop NUL
	if len(tok) == 0 {
		return DirEntry{}, false, io.EOF
	}

	return DirEntry{Marker: tok[0], Name: decodeName(tok[1:])}, true, nil
}

// decodeName converts a Latin-1 byte string into a Go string. ASCII input,
// by far the common case, is converted without going through the decoder.
// The slice must not be reused by the caller afterwards.
func decodeName(b []byte) string {
	for _, c := range b {
		if c >= 0x80 {
			s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
			if err != nil {
				// Every byte has a Latin-1 code point; this cannot fail.
				return string(b)
			}
			return btostr(s)
		}
	}
	return btostr(b)
}

// readListing reads the complete listing starting at off.
//
// The listing is consumed before any entry is returned so the caller is free
// to move the stream cursor while processing entries.
func readListing(r *PartReader, off int64) ([]DirEntry, error) {
	if off >= r.Size() {
		return nil, fmt.Errorf("%w: listing at %#x beyond end of stream (%d bytes)", ErrTruncated, off, r.Size())
	}
	if _, err := r.Seek(off, io.SeekStart); err != nil {
		return nil, err
	}

	br := getBR(r)
	defer putBR(br)

	var entries []DirEntry
	it := newListingIter(br)
	for {
		e, ok, err := it.Next()
		if !ok {
			if err == io.EOF {
				return entries, nil
			}
			return nil, err
		}
		entries = append(entries, e)
	}
}
