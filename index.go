package fsg

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// indexEntry is one row of the hash table that follows the header.
type indexEntry struct {
	// tableOffset is the byte offset of the entry's 8-byte table record.
	// It is stored on disk as a 24-bit big-endian value.
	tableOffset uint32

	// reserved is the single byte between the hash and the table offset.
	// Its meaning is unknown; it is kept for inspection only.
	reserved byte
}

// readIndexEntries reads count 8-byte index entries from r, which must be
// positioned directly after the header.
//
// Entries are keyed by hash; a duplicated hash keeps the last entry read.
// A stream that holds fewer than count entries fails with ErrTruncated.
func readIndexEntries(r io.Reader, count uint32) (map[PathHash]indexEntry, error) {
	br := getBR(r)
	defer putBR(br)

	entries := make(map[PathHash]indexEntry, min(count, 1<<16))
	var buf [indexEntrySize]byte
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(br, buf[:]); err != nil {
			return nil, truncated(err, fmt.Sprintf("reading index entry %d of %d", i, count))
		}
		h := PathHash(binary.BigEndian.Uint32(buf[0:4]))
		entries[h] = indexEntry{
			reserved:    buf[4],
			tableOffset: uint32(buf[5])<<16 | uint32(buf[6])<<8 | uint32(buf[7]),
		}
	}
	return entries, nil
}

// buildNodes resolves every index entry's table record into a FileNode.
//
// Records are independent of each other, so they are read concurrently
// through ReadAt, which leaves the stream's shared cursor untouched. workers
// bounds the number of concurrent reads; zero or less uses GOMAXPROCS.
// The first failing record aborts the whole pass.
func buildNodes(
	ctx context.Context,
	r io.ReaderAt,
	base uint32,
	entries map[PathHash]indexEntry,
	workers int,
) (map[PathHash]FileNode, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	hashes := make([]PathHash, 0, len(entries))
	for h := range entries {
		hashes = append(hashes, h)
	}
	nodes := make([]FileNode, len(hashes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, h := range hashes {
		i, h := i, h
		off := int64(entries[h].tableOffset)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec [tableRecordSize]byte
			if n, err := r.ReadAt(rec[:], off); n < len(rec) {
				if err == nil {
					err = io.ErrUnexpectedEOF
				}
				return truncated(err, fmt.Sprintf("reading table record for %s at %#x", h, off))
			}
			nodes[i] = nodeFromRecord(
				base,
				binary.BigEndian.Uint32(rec[0:4]),
				binary.BigEndian.Uint32(rec[4:8]),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[PathHash]FileNode, len(hashes))
	for i, h := range hashes {
		out[h] = nodes[i]
	}
	return out, nil
}
