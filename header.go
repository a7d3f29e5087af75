package fsg

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// On-disk layout constants. All multi-byte fields are big-endian.
const (
	// Magic is the 16-byte signature every FSG image starts with.
	Magic = "FSG-FILE-SYSTEM\x00"

	magicSize       = len(Magic)
	headerFieldSize = 10 * 4                     // ten big-endian uint32 fields after the magic.
	HeaderSize      = magicSize + headerFieldSize // 56 bytes; index entries follow immediately.
	indexEntrySize  = 8                          // hash[4] + reserved[1] + table offset[3].
	tableRecordSize = 8                          // raw offset[4] + size[4].

	// SectorShift converts the sector-granular raw offset of a table record
	// into bytes: absolute = base + raw<<SectorShift.
	SectorShift = 10
	SectorSize  = 1 << SectorShift
)

// Header is the fixed-layout header at the start of an FSG image.
//
// Fields named Unknown* are read to keep the cursor aligned but carry no
// interpreted meaning. They are preserved verbatim for inspection.
type Header struct {
	Unknown0 uint32

	// HeaderLength, SectorCount and SectorMapOffset are recorded by the
	// image but not needed for extraction.
	HeaderLength    uint32
	SectorCount     uint32
	SectorMapOffset uint32

	// BaseOffset is where the root directory listing and the
	// sector-addressed file data region begin.
	BaseOffset uint32

	Unknown1 uint32
	Unknown2 uint32

	// FileCount is the number of index entries following the header.
	FileCount uint32

	Unknown3 uint32

	// Checksum is stored as-is; its algorithm is not known and it is not
	// verified.
	Checksum uint32
}

// ReadHeader reads and validates the header from r, which must be positioned
// at the start of the image.
//
// The signature is checked before anything else is read: on mismatch
// ReadHeader fails with ErrInvalidFormat and consumes exactly the 16 magic
// bytes. A stream that ends early fails with ErrTruncated.
func ReadHeader(r io.Reader) (Header, error) {
	var h Header

	var magic [magicSize]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return h, truncated(err, "reading signature")
	}
	if !bytes.Equal(magic[:], []byte(Magic)) {
		return h, fmt.Errorf("%w: bad signature %q", ErrInvalidFormat, magic[:])
	}

	var buf [headerFieldSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return h, truncated(err, "reading header fields")
	}

	fields := []*uint32{
		&h.Unknown0,
		&h.HeaderLength,
		&h.SectorCount,
		&h.SectorMapOffset,
		&h.BaseOffset,
		&h.Unknown1,
		&h.Unknown2,
		&h.FileCount,
		&h.Unknown3,
		&h.Checksum,
	}
	for i, f := range fields {
		*f = binary.BigEndian.Uint32(buf[i*4:])
	}
	return h, nil
}
