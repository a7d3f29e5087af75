package fsg

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// fixture describes one node of a synthetic directory tree.
type fixture struct {
	name     string
	dir      bool
	data     []byte
	children []fixture

	// marker overrides the listing marker byte ('D' for dirs, 'F' otherwise).
	marker byte

	// unindexed leaves the node out of the hash index while keeping it in
	// its parent's listing.
	unindexed bool
}

func dirNode(name string, children ...fixture) fixture {
	return fixture{name: name, dir: true, children: children}
}

func fileNode(name, data string) fixture {
	return fixture{name: name, data: []byte(data)}
}

// imageLayout collects everything buildImage lays out.
type imageLayout struct {
	root []fixture

	// orphans are indexed blobs that no listing refers to.
	orphans [][]byte

	// extraEntries appends raw index entries (hash, table offset) that are
	// written verbatim after the generated ones.
	extraEntries [][2]uint32

	// fileCount overrides the header file count when non-zero.
	fileCount uint32
}

type layoutNode struct {
	hash    PathHash
	content []byte
	sector  uint32
	size    uint32
}

// buildImage lays out a complete FSG image:
//
//	header | index entries | table records | pad to sector | root listing | nodes…
//
// The base offset is the first sector boundary after the table records. The
// root listing starts at the base offset; every other listing and file body
// starts on its own sector after it.
func buildImage(t testing.TB, l imageLayout) []byte {
	t.Helper()

	var nodes []layoutNode
	var rootListing []byte

	var add func(prefix string, fs []fixture) []byte
	add = func(prefix string, fs []fixture) []byte {
		var listing []byte
		for _, f := range fs {
			marker := f.marker
			if marker == 0 {
				marker = 'F'
				if f.dir {
					marker = dirMarker
				}
			}
			listing = append(listing, marker)
			listing = append(listing, latin1(f.name)...)
			listing = append(listing, 0)

			path := joinPath(prefix, f.name)
			content := f.data
			if f.dir {
				content = add(path, f.children)
			}
			if !f.unindexed {
				nodes = append(nodes, layoutNode{hash: HashPath(path), content: content, size: uint32(len(f.data))})
			}
		}
		return append(listing, 0)
	}
	rootListing = add("", l.root)

	for _, o := range l.orphans {
		nodes = append(nodes, layoutNode{hash: PathHash(0xdead0000 + uint32(len(nodes))), content: o, size: uint32(len(o))})
	}

	entryCount := len(nodes) + len(l.extraEntries)
	tableStart := HeaderSize + entryCount*indexEntrySize
	base := roundUp(tableStart+len(nodes)*tableRecordSize, SectorSize)

	sector := uint32(sectorsFor(len(rootListing)))
	for i := range nodes {
		nodes[i].sector = sector
		sector += uint32(sectorsFor(len(nodes[i].content)))
	}

	img := make([]byte, base+int(sector)*SectorSize)
	copy(img, Magic)

	fileCount := uint32(entryCount)
	if l.fileCount != 0 {
		fileCount = l.fileCount
	}
	fields := []uint32{
		0xfeedface,         // unknown
		uint32(HeaderSize), // header length
		sector,             // sector count
		0,                  // sector map offset
		uint32(base),       // base offset
		0, 0,               // unknown
		fileCount,          // file count
		0,                  // unknown
		0x12345678,         // checksum
	}
	for i, v := range fields {
		binary.BigEndian.PutUint32(img[16+i*4:], v)
	}

	for i, n := range nodes {
		e := img[HeaderSize+i*indexEntrySize:]
		binary.BigEndian.PutUint32(e[0:4], uint32(n.hash))
		putUint24(e[5:8], uint32(tableStart+i*tableRecordSize))

		rec := img[tableStart+i*tableRecordSize:]
		binary.BigEndian.PutUint32(rec[0:4], n.sector)
		binary.BigEndian.PutUint32(rec[4:8], n.size)

		copy(img[base+int(n.sector)*SectorSize:], n.content)
	}
	for i, x := range l.extraEntries {
		e := img[HeaderSize+(len(nodes)+i)*indexEntrySize:]
		binary.BigEndian.PutUint32(e[0:4], x[0])
		putUint24(e[5:8], x[1])
	}

	copy(img[base:], rootListing)
	return img
}

// latin1 encodes s, whose runes must all be below U+0100, one byte per rune.
func latin1(s string) []byte {
	b := make([]byte, 0, len(s))
	for _, r := range s {
		b = append(b, byte(r))
	}
	return b
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

func roundUp(n, to int) int { return (n + to - 1) / to * to }

func sectorsFor(n int) int { return max(1, roundUp(n, SectorSize)/SectorSize) }

// split cuts img at the given offsets into in-memory parts.
func split(img []byte, cuts ...int) []SizedReaderAt {
	var parts []SizedReaderAt
	prev := 0
	for _, c := range cuts {
		parts = append(parts, bytes.NewReader(img[prev:c]))
		prev = c
	}
	return append(parts, bytes.NewReader(img[prev:]))
}

// openImage builds an Archive over in-memory parts of img.
func openImage(t testing.TB, img []byte, opts ...ArchiveOption) *Archive {
	t.Helper()
	a, err := NewArchive(NewPartReader(split(img)...), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

// writeParts writes img to dir as stem.part0, stem.part1, … cut at cuts and
// returns the path of the first part.
func writeParts(t testing.TB, dir, stem string, img []byte, cuts ...int) string {
	t.Helper()
	prev := 0
	bounds := append(append([]int(nil), cuts...), len(img))
	for i, c := range bounds {
		p := filepath.Join(dir, stem+".part"+strconv.Itoa(i))
		require.NoError(t, os.WriteFile(p, img[prev:c], 0o644))
		prev = c
	}
	return filepath.Join(dir, stem+".part0")
}

// collectFiles returns every regular file below root keyed by its
// "/"-separated relative path.
func collectFiles(t testing.TB, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(b)
		return nil
	})
	require.NoError(t, err)
	return out
}

// sampleTree is a small tree shared by several tests.
func sampleTree() []fixture {
	return []fixture{
		fileNode("readme.txt", "hello"),
		dirNode("data",
			fileNode("config.ini", "[core]\nlevel=3\n"),
			dirNode("maps",
				fileNode("m01.bin", string(bytes.Repeat([]byte{0xAB}, 3000))),
				fileNode("empty.dat", ""),
			),
		),
		dirNode("Sound"),
	}
}
