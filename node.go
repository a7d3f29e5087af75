package fsg

import "fmt"

// FileNode locates one indexed object inside the logical stream.
//
// For a regular file the node describes the file's data range. For a
// directory, Offset is where the directory's own listing starts and Size is
// carried through from the table record without further meaning.
type FileNode struct {
	// Offset is the absolute byte offset, already converted from the
	// sector-granular raw value: BaseOffset + raw<<SectorShift.
	Offset int64

	// Size is the length of the file data in bytes.
	Size int64
}

// End returns the offset one past the node's last byte.
func (n FileNode) End() int64 { return n.Offset + n.Size }

func (n FileNode) String() string {
	return fmt.Sprintf("[%#x, +%d)", n.Offset, n.Size)
}

// nodeFromRecord decodes an 8-byte table record into a FileNode.
func nodeFromRecord(base uint32, raw, size uint32) FileNode {
	return FileNode{
		Offset: int64(base) + int64(raw)<<SectorShift,
		Size:   int64(size),
	}
}
