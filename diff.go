// diff.go - unified diff of one path across two images
package fsg

import (
	"bytes"
	"fmt"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
)

// DiffFile returns a unified diff of the file at path between two images,
// with old as the "a/" side and new as the "b/" side.
//
// The diff is line oriented and computed with the Myers algorithm provided
// by github.com/hexops/gotextdiff. Identical contents yield an empty string.
// A path missing from either image fails with ErrNotFound.
func DiffFile(old, new *Archive, path string) (string, error) {
	oldB, err := old.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("old image: %w", err)
	}
	newB, err := new.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("new image: %w", err)
	}
	return diffBytes(path, oldB, newB), nil
}

func diffBytes(path string, oldB, newB []byte) string {
	if bytes.Equal(oldB, newB) {
		return ""
	}

	a, b := btostr(oldB), btostr(newB)
	edits := myers.ComputeEdits(span.URIFromPath(path), a, b)
	u := gotextdiff.ToUnified("a/"+path, "b/"+path, a, edits)
	return fmt.Sprint(u)
}
