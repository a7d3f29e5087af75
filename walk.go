package fsg

import (
	"errors"
	"io/fs"
	"log/slog"
	"slices"
)

// Entry is one path resolved by Walk: a listing name whose reconstructed path
// hashes to a key of the index.
type Entry struct {
	// Path is the archive-relative path, "/"-separated, without a leading
	// separator.
	Path string

	// Hash is HashPath(Path), the index key the entry was verified against.
	Hash PathHash

	// Node is the index record for Hash. For directories Node.Offset is the
	// sub-directory's listing offset.
	Node FileNode

	// IsDir reports whether the listing marked the entry as a directory.
	IsDir bool

	// Depth is 1 for entries of the root directory.
	Depth int
}

// WalkFunc is called for every resolved entry, depth-first, in listing order.
//
// Returning fs.SkipDir for a directory entry skips that directory's
// contents; for a file entry it skips the remaining entries of the directory
// that holds the file. Any other non-nil error stops the walk and is
// returned by Walk unchanged.
type WalkFunc func(e Entry) error

// Walk resolves the directory tree starting at the root listing and calls fn
// for every entry whose path hash is present in the index. Listed names whose
// hash is absent are skipped silently.
//
// Failures to read a listing, including a listing that is not terminated
// before the end of the stream, abort the walk with an *ExtractionError.
func (a *Archive) Walk(fn WalkFunc) error {
	err := a.walkDir("", a.Root(), 0, fn)
	if errors.Is(err, fs.SkipAll) {
		return nil
	}
	return err
}

func (a *Archive) walkDir(prefix string, off int64, depth int, fn WalkFunc) error {
	if depth >= a.maxDepth {
		return &ExtractionError{Op: "read listing", Path: displayPath(prefix), Err: ErrTooDeep}
	}

	entries, err := a.listings.get(off)
	if err != nil {
		return &ExtractionError{Op: "read listing", Path: displayPath(prefix), Err: err}
	}
	a.log().Debug("visit directory",
		slog.String("path", displayPath(prefix)),
		slog.Int("entries", len(entries)),
	)

	for _, de := range entries {
		if de.Name == "" {
			a.log().Debug("skip unnamed entry", slog.String("dir", displayPath(prefix)))
			continue
		}

		path := joinPath(prefix, de.Name)
		h := HashPath(path)
		node, ok := a.nodes[h]
		if !ok {
			a.log().Debug("skip unindexed entry", slog.String("path", path), slog.String("hash", h.String()))
			continue
		}

		e := Entry{Path: path, Hash: h, Node: node, IsDir: de.IsDir(), Depth: depth + 1}
		err := fn(e)
		if e.IsDir {
			if errors.Is(err, fs.SkipDir) {
				continue
			}
			if err != nil {
				return err
			}
			if err := a.walkDir(path, node.Offset, depth+1, fn); err != nil {
				return err
			}
			continue
		}

		if errors.Is(err, fs.SkipDir) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Orphans returns the index hashes that no directory listing reaches,
// sorted ascending. These are table rows the resolver cannot name.
func (a *Archive) Orphans() ([]PathHash, error) {
	seen := make(map[PathHash]struct{}, len(a.nodes))
	if err := a.Walk(func(e Entry) error {
		seen[e.Hash] = struct{}{}
		return nil
	}); err != nil {
		return nil, err
	}

	var out []PathHash
	for h := range a.nodes {
		if _, ok := seen[h]; !ok {
			out = append(out, h)
		}
	}
	slices.Sort(out)
	return out, nil
}

// joinPath appends name to a parent path. The root has an empty prefix, so
// its children carry no leading separator.
func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func displayPath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
