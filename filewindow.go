// filewindow.go
//
// Small-file cache for ReadFile. Repeated reads of the same configuration or
// script file from an image are served from memory instead of copying the
// range out of the part files again. Only files up to maxWindowFile bytes are
// kept so a handful of large assets cannot evict the working set.

package fsg

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultWindowEntries = 256
	maxWindowFile        = 64 << 10 // 64 KiB
)

// fileWindow caches the contents of recently read small files, keyed by
// PathHash. The underlying lru.Cache is safe for concurrent use.
type fileWindow struct {
	entries *lru.Cache[PathHash, []byte]
}

// newFileWindow returns a window holding at most n files. n <= 0 disables
// the window; a nil *fileWindow is valid and caches nothing.
func newFileWindow(n int) (*fileWindow, error) {
	if n <= 0 {
		return nil, nil
	}
	cache, err := lru.New[PathHash, []byte](n)
	if err != nil {
		return nil, err
	}
	return &fileWindow{entries: cache}, nil
}

// lookup returns the cached contents for h. The returned slice must not be
// mutated.
func (w *fileWindow) lookup(h PathHash) ([]byte, bool) {
	if w == nil {
		return nil, false
	}
	return w.entries.Get(h)
}

// add stores buf under h unless it exceeds maxWindowFile.
func (w *fileWindow) add(h PathHash, buf []byte) {
	if w == nil || len(buf) > maxWindowFile {
		return
	}
	w.entries.Add(h, buf)
}
