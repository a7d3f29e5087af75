package fsg

import (
	"sync"

	"github.com/hashicorp/golang-lru/arc/v2"
)

const defaultListingCacheSize = 1 << 12 // 4K directories

// listingCache keeps parsed directory listings keyed by their stream offset,
// so a Walk followed by Extract (or repeated Stat/List calls) reads and
// decodes each listing at most once while it stays resident.
//
// The cache reads through the archive's stream; mu serializes those reads
// because they move the stream's shared cursor.
type listingCache struct {
	// stream is the source of listings on a miss.
	stream *PartReader

	// mu guards the stream cursor during a miss.
	mu *sync.Mutex

	// mem holds listings by offset. Cached slices are never mutated.
	mem *arc.ARCCache[int64, []DirEntry]
}

func newListingCache(stream *PartReader, mu *sync.Mutex, size int) (*listingCache, error) {
	if size <= 0 {
		size = defaultListingCacheSize
	}
	mem, err := arc.NewARC[int64, []DirEntry](size)
	if err != nil {
		return nil, err
	}
	return &listingCache{stream: stream, mu: mu, mem: mem}, nil
}

// get returns the listing at off, reading it from the stream on a miss.
func (c *listingCache) get(off int64) ([]DirEntry, error) {
	if l, ok := c.mem.Get(off); ok {
		return l, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check: another goroutine might have loaded it.
	if l, ok := c.mem.Get(off); ok {
		return l, nil
	}

	l, err := readListing(c.stream, off)
	if err != nil {
		return nil, err
	}
	c.mem.Add(off, l)
	return l, nil
}

// len reports how many listings are currently cached.
func (c *listingCache) len() int { return c.mem.Len() }
