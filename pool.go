package fsg

import (
	"bufio"
	"io"
	"sync"
)

// brPool reuses bufio.Reader instances for index and listing scans, which
// otherwise allocate a fresh buffer per directory.
var brPool = sync.Pool{
	New: func() any { return bufio.NewReaderSize(nil, 8<<10) }, // 8 KiB buf once
}

// getBR obtains a bufio.Reader from the pool and resets it to the given reader.
func getBR(r io.Reader) *bufio.Reader {
	br := brPool.Get().(*bufio.Reader)
	br.Reset(r) // no new allocation
	return br
}

// putBR returns a bufio.Reader to the pool for reuse. The reader is detached
// from its source so the pool does not pin it.
func putBR(br *bufio.Reader) {
	br.Reset(nil)
	brPool.Put(br)
}
