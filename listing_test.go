package fsg

import (
	"bufio"
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func iterOver(raw []byte) *listingIter {
	return newListingIter(bufio.NewReader(bytes.NewReader(raw)))
}

func TestListingIter_Empty(t *testing.T) {
	it := iterOver([]byte{0})

	e, ok, err := it.Next()
	assert.False(t, ok, "expected ok=false for empty listing")
	assert.Equal(t, io.EOF, err, "expected io.EOF")
	assert.Equal(t, DirEntry{}, e)
}

func TestListingIter_MultipleEntries(t *testing.T) {
	raw := []byte("Freadme.txt\x00Ddata\x00Xodd-marker.bin\x00\x00trailing garbage")
	it := iterOver(raw)

	want := []DirEntry{
		{Name: "readme.txt", Marker: 'F'},
		{Name: "data", Marker: 'D'},
		{Name: "odd-marker.bin", Marker: 'X'},
	}
	for i, w := range want {
		e, ok, err := it.Next()
		require.True(t, ok, "entry %d: expected ok=true, got false with err=%v", i, err)
		require.NoError(t, err)
		assert.Equal(t, w, e, "entry %d", i)
	}
	assert.True(t, want[1].IsDir())
	assert.False(t, want[2].IsDir(), "any marker other than 'D' is a file")

	_, ok, err := it.Next()
	assert.False(t, ok)
	assert.Equal(t, io.EOF, err)
}

func TestListingIter_Latin1Names(t *testing.T) {
	raw := []byte{'F', 'c', 'a', 'f', 0xE9, 0, 'D', 'm', 0xFC, 'n', 0, 0}
	it := iterOver(raw)

	e, ok, err := it.Next()
	require.True(t, ok, "err=%v", err)
	assert.Equal(t, "café", e.Name)

	e, ok, err = it.Next()
	require.True(t, ok, "err=%v", err)
	assert.Equal(t, "mün", e.Name)
	assert.True(t, e.IsDir())
}

func TestListingIter_MarkerOnly(t *testing.T) {
	it := iterOver([]byte("D\x00\x00"))
	e, ok, err := it.Next()
	require.True(t, ok, "err=%v", err)
	assert.Equal(t, DirEntry{Marker: 'D'}, e)
}

func TestListingIter_Unterminated(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{name: "no bytes at all", raw: nil},
		{name: "name cut short", raw: []byte("Freadme")},
		{name: "missing empty terminator", raw: []byte("Freadme.txt\x00")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := iterOver(tt.raw)
			var err error
			for {
				var ok bool
				if _, ok, err = it.Next(); !ok {
					break
				}
			}
			assert.ErrorIs(t, err, ErrTruncated)
		})
	}
}

func TestReadListing(t *testing.T) {
	data := append(bytes.Repeat([]byte{0xFF}, 10), []byte("Fa\x00Db\x00\x00")...)
	r := NewPartReader(split(data, 12, 14)...)

	entries, err := readListing(r, 10)
	require.NoError(t, err)
	assert.Equal(t, []DirEntry{{Name: "a", Marker: 'F'}, {Name: "b", Marker: 'D'}}, entries)

	_, err = readListing(r, int64(len(data)))
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = readListing(r, 12)
	assert.NoError(t, err, "a listing may start anywhere, even mid-name")

	// Cut the stream before the terminator.
	short := NewPartReader(bytes.NewReader(data[:len(data)-1]))
	_, err = readListing(short, 10)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestListingCache(t *testing.T) {
	data := []byte("Fa\x00\x00Fb\x00Fc\x00\x00")
	var mu sync.Mutex
	c, err := newListingCache(NewPartReader(bytes.NewReader(data)), &mu, 4)
	require.NoError(t, err)

	first, err := c.get(4)
	require.NoError(t, err)
	assert.Len(t, first, 2)
	assert.Equal(t, 1, c.len())

	again, err := c.get(4)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, c.len(), "a hit must not add entries")

	root, err := c.get(0)
	require.NoError(t, err)
	assert.Equal(t, []DirEntry{{Name: "a", Marker: 'F'}}, root)
	assert.Equal(t, 2, c.len())

	_, err = c.get(100)
	assert.ErrorIs(t, err, ErrTruncated)
	assert.Equal(t, 2, c.len(), "failures are not cached")
}
