package fsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want PathHash
	}{
		{name: "empty path is the offset basis", path: "", want: 0x811c9dc5},
		{name: "root file", path: "readme.txt", want: 0x712a3679},
		{name: "nested path", path: "data/config.ini", want: 0x491d838e},
		{name: "mixed case", path: "Foo/Bar", want: 0xc80b8871},
		{name: "latin-1 letters", path: "café/menü.txt", want: 0x25c47377},
		{name: "sharp s expands", path: "straße", want: 0xf23da226},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HashPath(tt.path))
		})
	}
}

func TestHashPath_CaseInsensitive(t *testing.T) {
	pairs := [][2]string{
		{"Foo/Bar", "FOO/BAR"},
		{"readme.txt", "README.TXT"},
		{"data/Maps/m01.bin", "DATA/MAPS/M01.BIN"},
		{"café", "CAFÉ"},
		{"straße", "STRASSE"},
	}
	for _, p := range pairs {
		assert.Equal(t, HashPath(p[0]), HashPath(p[1]), "%q vs %q", p[0], p[1])
	}
}

func TestHashPath_Deterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		assert.Equal(t, PathHash(0xc80b8871), HashPath("Foo/Bar"))
	}
	assert.NotEqual(t, HashPath("a/b"), HashPath("ab"), "separator must contribute to the hash")
}

func TestParseHash(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expectError bool
		want        PathHash
	}{
		{name: "valid hash", input: "712a3679", want: 0x712a3679},
		{name: "upper-case hex", input: "C80B8871", want: 0xc80b8871},
		{name: "invalid hash", input: "zzzzzzzz", expectError: true},
		{name: "wrong length", input: "abcd", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := ParseHash(tt.input)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, h)
		})
	}
}

func TestPathHash_String(t *testing.T) {
	assert.Equal(t, "0000beef", PathHash(0xbeef).String())

	h := HashPath("data/config.ini")
	parsed, err := ParseHash(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
}
