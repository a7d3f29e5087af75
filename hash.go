package fsg

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	hashOffsetBasis = 2166136261
	hashPrime       = 1677619
)

// PathHash is the 32-bit key an FSG image uses to identify a file or
// directory in its index.
//
// The image stores no names in the index, only these hashes. A path is proven
// to exist by hashing the candidate string and finding the result among the
// index keys.
type PathHash uint32

// HashPath computes the PathHash of an archive-relative path.
//
// The path is uppercased with full Unicode case mapping (so "ß" becomes "SS")
// and the UTF-8 bytes of the result are folded into the hash. For every byte
// the accumulator is first multiplied by the prime, with wrap-around, and then
// XORed with the byte.
//
// Paths use "/" as separator and carry no leading separator.
func HashPath(path string) PathHash {
	h := uint32(hashOffsetBasis)
	if isASCII(path) {
		for i := 0; i < len(path); i++ {
			c := path[i]
			if 'a' <= c && c <= 'z' {
				c -= 'a' - 'A'
			}
			h *= hashPrime
			h ^= uint32(c)
		}
		return PathHash(h)
	}

	// A Caser is stateful; one per call keeps HashPath safe for concurrent use.
	upper := cases.Upper(language.Und).String(path)
	for i := 0; i < len(upper); i++ {
		h *= hashPrime
		h ^= uint32(upper[i])
	}
	return PathHash(h)
}

// ParseHash converts an 8-character hexadecimal string, as printed by
// PathHash.String, back into a PathHash.
func ParseHash(s string) (PathHash, error) {
	if len(s) != 8 {
		return 0, fmt.Errorf("invalid hash length")
	}
	if _, err := hex.DecodeString(s); err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, err
	}
	return PathHash(v), nil
}

// String returns the hash as eight lower-case hexadecimal digits.
func (h PathHash) String() string { return fmt.Sprintf("%08x", uint32(h)) }

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
