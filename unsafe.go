package fsg

import "unsafe"

// btostr returns b as a string without copying; b must not be modified
// while the string is in use.
func btostr(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}
