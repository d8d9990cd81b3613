package capi

import (
	"encoding/hex"
	"unicode/utf8"
)

// DecodeHexName turns a hex-encoded vanity name into text. Input that is not
// valid hex of valid UTF-8 is returned unchanged.
func DecodeHexName(s string) string {
	if s == "" {
		return s
	}
	b, err := hex.DecodeString(s)
	if err != nil || !utf8.Valid(b) {
		return s
	}
	return string(b)
}
