package util

import (
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// Normalize maps s to Unicode NFKD so visually identical passwords typed
// on different keyboards hash the same.
func Normalize(s string) string {
	return norm.NFKD.String(s)
}

func HexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

func HexDecode(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
