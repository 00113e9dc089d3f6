package util

import (
	"crypto/md5"
	"encoding/hex"
)

// Fingerprint returns the MD5 of the given byte slices, each length-prefixed so
// that moving bytes between parts changes the result. Used for change detection.
func Fingerprint(parts ...[]byte) string {
	h := md5.New()
	var lenBuf [8]byte
	for _, p := range parts {
		n := uint64(len(p))
		for i := 0; i < 8; i++ {
			lenBuf[i] = byte(n >> (8 * i))
		}
		h.Write(lenBuf[:])
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// HashString returns the MD5 hash of an arbitrary string.
func HashString(input string) string {
	sum := md5.Sum([]byte(input))
	return hex.EncodeToString(sum[:])
}
