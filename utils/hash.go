package utils

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// U64 fingerprints a single string.
func U64(s string) uint64 {
	return xxhash.Sum64String(s)
}

// Fingerprint hashes parts in order. Parts are length-prefixed so that
// ("ab", "c") and ("a", "bc") never collide by construction.
func Fingerprint(parts ...string) uint64 {
	d := xxhash.New()
	var n [8]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint64(n[:], uint64(len(p)))
		_, _ = d.Write(n[:])
		_, _ = d.WriteString(p)
	}
	return d.Sum64()
}

// Mix64 combines two fingerprints.
func Mix64(a, b uint64) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], a)
	binary.LittleEndian.PutUint64(buf[8:], b)
	return xxhash.Sum64(buf[:])
}
