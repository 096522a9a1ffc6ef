// Package hash provides the xxHash64 helpers shared by the engine: key
// hashing for in-memory lookups and, since xxhash64 is already a project
// dependency, the per-block payload checksum used to detect a corrupt
// segment before its compressed bytes are ever handed to a codec.
package hash

import "github.com/cespare/xxhash/v2"

// ID computes the xxHash64 of the given string.
func ID(data string) uint64 {
	return xxhash.Sum64String(data)
}

// Bytes computes the xxHash64 of the given byte slice without a string
// copy, used for block-payload checksums on the encode/decode hot path.
func Bytes(data []byte) uint64 {
	return xxhash.Sum64(data)
}
