// Package varint provides the unsigned-varint primitives shared by the
// block codec and the segment index: lengths, counts, offsets, and
// (block timestamps are guaranteed strictly increasing) plain
// non-negative timestamp deltas, encoding into a reusable buffer to
// avoid a per-call allocation.
package varint

import "encoding/binary"

// PutUvarint appends v to buf as an unsigned varint and returns the
// extended slice.
func PutUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

// Uvarint reads an unsigned varint from data, returning the value and the
// number of bytes consumed. A non-positive count indicates truncated or
// invalid data.
func Uvarint(data []byte) (uint64, int) {
	return binary.Uvarint(data)
}
