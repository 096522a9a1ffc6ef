// Package compress provides the compression codecs a segment's blocks are
// encoded with.
//
// A block's decompressed payload (delta-encoded timestamps interleaved with
// value bytes) is run through exactly one of these before being written:
//
//   - None: no compression, useful for already-incompressible values or
//     CPU-constrained writers.
//   - LZ4: the default. Fast in both directions, keeping compression off
//     the hot write path.
//   - S2: klauspost's Snappy-compatible codec, a middle ground between LZ4
//     and Zstd.
//   - Zstd: best ratio, more CPU; intended for segments produced by major
//     compaction, which are written once and read many times.
//
// The chosen Type is stored in the segment trailer (see package segment),
// so a SegmentReader never has to guess or negotiate which codec a given
// segment's blocks were written with.
package compress
