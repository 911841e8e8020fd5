// Package codec adapts a block compressor to the
// compress(src, src_len, dst, dst_cap) / decompress_safe(src, dst,
// src_len, dst_cap) contract the patch container format expects of
// C1 (spec §6). The container carries no codec identifier, so the
// choice is fixed per build: this one uses LZO1X via
// github.com/woozymasta/lzo.
package codec

import "github.com/woozymasta/lzo"

// Compress returns an LZO1X-compressed copy of src.
func Compress(src []byte) ([]byte, error) {
	return lzo.Compress(src, lzo.DefaultCompressOptions())
}

// Decompress inflates src. rawLen is the caller's upper bound on the
// stream's uncompressed size (the container format does not store
// it; bspatch derives it from the declared new_size for every
// stream).
func Decompress(src []byte, rawLen int) ([]byte, error) {
	return lzo.Decompress(src, lzo.DefaultDecompressOptions(rawLen))
}

// CompressBound returns a conservative upper bound on the compressed
// size of a rawLen-byte buffer, the conventional LZO1X worst-case
// expansion margin.
func CompressBound(rawLen int) int {
	return rawLen + rawLen/16 + 64 + 3
}
