// xxh3.go wraps github.com/zeebo/xxh3 for the per-chunk and digest checksums
// used by the sequential file sink (see internal/sstable/sink.go) and by the
// Bloom filter's key hash (see internal/sstable/bloom.go).
package checksum

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"
)

// XXH3_64bits computes the 64-bit XXH3 hash of data.
func XXH3_64bits(data []byte) uint64 {
	return xxh3.Hash(data)
}

// XXH3_64bitsSeed computes the 64-bit XXH3 hash of data with an explicit seed,
// used to derive independent probe positions for the Bloom filter from a
// single key hash without re-hashing the key bytes per probe.
func XXH3_64bitsSeed(data []byte, seed uint64) uint64 {
	return xxh3.HashSeed(data, seed)
}

// XXH3Checksum returns the lower 32 bits of the XXH3 hash of data.
func XXH3Checksum(data []byte) uint32 {
	return uint32(XXH3_64bits(data))
}

// XXH3ChecksumWithLastByte computes the XXH3 checksum of data with an
// additional trailing byte appended (used to fold a block's compression-type
// byte into its trailer checksum without a second allocation for the common
// case where data is already a standalone buffer).
func XXH3ChecksumWithLastByte(data []byte, lastByte byte) uint32 {
	buf := make([]byte, len(data)+1)
	copy(buf, data)
	buf[len(data)] = lastByte
	return XXH3Checksum(buf)
}

// NewDigest returns a streaming XXH3 accumulator for the sink's whole-file
// Digest component. It implements hash.Hash64.
func NewDigest() *xxh3.Hasher {
	return xxh3.New()
}

// EncodeDigest renders a 64-bit XXH3 digest as the lowercase hex text stored
// in the Digest component file.
func EncodeDigest(h uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], h)
	dst := make([]byte, 16)
	const hextable = "0123456789abcdef"
	for i, v := range b {
		dst[i*2] = hextable[v>>4]
		dst[i*2+1] = hextable[v&0x0f]
	}
	return dst
}
