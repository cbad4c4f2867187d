package httpdiag

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// fingerprintSeed is the fixed seed used for every body fingerprint, so that
// two independently computed hashes of the same bytes always agree across
// process runs.
const fingerprintSeed uint64 = 0x3C089B1F88804C3F

// fingerprint computes a non-cryptographic 64-bit hash over body, seeded so
// that the Checker can cheaply test "same body?" between successive
// snapshots. xxhash.Sum64 has no seeded variant in this module version, so
// the seed is folded in as an 8-byte prefix ahead of the body bytes.
func fingerprint(body []byte) uint64 {
	h := xxhash.New()
	var seedBuf [8]byte
	binary.LittleEndian.PutUint64(seedBuf[:], fingerprintSeed)
	_, _ = h.Write(seedBuf[:])
	_, _ = h.Write(body)
	return h.Sum64()
}
