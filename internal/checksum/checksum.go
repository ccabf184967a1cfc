package checksum

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Salted maps salt and id to a value in [0, 1). The same pair always
// yields the same value, so a salt defines a stable shuffle.
func Salted(salt, id string) float64 {
	h := sha256.Sum256([]byte(salt + "\x00" + id))
	return float64(binary.BigEndian.Uint64(h[:8])>>11) / (1 << 53)
}
