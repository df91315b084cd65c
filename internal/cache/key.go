package cache

import (
	"crypto/md5"
	"encoding/hex"
)

// Key derives the cache key from the exact raw image bytes: a 128-bit MD5
// content hash, hex-encoded. Identical bytes always map to the same key;
// near-duplicate images do not (this is a content cache, not a perceptual
// one). The input is hashed as-is, with no resizing or normalization.
func Key(image []byte) string {
	sum := md5.Sum(image)
	return hex.EncodeToString(sum[:])
}
