package imgcache

import (
	"crypto/md5" //nolint:gosec // cache key, not a security boundary
	"encoding/hex"
)

// Fingerprint returns the cache key of address: the lowercase hex md5 of
// its bytes. Keys are valid file names.
func Fingerprint(address string) string {
	sum := md5.Sum([]byte(address)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}
