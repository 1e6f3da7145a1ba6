package scanner

import (
	"github.com/minio/highwayhash"
)

var fingerprintKeyBytes = []byte("0123456789ABCDEF0123456789ABCDEF")

type cacheKey struct {
	path string
	sum  uint64
}

// fingerprintKey derives the parse-cache key for a file's content. The second
// return value is false when hashing is unavailable, which disables caching
// for that scan.
func fingerprintKey(path string, src []byte) (cacheKey, bool) {
	hash, err := highwayhash.New64(fingerprintKeyBytes)
	if err != nil {
		return cacheKey{}, false
	}
	if _, err = hash.Write(src); err != nil {
		return cacheKey{}, false
	}
	return cacheKey{path: path, sum: hash.Sum64()}, true
}
