package store

import "sync"

// keyPool provides reusable byte slices for building lookup keys.
// Only keys that are read, never written, come from the pool: Badger keeps
// written keys until the transaction commits.
var keyPool = sync.Pool{
	New: func() any {
		// 128 bytes covers prefix, "idx:", index name, and a UUID or token.
		return make([]byte, 0, 128)
	},
}

// buildKey constructs a key from prefix and suffix using a pooled buffer.
// Callers MUST call releaseKey when done with the key.
//
//	key := buildKey("link:", id)
//	defer releaseKey(key)
func buildKey(prefix, suffix string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = buf[:0]
	buf = append(buf, prefix...)
	buf = append(buf, suffix...)
	return buf
}

// buildIndexKey constructs an index key from prefix, index name, and value.
// Callers MUST call releaseKey when done with the key.
func buildIndexKey(prefix, indexName, value string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = buf[:0]
	buf = append(buf, prefix...)
	buf = append(buf, "idx:"...)
	buf = append(buf, indexName...)
	buf = append(buf, ':')
	buf = append(buf, value...)
	return buf
}

// releaseKey returns a key buffer to the pool for reuse.
func releaseKey(key []byte) {
	// Avoid keeping oversized buffers in the pool
	if cap(key) <= 512 {
		keyPool.Put(key[:0])
	}
}
