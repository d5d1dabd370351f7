// Package cmap provides a sharded concurrent map keyed by strings.
//
// The key space is split across a fixed, power-of-two number of shards.
// Each shard owns a plain Go map guarded by its own sync.RWMutex, so
// writers to different shards never contend with each other and readers
// of one shard only block that shard's writers.
//
// Shard selection uses murmur3 over the key bytes.
//
// Usage:
//
//	m := cmap.New[[]byte]()
//	m.Set("key", []byte("value"))
//	val, ok := m.Get("key")
//
// Thread Safety:
//
// All operations are thread-safe. Read operations (Get, Has) use RLock,
// write operations (Set) use Lock. Count visits shards one at a time and
// is therefore only a point-in-time approximation under concurrent writes.
package cmap
