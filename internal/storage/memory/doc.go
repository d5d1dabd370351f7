// Package memory provides the in-memory key-value table for kvmesh.
//
// Values are opaque byte slices stored in a sharded concurrent map
// (pkg/cmap). Each put replaces a value wholesale; values are copied on
// the way in and on the way out, so callers can never observe or cause a
// partial overwrite.
//
// Thread Safety:
//
// All operations are thread-safe through per-shard locking. Puts to keys
// in different shards proceed in parallel. Batch operations touch each
// key independently and are not atomic across keys.
package memory
