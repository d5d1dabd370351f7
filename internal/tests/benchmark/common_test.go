package benchmark

import (
	"fmt"
	"runtime"
	"testing"

	"github.com/yndnr/kvmesh-go/internal/storage/memory"
)

// KeyCounts are the table sizes used for full runs.
var KeyCounts = []int{10000, 100000, 500000}

// SmallKeyCounts for quick benchmarks.
var SmallKeyCounts = []int{1000, 10000}

func benchKey(i int) string {
	return fmt.Sprintf("bench-key-%08d", i)
}

func benchValue(size int) []byte {
	v := make([]byte, size)
	for i := range v {
		v[i] = byte('a' + i%26)
	}
	return v
}

// prefillStore loads count keys with 64-byte values and returns the keys.
func prefillStore(store *memory.Store, count int) []string {
	keys := make([]string, count)
	value := benchValue(64)
	for i := 0; i < count; i++ {
		keys[i] = benchKey(i)
		store.Put(keys[i], value)
	}
	return keys
}

// reportMemory reports heap in use after a forced GC.
func reportMemory(b *testing.B, name string) {
	b.Helper()
	runtime.GC()
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.HeapInuse)/(1024*1024), name+"_MB")
}
