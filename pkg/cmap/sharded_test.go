package cmap

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	m := New[int]()
	require.NotNil(t, m)
	assert.Len(t, m.shards, DefaultShardCount)
}

func TestNewWithShards(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{0, DefaultShardCount},
		{-1, DefaultShardCount},
		{3, DefaultShardCount},
		{1, 1},
		{2, 2},
		{8, 8},
		{32, 32},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("shards=%d", tt.input), func(t *testing.T) {
			m := NewWithShards[int](tt.input)
			assert.Len(t, m.shards, tt.expected)
		})
	}
}

func TestSetAndGet(t *testing.T) {
	m := New[int]()

	m.Set("key1", 100)
	m.Set("key2", 200)

	val, ok := m.Get("key1")
	require.True(t, ok)
	assert.Equal(t, 100, val)

	val, ok = m.Get("key2")
	require.True(t, ok)
	assert.Equal(t, 200, val)

	_, ok = m.Get("nonexistent")
	assert.False(t, ok)
}

func TestSet_Overwrite(t *testing.T) {
	m := New[string]()

	m.Set("k", "a")
	m.Set("k", "b")

	val, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, "b", val)
	assert.Equal(t, 1, m.Count())
}

func TestHas(t *testing.T) {
	m := New[int]()
	m.Set("present", 1)

	assert.True(t, m.Has("present"))
	assert.False(t, m.Has("absent"))
}

func TestShardIndex_Stable(t *testing.T) {
	m := NewWithShards[int](8)

	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("key-%d", i)
		idx := m.ShardIndex(key)
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, 8)
		assert.Equal(t, idx, m.ShardIndex(key), "shard index must be deterministic")
	}
}

func TestShardIndex_Spread(t *testing.T) {
	m := New[int]()
	used := make(map[int]bool)

	for i := 0; i < 1000; i++ {
		used[m.ShardIndex(fmt.Sprintf("key-%d", i))] = true
	}

	assert.Greater(t, len(used), DefaultShardCount/2, "keys should spread across shards")
}

func TestConcurrentAccess(t *testing.T) {
	m := New[int]()
	const goroutines = 32
	const perGoroutine = 200

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				key := fmt.Sprintf("g%d-k%d", g, i)
				m.Set(key, i)
				v, ok := m.Get(key)
				assert.True(t, ok)
				assert.Equal(t, i, v)
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, goroutines*perGoroutine, m.Count())
}
