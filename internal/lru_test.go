package internal

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWeakKeyedLRU(t *testing.T) {
	t.Run("computes once per reachable key", func(t *testing.T) {
		cache := NewWeakKeyedLRU[int, string](4)
		calls := 0
		key := 42

		a := cache.GetOrCompute(&key, func() string { calls++; return "value" })
		b := cache.GetOrCompute(&key, func() string { calls++; return "value" })

		assert.Equal(t, "value", a)
		assert.Equal(t, "value", b)
		assert.Equal(t, 1, calls)
	})

	t.Run("evicts the least-recently-used entry at capacity", func(t *testing.T) {
		cache := NewWeakKeyedLRU[int, string](2)
		k1, k2, k3 := 1, 2, 3

		cache.GetOrCompute(&k1, func() string { return "one" })
		cache.GetOrCompute(&k2, func() string { return "two" })
		cache.GetOrCompute(&k3, func() string { return "three" })

		assert.Equal(t, 2, cache.Len())
	})

	t.Run("Purge drops an entry whose key became unreachable", func(t *testing.T) {
		cache := NewWeakKeyedLRU[int, string](4)
		calls := 0

		func() {
			key := new(int)
			*key = 7
			cache.GetOrCompute(key, func() string { calls++; return "first" })
		}()

		for i := 0; i < 10 && cache.Len() > 0; i++ {
			runtime.GC()
			time.Sleep(time.Millisecond)
			cache.Purge()
		}

		assert.Equal(t, 0, cache.Len())
	})
}
