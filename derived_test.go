package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDerivedCellLazy(t *testing.T) {
	t.Run("recomputes only on read after a dependency changes", func(t *testing.T) {
		rt, err := InitRuntime()
		assert.NoError(t, err)
		defer rt.Shutdown()

		count := NewCellIn(rt, 0)
		recomputes := 0
		doubled := NewDerivedCellIn(rt, func() int {
			recomputes++
			return count.Read() * 2
		})

		v, err := doubled.Get()
		assert.NoError(t, err)
		assert.Equal(t, 0, v)
		assert.Equal(t, 1, recomputes)

		count.Set(1)
		count.Set(2)
		assert.Equal(t, 1, recomputes, "dirty but not yet recomputed")

		v, err = doubled.Get()
		assert.NoError(t, err)
		assert.Equal(t, 4, v)
		assert.Equal(t, 2, recomputes, "collapses the two writes into a single recompute")
	})

	t.Run("a diamond dependency recomputes each derived cell independently", func(t *testing.T) {
		rt, err := InitRuntime()
		assert.NoError(t, err)
		defer rt.Shutdown()

		base := NewCellIn(rt, 1)
		left := NewDerivedCellIn(rt, func() int { return base.Read() + 1 })
		right := NewDerivedCellIn(rt, func() int { return base.Read() * 10 })
		sum := NewDerivedCellIn(rt, func() int {
			l, _ := left.Get()
			r, _ := right.Get()
			return l + r
		})

		v, err := sum.Get()
		assert.NoError(t, err)
		assert.Equal(t, 12, v) // (1+1) + (1*10)

		base.Set(2)
		v, err = sum.Get()
		assert.NoError(t, err)
		assert.Equal(t, 23, v) // (2+1) + (2*10)
	})

	t.Run("a self-referential compute reports a cycle instead of deadlocking", func(t *testing.T) {
		rt, err := InitRuntime()
		assert.NoError(t, err)
		defer rt.Shutdown()

		var self *DerivedCell[int]
		self = NewDerivedCellIn(rt, func() int {
			return self.Read() + 1
		})

		done := make(chan struct{})
		var gotErr error
		go func() {
			_, gotErr = self.Get()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Get deadlocked on a self-referential compute")
		}

		var cycleErr *CycleError
		assert.ErrorAs(t, gotErr, &cycleErr)
	})

	t.Run("equality gate suppresses notification when the new value matches the old", func(t *testing.T) {
		rt, err := InitRuntime()
		assert.NoError(t, err)
		defer rt.Shutdown()

		sign := NewCellIn(rt, -3)
		notifications := 0
		abs := NewDerivedCellIn(rt, func() int {
			v := sign.Read()
			if v < 0 {
				return -v
			}
			return v
		})
		abs.Watch(func(int) { notifications++ })

		_, _ = abs.Get()
		sign.Set(3) // abs(3) == abs(-3): no change
		_, _ = abs.Get()

		assert.Equal(t, 0, notifications)
	})
}

func TestDerivedCellComputing(t *testing.T) {
	t.Run("Computing is true only while compute() is running", func(t *testing.T) {
		rt, err := InitRuntime()
		assert.NoError(t, err)
		defer rt.Shutdown()

		var observed bool
		var cell *DerivedCell[int]
		cell = NewDerivedCellIn(rt, func() int {
			observed = cell.Computing()
			return 1
		})

		assert.False(t, cell.Computing(), "not yet read, so compute() hasn't run")
		_, err = cell.Get()
		assert.NoError(t, err)
		assert.True(t, observed, "Computing() was true during compute()")
		assert.False(t, cell.Computing(), "false again once Get returns")
	})
}

func TestDerivedCellEager(t *testing.T) {
	t.Run("recomputes in the background without an explicit Get", func(t *testing.T) {
		rt, err := InitRuntime()
		assert.NoError(t, err)
		defer rt.Shutdown()

		count := NewCellIn(rt, 0)
		doubled := NewEagerDerivedCellIn(rt, func() int { return count.Read() * 2 })

		notified := make(chan int, 4)
		doubled.Watch(func(v int) { notified <- v })

		_, _ = doubled.Get() // establish the dependency and clear dirty

		count.Set(5)

		select {
		case v := <-notified:
			assert.Equal(t, 10, v)
		case <-time.After(time.Second):
			t.Fatal("eager derived cell never recomputed in the background")
		}
	})
}
