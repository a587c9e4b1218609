package internal

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExecutorSubmit(t *testing.T) {
	t.Run("runs submitted jobs on worker goroutines", func(t *testing.T) {
		e := NewExecutor(2)
		defer e.Shutdown()

		var n atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			e.Submit(func() {
				defer wg.Done()
				n.Add(1)
			})
		}
		wg.Wait()

		assert.Equal(t, int32(10), n.Load())
	})
}

func TestExecutorAfter(t *testing.T) {
	t.Run("fires fn after the delay elapses", func(t *testing.T) {
		e := NewExecutor(1)
		defer e.Shutdown()

		done := make(chan struct{})
		start := time.Now()
		e.After(20*time.Millisecond, func() { close(done) })

		select {
		case <-done:
			assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
		case <-time.After(time.Second):
			t.Fatal("timer never fired")
		}
	})

	t.Run("orders multiple entries by fire time, not submission order", func(t *testing.T) {
		e := NewExecutor(1)
		defer e.Shutdown()

		var mu sync.Mutex
		var order []string
		done := make(chan struct{})

		e.After(30*time.Millisecond, func() {
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			close(done)
		})
		e.After(5*time.Millisecond, func() {
			mu.Lock()
			order = append(order, "first")
			mu.Unlock()
		})

		<-done
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{"first", "second"}, order)
	})

	t.Run("cancel prevents a not-yet-fired entry from running", func(t *testing.T) {
		e := NewExecutor(1)
		defer e.Shutdown()

		ran := false
		cancel := e.After(50*time.Millisecond, func() { ran = true })
		cancel()

		time.Sleep(80 * time.Millisecond)
		assert.False(t, ran)
	})
}
