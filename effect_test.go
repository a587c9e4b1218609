package reactor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffect(t *testing.T) {
	t.Run("runs immediately and re-runs when a read dependency changes", func(t *testing.T) {
		rt, err := InitRuntime()
		assert.NoError(t, err)
		defer rt.Shutdown()

		count := NewCellIn(rt, 0)
		log := []string{}

		effect := NewEffectIn(rt, func() {
			log = append(log, fmt.Sprintf("count %d", count.Read()))
		})
		defer effect.Dispose()

		count.Set(1)
		count.Set(2)

		assert.Equal(t, []string{"count 0", "count 1", "count 2"}, log)
	})

	t.Run("re-tracks its dependencies on every run, dropping stale ones", func(t *testing.T) {
		rt, err := InitRuntime()
		assert.NoError(t, err)
		defer rt.Shutdown()

		useA := NewCellIn(rt, true)
		a := NewCellIn(rt, "a-value")
		b := NewCellIn(rt, "b-value")
		runs := 0

		effect := NewEffectIn(rt, func() {
			runs++
			if useA.Read() {
				a.Read()
			} else {
				b.Read()
			}
		})
		defer effect.Dispose()

		assert.Equal(t, 1, runs)

		useA.Set(false) // switches tracked dependency from a to b
		assert.Equal(t, 2, runs)

		a.Set("changed") // no longer tracked: must not re-run
		assert.Equal(t, 2, runs)

		b.Set("changed") // now tracked: re-runs
		assert.Equal(t, 3, runs)
	})

	t.Run("Dispose stops future runs", func(t *testing.T) {
		rt, err := InitRuntime()
		assert.NoError(t, err)
		defer rt.Shutdown()

		count := NewCellIn(rt, 0)
		runs := 0
		effect := NewEffectIn(rt, func() {
			count.Read()
			runs++
		})

		effect.Dispose()
		count.Set(1)

		assert.Equal(t, 1, runs)
	})
}
