package reactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrigger(t *testing.T) {
	t.Run("Fire notifies every watcher, every time, with no equality gate", func(t *testing.T) {
		rt, err := InitRuntime()
		assert.NoError(t, err)
		defer rt.Shutdown()

		trigger := NewTriggerIn(rt)
		count := 0
		trigger.Watch(func() { count++ })

		trigger.Fire()
		trigger.Fire()
		trigger.Fire()

		assert.Equal(t, 3, count)
	})

	t.Run("Track lets an effect depend on a trigger with no value to read", func(t *testing.T) {
		rt, err := InitRuntime()
		assert.NoError(t, err)
		defer rt.Shutdown()

		refresh := NewTriggerIn(rt)
		runs := 0
		effect := NewEffectIn(rt, func() {
			refresh.Track()
			runs++
		})
		defer effect.Dispose()

		assert.Equal(t, 1, runs)

		refresh.Fire()
		assert.Equal(t, 2, runs)
	})
}
