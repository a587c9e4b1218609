package reactor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeLifecycle(t *testing.T) {
	t.Run("package-level constructors fail without an active runtime", func(t *testing.T) {
		_, err := NewCell(0)
		assert.ErrorIs(t, err, ErrRuntimeNotInitialized)
	})

	t.Run("InitRuntime refuses a second concurrent runtime", func(t *testing.T) {
		rt, err := InitRuntime()
		assert.NoError(t, err)
		defer rt.Shutdown()

		_, err = InitRuntime()
		assert.ErrorIs(t, err, ErrRuntimeAlreadyInitialized)
	})

	t.Run("package-level constructors work once a runtime is active", func(t *testing.T) {
		rt, err := InitRuntime()
		assert.NoError(t, err)
		defer rt.Shutdown()

		c, err := NewCell(5)
		assert.NoError(t, err)
		assert.Equal(t, 5, c.Peek())
	})

	t.Run("Shutdown releases the slot for a new InitRuntime", func(t *testing.T) {
		rt, err := InitRuntime()
		assert.NoError(t, err)
		rt.Shutdown()

		rt2, err := InitRuntime()
		assert.NoError(t, err)
		defer rt2.Shutdown()
	})

	t.Run("WithRuntime releases even if body returns an error", func(t *testing.T) {
		boom := errors.New("boom")
		err := WithRuntime(func(rt *Runtime) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)

		// the slot must be free again
		rt, err := InitRuntime()
		assert.NoError(t, err)
		rt.Shutdown()
	})

	t.Run("a custom panic handler observes listener panics", func(t *testing.T) {
		var captured any
		rt, err := InitRuntime(WithPanicHandler(func(r any) { captured = r }))
		assert.NoError(t, err)
		defer rt.Shutdown()

		c := NewCellIn(rt, 0)
		c.Watch(func(int) { panic("listener boom") })
		c.Set(1)

		assert.Equal(t, "listener boom", captured)
	})
}
