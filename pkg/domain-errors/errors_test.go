package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("matches the outermost code", func(t *testing.T) {
		err := New(CodeConfiguration, "no email source")
		assert.True(t, HasCode(err, CodeConfiguration))
		assert.False(t, HasCode(err, CodeInternal))
	})

	t.Run("matches a wrapped code", func(t *testing.T) {
		inner := New(CodeUnavailable, "dial failed")
		err := Wrap(inner, CodeInternal, "sync run failed")
		assert.True(t, HasCode(err, CodeInternal))
		assert.True(t, HasCode(err, CodeUnavailable))
	})

	t.Run("sees through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("run: %w", New(CodeUnavailable, "dial failed"))
		assert.True(t, HasCode(err, CodeUnavailable))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.False(t, HasCode(nil, CodeInternal))
	})
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeConflict, CodeOf(New(CodeConflict, "taken")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeUnavailable, "connect directory")
	assert.Equal(t, "connect directory: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}
