package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	err := New(CodeForbidden, "no delete permission")
	assert.True(t, HasCode(err, CodeForbidden))
	assert.False(t, HasCode(err, CodeNotFound))

	wrapped := fmt.Errorf("handler: %w", err)
	assert.True(t, HasCode(wrapped, CodeForbidden))

	assert.False(t, HasCode(errors.New("plain"), CodeForbidden))
	assert.False(t, HasCode(nil, CodeForbidden))
}

func TestWrapPreservesChain(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, CodeInternal, "store unavailable")

	assert.ErrorIs(t, err, cause)
	assert.True(t, HasCode(err, CodeInternal))
	assert.Contains(t, err.Error(), "store unavailable")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeConflict, CodeOf(New(CodeConflict, "duplicate")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("uncoded")))
}
