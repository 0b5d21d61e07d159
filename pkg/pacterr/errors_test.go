package pacterr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("boom")

	cfg := NewConfigError("missing provider name", cause)
	assert.ErrorIs(t, cfg, cause)
	assert.Contains(t, cfg.Error(), "missing provider name")

	src := NewSourceError("https://example/pact.json", cause)
	assert.ErrorIs(t, src, cause)

	hdl := NewHandlerError("user exists", cause)
	assert.ErrorIs(t, hdl, cause)

	tr := NewTransportError("http://localhost:1234", cause)
	assert.ErrorIs(t, tr, cause)

	fat := NewFatalError("invariant violated", cause)
	assert.ErrorIs(t, fat, cause)
}

func TestConfigErrorWithoutCause(t *testing.T) {
	cfg := NewConfigError("provider name required", nil)
	assert.Equal(t, "config error: provider name required", cfg.Error())
}
