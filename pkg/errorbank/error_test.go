package errorbank

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMappings(t *testing.T) {
	for _, tc := range []struct {
		err    *AppError
		status int
	}{
		{BadRequest("bad"), http.StatusBadRequest},
		{NotFound("missing"), http.StatusNotFound},
		{Unprocessable("nope"), http.StatusUnprocessableEntity},
		{Unavailable("down"), http.StatusServiceUnavailable},
		{Internal("boom"), http.StatusInternalServerError},
		{New(Kind("teapot"), ""), http.StatusInternalServerError},
	} {
		assert.Equal(t, tc.status, tc.err.StatusCode(), tc.err.Message())
	}
}

func TestCauseAndDetails(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Unavailable("processor not running", WithCause(cause), WithDetail("lock", "stream.processor"))

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "processor not running", err.Message())
	assert.Equal(t, "processor not running: dial tcp: refused", err.Error())
	assert.Equal(t, map[string]any{"lock": "stream.processor"}, err.Details())
	assert.Equal(t, "internal", New(KindInternal, "").Message())
}

func TestFromAndIs(t *testing.T) {
	assert.Nil(t, From(nil))

	wrapped := fmt.Errorf("handler: %w", NotFound("pivot not found"))
	assert.Equal(t, KindNotFound, From(wrapped).Kind())
	assert.True(t, Is(wrapped, KindNotFound))
	assert.False(t, Is(wrapped, KindUnavailable))

	plain := From(errors.New("boom"))
	assert.Equal(t, KindInternal, plain.Kind())
	assert.Equal(t, "internal error", plain.Message())

	var nilErr *AppError
	assert.Equal(t, KindInternal, nilErr.Kind())
	assert.Equal(t, http.StatusInternalServerError, nilErr.StatusCode())
}
