package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{BadRequest("bad %d", 1), http.StatusBadRequest},
		{Unauthorized("no"), http.StatusUnauthorized},
		{Forbidden("no"), http.StatusForbidden},
		{NotFound("gone"), http.StatusNotFound},
		{Teapot("I'm a teapot"), http.StatusTeapot},
		{SessionExpired("stale"), StatusSessionExpired},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, StatusOf(tt.err), tt.err.Error())
		assert.Equal(t, tt.status, StatusOf(fmt.Errorf("wrapped: %w", tt.err)))
	}
	assert.Equal(t, "bad 1", tests[0].err.Error())
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("boom")))
}
