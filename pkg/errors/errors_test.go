package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_StatusCode(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{NewNotFoundError("missing"), http.StatusNotFound},
		{NewValidationError("bad"), http.StatusBadRequest},
		{NewConflictError("dup"), http.StatusConflict},
		{NewExternalError("upstream", fmt.Errorf("boom")), http.StatusBadGateway},
		{NewUnavailableError("off"), http.StatusServiceUnavailable},
		{NewInternalError("oops", nil), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Type), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.StatusCode())
		})
	}
}

func TestIsType_FollowsWrapChain(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NewNotFoundError("favorite not found"))

	assert.True(t, IsType(err, ErrorTypeNotFound))
	assert.False(t, IsType(err, ErrorTypeValidation))
	assert.False(t, IsType(fmt.Errorf("plain"), ErrorTypeNotFound))
}

func TestAppError_ErrorIncludesCause(t *testing.T) {
	err := NewExternalError("datamall request failed", fmt.Errorf("timeout"))
	assert.Equal(t, "EXTERNAL: datamall request failed: timeout", err.Error())
}
