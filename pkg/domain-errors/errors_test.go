package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCauseChain(t *testing.T) {
	cause := errors.New("row not found")
	err := Wrap(cause, CodeNotFound, "household not found")

	assert.ErrorIs(t, err, cause)
	assert.True(t, HasCode(err, CodeNotFound))
	assert.Equal(t, CodeNotFound, CodeOf(err))
	assert.Contains(t, err.Error(), "household not found")
	assert.Contains(t, err.Error(), "row not found")
}

func TestCodeSurvivesFurtherWrapping(t *testing.T) {
	inner := New(CodeConflict, "period already covered")
	outer := fmt.Errorf("submit group: %w", inner)

	assert.True(t, HasCode(outer, CodeConflict))
	assert.Equal(t, CodeConflict, CodeOf(outer))
}

func TestCodeOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.False(t, HasCode(errors.New("boom"), CodeConflict))
}

func TestToHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeInvariantViolation, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeConflict, http.StatusConflict},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeTimeout, http.StatusGatewayTimeout},
		{CodeUnavailable, http.StatusServiceUnavailable},
		{CodePartialFailure, http.StatusInternalServerError},
		{CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, ToHTTPStatus(tt.code))
		})
	}
}
