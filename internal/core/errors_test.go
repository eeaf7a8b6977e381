// AngelaMos | 2026
// errors_test.go

package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{
			name:    "detail keeps its message",
			err:     fmt.Errorf("get post: %w", Detail(ErrNotFound, "post not found")),
			status:  http.StatusNotFound,
			code:    "NOT_FOUND",
			message: "post not found",
		},
		{
			name:    "bare kind falls back",
			err:     ErrForbidden,
			status:  http.StatusForbidden,
			code:    "FORBIDDEN",
			message: "access denied",
		},
		{
			name:    "request not found wins over not found",
			err:     ErrRequestNotFound,
			status:  http.StatusNotFound,
			code:    "REQUEST_NOT_FOUND",
			message: "follow request not found",
		},
		{
			name:    "not liked",
			err:     Detail(ErrNotLiked, "you have not liked this post"),
			status:  http.StatusBadRequest,
			code:    "NOT_LIKED",
			message: "you have not liked this post",
		},
		{
			name:    "not saved",
			err:     ErrNotSaved,
			status:  http.StatusBadRequest,
			code:    "NOT_SAVED",
			message: "not saved",
		},
		{
			name:    "duplicate field",
			err:     fmt.Errorf("create user: %w", &DuplicateKeyError{Field: "username"}),
			status:  http.StatusConflict,
			code:    "DUPLICATE",
			message: "username already exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := DomainError(tt.err)
			require.NotNil(t, appErr)
			assert.Equal(t, tt.status, appErr.StatusCode)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, tt.message, appErr.Message)
		})
	}
}

func TestDomainErrorIgnoresUnknown(t *testing.T) {
	assert.Nil(t, DomainError(errors.New("boom")))
}

func TestDetailUnwrapsToKind(t *testing.T) {
	err := fmt.Errorf("wrap: %w", Detail(ErrInvalidOperation, "cannot follow yourself"))

	assert.ErrorIs(t, err, ErrInvalidOperation)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "wrap: cannot follow yourself", err.Error())
}

func TestHandleDomainErrorWritesEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleDomainError(rec, Detail(ErrAlreadyExists, "you already liked this post"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	assert.Equal(t, "ALREADY_EXISTS", body.Error.Code)
	assert.Equal(t, "you already liked this post", body.Error.Message)
}

func TestHandleDomainErrorHidesInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleDomainError(rec, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}
