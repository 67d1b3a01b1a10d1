package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funding-ledger/internal/types"
)

func TestConstructorStatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		err        *CategorizedError
		wantCode   string
		wantStatus int
	}{
		{"reference", NewReferenceError(types.EntityProfile, "p1"), CodeReference, http.StatusUnprocessableEntity},
		{"invalid type", NewInvalidTypeError("organization"), CodeInvalidType, http.StatusBadRequest},
		{"wallet cap", NewLimitExceededError(types.EntityProject, "pr1", 10), CodeLimitExceeded, http.StatusConflict},
		{"arity mismatch", NewArityMismatchError(2, 3), CodeArityMismatch, http.StatusBadRequest},
		{"post rate limit", NewRateLimitExceededError("p1", 5), CodeRateLimitExceeded, http.StatusTooManyRequests},
		{"validation", NewValidationError("bitcoinAddress", "bad checksum"), CodeValidation, http.StatusBadRequest},
		{"cooldown", NewCooldownError("w1", 42), CodeCooldown, http.StatusTooManyRequests},
		{"not found", NewNotFoundError("wallet", "w1"), CodeNotFound, http.StatusNotFound},
		{"conflict", NewConflictError("cannot revive a failed transaction"), CodeConflict, http.StatusConflict},
		{"database", NewDatabaseError("insert transaction", errors.New("boom")), CodeDatabase, http.StatusInternalServerError},
		{"internal", NewInternalError("oops", nil), CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.wantStatus, tt.err.StatusCode)
			assert.Equal(t, tt.wantStatus, GetHTTPStatusCode(tt.err))
		})
	}
}

func TestCategorize(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, Categorize(nil))
	})

	t.Run("categorized error passes through", func(t *testing.T) {
		orig := NewNotFoundError("post", "x")
		assert.Same(t, orig, Categorize(orig))
	})

	t.Run("service error keeps its code", func(t *testing.T) {
		svcErr := &types.ServiceError{Code: CodeReference, Message: "profile missing"}
		catErr := Categorize(svcErr)
		require.NotNil(t, catErr)
		assert.Equal(t, CodeReference, catErr.Code)
		assert.Equal(t, http.StatusUnprocessableEntity, catErr.StatusCode)
	})

	t.Run("unknown error becomes internal", func(t *testing.T) {
		catErr := Categorize(errors.New("disk on fire"))
		require.NotNil(t, catErr)
		assert.Equal(t, CodeInternal, catErr.Code)
		assert.Equal(t, http.StatusInternalServerError, catErr.StatusCode)
	})
}

func TestIsUserError(t *testing.T) {
	assert.True(t, IsUserError(NewValidationError("content", "empty")))
	assert.True(t, IsUserError(NewCooldownError("w1", 10)))
	assert.True(t, IsUserError(NewReferenceError(types.EntityProject, "pr1")))
	assert.False(t, IsUserError(NewDatabaseError("query", errors.New("conn reset"))))
	assert.False(t, IsUserError(errors.New("anything else")))
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewDatabaseError("lock owner", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}
