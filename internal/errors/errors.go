package errors

import (
	"fmt"
	"net/http"

	"github.com/funding-ledger/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryUserInput represents user input errors (4xx)
	CategoryUserInput ErrorCategory = "user_input"
	// CategoryReference represents dangling polymorphic pointer errors
	CategoryReference ErrorCategory = "reference"
	// CategoryLimit represents domain limit errors (wallet cap, post rate)
	CategoryLimit ErrorCategory = "limit"
	// CategoryValidation represents validation errors
	CategoryValidation ErrorCategory = "validation"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryConflict represents conflict errors
	CategoryConflict ErrorCategory = "conflict"
	// CategoryDatabase represents database errors
	CategoryDatabase ErrorCategory = "database"
	// CategorySystem represents system errors (5xx)
	CategorySystem ErrorCategory = "system"
)

// Error codes raised by the write-path services. Every one of these fails
// the enclosing database transaction; nothing partially commits.
const (
	CodeReference         = "REFERENCE_ERROR"
	CodeInvalidType       = "INVALID_TYPE"
	CodeLimitExceeded     = "LIMIT_EXCEEDED"
	CodeArityMismatch     = "ARITY_MISMATCH"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeValidation        = "VALIDATION_ERROR"
	CodeCooldown          = "COOLDOWN_ACTIVE"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeDatabase          = "DATABASE_ERROR"
	CodeInternal          = "INTERNAL_ERROR"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewReferenceError reports a polymorphic pointer naming a nonexistent row.
func NewReferenceError(entityType types.EntityType, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryReference,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       CodeReference,
		Message:    fmt.Sprintf("%s %s does not exist", entityType, id),
		Details: map[string]interface{}{
			"entityType": string(entityType),
			"entityId":   id,
		},
	}
}

// NewInvalidTypeError reports an unknown owner/entity type tag.
func NewInvalidTypeError(tag string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusBadRequest,
		Code:       CodeInvalidType,
		Message:    fmt.Sprintf("unknown entity type: %s", tag),
		Details: map[string]interface{}{
			"entityType": tag,
		},
	}
}

// NewLimitExceededError reports the active-wallet cap being hit.
func NewLimitExceededError(ownerType types.EntityType, ownerID string, limit int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryLimit,
		StatusCode: http.StatusConflict,
		Code:       CodeLimitExceeded,
		Message:    fmt.Sprintf("%s %s already has %d active wallets", ownerType, ownerID, limit),
		Details: map[string]interface{}{
			"ownerType": string(ownerType),
			"ownerId":   ownerID,
			"limit":     limit,
		},
	}
}

// NewArityMismatchError reports visibility arrays of different lengths.
func NewArityMismatchError(typesLen, ownersLen int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusBadRequest,
		Code:       CodeArityMismatch,
		Message:    fmt.Sprintf("timeline_types has %d entries but timeline_owner_ids has %d", typesLen, ownersLen),
		Details: map[string]interface{}{
			"typesLength":  typesLen,
			"ownersLength": ownersLen,
		},
	}
}

// NewRateLimitExceededError reports the per-author post cap for the rolling hour.
func NewRateLimitExceededError(authorID string, limit int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       CodeRateLimitExceeded,
		Message:    fmt.Sprintf("author %s exceeded %d posts per hour", authorID, limit),
		Details: map[string]interface{}{
			"authorId": authorID,
			"limit":    limit,
		},
	}
}

// NewValidationError reports malformed input, e.g. a bad address checksum.
func NewValidationError(field, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       CodeValidation,
		Message:    fmt.Sprintf("invalid %s: %s", field, reason),
		Details: map[string]interface{}{
			"field":  field,
			"reason": reason,
		},
	}
}

// NewCooldownError reports a balance refresh attempted inside the per-wallet window.
func NewCooldownError(walletID string, retryAfterSeconds int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       CodeCooldown,
		Message:    fmt.Sprintf("balance for wallet %s was refreshed recently", walletID),
		Details: map[string]interface{}{
			"walletId":   walletID,
			"retryAfter": retryAfterSeconds,
		},
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryConflict,
		StatusCode: http.StatusConflict,
		Code:       CodeConflict,
		Message:    message,
	}
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeDatabase,
		Message:    fmt.Sprintf("database error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternal,
		Message:    message,
		Cause:      cause,
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	if catErr, ok := err.(*CategorizedError); ok {
		return catErr
	}

	if svcErr, ok := err.(*types.ServiceError); ok {
		return &CategorizedError{
			Category:   CategorySystem,
			StatusCode: statusForCode(svcErr.Code),
			Code:       svcErr.Code,
			Message:    svcErr.Message,
			Details:    svcErr.Details,
		}
	}

	return NewInternalError("unexpected error", err)
}

// statusForCode maps known service error codes to HTTP status codes.
func statusForCode(code string) int {
	switch code {
	case CodeReference:
		return http.StatusUnprocessableEntity
	case CodeInvalidType, CodeArityMismatch, CodeValidation:
		return http.StatusBadRequest
	case CodeLimitExceeded, CodeConflict:
		return http.StatusConflict
	case CodeRateLimitExceeded, CodeCooldown:
		return http.StatusTooManyRequests
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsUserError determines if an error is a user error (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}
	return catErr.StatusCode >= 400 && catErr.StatusCode < 500
}
