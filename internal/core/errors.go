// AngelaMos | 2026
// errors.go

package core

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")
	ErrTokenInvalid = errors.New("token invalid")
)

// Social graph and content error kinds.
var (
	ErrInvalidOperation = errors.New("invalid operation")
	ErrAlreadyExists    = errors.New("already exists")
	ErrAlreadyBlocked   = errors.New("already blocked")
	ErrNotFollowing     = errors.New("not following")
	ErrNotBlocked       = errors.New("not blocked")
	ErrRequestNotFound  = errors.New("follow request not found")
	ErrNotLiked         = errors.New("not liked")
	ErrNotSaved         = errors.New("not saved")
)

// DuplicateKeyError names the field whose uniqueness was violated.
type DuplicateKeyError struct {
	Field string
}

func (e *DuplicateKeyError) Error() string {
	return e.Field + " already exists"
}

func (e *DuplicateKeyError) Unwrap() error {
	return ErrDuplicateKey
}

type AppError struct {
	Err        error
	Message    string
	StatusCode int
	Code       string
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(err error, message string, statusCode int, code string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: statusCode,
		Code:       code,
	}
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

func NotFoundError(resource string) *AppError {
	return NewAppError(
		ErrNotFound,
		fmt.Sprintf("%s not found", resource),
		http.StatusNotFound,
		"NOT_FOUND",
	)
}

func DuplicateError(field string) *AppError {
	return NewAppError(
		ErrDuplicateKey,
		fmt.Sprintf("%s already exists", field),
		http.StatusConflict,
		"DUPLICATE",
	)
}

func ValidationError(message string) *AppError {
	return NewAppError(
		ErrInvalidInput,
		message,
		http.StatusBadRequest,
		"VALIDATION_ERROR",
	)
}

func UnauthorizedError(message string) *AppError {
	if message == "" {
		message = "authentication required"
	}
	return NewAppError(
		ErrUnauthorized,
		message,
		http.StatusUnauthorized,
		"UNAUTHORIZED",
	)
}

func ForbiddenError(message string) *AppError {
	if message == "" {
		message = "access denied"
	}
	return NewAppError(
		ErrForbidden,
		message,
		http.StatusForbidden,
		"FORBIDDEN",
	)
}

func TokenExpiredError() *AppError {
	return NewAppError(
		ErrTokenExpired,
		"token has expired",
		http.StatusUnauthorized,
		"TOKEN_EXPIRED",
	)
}

func TokenRevokedError() *AppError {
	return NewAppError(
		ErrTokenRevoked,
		"token has been revoked",
		http.StatusUnauthorized,
		"TOKEN_REVOKED",
	)
}

func TokenInvalidError() *AppError {
	return NewAppError(
		ErrTokenInvalid,
		"token is invalid",
		http.StatusUnauthorized,
		"TOKEN_INVALID",
	)
}

func InternalError(err error) *AppError {
	return NewAppError(
		err,
		"internal server error",
		http.StatusInternalServerError,
		"INTERNAL_ERROR",
	)
}

// DomainError maps the graph and content error kinds onto their HTTP
// representation. It returns nil for errors that are not domain kinds.
func DomainError(err error) *AppError {
	var dup *DuplicateKeyError
	if errors.As(err, &dup) {
		return DuplicateError(dup.Field)
	}

	switch {
	case errors.Is(err, ErrRequestNotFound):
		return NewAppError(err, "follow request not found", http.StatusNotFound, "REQUEST_NOT_FOUND")
	case errors.Is(err, ErrNotFound):
		return NewAppError(err, domainMessage(err, "resource not found"), http.StatusNotFound, "NOT_FOUND")
	case errors.Is(err, ErrInvalidOperation):
		return NewAppError(err, domainMessage(err, "invalid operation"), http.StatusBadRequest, "INVALID_OPERATION")
	case errors.Is(err, ErrAlreadyExists):
		return NewAppError(err, domainMessage(err, "already exists"), http.StatusBadRequest, "ALREADY_EXISTS")
	case errors.Is(err, ErrAlreadyBlocked):
		return NewAppError(err, "user is already blocked", http.StatusBadRequest, "ALREADY_BLOCKED")
	case errors.Is(err, ErrNotFollowing):
		return NewAppError(err, "not following this user", http.StatusBadRequest, "NOT_FOLLOWING")
	case errors.Is(err, ErrNotBlocked):
		return NewAppError(err, "user is not blocked", http.StatusBadRequest, "NOT_BLOCKED")
	case errors.Is(err, ErrNotLiked):
		return NewAppError(err, domainMessage(err, "not liked"), http.StatusBadRequest, "NOT_LIKED")
	case errors.Is(err, ErrNotSaved):
		return NewAppError(err, domainMessage(err, "not saved"), http.StatusBadRequest, "NOT_SAVED")
	case errors.Is(err, ErrInvalidInput):
		return NewAppError(err, domainMessage(err, "invalid input"), http.StatusBadRequest, "VALIDATION_ERROR")
	case errors.Is(err, ErrForbidden):
		return NewAppError(err, domainMessage(err, "access denied"), http.StatusForbidden, "FORBIDDEN")
	case errors.Is(err, ErrUnauthorized):
		return UnauthorizedError("")
	}
	return nil
}

// Detail attaches a client facing message to a domain error kind.
func Detail(kind error, message string) error {
	return &detailError{kind: kind, message: message}
}

type detailError struct {
	kind    error
	message string
}

func (e *detailError) Error() string {
	return e.message
}

func (e *detailError) Unwrap() error {
	return e.kind
}

func domainMessage(err error, fallback string) string {
	var d *detailError
	if errors.As(err, &d) {
		return d.message
	}
	return fallback
}
