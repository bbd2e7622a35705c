package services

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindUnauthenticated
	KindInvalidToken
	KindUserNotFound
	KindForbidden
	KindPolicyRejection
	KindNotFound
	KindConflict
	KindUpstream
)

// Error is the typed error every service returns for expected failures.
// Anything that is not an *Error is treated as internal by the HTTP layer.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status maps the error kind to an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated, KindInvalidToken, KindUserNotFound:
		return http.StatusUnauthorized
	case KindForbidden, KindPolicyRejection:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func ErrValidation(msg string) *Error {
	return &Error{Kind: KindValidation, Code: "VALIDATION_ERROR", Message: msg}
}

func ErrUnauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Code: "UNAUTHENTICATED", Message: msg}
}

func ErrInvalidToken(code, msg string) *Error {
	return &Error{Kind: KindInvalidToken, Code: code, Message: msg}
}

func ErrUserNotFound() *Error {
	return &Error{Kind: KindUserNotFound, Code: "USER_NOT_FOUND", Message: "User no longer exists"}
}

func ErrForbidden(code, msg string) *Error {
	return &Error{Kind: KindForbidden, Code: code, Message: msg}
}

func ErrNotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: msg}
}

func ErrConflict(code, msg string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: msg}
}

func ErrUpstream(msg string, err error) *Error {
	return &Error{Kind: KindUpstream, Code: "UPSTREAM_ERROR", Message: msg, Err: err}
}

// ErrDeviceLimit is the policy rejection returned when a new device would exceed the cap.
func ErrDeviceLimit(current int64, limit int) *Error {
	return &Error{
		Kind:    KindPolicyRejection,
		Code:    "DEVICE_LIMIT_REACHED",
		Message: fmt.Sprintf("Device limit reached. You can be signed in on at most %d devices; remove one to continue.", limit),
		Details: map[string]interface{}{
			"limit":          limit,
			"currentDevices": current,
		},
	}
}

var ErrInvalidCredentials = &Error{Kind: KindUnauthenticated, Code: "INVALID_CREDENTIALS", Message: "Invalid email or password"}

// IsKind reports whether err is a service error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == kind
}

func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func ErrSubscriptionRequired() *Error {
	return ErrForbidden("SUBSCRIPTION_REQUIRED", "An active subscription is required to access this content")
}
