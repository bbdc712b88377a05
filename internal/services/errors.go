package services

import (
	"fmt"
	"net/http"
)

type ServiceError struct {
	Status  int
	Message string
}

func (e ServiceError) Error() string {
	return e.Message
}

func ErrNotFound(msg string) error {
	return ServiceError{Status: http.StatusNotFound, Message: msg}
}

func ErrBadRequest(msg string) error {
	return ServiceError{Status: http.StatusBadRequest, Message: msg}
}

func ErrForbidden(msg string) error {
	return ServiceError{Status: http.StatusForbidden, Message: msg}
}

func ErrUnauthorized(msg string) error {
	return ServiceError{Status: http.StatusUnauthorized, Message: msg}
}

func ErrConflict(msg string) error {
	return ServiceError{Status: http.StatusConflict, Message: msg}
}

func ErrTooManyRequests(msg string) error {
	return ServiceError{Status: http.StatusTooManyRequests, Message: msg}
}

// ErrInvalidCredentials is returned for unknown emails and wrong passwords
// alike.
var ErrInvalidCredentials = ServiceError{Status: http.StatusUnauthorized, Message: "Invalid email or password"}

func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
