package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")

	// token codec
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")

	// refresh ledger
	ErrTokenNotRecognized    = errors.New("refresh token not recognized")
	ErrTokenExpiredOrRevoked = errors.New("refresh token expired or revoked")
	ErrSubjectMismatch       = errors.New("token subject mismatch")

	// otp ledger
	ErrOtpInvalidOrExpired = errors.New("invalid or expired otp")

	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
	ErrInternal   = errors.New("internal error")
)

// Validation wraps err so that errors.Is(result, ErrValidation) holds while
// keeping err's message for the client.
func Validation(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrValidation, err.Error())
}

// ValidationMessage returns the client-facing part of a validation error.
func ValidationMessage(err error) string {
	msg := err.Error()
	prefix := ErrValidation.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}
