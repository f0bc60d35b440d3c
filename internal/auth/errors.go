// AngelaMos | 2026
// errors.go

package auth

import (
	"errors"
)

var (
	ErrMissingToken       = errors.New("missing token")
	ErrInvalidOrExpired   = errors.New("invalid or expired token")
	ErrReuseDetected      = errors.New("token reuse detected")
	ErrIntegrityViolation = errors.New("token store integrity violation")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailExists        = errors.New("email already exists")
	ErrTooManyAttempts    = errors.New("too many login attempts")
)

// errRotationConflict means the row was revoked or expired between the
// read and the conditional update of a rotation.
var errRotationConflict = errors.New("rotation conflict")
