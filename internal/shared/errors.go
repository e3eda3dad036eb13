package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateEmail occurs when an account with the email already exists.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrAccountInactive occurs when a deactivated account authenticates.
	ErrAccountInactive = errors.New("account is inactive")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// UserSafeMessage maps internal errors onto messages safe to surface.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "The requested record was not found."
	case errors.Is(err, ErrInvalidCredentials):
		return "Email or password is not valid."
	case errors.Is(err, ErrDuplicateEmail):
		return "An account with this email already exists."
	case errors.Is(err, ErrAccountInactive):
		return "This account has been deactivated."
	default:
		return "Something went wrong. Please try again."
	}
}
