// Package apperr defines the sentinel errors shared across handlers and
// repositories.
//
// Error Handling:
// Business logic wraps these sentinels with context using
// fmt.Errorf("%w") and the handler boundary translates them into
// user-safe envelope messages with errors.Is. Internal details (SQL
// text, file paths) are logged server-side and never returned to the
// caller.
//
// Example Usage:
//
//	if u == nil {
//	    return fmt.Errorf("delete user %q: %w", id, apperr.ErrNotFound)
//	}
//
//	if target.IsAdmin {
//	    return fmt.Errorf("delete user %q: %w", id, apperr.ErrProtectedUser)
//	}
package apperr

import "errors"

var (
	// ErrValidation indicates malformed or missing input.
	ErrValidation = errors.New("invalid input")

	// ErrConflict indicates a uniqueness violation, such as registering
	// an email that already has an account.
	ErrConflict = errors.New("conflict")

	// ErrBadCredentials indicates a failed login. Handlers must answer
	// with the same generic message whether the email was unknown or the
	// password wrong.
	ErrBadCredentials = errors.New("invalid credentials")

	// ErrForbidden indicates a missing session or insufficient privilege
	// for an admin-gated operation.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSelfDelete indicates an admin attempted to delete their own
	// account.
	ErrSelfDelete = errors.New("cannot delete own account")

	// ErrProtectedUser indicates an attempt to delete another account
	// that itself carries the admin flag.
	ErrProtectedUser = errors.New("cannot delete admin account")

	// ErrStorage indicates an underlying database failure.
	ErrStorage = errors.New("storage failure")

	// ErrUnknownRequest indicates the envelope carried a discriminator
	// tag outside the closed dispatch table.
	ErrUnknownRequest = errors.New("unknown request type")
)
