// Package repository contains data access logic separated from HTTP
// handlers. Sentinel values defined here let handlers distinguish
// failure scenarios: ErrEmailExists maps to a conflict response while
// the not-found errors map to a user-safe "does not exist" message.
package repository

import (
	"errors"
	"strings"
)

// ErrEmailExists is returned when an insert violates the unique index
// on users.email.
var ErrEmailExists = errors.New("email already exists")

// ErrUserNotFound is returned when a user lookup matches no row.
var ErrUserNotFound = errors.New("user not found")

// ErrProductNotFound is returned when a product lookup matches no row.
var ErrProductNotFound = errors.New("product not found")

// isDuplicate reports whether err is a MySQL duplicate-key failure
// (error 1062). Matching on the driver error text avoids importing the
// driver's error types into every repository.
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}
