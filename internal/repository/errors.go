// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// inspecting driver errors.
package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the addressed row does not exist.
// Handlers translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when a create or update would give two
// users the same email.
var ErrEmailExists = errors.New("email already exists")

// ErrConflict is returned when an insert collides with a unique key
// other than the user email, such as a duplicate franchise name.
var ErrConflict = errors.New("conflict")

// ErrUnknownStore is returned when an order names a store that does not
// belong to the order's franchise.
var ErrUnknownStore = errors.New("unknown store")

// ErrUnknownMenuItem is returned when an order references a menu id that
// does not exist.
var ErrUnknownMenuItem = errors.New("unknown menu item")

// UnknownAdminError reports a franchise admin email with no matching user.
type UnknownAdminError struct{ Email string }

func (e *UnknownAdminError) Error() string {
	return fmt.Sprintf("unknown user for franchise admin email %s", e.Email)
}

// isDuplicate reports whether err is a MySQL duplicate-key error (1062).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
