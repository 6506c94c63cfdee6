package core

import (
	"errors"

	"github.com/JonMunkholm/residents/internal/database"
)

var (
	// ErrNotFound is returned when a resident, user or setting does not exist.
	ErrNotFound = database.ErrNotFound

	// ErrForbidden is returned when the actor's role or secretariat scope
	// does not cover the requested operation.
	ErrForbidden = errors.New("forbidden: operation not permitted for this account")

	// ErrUnauthenticated is returned when a request carries no valid session.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrInvalidCredentials is returned for an unknown user, a wrong
	// password or a deactivated account. The cases are not distinguished.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrInvalidField is returned when an edit names a field that cannot be edited.
	ErrInvalidField = errors.New("invalid field: not editable")

	// ErrInvalidMode is returned for an unknown import mode.
	ErrInvalidMode = errors.New("invalid import mode")

	// ErrNoFiles is returned when an import is started without any source file.
	ErrNoFiles = errors.New("no file provided")

	// ErrInvalidFormat is returned for an export format other than csv or xlsx.
	ErrInvalidFormat = errors.New("invalid export format")

	// ErrInvalidSession is returned for a malformed progress session id.
	ErrInvalidSession = errors.New("invalid session id")
)

// ValidationError reports a rejected value.
type ValidationError struct {
	Field string
	Value string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return e.Field + ": " + e.Msg
	}
	return e.Field + ": " + e.Msg + " (" + e.Value + ")"
}
