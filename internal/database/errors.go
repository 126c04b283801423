package database

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a queried row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned when an insert violates a uniqueness
	// constraint, such as a duplicate username or project name.
	ErrAlreadyExists = errors.New("record already exists")
)

// IsUniqueViolation reports whether err is a sqlite uniqueness constraint
// failure. Callers map it to ErrAlreadyExists at the package boundary.
func IsUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if !errors.As(err, &serr) {
		return false
	}
	return serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
