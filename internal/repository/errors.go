// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrConflict signals that an operation cannot proceed due to
// existing dependent records (e.g. deleting a hall that still has
// sessions), while ErrSeatTaken reports that a ticket insert lost a race
// for the same place.
package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrConflict is returned when a delete or update cannot be
// performed because of conflicting state, such as attempting to
// delete a movie that is still scheduled. Handlers should
// translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrNotFound is the base for every "no such row" error below.
var ErrNotFound = errors.New("not found")

var (
	ErrGenreNotFound   = fmt.Errorf("genre %w", ErrNotFound)
	ErrActorNotFound   = fmt.Errorf("actor %w", ErrNotFound)
	ErrHallNotFound    = fmt.Errorf("cinema hall %w", ErrNotFound)
	ErrMovieNotFound   = fmt.Errorf("movie %w", ErrNotFound)
	ErrSessionNotFound = fmt.Errorf("movie session %w", ErrNotFound)
	ErrOrderNotFound   = fmt.Errorf("order %w", ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)
)

// ErrDuplicate reports a unique key violation on a catalog row.
var ErrDuplicate = errors.New("duplicate")

// ErrSeatTaken is returned when inserting a ticket collides with an
// existing ticket for the same session, row and seat.
var ErrSeatTaken = errors.New("seat already taken")

// ErrUnknownReference is returned when a write points at a genre, actor,
// movie or hall id that does not exist.
var ErrUnknownReference = errors.New("unknown reference")

// ErrTxConflict is returned when InnoDB aborted the transaction with a
// deadlock or a lock wait timeout. The whole transaction may be retried.
var ErrTxConflict = errors.New("transaction conflict")

// MySQL server error numbers.
const (
	errLockWaitTimeout  = 1205
	errLockDeadlock     = 1213
	errDupEntry         = 1062
	errRowIsReferenced  = 1451
	errNoReferencedRow  = 1452
	errRowIsReferenced2 = 1217
	errNoReferencedRow2 = 1216
)

func isMySQLError(err error, codes ...uint16) bool {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return false
	}
	for _, c := range codes {
		if myErr.Number == c {
			return true
		}
	}
	return false
}

func isTxConflict(err error) bool {
	return isMySQLError(err, errLockDeadlock, errLockWaitTimeout)
}

func isDuplicate(err error) bool { return isMySQLError(err, errDupEntry) }

func isReferenced(err error) bool {
	return isMySQLError(err, errRowIsReferenced, errRowIsReferenced2)
}

func isMissingReference(err error) bool {
	return isMySQLError(err, errNoReferencedRow, errNoReferencedRow2)
}
