package model

import "strings"

// Actor is a person credited in one or more movies.
type Actor struct {
	ID        uint64 // actors.id
	FirstName string // actors.first_name
	LastName  string // actors.last_name
}

// FullName joins the trimmed first and last name with a single space.
// Missing parts are skipped, so an actor with only a last name yields just
// that name.
func (a Actor) FullName() string {
	first := strings.TrimSpace(a.FirstName)
	last := strings.TrimSpace(a.LastName)
	return strings.TrimSpace(first + " " + last)
}
