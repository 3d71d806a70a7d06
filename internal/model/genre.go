package model

// Genre is a movie category such as "Drama". Names are unique.
type Genre struct {
	ID   uint64 // genres.id
	Name string // genres.name
}
