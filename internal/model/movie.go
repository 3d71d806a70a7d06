package model

// Movie is a film that can be scheduled in movie sessions. Genres and
// Actors are many-to-many relations loaded by the repository; they are
// nil when the caller asked only for the movie row.
//
// Fields:
//
//	ID          – primary key identifier.
//	Title       – movie title.
//	Description – free text synopsis.
//	Duration    – running time in minutes.
type Movie struct {
	ID          uint64  // movies.id
	Title       string  // movies.title
	Description string  // movies.description
	Duration    uint32  // movies.duration
	Genres      []Genre // via movie_genres
	Actors      []Actor // via movie_actors
}

// GenreNames returns the names of the movie's genres in load order.
func (m Movie) GenreNames() []string {
	out := make([]string, 0, len(m.Genres))
	for _, g := range m.Genres {
		out = append(out, g.Name)
	}
	return out
}

// ActorNames returns the full names of the movie's actors in load order.
func (m Movie) ActorNames() []string {
	out := make([]string, 0, len(m.Actors))
	for _, a := range m.Actors {
		out = append(out, a.FullName())
	}
	return out
}
