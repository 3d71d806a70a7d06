package model

import "time"

// MovieSession is a scheduled screening of a movie in a hall.
//
// Fields:
//
//	ID           – primary key identifier.
//	ShowTime     – when the screening starts (UTC).
//	MovieID      – movie being shown.
//	CinemaHallID – hall where the screening takes place.
//	Movie        – joined movie row; only ID and Title are guaranteed.
//	CinemaHall   – joined hall row.
//	TicketsSold  – number of tickets referencing the session, when loaded.
type MovieSession struct {
	ID           uint64    // movie_sessions.id
	ShowTime     time.Time // movie_sessions.show_time
	MovieID      uint64    // movie_sessions.movie_id
	CinemaHallID uint64    // movie_sessions.cinema_hall_id
	Movie        Movie
	CinemaHall   CinemaHall
	TicketsSold  int
}

// TicketsAvailable is the hall capacity minus the tickets already sold.
// It never goes below zero, even if a hall was shrunk after tickets were
// issued.
func (s MovieSession) TicketsAvailable() int {
	left := s.CinemaHall.Capacity() - s.TicketsSold
	if left < 0 {
		return 0
	}
	return left
}

// Place addresses a single seat of a hall.
type Place struct {
	Row  int
	Seat int
}
