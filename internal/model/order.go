package model

import "time"

// Order groups the tickets a user bought in one request. Orders and their
// tickets are written together and never modified afterwards.
type Order struct {
	ID        uint64    // orders.id
	UserID    uint64    // orders.user_id
	CreatedAt time.Time // orders.created_at
	Tickets   []Ticket
}

// Ticket reserves one place of one movie session and belongs to an order.
// (MovieSessionID, Row, Seat) is unique across all tickets.
type Ticket struct {
	ID             uint64 // tickets.id
	OrderID        uint64 // tickets.order_id
	MovieSessionID uint64 // tickets.movie_session_id
	Row            int    // tickets.row_no
	Seat           int    // tickets.seat_no
	// MovieSession is populated by order reads with the session's show
	// time, movie title and hall.
	MovieSession *MovieSession
}

// Place returns the ticket's (row, seat) pair.
func (t Ticket) Place() Place {
	return Place{Row: t.Row, Seat: t.Seat}
}
