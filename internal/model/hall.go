package model

import "math"

// CinemaHall represents a screening room with a rectangular seat grid.
// Seats are addressed by a 1-based (row, seat) pair, so a hall with
// Rows=10 and SeatsInRow=12 has places (1,1) through (10,12).
//
// Fields:
//
//	ID         – primary key identifier.
//	Name       – display name of the hall.
//	Rows       – number of seating rows.
//	SeatsInRow – number of seats in every row.
type CinemaHall struct {
	ID         uint64 // cinema_halls.id
	Name       string // cinema_halls.name
	Rows       uint32 // cinema_halls.rows_count
	SeatsInRow uint32 // cinema_halls.seats_in_row
}

// Limits accepted for a hall's seat grid.
const (
	MaxHallRows   = 1000
	MaxSeatsInRow = 1000
)

// Capacity returns the total number of seats in the hall, saturating at
// math.MaxInt instead of wrapping.
func (h CinemaHall) Capacity() int {
	n := uint64(h.Rows) * uint64(h.SeatsInRow)
	if n > math.MaxInt {
		return math.MaxInt
	}
	return int(n)
}

// RowInRange reports whether row addresses an existing row of the hall.
func (h CinemaHall) RowInRange(row int) bool {
	return row >= 1 && row <= int(h.Rows)
}

// SeatInRange reports whether seat addresses an existing seat within a row.
func (h CinemaHall) SeatInRange(seat int) bool {
	return seat >= 1 && seat <= int(h.SeatsInRow)
}
