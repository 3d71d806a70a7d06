package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// SessionFilter narrows List. A nil Date or zero MovieID disables the
// corresponding condition.
type SessionFilter struct {
	Date    *time.Time // sessions whose show_time falls on this UTC day
	MovieID uint64
}

// MovieSessionRepo manages scheduled screenings. Reads join the movie and
// hall and count sold tickets so availability can be derived without a
// second round trip.
type MovieSessionRepo struct {
	db *sql.DB
}

func NewMovieSessionRepo(db *sql.DB) *MovieSessionRepo { return &MovieSessionRepo{db: db} }

const sessionSelect = `SELECT
		s.id, s.show_time, s.movie_id, s.cinema_hall_id,
		m.title, m.description, m.duration,
		h.name, h.rows_count, h.seats_in_row,
		COUNT(t.id) AS tickets_sold
	FROM movie_sessions s
	JOIN movies m       ON m.id = s.movie_id
	JOIN cinema_halls h ON h.id = s.cinema_hall_id
	LEFT JOIN tickets t ON t.movie_session_id = s.id`

const sessionGroupBy = ` GROUP BY s.id, s.show_time, s.movie_id, s.cinema_hall_id,
		m.title, m.description, m.duration, h.name, h.rows_count, h.seats_in_row`

func scanSession(sc interface{ Scan(...any) error }) (model.MovieSession, error) {
	var s model.MovieSession
	err := sc.Scan(
		&s.ID, &s.ShowTime, &s.MovieID, &s.CinemaHallID,
		&s.Movie.Title, &s.Movie.Description, &s.Movie.Duration,
		&s.CinemaHall.Name, &s.CinemaHall.Rows, &s.CinemaHall.SeatsInRow,
		&s.TicketsSold,
	)
	s.Movie.ID = s.MovieID
	s.CinemaHall.ID = s.CinemaHallID
	s.ShowTime = s.ShowTime.UTC()
	return s, err
}

// List returns sessions matching f ordered by show time.
func (r *MovieSessionRepo) List(ctx context.Context, f SessionFilter) ([]model.MovieSession, error) {
	where := []string{}
	args := []any{}
	if f.Date != nil {
		day := time.Date(f.Date.Year(), f.Date.Month(), f.Date.Day(), 0, 0, 0, 0, time.UTC)
		where = append(where, "s.show_time >= ? AND s.show_time < ?")
		args = append(args, day, day.AddDate(0, 0, 1))
	}
	if f.MovieID != 0 {
		where = append(where, "s.movie_id = ?")
		args = append(args, f.MovieID)
	}
	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	rows, err := conn(ctx, r.db).QueryContext(ctx,
		sessionSelect+` WHERE `+cond+sessionGroupBy+` ORDER BY s.show_time, s.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.MovieSession{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetByID returns one session with the movie's genres and actors loaded.
func (r *MovieSessionRepo) GetByID(ctx context.Context, id uint64) (*model.MovieSession, error) {
	q := conn(ctx, r.db)
	s, err := scanSession(q.QueryRowContext(ctx, sessionSelect+` WHERE s.id = ?`+sessionGroupBy, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	movies := []model.Movie{s.Movie}
	if err := attachMovieLinks(ctx, q, movies); err != nil {
		return nil, err
	}
	s.Movie = movies[0]
	return &s, nil
}

// TakenPlaces lists the places already sold for a session ordered by row
// then seat.
func (r *MovieSessionRepo) TakenPlaces(ctx context.Context, sessionID uint64) ([]model.Place, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT row_no, seat_no FROM tickets WHERE movie_session_id = ? ORDER BY row_no, seat_no`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Place{}
	for rows.Next() {
		var p model.Place
		if err := rows.Scan(&p.Row, &p.Seat); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create schedules a session. Unknown movie or hall ids yield
// ErrUnknownReference.
func (r *MovieSessionRepo) Create(ctx context.Context, s *model.MovieSession) error {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO movie_sessions (show_time, movie_id, cinema_hall_id) VALUES (?, ?, ?)`,
		s.ShowTime.UTC(), s.MovieID, s.CinemaHallID)
	if err != nil {
		if isMissingReference(err) {
			return ErrUnknownReference
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

func (r *MovieSessionRepo) Update(ctx context.Context, s *model.MovieSession) error {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE movie_sessions SET show_time = ?, movie_id = ?, cinema_hall_id = ? WHERE id = ?`,
		s.ShowTime.UTC(), s.MovieID, s.CinemaHallID, s.ID)
	if err != nil {
		if isMissingReference(err) {
			return ErrUnknownReference
		}
		return err
	}
	return affectedOrNotFound(res, ErrSessionNotFound)
}

// Delete removes a session. A session with sold tickets yields ErrConflict.
func (r *MovieSessionRepo) Delete(ctx context.Context, id uint64) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM movie_sessions WHERE id = ?`, id)
	if err != nil {
		if isReferenced(err) {
			return ErrConflict
		}
		return err
	}
	return affectedOrNotFound(res, ErrSessionNotFound)
}
