package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// OrderRepo stores orders and their tickets. Tickets are only ever written
// together with their order, inside one transaction.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

func (r *OrderRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.db, fn)
}

// SessionsForBooking loads the sessions referenced by an order request,
// keyed by id. Missing ids are simply absent from the map. Rows are read
// with a shared lock so a concurrent hall resize or session delete waits
// for the booking transaction.
func (r *OrderRepo) SessionsForBooking(ctx context.Context, ids []uint64) (map[uint64]model.MovieSession, error) {
	out := make(map[uint64]model.MovieSession, len(ids))
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return out, nil
	}
	q := `SELECT s.id, s.show_time, s.movie_id, s.cinema_hall_id, m.title, h.name, h.rows_count, h.seats_in_row
		FROM movie_sessions s
		JOIN movies m       ON m.id = s.movie_id
		JOIN cinema_halls h ON h.id = s.cinema_hall_id
		WHERE s.id IN (` + placeholders(len(ids)) + `)
		FOR SHARE`
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, idArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s model.MovieSession
		if err := rows.Scan(&s.ID, &s.ShowTime, &s.MovieID, &s.CinemaHallID,
			&s.Movie.Title, &s.CinemaHall.Name, &s.CinemaHall.Rows, &s.CinemaHall.SeatsInRow); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.Movie.ID = s.MovieID
		s.CinemaHall.ID = s.CinemaHallID
		s.ShowTime = s.ShowTime.UTC()
		out[s.ID] = s
	}
	return out, rows.Err()
}

// PlaceTaken reports whether a ticket already exists for the place.
func (r *OrderRepo) PlaceTaken(ctx context.Context, sessionID uint64, row, seat int) (bool, error) {
	var n int
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tickets WHERE movie_session_id = ? AND row_no = ? AND seat_no = ?`,
		sessionID, row, seat).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check place: %w", err)
	}
	return n > 0, nil
}

// CreateOrder inserts the order row and all of its tickets, then assigns
// generated ids back onto o. A unique key collision on a ticket place
// yields ErrSeatTaken. Callers run it inside WithTx so a failure leaves
// no partial order behind.
func (r *OrderRepo) CreateOrder(ctx context.Context, o *model.Order) error {
	q := conn(ctx, r.db)
	res, err := q.ExecContext(ctx, `INSERT INTO orders (user_id, created_at) VALUES (?, ?)`, o.UserID, o.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	if len(o.Tickets) == 0 {
		return nil
	}

	// Rows go in (session, row, seat) order so concurrent orders for
	// overlapping places take their index locks in the same order.
	sorted := make([]model.Ticket, len(o.Tickets))
	copy(sorted, o.Tickets)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.MovieSessionID != b.MovieSessionID {
			return a.MovieSessionID < b.MovieSessionID
		}
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Seat < b.Seat
	})

	var sb strings.Builder
	sb.WriteString(`INSERT INTO tickets (order_id, movie_session_id, row_no, seat_no) VALUES `)
	args := make([]any, 0, len(sorted)*4)
	for i, t := range sorted {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?)")
		args = append(args, o.ID, t.MovieSessionID, t.Row, t.Seat)
	}
	if _, err := q.ExecContext(ctx, sb.String(), args...); err != nil {
		if isDuplicate(err) {
			return ErrSeatTaken
		}
		if isMissingReference(err) {
			return ErrUnknownReference
		}
		return fmt.Errorf("create tickets: %w", err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, movie_session_id, row_no, seat_no FROM tickets WHERE order_id = ?`, o.ID)
	if err != nil {
		return fmt.Errorf("reload tickets: %w", err)
	}
	defer rows.Close()
	type key struct {
		session uint64
		place   model.Place
	}
	ids := make(map[key]uint64, len(o.Tickets))
	for rows.Next() {
		var (
			tid uint64
			k   key
		)
		if err := rows.Scan(&tid, &k.session, &k.place.Row, &k.place.Seat); err != nil {
			return err
		}
		ids[k] = tid
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range o.Tickets {
		o.Tickets[i].OrderID = o.ID
		o.Tickets[i].ID = ids[key{session: o.Tickets[i].MovieSessionID, place: o.Tickets[i].Place()}]
	}
	return nil
}

// ListByUser returns one page of the user's orders, newest first, and the
// total number of orders the user has.
func (r *OrderRepo) ListByUser(ctx context.Context, userID uint64, limit, offset int) ([]model.Order, int, error) {
	q := conn(ctx, r.db)
	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, user_id, created_at FROM orders WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	out := []model.Order{}
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.CreatedAt); err != nil {
			return nil, 0, err
		}
		o.CreatedAt = o.CreatedAt.UTC()
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := attachTickets(ctx, q, out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// GetForUser returns one order if it belongs to userID.
func (r *OrderRepo) GetForUser(ctx context.Context, userID, orderID uint64) (*model.Order, error) {
	q := conn(ctx, r.db)
	var o model.Order
	err := q.QueryRowContext(ctx,
		`SELECT id, user_id, created_at FROM orders WHERE id = ? AND user_id = ?`, orderID, userID).
		Scan(&o.ID, &o.UserID, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	o.CreatedAt = o.CreatedAt.UTC()
	list := []model.Order{o}
	if err := attachTickets(ctx, q, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// attachTickets loads tickets with their session summary for every order.
func attachTickets(ctx context.Context, q querier, orders []model.Order) error {
	if len(orders) == 0 {
		return nil
	}
	index := make(map[uint64]int, len(orders))
	ids := make([]uint64, 0, len(orders))
	for i := range orders {
		orders[i].Tickets = []model.Ticket{}
		index[orders[i].ID] = i
		ids = append(ids, orders[i].ID)
	}

	rows, err := q.QueryContext(ctx, `SELECT
			t.id, t.order_id, t.movie_session_id, t.row_no, t.seat_no,
			s.show_time, s.movie_id, s.cinema_hall_id, m.title, h.name, h.rows_count, h.seats_in_row
		FROM tickets t
		JOIN movie_sessions s ON s.id = t.movie_session_id
		JOIN movies m         ON m.id = s.movie_id
		JOIN cinema_halls h   ON h.id = s.cinema_hall_id
		WHERE t.order_id IN (`+placeholders(len(ids))+`)
		ORDER BY t.id`, idArgs(ids)...)
	if err != nil {
		return fmt.Errorf("load tickets: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			t model.Ticket
			s model.MovieSession
		)
		if err := rows.Scan(&t.ID, &t.OrderID, &t.MovieSessionID, &t.Row, &t.Seat,
			&s.ShowTime, &s.MovieID, &s.CinemaHallID, &s.Movie.Title,
			&s.CinemaHall.Name, &s.CinemaHall.Rows, &s.CinemaHall.SeatsInRow); err != nil {
			return err
		}
		s.ID = t.MovieSessionID
		s.Movie.ID = s.MovieID
		s.CinemaHall.ID = s.CinemaHallID
		s.ShowTime = s.ShowTime.UTC()
		t.MovieSession = &s
		if i, ok := index[t.OrderID]; ok {
			orders[i].Tickets = append(orders[i].Tickets, t)
		}
	}
	return rows.Err()
}
