package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking/internal/model"
)

func newMock(t *testing.T) (*OrderRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewOrderRepo(db), mock
}

func TestOrderRepo_CreateOrderAssignsIDs(t *testing.T) {
	repo, mock := newMock(t)
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO orders (user_id, created_at) VALUES (?, ?)`)).
		WithArgs(uint64(7), created).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO tickets (order_id, movie_session_id, row_no, seat_no) VALUES (?, ?, ?, ?),(?, ?, ?, ?)`)).
		WithArgs(uint64(42), uint64(3), 1, 1, uint64(42), uint64(3), 1, 2).
		WillReturnResult(sqlmock.NewResult(100, 2))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, movie_session_id, row_no, seat_no FROM tickets WHERE order_id = ?`)).
		WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "movie_session_id", "row_no", "seat_no"}).
			AddRow(100, 3, 1, 1).
			AddRow(101, 3, 1, 2))
	mock.ExpectCommit()

	order := &model.Order{
		UserID:    7,
		CreatedAt: created,
		Tickets: []model.Ticket{
			{MovieSessionID: 3, Row: 1, Seat: 1},
			{MovieSessionID: 3, Row: 1, Seat: 2},
		},
	}
	err := repo.WithTx(context.Background(), func(ctx context.Context) error {
		return repo.CreateOrder(ctx, order)
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(42), order.ID)
	assert.Equal(t, uint64(100), order.Tickets[0].ID)
	assert.Equal(t, uint64(101), order.Tickets[1].ID)
	assert.Equal(t, uint64(42), order.Tickets[1].OrderID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_DuplicatePlaceRollsBack(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO orders`).WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectExec(`INSERT INTO tickets`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '3-1-1' for key 'uq_ticket_place'"})
	mock.ExpectRollback()

	order := &model.Order{UserID: 1, CreatedAt: time.Now(), Tickets: []model.Ticket{{MovieSessionID: 3, Row: 1, Seat: 1}}}
	err := repo.WithTx(context.Background(), func(ctx context.Context) error {
		return repo.CreateOrder(ctx, order)
	})
	assert.ErrorIs(t, err, ErrSeatTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_SessionsForBooking(t *testing.T) {
	repo, mock := newMock(t)
	show := time.Date(2024, 6, 1, 18, 30, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM movie_sessions s .* WHERE s.id IN \(\?,\?\) FOR SHARE`).
		WithArgs(uint64(1), uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "show_time", "movie_id", "cinema_hall_id", "title", "name", "rows_count", "seats_in_row"}).
			AddRow(1, show, 10, 20, "Alien", "Blue", 5, 8))

	got, err := repo.SessionsForBooking(context.Background(), []uint64{1, 2, 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	s := got[1]
	assert.Equal(t, "Alien", s.Movie.Title)
	assert.Equal(t, uint32(5), s.CinemaHall.Rows)
	assert.Equal(t, uint32(8), s.CinemaHall.SeatsInRow)
	assert.Equal(t, uint64(20), s.CinemaHall.ID)
	_, missing := got[2]
	assert.False(t, missing)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_PlaceTaken(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM tickets`).
		WithArgs(uint64(4), 2, 3).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

	taken, err := repo.PlaceTaken(context.Background(), 4, 2, 3)
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestOrderRepo_ListByUser(t *testing.T) {
	repo, mock := newMock(t)
	created := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	show := time.Date(2024, 6, 1, 18, 30, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM orders WHERE user_id = ?`)).
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(3))
	mock.ExpectQuery(`ORDER BY created_at DESC, id DESC LIMIT \? OFFSET \?`).
		WithArgs(uint64(5), 1, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "created_at"}).AddRow(8, 5, created))
	mock.ExpectQuery(`FROM tickets t .* WHERE t.order_id IN \(\?\)`).
		WithArgs(uint64(8)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "order_id", "movie_session_id", "row_no", "seat_no",
			"show_time", "movie_id", "cinema_hall_id", "title", "name", "rows_count", "seats_in_row",
		}).AddRow(30, 8, 2, 4, 5, show, 10, 20, "Alien", "Blue", 5, 8))

	orders, total, err := repo.ListByUser(context.Background(), 5, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, orders, 1)
	require.Len(t, orders[0].Tickets, 1)
	tk := orders[0].Tickets[0]
	assert.Equal(t, 4, tk.Row)
	assert.Equal(t, "Blue", tk.MovieSession.CinemaHall.Name)
	assert.Equal(t, 40, tk.MovieSession.CinemaHall.Capacity())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_GetForUserNotFound(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`FROM orders WHERE id = \? AND user_id = \?`).
		WithArgs(uint64(8), uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "created_at"}))

	_, err := repo.GetForUser(context.Background(), 5, 8)
	assert.True(t, errors.Is(err, ErrOrderNotFound))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOrderRepo_CreateOrderInsertsInPlaceOrder(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO orders`).WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec(`INSERT INTO tickets`).
		WithArgs(uint64(5), uint64(2), 1, 4, uint64(5), uint64(3), 1, 2, uint64(5), uint64(3), 2, 1).
		WillReturnResult(sqlmock.NewResult(10, 3))
	mock.ExpectQuery(`SELECT id, movie_session_id, row_no, seat_no FROM tickets`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "movie_session_id", "row_no", "seat_no"}).
			AddRow(10, 2, 1, 4).
			AddRow(11, 3, 1, 2).
			AddRow(12, 3, 2, 1))
	mock.ExpectCommit()

	order := &model.Order{UserID: 1, CreatedAt: time.Now(), Tickets: []model.Ticket{
		{MovieSessionID: 3, Row: 2, Seat: 1},
		{MovieSessionID: 3, Row: 1, Seat: 2},
		{MovieSessionID: 2, Row: 1, Seat: 4},
	}}
	err := repo.WithTx(context.Background(), func(ctx context.Context) error {
		return repo.CreateOrder(ctx, order)
	})
	require.NoError(t, err)

	// Request order is preserved on the returned order.
	assert.Equal(t, uint64(12), order.Tickets[0].ID)
	assert.Equal(t, uint64(11), order.Tickets[1].ID)
	assert.Equal(t, uint64(10), order.Tickets[2].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_DeadlockIsTxConflict(t *testing.T) {
	for _, code := range []uint16{1213, 1205} {
		repo, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO orders`).WillReturnResult(sqlmock.NewResult(9, 1))
		mock.ExpectExec(`INSERT INTO tickets`).
			WillReturnError(&mysql.MySQLError{Number: code, Message: "Deadlock found when trying to get lock"})
		mock.ExpectRollback()

		order := &model.Order{UserID: 1, CreatedAt: time.Now(), Tickets: []model.Ticket{{MovieSessionID: 3, Row: 1, Seat: 1}}}
		err := repo.WithTx(context.Background(), func(ctx context.Context) error {
			return repo.CreateOrder(ctx, order)
		})
		assert.ErrorIs(t, err, ErrTxConflict, "code %d", code)
		assert.NotErrorIs(t, err, ErrSeatTaken)
		require.NoError(t, mock.ExpectationsWereMet())
	}
}
