package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-booking/internal/clock"
	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/queue"
	"github.com/iliyamo/cinema-booking/internal/repository"
)

// OrderStore is the persistence the order service needs. *repository.OrderRepo
// implements it.
type OrderStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	SessionsForBooking(ctx context.Context, ids []uint64) (map[uint64]model.MovieSession, error)
	PlaceTaken(ctx context.Context, sessionID uint64, row, seat int) (bool, error)
	CreateOrder(ctx context.Context, o *model.Order) error
}

// TicketRequest is one requested place.
type TicketRequest struct {
	Row            int
	Seat           int
	MovieSessionID uint64
}

// CreateOrderInput is what a caller submits to book seats.
type CreateOrderInput struct {
	UserID  uint64
	Tickets []TicketRequest
}

// TicketProblem describes why one requested ticket was refused. Index is
// nil when the problem is not tied to a single ticket.
type TicketProblem struct {
	Index   *int   `json:"index,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// OrderValidationError is returned when an order is refused. Handlers
// answer it with 400 and the list of problems.
type OrderValidationError struct {
	Problems []TicketProblem
}

func (e *OrderValidationError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Message)
	}
	return "invalid order: " + strings.Join(msgs, "; ")
}

// ErrNoTickets is returned for an order without tickets.
var ErrNoTickets = errors.New("order must contain at least one ticket")

// bookingAttempts bounds how often a transaction aborted by a deadlock or
// lock wait timeout is run again.
const bookingAttempts = 3

// Problem messages.
const (
	msgSessionMissing = "movie session does not exist"
	msgRowRange       = "row number is out of range"
	msgSeatRange      = "seat number is out of range"
	msgTaken          = "seat is already taken"
	msgDuplicate      = "duplicate ticket in order"
	msgBadPlace       = "row and seat must be positive"
)

// OrderService validates and books orders.
type OrderService struct {
	store  OrderStore
	events EventPublisher
	clock  clock.Clock
	log    *zap.Logger
}

func NewOrderService(store OrderStore, events EventPublisher, clk clock.Clock, log *zap.Logger) *OrderService {
	if events == nil {
		events = NopPublisher{}
	}
	if clk == nil {
		clk = clock.System()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderService{store: store, events: events, clock: clk, log: log}
}

func indexPtr(i int) *int { return &i }

// CreateOrder books every requested ticket or none. The checks below run
// inside the same transaction as the insert; the unique key on
// (session, row, seat) catches a concurrent booking that slips between
// check and insert, and that case is reported like any taken seat. A
// transaction aborted by a deadlock or lock wait timeout is run again up to
// bookingAttempts times before it is reported the same way.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*model.Order, error) {
	if len(in.Tickets) == 0 {
		return nil, ErrNoTickets
	}
	if problems := checkRequestShape(in.Tickets); len(problems) > 0 {
		return nil, &OrderValidationError{Problems: problems}
	}

	order := &model.Order{
		UserID:    in.UserID,
		CreatedAt: s.clock.Now().UTC().Truncate(time.Microsecond),
		Tickets:   make([]model.Ticket, 0, len(in.Tickets)),
	}

	var err error
	for attempt := 1; attempt <= bookingAttempts; attempt++ {
		err = s.book(ctx, in, order)
		if !errors.Is(err, repository.ErrTxConflict) {
			break
		}
		s.log.Warn("order transaction conflict", zap.Int("attempt", attempt), zap.Uint64("user_id", in.UserID), zap.Error(err))
	}
	if err != nil {
		if errors.Is(err, repository.ErrSeatTaken) || errors.Is(err, repository.ErrTxConflict) {
			return nil, &OrderValidationError{Problems: []TicketProblem{{Field: "seat", Message: msgTaken}}}
		}
		if errors.Is(err, repository.ErrUnknownReference) {
			return nil, &OrderValidationError{Problems: []TicketProblem{{Field: "movie_session", Message: msgSessionMissing}}}
		}
		var verr *OrderValidationError
		if errors.As(err, &verr) {
			return nil, verr
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	if perr := s.events.PublishOrderCreated(ctx, orderEvent(order)); perr != nil {
		s.log.Warn("publish order.created failed", zap.Uint64("order_id", order.ID), zap.Error(perr))
	}
	return order, nil
}

// book runs one attempt of the check-and-insert transaction, filling order
// on success.
func (s *OrderService) book(ctx context.Context, in CreateOrderInput, order *model.Order) error {
	order.ID = 0
	order.Tickets = order.Tickets[:0]
	return s.store.WithTx(ctx, func(ctx context.Context) error {
		ids := make([]uint64, 0, len(in.Tickets))
		for _, t := range in.Tickets {
			ids = append(ids, t.MovieSessionID)
		}
		sessions, err := s.store.SessionsForBooking(ctx, ids)
		if err != nil {
			return err
		}

		var problems []TicketProblem
		for i, t := range in.Tickets {
			sess, ok := sessions[t.MovieSessionID]
			if !ok {
				problems = append(problems, TicketProblem{Index: indexPtr(i), Field: "movie_session", Message: msgSessionMissing})
				continue
			}
			inBounds := true
			if !sess.CinemaHall.RowInRange(t.Row) {
				problems = append(problems, TicketProblem{Index: indexPtr(i), Field: "row", Message: msgRowRange})
				inBounds = false
			}
			if !sess.CinemaHall.SeatInRange(t.Seat) {
				problems = append(problems, TicketProblem{Index: indexPtr(i), Field: "seat", Message: msgSeatRange})
				inBounds = false
			}
			if !inBounds {
				continue
			}
			taken, err := s.store.PlaceTaken(ctx, t.MovieSessionID, t.Row, t.Seat)
			if err != nil {
				return err
			}
			if taken {
				problems = append(problems, TicketProblem{Index: indexPtr(i), Field: "seat", Message: msgTaken})
				continue
			}
			sessCopy := sess
			order.Tickets = append(order.Tickets, model.Ticket{
				MovieSessionID: t.MovieSessionID,
				Row:            t.Row,
				Seat:           t.Seat,
				MovieSession:   &sessCopy,
			})
		}
		if len(problems) > 0 {
			return &OrderValidationError{Problems: problems}
		}
		return s.store.CreateOrder(ctx, order)
	})
}

// checkRequestShape rejects non-positive places and repeated triples
// before any database work.
func checkRequestShape(ts []TicketRequest) []TicketProblem {
	var problems []TicketProblem
	type triple struct {
		session   uint64
		row, seat int
	}
	first := make(map[triple]int, len(ts))
	for i, t := range ts {
		if t.Row < 1 || t.Seat < 1 || t.MovieSessionID == 0 {
			problems = append(problems, TicketProblem{Index: indexPtr(i), Message: msgBadPlace})
			continue
		}
		k := triple{t.MovieSessionID, t.Row, t.Seat}
		if j, dup := first[k]; dup {
			problems = append(problems, TicketProblem{
				Index:   indexPtr(i),
				Message: fmt.Sprintf("%s (same as ticket %d)", msgDuplicate, j),
			})
			continue
		}
		first[k] = i
	}
	return problems
}

func orderEvent(o *model.Order) queue.OrderCreatedEvent {
	ev := queue.OrderCreatedEvent{
		OrderID:   o.ID,
		UserID:    o.UserID,
		CreatedAt: o.CreatedAt,
		Tickets:   make([]queue.EventTicket, 0, len(o.Tickets)),
	}
	for _, t := range o.Tickets {
		et := queue.EventTicket{MovieSessionID: t.MovieSessionID, Row: t.Row, Seat: t.Seat}
		if t.MovieSession != nil {
			et.MovieTitle = t.MovieSession.Movie.Title
			et.HallName = t.MovieSession.CinemaHall.Name
			et.ShowTime = t.MovieSession.ShowTime
		}
		ev.Tickets = append(ev.Tickets, et)
	}
	return ev
}
