package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-booking/internal/clock"
	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/queue"
	"github.com/iliyamo/cinema-booking/internal/repository"
)

type fakeStore struct {
	mu        sync.Mutex
	sessions  map[uint64]model.MovieSession
	taken     map[uint64]map[model.Place]bool
	orders    []model.Order
	nextID    uint64
	createErr error
	conflicts int // CreateOrder calls that fail with ErrTxConflict first
	txCount   int
}

func newFakeStore() *fakeStore {
	show := time.Date(2024, 6, 1, 18, 30, 0, 0, time.UTC)
	return &fakeStore{
		sessions: map[uint64]model.MovieSession{
			1: {ID: 1, ShowTime: show, Movie: model.Movie{Title: "Alien"}, CinemaHall: model.CinemaHall{Name: "Blue", Rows: 2, SeatsInRow: 3}},
			2: {ID: 2, ShowTime: show, Movie: model.Movie{Title: "Heat"}, CinemaHall: model.CinemaHall{Name: "Red", Rows: 5, SeatsInRow: 5}},
		},
		taken: map[uint64]map[model.Place]bool{
			1: {{Row: 1, Seat: 1}: true},
		},
	}
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	f.txCount++
	f.mu.Unlock()
	return fn(ctx)
}

func (f *fakeStore) SessionsForBooking(_ context.Context, ids []uint64) (map[uint64]model.MovieSession, error) {
	out := map[uint64]model.MovieSession{}
	for _, id := range ids {
		if s, ok := f.sessions[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func (f *fakeStore) PlaceTaken(_ context.Context, sessionID uint64, row, seat int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.taken[sessionID][model.Place{Row: row, Seat: seat}], nil
}

func (f *fakeStore) CreateOrder(_ context.Context, o *model.Order) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflicts > 0 {
		f.conflicts--
		return fmt.Errorf("%w: Error 1213: Deadlock found when trying to get lock", repository.ErrTxConflict)
	}
	for _, t := range o.Tickets {
		if f.taken[t.MovieSessionID][t.Place()] {
			return repository.ErrSeatTaken
		}
	}
	f.nextID++
	o.ID = f.nextID
	for i := range o.Tickets {
		t := &o.Tickets[i]
		if f.taken[t.MovieSessionID] == nil {
			f.taken[t.MovieSessionID] = map[model.Place]bool{}
		}
		f.taken[t.MovieSessionID][t.Place()] = true
		t.ID = uint64(100 + i)
		t.OrderID = o.ID
	}
	f.orders = append(f.orders, *o)
	return nil
}

type recordingPublisher struct {
	events []queue.OrderCreatedEvent
	err    error
}

func (p *recordingPublisher) PublishOrderCreated(_ context.Context, ev queue.OrderCreatedEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

var now = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func newService(store OrderStore, pub EventPublisher) *OrderService {
	return NewOrderService(store, pub, clock.Fixed(now), zap.NewNop())
}

func problemsOf(t *testing.T, err error) []TicketProblem {
	t.Helper()
	var verr *OrderValidationError
	require.True(t, errors.As(err, &verr), "expected OrderValidationError, got %v", err)
	return verr.Problems
}

func TestCreateOrder_Success(t *testing.T) {
	store := newFakeStore()
	pub := &recordingPublisher{}
	svc := newService(store, pub)

	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		UserID: 7,
		Tickets: []TicketRequest{
			{MovieSessionID: 1, Row: 1, Seat: 2},
			{MovieSessionID: 1, Row: 2, Seat: 3},
			{MovieSessionID: 2, Row: 5, Seat: 5},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), order.ID)
	assert.Equal(t, now, order.CreatedAt)
	require.Len(t, order.Tickets, 3)
	require.Len(t, store.orders, 1)
	assert.Len(t, store.orders[0].Tickets, 3)

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, uint64(7), ev.UserID)
	assert.Equal(t, "Alien", ev.Tickets[0].MovieTitle)
	assert.Equal(t, "Red", ev.Tickets[2].HallName)
}

func TestCreateOrder_EmptyRejected(t *testing.T) {
	svc := newService(newFakeStore(), nil)
	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{UserID: 1})
	assert.ErrorIs(t, err, ErrNoTickets)
}

func TestCreateOrder_DuplicateInRequestRejectedBeforeStore(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, nil)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		UserID: 1,
		Tickets: []TicketRequest{
			{MovieSessionID: 2, Row: 1, Seat: 1},
			{MovieSessionID: 2, Row: 1, Seat: 1},
		},
	})
	problems := problemsOf(t, err)
	require.Len(t, problems, 1)
	assert.Equal(t, 1, *problems[0].Index)
	assert.Contains(t, problems[0].Message, msgDuplicate)
	assert.Zero(t, store.txCount)
	assert.Empty(t, store.orders)
}

func TestCreateOrder_CollectsEveryProblem(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, nil)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		UserID: 1,
		Tickets: []TicketRequest{
			{MovieSessionID: 1, Row: 3, Seat: 1},  // row out of range
			{MovieSessionID: 1, Row: 1, Seat: 4},  // seat out of range
			{MovieSessionID: 1, Row: 1, Seat: 1},  // taken
			{MovieSessionID: 99, Row: 1, Seat: 1}, // unknown session
			{MovieSessionID: 1, Row: 2, Seat: 2},  // fine
		},
	})
	problems := problemsOf(t, err)
	require.Len(t, problems, 4)

	assert.Equal(t, 0, *problems[0].Index)
	assert.Equal(t, "row", problems[0].Field)
	assert.Equal(t, msgRowRange, problems[0].Message)

	assert.Equal(t, 1, *problems[1].Index)
	assert.Equal(t, msgSeatRange, problems[1].Message)

	assert.Equal(t, 2, *problems[2].Index)
	assert.Equal(t, msgTaken, problems[2].Message)

	assert.Equal(t, 3, *problems[3].Index)
	assert.Equal(t, "movie_session", problems[3].Field)

	assert.Empty(t, store.orders, "no partial order")
	assert.False(t, store.taken[1][model.Place{Row: 2, Seat: 2}])
}

func TestCreateOrder_NonPositivePlace(t *testing.T) {
	svc := newService(newFakeStore(), nil)
	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		UserID:  1,
		Tickets: []TicketRequest{{MovieSessionID: 1, Row: 0, Seat: -1}},
	})
	problems := problemsOf(t, err)
	require.Len(t, problems, 1)
	assert.Equal(t, msgBadPlace, problems[0].Message)
}

func TestCreateOrder_LostRaceReportsTakenSeat(t *testing.T) {
	store := newFakeStore()
	store.createErr = repository.ErrSeatTaken
	pub := &recordingPublisher{}
	svc := newService(store, pub)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		UserID:  1,
		Tickets: []TicketRequest{{MovieSessionID: 2, Row: 1, Seat: 1}},
	})
	problems := problemsOf(t, err)
	require.Len(t, problems, 1)
	assert.Nil(t, problems[0].Index)
	assert.Equal(t, msgTaken, problems[0].Message)
	assert.Empty(t, pub.events)
}

func TestCreateOrder_StoreFailureIsWrapped(t *testing.T) {
	store := newFakeStore()
	boom := errors.New("connection reset")
	store.createErr = boom
	svc := newService(store, nil)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		UserID:  1,
		Tickets: []TicketRequest{{MovieSessionID: 2, Row: 1, Seat: 1}},
	})
	assert.ErrorIs(t, err, boom)
	var verr *OrderValidationError
	assert.False(t, errors.As(err, &verr))
}

func TestCreateOrder_PublishFailureDoesNotFailOrder(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := newService(newFakeStore(), pub)

	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		UserID:  1,
		Tickets: []TicketRequest{{MovieSessionID: 2, Row: 3, Seat: 3}},
	})
	require.NoError(t, err)
	assert.NotZero(t, order.ID)
	assert.Len(t, pub.events, 1)
}

func TestCreateOrder_ConcurrentSameSeatOneWins(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, nil)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(uid uint64) {
			defer wg.Done()
			_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
				UserID:  uid,
				Tickets: []TicketRequest{{MovieSessionID: 2, Row: 4, Seat: 4}},
			})
			errs <- err
		}(uint64(i + 1))
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		problemsOf(t, err)
	}
	assert.Equal(t, 1, ok)
	assert.Len(t, store.orders, 1)
}

func TestOrderValidationError_Message(t *testing.T) {
	err := &OrderValidationError{Problems: []TicketProblem{{Message: "a"}, {Message: "b"}}}
	assert.Equal(t, "invalid order: a; b", err.Error())
}

func TestCreateOrder_RetriesAfterDeadlock(t *testing.T) {
	store := newFakeStore()
	store.conflicts = 1
	pub := &recordingPublisher{}
	svc := newService(store, pub)

	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		UserID:  3,
		Tickets: []TicketRequest{{Row: 2, Seat: 2, MovieSessionID: 1}, {Row: 1, Seat: 3, MovieSessionID: 2}},
	})
	require.NoError(t, err)
	assert.Len(t, order.Tickets, 2)
	assert.Equal(t, 2, store.txCount)
	assert.Len(t, store.orders, 1)
	assert.Len(t, pub.events, 1)
}

func TestCreateOrder_PersistentDeadlockIsValidationError(t *testing.T) {
	store := newFakeStore()
	store.conflicts = bookingAttempts
	svc := newService(store, &recordingPublisher{})

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		UserID:  3,
		Tickets: []TicketRequest{{Row: 2, Seat: 2, MovieSessionID: 1}},
	})
	problems := problemsOf(t, err)
	require.Len(t, problems, 1)
	assert.Nil(t, problems[0].Index)
	assert.Equal(t, msgTaken, problems[0].Message)
	assert.Equal(t, bookingAttempts, store.txCount)
	assert.Empty(t, store.orders)
}
