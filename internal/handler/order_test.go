package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/repository"
	"github.com/iliyamo/cinema-booking/internal/service"
)

type fakeOrderCreator struct {
	got   service.CreateOrderInput
	order *model.Order
	err   error
}

func (f *fakeOrderCreator) CreateOrder(_ context.Context, in service.CreateOrderInput) (*model.Order, error) {
	f.got = in
	return f.order, f.err
}

type fakeOrderReader struct {
	orders  []model.Order // newest first
	userID  uint64
	offsets []int
}

func (f *fakeOrderReader) ListByUser(_ context.Context, userID uint64, limit, offset int) ([]model.Order, int, error) {
	f.userID = userID
	f.offsets = append(f.offsets, offset)
	if offset >= len(f.orders) {
		return nil, len(f.orders), nil
	}
	end := offset + limit
	if end > len(f.orders) {
		end = len(f.orders)
	}
	return f.orders[offset:end], len(f.orders), nil
}

func (f *fakeOrderReader) GetForUser(_ context.Context, userID, orderID uint64) (*model.Order, error) {
	for _, o := range f.orders {
		if o.ID == orderID && o.UserID == userID {
			return &o, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func orderEcho(h *OrderHandler, userID uint64) *echo.Echo {
	e := newTestEcho()
	g := e.Group("/v1/orders", asUser(userID))
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	return e
}

func sampleOrder(id uint64) model.Order {
	sess := &model.MovieSession{
		ID:         4,
		ShowTime:   time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC),
		Movie:      model.Movie{ID: 2, Title: "Heat"},
		CinemaHall: model.CinemaHall{ID: 1, Name: "Red", Rows: 10, SeatsInRow: 12},
	}
	return model.Order{
		ID:        id,
		UserID:    5,
		CreatedAt: time.Date(2026, 4, 1, 10, 0, int(id), 0, time.UTC),
		Tickets:   []model.Ticket{{ID: id * 10, MovieSessionID: 4, Row: 3, Seat: 7, MovieSession: sess}},
	}
}

func TestOrderHandler_Create(t *testing.T) {
	o := sampleOrder(1)
	creator := &fakeOrderCreator{order: &o}
	e := orderEcho(NewOrderHandler(creator, &fakeOrderReader{}, 2, zap.NewNop()), 5)

	rec := serve(e, http.MethodPost, "/v1/orders", `{"tickets":[{"row":3,"seat":7,"movie_session":4}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, service.CreateOrderInput{
		UserID:  5,
		Tickets: []service.TicketRequest{{Row: 3, Seat: 7, MovieSessionID: 4}},
	}, creator.got)

	var body orderResp
	decode(t, rec, &body)
	require.Len(t, body.Tickets, 1)
	assert.Equal(t, ticketSessionResp{
		ID:                 4,
		ShowTime:           time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC),
		MovieTitle:         "Heat",
		CinemaHallName:     "Red",
		CinemaHallCapacity: 120,
	}, body.Tickets[0].MovieSession)
	assert.Equal(t, uint64(10), body.Tickets[0].ID)
}

func TestOrderHandler_CreateRejected(t *testing.T) {
	idx := 1
	cases := []struct {
		name    string
		err     error
		wantSub string
	}{
		{"empty", service.ErrNoTickets, `"field":"tickets"`},
		{"problems", &service.OrderValidationError{Problems: []service.TicketProblem{
			{Index: &idx, Field: "seat", Message: "seat is already taken"},
		}}, `{"index":1,"field":"seat","message":"seat is already taken"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			creator := &fakeOrderCreator{err: tc.err}
			e := orderEcho(NewOrderHandler(creator, &fakeOrderReader{}, 2, zap.NewNop()), 5)
			rec := serve(e, http.MethodPost, "/v1/orders", `{"tickets":[]}`)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error":"invalid order"`)
			assert.Contains(t, rec.Body.String(), tc.wantSub)
		})
	}

	t.Run("internal", func(t *testing.T) {
		creator := &fakeOrderCreator{err: errors.New("deadlock")}
		e := orderEcho(NewOrderHandler(creator, &fakeOrderReader{}, 2, zap.NewNop()), 5)
		rec := serve(e, http.MethodPost, "/v1/orders", `{"tickets":[{"row":1,"seat":1,"movie_session":1}]}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestOrderHandler_ListPagination(t *testing.T) {
	reader := &fakeOrderReader{orders: []model.Order{sampleOrder(3), sampleOrder(2), sampleOrder(1)}}
	e := orderEcho(NewOrderHandler(&fakeOrderCreator{}, reader, 2, zap.NewNop()), 5)

	rec := serve(e, http.MethodGet, "/v1/orders")
	require.Equal(t, http.StatusOK, rec.Code)
	var page orderPage
	decode(t, rec, &page)
	assert.Equal(t, 3, page.Count)
	assert.Nil(t, page.Previous)
	require.NotNil(t, page.Next)
	assert.Equal(t, "http://example.com/v1/orders?page=2", *page.Next)
	require.Len(t, page.Results, 2)
	assert.Equal(t, uint64(3), page.Results[0].ID)
	assert.Equal(t, uint64(5), reader.userID)

	rec = serve(e, http.MethodGet, "/v1/orders?page=2")
	require.Equal(t, http.StatusOK, rec.Code)
	page = orderPage{}
	decode(t, rec, &page)
	assert.Nil(t, page.Next)
	require.NotNil(t, page.Previous)
	assert.Equal(t, "http://example.com/v1/orders", *page.Previous)
	require.Len(t, page.Results, 1)
	assert.Equal(t, uint64(1), page.Results[0].ID)

	for _, bad := range []string{"3", "0", "-1", "abc"} {
		rec = serve(e, http.MethodGet, "/v1/orders?page="+bad)
		assert.Equal(t, http.StatusNotFound, rec.Code, bad)
		assert.Contains(t, rec.Body.String(), "invalid page")
	}
}

func TestOrderHandler_ListHugePageIsInvalid(t *testing.T) {
	reader := &fakeOrderReader{orders: []model.Order{sampleOrder(1)}}
	e := orderEcho(NewOrderHandler(&fakeOrderCreator{}, reader, 20, zap.NewNop()), 5)

	for _, huge := range []string{"9223372036854775807", "461168601842738791", "107374184"} {
		rec := serve(e, http.MethodGet, "/v1/orders?page="+huge)
		assert.Equal(t, http.StatusNotFound, rec.Code, huge)
		assert.Contains(t, rec.Body.String(), "invalid page")
	}
	assert.Empty(t, reader.offsets)

	rec := serve(e, http.MethodGet, "/v1/orders?page=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{0}, reader.offsets)
}

func TestOrderHandler_ListEmptyFirstPage(t *testing.T) {
	e := orderEcho(NewOrderHandler(&fakeOrderCreator{}, &fakeOrderReader{}, 1, zap.NewNop()), 5)
	rec := serve(e, http.MethodGet, "/v1/orders")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":0,"next":null,"previous":null,"results":[]}`, rec.Body.String())
}

func TestOrderHandler_GetOwnOnly(t *testing.T) {
	reader := &fakeOrderReader{orders: []model.Order{sampleOrder(1)}}
	h := NewOrderHandler(&fakeOrderCreator{}, reader, 1, zap.NewNop())

	rec := serve(orderEcho(h, 5), http.MethodGet, "/v1/orders/1")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(orderEcho(h, 6), http.MethodGet, "/v1/orders/1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderHandler_RequiresUser(t *testing.T) {
	e := newTestEcho()
	h := NewOrderHandler(&fakeOrderCreator{}, &fakeOrderReader{}, 1, zap.NewNop())
	e.GET("/v1/orders", h.List)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/v1/orders").Code)
}
