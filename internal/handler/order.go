package handler

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/repository"
	"github.com/iliyamo/cinema-booking/internal/service"
)

// OrderCreator is implemented by *service.OrderService.
type OrderCreator interface {
	CreateOrder(ctx context.Context, in service.CreateOrderInput) (*model.Order, error)
}

// OrderReader is implemented by *repository.OrderRepo.
type OrderReader interface {
	ListByUser(ctx context.Context, userID uint64, limit, offset int) ([]model.Order, int, error)
	GetForUser(ctx context.Context, userID, orderID uint64) (*model.Order, error)
}

// maxOrderOffset bounds the row offset a page number may produce.
const maxOrderOffset = math.MaxInt32

// OrderHandler serves /v1/orders for the authenticated user.
type OrderHandler struct {
	Orders   OrderCreator
	Reader   OrderReader
	PageSize int
	Log      *zap.Logger
}

func NewOrderHandler(orders OrderCreator, reader OrderReader, pageSize int, log *zap.Logger) *OrderHandler {
	if pageSize < 1 {
		pageSize = 1
	}
	return &OrderHandler{Orders: orders, Reader: reader, PageSize: pageSize, Log: log}
}

type ticketReq struct {
	Row          int    `json:"row"`
	Seat         int    `json:"seat"`
	MovieSession uint64 `json:"movie_session"`
}

// Ticket places are checked by the order service so every problem can be
// reported against its index.
type orderReq struct {
	Tickets []ticketReq `json:"tickets"`
}

type ticketSessionResp struct {
	ID                 uint64    `json:"id"`
	ShowTime           time.Time `json:"show_time"`
	MovieTitle         string    `json:"movie_title"`
	CinemaHallName     string    `json:"cinema_hall_name"`
	CinemaHallCapacity int       `json:"cinema_hall_capacity"`
}

type ticketResp struct {
	ID           uint64            `json:"id"`
	Row          int               `json:"row"`
	Seat         int               `json:"seat"`
	MovieSession ticketSessionResp `json:"movie_session"`
}

type orderResp struct {
	ID        uint64       `json:"id"`
	Tickets   []ticketResp `json:"tickets"`
	CreatedAt time.Time    `json:"created_at"`
}

type orderPage struct {
	Count    int         `json:"count"`
	Next     *string     `json:"next"`
	Previous *string     `json:"previous"`
	Results  []orderResp `json:"results"`
}

func toOrderResp(o model.Order) orderResp {
	out := orderResp{ID: o.ID, CreatedAt: o.CreatedAt.UTC(), Tickets: make([]ticketResp, 0, len(o.Tickets))}
	for _, t := range o.Tickets {
		tr := ticketResp{ID: t.ID, Row: t.Row, Seat: t.Seat, MovieSession: ticketSessionResp{ID: t.MovieSessionID}}
		if s := t.MovieSession; s != nil {
			tr.MovieSession.ShowTime = s.ShowTime.UTC()
			tr.MovieSession.MovieTitle = s.Movie.Title
			tr.MovieSession.CinemaHallName = s.CinemaHall.Name
			tr.MovieSession.CinemaHallCapacity = s.CinemaHall.Capacity()
		}
		out.Tickets = append(out.Tickets, tr)
	}
	return out
}

func invalidOrder(details interface{}) error {
	return echo.NewHTTPError(http.StatusBadRequest, echo.Map{"error": "invalid order", "details": details})
}

// Create handles POST /v1/orders. Either every ticket is booked or none.
func (h *OrderHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req orderReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	in := service.CreateOrderInput{UserID: uid, Tickets: make([]service.TicketRequest, 0, len(req.Tickets))}
	for _, t := range req.Tickets {
		in.Tickets = append(in.Tickets, service.TicketRequest{Row: t.Row, Seat: t.Seat, MovieSessionID: t.MovieSession})
	}

	order, err := h.Orders.CreateOrder(c.Request().Context(), in)
	if err != nil {
		var verr *service.OrderValidationError
		switch {
		case errors.As(err, &verr):
			return invalidOrder(verr.Problems)
		case errors.Is(err, service.ErrNoTickets):
			return invalidOrder([]service.TicketProblem{{Field: "tickets", Message: err.Error()}})
		}
		h.Log.Error("create order failed", zap.Uint64("user_id", uid), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create order"})
	}
	return c.JSON(http.StatusCreated, toOrderResp(*order))
}

// List handles GET /v1/orders?page=N with the caller's orders newest first.
func (h *OrderHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	page := 1
	if raw := c.QueryParam("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n-1 > maxOrderOffset/h.PageSize {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "invalid page"})
		}
		page = n
	}

	orders, total, err := h.Reader.ListByUser(c.Request().Context(), uid, h.PageSize, (page-1)*h.PageSize)
	if err != nil {
		return repoError(c, h.Log, "list orders", err)
	}
	lastPage := (total + h.PageSize - 1) / h.PageSize
	if lastPage < 1 {
		lastPage = 1
	}
	if page > lastPage {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "invalid page"})
	}

	resp := orderPage{Count: total, Results: make([]orderResp, 0, len(orders))}
	for _, o := range orders {
		resp.Results = append(resp.Results, toOrderResp(o))
	}
	if page < lastPage {
		resp.Next = pageURL(c, page+1)
	}
	if page > 1 {
		resp.Previous = pageURL(c, page-1)
	}
	return c.JSON(http.StatusOK, resp)
}

// pageURL rebuilds the request URL pointing at page n. Page 1 drops the
// parameter entirely.
func pageURL(c echo.Context, n int) *string {
	r := c.Request()
	q := r.URL.Query()
	if n <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(n))
	}
	u := url.URL{Scheme: c.Scheme(), Host: r.Host, Path: r.URL.Path, RawQuery: q.Encode()}
	s := u.String()
	return &s
}

// Get handles GET /v1/orders/:id for one of the caller's orders.
func (h *OrderHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	o, err := h.Reader.GetForUser(c.Request().Context(), uid, id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return repoError(c, h.Log, "get order", err)
	}
	return c.JSON(http.StatusOK, toOrderResp(*o))
}
