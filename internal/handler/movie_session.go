package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/repository"
)

// SessionStore is implemented by *repository.MovieSessionRepo.
type SessionStore interface {
	List(ctx context.Context, f repository.SessionFilter) ([]model.MovieSession, error)
	GetByID(ctx context.Context, id uint64) (*model.MovieSession, error)
	TakenPlaces(ctx context.Context, sessionID uint64) ([]model.Place, error)
	Create(ctx context.Context, s *model.MovieSession) error
	Update(ctx context.Context, s *model.MovieSession) error
	Delete(ctx context.Context, id uint64) error
}

// MovieSessionHandler serves /v1/movie_sessions.
type MovieSessionHandler struct {
	Sessions SessionStore
	Log      *zap.Logger
}

func NewMovieSessionHandler(sessions SessionStore, log *zap.Logger) *MovieSessionHandler {
	return &MovieSessionHandler{Sessions: sessions, Log: log}
}

type sessionListResp struct {
	ID                 uint64    `json:"id"`
	ShowTime           time.Time `json:"show_time"`
	MovieTitle         string    `json:"movie_title"`
	CinemaHallName     string    `json:"cinema_hall_name"`
	CinemaHallCapacity int       `json:"cinema_hall_capacity"`
	TicketsAvailable   int       `json:"tickets_available"`
}

type placeResp struct {
	Row  int `json:"row"`
	Seat int `json:"seat"`
}

type sessionDetailResp struct {
	ID          uint64        `json:"id"`
	ShowTime    time.Time     `json:"show_time"`
	Movie       movieListResp `json:"movie"`
	CinemaHall  hallResp      `json:"cinema_hall"`
	TakenPlaces []placeResp   `json:"taken_places"`
}

type sessionWriteResp struct {
	ID         uint64    `json:"id"`
	ShowTime   time.Time `json:"show_time"`
	Movie      uint64    `json:"movie"`
	CinemaHall uint64    `json:"cinema_hall"`
}

type sessionReq struct {
	ShowTime   time.Time `json:"show_time" validate:"required"`
	Movie      uint64    `json:"movie" validate:"required"`
	CinemaHall uint64    `json:"cinema_hall" validate:"required"`
}

type sessionPatchReq struct {
	ShowTime   *time.Time `json:"show_time"`
	Movie      *uint64    `json:"movie" validate:"omitempty,min=1"`
	CinemaHall *uint64    `json:"cinema_hall" validate:"omitempty,min=1"`
}

func toSessionListResp(s model.MovieSession) sessionListResp {
	return sessionListResp{
		ID:                 s.ID,
		ShowTime:           s.ShowTime,
		MovieTitle:         s.Movie.Title,
		CinemaHallName:     s.CinemaHall.Name,
		CinemaHallCapacity: s.CinemaHall.Capacity(),
		TicketsAvailable:   s.TicketsAvailable(),
	}
}

func toSessionWriteResp(s model.MovieSession) sessionWriteResp {
	return sessionWriteResp{ID: s.ID, ShowTime: s.ShowTime.UTC(), Movie: s.MovieID, CinemaHall: s.CinemaHallID}
}

// List handles GET /v1/movie_sessions?date=YYYY-MM-DD&movie=<id>. An
// unparsable date or movie id is ignored.
func (h *MovieSessionHandler) List(c echo.Context) error {
	var f repository.SessionFilter
	if raw := strings.TrimSpace(c.QueryParam("date")); raw != "" {
		if d, err := time.Parse("2006-01-02", raw); err == nil {
			f.Date = &d
		}
	}
	if raw := strings.TrimSpace(c.QueryParam("movie")); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			f.MovieID = id
		}
	}
	sessions, err := h.Sessions.List(c.Request().Context(), f)
	if err != nil {
		return repoError(c, h.Log, "list sessions", err)
	}
	out := make([]sessionListResp, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionListResp(s))
	}
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /v1/movie_sessions/:id including the places already sold.
func (h *MovieSessionHandler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	s, err := h.Sessions.GetByID(ctx, id)
	if err != nil {
		return repoError(c, h.Log, "get session", err)
	}
	taken, err := h.Sessions.TakenPlaces(ctx, id)
	if err != nil {
		return repoError(c, h.Log, "list taken places", err)
	}
	places := make([]placeResp, 0, len(taken))
	for _, p := range taken {
		places = append(places, placeResp{Row: p.Row, Seat: p.Seat})
	}
	return c.JSON(http.StatusOK, sessionDetailResp{
		ID:          s.ID,
		ShowTime:    s.ShowTime,
		Movie:       toMovieListResp(s.Movie),
		CinemaHall:  toHallResp(s.CinemaHall),
		TakenPlaces: places,
	})
}

func (h *MovieSessionHandler) Create(c echo.Context) error {
	var req sessionReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	s := &model.MovieSession{ShowTime: req.ShowTime.UTC(), MovieID: req.Movie, CinemaHallID: req.CinemaHall}
	if err := h.Sessions.Create(c.Request().Context(), s); err != nil {
		return repoError(c, h.Log, "create session", err)
	}
	return c.JSON(http.StatusCreated, toSessionWriteResp(*s))
}

func (h *MovieSessionHandler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req sessionReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	s := &model.MovieSession{ID: id, ShowTime: req.ShowTime.UTC(), MovieID: req.Movie, CinemaHallID: req.CinemaHall}
	if err := h.Sessions.Update(c.Request().Context(), s); err != nil {
		return repoError(c, h.Log, "update session", err)
	}
	return c.JSON(http.StatusOK, toSessionWriteResp(*s))
}

func (h *MovieSessionHandler) Patch(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req sessionPatchReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	s, err := h.Sessions.GetByID(ctx, id)
	if err != nil {
		return repoError(c, h.Log, "get session", err)
	}
	if req.ShowTime != nil {
		s.ShowTime = req.ShowTime.UTC()
	}
	if req.Movie != nil {
		s.MovieID = *req.Movie
	}
	if req.CinemaHall != nil {
		s.CinemaHallID = *req.CinemaHall
	}
	if err := h.Sessions.Update(ctx, s); err != nil {
		return repoError(c, h.Log, "update session", err)
	}
	return c.JSON(http.StatusOK, toSessionWriteResp(*s))
}

func (h *MovieSessionHandler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.Sessions.Delete(c.Request().Context(), id); err != nil {
		return repoError(c, h.Log, "delete session", err)
	}
	return c.NoContent(http.StatusNoContent)
}
