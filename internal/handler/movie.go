package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/repository"
)

// MovieStore is implemented by *repository.MovieRepo.
type MovieStore interface {
	List(ctx context.Context, f repository.MovieFilter) ([]model.Movie, error)
	GetByID(ctx context.Context, id uint64) (*model.Movie, error)
	Create(ctx context.Context, m *model.Movie, genreIDs, actorIDs []uint64) error
	Update(ctx context.Context, m *model.Movie, genreIDs, actorIDs []uint64) error
	Delete(ctx context.Context, id uint64) error
}

type MovieHandler struct {
	Movies MovieStore
	Log    *zap.Logger
}

func NewMovieHandler(movies MovieStore, log *zap.Logger) *MovieHandler {
	return &MovieHandler{Movies: movies, Log: log}
}

// movieListResp is the list form: genres and actors by name.
type movieListResp struct {
	ID          uint64   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Duration    uint32   `json:"duration"`
	Genres      []string `json:"genres"`
	Actors      []string `json:"actors"`
}

// movieDetailResp nests full genre and actor objects.
type movieDetailResp struct {
	ID          uint64      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Duration    uint32      `json:"duration"`
	Genres      []genreResp `json:"genres"`
	Actors      []actorResp `json:"actors"`
}

// movieWriteResp echoes a write with genre and actor ids.
type movieWriteResp struct {
	ID          uint64   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Duration    uint32   `json:"duration"`
	Genres      []uint64 `json:"genres"`
	Actors      []uint64 `json:"actors"`
}

type movieReq struct {
	Title       string   `json:"title" validate:"required,max=255"`
	Description string   `json:"description"`
	Duration    uint32   `json:"duration" validate:"required,min=1"`
	Genres      []uint64 `json:"genres" validate:"dive,min=1"`
	Actors      []uint64 `json:"actors" validate:"dive,min=1"`
}

type moviePatchReq struct {
	Title       *string   `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string   `json:"description"`
	Duration    *uint32   `json:"duration" validate:"omitempty,min=1"`
	Genres      *[]uint64 `json:"genres" validate:"omitempty,dive,min=1"`
	Actors      *[]uint64 `json:"actors" validate:"omitempty,dive,min=1"`
}

func toMovieListResp(m model.Movie) movieListResp {
	return movieListResp{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Duration:    m.Duration,
		Genres:      m.GenreNames(),
		Actors:      m.ActorNames(),
	}
}

func toMovieDetailResp(m model.Movie) movieDetailResp {
	out := movieDetailResp{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Duration:    m.Duration,
		Genres:      make([]genreResp, 0, len(m.Genres)),
		Actors:      make([]actorResp, 0, len(m.Actors)),
	}
	for _, g := range m.Genres {
		out.Genres = append(out.Genres, toGenreResp(g))
	}
	for _, a := range m.Actors {
		out.Actors = append(out.Actors, toActorResp(a))
	}
	return out
}

func toMovieWriteResp(m model.Movie) movieWriteResp {
	out := movieWriteResp{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Duration:    m.Duration,
		Genres:      make([]uint64, 0, len(m.Genres)),
		Actors:      make([]uint64, 0, len(m.Actors)),
	}
	for _, g := range m.Genres {
		out.Genres = append(out.Genres, g.ID)
	}
	for _, a := range m.Actors {
		out.Actors = append(out.Actors, a.ID)
	}
	return out
}

// List handles GET /v1/movies?title=&genres=1,2&actors=3.
func (h *MovieHandler) List(c echo.Context) error {
	f := repository.MovieFilter{
		Title:    strings.TrimSpace(c.QueryParam("title")),
		GenreIDs: parseIDList(c.QueryParam("genres")),
		ActorIDs: parseIDList(c.QueryParam("actors")),
	}
	movies, err := h.Movies.List(c.Request().Context(), f)
	if err != nil {
		return repoError(c, h.Log, "list movies", err)
	}
	out := make([]movieListResp, 0, len(movies))
	for _, m := range movies {
		out = append(out, toMovieListResp(m))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *MovieHandler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	m, err := h.Movies.GetByID(c.Request().Context(), id)
	if err != nil {
		return repoError(c, h.Log, "get movie", err)
	}
	return c.JSON(http.StatusOK, toMovieDetailResp(*m))
}

func (h *MovieHandler) Create(c echo.Context) error {
	var req movieReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	m := &model.Movie{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Duration:    req.Duration,
	}
	if err := h.Movies.Create(c.Request().Context(), m, req.Genres, req.Actors); err != nil {
		return repoError(c, h.Log, "create movie", err)
	}
	return c.JSON(http.StatusCreated, toMovieWriteResp(*m))
}

func (h *MovieHandler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req movieReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	m := &model.Movie{
		ID:          id,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Duration:    req.Duration,
	}
	if err := h.Movies.Update(c.Request().Context(), m, req.Genres, req.Actors); err != nil {
		return repoError(c, h.Log, "update movie", err)
	}
	return c.JSON(http.StatusOK, toMovieWriteResp(*m))
}

// Patch keeps the current links for any of genres/actors not supplied.
func (h *MovieHandler) Patch(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req moviePatchReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	m, err := h.Movies.GetByID(ctx, id)
	if err != nil {
		return repoError(c, h.Log, "get movie", err)
	}
	if req.Title != nil {
		m.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		m.Description = *req.Description
	}
	if req.Duration != nil {
		m.Duration = *req.Duration
	}
	cur := toMovieWriteResp(*m)
	genres, actors := cur.Genres, cur.Actors
	if req.Genres != nil {
		genres = *req.Genres
	}
	if req.Actors != nil {
		actors = *req.Actors
	}
	if err := h.Movies.Update(ctx, m, genres, actors); err != nil {
		return repoError(c, h.Log, "update movie", err)
	}
	return c.JSON(http.StatusOK, toMovieWriteResp(*m))
}

func (h *MovieHandler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.Movies.Delete(c.Request().Context(), id); err != nil {
		return repoError(c, h.Log, "delete movie", err)
	}
	return c.NoContent(http.StatusNoContent)
}
