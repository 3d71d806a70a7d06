package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// GenreStore is implemented by *repository.GenreRepo.
type GenreStore interface {
	List(ctx context.Context) ([]model.Genre, error)
	GetByID(ctx context.Context, id uint64) (*model.Genre, error)
	Create(ctx context.Context, g *model.Genre) error
	Update(ctx context.Context, g *model.Genre) error
	Delete(ctx context.Context, id uint64) error
}

type GenreHandler struct {
	Genres GenreStore
	Log    *zap.Logger
}

func NewGenreHandler(genres GenreStore, log *zap.Logger) *GenreHandler {
	return &GenreHandler{Genres: genres, Log: log}
}

type genreResp struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

type genreReq struct {
	Name string `json:"name" validate:"required,max=255"`
}

type genrePatchReq struct {
	Name *string `json:"name" validate:"omitempty,min=1,max=255"`
}

func toGenreResp(g model.Genre) genreResp { return genreResp{ID: g.ID, Name: g.Name} }

// List handles GET /v1/genres.
func (h *GenreHandler) List(c echo.Context) error {
	genres, err := h.Genres.List(c.Request().Context())
	if err != nil {
		return repoError(c, h.Log, "list genres", err)
	}
	out := make([]genreResp, 0, len(genres))
	for _, g := range genres {
		out = append(out, toGenreResp(g))
	}
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /v1/genres/:id.
func (h *GenreHandler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	g, err := h.Genres.GetByID(c.Request().Context(), id)
	if err != nil {
		return repoError(c, h.Log, "get genre", err)
	}
	return c.JSON(http.StatusOK, toGenreResp(*g))
}

// Create handles POST /v1/genres.
func (h *GenreHandler) Create(c echo.Context) error {
	var req genreReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	g := &model.Genre{Name: strings.TrimSpace(req.Name)}
	if err := h.Genres.Create(c.Request().Context(), g); err != nil {
		return repoError(c, h.Log, "create genre", err)
	}
	return c.JSON(http.StatusCreated, toGenreResp(*g))
}

// Update handles PUT /v1/genres/:id.
func (h *GenreHandler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req genreReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	g := &model.Genre{ID: id, Name: strings.TrimSpace(req.Name)}
	if err := h.Genres.Update(c.Request().Context(), g); err != nil {
		return repoError(c, h.Log, "update genre", err)
	}
	return c.JSON(http.StatusOK, toGenreResp(*g))
}

// Patch handles PATCH /v1/genres/:id.
func (h *GenreHandler) Patch(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req genrePatchReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	g, err := h.Genres.GetByID(ctx, id)
	if err != nil {
		return repoError(c, h.Log, "get genre", err)
	}
	if req.Name != nil {
		g.Name = strings.TrimSpace(*req.Name)
	}
	if err := h.Genres.Update(ctx, g); err != nil {
		return repoError(c, h.Log, "update genre", err)
	}
	return c.JSON(http.StatusOK, toGenreResp(*g))
}

// Delete handles DELETE /v1/genres/:id.
func (h *GenreHandler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.Genres.Delete(c.Request().Context(), id); err != nil {
		return repoError(c, h.Log, "delete genre", err)
	}
	return c.NoContent(http.StatusNoContent)
}
