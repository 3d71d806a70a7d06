package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// ActorStore is implemented by *repository.ActorRepo.
type ActorStore interface {
	List(ctx context.Context) ([]model.Actor, error)
	GetByID(ctx context.Context, id uint64) (*model.Actor, error)
	Create(ctx context.Context, a *model.Actor) error
	Update(ctx context.Context, a *model.Actor) error
	Delete(ctx context.Context, id uint64) error
}

type ActorHandler struct {
	Actors ActorStore
	Log    *zap.Logger
}

func NewActorHandler(actors ActorStore, log *zap.Logger) *ActorHandler {
	return &ActorHandler{Actors: actors, Log: log}
}

type actorResp struct {
	ID        uint64 `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	FullName  string `json:"full_name"`
}

type actorReq struct {
	FirstName string `json:"first_name" validate:"required,max=255"`
	LastName  string `json:"last_name" validate:"required,max=255"`
}

type actorPatchReq struct {
	FirstName *string `json:"first_name" validate:"omitempty,min=1,max=255"`
	LastName  *string `json:"last_name" validate:"omitempty,min=1,max=255"`
}

func toActorResp(a model.Actor) actorResp {
	return actorResp{ID: a.ID, FirstName: a.FirstName, LastName: a.LastName, FullName: a.FullName()}
}

func (h *ActorHandler) List(c echo.Context) error {
	actors, err := h.Actors.List(c.Request().Context())
	if err != nil {
		return repoError(c, h.Log, "list actors", err)
	}
	out := make([]actorResp, 0, len(actors))
	for _, a := range actors {
		out = append(out, toActorResp(a))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ActorHandler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.Actors.GetByID(c.Request().Context(), id)
	if err != nil {
		return repoError(c, h.Log, "get actor", err)
	}
	return c.JSON(http.StatusOK, toActorResp(*a))
}

func (h *ActorHandler) Create(c echo.Context) error {
	var req actorReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	a := &model.Actor{FirstName: strings.TrimSpace(req.FirstName), LastName: strings.TrimSpace(req.LastName)}
	if err := h.Actors.Create(c.Request().Context(), a); err != nil {
		return repoError(c, h.Log, "create actor", err)
	}
	return c.JSON(http.StatusCreated, toActorResp(*a))
}

func (h *ActorHandler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req actorReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	a := &model.Actor{ID: id, FirstName: strings.TrimSpace(req.FirstName), LastName: strings.TrimSpace(req.LastName)}
	if err := h.Actors.Update(c.Request().Context(), a); err != nil {
		return repoError(c, h.Log, "update actor", err)
	}
	return c.JSON(http.StatusOK, toActorResp(*a))
}

func (h *ActorHandler) Patch(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req actorPatchReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	a, err := h.Actors.GetByID(ctx, id)
	if err != nil {
		return repoError(c, h.Log, "get actor", err)
	}
	if req.FirstName != nil {
		a.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		a.LastName = strings.TrimSpace(*req.LastName)
	}
	if err := h.Actors.Update(ctx, a); err != nil {
		return repoError(c, h.Log, "update actor", err)
	}
	return c.JSON(http.StatusOK, toActorResp(*a))
}

func (h *ActorHandler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.Actors.Delete(c.Request().Context(), id); err != nil {
		return repoError(c, h.Log, "delete actor", err)
	}
	return c.NoContent(http.StatusNoContent)
}
