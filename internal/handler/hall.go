package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// HallStore is implemented by *repository.HallRepo.
type HallStore interface {
	List(ctx context.Context) ([]model.CinemaHall, error)
	GetByID(ctx context.Context, id uint64) (*model.CinemaHall, error)
	Create(ctx context.Context, h *model.CinemaHall) error
	Update(ctx context.Context, h *model.CinemaHall) error
	Delete(ctx context.Context, id uint64) error
}

// HallHandler serves /v1/cinema_halls.
type HallHandler struct {
	Halls HallStore
	Log   *zap.Logger
}

func NewHallHandler(halls HallStore, log *zap.Logger) *HallHandler {
	return &HallHandler{Halls: halls, Log: log}
}

type hallResp struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name"`
	Rows       uint32 `json:"rows"`
	SeatsInRow uint32 `json:"seats_in_row"`
	Capacity   int    `json:"capacity"`
}

// Grid limits mirror model.MaxHallRows and model.MaxSeatsInRow.
type hallReq struct {
	Name       string `json:"name" validate:"required,max=255"`
	Rows       uint32 `json:"rows" validate:"required,min=1,max=1000"`
	SeatsInRow uint32 `json:"seats_in_row" validate:"required,min=1,max=1000"`
}

type hallPatchReq struct {
	Name       *string `json:"name" validate:"omitempty,min=1,max=255"`
	Rows       *uint32 `json:"rows" validate:"omitempty,min=1,max=1000"`
	SeatsInRow *uint32 `json:"seats_in_row" validate:"omitempty,min=1,max=1000"`
}

func toHallResp(h model.CinemaHall) hallResp {
	return hallResp{ID: h.ID, Name: h.Name, Rows: h.Rows, SeatsInRow: h.SeatsInRow, Capacity: h.Capacity()}
}

func (h *HallHandler) List(c echo.Context) error {
	halls, err := h.Halls.List(c.Request().Context())
	if err != nil {
		return repoError(c, h.Log, "list halls", err)
	}
	out := make([]hallResp, 0, len(halls))
	for _, hall := range halls {
		out = append(out, toHallResp(hall))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *HallHandler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	hall, err := h.Halls.GetByID(c.Request().Context(), id)
	if err != nil {
		return repoError(c, h.Log, "get hall", err)
	}
	return c.JSON(http.StatusOK, toHallResp(*hall))
}

func (h *HallHandler) Create(c echo.Context) error {
	var req hallReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	hall := &model.CinemaHall{Name: strings.TrimSpace(req.Name), Rows: req.Rows, SeatsInRow: req.SeatsInRow}
	if err := h.Halls.Create(c.Request().Context(), hall); err != nil {
		return repoError(c, h.Log, "create hall", err)
	}
	return c.JSON(http.StatusCreated, toHallResp(*hall))
}

func (h *HallHandler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req hallReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	hall := &model.CinemaHall{ID: id, Name: strings.TrimSpace(req.Name), Rows: req.Rows, SeatsInRow: req.SeatsInRow}
	if err := h.Halls.Update(c.Request().Context(), hall); err != nil {
		return repoError(c, h.Log, "update hall", err)
	}
	return c.JSON(http.StatusOK, toHallResp(*hall))
}

func (h *HallHandler) Patch(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req hallPatchReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	hall, err := h.Halls.GetByID(ctx, id)
	if err != nil {
		return repoError(c, h.Log, "get hall", err)
	}
	if req.Name != nil {
		hall.Name = strings.TrimSpace(*req.Name)
	}
	if req.Rows != nil {
		hall.Rows = *req.Rows
	}
	if req.SeatsInRow != nil {
		hall.SeatsInRow = *req.SeatsInRow
	}
	if err := h.Halls.Update(ctx, hall); err != nil {
		return repoError(c, h.Log, "update hall", err)
	}
	return c.JSON(http.StatusOK, toHallResp(*hall))
}

func (h *HallHandler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.Halls.Delete(c.Request().Context(), id); err != nil {
		return repoError(c, h.Log, "delete hall", err)
	}
	return c.NoContent(http.StatusNoContent)
}
