package router

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-booking/internal/config"
	"github.com/iliyamo/cinema-booking/internal/handler"
	"github.com/iliyamo/cinema-booking/internal/middleware"
	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/repository"
	"github.com/iliyamo/cinema-booking/internal/service"
	"github.com/iliyamo/cinema-booking/internal/utils"
)

const secret = "router-secret"

// stubResource answers every action with the action's name.
type stubResource struct{}

func (stubResource) List(c echo.Context) error   { return c.String(http.StatusOK, "list") }
func (stubResource) Get(c echo.Context) error    { return c.String(http.StatusOK, "get") }
func (stubResource) Create(c echo.Context) error { return c.String(http.StatusCreated, "create") }
func (stubResource) Update(c echo.Context) error { return c.String(http.StatusOK, "update") }
func (stubResource) Patch(c echo.Context) error  { return c.String(http.StatusOK, "patch") }
func (stubResource) Delete(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

func counting(n *int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			*n++
			return next(c)
		}
	}
}

func do(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func token(t *testing.T, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, 1, role, 5)
	require.NoError(t, err)
	return tok.Token
}

func TestRegisterCatalog(t *testing.T) {
	var cached, purged int
	e := echo.New()
	RegisterCatalog(e, Catalog{"genres": stubResource{}, "movie_sessions": stubResource{}}, secret, counting(&cached), counting(&purged))

	rec := do(e, http.MethodGet, "/v1/genres", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "list", rec.Body.String())
	rec = do(e, http.MethodGet, "/v1/movie_sessions/3", "")
	assert.Equal(t, "get", rec.Body.String())
	assert.Equal(t, 2, cached)

	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodPost, "/v1/genres", "").Code)
	assert.Equal(t, http.StatusForbidden, do(e, http.MethodPost, "/v1/genres", token(t, model.RoleCustomer)).Code)
	assert.Equal(t, 0, purged)

	admin := token(t, model.RoleAdmin)
	assert.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/v1/genres", admin).Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodPut, "/v1/genres/1", admin).Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodPatch, "/v1/genres/1", admin).Code)
	assert.Equal(t, http.StatusNoContent, do(e, http.MethodDelete, "/v1/movie_sessions/1", admin).Code)
	assert.Equal(t, 4, purged)
	assert.Equal(t, 2, cached)
}

func TestRegisterOrders_RequiresToken(t *testing.T) {
	var limited, purged int
	e := echo.New()
	RegisterOrders(e, &handler.OrderHandler{}, secret, counting(&limited), counting(&purged))

	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/v1/orders", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodPost, "/v1/orders", "").Code)
	assert.Zero(t, limited)
	assert.Zero(t, purged)
}

func TestRegisterOrders_BookingPurgesSessionCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	cacheCfg := config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{http.MethodGet: true},
		TTL:          time.Minute,
		Prefix:       "cache",
		MaxBodyBytes: 1 << 20,
	}

	sold := 0
	sessions := &sessionStub{sold: &sold}
	orders := &orderStub{sold: &sold}

	e := echo.New()
	e.Validator = handler.NewRequestValidator()
	purge := middleware.PurgeCache(cacheCfg, rdb, zap.NewNop())
	RegisterCatalog(e, Catalog{"movie_sessions": sessions}, secret, middleware.NewRedisCache(cacheCfg, rdb), purge)
	RegisterOrders(e, handler.NewOrderHandler(orders, orders, 1, zap.NewNop()), secret, passthrough, purge)

	assert.Equal(t, "sold=0", do(e, http.MethodGet, "/v1/movie_sessions", "").Body.String())
	sold = 5 // change behind the cache
	assert.Equal(t, "sold=0", do(e, http.MethodGet, "/v1/movie_sessions", "").Body.String())

	req := httptest.NewRequest(http.MethodPost, "/v1/orders", strings.NewReader(`{"tickets":[{"row":1,"seat":1,"movie_session":1}]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token(t, model.RoleCustomer))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, "sold=6", do(e, http.MethodGet, "/v1/movie_sessions", "").Body.String())
}

func passthrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// sessionStub lists the number of tickets sold so far.
type sessionStub struct {
	stubResource
	sold *int
}

func (s *sessionStub) List(c echo.Context) error {
	return c.String(http.StatusOK, fmt.Sprintf("sold=%d", *s.sold))
}

// orderStub books by bumping the shared counter.
type orderStub struct{ sold *int }

func (o *orderStub) CreateOrder(_ context.Context, in service.CreateOrderInput) (*model.Order, error) {
	*o.sold += len(in.Tickets)
	return &model.Order{ID: 1, UserID: in.UserID}, nil
}

func (o *orderStub) ListByUser(context.Context, uint64, int, int) ([]model.Order, int, error) {
	return nil, 0, nil
}

func (o *orderStub) GetForUser(context.Context, uint64, uint64) (*model.Order, error) {
	return nil, repository.ErrOrderNotFound
}

func TestRegisterRoutes_Health(t *testing.T) {
	e := echo.New()
	RegisterRoutes(e, nil)
	rec := do(e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
