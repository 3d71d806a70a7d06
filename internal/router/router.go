package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking/internal/handler"
	"github.com/iliyamo/cinema-booking/internal/middleware"
	"github.com/iliyamo/cinema-booking/internal/model"
)

// RegisterRoutes registers routes that do not belong to any resource.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers authentication routes. Unauthenticated operations
// live under /v1/auth and share the rate limiter; /v1/me needs a token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limiter)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh) // rotates the refresh token
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// Resource is a catalog handler exposing the usual CRUD actions.
type Resource interface {
	List(c echo.Context) error
	Get(c echo.Context) error
	Create(c echo.Context) error
	Update(c echo.Context) error
	Patch(c echo.Context) error
	Delete(c echo.Context) error
}

// Catalog maps a path segment under /v1 to its handler.
type Catalog map[string]Resource

// RegisterCatalog registers every catalog resource. Reads are public and go
// through cache; writes need an ADMIN token and run purge afterwards so
// cached reads never outlive a change.
func RegisterCatalog(e *echo.Echo, cat Catalog, jwtSecret string, cache, purge echo.MiddlewareFunc) {
	admin := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
		purge,
	}
	for name, r := range cat {
		base := "/v1/" + name
		e.GET(base, r.List, cache)
		e.GET(base+"/:id", r.Get, cache)

		e.POST(base, r.Create, admin...)
		e.PUT(base+"/:id", r.Update, admin...)
		e.PATCH(base+"/:id", r.Patch, admin...)
		e.DELETE(base+"/:id", r.Delete, admin...)
	}
}

// RegisterOrders registers the order endpoints. Any authenticated user may
// book; each user only ever sees their own orders. A booking changes the
// availability served by the cached session reads, so purge runs after it.
func RegisterOrders(e *echo.Echo, h *handler.OrderHandler, jwtSecret string, limiter, purge echo.MiddlewareFunc) {
	g := e.Group("/v1/orders", middleware.JWTAuth(jwtSecret), limiter)
	g.GET("", h.List)
	g.POST("", h.Create, purge)
	g.GET("/:id", h.Get)
}
