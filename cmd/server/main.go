package main // Entry point package

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-booking/internal/clock"
	"github.com/iliyamo/cinema-booking/internal/config"
	"github.com/iliyamo/cinema-booking/internal/database"
	"github.com/iliyamo/cinema-booking/internal/handler"
	"github.com/iliyamo/cinema-booking/internal/logger"
	"github.com/iliyamo/cinema-booking/internal/middleware"
	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/queue"
	"github.com/iliyamo/cinema-booking/internal/repository"
	"github.com/iliyamo/cinema-booking/internal/router"
	"github.com/iliyamo/cinema-booking/internal/service"
)

func main() {
	createAdmin := flag.String("create-admin", "", "create or promote an admin as email:password and exit")
	flag.Parse()

	cfg, err := config.Load() // Load environment config
	if err != nil {
		log.Fatal(err)
	}
	zl, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatal(err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl, *createAdmin); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, zl *zap.Logger, createAdmin string) error {
	db, err := database.Open(ctx, database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Apply(ctx, db); err != nil {
		return err
	}

	clk := clock.System()
	users := repository.NewUserRepo(db)
	if createAdmin != "" {
		return ensureAdmin(ctx, users, createAdmin, cfg.BcryptCost, zl)
	}

	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		zl.Warn("redis unavailable, cache disabled and rate limiting is per process", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var events service.EventPublisher = service.NopPublisher{}
	var wg sync.WaitGroup
	if cfg.RabbitMQURL != "" {
		events = service.NewAMQPPublisher(cfg.RabbitMQURL)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := queue.StartOrderConsumer(ctx, cfg.RabbitMQURL, cfg.JournalPath, zl); err != nil && !errors.Is(err, context.Canceled) {
				zl.Error("order consumer stopped", zap.Error(err))
			}
		}()
	} else {
		zl.Info("RABBITMQ_URL not set, order events disabled")
	}

	orders := repository.NewOrderRepo(db)
	orderSvc := service.NewOrderService(orders, events, clk, zl)

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(zl))
	if len(cfg.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: cfg.CORSOrigins}))
	}

	cacheCfg := config.LoadCacheConfig()
	purge := middleware.PurgeCache(cacheCfg, rdb, zl)
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, zl)

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, repository.NewTokenRepo(db, clk), zl), cfg.JWTSecret, limiter)
	router.RegisterCatalog(e, router.Catalog{
		"genres":         handler.NewGenreHandler(repository.NewGenreRepo(db), zl),
		"actors":         handler.NewActorHandler(repository.NewActorRepo(db), zl),
		"cinema_halls":   handler.NewHallHandler(repository.NewHallRepo(db), zl),
		"movies":         handler.NewMovieHandler(repository.NewMovieRepo(db), zl),
		"movie_sessions": handler.NewMovieSessionHandler(repository.NewMovieSessionRepo(db), zl),
	}, cfg.JWTSecret, middleware.NewRedisCache(cacheCfg, rdb), purge)
	router.RegisterOrders(e, handler.NewOrderHandler(orderSvc, orders, cfg.OrdersPageSize, zl), cfg.JWTSecret, limiter, purge)

	addr := ":" + cfg.Port // Address string with port
	errCh := make(chan error, 1)
	go func() {
		zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	wg.Wait()
	return nil
}

// ensureAdmin creates the admin account, or promotes an existing user.
func ensureAdmin(ctx context.Context, users *repository.UserRepo, creds string, cost int, zl *zap.Logger) error {
	email, password, ok := strings.Cut(creds, ":")
	email = strings.ToLower(strings.TrimSpace(email))
	if !ok || email == "" || password == "" {
		return fmt.Errorf("create-admin: expected email:password")
	}
	id, err := users.Create(ctx, email, password, model.RoleAdmin, cost)
	switch {
	case err == nil:
		zl.Info("admin created", zap.String("email", email), zap.Uint64("user_id", id))
		return nil
	case errors.Is(err, repository.ErrEmailExists):
		if err := users.SetRole(ctx, email, model.RoleAdmin); err != nil {
			return fmt.Errorf("create-admin: %w", err)
		}
		zl.Info("existing user promoted to admin", zap.String("email", email))
		return nil
	default:
		return fmt.Errorf("create-admin: %w", err)
	}
}
