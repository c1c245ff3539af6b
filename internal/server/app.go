// Package server wires the configuration, storage, media host and services
// together and runs the HTTP API and the gRPC health endpoint until a
// termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/profilehub/internal/logging"
	"github.com/dmitrijs2005/profilehub/internal/server/config"
	"github.com/dmitrijs2005/profilehub/internal/server/httpapi"
	"github.com/dmitrijs2005/profilehub/internal/server/media"
	"github.com/dmitrijs2005/profilehub/internal/server/password"
	"github.com/dmitrijs2005/profilehub/internal/server/ratelimit"
	"github.com/dmitrijs2005/profilehub/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/profilehub/internal/server/services"

	gs "github.com/dmitrijs2005/profilehub/internal/server/grpc"
)

var openDB = sql.Open

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	redis       redis.UniversalClient
	limiter     *ratelimit.Limiter
	userService *services.UserService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, slog.LevelInfo)

	db, err := openDB("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	hasher := password.NewArgon2(password.DefaultParams)
	rm := repomanager.NewPostgresRepositoryManager(hasher)

	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	store, err := media.NewS3Store(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("media store init error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}

	if err := app.initRateLimiter(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	app.userService = services.NewUserService(db, rm, hasher, store, c, logger)

	return app, nil
}

// initRateLimiter connects to Redis when an address is configured. An
// unreachable Redis is only logged since the limiter fails open.
func (app *App) initRateLimiter(ctx context.Context) error {
	if app.config.RedisAddr == "" {
		app.logger.Info(ctx, "rate limiting disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     app.config.RedisAddr,
		Password: app.config.RedisPassword,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		app.logger.Warn(ctx, "redis ping failed", "addr", app.config.RedisAddr, "error", err)
	}

	l, err := ratelimit.New(client, app.config.RateLimitRequests, app.config.RateLimitWindow)
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("rate limiter init error: %w", err)
	}

	app.redis = client
	app.limiter = l
	return nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) httpOptions() httpapi.Options {
	return httpapi.Options{
		SecretKey:       []byte(app.config.SecretKey),
		AccessTokenTTL:  app.config.AccessTokenValidityDuration,
		RefreshTokenTTL: app.config.RefreshTokenValidityDuration,
		CookieSecure:    app.config.CookieSecure,
		MaxUploadSize:   app.config.MaxUploadSize,
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	var limiter httpapi.Limiter
	if app.limiter != nil {
		limiter = app.limiter
	}

	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, app.userService, limiter, app.httpOptions())

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.db, app.config.HealthCheckInterval)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) close(ctx context.Context) {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error(ctx, "redis close error", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(ctx)
	app.logger.Info(ctx, "App stopped")
}
