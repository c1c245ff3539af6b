// Package httpapi exposes the user workflows over HTTP with gin under
// /api/v1/users. Responses use a common envelope and sessions travel in
// HttpOnly cookies.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/profilehub/internal/logging"
	"github.com/dmitrijs2005/profilehub/internal/server/models"
	"github.com/dmitrijs2005/profilehub/internal/server/services"
)

// UserService is the set of workflows served by the API.
type UserService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.PublicUser, error)
	Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error)
	Logout(ctx context.Context, userID string) error
	RefreshToken(ctx context.Context, refreshToken string) (*services.LoginResult, error)
	Current(ctx context.Context, userID string) (*models.PublicUser, error)
}

type Options struct {
	SecretKey       []byte
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	CookieSecure    bool
	MaxUploadSize   int64
}

type HTTPServer struct {
	address string
	logger  logging.Logger
	users   UserService
	limiter Limiter
	opts    Options
	engine  *gin.Engine
}

// NewHTTPServer builds the router. limiter may be nil to disable rate limiting.
func NewHTTPServer(address string, l logging.Logger, us UserService, limiter Limiter, opts Options) *HTTPServer {
	s := &HTTPServer{
		address: address,
		logger:  l.With("module", "http_server"),
		users:   us,
		limiter: limiter,
		opts:    opts,
	}
	s.engine = s.routes()
	return s
}

func (s *HTTPServer) routes() *gin.Engine {
	r := gin.New()
	r.Use(s.requestLogger(), s.errorBoundary(), recovery())

	r.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, msgNotFound)
	})

	users := r.Group("/api/v1/users")
	users.POST("/register", s.rateLimit(), s.register)
	users.POST("/login", s.rateLimit(), s.login)
	users.POST("/refresh-token", s.rateLimit(), s.refreshToken)

	session := users.Group("", s.requireSession())
	session.POST("/logout", s.logout)
	session.GET("/me", s.me)

	return r
}

// Handler returns the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	err := srv.ListenAndServe()

	// stops the shutdown goroutine when serving failed, and waits for a
	// graceful shutdown to finish otherwise
	close(done)
	wg.Wait()

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
