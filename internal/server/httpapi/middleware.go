package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/profilehub/internal/common"
	"github.com/dmitrijs2005/profilehub/internal/server/auth"
)

const userIDKey = "userID"

const (
	msgUnauthorized    = "Unauthorized request"
	msgTooManyRequests = "Too many requests"
	msgInternal        = "Internal server error"
	msgNotFound        = "Route not found"
)

// Limiter counts requests per key.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// requestLogger logs one line per request once it has been served.
func (s *HTTPServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// recovery turns a panic into a request error for errorBoundary to render.
func recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		_ = c.Error(fmt.Errorf("panic: %v", recovered))
		c.Abort()
	})
}

// errorBoundary renders the last error attached to the request. Handlers
// report failures with c.Error and return without writing.
func (s *HTTPServer) errorBoundary() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		if apiErr, ok := common.AsAPIError(err); ok {
			if apiErr.StatusCode >= http.StatusInternalServerError {
				s.logger.Error(c.Request.Context(), "request failed", "path", c.Request.URL.Path, "error", err)
			}
			respondError(c, apiErr.StatusCode, apiErr.Message)
			return
		}

		s.logger.Error(c.Request.Context(), "unhandled error", "path", c.Request.URL.Path, "error", err)
		respondError(c, http.StatusInternalServerError, msgInternal)
	}
}

// requireSession accepts the access token from the accessToken cookie or an
// Authorization: Bearer header and stores the user id on the context.
func (s *HTTPServer) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(common.AccessTokenCookieName)
		if token == "" {
			if h := c.GetHeader(common.AuthorizationHeaderName); strings.HasPrefix(h, common.BearerPrefix) {
				token = strings.TrimSpace(strings.TrimPrefix(h, common.BearerPrefix))
			}
		}
		if token == "" {
			abortWithError(c, common.NewAuthenticationError(msgUnauthorized))
			return
		}

		userID, err := auth.GetUserIDFromToken(token, s.opts.SecretKey)
		if err != nil {
			s.logger.Debug(c.Request.Context(), "access token rejected", "error", err)
			abortWithError(c, common.NewAuthenticationError(msgUnauthorized))
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// rateLimit rejects clients that exceed the limiter for the matched route.
// Limiter failures are logged and the request goes through.
func (s *HTTPServer) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}

		allowed, err := s.limiter.Allow(c.Request.Context(), limitKey(c))
		if err != nil {
			s.logger.Warn(c.Request.Context(), "rate limiter unavailable", "error", err)
			c.Next()
			return
		}
		if !allowed {
			abortWithError(c, common.NewTooManyRequestsError(msgTooManyRequests))
			return
		}
		c.Next()
	}
}

// resetLimit clears the client's counter on the current route.
func (s *HTTPServer) resetLimit(c *gin.Context) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.Reset(c.Request.Context(), limitKey(c)); err != nil {
		s.logger.Warn(c.Request.Context(), "rate limiter reset failed", "error", err)
	}
}

func limitKey(c *gin.Context) string {
	return c.ClientIP() + ":" + c.FullPath()
}

func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func currentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
