package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/profilehub/internal/common"
)

func (s *HTTPServer) sessionCookie(name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *HTTPServer) setSessionCookies(c *gin.Context, accessToken, refreshToken string) {
	http.SetCookie(c.Writer, s.sessionCookie(common.AccessTokenCookieName, accessToken, s.opts.AccessTokenTTL))
	http.SetCookie(c.Writer, s.sessionCookie(common.RefreshTokenCookieName, refreshToken, s.opts.RefreshTokenTTL))
}

// clearSessionCookies expires both cookies with the attributes they were set with.
func (s *HTTPServer) clearSessionCookies(c *gin.Context) {
	for _, name := range []string{common.AccessTokenCookieName, common.RefreshTokenCookieName} {
		ck := s.sessionCookie(name, "", 0)
		ck.MaxAge = -1
		http.SetCookie(c.Writer, ck)
	}
}
