package httpapi

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/profilehub/internal/common"
	"github.com/dmitrijs2005/profilehub/internal/server/media"
	"github.com/dmitrijs2005/profilehub/internal/server/services"
)

const (
	msgRegistered     = "User registered successfully"
	msgLoggedIn       = "User logged in successfully"
	msgLoggedOut      = "User logged out"
	msgRefreshed      = "Access token refreshed"
	msgCurrentUser    = "Current user fetched successfully"
	msgBodyTooLarge   = "Request body too large"
	msgInvalidPayload = "Invalid request body"
)

// openPart is a seam for multipart.FileHeader.Open.
var openPart = func(fh *multipart.FileHeader) (multipart.File, error) {
	return fh.Open()
}

// failingReader returns err on every read.
type failingReader struct {
	err error
}

func (r failingReader) Read([]byte) (int, error) {
	return 0, r.err
}

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" form:"refreshToken"`
}

func (s *HTTPServer) register(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadSize)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithError(c, &common.APIError{StatusCode: http.StatusRequestEntityTooLarge, Message: msgBodyTooLarge, Kind: common.ErrValidation, Err: err})
			return
		}
		// not multipart: fall through with empty fields so validation reports it
		form = &multipart.Form{}
	}

	avatar, closeAvatar, err := firstFile(form, "avatar")
	if err != nil {
		// the upload step reports it, after field and conflict checks
		s.logger.Warn(c.Request.Context(), "avatar unreadable", "error", err)
		avatar = &media.File{Name: "avatar", Body: failingReader{err: err}}
	}
	defer closeAvatar()

	cover, closeCover, err := firstFile(form, "coverImage")
	if err != nil {
		s.logger.Warn(c.Request.Context(), "cover image unreadable", "error", err)
		cover = nil
	}
	defer closeCover()

	user, err := s.users.Register(c.Request.Context(), services.RegisterInput{
		FullName:   formValue(form, "fullName"),
		Email:      formValue(form, "email"),
		Username:   formValue(form, "username"),
		Password:   formValue(form, "password"),
		Avatar:     avatar,
		CoverImage: cover,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	respond(c, http.StatusCreated, user, msgRegistered)
}

func (s *HTTPServer) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		abortWithError(c, common.NewValidationError(msgInvalidPayload))
		return
	}

	res, err := s.users.Login(c.Request.Context(), services.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	// a successful login forgives earlier failed attempts
	s.resetLimit(c)

	s.setSessionCookies(c, res.AccessToken, res.RefreshToken)
	respond(c, http.StatusOK, res, msgLoggedIn)
}

func (s *HTTPServer) logout(c *gin.Context) {
	if err := s.users.Logout(c.Request.Context(), currentUserID(c)); err != nil {
		abortWithError(c, err)
		return
	}

	s.clearSessionCookies(c)
	respond(c, http.StatusOK, gin.H{}, msgLoggedOut)
}

func (s *HTTPServer) refreshToken(c *gin.Context) {
	token, _ := c.Cookie(common.RefreshTokenCookieName)
	if token == "" {
		var req refreshRequest
		// a missing or malformed body leaves the token empty, which the
		// service reports as a validation error
		_ = c.ShouldBind(&req)
		token = req.RefreshToken
	}

	res, err := s.users.RefreshToken(c.Request.Context(), token)
	if err != nil {
		abortWithError(c, err)
		return
	}

	s.setSessionCookies(c, res.AccessToken, res.RefreshToken)
	respond(c, http.StatusOK, res, msgRefreshed)
}

func (s *HTTPServer) me(c *gin.Context) {
	user, err := s.users.Current(c.Request.Context(), currentUserID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, user, msgCurrentUser)
}

func formValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// firstFile opens the first file sent under key. A missing file is not an
// error; the returned close func is always safe to call.
func firstFile(form *multipart.Form, key string) (*media.File, func(), error) {
	noop := func() {}

	headers := form.File[key]
	if len(headers) == 0 {
		return nil, noop, nil
	}

	fh := headers[0]
	f, err := openPart(fh)
	if err != nil {
		return nil, noop, err
	}

	return &media.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	}, func() { _ = f.Close() }, nil
}
