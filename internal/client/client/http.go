package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/profilehub/internal/common"
)

const usersPath = "/api/v1/users"

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
}

type HTTPClient struct {
	baseURL string
	http    *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

func NewHTTPClient(baseURL string, timeout time.Duration) (*HTTPClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Jar: jar, Timeout: timeout},
	}, nil
}

// SetTokens restores a previously saved session.
func (c *HTTPClient) SetTokens(accessToken, refreshToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = accessToken
	c.refreshToken = refreshToken
}

func (c *HTTPClient) Tokens() (accessToken, refreshToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken, c.refreshToken
}

func (c *HTTPClient) Register(ctx context.Context, r RegisterRequest) (*User, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fields := [][2]string{
		{"fullName", r.FullName},
		{"email", r.Email},
		{"username", r.Username},
		{"password", string(r.Password)},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, err
		}
	}

	if r.AvatarPath != "" {
		if err := attachFile(mw, "avatar", r.AvatarPath); err != nil {
			return nil, err
		}
	}
	if r.CoverImagePath != "" {
		if err := attachFile(mw, "coverImage", r.CoverImagePath); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+usersPath+"/register", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var u User
	if err := c.do(req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *HTTPClient) Login(ctx context.Context, username, email string, password []byte) (*LoginResult, error) {
	payload := struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}{username, email, string(password)}

	var res LoginResult
	if err := c.postJSON(ctx, "/login", payload, &res); err != nil {
		return nil, err
	}

	c.SetTokens(res.AccessToken, res.RefreshToken)
	return &res, nil
}

// Logout ends the server session and forgets local tokens. Tokens are dropped
// even when the server call fails.
func (c *HTTPClient) Logout(ctx context.Context) error {
	defer c.SetTokens("", "")
	return c.postJSON(ctx, "/logout", struct{}{}, nil)
}

func (c *HTTPClient) Me(ctx context.Context) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+usersPath+"/me", nil)
	if err != nil {
		return nil, err
	}

	var u User
	if err := c.do(req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Refresh rotates the token pair using the stored refresh token.
func (c *HTTPClient) Refresh(ctx context.Context) (*LoginResult, error) {
	_, refresh := c.Tokens()

	payload := struct {
		RefreshToken string `json:"refreshToken"`
	}{refresh}

	var res LoginResult
	if err := c.postJSON(ctx, "/refresh-token", payload, &res); err != nil {
		return nil, err
	}

	c.SetTokens(res.AccessToken, res.RefreshToken)
	return &res, nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, payload any, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+usersPath+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

// do sends req and decodes the envelope data into out when out is not nil.
func (c *HTTPClient) do(req *http.Request, out any) error {
	if access, _ := c.Tokens(); access != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+access)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode >= http.StatusBadRequest {
		msg := env.Message
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if decodeErr != nil {
		if errors.Is(decodeErr, io.EOF) {
			return &APIError{StatusCode: resp.StatusCode, Message: "empty response"}
		}
		return fmt.Errorf("decode response: %w", decodeErr)
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

func attachFile(mw *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filepath.Base(path)))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}

	_, err = io.Copy(part, f)
	return err
}
