package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"io"
	"os"

	"github.com/dmitrijs2005/profilehub/internal/client/client"
	"github.com/dmitrijs2005/profilehub/internal/client/config"
	"github.com/dmitrijs2005/profilehub/internal/client/session"
)

// API is the part of client.HTTPClient the commands use.
type API interface {
	Register(ctx context.Context, r client.RegisterRequest) (*client.User, error)
	Login(ctx context.Context, username, email string, password []byte) (*client.LoginResult, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*client.User, error)
	Refresh(ctx context.Context) (*client.LoginResult, error)
	SetTokens(accessToken, refreshToken string)
	Tokens() (accessToken, refreshToken string)
}

type App struct {
	config   *config.Config
	api      API
	sessions session.Store
	db       *sql.DB
	userName string
	reader   *bufio.Reader
	out      io.Writer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	db, err := session.InitDatabase(ctx, c.SessionDBPath)
	if err != nil {
		return nil, err
	}

	api, err := client.NewHTTPClient(c.ServerBaseURL, c.RequestTimeout)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &App{
		config:   c,
		api:      api,
		sessions: session.NewSQLiteStore(db),
		db:       db,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
	}

	if err := a.restoreSession(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return a, nil
}

// restoreSession loads the saved tokens into the API client, if any.
func (a *App) restoreSession(ctx context.Context) error {
	s, err := a.sessions.Load(ctx)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return nil
		}
		return err
	}

	a.api.SetTokens(s.AccessToken, s.RefreshToken)
	a.userName = s.Username
	return nil
}

func (a *App) saveSession(ctx context.Context) error {
	access, refresh := a.api.Tokens()
	return a.sessions.Save(ctx, &session.Session{
		Username:     a.userName,
		AccessToken:  access,
		RefreshToken: refresh,
	})
}

func (a *App) isLoggedIn() bool {
	return a.userName != ""
}

func (a *App) Run(ctx context.Context) {
	defer func() {
		if a.db != nil {
			_ = a.db.Close()
		}
	}()
	a.Root(ctx)
}
