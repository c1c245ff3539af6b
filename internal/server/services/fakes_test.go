package services

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/profilehub/internal/common"
	"github.com/dmitrijs2005/profilehub/internal/dbx"
	"github.com/dmitrijs2005/profilehub/internal/server/media"
	"github.com/dmitrijs2005/profilehub/internal/server/models"
	"github.com/dmitrijs2005/profilehub/internal/server/password"
	refreshtokensrepo "github.com/dmitrijs2005/profilehub/internal/server/repositories/refreshtokens"
	usersrepo "github.com/dmitrijs2005/profilehub/internal/server/repositories/users"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

// memStore backs both fake repositories so that refresh tokens live on the
// user rows like they do in Postgres.
type memStore struct {
	mu     sync.Mutex
	users  map[string]*models.User
	nextID int
}

func newMemStore() *memStore {
	return &memStore{users: map[string]*models.User{}}
}

func (s *memStore) get(id string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		c := *u
		return &c
	}
	return nil
}

type fakeUsersRepo struct {
	store  *memStore
	hasher password.Hasher

	existsErr   error
	createErr   error
	getByIDErr  error
	lookupErr   error
	lostOnFetch bool
}

func (f *fakeUsersRepo) Create(ctx context.Context, nu *models.NewUser) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	hash, err := f.hasher.Hash(nu.Password)
	if err != nil {
		return nil, err
	}

	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for _, u := range f.store.users {
		if u.Username == nu.Username || u.Email == nu.Email {
			return nil, common.ErrAlreadyExists
		}
	}
	f.store.nextID++
	now := time.Now()
	u := &models.User{
		ID:           "user-" + strconv.Itoa(f.store.nextID),
		Username:     nu.Username,
		Email:        nu.Email,
		FullName:     nu.FullName,
		PasswordHash: hash,
		Avatar:       nu.Avatar,
		CoverImage:   nu.CoverImage,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.store.users[u.ID] = u
	c := *u
	return &c, nil
}

func (f *fakeUsersRepo) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for _, u := range f.store.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if f.getByIDErr != nil {
		return nil, f.getByIDErr
	}
	if f.lostOnFetch {
		return nil, common.ErrorNotFound
	}
	if u := f.store.get(id); u != nil {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for _, u := range f.store.users {
		if u.Username == username || u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

type fakeRefreshRepo struct {
	store *memStore

	setErr   error
	findErr  error
	clearErr error
}

func (f *fakeRefreshRepo) Set(ctx context.Context, userID string, token string, validity time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	u, ok := f.store.users[userID]
	if !ok {
		return common.ErrorNotFound
	}
	u.RefreshToken = token
	u.RefreshTokenExpiresAt = time.Now().Add(validity)
	return nil
}

func (f *fakeRefreshRepo) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for _, u := range f.store.users {
		if u.RefreshToken != "" && u.RefreshToken == token {
			return &models.RefreshToken{UserID: u.ID, Token: token, Expires: u.RefreshTokenExpiresAt}, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeRefreshRepo) Clear(ctx context.Context, userID string) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if u, ok := f.store.users[userID]; ok {
		u.RefreshToken = ""
		u.RefreshTokenExpiresAt = time.Time{}
	}
	return nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *fakeRefreshRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error           { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository                 { return m.u }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository { return m.r }

type fakeUploader struct {
	mu      sync.Mutex
	calls   []string
	errFor  map[string]error
	emptyOK bool
}

func (f *fakeUploader) Upload(ctx context.Context, file *media.File, folder string) (*media.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, folder)
	if file == nil {
		return nil, media.ErrNoFile
	}
	if err := f.errFor[folder]; err != nil {
		return nil, err
	}
	if f.emptyOK {
		return &media.Asset{}, nil
	}
	key := folder + "/" + file.Name
	return &media.Asset{Key: key, URL: "http://media.local/bucket/" + key}, nil
}

var errUpload = errors.New("s3 unavailable")
