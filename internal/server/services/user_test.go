package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/profilehub/internal/common"
	"github.com/dmitrijs2005/profilehub/internal/logging"
	"github.com/dmitrijs2005/profilehub/internal/server/auth"
	"github.com/dmitrijs2005/profilehub/internal/server/config"
	"github.com/dmitrijs2005/profilehub/internal/server/media"
	"github.com/dmitrijs2005/profilehub/internal/server/password"
)

// --- helpers ---

type harness struct {
	svc      *UserService
	store    *memStore
	users    *fakeUsersRepo
	refresh  *fakeRefreshRepo
	uploader *fakeUploader
	mock     sqlmock.Sqlmock
	db       *sql.DB
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	hasher := password.NewArgon2(password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	store := newMemStore()
	users := &fakeUsersRepo{store: store, hasher: hasher}
	refresh := &fakeRefreshRepo{store: store}
	uploader := &fakeUploader{errFor: map[string]error{}}

	cfg := &config.Config{
		SecretKey:                    "k",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
	}
	svc := NewUserService(db, &fakeRepoManager{u: users, r: refresh}, hasher, uploader, cfg, logging.Nop())

	return &harness{svc: svc, store: store, users: users, refresh: refresh, uploader: uploader, mock: mock, db: db}
}

func avatarFile() *media.File {
	return &media.File{Name: "jane.png", ContentType: "image/png", Size: 3, Body: strings.NewReader("png")}
}

func janeInput() RegisterInput {
	return RegisterInput{
		FullName: "Jane Doe",
		Email:    "jane@example.com",
		Username: "JaneD",
		Password: "secret1",
		Avatar:   avatarFile(),
	}
}

func requireAPIError(t *testing.T, err error, status int, msg string) *common.APIError {
	t.Helper()
	apiErr, ok := common.AsAPIError(err)
	require.True(t, ok, "expected *common.APIError, got %T: %v", err, err)
	assert.Equal(t, status, apiErr.StatusCode)
	assert.Equal(t, msg, apiErr.Message)
	return apiErr
}

func (h *harness) register(t *testing.T) string {
	t.Helper()
	u, err := h.svc.Register(context.Background(), janeInput())
	require.NoError(t, err)
	return u.ID
}

// --- Register ---

func TestRegister_Success(t *testing.T) {
	h := newHarness(t)

	u, err := h.svc.Register(context.Background(), janeInput())
	require.NoError(t, err)

	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "janed", u.Username)
	assert.Equal(t, "jane@example.com", u.Email)
	assert.Equal(t, "Jane Doe", u.FullName)
	assert.Equal(t, "http://media.local/bucket/avatars/jane.png", u.Avatar)
	assert.Empty(t, u.CoverImage)

	b, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "secret1")
	assert.NotContains(t, strings.ToLower(string(b)), "password")
	assert.NotContains(t, strings.ToLower(string(b)), "refreshtoken")

	stored := h.store.get(u.ID)
	require.NotNil(t, stored)
	assert.NotEqual(t, "secret1", stored.PasswordHash)
	assert.True(t, strings.HasPrefix(stored.PasswordHash, "$argon2id$"))
	assert.Empty(t, stored.RefreshToken)
}

func TestRegister_WithCoverImage(t *testing.T) {
	h := newHarness(t)

	in := janeInput()
	in.CoverImage = &media.File{Name: "cover.jpg", Body: strings.NewReader("jpg")}

	u, err := h.svc.Register(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "http://media.local/bucket/covers/cover.jpg", u.CoverImage)
	assert.Equal(t, []string{media.FolderAvatars, media.FolderCovers}, h.uploader.calls)
}

func TestRegister_CoverUploadFailureIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.uploader.errFor[media.FolderCovers] = errUpload

	in := janeInput()
	in.CoverImage = &media.File{Name: "cover.jpg", Body: strings.NewReader("jpg")}

	u, err := h.svc.Register(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, u.CoverImage)
	assert.NotEmpty(t, u.Avatar)
}

func TestRegister_BlankFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"full name", func(in *RegisterInput) { in.FullName = "" }},
		{"email", func(in *RegisterInput) { in.Email = "   " }},
		{"username", func(in *RegisterInput) { in.Username = "\t" }},
		{"password", func(in *RegisterInput) { in.Password = " " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			in := janeInput()
			tt.mutate(&in)

			_, err := h.svc.Register(context.Background(), in)
			apiErr := requireAPIError(t, err, http.StatusBadRequest, MsgAllFieldsRequired)
			assert.ErrorIs(t, apiErr, common.ErrValidation)
			assert.Empty(t, h.uploader.calls)
		})
	}
}

func TestRegister_Conflict(t *testing.T) {
	t.Run("same username different case", func(t *testing.T) {
		h := newHarness(t)
		h.register(t)

		in := janeInput()
		in.Username = "JANED"
		in.Email = "other@example.com"

		_, err := h.svc.Register(context.Background(), in)
		apiErr := requireAPIError(t, err, http.StatusConflict, MsgUserExists)
		assert.ErrorIs(t, apiErr, common.ErrConflict)
	})

	t.Run("same email", func(t *testing.T) {
		h := newHarness(t)
		h.register(t)

		in := janeInput()
		in.Username = "someone"

		_, err := h.svc.Register(context.Background(), in)
		requireAPIError(t, err, http.StatusConflict, MsgUserExists)
	})

	t.Run("unique violation on insert", func(t *testing.T) {
		h := newHarness(t)
		h.users.createErr = errors.Join(common.ErrAlreadyExists, errBoom{})

		_, err := h.svc.Register(context.Background(), janeInput())
		requireAPIError(t, err, http.StatusConflict, MsgUserExists)
	})
}

func TestRegister_AvatarRequired(t *testing.T) {
	h := newHarness(t)
	in := janeInput()
	in.Avatar = nil

	_, err := h.svc.Register(context.Background(), in)
	requireAPIError(t, err, http.StatusBadRequest, MsgAvatarRequired)
}

func TestRegister_AvatarUploadFails(t *testing.T) {
	t.Run("error", func(t *testing.T) {
		h := newHarness(t)
		h.uploader.errFor[media.FolderAvatars] = errUpload

		_, err := h.svc.Register(context.Background(), janeInput())
		apiErr := requireAPIError(t, err, http.StatusBadRequest, MsgAvatarUploadFailed)
		assert.ErrorIs(t, apiErr, common.ErrUpload)
		assert.ErrorIs(t, apiErr, errUpload)
	})

	t.Run("empty url", func(t *testing.T) {
		h := newHarness(t)
		h.uploader.emptyOK = true

		_, err := h.svc.Register(context.Background(), janeInput())
		requireAPIError(t, err, http.StatusBadRequest, MsgAvatarUploadFailed)
	})
}

func TestRegister_StorageFailures(t *testing.T) {
	t.Run("exists check", func(t *testing.T) {
		h := newHarness(t)
		h.users.existsErr = errBoom{}

		_, err := h.svc.Register(context.Background(), janeInput())
		requireAPIError(t, err, http.StatusInternalServerError, MsgRegisterFailed)
	})

	t.Run("create", func(t *testing.T) {
		h := newHarness(t)
		h.users.createErr = errBoom{}

		_, err := h.svc.Register(context.Background(), janeInput())
		apiErr := requireAPIError(t, err, http.StatusInternalServerError, MsgRegisterFailed)
		assert.ErrorIs(t, apiErr, common.ErrorInternal)
	})

	t.Run("created row missing", func(t *testing.T) {
		h := newHarness(t)
		h.users.lostOnFetch = true

		_, err := h.svc.Register(context.Background(), janeInput())
		requireAPIError(t, err, http.StatusInternalServerError, MsgRegisterFailed)
	})
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	h := newHarness(t)
	id := h.register(t)

	res, err := h.svc.Login(context.Background(), LoginInput{Username: "JaneD", Email: "jane@example.com", Password: "secret1"})
	require.NoError(t, err)

	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.NotEqual(t, res.AccessToken, res.RefreshToken)
	assert.Len(t, res.RefreshToken, 64)
	assert.Equal(t, id, res.User.ID)

	stored := h.store.get(id)
	assert.Equal(t, res.RefreshToken, stored.RefreshToken)
	assert.True(t, stored.RefreshTokenExpiresAt.After(time.Now().Add(time.Hour)))

	claims, err := auth.ParseToken(res.AccessToken, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, "janed", claims.Username)
	assert.Equal(t, "jane@example.com", claims.Email)
}

func TestLogin_ReplacesPreviousRefreshToken(t *testing.T) {
	h := newHarness(t)
	id := h.register(t)
	in := LoginInput{Username: "janed", Email: "jane@example.com", Password: "secret1"}

	first, err := h.svc.Login(context.Background(), in)
	require.NoError(t, err)
	second, err := h.svc.Login(context.Background(), in)
	require.NoError(t, err)

	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, second.RefreshToken, h.store.get(id).RefreshToken)
}

func TestLogin_WrongPassword(t *testing.T) {
	h := newHarness(t)
	id := h.register(t)

	ok, err := h.svc.Login(context.Background(), LoginInput{Username: "janed", Email: "jane@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = h.svc.Login(context.Background(), LoginInput{Username: "janed", Email: "jane@example.com", Password: "wrong"})
	apiErr := requireAPIError(t, err, http.StatusUnauthorized, MsgInvalidCredentials)
	assert.ErrorIs(t, apiErr, common.ErrorUnauthorized)

	assert.Equal(t, ok.RefreshToken, h.store.get(id).RefreshToken)
}

func TestLogin_Validation(t *testing.T) {
	h := newHarness(t)

	for _, in := range []LoginInput{
		{Username: "", Email: "jane@example.com", Password: "x"},
		{Username: "janed", Email: " ", Password: "x"},
		{},
	} {
		_, err := h.svc.Login(context.Background(), in)
		requireAPIError(t, err, http.StatusBadRequest, MsgLoginFieldsRequired)
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Login(context.Background(), LoginInput{Username: "ghost", Email: "ghost@example.com", Password: "x"})
	apiErr := requireAPIError(t, err, http.StatusNotFound, MsgUserNotFound)
	assert.ErrorIs(t, apiErr, common.ErrorNotFound)
}

func TestLogin_StorageFailures(t *testing.T) {
	t.Run("lookup", func(t *testing.T) {
		h := newHarness(t)
		h.users.lookupErr = errBoom{}

		_, err := h.svc.Login(context.Background(), LoginInput{Username: "a", Email: "b", Password: "c"})
		requireAPIError(t, err, http.StatusInternalServerError, MsgInternal)
	})

	t.Run("persist refresh token", func(t *testing.T) {
		h := newHarness(t)
		h.register(t)
		h.refresh.setErr = errBoom{}

		_, err := h.svc.Login(context.Background(), LoginInput{Username: "janed", Email: "jane@example.com", Password: "secret1"})
		requireAPIError(t, err, http.StatusInternalServerError, MsgTokenGenerationError)
	})

	t.Run("corrupt hash", func(t *testing.T) {
		h := newHarness(t)
		id := h.register(t)
		h.store.users[id].PasswordHash = "not-a-hash"

		_, err := h.svc.Login(context.Background(), LoginInput{Username: "janed", Email: "jane@example.com", Password: "secret1"})
		requireAPIError(t, err, http.StatusInternalServerError, MsgInternal)
	})
}

// --- Logout ---

func TestLogout(t *testing.T) {
	h := newHarness(t)
	id := h.register(t)

	_, err := h.svc.Login(context.Background(), LoginInput{Username: "janed", Email: "jane@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.NotEmpty(t, h.store.get(id).RefreshToken)

	require.NoError(t, h.svc.Logout(context.Background(), id))
	assert.Empty(t, h.store.get(id).RefreshToken)

	// logging out twice is harmless
	require.NoError(t, h.svc.Logout(context.Background(), id))
}

func TestLogout_StorageFailure(t *testing.T) {
	h := newHarness(t)
	h.refresh.clearErr = errBoom{}

	err := h.svc.Logout(context.Background(), "user-1")
	requireAPIError(t, err, http.StatusInternalServerError, MsgInternal)
}

// --- RefreshToken ---

func TestRefreshToken_Success(t *testing.T) {
	h := newHarness(t)
	id := h.register(t)
	login, err := h.svc.Login(context.Background(), LoginInput{Username: "janed", Email: "jane@example.com", Password: "secret1"})
	require.NoError(t, err)

	h.mock.ExpectBegin()
	h.mock.ExpectCommit()

	res, err := h.svc.RefreshToken(context.Background(), login.RefreshToken)
	require.NoError(t, err)

	assert.NotEqual(t, login.RefreshToken, res.RefreshToken)
	assert.NotEqual(t, res.AccessToken, res.RefreshToken)
	assert.Equal(t, id, res.User.ID)
	assert.Equal(t, res.RefreshToken, h.store.get(id).RefreshToken)
	require.NoError(t, h.mock.ExpectationsWereMet())

	// the old token is gone
	h.mock.ExpectBegin()
	h.mock.ExpectRollback()
	_, err = h.svc.RefreshToken(context.Background(), login.RefreshToken)
	requireAPIError(t, err, http.StatusUnauthorized, MsgRefreshInvalid)
}

func TestRefreshToken_Required(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.RefreshToken(context.Background(), "  ")
	requireAPIError(t, err, http.StatusBadRequest, MsgRefreshRequired)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestRefreshToken_Expired(t *testing.T) {
	h := newHarness(t)
	h.register(t)
	login, err := h.svc.Login(context.Background(), LoginInput{Username: "janed", Email: "jane@example.com", Password: "secret1"})
	require.NoError(t, err)

	h.svc.now = func() time.Time { return time.Now().Add(3 * time.Hour) }

	h.mock.ExpectBegin()
	h.mock.ExpectRollback()

	_, err = h.svc.RefreshToken(context.Background(), login.RefreshToken)
	apiErr := requireAPIError(t, err, http.StatusUnauthorized, MsgRefreshExpired)
	assert.ErrorIs(t, apiErr, common.ErrRefreshTokenExpired)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestRefreshToken_FindErr(t *testing.T) {
	h := newHarness(t)
	h.refresh.findErr = errBoom{}

	h.mock.ExpectBegin()
	h.mock.ExpectRollback()

	_, err := h.svc.RefreshToken(context.Background(), "r")
	apiErr := requireAPIError(t, err, http.StatusInternalServerError, MsgInternal)
	assert.ErrorIs(t, apiErr, errBoom{})
}

func TestRefreshToken_SetErr(t *testing.T) {
	h := newHarness(t)
	h.register(t)
	login, err := h.svc.Login(context.Background(), LoginInput{Username: "janed", Email: "jane@example.com", Password: "secret1"})
	require.NoError(t, err)

	h.refresh.setErr = errBoom{}
	h.mock.ExpectBegin()
	h.mock.ExpectRollback()

	_, err = h.svc.RefreshToken(context.Background(), login.RefreshToken)
	requireAPIError(t, err, http.StatusInternalServerError, MsgTokenGenerationError)
}

func TestRefreshToken_BeginErr(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectBegin().WillReturnError(errBoom{})

	_, err := h.svc.RefreshToken(context.Background(), "r")
	requireAPIError(t, err, http.StatusInternalServerError, MsgInternal)
}

// --- Current ---

func TestCurrent(t *testing.T) {
	h := newHarness(t)
	id := h.register(t)

	u, err := h.svc.Current(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "janed", u.Username)

	_, err = h.svc.Current(context.Background(), "ghost")
	requireAPIError(t, err, http.StatusNotFound, MsgUserNotFound)

	h.users.getByIDErr = errBoom{}
	_, err = h.svc.Current(context.Background(), id)
	requireAPIError(t, err, http.StatusInternalServerError, MsgInternal)
}
