// Package services contains server-side business logic. This file implements
// UserService, which handles registration, login, logout and rotation of the
// access/refresh token pair.
package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/profilehub/internal/common"
	"github.com/dmitrijs2005/profilehub/internal/dbx"
	"github.com/dmitrijs2005/profilehub/internal/logging"
	"github.com/dmitrijs2005/profilehub/internal/server/auth"
	"github.com/dmitrijs2005/profilehub/internal/server/config"
	"github.com/dmitrijs2005/profilehub/internal/server/media"
	"github.com/dmitrijs2005/profilehub/internal/server/models"
	"github.com/dmitrijs2005/profilehub/internal/server/password"
	"github.com/dmitrijs2005/profilehub/internal/server/repositories/repomanager"
)

// Messages returned to clients.
const (
	MsgAllFieldsRequired    = "All fields are required"
	MsgUserExists           = "User with email or username already exists"
	MsgAvatarRequired       = "Avatar file is required"
	MsgAvatarUploadFailed   = "Failed to upload avatar"
	MsgRegisterFailed       = "Something went wrong while registering the user"
	MsgLoginFieldsRequired  = "username or email is required"
	MsgUserNotFound         = "User does not exist"
	MsgInvalidCredentials   = "Invalid user credentials"
	MsgTokenGenerationError = "Something went wrong while generating access and refresh token"
	MsgRefreshRequired      = "Refresh token is required"
	MsgRefreshInvalid       = "Invalid refresh token"
	MsgRefreshExpired       = "Refresh token is expired"
	MsgInternal             = "Internal server error"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// RegisterInput is the registration form. CoverImage is optional.
type RegisterInput struct {
	FullName   string
	Email      string
	Username   string
	Password   string
	Avatar     *media.File
	CoverImage *media.File
}

// LoginInput is the login form.
type LoginInput struct {
	Username string
	Email    string
	Password string
}

// LoginResult is returned by Login and RefreshToken.
type LoginResult struct {
	User         *models.PublicUser `json:"user"`
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
}

// UserService provides authentication-related operations. All errors it
// returns are *common.APIError.
type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	hasher                       password.Hasher
	media                        media.Uploader
	log                          logging.Logger
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	now                          func() time.Time
}

// NewUserService constructs a UserService using repositories and server config.
// hasher must be the one the users repository hashes with.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, hasher password.Hasher, uploader media.Uploader, cfg *config.Config, log logging.Logger) *UserService {
	return &UserService{
		db:                           db,
		repomanager:                  m,
		hasher:                       hasher,
		media:                        uploader,
		log:                          log.With("module", "services.user"),
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		now:                          time.Now,
	}
}

// Register validates the form, uploads the images and creates the user.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.PublicUser, error) {
	fullName := strings.TrimSpace(in.FullName)
	email := strings.TrimSpace(in.Email)
	username := strings.TrimSpace(in.Username)

	if fullName == "" || email == "" || username == "" || strings.TrimSpace(in.Password) == "" {
		return nil, common.NewValidationError(MsgAllFieldsRequired)
	}
	username = strings.ToLower(username)

	users := s.repomanager.Users(s.db)

	exists, err := users.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, common.NewInternalError(MsgRegisterFailed, err)
	}
	if exists {
		return nil, common.NewConflictError(MsgUserExists)
	}

	if in.Avatar == nil {
		return nil, common.NewValidationError(MsgAvatarRequired)
	}

	avatar, err := s.media.Upload(ctx, in.Avatar, media.FolderAvatars)
	if err != nil {
		return nil, common.NewUploadError(MsgAvatarUploadFailed, err)
	}
	if avatar == nil || avatar.URL == "" {
		return nil, common.NewUploadError(MsgAvatarUploadFailed, nil)
	}

	coverImage := ""
	if in.CoverImage != nil {
		cover, err := s.media.Upload(ctx, in.CoverImage, media.FolderCovers)
		switch {
		case err != nil:
			s.log.Warn(ctx, "cover image upload failed", "username", username, "error", err)
		case cover != nil:
			coverImage = cover.URL
		}
	}

	created, err := users.Create(ctx, &models.NewUser{
		Username:   username,
		Email:      email,
		FullName:   fullName,
		Password:   in.Password,
		Avatar:     avatar.URL,
		CoverImage: coverImage,
	})
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, common.NewConflictError(MsgUserExists)
		}
		return nil, common.NewInternalError(MsgRegisterFailed, err)
	}

	user, err := users.GetByID(ctx, created.ID)
	if err != nil {
		return nil, common.NewInternalError(MsgRegisterFailed, err)
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID, "username", user.Username)

	return user.ToPublic(), nil
}

// Login checks credentials and opens a session. A failed password check
// leaves the stored refresh token untouched.
func (s *UserService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.TrimSpace(in.Email)

	if username == "" || email == "" {
		return nil, common.NewValidationError(MsgLoginFieldsRequired)
	}

	user, err := s.repomanager.Users(s.db).GetByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewNotFoundError(MsgUserNotFound)
		}
		return nil, common.NewInternalError(MsgInternal, err)
	}

	ok, err := s.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil {
		return nil, common.NewInternalError(MsgInternal, err)
	}
	if !ok {
		return nil, common.NewAuthenticationError(MsgInvalidCredentials)
	}

	pair, err := s.generateTokenPair(ctx, user, s.db)
	if err != nil {
		return nil, common.NewInternalError(MsgTokenGenerationError, err)
	}

	return &LoginResult{User: user.ToPublic(), AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// Logout drops the stored refresh token of userID.
func (s *UserService) Logout(ctx context.Context, userID string) error {
	if err := s.repomanager.RefreshTokens(s.db).Clear(ctx, userID); err != nil {
		return common.NewInternalError(MsgInternal, err)
	}
	return nil
}

// RefreshToken validates a refresh token and rotates it in one transaction,
// returning a fresh pair together with the user.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*LoginResult, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, common.NewValidationError(MsgRefreshRequired)
	}

	var result *LoginResult

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		token, err := s.repomanager.RefreshTokens(tx).Find(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.NewAuthenticationError(MsgRefreshInvalid)
			}
			return common.NewInternalError(MsgInternal, err)
		}

		if token.Expired(s.now()) {
			apiErr := common.NewAuthenticationError(MsgRefreshExpired)
			apiErr.Err = common.ErrRefreshTokenExpired
			return apiErr
		}

		user, err := s.repomanager.Users(tx).GetByID(ctx, token.UserID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.NewAuthenticationError(MsgRefreshInvalid)
			}
			return common.NewInternalError(MsgInternal, err)
		}

		pair, err := s.generateTokenPair(ctx, user, tx)
		if err != nil {
			return common.NewInternalError(MsgTokenGenerationError, err)
		}

		result = &LoginResult{User: user.ToPublic(), AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}
		return nil
	})
	if err != nil {
		if _, ok := common.AsAPIError(err); ok {
			return nil, err
		}
		return nil, common.NewInternalError(MsgInternal, err)
	}

	return result, nil
}

// Current returns the projection of userID.
func (s *UserService) Current(ctx context.Context, userID string) (*models.PublicUser, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewNotFoundError(MsgUserNotFound)
		}
		return nil, common.NewInternalError(MsgInternal, err)
	}
	return user.ToPublic(), nil
}

func (s *UserService) generateAccessToken(user *models.User) (string, error) {
	return auth.GenerateToken(auth.Claims{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
	}, s.jwtSecret, s.accessTokenValidityDuration)
}

func (s *UserService) generateRefreshToken() (string, error) {
	return common.MakeRandHexString(32)
}

// generateTokenPair mints both tokens and stores the refresh token through db,
// replacing the previous one.
func (s *UserService) generateTokenPair(ctx context.Context, user *models.User, db dbx.DBTX) (*TokenPair, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.generateRefreshToken()
	if err != nil {
		return nil, err
	}

	if err := s.repomanager.RefreshTokens(db).Set(ctx, user.ID, refreshToken, s.refreshTokenValidityDuration); err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
