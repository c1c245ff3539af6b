package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/profilehub/internal/common"
	"github.com/dmitrijs2005/profilehub/internal/dbx"
	"github.com/dmitrijs2005/profilehub/internal/server/models"
	"github.com/dmitrijs2005/profilehub/internal/server/password"
)

const selectColumns = `id, username, email, full_name, password_hash, avatar, cover_image,
		        COALESCE(refresh_token, ''), refresh_token_expires_at, created_at, updated_at`

type PostgresRepository struct {
	db     dbx.DBTX
	hasher password.Hasher
}

func NewPostgresRepository(db dbx.DBTX, hasher password.Hasher) *PostgresRepository {
	return &PostgresRepository{db: db, hasher: hasher}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.NewUser) (*models.User, error) {
	hash, err := r.hasher.Hash(user.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	query :=
		`INSERT INTO users (username, email, full_name, password_hash, avatar, cover_image)
         VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at
		 `

	created := &models.User{
		Username:     user.Username,
		Email:        user.Email,
		FullName:     user.FullName,
		PasswordHash: hash,
		Avatar:       user.Avatar,
		CoverImage:   user.CoverImage,
	}

	err = r.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.FullName, hash, user.Avatar, user.CoverImage).
		Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %w", common.ErrAlreadyExists, err)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

func (r *PostgresRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	query :=
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)
		 `

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, username, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return exists, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query :=
		`SELECT ` + selectColumns + `
		 FROM users
		 WHERE id = $1
		 `

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	query :=
		`SELECT ` + selectColumns + `
		 FROM users
		 WHERE username = $1 OR email = $2
		 LIMIT 1
		 `

	return r.scanOne(r.db.QueryRowContext(ctx, query, username, email))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var expires sql.NullTime

	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.FullName, &user.PasswordHash,
		&user.Avatar, &user.CoverImage, &user.RefreshToken, &expires, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if expires.Valid {
		user.RefreshTokenExpiresAt = expires.Time
	}

	return user, nil
}
