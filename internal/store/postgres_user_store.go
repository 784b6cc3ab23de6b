package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jizusun/OpenBookCorner/internal/model"
)

// CreateUser creates a new user.
func (s *PostgresStore) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, email, name, super_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.SuperAdmin,
		user.CreatedAt,
		user.UpdatedAt,
	)

	return err
}

// GetUser retrieves a user by id.
func (s *PostgresStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	query := `
		SELECT id, email, name, super_admin, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	return s.scanUser(s.pool.QueryRow(ctx, query, userID))
}

// GetUserByEmail retrieves a user by email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
		SELECT id, email, name, super_admin, created_at, updated_at
		FROM users
		WHERE email = $1
	`

	return s.scanUser(s.pool.QueryRow(ctx, query, email))
}

func (s *PostgresStore) scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.SuperAdmin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}
