package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jizusun/OpenBookCorner/internal/model"
)

// CreateLibrary creates a new library.
func (s *PostgresStore) CreateLibrary(ctx context.Context, library *model.Library) error {
	query := `
		INSERT INTO libraries (id, name, slug, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		library.ID,
		library.Name,
		library.Slug,
		library.CreatedAt,
		library.UpdatedAt,
		library.Version,
	)

	return err
}

// GetLibrary retrieves a library by id.
func (s *PostgresStore) GetLibrary(ctx context.Context, libraryID string) (*model.Library, error) {
	query := `
		SELECT id, name, slug, created_at, updated_at, version
		FROM libraries
		WHERE id = $1
	`

	return s.scanLibrary(s.pool.QueryRow(ctx, query, libraryID))
}

// GetLibraryBySlug retrieves a library by slug.
func (s *PostgresStore) GetLibraryBySlug(ctx context.Context, slug string) (*model.Library, error) {
	query := `
		SELECT id, name, slug, created_at, updated_at, version
		FROM libraries
		WHERE slug = $1
	`

	return s.scanLibrary(s.pool.QueryRow(ctx, query, slug))
}

// ListLibraries lists every library on the platform.
func (s *PostgresStore) ListLibraries(ctx context.Context) ([]*model.Library, error) {
	query := `
		SELECT id, name, slug, created_at, updated_at, version
		FROM libraries
		ORDER BY created_at
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	libraries := make([]*model.Library, 0)
	for rows.Next() {
		var library model.Library
		if err := rows.Scan(
			&library.ID,
			&library.Name,
			&library.Slug,
			&library.CreatedAt,
			&library.UpdatedAt,
			&library.Version,
		); err != nil {
			return nil, err
		}
		libraries = append(libraries, &library)
	}

	return libraries, rows.Err()
}

func (s *PostgresStore) scanLibrary(row pgx.Row) (*model.Library, error) {
	var library model.Library
	err := row.Scan(
		&library.ID,
		&library.Name,
		&library.Slug,
		&library.CreatedAt,
		&library.UpdatedAt,
		&library.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get library: %w", err)
	}

	return &library, nil
}

// UpdateLibrary updates a library with optimistic locking. The caller sets
// the incremented version; the previous version must still be in the row.
func (s *PostgresStore) UpdateLibrary(ctx context.Context, library *model.Library) error {
	query := `
		UPDATE libraries
		SET name = $2, slug = $3, updated_at = $4, version = $5
		WHERE id = $1 AND version = $6
	`

	result, err := s.pool.Exec(ctx, query,
		library.ID,
		library.Name,
		library.Slug,
		library.UpdatedAt,
		library.Version,
		library.Version-1,
	)

	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrVersionConflict
	}

	return nil
}

// CreateMembership adds a user to a library.
func (s *PostgresStore) CreateMembership(ctx context.Context, m *model.Membership) error {
	query := `
		INSERT INTO memberships (library_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.pool.Exec(ctx, query, m.LibraryID, m.UserID, m.Role, m.CreatedAt)
	return err
}

// GetMembership retrieves a membership.
func (s *PostgresStore) GetMembership(ctx context.Context, libraryID, userID string) (*model.Membership, error) {
	query := `
		SELECT library_id, user_id, role, created_at
		FROM memberships
		WHERE library_id = $1 AND user_id = $2
	`

	var m model.Membership
	err := s.pool.QueryRow(ctx, query, libraryID, userID).Scan(
		&m.LibraryID,
		&m.UserID,
		&m.Role,
		&m.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	return &m, nil
}

// ListMemberships lists all members of a library.
func (s *PostgresStore) ListMemberships(ctx context.Context, libraryID string) ([]*model.Membership, error) {
	query := `
		SELECT library_id, user_id, role, created_at
		FROM memberships
		WHERE library_id = $1
		ORDER BY created_at
	`

	rows, err := s.pool.Query(ctx, query, libraryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]*model.Membership, 0)
	for rows.Next() {
		var m model.Membership
		if err := rows.Scan(&m.LibraryID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		members = append(members, &m)
	}

	return members, rows.Err()
}

// UpdateMembershipRole changes a member's role.
func (s *PostgresStore) UpdateMembershipRole(ctx context.Context, libraryID, userID string, role model.Role) error {
	query := `
		UPDATE memberships
		SET role = $3
		WHERE library_id = $1 AND user_id = $2
	`

	result, err := s.pool.Exec(ctx, query, libraryID, userID, role)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteMembership removes a member from a library.
func (s *PostgresStore) DeleteMembership(ctx context.Context, libraryID, userID string) error {
	query := `DELETE FROM memberships WHERE library_id = $1 AND user_id = $2`

	result, err := s.pool.Exec(ctx, query, libraryID, userID)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
