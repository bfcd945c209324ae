package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// roleRepository implements RoleRepository using PostgreSQL.
type roleRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewRoleRepository creates a new PostgreSQL-backed role repository.
func NewRoleRepository(pool *pgxpool.Pool, logger zerolog.Logger) RoleRepository {
	return &roleRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "role").Logger(),
	}
}

// HasRole reports whether userID holds role.
func (r *roleRepository) HasRole(ctx context.Context, userID, role string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM admin_roles WHERE user_id = $1 AND role = $2)`,
		userID, role,
	).Scan(&exists)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("failed to check role")
		return false, fmt.Errorf("failed to check role: %w", err)
	}
	return exists, nil
}

// Grant gives role to userID. Granting twice is a no-op.
func (r *roleRepository) Grant(ctx context.Context, userID, role string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO admin_roles (user_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, role,
	)
	if err != nil {
		return fmt.Errorf("failed to grant role: %w", err)
	}
	return nil
}
