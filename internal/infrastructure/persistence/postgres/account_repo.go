package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/coursehub/coursehub-platform/internal/domain/account"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository implements account.Repository for PostgreSQL.
type UserRepository struct {
	q Querier
}

const userColumns = `id, username, email, name, role, password_hash, is_active, date_joined, last_login`

// Create inserts a user; a taken username or email yields ErrUserExists.
func (r *UserRepository) Create(ctx context.Context, u *account.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING
		RETURNING id
	`

	var id string
	err := r.q.QueryRow(ctx, query,
		string(u.ID),
		u.Username,
		u.Email,
		u.Name,
		string(u.Role),
		u.PasswordHash,
		u.IsActive,
		u.DateJoined,
		u.LastLogin,
	).Scan(&id)
	if err != nil {
		if IsNoRows(err) {
			return shared.ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID returns a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id shared.UserID) (*account.User, error) {
	row := r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, string(id))
	return r.scanUser(row)
}

// GetByUsername returns a user by exact username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*account.User, error) {
	row := r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return r.scanUser(row)
}

// CountByRole counts users with role.
func (r *UserRepository) CountByRole(ctx context.Context, role shared.Role) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, `SELECT count(*) FROM users WHERE role = $1`, string(role)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// TouchLastLogin sets last_login.
func (r *UserRepository) TouchLastLogin(ctx context.Context, id shared.UserID, at time.Time) error {
	result, err := r.q.Exec(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, at.UTC(), string(id))
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) scanUser(row rowScanner) (*account.User, error) {
	var (
		u          account.User
		id, role   string
		lastLogin  *time.Time
		dateJoined time.Time
	)
	err := row.Scan(&id, &u.Username, &u.Email, &u.Name, &role, &u.PasswordHash, &u.IsActive, &dateJoined, &lastLogin)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	u.ID = shared.UserID(id)
	u.Role = shared.Role(role)
	u.DateJoined = dateJoined.UTC()
	u.LastLogin = utcPtr(lastLogin)
	return &u, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
