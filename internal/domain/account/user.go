// Package account содержит пользователей платформы и их роли.
// Хеширование паролей выполняется на прикладном уровне, здесь хранится только хеш.
package account

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

// User - пользователь платформы.
type User struct {
	ID           shared.UserID
	Username     string
	Email        string
	Name         string
	Role         shared.Role
	PasswordHash string
	IsActive     bool
	DateJoined   time.Time
	LastLogin    *time.Time
}

// NewUserParams - параметры для создания пользователя.
type NewUserParams struct {
	ID           shared.UserID
	Username     string
	Email        string
	Name         string
	Role         shared.Role
	PasswordHash string
}

// NewUser создаёт активного пользователя.
func NewUser(p NewUserParams) (*User, error) {
	u := &User{
		ID:           p.ID,
		Username:     strings.TrimSpace(p.Username),
		Email:        strings.ToLower(strings.TrimSpace(p.Email)),
		Name:         strings.TrimSpace(p.Name),
		Role:         p.Role,
		PasswordHash: p.PasswordHash,
		IsActive:     true,
		DateJoined:   time.Now().UTC(),
	}
	if !u.ID.IsValid() {
		return nil, shared.ErrInvalidUserID
	}
	if u.Username == "" || len(u.Username) > 150 {
		return nil, shared.NewDomainError("account", "NewUser", shared.ErrInvalidArgument, "username must be 1-150 chars")
	}
	if u.Email != "" {
		if _, err := mail.ParseAddress(u.Email); err != nil {
			return nil, shared.WrapError("account", "NewUser", shared.ErrInvalidArgument, "invalid email", err)
		}
	}
	if !u.Role.IsValid() {
		return nil, shared.ErrInvalidRole
	}
	if u.PasswordHash == "" {
		return nil, shared.NewDomainError("account", "NewUser", shared.ErrInvalidArgument, "password is required")
	}
	return u, nil
}

// Principal возвращает удостоверение пользователя для прикладного слоя.
func (u *User) Principal() shared.Principal {
	return shared.Principal{ID: u.ID, Username: u.Username, Role: u.Role}
}

// String возвращает "username (role)".
func (u *User) String() string {
	return u.Username + " (" + u.Role.String() + ")"
}

// Repository - хранилище пользователей.
type Repository interface {
	// Create возвращает ErrUserExists, если username или email заняты.
	Create(ctx context.Context, u *User) error

	// GetByID возвращает пользователя или ErrUserNotFound.
	GetByID(ctx context.Context, id shared.UserID) (*User, error)

	// GetByUsername возвращает пользователя или ErrUserNotFound.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// CountByRole возвращает количество пользователей с ролью.
	CountByRole(ctx context.Context, role shared.Role) (int, error)

	// TouchLastLogin обновляет время последнего входа.
	TouchLastLogin(ctx context.Context, id shared.UserID, at time.Time) error
}
