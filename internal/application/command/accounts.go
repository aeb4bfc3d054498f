package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/coursehub/coursehub-platform/internal/application/uow"
	"github.com/coursehub/coursehub-platform/internal/domain/account"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACCOUNT COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// minPasswordLength is the shortest accepted password.
const minPasswordLength = 8

// CreateUserCommand registers an account.
type CreateUserCommand struct {
	Username string
	Email    string
	Name     string
	Role     string
	Password string
}

// Validate validates the command.
func (c CreateUserCommand) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return errInvalid("CreateUser", "username is required")
	}
	if len(c.Password) < minPasswordLength {
		return errInvalid("CreateUser", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	// bcrypt ignores everything past 72 bytes.
	if len(c.Password) > 72 {
		return errInvalid("CreateUser", "password must be at most 72 bytes")
	}
	return nil
}

// CreateUserHandler handles CreateUserCommand.
type CreateUserHandler struct {
	deps Deps
	cost int
}

// NewCreateUserHandler creates a new CreateUserHandler. cost <= 0 means bcrypt.DefaultCost.
func NewCreateUserHandler(deps Deps, cost int) *CreateUserHandler {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &CreateUserHandler{deps: deps.withDefaults("create_user"), cost: cost}
}

// Handle executes the command.
func (h *CreateUserHandler) Handle(ctx context.Context, cmd CreateUserCommand) (*account.User, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("create_user: validation failed: %w", err)
	}
	role, err := shared.ParseRole(cmd.Role)
	if err != nil {
		return nil, fmt.Errorf("create_user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), h.cost)
	if err != nil {
		return nil, fmt.Errorf("create_user: hash password: %w", err)
	}

	u, err := account.NewUser(account.NewUserParams{
		ID:           shared.UserID(uuid.NewString()),
		Username:     cmd.Username,
		Email:        cmd.Email,
		Name:         cmd.Name,
		Role:         role,
		PasswordHash: string(hash),
	})
	if err != nil {
		return nil, fmt.Errorf("create_user: %w", err)
	}

	err = h.deps.UoW.Do(ctx, func(ctx context.Context, repos uow.Repositories) error {
		return repos.Users.Create(ctx, u)
	})
	if err != nil {
		return nil, fmt.Errorf("create_user: %w", err)
	}

	h.deps.Log.Info("user registered", logger.UserID(u.ID.String()), logger.Role(u.Role.String()))
	h.deps.publish(shared.NewUserRegisteredEvent(u.ID, u.Username, u.Role))
	return u, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Authenticate
// ─────────────────────────────────────────────────────────────────────────────

// TokenIssuer signs access tokens for authenticated principals.
type TokenIssuer interface {
	Issue(p shared.Principal) (token string, expiresAt time.Time, err error)
}

// AuthenticateCommand carries login credentials.
type AuthenticateCommand struct {
	Username string
	Password string
}

// AuthenticateResult is a signed access token.
type AuthenticateResult struct {
	AccessToken string
	ExpiresAt   time.Time
	Principal   shared.Principal
}

// AuthenticateHandler handles AuthenticateCommand.
type AuthenticateHandler struct {
	deps   Deps
	tokens TokenIssuer
}

// NewAuthenticateHandler creates a new AuthenticateHandler.
func NewAuthenticateHandler(deps Deps, tokens TokenIssuer) *AuthenticateHandler {
	return &AuthenticateHandler{deps: deps.withDefaults("authenticate"), tokens: tokens}
}

// Handle verifies the password and issues a token. Unknown users and wrong
// passwords produce the same error.
func (h *AuthenticateHandler) Handle(ctx context.Context, cmd AuthenticateCommand) (*AuthenticateResult, error) {
	if cmd.Username == "" || cmd.Password == "" {
		return nil, fmt.Errorf("authenticate: %w", shared.ErrInvalidCredentials)
	}

	repos := h.deps.UoW.Repositories()
	u, err := repos.Users.GetByUsername(ctx, cmd.Username)
	if err != nil {
		if errors.Is(err, shared.ErrUserNotFound) {
			return nil, fmt.Errorf("authenticate: %w", shared.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if !u.IsActive {
		return nil, fmt.Errorf("authenticate: %w", shared.ErrInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(cmd.Password)); err != nil {
		return nil, fmt.Errorf("authenticate: %w", shared.ErrInvalidCredentials)
	}

	principal := u.Principal()
	token, expiresAt, err := h.tokens.Issue(principal)
	if err != nil {
		return nil, fmt.Errorf("authenticate: issue token: %w", err)
	}

	if err := repos.Users.TouchLastLogin(ctx, u.ID, h.deps.Clock()); err != nil {
		h.deps.Log.Warn("failed to record last login", logger.UserID(u.ID.String()), logger.Err(err))
	}

	return &AuthenticateResult{AccessToken: token, ExpiresAt: expiresAt, Principal: principal}, nil
}
