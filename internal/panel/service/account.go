package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/harwood-dev/deskgate/internal/panel/domain"
	"github.com/harwood-dev/deskgate/internal/panel/store"
	"github.com/harwood-dev/deskgate/pkg/cryptox"
	"github.com/harwood-dev/deskgate/pkg/idx"
)

var (
	ErrUsernameTaken   = errors.New("username already taken")
	ErrPasswordTooWeak = errors.New("password does not meet minimum length")
)

// minPasswordLength is enforced on registration and password change.
const minPasswordLength = 8

// AccountService manages user records outside of the login flow.
type AccountService struct {
	Store  store.Store
	Hasher *cryptox.Hasher
	Audit  *AuditService
	Logger *slog.Logger
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

// Register creates a new user with a hashed password.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	if len(in.Password) < minPasswordLength {
		return domain.User{}, ErrPasswordTooWeak
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           idx.New().String(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrUsernameTaken
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	s.Audit.Record(ctx, domain.LevelInfo, domain.SourceAuth,
		"user registered",
		map[string]any{"username": user.Username, "role": user.Role}, user.ID, "")
	return user, nil
}

// GetUserByID fetches a user by id.
func (s *AccountService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, userID)
}

// ChangePassword verifies the current password before accepting a new one.
func (s *AccountService) ChangePassword(ctx context.Context, userID, current, updated string) error {
	if len(updated) < minPasswordLength {
		return ErrPasswordTooWeak
	}

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if !s.Hasher.Verify(current, user.PasswordHash) {
		s.Audit.Record(ctx, domain.LevelWarning, domain.SourceAuth,
			"password change rejected: wrong current password",
			map[string]any{"username": user.Username}, user.ID, "")
		return ErrInvalidCredentials
	}

	hash, err := s.Hasher.Hash(updated)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.Store.Users().UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.Audit.Record(ctx, domain.LevelInfo, domain.SourceAuth,
		"password changed",
		map[string]any{"username": user.Username}, user.ID, "")
	return nil
}

// Bootstrap seeds a default admin account when the user table is empty. The
// generated password is written to the log once; operators are expected to
// change it immediately.
func (s *AccountService) Bootstrap(ctx context.Context) error {
	empty, err := s.Store.Users().IsEmpty(ctx)
	if err != nil {
		return fmt.Errorf("check users: %w", err)
	}
	if !empty {
		return nil
	}

	password, err := cryptox.GeneratePassword()
	if err != nil {
		return fmt.Errorf("generate bootstrap password: %w", err)
	}
	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash bootstrap password: %w", err)
	}

	now := time.Now().UTC()
	admin := domain.User{
		ID:           idx.New().String(),
		Username:     "admin",
		Email:        "admin@localhost",
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Store.Users().CreateUser(ctx, admin); err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}

	s.Logger.Warn("created default admin account; change this password now",
		"username", admin.Username,
		"password", password,
	)
	s.Audit.Record(ctx, domain.LevelInfo, domain.SourceSystem,
		"bootstrap admin account created",
		map[string]any{"username": admin.Username}, admin.ID, "")
	return nil
}
