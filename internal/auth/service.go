package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/frahmantamala/inventory-checkout/internal"
	"github.com/frahmantamala/inventory-checkout/internal/core/events"
	"github.com/frahmantamala/inventory-checkout/internal/core/security"
	"github.com/frahmantamala/inventory-checkout/internal/observability"
	"github.com/frahmantamala/inventory-checkout/internal/rbac"
	"github.com/frahmantamala/inventory-checkout/internal/user"
)

const resetPasswordMessage = "If the email is registered, a new temporary password has been sent"

// UserStore is the slice of the user service that authentication needs.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	CreateFirstWithRole(ctx context.Context, u *user.User) (*user.User, error)
	CreateWithTemporaryPassword(ctx context.Context, dto user.CreateUserDTO) (*user.User, error)
	SetPassword(ctx context.Context, id int64, passwordHash string, temp bool) error
	CountByRole(ctx context.Context, roleID int64) (int64, error)
}

type RoleLookup interface {
	GetRoleByName(ctx context.Context, name string) (*rbac.Role, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

type Options struct {
	BootstrapEnabled   bool
	TempPasswordLength int
}

type Service struct {
	users       UserStore
	roles       RoleLookup
	tokens      *JWTTokenGenerator
	revocations RevocationStore
	hasher      PasswordHasher
	publisher   events.Publisher
	metrics     *observability.Metrics
	opts        Options
	logger      *slog.Logger
}

func NewService(
	users UserStore,
	roles RoleLookup,
	tokens *JWTTokenGenerator,
	revocations RevocationStore,
	hasher PasswordHasher,
	publisher events.Publisher,
	metrics *observability.Metrics,
	opts Options,
	logger *slog.Logger,
) *Service {
	if revocations == nil {
		revocations = NoopRevocationStore{}
	}
	if opts.TempPasswordLength < 8 {
		opts.TempPasswordLength = 12
	}
	return &Service{
		users:       users,
		roles:       roles,
		tokens:      tokens,
		revocations: revocations,
		hasher:      hasher,
		publisher:   publisher,
		metrics:     metrics,
		opts:        opts,
		logger:      logger,
	}
}

// Login never says which half of the credentials was wrong.
func (s *Service) Login(ctx context.Context, dto LoginDTO) (*TokenResponse, error) {
	u, err := s.users.GetByEmail(ctx, dto.Email)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			s.metrics.RecordLogin(observability.LoginFailed)
			return nil, internal.ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.Verify(u.PasswordHash, dto.Password) {
		s.logger.Info("login rejected", "user_id", u.ID)
		s.metrics.RecordLogin(observability.LoginFailed)
		return nil, internal.ErrInvalidCredentials
	}

	resp, err := s.issue(u)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordLogin(observability.LoginSucceeded)
	s.logger.Info("user logged in", "user_id", u.ID, "temp_password", u.TempPassword)
	return resp, nil
}

// RegisterSuperAdmin creates the first administrator. It closes for good once
// any user holds the Super Admin role.
func (s *Service) RegisterSuperAdmin(ctx context.Context, dto RegisterSuperAdminDTO) (*TokenResponse, error) {
	if !s.opts.BootstrapEnabled {
		return nil, internal.ErrBootstrapClosed
	}

	role, err := s.roles.GetRoleByName(ctx, rbac.RoleSuperAdmin)
	if err != nil {
		return nil, err
	}
	count, err := s.users.CountByRole(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		s.logger.Warn("super admin registration attempted after bootstrap")
		return nil, internal.ErrBootstrapClosed
	}

	hash, err := s.hasher.Hash(dto.Password)
	if err != nil {
		return nil, internal.NewInternalError("Failed to hash password", err)
	}
	// The count above is only a fast path; the insert re-checks under a lock.
	u, err := s.users.CreateFirstWithRole(ctx, &user.User{
		FullName:     strings.TrimSpace(dto.FullName),
		Email:        dto.Email,
		PasswordHash: hash,
		CompanyName:  dto.CompanyName,
		RoleID:       role.ID,
		TempPassword: false,
	})
	if err != nil {
		if errors.Is(err, internal.ErrBootstrapClosed) {
			s.logger.Warn("concurrent super admin registration refused")
		}
		return nil, err
	}

	s.logger.Info("super admin registered", "user_id", u.ID)
	return s.issue(u)
}

// Register creates a user with a generated temporary password. The route is
// restricted to Super Admin callers.
func (s *Service) Register(ctx context.Context, dto RegisterDTO) (*user.User, error) {
	return s.users.CreateWithTemporaryPassword(ctx, dto)
}

func (s *Service) ChangePassword(ctx context.Context, userID int64, dto ChangePasswordDTO) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(u.PasswordHash, dto.CurrentPassword) {
		return internal.ErrWrongPassword
	}
	if dto.CurrentPassword == dto.NewPassword {
		return internal.ErrPasswordReused
	}

	hash, err := s.hasher.Hash(dto.NewPassword)
	if err != nil {
		return internal.NewInternalError("Failed to hash password", err)
	}
	if err := s.users.SetPassword(ctx, userID, hash, false); err != nil {
		return err
	}
	s.logger.Info("password changed", "user_id", userID)
	return nil
}

// ResetPassword answers identically whether or not the email is registered.
func (s *Service) ResetPassword(ctx context.Context, dto ResetPasswordDTO) (*MessageResponse, error) {
	resp := &MessageResponse{Message: resetPasswordMessage}

	u, err := s.users.GetByEmail(ctx, dto.Email)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			return resp, nil
		}
		return nil, err
	}

	tempPassword, err := security.GenerateTemporary(s.opts.TempPasswordLength)
	if err != nil {
		return nil, internal.NewInternalError("Failed to generate password", err)
	}
	hash, err := s.hasher.Hash(tempPassword)
	if err != nil {
		return nil, internal.NewInternalError("Failed to hash password", err)
	}
	if err := s.users.SetPassword(ctx, u.ID, hash, true); err != nil {
		return nil, err
	}

	s.logger.Info("password reset issued", "user_id", u.ID)
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.NewPasswordResetEvent(u.ID, u.Email, u.FullName, tempPassword)); err != nil {
			s.logger.Error("failed to publish password reset event", "user_id", u.ID, "error", err)
		}
	}
	return resp, nil
}

// Logout revokes the token the caller authenticated with.
func (s *Service) Logout(ctx context.Context, p *internal.Principal) error {
	if err := s.revocations.Revoke(ctx, p.TokenID, p.ExpiresAt); err != nil {
		return internal.NewInternalError("Failed to revoke token", err)
	}
	s.metrics.RecordRevocation()
	s.logger.Info("user logged out", "user_id", p.UserID)
	return nil
}

// Authenticate turns a bearer token into a Principal. The user is reloaded so
// tokens of deleted users stop working and the temp-password flag is current.
func (s *Service) Authenticate(ctx context.Context, token string) (*internal.Principal, error) {
	if token == "" {
		return nil, internal.ErrMissingToken
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, internal.NewInternalError("Failed to check token revocation", err)
	}
	if revoked {
		return nil, internal.ErrInvalidToken
	}

	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			return nil, internal.ErrInvalidToken
		}
		return nil, err
	}

	return &internal.Principal{
		UserID:       u.ID,
		Email:        u.Email,
		RoleID:       u.RoleID,
		TempPassword: u.TempPassword,
		TokenID:      claims.ID,
		ExpiresAt:    claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) issue(u *user.User) (*TokenResponse, error) {
	token, claims, err := s.tokens.Issue(u)
	if err != nil {
		return nil, internal.NewInternalError("Failed to issue token", err)
	}
	return &TokenResponse{
		AccessToken:           token,
		TokenType:             "Bearer",
		ExpiresAt:             claims.ExpiresAt.Time,
		RequiresPasswordReset: u.TempPassword,
		User:                  u,
	}, nil
}
