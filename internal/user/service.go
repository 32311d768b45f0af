package user

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/frahmantamala/inventory-checkout/internal"
	userDatamodel "github.com/frahmantamala/inventory-checkout/internal/core/datamodel/user"
	"github.com/frahmantamala/inventory-checkout/internal/core/events"
	"github.com/frahmantamala/inventory-checkout/internal/core/security"
	"github.com/frahmantamala/inventory-checkout/internal/rbac"
)

// RepositoryAPI is the credential store. It stores hashes it is given and
// never hashes or compares passwords itself.
type RepositoryAPI interface {
	GetByID(ctx context.Context, id int64) (*userDatamodel.User, error)
	GetByEmail(ctx context.Context, email string) (*userDatamodel.User, error)
	List(ctx context.Context) ([]*userDatamodel.User, error)
	Create(ctx context.Context, u *userDatamodel.User) error
	CreateFirstWithRole(ctx context.Context, u *userDatamodel.User) error
	Update(ctx context.Context, u *userDatamodel.User) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string, temp bool) error
	Delete(ctx context.Context, id int64) error
	CountByRole(ctx context.Context, roleID int64) (int64, error)
}

type RoleLookup interface {
	GetRole(ctx context.Context, id int64) (*rbac.Role, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
}

type Service struct {
	repo           RepositoryAPI
	roles          RoleLookup
	hasher         PasswordHasher
	publisher      events.Publisher
	tempPassLength int
	logger         *slog.Logger
}

func NewService(repo RepositoryAPI, roles RoleLookup, hasher PasswordHasher, publisher events.Publisher, tempPassLength int, logger *slog.Logger) *Service {
	if tempPassLength < 8 {
		tempPassLength = 12
	}
	return &Service{
		repo:           repo,
		roles:          roles,
		hasher:         hasher,
		publisher:      publisher,
		tempPassLength: tempPassLength,
		logger:         logger,
	}
}

func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	dm, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromDataModel(dm), nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	dm, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	return FromDataModel(dm), nil
}

func (s *Service) List(ctx context.Context) ([]*User, error) {
	dms, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("failed to list users", "error", err)
		return nil, err
	}
	users := make([]*User, 0, len(dms))
	for _, dm := range dms {
		users = append(users, FromDataModel(dm))
	}
	return users, nil
}

// Profile returns the user with their role and its current permission names.
func (s *Service) Profile(ctx context.Context, id int64) (*ProfileResponse, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	role, err := s.roles.GetRole(ctx, u.RoleID)
	if err != nil {
		return nil, err
	}
	return &ProfileResponse{
		User: u,
		Role: RoleSummary{ID: role.ID, Name: role.Name, Permissions: role.PermissionNames()},
	}, nil
}

// CreateFirstWithRole stores a user whose password the caller has already
// hashed, failing with ErrBootstrapClosed if the role already has a holder.
func (s *Service) CreateFirstWithRole(ctx context.Context, u *User) (*User, error) {
	dm := ToDataModel(u)
	if err := s.repo.CreateFirstWithRole(ctx, dm); err != nil {
		return nil, err
	}
	s.logger.Info("first holder of role created", "user_id", dm.ID, "role_id", dm.RoleID)
	return FromDataModel(dm), nil
}

// CreateUser is CreateWithTemporaryPassword on behalf of actor. Only a Super
// Admin may create accounts, since creating one means choosing its role.
func (s *Service) CreateUser(ctx context.Context, actor *internal.Principal, dto CreateUserDTO) (*User, error) {
	if err := s.requireSuperAdmin(ctx, actor); err != nil {
		s.logger.Warn("user creation denied", "actor_id", actorID(actor), "role_id", dto.RoleID)
		return nil, err
	}
	return s.CreateWithTemporaryPassword(ctx, dto)
}

// CreateWithTemporaryPassword issues a generated password, flags the account
// for rotation and hands the password to the notifier through user.created.
func (s *Service) CreateWithTemporaryPassword(ctx context.Context, dto CreateUserDTO) (*User, error) {
	role, err := s.roles.GetRole(ctx, dto.RoleID)
	if err != nil {
		return nil, err
	}

	tempPassword, err := security.GenerateTemporary(s.tempPassLength)
	if err != nil {
		return nil, internal.NewInternalError("Failed to generate password", err)
	}
	hash, err := s.hasher.Hash(tempPassword)
	if err != nil {
		return nil, internal.NewInternalError("Failed to hash password", err)
	}

	dm := ToDataModel(&User{
		FullName:     strings.TrimSpace(dto.FullName),
		Email:        dto.Email,
		PasswordHash: hash,
		CompanyName:  dto.CompanyName,
		RoleID:       role.ID,
		TempPassword: true,
	})
	if err := s.repo.Create(ctx, dm); err != nil {
		return nil, err
	}

	s.logger.Info("user created with temporary password", "user_id", dm.ID, "role", role.Name)

	if s.publisher != nil {
		ev := events.NewUserCreatedEvent(dm.ID, dm.Email, dm.FullName, role.Name, tempPassword)
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger.Error("failed to publish user created event", "user_id", dm.ID, "error", err)
		}
	}

	return FromDataModel(dm), nil
}

// Update applies a partial update. Changing a role, or touching a Super Admin
// account at all, needs a Super Admin actor.
func (s *Service) Update(ctx context.Context, actor *internal.Principal, id int64, dto UpdateUserDTO) (*User, error) {
	dm, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	roleChange := dto.RoleID != nil && *dto.RoleID != dm.RoleID
	if roleChange || s.holdsSuperAdmin(ctx, dm.RoleID) {
		if err := s.requireSuperAdmin(ctx, actor); err != nil {
			s.logger.Warn("user update denied", "actor_id", actorID(actor), "user_id", id, "role_change", roleChange)
			return nil, err
		}
	}

	if dto.Email != nil {
		email := NormalizeEmail(*dto.Email)
		if email != dm.Email {
			existing, err := s.repo.GetByEmail(ctx, email)
			if err == nil && existing.ID != id {
				return nil, internal.ErrEmailTaken
			}
			if err != nil && !errors.Is(err, internal.ErrUserNotFound) {
				return nil, err
			}
			dm.Email = email
		}
	}
	if dto.RoleID != nil && *dto.RoleID != dm.RoleID {
		if _, err := s.roles.GetRole(ctx, *dto.RoleID); err != nil {
			return nil, err
		}
		dm.RoleID = *dto.RoleID
	}
	if dto.FullName != nil {
		dm.FullName = strings.TrimSpace(*dto.FullName)
	}
	if dto.CompanyName != nil {
		dm.CompanyName = *dto.CompanyName
	}

	if err := s.repo.Update(ctx, dm); err != nil {
		return nil, err
	}
	s.logger.Info("user updated", "user_id", id, "updated_by", actorID(actor))
	return FromDataModel(dm), nil
}

// Delete removes a user. Nobody may delete their own account, whatever
// permissions they hold, and only a Super Admin may delete another one.
func (s *Service) Delete(ctx context.Context, actor *internal.Principal, id int64) error {
	if actorID(actor) == id {
		return internal.ErrCannotDeleteSelf
	}
	dm, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if s.holdsSuperAdmin(ctx, dm.RoleID) {
		if err := s.requireSuperAdmin(ctx, actor); err != nil {
			s.logger.Warn("user deletion denied", "actor_id", actorID(actor), "user_id", id)
			return err
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", "user_id", id, "deleted_by", actorID(actor))
	return nil
}

// requireSuperAdmin checks the actor's current role by name.
func (s *Service) requireSuperAdmin(ctx context.Context, actor *internal.Principal) error {
	if actor == nil {
		return internal.ErrSuperAdminRequired
	}
	role, err := s.roles.GetRole(ctx, actor.RoleID)
	if errors.Is(err, internal.ErrRoleNotFound) {
		return internal.ErrSuperAdminRequired
	}
	if err != nil {
		return err
	}
	if !role.IsSuperAdmin() {
		return internal.ErrSuperAdminRequired
	}
	return nil
}

func (s *Service) holdsSuperAdmin(ctx context.Context, roleID int64) bool {
	role, err := s.roles.GetRole(ctx, roleID)
	return err == nil && role.IsSuperAdmin()
}

func actorID(actor *internal.Principal) int64 {
	if actor == nil {
		return 0
	}
	return actor.UserID
}

func (s *Service) SetPassword(ctx context.Context, id int64, passwordHash string, temp bool) error {
	return s.repo.UpdatePassword(ctx, id, passwordHash, temp)
}

func (s *Service) CountByRole(ctx context.Context, roleID int64) (int64, error) {
	return s.repo.CountByRole(ctx, roleID)
}
