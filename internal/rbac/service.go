package rbac

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/frahmantamala/inventory-checkout/internal"
	rbacDatamodel "github.com/frahmantamala/inventory-checkout/internal/core/datamodel/rbac"
)

type RepositoryAPI interface {
	// WithinTransaction runs fn against a repository bound to one transaction.
	WithinTransaction(ctx context.Context, fn func(repo RepositoryAPI) error) error

	GetRoleByID(ctx context.Context, id int64) (*rbacDatamodel.Role, error)
	GetRoleByName(ctx context.Context, name string) (*rbacDatamodel.Role, error)
	ListRoles(ctx context.Context) ([]*rbacDatamodel.Role, error)
	CreateRole(ctx context.Context, role *rbacDatamodel.Role) error
	UpdateRole(ctx context.Context, role *rbacDatamodel.Role) error
	DeleteRole(ctx context.Context, id int64) error
	CountUsersWithRole(ctx context.Context, roleID int64) (int64, error)

	GetPermissionByID(ctx context.Context, id int64) (*rbacDatamodel.Permission, error)
	GetPermissionByName(ctx context.Context, name string) (*rbacDatamodel.Permission, error)
	ListPermissions(ctx context.Context) ([]*rbacDatamodel.Permission, error)
	CreatePermission(ctx context.Context, perm *rbacDatamodel.Permission) error
	UpdatePermission(ctx context.Context, perm *rbacDatamodel.Permission) error
	DeletePermission(ctx context.Context, id int64) error

	PermissionsForRole(ctx context.Context, roleID int64) ([]*rbacDatamodel.Permission, error)
	AssignPermission(ctx context.Context, roleID, permissionID int64) error
	RevokePermission(ctx context.Context, roleID, permissionID int64) error
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// GetRole loads a role together with its current permission set.
func (s *Service) GetRole(ctx context.Context, id int64) (*Role, error) {
	return s.loadRole(ctx, s.repo, id)
}

func (s *Service) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	dm, err := s.repo.GetRoleByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.loadRole(ctx, s.repo, dm.ID)
}

func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	dms, err := s.repo.ListRoles(ctx)
	if err != nil {
		s.logger.Error("failed to list roles", "error", err)
		return nil, err
	}

	roles := make([]*Role, 0, len(dms))
	for _, dm := range dms {
		perms, err := s.repo.PermissionsForRole(ctx, dm.ID)
		if err != nil {
			return nil, err
		}
		roles = append(roles, RoleFromDataModel(dm, perms))
	}
	return roles, nil
}

// CreateRole inserts the role and its initial grants in one transaction.
func (s *Service) CreateRole(ctx context.Context, dto CreateRoleDTO) (*Role, error) {
	var created *Role
	err := s.repo.WithinTransaction(ctx, func(tx RepositoryAPI) error {
		dm := &rbacDatamodel.Role{
			Name:        strings.TrimSpace(dto.Name),
			Description: dto.Description,
		}
		if err := tx.CreateRole(ctx, dm); err != nil {
			return err
		}
		seen := make(map[int64]struct{}, len(dto.PermissionIDs))
		for _, pid := range dto.PermissionIDs {
			if _, dup := seen[pid]; dup {
				continue
			}
			seen[pid] = struct{}{}
			if _, err := tx.GetPermissionByID(ctx, pid); err != nil {
				return err
			}
			if err := tx.AssignPermission(ctx, dm.ID, pid); err != nil {
				return err
			}
		}
		role, err := s.loadRole(ctx, tx, dm.ID)
		created = role
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("role created", "role_id", created.ID, "name", created.Name)
	return created, nil
}

func (s *Service) UpdateRole(ctx context.Context, id int64, dto UpdateRoleDTO) (*Role, error) {
	dm, err := s.repo.GetRoleByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if dto.Name != nil {
		name := strings.TrimSpace(*dto.Name)
		if dm.Name == RoleSuperAdmin && name != RoleSuperAdmin {
			return nil, internal.ErrProtectedRole
		}
		dm.Name = name
	}
	if dto.Description != nil {
		dm.Description = *dto.Description
	}

	if err := s.repo.UpdateRole(ctx, dm); err != nil {
		return nil, err
	}
	return s.GetRole(ctx, id)
}

func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	dm, err := s.repo.GetRoleByID(ctx, id)
	if err != nil {
		return err
	}
	if dm.Name == RoleSuperAdmin {
		return internal.ErrProtectedRole
	}

	count, err := s.repo.CountUsersWithRole(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return internal.ErrRoleInUse
	}

	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.logger.Info("role deleted", "role_id", id, "name", dm.Name)
	return nil
}

// AssignPermission links an existing permission to an existing role.
func (s *Service) AssignPermission(ctx context.Context, roleID, permissionID int64) (*Role, error) {
	if _, err := s.repo.GetRoleByID(ctx, roleID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetPermissionByID(ctx, permissionID); err != nil {
		return nil, err
	}
	if err := s.repo.AssignPermission(ctx, roleID, permissionID); err != nil {
		return nil, err
	}

	s.logger.Info("permission assigned", "role_id", roleID, "permission_id", permissionID)
	return s.GetRole(ctx, roleID)
}

func (s *Service) RevokePermission(ctx context.Context, roleID, permissionID int64) (*Role, error) {
	dm, err := s.repo.GetRoleByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if dm.Name == RoleSuperAdmin {
		return nil, internal.ErrProtectedRole
	}
	if err := s.repo.RevokePermission(ctx, roleID, permissionID); err != nil {
		return nil, err
	}

	s.logger.Info("permission revoked", "role_id", roleID, "permission_id", permissionID)
	return s.GetRole(ctx, roleID)
}

func (s *Service) ListPermissions(ctx context.Context) ([]*Permission, error) {
	dms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		s.logger.Error("failed to list permissions", "error", err)
		return nil, err
	}
	perms := make([]*Permission, 0, len(dms))
	for _, dm := range dms {
		perms = append(perms, PermissionFromDataModel(dm))
	}
	return perms, nil
}

func (s *Service) GetPermission(ctx context.Context, id int64) (*Permission, error) {
	dm, err := s.repo.GetPermissionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return PermissionFromDataModel(dm), nil
}

// CreatePermission adds a permission and grants it to Super Admin so that
// role keeps holding every permission.
func (s *Service) CreatePermission(ctx context.Context, dto CreatePermissionDTO) (*Permission, error) {
	dm := &rbacDatamodel.Permission{
		Name:        dto.Name,
		Description: dto.Description,
	}

	err := s.repo.WithinTransaction(ctx, func(tx RepositoryAPI) error {
		if err := tx.CreatePermission(ctx, dm); err != nil {
			return err
		}
		admin, err := tx.GetRoleByName(ctx, RoleSuperAdmin)
		if errors.Is(err, internal.ErrRoleNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.AssignPermission(ctx, admin.ID, dm.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("permission created", "permission_id", dm.ID, "name", dm.Name)
	return PermissionFromDataModel(dm), nil
}

func (s *Service) UpdatePermission(ctx context.Context, id int64, dto UpdatePermissionDTO) (*Permission, error) {
	dm, err := s.repo.GetPermissionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if dto.Name != nil && *dto.Name != dm.Name {
		if IsBuiltinPermission(dm.Name) {
			return nil, internal.ErrProtectedPermission
		}
		dm.Name = *dto.Name
	}
	if dto.Description != nil {
		dm.Description = *dto.Description
	}
	if err := s.repo.UpdatePermission(ctx, dm); err != nil {
		return nil, err
	}
	return PermissionFromDataModel(dm), nil
}

func (s *Service) DeletePermission(ctx context.Context, id int64) error {
	dm, err := s.repo.GetPermissionByID(ctx, id)
	if err != nil {
		return err
	}
	if IsBuiltinPermission(dm.Name) {
		return internal.ErrProtectedPermission
	}
	if err := s.repo.DeletePermission(ctx, id); err != nil {
		return err
	}
	s.logger.Info("permission deleted", "permission_id", id)
	return nil
}

func (s *Service) loadRole(ctx context.Context, repo RepositoryAPI, id int64) (*Role, error) {
	dm, err := repo.GetRoleByID(ctx, id)
	if err != nil {
		return nil, err
	}
	perms, err := repo.PermissionsForRole(ctx, id)
	if err != nil {
		return nil, err
	}
	return RoleFromDataModel(dm, perms), nil
}
